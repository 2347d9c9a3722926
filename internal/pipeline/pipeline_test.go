package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hurttlocker/redline/internal/embed"
	"github.com/hurttlocker/redline/internal/index"
)

const terminologyGuide = `# Terminology
Use "Subject" instead of "patient" when referring to trial participants. Example: the Subject completed all visits.`

func TestCorrectDocument_NoGuide(t *testing.T) {
	p := New(nil, Options{})
	_, err := p.CorrectDocument(context.Background(), "Some text.")
	if !errors.Is(err, ErrNoStyleGuide) {
		t.Fatalf("Expected ErrNoStyleGuide, got %v", err)
	}
	if p.HasGuide() {
		t.Error("HasGuide should be false before ingestion")
	}
}

func TestCorrectDocument_MarkedReplacement(t *testing.T) {
	ctx := context.Background()
	p := New(nil, Options{})

	guide := `Use "Subject" instead of "patient" when referring to trial participants.`
	gr, err := p.IngestGuide(ctx, "terminology", guide)
	if err != nil {
		t.Fatalf("IngestGuide failed: %v", err)
	}
	if len(gr.Rules) != 1 {
		t.Fatalf("Expected 1 extracted rule, got %d", len(gr.Rules))
	}
	if !p.HasGuide() {
		t.Fatal("HasGuide should be true after ingestion")
	}

	res, err := p.CorrectDocument(ctx, "The patient was enrolled.")
	if err != nil {
		t.Fatalf("CorrectDocument failed: %v", err)
	}
	if !strings.Contains(res.CorrectedText, ">Subject</change>") {
		t.Errorf("Corrected text should contain the marked example, got %q", res.CorrectedText)
	}
	if !strings.Contains(res.CorrectedText, "<change confidence=0.") {
		t.Errorf("Marker should carry a confidence below 1, got %q", res.CorrectedText)
	}
	if len(res.Corrections) != 1 {
		t.Fatalf("Expected 1 correction record, got %d", len(res.Corrections))
	}
	applied := res.Corrections[0].Applied
	if len(applied) != 1 {
		t.Fatalf("Expected 1 applied match, got %d", len(applied))
	}
	if applied[0].Trigger != "patient" || applied[0].Example != "Subject" {
		t.Errorf("Applied match = %+v, want trigger 'patient' example 'Subject'", applied[0])
	}
	if applied[0].Confidence <= 0 || applied[0].Confidence > 1 {
		t.Errorf("Confidence = %f, want in (0, 1]", applied[0].Confidence)
	}
}

func TestIngestGuide_Counts(t *testing.T) {
	guide := `# Terminology
Use "Subject" instead of "patient" when referring to trial participants.
Use "adverse event" instead of "side effect" in safety sections.

# Formatting
Numbers under ten should be spelled out in running text always.`

	p := New(nil, Options{})
	gr, err := p.IngestGuide(context.Background(), "style", guide)
	if err != nil {
		t.Fatalf("IngestGuide failed: %v", err)
	}
	if gr.Name != "style" {
		t.Errorf("Name = %q, want %q", gr.Name, "style")
	}
	if gr.Sections != 2 {
		t.Errorf("Sections = %d, want 2", gr.Sections)
	}
	if gr.Chunks != 2 {
		t.Errorf("Chunks = %d, want 2", gr.Chunks)
	}
	if len(gr.Rules) != 3 {
		t.Errorf("Expected 3 extracted rules, got %d", len(gr.Rules))
	}
}

func TestIngestGuide_EmptyText(t *testing.T) {
	ctx := context.Background()
	p := New(nil, Options{})
	gr, err := p.IngestGuide(ctx, "empty", "")
	if err != nil {
		t.Fatalf("IngestGuide failed: %v", err)
	}
	if gr.Sections != 0 || gr.Chunks != 0 || len(gr.Rules) != 0 {
		t.Errorf("Empty guide should produce zero counts, got %+v", gr)
	}
	if !p.HasGuide() {
		t.Error("An empty guide still counts as ingested")
	}

	// Correction proceeds with the deterministic pass alone.
	res, err := p.CorrectDocument(ctx, "the study was conducted in phase i.")
	if err != nil {
		t.Fatalf("CorrectDocument failed: %v", err)
	}
	if res.CorrectedText != "the study was conducted in Phase 1." {
		t.Errorf("CorrectedText = %q", res.CorrectedText)
	}
}

func TestIngestGuide_ReplacesPrevious(t *testing.T) {
	ctx := context.Background()
	p := New(nil, Options{})
	if _, err := p.IngestGuide(ctx, "first", terminologyGuide); err != nil {
		t.Fatalf("IngestGuide failed: %v", err)
	}
	if _, err := p.IngestGuide(ctx, "second", ""); err != nil {
		t.Fatalf("IngestGuide failed: %v", err)
	}
	s := p.Stats()
	if s.GuideName != "second" {
		t.Errorf("GuideName = %q, want %q", s.GuideName, "second")
	}
	if s.Rules != 0 || s.Chunks != 0 {
		t.Errorf("Re-ingesting should replace the session, got %d rules %d chunks", s.Rules, s.Chunks)
	}
}

func TestCorrectDocument_ParagraphOrder(t *testing.T) {
	ctx := context.Background()
	p := New(nil, Options{})
	if _, err := p.IngestGuide(ctx, "style", terminologyGuide); err != nil {
		t.Fatalf("IngestGuide failed: %v", err)
	}

	res, err := p.CorrectDocument(ctx, "phase i enrollment.\n\nsubmitted to fda.")
	if err != nil {
		t.Fatalf("CorrectDocument failed: %v", err)
	}
	if res.Paragraphs != 2 {
		t.Errorf("Paragraphs = %d, want 2", res.Paragraphs)
	}
	want := "Phase 1 enrollment.\n\nsubmitted to FDA."
	if res.CorrectedText != want {
		t.Errorf("CorrectedText = %q, want %q", res.CorrectedText, want)
	}
	if len(res.Corrections) != 2 {
		t.Errorf("Expected 2 correction records, got %d", len(res.Corrections))
	}
}

func TestCorrectDocument_UnchangedParagraphNotRecorded(t *testing.T) {
	ctx := context.Background()
	p := New(nil, Options{})
	if _, err := p.IngestGuide(ctx, "style", terminologyGuide); err != nil {
		t.Fatalf("IngestGuide failed: %v", err)
	}

	doc := "The study enrolled 40 participants across three sites.\n\nphase i results."
	res, err := p.CorrectDocument(ctx, doc)
	if err != nil {
		t.Fatalf("CorrectDocument failed: %v", err)
	}
	if len(res.Corrections) != 1 {
		t.Fatalf("Expected 1 correction record, got %d", len(res.Corrections))
	}
	if res.Corrections[0].Original != "phase i results." {
		t.Errorf("Recorded paragraph = %q", res.Corrections[0].Original)
	}
}

func TestCorrectDocument_EmptyDocument(t *testing.T) {
	ctx := context.Background()
	p := New(nil, Options{})
	if _, err := p.IngestGuide(ctx, "style", terminologyGuide); err != nil {
		t.Fatalf("IngestGuide failed: %v", err)
	}
	res, err := p.CorrectDocument(ctx, "")
	if err != nil {
		t.Fatalf("CorrectDocument failed: %v", err)
	}
	if res.Paragraphs != 0 || res.CorrectedText != "" || len(res.Corrections) != 0 {
		t.Errorf("Empty document should complete trivially, got %+v", res)
	}
}

func TestRetrieve_ConvertsBothSpaces(t *testing.T) {
	ctx := context.Background()
	p := New(nil, Options{})
	if _, err := p.IngestGuide(ctx, "style", terminologyGuide); err != nil {
		t.Fatalf("IngestGuide failed: %v", err)
	}
	ix := p.Index()
	chunks := ix.Chunks()
	if len(chunks) != 1 {
		t.Fatalf("Expected 1 indexed chunk, got %d", len(chunks))
	}

	// Querying with the chunk's own content guarantees a chunk-space
	// self-match inside the normalized-distance ceiling.
	matches, err := p.retrieve(ctx, ix, chunks[0].Content)
	if err != nil {
		t.Fatalf("retrieve failed: %v", err)
	}
	var ruleMatch, chunkMatch bool
	for _, m := range matches {
		if m.Trigger == "patient" && m.Example == "Subject" && m.RuleType == "CONTEXT" {
			ruleMatch = true
		}
		if m.Section == "Terminology" && m.RuleType == "terminology" {
			chunkMatch = true
			if m.Example != "the Subject completed all visits" {
				t.Errorf("Chunk example = %q", m.Example)
			}
			if m.Confidence < 0.9 {
				t.Errorf("Self-match confidence = %f, want near 1", m.Confidence)
			}
		}
	}
	if !ruleMatch {
		t.Error("Expected a rule-space match with the extracted pattern as trigger")
	}
	if !chunkMatch {
		t.Error("Expected a chunk-space self-match carrying the mined example")
	}
}

func TestIngestGuide_Progress(t *testing.T) {
	events := make(chan Event, 64)
	p := New(nil, Options{Events: events})
	ctx := context.Background()
	if _, err := p.IngestGuide(ctx, "style", terminologyGuide); err != nil {
		t.Fatalf("IngestGuide failed: %v", err)
	}
	if _, err := p.CorrectDocument(ctx, "The patient was enrolled."); err != nil {
		t.Fatalf("CorrectDocument failed: %v", err)
	}

	var got []Event
	for len(events) > 0 {
		got = append(got, <-events)
	}
	if len(got) == 0 {
		t.Fatal("Expected progress events")
	}
	if got[0].Stage != StageGuide || got[0].Phase != PhaseReading {
		t.Errorf("First event = %+v, want guide reading", got[0])
	}
	var guideDone, docCorrecting, docDone bool
	for _, ev := range got {
		if ev.Current < 0 || ev.Total < 0 {
			t.Errorf("Event has negative counters: %+v", ev)
		}
		switch {
		case ev.Stage == StageGuide && ev.Phase == PhaseComplete:
			guideDone = true
		case ev.Stage == StageDocument && ev.Phase == PhaseCorrecting:
			docCorrecting = true
			if ev.Total != 1 {
				t.Errorf("Correcting total = %d, want 1", ev.Total)
			}
		case ev.Stage == StageDocument && ev.Phase == PhaseComplete:
			docDone = true
		}
	}
	if !guideDone || !docCorrecting || !docDone {
		t.Errorf("Missing expected events: guideDone=%v docCorrecting=%v docDone=%v", guideDone, docCorrecting, docDone)
	}
}

func TestEvents_DroppedWhenConsumerSlow(t *testing.T) {
	// Capacity one and no consumer: every send past the first must be
	// dropped, never blocked on. Completion of both calls is the assertion.
	events := make(chan Event, 1)
	p := New(nil, Options{Events: events})
	ctx := context.Background()
	if _, err := p.IngestGuide(ctx, "style", terminologyGuide); err != nil {
		t.Fatalf("IngestGuide failed: %v", err)
	}
	if _, err := p.CorrectDocument(ctx, "phase i data.\n\nphase ii data."); err != nil {
		t.Fatalf("CorrectDocument failed: %v", err)
	}
}

func TestRestore_ServesCorrection(t *testing.T) {
	ctx := context.Background()
	emb := embed.NewHash(embed.DefaultDimensions)

	first := New(emb, Options{})
	if _, err := first.IngestGuide(ctx, "style", terminologyGuide); err != nil {
		t.Fatalf("IngestGuide failed: %v", err)
	}
	snap := first.Index().Snapshot()

	ix, err := index.Restore(emb, snap)
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	second := New(emb, Options{})
	second.Restore("style", ix)
	if !second.HasGuide() {
		t.Fatal("HasGuide should be true after Restore")
	}

	res, err := second.CorrectDocument(ctx, "The patient was enrolled.")
	if err != nil {
		t.Fatalf("CorrectDocument failed: %v", err)
	}
	if !strings.Contains(res.CorrectedText, ">Subject</change>") {
		t.Errorf("Restored session should correct like the original, got %q", res.CorrectedText)
	}
}

func TestSearch_NoGuide(t *testing.T) {
	p := New(nil, Options{})
	_, err := p.Search(context.Background(), "anything", 5)
	if !errors.Is(err, ErrNoStyleGuide) {
		t.Fatalf("Expected ErrNoStyleGuide, got %v", err)
	}
}

func TestSearch_ReturnsBothKinds(t *testing.T) {
	ctx := context.Background()
	p := New(nil, Options{})
	if _, err := p.IngestGuide(ctx, "style", terminologyGuide); err != nil {
		t.Fatalf("IngestGuide failed: %v", err)
	}
	chunks := p.Index().Chunks()
	if len(chunks) != 1 {
		t.Fatalf("Expected 1 indexed chunk, got %d", len(chunks))
	}

	hits, err := p.Search(ctx, chunks[0].Content, 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	var ruleHit, chunkHit bool
	for _, h := range hits {
		if h.Confidence < 0 || h.Confidence > 1 {
			t.Errorf("Confidence out of range: %+v", h)
		}
		switch h.Kind {
		case "rule":
			if h.Text == "patient" && h.Replacement == "Subject" && h.RuleType == "CONTEXT" {
				ruleHit = true
			}
		case "chunk":
			if h.Section == "Terminology" && h.RuleType == "terminology" {
				chunkHit = true
				if h.Confidence < 0.9 {
					t.Errorf("Self-match confidence = %f, want near 1", h.Confidence)
				}
			}
		default:
			t.Errorf("Unknown hit kind %q", h.Kind)
		}
	}
	if !ruleHit {
		t.Error("Expected a rule hit with pattern and replacement")
	}
	if !chunkHit {
		t.Error("Expected a chunk self-match hit")
	}
}

func TestRules_SessionListing(t *testing.T) {
	ctx := context.Background()
	p := New(nil, Options{})
	if p.Rules() != nil {
		t.Error("Rules should be nil before ingestion")
	}
	if _, err := p.IngestGuide(ctx, "style", terminologyGuide); err != nil {
		t.Fatalf("IngestGuide failed: %v", err)
	}
	rs := p.Rules()
	if len(rs) != 1 {
		t.Fatalf("Expected 1 rule, got %d", len(rs))
	}
	if rs[0].Pattern != "patient" || rs[0].Replacement != "Subject" {
		t.Errorf("Rule = %+v, want patient -> Subject", rs[0])
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	p := New(nil, Options{})

	s := p.Stats()
	if s.Rules != 0 || s.Chunks != 0 || s.GuideName != "" {
		t.Errorf("Stats before ingestion = %+v, want zeros", s)
	}
	if s.Dimensions != embed.DefaultDimensions {
		t.Errorf("Dimensions = %d, want %d", s.Dimensions, embed.DefaultDimensions)
	}

	if _, err := p.IngestGuide(ctx, "style", terminologyGuide); err != nil {
		t.Fatalf("IngestGuide failed: %v", err)
	}
	s = p.Stats()
	if s.GuideName != "style" {
		t.Errorf("GuideName = %q, want %q", s.GuideName, "style")
	}
	if s.Rules != 1 || s.Chunks != 1 {
		t.Errorf("Stats = %d rules %d chunks, want 1 and 1", s.Rules, s.Chunks)
	}
	total := 0
	for _, n := range s.ByCategory {
		total += n
	}
	if total != s.Rules {
		t.Errorf("ByCategory sums to %d, want %d", total, s.Rules)
	}
}
