// Package pipeline orchestrates the two halves of a correction session:
// style-guide ingestion (sections → chunks → extracted rules → embeddings →
// index) and document correction (paragraphs → deterministic corrections →
// retrieval-based example application → assembled result).
//
// A Pipeline is the session object. It starts with no guide; document
// correction before a guide has been ingested fails fast with ErrNoStyleGuide.
// Ingesting a guide replaces any previous one. Progress is pushed to an
// optional event channel; sends never block, so a slow or absent consumer
// costs nothing.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/hurttlocker/redline/internal/correct"
	"github.com/hurttlocker/redline/internal/embed"
	"github.com/hurttlocker/redline/internal/index"
	"github.com/hurttlocker/redline/internal/rules"
	"github.com/hurttlocker/redline/internal/segment"
)

// ErrNoStyleGuide is returned when document correction is requested before
// any style guide has been ingested into the session.
var ErrNoStyleGuide = errors.New("no style guide has been processed yet")

// Event stages.
const (
	StageGuide    = "style_guide"
	StageDocument = "document"
)

// Event phases, in the order they occur within a stage.
const (
	PhaseReading    = "reading"
	PhaseSections   = "sections"
	PhaseRules      = "rules"
	PhaseEmbedding  = "embedding"
	PhaseCorrecting = "correcting"
	PhaseComplete   = "complete"
)

// retrievalK is how many index matches are retrieved per paragraph from each
// vector space.
const retrievalK = 3

// minChunkChars filters guide fragments too short to carry a rule (bare
// headings, list stubs) out of the chunk index.
const minChunkChars = 50

// Event is one progress report. Events are best-effort: the pipeline drops
// them rather than block when the consumer falls behind.
type Event struct {
	Stage   string `json:"stage"`
	Phase   string `json:"phase"`
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Message string `json:"message,omitempty"`
}

// Options configures a Pipeline.
type Options struct {
	ChunkSize int          // max guide chunk size in characters; default segment.DefaultChunkSize
	Events    chan<- Event // optional progress sink; sends never block
}

// GuideResult summarizes one style-guide ingestion.
type GuideResult struct {
	Name     string       `json:"name"`
	Sections int          `json:"sections"`
	Chunks   int          `json:"chunks"`
	Rules    []rules.Rule `json:"rules"`
}

// Correction is the record for one paragraph that changed: the deterministic
// change descriptions plus the retrieval matches actually applied.
type Correction struct {
	Original  string          `json:"original_text"`
	Corrected string          `json:"corrected_text"`
	Changes   []string        `json:"changes,omitempty"`
	Applied   []correct.Match `json:"applied_rules,omitempty"`
}

// DocumentResult is the outcome of one document-correction run. Corrections
// holds only the paragraphs that changed; CorrectedText is the whole document
// with paragraphs in original order.
type DocumentResult struct {
	Guide         string       `json:"guide,omitempty"`
	CorrectedText string       `json:"corrected_text"`
	Paragraphs    int          `json:"paragraphs"`
	Corrections   []Correction `json:"corrections"`
}

// Stats reports the current session state.
type Stats struct {
	GuideName  string         `json:"guide_name,omitempty"`
	Rules      int            `json:"rules"`
	Chunks     int            `json:"chunks"`
	Dimensions int            `json:"dimensions"`
	ByCategory map[string]int `json:"rules_by_category,omitempty"`
}

// Pipeline is a correction session: one optional ingested guide serving any
// number of document-correction runs.
type Pipeline struct {
	embedder  embed.Embedder
	engine    *correct.Engine
	extractor *rules.Extractor
	chunkSize int
	events    chan<- Event

	mu        sync.Mutex
	ix        *index.Index // nil until a guide is ingested
	guideName string
}

// New creates a session. A nil embedder defaults to the local hash embedder.
func New(embedder embed.Embedder, opts Options) *Pipeline {
	if embedder == nil {
		embedder = embed.NewHash(embed.DefaultDimensions)
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = segment.DefaultChunkSize
	}
	return &Pipeline{
		embedder:  embedder,
		engine:    correct.NewEngine(),
		extractor: rules.NewExtractor(),
		chunkSize: opts.ChunkSize,
		events:    opts.Events,
	}
}

// HasGuide reports whether a style guide has been ingested.
func (p *Pipeline) HasGuide() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ix != nil
}

// Index returns the session's index, or nil when no guide has been ingested.
func (p *Pipeline) Index() *index.Index {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ix
}

// Restore installs a previously persisted index as the active guide session.
func (p *Pipeline) Restore(name string, ix *index.Index) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.guideName = name
	p.ix = ix
}

// IngestGuide processes style-guide text into the session: titled sections
// are chunked sentence-aware, chunks of at least minChunkChars are embedded
// and indexed, and rules extracted from the full text are embedded alongside.
// Re-ingesting replaces the previous guide. Empty or headingless text is not
// an error; it produces a trivially empty (but present) guide.
func (p *Pipeline) IngestGuide(ctx context.Context, name, text string) (*GuideResult, error) {
	p.emit(Event{Stage: StageGuide, Phase: PhaseReading, Current: 0, Total: 1, Message: name})

	sections := segment.Sections(text)
	var chunks []index.Chunk
	for i, sec := range sections {
		for j, c := range segment.Chunks(sec.Body, p.chunkSize) {
			if len(strings.TrimSpace(c)) < minChunkChars {
				continue
			}
			chunks = append(chunks, index.Chunk{
				ID:       uuid.NewString(),
				Content:  c,
				Section:  sec.Title,
				RuleType: rules.ChunkRuleType(c, sec.Title),
				Examples: rules.ExtractExamples(c),
				Metadata: map[string]string{
					"section_index": strconv.Itoa(i + 1),
					"chunk_index":   strconv.Itoa(j + 1),
				},
			})
		}
		p.emit(Event{Stage: StageGuide, Phase: PhaseSections, Current: i + 1, Total: len(sections), Message: sec.Title})
	}

	extracted := p.extractor.Extract(text)
	p.emit(Event{Stage: StageGuide, Phase: PhaseRules, Current: len(extracted), Total: len(extracted)})

	ix := index.New(p.embedder)
	if err := ix.AddRules(ctx, extracted); err != nil {
		return nil, fmt.Errorf("indexing rules: %w", err)
	}
	p.emit(Event{Stage: StageGuide, Phase: PhaseEmbedding, Current: len(extracted), Total: len(extracted) + len(chunks)})
	if err := ix.AddChunks(ctx, chunks); err != nil {
		return nil, fmt.Errorf("indexing chunks: %w", err)
	}
	p.emit(Event{Stage: StageGuide, Phase: PhaseEmbedding, Current: len(extracted) + len(chunks), Total: len(extracted) + len(chunks)})

	p.mu.Lock()
	p.ix = ix
	p.guideName = name
	p.mu.Unlock()

	p.emit(Event{Stage: StageGuide, Phase: PhaseComplete, Current: 1, Total: 1, Message: name})
	return &GuideResult{
		Name:     name,
		Sections: len(sections),
		Chunks:   len(chunks),
		Rules:    extracted,
	}, nil
}

// CorrectDocument corrects document text against the ingested guide. Each
// blank-line-separated paragraph gets the deterministic correction pass, then
// retrieval matches from both index spaces applied as example replacements.
// Returns ErrNoStyleGuide when no guide has been ingested.
func (p *Pipeline) CorrectDocument(ctx context.Context, text string) (*DocumentResult, error) {
	p.mu.Lock()
	ix := p.ix
	guide := p.guideName
	p.mu.Unlock()
	if ix == nil {
		return nil, ErrNoStyleGuide
	}

	paragraphs := segment.Paragraphs(text)
	result := &DocumentResult{Guide: guide, Paragraphs: len(paragraphs)}
	out := make([]string, len(paragraphs))
	for i, para := range paragraphs {
		corrected, changes := p.engine.Apply(para)

		matches, err := p.retrieve(ctx, ix, para)
		if err != nil {
			return nil, fmt.Errorf("paragraph %d: %w", i+1, err)
		}
		corrected, applied := correct.ApplyMatches(corrected, matches)

		out[i] = corrected
		if len(changes) > 0 || len(applied) > 0 {
			result.Corrections = append(result.Corrections, Correction{
				Original:  para,
				Corrected: corrected,
				Changes:   changes,
				Applied:   applied,
			})
		}
		p.emit(Event{Stage: StageDocument, Phase: PhaseCorrecting, Current: i + 1, Total: len(paragraphs)})
	}

	result.CorrectedText = strings.Join(out, "\n\n")
	p.emit(Event{Stage: StageDocument, Phase: PhaseComplete, Current: 1, Total: 1})
	return result, nil
}

// retrieve queries both vector spaces for a paragraph and converts the hits
// into applicable matches. Rule hits use the rule's pattern as trigger; chunk
// hits use the chunk content. Hits without examples are dropped here since
// they carry nothing to apply.
func (p *Pipeline) retrieve(ctx context.Context, ix *index.Index, para string) ([]correct.Match, error) {
	ruleHits, err := ix.SearchRules(ctx, para, retrievalK)
	if err != nil {
		return nil, fmt.Errorf("rule retrieval: %w", err)
	}
	chunkHits, err := ix.SearchChunks(ctx, para, retrievalK)
	if err != nil {
		return nil, fmt.Errorf("chunk retrieval: %w", err)
	}

	matches := make([]correct.Match, 0, len(ruleHits)+len(chunkHits))
	for _, h := range ruleHits {
		// A restored rule can be malformed (empty pattern) if the stored
		// session was tampered with; dropping it must not abort the pass.
		if strings.TrimSpace(h.Rule.Pattern) == "" {
			fmt.Fprintf(os.Stderr, "Warning: dropping rule %s: empty pattern\n", h.Rule.ID)
			continue
		}
		if len(h.Rule.Examples) == 0 {
			continue
		}
		matches = append(matches, correct.Match{
			Trigger:    h.Rule.Pattern,
			Example:    h.Rule.Examples[0],
			RuleType:   string(h.Rule.Type),
			Confidence: index.RuleConfidence(h.Distance),
		})
	}
	for _, h := range chunkHits {
		if strings.TrimSpace(h.Chunk.Content) == "" {
			fmt.Fprintf(os.Stderr, "Warning: dropping chunk %s: empty content\n", h.Chunk.ID)
			continue
		}
		if len(h.Chunk.Examples) == 0 {
			continue
		}
		matches = append(matches, correct.Match{
			Trigger:    h.Chunk.Content,
			Example:    h.Chunk.Examples[0],
			RuleType:   h.Chunk.RuleType,
			Section:    h.Chunk.Section,
			Confidence: index.Confidence(h.Distance),
		})
	}
	return matches, nil
}

// SearchHit is one direct retrieval result. Rule hits carry the pattern and
// replacement; chunk hits carry the guide passage and its section.
type SearchHit struct {
	Kind        string  `json:"kind"` // "rule" or "chunk"
	Text        string  `json:"text"`
	Replacement string  `json:"replacement,omitempty"`
	Section     string  `json:"section,omitempty"`
	RuleType    string  `json:"rule_type"`
	Distance    float32 `json:"distance"`
	Confidence  float64 `json:"confidence"`
}

// Search queries both vector spaces without applying anything: rule hits
// first, then chunk hits, each closest first. Returns ErrNoStyleGuide when no
// guide has been ingested.
func (p *Pipeline) Search(ctx context.Context, query string, k int) ([]SearchHit, error) {
	p.mu.Lock()
	ix := p.ix
	p.mu.Unlock()
	if ix == nil {
		return nil, ErrNoStyleGuide
	}

	ruleHits, err := ix.SearchRules(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("rule retrieval: %w", err)
	}
	chunkHits, err := ix.SearchChunks(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("chunk retrieval: %w", err)
	}

	hits := make([]SearchHit, 0, len(ruleHits)+len(chunkHits))
	for _, h := range ruleHits {
		hits = append(hits, SearchHit{
			Kind:        "rule",
			Text:        h.Rule.Pattern,
			Replacement: h.Rule.Replacement,
			RuleType:    string(h.Rule.Type),
			Distance:    h.Distance,
			Confidence:  index.RuleConfidence(h.Distance),
		})
	}
	for _, h := range chunkHits {
		hits = append(hits, SearchHit{
			Kind:       "chunk",
			Text:       h.Chunk.Content,
			Section:    h.Chunk.Section,
			RuleType:   h.Chunk.RuleType,
			Distance:   h.Distance,
			Confidence: index.Confidence(h.Distance),
		})
	}
	return hits, nil
}

// Rules returns the session's extracted rules in extraction order, or nil
// when no guide has been ingested.
func (p *Pipeline) Rules() []rules.Rule {
	p.mu.Lock()
	ix := p.ix
	p.mu.Unlock()
	if ix == nil {
		return nil
	}
	return ix.Rules()
}

// Stats returns current session counts. Zero-valued (with no ByCategory map)
// when no guide has been ingested.
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	ix := p.ix
	name := p.guideName
	p.mu.Unlock()

	s := Stats{Dimensions: p.embedder.Dimensions()}
	if ix == nil {
		return s
	}
	s.GuideName = name
	s.Rules = ix.RuleCount()
	s.Chunks = ix.ChunkCount()
	s.ByCategory = make(map[string]int)
	for _, r := range ix.Rules() {
		s.ByCategory[string(r.Category)]++
	}
	return s
}

// emit pushes a progress event without ever blocking the pipeline.
func (p *Pipeline) emit(ev Event) {
	if p.events == nil {
		return
	}
	select {
	case p.events <- ev:
	default:
	}
}
