package correct

import "testing"

func TestApplyMatches_MarksFirstOccurrence(t *testing.T) {
	text := "The patient was enrolled."
	matches := []Match{{Trigger: "patient", Example: "Subject", Confidence: 0.87}}

	got, applied := ApplyMatches(text, matches)
	want := "The <change confidence=0.87>Subject</change> was enrolled."
	if got != want {
		t.Errorf("ApplyMatches() = %q, want %q", got, want)
	}
	if len(applied) != 1 || applied[0].Trigger != "patient" {
		t.Errorf("applied = %v, want one patient match", applied)
	}
}

func TestApplyMatches_CaseInsensitiveFind(t *testing.T) {
	text := "All Patients completed the visit."
	matches := []Match{{Trigger: "patients", Example: "Subjects", Confidence: 0.75}}

	got, applied := ApplyMatches(text, matches)
	want := "All <change confidence=0.75>Subjects</change> completed the visit."
	if got != want {
		t.Errorf("ApplyMatches() = %q, want %q", got, want)
	}
	if len(applied) != 1 {
		t.Errorf("expected 1 applied match, got %d", len(applied))
	}
}

func TestApplyMatches_SkipsWhenAlreadyEqual(t *testing.T) {
	text := "The subject was enrolled."
	matches := []Match{{Trigger: "subject", Example: "Subject", Confidence: 0.9}}

	got, applied := ApplyMatches(text, matches)
	if got != text {
		t.Errorf("ApplyMatches() = %q, want unchanged", got)
	}
	if applied != nil {
		t.Errorf("applied = %v, want nil", applied)
	}
}

func TestApplyMatches_RightmostFirst(t *testing.T) {
	text := "alpha beta gamma"
	matches := []Match{
		{Trigger: "alpha", Example: "ALPHA-X", Confidence: 0.9},
		{Trigger: "gamma", Example: "GAMMA-X", Confidence: 0.8},
	}

	got, applied := ApplyMatches(text, matches)
	want := "<change confidence=0.90>ALPHA-X</change> beta <change confidence=0.80>GAMMA-X</change>"
	if got != want {
		t.Errorf("ApplyMatches() = %q, want %q", got, want)
	}

	// Rightmost trigger must be applied first so the earlier offset stays valid.
	if len(applied) != 2 || applied[0].Trigger != "gamma" || applied[1].Trigger != "alpha" {
		t.Errorf("application order = %v, want gamma then alpha", applied)
	}
}

func TestApplyMatches_NoExample(t *testing.T) {
	text := "The patient was enrolled."
	matches := []Match{{Trigger: "patient", Example: "", Confidence: 0.9}}

	got, applied := ApplyMatches(text, matches)
	if got != text || applied != nil {
		t.Errorf("ApplyMatches() = %q, %v; want unchanged, nil", got, applied)
	}
}

func TestApplyMatches_TriggerAbsent(t *testing.T) {
	text := "Nothing relevant here."
	matches := []Match{{Trigger: "patient", Example: "Subject", Confidence: 0.9}}

	got, applied := ApplyMatches(text, matches)
	if got != text || applied != nil {
		t.Errorf("ApplyMatches() = %q, %v; want unchanged, nil", got, applied)
	}
}

func TestFoldIndex(t *testing.T) {
	if got := foldIndex("The Adverse Event", "adverse event"); got != 4 {
		t.Errorf("foldIndex = %d, want 4", got)
	}
	if got := foldIndex("short", "not present"); got != -1 {
		t.Errorf("foldIndex = %d, want -1", got)
	}
	if got := foldIndex("anything", ""); got != -1 {
		t.Errorf("foldIndex for empty trigger = %d, want -1", got)
	}
}
