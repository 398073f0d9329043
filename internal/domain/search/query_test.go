package search

import "testing"

func TestNew_NormalizesAndCapsTerms(t *testing.T) {
	q, err := New("  Local   123 Main Street Suite Nine Hundred ", nil, "NY", 10)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	terms := q.Terms()
	if len(terms) != 5 {
		t.Fatalf("expected 5 terms (capped), got %d: %v", len(terms), terms)
	}
	if terms[0] != "local" || terms[1] != "123" {
		t.Errorf("terms not lower-cased/split: %v", terms)
	}
}

func TestNew_RejectsNonPositiveLimit(t *testing.T) {
	if _, err := New("query", nil, "", 0); err == nil {
		t.Fatal("expected error for limit=0")
	}
}

func TestTooShort(t *testing.T) {
	q, _ := New("a", nil, "", 10)
	if !q.TooShort(2) {
		t.Error("single character query should be too short at minLength=2")
	}
	q2, _ := New("ab", nil, "", 10)
	if q2.TooShort(2) {
		t.Error("two character query should pass minLength=2")
	}
}

func TestMode_Selection(t *testing.T) {
	cases := []struct {
		input string
		want  Mode
	}{
		{"smith", ModeBasic},
		{"local 123", ModeAdvanced},
		{"multiterm query here", ModeAdvanced},
		{"antidisestablish", ModeAdvanced}, // single long term
		{"short", ModeBasic},
	}
	for _, tc := range cases {
		q, err := New(tc.input, nil, "", 10)
		if err != nil {
			t.Fatalf("New(%q): %v", tc.input, err)
		}
		if got := q.Mode(); got != tc.want {
			t.Errorf("Mode(%q) = %s, want %s", tc.input, got, tc.want)
		}
	}
}

func TestCacheKey_DeterministicAndDistinct(t *testing.T) {
	a, _ := New("Local 123", nil, "NY", 10)
	b, _ := New("local   123", nil, "NY", 10)
	if a.CacheKey() != b.CacheKey() {
		t.Errorf("equivalent queries produced different keys: %q vs %q", a.CacheKey(), b.CacheKey())
	}

	c, _ := New("local 123", nil, "TX", 10)
	if a.CacheKey() == c.CacheKey() {
		t.Error("different region hints must produce different keys")
	}
	d, _ := New("local 123", nil, "NY", 20)
	if a.CacheKey() == d.CacheKey() {
		t.Error("different limits must produce different keys")
	}
}

func TestDefaultFieldWeights_Ordering(t *testing.T) {
	w := DefaultFieldWeights
	if !(w["name"] > w["city"] && w["city"] > w["state"] && w["state"] > w["tags"]) {
		t.Errorf("default weights not strictly decreasing: %v", w)
	}
}
