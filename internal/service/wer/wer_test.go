package wer

import (
	"reflect"
	"testing"
)

func TestCompute_IdenticalTranscripts(t *testing.T) {
	inputs := []string{
		"hello",
		"the quick brown fox",
		"I want to cancel my subscription",
	}
	for _, in := range inputs {
		r := Compute(in, in)
		if !r.Available {
			t.Errorf("%q: expected result to be available", in)
		}
		if r.EditDistance != 0 {
			t.Errorf("%q: expected edit distance 0, got %d", in, r.EditDistance)
		}
		if r.Percent != 0 {
			t.Errorf("%q: expected 0%% WER, got %v", in, r.Percent)
		}
	}
}

func TestCompute_SingleSubstitution(t *testing.T) {
	r := Compute("the cat sat", "the dog sat")

	if r.ReferenceWordCount != 3 {
		t.Errorf("expected 3 reference words, got %d", r.ReferenceWordCount)
	}
	if r.EditDistance != 1 {
		t.Errorf("expected edit distance 1, got %d", r.EditDistance)
	}
	if r.Percent != 33.33 {
		t.Errorf("expected 33.33, got %v", r.Percent)
	}
}

func TestCompute_EmptyHypothesis(t *testing.T) {
	r := Compute("a b c", "")

	if r.EditDistance != 3 {
		t.Errorf("expected edit distance 3, got %d", r.EditDistance)
	}
	if r.Percent != 100.00 {
		t.Errorf("expected 100.00, got %v", r.Percent)
	}
}

func TestCompute_EmptyReferenceIsUnavailable(t *testing.T) {
	for _, ref := range []string{"", "   ", "\t\n"} {
		r := Compute(ref, "some hypothesis")
		if r.Available {
			t.Errorf("reference %q: expected unavailable result", ref)
		}
		if r.ReferenceWordCount != 0 {
			t.Errorf("reference %q: expected 0 reference words, got %d", ref, r.ReferenceWordCount)
		}
	}
}

func TestCompute_CaseAndWhitespaceInsensitive(t *testing.T) {
	r := Compute("Hello   World", "hello world")
	if r.EditDistance != 0 {
		t.Errorf("expected edit distance 0, got %d", r.EditDistance)
	}
}

func TestCompute_InsertionsAndDeletions(t *testing.T) {
	cases := []struct {
		name     string
		ref, hyp string
		dist     int
		percent  float64
	}{
		{"insertion", "hello world", "hello big world", 1, 50.00},
		{"deletion", "hello big world", "hello world", 1, 33.33},
		{"mixed", "one two three four", "two three five", 2, 50.00},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := Compute(tc.ref, tc.hyp)
			if r.EditDistance != tc.dist {
				t.Errorf("expected edit distance %d, got %d", tc.dist, r.EditDistance)
			}
			if r.Percent != tc.percent {
				t.Errorf("expected %v%%, got %v%%", tc.percent, r.Percent)
			}
		})
	}
}

func TestTokenize(t *testing.T) {
	got := Tokenize("  The QUICK\tbrown\nfox ")
	want := []string{"the", "quick", "brown", "fox"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}
