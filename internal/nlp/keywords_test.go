package nlp

import (
	"reflect"
	"testing"
)

// identity stands in for the lemmatizer where inflection is irrelevant.
func identity(s string) string { return s }

func TestCollectKeywordsEntitiesLowercased(t *testing.T) {
	got := collectKeywords(nil, []string{"Isaac Newton", "  GRAVITY  "}, identity)
	want := []string{"gravity", "isaac newton"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestCollectKeywordsNounRunHeads(t *testing.T) {
	// "the water cycle describes evaporation" with "water cycle" as one noun
	// run: only the head noun of the run is kept.
	tokens := []taggedWord{
		{"the", "DT"},
		{"water", "NN"},
		{"cycle", "NN"},
		{"describes", "VBZ"},
		{"evaporation", "NN"},
	}
	lemma := func(s string) string {
		if s == "describes" {
			return "describe"
		}
		return s
	}
	got := collectKeywords(tokens, nil, lemma)
	want := []string{"cycle", "describe", "evaporation"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	for _, kw := range got {
		if kw == "water" {
			t.Error("non-head noun of a run was kept")
		}
	}
}

func TestCollectKeywordsFiltersStopwordVerbs(t *testing.T) {
	tokens := []taggedWord{
		{"is", "VBZ"},
		{"be", "VB"},
		{"photosynthesize", "VB"},
	}
	got := collectKeywords(tokens, nil, identity)
	want := []string{"photosynthesize"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestCollectKeywordsAdjectiveLemmas(t *testing.T) {
	tokens := []taggedWord{
		{"Faster", "JJR"},
		{"processes", "NNS"},
	}
	lemma := func(s string) string {
		if s == "faster" {
			return "fast"
		}
		return s
	}
	got := collectKeywords(tokens, nil, lemma)
	want := []string{"fast", "processes"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestCollectKeywordsDeduplicatesAndSorts(t *testing.T) {
	tokens := []taggedWord{
		{"energy", "NN"},
		{"transfers", "VBZ"},
		{"energy", "NN"},
	}
	lemma := func(s string) string {
		if s == "transfers" {
			return "transfer"
		}
		return s
	}
	got := collectKeywords(tokens, []string{"Energy"}, lemma)
	want := []string{"energy", "transfer"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestCollectKeywordsEmptyInput(t *testing.T) {
	got := collectKeywords(nil, nil, identity)
	if len(got) != 0 {
		t.Errorf("got %v, want empty", got)
	}
}

func TestKeywordsBlankText(t *testing.T) {
	// Blank input short-circuits before any tagging or lemmatization.
	k := &keywordExtractor{}
	got, err := k.Keywords("   \n\t ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %v, want empty", got)
	}
	if got == nil {
		t.Error("blank input should yield an empty slice, not nil")
	}
}

func TestPOSTagClasses(t *testing.T) {
	for _, tag := range []string{"NN", "NNS", "NNP", "NNPS"} {
		if !isNoun(tag) {
			t.Errorf("isNoun(%s) = false", tag)
		}
	}
	for _, tag := range []string{"VB", "VBD", "VBG", "VBN", "VBP", "VBZ"} {
		if !isVerb(tag) {
			t.Errorf("isVerb(%s) = false", tag)
		}
	}
	for _, tag := range []string{"JJ", "JJR", "JJS"} {
		if !isAdjective(tag) {
			t.Errorf("isAdjective(%s) = false", tag)
		}
	}
	if isNoun("VB") || isVerb("NN") || isAdjective("RB") {
		t.Error("tag classes overlap incorrectly")
	}
}

func TestCosineSimilarity(t *testing.T) {
	cases := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"empty", nil, nil, 0},
		{"mismatched length", []float32{1, 2}, []float32{1}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 2}, 0},
	}

	for _, tc := range cases {
		got := CosineSimilarity(tc.a, tc.b)
		if diff := got - tc.want; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}
