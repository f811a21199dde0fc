// Package nlp holds the linguistic-feature routines shared by scheme
// preparation and scoring: keyword extraction and text embeddings.
package nlp

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aaaton/golem/v4"
	"github.com/aaaton/golem/v4/dicts/en"
	"github.com/jdkato/prose/v2"
)

// KeywordExtractor derives a deterministic keyword set from free text.
type KeywordExtractor interface {
	Keywords(text string) ([]string, error)
}

type keywordExtractor struct {
	lemmatizer *golem.Lemmatizer
}

// NewKeywordExtractor loads the English lemma dictionary once; the extractor
// is shared process-wide.
func NewKeywordExtractor() (KeywordExtractor, error) {
	lemmatizer, err := golem.New(en.New())
	if err != nil {
		return nil, fmt.Errorf("load lemma dictionary: %w", err)
	}
	return &keywordExtractor{lemmatizer: lemmatizer}, nil
}

// Keywords returns the union of named-entity spans, noun-phrase head words,
// and lemmas of non-stopword verbs and adjectives, lowercased, deduplicated
// and sorted. Empty input yields an empty set.
func (k *keywordExtractor) Keywords(text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return []string{}, nil
	}

	doc, err := prose.NewDocument(strings.ToLower(text))
	if err != nil {
		return nil, fmt.Errorf("parse text: %w", err)
	}

	tokens := make([]taggedWord, 0, len(doc.Tokens()))
	for _, tok := range doc.Tokens() {
		tokens = append(tokens, taggedWord{Text: tok.Text, Tag: tok.Tag})
	}

	entities := make([]string, 0, len(doc.Entities()))
	for _, ent := range doc.Entities() {
		entities = append(entities, ent.Text)
	}

	return collectKeywords(tokens, entities, k.lemmatizer.Lemma), nil
}

// taggedWord is one token with its Penn Treebank POS tag.
type taggedWord struct {
	Text string
	Tag  string
}

// collectKeywords is the pure core of keyword extraction, split out so the
// selection rules are testable without running the tagger.
func collectKeywords(tokens []taggedWord, entities []string, lemma func(string) string) []string {
	set := make(map[string]struct{})

	for _, ent := range entities {
		if ent = strings.ToLower(strings.TrimSpace(ent)); ent != "" {
			set[ent] = struct{}{}
		}
	}

	// Head word of each noun phrase, approximated as the last noun of every
	// contiguous noun run.
	for i := 0; i < len(tokens); i++ {
		if !isNoun(tokens[i].Tag) {
			continue
		}
		j := i
		for j+1 < len(tokens) && isNoun(tokens[j+1].Tag) {
			j++
		}
		if head := strings.ToLower(tokens[j].Text); head != "" {
			set[head] = struct{}{}
		}
		i = j
	}

	for _, tok := range tokens {
		if !isVerb(tok.Tag) && !isAdjective(tok.Tag) {
			continue
		}
		word := strings.ToLower(tok.Text)
		if stopWords[word] {
			continue
		}
		if l := strings.ToLower(lemma(word)); l != "" && !stopWords[l] {
			set[l] = struct{}{}
		}
	}

	keywords := make([]string, 0, len(set))
	for kw := range set {
		keywords = append(keywords, kw)
	}
	sort.Strings(keywords)
	return keywords
}

func isNoun(tag string) bool {
	return strings.HasPrefix(tag, "NN")
}

func isVerb(tag string) bool {
	return strings.HasPrefix(tag, "VB")
}

func isAdjective(tag string) bool {
	return strings.HasPrefix(tag, "JJ")
}
