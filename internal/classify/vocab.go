package classify

import (
	"embed"
	"encoding/json"
	"strings"
	"sync"
)

//go:embed vocab.json
var vocabFS embed.FS

// vocabTerm is one entry of the frozen topic vocabulary. The vocabulary is
// fixed at build time (Open Question (a), resolved in DESIGN.md) so that
// dims 31-46 mean the same thing across every Map ever sealed, rather than
// drifting with a per-domain corpus.
type vocabTerm struct {
	Term string  `json:"term"`
	IDF  float64 `json:"idf"`
}

var (
	vocabOnce  sync.Once
	vocabTerms []vocabTerm
)

func loadVocab() []vocabTerm {
	vocabOnce.Do(func() {
		data, err := vocabFS.ReadFile("vocab.json")
		if err != nil {
			vocabTerms = nil
			return
		}
		var terms []vocabTerm
		if err := json.Unmarshal(data, &terms); err != nil {
			vocabTerms = nil
			return
		}
		if len(terms) > sitemapTopicDims {
			terms = terms[:sitemapTopicDims]
		}
		vocabTerms = terms
	})
	return vocabTerms
}

// topicVector computes the TF-IDF score for each vocabulary term against
// text, returning a slice sized sitemapTopicDims (zero-padded if the
// vocabulary is shorter).
func topicVector(text string, wordCount int) [sitemapTopicDims]float64 {
	var out [sitemapTopicDims]float64
	if wordCount <= 0 || text == "" {
		return out
	}
	lower := strings.ToLower(text)
	terms := loadVocab()
	for i, vt := range terms {
		if i >= sitemapTopicDims {
			break
		}
		count := strings.Count(lower, vt.Term)
		if count == 0 {
			continue
		}
		tf := float64(count) / float64(wordCount)
		out[i] = tf * vt.IDF
	}
	return out
}
