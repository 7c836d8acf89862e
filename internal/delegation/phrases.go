package delegation

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/mehmetkoksal-w/paired/internal/model"
)

// Bigrams returns the distinct adjacent word pairs of text, lower-cased, in
// order of first appearance.
func Bigrams(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\'' && r != '-' && r != '_'
	})
	seen := make(map[string]struct{}, len(words))
	var out []string
	for i := 0; i+1 < len(words); i++ {
		phrase := words[i] + " " + words[i+1]
		if _, dup := seen[phrase]; dup {
			continue
		}
		seen[phrase] = struct{}{}
		out = append(out, phrase)
	}
	return out
}

// LearnPhrases strengthens a specialist's association with each phrase. A new
// phrase starts at one step; a known one gains a step up to 1. Only the
// strongest phrases are kept.
func (c *Controller) LearnPhrases(specialist string, phrases []string) error {
	now := c.settings.Now().UTC()

	c.mu.Lock()
	defer c.mu.Unlock()

	st, err := c.state(specialist)
	if err != nil {
		return err
	}
	if len(phrases) == 0 {
		return nil
	}
	step := c.settings.PhraseStep
	for _, phrase := range phrases {
		lp, ok := st.phrases[phrase]
		if !ok {
			lp = &model.LearnedPhrase{Phrase: phrase}
			st.phrases[phrase] = lp
		}
		lp.Weight = math.Min(1, roundWeight(lp.Weight+step))
		lp.Seen++
		lp.LastSeen = now
	}
	prunePhrases(st.phrases, c.settings.MaxPhrases)
	c.dirty = true
	return nil
}

func roundWeight(w float64) float64 {
	return math.Round(w*1000) / 1000
}

// rankedPhrases orders phrases by weight, then by how often and how recently
// they were seen, then alphabetically.
func rankedPhrases(phrases map[string]*model.LearnedPhrase) []model.LearnedPhrase {
	if len(phrases) == 0 {
		return nil
	}
	out := make([]model.LearnedPhrase, 0, len(phrases))
	for _, lp := range phrases {
		out = append(out, *lp)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Weight != b.Weight {
			return a.Weight > b.Weight
		}
		if a.Seen != b.Seen {
			return a.Seen > b.Seen
		}
		if !a.LastSeen.Equal(b.LastSeen) {
			return a.LastSeen.After(b.LastSeen)
		}
		return a.Phrase < b.Phrase
	})
	return out
}

func prunePhrases(phrases map[string]*model.LearnedPhrase, limit int) {
	if len(phrases) <= limit {
		return
	}
	for _, lp := range rankedPhrases(phrases)[limit:] {
		delete(phrases, lp.Phrase)
	}
}
