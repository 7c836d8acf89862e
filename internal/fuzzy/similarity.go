package fuzzy

import "github.com/mehmetkoksal-w/paired/internal/model"

// Options tunes the similarity score.
type Options struct {
	// FuzzyCutoff is the edit ratio two unequal strings must exceed to earn
	// partial credit.
	FuzzyCutoff float64
	// PartialCredit is the per-key score of a fuzzy string match.
	PartialCredit float64
}

// DefaultOptions returns the stock cutoff (0.6) and partial credit (0.5).
func DefaultOptions() Options {
	return Options{FuzzyCutoff: 0.6, PartialCredit: 0.5}
}

// Similarity scores two normalized contexts in [0,1]. Every key present in
// either context counts once; equal values score 1, close strings score
// PartialCredit, anything else 0. Two empty contexts have nothing to match
// on and score 0.
func Similarity(a, b model.Context, opts Options) float64 {
	keys := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		keys[k] = struct{}{}
	}
	for k := range b {
		keys[k] = struct{}{}
	}
	if len(keys) == 0 {
		return 0
	}

	var total float64
	for k := range keys {
		total += keyScore(a, b, k, opts)
	}
	return total / float64(len(keys))
}

func keyScore(a, b model.Context, key string, opts Options) float64 {
	va, okA := a[key]
	vb, okB := b[key]
	if !okA || !okB {
		return 0
	}
	if va == vb {
		return 1
	}
	if va.IsString() && vb.IsString() && Ratio(va.Str(), vb.Str()) > opts.FuzzyCutoff {
		return opts.PartialCredit
	}
	return 0
}
