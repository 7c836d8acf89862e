package fuzzy

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mehmetkoksal-w/paired/internal/model"
)

func TestLevenshteinDistance(t *testing.T) {
	tests := []struct {
		a, b     string
		expected int
	}{
		{"", "", 0},
		{"a", "", 1},
		{"", "a", 1},
		{"abc", "abc", 0},
		{"abc", "abd", 1},
		{"abc", "Abc", 1},
		{"kitten", "sitting", 3},
		{"hello", "hallo", 1},
		{"test", "toast", 2},
		{"héllo", "hello", 1},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.expected, LevenshteinDistance(tt.a, tt.b))
			assert.Equal(t, tt.expected, LevenshteinDistance(tt.b, tt.a))
		})
	}
}

func TestRatio(t *testing.T) {
	assert.Equal(t, 1.0, Ratio("", ""))
	assert.Equal(t, 1.0, Ratio("go", "go"))
	assert.InDelta(t, 0.8, Ratio("hello", "hallo"), 1e-9)
	assert.InDelta(t, 1-3.0/7.0, Ratio("kitten", "sitting"), 1e-9)
	assert.Equal(t, 0.0, Ratio("abc", ""))
}

func TestNormalizeKey(t *testing.T) {
	tests := map[string]string{
		"File_Type":  "filetype",
		"error-type": "errortype",
		"  Lines ":   "lines",
		"ÄBC":        "äbc",
		"__":         "",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeKey(in), in)
	}
}

func TestNormalize(t *testing.T) {
	in := model.Context{
		"File_Type": model.String("  JavaScript "),
		"Lines":     model.Number(42),
		"Flaky":     model.Bool(true),
		"Owner":     model.Null(),
	}
	got := Normalize(in)

	assert.Equal(t, model.Context{
		"filetype": model.String("javascript"),
		"lines":    model.Number(42),
		"flaky":    model.Bool(true),
		"owner":    model.Null(),
	}, got)
	// input untouched
	assert.Equal(t, model.String("  JavaScript "), in["File_Type"])
}

func TestNormalizeCollisionIsDeterministic(t *testing.T) {
	in := model.Context{
		"file-type": model.String("a"),
		"File_Type": model.String("b"),
	}
	for i := 0; i < 20; i++ {
		// "file-type" sorts after "File_Type"
		assert.Equal(t, model.String("a"), Normalize(in)["filetype"])
	}
}

func TestSimilarity(t *testing.T) {
	opts := DefaultOptions()

	tests := []struct {
		name string
		a, b model.Context
		want float64
	}{
		{
			name: "empty contexts never match",
			a:    model.Context{},
			b:    model.Context{},
			want: 0,
		},
		{
			name: "identical",
			a:    model.Context{"lang": model.String("go"), "lines": model.Number(3)},
			b:    model.Context{"lang": model.String("go"), "lines": model.Number(3)},
			want: 1,
		},
		{
			name: "one shared key of two",
			a:    model.Context{"lang": model.String("go")},
			b:    model.Context{"lang": model.String("go"), "os": model.String("linux")},
			want: 0.5,
		},
		{
			name: "fuzzy string earns partial credit",
			a:    model.Context{"error": model.String("undefined_variable")},
			b:    model.Context{"error": model.String("undefined_variables")},
			want: 0.5,
		},
		{
			name: "distant strings earn nothing",
			a:    model.Context{"error": model.String("timeout")},
			b:    model.Context{"error": model.String("nil pointer")},
			want: 0,
		},
		{
			name: "different kinds never fuzzy match",
			a:    model.Context{"n": model.Number(1)},
			b:    model.Context{"n": model.String("1")},
			want: 0,
		},
		{
			name: "numbers need exact equality",
			a:    model.Context{"n": model.Number(1)},
			b:    model.Context{"n": model.Number(2)},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Similarity(tt.a, tt.b, opts), 1e-9)
			assert.InDelta(t, tt.want, Similarity(tt.b, tt.a, opts), 1e-9)
		})
	}
}

func TestSimilaritySelfIsOne(t *testing.T) {
	contexts := []model.Context{
		{"a": model.String("x")},
		{"a": model.Number(1), "b": model.Bool(false), "c": model.Null()},
		{"path": model.String("src/main.go"), "lang": model.String("go")},
		{"ratio": model.Number(math.NaN()), "lines": model.Number(math.Inf(1))},
	}
	for _, c := range contexts {
		assert.Equal(t, 1.0, Similarity(c, c, DefaultOptions()))
	}
}

func TestSimilarityCutoffIsStrict(t *testing.T) {
	// ratio("abcde","abcxy") = 0.6 exactly, which is not above the cutoff
	a := model.Context{"k": model.String("abcde")}
	assert.Equal(t, 0.0, Similarity(a, model.Context{"k": model.String("abcxy")}, DefaultOptions()))
	assert.Equal(t, 0.5, Similarity(a, model.Context{"k": model.String("abcdx")}, DefaultOptions()))
}
