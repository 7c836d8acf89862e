package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromMap(t *testing.T) {
	ctx := FromMap(map[string]any{
		"file_type": "go",
		"lines":     120,
		"ratio":     float32(0.5),
		"flaky":     true,
		"owner":     nil,
		"list":      []int{1, 2},
	})

	assert.Equal(t, String("go"), ctx["file_type"])
	assert.Equal(t, Number(120), ctx["lines"])
	assert.Equal(t, Number(0.5), ctx["ratio"])
	assert.Equal(t, Bool(true), ctx["flaky"])
	assert.Equal(t, Null(), ctx["owner"])
	assert.Equal(t, String("[1 2]"), ctx["list"])
}

func TestValueEquality(t *testing.T) {
	assert.True(t, Number(1) == ValueOf(1.0))
	assert.False(t, String("1") == Number(1))
	assert.False(t, Bool(false) == Null())

	for _, n := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		v := Number(n)
		assert.Equal(t, KindNull, v.Kind())
		assert.True(t, v.Equal(Number(n)))
		assert.Equal(t, Null(), ValueOf(n))
	}
	assert.Equal(t, Null(), FromMap(map[string]any{"x": math.NaN()})["x"])
}

func TestValueJSON(t *testing.T) {
	ctx := Context{
		"a": String("x"),
		"b": Number(2.5),
		"c": Bool(false),
		"d": Null(),
	}
	data, err := json.Marshal(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"x","b":2.5,"c":false,"d":null}`, string(data))

	var back Context
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, ctx, back)

	var bad Context
	err = json.Unmarshal([]byte(`{"a":[1,2]}`), &bad)
	assert.Error(t, err)
}

func TestValueText(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{String("abc"), "abc"},
		{Number(3), "3"},
		{Number(0.25), "0.25"},
		{Bool(true), "true"},
		{Null(), "null"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.v.Text())
	}
}

func TestNotFoundError(t *testing.T) {
	err := fmt.Errorf("record usage: %w", PatternNotFound("pat_1"))
	assert.True(t, errors.Is(err, ErrNotFound))

	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "pattern", nf.Kind)
	assert.Equal(t, "pat_1", nf.Key)
	assert.Contains(t, SpecialistNotFound("nobody").Error(), `specialist "nobody"`)
}

func TestPatternClone(t *testing.T) {
	p := Pattern{
		ID:             "pat_1",
		Context:        Context{"k": String("v")},
		Tags:           []string{"a"},
		RecentOutcomes: []OutcomeNote{{Note: "ok", Success: true}},
	}
	c := p.Clone()
	c.Context["k"] = String("changed")
	c.Tags[0] = "b"
	c.RecentOutcomes[0].Note = "changed"

	assert.Equal(t, String("v"), p.Context["k"])
	assert.Equal(t, "a", p.Tags[0])
	assert.Equal(t, "ok", p.RecentOutcomes[0].Note)
}
