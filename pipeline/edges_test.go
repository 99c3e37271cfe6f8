package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func capitalize(_ context.Context, w *testWord) (*testSentence, error) {
	return &testSentence{Sentence: w.Word + "!"}, nil
}

func TestTyped(t *testing.T) {
	fn := Typed(capitalize)

	out, err := fn(context.Background(), &testWord{Word: "hi"})
	require.NoError(t, err)
	require.Equal(t, &testSentence{Sentence: "hi!"}, out)

	_, err = fn(context.Background(), &testSentence{Sentence: "wrong type"})
	require.ErrorContains(t, err, "expected *pipeline.testWord")
}

func TestTypedNilResult(t *testing.T) {
	fn := Typed(func(_ context.Context, _ *testWord) (*testSentence, error) {
		return nil, nil
	})
	out, err := fn(context.Background(), &testWord{Word: "hi"})
	require.NoError(t, err)
	require.Nil(t, out)
}

func TestFuncName(t *testing.T) {
	require.Equal(t, "normalize", funcName(normalize))
	require.Equal(t, "edge", funcName(42))
}

func TestEdgeOptions(t *testing.T) {
	e := &Edge{AllowFilter: true}
	EdgeName("custom")(e)
	WholeRecord()(e)
	RequireResult()(e)
	OnError(matches(errBadWord), "errs")(e)

	require.Equal(t, "custom", e.Name)
	require.True(t, e.WholeRecord)
	require.False(t, e.AllowFilter)
	require.Len(t, e.ErrorRoutes, 1)
	require.Equal(t, "errs", e.ErrorRoutes[0].To)
	require.True(t, e.ErrorRoutes[0].Match(errBadWord))
}
