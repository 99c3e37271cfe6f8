package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecordSetGet(t *testing.T) {
	rec := NewRecord("abc")
	require.Equal(t, "abc", rec.ID())

	_, ok := rec.Get("word")
	require.False(t, ok)

	require.NoError(t, rec.Set("word", &testWord{Word: "apple"}))
	item, ok := rec.Get("word")
	require.True(t, ok)
	require.Equal(t, "apple", item.(*testWord).Word)
}

func TestRecordWriteOnce(t *testing.T) {
	rec := NewRecord("abc")
	require.NoError(t, rec.Set("word", &testWord{Word: "apple"}))
	require.Error(t, rec.Set("word", &testWord{Word: "pear"}))

	rec.SetIfAbsent("word", &testWord{Word: "pear"})
	item, _ := rec.Get("word")
	require.Equal(t, "apple", item.(*testWord).Word)
}

func TestRecordReservedName(t *testing.T) {
	rec := NewRecord("abc")
	require.Error(t, rec.Set("id", &testWord{Word: "apple"}))
}

func TestRecordBeakers(t *testing.T) {
	rec := NewRecord("abc")
	require.NoError(t, rec.Set("word", &testWord{Word: "a"}))
	require.NoError(t, rec.Set("sentence", &testSentence{Sentence: "b"}))
	require.ElementsMatch(t, []string{"word", "sentence"}, rec.Beakers())
}
