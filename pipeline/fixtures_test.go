package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jamesturk/databeakers/beaker"
)

type testWord struct {
	Word string `json:"word"`
}

type testSentence struct {
	Sentence string `json:"sentence"`
}

var (
	errNotWord = errors.New("not a word")
	errBadWord = errors.New("bad word")
	errZero    = errors.New("zero")
)

var fruitSet = map[string]struct{}{
	"apple": {}, "banana": {}, "cherry": {}, "durian": {},
	"elderberry": {}, "fig": {}, "grape": {}, "honeydew": {},
	"jackfruit": {}, "kiwi": {}, "lemon": {}, "mango": {},
	"nectarine": {}, "orange": {}, "pear": {}, "quince": {},
	"raspberry": {}, "strawberry": {}, "tangerine": {}, "watermelon": {},
}

func normalize(_ context.Context, item any) (any, error) {
	w := item.(*testWord)
	if _, err := strconv.Atoi(w.Word); err == nil {
		return nil, fmt.Errorf("%q: %w", w.Word, errNotWord)
	}
	return &testWord{Word: strings.ToLower(w.Word)}, nil
}

func isFruit(_ context.Context, item any) (bool, error) {
	w := item.(*testWord)
	switch w.Word {
	case "error":
		return false, errBadWord
	case "/0":
		return false, errZero
	}
	_, ok := fruitSet[w.Word]
	return ok, nil
}

func makeSentence(_ context.Context, item any) (any, error) {
	rec := item.(*Record)
	w, ok := rec.Get("normalized")
	if !ok {
		return nil, errors.New("no normalized word")
	}
	return &testSentence{Sentence: w.(*testWord).Word + " is a delicious fruit."}, nil
}

func matches(target error) func(error) bool {
	return func(err error) bool { return errors.Is(err, target) }
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newFruits builds the pipeline used throughout the run tests:
//
//	word -> normalized -> fruit -> sentence
//
// with numbers routed to "nonword" and bad words to "errors".
func newFruits(t *testing.T, opts ...Option) *Pipeline {
	t.Helper()
	opts = append([]Option{WithDatabase(":memory:"), WithLogger(testLogger())}, opts...)
	p, err := New("fruits", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	_, err = p.AddBeaker("word", beaker.For[testWord]())
	require.NoError(t, err)
	_, err = p.AddTempBeaker("normalized", beaker.For[testWord]())
	require.NoError(t, err)
	_, err = p.AddBeaker("fruit", beaker.For[testWord]())
	require.NoError(t, err)
	_, err = p.AddBeaker("sentence", beaker.For[testSentence]())
	require.NoError(t, err)

	require.NoError(t, p.AddTransform("word", "normalized", normalize,
		EdgeName("normalize"), OnError(matches(errNotWord), "nonword")))
	require.NoError(t, p.AddConditional("normalized", "fruit", isFruit,
		EdgeName("is_fruit"), OnError(matches(errBadWord), "errors")))
	require.NoError(t, p.AddTransform("fruit", "sentence", makeSentence,
		EdgeName("sentence"), WholeRecord()))

	require.NoError(t, p.AddSeed("abc", "word", FromSlice([]testWord{
		{Word: "apple"}, {Word: "BANANA"}, {Word: "cat"},
	})))
	require.NoError(t, p.AddSeed("errors", "word", FromSlice([]testWord{
		{Word: "100"}, {Word: "pear"}, {Word: "ERROR"},
	})))
	return p
}

func beakerLen(t *testing.T, p *Pipeline, name string) int {
	t.Helper()
	b, ok := p.Beaker(name)
	require.True(t, ok, "beaker %s", name)
	n, err := b.Len()
	require.NoError(t, err)
	return n
}

func addWord(t *testing.T, p *Pipeline, beakerName, w string) string {
	t.Helper()
	b, ok := p.Beaker(beakerName)
	require.True(t, ok)
	id, err := b.AddItem(&testWord{Word: w}, "")
	require.NoError(t, err)
	return id
}

func runSeed(t *testing.T, p *Pipeline, name string) {
	t.Helper()
	_, err := p.RunSeed(context.Background(), name, 0, false)
	require.NoError(t, err)
}

func eachMode(t *testing.T, fn func(t *testing.T, mode RunMode)) {
	for _, mode := range []RunMode{Waterfall, River} {
		t.Run(string(mode), func(t *testing.T) { fn(t, mode) })
	}
}
