package pipeline

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jamesturk/databeakers/beaker"
)

func TestRunFruits(t *testing.T) {
	eachMode(t, func(t *testing.T, mode RunMode) {
		p := newFruits(t)
		runSeed(t, p, "abc")
		require.Equal(t, 3, beakerLen(t, p, "word"))

		report, err := p.Run(context.Background(), mode, nil)
		require.NoError(t, err)

		require.Empty(t, report.OnlyBeakers)
		require.False(t, report.StartTime.IsZero())
		require.False(t, report.EndTime.IsZero())

		require.Equal(t, 0, report.Nodes["word"][AlreadyProcessed])
		require.Equal(t, 3, report.Nodes["word"]["normalized"])
		require.Equal(t, 2, report.Nodes["normalized"]["fruit"])
		require.Equal(t, 2, report.Nodes["fruit"]["sentence"])

		require.Equal(t, 3, beakerLen(t, p, "normalized"))
		require.Equal(t, 2, beakerLen(t, p, "fruit"))
		require.Equal(t, 2, beakerLen(t, p, "sentence"))

		b, _ := p.Beaker("sentence")
		var sentences []string
		require.NoError(t, b.Items(func(_ string, item any) error {
			sentences = append(sentences, item.(*testSentence).Sentence)
			return nil
		}))
		sort.Strings(sentences)
		require.Equal(t, []string{
			"apple is a delicious fruit.",
			"banana is a delicious fruit.",
		}, sentences)
	})
}

func TestRunEarlyEnd(t *testing.T) {
	eachMode(t, func(t *testing.T, mode RunMode) {
		p := newFruits(t)
		runSeed(t, p, "abc")

		report, err := p.Run(context.Background(), mode, []string{"word", "normalized"})
		require.NoError(t, err)

		require.Equal(t, []string{"word", "normalized"}, report.OnlyBeakers)
		require.Equal(t, 3, report.Nodes["word"]["normalized"])
		require.Equal(t, 2, report.Nodes["normalized"]["fruit"])
		require.NotContains(t, report.Nodes, "fruit")

		require.Equal(t, 2, beakerLen(t, p, "fruit"))
		require.Equal(t, 0, beakerLen(t, p, "sentence"))
	})
}

func TestRunLateStart(t *testing.T) {
	eachMode(t, func(t *testing.T, mode RunMode) {
		p := newFruits(t)
		require.NoError(t, p.AddSeed("prenormalized", "normalized", FromSlice([]testWord{
			{Word: "apple"}, {Word: "pear"}, {Word: "banana"},
			{Word: "egg"}, {Word: "fish"},
		})))
		runSeed(t, p, "prenormalized")
		require.Equal(t, 0, beakerLen(t, p, "word"))
		require.Equal(t, 5, beakerLen(t, p, "normalized"))

		only := []string{"normalized", "fruit", "sentence"}
		report, err := p.Run(context.Background(), mode, only)
		require.NoError(t, err)

		require.NotContains(t, report.Nodes, "word")
		require.Equal(t, 3, report.Nodes["normalized"]["fruit"])
		require.Equal(t, 3, report.Nodes["fruit"]["sentence"])

		require.Equal(t, 5, beakerLen(t, p, "normalized"))
		require.Equal(t, 3, beakerLen(t, p, "fruit"))
		require.Equal(t, 3, beakerLen(t, p, "sentence"))
	})
}

func TestRunTwice(t *testing.T) {
	eachMode(t, func(t *testing.T, mode RunMode) {
		p := newFruits(t)
		runSeed(t, p, "abc")

		_, err := p.Run(context.Background(), mode, nil)
		require.NoError(t, err)
		require.Equal(t, 3, beakerLen(t, p, "normalized"))
		require.Equal(t, 2, beakerLen(t, p, "fruit"))

		second, err := p.Run(context.Background(), mode, nil)
		require.NoError(t, err)

		require.Equal(t, 3, second.Nodes["word"][AlreadyProcessed])
		require.Equal(t, 0, second.Nodes["normalized"]["fruit"])
		require.Equal(t, 3, beakerLen(t, p, "normalized"))
		require.Equal(t, 2, beakerLen(t, p, "fruit"))
	})
}

func TestRunErrorRoutes(t *testing.T) {
	eachMode(t, func(t *testing.T, mode RunMode) {
		p := newFruits(t)
		runSeed(t, p, "errors") // 100, pear, ERROR

		report, err := p.Run(context.Background(), mode, nil)
		require.NoError(t, err)

		// 100 winds up in nonword, two go on
		require.Equal(t, 2, report.Nodes["word"]["normalized"])
		require.Equal(t, 1, report.Nodes["word"]["nonword"])
		require.Equal(t, 1, beakerLen(t, p, "nonword"))
		require.Equal(t, 2, beakerLen(t, p, "normalized"))

		// ERROR winds up in errors, one goes on
		require.Equal(t, 1, report.Nodes["normalized"]["errors"])
		require.Equal(t, 1, report.Nodes["normalized"]["fruit"])
		require.Equal(t, 1, beakerLen(t, p, "errors"))
		require.Equal(t, 1, beakerLen(t, p, "fruit"))

		// the routed item is stored with the error message and type
		b, _ := p.Beaker("nonword")
		require.NoError(t, b.Items(func(_ string, item any) error {
			e := item.(*ErrorItem)
			require.Contains(t, e.Error, "not a word")
			require.NotEmpty(t, e.ErrorType)
			return nil
		}))
	})
}

func TestRunErrorRoutesTwice(t *testing.T) {
	eachMode(t, func(t *testing.T, mode RunMode) {
		p := newFruits(t)
		runSeed(t, p, "errors")

		_, err := p.Run(context.Background(), mode, nil)
		require.NoError(t, err)
		require.Equal(t, 1, beakerLen(t, p, "nonword"))
		require.Equal(t, 1, beakerLen(t, p, "errors"))
		require.Equal(t, 1, beakerLen(t, p, "fruit"))

		// failed items are not retried on the next run
		report, err := p.Run(context.Background(), mode, nil)
		require.NoError(t, err)
		require.Equal(t, 3, report.Nodes["word"][AlreadyProcessed])
		require.Equal(t, 1, beakerLen(t, p, "nonword"))
		require.Equal(t, 1, beakerLen(t, p, "errors"))
	})
}

func TestRunUnhandledError(t *testing.T) {
	eachMode(t, func(t *testing.T, mode RunMode) {
		p := newFruits(t)
		addWord(t, p, "word", "/0")

		_, err := p.Run(context.Background(), mode, nil)
		require.ErrorIs(t, err, errZero)
	})
}

func TestRunDiamond(t *testing.T) {
	// a fans out to b and c, which both feed d; the branches run
	// concurrently in river mode, and only one may deliver each id to d
	eachMode(t, func(t *testing.T, mode RunMode) {
		p, err := New("diamond", WithDatabase(":memory:"), WithLogger(testLogger()))
		require.NoError(t, err)
		t.Cleanup(func() { _ = p.Close() })
		for _, name := range []string{"a", "b", "c", "d"} {
			_, err := p.AddBeaker(name, beaker.For[testWord]())
			require.NoError(t, err)
		}
		slow := func(_ context.Context, item any) (any, error) {
			time.Sleep(50 * time.Millisecond)
			return item, nil
		}
		require.NoError(t, p.AddTransform("a", "b", identity, EdgeName("ab")))
		require.NoError(t, p.AddTransform("a", "c", identity, EdgeName("ac")))
		require.NoError(t, p.AddTransform("b", "d", slow, EdgeName("bd")))
		require.NoError(t, p.AddTransform("c", "d", slow, EdgeName("cd")))
		addWord(t, p, "a", "x")

		report, err := p.Run(context.Background(), mode, nil)
		require.NoError(t, err)
		require.Equal(t, 1, beakerLen(t, p, "d"))
		require.Equal(t, 1, report.Nodes["b"]["d"]+report.Nodes["c"]["d"])
	})
}

func TestRunUnknownOnlyBeaker(t *testing.T) {
	p := newFruits(t)
	_, err := p.Run(context.Background(), Waterfall, []string{"nope"})
	require.ErrorIs(t, err, ErrInvalidGraph)
}

func TestRunUnknownMode(t *testing.T) {
	p := newFruits(t)
	_, err := p.Run(context.Background(), RunMode("stream"), nil)
	require.Error(t, err)
}

func TestRunCanceled(t *testing.T) {
	eachMode(t, func(t *testing.T, mode RunMode) {
		p, err := New("cancel", WithDatabase(":memory:"), WithLogger(testLogger()))
		require.NoError(t, err)
		t.Cleanup(func() { _ = p.Close() })
		_, err = p.AddBeaker("word", beaker.For[testWord]())
		require.NoError(t, err)
		_, err = p.AddBeaker("copy", beaker.For[testWord]())
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		cancelOnFirst := func(_ context.Context, item any) (any, error) {
			cancel()
			return item, nil
		}
		require.NoError(t, p.AddTransform("word", "copy", cancelOnFirst, EdgeName("copy")))
		for _, w := range []string{"one", "two", "three"} {
			addWord(t, p, "word", w)
		}

		_, err = p.Run(ctx, mode, nil)
		require.ErrorIs(t, err, context.Canceled)
		// the item in flight lands, the rest are never dispatched
		require.Equal(t, 1, beakerLen(t, p, "copy"))
	})
}

func TestRunWithWorkers(t *testing.T) {
	eachMode(t, func(t *testing.T, mode RunMode) {
		p := newFruits(t, WithNumWorkers(4))
		runSeed(t, p, "abc")

		report, err := p.Run(context.Background(), mode, nil)
		require.NoError(t, err)
		require.Equal(t, 3, report.Nodes["word"]["normalized"])
		require.Equal(t, 2, beakerLen(t, p, "sentence"))
	})
}

func TestRequireResult(t *testing.T) {
	p, err := New("strict", WithDatabase(":memory:"), WithLogger(testLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	_, err = p.AddBeaker("word", beaker.For[testWord]())
	require.NoError(t, err)
	_, err = p.AddBeaker("normalized", beaker.For[testWord]())
	require.NoError(t, err)

	drop := func(_ context.Context, _ any) (any, error) { return nil, nil }
	require.NoError(t, p.AddTransform("word", "normalized", drop,
		EdgeName("drop"), RequireResult()))
	addWord(t, p, "word", "apple")

	_, err = p.Run(context.Background(), Waterfall, nil)
	require.ErrorIs(t, err, ErrNoEdgeResult)
}
