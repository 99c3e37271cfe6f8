package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestToposort(t *testing.T) {
	p := newFruits(t)
	order, err := p.toposort()
	require.NoError(t, err)
	require.Len(t, order, 6)

	index := map[string]int{}
	for i, name := range order {
		index[name] = i
	}
	require.Less(t, index["word"], index["normalized"])
	require.Less(t, index["word"], index["nonword"])
	require.Less(t, index["normalized"], index["fruit"])
	require.Less(t, index["normalized"], index["errors"])
	require.Less(t, index["fruit"], index["sentence"])
}

func TestGraphData(t *testing.T) {
	p := newFruits(t)
	runSeed(t, p, "abc")
	_, err := p.Run(context.Background(), Waterfall, nil)
	require.NoError(t, err)

	nodes, err := p.GraphData()
	require.NoError(t, err)
	require.Len(t, nodes, 6)

	byName := map[string]NodeData{}
	for _, n := range nodes {
		byName[n.Name] = n
	}

	word := byName["word"]
	require.Equal(t, 3, word.Len)
	require.False(t, word.Temp)
	require.Equal(t, 3, word.Processed)
	require.Len(t, word.Edges, 1)
	require.Equal(t, "normalize", word.Edges[0].Name)

	require.True(t, byName["normalized"].Temp)
	require.Empty(t, byName["sentence"].Edges)

	// ranks increase downstream
	require.Less(t, word.Rank, byName["normalized"].Rank)
	require.Less(t, byName["normalized"].Rank, byName["fruit"].Rank)

	// sorted by rank, name breaking ties
	require.Equal(t, "word", nodes[0].Name)
}

func TestRenderGraphText(t *testing.T) {
	p := newFruits(t)
	out, err := p.RenderGraph("text")
	require.NoError(t, err)
	require.Contains(t, out, "pipeline fruits")
	require.Contains(t, out, "normalize -> normalized")
	require.Contains(t, out, "errors -> nonword")
	require.Contains(t, out, "is_fruit -> fruit")
}

func TestRenderGraphDot(t *testing.T) {
	p := newFruits(t)
	out, err := p.RenderGraph("dot")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "digraph \"fruits\" {"))
	require.Contains(t, out, `"word" [shape=box];`)
	require.Contains(t, out, `"normalized" [shape=ellipse];`)
	require.Contains(t, out, `"word" -> "normalized" [label="normalize"];`)
	require.Contains(t, out, `"word" -> "nonword" [label="error", style=dashed];`)
	require.True(t, strings.HasSuffix(out, "}\n"))
}

func TestRenderGraphMermaid(t *testing.T) {
	p := newFruits(t)
	out, err := p.RenderGraph("mermaid")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "graph LR\n"))
	require.Contains(t, out, "word -->|normalize| normalized")
	require.Contains(t, out, "word -.->|error| nonword")
}

func TestRenderGraphSplitter(t *testing.T) {
	p := newSplitterPipeline(t)
	out, err := p.RenderGraph("dot")
	require.NoError(t, err)
	require.Contains(t, out, `"word" -> "animal" [label="classify:animal"];`)
	require.Contains(t, out, `"word" -> "mineral" [label="classify:mineral"];`)
}

func TestRenderGraphUnknownFormat(t *testing.T) {
	p := newFruits(t)
	_, err := p.RenderGraph("png")
	require.Error(t, err)
}
