package reflex

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChainsFrom(t *testing.T) {
	tests := []struct {
		name string
		adj  map[string][]string
		want [][]string
	}{
		{
			name: "single node",
			adj:  map[string][]string{},
			want: [][]string{{"a"}},
		},
		{
			name: "straight chain",
			adj:  map[string][]string{"a": {"b"}, "b": {"c"}},
			want: [][]string{{"a", "b", "c"}},
		},
		{
			name: "branch",
			adj:  map[string][]string{"a": {"b", "c"}, "b": {"d"}},
			want: [][]string{{"a", "b", "d"}, {"a", "c"}},
		},
		{
			name: "diamond",
			adj:  map[string][]string{"a": {"b", "c"}, "b": {"d"}, "c": {"d"}},
			want: [][]string{{"a", "b", "d"}, {"a", "c", "d"}},
		},
		{
			name: "cycle ends the branch",
			adj:  map[string][]string{"a": {"b"}, "b": {"c"}, "c": {"a"}},
			want: [][]string{{"a", "b", "c"}},
		},
		{
			name: "self loop",
			adj:  map[string][]string{"a": {"a", "b"}},
			want: [][]string{{"a", "b"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, chainsFrom("a", tt.adj))
		})
	}
}

func TestFindCycle(t *testing.T) {
	assert.Nil(t, findCycle(sampleGraph()))

	g := Graph{
		Nodes: []Node{{ID: "a"}, {ID: "b"}, {ID: "c"}},
		Edges: []Edge{
			{ID: "1", Source: "a", Target: "b"},
			{ID: "2", Source: "b", Target: "c"},
			{ID: "3", Source: "c", Target: "b"},
		},
	}
	assert.Equal(t, []string{"b", "c", "b"}, findCycle(g))

	self := Graph{Nodes: []Node{{ID: "x"}}, Edges: []Edge{{ID: "1", Source: "x", Target: "x"}}}
	assert.Equal(t, []string{"x", "x"}, findCycle(self))
}

func TestFindCycleIgnoresDanglingEdges(t *testing.T) {
	g := Graph{
		Nodes: []Node{{ID: "a"}},
		Edges: []Edge{{ID: "1", Source: "a", Target: "ghost"}, {ID: "2", Source: "ghost", Target: "a"}},
	}
	assert.Nil(t, findCycle(g))
}

func TestAdjacencySkipsDuplicatePairs(t *testing.T) {
	g := Graph{
		Nodes: []Node{{ID: "a"}, {ID: "b"}},
		Edges: []Edge{
			{ID: "1", Source: "a", Target: "b"},
			{ID: "2", Source: "a", Target: "b", SourceHandle: "other"},
		},
	}
	assert.Equal(t, map[string][]string{"a": {"b"}}, adjacency(g, nil))
}
