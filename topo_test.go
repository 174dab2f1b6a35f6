package dataflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToposort(t *testing.T) {
	tests := []struct {
		name  string
		count int
		edges []PositionEdge
		want  []int
	}{
		{"empty", 0, nil, []int{}},
		{"no edges keeps position order", 3, nil, []int{0, 1, 2}},
		{"chain reversed", 3, []PositionEdge{{From: 2, To: 1}, {From: 1, To: 0}}, []int{2, 1, 0}},
		{"diamond", 4, []PositionEdge{{From: 3, To: 1}, {From: 3, To: 2}, {From: 1, To: 0}, {From: 2, To: 0}}, []int{3, 1, 2, 0}},
		{"lowest ready first", 4, []PositionEdge{{From: 3, To: 0}}, []int{1, 2, 3, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Toposort(tt.count, tt.edges)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToposort_Cycle(t *testing.T) {
	_, err := Toposort(3, []PositionEdge{{From: 0, To: 1}, {From: 1, To: 2}, {From: 2, To: 1}})
	assert.ErrorIs(t, err, ErrCycleDetected)

	_, err = Toposort(1, []PositionEdge{{From: 0, To: 0}})
	assert.ErrorIs(t, err, ErrCycleDetected)
}

func TestToposort_InvalidPosition(t *testing.T) {
	_, err := Toposort(2, []PositionEdge{{From: 0, To: 2}})
	assert.ErrorIs(t, err, ErrInvalidPosition)
}

func TestIdentityIndex(t *testing.T) {
	idx := newIdentityIndex([]Node{{Meta: NodeMeta{ID: 4}}, {Meta: NodeMeta{ID: 9}}})
	assert.Equal(t, 2, idx.Len())

	p, ok := idx.Position(9)
	require.True(t, ok)
	assert.Equal(t, 1, p)

	id, ok := idx.Identity(0)
	require.True(t, ok)
	assert.Equal(t, NodeID(4), id)

	_, ok = idx.Identity(2)
	assert.False(t, ok)
	assert.False(t, idx.Has(5))

	got := idx.toPositions([]Edge{{From: 4, To: 9, Name: "x"}, {From: 4, To: 5, Name: "gone"}})
	assert.Equal(t, []PositionEdge{{From: 0, To: 1, Name: "x"}}, got)
}

func TestCamelCase(t *testing.T) {
	assert.Equal(t, "fetchUserData", CamelCase("fetch user-data"))
	assert.Equal(t, "helloWorld", CamelCase("Hello World"))
	assert.True(t, needsNormalizing("a b"))
	assert.False(t, needsNormalizing("node12"))
}
