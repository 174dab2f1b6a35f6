package dataflow

import (
	"container/heap"
	"fmt"
)

// TopoOrderer returns a permutation of [0, nodeCount) in which the source of
// every edge precedes its target.
type TopoOrderer func(nodeCount int, edges []PositionEdge) ([]int, error)

// Toposort is the default TopoOrderer. It uses Kahn's algorithm and always
// takes the lowest ready position first, so the result is deterministic.
// Cyclic input yields ErrCycleDetected.
func Toposort(nodeCount int, edges []PositionEdge) ([]int, error) {
	inDegree := make([]int, nodeCount)
	children := make([][]int, nodeCount)
	for _, e := range edges {
		if e.From < 0 || e.From >= nodeCount || e.To < 0 || e.To >= nodeCount {
			return nil, fmt.Errorf("%w: %d -> %d with %d nodes", ErrInvalidPosition, e.From, e.To, nodeCount)
		}
		children[e.From] = append(children[e.From], e.To)
		inDegree[e.To]++
	}

	ready := &minQueue{}
	for p, deg := range inDegree {
		if deg == 0 {
			*ready = append(*ready, p)
		}
	}
	heap.Init(ready)

	order := make([]int, 0, nodeCount)
	for ready.Len() > 0 {
		p := heap.Pop(ready).(int)
		order = append(order, p)
		for _, c := range children[p] {
			inDegree[c]--
			if inDegree[c] == 0 {
				heap.Push(ready, c)
			}
		}
	}

	if len(order) != nodeCount {
		return nil, ErrCycleDetected
	}
	return order, nil
}

// minQueue is a min-heap of positions.
type minQueue []int

func (q minQueue) Len() int           { return len(q) }
func (q minQueue) Less(i, j int) bool { return q[i] < q[j] }
func (q minQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *minQueue) Push(x any)        { *q = append(*q, x.(int)) }

func (q *minQueue) Pop() any {
	old := *q
	v := old[len(old)-1]
	*q = old[:len(old)-1]
	return v
}
