package quadtree

import (
	"fmt"
	"testing"
)

// cellID numbers nodes like a 4-ary heap, so faces taken from one level
// never share descendants.
type cellID uint64

func (c cellID) Split() ([4]cellID, error) {
	return [4]cellID{c*4 + 1, c*4 + 2, c*4 + 3, c*4 + 4}, nil
}

func BenchmarkSplitEdge(b *testing.B) {
	for _, threshold := range []int{0, 64} {
		b.Run(fmt.Sprintf("threshold %d", threshold), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				tree, err := NewCube([6]cellID{5, 6, 7, 8, 9, 10},
					WithParallelFixups(threshold))
				if err != nil {
					b.Fatal(err)
				}

				// Refine the top edge of the first face, then split the face
				// above it so every fine node is repointed.
				current := cellID(5)
				for depth := 0; depth < 10; depth++ {
					children, err := tree.Split(current)
					if err != nil {
						b.Fatal(err)
					}
					current = children[TopLeft]
				}

				if _, err := tree.Split(6); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
