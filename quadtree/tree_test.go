package quadtree

import (
	"fmt"
	"strings"
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/stretchr/testify/require"
)

var errUnsplittable = fmt.Errorf("unsplittable label")

// label is a test payload. Its children are named after their quadrant.
type label string

func (l label) Split() ([4]label, error) {
	if strings.HasPrefix(string(l), "!") {
		return [4]label{}, errUnsplittable
	}
	return [4]label{l + "/tl", l + "/tr", l + "/br", l + "/bl"}, nil
}

type twins string

func (t twins) Split() ([4]twins, error) {
	return [4]twins{t + "/a", t + "/a", t + "/b", t + "/c"}, nil
}

func newTestCube(t *testing.T, opts ...Option) *Tree[label] {
	tree, err := NewCube([6]label{"f0", "f1", "f2", "f3", "f4", "f5"}, opts...)
	require.NoError(t, err)
	return tree
}

func walk(t *testing.T, tree *Tree[label], from label, d Direction, steps int) label {
	current := from
	for i := 0; i < steps; i++ {
		neighbors, err := tree.Neighbors(current, d)
		require.NoError(t, err)
		require.NotEmpty(t, neighbors)
		current = neighbors[0]
	}
	return current
}

func TestNewCube(t *testing.T) {
	t.Run("creates six leaves", func(t *testing.T) {
		tree := newTestCube(t)
		require.Equal(t, 6, tree.Len())
		require.Equal(t, []label{"f0", "f1", "f2", "f3", "f4", "f5"}, tree.Leaves())
		require.NoError(t, tree.Validate())

		for _, face := range tree.Leaves() {
			depth, err := tree.Depth(face)
			require.NoError(t, err)
			require.Zero(t, depth)
		}
	})

	t.Run("walking up six times comes back", func(t *testing.T) {
		tree := newTestCube(t)
		require.Equal(t, label("f0"), walk(t, tree, "f0", Up, 6))
		require.Equal(t, label("f3"), walk(t, tree, "f0", Up, 3))
	})

	t.Run("walking right three times comes back", func(t *testing.T) {
		tree := newTestCube(t)
		require.Equal(t, label("f2"), walk(t, tree, "f0", Right, 1))
		require.Equal(t, label("f0"), walk(t, tree, "f0", Right, 3))
		require.Equal(t, label("f4"), walk(t, tree, "f0", Left, 1))
		require.Equal(t, label("f5"), walk(t, tree, "f0", Down, 1))
	})

	t.Run("rejects duplicated faces", func(t *testing.T) {
		_, err := NewCube([6]label{"f0", "f1", "f2", "f3", "f4", "f0"})
		require.Error(t, err)
		require.Equal(t, ErrTypeDuplicatePayload, errors.Type(err))
	})
}

func TestNewSingleFace(t *testing.T) {
	tree, err := NewSingleFace(label("world"))
	require.NoError(t, err)
	require.NoError(t, tree.Validate())

	neighbors, err := tree.Neighbors("world", Left)
	require.NoError(t, err)
	require.Equal(t, []label{"world"}, neighbors)

	children, err := tree.Split("world")
	require.NoError(t, err)
	require.Equal(t, [4]label{"world/tl", "world/tr", "world/br", "world/bl"}, children)
	require.NoError(t, tree.Validate())

	t.Run("wraps around through itself", func(t *testing.T) {
		require.Equal(t, label("world/bl"), walk(t, tree, "world/tl", Up, 1))
		require.Equal(t, label("world/tl"), walk(t, tree, "world/tl", Up, 2))
		require.Equal(t, label("world/tl"), walk(t, tree, "world/tl", Right, 2))
	})

	t.Run("wraps around finer nodes", func(t *testing.T) {
		_, err := tree.Split("world/bl")
		require.NoError(t, err)
		require.NoError(t, tree.Validate())

		neighbors, err := tree.Neighbors("world/tl", Up)
		require.NoError(t, err)
		require.Equal(t, []label{"world/bl/bl", "world/bl/br"}, neighbors)

		neighbors, err = tree.Neighbors("world/bl/br", Down)
		require.NoError(t, err)
		require.Equal(t, []label{"world/tl"}, neighbors)
	})
}

func TestNewDoubleFace(t *testing.T) {
	tree, err := NewDoubleFace(label("north"), label("south"))
	require.NoError(t, err)
	require.NoError(t, tree.Validate())

	for _, d := range directions {
		neighbors, err := tree.Neighbors("north", d)
		require.NoError(t, err)
		require.Equal(t, []label{"south"}, neighbors)
	}

	_, err = tree.Split("north")
	require.NoError(t, err)
	_, err = tree.Split("south")
	require.NoError(t, err)
	require.NoError(t, tree.Validate())

	neighbors, err := tree.Neighbors("north/tl", Up)
	require.NoError(t, err)
	require.Equal(t, []label{"south/bl"}, neighbors)

	neighbors, err = tree.Neighbors("north/tl", Left)
	require.NoError(t, err)
	require.Equal(t, []label{"south/tr"}, neighbors)

	_, err = NewDoubleFace(label("same"), label("same"))
	require.Equal(t, ErrTypeDuplicatePayload, errors.Type(err))
}

func TestDepth(t *testing.T) {
	tree := newTestCube(t)

	_, err := tree.Split("f2")
	require.NoError(t, err)
	_, err = tree.Split("f2/tr")
	require.NoError(t, err)

	depth, err := tree.Depth("f2/tr/bl")
	require.NoError(t, err)
	require.Equal(t, 2, depth)

	_, err = tree.Depth("f2")
	require.Error(t, err)
	require.Equal(t, ErrTypeNotFound, errors.Type(err))
	require.False(t, tree.Contains("f2"))
	require.True(t, tree.Contains("f2/tl"))
}

func TestAncestorAt(t *testing.T) {
	tree := newTestCube(t)

	_, err := tree.Split("f4")
	require.NoError(t, err)
	_, err = tree.Split("f4/br")
	require.NoError(t, err)

	id := tree.index["f4/br/tl"]

	ancestor, err := tree.ancestorAt(id, 0)
	require.NoError(t, err)
	require.Equal(t, tree.roots[4], ancestor)

	ancestor, err = tree.ancestorAt(id, 1)
	require.NoError(t, err)
	require.Equal(t, tree.arena.at(tree.roots[4]).children[BottomRight], ancestor)

	ancestor, err = tree.ancestorAt(id, 2)
	require.NoError(t, err)
	require.Equal(t, id, ancestor)

	_, err = tree.ancestorAt(id, 3)
	require.Equal(t, ErrTypeInvalidDepth, errors.Type(err))

	_, err = tree.ancestorAt(id, -1)
	require.Equal(t, ErrTypeInvalidDepth, errors.Type(err))
}

func TestLeaves(t *testing.T) {
	tree := newTestCube(t)

	_, err := tree.Split("f1")
	require.NoError(t, err)

	require.Equal(t, []label{
		"f0",
		"f1/tl", "f1/tr", "f1/br", "f1/bl",
		"f2", "f3", "f4", "f5",
	}, tree.Leaves())
}
