package quadtree

import (
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	t.Run("adds three leaves", func(t *testing.T) {
		tree := newTestCube(t)

		children, err := tree.Split("f1")
		require.NoError(t, err)
		require.Equal(t, [4]label{"f1/tl", "f1/tr", "f1/br", "f1/bl"}, children)
		require.Equal(t, 9, tree.Len())
		require.NoError(t, tree.Validate())

		for _, c := range children {
			depth, err := tree.Depth(c)
			require.NoError(t, err)
			require.Equal(t, 1, depth)
		}
	})

	t.Run("walking up crosses the split face", func(t *testing.T) {
		tree := newTestCube(t)

		_, err := tree.Split("f1")
		require.NoError(t, err)

		require.Equal(t, label("f1/bl"), walk(t, tree, "f0", Up, 1))
		require.Equal(t, label("f1/tl"), walk(t, tree, "f0", Up, 2))
		require.Equal(t, label("f2"), walk(t, tree, "f0", Up, 3))
		require.Equal(t, label("f0"), walk(t, tree, "f0", Up, 7))
	})

	t.Run("links children to each other", func(t *testing.T) {
		tree := newTestCube(t)

		_, err := tree.Split("f3")
		require.NoError(t, err)

		cases := []struct {
			from     label
			d        Direction
			expected label
		}{
			{from: "f3/tl", d: Right, expected: "f3/tr"},
			{from: "f3/tl", d: Down, expected: "f3/bl"},
			{from: "f3/tr", d: Left, expected: "f3/tl"},
			{from: "f3/tr", d: Down, expected: "f3/br"},
			{from: "f3/br", d: Up, expected: "f3/tr"},
			{from: "f3/br", d: Left, expected: "f3/bl"},
			{from: "f3/bl", d: Up, expected: "f3/tl"},
			{from: "f3/bl", d: Right, expected: "f3/br"},
		}

		for _, c := range cases {
			neighbors, err := tree.Neighbors(c.from, c.d)
			require.NoError(t, err)
			require.Equal(t, []label{c.expected}, neighbors, "%s %s", c.from, c.d)
		}
	})

	t.Run("links children to split neighbors", func(t *testing.T) {
		tree := newTestCube(t)

		_, err := tree.Split("f0")
		require.NoError(t, err)
		_, err = tree.Split("f1")
		require.NoError(t, err)
		require.NoError(t, tree.Validate())

		neighbors, err := tree.Neighbors("f0/tl", Up)
		require.NoError(t, err)
		require.Equal(t, []label{"f1/bl"}, neighbors)

		neighbors, err = tree.Neighbors("f1/br", Down)
		require.NoError(t, err)
		require.Equal(t, []label{"f0/tr"}, neighbors)
	})

	t.Run("repoints finer neighbors", func(t *testing.T) {
		tree := newTestCube(t)

		_, err := tree.Split("f0")
		require.NoError(t, err)
		_, err = tree.Split("f0/tl")
		require.NoError(t, err)
		_, err = tree.Split("f0/tl/tr")
		require.NoError(t, err)

		neighbors, err := tree.Neighbors("f0/tl/tr/tl", Up)
		require.NoError(t, err)
		require.Equal(t, []label{"f1"}, neighbors)

		_, err = tree.Split("f1")
		require.NoError(t, err)
		require.NoError(t, tree.Validate())

		neighbors, err = tree.Neighbors("f0/tl/tr/tl", Up)
		require.NoError(t, err)
		require.Equal(t, []label{"f1/bl"}, neighbors)

		neighbors, err = tree.Neighbors("f1/bl", Down)
		require.NoError(t, err)
		require.Equal(t, []label{"f0/tl/tl", "f0/tl/tr/tl", "f0/tl/tr/tr"}, neighbors)
	})

	t.Run("fails on unknown payload", func(t *testing.T) {
		tree := newTestCube(t)

		_, err := tree.Split("f9")
		require.Error(t, err)
		require.Equal(t, ErrTypeNotFound, errors.Type(err))
		require.Equal(t, 6, tree.Len())
	})

	t.Run("fails on internal node", func(t *testing.T) {
		tree := newTestCube(t)

		_, err := tree.Split("f2")
		require.NoError(t, err)

		_, err = tree.Split("f2")
		require.Equal(t, ErrTypeNotFound, errors.Type(err))
	})

	t.Run("returns payload errors unchanged", func(t *testing.T) {
		tree, err := NewCube([6]label{"!f0", "f1", "f2", "f3", "f4", "f5"})
		require.NoError(t, err)

		_, err = tree.Split("!f0")
		require.ErrorIs(t, err, errUnsplittable)
		require.Equal(t, 6, tree.Len())
		require.True(t, tree.Contains("!f0"))
		require.NoError(t, tree.Validate())
	})

	t.Run("fails on duplicated children", func(t *testing.T) {
		tree, err := NewSingleFace(twins("t"))
		require.NoError(t, err)

		_, err = tree.Split("t")
		require.Equal(t, ErrTypeDuplicatePayload, errors.Type(err))
		require.Equal(t, 1, tree.Len())
		require.NoError(t, tree.Validate())
	})

	t.Run("fails on children already in the tree", func(t *testing.T) {
		tree, err := NewCube([6]label{"f0", "f0/tr", "f2", "f3", "f4", "f5"})
		require.NoError(t, err)

		_, err = tree.Split("f0")
		require.Equal(t, ErrTypeDuplicatePayload, errors.Type(err))
		require.True(t, tree.Contains("f0"))
		require.NoError(t, tree.Validate())
	})

	t.Run("fans out fix-ups", func(t *testing.T) {
		tree := newTestCube(t, WithParallelFixups(1), WithWorkers(4))

		_, err := tree.Split("f0")
		require.NoError(t, err)
		for _, l := range []label{"f0/tl", "f0/tr", "f0/tl/tl", "f0/tl/tr", "f0/tr/tl", "f0/tr/tr"} {
			_, err = tree.Split(l)
			require.NoError(t, err)
		}
		_, err = tree.Split("f1")
		require.NoError(t, err)
		require.NoError(t, tree.Validate())

		neighbors, err := tree.Neighbors("f1/bl", Down)
		require.NoError(t, err)
		require.Equal(t, []label{
			"f0/tl/tl/tl", "f0/tl/tl/tr", "f0/tl/tr/tl", "f0/tl/tr/tr",
		}, neighbors)
	})
}
