package quadtree

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
)

const (
	// The payload is not a current leaf of the tree.
	ErrTypeNotFound = "quadtree_not_found"

	// The requested ancestor depth is negative or deeper than the node.
	ErrTypeInvalidDepth = "quadtree_invalid_depth"

	// The direction is not one of the four axis-aligned unit vectors.
	ErrTypeInvalidDirection = "quadtree_invalid_direction"

	// The payload is already stored in the tree.
	ErrTypeDuplicatePayload = "quadtree_duplicate_payload"

	// The node graph does not satisfy the neighbor invariant.
	ErrTypeCorrupted = "quadtree_corrupted"
)

func errNotFound(payload any) error {
	return errors.New("payload is not a leaf").
		WithType(ErrTypeNotFound).
		WithTag("payload", payload)
}

func errInvalidDepth(depth, nodeDepth int) error {
	return errors.New("invalid ancestor depth").
		WithType(ErrTypeInvalidDepth).
		WithTag("depth", depth).
		WithTag("node_depth", nodeDepth)
}

func errDuplicatePayload(payload any) error {
	return errors.New("payload is already in the tree").
		WithType(ErrTypeDuplicatePayload).
		WithTag("payload", payload)
}

func errCorrupted(id nodeID, format string, v ...any) error {
	return errors.Newf(format, v...).
		WithType(ErrTypeCorrupted).
		WithTag("node", id)
}
