package store

import (
	"fmt"
	"slices"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/OFFIS-RIT/casegraph/pkg/common"
)

const keyAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewKey generates a document key.
func NewKey() (string, error) {
	return gonanoid.Generate(keyAlphabet, 16)
}

// IsVertexCollection reports whether name is a managed vertex collection.
func IsVertexCollection(name string) bool {
	return slices.Contains(common.VertexCollections, name)
}

// IsEdgeCollection reports whether name is a managed edge collection.
func IsEdgeCollection(name string) bool {
	return slices.Contains(common.EdgeCollections, name)
}

// CheckVertexCollection returns ErrUnknownCollection for unmanaged names.
// Backends interpolate collection names into statements, so every name must
// pass through here or CheckEdgeCollection first.
func CheckVertexCollection(name string) error {
	if !IsVertexCollection(name) {
		return fmt.Errorf("%w: %q", ErrUnknownCollection, name)
	}
	return nil
}

// CheckEdgeCollection returns ErrUnknownCollection for unmanaged names.
func CheckEdgeCollection(name string) error {
	if !IsEdgeCollection(name) {
		return fmt.Errorf("%w: %q", ErrUnknownCollection, name)
	}
	return nil
}

// ToInt converts the numeric types returned by drivers to int.
func ToInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float64:
		return int(n)
	case float32:
		return int(n)
	default:
		return 0
	}
}
