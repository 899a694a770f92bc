package gcstack

import "github.com/cockroachdb/errors"

var (
	// ErrNotStack indicates an object whose type is not Stack.
	ErrNotStack = errors.New("gcstack: not a stack")

	// ErrEmpty indicates Top or Pop on an empty stack.
	ErrEmpty = errors.New("gcstack: stack empty")

	// ErrRootIndex indicates a root table index outside [0, NumRoots).
	ErrRootIndex = errors.New("gcstack: root index out of range")
)
