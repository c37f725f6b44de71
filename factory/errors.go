package factory

import "errors"

var (
	// ErrUnknownKind is returned when no constructor is registered for a kind.
	ErrUnknownKind = errors.New("unknown component kind")
	// ErrDuplicateKind is returned when a kind is registered twice.
	ErrDuplicateKind = errors.New("component kind already registered")
	// ErrInvalidNode is returned for nodes without a name or kind.
	ErrInvalidNode = errors.New("invalid graph node")
	// ErrDuplicateNode is returned when two nodes share a name.
	ErrDuplicateNode = errors.New("duplicate node name")
	// ErrEmptyGraph is returned by Build for a graph without nodes.
	ErrEmptyGraph = errors.New("empty graph")
)
