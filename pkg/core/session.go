package core

import (
	"time"

	"github.com/google/uuid"
)

// Session describes the caller a statement is compiled for.
type Session struct {
	// Identified is true when the caller may see identified data.
	Identified bool
	Type       SessionType
}

// QueryContext carries the per-request inputs of a compilation.
type QueryContext struct {
	QueryID uuid.UUID
	Session Session

	// EarlyBound and LateBound are the optional dataset date filter bounds.
	EarlyBound *time.Time
	LateBound  *time.Time
}

// QueryParameter is a named value bound to a compiled statement.
type QueryParameter struct {
	Name  string
	Value any
}
