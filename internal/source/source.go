// Package source provides the reading sources the monitor polls. A
// source normalizes whatever it talks to into a types.Reading.
package source

import (
	"context"

	"github.com/aeromon/aeromon/internal/types"
)

// Source produces the current environmental reading.
type Source interface {
	// Name identifies the source in logs and metrics.
	Name() string
	// Fetch returns the most recent reading. Implementations may serve
	// a cached value when the upstream was polled recently.
	Fetch(ctx context.Context) (types.Reading, error)
}
