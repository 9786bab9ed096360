// Package status records which quadrants already have a persisted image.
package status

import (
	"context"

	"github.com/forest-guardian/geoforecast/internal/grid"
)

type Status int

const (
	Pending Status = iota
	Done
)

func (s Status) String() string {
	switch s {
	case Done:
		return "done"
	default:
		return "pending"
	}
}

type Store interface {
	Status(ctx context.Context, tile grid.Tile) (Status, error)
	MarkDone(ctx context.Context, tile grid.Tile, output string) error
}
