package loader

import (
	"context"
	"fmt"
	"time"

	"energy-forecast/internal/common"
	"energy-forecast/internal/series"
	"energy-forecast/internal/storage"
)

// BoltSource reads a series previously ingested into the local store.
type BoltSource struct {
	Store      *storage.Store
	Series     string
	Start, End time.Time // zero leaves the range open
}

func (s *BoltSource) Name() string   { return "bolt:" + s.Series }
func (s *BoltSource) Format() string { return common.FormatBoltDB }

// Load implements Source. An empty stored series is an error.
func (s *BoltSource) Load(ctx context.Context) ([]series.Point, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	points, err := s.Store.GetPoints(s.Series, s.Start, s.End)
	if err != nil {
		return nil, fmt.Errorf("read series %s: %w", s.Series, err)
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: series %s has no stored points", series.ErrInvalidInput, s.Series)
	}
	return points, nil
}
