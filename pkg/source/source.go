// pkg/source/source.go
package source

import (
	"context"

	"github.com/medsendx/data-gateway/pkg/model"
)

// Source is the ingestion boundary: anything that can enumerate an
// ordered collection of records. How records are decoded from a binary
// imaging format is the source's own concern.
type Source interface {
	Records(ctx context.Context) ([]model.Record, error)
}

// SliceSource serves an in-memory slice of records
type SliceSource struct {
	records []model.Record
}

// NewSliceSource creates a source over the given records
func NewSliceSource(records []model.Record) *SliceSource {
	return &SliceSource{records: records}
}

// Records implements Source
func (s *SliceSource) Records(ctx context.Context) ([]model.Record, error) {
	out := make([]model.Record, len(s.records))
	copy(out, s.records)
	return out, nil
}
