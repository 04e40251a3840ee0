package report

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/supplyengine/internal/domain"
	"github.com/andresuchdata/supplyengine/internal/engine/policy"
	"github.com/andresuchdata/supplyengine/internal/storage"
)

const csvContentType = "text/csv"

// Bundle is the set of reports produced from one snapshot. Empty sections
// are skipped.
type Bundle struct {
	TakenAt     time.Time
	Positions   []domain.InventoryPosition
	Curve       []policy.CurvePoint
	Suggestions []domain.TransferSuggestion
}

// Exporter writes bundles under prefix/<snapshot time>/.
type Exporter struct {
	store  storage.ObjectStorage
	prefix string
}

func NewExporter(store storage.ObjectStorage, prefix string) *Exporter {
	return &Exporter{store: store, prefix: prefix}
}

// Export uploads every non-empty section and returns the keys written.
func (e *Exporter) Export(ctx context.Context, b Bundle) ([]string, error) {
	folder := b.TakenAt.UTC().Format("20060102T150405Z")

	type section struct {
		name  string
		empty bool
		write func(*bytes.Buffer) error
	}
	sections := []section{
		{"positions.csv", len(b.Positions) == 0, func(buf *bytes.Buffer) error { return WritePositionsCSV(buf, b.Positions) }},
		{"policy_curve.csv", len(b.Curve) == 0, func(buf *bytes.Buffer) error { return WriteCurveCSV(buf, b.Curve) }},
		{"transfers.csv", len(b.Suggestions) == 0, func(buf *bytes.Buffer) error { return WriteTransfersCSV(buf, b.Suggestions) }},
	}

	var keys []string
	for _, s := range sections {
		if s.empty {
			continue
		}
		var buf bytes.Buffer
		if err := s.write(&buf); err != nil {
			return keys, fmt.Errorf("render %s: %w", s.name, err)
		}
		key := storage.Join(e.prefix, folder, s.name)
		if err := e.store.UploadObject(ctx, key, buf.Bytes(), csvContentType); err != nil {
			return keys, err
		}
		log.Info().Str("key", key).Int("bytes", buf.Len()).Msg("report uploaded")
		keys = append(keys, key)
	}
	return keys, nil
}
