package linkedinads

import (
	"context"
	"strconv"
	"time"

	"github.com/ajitpratap0/linkedin-ads-tap/pkg/errors"
	"github.com/ajitpratap0/linkedin-ads-tap/pkg/metrics"
	"github.com/ajitpratap0/linkedin-ads-tap/pkg/models"
	"github.com/ajitpratap0/linkedin-ads-tap/pkg/state"
	"go.uber.org/zap"
)

// batch is one set of transformed records to filter and emit.
type batch struct {
	records   []models.Record
	extracted time.Time
	// last is the bookmark records are compared against.
	last string
	// max is the highest bookmark seen before this batch.
	max      string
	parentID string
}

// emitRecords writes the records that pass the stream's bookmark filter and
// returns the new maximum bookmark and the number written. Full-table
// streams write every record. Incremental streams write records whose
// bookmark is at or after b.last, and records without one. The maximum is
// tracked over every record considered.
func (s *Syncer) emitRecords(ctx context.Context, d *Descriptor, b batch) (string, int, error) {
	lastTime, err := state.ParseTime(b.last)
	if err != nil {
		return b.max, 0, errors.Wrap(err, errors.ErrorTypeState, "invalid bookmark for "+d.Name)
	}

	maxValue := b.max
	var maxTime time.Time
	if maxValue != "" {
		if maxTime, err = state.ParseTime(maxValue); err != nil {
			return b.max, 0, errors.Wrap(err, errors.ErrorTypeState, "invalid bookmark for "+d.Name)
		}
	}

	written := 0
	for _, rec := range b.records {
		if b.parentID != "" && d.ParentKey != "" {
			if _, ok := rec.Get(d.ParentKey); !ok {
				rec[d.ParentKey] = idValue(b.parentID)
			}
		}

		write := true
		if raw := rec.GetString(d.BookmarkField); raw != "" {
			t, err := state.ParseTime(raw)
			if err != nil {
				return maxValue, written, errors.Wrap(err, errors.ErrorTypeData, "invalid "+d.BookmarkField+" in "+d.Name+" record")
			}
			if maxValue == "" || t.After(maxTime) {
				maxValue, maxTime = raw, t
			}
			if d.Replication == Incremental && t.Before(lastTime) {
				write = false
			}
		}

		if !write {
			metrics.RecordsSkipped.WithLabelValues(d.Name).Inc()
			continue
		}
		if err := s.sink.WriteRecord(ctx, models.RecordMessage{Stream: d.Name, Record: rec, TimeExtracted: b.extracted}); err != nil {
			s.logger.Error("failed to write record",
				zap.String("stream", d.Name),
				zap.Error(err))
			return maxValue, written, err
		}
		written++
	}
	return maxValue, written, nil
}

// idValue keeps numeric ids numeric.
func idValue(id string) interface{} {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return n
	}
	return id
}
