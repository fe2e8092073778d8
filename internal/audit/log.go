// internal/audit/log.go
package audit

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// LogRecorder writes entries to the structured log. It is the default sink
// when neither a database nor a broker recorder is configured.
type LogRecorder struct {
	log zerolog.Logger
}

func NewLogRecorder(log zerolog.Logger) *LogRecorder {
	return &LogRecorder{log: log.With().Str("component", "audit").Logger()}
}

func (r *LogRecorder) Record(_ context.Context, e Entry) error {
	r.log.Info().
		Str("action", e.Action).
		Str("entity_type", e.EntityType).
		Stringer("entity_id", e.EntityID).
		Stringer("actor_id", e.ActorID).
		Time("at", e.At).
		Msg("audit event")
	return nil
}

// MultiRecorder fans an entry out to every recorder; each one gets its
// attempt even when an earlier one failed.
type MultiRecorder struct {
	recorders []Recorder
}

func NewMultiRecorder(recorders ...Recorder) *MultiRecorder {
	return &MultiRecorder{recorders: recorders}
}

func (m *MultiRecorder) Record(ctx context.Context, e Entry) error {
	var errs []error
	for _, r := range m.recorders {
		if err := r.Record(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
