package audit

import (
	"context"
	"errors"
)

// MultiSink fans an event out to every sink and joins their errors.
type MultiSink []Sink

// Emit writes e to each non-nil sink.
func (m MultiSink) Emit(ctx context.Context, e Event) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Emit(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
