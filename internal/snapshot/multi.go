package snapshot

import (
	"context"
	"errors"

	"github.com/matst80/tcpthrottle/internal/proto"
)

// Reporter accepts one snapshot per window.
type Reporter interface {
	Report(ctx context.Context, s proto.Snapshot) error
}

// Multi fans a snapshot out to every reporter and joins their errors.
type Multi []Reporter

func (m Multi) Report(ctx context.Context, s proto.Snapshot) error {
	var errs []error
	for _, r := range m {
		if err := r.Report(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
