package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
)

// ensure multiBackend implements Backend
var _ Backend = (*multiBackend)(nil)

type multiBackend struct {
	backends []Backend
}

// Multi combines backends. The first one is the primary: the others are saved
// concurrently first, and the primary is written only once they all
// succeed. Save fails if any backend fails. With a single backend it is
// returned unchanged.
func Multi(backends ...Backend) Backend {
	if len(backends) == 1 {
		return backends[0]
	}
	return &multiBackend{backends: backends}
}

func (m *multiBackend) Save(ctx context.Context, batch *Batch) (string, error) {
	if len(m.backends) == 0 {
		return "", errors.New("multi save: no backends")
	}
	locations := make([]string, len(m.backends))

	g, gCtx := errgroup.WithContext(ctx)
	for i, b := range m.backends[1:] {
		i, b := i, b
		g.Go(func() error {
			loc, err := b.Save(gCtx, batch)
			if err != nil {
				return err
			}
			locations[i+1] = loc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", fmt.Errorf("multi save: %w", err)
	}

	loc, err := m.backends[0].Save(ctx, batch)
	if err != nil {
		return "", fmt.Errorf("multi save: %w", err)
	}
	locations[0] = loc

	return strings.Join(locations, ", "), nil
}

func (m *multiBackend) Close() error {
	var errs []error
	for _, b := range m.backends {
		if err := b.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
