package bif

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/meigma/nwnpatch/resource"
)

// NameFunc chooses the output filename for an extracted entry.
type NameFunc func(e Entry) string

// SlotName names entries by zero-padded slot and the extension of their
// type tag, e.g. "000042.2da".
func SlotName(e Entry) string {
	ext, ok := resource.TypeExt(uint16(e.TypeTag)) //nolint:gosec // type tags are 16-bit codes
	if !ok || e.TypeTag > 0xFFFF {
		ext = strconv.FormatUint(uint64(e.TypeTag), 10)
	}
	return fmt.Sprintf("%06d.%s", e.Slot, ext)
}

// ExtractAll writes every entry of the archive at path into dest using
// workers goroutines. Each worker opens its own Reader, so no handle is
// shared. A nil name uses SlotName.
//
// The first failure cancels the remaining work and is returned.
func ExtractAll(ctx context.Context, path, dest string, workers int, name NameFunc, opts ...Option) error {
	if workers < 1 {
		workers = 1
	}
	if name == nil {
		name = SlotName
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}

	probe, err := Open(path, opts...)
	if err != nil {
		return err
	}
	total := probe.Len()
	if err := probe.Close(); err != nil {
		return err
	}
	workers = min(workers, max(total, 1))

	slots := make(chan int)
	eg, ctx := errgroup.WithContext(ctx)

	for range workers {
		eg.Go(func() error {
			r, err := Open(path, opts...)
			if err != nil {
				return err
			}
			defer r.Close()
			for slot := range slots {
				if err := ctx.Err(); err != nil {
					return err
				}
				e, err := r.Entry(slot)
				if err != nil {
					return err
				}
				fn := name(e)
				out := filepath.Join(dest, filepath.Base(fn))
				if !strings.HasPrefix(out, filepath.Clean(dest)+string(filepath.Separator)) {
					return fmt.Errorf("bif: extract slot %d: invalid name %q", slot, fn)
				}
				if err := r.TransferEntryToFile(slot, out); err != nil {
					return err
				}
			}
			return nil
		})
	}

	eg.Go(func() error {
		defer close(slots)
		for slot := range total {
			select {
			case slots <- slot:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	return eg.Wait()
}
