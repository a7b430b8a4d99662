package pack

import (
	"context"
	"fmt"
	"strings"

	"github.com/meigma/nwnpatch/erf"
	"github.com/meigma/nwnpatch/resource"
)

// ERF writes HAK, MOD and ERF containers.
type ERF struct {
	// Options are passed to every erf.Writer.
	Options []erf.WriterOption
}

var _ Sink = ERF{}

// Pack implements Sink.
func (s ERF) Pack(ctx context.Context, dest, format string, blobs []Blob) error {
	var fileType string
	switch strings.ToUpper(format) {
	case FormatHAK:
		fileType = erf.TypeHAK
	case FormatMOD:
		fileType = erf.TypeMOD
	case FormatERF:
		fileType = erf.TypeERF
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	w, err := erf.NewWriter(fileType, s.Options...)
	if err != nil {
		return err
	}
	for _, b := range blobs {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := b.Load()
		if err != nil {
			return fmt.Errorf("pack: %s: %w", b.Name, err)
		}
		if err := w.Add(resource.ParseFileName(b.Name), data); err != nil {
			return fmt.Errorf("pack: %s: %w", b.Name, err)
		}
	}
	return w.WriteFile(dest)
}
