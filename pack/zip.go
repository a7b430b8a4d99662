package pack

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"

	"github.com/meigma/nwnpatch/internal/fsutil"
)

// Zip writes deflate compressed zip archives.
type Zip struct {
	// Level is the flate compression level; zero selects the default.
	Level int
}

var _ Sink = Zip{}

// Pack implements Sink.
func (s Zip) Pack(ctx context.Context, dest, format string, blobs []Blob) error {
	if !strings.EqualFold(format, FormatZIP) {
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	level := s.Level
	if level == 0 {
		level = flate.DefaultCompression
	}

	return fsutil.WriteStream(dest, func(w io.Writer) error {
		zw := zip.NewWriter(w)
		zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
			return flate.NewWriter(out, level)
		})
		for _, b := range blobs {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := addZipEntry(zw, b); err != nil {
				return fmt.Errorf("pack: %s: %w", b.Name, err)
			}
		}
		return zw.Close()
	})
}

func addZipEntry(zw *zip.Writer, b Blob) error {
	hdr := &zip.FileHeader{Name: b.Name, Method: zip.Deflate, Modified: time.Now()}
	if b.Path != "" && b.Data == nil {
		if info, err := os.Stat(b.Path); err == nil {
			hdr.Modified = info.ModTime()
		}
	}
	data, err := b.Load()
	if err != nil {
		return err
	}
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
