// Package fsutil holds the file helpers shared by the table, string table
// and patch writers.
package fsutil

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
)

// WriteFile writes data to a temp file then renames it to target,
// ensuring atomic replacement of the target file. Parent directories are
// created as needed.
func WriteFile(target string, data []byte) error {
	return WriteStream(target, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// WriteStream calls write with a buffered writer over a temp file in the
// target's directory and renames the temp file to target on success.
func WriteStream(target string, write func(w io.Writer) error) error {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".nwnpatch-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	bw := bufio.NewWriter(tmp)
	if err := write(bw); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// CopyFile copies the regular file src to dst, replacing dst.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	return WriteStream(dst, func(w io.Writer) error {
		_, err := io.Copy(w, in)
		return err
	})
}

// RegularFiles returns the sorted names of the regular files in dir.
// A missing directory yields no names and no error.
func RegularFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names, nil
}

// CopyFiles copies every regular file of src into dst and returns the
// copied names. Subdirectories are not descended into.
func CopyFiles(src, dst string) ([]string, error) {
	names, err := RegularFiles(src)
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		if err := CopyFile(filepath.Join(src, name), filepath.Join(dst, name)); err != nil {
			return nil, fmt.Errorf("copy %s: %w", name, err)
		}
	}
	return names, nil
}

// ClearFiles removes the regular files of dir, leaving subdirectories in
// place. A missing directory is not an error.
func ClearFiles(dir string) error {
	names, err := RegularFiles(dir)
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return err
		}
	}
	return nil
}

// Exists reports whether path names a regular file.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
