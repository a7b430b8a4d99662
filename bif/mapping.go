package bif

import (
	"errors"
	"sync"
)

// Mapping is a read-only view of one entry's bytes. On unix systems the
// view is a memory-mapped region of the archive; elsewhere it is a heap
// copy.
//
// A Mapping stays valid until its own Close or the owning Reader's Close,
// whichever happens first. Bytes returns nil after release.
type Mapping struct {
	r    *Reader
	data []byte

	once   sync.Once
	unmap  func() error
	relErr error
}

// Bytes returns the mapped entry data. The slice must not be modified.
func (m *Mapping) Bytes() []byte {
	m.r.mu.Lock()
	defer m.r.mu.Unlock()
	if _, ok := m.r.mappings[m]; !ok {
		return nil
	}
	return m.data
}

// Len returns the length of the mapped entry.
func (m *Mapping) Len() int { return len(m.data) }

// Close releases the view. Calling Close more than once is a no-op.
func (m *Mapping) Close() error {
	m.r.mu.Lock()
	delete(m.r.mappings, m)
	m.r.mu.Unlock()
	return m.release()
}

func (m *Mapping) release() error {
	m.once.Do(func() {
		if m.unmap != nil {
			m.relErr = m.unmap()
		}
		m.data = nil
	})
	return m.relErr
}

// MapEntry returns a read-only view of slot i. The caller must Close the
// mapping, or it is released when the Reader closes.
func (r *Reader) MapEntry(i int) (*Mapping, error) {
	off, n, err := r.window(i)
	if err != nil {
		return nil, err
	}
	data, unmap, err := mapRegion(r.f, off, n)
	if err != nil {
		return nil, err
	}

	m := &Mapping{r: r, data: data, unmap: unmap}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, errors.Join(ErrClosed, m.release())
	}
	r.mappings[m] = struct{}{}
	r.mu.Unlock()
	return m, nil
}

// WithMapping maps slot i and calls fn with the view. The slice is only
// valid for the duration of fn.
func (r *Reader) WithMapping(i int, fn func(data []byte) error) (err error) {
	m, err := r.MapEntry(i)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := m.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(m.data)
}
