package resource

import (
	"errors"
	"io"
	"slices"
)

// Composite layers repositories in order of increasing priority: the last
// repository that contains a resource serves it. Create writes to the
// highest-priority writable member.
type Composite struct {
	repos []Repository
}

var _ Repository = (*Composite)(nil)

// NewComposite returns a composite over repos, lowest priority first.
func NewComposite(repos ...Repository) *Composite {
	return &Composite{repos: slices.Clone(repos)}
}

// Len returns the number of layered repositories.
func (c *Composite) Len() int {
	return len(c.repos)
}

// find returns the highest-priority repository holding id.
func (c *Composite) find(id ID) Repository {
	for i := len(c.repos) - 1; i >= 0; i-- {
		if c.repos[i].Contains(id) {
			return c.repos[i]
		}
	}
	return nil
}

// Open implements Repository.
func (c *Composite) Open(id ID) (io.ReadCloser, error) {
	r := c.find(id)
	if r == nil {
		return nil, NotExist("open", id)
	}
	return r.Open(id)
}

// ReadFile implements Repository.
func (c *Composite) ReadFile(id ID) ([]byte, error) {
	r := c.find(id)
	if r == nil {
		return nil, NotExist("readfile", id)
	}
	return r.ReadFile(id)
}

// Contains implements Repository.
func (c *Composite) Contains(id ID) bool {
	return c.find(id) != nil
}

// IDs implements Repository and returns the union of all members.
func (c *Composite) IDs() []ID {
	var ids []ID
	for _, r := range c.repos {
		ids = append(ids, r.IDs()...)
	}
	slices.SortFunc(ids, Compare)
	return slices.Compact(ids)
}

// Create implements Repository.
func (c *Composite) Create(id ID) (io.WriteCloser, error) {
	for i := len(c.repos) - 1; i >= 0; i-- {
		if c.repos[i].Writable() {
			return c.repos[i].Create(id)
		}
	}
	return nil, ErrReadOnly
}

// Writable implements Repository.
func (c *Composite) Writable() bool {
	for _, r := range c.repos {
		if r.Writable() {
			return true
		}
	}
	return false
}

// Stat implements Repository.
func (c *Composite) Stat(id ID) (Info, error) {
	r := c.find(id)
	if r == nil {
		return Info{}, NotExist("stat", id)
	}
	return r.Stat(id)
}

// Location implements Repository.
func (c *Composite) Location(id ID) (string, bool) {
	r := c.find(id)
	if r == nil {
		return "", false
	}
	return r.Location(id)
}

// Close closes every member and joins their errors.
func (c *Composite) Close() error {
	var errs []error
	for _, r := range c.repos {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
