package resource

import (
	"github.com/opencontainers/go-digest"
)

// Digest returns the sha256 content digest of a stored resource.
func Digest(r Repository, id ID) (digest.Digest, error) {
	rc, err := r.Open(id)
	if err != nil {
		return "", err
	}
	defer rc.Close()
	return digest.Canonical.FromReader(rc)
}
