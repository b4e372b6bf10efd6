// Package storage keeps uploaded files (evidence, avatars, verification documents)
// in an object store.
package storage

import (
	"context"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ObjectStore is implemented by Supabase and Memory.
type ObjectStore interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string, size int64) error
	SignedURL(ctx context.Context, key string, expiresInSeconds int) (string, error)
	PublicURL(key string) string
	// Delete must treat a missing object as success.
	Delete(ctx context.Context, key string) error
	BulkDelete(ctx context.Context, keys []string) error
}

// DocumentKey builds cases/<caseID>/<random>-<name>; the random part keeps
// same-named uploads apart.
func DocumentKey(caseID uuid.UUID, filename string) string {
	return path.Join("cases", caseID.String(), uuid.NewString()[:8]+"-"+cleanName(filename))
}

// UserFileKey builds users/<userID>/<kind>/<random><ext> for avatars and identity documents.
func UserFileKey(userID uuid.UUID, kind, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return path.Join("users", userID.String(), kind, uuid.NewString()+ext)
}

func cleanName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	if name == "" || name == "." || name == ".." {
		return "file"
	}
	return name
}
