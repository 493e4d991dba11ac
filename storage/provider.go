// Package storage streams track files from the local resource directory or
// from a MinIO bucket.
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"time"
)

// ErrNotExist is returned when a path names no stored file.
var ErrNotExist = errors.New("storage: file does not exist")

// File is an open track file. Callers must close Body.
type File struct {
	Name        string
	Body        io.ReadCloser
	ContentType string
	Size        int64
	ModTime     time.Time
}

// ObjectInfo describes one stored file.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	ContentType  string
}

// BucketStats summarises a listing.
type BucketStats struct {
	TotalObjects int64
	TotalSize    int64
	LastModified time.Time
}

// Provider is the file-streaming collaborator of the catalog. Paths are
// slash separated and relative to the provider root.
type Provider interface {
	// Open returns a stream of the file plus a best-guess content type.
	Open(ctx context.Context, path string) (*File, error)
	// Save writes r to path, replacing any existing file.
	Save(ctx context.Context, path string, r io.Reader, size int64) error
	// Delete removes path. Deleting a missing file is not an error.
	Delete(ctx context.Context, path string) error
	// List returns every audio file under prefix.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	// Name identifies the backend in logs.
	Name() string
}

var audioExtensions = map[string]bool{
	".mp3":  true,
	".flac": true,
	".wav":  true,
	".ogg":  true,
	".opus": true,
	".m4a":  true,
	".aac":  true,
}

// IsAudioFile reports whether name carries a known audio extension.
func IsAudioFile(name string) bool {
	return audioExtensions[strings.ToLower(path.Ext(name))]
}

// Summarize computes BucketStats over objects.
func Summarize(objects []ObjectInfo) BucketStats {
	var stats BucketStats
	for _, o := range objects {
		stats.TotalObjects++
		stats.TotalSize += o.Size
		if o.LastModified.After(stats.LastModified) {
			stats.LastModified = o.LastModified
		}
	}
	return stats
}
