package storage

import (
	"context"
	"errors"
	"os"
)

// ErrNotFound is returned when there is no object at the given key.
var ErrNotFound = errors.New("Object not found")

// Storage is the interface for reading and writing raw documents to a
// "bucket" style store, keyed by path.
type Storage interface {
	Writer
	Reader
	Remover
	Searcher
	Lister
	Clearer
}

// Writer writes a document under a key.
type Writer interface {
	Write(ctx context.Context, key string, body []byte, options *Options) error
}

// Reader reads the document stored under a key.
type Reader interface {
	Read(ctx context.Context, key string) ([]byte, error)
}

// Remover removes the document stored under a key.
type Remover interface {
	Remove(ctx context.Context, key string) error
}

// Searcher returns the documents matching a query.
type Searcher interface {
	Search(ctx context.Context, query map[string]string) ([][]byte, error)
}

// Lister returns the keys found under a path.
type Lister interface {
	List(ctx context.Context, path string) ([]string, error)
}

// Clearer removes all documents matching a query.
type Clearer interface {
	Clear(ctx context.Context, query map[string]string) error
}

// Options alter the behavior of a write.
type Options struct {
	TTL     int64 // Seconds until the object expires, if the backend supports expiry.
	Mode    os.FileMode
	DirMode os.FileMode
}

// NewOptions returns Options with sane defaults applied.
func NewOptions() Options {
	return Options{
		Mode:    0644,
		DirMode: 0755,
	}
}
