package model

import (
	"context"
	"io"
)

// Storage is the object store certificate metadata is written to.
type Storage interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
}
