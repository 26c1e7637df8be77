package kvdb

import (
	"errors"
	"fmt"
	"time"
)

const (
	HighlightsBucket = "highlights"
	IndexBucket      = "index"
)

var buckets = []string{HighlightsBucket, IndexBucket}

var (
	ErrNotFound   = errors.New("key not found")
	ErrInvalidKey = errors.New("invalid key")
)

type InvalidKeyError struct {
	Key    string
	Reason string
}
type NotFoundError struct {
	Bucket string
	Key    string
}

func (e *InvalidKeyError) Error() string {
	return fmt.Sprintf("invalid key %s: %s", e.Key, e.Reason)
}

func (e *InvalidKeyError) Is(target error) bool {
	return target == ErrInvalidKey
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("key not found: %s/%s", e.Bucket, e.Key)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// CategoryMetadata is what the index service records about each category it installs.
type CategoryMetadata struct {
	Count       int       `json:"count"`
	RefreshedAt time.Time `json:"refreshed_at"`
	Failed      bool      `json:"failed"`
}
