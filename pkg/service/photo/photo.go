// Package photo archives user-submitted skin photos.
package photo

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/dermis/pkg/domain/interfaces"
	"github.com/secmon-lab/dermis/pkg/domain/types"
)

var ErrEmptyPhoto = goerr.New("photo data is empty")

const anonymousDir = "anonymous"

// objectName returns "<prefix>/<user>/<yyyy>/<mm>/<dd>/<uuid>.<ext>"
func objectName(prefix string, userID types.UserID, contentType string, now time.Time) string {
	dir := anonymousDir
	if !userID.IsAnonymous() {
		dir = strings.ReplaceAll(userID.String(), "/", "_")
	}

	ext := "bin"
	switch contentType {
	case "image/jpeg":
		ext = "jpg"
	case "image/png":
		ext = "png"
	case "image/webp":
		ext = "webp"
	case "image/gif":
		ext = "gif"
	}

	return path.Join(prefix, dir, now.UTC().Format("2006/01/02"), fmt.Sprintf("%s.%s", uuid.New().String(), ext))
}

// GCSStore writes photos to a Cloud Storage bucket
type GCSStore struct {
	client *storage.Client
	bucket string
	prefix string
}

var _ interfaces.PhotoStore = &GCSStore{}

// GCSOption configures a GCSStore
type GCSOption func(*GCSStore)

// WithPrefix sets the object name prefix
func WithPrefix(prefix string) GCSOption {
	return func(s *GCSStore) {
		s.prefix = strings.Trim(prefix, "/")
	}
}

// NewGCSStore creates a store for bucket using application default credentials
func NewGCSStore(ctx context.Context, bucket string, opts ...GCSOption) (*GCSStore, error) {
	if bucket == "" {
		return nil, goerr.New("bucket is required")
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage client", goerr.V("bucket", bucket))
	}

	s := &GCSStore{
		client: client,
		bucket: bucket,
		prefix: "photos",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Put uploads data and returns the object name
func (s *GCSStore) Put(ctx context.Context, userID types.UserID, data []byte) (string, error) {
	if len(data) == 0 {
		return "", goerr.Wrap(ErrEmptyPhoto, "nothing to upload", goerr.V("user_id", userID))
	}

	contentType := http.DetectContentType(data)
	name := objectName(s.prefix, userID, contentType, time.Now())

	w := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	w.ContentType = contentType
	w.Metadata = map[string]string{"user_id": userID.String()}

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", goerr.Wrap(err, "failed to write photo",
			goerr.V("bucket", s.bucket),
			goerr.V("object", name))
	}
	if err := w.Close(); err != nil {
		return "", goerr.Wrap(err, "failed to finalize photo upload",
			goerr.V("bucket", s.bucket),
			goerr.V("object", name))
	}

	return name, nil
}

// Close releases the storage client
func (s *GCSStore) Close() error {
	return s.client.Close()
}

// MemoryStore keeps photos in process memory
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

var _ interfaces.PhotoStore = &MemoryStore{}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func (s *MemoryStore) Put(ctx context.Context, userID types.UserID, data []byte) (string, error) {
	if len(data) == 0 {
		return "", goerr.Wrap(ErrEmptyPhoto, "nothing to store", goerr.V("user_id", userID))
	}

	name := objectName("photos", userID, http.DetectContentType(data), time.Now())
	copied := make([]byte, len(data))
	copy(copied, data)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[name] = copied
	return name, nil
}

// Get returns a stored object
func (s *MemoryStore) Get(name string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[name]
	return data, ok
}

// Len returns the number of stored objects
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}
