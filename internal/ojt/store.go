package ojt

import (
	"context"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ObjectStore is the slice of the document store the services depend on.
// storage.Client satisfies it; tests substitute an in-memory fake.
type ObjectStore interface {
	UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error
	GetObject(ctx context.Context, objectKey string) (io.ReadCloser, error)
	ObjectExists(ctx context.Context, objectKey string) (bool, error)
	DeleteObject(ctx context.Context, objectKey string) error
	GeneratePresignedURL(ctx context.Context, objectKey string, duration time.Duration) (string, error)
}

// DocumentRef is an optional reference to a stored document. The zero value
// means "no document"; a non-empty ref always names an object that was
// stored together with it.
type DocumentRef string

// Present reports whether the reference names a document.
func (d DocumentRef) Present() bool { return strings.TrimSpace(string(d)) != "" }

// Key returns the object-store key.
func (d DocumentRef) Key() string { return string(d) }

// FileUpload is an incoming document ready to be stored.
type FileUpload struct {
	Reader      io.Reader
	Size        int64
	ContentType string
	Filename    string
}

// Object key folders, one per document kind.
const (
	resumeFolder = "applications/resumes"
	letterFolder = "applications/letters"
	otherFolder  = "applications/other"
)

func objectKey(folder, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	if len(ext) > 8 {
		ext = ""
	}
	return folder + "/" + uuid.NewString() + ext
}

func uploadContentType(f FileUpload) string {
	if f.ContentType != "" {
		return f.ContentType
	}
	return "application/octet-stream"
}
