package api

import (
	"fmt"
	"mime/multipart"

	"github.com/dutchcoders/go-clamd"
	"github.com/gin-gonic/gin"

	"ojtportal/internal/ojt"
)

// uploadPolicy is what every multipart document endpoint enforces before a
// file reaches the object store: a size ceiling and, when a clamd daemon is
// configured, a virus scan.
type uploadPolicy struct {
	maxBytes  int64
	clamdAddr string
}

// formUpload pulls one optional file field out of the multipart form,
// enforces the policy, and returns it ready to store. A missing field
// returns (nil, nil); policy violations come back as field errors so the
// client sees them in the usual 422 shape.
func (p uploadPolicy) formUpload(c *gin.Context, field string) (*ojt.FileUpload, error) {
	header, err := c.FormFile(field)
	if err != nil {
		return nil, nil
	}
	return p.openUpload(header, field)
}

// formUploads pulls a repeated file field (otherDocuments) out of the form.
func (p uploadPolicy) formUploads(c *gin.Context, field string) ([]ojt.FileUpload, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, nil
	}
	headers := form.File[field]
	if len(headers) == 0 {
		return nil, nil
	}

	uploads := make([]ojt.FileUpload, 0, len(headers))
	for _, header := range headers {
		upload, err := p.openUpload(header, field)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, *upload)
	}
	return uploads, nil
}

func (p uploadPolicy) openUpload(header *multipart.FileHeader, field string) (*ojt.FileUpload, error) {
	if p.maxBytes > 0 && header.Size > p.maxBytes {
		return nil, ojt.FieldError(field, fmt.Sprintf("The %s may not be greater than %d kilobytes.", field, p.maxBytes/1024))
	}

	if err := p.scan(header, field); err != nil {
		return nil, err
	}

	reader, err := header.Open()
	if err != nil {
		return nil, &ojt.StorageIOError{Op: "open upload", Err: err}
	}
	return &ojt.FileUpload{
		Reader:      reader,
		Size:        header.Size,
		ContentType: header.Header.Get("Content-Type"),
		Filename:    header.Filename,
	}, nil
}

// scan streams the file through clamd. The scan reads the file to the end,
// so callers reopen the header afterwards.
func (p uploadPolicy) scan(header *multipart.FileHeader, field string) error {
	if p.clamdAddr == "" {
		return nil
	}

	reader, err := header.Open()
	if err != nil {
		return &ojt.StorageIOError{Op: "open upload", Err: err}
	}

	abortChan := make(chan bool)
	scanChan, err := clamd.NewClamd(p.clamdAddr).ScanStream(reader, abortChan)
	reader.Close()
	if err != nil {
		return &ojt.StorageIOError{Op: "scan upload", Err: err}
	}
	defer close(abortChan)

	for result := range scanChan {
		if result.Status != clamd.RES_OK {
			return ojt.FieldError(field, fmt.Sprintf("The %s failed the malware scan.", field))
		}
	}
	return nil
}
