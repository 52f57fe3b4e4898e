package handle

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"

	"github.com/yeisme/sharevault/pkg/internal/service"
)

// UploadField is the multipart field that carries files. It may repeat.
const UploadField = "file"

// multipartParts streams the file fields of a multipart body without
// buffering them; other fields are skipped.
type multipartParts struct {
	r *multipart.Reader
}

func (m *multipartParts) NextPart() (*service.FilePart, error) {
	for {
		part, err := m.r.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}

		if err != nil {
			return nil, fmt.Errorf("%w: malformed multipart body: %v", service.ErrValidation, err)
		}

		if part.FormName() != UploadField || part.FileName() == "" {
			_ = part.Close()
			continue
		}

		return &service.FilePart{
			Name:        part.FileName(),
			ContentType: part.Header.Get("Content-Type"),
			Body:        part,
		}, nil
	}
}
