package http

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/mkrupp/filevault/internal/domain"
)

// multipartOverhead is the room left for boundaries and part headers on top
// of the file size ceiling.
const multipartOverhead = 1 << 20

// MultipartFile is a file read from a multipart/form-data request.
type MultipartFile struct {
	Filename    string
	ContentType string
	Content     []byte
}

// ReadMultipartFile streams the multipart body of r and returns the first part
// named field. Parts are never spooled to disk. A file larger than maxSize
// bytes fails with ErrFileTooLarge; exactly maxSize bytes is accepted.
func ReadMultipartFile(w http.ResponseWriter, r *http.Request, field string, maxSize int64) (MultipartFile, error) {
	if mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err != nil || mediaType != "multipart/form-data" {
		return MultipartFile{}, fmt.Errorf("%w: expected multipart/form-data body", domain.ErrInvalidInput)
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	reader, err := r.MultipartReader()
	if err != nil {
		return MultipartFile{}, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}

	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			return MultipartFile{}, fmt.Errorf("%w: missing form field %q", domain.ErrInvalidInput, field)
		} else if err != nil {
			return MultipartFile{}, classifyBodyError(err)
		}

		if part.FormName() != field {
			_ = part.Close()

			continue
		}

		var buf bytes.Buffer

		n, err := buf.ReadFrom(io.LimitReader(part, maxSize+1))
		_ = part.Close()

		if err != nil {
			return MultipartFile{}, classifyBodyError(err)
		}

		if n > maxSize {
			return MultipartFile{}, fmt.Errorf("%w: limit is %d bytes", domain.ErrFileTooLarge, maxSize)
		}

		contentType := part.Header.Get("Content-Type")
		if contentType == "" || contentType == "application/octet-stream" {
			contentType = http.DetectContentType(buf.Bytes())
		}

		return MultipartFile{
			Filename:    part.FileName(),
			ContentType: contentType,
			Content:     buf.Bytes(),
		}, nil
	}
}

func classifyBodyError(err error) error {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return errors.Join(domain.ErrFileTooLarge, err)
	}

	return fmt.Errorf("%w: read multipart body: %w", domain.ErrInvalidInput, err)
}
