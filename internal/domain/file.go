package domain

import (
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/mkrupp/filevault/internal/util/encoding"
)

var (
	// ErrFileNotFound is returned when no file with the requested name exists for the caller.
	ErrFileNotFound = errors.New("file not found")
	// ErrFileAlreadyExists is returned when the owner already has a file with that name.
	ErrFileAlreadyExists = errors.New("file already exists")
	// ErrFileTooLarge is returned when an upload exceeds the configured size ceiling.
	ErrFileTooLarge = errors.New("file too large")
)

// DefaultFilename is used for uploads that carry no filename.
const DefaultFilename = "upload"

// FileKind separates the namespaces sharing the file store.
type FileKind string

const (
	FileKindFile  FileKind = "file"
	FileKindImage FileKind = "image"
)

// FileID identifies a stored file. It is generated when the file is inserted.
type FileID string

func (id FileID) String() string {
	return string(id)
}

// FileMeta describes a stored file without its content.
type FileMeta struct {
	ID        FileID    `json:"id"`
	Kind      FileKind  `json:"-"`
	Owner     string    `json:"-"`
	Filename  string    `json:"filename"`
	Size      int64     `json:"size"`
	Hash      string    `json:"hash"`
	MIMEType  string    `json:"mime_type"`
	CreatedAt time.Time `json:"created_at"`
}

// File is a stored file with its content.
type File struct {
	FileMeta

	Content []byte
}

// NewFile builds a file of the given kind and computes its size and hash.
func NewFile(kind FileKind, owner, filename string, content []byte, mimeType string) File {
	//nolint:exhaustruct
	return File{
		FileMeta: FileMeta{
			Kind:     kind,
			Owner:    owner,
			Filename: CleanFilename(filename),
			Size:     int64(len(content)),
			Hash:     encoding.ContentHash(content),
			MIMEType: mimeType,
		},
		Content: content,
	}
}

// CleanFilename reduces a client supplied name to its base name.
func CleanFilename(filename string) string {
	filename = strings.ReplaceAll(filename, "\\", "/")
	filename = strings.TrimSpace(path.Base(path.Clean("/" + filename)))

	if filename == "" || filename == "/" || filename == "." {
		return DefaultFilename
	}

	return filename
}

// WriteTo writes the file's content to w.
func (f File) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(f.Content)
	if err != nil {
		return int64(n), fmt.Errorf("write: %w", err)
	}

	return int64(n), nil
}

// FileIDResponse is returned after a successful upload.
type FileIDResponse struct {
	ID FileID `json:"id"`
}
