package domain

import (
	"errors"
	"fmt"
	"io"
)

// ErrBlobNotFound is returned when a blob does not exist in the repository.
var ErrBlobNotFound = errors.New("blob not found")

// Blob represents a binary large object with an identifier and content.
type Blob struct {
	ID   BlobID
	Body []byte
}

// NewBlob creates a new Blob with the given ID and content.
func NewBlob(id BlobID, body []byte) *Blob {
	return &Blob{
		ID:   id,
		Body: body,
	}
}

// Size returns the size of the blob's content in bytes.
func (blob *Blob) Size() int64 {
	return int64(len(blob.Body))
}

// Bytes returns the blob's content as a byte slice.
func (blob *Blob) Bytes() []byte {
	return blob.Body
}

// WriteTo writes the blob's content to the given writer.
func (blob *Blob) WriteTo(writer io.Writer) (int64, error) {
	n, err := writer.Write(blob.Body)
	if err != nil {
		return 0, fmt.Errorf("write: %w", err)
	}

	return int64(n), nil
}
