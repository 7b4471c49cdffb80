package domain

import "fmt"

// BlobID identifies an entry in a blob repository.
type BlobID string

// ResizedImageBlobID names the cached copy of an image with the given content hash scaled to width.
func ResizedImageBlobID(hash string, width int) BlobID {
	return BlobID(fmt.Sprintf("%s_%d", hash, width))
}

// String returns the string representation of the BlobID.
func (id BlobID) String() string {
	return string(id)
}
