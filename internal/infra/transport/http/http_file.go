package http

import (
	"mime"
	"net/http"
	"strconv"

	"github.com/mkrupp/filevault/internal/domain"
	"github.com/mkrupp/filevault/internal/util/encoding"
)

// WriteFile sends the content of file as an attachment. The response carries
// the content hash as ETag; a matching If-None-Match yields 304 without a body.
func WriteFile(w http.ResponseWriter, r *http.Request, file domain.File) error {
	etag := encoding.ETag(file.Hash)

	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "private, no-cache")

	if inm := r.Header.Get("If-None-Match"); inm != "" && encoding.MatchesETag(inm, file.Hash) {
		w.WriteHeader(http.StatusNotModified)

		return nil
	}

	contentType := file.MIMEType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": file.Filename})
	if disposition == "" {
		disposition = "attachment"
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.FormatInt(int64(len(file.Content)), 10))
	w.Header().Set("Content-Disposition", disposition)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)

	if r.Method == http.MethodHead {
		return nil
	}

	_, err := file.WriteTo(w)

	return err
}
