package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mkrupp/filevault/internal/domain"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

type errorStatus struct {
	target error
	status int
	detail bool // expose err.Error() instead of the sentinel text
}

//nolint:gochecknoglobals
var errorStatuses = []errorStatus{
	{target: domain.ErrUpstreamUnavailable, status: http.StatusServiceUnavailable},
	{target: domain.ErrNoAuthToken, status: http.StatusUnauthorized},
	{target: domain.ErrMalformedToken, status: http.StatusUnauthorized},
	{target: domain.ErrInvalidSignature, status: http.StatusUnauthorized},
	{target: domain.ErrTokenExpired, status: http.StatusUnauthorized},
	{target: domain.ErrInvalidCredentials, status: http.StatusUnauthorized},
	{target: domain.ErrForbidden, status: http.StatusForbidden},
	{target: domain.ErrUserNotFound, status: http.StatusNotFound},
	{target: domain.ErrFileNotFound, status: http.StatusNotFound},
	{target: domain.ErrUserAlreadyExists, status: http.StatusConflict},
	{target: domain.ErrFileAlreadyExists, status: http.StatusConflict},
	{target: domain.ErrFileTooLarge, status: http.StatusRequestEntityTooLarge},
	{target: domain.ErrImageTypeNotSupported, status: http.StatusUnsupportedMediaType, detail: true},
	{target: domain.ErrImageTypeMismatch, status: http.StatusUnsupportedMediaType, detail: true},
	{target: domain.ErrImageTooLarge, status: http.StatusRequestEntityTooLarge, detail: true},
	{target: domain.ErrUnknownRole, status: http.StatusBadRequest, detail: true},
	{target: domain.ErrInvalidInput, status: http.StatusBadRequest, detail: true},
}

// StatusFromError maps a domain error to an HTTP status code and a message
// that is safe to show to the client. Unknown errors become 500 with a
// generic message.
func StatusFromError(err error) (int, string) {
	for _, es := range errorStatuses {
		if !errors.Is(err, es.target) {
			continue
		}

		if es.detail {
			return es.status, err.Error()
		}

		return es.status, es.target.Error()
	}

	return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)
}

// WriteJSON writes v as a JSON body with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	//nolint:wrapcheck
	return json.NewEncoder(w).Encode(v)
}

// WriteError writes the JSON error body matching err. 401 responses carry a
// Bearer challenge.
func WriteError(w http.ResponseWriter, err error) {
	status, msg := StatusFromError(err)

	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="filevault"`)
	}

	_ = WriteJSON(w, status, ErrorResponse{Error: msg})
}
