package http

import (
	"errors"
	"net/http"
)

// TextPlainContentType content type of error responses.
const TextPlainContentType = "text/plain; charset=utf-8"

// ErrInternalServerError internal server error
var ErrInternalServerError = errors.New("internal server error")

// WriteErrorResponse writes the status and the error message as text/plain body.
func WriteErrorResponse(w http.ResponseWriter, statusCode int, err error) {
	if err == nil {
		err = ErrInternalServerError
	}
	w.Header().Set(ContentTypeHeaderKey, TextPlainContentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(statusCode)
	_, _ = w.Write([]byte(err.Error()))
}

// ReadErrorResponse returns the error carried by a text/plain body.
func ReadErrorResponse(resp *http.Response, body []byte) error {
	if !SameMediaType(resp.Header.Get(ContentTypeHeaderKey), TextPlainContentType) || len(body) == 0 {
		return ErrInternalServerError
	}
	return errors.New(string(body))
}
