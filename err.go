package taskboard

import (
	"errors"
	"net/http"

	"github.com/taskboard/taskboard.go/httpclient"
)

// APIErrorFrom unwraps err to the server-reported API error, if any.
// Mutation errors from collections arrive wrapped with the collection
// and key context; this digs the HTTP layer's error back out.
func APIErrorFrom(err error) (*httpclient.APIError, bool) {
	var apiErr *httpclient.APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsNotFound reports whether err is a server 404.
func IsNotFound(err error) bool {
	apiErr, ok := APIErrorFrom(err)
	return ok && apiErr.StatusCode == http.StatusNotFound
}

// IsConflict reports whether err is a server 409, the usual outcome of
// mutating an entity someone else changed first.
func IsConflict(err error) bool {
	apiErr, ok := APIErrorFrom(err)
	return ok && apiErr.StatusCode == http.StatusConflict
}
