package stream

import (
	"fmt"
	"net/url"

	"github.com/taskboard/taskboard.go/pkg/constants"
)

// StreamURL derives the WebSocket URL for a stream endpoint from the API
// base URL, rewriting http to ws and https to wss. ws and wss bases pass
// through unchanged; any other scheme is an error.
func StreamURL(base url.URL, path string, query url.Values) (*url.URL, error) {
	u := base
	switch u.Scheme {
	case constants.HTTPScheme:
		u.Scheme = constants.WebsocketScheme
	case constants.HTTPSecureScheme:
		u.Scheme = constants.WebsocketSecureScheme
	case constants.WebsocketScheme, constants.WebsocketSecureScheme:
	default:
		return nil, fmt.Errorf("stream: cannot derive a websocket URL from scheme %q", u.Scheme)
	}
	u.Path = path
	u.RawQuery = query.Encode()
	u.Fragment = ""
	return &u, nil
}
