package client

import "net/http"

// HTTPClient abstracts the HTTP transport so tests can substitute their
// own. *http.Client satisfies it.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}
