package fetch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
)

// Get returns a Build func for a GET request to base+path with the given query and headers.
func Get(base, path string, query url.Values, headers map[string]string) func(ctx context.Context) (*http.Request, error) {
	return func(ctx context.Context) (*http.Request, error) {
		u := strings.TrimRight(base, "/") + path
		if len(query) > 0 {
			u += "?" + query.Encode()
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		return req, nil
	}
}

// JSONMessage returns an ErrorMessage func reading a string field from a JSON error body.
// Nested fields are addressed by path, e.g. JSONMessage("error", "message").
func JSONMessage(path ...string) func(status int, body []byte) string {
	return func(_ int, body []byte) string {
		var cur any
		if err := json.Unmarshal(body, &cur); err != nil {
			return ""
		}
		for _, p := range path {
			m, ok := cur.(map[string]any)
			if !ok {
				return ""
			}
			cur = m[p]
		}
		s, _ := cur.(string)
		return s
	}
}
