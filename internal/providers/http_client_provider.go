package providers

import (
	"net/http"
	"time"
)

// NewHTTPClientProvider returns the client used for all remote-store and
// token-endpoint calls. The timeout bounds a whole request including body
// download; sync passes are expected to tolerate it expiring.
func NewHTTPClientProvider() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
	}
}
