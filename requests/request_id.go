package requests

import (
	"net/http"

	"github.com/livepeer/catalyst-ingest/config"
)

const RequestIDHeader = "X-Request-ID"

// GetRequestId returns the caller supplied request id, generating one when
// the header is missing
func GetRequestId(req *http.Request) string {
	requestID := req.Header.Get(RequestIDHeader)
	if requestID != "" {
		return requestID
	}
	requestID = config.RandomTrailer(8)
	req.Header.Set(RequestIDHeader, requestID)
	return requestID
}
