package clients

import (
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/livepeer/catalyst-ingest/log"
)

func newHTTPClient(retryMax int, timeout time.Duration) *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.RetryMax = retryMax                   // Retry a maximum of this+1 times
	client.RetryWaitMin = 200 * time.Millisecond // Wait at least this long between retries
	client.RetryWaitMax = 1 * time.Second        // Wait at most this long between retries (exponential backoff)
	client.HTTPClient = &http.Client{
		Timeout: timeout, // Give up on requests that take more than this long
	}
	client.Logger = log.NewRetryableHTTPLogger()
	if retryMax == 0 {
		// hand 5xx responses back to the caller instead of a "giving up" error
		client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	}
	return client
}
