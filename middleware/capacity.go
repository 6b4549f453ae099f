package middleware

import (
	"net/http"
	"sync/atomic"

	"github.com/julienschmidt/httprouter"
	"github.com/livepeer/catalyst-ingest/errors"
)

// JobCounter reports how many ingest jobs are running
type JobCounter interface {
	InFlightJobs() int
}

type CapacityMiddleware struct {
	MaxInFlightJobs  int
	requestsInFlight atomic.Int64
}

// HasCapacity rejects new jobs with a 429 once the running jobs plus the
// requests still being staged reach the limit. A limit of 0 disables it.
func (c *CapacityMiddleware) HasCapacity(jobs JobCounter, next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if c.MaxInFlightJobs <= 0 {
			next(w, r, ps)
			return
		}

		inFlightReqs := c.requestsInFlight.Add(1)
		defer c.requestsInFlight.Add(-1)

		if jobs.InFlightJobs()+int(inFlightReqs) > c.MaxInFlightJobs {
			errors.WriteHTTPTooManyRequests(w, "Too many jobs in progress", nil)
			return
		}

		next(w, r, ps)
	}
}
