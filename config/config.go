package config

import (
	"math/rand"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

var Version string

// Used so that tests can control elapsed time and timestamps
var Clock = clock.New()

// Length in seconds of the streaming segments produced for every job
const DefaultSegmentLengthSecs = 10

// Minimum source properties accepted by the ingest pipeline
const (
	MinDurationSecs = 1.0
	MinWidth        = 320
	MinHeight       = 240
)

// Number of storage epochs used when the request doesn't set one
const DefaultEpochs = 5

// Prefix of the per-job working directory under the configured work dir
const JobDirPrefix = "ingest_"

var (
	r   = rand.New(rand.NewSource(time.Now().UnixNano()))
	rMu sync.Mutex
)

func RandomTrailer(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyz0123456789"

	rMu.Lock()
	defer rMu.Unlock()
	res := make([]byte, length)
	for i := 0; i < length; i++ {
		res[i] = charset[r.Intn(len(charset))]
	}
	return string(res)
}
