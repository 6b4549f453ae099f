package subprocess

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"

	"github.com/livepeer/catalyst-ingest/log"
)

// Runner executes an external program and returns its stdout. Errors include
// the tail of stderr. Implementations must honour ctx cancellation.
type Runner interface {
	Run(ctx context.Context, requestID, name string, args ...string) ([]byte, error)
}

// RunnerFunc adapts a function to the Runner interface
type RunnerFunc func(ctx context.Context, requestID, name string, args ...string) ([]byte, error)

func (f RunnerFunc) Run(ctx context.Context, requestID, name string, args ...string) ([]byte, error) {
	return f(ctx, requestID, name, args...)
}

// ErrTimeout is wrapped by Exec errors caused by the context deadline
var ErrTimeout = errors.New("process timed out")

// waitDelay bounds how long Run waits for output after the process is gone,
// e.g. when a child it spawned still holds stderr open
const waitDelay = 5 * time.Second

// Exec runs processes on the host
type Exec struct {
	// LogStderr streams the process' stderr line by line into the request log
	LogStderr bool
}

func (e Exec) Run(ctx context.Context, requestID, name string, args ...string) ([]byte, error) {
	start := time.Now()
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.WaitDelay = waitDelay

	var stdout bytes.Buffer
	tail := &tailWriter{}
	cmd.Stdout = &stdout
	if e.LogStderr {
		pr, pw := io.Pipe()
		streamed := make(chan struct{})
		defer func() {
			pw.Close()
			<-streamed
		}()
		cmd.Stderr = io.MultiWriter(tail, pw)
		go func() {
			defer close(streamed)
			streamOutput(requestID, name, pr)
		}()
	} else {
		cmd.Stderr = tail
	}

	err := cmd.Run()
	log.Log(requestID, "process finished", "process", name, "duration", time.Since(start), "success", err == nil)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return stdout.Bytes(), fmt.Errorf("%s: %w after %s [%s]", name, ErrTimeout, time.Since(start).Round(time.Millisecond), log.RedactLogs(tail.String(), "\n"))
		}
		return stdout.Bytes(), fmt.Errorf("%s failed: %w [%s]", name, err, log.RedactLogs(tail.String(), "\n"))
	}
	return stdout.Bytes(), nil
}
