package subprocess

import (
	"bufio"
	"bytes"
	"io"
	"strings"

	"github.com/livepeer/catalyst-ingest/log"
)

const (
	// maxTailLines caps how much process output is quoted in errors
	maxTailLines = 20
	// maxLineBytes caps a single quoted line, only its end is kept
	maxLineBytes = 512
	// maxStreamedLineBytes is the longest line streamOutput logs whole
	maxStreamedLineBytes = 1024 * 1024
)

// tailWriter keeps the last lines written to it, so that failures can quote
// the end of a process' stderr without holding all of it in memory. Both \n
// and \r end a line, ffmpeg rewrites its stats line with \r.
type tailWriter struct {
	lines []string
	rest  []byte
}

func (t *tailWriter) Write(p []byte) (int, error) {
	t.rest = append(t.rest, p...)
	for {
		i := bytes.IndexAny(t.rest, "\r\n")
		if i < 0 {
			break
		}
		t.push(string(t.rest[:i]))
		t.rest = t.rest[i+1:]
	}
	if len(t.rest) > maxLineBytes {
		t.rest = append(t.rest[:0], t.rest[len(t.rest)-maxLineBytes:]...)
	}
	return len(p), nil
}

func (t *tailWriter) push(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	if len(line) > maxLineBytes {
		line = line[len(line)-maxLineBytes:]
	}
	t.lines = append(t.lines, line)
	if len(t.lines) > maxTailLines {
		t.lines = t.lines[len(t.lines)-maxTailLines:]
	}
}

func (t *tailWriter) String() string {
	if len(t.rest) > 0 {
		t.push(string(t.rest))
		t.rest = nil
	}
	return strings.Join(t.lines, "\n")
}

// streamOutput logs every line of src against the request. It always reads
// src to EOF so that the writing end never blocks.
func streamOutput(requestID, name string, src io.Reader) {
	s := bufio.NewScanner(src)
	s.Buffer(make([]byte, 64*1024), maxStreamedLineBytes)
	s.Split(scanLines)
	for s.Scan() {
		if line := strings.TrimSpace(s.Text()); line != "" {
			log.Log(requestID, "process output", "process", name, "line", line)
		}
	}
	if err := s.Err(); err != nil {
		log.LogError(requestID, "stopped logging process output", err, "process", name)
	}
	_, _ = io.Copy(io.Discard, src)
}

// scanLines is bufio.ScanLines that also splits on \r
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
