package subprocess

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTailWriterKeepsLastLines(t *testing.T) {
	tw := &tailWriter{}
	for i := 0; i < 30; i++ {
		_, err := fmt.Fprintf(tw, "line %d\n", i)
		require.NoError(t, err)
	}
	_, _ = tw.Write([]byte("partial"))

	lines := strings.Split(tw.String(), "\n")
	require.Len(t, lines, maxTailLines)
	require.Equal(t, "line 11", lines[0])
	require.Equal(t, "partial", lines[len(lines)-1])
}

func TestTailWriterSplitsCarriageReturns(t *testing.T) {
	tw := &tailWriter{}
	for i := 0; i < 20000; i++ {
		_, err := fmt.Fprintf(tw, "frame=%d fps=25 q=28.0 size=1024kB time=00:00:10.00 bitrate=800kbits/s speed=1x    \r", i)
		require.NoError(t, err)
	}
	_, _ = tw.Write([]byte("Conversion failed!\n"))

	out := tw.String()
	lines := strings.Split(out, "\n")
	require.Len(t, lines, maxTailLines)
	require.Equal(t, "Conversion failed!", lines[len(lines)-1])
	require.Contains(t, lines[len(lines)-2], "frame=19999 ")
	require.Less(t, len(out), maxTailLines*(maxLineBytes+1))
}

func TestTailWriterCapsUnterminatedOutput(t *testing.T) {
	tw := &tailWriter{}
	chunk := strings.Repeat("a", 1000)
	for i := 0; i < 200; i++ {
		_, err := tw.Write([]byte(chunk))
		require.NoError(t, err)
	}
	_, _ = tw.Write([]byte("END"))
	require.LessOrEqual(t, len(tw.rest), maxLineBytes)

	out := tw.String()
	require.Len(t, out, maxLineBytes)
	require.True(t, strings.HasSuffix(out, "END"))
}

func TestExecReturnsStdout(t *testing.T) {
	out, err := Exec{}.Run(context.Background(), "req", "sh", "-c", "echo hello; echo ignored >&2")
	require.NoError(t, err)
	require.Equal(t, "hello\n", string(out))
}

func TestExecQuotesStderrOnFailure(t *testing.T) {
	_, err := Exec{LogStderr: true}.Run(context.Background(), "req", "sh", "-c", "echo something broke >&2; exit 3")
	require.Error(t, err)
	require.Contains(t, err.Error(), "something broke")
	require.Contains(t, err.Error(), "exit status 3")
}

func TestExecLogsLongStderrWithoutBlocking(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	start := time.Now()
	_, err := Exec{LogStderr: true}.Run(ctx, "req", "sh", "-c", "head -c 200000 /dev/zero | tr '\\0' 'a' >&2; exit 1")
	require.Error(t, err)
	require.Less(t, time.Since(start), 5*time.Second)
	require.Contains(t, err.Error(), "exit status 1")
	require.Less(t, len(err.Error()), 2*maxLineBytes)
}

func TestExecLogsCarriageReturnOutput(t *testing.T) {
	out, err := Exec{LogStderr: true}.Run(context.Background(), "req", "sh", "-c", "printf 'frame=1\\rframe=2\\r' >&2; echo done")
	require.NoError(t, err)
	require.Equal(t, "done\n", string(out))
}

func TestExecTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := Exec{}.Run(ctx, "req", "sleep", "5")
	require.True(t, errors.Is(err, ErrTimeout))
}

func TestRunnerFunc(t *testing.T) {
	var r Runner = RunnerFunc(func(ctx context.Context, requestID, name string, args ...string) ([]byte, error) {
		return []byte(name + " " + strings.Join(args, " ")), nil
	})
	out, err := r.Run(context.Background(), "req", "ffmpeg", "-i", "in.mp4")
	require.NoError(t, err)
	require.Equal(t, "ffmpeg -i in.mp4", string(out))
}
