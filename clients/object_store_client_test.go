package clients

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const exampleFileContents = `{"type":"hls","segments":[{"index":0,"contentId":"blob-a","duration":10}],"thumbnailContentId":"blob-t"}`

func TestItCanDownloadAnOSURL(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "blob-id-set*.json")
	require.NoError(t, err)
	_, err = f.WriteString(exampleFileContents)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	rc, err := DownloadOSURL(context.Background(), f.Name())
	require.NoError(t, err)
	defer rc.Close()

	buf := new(strings.Builder)
	_, err = io.Copy(buf, rc)
	require.NoError(t, err)
	require.Equal(t, exampleFileContents, buf.String())
}

func TestItFailsWithInvalidURLs(t *testing.T) {
	_, err := DownloadOSURL(context.Background(), "s4+htps://123/456.json")
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to parse OS URL")
}

func TestItFailsWithMissingFile(t *testing.T) {
	_, err := DownloadOSURL(context.Background(), "/tmp/this/should/not/exist.json")
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to read from OS URL")
}

func TestArchiveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	a := NewOSArchiver(dir)

	require.NoError(t, a.Archive(context.Background(), "req", "job-1", []byte(exampleFileContents)))

	written, err := os.ReadFile(filepath.Join(dir, "job-1.json"))
	require.NoError(t, err)
	require.Equal(t, exampleFileContents, string(written))

	rc, err := DownloadOSURL(context.Background(), a.location("job-1"))
	require.NoError(t, err)
	defer rc.Close()
	fetched, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, exampleFileContents, string(fetched))
}
