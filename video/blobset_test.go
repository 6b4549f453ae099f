package video

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlobIDSetWireFormat(t *testing.T) {
	set := StoredBlobIDSet{
		Type: BlobSetTypeHLS,
		Segments: []UploadedSegment{
			{Index: 0, ContentID: "blob-a", Duration: 10},
			{Index: 1, ContentID: "blob-b", Duration: 4.5},
		},
		ThumbnailContentID: "blob-thumb",
	}

	data, err := MarshalBlobIDSet(set)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"type": "hls",
		"segments": [
			{"index": 0, "contentId": "blob-a", "duration": 10},
			{"index": 1, "contentId": "blob-b", "duration": 4.5}
		],
		"thumbnailContentId": "blob-thumb"
	}`, string(data))

	parsed, err := ParseBlobIDSet(data)
	require.NoError(t, err)
	require.Equal(t, set, parsed)
	require.Equal(t, 14.5, parsed.TotalDuration())
}

func TestParseBlobIDSetRejectsBadInput(t *testing.T) {
	_, err := ParseBlobIDSet([]byte(`{"type":"dash","segments":[{"index":0,"contentId":"a"}],"thumbnailContentId":"t"}`))
	require.ErrorContains(t, err, `unsupported blob id set type "dash"`)

	_, err = ParseBlobIDSet([]byte(`{"type":"hls","segments":[{"index":1,"contentId":"a"}],"thumbnailContentId":"t"}`))
	require.ErrorContains(t, err, "position 0 has index 1")

	_, err = ParseBlobIDSet([]byte(`{"type":"hls","segments":[{"index":0,"contentId":""}],"thumbnailContentId":"t"}`))
	require.ErrorContains(t, err, "no content id")

	_, err = ParseBlobIDSet([]byte(`{"type":"hls","segments":[],"thumbnailContentId":"t"}`))
	require.ErrorContains(t, err, "no segments")

	_, err = ParseBlobIDSet([]byte(`not json`))
	require.ErrorContains(t, err, "failed to parse blob id set")
}

func TestMarshalBlobIDSetValidates(t *testing.T) {
	_, err := MarshalBlobIDSet(StoredBlobIDSet{Type: BlobSetTypeHLS, Segments: []UploadedSegment{{Index: 0, ContentID: "a"}}})
	require.ErrorContains(t, err, "no thumbnail")
}
