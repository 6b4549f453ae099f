package clients

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseStoreResponseVariants(t *testing.T) {
	cases := []struct {
		name     string
		body     string
		kind     string
		expected BlobUpload
	}{
		{
			name:     "cli newly created",
			body:     `[{"blobStoreResult":{"newlyCreated":{"blobObject":{"id":"0xabc","blobId":"blob-1","size":1024},"cost":1500}},"path":"/tmp/index0.ts"}]`,
			kind:     "newlyCreated",
			expected: BlobUpload{ContentID: "blob-1", CostUnits: 1500},
		},
		{
			name:     "publisher newly created",
			body:     `{"newlyCreated":{"blobObject":{"blobId":"blob-2"},"cost":20}}`,
			kind:     "newlyCreated",
			expected: BlobUpload{ContentID: "blob-2", CostUnits: 20},
		},
		{
			name:     "already certified",
			body:     `{"blobStoreResult":{"alreadyCertified":{"blobId":"blob-3","endEpoch":42}}}`,
			kind:     "alreadyCertified",
			expected: BlobUpload{ContentID: "blob-3", CostUnits: 0},
		},
		{
			name:     "marked deletable",
			body:     ` {"markedDeletable":{"blobId":"blob-4","cost":7}} `,
			kind:     "markedDeletable",
			expected: BlobUpload{ContentID: "blob-4", CostUnits: 7},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			outcome, err := ParseStoreResponse([]byte(tc.body))
			require.NoError(t, err)
			require.Equal(t, tc.kind, outcome.Kind())
			upload, err := NormalizeStoreOutcome(outcome)
			require.NoError(t, err)
			require.Equal(t, tc.expected, upload)
		})
	}
}

func TestParseStoreResponseErrors(t *testing.T) {
	_, err := ParseStoreResponse([]byte(""))
	require.ErrorContains(t, err, "empty store response")

	_, err = ParseStoreResponse([]byte(`{"newlyCreated":`))
	require.ErrorContains(t, err, "malformed store response")

	_, err = ParseStoreResponse([]byte(`{"somethingElse":{"blobId":"x"}}`))
	require.ErrorContains(t, err, "unknown store response shape")

	_, err = ParseStoreResponse([]byte(`[]`))
	require.ErrorContains(t, err, "expected a single store result, got 0")

	_, err = ParseStoreResponse([]byte(`[{"alreadyCertified":{"blobId":"a"}},{"alreadyCertified":{"blobId":"b"}}]`))
	require.ErrorContains(t, err, "got 2")

	_, err = ParseStoreResponse([]byte(`{"alreadyCertified":{"blobId":"a"},"markedDeletable":{"blobId":"a"}}`))
	require.ErrorContains(t, err, "ambiguous store response")

	_, err = ParseStoreResponse([]byte(`{"newlyCreated":{"cost":"lots"}}`))
	require.ErrorContains(t, err, "malformed newlyCreated store response")
}

func TestNormalizeRequiresBlobID(t *testing.T) {
	outcome, err := ParseStoreResponse([]byte(`{"newlyCreated":{"blobObject":{},"cost":5}}`))
	require.NoError(t, err)
	_, err = NormalizeStoreOutcome(outcome)
	require.ErrorContains(t, err, "no blob id")

	_, err = NormalizeStoreOutcome(MarkedDeletable{BlobID: "x", Cost: -1})
	require.ErrorContains(t, err, "negative cost")

	_, err = NormalizeStoreOutcome(nil)
	require.Error(t, err)
}
