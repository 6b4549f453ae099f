package clients

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTitleFromFilename(t *testing.T) {
	cases := []struct{ in, title, year string }{
		{"The.Matrix.1999.1080p.BluRay.x264.mp4", "The Matrix", "1999"},
		{"/uploads/big_buck_bunny_720p.mov", "big buck bunny", ""},
		{"Alien (1979) [Remastered].mkv", "Alien", "1979"},
		{"2001.mp4", "2001", ""},
		{"clip.mp4", "clip", ""},
	}
	for _, tc := range cases {
		title, year := TitleFromFilename(tc.in)
		require.Equal(t, tc.title, title, tc.in)
		require.Equal(t, tc.year, year, tc.in)
	}
}

func TestSearchByFilename(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		require.Equal(t, "key", r.URL.Query().Get("apikey"))
		switch r.URL.Query().Get("t") {
		case "The Matrix":
			require.Equal(t, "1999", r.URL.Query().Get("y"))
			_, _ = w.Write([]byte(`{"Response":"True","Title":"The Matrix","Year":"1999","Genre":"Action, Sci-Fi","Plot":"N/A","Poster":"https://img/matrix.jpg","imdbID":"tt0133093"}`))
		default:
			_, _ = w.Write([]byte(`{"Response":"False","Error":"Movie not found!"}`))
		}
	}))
	defer srv.Close()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	c := NewOMDbClient(u, "key")

	md, err := c.SearchByFilename(context.Background(), "The.Matrix.1999.mp4")
	require.NoError(t, err)
	require.Equal(t, &MovieMetadata{
		Title:     "The Matrix",
		Year:      "1999",
		Genre:     "Action, Sci-Fi",
		PosterURL: "https://img/matrix.jpg",
		IMDbID:    "tt0133093",
	}, md)

	// served from the cache
	_, err = c.SearchByFilename(context.Background(), "The.Matrix.1999.mp4")
	require.NoError(t, err)
	require.Equal(t, int32(1), atomic.LoadInt32(&requests))

	md, err = c.SearchByFilename(context.Background(), "home_video.mp4")
	require.NoError(t, err)
	require.Nil(t, md)
	_, _ = c.SearchByFilename(context.Background(), "home_video.mp4")
	require.Equal(t, int32(2), atomic.LoadInt32(&requests), "misses are cached too")
}

func TestSearchByFilenameServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	_, err = NewOMDbClient(u, "bad").SearchByFilename(context.Background(), "clip.mp4")
	require.ErrorContains(t, err, "HTTP 401")
}
