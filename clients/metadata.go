package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/livepeer/catalyst-ingest/metrics"
	"github.com/patrickmn/go-cache"
)

type MovieMetadata struct {
	Title     string
	Year      string
	Plot      string
	Genre     string
	Director  string
	Actors    string
	PosterURL string
	IMDbID    string
}

// MetadataLookup finds third party metadata for an uploaded file. A nil
// result with no error means nothing matched.
type MetadataLookup interface {
	SearchByFilename(ctx context.Context, filename string) (*MovieMetadata, error)
}

type omdbResponse struct {
	Response string `json:"Response"`
	Error    string `json:"Error"`
	Title    string `json:"Title"`
	Year     string `json:"Year"`
	Plot     string `json:"Plot"`
	Genre    string `json:"Genre"`
	Director string `json:"Director"`
	Actors   string `json:"Actors"`
	Poster   string `json:"Poster"`
	IMDbID   string `json:"imdbID"`
}

// OMDbClient queries an OMDb compatible API by title. Results, including
// misses, are cached.
type OMDbClient struct {
	baseURL    *url.URL
	apiKey     string
	httpClient *retryablehttp.Client
	cache      *cache.Cache
}

func NewOMDbClient(baseURL *url.URL, apiKey string) *OMDbClient {
	client := newHTTPClient(1, 10*time.Second)
	client.CheckRetry = metrics.HttpRetryHook
	return &OMDbClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: client,
		cache:      cache.New(6*time.Hour, 30*time.Minute),
	}
}

func (o *OMDbClient) SearchByFilename(ctx context.Context, filename string) (*MovieMetadata, error) {
	title, year := TitleFromFilename(filename)
	if title == "" {
		return nil, nil
	}
	cacheKey := strings.ToLower(title) + "|" + year
	if cached, found := o.cache.Get(cacheKey); found {
		return cached.(*MovieMetadata), nil
	}

	u := *o.baseURL
	q := u.Query()
	q.Set("t", title)
	if year != "" {
		q.Set("y", year)
	}
	if o.apiKey != "" {
		q.Set("apikey", o.apiKey)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := metrics.MonitorRequest(metrics.Metrics.MetadataClient, o.httpClient.StandardClient(), req)
	if err != nil {
		return nil, fmt.Errorf("metadata lookup failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("metadata lookup returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	var r omdbResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("malformed metadata response: %w", err)
	}

	var md *MovieMetadata
	if strings.EqualFold(r.Response, "true") {
		md = &MovieMetadata{
			Title:     r.Title,
			Year:      r.Year,
			Plot:      notAvailable(r.Plot),
			Genre:     notAvailable(r.Genre),
			Director:  notAvailable(r.Director),
			Actors:    notAvailable(r.Actors),
			PosterURL: notAvailable(r.Poster),
			IMDbID:    r.IMDbID,
		}
	}
	o.cache.SetDefault(cacheKey, md)
	return md, nil
}

func notAvailable(s string) string {
	if s == "N/A" {
		return ""
	}
	return s
}

var (
	bracketed   = regexp.MustCompile(`[\[\(\{][^\]\)\}]*[\]\)\}]`)
	yearPattern = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	// release tags that end the title part of a filename
	releaseTags = regexp.MustCompile(`(?i)\b(2160p|1080p|720p|480p|4k|uhd|hdr|bluray|brrip|bdrip|web-?dl|webrip|hdtv|dvdrip|x264|x265|h264|h265|hevc|aac|remux|proper|repack)\b`)
)

// TitleFromFilename turns "The.Matrix.1999.1080p.BluRay.mp4" into
// ("The Matrix", "1999")
func TitleFromFilename(filename string) (title, year string) {
	name := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	name = strings.NewReplacer(".", " ", "_", " ", "-", " ").Replace(name)

	if m := yearPattern.FindStringIndex(name); m != nil && m[0] > 0 {
		year = name[m[0]:m[1]]
		name = name[:m[0]]
	}
	if m := releaseTags.FindStringIndex(name); m != nil && m[0] > 0 {
		name = name[:m[0]]
	}
	name = bracketed.ReplaceAllString(name, " ")
	name = strings.NewReplacer("(", " ", ")", " ", "[", " ", "]", " ", "{", " ", "}", " ").Replace(name)
	return strings.Join(strings.Fields(name), " "), year
}
