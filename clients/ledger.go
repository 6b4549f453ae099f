package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/livepeer/catalyst-ingest/log"
	"github.com/livepeer/catalyst-ingest/metrics"
)

type LedgerRegistration struct {
	JobID              string  `json:"jobId"`
	Title              string  `json:"title"`
	Description        string  `json:"description"`
	Genre              string  `json:"genre"`
	DurationSeconds    float64 `json:"durationSeconds"`
	BlobIDSet          string  `json:"blobIdSet"`
	ThumbnailContentID string  `json:"thumbnailContentId"`
	PaymentProofID     string  `json:"paymentProofId,omitempty"`
}

type LedgerReceipt struct {
	LedgerContentID string `json:"contentId"`
	TxReference     string `json:"txReference"`
}

// LedgerRegistrar records a stored video on the external ledger
type LedgerRegistrar interface {
	RegisterContent(ctx context.Context, requestID string, reg LedgerRegistration) (LedgerReceipt, error)
}

type LedgerClient struct {
	baseURL    *url.URL
	token      string
	headers    map[string]string
	httpClient *retryablehttp.Client
}

func NewLedgerClient(baseURL *url.URL, token string, headers map[string]string) *LedgerClient {
	client := newHTTPClient(2, 30*time.Second)
	client.CheckRetry = metrics.HttpRetryHook
	return &LedgerClient{
		baseURL:    baseURL,
		token:      token,
		headers:    headers,
		httpClient: client,
	}
}

func (l *LedgerClient) RegisterContent(ctx context.Context, requestID string, reg LedgerRegistration) (LedgerReceipt, error) {
	body, err := json.Marshal(reg)
	if err != nil {
		return LedgerReceipt{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL.JoinPath("v1", "content").String(), bytes.NewReader(body))
	if err != nil {
		return LedgerReceipt{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	// retried requests must not register the same job twice
	req.Header.Set("Idempotency-Key", reg.JobID)
	if l.token != "" {
		req.Header.Set("Authorization", "Bearer "+l.token)
	}
	for k, v := range l.headers {
		req.Header.Set(k, v)
	}

	resp, err := metrics.MonitorRequest(metrics.Metrics.LedgerClient, l.httpClient.StandardClient(), req)
	if err != nil {
		return LedgerReceipt{}, fmt.Errorf("ledger request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return LedgerReceipt{}, fmt.Errorf("failed to read ledger response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return LedgerReceipt{}, fmt.Errorf("ledger returned HTTP %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var receipt LedgerReceipt
	if err := json.Unmarshal(respBody, &receipt); err != nil {
		return LedgerReceipt{}, fmt.Errorf("malformed ledger response: %w", err)
	}
	if receipt.LedgerContentID == "" || receipt.TxReference == "" {
		return LedgerReceipt{}, fmt.Errorf("ledger response is missing the content id or transaction reference")
	}
	log.Log(requestID, "registered content on ledger", "ledger_content_id", receipt.LedgerContentID, "tx", receipt.TxReference)
	return receipt, nil
}
