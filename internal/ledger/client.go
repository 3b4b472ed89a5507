package ledger

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"gorm.io/datatypes"
)

// ErrUnavailable signals a ledger outage or timeout. Callers queue the
// event for retry; a local reconciliation decision never fails on it.
var ErrUnavailable = errors.New("ledger unavailable")

// Client anchors confirmed facts on the external tamper-evident log.
type Client interface {
	RecordEvent(ctx context.Context, eventType, payloadHash string, fields datatypes.JSONMap) (string, error)
}

// PayloadHash is the canonical event hash: SHA-256 hex over the JSON
// encoding of the payload.
func PayloadHash(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type recordEventRequest struct {
	EventType   string            `json:"event_type"`
	PayloadHash string            `json:"payload_hash"`
	Fields      datatypes.JSONMap `json:"fields,omitempty"`
}

type recordEventResponse struct {
	TransactionRef string `json:"transaction_ref"`
}

func (c *HTTPClient) RecordEvent(ctx context.Context, eventType, payloadHash string, fields datatypes.JSONMap) (string, error) {
	body, err := json.Marshal(recordEventRequest{
		EventType:   eventType,
		PayloadHash: payloadHash,
		Fields:      fields,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/events", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return "", fmt.Errorf("%w: ledger returned %d", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("ledger rejected event: status %d", resp.StatusCode)
	}

	var parsed recordEventResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: decoding response: %v", ErrUnavailable, err)
	}
	if parsed.TransactionRef == "" {
		return "", fmt.Errorf("%w: empty transaction ref", ErrUnavailable)
	}
	return parsed.TransactionRef, nil
}
