package escrow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/huangang/fundgate/pkg/logger"
)

// HTTPClient talks to an escrow gateway over JSON/HTTP.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type fundPayload struct {
	SubjectID string `json:"subject_id"`
	Amount    string `json:"amount"`
	Address   string `json:"address"`
	TxHash    string `json:"tx_hash"`
}

type releasePayload struct {
	SubjectID   string `json:"subject_id"`
	MilestoneID string `json:"milestone_id"`
	Amount      string `json:"amount"`
	Address     string `json:"address"`
	TxHash      string `json:"tx_hash"`
}

type verifyResponse struct {
	TxHash string `json:"tx_hash"`
	Status Status `json:"status"`
}

func (c *HTTPClient) Fund(ctx context.Context, req FundRequest) (*Receipt, error) {
	var receipt Receipt
	err := c.do(ctx, http.MethodPost, "/v1/escrow/fund", fundPayload{
		SubjectID: req.SubjectID,
		Amount:    req.Amount.String(),
		Address:   req.Address,
		TxHash:    req.TxHash,
	}, &receipt)
	if err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (c *HTTPClient) Release(ctx context.Context, req ReleaseRequest) (*Receipt, error) {
	var receipt Receipt
	err := c.do(ctx, http.MethodPost, "/v1/escrow/release", releasePayload{
		SubjectID:   req.SubjectID,
		MilestoneID: req.MilestoneID,
		Amount:      req.Amount.String(),
		Address:     req.Address,
		TxHash:      req.TxHash,
	}, &receipt)
	if err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (c *HTTPClient) Verify(ctx context.Context, txHash string) (Status, error) {
	var resp verifyResponse
	if err := c.do(ctx, http.MethodGet, "/v1/transactions/"+url.PathEscape(txHash), nil, &resp); err != nil {
		return "", err
	}
	switch resp.Status {
	case StatusSuccess, StatusFailed, StatusPending:
		return resp.Status, nil
	default:
		return "", fmt.Errorf("escrow: unexpected status %q for %s", resp.Status, txHash)
	}
}

func (c *HTTPClient) do(ctx context.Context, method, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("escrow: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	logger.Debug().Str("method", method).Str("path", path).Int("status", resp.StatusCode).Msg("[Escrow] response")

	if resp.StatusCode == http.StatusNotFound {
		return ErrUnknownTransaction
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("escrow: %s %s returned status %d: %s", method, path, resp.StatusCode, string(respBody))
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	return json.Unmarshal(respBody, out)
}
