// Package fingerprintapi speaks the fingerprint generation endpoint
// POST /api/v2/chain/gen/fingerprint, as a client and as a handler.
package fingerprintapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/codatta/codattaOnchainDataVerify/pkgs/canonical"
	"github.com/codatta/codattaOnchainDataVerify/pkgs/crypto"
	"github.com/codatta/codattaOnchainDataVerify/pkgs/submissions"
)

// Path is the route of the fingerprint generation endpoint
const Path = "/api/v2/chain/gen/fingerprint"

var ErrRequestFailed = errors.New("fingerprint request failed")

// Request is the endpoint body. SubmitData null means no submission JSON.
type Request struct {
	Address    string           `json:"address"`
	Quality    string           `json:"quality"`
	SubmitData *canonical.Value `json:"submit_data"`
}

// Response is the endpoint envelope
type Response struct {
	Code    int           `json:"code"`
	Message string        `json:"message"`
	Data    *ResponseData `json:"data"`
}

// ResponseData carries the fingerprint without its 0x prefix
type ResponseData struct {
	Fingerprint string `json:"fingerprint"`
}

// Client generates fingerprints through a remote endpoint
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new fingerprint endpoint client
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Generate implements crypto.FingerprintGenerator.
func (c *Client) Generate(ctx context.Context, input submissions.SubmissionInput) (crypto.Fingerprint, error) {
	data, err := json.Marshal(Request{
		Address:    input.WalletAddress,
		Quality:    string(input.Quality),
		SubmitData: input.SubmissionJSON,
	})
	if err != nil {
		return "", fmt.Errorf("%w: failed to marshal request: %v", ErrRequestFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+Path, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: failed to create request: %v", ErrRequestFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: failed to read response: %v", ErrRequestFailed, err)
	}

	var envelope Response
	if err := json.Unmarshal(body, &envelope); err != nil {
		return "", fmt.Errorf("%w: unexpected status code %d", ErrRequestFailed, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK || envelope.Code != 0 {
		return "", fmt.Errorf("%w: status %d code %d: %s", ErrRequestFailed, resp.StatusCode, envelope.Code, envelope.Message)
	}
	if envelope.Data == nil || strings.TrimSpace(envelope.Data.Fingerprint) == "" {
		return "", fmt.Errorf("%w: response carries no fingerprint", ErrRequestFailed)
	}

	fp := crypto.Fingerprint(envelope.Data.Fingerprint).Normalized()
	log.WithFields(log.Fields{
		"address":     input.WalletAddress,
		"fingerprint": fp,
	}).Debug("Received remote fingerprint")

	return fp, nil
}
