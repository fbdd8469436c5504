package storefront

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

	"github.com/layer-3/storefront/core"
)

const (
	walletPath = "/api/auth/wallet"
	mePath     = "/api/me"
)

// HTTPClient talks to the auth service over HTTP
type HTTPClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

var _ Client = (*HTTPClient)(nil)

// NewClient creates a client for the service at baseURL
func NewClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *HTTPClient) Challenge(ctx context.Context, address string) (*core.Challenge, error) {
	var out challengeResponse
	if err := c.post(ctx, authRequest{Action: "generate", Address: address}, &out); err != nil {
		return nil, err
	}

	if out.Payload == nil {
		return nil, fmt.Errorf("%w: missing payload", ErrInvalidResponse)
	}
	return out.Payload, nil
}

func (c *HTTPClient) Login(ctx context.Context, challenge *core.Challenge, signature, address string) (*Session, error) {
	var out loginResponse
	err := c.post(ctx, authRequest{
		Action:    "verify",
		Address:   address,
		Payload:   challenge,
		Signature: signature,
	}, &out)
	if err != nil {
		return nil, err
	}

	if !out.Success || out.Session == nil {
		return nil, fmt.Errorf("%w: missing session", ErrInvalidResponse)
	}
	return out.Session, nil
}

func (c *HTTPClient) SignIn(ctx context.Context, signer Signer) (*Session, error) {
	address := signer.Address()

	challenge, err := c.Challenge(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to request challenge: %w", err)
	}

	signature, err := signer.SignMessage(challenge.Message())
	if err != nil {
		return nil, fmt.Errorf("failed to sign challenge: %w", err)
	}

	session, err := c.Login(ctx, challenge, signature, address)
	if err != nil {
		return nil, fmt.Errorf("failed to log in: %w", err)
	}
	return session, nil
}

func (c *HTTPClient) Me(ctx context.Context, accessToken string) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+mePath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	var profile Profile
	if err := c.do(req, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (c *HTTPClient) post(ctx context.Context, body authRequest, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+walletPath, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *HTTPClient) do(req *http.Request, out any) error {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	apiErr := &APIError{StatusCode: resp.StatusCode}
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
	}
	return apiErr
}

// IsInvalidSignature reports whether err is a signature/address mismatch and
// returns the server's view of both addresses
func IsInvalidSignature(err error) (expected, received string, ok bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) && errors.Is(apiErr, ErrInvalidSignature) {
		return apiErr.Expected, apiErr.Received, true
	}
	return "", "", false
}
