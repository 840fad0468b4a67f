package gemini

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zeebo/blake3"

	apierrors "github.com/sowankispassah/khasigpt-sub005/internal/errors"
)

// APIKeyHeader carries the static API key.
const APIKeyHeader = "x-goog-api-key"

const maxErrorBody = 1 << 20

// Client sends generateContent requests to the generation endpoint.
type Client struct {
	// baseURL is the API root including the version segment,
	// e.g. "https://generativelanguage.googleapis.com/v1beta".
	// "/v1beta" is appended when the configured URL carries no version.
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

// NewClient constructs a Client with the given base URL, per-call timeout and
// optional proxy URL. proxyURL may be empty to use the environment proxy.
func NewClient(baseURL string, timeout time.Duration, proxyURL string) *Client {
	base := strings.TrimRight(baseURL, "/")
	if !strings.HasSuffix(base, "/v1beta") && !strings.HasSuffix(base, "/v1") {
		base += "/v1beta"
	}

	transport := &http.Transport{}
	if proxyURL != "" {
		parsed, err := url.Parse(proxyURL)
		if err == nil {
			transport.Proxy = http.ProxyURL(parsed)
		}
	} else {
		transport.Proxy = http.ProxyFromEnvironment
	}

	return &Client{
		baseURL: base,
		timeout: timeout,
		// The deadline lives on the request context so that it is reported
		// as a cancellation, not a transport failure.
		httpClient: &http.Client{Transport: transport},
	}
}

// Exchange is one executed call: the serialized request and the raw
// response body.
type Exchange struct {
	RequestBody []byte
	Digest      string
	Raw         []byte
}

// Digest fingerprints a serialized request body.
func Digest(body []byte) string {
	sum := blake3.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func (c *Client) endpoint(model string) string {
	model = strings.TrimPrefix(model, "models/")
	return c.baseURL + "/models/" + url.PathEscape(model) + ":generateContent"
}

// GenerateContent performs one POST and returns the raw body of a 2xx reply.
// Non-2xx replies become *ProtocolError; an aborted wait becomes a
// cancellation error.
func (c *Client) GenerateContent(ctx context.Context, model, apiKey string, headers http.Header, req *GenerateContentRequest) (*Exchange, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	ex := &Exchange{RequestBody: body, Digest: Digest(body)}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(model), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for name, values := range headers {
		for _, v := range values {
			httpReq.Header.Add(name, v)
		}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(APIKeyHeader, apiKey)

	slog.Debug("generation request", "model", model, "digest", ex.Digest, "bytes", len(body))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, apierrors.Canceled(ctxErr)
		}
		return nil, fmt.Errorf("generation request: %w", err)
	}
	defer resp.Body.Close()

	slog.Debug("generation response", "model", model, "digest", ex.Digest, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		text := string(raw)
		if readErr != nil {
			text = http.StatusText(resp.StatusCode)
		}
		return nil, &apierrors.ProtocolError{StatusCode: resp.StatusCode, Body: text}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, apierrors.Canceled(ctxErr)
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, apierrors.Canceled(err)
		}
		return nil, fmt.Errorf("read response: %w", err)
	}
	ex.Raw = raw
	return ex, nil
}
