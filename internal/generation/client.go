package generation

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jeni5888/mayalens/internal/domain"
)

// Request carries the generation parameters for one provider call.
type Request struct {
	JobID  string
	Prompt string
	Style  domain.Style
	Format domain.Format
}

// Asset is the raw generated image plus its content type.
type Asset struct {
	Data        []byte
	ContentType string
	Width       int
	Height      int
}

// Client is the adapter to the third-party image model API.
// Implementations classify failures as domain.ErrProviderTransient
// (network/5xx/timeout, retryable) or domain.ErrProviderPermanent
// (provider rejected the request, not retryable).
type Client interface {
	Generate(ctx context.Context, req Request) (*Asset, error)
}

// Options configures the HTTP client.
type Options struct {
	BaseURL     string
	APIKey      string
	Model       string
	CallTimeout time.Duration
	HTTPClient  *http.Client
}

type httpClient struct {
	baseURL     string
	apiKey      string
	model       string
	callTimeout time.Duration
	client      *http.Client
	logger      *zap.Logger
}

// NewHTTPClient creates a Client talking to the provider's REST endpoint.
func NewHTTPClient(opts Options, logger *zap.Logger) Client {
	timeout := opts.CallTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	return &httpClient{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		apiKey:      opts.APIKey,
		model:       opts.Model,
		callTimeout: timeout,
		client:      hc,
		logger:      logger,
	}
}

type generateRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	Style          string `json:"style"`
	ResponseFormat string `json:"response_format"`
	RequestID      string `json:"request_id,omitempty"`
}

type generateResponse struct {
	ImageB64    string `json:"image_b64"`
	ContentType string `json:"content_type"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Error       *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *httpClient) Generate(ctx context.Context, req Request) (*Asset, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	body, err := json.Marshal(generateRequest{
		Model:          c.model,
		Prompt:         req.Prompt,
		Style:          string(req.Style),
		ResponseFormat: string(req.Format),
		RequestID:      req.JobID,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", domain.ErrProviderPermanent, err)
	}

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+"/v1/images/generations", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", domain.ErrProviderPermanent, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		// Timeouts and connection errors are retryable by definition.
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderTransient, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", domain.ErrProviderTransient, err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := providerMessage(respBody)
		if retryableStatus(resp.StatusCode) {
			return nil, fmt.Errorf("%w: provider returned %d: %s", domain.ErrProviderTransient, resp.StatusCode, msg)
		}
		return nil, fmt.Errorf("%w: provider returned %d: %s", domain.ErrProviderPermanent, resp.StatusCode, msg)
	}

	var out generateResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", domain.ErrProviderTransient, err)
	}
	if out.Error != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrProviderPermanent, out.Error.Message)
	}

	data, err := base64.StdEncoding.DecodeString(out.ImageB64)
	if err != nil {
		return nil, fmt.Errorf("%w: decode image payload: %v", domain.ErrProviderTransient, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: provider returned empty image", domain.ErrProviderTransient)
	}

	contentType := out.ContentType
	if contentType == "" {
		contentType = req.Format.ContentType()
	}

	c.logger.Debug("Provider call succeeded",
		zap.String("job_id", req.JobID),
		zap.Int("bytes", len(data)),
	)

	return &Asset{
		Data:        data,
		ContentType: contentType,
		Width:       out.Width,
		Height:      out.Height,
	}, nil
}

// retryableStatus distinguishes flaky provider conditions from semantic
// rejections. 429 and 5xx recover on retry; any other 4xx never will.
func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

func providerMessage(body []byte) string {
	var out generateResponse
	if err := json.Unmarshal(body, &out); err == nil && out.Error != nil && out.Error.Message != "" {
		return out.Error.Message
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	if msg == "" {
		msg = "no error detail"
	}
	return msg
}
