package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Golumpa/hoyolab-auto-login/internal/domain/model"
	"github.com/Golumpa/hoyolab-auto-login/internal/platform/logger"
	"github.com/Golumpa/hoyolab-auto-login/pkg/utils"
)

type HTTPError struct {
	StatusCode int
	Status     string
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP Error %d: %s", e.StatusCode, e.Status)
}

type FetchOptions struct {
	Method            string
	Body              interface{}
	AdditionalHeaders map[string]string
}

// APIClient talks to the HoYoLAB endpoints. The session cookie blob is
// attached verbatim to every request; the platform never receives
// anything it could use to mutate it.
type APIClient struct {
	Cookie     string
	UserAgent  string
	HTTPClient *http.Client
	Log        *logger.ClassLogger
}

func NewAPIClient(cookie string, timeout time.Duration, session *model.Session) *APIClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	apiClient := &APIClient{
		Cookie:    strings.TrimSpace(cookie),
		UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36",
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
	apiClient.Log = logger.NewLogger(apiClient, session)

	return apiClient
}

func (c *APIClient) generateHeaders() map[string]string {
	return map[string]string{
		"Accept":          "application/json, text/plain, */*",
		"Accept-Language": "en-US,en;q=0.9",
		"Content-Type":    "application/json;charset=UTF-8",
		"User-Agent":      c.UserAgent,
		"Cache-Control":   "no-cache",
		"Pragma":          "no-cache",
		"Origin":          "https://act.hoyolab.com",
		"Referer":         "https://act.hoyolab.com/",
		"Cookie":          c.Cookie,
	}
}

// Fetch issues one request and decodes nothing; callers unmarshal the
// returned body into their typed response envelope.
func (c *APIClient) Fetch(ctx context.Context, endpoint string, opts *FetchOptions) ([]byte, error) {
	if opts == nil {
		opts = &FetchOptions{}
	}

	if opts.Method == "" {
		opts.Method = http.MethodGet
	}

	var reqBody io.Reader
	hasBody := opts.Method != http.MethodGet && opts.Body != nil
	var bodyBytes []byte
	if hasBody {
		var err error
		bodyBytes, err = json.Marshal(opts.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, opts.Method, endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range c.generateHeaders() {
		req.Header.Set(key, value)
	}
	for key, value := range opts.AdditionalHeaders {
		req.Header.Set(key, value)
	}
	if !hasBody {
		req.Header.Del("Content-Type")
	}

	if hasBody {
		c.Log.JustLog(fmt.Sprintf("%s %s\nBody:\n%s", opts.Method, endpoint, utils.BeautifyJSON(bodyBytes)))
	} else {
		c.Log.JustLog(fmt.Sprintf("%s %s", opts.Method, endpoint))
	}

	res, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request error: %w", err)
	}
	defer res.Body.Close()

	resBodyBytes, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	c.Log.JustLog(fmt.Sprintf("Response Body:\n%s", utils.BeautifyJSON(resBodyBytes)))

	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return resBodyBytes, nil
	}

	return nil, &HTTPError{
		StatusCode: res.StatusCode,
		Status:     res.Status,
		Body:       resBodyBytes,
	}
}
