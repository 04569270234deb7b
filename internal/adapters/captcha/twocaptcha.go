package captcha

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	baseURL         = "https://api.2captcha.com"
	createTaskPath  = "/createTask"
	getResultPath   = "/getTaskResult"
	geeTestType     = "GeeTestTaskProxyless"
	defaultPollWait = 5 * time.Second
	defaultCooldown = 2500 * time.Millisecond
)

// TwoCaptcha is the legacy backend. Its service rate-limits calls made
// in quick succession, so every successful solve is followed by a fixed
// cooldown before control returns to the caller.
type TwoCaptcha struct {
	client       *http.Client
	baseURL      string
	apiKey       string
	waitInterval time.Duration
	cooldown     time.Duration

	// The rate limit is backend-wide, not per call. One instance is
	// shared by every session goroutine, so solves are serialized and
	// the cooldown is held under the lock.
	mu sync.Mutex
}

func NewTwoCaptcha(apiKey string) *TwoCaptcha {
	return &TwoCaptcha{
		client:       &http.Client{Timeout: 30 * time.Second},
		baseURL:      baseURL,
		apiKey:       strings.TrimSpace(apiKey),
		waitInterval: defaultPollWait,
		cooldown:     defaultCooldown,
	}
}

func (tc *TwoCaptcha) Name() string { return "2Captcha" }

type createTaskRequest struct {
	ClientKey string      `json:"clientKey"`
	Task      interface{} `json:"task"`
}

type geeTestTask struct {
	Type       string `json:"type"`
	WebsiteURL string `json:"websiteURL"`
	Gt         string `json:"gt"`
	Challenge  string `json:"challenge"`
}

type createTaskResponse struct {
	ErrorID          int    `json:"errorId"`
	TaskID           int64  `json:"taskId"`
	ErrorCode        string `json:"errorCode"`
	ErrorDescription string `json:"errorDescription"`
}

type resultRequest struct {
	ClientKey string `json:"clientKey"`
	TaskID    int64  `json:"taskId"`
}

type getResultResponse struct {
	ErrorID  int    `json:"errorId"`
	Status   string `json:"status"`
	Solution struct {
		Challenge string `json:"challenge"`
		Validate  string `json:"validate"`
		Seccode   string `json:"seccode"`
	} `json:"solution"`
	ErrorCode        string `json:"errorCode"`
	ErrorDescription string `json:"errorDescription"`
}

func (tc *TwoCaptcha) SolveGeeTest(ctx context.Context, gt, challenge, pageURL string) (Solution, error) {
	if tc.apiKey == "" {
		return Solution{}, errors.New("2captcha api key not provided")
	}
	if gt == "" || challenge == "" {
		return Solution{}, errors.New("2captcha gt and challenge tokens required")
	}
	if pageURL == "" {
		return Solution{}, errors.New("2captcha page url required")
	}

	tc.mu.Lock()
	defer tc.mu.Unlock()

	createPayload := createTaskRequest{
		ClientKey: tc.apiKey,
		Task: geeTestTask{
			Type:       geeTestType,
			WebsiteURL: pageURL,
			Gt:         gt,
			Challenge:  challenge,
		},
	}
	var createResp createTaskResponse
	if err := tc.postJSON(ctx, createTaskPath, createPayload, &createResp); err != nil {
		return Solution{}, err
	}
	if createResp.ErrorID != 0 {
		if strings.EqualFold(createResp.ErrorCode, TwoErrZeroBalance) {
			return Solution{}, ErrZeroBalance
		}
		return Solution{}, fmt.Errorf("2captcha createTask error: %s - %s", createResp.ErrorCode, createResp.ErrorDescription)
	}

	for {
		if err := sleepCtx(ctx, tc.waitInterval); err != nil {
			return Solution{}, err
		}

		var result getResultResponse
		req := resultRequest{ClientKey: tc.apiKey, TaskID: createResp.TaskID}
		if err := tc.postJSON(ctx, getResultPath, req, &result); err != nil {
			return Solution{}, err
		}

		if result.ErrorID != 0 {
			if strings.EqualFold(result.ErrorCode, TwoErrZeroBalance) {
				return Solution{}, ErrZeroBalance
			}
			return Solution{}, fmt.Errorf("2captcha getTaskResult error: %s - %s", result.ErrorCode, result.ErrorDescription)
		}

		switch strings.ToLower(result.Status) {
		case "processing":
			continue
		case "ready":
			solution := Solution{
				Challenge: result.Solution.Challenge,
				Validate:  result.Solution.Validate,
				Seccode:   result.Solution.Seccode,
			}
			if solution.Validate == "" {
				return Solution{}, errors.New("2captcha returned empty validate token")
			}
			if solution.Challenge == "" {
				solution.Challenge = challenge
			}
			if solution.Seccode == "" {
				solution.Seccode = solution.Validate + "|jordan"
			}
			if err := sleepCtx(ctx, tc.cooldown); err != nil {
				return Solution{}, err
			}
			return solution, nil
		default:
			return Solution{}, fmt.Errorf("unexpected 2captcha status: %s", result.Status)
		}
	}
}

func (tc *TwoCaptcha) postJSON(ctx context.Context, path string, payload interface{}, out interface{}) error {
	endpoint := fmt.Sprintf("%s%s", tc.baseURL, path)
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("request error: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 400 {
		return fmt.Errorf("2captcha http error: %s", res.Status)
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
