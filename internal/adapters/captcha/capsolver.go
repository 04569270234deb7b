package captcha

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
)

const (
	capsolverBaseURL     = "https://api.capsolver.com"
	capsolverCreateTask  = "/createTask"
	capsolverGetResult   = "/getTaskResult"
	capsolverGeeTestType = "GeeTestTaskProxyLess"
	defaultPollDelay     = 5 * time.Second
)

type CapSolver struct {
	client       *http.Client
	baseURL      string
	apiKey       string
	pollInterval time.Duration
}

func NewCapSolver(apiKey string) *CapSolver {
	return &CapSolver{
		client:       &http.Client{Timeout: 30 * time.Second},
		baseURL:      capsolverBaseURL,
		apiKey:       strings.TrimSpace(apiKey),
		pollInterval: defaultPollDelay,
	}
}

func (c *CapSolver) Name() string { return "CapSolver" }

type capCreateTaskReq struct {
	ClientKey string      `json:"clientKey"`
	Task      interface{} `json:"task"`
}

type capGeeTestTask struct {
	Type       string `json:"type"`
	WebsiteURL string `json:"websiteURL"`
	Gt         string `json:"gt"`
	Challenge  string `json:"challenge"`
}

type capCreateTaskResp struct {
	ErrorCode string `json:"errorCode"`
	TaskID    string `json:"taskId"`
}

type capResultReq struct {
	ClientKey string `json:"clientKey"`
	TaskID    string `json:"taskId"`
}

type capResultResp struct {
	ErrorCode string `json:"errorCode"`
	Status    string `json:"status"`
	Solution  struct {
		Challenge string `json:"challenge"`
		Validate  string `json:"validate"`
		Seccode   string `json:"seccode"`
	} `json:"solution"`
}

func (c *CapSolver) SolveGeeTest(ctx context.Context, gt, challenge, pageURL string) (Solution, error) {
	if c.apiKey == "" {
		return Solution{}, errors.New("capsolver api key not provided")
	}
	if strings.TrimSpace(gt) == "" || strings.TrimSpace(challenge) == "" {
		return Solution{}, errors.New("capsolver gt and challenge tokens required")
	}
	if strings.TrimSpace(pageURL) == "" {
		return Solution{}, errors.New("capsolver page url required")
	}

	createPayload := capCreateTaskReq{
		ClientKey: c.apiKey,
		Task: capGeeTestTask{
			Type:       capsolverGeeTestType,
			WebsiteURL: pageURL,
			Gt:         gt,
			Challenge:  challenge,
		},
	}
	var createResp capCreateTaskResp
	if err := c.postJSON(ctx, capsolverCreateTask, createPayload, &createResp); err != nil {
		return Solution{}, err
	}
	if createResp.ErrorCode != "" {
		if strings.EqualFold(createResp.ErrorCode, CapErrZeroBalance) {
			return Solution{}, ErrZeroBalance
		}
		return Solution{}, fmt.Errorf("capsolver createTask error: %s", createResp.ErrorCode)
	}
	if strings.TrimSpace(createResp.TaskID) == "" {
		return Solution{}, errors.New("capsolver returned empty task id")
	}

	for {
		if err := sleepCtx(ctx, c.pollInterval); err != nil {
			return Solution{}, err
		}
		var result capResultResp
		if err := c.postJSON(ctx, capsolverGetResult, capResultReq{ClientKey: c.apiKey, TaskID: createResp.TaskID}, &result); err != nil {
			return Solution{}, err
		}
		if result.ErrorCode != "" {
			if strings.EqualFold(result.ErrorCode, CapErrZeroBalance) {
				return Solution{}, ErrZeroBalance
			}
			return Solution{}, fmt.Errorf("capsolver getTaskResult error: %s", result.ErrorCode)
		}
		switch strings.ToLower(strings.TrimSpace(result.Status)) {
		case "processing", "queued":
			continue
		case "ready", "completed":
			solution := Solution{
				Challenge: result.Solution.Challenge,
				Validate:  result.Solution.Validate,
				Seccode:   result.Solution.Seccode,
			}
			if strings.TrimSpace(solution.Validate) == "" {
				return Solution{}, errors.New("capsolver returned empty validate token")
			}
			if solution.Challenge == "" {
				solution.Challenge = challenge
			}
			// CapSolver omits seccode for GeeTest v3 tasks.
			if solution.Seccode == "" {
				solution.Seccode = solution.Validate + "|jordan"
			}
			return solution, nil
		default:
			return Solution{}, fmt.Errorf("unexpected capsolver status: %s", result.Status)
		}
	}
}

func (c *CapSolver) postJSON(ctx context.Context, path string, payload interface{}, out interface{}) error {
	endpoint := fmt.Sprintf("%s%s", c.baseURL, path)
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("capsolver encode error: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("capsolver request build error: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("capsolver http error: %w", err)
	}
	defer res.Body.Close()

	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("capsolver read error: %w", err)
	}

	if res.StatusCode >= 400 {
		return fmt.Errorf("capsolver status %s body=%s", res.Status, strings.TrimSpace(string(resBody)))
	}

	if err := json.Unmarshal(resBody, out); err != nil {
		return fmt.Errorf("capsolver decode error: %w", err)
	}
	return nil
}
