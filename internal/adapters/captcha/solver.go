package captcha

import (
	"context"
	"strings"
)

// Solution is the normalized GeeTest verification triple. Both backends
// are translated into this shape at the adapter boundary.
type Solution struct {
	Challenge string `json:"challenge"`
	Validate  string `json:"validate"`
	Seccode   string `json:"seccode"`
}

// Solver resolves one GeeTest challenge. Challenge tokens are single
// use; callers must fetch a fresh descriptor for every call.
type Solver interface {
	Name() string
	SolveGeeTest(ctx context.Context, gt, challenge, pageURL string) (Solution, error)
}

// Select picks the backend for this process. A configured 2Captcha key
// wins outright; CapSolver is only used when no 2Captcha key exists.
// Never both for one challenge.
func Select(twoCaptchaKey, capSolverKey string) (Solver, error) {
	if strings.TrimSpace(twoCaptchaKey) != "" {
		return NewTwoCaptcha(twoCaptchaKey), nil
	}
	if strings.TrimSpace(capSolverKey) != "" {
		return NewCapSolver(capSolverKey), nil
	}
	return nil, ErrNotConfigured
}
