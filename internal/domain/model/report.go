package model

import "fmt"

// SessionAccount is one bound game account discovered for a credential.
// MaskedUID carries the display form with the leading digits redacted.
type SessionAccount struct {
	Biz       string
	UID       string
	MaskedUID string
	Nickname  string
	Level     int
	Region    string
}

// ClaimOutcome is the terminal state of one (session, game) claim cycle.
type ClaimOutcome string

const (
	OutcomeClaimed        ClaimOutcome = "claimed"
	OutcomeAlreadyClaimed ClaimOutcome = "already_claimed"
	OutcomeManualRequired ClaimOutcome = "manual_required"
	OutcomeCatalogError   ClaimOutcome = "catalog_error"
	OutcomeClaimFailed    ClaimOutcome = "claim_failed"
	OutcomeBlocked        ClaimOutcome = "blocked"
	OutcomeUnsolvable     ClaimOutcome = "unsolvable"
)

// IsError reports whether the outcome belongs to the error class.
// Manual-required is informational, not an error.
func (o ClaimOutcome) IsError() bool {
	switch o {
	case OutcomeCatalogError, OutcomeClaimFailed, OutcomeBlocked, OutcomeUnsolvable:
		return true
	}
	return false
}

type Reward struct {
	Name  string
	Count int
	Icon  string
}

// GameResult is the immutable record of one finished claim cycle.
// TotalSignDay already reflects today when the claim succeeded fresh.
type GameResult struct {
	Biz          string
	GameName     string
	Account      SessionAccount
	TotalSignDay int
	Reward       Reward
	Outcome      ClaimOutcome
	Status       string
}

// SessionReport is the aggregate handed to the report sink: per-game
// results in discovery order, game-level error lines mirrored from
// error-class outcomes, and session-level errors in their own bucket.
type SessionReport struct {
	Results       []GameResult
	GameErrors    []string
	SessionErrors []string
}

// Aggregate builds a SessionReport. Result order is preserved as given;
// every error-class result contributes one line to GameErrors.
func Aggregate(results []GameResult, sessionErrors []string) SessionReport {
	report := SessionReport{
		Results:       append([]GameResult(nil), results...),
		SessionErrors: append([]string(nil), sessionErrors...),
	}
	for _, res := range results {
		if res.Outcome.IsError() {
			report.GameErrors = append(report.GameErrors, fmt.Sprintf("%s: %s", res.GameName, res.Status))
		}
	}
	return report
}

// ResultFor returns the result recorded for a game_biz, if any.
func (r SessionReport) ResultFor(biz string) (GameResult, bool) {
	for _, res := range r.Results {
		if res.Biz == biz {
			return res, true
		}
	}
	return GameResult{}, false
}

// HasErrors reports whether any game- or session-level error exists.
func (r SessionReport) HasErrors() bool {
	return len(r.GameErrors) > 0 || len(r.SessionErrors) > 0
}
