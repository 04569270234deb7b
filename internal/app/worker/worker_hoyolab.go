package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Golumpa/hoyolab-auto-login/internal/adapters/captcha"
	adhttp "github.com/Golumpa/hoyolab-auto-login/internal/adapters/http"
	"github.com/Golumpa/hoyolab-auto-login/internal/config"
	"github.com/Golumpa/hoyolab-auto-login/internal/domain/model"
	"github.com/Golumpa/hoyolab-auto-login/internal/platform/logger"
	"github.com/Golumpa/hoyolab-auto-login/pkg/utils"
)

const (
	userInfoURL  = "https://bbs-api-os.hoyolab.com/community/user/wapi/getUserFullInfo"
	gameRolesURL = "https://api-os-takumi.hoyoverse.com/binding/api/getUserGameRolesByCookie"

	// URL the GeeTest challenge is issued for; solver backends need it.
	challengePageURL = "https://act.hoyolab.com"

	// Platform sentinel for a reward that was already claimed today.
	alreadySignedRetcode = -5003

	maxSolveAttempts = 3
	uidMaskLen       = 5
	requestLang      = "en-us"
)

// ErrInvalidCookie marks a credential the platform rejected. The whole
// session is skipped; the platform message is kept for the report.
var ErrInvalidCookie = errors.New("invalid cookie")

// HoYoWorker drives the claim protocol for one credential. All calls
// for one game are strictly sequential; each response decides the next
// step.
type HoYoWorker struct {
	apiClient *adhttp.APIClient
	log       *logger.ClassLogger
	cred      config.Credential
	solver    captcha.Solver
	session   *model.Session

	userInfoURL  string
	gameRolesURL string
}

func NewHoYoWorker(apiClient *adhttp.APIClient, log *logger.ClassLogger, cred config.Credential, solver captcha.Solver, session *model.Session) *HoYoWorker {
	return &HoYoWorker{
		apiClient:    apiClient,
		log:          log,
		cred:         cred,
		solver:       solver,
		session:      session,
		userInfoURL:  userInfoURL,
		gameRolesURL: gameRolesURL,
	}
}

type userInfoResponse struct {
	Retcode int    `json:"retcode"`
	Message string `json:"message"`
	Data    *struct {
		UserInfo struct {
			UID      string `json:"uid"`
			Nickname string `json:"nickname"`
		} `json:"user_info"`
	} `json:"data"`
}

type gameRolesResponse struct {
	Retcode int    `json:"retcode"`
	Message string `json:"message"`
	Data    *struct {
		List []gameRole `json:"list"`
	} `json:"data"`
}

type gameRole struct {
	GameBiz    string `json:"game_biz"`
	GameUID    string `json:"game_uid"`
	Nickname   string `json:"nickname"`
	Level      int    `json:"level"`
	RegionName string `json:"region_name"`
}

type loginInfoResponse struct {
	Retcode int            `json:"retcode"`
	Message string         `json:"message"`
	Data    *loginInfoData `json:"data"`
}

type loginInfoData struct {
	TotalSignDay int    `json:"total_sign_day"`
	Today        string `json:"today"`
	IsSign       bool   `json:"is_sign"`
	FirstBind    bool   `json:"first_bind"`
	Region       string `json:"region"`
}

type rewardHomeResponse struct {
	Retcode int    `json:"retcode"`
	Message string `json:"message"`
	Data    *struct {
		Month  int     `json:"month"`
		Awards []award `json:"awards"`
	} `json:"data"`
}

type award struct {
	Icon string `json:"icon"`
	Name string `json:"name"`
	Cnt  int    `json:"cnt"`
}

type signRequest struct {
	ActID string `json:"act_id"`
	Lang  string `json:"lang"`
}

type signResponse struct {
	Retcode int    `json:"retcode"`
	Message string `json:"message"`
	Data    *struct {
		Code      string `json:"code"`
		RiskCode  int    `json:"risk_code"`
		Gt        string `json:"gt"`
		Challenge string `json:"challenge"`
		Success   int    `json:"success"`
		IsRisk    bool   `json:"is_risk"`
	} `json:"data"`
}

// challengeDescriptor is the single-use token pair the claim endpoint
// hands back when it wants a GeeTest verification.
type challengeDescriptor struct {
	Gt        string
	Challenge string
	URL       string
}

// claimAttempt is the transient state of one claim cycle: how many
// solver invocations failed and what the platform last said.
type claimAttempt struct {
	attempts    int
	lastCode    int
	lastMessage string
	challenge   *challengeDescriptor
}

type actQuery struct {
	ActID string `url:"act_id"`
	Lang  string `url:"lang"`
}

func actEndpoint(base, actID string) string {
	q, err := utils.EncodeURLParams(actQuery{ActID: actID, Lang: requestLang})
	if err != nil {
		return base + "?act_id=" + actID
	}
	return base + "?" + q
}

// validateCookie checks the credential against the community user-info
// endpoint. A non-zero retcode or empty payload means the cookie is
// dead and the whole session must be skipped.
func (w *HoYoWorker) validateCookie(ctx context.Context) (string, error) {
	raw, err := w.apiClient.Fetch(ctx, w.userInfoURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCookie, err)
	}

	var resp userInfoResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("%w: malformed user info response", ErrInvalidCookie)
	}
	if resp.Retcode != 0 || resp.Data == nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidCookie, platformMessage(resp.Retcode, resp.Message))
	}
	return resp.Data.UserInfo.Nickname, nil
}

// resolveAccounts fetches the bound game roles and deduplicates them by
// game_biz, keeping the entry with the strictly highest level. Ties
// keep the first encountered; discovery order is preserved.
func (w *HoYoWorker) resolveAccounts(ctx context.Context) ([]model.SessionAccount, error) {
	raw, err := w.apiClient.Fetch(ctx, w.gameRolesURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCookie, err)
	}

	var resp gameRolesResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: malformed game roles response", ErrInvalidCookie)
	}
	if resp.Retcode != 0 || resp.Data == nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCookie, platformMessage(resp.Retcode, resp.Message))
	}

	return dedupRoles(resp.Data.List), nil
}

// dedupRoles keeps one account per game_biz: the strictly highest
// level wins, ties keep the first encountered, discovery order is
// preserved.
func dedupRoles(roles []gameRole) []model.SessionAccount {
	accounts := make([]model.SessionAccount, 0, len(roles))
	index := make(map[string]int, len(roles))
	for _, role := range roles {
		acct := model.SessionAccount{
			Biz:       role.GameBiz,
			UID:       role.GameUID,
			MaskedUID: utils.MaskUID(role.GameUID, uidMaskLen),
			Nickname:  role.Nickname,
			Level:     role.Level,
			Region:    role.RegionName,
		}
		if i, seen := index[role.GameBiz]; seen {
			if acct.Level > accounts[i].Level {
				accounts[i] = acct
			}
			continue
		}
		index[role.GameBiz] = len(accounts)
		accounts = append(accounts, acct)
	}
	return accounts
}

// claimGame runs the whole claim cycle for one game account and always
// produces a terminal result. Transport and protocol failures become
// error-class outcomes; they never abort the session.
func (w *HoYoWorker) claimGame(ctx context.Context, def config.GameDefinition, acct model.SessionAccount) model.GameResult {
	result := model.GameResult{
		Biz:      def.Biz,
		GameName: def.Name,
		Account:  acct,
	}

	info, err := w.fetchLoginInfo(ctx, def)
	if err != nil {
		w.log.Log(fmt.Sprintf("Login info fetch failed for %s: %v", def.Name, err))
		return w.finish(result, model.OutcomeClaimFailed, fmt.Sprintf("❌ Login failed: %v", err), def)
	}

	// total_sign_day before claiming counts days completed prior to
	// today (unless today is already signed, in which case it already
	// includes today).
	preSignDay := info.TotalSignDay
	result.TotalSignDay = preSignDay

	if info.FirstBind {
		w.log.Log(fmt.Sprintf("First-time bind detected for %s, manual claim required", def.Name))
		return w.finish(result, model.OutcomeManualRequired, "⚠️ First-time bind, please claim manually on HoYoLAB once", def)
	}

	awards, err := w.fetchRewards(ctx, def)
	if err != nil || len(awards) == 0 {
		if err == nil {
			err = errors.New("reward catalog is empty")
		}
		w.log.Log(fmt.Sprintf("Reward catalog unavailable for %s: %v", def.Name, err))
		return w.finish(result, model.OutcomeCatalogError, fmt.Sprintf("❌ Could not fetch reward catalog: %v", err), def)
	}

	if info.IsSign {
		// Claimed before this run; count is reported exactly as stored.
		result.Reward = rewardAt(awards, preSignDay-1)
		w.log.Log(fmt.Sprintf("Daily reward already claimed for %s", def.Name))
		status := fmt.Sprintf("✅ Already claimed for %s (UID %s)", acct.Nickname, acct.MaskedUID)
		return w.finish(result, model.OutcomeAlreadyClaimed, status, def)
	}

	// Today's reward: catalog is 0-indexed by completed days.
	todayReward := rewardAt(awards, preSignDay)

	attempt := claimAttempt{}
	var solution *captcha.Solution

	for {
		if ctx.Err() != nil {
			return w.finish(result, model.OutcomeClaimFailed, fmt.Sprintf("❌ Claim aborted: %v", ctx.Err()), def)
		}

		sign, err := w.postSign(ctx, def, solution)
		solution = nil
		if err != nil {
			w.log.Log(fmt.Sprintf("Claim request failed for %s: %v", def.Name, err))
			return w.finish(result, model.OutcomeClaimFailed, fmt.Sprintf("❌ Claim failed: %v", err), def)
		}

		attempt.lastCode = sign.Retcode
		attempt.lastMessage = sign.Message

		switch {
		case sign.Data != nil && sign.Data.IsRisk && sign.Data.RiskCode != 0 && sign.Data.Success != 0:
			attempt.challenge = &challengeDescriptor{
				Gt:        sign.Data.Gt,
				Challenge: sign.Data.Challenge,
				URL:       challengePageURL,
			}

		case sign.Retcode == 0:
			result.TotalSignDay = preSignDay + 1
			result.Reward = todayReward
			w.log.Log(fmt.Sprintf("Claimed %dx %s for %s", todayReward.Count, todayReward.Name, def.Name))
			status := fmt.Sprintf("✅ Claimed %dx %s", todayReward.Count, todayReward.Name)
			return w.finish(result, model.OutcomeClaimed, status, def)

		case sign.Retcode == alreadySignedRetcode:
			result.Reward = todayReward
			w.log.Log(fmt.Sprintf("Daily reward already claimed for %s", def.Name))
			status := fmt.Sprintf("✅ Already claimed for %s (UID %s)", acct.Nickname, acct.MaskedUID)
			return w.finish(result, model.OutcomeAlreadyClaimed, status, def)

		default:
			w.log.Log(fmt.Sprintf("Claim rejected for %s: code=%d message=%s", def.Name, sign.Retcode, sign.Message))
			status := fmt.Sprintf("❌ Claim failed: %s", platformMessage(sign.Retcode, sign.Message))
			return w.finish(result, model.OutcomeClaimFailed, status, def)
		}

		// Challenge required from here on.
		if w.solver == nil {
			w.log.Log(fmt.Sprintf("GeeTest triggered for %s but no solver is configured", def.Name))
			return w.finish(result, model.OutcomeBlocked, "❌ Blocked by challenge, no solver configured", def)
		}

		// Every solver invocation spends the budget, including ones
		// that succeed but leave the platform challenging the claim
		// again; otherwise such a claim would drain the solver forever.
		if attempt.attempts >= maxSolveAttempts {
			w.log.Log(fmt.Sprintf("Still challenged for %s after %d solves, giving up", def.Name, attempt.attempts))
			return w.finish(result, model.OutcomeUnsolvable, "❌ Unable to solve GeeTest captcha", def)
		}
		attempt.attempts++

		desc := attempt.challenge
		attempt.challenge = nil
		w.log.Log(fmt.Sprintf("GeeTest triggered for %s, solving via %s (attempt %d/%d)", def.Name, w.solver.Name(), attempt.attempts, maxSolveAttempts))

		solved, err := w.solver.SolveGeeTest(ctx, desc.Gt, desc.Challenge, desc.URL)
		if err != nil {
			if errors.Is(err, captcha.ErrNotConfigured) {
				return w.finish(result, model.OutcomeBlocked, "❌ Blocked by challenge, no solver configured", def)
			}
			w.log.Log(fmt.Sprintf("Solver attempt %d/%d for %s failed: %v", attempt.attempts, maxSolveAttempts, def.Name, err))
			if attempt.attempts >= maxSolveAttempts {
				return w.finish(result, model.OutcomeUnsolvable, "❌ Unable to solve GeeTest captcha", def)
			}
			// Re-request without a token; the block may have cleared.
			continue
		}

		// Reward may have been claimed while the challenge was being
		// solved; re-check before spending the solution.
		if recheck, err := w.fetchLoginInfo(ctx, def); err == nil && recheck.IsSign {
			result.TotalSignDay = recheck.TotalSignDay
			result.Reward = rewardAt(awards, recheck.TotalSignDay-1)
			status := fmt.Sprintf("✅ Already claimed for %s (UID %s)", acct.Nickname, acct.MaskedUID)
			return w.finish(result, model.OutcomeAlreadyClaimed, status, def)
		}

		solution = &solved
	}
}

func (w *HoYoWorker) finish(result model.GameResult, outcome model.ClaimOutcome, status string, def config.GameDefinition) model.GameResult {
	result.Outcome = outcome
	result.Status = status
	if w.session != nil {
		w.session.SetGameStatus(def.Name, status)
	}
	return result
}

func (w *HoYoWorker) fetchLoginInfo(ctx context.Context, def config.GameDefinition) (*loginInfoData, error) {
	raw, err := w.apiClient.Fetch(ctx, actEndpoint(def.InfoURL, def.ActID), nil)
	if err != nil {
		return nil, err
	}
	var resp loginInfoResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("malformed login info response: %w", err)
	}
	if resp.Retcode != 0 || resp.Data == nil {
		return nil, fmt.Errorf("login info API error: %s", platformMessage(resp.Retcode, resp.Message))
	}
	return resp.Data, nil
}

func (w *HoYoWorker) fetchRewards(ctx context.Context, def config.GameDefinition) ([]award, error) {
	raw, err := w.apiClient.Fetch(ctx, actEndpoint(def.RewardURL, def.ActID), nil)
	if err != nil {
		return nil, err
	}
	var resp rewardHomeResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("malformed reward catalog response: %w", err)
	}
	if resp.Retcode != 0 || resp.Data == nil {
		return nil, fmt.Errorf("reward catalog API error: %s", platformMessage(resp.Retcode, resp.Message))
	}
	return resp.Data.Awards, nil
}

func (w *HoYoWorker) postSign(ctx context.Context, def config.GameDefinition, solution *captcha.Solution) (*signResponse, error) {
	opts := &adhttp.FetchOptions{
		Method: "POST",
		Body:   signRequest{ActID: def.ActID, Lang: requestLang},
	}
	if solution != nil {
		opts.AdditionalHeaders = map[string]string{
			"x-rpc-challenge": solution.Challenge,
			"x-rpc-validate":  solution.Validate,
			"x-rpc-seccode":   solution.Seccode,
		}
	}

	raw, err := w.apiClient.Fetch(ctx, def.SignURL, opts)
	if err != nil {
		return nil, err
	}
	var resp signResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("malformed claim response: %w", err)
	}
	return &resp, nil
}

func platformMessage(code int, message string) string {
	message = strings.TrimSpace(message)
	if message == "" {
		message = "unknown platform error"
	}
	return fmt.Sprintf("code=%d %s", code, message)
}

func rewardAt(awards []award, idx int) model.Reward {
	if idx < 0 || idx >= len(awards) {
		return model.Reward{}
	}
	a := awards[idx]
	return model.Reward{Name: a.Name, Count: a.Cnt, Icon: a.Icon}
}
