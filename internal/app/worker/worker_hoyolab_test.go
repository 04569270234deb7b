package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Golumpa/hoyolab-auto-login/internal/adapters/captcha"
	adhttp "github.com/Golumpa/hoyolab-auto-login/internal/adapters/http"
	"github.com/Golumpa/hoyolab-auto-login/internal/config"
	"github.com/Golumpa/hoyolab-auto-login/internal/domain/model"
	"github.com/Golumpa/hoyolab-auto-login/internal/platform/logger"
)

type fakeSolver struct {
	calls    int
	err      error
	solution captcha.Solution
}

func (f *fakeSolver) Name() string { return "fake" }

func (f *fakeSolver) SolveGeeTest(ctx context.Context, gt, challenge, pageURL string) (captcha.Solution, error) {
	f.calls++
	if f.err != nil {
		return captcha.Solution{}, f.err
	}
	return f.solution, nil
}

func newTestWorker(solver captcha.Solver) *HoYoWorker {
	session := &model.Session{AccIdx: 0, Total: 1}
	client := adhttp.NewAPIClient("ltoken=abc; ltuid=1", 5*time.Second, session)
	log := logger.NewNamed("test", nil)
	return NewHoYoWorker(client, log, config.Credential{}, solver, session)
}

func testAccount() model.SessionAccount {
	return model.SessionAccount{
		Biz:       "hk4e_global",
		UID:       "700012345",
		MaskedUID: "xxxxx2345",
		Nickname:  "Aether",
		Level:     57,
		Region:    "Europe",
	}
}

func testDefinition(base string) config.GameDefinition {
	return config.GameDefinition{
		Biz:       "hk4e_global",
		Name:      "Genshin Impact",
		ActID:     "e202102251931481",
		InfoURL:   base + "/info",
		RewardURL: base + "/home",
		SignURL:   base + "/sign",
	}
}

func infoBody(totalSignDay int, isSign, firstBind bool) string {
	return fmt.Sprintf(`{"retcode":0,"message":"OK","data":{"total_sign_day":%d,"today":"2026-08-28","is_sign":%t,"first_bind":%t,"region":"os_euro"}}`,
		totalSignDay, isSign, firstBind)
}

func homeBody(count int) string {
	awards := make([]string, 0, count)
	for i := 0; i < count; i++ {
		awards = append(awards, fmt.Sprintf(`{"icon":"icon-%d","name":"Primogem","cnt":%d}`, i, (i+1)*10))
	}
	return fmt.Sprintf(`{"retcode":0,"message":"OK","data":{"month":8,"awards":[%s]}}`, strings.Join(awards, ","))
}

const (
	signOKBody      = `{"retcode":0,"message":"OK","data":{"code":"ok"}}`
	signRiskBody    = `{"retcode":0,"message":"OK","data":{"gt":"gt-token","challenge":"chal-token","risk_code":375,"success":1,"is_risk":true}}`
	signSentinel    = `{"retcode":-5003,"message":"Traveler, you've already checked in today~","data":null}`
	signRejected    = `{"retcode":-10002,"message":"invalid act_id","data":null}`
	solvedValidate  = "validate-token"
	challengeHeader = "x-rpc-validate"
)

func TestClaimGameFreshClaim(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/info":
			fmt.Fprint(w, infoBody(5, false, false))
		case "/home":
			fmt.Fprint(w, homeBody(31))
		case "/sign":
			fmt.Fprint(w, signOKBody)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	worker := newTestWorker(nil)
	result := worker.claimGame(context.Background(), testDefinition(srv.URL), testAccount())

	if result.Outcome != model.OutcomeClaimed {
		t.Fatalf("outcome = %s, want %s", result.Outcome, model.OutcomeClaimed)
	}
	if result.TotalSignDay != 6 {
		t.Errorf("TotalSignDay = %d, want 6", result.TotalSignDay)
	}
	if !strings.Contains(result.Status, "Claimed") {
		t.Errorf("status %q should contain %q", result.Status, "Claimed")
	}
	// Catalog is 0-indexed by completed days: 5 prior days -> awards[5].
	if result.Reward.Count != 60 {
		t.Errorf("Reward.Count = %d, want 60", result.Reward.Count)
	}
	if result.Outcome.IsError() {
		t.Error("claimed outcome must not be error class")
	}
}

func TestClaimGameAlreadyClaimedSentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/info":
			fmt.Fprint(w, infoBody(5, false, false))
		case "/home":
			fmt.Fprint(w, homeBody(31))
		case "/sign":
			fmt.Fprint(w, signSentinel)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	worker := newTestWorker(nil)
	result := worker.claimGame(context.Background(), testDefinition(srv.URL), testAccount())

	if result.Outcome != model.OutcomeAlreadyClaimed {
		t.Fatalf("outcome = %s, want %s", result.Outcome, model.OutcomeAlreadyClaimed)
	}
	if result.TotalSignDay != 5 {
		t.Errorf("TotalSignDay = %d, want 5 (no double count on already-claimed)", result.TotalSignDay)
	}
}

func TestClaimGameAlreadySignedBeforeRun(t *testing.T) {
	signCalled := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/info":
			fmt.Fprint(w, infoBody(6, true, false))
		case "/home":
			fmt.Fprint(w, homeBody(31))
		case "/sign":
			signCalled = true
			fmt.Fprint(w, signOKBody)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	worker := newTestWorker(nil)
	result := worker.claimGame(context.Background(), testDefinition(srv.URL), testAccount())

	if result.Outcome != model.OutcomeAlreadyClaimed {
		t.Fatalf("outcome = %s, want %s", result.Outcome, model.OutcomeAlreadyClaimed)
	}
	if result.TotalSignDay != 6 {
		t.Errorf("TotalSignDay = %d, want stored value 6", result.TotalSignDay)
	}
	if signCalled {
		t.Error("claim endpoint must not be hit when is_sign is already true")
	}
}

func TestClaimGameFirstBindRequiresManualClaim(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/info" {
			fmt.Fprint(w, infoBody(0, false, true))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	worker := newTestWorker(nil)
	result := worker.claimGame(context.Background(), testDefinition(srv.URL), testAccount())

	if result.Outcome != model.OutcomeManualRequired {
		t.Fatalf("outcome = %s, want %s", result.Outcome, model.OutcomeManualRequired)
	}
	if result.Outcome.IsError() {
		t.Error("manual-required is informational, not error class")
	}
}

func TestClaimGameEmptyCatalog(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/info":
			fmt.Fprint(w, infoBody(5, false, false))
		case "/home":
			fmt.Fprint(w, homeBody(0))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	worker := newTestWorker(nil)
	result := worker.claimGame(context.Background(), testDefinition(srv.URL), testAccount())

	if result.Outcome != model.OutcomeCatalogError {
		t.Fatalf("outcome = %s, want %s", result.Outcome, model.OutcomeCatalogError)
	}
}

func TestClaimGameRejectedWithPlatformMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/info":
			fmt.Fprint(w, infoBody(5, false, false))
		case "/home":
			fmt.Fprint(w, homeBody(31))
		case "/sign":
			fmt.Fprint(w, signRejected)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	worker := newTestWorker(nil)
	result := worker.claimGame(context.Background(), testDefinition(srv.URL), testAccount())

	if result.Outcome != model.OutcomeClaimFailed {
		t.Fatalf("outcome = %s, want %s", result.Outcome, model.OutcomeClaimFailed)
	}
	if !strings.Contains(result.Status, "invalid act_id") {
		t.Errorf("status %q should carry the platform message", result.Status)
	}
}

func TestClaimGameBlockedWithoutSolver(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/info":
			fmt.Fprint(w, infoBody(5, false, false))
		case "/home":
			fmt.Fprint(w, homeBody(31))
		case "/sign":
			fmt.Fprint(w, signRiskBody)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	worker := newTestWorker(nil)
	result := worker.claimGame(context.Background(), testDefinition(srv.URL), testAccount())

	if result.Outcome != model.OutcomeBlocked {
		t.Fatalf("outcome = %s, want %s", result.Outcome, model.OutcomeBlocked)
	}

	report := model.Aggregate([]model.GameResult{result}, nil)
	if len(report.GameErrors) != 1 {
		t.Fatalf("GameErrors = %d entries, want 1", len(report.GameErrors))
	}
	if !strings.Contains(report.GameErrors[0], "Genshin Impact") {
		t.Errorf("error entry %q should reference the game", report.GameErrors[0])
	}
}

func TestClaimGameSolverAttemptLimit(t *testing.T) {
	signCalls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/info":
			fmt.Fprint(w, infoBody(5, false, false))
		case "/home":
			fmt.Fprint(w, homeBody(31))
		case "/sign":
			signCalls++
			fmt.Fprint(w, signRiskBody)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	solver := &fakeSolver{err: errors.New("backend exploded")}
	worker := newTestWorker(solver)
	result := worker.claimGame(context.Background(), testDefinition(srv.URL), testAccount())

	if result.Outcome != model.OutcomeUnsolvable {
		t.Fatalf("outcome = %s, want %s", result.Outcome, model.OutcomeUnsolvable)
	}
	if solver.calls != maxSolveAttempts {
		t.Errorf("solver invoked %d times, want %d", solver.calls, maxSolveAttempts)
	}
	if signCalls != maxSolveAttempts {
		t.Errorf("claim endpoint hit %d times, want %d", signCalls, maxSolveAttempts)
	}
}

func TestClaimGameChallengeRepeatsAfterSolve(t *testing.T) {
	signCalls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/info":
			fmt.Fprint(w, infoBody(5, false, false))
		case "/home":
			fmt.Fprint(w, homeBody(31))
		case "/sign":
			// Challenge every claim, solved or not.
			signCalls++
			fmt.Fprint(w, signRiskBody)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	solver := &fakeSolver{solution: captcha.Solution{
		Challenge: "chal-token",
		Validate:  solvedValidate,
		Seccode:   solvedValidate + "|jordan",
	}}
	worker := newTestWorker(solver)
	result := worker.claimGame(context.Background(), testDefinition(srv.URL), testAccount())

	if result.Outcome != model.OutcomeUnsolvable {
		t.Fatalf("outcome = %s, want %s", result.Outcome, model.OutcomeUnsolvable)
	}
	if solver.calls != maxSolveAttempts {
		t.Errorf("solver invoked %d times, want budget of %d even when solves succeed", solver.calls, maxSolveAttempts)
	}
	// Initial claim plus one re-claim per spent solution.
	if signCalls != maxSolveAttempts+1 {
		t.Errorf("claim endpoint hit %d times, want %d", signCalls, maxSolveAttempts+1)
	}
	if result.TotalSignDay != 5 {
		t.Errorf("TotalSignDay = %d, want pre-claim 5", result.TotalSignDay)
	}
}

func TestClaimGameChallengeSolvedThenClaimed(t *testing.T) {
	var solvedSignSeen bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/info":
			fmt.Fprint(w, infoBody(5, false, false))
		case "/home":
			fmt.Fprint(w, homeBody(31))
		case "/sign":
			if r.Header.Get(challengeHeader) == solvedValidate {
				solvedSignSeen = true
				fmt.Fprint(w, signOKBody)
				return
			}
			fmt.Fprint(w, signRiskBody)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	solver := &fakeSolver{solution: captcha.Solution{
		Challenge: "chal-token",
		Validate:  solvedValidate,
		Seccode:   solvedValidate + "|jordan",
	}}
	worker := newTestWorker(solver)
	result := worker.claimGame(context.Background(), testDefinition(srv.URL), testAccount())

	if result.Outcome != model.OutcomeClaimed {
		t.Fatalf("outcome = %s, want %s", result.Outcome, model.OutcomeClaimed)
	}
	if result.TotalSignDay != 6 {
		t.Errorf("TotalSignDay = %d, want 6", result.TotalSignDay)
	}
	if solver.calls != 1 {
		t.Errorf("solver invoked %d times, want 1", solver.calls)
	}
	if !solvedSignSeen {
		t.Error("solved claim must resend with the challenge headers attached")
	}
}

func TestClaimGameShortCircuitWhenClaimedDuringChallenge(t *testing.T) {
	infoCalls := 0
	signCalls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/info":
			infoCalls++
			// Claimed elsewhere while the challenge was being solved.
			if infoCalls > 1 {
				fmt.Fprint(w, infoBody(6, true, false))
				return
			}
			fmt.Fprint(w, infoBody(5, false, false))
		case "/home":
			fmt.Fprint(w, homeBody(31))
		case "/sign":
			signCalls++
			fmt.Fprint(w, signRiskBody)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	solver := &fakeSolver{solution: captcha.Solution{Validate: solvedValidate, Seccode: solvedValidate + "|jordan"}}
	worker := newTestWorker(solver)
	result := worker.claimGame(context.Background(), testDefinition(srv.URL), testAccount())

	if result.Outcome != model.OutcomeAlreadyClaimed {
		t.Fatalf("outcome = %s, want %s", result.Outcome, model.OutcomeAlreadyClaimed)
	}
	if result.TotalSignDay != 6 {
		t.Errorf("TotalSignDay = %d, want stored 6 (no increment)", result.TotalSignDay)
	}
	if signCalls != 1 {
		t.Errorf("claim endpoint hit %d times, want 1 (solution not spent)", signCalls)
	}
}

func TestClaimCycleFailureIsolation(t *testing.T) {
	healthy := func() http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/info":
				fmt.Fprint(w, infoBody(2, false, false))
			case "/home":
				fmt.Fprint(w, homeBody(31))
			case "/sign":
				fmt.Fprint(w, signOKBody)
			default:
				http.NotFound(w, r)
			}
		}
	}
	srvOK1 := httptest.NewServer(healthy())
	defer srvOK1.Close()
	srvBroken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer srvBroken.Close()
	srvOK2 := httptest.NewServer(healthy())
	defer srvOK2.Close()

	worker := newTestWorker(nil)
	defs := []config.GameDefinition{
		testDefinition(srvOK1.URL),
		testDefinition(srvBroken.URL),
		testDefinition(srvOK2.URL),
	}
	defs[1].Biz, defs[1].Name = "bh3_global", "Honkai Impact 3"
	defs[2].Biz, defs[2].Name = "hkrpg_global", "Honkai: Star Rail"

	var results []model.GameResult
	for _, def := range defs {
		results = append(results, worker.claimGame(context.Background(), def, testAccount()))
	}

	report := model.Aggregate(results, nil)
	if len(report.Results) != 3 {
		t.Fatalf("got %d results, want 3", len(report.Results))
	}
	if report.Results[0].Outcome != model.OutcomeClaimed {
		t.Errorf("first game outcome = %s, want claimed", report.Results[0].Outcome)
	}
	if !report.Results[1].Outcome.IsError() {
		t.Errorf("second game outcome = %s, want error class", report.Results[1].Outcome)
	}
	if report.Results[2].Outcome != model.OutcomeClaimed {
		t.Errorf("third game outcome = %s, want claimed", report.Results[2].Outcome)
	}
	if len(report.GameErrors) != 1 {
		t.Errorf("GameErrors = %d entries, want 1", len(report.GameErrors))
	}
}

func TestValidateCookieRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"retcode":10001,"message":"Please login","data":null}`)
	}))
	defer srv.Close()

	worker := newTestWorker(nil)
	worker.userInfoURL = srv.URL + "/user"

	_, err := worker.validateCookie(context.Background())
	if !errors.Is(err, ErrInvalidCookie) {
		t.Fatalf("err = %v, want ErrInvalidCookie", err)
	}
	if !strings.Contains(err.Error(), "Please login") {
		t.Errorf("err %q should carry the platform message", err)
	}
}

func TestResolveAccountsDedup(t *testing.T) {
	list := []gameRole{
		{GameBiz: "hk4e_global", GameUID: "700000001", Nickname: "Alpha", Level: 40, RegionName: "Europe"},
		{GameBiz: "hkrpg_global", GameUID: "600000001", Nickname: "Beta", Level: 30, RegionName: "America"},
		{GameBiz: "hk4e_global", GameUID: "800000002", Nickname: "Gamma", Level: 55, RegionName: "Asia"},
		{GameBiz: "hkrpg_global", GameUID: "600000002", Nickname: "Delta", Level: 30, RegionName: "Europe"},
	}

	accounts := dedupRoles(list)
	if len(accounts) != 2 {
		t.Fatalf("got %d accounts, want 2", len(accounts))
	}
	if accounts[0].Biz != "hk4e_global" || accounts[0].Level != 55 || accounts[0].Nickname != "Gamma" {
		t.Errorf("highest level must win for hk4e_global, got %+v", accounts[0])
	}
	if accounts[1].Nickname != "Beta" {
		t.Errorf("ties must keep the first encountered, got %+v", accounts[1])
	}
	if accounts[0].MaskedUID != "xxxxx0002" {
		t.Errorf("MaskedUID = %q, want xxxxx0002", accounts[0].MaskedUID)
	}
}

func TestResolveAccountsFetchesRoles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{
			"retcode": 0,
			"message": "OK",
			"data": map[string]interface{}{
				"list": []map[string]interface{}{
					{"game_biz": "hk4e_global", "game_uid": "700012345", "nickname": "Aether", "level": 57, "region_name": "Europe"},
				},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	worker := newTestWorker(nil)
	worker.gameRolesURL = srv.URL + "/roles"

	accounts, err := worker.resolveAccounts(context.Background())
	if err != nil {
		t.Fatalf("resolveAccounts: %v", err)
	}
	if len(accounts) != 1 || accounts[0].Nickname != "Aether" {
		t.Fatalf("unexpected accounts: %+v", accounts)
	}
}
