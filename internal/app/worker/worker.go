package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Golumpa/hoyolab-auto-login/internal/adapters/captcha"
	"github.com/Golumpa/hoyolab-auto-login/internal/adapters/discord"
	adhttp "github.com/Golumpa/hoyolab-auto-login/internal/adapters/http"
	"github.com/Golumpa/hoyolab-auto-login/internal/config"
	"github.com/Golumpa/hoyolab-auto-login/internal/domain/model"
	"github.com/Golumpa/hoyolab-auto-login/internal/platform/logger"
	"github.com/Golumpa/hoyolab-auto-login/internal/storage/claimlog"
)

const (
	statusWaiting    = "WAITING"
	statusInProgress = "IN PROGRESS"
	statusSkipped    = "SKIPPED"
)

// Run executes one full claim cycle for one credential: validate the
// cookie, discover bound accounts, claim every supported game in
// discovery order, aggregate, journal and deliver the report. A failure
// in one game never aborts the remaining games.
func Run(ctx context.Context, cred config.Credential, index, total int, cfg config.Config, solver captcha.Solver, store *claimlog.Store, webhook *discord.Webhook) model.SessionReport {
	session := &model.Session{AccIdx: index, Total: total, AccountID: "-"}
	log := logger.NewNamed(fmt.Sprintf("Cookie %d/%d", index+1, total), session)

	apiClient := adhttp.NewAPIClient(cred.Cookie, cfg.HTTPTimeout, session)

	worker := NewHoYoWorker(apiClient, log, cred, solver, session)

	var (
		results       []model.GameResult
		sessionErrors []string
	)

	nickname, err := worker.validateCookie(ctx)
	if err != nil {
		log.Log(fmt.Sprintf("Cookie invalid, skipping login: %v", err))
		sessionErrors = append(sessionErrors, invalidCookieMessage(err))
		report := model.Aggregate(nil, sessionErrors)
		deliver(ctx, log, webhook, session, cred, report)
		return report
	}
	session.AccountID = nickname

	accounts, err := worker.resolveAccounts(ctx)
	if err != nil {
		log.Log(fmt.Sprintf("Could not list game accounts: %v", err))
		sessionErrors = append(sessionErrors, invalidCookieMessage(err))
		report := model.Aggregate(nil, sessionErrors)
		deliver(ctx, log, webhook, session, cred, report)
		return report
	}
	log.Log(fmt.Sprintf("Cookie OK, detected %d unique game account(s)", len(accounts)))

	for _, acct := range accounts {
		if def, ok := config.DefinitionOf(acct.Biz); ok {
			session.SetGameStatus(def.Name, statusWaiting)
		}
	}

	today := time.Now().UTC()

	for _, acct := range accounts {
		if ctx.Err() != nil {
			log.Log("Shutdown requested, skipping remaining games")
			break
		}

		def, supported := config.DefinitionOf(acct.Biz)
		if !supported {
			log.Log(fmt.Sprintf("Account for %s is unsupported, skipping login", acct.Biz))
			continue
		}
		if cred.Excluded(acct.Biz) {
			log.Log(fmt.Sprintf("Skipping login for %s", acct.Biz))
			session.SetGameStatus(def.Name, statusSkipped)
			continue
		}

		session.SetGameStatus(def.Name, statusInProgress)
		result := worker.claimGame(ctx, def, acct)
		results = append(results, result)

		if store != nil {
			if err := store.RecordResult(result, today); err != nil {
				log.JustLog(fmt.Sprintf("Warning: failed to journal result for %s: %v", result.Biz, err))
			}
		}
	}

	report := model.Aggregate(results, sessionErrors)
	deliver(ctx, log, webhook, session, cred, report)
	return report
}

// deliver pushes the report to the webhook when one is configured.
// Failures are logged only; outcomes are already final.
func deliver(ctx context.Context, log *logger.ClassLogger, webhook *discord.Webhook, session *model.Session, cred config.Credential, report model.SessionReport) {
	if !webhook.Configured() {
		return
	}
	if len(report.Results) == 0 && !report.HasErrors() {
		return
	}

	embeds := make([]discord.GameEmbed, 0, len(report.Results))
	for _, res := range report.Results {
		embeds = append(embeds, gameEmbed(res))
	}

	errorLines := append(append([]string(nil), report.GameErrors...), report.SessionErrors...)

	if err := webhook.Send(ctx, session.CookieNum(), embeds, errorLines, cred.DiscordID); err != nil {
		log.Log(fmt.Sprintf("Failed to send Discord embed: %v", err))
		return
	}
	log.Log("Sent Discord embed ✨")
}

// gameEmbed dresses one result in the game's own branding from the
// registry: title, color, author and the player greeting suffix.
func gameEmbed(res model.GameResult) discord.GameEmbed {
	e := discord.GameEmbed{
		Title:  res.GameName,
		Fields: resultFields(res),
	}

	def, ok := config.DefinitionOf(res.Biz)
	if ok {
		e.Title = def.Title
		e.Description = fmt.Sprintf("Greetings, %s!", def.Suffix)
		e.Color = def.Color
		e.AuthorName = def.AuthorName
		e.AuthorURL = def.AuthorURL
		e.AuthorIcon = def.AuthorIcon
	}
	if res.Reward.Icon != "" {
		e.Thumbnail = res.Reward.Icon
	}
	return e
}

func resultFields(res model.GameResult) []discord.Field {
	fields := []discord.Field{
		{Name: "Status", Value: res.Status},
	}
	if res.Account.Nickname != "" {
		fields = append(fields, discord.Field{
			Name:   "Account",
			Value:  fmt.Sprintf("%s (UID %s) · Lv.%d · %s", res.Account.Nickname, res.Account.MaskedUID, res.Account.Level, res.Account.Region),
			Inline: true,
		})
	}
	if res.TotalSignDay > 0 {
		fields = append(fields, discord.Field{
			Name:   "Total sign-in days",
			Value:  fmt.Sprintf("%d", res.TotalSignDay),
			Inline: true,
		})
	}
	if res.Reward.Name != "" {
		fields = append(fields, discord.Field{
			Name:   "Today's reward",
			Value:  fmt.Sprintf("%dx %s", res.Reward.Count, res.Reward.Name),
			Inline: true,
		})
	}
	return fields
}

func invalidCookieMessage(err error) string {
	if errors.Is(err, ErrInvalidCookie) {
		return err.Error()
	}
	return fmt.Sprintf("%v", err)
}
