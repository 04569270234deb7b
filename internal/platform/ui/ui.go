package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pterm/pterm"

	"github.com/Golumpa/hoyolab-auto-login/internal/domain/model"
)

var (
	multi    *pterm.MultiPrinter
	spinners = make(map[int]*pterm.SpinnerPrinter)
	mu       sync.Mutex
)

func StartUISystem() {
	m, _ := pterm.DefaultMultiPrinter.Start()
	multi = m
}

func StopUISystem() {
	if multi != nil {
		multi.Stop()
	}
}

func UpdateStatus(session model.Session, status string, remainingDelay time.Duration) {
	mu.Lock()
	defer mu.Unlock()

	delayStr := FormatDelay(remainingDelay)
	accountID := defaultString(session.AccountID, "-")

	content := fmt.Sprintf(`
=============== Cookie %s ================
Account  : %s
%s
Status   : %s
Delay    : %s
===========================================`,
		session.CookieNum(),
		accountID,
		formatGames(session.Games),
		status,
		delayStr)

	if spinner, ok := spinners[session.AccIdx]; ok {
		spinner.UpdateText(content)
	} else {
		spinner, _ := pterm.DefaultSpinner.
			WithWriter(multi.NewWriter()).
			WithRemoveWhenDone(false).
			Start(content)
		spinners[session.AccIdx] = spinner
	}
}

func SetSpinnerSuccess(session model.Session, finalMessage string) {
	mu.Lock()
	spinner, ok := spinners[session.AccIdx]
	mu.Unlock()
	if !ok {
		return
	}
	UpdateStatus(session, finalMessage, 0)
	spinner.Success()
}

func SetSpinnerError(session model.Session, finalMessage string) {
	mu.Lock()
	spinner, ok := spinners[session.AccIdx]
	mu.Unlock()
	if !ok {
		return
	}
	UpdateStatus(session, finalMessage, 0)
	spinner.Fail()
}

func FormatDelay(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d H %02d M %02d S", h, m, s)
}

func defaultString(val, fallback string) string {
	if strings.TrimSpace(val) == "" {
		return fallback
	}
	return val
}

func formatGames(games []model.GameStatus) string {
	if len(games) == 0 {
		return "\nGames    : none detected yet\n"
	}

	var builder strings.Builder
	builder.WriteString("\nGames    :\n")
	for _, g := range games {
		builder.WriteString(fmt.Sprintf("- %-20s %s\n", g.Name, defaultString(g.Status, "WAITING")))
	}
	return builder.String()
}
