package model

import "fmt"

// Session is the per-cookie view the UI and logger render. The worker
// owns it and mutates it as the claim cycle for each game progresses.
type Session struct {
	AccIdx    int
	Total     int
	AccountID string
	Games     []GameStatus
}

type GameStatus struct {
	Name   string
	Status string
}

// CookieNum is the "2/5" style label used in log lines and the embed.
func (s *Session) CookieNum() string {
	if s == nil {
		return ""
	}
	total := s.Total
	if total <= 0 {
		total = s.AccIdx + 1
	}
	return fmt.Sprintf("%d/%d", s.AccIdx+1, total)
}

// SetGameStatus updates the status line for a game, appending the game
// to the panel on first sight so display order follows discovery order.
func (s *Session) SetGameStatus(name, status string) {
	if s == nil {
		return
	}
	for i := range s.Games {
		if s.Games[i].Name == name {
			s.Games[i].Status = status
			return
		}
	}
	s.Games = append(s.Games, GameStatus{Name: name, Status: status})
}
