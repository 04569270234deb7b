package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Credentials      []Credential
	TwoCaptchaAPIKey string
	CapSolverAPIKey  string
	WebhookURL       string
	RunOnce          bool
	Schedule         string
	Timezone         string
	HTTPTimeout      time.Duration
	JournalPath      string
}

// Credential is one parsed COOKIE blob. A blob may embed DISCORD_ID=...;
// and EXCLUDE_LOGIN=a,b; sub-fields; those are stripped from the Cookie
// header value and surfaced as fields here.
type Credential struct {
	Cookie    string
	DiscordID string
	Exclude   []string
}

var (
	discordIDPattern = regexp.MustCompile(`DISCORD_ID=(\d+);`)
	excludePattern   = regexp.MustCompile(`EXCLUDE_LOGIN=([^;]+);`)
	excludeSeparator = regexp.MustCompile(`\s*,\s*`)
)

func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment values")
	}

	timeoutSec := parseIntWithDefault(os.Getenv("HTTP_TIMEOUT_SECONDS"), 30)

	return Config{
		Credentials:      ParseCredentials(os.Getenv("COOKIE")),
		TwoCaptchaAPIKey: strings.TrimSpace(os.Getenv("TWO_CAPTCHA_API_KEY")),
		CapSolverAPIKey:  strings.TrimSpace(os.Getenv("CAPSOLVER_API_KEY")),
		WebhookURL:       strings.TrimSpace(os.Getenv("DISCORD_WEBHOOK")),
		RunOnce:          strings.TrimSpace(os.Getenv("RUN_ONCE")) != "",
		Schedule:         strings.TrimSpace(os.Getenv("SCHEDULE")),
		Timezone:         strings.TrimSpace(os.Getenv("TIMEZONE")),
		HTTPTimeout:      time.Duration(timeoutSec) * time.Second,
		JournalPath:      "data/claims.db",
	}
}

// ParseCredentials splits the COOKIE variable on "#" and parses each
// blob into a Credential. Empty blobs are dropped.
func ParseCredentials(raw string) []Credential {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	blobs := strings.Split(raw, "#")
	creds := make([]Credential, 0, len(blobs))
	for _, blob := range blobs {
		blob = strings.TrimSpace(blob)
		if blob == "" {
			continue
		}
		creds = append(creds, parseCredential(blob))
	}
	return creds
}

func parseCredential(blob string) Credential {
	cred := Credential{}

	if m := discordIDPattern.FindStringSubmatch(blob); m != nil {
		cred.DiscordID = m[1]
	}
	if m := excludePattern.FindStringSubmatch(blob); m != nil {
		for _, part := range excludeSeparator.Split(m[1], -1) {
			if part = strings.TrimSpace(part); part != "" {
				cred.Exclude = append(cred.Exclude, part)
			}
		}
	}

	header := discordIDPattern.ReplaceAllString(blob, "")
	header = excludePattern.ReplaceAllString(header, "")
	cred.Cookie = strings.TrimSpace(header)
	return cred
}

// Excluded reports whether claiming for the given game_biz was disabled
// by this credential's EXCLUDE_LOGIN list.
func (c Credential) Excluded(biz string) bool {
	for _, e := range c.Exclude {
		if strings.EqualFold(e, biz) {
			return true
		}
	}
	return false
}

func parseIntWithDefault(value string, defaultVal int) int {
	value = strings.TrimSpace(value)
	if value == "" {
		return defaultVal
	}
	if v, err := strconv.Atoi(value); err == nil && v > 0 {
		return v
	}
	return defaultVal
}

func (c Config) Validate() error {
	if len(c.Credentials) == 0 {
		return errors.New("no cookies configured (set the COOKIE environment variable)")
	}
	if c.Schedule != "" {
		if _, err := time.Parse("15:04", c.Schedule); err != nil {
			return fmt.Errorf("invalid SCHEDULE value %q, expected HH:MM: %w", c.Schedule, err)
		}
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("invalid TIMEZONE value %q: %w", c.Timezone, err)
		}
	}
	return nil
}

// HasSolver reports whether at least one captcha backend key is set.
// Missing keys are not fatal; challenged games surface as blocked.
func (c Config) HasSolver() bool {
	return c.TwoCaptchaAPIKey != "" || c.CapSolverAPIKey != ""
}
