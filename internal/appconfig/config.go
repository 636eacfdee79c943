// Package appconfig collects and validates the assistant's configuration (§6).
// Values are read from the environment (via godotenv for local .env files), defaulted
// per spec, and validated with struct tags; unknown-but-optional gaps become soft
// Warnings rather than startup failures, mirroring the teacher's warnings-not-fatal
// philosophy for optional keys.
package appconfig

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/jnyross/secondbrain/internal/apperrors"
)

// Config holds every key from §6. Required fields for a given deployment are whichever
// transports/services are actually enabled; validation is deliberately permissive about
// which optional groups are present; required tags cover the always-needed knobs.
type Config struct {
	// Transport credentials.
	TelegramBotToken      string `validate:"omitempty"`
	WhatsAppPhoneNumberID string `validate:"omitempty"`
	WhatsAppAccessToken   string `validate:"omitempty"`
	WhatsAppVerifyToken   string `validate:"omitempty"`
	WhatsAppAppSecret     string `validate:"omitempty"`

	// Knowledge-base routing.
	KBAPIKey      string `validate:"required"`
	KBDBTasks     string `validate:"required"`
	KBDBPeople    string `validate:"required"`
	KBDBPlaces    string `validate:"required"`
	KBDBProjects  string `validate:"required"`
	KBDBInbox     string `validate:"required"`
	KBDBPatterns  string `validate:"required"`
	KBDBLog       string `validate:"required"`
	KBDBEmails    string `validate:"omitempty"`
	KBBaseURL     string `validate:"omitempty,url"`

	// AI dependencies (out-of-scope collaborators, credentials only).
	SpeechToTextAPIKey string `validate:"omitempty"`
	LLMAPIKey          string `validate:"omitempty"`

	// Productivity services.
	CalendarClientID     string `validate:"omitempty"`
	CalendarClientSecret string `validate:"omitempty"`
	MapsAPIKey           string `validate:"omitempty"`

	// Personalization.
	UserTimezone        string `validate:"required"`
	UserHomeAddress     string `validate:"omitempty"`
	UserTransportChatID string `validate:"omitempty"`

	ConfidenceThreshold int    `validate:"min=0,max=100"`
	MorningBriefingHour int    `validate:"min=0,max=23"`
	DataDir             string `validate:"required"`

	HeartbeatURL        string `validate:"omitempty,url"`
	HeartbeatIntervalS  int    `validate:"min=1"`

	ErrorTrackingDSN         string `validate:"omitempty"`
	ErrorTrackingEnvironment string `validate:"omitempty"`

	LogLevel string `validate:"omitempty,oneof=debug info warn error"`
}

// defaults per §6.
const (
	defaultConfidenceThreshold = 80
	defaultMorningBriefingHour = 7
	defaultHeartbeatIntervalS  = 300
	defaultUserTimezone        = "UTC"
	defaultDataDirSuffix       = ".second-brain"
	defaultLogLevel            = "info"
)

// Loaded wraps a Config with accumulated soft warnings and a mutex guarding the fields
// that the patterns cache / hot-reload paths may refresh at runtime (none currently
// mutate post-load, but the RWMutex is kept for parity with the teacher's reload path
// and to protect Warnings() across concurrent readers during startup).
type Loaded struct {
	mu       sync.RWMutex
	cfg      Config
	warnings []string
}

// Load reads .env (if present, ignored if absent), applies defaults, and validates.
// Returns a ConfigError-kinded error when any validate tag on Config fails (missing KB
// routing, an empty UserTimezone or DataDir, a malformed KB or heartbeat URL, an
// out-of-range threshold, briefing hour or heartbeat interval, an unknown log level);
// the timezone name itself is not checked. Non-integer numeric values (which fall back
// to their defaults) and missing transport credentials become warnings.
func Load(envFile string) (*Loaded, error) {
	if envFile != "" {
		_ = godotenv.Load(envFile) // absence of .env is not fatal; env vars may be set directly
	}

	l := &Loaded{}
	c := Config{
		TelegramBotToken:      os.Getenv("TELEGRAM_BOT_TOKEN"),
		WhatsAppPhoneNumberID: os.Getenv("WHATSAPP_PHONE_NUMBER_ID"),
		WhatsAppAccessToken:   os.Getenv("WHATSAPP_ACCESS_TOKEN"),
		WhatsAppVerifyToken:   os.Getenv("WHATSAPP_VERIFY_TOKEN"),
		WhatsAppAppSecret:     os.Getenv("WHATSAPP_APP_SECRET"),

		KBAPIKey:     os.Getenv("KB_API_KEY"),
		KBDBTasks:    os.Getenv("KB_DB_TASKS"),
		KBDBPeople:   os.Getenv("KB_DB_PEOPLE"),
		KBDBPlaces:   os.Getenv("KB_DB_PLACES"),
		KBDBProjects: os.Getenv("KB_DB_PROJECTS"),
		KBDBInbox:    os.Getenv("KB_DB_INBOX"),
		KBDBPatterns: os.Getenv("KB_DB_PATTERNS"),
		KBDBLog:      os.Getenv("KB_DB_LOG"),
		KBDBEmails:   os.Getenv("KB_DB_EMAILS"),
		KBBaseURL:    os.Getenv("KB_BASE_URL"),

		SpeechToTextAPIKey: os.Getenv("SPEECH_TO_TEXT_API_KEY"),
		LLMAPIKey:          os.Getenv("LLM_API_KEY"),

		CalendarClientID:     os.Getenv("CALENDAR_CLIENT_ID"),
		CalendarClientSecret: os.Getenv("CALENDAR_CLIENT_SECRET"),
		MapsAPIKey:           os.Getenv("MAPS_API_KEY"),

		UserTimezone:        getOr("USER_TIMEZONE", defaultUserTimezone),
		UserHomeAddress:     os.Getenv("USER_HOME_ADDRESS"),
		UserTransportChatID: os.Getenv("USER_TRANSPORT_CHAT_ID"),

		ConfidenceThreshold: getIntOr("CONFIDENCE_THRESHOLD", defaultConfidenceThreshold, l),
		MorningBriefingHour: getIntOr("MORNING_BRIEFING_HOUR", defaultMorningBriefingHour, l),
		DataDir:             getOr("DATA_DIR", defaultDataDir()),

		HeartbeatURL:       os.Getenv("HEARTBEAT_URL"),
		HeartbeatIntervalS: getIntOr("HEARTBEAT_INTERVAL_S", defaultHeartbeatIntervalS, l),

		ErrorTrackingDSN:         os.Getenv("ERROR_TRACKING_DSN"),
		ErrorTrackingEnvironment: os.Getenv("ERROR_TRACKING_ENVIRONMENT"),

		LogLevel: getOr("LOG_LEVEL", defaultLogLevel),
	}

	l.cfg = c

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return nil, apperrors.Config("invalid configuration", err)
	}

	if c.TelegramBotToken == "" && c.WhatsAppAccessToken == "" {
		l.addWarning("no transport credentials configured: telegram and whatsapp both unset")
	}
	return l, nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return defaultDataDirSuffix
	}
	return home + string(os.PathSeparator) + defaultDataDirSuffix
}

func getOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getIntOr(key string, fallback int, l *Loaded) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		if l != nil {
			l.addWarning(fmt.Sprintf("invalid integer for %s=%q, using default %d", key, v, fallback))
		}
		return fallback
	}
	return n
}

func (l *Loaded) addWarning(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warnings = append(l.warnings, msg)
}

// Warnings returns accumulated non-fatal configuration issues.
func (l *Loaded) Warnings() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string(nil), l.warnings...)
}

// Get returns a copy of the loaded configuration.
func (l *Loaded) Get() Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cfg
}
