package app

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPAddr      string
	PublicBaseURL string
	DatabaseURL   string
	SentryDSN     string

	// Twilio telephony
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string

	// Voice AI providers
	OpenAIAPIKey     string
	OpenAIModel      string
	ElevenLabsAPIKey string
	TTSVoiceID       string // ElevenLabs voice ID
	STTServerURL     string // Vosk websocket endpoint

	// Interview behavior
	QuestionMode  string // "fixed" or "generative"
	SilenceFrames int    // idle 20ms frames that close a turn

	// Timeouts
	TurnTimeout            time.Duration
	MediaInactivityTimeout time.Duration

	// Notifications
	RecruiterPhone string

	// JWT Authentication
	JWTSecret string
}

func LoadConfigFromEnv() Config {
	return Config{
		HTTPAddr:      getenv("HTTP_ADDR", ":8080"),
		PublicBaseURL: getenv("PUBLIC_BASE_URL", "http://localhost:8080"),
		DatabaseURL:   getenv("DATABASE_URL", ""),
		SentryDSN:     getenv("SENTRY_DSN", ""),

		TwilioAccountSID: getenv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:  getenv("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber: getenv("TWILIO_FROM_NUMBER", ""),

		OpenAIAPIKey:     getenv("OPENAI_API_KEY", ""),
		OpenAIModel:      getenv("OPENAI_MODEL", ""),
		ElevenLabsAPIKey: getenv("ELEVENLABS_API_KEY", ""),
		TTSVoiceID:       getenv("TTS_VOICE_ID", ""),
		STTServerURL:     getenv("STT_SERVER_URL", "ws://localhost:2700"),

		QuestionMode:  getenv("QUESTION_MODE", "fixed"),
		SilenceFrames: getenvInt("SILENCE_FRAMES", 0), // 0 means the detector default

		TurnTimeout:            getenvDuration("TURN_TIMEOUT", 30*time.Second),
		MediaInactivityTimeout: getenvDuration("MEDIA_INACTIVITY_TIMEOUT", 30*time.Second),

		RecruiterPhone: getenv("RECRUITER_PHONE", ""),

		JWTSecret: os.Getenv("JWT_SECRET"), // Required - no fallback for security
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
