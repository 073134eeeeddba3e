package httpapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rsahay/prescreen/internal/eventlog"
	"github.com/rsahay/prescreen/internal/interview"
	"github.com/rsahay/prescreen/internal/metrics"
	"github.com/rsahay/prescreen/internal/notifications"
	"github.com/rsahay/prescreen/internal/session"
	"github.com/rsahay/prescreen/internal/store"
	"github.com/rsahay/prescreen/internal/stt"
	"github.com/rsahay/prescreen/internal/tts"
)

type RouterConfig struct {
	PublicBaseURL string

	// Twilio credentials
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
	TwilioAPIBaseURL string // defaults to the Twilio API, overridable for tests

	// Voice AI providers
	OpenAIAPIKey     string
	OpenAIModel      string
	ElevenLabsAPIKey string
	TTSVoiceID       string
	STTServerURL     string // Vosk websocket endpoint

	// Interview behavior
	QuestionMode  string // "fixed" or "generative"
	SilenceFrames int    // idle frames that close a turn

	// Timeouts
	TurnTimeout            time.Duration // max wait for one answer
	MediaInactivityTimeout time.Duration // max gap between wire messages

	// Notifications
	RecruiterPhone string

	// JWT Authentication
	JWTSecret string
}

// Store is the subset of the persistence layer the HTTP surface needs. The
// pgx-backed store satisfies it; tests substitute fakes.
type Store interface {
	GetCandidate(ctx context.Context, id string) (*store.Candidate, error)
	UpdateCandidateStatus(ctx context.Context, id, status string) error
	GetJob(ctx context.Context, id string) (*store.Job, error)
	UpsertCall(ctx context.Context, c store.Call) error
	GetCallByProviderID(ctx context.Context, providerCallID string) (*store.Call, error)
	UpdateCallStatus(ctx context.Context, providerCallID, status string, at time.Time) error
	InsertReport(ctx context.Context, r store.Report) error
	ListReports(ctx context.Context, candidateID string, limit int) ([]store.Report, error)
}

type Router struct {
	cfg      RouterConfig
	logger   *log.Logger
	store    Store
	eventLog *eventlog.Logger
	sessions *session.Registry
	sms      *notifications.SMSClient
	mux      *http.ServeMux

	httpClient *http.Client

	// Dependency factories, replaced by tests.
	newRecognizer func(ctx context.Context) (stt.Recognizer, error)
	newSynth      func() tts.Client
	newQuestions  func() interview.QuestionSource
	newEvaluator  func() interview.Evaluator
	newReadiness  func() interview.ReadinessClassifier
}

func NewRouter(cfg RouterConfig, logger *log.Logger, st Store, eventLog *eventlog.Logger, sessions *session.Registry, sms *notifications.SMSClient) http.Handler {
	r := newRouter(cfg, logger, st, eventLog, sessions, sms)
	return withSentryRecovery(withCORS(r.mux))
}

func newRouter(cfg RouterConfig, logger *log.Logger, st Store, eventLog *eventlog.Logger, sessions *session.Registry, sms *notifications.SMSClient) *Router {
	if cfg.TurnTimeout <= 0 {
		cfg.TurnTimeout = 30 * time.Second
	}
	if cfg.MediaInactivityTimeout <= 0 {
		cfg.MediaInactivityTimeout = 30 * time.Second
	}
	if sessions == nil {
		sessions = session.NewRegistry()
	}

	r := &Router{
		cfg:        cfg,
		logger:     logger,
		store:      st,
		eventLog:   eventLog,
		sessions:   sessions,
		sms:        sms,
		mux:        http.NewServeMux(),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}

	r.newRecognizer = func(ctx context.Context) (stt.Recognizer, error) {
		return stt.NewVoskClient(ctx, stt.VoskConfig{
			URL:        cfg.STTServerURL,
			SampleRate: 8000,
		})
	}
	r.newSynth = func() tts.Client {
		return tts.NewElevenLabsClient(tts.ElevenLabsConfig{
			APIKey:  cfg.ElevenLabsAPIKey,
			VoiceID: cfg.TTSVoiceID,
		})
	}

	llm := interview.NewOpenAIClient(interview.OpenAIConfig{
		APIKey: cfg.OpenAIAPIKey,
		Model:  cfg.OpenAIModel,
	})
	r.newQuestions = func() interview.QuestionSource {
		if cfg.QuestionMode == "generative" {
			return llm
		}
		return interview.NewFixedSource()
	}
	r.newEvaluator = func() interview.Evaluator { return llm }
	r.newReadiness = func() interview.ReadinessClassifier { return llm }

	r.routes()
	return r
}

func (r *Router) routes() {
	// Health check
	r.mux.HandleFunc("GET /healthz", r.handleHealthz)
	r.mux.Handle("GET /metrics", metrics.Handler())

	// Twilio webhooks (no auth - called back by the provider)
	r.mux.HandleFunc("POST /telephony/voice", r.handleTwilioVoice)
	r.mux.HandleFunc("POST /telephony/status", r.handleTwilioStatus)
	r.mux.HandleFunc("GET /media", r.handleMediaWS)

	// Protected operator API
	r.mux.HandleFunc("POST /api/interviews", r.withAuth(r.handleCreateInterview))
	r.mux.HandleFunc("GET /api/reports", r.withAuth(r.handleListReports))
	r.mux.HandleFunc("GET /api/reports/{candidateID}", r.withAuth(r.handleCandidateReports))
}

func (r *Router) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func withSentryRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				hub := sentry.CurrentHub().Clone()
				hub.Scope().SetRequest(req)
				hub.RecoverWithContext(req.Context(), err)
				hub.Flush(2 * time.Second)
				http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, req)
	})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if req.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, req)
	})
}

func nowUTC() time.Time { return time.Now().UTC() }

// captureError sends an error to Sentry with request context
func captureError(req *http.Request, err error, msg string) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetRequest(req)
		scope.SetExtra("message", msg)
		sentry.CaptureException(err)
	})
}

func wsURLFromPublicBase(publicBase string) string {
	// http://x -> ws://x
	// https://x -> wss://x
	if strings.HasPrefix(publicBase, "https://") {
		return "wss://" + strings.TrimPrefix(publicBase, "https://")
	}
	if strings.HasPrefix(publicBase, "http://") {
		return "ws://" + strings.TrimPrefix(publicBase, "http://")
	}
	// assume already host[:port]
	return "wss://" + publicBase
}
