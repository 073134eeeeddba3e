package app

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rsahay/prescreen/internal/eventlog"
	"github.com/rsahay/prescreen/internal/httpapi"
	"github.com/rsahay/prescreen/internal/notifications"
	"github.com/rsahay/prescreen/internal/session"
	"github.com/rsahay/prescreen/internal/store"
)

type App struct {
	cfg        Config
	logger     *log.Logger
	db         *pgxpool.Pool
	store      *store.Store
	eventLog   *eventlog.Logger
	sessions   *session.Registry
	sms        *notifications.SMSClient
	httpClient *http.Client // Shared HTTP client with connection pooling for provider APIs
}

func New(cfg Config, logger *log.Logger) (*App, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, err
	}

	// Migrations are applied externally by the deploy job.
	// No automatic migration runner at startup.

	// Keeps TCP connections alive to reduce latency for repeated synthesis
	// and evaluation calls during a live interview.
	httpClient := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   5 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}

	sms := notifications.NewSMSClient(notifications.SMSConfig{
		AccountSID:   cfg.TwilioAccountSID,
		AuthToken:    cfg.TwilioAuthToken,
		SenderNumber: cfg.TwilioFromNumber,
		HTTPClient:   httpClient,
	}, logger)

	return &App{
		cfg:        cfg,
		logger:     logger,
		db:         db,
		store:      store.New(db),
		eventLog:   eventlog.New(db),
		sessions:   session.NewRegistry(),
		sms:        sms,
		httpClient: httpClient,
	}, nil
}

func (a *App) Router() http.Handler {
	routerCfg := httpapi.RouterConfig{
		PublicBaseURL:          a.cfg.PublicBaseURL,
		TwilioAccountSID:       a.cfg.TwilioAccountSID,
		TwilioAuthToken:        a.cfg.TwilioAuthToken,
		TwilioFromNumber:       a.cfg.TwilioFromNumber,
		OpenAIAPIKey:           a.cfg.OpenAIAPIKey,
		OpenAIModel:            a.cfg.OpenAIModel,
		ElevenLabsAPIKey:       a.cfg.ElevenLabsAPIKey,
		TTSVoiceID:             a.cfg.TTSVoiceID,
		STTServerURL:           a.cfg.STTServerURL,
		QuestionMode:           a.cfg.QuestionMode,
		SilenceFrames:          a.cfg.SilenceFrames,
		TurnTimeout:            a.cfg.TurnTimeout,
		MediaInactivityTimeout: a.cfg.MediaInactivityTimeout,
		RecruiterPhone:         a.cfg.RecruiterPhone,
		JWTSecret:              a.cfg.JWTSecret,
	}
	return httpapi.NewRouter(routerCfg, a.logger, a.store, a.eventLog, a.sessions, a.sms)
}

// Sessions exposes the call registry so shutdown can drain live interviews.
func (a *App) Sessions() *session.Registry {
	return a.sessions
}

func (a *App) Close() error {
	if a.db != nil {
		a.db.Close()
	}
	return nil
}
