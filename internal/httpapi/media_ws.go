package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rsahay/prescreen/internal/audio"
	"github.com/rsahay/prescreen/internal/eventlog"
	"github.com/rsahay/prescreen/internal/metrics"
	"github.com/rsahay/prescreen/internal/session"
	"github.com/rsahay/prescreen/internal/store"
	"github.com/rsahay/prescreen/internal/stt"
	"github.com/rsahay/prescreen/internal/tts"
	"github.com/rsahay/prescreen/internal/turn"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Twilio Media Stream message types
type streamMessage struct {
	Event          string       `json:"event"`
	SequenceNumber string       `json:"sequenceNumber,omitempty"`
	Start          *streamStart `json:"start,omitempty"`
	Media          *streamMedia `json:"media,omitempty"`
	Mark           *streamMark  `json:"mark,omitempty"`
	StreamSid      string       `json:"streamSid,omitempty"`
}

type streamStart struct {
	StreamSid    string            `json:"streamSid"`
	AccountSid   string            `json:"accountSid"`
	CallSid      string            `json:"callSid"`
	Tracks       []string          `json:"tracks"`
	CustomParams map[string]string `json:"customParameters"`
	MediaFormat  struct {
		Encoding   string `json:"encoding"`
		SampleRate int    `json:"sampleRate"`
		Channels   int    `json:"channels"`
	} `json:"mediaFormat"`
}

type streamMedia struct {
	Track     string `json:"track"`
	Chunk     string `json:"chunk"`
	Timestamp string `json:"timestamp"`
	Payload   string `json:"payload"` // Base64 μ-law audio
}

type streamMark struct {
	Name string `json:"name"`
}

// outboundMedia is the format for sending audio back to the provider
type outboundMedia struct {
	Event     string `json:"event"`
	StreamSid string `json:"streamSid"`
	Media     struct {
		Payload string `json:"payload"` // Base64 μ-law audio
	} `json:"media"`
}

// outboundMark asks the provider to echo a mark back once the audio queued
// before it has been played to the caller.
type outboundMark struct {
	Event     string `json:"event"`
	StreamSid string `json:"streamSid"`
	Mark      struct {
		Name string `json:"name"`
	} `json:"mark"`
}

// mediaConn wraps the websocket with a write lock and implements
// audio.FrameWriter so the frame scheduler can transmit through it.
type mediaConn struct {
	conn      *websocket.Conn
	mu        sync.Mutex
	streamSid string
}

func (m *mediaConn) WriteFrame(payload []byte) error {
	out := outboundMedia{Event: "media", StreamSid: m.streamSid}
	out.Media.Payload = base64.StdEncoding.EncodeToString(payload)

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn.WriteJSON(out)
}

func (m *mediaConn) WriteMark(name string) error {
	mark := outboundMark{Event: "mark", StreamSid: m.streamSid}
	mark.Mark.Name = name

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn.WriteJSON(mark)
}

func (m *mediaConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn.Close()
}

// callFlow drives one media stream connection: it decodes inbound frames,
// feeds the recognizer, detects turns, and forwards completed utterances to
// the call's session. All session access happens on the read loop.
type callFlow struct {
	router *Router
	conn   *mediaConn

	callSid    string
	accountSid string

	sess       *session.Session
	recognizer stt.Recognizer
	detector   *turn.Detector

	synth tts.Client
	sched *audio.Scheduler

	// pendingFinal holds the recognizer's confirmed transcript until the
	// silence window closes the turn.
	pendingFinal string

	speechCh     chan string
	speechSeq    int
	pendingMarks int // utterances spoken but not yet confirmed by a mark
	playbackDone chan struct{}

	// turnDeadline bounds the wait for one answer; zero while we are speaking.
	turnDeadline time.Time

	hangingUp bool

	ctx    context.Context
	cancel context.CancelFunc
}

func (r *Router) handleMediaWS(w http.ResponseWriter, req *http.Request) {
	if r.cfg.OpenAIAPIKey == "" || r.cfg.ElevenLabsAPIKey == "" || r.cfg.STTServerURL == "" {
		r.logger.Printf("media_ws: missing provider configuration")
		captureError(req, fmt.Errorf("interview engine not configured: missing provider keys"), "media_ws: configuration error")
		http.Error(w, "interview engine not configured", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Printf("media_ws: upgrade failed: %v", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	flow := &callFlow{
		router:       r,
		conn:         &mediaConn{conn: conn},
		speechCh:     make(chan string, 16),
		playbackDone: make(chan struct{}),
		ctx:          ctx,
		cancel:       cancel,
	}

	r.logger.Printf("media_ws: connection established, waiting for start message")
	flow.run()
}

func (f *callFlow) run() {
	defer f.cleanup()

	r := f.router
	for {
		select {
		case <-f.ctx.Done():
			return
		default:
		}

		_ = f.conn.conn.SetReadDeadline(time.Now().Add(r.cfg.MediaInactivityTimeout))
		_, msg, err := f.conn.conn.ReadMessage()
		if err != nil {
			if netErr, ok := err.(interface{ Timeout() bool }); ok && netErr.Timeout() {
				r.logger.Printf("media_ws: no media for %s on call %s", r.cfg.MediaInactivityTimeout, f.callSid)
				if f.sess != nil {
					f.sess.HandleInactivity(f.ctx)
				}
			} else if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				r.logger.Printf("media_ws: connection closed for call %s", f.callSid)
			} else {
				r.logger.Printf("media_ws: read error for call %s: %v", f.callSid, err)
			}
			return
		}

		var in streamMessage
		if err := json.Unmarshal(msg, &in); err != nil {
			r.logger.Printf("media_ws: failed to parse message: %v", err)
			continue
		}

		switch in.Event {
		case "connected":
			r.logger.Printf("media_ws: provider connected")

		case "start":
			if err := f.handleStart(in.Start); err != nil {
				r.logger.Printf("media_ws: start error: %v", err)
				return
			}

		case "media":
			if err := f.handleMedia(in.Media); err != nil {
				r.logger.Printf("media_ws: media error for call %s: %v", f.callSid, err)
			}

		case "stop":
			r.logger.Printf("media_ws: stream stopped for call %s", f.callSid)
			return

		case "mark":
			f.handleMark(in.Mark)
			if f.hangingUp {
				return
			}
		}
	}
}

func (f *callFlow) handleStart(start *streamStart) error {
	if start == nil {
		return fmt.Errorf("nil start message")
	}
	r := f.router

	f.conn.streamSid = start.StreamSid
	f.accountSid = start.AccountSid
	f.callSid = start.CallSid
	if f.callSid == "" {
		f.callSid = start.CustomParams["callSid"]
	}
	if f.callSid == "" {
		return fmt.Errorf("start message carries no call identifier")
	}

	candidate, job := f.resolveContext(start.CustomParams)

	recognizer, err := r.newRecognizer(f.ctx)
	if err != nil {
		return fmt.Errorf("connect recognizer: %w", err)
	}
	f.recognizer = recognizer
	f.detector = turn.NewDetector(r.cfg.SilenceFrames)
	f.synth = r.newSynth()
	f.sched = audio.NewScheduler(f.conn)

	sess, created := r.sessions.GetOrCreate(f.callSid, func() *session.Session {
		return session.New(session.Config{
			CallID:    f.callSid,
			Candidate: candidate,
			Job:       job,
			Questions: r.newQuestions(),
			Evaluator: r.newEvaluator(),
			Readiness: r.newReadiness(),
			Speaker:   f,
			Reports:   r.store,
			Events:    r.eventLog,
			Logger:    r.logger,
		})
	})
	if sess == nil {
		return fmt.Errorf("server draining, rejecting call %s", f.callSid)
	}
	if !created {
		// Another stream already owns this call's session.
		return fmt.Errorf("duplicate media stream for call %s", f.callSid)
	}
	f.sess = sess
	sess.SetStreamID(start.StreamSid)
	metrics.ActiveSessions.Inc()

	r.logger.Printf("media_ws: stream started - StreamSid: %s, CallSid: %s", start.StreamSid, f.callSid)

	go f.playbackLoop()

	_ = r.store.UpdateCallStatus(f.ctx, f.callSid, "in_progress", nowUTC())

	// Question generation may hit a language model; bound it so a slow
	// provider cannot stall the stream indefinitely.
	beginCtx, cancel := context.WithTimeout(f.ctx, 15*time.Second)
	defer cancel()
	sess.Begin(beginCtx)

	return nil
}

// resolveContext loads the candidate and job for this call, preferring the
// stream's custom parameters and falling back to the recorded call row.
func (f *callFlow) resolveContext(params map[string]string) (*store.Candidate, *store.Job) {
	r := f.router
	candidateID := params["candidateId"]
	jobID := params["jobId"]

	if candidateID == "" || jobID == "" {
		if call, err := r.store.GetCallByProviderID(f.ctx, f.callSid); err == nil {
			if candidateID == "" {
				candidateID = call.CandidateID
			}
			if jobID == "" {
				jobID = call.JobID
			}
		} else if !errors.Is(err, store.ErrNotFound) {
			r.logger.Printf("media_ws: call lookup failed for %s: %v", f.callSid, err)
		}
	}

	var candidate *store.Candidate
	var job *store.Job
	if candidateID != "" {
		var err error
		if candidate, err = r.store.GetCandidate(f.ctx, candidateID); err != nil {
			r.logger.Printf("media_ws: candidate %s lookup failed: %v", candidateID, err)
		}
	}
	if jobID != "" {
		var err error
		if job, err = r.store.GetJob(f.ctx, jobID); err != nil {
			r.logger.Printf("media_ws: job %s lookup failed: %v", jobID, err)
		}
	}
	return candidate, job
}

// handleMedia decodes one inbound frame, feeds the recognizer and advances
// turn detection. Runs for every 20ms of caller audio.
func (f *callFlow) handleMedia(media *streamMedia) error {
	if media == nil || f.recognizer == nil || f.sess == nil {
		return nil
	}

	payload, err := base64.StdEncoding.DecodeString(media.Payload)
	if err != nil {
		return fmt.Errorf("decode audio: %w", err)
	}
	metrics.MediaFramesReceived.Inc()

	pcm := audio.DecodePCM16(payload)
	if err := f.recognizer.Accept(f.ctx, pcm); err != nil {
		return fmt.Errorf("recognizer accept: %w", err)
	}

	// The recognizer may confirm the utterance before the caller has gone
	// quiet. Hold the confirmed transcript; the silence window still decides
	// when the turn is over, so a mid-answer pause never truncates the answer.
	if final := f.recognizer.Final(); final != "" {
		f.pendingFinal = final
	}

	partial := f.recognizer.Partial()
	if text, done := f.detector.Observe(partial); done {
		if f.pendingFinal != "" {
			text = f.pendingFinal
		}
		f.pendingFinal = ""
		f.finishTurn(text)
		return nil
	}
	if partial != "" {
		// The candidate is mid-answer; keep the turn alive.
		f.turnDeadline = time.Now().Add(f.router.cfg.TurnTimeout)
	}

	if !f.turnDeadline.IsZero() && time.Now().After(f.turnDeadline) {
		f.turnDeadline = time.Time{}
		f.detector.Reset()
		f.pendingFinal = ""
		f.sess.HandleTurnTimeout(f.ctx)
		f.checkDone()
	}
	return nil
}

func (f *callFlow) finishTurn(text string) {
	f.turnDeadline = time.Time{}
	metrics.TurnsFinalized.Inc()
	f.router.logger.Printf("media_ws: caller said on call %s: %s", f.callSid, text)
	f.sess.HandleUtterance(f.ctx, text)
	f.checkDone()
}

// checkDone starts the hang-up sequence once the session reaches its terminal
// state and nothing is queued to play.
func (f *callFlow) checkDone() {
	if f.sess.Done() && f.pendingMarks == 0 && len(f.speechCh) == 0 {
		f.hangUp()
	}
}

func (f *callFlow) handleMark(mark *streamMark) {
	if f.pendingMarks > 0 {
		f.pendingMarks--
	}
	if f.pendingMarks > 0 {
		return
	}

	if f.sess != nil && f.sess.Done() {
		f.hangUp()
		return
	}
	// The caller has heard the prompt; the answer clock starts now.
	f.turnDeadline = time.Now().Add(f.router.cfg.TurnTimeout)
}

// hangUp ends the provider call once the farewell has been played.
func (f *callFlow) hangUp() {
	if f.hangingUp {
		return
	}
	f.hangingUp = true

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := f.router.endCall(ctx, f.accountSid, f.callSid); err != nil {
		f.router.logger.Printf("media_ws: hang up failed for call %s: %v", f.callSid, err)
	}
}

// Speak queues one utterance for paced playback. It satisfies
// session.Speaker; the playback goroutine reports transport failures.
func (f *callFlow) Speak(ctx context.Context, text string) error {
	select {
	case f.speechCh <- text:
		f.pendingMarks++
		return nil
	case <-f.ctx.Done():
		return f.ctx.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// playbackLoop synthesizes queued utterances and plays the audio at the wire
// rate as it streams in, following each utterance with a mark so we learn when
// the caller has heard it.
func (f *callFlow) playbackLoop() {
	defer close(f.playbackDone)

	for text := range f.speechCh {
		f.speechSeq++

		chunks, err := f.synth.SynthesizeStream(f.ctx, text)
		if err != nil {
			f.router.logger.Printf("media_ws: synthesis failed for call %s: %v", f.callSid, err)
			metrics.SpeechFailures.Inc()
			// Still send the mark so turn timing is not stranded.
			_ = f.conn.WriteMark(fmt.Sprintf("utterance-%d", f.speechSeq))
			continue
		}

		for payload := range chunks {
			if _, err := f.sched.Play(f.ctx, payload); err != nil {
				f.router.logger.Printf("media_ws: playback aborted for call %s: %v", f.callSid, err)
				metrics.SpeechFailures.Inc()
				for range chunks {
				}
				break
			}
		}
		_ = f.conn.WriteMark(fmt.Sprintf("utterance-%d", f.speechSeq))
	}
}

func (f *callFlow) cleanup() {
	r := f.router
	f.cancel()

	// A disconnect mid-interview is a timeout from the candidate's side.
	if f.sess != nil && !f.sess.Done() {
		f.sess.HandleInactivity(context.Background())
	}

	close(f.speechCh)
	select {
	case <-f.playbackDone:
	case <-time.After(time.Second):
	}

	if f.recognizer != nil {
		_ = f.recognizer.Close()
	}
	_ = f.conn.Close()

	if f.sess != nil {
		f.finishCall()
		r.sessions.Remove(f.callSid)
		metrics.ActiveSessions.Dec()
	}

	r.logger.Printf("media_ws: session cleaned up for call %s", f.callSid)
}

// finishCall records the terminal call and candidate status and notifies the
// recruiter. Runs with a background context: the stream is already gone.
func (f *callFlow) finishCall() {
	r := f.router
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	outcome := f.sess.Outcome()

	callStatus := "completed"
	if outcome == session.OutcomeTimedOut {
		callStatus = "timed_out"
	}
	if err := r.store.UpdateCallStatus(ctx, f.callSid, callStatus, nowUTC()); err != nil {
		r.logger.Printf("media_ws: failed to update call status for %s: %v", f.callSid, err)
	}

	var candidate *store.Candidate
	var job *store.Job
	if call, err := r.store.GetCallByProviderID(ctx, f.callSid); err == nil {
		if call.CandidateID != "" {
			candidate, _ = r.store.GetCandidate(ctx, call.CandidateID)
		}
		if call.JobID != "" {
			job, _ = r.store.GetJob(ctx, call.JobID)
		}
	}

	if candidate != nil {
		candidateStatus := map[session.Outcome]string{
			session.OutcomeSelected: "selected",
			session.OutcomeRejected: "rejected",
		}[outcome]
		if candidateStatus == "" {
			candidateStatus = "pending"
		}
		if err := r.store.UpdateCandidateStatus(ctx, candidate.ID, candidateStatus); err != nil {
			r.logger.Printf("media_ws: failed to update candidate %s: %v", candidate.ID, err)
		}
	}

	if r.cfg.RecruiterPhone != "" {
		name, title := "", ""
		if candidate != nil {
			name = candidate.Name
		}
		if job != nil {
			title = job.Title
		}
		var err error
		switch outcome {
		case session.OutcomeSelected, session.OutcomeRejected:
			avg := 0.0
			if results := f.sess.Results(); len(results) > 0 {
				sum := 0
				for _, qa := range results {
					sum += qa.Score
				}
				avg = float64(sum) / float64(len(results))
			}
			err = r.sms.NotifyDecision(ctx, r.cfg.RecruiterPhone, name, title, string(outcome), avg)
		default:
			err = r.sms.NotifyMissedInterview(ctx, r.cfg.RecruiterPhone, name, title, string(outcome))
		}
		if err != nil {
			r.logger.Printf("media_ws: recruiter notification failed for call %s: %v", f.callSid, err)
		}
	}

	r.eventLog.LogAsync(f.callSid, eventlog.EventCallEnded, map[string]any{
		"outcome": string(outcome),
	})
}
