package httpapi

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Minimal TwiML (enough to start Media Streams).
// Twilio expects Content-Type: text/xml.
type twimlResponse struct {
	XMLName xml.Name      `xml:"Response"`
	Say     *twimlSay     `xml:"Say,omitempty"`
	Connect *twimlConnect `xml:"Connect,omitempty"`
	Reject  *twimlReject  `xml:"Reject,omitempty"`
}

type twimlSay struct {
	Voice string `xml:"voice,attr,omitempty"`
	Text  string `xml:",chardata"`
}

type twimlReject struct {
	Reason string `xml:"reason,attr,omitempty"` // "rejected" or "busy"
}

type twimlConnect struct {
	Stream twimlStream `xml:"Stream"`
}

type twimlStream struct {
	URL        string           `xml:"url,attr"`
	Parameters []twimlParameter `xml:"Parameter,omitempty"`
}

type twimlParameter struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

func writeTwiML(w http.ResponseWriter, resp twimlResponse) {
	out, _ := xml.MarshalIndent(resp, "", "  ")
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	_, _ = w.Write([]byte(xml.Header))
	_, _ = w.Write(out)
}

// handleTwilioVoice answers the voice webhook for a placed screening call and
// connects the call's audio to our media websocket. Candidate and job context
// travels in the webhook URL query (set at call placement) and is forwarded
// to the stream as custom parameters.
func (r *Router) handleTwilioVoice(w http.ResponseWriter, req *http.Request) {
	// Twilio sends application/x-www-form-urlencoded by default.
	if err := req.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}

	callSid := req.FormValue("CallSid")
	if callSid == "" {
		http.Error(w, "missing CallSid", http.StatusBadRequest)
		return
	}

	candidateID := req.URL.Query().Get("candidate_id")
	jobID := req.URL.Query().Get("job_id")

	if r.sessions.IsDraining() {
		r.logger.Printf("voice: rejecting call %s, server draining", callSid)
		writeTwiML(w, twimlResponse{Reject: &twimlReject{Reason: "busy"}})
		return
	}

	r.logger.Printf("voice: call %s answered (candidate=%s, job=%s)", callSid, candidateID, jobID)

	wsBase := wsURLFromPublicBase(r.cfg.PublicBaseURL)
	mediaURL := strings.TrimRight(wsBase, "/") + "/media"

	params := []twimlParameter{
		{Name: "callSid", Value: callSid},
	}
	if candidateID != "" {
		params = append(params, twimlParameter{Name: "candidateId", Value: candidateID})
	}
	if jobID != "" {
		params = append(params, twimlParameter{Name: "jobId", Value: jobID})
	}

	writeTwiML(w, twimlResponse{
		Connect: &twimlConnect{
			Stream: twimlStream{
				URL:        mediaURL,
				Parameters: params,
			},
		},
	})
}

func (r *Router) handleTwilioStatus(w http.ResponseWriter, req *http.Request) {
	_ = req.ParseForm()
	callSid := req.FormValue("CallSid")
	status := req.FormValue("CallStatus") // queued/ringing/in-progress/completed/...

	if callSid != "" && status != "" {
		_ = r.store.UpdateCallStatus(req.Context(), callSid, status, nowUTC())

		// Terminal provider status is the backstop for sessions whose media
		// stream never delivered a stop event.
		switch status {
		case "completed", "failed", "busy", "no-answer", "canceled":
			r.sessions.Remove(callSid)
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) twilioAPIBase() string {
	if r.cfg.TwilioAPIBaseURL != "" {
		return strings.TrimSuffix(r.cfg.TwilioAPIBaseURL, "/")
	}
	return "https://api.twilio.com"
}

// placeCall starts an outbound screening call via the Twilio REST API and
// returns the provider call SID.
func (r *Router) placeCall(ctx context.Context, to, candidateID, jobID string) (string, error) {
	if r.cfg.TwilioAccountSID == "" || r.cfg.TwilioAuthToken == "" || r.cfg.TwilioFromNumber == "" {
		return "", fmt.Errorf("telephony not configured")
	}

	base := strings.TrimRight(r.cfg.PublicBaseURL, "/")
	voiceURL := fmt.Sprintf("%s/telephony/voice?candidate_id=%s&job_id=%s",
		base, url.QueryEscape(candidateID), url.QueryEscape(jobID))

	apiURL := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Calls.json", r.twilioAPIBase(), r.cfg.TwilioAccountSID)

	data := url.Values{}
	data.Set("To", to)
	data.Set("From", r.cfg.TwilioFromNumber)
	data.Set("Url", voiceURL)
	data.Set("StatusCallback", base+"/telephony/status")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("create call request: %w", err)
	}
	req.SetBasicAuth(r.cfg.TwilioAccountSID, r.cfg.TwilioAuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("place call: %w", err)
	}
	defer resp.Body.Close()

	var body struct {
		SID     string `json:"sid"`
		Status  string `json:"status"`
		Message string `json:"message"`
		Code    int    `json:"code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode call response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("Twilio API error: %d - %s", body.Code, body.Message)
	}

	r.logger.Printf("telephony: placed call %s to %s (status=%s)", body.SID, to, body.Status)
	return body.SID, nil
}

// endCall terminates a call via the Twilio REST API.
func (r *Router) endCall(ctx context.Context, accountSid, callSid string) error {
	if accountSid == "" || callSid == "" || r.cfg.TwilioAuthToken == "" {
		return fmt.Errorf("cannot end call: missing accountSid, callSid, or auth token")
	}

	apiURL := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Calls/%s.json", r.twilioAPIBase(), accountSid, callSid)

	data := url.Values{}
	data.Set("Status", "completed")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("create hang up request: %w", err)
	}
	req.SetBasicAuth(accountSid, r.cfg.TwilioAuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("hang up call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("hang up returned status %d", resp.StatusCode)
	}
	return nil
}
