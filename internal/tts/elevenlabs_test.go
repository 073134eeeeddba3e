package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewElevenLabsClient_Defaults(t *testing.T) {
	client := NewElevenLabsClient(ElevenLabsConfig{APIKey: "test-key"})

	if client.voiceID != "21m00Tcm4TlvDq8ikWAM" {
		t.Errorf("voiceID = %q, want default voice", client.voiceID)
	}
	if client.modelID != "eleven_flash_v2_5" {
		t.Errorf("modelID = %q, want %q", client.modelID, "eleven_flash_v2_5")
	}
	if client.baseURL != elevenLabsAPIURL {
		t.Errorf("baseURL = %q, want %q", client.baseURL, elevenLabsAPIURL)
	}
	if client.httpClient == nil {
		t.Error("httpClient should default to a usable client")
	}
}

func TestSynthesizeRequestsWireFormat(t *testing.T) {
	audio := bytes.Repeat([]byte{0xFF}, 320)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("output_format"); got != "ulaw_8000" {
			t.Errorf("output_format = %q, want ulaw_8000", got)
		}
		if got := r.Header.Get("xi-api-key"); got != "test-key" {
			t.Errorf("xi-api-key = %q, want test-key", got)
		}
		var req synthesisRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Text != "Question 1: tell me about yourself." {
			t.Errorf("text = %q", req.Text)
		}
		_, _ = w.Write(audio)
	}))
	defer srv.Close()

	client := NewElevenLabsClient(ElevenLabsConfig{
		APIKey:  "test-key",
		VoiceID: "voice-1",
		BaseURL: srv.URL,
	})

	got, err := client.Synthesize(context.Background(), "Question 1: tell me about yourself.")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if !bytes.Equal(got, audio) {
		t.Errorf("Synthesize returned %d bytes, want %d", len(got), len(audio))
	}
}

func TestSynthesizeAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewElevenLabsClient(ElevenLabsConfig{APIKey: "test-key", BaseURL: srv.URL})
	if _, err := client.Synthesize(context.Background(), "hello"); err == nil {
		t.Fatal("Synthesize should surface a non-200 response as an error")
	}
}

func TestSynthesizeStreamDeliversAllBytes(t *testing.T) {
	audio := bytes.Repeat([]byte{0x2A}, streamChunkBytes*2+100)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(audio)
	}))
	defer srv.Close()

	client := NewElevenLabsClient(ElevenLabsConfig{APIKey: "test-key", BaseURL: srv.URL})
	ch, err := client.SynthesizeStream(context.Background(), "hello")
	if err != nil {
		t.Fatalf("SynthesizeStream: %v", err)
	}

	var got []byte
	for chunk := range ch {
		got = append(got, chunk...)
	}
	if !bytes.Equal(got, audio) {
		t.Errorf("stream delivered %d bytes, want %d", len(got), len(audio))
	}
}
