package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

// VoskClient implements Recognizer against a vosk-server websocket endpoint.
// The server consumes raw PCM16 frames and answers each chunk with either an
// in-progress partial or, once it detects an endpoint, a confirmed result.
type VoskClient struct {
	conn      *websocket.Conn
	done      chan struct{}
	closeOnce sync.Once
	writeMu   sync.Mutex
	wg        sync.WaitGroup

	resultMu    sync.Mutex
	lastPartial string
	lastFinal   string
}

// VoskConfig holds configuration for the vosk-server connection.
type VoskConfig struct {
	URL        string // e.g. "ws://localhost:2700"
	SampleRate int    // e.g. 8000 for telephony audio
}

// voskResponse is a vosk-server message: partial results carry "partial",
// endpoint results carry "text".
type voskResponse struct {
	Partial string `json:"partial"`
	Text    string `json:"text"`
}

// NewVoskClient dials the recognizer and starts reading results. One client
// serves one call's audio stream.
func NewVoskClient(ctx context.Context, cfg VoskConfig) (*VoskClient, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to recognizer: %w", err)
	}

	sampleRate := cfg.SampleRate
	if sampleRate == 0 {
		sampleRate = 8000
	}
	configMsg := fmt.Sprintf(`{"config": {"sample_rate": %d}}`, sampleRate)
	if err := conn.WriteMessage(websocket.TextMessage, []byte(configMsg)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to configure recognizer: %w", err)
	}

	c := &VoskClient{
		conn: conn,
		done: make(chan struct{}),
	}

	c.wg.Add(1)
	go c.readLoop()

	return c, nil
}

// Accept sends one chunk of PCM16 audio to the recognizer.
func (c *VoskClient) Accept(ctx context.Context, pcm []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	select {
	case <-c.done:
		return fmt.Errorf("recognizer is closed")
	default:
	}

	return c.conn.WriteMessage(websocket.BinaryMessage, pcm)
}

// Partial returns the in-progress transcript for the current utterance.
func (c *VoskClient) Partial() string {
	c.resultMu.Lock()
	defer c.resultMu.Unlock()
	return c.lastPartial
}

// Final returns the recognizer's confirmed transcript for the last completed
// utterance and resets the buffered results.
func (c *VoskClient) Final() string {
	c.resultMu.Lock()
	defer c.resultMu.Unlock()
	final := c.lastFinal
	c.lastFinal = ""
	c.lastPartial = ""
	return final
}

// Close terminates the recognizer session.
func (c *VoskClient) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)

		c.writeMu.Lock()
		_ = c.conn.WriteMessage(websocket.TextMessage, []byte(`{"eof": 1}`))
		c.writeMu.Unlock()

		err = c.conn.Close()
		c.wg.Wait()
	})
	return err
}

// readLoop caches partial and final results as the server produces them.
func (c *VoskClient) readLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.done:
			return
		default:
		}

		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				// The recognizer died mid-call; the audio path surfaces
				// this through the next Accept.
				log.Printf("vosk: read error: %v", err)
			}
			return
		}

		var resp voskResponse
		if err := json.Unmarshal(msg, &resp); err != nil {
			log.Printf("vosk: failed to parse response: %v", err)
			continue
		}

		c.resultMu.Lock()
		if resp.Text != "" {
			c.lastFinal = resp.Text
		} else if resp.Partial != "" {
			c.lastPartial = resp.Partial
		}
		c.resultMu.Unlock()
	}
}
