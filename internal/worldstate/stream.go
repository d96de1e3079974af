package worldstate

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

// Streamer maintains a websocket connection to the bot's live world-state
// feed and exposes the latest decoded Sample as a Fetcher, an alternative to
// a polling fetcher for callers that already run a streaming bridge to the
// agent process.
type Streamer struct {
	url string

	mu     sync.Mutex
	latest *Sample
	conn   *websocket.Conn
}

// NewStreamer dials url and starts a background reader goroutine that keeps
// the latest sample current until ctx is cancelled.
func NewStreamer(ctx context.Context, url string) (*Streamer, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}

	s := &Streamer{url: url, conn: conn}
	go s.readLoop(ctx)
	return s, nil
}

func (s *Streamer) readLoop(ctx context.Context) {
	defer s.conn.Close()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			log.Printf("worldstate: stream read from %s failed: %v", s.url, err)
			return
		}

		var sample Sample
		if err := json.Unmarshal(payload, &sample); err != nil {
			log.Printf("worldstate: stream payload from %s did not decode to a Sample: %v", s.url, err)
			continue
		}

		s.mu.Lock()
		s.latest = &sample
		s.mu.Unlock()
	}
}

// Fetch satisfies Fetcher: it returns the most recently decoded sample, or
// nil if none has arrived yet. It never blocks on the network — it is meant
// to be wrapped by Cache, which applies its own TTL and single-flight
// semantics on top.
func (s *Streamer) Fetch(ctx context.Context) (*Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		return nil, nil
	}
	cp := *s.latest
	return &cp, nil
}

// Close tears down the underlying connection.
func (s *Streamer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close()
}

var _ Fetcher = (*Streamer)(nil).Fetch
