package websocket

import (
	"log/slog"

	"github.com/reacture/engine/pkg/core"
	"github.com/reacture/engine/pkg/streaming"
)

// Config holds WebSocket backend configuration.
type Config struct {
	URL    string
	Secret string
}

// Backend streams session output over WebSocket to a live collector.
// It implements storage.Backend but not storage.Uploadable.
type Backend struct {
	conn *connection
	cfg  Config
}

// New creates a new WebSocket storage backend.
func New(cfg Config, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		conn: newConnection(logger.With("backend", "websocket")),
		cfg:  cfg,
	}
}

// Init connects to the WebSocket server.
func (b *Backend) Init() error {
	return b.conn.dial(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the WebSocket server.
func (b *Backend) Close() error {
	return b.conn.close()
}

// Dropped is the number of messages discarded because the send buffer was full.
func (b *Backend) Dropped() uint64 {
	return b.conn.dropped.Load()
}

// sendEnvelope marshals the payload into an Envelope and pushes it
// to the write loop (fire-and-forget).
func (b *Backend) sendEnvelope(msgType string, payload any) error {
	data, err := streaming.Marshal(msgType, payload)
	if err != nil {
		return err
	}
	b.conn.send(data)
	return nil
}

// StartSession sends the session info and waits for server ack.
func (b *Backend) StartSession(info *core.SessionInfo) error {
	data, err := streaming.Marshal(streaming.TypeStartSession, info)
	if err != nil {
		return err
	}

	// Cache for reconnect replay.
	b.conn.mu.Lock()
	b.conn.cachedStart = data
	b.conn.mu.Unlock()

	return b.conn.sendAndWait(data, streaming.TypeStartSession, ackTimeout)
}

// EndSession sends the result and waits for server ack.
func (b *Backend) EndSession(res *core.SessionResult) error {
	data, err := streaming.Marshal(streaming.TypeEndSession, res)
	if err != nil {
		return err
	}
	err = b.conn.sendAndWait(data, streaming.TypeEndSession, ackTimeout)

	// Clear cached state regardless of error.
	b.conn.mu.Lock()
	b.conn.cachedStart = nil
	b.conn.mu.Unlock()

	return err
}

func (b *Backend) RecordSample(s *core.TelemetrySample) error {
	return b.sendEnvelope(streaming.TypeSample, s)
}

func (b *Backend) RecordFrame(f *core.FrameRecord) error {
	return b.sendEnvelope(streaming.TypeFrame, streaming.NewFramePayload(*f))
}

func (b *Backend) RecordDecision(d *core.Decision) error {
	return b.sendEnvelope(streaming.TypeDecision, d)
}
