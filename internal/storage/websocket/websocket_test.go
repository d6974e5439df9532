package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/reacture/engine/pkg/core"
	"github.com/reacture/engine/pkg/streaming"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testServer creates an httptest server that upgrades to WebSocket,
// records received messages, and sends acks for start_session/end_session.
func testServer(t *testing.T) (*httptest.Server, *messageLog) {
	t.Helper()
	ml := &messageLog{}

	upgrader := ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ml.setSecret(r.URL.Query().Get("secret"))
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer c.Close()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}

			var env streaming.Envelope
			if err := json.Unmarshal(msg, &env); err != nil {
				continue
			}
			ml.add(env)

			if env.Type == streaming.TypeStartSession || env.Type == streaming.TypeEndSession {
				data, _ := json.Marshal(streaming.NewAck(env.Type))
				if err := c.WriteMessage(ws.TextMessage, data); err != nil {
					return
				}
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv, ml
}

type messageLog struct {
	mu       sync.Mutex
	secret   string
	messages []streaming.Envelope
}

func (m *messageLog) add(env streaming.Envelope) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, env)
}

func (m *messageLog) setSecret(s string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secret = s
}

func (m *messageLog) all() []streaming.Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]streaming.Envelope, len(m.messages))
	copy(cp, m.messages)
	return cp
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestStartAndEndSession(t *testing.T) {
	srv, ml := testServer(t)

	b := New(Config{URL: wsURL(srv), Secret: "test"}, nil)
	require.NoError(t, b.Init())
	defer b.Close()

	require.NoError(t, b.StartSession(&core.SessionInfo{ID: "reacture_1_abcd", Environment: "earthquake"}))
	require.NoError(t, b.EndSession(&core.SessionResult{Score: 10, Reason: core.EndManual}))

	msgs := ml.all()
	require.Len(t, msgs, 2)
	assert.Equal(t, streaming.TypeStartSession, msgs[0].Type)
	assert.Equal(t, streaming.TypeEndSession, msgs[1].Type)

	var info core.SessionInfo
	require.NoError(t, msgs[0].Decode(&info))
	assert.Equal(t, "reacture_1_abcd", info.ID)

	ml.mu.Lock()
	assert.Equal(t, "test", ml.secret)
	ml.mu.Unlock()

	b.conn.mu.Lock()
	assert.Nil(t, b.conn.cachedStart, "end clears the replay cache")
	b.conn.mu.Unlock()
}

func TestFireAndForgetMessages(t *testing.T) {
	srv, ml := testServer(t)

	b := New(Config{URL: wsURL(srv)}, nil)
	require.NoError(t, b.Init())
	defer b.Close()

	require.NoError(t, b.StartSession(&core.SessionInfo{ID: "s"}))
	require.NoError(t, b.RecordSample(&core.TelemetrySample{TimestampMS: 100, Type: core.SampleRobotState, Event: core.EventPeriodic}))
	require.NoError(t, b.RecordFrame(&core.FrameRecord{Index: 1, Width: 1, Height: 1, Pixels: []byte{1, 2, 3}}))
	require.NoError(t, b.RecordDecision(&core.Decision{Type: core.DecisionInspect, Success: true}))
	// end_session waits for its ack, so everything sent before it has arrived
	require.NoError(t, b.EndSession(&core.SessionResult{}))

	var types []string
	for _, m := range ml.all() {
		types = append(types, m.Type)
	}
	assert.Equal(t, []string{
		streaming.TypeStartSession,
		streaming.TypeSample,
		streaming.TypeFrame,
		streaming.TypeDecision,
		streaming.TypeEndSession,
	}, types)

	var frame streaming.FramePayload
	require.NoError(t, ml.all()[2].Decode(&frame))
	assert.Equal(t, []byte{1, 2, 3}, frame.Pixels)
	assert.Zero(t, b.Dropped())
}

func TestInit_DialFails(t *testing.T) {
	b := New(Config{URL: "ws://127.0.0.1:1/stream"}, nil)
	assert.Error(t, b.Init())
	assert.NoError(t, b.Close())
}

func TestSendAndWait_Timeout(t *testing.T) {
	// a server that never acks
	upgrader := ws.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	b := New(Config{URL: wsURL(srv)}, nil)
	require.NoError(t, b.Init())
	defer b.Close()

	data, err := streaming.Marshal(streaming.TypeStartSession, core.SessionInfo{})
	require.NoError(t, err)
	err = b.conn.sendAndWait(data, streaming.TypeStartSession, 50*time.Millisecond)
	assert.ErrorContains(t, err, "timeout waiting for ack")
}

func TestClose_Idempotent(t *testing.T) {
	srv, _ := testServer(t)
	b := New(Config{URL: wsURL(srv)}, nil)
	require.NoError(t, b.Init())
	assert.NoError(t, b.Close())
	assert.NoError(t, b.Close())
}
