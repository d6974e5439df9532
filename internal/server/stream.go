package server

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/reacture/engine/pkg/core"
	"github.com/reacture/engine/pkg/streaming"
)

// LiveSession is a session currently streaming to the server.
type LiveSession struct {
	Info       core.SessionInfo `json:"info"`
	Samples    int              `json:"samples"`
	Frames     int              `json:"frames"`
	Decisions  int              `json:"decisions"`
	Successes  int              `json:"successful_decisions"`
	Zone       core.ZoneClass   `json:"zone"`
	Battery    float64          `json:"battery"`
	Damage     float64          `json:"damage"`
	Position   core.Position3D  `json:"position"`
	LastUpdate time.Time        `json:"last_update"`
}

type liveSessions struct {
	mu       sync.RWMutex
	sessions map[string]*LiveSession
}

func newLiveSessions() *liveSessions {
	return &liveSessions{sessions: make(map[string]*LiveSession)}
}

func (l *liveSessions) start(info core.SessionInfo) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sessions[info.ID] = &LiveSession{Info: info, LastUpdate: time.Now()}
}

func (l *liveSessions) update(id string, fn func(*LiveSession)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ls, ok := l.sessions[id]; ok {
		fn(ls)
		ls.LastUpdate = time.Now()
	}
}

func (l *liveSessions) remove(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.sessions, id)
}

// list returns copies ordered by session id.
func (l *liveSessions) list() []LiveSession {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]LiveSession, 0, len(l.sessions))
	for _, ls := range l.sessions {
		out = append(out, *ls)
	}
	slices.SortFunc(out, func(a, b LiveSession) int {
		return strings.Compare(a.Info.ID, b.Info.ID)
	})
	return out
}

type liveResponse struct {
	Success  bool          `json:"success"`
	Sessions []LiveSession `json:"sessions"`
}

func (s *Server) handleLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, liveResponse{Success: true, Sessions: s.live.list()})
}

// handleStream collects one websocket telemetry stream. start_session and
// end_session are acknowledged; everything else updates the live view.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Secret != "" && subtle.ConstantTimeCompare([]byte(r.URL.Query().Get("secret")), []byte(s.cfg.Secret)) != 1 {
		writeError(w, http.StatusUnauthorized, "Invalid secret")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	var current string
	defer func() {
		if current != "" {
			s.live.remove(current)
			s.logger.Warn("Stream closed before end_session", "session_id", current)
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("Stream read ended", "error", err)
			}
			return
		}

		var env streaming.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			s.logger.Warn("Malformed stream message", "error", err)
			continue
		}

		ack, err := s.handleEnvelope(env, &current)
		if err != nil {
			s.logger.Warn("Failed to handle stream message", "type", env.Type, "error", err)
			continue
		}
		if !ack {
			continue
		}
		if err := conn.WriteJSON(streaming.NewAck(env.Type)); err != nil {
			s.logger.Warn("Failed to send ack", "for", env.Type, "error", err)
			return
		}
	}
}

// handleEnvelope applies one message and reports whether it needs an ack.
func (s *Server) handleEnvelope(env streaming.Envelope, current *string) (bool, error) {
	switch env.Type {
	case streaming.TypeStartSession:
		var info core.SessionInfo
		if err := env.Decode(&info); err != nil {
			return false, err
		}
		if *current != "" && *current != info.ID {
			s.live.remove(*current)
		}
		*current = info.ID
		s.live.start(info)
		s.logger.Info("Live session started",
			"session_id", info.ID,
			"environment", info.Environment,
			"player_id", info.PlayerID)
		return true, nil

	case streaming.TypeSample:
		var sample core.TelemetrySample
		if err := env.Decode(&sample); err != nil {
			return false, err
		}
		s.live.update(*current, func(ls *LiveSession) {
			ls.Samples++
			ls.Battery = sample.Battery
			ls.Damage = sample.Damage
			ls.Position = sample.Robot.Position
			ls.Zone = sample.Zone
		})
		return false, nil

	case streaming.TypeFrame:
		s.live.update(*current, func(ls *LiveSession) { ls.Frames++ })
		return false, nil

	case streaming.TypeDecision:
		var d core.Decision
		if err := env.Decode(&d); err != nil {
			return false, err
		}
		s.live.update(*current, func(ls *LiveSession) {
			ls.Decisions++
			if d.Success {
				ls.Successes++
			}
		})
		return false, nil

	case streaming.TypeEndSession:
		var res core.SessionResult
		if err := env.Decode(&res); err != nil {
			return false, err
		}
		s.logger.Info("Live session ended",
			"session_id", *current,
			"score", res.Score,
			"victims_saved", res.VictimsSaved,
			"reason", res.Reason)
		s.live.remove(*current)
		*current = ""
		return true, nil
	}

	s.logger.Debug("Unknown stream message type", "type", env.Type)
	return false, nil
}
