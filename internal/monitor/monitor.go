// Package monitor periodically reports the status of a running session.
package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/reacture/engine/internal/dispatcher"
)

// DefaultInterval is used when Dependencies.Interval is zero.
const DefaultInterval = time.Second

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Logger     *slog.Logger
	StatusFile string // rewritten on every report, optional
	Interval   time.Duration

	// Session returns the live session status.
	Session func() (dispatcher.Status, error)
	// Pending returns rows still queued for storage, optional.
	Pending func() int
}

// Status is one report.
type Status struct {
	Time          time.Time         `json:"time"`
	Session       dispatcher.Status `json:"session"`
	PendingWrites int               `json:"pending_writes"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Interval <= 0 {
		deps.Interval = DefaultInterval
	}
	return &Service{deps: deps}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Snapshot collects the current status.
func (s *Service) Snapshot() (Status, error) {
	st := Status{Time: time.Now().UTC()}
	sess, err := s.deps.Session()
	if err != nil {
		return st, err
	}
	st.Session = sess
	if s.deps.Pending != nil {
		st.PendingWrites = s.deps.Pending()
	}
	return st, nil
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}

	var statusFile *os.File
	if s.deps.StatusFile != "" {
		f, err := os.Create(s.deps.StatusFile)
		if err != nil {
			return fmt.Errorf("error creating status file: %w", err)
		}
		statusFile = f
	}

	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	go s.loop(statusFile)
	return nil
}

func (s *Service) loop(statusFile *os.File) {
	defer close(s.done)
	defer func() {
		if statusFile != nil {
			statusFile.Close()
		}
	}()
	logger := s.deps.Logger
	logger.Debug("Starting status monitor", "interval", s.deps.Interval)

	ticker := time.NewTicker(s.deps.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.report(logger, statusFile)
		}
	}
}

func (s *Service) report(logger *slog.Logger, statusFile *os.File) {
	st, err := s.Snapshot()
	if err != nil {
		logger.Warn("Failed to read session status", "error", err)
		return
	}
	logger.Debug("Session status",
		"elapsed_s", st.Session.ElapsedS,
		"score", st.Session.Score,
		"health", st.Session.Health,
		"fuel", st.Session.Fuel,
		"samples", st.Session.Samples,
		"pending_writes", st.PendingWrites)

	if statusFile == nil {
		return
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		logger.Error("Error encoding status", "error", err)
		return
	}
	if err := statusFile.Truncate(0); err != nil {
		logger.Error("Error truncating status file", "error", err)
		return
	}
	if _, err := statusFile.WriteAt(append(data, '\n'), 0); err != nil {
		logger.Error("Error writing status file", "error", err)
	}
}

// Stop stops the status monitor and waits for it to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()
	<-done
}

// SessionStatus adapts a dispatcher bound to a session into Dependencies.Session.
func SessionStatus(d *dispatcher.Dispatcher) func() (dispatcher.Status, error) {
	return func() (dispatcher.Status, error) {
		out, err := d.Dispatch(dispatcher.Event{Command: dispatcher.CmdStatus})
		if err != nil {
			return dispatcher.Status{}, err
		}
		res, ok := out.(dispatcher.Result)
		if !ok {
			return dispatcher.Status{}, fmt.Errorf("unexpected status result %T", out)
		}
		st, ok := res.Value.(dispatcher.Status)
		if !ok {
			return dispatcher.Status{}, fmt.Errorf("unexpected status value %T", res.Value)
		}
		return st, nil
	}
}
