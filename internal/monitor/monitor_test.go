package monitor

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/reacture/engine/internal/dispatcher"
	"github.com/reacture/engine/internal/logging"
	"github.com/reacture/engine/internal/session"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshot(t *testing.T) {
	s := NewService(Dependencies{
		Session: func() (dispatcher.Status, error) { return dispatcher.Status{SessionID: "s1", Score: 5}, nil },
		Pending: func() int { return 12 },
	})
	st, err := s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, "s1", st.Session.SessionID)
	assert.Equal(t, 5, st.Session.Score)
	assert.Equal(t, 12, st.PendingWrites)
	assert.False(t, st.Time.IsZero())
}

func TestSnapshot_Error(t *testing.T) {
	s := NewService(Dependencies{
		Session: func() (dispatcher.Status, error) { return dispatcher.Status{}, errors.New("boom") },
	})
	_, err := s.Snapshot()
	assert.EqualError(t, err, "boom")
}

func TestStartStop_WritesStatusFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	s := NewService(Dependencies{
		StatusFile: path,
		Interval:   5 * time.Millisecond,
		Session:    func() (dispatcher.Status, error) { return dispatcher.Status{SessionID: "s1", Fuel: 42}, nil },
	})
	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())
	require.NoError(t, s.Start(), "second start is a no-op")

	assert.Eventually(t, func() bool {
		data, err := os.ReadFile(path)
		if err != nil || len(data) == 0 {
			return false
		}
		var st Status
		return json.Unmarshal(data, &st) == nil && st.Session.Fuel == 42
	}, 2*time.Second, 5*time.Millisecond)

	s.Stop()
	assert.False(t, s.IsRunning())
	s.Stop()
}

func TestStart_BadStatusPath(t *testing.T) {
	s := NewService(Dependencies{
		StatusFile: filepath.Join(t.TempDir(), "missing", "status.json"),
		Session:    func() (dispatcher.Status, error) { return dispatcher.Status{}, nil },
	})
	assert.Error(t, s.Start())
	assert.False(t, s.IsRunning())
}

func TestSessionStatus(t *testing.T) {
	sess, err := session.New(session.Config{Environment: "earthquake", Seed: 11})
	require.NoError(t, err)
	d, err := dispatcher.New(logging.NewDispatcherLogger(zerolog.Nop()))
	require.NoError(t, err)
	defer d.Close()
	dispatcher.BindSession(d, sess)

	st, err := SessionStatus(d)()
	require.NoError(t, err)
	assert.Equal(t, sess.Info().ID, st.SessionID)
	assert.InDelta(t, 100, st.Health, 1e-9)
	assert.False(t, st.Ended)
}
