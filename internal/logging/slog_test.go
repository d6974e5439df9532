package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

type gelfSpy struct {
	messages []*gelf.Message
	err      error
}

func (s *gelfSpy) WriteMessage(m *gelf.Message) error {
	s.messages = append(s.messages, m)
	return s.err
}

func TestSetup_ConsoleAndFile(t *testing.T) {
	var console, file bytes.Buffer
	m := NewSlogManager()
	m.Setup(Options{Level: "info", Console: &console, File: &file})
	m.Logger().Info("hello", "victims", 3)

	assert.Contains(t, console.String(), "msg=hello")
	assert.Contains(t, console.String(), "victims=3")

	lines := strings.Split(strings.TrimSpace(file.String()), "\n")
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, float64(3), entry["victims"])
}

func TestSetup_LevelFiltering(t *testing.T) {
	tests := []struct {
		level     string
		wantDebug bool
	}{
		{"debug", true},
		{"info", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			m := NewSlogManager()
			m.Setup(Options{Level: tt.level, Console: &buf})
			m.Logger().Debug("debug msg")
			m.Logger().Info("info msg")
			assert.Equal(t, tt.wantDebug, strings.Contains(buf.String(), "debug msg"))
			assert.Contains(t, buf.String(), "info msg")
		})
	}
}

func TestSetup_ContextProvider(t *testing.T) {
	var buf bytes.Buffer
	rc := &RunContext{}
	m := NewSlogManager()
	logger := m.Setup(Options{Console: &buf, Context: rc.Attrs})

	logger.Info("before")
	assert.NotContains(t, buf.String(), "tick=")

	rc.SetSession("reacture_1_abcd")
	rc.SetTick(42, 700)
	logger.Info("during")
	assert.Contains(t, buf.String(), "tick=42")
	assert.Contains(t, buf.String(), "sim_ms=700")
}

func TestSetup_GELFSink(t *testing.T) {
	spy := &gelfSpy{}
	m := NewSlogManager()
	m.Setup(Options{Level: "info", Console: &bytes.Buffer{}, GELF: spy})

	m.Logger().With("session_id", "s1").WithGroup("robot").Warn("low fuel", "fuel", 4.5)

	require.Len(t, spy.messages, 1)
	msg := spy.messages[0]
	assert.Equal(t, "low fuel", msg.Short)
	assert.Equal(t, int32(4), msg.Level)
	assert.Equal(t, "s1", msg.Extra["_session_id"])
	assert.Equal(t, 4.5, msg.Extra["_robot.fuel"])
}

func TestGELFHandler_Levels(t *testing.T) {
	assert.Equal(t, int32(7), syslogLevel(slog.LevelDebug))
	assert.Equal(t, int32(6), syslogLevel(slog.LevelInfo))
	assert.Equal(t, int32(4), syslogLevel(slog.LevelWarn))
	assert.Equal(t, int32(3), syslogLevel(slog.LevelError))

	h := NewGELFHandler(&gelfSpy{}, slog.LevelWarn)
	assert.False(t, h.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, h.Enabled(context.Background(), slog.LevelError))
}

func TestLogger_DefaultBeforeSetup(t *testing.T) {
	assert.Equal(t, slog.Default(), NewSlogManager().Logger())
}

func TestFlush(t *testing.T) {
	m := NewSlogManager()
	assert.NoError(t, m.Flush(context.Background()))

	m.Setup(Options{Console: &bytes.Buffer{}, Provider: sdklog.NewLoggerProvider()})
	m.Logger().Info("bridged")
	assert.NoError(t, m.Flush(context.Background()))
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"Error":   slog.LevelError,
		"trace":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestMultiHandler_FansOut(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	multi := NewMultiHandler(
		slog.NewTextHandler(&buf1, nil),
		nil,
		slog.NewTextHandler(&buf2, nil),
	)
	require.Len(t, multi.handlers, 2)

	slog.New(multi).Info("fanned out")
	assert.Contains(t, buf1.String(), "fanned out")
	assert.Contains(t, buf2.String(), "fanned out")
}

func TestMultiHandler_Enabled(t *testing.T) {
	infoHandler := slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelInfo})
	debugHandler := slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelDebug})

	assert.False(t, NewMultiHandler(infoHandler).Enabled(context.Background(), slog.LevelDebug))
	assert.True(t, NewMultiHandler(infoHandler, debugHandler).Enabled(context.Background(), slog.LevelDebug))
	assert.False(t, NewMultiHandler().Enabled(context.Background(), slog.LevelError))
}

func TestMultiHandler_AttrsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	multi := NewMultiHandler(slog.NewTextHandler(&buf, nil))

	slog.New(multi.WithAttrs([]slog.Attr{slog.String("component", "sampler")})).Info("a")
	assert.Contains(t, buf.String(), "component=sampler")

	slog.New(multi.WithGroup("robot")).Info("b", "health", 90)
	assert.Contains(t, buf.String(), "robot.health=90")

	assert.Same(t, multi, multi.WithGroup(""))
}

func TestMultiHandler_HandleError(t *testing.T) {
	var buf bytes.Buffer
	failing := NewGELFHandler(&gelfSpy{err: errors.New("unreachable")}, slog.LevelInfo)
	multi := NewMultiHandler(failing, slog.NewTextHandler(&buf, nil))

	r := slog.NewRecord(timeZero, slog.LevelInfo, "should reach spy", 0)
	err := multi.Handle(context.Background(), r)
	assert.ErrorContains(t, err, "unreachable")
	assert.Contains(t, buf.String(), "should reach spy")
}

var timeZero = time.Time{}
