package dispatcher

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testLogger implements Logger for testing
type testLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *testLogger) log(level, msg string, keysAndValues []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("%s: %s %v", level, msg, keysAndValues))
}

func (l *testLogger) Debug(msg string, kv ...any) { l.log("DEBUG", msg, kv) }
func (l *testLogger) Info(msg string, kv ...any)  { l.log("INFO", msg, kv) }
func (l *testLogger) Warn(msg string, kv ...any)  { l.log("WARN", msg, kv) }
func (l *testLogger) Error(msg string, kv ...any) { l.log("ERROR", msg, kv) }

func (l *testLogger) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.messages...)
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *testLogger) {
	t.Helper()
	logger := &testLogger{}
	d, err := New(logger)
	require.NoError(t, err)
	t.Cleanup(d.Close)
	return d, logger
}

func TestDispatcher_SyncHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var got Event
	d.Register("echo", func(e Event) (any, error) {
		got = e
		return "result", nil
	})

	result, err := d.Dispatch(Event{Command: "echo", Payload: json.RawMessage(`{"a":1}`)})
	require.NoError(t, err)
	assert.Equal(t, "result", result)
	assert.Equal(t, "echo", got.Command)
	assert.False(t, got.Timestamp.IsZero())
}

func TestDispatcher_UnknownCommand(t *testing.T) {
	d, _ := newTestDispatcher(t)

	_, err := d.Dispatch(Event{Command: "fly"})
	assert.ErrorIs(t, err, ErrUnknownCommand)
	assert.Contains(t, err.Error(), "fly")
}

func TestDispatcher_HasHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)
	d.Register("jump", func(Event) (any, error) { return nil, nil })

	assert.True(t, d.HasHandler("jump"))
	assert.False(t, d.HasHandler("fly"))
}

func TestDispatcher_BufferedHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var count atomic.Int32
	d.Register("sample", func(Event) (any, error) {
		count.Add(1)
		return nil, nil
	}, Buffered(10), Blocking())

	for range 5 {
		res, err := d.Dispatch(Event{Command: "sample"})
		require.NoError(t, err)
		assert.Equal(t, "queued", res)
	}

	d.Close()
	assert.Equal(t, int32(5), count.Load())
}

func TestDispatcher_BufferedDropsWhenFull(t *testing.T) {
	d, _ := newTestDispatcher(t)

	release := make(chan struct{})
	started := make(chan struct{}, 1)
	d.Register("slow", func(Event) (any, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return nil, nil
	}, Buffered(1))

	_, err := d.Dispatch(Event{Command: "slow"})
	require.NoError(t, err)
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("worker did not pick up the first command")
	}

	_, err = d.Dispatch(Event{Command: "slow"})
	require.NoError(t, err)
	_, err = d.Dispatch(Event{Command: "slow"})
	assert.ErrorIs(t, err, ErrQueueFull)

	close(release)
}

func TestDispatcher_ClosedRejectsBuffered(t *testing.T) {
	d, _ := newTestDispatcher(t)
	d.Register("sample", func(Event) (any, error) { return nil, nil }, Buffered(1))

	d.Close()
	d.Close()
	_, err := d.Dispatch(Event{Command: "sample"})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestDispatcher_LoggedHandler(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register("ok", func(Event) (any, error) { return nil, nil }, Logged())
	d.Register("bad", func(Event) (any, error) { return nil, fmt.Errorf("boom") }, Logged())

	_, err := d.Dispatch(Event{Command: "ok"})
	require.NoError(t, err)
	_, err = d.Dispatch(Event{Command: "bad"})
	require.Error(t, err)

	msgs := logger.snapshot()
	require.Len(t, msgs, 4)
	assert.Contains(t, msgs[0], "DEBUG: handling command")
	assert.Contains(t, msgs[1], "DEBUG: command complete")
	assert.Contains(t, msgs[3], "ERROR: command failed")
}

func TestEvent_Decode(t *testing.T) {
	var args LookArgs
	require.NoError(t, Event{Command: CmdLook}.Decode(&args))
	assert.Zero(t, args)

	require.NoError(t, Event{Command: CmdLook, Payload: json.RawMessage(`{"dx":3,"dy":-1}`)}.Decode(&args))
	assert.Equal(t, LookArgs{DX: 3, DY: -1}, args)

	err := Event{Command: CmdLook, Payload: json.RawMessage(`{`)}.Decode(&args)
	assert.ErrorContains(t, err, "decoding look payload")
}
