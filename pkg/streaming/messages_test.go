package streaming

import (
	"encoding/json"
	"testing"

	"github.com/reacture/engine/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalAndDecode(t *testing.T) {
	data, err := Marshal(TypeDecision, core.Decision{Type: core.DecisionRefuel, Success: true})
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, TypeDecision, env.Type)

	var d core.Decision
	require.NoError(t, env.Decode(&d))
	assert.Equal(t, core.DecisionRefuel, d.Type)
	assert.True(t, d.Success)
}

func TestFramePayload(t *testing.T) {
	p := NewFramePayload(core.FrameRecord{Index: 12, TimestampMS: 1200, Width: 1, Height: 1, Pixels: []byte{255, 0, 7}})
	assert.Equal(t, "frames/frame_000012.npy", p.Path)
	assert.Equal(t, []int{1, 1, 3}, p.Shape)

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"data_base64":"/wAH"`)
}

func TestNewAck(t *testing.T) {
	assert.Equal(t, AckMessage{Type: "ack", For: TypeEndSession}, NewAck(TypeEndSession))
}
