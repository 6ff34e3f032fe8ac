package relay

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestReceive_SkipsOwnFrames(t *testing.T) {
	r := New(nil, "relay", 4, zap.NewNop())

	var got []string
	deliver := func(topic string, payload []byte) int {
		got = append(got, topic+"="+string(payload))
		return 1
	}

	own, err := json.Marshal(frame{Origin: r.Origin(), Topic: "game:g1", Payload: json.RawMessage(`{"a":1}`)})
	require.NoError(t, err)
	assert.False(t, r.receive(string(own), deliver))

	remote, err := json.Marshal(frame{Origin: "other", Topic: "game:g1", Payload: json.RawMessage(`{"a":1}`)})
	require.NoError(t, err)
	assert.True(t, r.receive(string(remote), deliver))

	assert.False(t, r.receive("{garbage", deliver))
	assert.Equal(t, []string{`game:g1={"a":1}`}, got)
}

func TestForward_DropsWhenFull(t *testing.T) {
	r := New(nil, "relay", 2, zap.NewNop())
	dropped := 0
	r.OnDropped = func() { dropped++ }

	for i := 0; i < 5; i++ {
		r.Forward("sport:NBA", []byte(`{}`))
	}
	assert.Equal(t, 2, len(r.out))
	assert.Equal(t, 3, dropped)

	f := <-r.out
	assert.Equal(t, r.Origin(), f.Origin)
}
