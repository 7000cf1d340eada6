package queue

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type runPayload struct {
	JobID string `json:"job_id"`
}

func TestParsePayload(t *testing.T) {
	cases := map[string]interface{}{
		"raw":     json.RawMessage(`{"job_id":"a"}`),
		"bytes":   []byte(`{"job_id":"a"}`),
		"map":     map[string]interface{}{"job_id": "a"},
		"value":   runPayload{JobID: "a"},
		"pointer": &runPayload{JobID: "a"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			p, err := ParsePayload[runPayload](in)
			require.NoError(t, err)
			assert.Equal(t, "a", p.JobID)
		})
	}

	_, err := ParsePayload[runPayload](42)
	assert.Error(t, err)
	_, err = ParsePayload[runPayload](json.RawMessage(`{"job_id":`))
	assert.Error(t, err)
}

func TestMessageKeepsPayloadVerbatim(t *testing.T) {
	raw, err := json.Marshal(Message{ID: "1", Type: "training.run", Payload: json.RawMessage(`{"job_id":"x"}`)})
	require.NoError(t, err)

	var back Message
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.JSONEq(t, `{"job_id":"x"}`, string(back.Payload))

	p, err := ParsePayload[runPayload](back.Payload)
	require.NoError(t, err)
	assert.Equal(t, "x", p.JobID)
}

func TestBackoffDoublesUpToMax(t *testing.T) {
	c := Config{RetryDelay: time.Second, MaxDelay: 5 * time.Second}
	assert.Equal(t, time.Second, c.backoff(1))
	assert.Equal(t, 2*time.Second, c.backoff(2))
	assert.Equal(t, 4*time.Second, c.backoff(3))
	assert.Equal(t, 5*time.Second, c.backoff(4))
	assert.Equal(t, 5*time.Second, c.backoff(10))

	unbounded := Config{RetryDelay: time.Second}
	assert.Equal(t, 8*time.Second, unbounded.backoff(4))
}
