package notify

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPairDelivers(t *testing.T) {
	a, b := Pair()
	var got []Message
	b.Subscribe(EvalRequestChan, func(m Message) { got = append(got, m) })

	err := a.Send(EvalRequest{RequestID: "r1", Command: "1+1", IsUserEval: true})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, EvalRequest{RequestID: "r1", Command: "1+1", IsUserEval: true}, got[0])
}

func TestPairChannelIsolation(t *testing.T) {
	a, b := Pair()
	var evals, texts int
	b.Subscribe(EvalRequestChan, func(Message) { evals++ })
	b.Subscribe(TextChan, func(Message) { texts++ })

	a.Send(Text{Text: "hi", Stream: Stdout})
	a.Send(Text{Text: "ho", Stream: Stderr})
	a.Send(EvalRequest{RequestID: "r"})

	assert.Equal(t, 1, evals)
	assert.Equal(t, 2, texts)
}

func TestSubscriptionClose(t *testing.T) {
	a, b := Pair()
	n := 0
	sub := b.Subscribe(ClearChan, func(Message) { n++ })
	a.Send(Clear{})
	sub.Close()
	a.Send(Clear{})
	assert.Equal(t, 1, n)
}

func TestDecodeRoundTrip(t *testing.T) {
	raw, err := json.Marshal(PromptChange{State: PromptDebug, IsIdle: true})
	require.NoError(t, err)
	m, err := Decode(PromptChangeChan, raw)
	require.NoError(t, err)
	assert.Equal(t, PromptChange{State: PromptDebug, IsIdle: true}, m)
}

func TestDecodeUnknownChannel(t *testing.T) {
	_, err := Decode(Channel("bogus"), nil)
	assert.Error(t, err)
}

func TestDecodeEmptyPayload(t *testing.T) {
	m, err := Decode(InterruptRequestChan, nil)
	require.NoError(t, err)
	assert.Equal(t, InterruptRequest{}, m)
}

func TestFevalResultErrorShape(t *testing.T) {
	raw := []byte(`{"requestId":"r","result":{"error":{"id":"E1","message":"bad"}}}`)
	m, err := Decode(FevalResponseChan, raw)
	require.NoError(t, err)
	resp := m.(FevalResponse)
	require.True(t, resp.Result.IsError())
	assert.Equal(t, "bad", resp.Result.Error.Message)
}
