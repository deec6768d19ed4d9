package control

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biosync/appliances/internal/credstore"
	"github.com/biosync/appliances/internal/outputs"
	"github.com/biosync/appliances/internal/retry"
)

type recorded struct {
	authorized bool
	applied    map[string]string
}

type memRecorder struct {
	entries []recorded
}

func (r *memRecorder) Record(at time.Time, authorized bool, applied map[string]string) {
	r.entries = append(r.entries, recorded{authorized: authorized, applied: applied})
}

func newTestChannel(t *testing.T) (*Channel, *MemBus, *outputs.Bank, *memRecorder) {
	t.Helper()
	log := testr.New(t)
	bank, err := outputs.NewBank(log, outputs.NewMemBackend(), nil)
	require.NoError(t, err)
	store, err := credstore.Open(log, &credstore.MemRegion{})
	require.NoError(t, err)
	bus := NewMemBus()
	rec := &memRecorder{}
	ch := NewChannel(log, bus, bank, store, Options{
		Reconnect: retry.Spec{Attempts: 5, Pause: time.Millisecond},
		Recorder:  rec,
	})
	require.NoError(t, ch.EnsureConnected(context.Background()))
	return ch, bus, bank, rec
}

func command(t *testing.T, password string, pins map[string]string) []byte {
	t.Helper()
	payload, err := json.Marshal(Command{Password: password, Pins: pins})
	require.NoError(t, err)
	return payload
}

func stateOf(t *testing.T, payload []byte) map[string]string {
	t.Helper()
	var state map[string]string
	require.NoError(t, json.Unmarshal(payload, &state))
	return state
}

func TestConnectPublishesInitialRetainedState(t *testing.T) {
	_, bus, _, _ := newTestChannel(t)

	require.Len(t, bus.Published, 1)
	msg := bus.Published[0]
	assert.Equal(t, DefaultStateTopic, msg.Topic)
	assert.True(t, msg.Retain, "state publishes must be retained")

	state := stateOf(t, msg.Payload)
	assert.Len(t, state, 9)
	for name, v := range state {
		assert.Equal(t, "off", v, "line %s", name)
	}
}

func TestAuthorizedCommandAppliesAndEchoesState(t *testing.T) {
	ch, bus, bank, rec := newTestChannel(t)

	require.NoError(t, bus.Publish(DefaultCommandTopic,
		command(t, credstore.DefaultControlSecret, map[string]string{"d0": "on", "d9": "on"}), false))
	ch.Service()

	on, ok := bank.Get("d0")
	require.True(t, ok)
	assert.True(t, on, "d0 should be ON")

	state := stateOf(t, bus.LastOn(DefaultStateTopic))
	assert.Equal(t, "on", state["d0"])
	assert.NotContains(t, state, "d9", "nonexistent pin must not materialize")
	assert.Len(t, state, 9, "state echo must stay complete")

	require.Len(t, rec.entries, 1)
	assert.True(t, rec.entries[0].authorized)
	assert.Equal(t, map[string]string{"d0": "on"}, rec.entries[0].applied)
}

func TestBadPasswordChangesNothing(t *testing.T) {
	ch, bus, bank, rec := newTestChannel(t)
	before := len(bus.Published)

	require.NoError(t, bus.Publish(DefaultCommandTopic,
		command(t, "wrong", map[string]string{"d0": "on", "d1": "on", "d2": "on"}), false))
	ch.Service()

	for _, name := range bank.Names() {
		on, _ := bank.Get(name)
		assert.False(t, on, "line %s flipped by unauthenticated command", name)
	}
	assert.Equal(t, before, len(bus.Published), "no state echo for a refused command")
	require.Len(t, rec.entries, 1)
	assert.False(t, rec.entries[0].authorized)
}

func TestMalformedPayloadIsDiscarded(t *testing.T) {
	ch, bus, bank, rec := newTestChannel(t)

	require.NoError(t, bus.Publish(DefaultCommandTopic, []byte("{not json"), false))
	ch.Service()

	on, _ := bank.Get("d0")
	assert.False(t, on)
	assert.Empty(t, rec.entries)
}

func TestHighSynonymAndOffFallback(t *testing.T) {
	ch, bus, bank, _ := newTestChannel(t)

	require.NoError(t, bus.Publish(DefaultCommandTopic,
		command(t, credstore.DefaultControlSecret, map[string]string{"d1": "HIGH", "d2": "low", "d3": "banana"}), false))
	ch.Service()

	d1, _ := bank.Get("d1")
	d2, _ := bank.Get("d2")
	d3, _ := bank.Get("d3")
	assert.True(t, d1, "HIGH is a synonym for on")
	assert.False(t, d2, "any non-on value means off")
	assert.False(t, d3)
}

func TestPinNamesAreCaseInsensitive(t *testing.T) {
	ch, bus, bank, _ := newTestChannel(t)

	require.NoError(t, bus.Publish(DefaultCommandTopic,
		command(t, credstore.DefaultControlSecret, map[string]string{"D4": "on"}), false))
	ch.Service()

	on, _ := bank.Get("d4")
	assert.True(t, on)
}

func TestReconnectResubscribesAndRepublishesFirst(t *testing.T) {
	ch, bus, _, _ := newTestChannel(t)

	// Flip a line so the republished state is distinguishable.
	require.NoError(t, bus.Publish(DefaultCommandTopic,
		command(t, credstore.DefaultControlSecret, map[string]string{"d0": "on"}), false))
	ch.Service()

	bus.Disconnect()
	require.False(t, ch.Connected())

	before := len(bus.Published)
	require.NoError(t, ch.EnsureConnected(context.Background()))

	require.Greater(t, len(bus.Published), before)
	first := bus.Published[before]
	assert.Equal(t, DefaultStateTopic, first.Topic, "state must be published before any new command work")
	assert.Equal(t, "on", stateOf(t, first.Payload)["d0"], "republished state reflects pre-drop state")

	// The command topic must be live again.
	require.NoError(t, bus.Publish(DefaultCommandTopic,
		command(t, credstore.DefaultControlSecret, map[string]string{"d1": "on"}), false))
	ch.Service()
	assert.Equal(t, "on", stateOf(t, bus.LastOn(DefaultStateTopic))["d1"])
}

// flakySubscribeBus fails Subscribe while the session stays up, the shape
// of a subscribe token timeout on a live connection.
type flakySubscribeBus struct {
	*MemBus
	failSubscribes int
}

func (b *flakySubscribeBus) Subscribe(topic string, fn func([]byte)) error {
	if b.failSubscribes > 0 {
		b.failSubscribes--
		return fmt.Errorf("subscribe timed out")
	}
	return b.MemBus.Subscribe(topic, fn)
}

func TestFailedSubscribeRearmsOnNextPass(t *testing.T) {
	log := testr.New(t)
	bank, err := outputs.NewBank(log, outputs.NewMemBackend(), nil)
	require.NoError(t, err)
	store, err := credstore.Open(log, &credstore.MemRegion{})
	require.NoError(t, err)

	bus := &flakySubscribeBus{MemBus: NewMemBus(), failSubscribes: 1}
	ch := NewChannel(log, bus, bank, store, Options{
		Reconnect: retry.Spec{Attempts: 5, Pause: time.Millisecond},
	})

	require.Error(t, ch.EnsureConnected(context.Background()))
	require.True(t, bus.Connected(), "session stays up across the failed subscribe")

	// The next pass must finish arming instead of early-returning on the
	// live session.
	require.NoError(t, ch.EnsureConnected(context.Background()))

	require.NoError(t, bus.Publish(DefaultCommandTopic,
		command(t, credstore.DefaultControlSecret, map[string]string{"d0": "on"}), false))
	ch.Service()

	on, ok := bank.Get("d0")
	require.True(t, ok)
	assert.True(t, on, "command must land once arming completes")
	assert.Equal(t, "on", stateOf(t, bus.LastOn(DefaultStateTopic))["d0"])
}

func TestEnsureConnectedBoundedRetry(t *testing.T) {
	log := testr.New(t)
	bank, err := outputs.NewBank(log, outputs.NewMemBackend(), nil)
	require.NoError(t, err)
	store, err := credstore.Open(log, &credstore.MemRegion{})
	require.NoError(t, err)

	bus := NewMemBus()
	bus.FailConnects(3)
	ch := NewChannel(log, bus, bank, store, Options{
		Reconnect: retry.Spec{Attempts: 5, Pause: time.Millisecond},
	})
	require.NoError(t, ch.EnsureConnected(context.Background()),
		"3 failures fit inside a 5-attempt budget")

	bus.Disconnect()
	bus.FailConnects(10)
	require.Error(t, ch.EnsureConnected(context.Background()),
		"10 failures exhaust a 5-attempt budget")
}
