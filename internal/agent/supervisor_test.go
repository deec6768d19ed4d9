package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/biosync/appliances/internal/control"
	"github.com/biosync/appliances/internal/credstore"
)

func commandPayload(t *testing.T, pins map[string]string) []byte {
	t.Helper()
	payload, err := json.Marshal(control.Command{
		Password: credstore.DefaultControlSecret,
		Pins:     pins,
	})
	require.NoError(t, err)
	return payload
}

func TestOperationalLoopAppliesCommandsEndToEnd(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.store.SaveNetwork("Home", "secret1"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.device.Run(ctx) }()

	// Wait for the channel to come up (initial retained state).
	require.Eventually(t, func() bool {
		return f.bus.LastOn(control.DefaultStateTopic) != nil
	}, time.Second, time.Millisecond)

	require.NoError(t, f.bus.Publish(control.DefaultCommandTopic,
		commandPayload(t, map[string]string{"d0": "on"}), false))

	require.Eventually(t, func() bool {
		var state map[string]string
		payload := f.bus.LastOn(control.DefaultStateTopic)
		if payload == nil || json.Unmarshal(payload, &state) != nil {
			return false
		}
		return state["d0"] == "on"
	}, time.Second, time.Millisecond, "loop must apply the command and echo state")

	cancel()
	require.NoError(t, <-done)
}

func TestOperationalLoopRecoversDroppedLink(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.store.SaveNetwork("Home", "secret1"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- f.device.Run(ctx) }()

	require.Eventually(t, func() bool { return f.radio.Connected() }, time.Second, time.Millisecond)
	joins := f.radio.JoinCalls()
	f.radio.Drop()

	require.Eventually(t, func() bool {
		return f.radio.Connected() && f.radio.JoinCalls() > joins
	}, time.Second, time.Millisecond, "supervisor must rejoin after link loss")

	cancel()
	require.NoError(t, <-done)
}

func TestOperationalLoopRecoversDroppedSession(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.store.SaveNetwork("Home", "secret1"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- f.device.Run(ctx) }()

	require.Eventually(t, func() bool {
		return f.bus.LastOn(control.DefaultStateTopic) != nil
	}, time.Second, time.Millisecond)

	f.bus.Disconnect()
	require.Eventually(t, func() bool { return f.bus.Connected() }, time.Second, time.Millisecond,
		"supervisor must reconnect the control channel")

	// The resubscription must be live: a command still lands.
	require.NoError(t, f.bus.Publish(control.DefaultCommandTopic,
		commandPayload(t, map[string]string{"d2": "on"}), false))
	require.Eventually(t, func() bool {
		var state map[string]string
		payload := f.bus.LastOn(control.DefaultStateTopic)
		if payload == nil || json.Unmarshal(payload, &state) != nil {
			return false
		}
		return state["d2"] == "on"
	}, time.Second, time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestProvisioningRunServesConfigurationSurface(t *testing.T) {
	f := newFixture(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- f.device.Run(ctx) }()

	require.Eventually(t, func() bool { return f.device.ProvisionAddr() != "" },
		time.Second, time.Millisecond)
	require.Equal(t, "ApplianceControl_Setup", f.radio.APActive(), "setup AP raised")

	resp, err := http.Get(fmt.Sprintf("http://%s/scan", f.device.ProvisionAddr()))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Nil(t, f.bus.LastOn(control.DefaultStateTopic),
		"provisioning mode never touches the control channel")

	cancel()
	require.NoError(t, <-done)
}
