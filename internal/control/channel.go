// Package control implements the publish/subscribe control channel: it
// subscribes to the command topic, applies authenticated commands to the
// output bank, and republishes the full device state with retention so new
// observers learn the last-known state immediately.
package control

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"github.com/biosync/appliances/internal/outputs"
	"github.com/biosync/appliances/internal/retry"
)

// Default topics and reconnect policy, matching the deployed fleet.
const (
	DefaultCommandTopic = "biosync/appliances/control"
	DefaultStateTopic   = "biosync/appliances/state"

	reconnectAttempts = 5
	reconnectPause    = 2 * time.Second

	inboundQueue = 16
)

// Bus is the transport under the channel. Connect establishes a session;
// Subscribe registers a handler that stays attached to the session made by
// the most recent Connect.
type Bus interface {
	Connect(ctx context.Context) error
	Connected() bool
	Subscribe(topic string, fn func(payload []byte)) error
	Publish(topic string, payload []byte, retain bool) error
	Close()
}

// Validator gates inbound commands. Satisfied by the credential store.
type Validator interface {
	Validate(candidate string) bool
}

// Recorder receives a record of every inbound command, applied or refused.
// May be nil.
type Recorder interface {
	Record(at time.Time, authorized bool, applied map[string]string)
}

// Channel owns the command/state topics for one device.
type Channel struct {
	bus          Bus
	bank         *outputs.Bank
	auth         Validator
	recorder     Recorder
	log          logr.Logger
	commandTopic string
	stateTopic   string
	reconnect    retry.Spec
	inbound      chan []byte

	// armed is true only once the current session has the command topic
	// subscribed and the initial state published. A live session is not
	// enough: a failed subscribe leaves the session up but the device deaf.
	armed bool
}

// Options configures a Channel. Zero values take the defaults above.
type Options struct {
	CommandTopic string
	StateTopic   string
	Reconnect    retry.Spec
	Recorder     Recorder
}

func NewChannel(log logr.Logger, bus Bus, bank *outputs.Bank, auth Validator, opts Options) *Channel {
	if opts.CommandTopic == "" {
		opts.CommandTopic = DefaultCommandTopic
	}
	if opts.StateTopic == "" {
		opts.StateTopic = DefaultStateTopic
	}
	if opts.Reconnect.Attempts == 0 {
		opts.Reconnect = retry.Spec{Attempts: reconnectAttempts, Pause: reconnectPause}
	}
	return &Channel{
		bus:          bus,
		bank:         bank,
		auth:         auth,
		recorder:     opts.Recorder,
		log:          log.WithName("control"),
		commandTopic: opts.CommandTopic,
		stateTopic:   opts.StateTopic,
		reconnect:    opts.Reconnect,
		inbound:      make(chan []byte, inboundQueue),
	}
}

// Connected reports whether the broker session is up.
func (c *Channel) Connected() bool {
	return c.bus.Connected()
}

// EnsureConnected brings the session up with the bounded reconnect policy.
// On success the command topic is (re)subscribed and the full state is
// published before any new command is processed. Failure after the attempt
// budget is reported, never fatal.
func (c *Channel) EnsureConnected(ctx context.Context) error {
	if !c.bus.Connected() {
		c.armed = false
		err := c.reconnect.Do(ctx, func() error {
			if err := c.bus.Connect(ctx); err != nil {
				c.log.Info("Broker connect attempt failed", "reason", err.Error())
				return err
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("broker unreachable after %d attempts: %w", c.reconnect.Attempts, err)
		}
	}
	if c.armed {
		return nil
	}
	if err := c.bus.Subscribe(c.commandTopic, c.enqueue); err != nil {
		return fmt.Errorf("subscribing to %s: %w", c.commandTopic, err)
	}
	c.log.Info("Subscribed to command topic", "topic", c.commandTopic)
	if err := c.PublishState(); err != nil {
		return err
	}
	c.armed = true
	return nil
}

// Service drains and handles the buffered inbound messages. One call is one
// supervisor pass; it never blocks.
func (c *Channel) Service() {
	for {
		select {
		case payload := <-c.inbound:
			c.handle(payload)
		default:
			return
		}
	}
}

// PublishState publishes the complete state snapshot, retained.
func (c *Channel) PublishState() error {
	snapshot := c.bank.Snapshot()
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}
	if err := c.bus.Publish(c.stateTopic, payload, true); err != nil {
		return fmt.Errorf("publishing state: %w", err)
	}
	c.log.Info("Published state", "topic", c.stateTopic, "state", snapshot)
	return nil
}

func (c *Channel) enqueue(payload []byte) {
	select {
	case c.inbound <- payload:
	default:
		c.log.Info("Inbound queue full, dropping command")
	}
}

// handle parses, authenticates, and applies one inbound message. Malformed
// or unauthenticated input is discarded without reply; an unknown pin name
// is skipped without blocking the rest of the command.
func (c *Channel) handle(payload []byte) {
	cmd, err := ParseCommand(payload)
	if err != nil {
		c.log.Info("Discarding malformed command", "reason", err.Error())
		return
	}
	if !c.auth.Validate(cmd.Password) {
		c.log.Info("Discarding command with invalid control secret")
		if c.recorder != nil {
			c.recorder.Record(time.Now(), false, nil)
		}
		return
	}

	applied := make(map[string]string, len(cmd.Pins))
	for name, value := range cmd.Pins {
		on := WantsOn(value)
		ok, err := c.bank.Set(name, on)
		if err != nil {
			c.log.Error(err, "Failed to drive output", "pin", name)
			continue
		}
		if !ok {
			c.log.Info("Ignoring unknown pin in command", "pin", name)
			continue
		}
		state := "off"
		if on {
			state = "on"
		}
		applied[name] = state
	}
	if c.recorder != nil {
		c.recorder.Record(time.Now(), true, applied)
	}
	if err := c.PublishState(); err != nil {
		c.log.Error(err, "Failed to publish state after command")
	}
}
