package control

import (
	"context"
	"fmt"
	"sync"
)

// Message is one published message, kept by the MemBus for inspection.
type Message struct {
	Topic   string
	Payload []byte
	Retain  bool
}

// MemBus is an in-process loopback transport. It backs the agent's
// simulation mode and the channel tests: publishes dispatch synchronously
// to local subscribers and retained messages replay on subscribe.
type MemBus struct {
	mu          sync.Mutex
	connected   bool
	failures    int
	subscribers map[string][]func([]byte)
	retained    map[string][]byte
	Published   []Message
}

func NewMemBus() *MemBus {
	return &MemBus{
		subscribers: make(map[string][]func([]byte)),
		retained:    make(map[string][]byte),
	}
}

// FailConnects makes the next n Connect calls fail.
func (b *MemBus) FailConnects(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = n
}

func (b *MemBus) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failures > 0 {
		b.failures--
		return fmt.Errorf("connection refused")
	}
	b.connected = true
	return nil
}

func (b *MemBus) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

// Disconnect simulates session loss. Subscriptions made on the old session
// are dropped, as they would be on a clean-session broker reconnect.
func (b *MemBus) Disconnect() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = false
	b.subscribers = make(map[string][]func([]byte))
}

func (b *MemBus) Subscribe(topic string, fn func([]byte)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected {
		return fmt.Errorf("not connected")
	}
	b.subscribers[topic] = append(b.subscribers[topic], fn)
	if payload, ok := b.retained[topic]; ok {
		fn(payload)
	}
	return nil
}

func (b *MemBus) Publish(topic string, payload []byte, retain bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected {
		return fmt.Errorf("not connected")
	}
	b.Published = append(b.Published, Message{Topic: topic, Payload: payload, Retain: retain})
	if retain {
		b.retained[topic] = payload
	}
	for _, fn := range b.subscribers[topic] {
		fn(payload)
	}
	return nil
}

func (b *MemBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = false
}

// LastOn returns the most recent payload published on topic, or nil.
func (b *MemBus) LastOn(topic string) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.Published) - 1; i >= 0; i-- {
		if b.Published[i].Topic == topic {
			return b.Published[i].Payload
		}
	}
	return nil
}
