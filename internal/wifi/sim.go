package wifi

import (
	"context"
	"fmt"
	"sync"
)

// SimRadio is an in-memory radio for tests and for running the agent on a
// host without a wireless interface.
type SimRadio struct {
	Networks  []Network
	Secrets   map[string]string // ssid -> accepted secret
	JoinDelay int               // Connected() polls to absorb before reporting up

	mu        sync.Mutex
	joined    bool
	pending   int
	apSSID    string
	joinCalls int
	scanCalls int
}

func NewSimRadio() *SimRadio {
	return &SimRadio{Secrets: make(map[string]string)}
}

func (r *SimRadio) Scan(ctx context.Context) ([]Network, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scanCalls++
	return r.Networks, nil
}

func (r *SimRadio) Join(ctx context.Context, ssid, secret string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.joinCalls++
	want, known := r.Secrets[ssid]
	if !known || want != secret {
		r.joined = false
		return fmt.Errorf("association with %q rejected", ssid)
	}
	r.joined = true
	r.pending = r.JoinDelay
	return nil
}

func (r *SimRadio) Connected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.joined {
		return false
	}
	if r.pending > 0 {
		r.pending--
		return false
	}
	return true
}

// Drop simulates link loss.
func (r *SimRadio) Drop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.joined = false
}

func (r *SimRadio) StartAP(ctx context.Context, ssid, secret string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.apSSID = ssid
	return nil
}

func (r *SimRadio) StopAP(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.apSSID = ""
	return nil
}

// APActive reports the SSID of the running access point, if any.
func (r *SimRadio) APActive() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.apSSID
}

// JoinCalls reports how many association attempts were made.
func (r *SimRadio) JoinCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.joinCalls
}

// ScanCalls reports how many surveys were requested.
func (r *SimRadio) ScanCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scanCalls
}
