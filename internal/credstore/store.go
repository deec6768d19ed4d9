// Package credstore persists the device's network credentials and control
// secret in a fixed 512-byte region. The layout is length-prefixed strings
// at fixed offsets with a two-byte validity marker that is always written
// last, so a crash mid-save can never leave a region that parses as valid
// with partial data.
package credstore

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/go-logr/logr"
)

const (
	// Capacity is the size of the persisted region.
	Capacity = 512

	// DefaultControlSecret gates inbound commands until the operator sets
	// their own. The device is never without a control secret.
	DefaultControlSecret = "appliances123"

	// Marker distinguishes a configured region from blank or corrupt bytes.
	Marker uint16 = 0xCD34

	offNetworkName   = 0   // length byte + up to 99 bytes
	offNetworkSecret = 100 // length byte + up to 99 bytes
	offMarker        = 200 // two bytes, big endian
	offControlSecret = 300 // length byte + up to 49 bytes

	// MaxNetworkLen and MaxControlLen bound the length bytes; anything
	// outside [1, max] read back from storage is treated as "no data".
	MaxNetworkLen = 99
	MaxControlLen = 49
)

// Credentials is the decoded network sub-region.
type Credentials struct {
	NetworkName   string
	NetworkSecret string
	Valid         bool
}

// Store owns the region and the in-memory control secret. The mutex covers
// both: the provisioning handlers write from concurrent HTTP goroutines.
type Store struct {
	region Region
	log    logr.Logger

	mu            sync.Mutex
	controlSecret string
}

// Open reads the region once and primes the in-memory control secret. A
// blank or corrupt control sub-region degrades to the default secret, never
// to an error.
func Open(log logr.Logger, region Region) (*Store, error) {
	s := &Store{
		region:        region,
		log:           log.WithName("credstore"),
		controlSecret: DefaultControlSecret,
	}
	buf := make([]byte, Capacity)
	if err := region.Read(buf); err != nil {
		return nil, fmt.Errorf("reading credential region: %w", err)
	}
	if secret, ok := decodeString(buf, offControlSecret, MaxControlLen); ok {
		s.controlSecret = secret
	}
	return s, nil
}

// Load decodes the network credentials. A marker mismatch or a length byte
// out of range degrades to the empty result; corruption is never an error.
func (s *Store) Load() Credentials {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make([]byte, Capacity)
	if err := s.region.Read(buf); err != nil {
		s.log.Error(err, "Failed to read credential region, treating as blank")
		return Credentials{}
	}
	if binary.BigEndian.Uint16(buf[offMarker:]) != Marker {
		s.log.Info("No valid credentials in region")
		return Credentials{}
	}
	creds := Credentials{Valid: true}
	if name, ok := decodeString(buf, offNetworkName, MaxNetworkLen); ok {
		creds.NetworkName = name
	}
	if secret, ok := decodeString(buf, offNetworkSecret, MaxNetworkLen); ok {
		creds.NetworkSecret = secret
	}
	return creds
}

// SaveNetwork rewrites the whole region: zero pass, both network fields,
// the current control secret carried forward, and the marker last as its
// own synced write.
func (s *Store) SaveNetwork(name, secret string) error {
	if len(name) == 0 || len(name) > MaxNetworkLen {
		return fmt.Errorf("network name length %d outside [1, %d]", len(name), MaxNetworkLen)
	}
	if len(secret) > MaxNetworkLen {
		return fmt.Errorf("network secret length %d exceeds %d", len(secret), MaxNetworkLen)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make([]byte, Capacity)
	encodeString(buf, offNetworkName, name)
	encodeString(buf, offNetworkSecret, secret)
	encodeString(buf, offControlSecret, s.controlSecret)

	if err := s.region.Write(0, buf); err != nil {
		return fmt.Errorf("writing credential region: %w", err)
	}
	if err := s.region.Sync(); err != nil {
		return fmt.Errorf("syncing credential region: %w", err)
	}

	var marker [2]byte
	binary.BigEndian.PutUint16(marker[:], Marker)
	if err := s.region.Write(offMarker, marker[:]); err != nil {
		return fmt.Errorf("writing validity marker: %w", err)
	}
	if err := s.region.Sync(); err != nil {
		return fmt.Errorf("syncing validity marker: %w", err)
	}
	s.log.Info("Saved network credentials", "network", name)
	return nil
}

// SaveControlSecret rewrites only the control sub-region. The marker and
// network fields are untouched.
func (s *Store) SaveControlSecret(secret string) error {
	if len(secret) == 0 || len(secret) > MaxControlLen {
		return fmt.Errorf("control secret length %d outside [1, %d]", len(secret), MaxControlLen)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sub := make([]byte, 1+MaxControlLen)
	encodeString(sub, 0, secret)
	if err := s.region.Write(offControlSecret, sub); err != nil {
		return fmt.Errorf("writing control secret: %w", err)
	}
	if err := s.region.Sync(); err != nil {
		return fmt.Errorf("syncing control secret: %w", err)
	}
	s.controlSecret = secret
	s.log.Info("Saved control secret")
	return nil
}

// Clear zeroes the region without writing the marker and resets the
// in-memory control secret to the default.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.region.Write(0, make([]byte, Capacity)); err != nil {
		return fmt.Errorf("zeroing credential region: %w", err)
	}
	if err := s.region.Sync(); err != nil {
		return fmt.Errorf("syncing credential region: %w", err)
	}
	s.controlSecret = DefaultControlSecret
	s.log.Info("Cleared credential region")
	return nil
}

// Validate reports whether candidate matches the current control secret.
func (s *Store) Validate(candidate string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return candidate == s.controlSecret
}

// ControlSecret returns the current in-memory control secret.
func (s *Store) ControlSecret() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.controlSecret
}

func encodeString(buf []byte, off int, v string) {
	buf[off] = byte(len(v))
	copy(buf[off+1:], v)
}

func decodeString(buf []byte, off, max int) (string, bool) {
	n := int(buf[off])
	if n < 1 || n > max {
		return "", false
	}
	return string(buf[off+1 : off+1+n]), true
}
