// Package agent ties the components together: it owns the device mode
// state machine, the boot decision, and the supervisor loop that keeps the
// network links alive in operational mode.
package agent

import (
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/biosync/appliances/internal/control"
	"github.com/biosync/appliances/internal/credstore"
	"github.com/biosync/appliances/internal/outputs"
	"github.com/biosync/appliances/internal/provision"
	"github.com/biosync/appliances/internal/retry"
	"github.com/biosync/appliances/internal/wifi"
)

// Mode is the device's network lifecycle mode.
type Mode int

const (
	// ModeProvisioning: the device is its own access point, serving the
	// configuration surface and nothing else.
	ModeProvisioning Mode = iota
	// ModeOperational: the device is a station on the operator's network,
	// running the control channel.
	ModeOperational
)

func (m Mode) String() string {
	if m == ModeOperational {
		return "operational"
	}
	return "provisioning"
}

// Config carries the tunables of one device instance.
type Config struct {
	APSSID        string
	APSecret      string
	ProvisionAddr string
	BootConnect   retry.Spec
	IdleDelay     time.Duration
}

// DefaultConfig matches the deployed fleet's constants.
func DefaultConfig() Config {
	return Config{
		APSSID:        "ApplianceControl_Setup",
		APSecret:      "12345678",
		ProvisionAddr: ":80",
		BootConnect:   retry.Spec{Attempts: 40, Pause: 500 * time.Millisecond},
		IdleDelay:     250 * time.Millisecond,
	}
}

// Device is the explicit context object shared by the components; the
// supervisor loop owns its lifetime.
type Device struct {
	log       logr.Logger
	cfg       Config
	store     *credstore.Store
	bank      *outputs.Bank
	radio     wifi.Radio
	channel   *control.Channel
	restarter provision.Restarter
	// override samples the boot-time override input; nil means absent.
	override func() bool

	mode Mode

	mu            sync.Mutex
	provisionAddr string
}

func New(log logr.Logger, cfg Config, store *credstore.Store, bank *outputs.Bank,
	radio wifi.Radio, channel *control.Channel, restarter provision.Restarter,
	override func() bool) *Device {
	if cfg.APSSID == "" {
		cfg.APSSID = DefaultConfig().APSSID
	}
	if cfg.APSecret == "" {
		cfg.APSecret = DefaultConfig().APSecret
	}
	if cfg.ProvisionAddr == "" {
		cfg.ProvisionAddr = DefaultConfig().ProvisionAddr
	}
	if cfg.BootConnect.Attempts == 0 {
		cfg.BootConnect = DefaultConfig().BootConnect
	}
	if cfg.IdleDelay == 0 {
		cfg.IdleDelay = DefaultConfig().IdleDelay
	}
	return &Device{
		log:       log.WithName("agent"),
		cfg:       cfg,
		store:     store,
		bank:      bank,
		radio:     radio,
		channel:   channel,
		restarter: restarter,
		override:  override,
	}
}

// Mode reports the current lifecycle mode.
func (d *Device) Mode() Mode {
	return d.mode
}

// ProvisionAddr reports the bound address of the provisioning web server,
// empty until it is listening.
func (d *Device) ProvisionAddr() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.provisionAddr
}

func (d *Device) setProvisionAddr(addr string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.provisionAddr = addr
}
