package agent

import (
	"context"
	"net"
	"time"

	"github.com/biosync/appliances/internal/provision"
)

// Run boots the device and drives it in the selected mode until the
// context is cancelled. No failure below this point terminates the
// process; the only intentional exits are the operator-requested restarts.
func (d *Device) Run(ctx context.Context) error {
	switch d.Boot(ctx) {
	case ModeProvisioning:
		return d.runProvisioning(ctx)
	default:
		return d.runOperational(ctx)
	}
}

// runProvisioning raises the setup access point and serves the
// configuration surface. The control channel is never touched in this
// mode; the mode ends with the restart scheduled by a handler.
func (d *Device) runProvisioning(ctx context.Context) error {
	if err := d.radio.StartAP(ctx, d.cfg.APSSID, d.cfg.APSecret); err != nil {
		d.log.Error(err, "Failed to start access point", "ssid", d.cfg.APSSID)
		// Keep serving anyway: on a host the surface may still be
		// reachable over the wired interface.
	} else {
		d.log.Info("Access point up", "ssid", d.cfg.APSSID)
	}
	defer d.radio.StopAP(context.Background())

	ln, err := net.Listen("tcp", d.cfg.ProvisionAddr)
	if err != nil {
		return err
	}
	d.setProvisionAddr(ln.Addr().String())
	server := provision.NewServer(d.log, d.store, d.radio, d.restarter)
	return server.Serve(ctx, ln)
}

// runOperational is the supervisor loop: check the station link, check the
// control channel, service one pass of buffered channel work, idle. The
// idle delay only caps the loop rate; it is not a correctness mechanism.
func (d *Device) runOperational(ctx context.Context) error {
	d.log.Info("Running", "mode", d.mode.String())
	for {
		if ctx.Err() != nil {
			d.log.Info("Shutting down")
			return nil
		}

		d.ensureLink(ctx)
		if err := d.channel.EnsureConnected(ctx); err != nil {
			d.log.Info("Control channel still down", "reason", err.Error())
		}
		d.channel.Service()

		select {
		case <-ctx.Done():
			d.log.Info("Shutting down")
			return nil
		case <-time.After(d.cfg.IdleDelay):
		}
	}
}
