package agent

import (
	"context"

	"github.com/biosync/appliances/internal/wifi"
)

// Boot decides the starting mode. The override input wins unconditionally:
// it wipes the store and forces provisioning regardless of stored state.
// Otherwise the stored network credentials select the mode, with a failed
// bounded station attempt falling back to provisioning. There is no
// in-process way back from provisioning; leaving it is always a restart.
func (d *Device) Boot(ctx context.Context) Mode {
	if d.override != nil && d.override() {
		d.log.Info("Override input asserted at boot, clearing credentials")
		if err := d.store.Clear(); err != nil {
			d.log.Error(err, "Failed to clear credentials on override")
		}
		d.mode = ModeProvisioning
		return d.mode
	}

	creds := d.store.Load()
	if !creds.Valid || creds.NetworkName == "" {
		d.log.Info("No stored network credentials, entering provisioning mode")
		d.mode = ModeProvisioning
		return d.mode
	}

	if err := wifi.Connect(ctx, d.log, d.radio, creds.NetworkName, creds.NetworkSecret, d.cfg.BootConnect); err != nil {
		d.log.Info("Station connection failed at boot, entering provisioning mode", "ssid", creds.NetworkName)
		d.mode = ModeProvisioning
		return d.mode
	}

	// Arm the control channel. A broker that is down right now is not a
	// mode change; the supervisor keeps retrying.
	if err := d.channel.EnsureConnected(ctx); err != nil {
		d.log.Error(err, "Control channel not yet up")
	}
	d.mode = ModeOperational
	return d.mode
}

// ensureLink re-runs the bounded station attempt in place when the link is
// down. Transient loss never demotes the device to provisioning.
func (d *Device) ensureLink(ctx context.Context) {
	if d.radio.Connected() {
		return
	}
	creds := d.store.Load()
	if !creds.Valid || creds.NetworkName == "" {
		d.log.Info("Link down and no stored credentials; restart required")
		return
	}
	d.log.Info("Station link lost, reconnecting", "ssid", creds.NetworkName)
	if err := wifi.Connect(ctx, d.log, d.radio, creds.NetworkName, creds.NetworkSecret, d.cfg.BootConnect); err != nil {
		d.log.Info("Station reconnect failed, will retry", "ssid", creds.NetworkName)
	}
}
