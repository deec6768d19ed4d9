package wifi

import (
	"context"
	"errors"

	"github.com/go-logr/logr"

	"github.com/biosync/appliances/internal/retry"
)

// ErrNotConnected reports that the link did not come up within the polling
// budget.
var ErrNotConnected = errors.New("station link not connected")

// Connect initiates a station-mode association and polls the link with the
// given bounded policy. Both the boot-time lifecycle and the provisioning
// connect handler go through here so the two paths cannot drift apart.
func Connect(ctx context.Context, log logr.Logger, r Radio, ssid, secret string, spec retry.Spec) error {
	log.Info("Connecting to network", "ssid", ssid, "attempts", spec.Attempts, "pause", spec.Pause)
	if err := r.Join(ctx, ssid, secret); err != nil {
		return err
	}
	err := spec.Do(ctx, func() error {
		if r.Connected() {
			return nil
		}
		return ErrNotConnected
	})
	if err != nil {
		log.Info("Station connection failed", "ssid", ssid, "waited", spec.Total().String())
		return err
	}
	log.Info("Station connected", "ssid", ssid)
	return nil
}
