// Package wifi abstracts the wireless interface: station-mode scan and
// join, link status, and the local access point used during provisioning.
package wifi

import "context"

// Network is one scanned access point, ordered strongest first.
type Network struct {
	SSID       string `json:"ssid"`
	RSSI       int    `json:"rssi"` // dBm
	Encryption string `json:"encryption"` // "open" or "encrypted"
}

// Radio is the wireless interface. Join initiates an association and may
// return before the link is up; callers poll Connected with a bounded
// retry policy.
type Radio interface {
	Scan(ctx context.Context) ([]Network, error)
	Join(ctx context.Context, ssid, secret string) error
	Connected() bool
	StartAP(ctx context.Context, ssid, secret string) error
	StopAP(ctx context.Context) error
}
