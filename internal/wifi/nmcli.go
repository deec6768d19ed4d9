package wifi

import (
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strconv"
	"strings"

	"github.com/go-logr/logr"
)

// commandRunner runs an external command and returns its combined output.
// Injected so the parsers are testable without NetworkManager present.
type commandRunner func(ctx context.Context, name string, args ...string) (string, error)

func execRunner(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("%s %s: %w (%s)", name, strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

// NmcliRadio drives the wireless interface through NetworkManager's nmcli.
type NmcliRadio struct {
	log  logr.Logger
	run  commandRunner
	conn string // hotspot connection name while the AP is up
}

func NewNmcliRadio(log logr.Logger) *NmcliRadio {
	return &NmcliRadio{log: log.WithName("nmcli"), run: execRunner}
}

func (r *NmcliRadio) Scan(ctx context.Context) ([]Network, error) {
	out, err := r.run(ctx, "nmcli", "--terse", "--fields", "SSID,SIGNAL,SECURITY",
		"device", "wifi", "list", "--rescan", "yes")
	if err != nil {
		return nil, err
	}
	return parseScan(out), nil
}

func (r *NmcliRadio) Join(ctx context.Context, ssid, secret string) error {
	args := []string{"device", "wifi", "connect", ssid}
	if secret != "" {
		args = append(args, "password", secret)
	}
	_, err := r.run(ctx, "nmcli", args...)
	if err != nil {
		r.log.Info("Station join attempt failed", "ssid", ssid, "reason", err.Error())
	}
	return err
}

func (r *NmcliRadio) Connected() bool {
	out, err := r.run(context.Background(), "nmcli", "--terse", "--fields", "TYPE,STATE", "device", "status")
	if err != nil {
		return false
	}
	return parseConnected(out)
}

func (r *NmcliRadio) StartAP(ctx context.Context, ssid, secret string) error {
	_, err := r.run(ctx, "nmcli", "device", "wifi", "hotspot", "con-name", ssid, "ssid", ssid, "password", secret)
	if err != nil {
		return err
	}
	r.conn = ssid
	r.log.Info("Access point started", "ssid", ssid)
	return nil
}

func (r *NmcliRadio) StopAP(ctx context.Context) error {
	if r.conn == "" {
		return nil
	}
	_, err := r.run(ctx, "nmcli", "connection", "down", r.conn)
	r.conn = ""
	return err
}

// parseScan decodes nmcli terse output ("ssid:signal:security" per line)
// into networks ordered strongest first. nmcli reports signal as 0..100;
// it is mapped back to dBm the way the kernel derives it.
func parseScan(out string) []Network {
	var networks []Network
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, ":", 3)
		if len(fields) < 3 || fields[0] == "" {
			continue
		}
		signal, err := strconv.Atoi(fields[1])
		if err != nil {
			continue
		}
		enc := "encrypted"
		if strings.TrimSpace(fields[2]) == "" || fields[2] == "--" {
			enc = "open"
		}
		networks = append(networks, Network{
			SSID:       fields[0],
			RSSI:       signal/2 - 100,
			Encryption: enc,
		})
	}
	sort.SliceStable(networks, func(i, j int) bool {
		return networks[i].RSSI > networks[j].RSSI
	})
	return networks
}

func parseConnected(out string) bool {
	for _, line := range strings.Split(out, "\n") {
		fields := strings.SplitN(strings.TrimSpace(line), ":", 2)
		if len(fields) == 2 && fields[0] == "wifi" && fields[1] == "connected" {
			return true
		}
	}
	return false
}
