package wifi

import (
	"context"
	"testing"
)

func TestParseScanOrdersByStrength(t *testing.T) {
	out := "Cafe:40:WPA2\nHome:84:WPA2 WPA3\nOpenSpot:62:\n\n"

	networks := parseScan(out)
	if len(networks) != 3 {
		t.Fatalf("expected 3 networks, got %d", len(networks))
	}
	if networks[0].SSID != "Home" || networks[1].SSID != "OpenSpot" || networks[2].SSID != "Cafe" {
		t.Errorf("wrong order: %v", networks)
	}
	if networks[0].RSSI != -58 {
		t.Errorf("Home RSSI = %d, want -58", networks[0].RSSI)
	}
	if networks[1].Encryption != "open" {
		t.Errorf("OpenSpot encryption = %q, want open", networks[1].Encryption)
	}
	if networks[2].Encryption != "encrypted" {
		t.Errorf("Cafe encryption = %q, want encrypted", networks[2].Encryption)
	}
}

func TestParseScanSkipsMalformedLines(t *testing.T) {
	out := ":50:WPA2\nHome:notanumber:WPA2\nHome:70:WPA2\n"
	networks := parseScan(out)
	if len(networks) != 1 || networks[0].SSID != "Home" {
		t.Fatalf("expected only the well-formed line, got %v", networks)
	}
}

func TestParseConnected(t *testing.T) {
	up := "eth0:ethernet:connected\nwifi:connected\n"
	if !parseConnected("wlan0 is up\nwifi:connected") && !parseConnected(up) {
		t.Error("expected connected")
	}
	down := "wifi:disconnected\nlo:unmanaged\n"
	if parseConnected(down) {
		t.Error("expected disconnected")
	}
}

func TestNmcliRadioUsesInjectedRunner(t *testing.T) {
	var gotArgs []string
	radio := &NmcliRadio{run: func(ctx context.Context, name string, args ...string) (string, error) {
		gotArgs = append([]string{name}, args...)
		return "Home:84:WPA2\n", nil
	}}

	networks, err := radio.Scan(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(networks) != 1 {
		t.Fatalf("expected 1 network, got %d", len(networks))
	}
	if gotArgs[0] != "nmcli" {
		t.Errorf("unexpected command: %v", gotArgs)
	}
}
