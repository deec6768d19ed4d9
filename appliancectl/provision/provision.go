// Package provision drives a device's setup surface: the operator joins
// the device's access point, then uses these commands against it.
package provision

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/biosync/appliances/appliancectl/options"
	"github.com/biosync/appliances/internal/wifi"
)

var Cmd = &cobra.Command{
	Use:   "provision",
	Short: "Configure a device over its setup network",
	Args:  cobra.NoArgs,
}

func init() {
	Cmd.AddCommand(scanCmd)
	Cmd.AddCommand(connectCmd)
	Cmd.AddCommand(clearCmd)
	Cmd.AddCommand(setPasswordCmd)
}

// get calls one device endpoint and decodes its JSON reply.
func get(ctx context.Context, path string, query url.Values, out any) error {
	u := strings.TrimRight(options.Flags.Device, "/") + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("device replied %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func (r result) check() error {
	if !r.Success {
		return fmt.Errorf("device refused: %s", r.Message)
	}
	return nil
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List the networks the device can see",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var networks []wifi.Network
		if err := get(cmd.Context(), "/scan", nil, &networks); err != nil {
			return err
		}
		return options.PrintResult(networks)
	},
}

var connectCmd = &cobra.Command{
	Use:   "connect <ssid> [<password>]",
	Short: "Point the device at a network; it restarts on success",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := url.Values{"ssid": {args[0]}}
		if len(args) == 2 {
			query.Set("password", args[1])
		}
		var res result
		if err := get(cmd.Context(), "/connect", query, &res); err != nil {
			return err
		}
		return res.check()
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Wipe the device's stored credentials; it restarts into setup mode",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var res result
		if err := get(cmd.Context(), "/clear", nil, &res); err != nil {
			return err
		}
		return res.check()
	},
}

var setPasswordCmd = &cobra.Command{
	Use:   "set-password <password>",
	Short: "Change the device's control password",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var res result
		if err := get(cmd.Context(), "/setpassword", url.Values{"password": {args[0]}}, &res); err != nil {
			return err
		}
		return res.check()
	},
}
