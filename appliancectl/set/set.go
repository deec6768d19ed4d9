// Package set publishes pin commands on the control topic and waits for
// the device to echo the resulting state.
package set

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/biosync/appliances/appliancectl/options"
	"github.com/biosync/appliances/hlog"
	"github.com/biosync/appliances/internal/control"
	"github.com/biosync/appliances/internal/mqttc"
)

var commandTopic string
var stateTopic string

func init() {
	Cmd.Flags().StringVar(&commandTopic, "command-topic", control.DefaultCommandTopic, "command topic")
	Cmd.Flags().StringVar(&stateTopic, "state-topic", control.DefaultStateTopic, "state topic")
}

var Cmd = &cobra.Command{
	Use:   "set <output> <on|off> [<output> <on|off> ...]",
	Short: "Drive appliance outputs over the control channel",
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 || len(args)%2 != 0 {
			return fmt.Errorf("arguments come in <output> <state> pairs")
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := hlog.Logger

		pins := make(map[string]string, len(args)/2)
		for i := 0; i < len(args); i += 2 {
			pins[args[i]] = args[i+1]
		}

		client := mqttc.NewClient(log, options.Flags.MqttBroker, clientID())
		if err := client.Connect(ctx); err != nil {
			return err
		}
		defer client.Close()

		states := make(chan []byte, 1)
		if err := client.Subscribe(stateTopic, func(payload []byte) {
			select {
			case states <- payload:
			default:
			}
		}); err != nil {
			return err
		}

		payload, err := json.Marshal(control.Command{
			Password: options.Flags.Password,
			Pins:     pins,
		})
		if err != nil {
			return err
		}
		if err := client.Publish(commandTopic, payload, false); err != nil {
			return err
		}

		// The retained snapshot arrives first; wait until an echo reflects
		// every requested output.
		for {
			select {
			case <-ctx.Done():
				return fmt.Errorf("no state echo from the device: %w", ctx.Err())
			case payload := <-states:
				var state map[string]string
				if err := json.Unmarshal(payload, &state); err != nil {
					continue
				}
				if reflects(state, pins) {
					return options.PrintResult(state)
				}
			}
		}
	},
}

func reflects(state map[string]string, pins map[string]string) bool {
	for name, value := range pins {
		want := "off"
		if control.WantsOn(value) {
			want = "on"
		}
		got, ok := state[strings.ToLower(name)]
		if !ok {
			// Unknown outputs are dropped by the device; nothing to wait for.
			continue
		}
		if got != want {
			return false
		}
	}
	return true
}

func clientID() string {
	return fmt.Sprintf("appliancectl_%d", os.Getpid())
}
