// Package state reads back the retained state snapshot a device keeps on
// its state topic.
package state

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/biosync/appliances/appliancectl/options"
	"github.com/biosync/appliances/hlog"
	"github.com/biosync/appliances/internal/control"
	"github.com/biosync/appliances/internal/mqttc"
)

var stateTopic string

func init() {
	Cmd.Flags().StringVar(&stateTopic, "state-topic", control.DefaultStateTopic, "state topic")
}

var Cmd = &cobra.Command{
	Use:   "state",
	Short: "Show the device's current output state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := hlog.Logger

		client := mqttc.NewClient(log, options.Flags.MqttBroker,
			fmt.Sprintf("appliancectl_%d", os.Getpid()))
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

		select {
		case <-ctx.Done():
			return fmt.Errorf("no retained state on %s: %w", stateTopic, ctx.Err())
		case payload := <-states:
			var state map[string]string
			if err := json.Unmarshal(payload, &state); err != nil {
				return err
			}
			return options.PrintResult(state)
		}
	},
}
