package daemon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/biosync/appliances/internal/agent"
	"github.com/biosync/appliances/internal/broker"
	"github.com/biosync/appliances/internal/control"
	"github.com/biosync/appliances/internal/credstore"
	"github.com/biosync/appliances/internal/journal"
	"github.com/biosync/appliances/internal/mqttc"
	"github.com/biosync/appliances/internal/outputs"
	"github.com/biosync/appliances/internal/wifi"
)

func init() {
	runCmd.Flags().Bool("embedded-broker", false, "run an in-process MQTT broker and use it")
	runCmd.Flags().StringP("broker", "b", "", "MQTT broker URL")
	v.BindPFlag("embedded_broker", runCmd.Flags().Lookup("embedded-broker"))
	v.BindPFlag("broker", runCmd.Flags().Lookup("broker"))
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the appliance agent in the foreground",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := logr.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		return run(cmd.Context(), log)
	},
}

func run(ctx context.Context, log logr.Logger) error {
	credPath := v.GetString("credentials")
	if err := os.MkdirAll(filepath.Dir(credPath), 0755); err != nil {
		return err
	}
	region, err := credstore.OpenFileRegion(credPath)
	if err != nil {
		log.Error(err, "Failed to open credential region", "path", credPath)
		return err
	}
	defer region.Close()

	store, err := credstore.Open(log, region)
	if err != nil {
		log.Error(err, "Failed to open credential store")
		return err
	}

	var backend outputs.Backend
	switch v.GetString("gpio") {
	case "mem":
		backend = outputs.NewMemBackend()
	case "sysfs":
		backend = outputs.NewSysfsBackend()
	default:
		return fmt.Errorf("unknown gpio backend %q", v.GetString("gpio"))
	}

	lines := outputs.DefaultLines()
	if v.IsSet("lines") {
		lines = nil
		if err := v.UnmarshalKey("lines", &lines); err != nil {
			log.Error(err, "Bad output line table")
			return err
		}
	}
	bank, err := outputs.NewBank(log, backend, lines)
	if err != nil {
		log.Error(err, "Failed to initialize output bank")
		return err
	}

	var radio wifi.Radio
	switch v.GetString("radio") {
	case "sim":
		radio = wifi.NewSimRadio()
	case "nmcli":
		radio = wifi.NewNmcliRadio(log)
	default:
		return fmt.Errorf("unknown radio %q", v.GetString("radio"))
	}

	// The embedded broker covers networks without an external one; the
	// control channel then loops back to it.
	brokerURL := v.GetString("broker")
	if v.GetBool("embedded_broker") {
		b, err := broker.Serve(ctx, log, v.GetString("broker_listen"), mqttc.DeviceID())
		if err != nil {
			log.Error(err, "Failed to start embedded broker")
			return err
		}
		defer b.Close()
		brokerURL = b.URL()
	}

	bus := mqttc.NewClient(log, brokerURL, mqttc.DeviceID())
	defer bus.Close()

	opts := control.Options{
		CommandTopic: v.GetString("command_topic"),
		StateTopic:   v.GetString("state_topic"),
	}
	if path := v.GetString("journal"); path != "" {
		jour, err := journal.Open(log, path)
		if err != nil {
			log.Error(err, "Command journal unavailable, continuing without", "path", path)
		} else {
			defer jour.Close()
			opts.Recorder = jour
		}
	}
	channel := control.NewChannel(log, bus, bank, store, opts)

	// The override input is active low: a grounded pin at boot wipes the
	// stored credentials and forces provisioning.
	var override func() bool
	if pin := v.GetInt("override_pin"); pin >= 0 {
		override = func() bool {
			val, err := backend.Read(pin)
			return err == nil && val == 0
		}
	}

	cfg := agent.Config{
		APSSID:        v.GetString("ap.ssid"),
		APSecret:      v.GetString("ap.secret"),
		ProvisionAddr: v.GetString("listen"),
	}
	device := agent.New(log, cfg, store, bank, radio, channel,
		agent.ExitRestarter{Log: log}, override)

	log.Info("Starting appliance agent", "client_id", bus.ID(), "broker", brokerURL)
	return device.Run(ctx)
}
