package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/biosync/appliances/appliancectl/options"
	"github.com/biosync/appliances/appliancectl/provision"
	"github.com/biosync/appliances/appliancectl/set"
	"github.com/biosync/appliances/appliancectl/state"
	"github.com/biosync/appliances/hlog"
	"github.com/biosync/appliances/internal/credstore"
	"github.com/biosync/appliances/internal/mqttc"
)

var rootCmd = &cobra.Command{
	Use:   "appliancectl",
	Short: "Operate appliance control devices",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		hlog.Init(options.Flags.Verbose)
		ctx := options.CommandLineContext(hlog.Logger, options.Flags.CommandTimeout)
		cmd.SetContext(ctx)
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		cancel := cmd.Context().Value(options.CancelKey).(context.CancelFunc)
		cancel()
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&options.Flags.Verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&options.Flags.Json, "json", "j", false, "print results as JSON")
	rootCmd.PersistentFlags().StringVarP(&options.Flags.Device, "device", "d", "http://192.168.4.1", "base URL of the device's provisioning surface")
	rootCmd.PersistentFlags().StringVarP(&options.Flags.MqttBroker, "broker", "b", mqttc.DefaultBrokerURL, "MQTT broker URL")
	rootCmd.PersistentFlags().StringVarP(&options.Flags.Password, "password", "p", credstore.DefaultControlSecret, "control password")
	rootCmd.PersistentFlags().DurationVarP(&options.Flags.CommandTimeout, "timeout", "t", 10*time.Second, "command timeout")
	rootCmd.AddCommand(provision.Cmd)
	rootCmd.AddCommand(set.Cmd)
	rootCmd.AddCommand(state.Cmd)
	rootCmd.AddCommand(versionCmd)
}

var Commit string

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(Commit)
	},
}

func main() {
	cobra.EnableTraverseRunHooks = true
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
