package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/biosync/appliances/applianced/daemon"
	"github.com/biosync/appliances/appliancectl/options"
	"github.com/biosync/appliances/hlog"
)

var Cmd = &cobra.Command{
	Use:   "applianced",
	Short: "Appliance control agent",
	Long:  "Network-attached appliance switch bank, with provisioning surface and MQTT control channel",
	Args:  cobra.NoArgs,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		hlog.InitForDaemon(options.Flags.Verbose)
		log := hlog.Logger

		ctx := options.CommandLineContext(log, 0)
		cmd.SetContext(ctx)

		return daemon.LoadConfig(log)
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cancel := ctx.Value(options.CancelKey).(context.CancelFunc)
		cancel()
		return nil
	},
}

func init() {
	Cmd.PersistentFlags().BoolVarP(&options.Flags.Verbose, "verbose", "v", false, "verbose output")
	Cmd.PersistentFlags().StringVarP(&daemon.ConfigFile, "config", "c", "", "configuration file")
	Cmd.AddCommand(daemon.Cmd)
	Cmd.AddCommand(journalCmd)
	Cmd.AddCommand(versionCmd)
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
	if err := Cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
