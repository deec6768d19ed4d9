package main

import (
	"fmt"
	"strconv"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/biosync/appliances/applianced/daemon"
	"github.com/biosync/appliances/appliancectl/options"
	"github.com/biosync/appliances/internal/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal [count]",
	Short: "Show the most recent control commands",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := logr.FromContext(cmd.Context())
		if err != nil {
			return err
		}

		count := 20
		if len(args) == 1 {
			count, err = strconv.Atoi(args[0])
			if err != nil {
				return err
			}
		}

		path := daemon.JournalPath()
		if path == "" {
			return fmt.Errorf("command journal is disabled")
		}
		jour, err := journal.Open(log, path)
		if err != nil {
			return err
		}
		defer jour.Close()

		entries, err := jour.Recent(count)
		if err != nil {
			return err
		}
		return options.PrintResult(entries)
	},
}

func init() {
	journalCmd.Flags().BoolVarP(&options.Flags.Json, "json", "j", false, "print as JSON")
}
