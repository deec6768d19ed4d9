package daemon

import (
	"github.com/spf13/cobra"
)

var Cmd = &cobra.Command{
	Use:   "daemon",
	Short: "Appliance control daemon",
	Long:  "Appliance control daemon, with provisioning web surface and MQTT pin control",
	Args:  cobra.NoArgs,
}

func init() {
	Cmd.AddCommand(runCmd)
	Cmd.AddCommand(installCmd)
	Cmd.AddCommand(uninstallCmd)
	Cmd.AddCommand(startCmd)
	Cmd.AddCommand(stopCmd)
}
