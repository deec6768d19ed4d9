package daemon

import (
	"context"

	"github.com/go-logr/logr"
	"github.com/kardianos/service"
	"github.com/spf13/cobra"
)

func load(ctx context.Context) (service.Service, service.Logger, error) {
	log, err := logr.FromContext(ctx)
	if err != nil {
		return nil, nil, err
	}

	config := service.Config{
		Name:        "applianced",
		DisplayName: "Appliance Control",
		Description: "Appliance control daemon, with provisioning web surface and MQTT pin control",
		Arguments:   []string{"daemon", "run"},
	}

	s, err := service.New(NewDaemon(ctx), &config)
	if err != nil {
		log.Error(err, "Failed to create (background) service")
		return nil, nil, err
	}
	logger, err := s.Logger(nil)
	if err != nil {
		log.Error(err, "Failed to create (background) service logger")
		return nil, nil, err
	}
	return s, logger, err
}

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install applianced as a " + service.Platform() + " service",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, l, err := load(cmd.Context())
		if err != nil {
			return err
		}
		l.Info("Installing service")
		return s.Install()
	},
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Uninstall the applianced " + service.Platform() + " service",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, l, err := load(cmd.Context())
		if err != nil {
			return err
		}
		l.Info("Uninstalling service")
		return s.Uninstall()
	},
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the installed applianced service",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, l, err := load(cmd.Context())
		if err != nil {
			return err
		}
		l.Info("Starting service")
		return s.Start()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the installed applianced service",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, l, err := load(cmd.Context())
		if err != nil {
			return err
		}
		l.Info("Stopping service")
		return s.Stop()
	},
}
