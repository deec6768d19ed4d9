package agent

import (
	"os"

	"github.com/go-logr/logr"
)

// RestartExitCode tells the service manager this exit is a requested
// relaunch, not a crash.
const RestartExitCode = 86

// ExitRestarter performs the controlled restart by leaving the process;
// the service manager brings it back with freshly loaded state.
type ExitRestarter struct {
	Log logr.Logger
}

func (r ExitRestarter) Restart() {
	r.Log.Info("Restarting", "exit_code", RestartExitCode)
	os.Exit(RestartExitCode)
}
