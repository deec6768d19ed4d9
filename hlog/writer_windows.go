//go:build windows
// +build windows

package hlog

import (
	"os"
	"path/filepath"

	"github.com/kardianos/service"
	"github.com/mattn/go-isatty"
)

func IsTerminal() bool {
	if !service.Interactive() {
		return false
	}
	return isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
}

func getLogDir() string {
	if !service.Interactive() {
		return filepath.Join(os.Getenv("ProgramData"), "Applianced", "logs")
	}

	appData := os.Getenv("LOCALAPPDATA")
	if appData == "" {
		appData = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Local")
	}
	return filepath.Join(appData, "Applianced", "logs")
}
