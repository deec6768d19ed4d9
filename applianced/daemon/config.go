package daemon

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/go-logr/logr"
	"github.com/spf13/viper"

	"github.com/biosync/appliances/internal/agent"
	"github.com/biosync/appliances/internal/control"
	"github.com/biosync/appliances/internal/mqttc"
)

// ConfigFile is the --config override; empty means search the usual paths.
var ConfigFile string

var v = viper.New()

// LoadConfig primes the daemon configuration: built-in defaults, then the
// configuration file if one exists, then APPLIANCES_* environment overrides.
func LoadConfig(log logr.Logger) error {
	defaults := agent.DefaultConfig()

	v.SetDefault("broker", mqttc.DefaultBrokerURL)
	v.SetDefault("command_topic", control.DefaultCommandTopic)
	v.SetDefault("state_topic", control.DefaultStateTopic)
	v.SetDefault("credentials", filepath.Join(stateDir(), "credentials.bin"))
	v.SetDefault("journal", filepath.Join(stateDir(), "journal.db"))
	v.SetDefault("listen", defaults.ProvisionAddr)
	v.SetDefault("ap.ssid", defaults.APSSID)
	v.SetDefault("ap.secret", defaults.APSecret)
	v.SetDefault("radio", "nmcli")
	v.SetDefault("gpio", "sysfs")
	v.SetDefault("override_pin", -1)
	v.SetDefault("embedded_broker", false)
	v.SetDefault("broker_listen", ":1883")

	v.SetEnvPrefix("APPLIANCES")
	v.AutomaticEnv()

	if ConfigFile != "" {
		v.SetConfigFile(ConfigFile)
	} else {
		v.SetConfigName("applianced")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/applianced")
		v.AddConfigPath("$HOME/.config/applianced")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && ConfigFile == "" {
			log.Info("No configuration file, using defaults")
			return nil
		}
		return err
	}
	log.Info("Loaded configuration", "file", v.ConfigFileUsed())
	return nil
}

// JournalPath is the configured command journal location, empty when the
// journal is disabled.
func JournalPath() string {
	return v.GetString("journal")
}

func stateDir() string {
	if os.Geteuid() == 0 {
		return "/var/lib/applianced"
	}

	dir := os.Getenv("XDG_STATE_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		dir = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(dir, "applianced")
}
