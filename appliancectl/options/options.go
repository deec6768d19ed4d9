package options

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"gopkg.in/yaml.v2"
)

var Flags struct {
	Verbose        bool
	Json           bool
	Device         string
	MqttBroker     string
	Password       string
	CommandTimeout time.Duration
}

type contextKey string

const CancelKey contextKey = "cancel"

// CommandLineContext builds the command context: logger attached, optional
// deadline, cancelled on SIGINT/SIGTERM.
func CommandLineContext(log logr.Logger, timeout time.Duration) context.Context {
	ctx := logr.NewContext(context.Background(), log)
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	ctx = context.WithValue(ctx, CancelKey, cancel)
	go func() {
		signals := make(chan os.Signal, 1)
		signal.Notify(signals, os.Interrupt)
		signal.Notify(signals, syscall.SIGTERM)
		<-signals
		log.Info("Received signal")
		cancel()
	}()
	return ctx
}

func PrintResult(out any) error {
	if Flags.Json {
		s, err := json.Marshal(out)
		if err != nil {
			return err
		}
		fmt.Println(string(s))
	} else {
		s, err := yaml.Marshal(out)
		if err != nil {
			return err
		}
		fmt.Println(string(s))
	}
	return nil
}
