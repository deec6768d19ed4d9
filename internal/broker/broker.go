// Package broker runs the optional in-process MQTT broker so a LAN without
// an external broker can still carry the control channel. The broker is
// announced over mDNS as _mqtt._tcp.
package broker

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/go-logr/logr"
	"github.com/grandcat/zeroconf"

	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
)

type Broker struct {
	server *mochi.Server
	mdns   *zeroconf.Server
	addr   string
	log    logr.Logger
}

// Serve starts a TCP listener on addr and, when instance is non-empty,
// registers the broker over zeroconf. Anonymous clients are allowed; the
// control channel carries its own authorization.
func Serve(ctx context.Context, log logr.Logger, addr, instance string) (*Broker, error) {
	log = log.WithName("broker")

	opts := &mochi.Options{InlineClient: true}
	opts.Logger = slog.New(logr.ToSlogHandler(log))
	server := mochi.New(opts)

	if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
		return nil, fmt.Errorf("adding auth hook: %w", err)
	}

	tcp := listeners.NewTCP(listeners.Config{ID: "tcp", Address: addr})
	if err := server.AddListener(tcp); err != nil {
		return nil, fmt.Errorf("adding TCP listener: %w", err)
	}
	if err := server.Serve(); err != nil {
		return nil, fmt.Errorf("starting broker: %w", err)
	}
	log.Info("Embedded MQTT broker started", "addr", addr)

	b := &Broker{server: server, addr: addr, log: log}

	if instance != "" {
		_, portStr, err := net.SplitHostPort(addr)
		if err == nil {
			port, _ := strconv.Atoi(portStr)
			mdns, err := zeroconf.Register(instance, "_mqtt._tcp", "local.", port,
				[]string{"program=applianced"}, nil)
			if err != nil {
				log.Error(err, "Failed to announce broker over mDNS")
			} else {
				b.mdns = mdns
				log.Info("Announced broker over mDNS", "instance", instance, "port", port)
			}
		}
	}

	go func() {
		<-ctx.Done()
		b.Close()
	}()
	return b, nil
}

// URL is the broker address in the form the paho client expects.
func (b *Broker) URL() string {
	return "tcp://" + b.addr
}

func (b *Broker) Close() {
	if b.mdns != nil {
		b.mdns.Shutdown()
		b.mdns = nil
	}
	if b.server != nil {
		b.server.Close()
	}
}
