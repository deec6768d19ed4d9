package daemon

import (
	"context"

	"github.com/go-logr/logr"
	"github.com/kardianos/service"

	"github.com/biosync/appliances/appliancectl/options"
)

type daemon struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func NewDaemon(ctx context.Context) *daemon {
	return &daemon{
		ctx:    ctx,
		cancel: ctx.Value(options.CancelKey).(context.CancelFunc),
	}
}

func (d *daemon) Start(s service.Service) error {
	// Start should not block. Do the actual work async.
	go d.Run()
	return nil
}

func (d *daemon) Stop(s service.Service) error {
	d.cancel()
	return nil
}

func (d *daemon) Run() error {
	log, err := logr.FromContext(d.ctx)
	if err != nil {
		return err
	}
	return run(d.ctx, log)
}
