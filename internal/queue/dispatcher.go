package queue

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron"
)

// Dispatcher enqueues a sweep on a cron schedule. It only triggers work; the
// sweep itself runs on the asynq worker.
type Dispatcher struct {
	cron     *cron.Cron
	enqueuer Enqueuer
	timeout  time.Duration
}

func NewDispatcher(enqueuer Enqueuer, schedule string, timeout time.Duration) (*Dispatcher, error) {
	d := &Dispatcher{
		cron:     cron.New(),
		enqueuer: enqueuer,
		timeout:  timeout,
	}

	if err := d.cron.AddFunc(schedule, d.Dispatch); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return d, nil
}

func (d *Dispatcher) Dispatch() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := EnqueueSweep(ctx, d.enqueuer, "cron", d.timeout); err != nil {
		log.Printf("Scheduled sweep dispatch failed: %v", err)
	}
}

func (d *Dispatcher) Start() {
	d.cron.Start()
}

func (d *Dispatcher) Stop() {
	d.cron.Stop()
}
