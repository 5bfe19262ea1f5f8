// Package daemon schedules recurring sync runs.
package daemon

import (
	"context"
	damnrich "github.com/HikaRiwwww/damn-rich"
	"github.com/google/uuid"
	"time"
)

// Task is one runnable sync pass.
type Task interface {
	Execute(ctx context.Context) (bool, error)
}

// SyncDaemon runs the task once right after start, then on every
// interval tick and on every TriggerNow call. Runs never overlap;
// triggers arriving during a run coalesce into a single follow-up run.
type SyncDaemon struct {
	logger      damnrich.Logger
	task        Task
	interval    time.Duration
	triggerChan chan struct{}
}

func RunSyncDaemon(
	ctx context.Context,
	logger damnrich.Logger,
	task Task,
	interval time.Duration,
) *SyncDaemon {
	daemon := &SyncDaemon{
		logger:      logger,
		task:        task,
		interval:    interval,
		triggerChan: make(chan struct{}, 1),
	}

	go daemon.loop(ctx)

	return daemon
}

// TriggerNow requests an immediate sync run. It never blocks; when a
// trigger is already pending the call is a no-op.
func (sd *SyncDaemon) TriggerNow() {
	select {
	case sd.triggerChan <- struct{}{}:
	default:
	}
}

func (sd *SyncDaemon) loop(ctx context.Context) {
	ticker := time.NewTicker(sd.interval)
	defer ticker.Stop()

	sd.runOnce(ctx)

	for {
		select {
		case <-ticker.C:
			sd.runOnce(ctx)
		case <-sd.triggerChan:
			sd.runOnce(ctx)
		case <-ctx.Done():
			sd.logger.Infof("sync daemon context is done")
			return
		}
	}
}

func (sd *SyncDaemon) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	runLogger := sd.logger.WithField("run", uuid.New().String())

	runLogger.Infof("starting sync run")

	startTime := time.Now()

	ok, err := sd.task.Execute(ctx)
	if err != nil {
		runLogger.Errorf("sync run failed: [%v]", err)
		return
	}

	duration := time.Since(startTime).Round(time.Millisecond)

	if !ok {
		runLogger.Warningf(
			"sync run finished in [%v] without any synced symbol",
			duration,
		)
		return
	}

	runLogger.Infof("sync run finished in [%v]", duration)
}
