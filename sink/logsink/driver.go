// Package logsink is a run-event sink that writes through the process logger.
package logsink

import (
	"context"
	"fmt"
	"log/slog"

	"pybake/internal/logging"
	"pybake/sink"
)

type Config struct {
	Level string `koanf:"level"` // level for successful runs; failures log at warn
}

type driver struct {
	level slog.Level
}

func (d *driver) Configure(raw any) error {
	c, ok := raw.(Config)
	if !ok {
		return fmt.Errorf("log-sink: expected Config, got %T", raw)
	}
	d.level = logging.ParseLevel(c.Level)
	return nil
}

func (d *driver) Publish(ev *sink.Event) error {
	lvl := d.level
	if ev.Status != "ok" {
		lvl = slog.LevelWarn
	}
	logging.L().Log(context.Background(), lvl, "run event",
		"request_id", ev.RequestID,
		"mode", ev.Mode,
		"status", ev.Status,
		"artifacts", len(ev.Artifacts),
		"failed_targets", ev.FailedTargets,
		"duration", ev.Duration,
	)
	return nil
}

func (d *driver) Close() error { return nil }

func init() {
	sink.Register("log", func() sink.Adapter { return &driver{} })
}
