package engine

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"pybake/internal/config"
	"pybake/internal/httpapi"
	"pybake/internal/logging"
	"pybake/internal/orchestrator"
	"pybake/internal/telemetry"
	"pybake/internal/toolchain"
	"pybake/internal/transport"
	"pybake/sink"
	"pybake/sink/kafka"
	"pybake/sink/logsink"
)

func Bootstrap(ctx context.Context, cfg config.Config) (*Engine, error) {
	// 1. run events
	events, err := BuildSinks(cfg.Events)
	if err != nil {
		return nil, fmt.Errorf("events: %w", err)
	}

	// 2. orchestrator
	orch, err := NewOrchestrator(cfg, events)
	if err != nil {
		_ = events.Close()
		return nil, err
	}

	// 3. http surface
	lis, err := (&net.ListenConfig{}).Listen(ctx, "tcp", cfg.Server.HTTPAddr)
	if err != nil {
		_ = events.Close()
		return nil, fmt.Errorf("http listen %s: %w", cfg.Server.HTTPAddr, err)
	}
	h := httpapi.New(orch, httpapi.Config{
		MaxUploadBytes:    cfg.Server.MaxUploadBytes,
		AllowedExtensions: cfg.Server.AllowedExtensions,
	})

	e := &Engine{
		cfg:     cfg,
		orch:    orch,
		events:  events,
		httpLis: lis,
		http:    &http.Server{Handler: h, ReadHeaderTimeout: 10 * time.Second},
	}

	// 4. transport server
	if cfg.Server.GRPCPort != 0 {
		e.transport, err = transport.StartServer(cfg.Server.GRPCPort)
		if err != nil {
			_ = lis.Close()
			_ = events.Close()
			return nil, fmt.Errorf("transport: %w", err)
		}
	}

	// 5. metrics
	e.metrics = telemetry.Expose(cfg.Server.MetricsPort)

	return e, nil
}

// NewOrchestrator loads the tool profiles named by cfg and returns an
// orchestrator that reports every finished run to events (which may be nil).
func NewOrchestrator(cfg config.Config, events *sink.Fanout) (*orchestrator.Orchestrator, error) {
	f, err := config.LoadTools(cfg.ToolsFile)
	if err != nil {
		return nil, fmt.Errorf("tools: %w", err)
	}
	tools, err := toolchain.NewSet(f)
	if err != nil {
		return nil, fmt.Errorf("tools: %w", err)
	}
	logging.L().Info("toolchain ready",
		"obfuscator", tools.Obfuscator.Name, "obfuscator_cmd", tools.Obfuscator.Command,
		"compiler", tools.Compiler.Name, "compiler_cmd", tools.Compiler.Command)

	opts := orchestrator.Options{
		Tools:         tools,
		Root:          cfg.Workspace.Root,
		MaxConcurrent: cfg.Workspace.MaxConcurrent,
	}
	if events != nil {
		opts.OnComplete = func(res *orchestrator.Result, err error) {
			events.Publish(sink.FromRun(res, err))
		}
	}
	return orchestrator.New(opts), nil
}

// BuildSinks configures every sink named in cfg.Sinks, in order.
func BuildSinks(cfg config.EventsCfg) (*sink.Fanout, error) {
	out := sink.NewFanout()
	for _, name := range cfg.Sinks {
		drv, err := sink.NewAdapter(name)
		if err != nil {
			_ = out.Close()
			return nil, err
		}

		switch name {
		case "log":
			err = drv.Configure(logsink.Config{Level: "info"})
		case "kafka":
			err = drv.Configure(kafka.Config{
				Brokers: cfg.Kafka.Brokers,
				Topic:   cfg.Kafka.Topic,
				Acks:    cfg.Kafka.RequiredAcks,
				Version: cfg.Kafka.Version,
			})
		default:
			err = fmt.Errorf("no config block for sink %q", name)
		}
		if err != nil {
			_ = out.Close()
			return nil, fmt.Errorf("sink %s: %w", name, err)
		}
		out.Add(drv)
	}
	return out, nil
}
