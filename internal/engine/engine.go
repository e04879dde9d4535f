package engine

import (
	"context"
	"errors"
	"net"
	"net/http"

	"golang.org/x/sync/errgroup"

	"pybake/internal/config"
	"pybake/internal/logging"
	"pybake/internal/orchestrator"
	"pybake/internal/transport"
	"pybake/sink"
)

type Engine struct {
	cfg       config.Config
	orch      *orchestrator.Orchestrator
	events    *sink.Fanout
	httpLis   net.Listener
	http      *http.Server
	transport *transport.Server // nil when grpc_port is 0
	metrics   *http.Server      // nil when metrics_port is 0
}

// HTTPAddr is the bound address of the upload surface.
func (e *Engine) HTTPAddr() net.Addr { return e.httpLis.Addr() }

// Run serves until ctx is cancelled or a server fails, then shuts every
// server down within the configured shutdown timeout.
func (e *Engine) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logging.L().Info("http listening", "addr", e.httpLis.Addr().String())
		if err := e.http.Serve(e.httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if e.transport != nil {
		e.transport.SetServing(true)
		g.Go(func() error {
			logging.L().Info("grpc listening", "addr", e.transport.Addr().String())
			return e.transport.Serve()
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		return e.shutdown()
	})

	return g.Wait()
}

func (e *Engine) shutdown() error {
	logging.L().Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.Server.ShutdownTimeout)
	defer cancel()

	if e.transport != nil {
		e.transport.SetServing(false)
	}
	// waits for in-flight uploads to finish their run
	errs := []error{e.http.Shutdown(ctx)}
	if e.transport != nil {
		e.transport.Stop()
	}
	if e.metrics != nil {
		errs = append(errs, e.metrics.Shutdown(ctx))
	}
	errs = append(errs, e.events.Close())
	return errors.Join(errs...)
}
