// Package server wires configuration, execution sources and the processor
// together and runs the supporting HTTP servers.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	//nolint:gosec // only exposed if pprofAddr config is set
	_ "net/http/pprof"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ethpandaops/callflow/pkg/api"
	"github.com/ethpandaops/callflow/pkg/config"
	"github.com/ethpandaops/callflow/pkg/ethereum"
	"github.com/ethpandaops/callflow/pkg/ethereum/execution/geth"
	"github.com/ethpandaops/callflow/pkg/processor"
)

const readHeaderTimeout = 120 * time.Second

// Job is one unit of work run against the processor, such as rendering a
// diagram file.
type Job func(ctx context.Context, p *processor.Processor) error

type Server struct {
	log       logrus.FieldLogger
	config    *config.Config
	namespace string

	pool      *ethereum.Pool
	nodes     []*geth.RPCNode
	processor *processor.Processor

	metricsServer *http.Server
	pprofServer   *http.Server
	apiServer     *http.Server
}

func NewServer(ctx context.Context, log logrus.FieldLogger, namespace string, cfg *config.Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	registry, err := cfg.Registry(log.WithField("component", "abi"))
	if err != nil {
		return nil, fmt.Errorf("failed to load contract abis: %w", err)
	}

	pool, nodes, err := ethereum.NewPool(ctx, log.WithField("component", "ethereum"), namespace, &cfg.Ethereum)
	if err != nil {
		return nil, fmt.Errorf("failed to create ethereum pool: %w", err)
	}

	p := processor.New(
		log,
		&cfg.Processor,
		pool,
		registry,
		cfg.Participants(),
		cfg.Excluded(),
		cfg.Diagram,
	)

	return &Server{
		log:       log,
		config:    cfg,
		namespace: namespace,
		pool:      pool,
		nodes:     nodes,
		processor: p,
	}, nil
}

// Run starts the configured metrics and pprof servers, runs job and shuts
// everything down once job returns or a termination signal arrives.
func (s *Server) Run(ctx context.Context, job Job) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g := new(errgroup.Group)

	s.startSupport(g)

	jobErr := job(ctx, s.processor)

	s.stop(ctx)

	return errors.Join(jobErr, g.Wait())
}

// Serve runs the diagram API until a termination signal arrives.
func (s *Server) Serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	s.startSupport(g)

	mux := http.NewServeMux()
	api.NewHandler(s.log, s.processor).RegisterRoutes(mux)

	s.apiServer = &http.Server{
		Addr:              s.config.APIAddr,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	s.log.WithField("addr", s.config.APIAddr).Info("Starting api server")

	g.Go(func() error {
		return listen(s.apiServer)
	})

	// Wait for shutdown signal
	g.Go(func() error {
		<-ctx.Done()

		s.stop(ctx)

		return nil
	})

	return g.Wait()
}

func (s *Server) startSupport(g *errgroup.Group) {
	if s.config.MetricsAddr != nil {
		s.log.WithField("addr", *s.config.MetricsAddr).Info("Starting metrics server")

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())

		s.metricsServer = &http.Server{
			Addr:              *s.config.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: readHeaderTimeout,
		}

		g.Go(func() error {
			return listen(s.metricsServer)
		})
	}

	if s.config.PProfAddr != nil {
		s.log.WithField("addr", *s.config.PProfAddr).Info("Starting pprof server")

		s.pprofServer = &http.Server{
			Addr:              *s.config.PProfAddr,
			ReadHeaderTimeout: readHeaderTimeout,
		}

		g.Go(func() error {
			return listen(s.pprofServer)
		})
	}
}

func listen(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *Server) stop(ctx context.Context) {
	// Create a timeout context for cleanup
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.ShutdownTimeout)
	defer cancel()

	s.log.Debug("Starting graceful shutdown...")

	for _, node := range s.nodes {
		if err := node.Stop(cleanupCtx); err != nil {
			s.log.WithError(err).WithField("node", node.Name()).Error("failed to stop execution node")
		}
	}

	servers := map[string]*http.Server{
		"api":     s.apiServer,
		"pprof":   s.pprofServer,
		"metrics": s.metricsServer,
	}

	for name, srv := range servers {
		if srv == nil {
			continue
		}

		if err := srv.Shutdown(cleanupCtx); err != nil {
			s.log.WithError(err).WithField("server", name).Error("failed to shutdown server")
		}
	}

	s.log.Debug("Stopped gracefully")
}
