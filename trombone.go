// Package trombone assembles and runs the gateway from a loaded server
// configuration: it parses the routes file, registers the pipelines,
// connects the database pool and serves the dispatcher over HTTP.
package trombone

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/johanneshilden/trombone/config"
	"github.com/johanneshilden/trombone/dispatch"
	"github.com/johanneshilden/trombone/logging"
	"github.com/johanneshilden/trombone/metrics"
	"github.com/johanneshilden/trombone/nodejs"
	"github.com/johanneshilden/trombone/pg"
	"github.com/johanneshilden/trombone/pipeline"
	"github.com/johanneshilden/trombone/routeconf"
	"github.com/johanneshilden/trombone/routing"
	"github.com/johanneshilden/trombone/secrets"
)

// Version of the gateway, reported in the Server response header.
const Version = "0.9.0"

// Run starts the gateway with the given configuration and blocks until the
// process receives SIGINT or SIGTERM; active requests get a shutdown grace
// period.
func Run(c *config.Config) error {
	if err := logging.Init(logging.Options{
		Level:          c.Log.Level,
		JSON:           c.Log.JSON,
		AccessDisabled: c.Log.AccessLogDisabled,
	}); err != nil {
		return err
	}

	routes, err := routeconf.ParseFile(c.RoutesFile)
	if err != nil {
		return fmt.Errorf("load routes: %w", err)
	}

	log.Infof("loaded %d routes from %s", len(routes), c.RoutesFile)

	mesh, err := pipeline.LoadMesh(c.PipelinesDir)
	if err != nil {
		return fmt.Errorf("load pipelines: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pg.NewPool(ctx, pg.Options{
		URL:            c.Database.URL,
		MaxConns:       c.Database.PoolSize,
		ConnectTimeout: time.Duration(c.Database.ConnectTimeout),
	})
	if err != nil {
		return err
	}

	defer pool.Close()

	var keystore *secrets.Keystore
	if c.HMAC.Enabled && c.HMAC.KeysFile != "" {
		if keystore, err = secrets.LoadKeystore(c.HMAC.KeysFile); err != nil {
			return fmt.Errorf("load hmac keys: %w", err)
		}
	}

	m := metrics.New()
	handler := dispatch.New(dispatch.Options{
		Table:         routing.New(routes),
		DB:            pool,
		Mesh:          mesh,
		NodeJs:        nodejs.New(nodejs.Options{Command: c.NodeJs.Command}),
		Keystore:      keystore,
		HMACEnabled:   c.HMAC.Enabled,
		TrustLoopback: c.HMAC.TrustLoopback,
		MaxBodyBytes:  c.MaxBodyBytes,
		ActionTimeout: time.Duration(c.ActionTimeout),
		Server:        "Trombone/" + Version,
		Ping:          c.Ping,
		Metrics:       m,
	})

	if c.MetricsAddress != "" {
		go serveMetrics(c.MetricsAddress, m)
	}

	server := &http.Server{Addr: c.Address, Handler: handler}
	errs := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", c.Address)
		errs <- server.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func serveMetrics(address string, m *metrics.Metrics) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	if err := http.ListenAndServe(address, mux); err != nil {
		log.Errorf("metrics listener: %v", err)
	}
}
