// Command asynclifed is a small demonstration daemon: it wires a
// CompositeService (an HTTP admin server plus a background heartbeat
// service) together with a periodic heartbeat AsyncOperation, and serves
// Prometheus metrics and a health endpoint for both.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.tickamp.dev/asynclife"
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "asynclifed",
		Short: "Run a demonstration asynclife daemon",
		RunE:  run,
	}
	cmd.Flags().String("addr", ":8090", "admin HTTP listen address")
	cmd.Flags().Duration("heartbeat-interval", 5*time.Second, "interval between heartbeat ticks")
	_ = viper.BindPFlag("addr", cmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("heartbeat_interval", cmd.Flags().Lookup("heartbeat-interval"))
	viper.SetEnvPrefix("ASYNCLIFED")
	viper.AutomaticEnv()
	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	logger := asynclife.DefaultLogger()
	addr := viper.GetString("addr")
	interval := viper.GetDuration("heartbeat_interval")
	if interval <= 0 {
		interval = 5 * time.Second
	}

	registry := prometheus.NewRegistry()
	bridge := asynclife.NewMetricsBridge(registry)

	heartbeats := asynclife.NewVariable("heartbeat")

	admin := newAdminService(addr, registry, heartbeats)
	heartbeat := newHeartbeatService(interval, heartbeats, logger)

	bridge.ObserveService(admin)
	bridge.ObserveService(heartbeat)

	app := asynclife.CompositeServiceWithOptions("asynclifed", asynclife.ServiceOptions{Logger: logger},
		admin, heartbeat)
	bridge.ObserveService(app)

	if err := app.Start(); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	logger.Info("asynclifed started", "addr", addr, "heartbeat_interval", interval)

	app.WaitForFinished()
	if app.IsFailed() {
		return fmt.Errorf("asynclifed failed: %w", app.FailureCause())
	}
	return nil
}

// newAdminService builds the admin HTTP Service exposing /healthz and
// /metrics, in the teacher's threaded-worker idiom: an http.Server driven
// by ListenAndServe/Shutdown.
func newAdminService(addr string, registry *prometheus.Registry, heartbeats *asynclife.Variable) *asynclife.Service {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	router.HandleFunc("/healthz", func(rw http.ResponseWriter, req *http.Request) {
		if _, ok := heartbeats.Get(); !ok {
			rw.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		rw.WriteHeader(http.StatusOK)
	})
	server := &http.Server{
		Addr:    addr,
		Handler: handlers.LoggingHandler(os.Stdout, router),
	}

	return asynclife.NewThreadedService("admin-http", func(ctx context.Context, cb asynclife.ThreadCallback) error {
		errCh := make(chan error, 1)
		go func() { errCh <- server.ListenAndServe() }()
		for !cb.IsStopPending() {
			select {
			case err := <-errCh:
				if err == http.ErrServerClosed {
					return nil
				}
				return err
			case <-time.After(100 * time.Millisecond):
			}
		}
		return server.Shutdown(ctx)
	})
}

// newHeartbeatService runs a Periodic AsyncOperation forever, publishing a
// timestamp to heartbeats on every tick, wrapped in a threaded Service so
// its own lifecycle (Start/Stop) composes with the admin server's.
func newHeartbeatService(interval time.Duration, heartbeats *asynclife.Variable, logger asynclife.Logger) *asynclife.Service {
	return asynclife.NewThreadedServiceWithOptions("heartbeat",
		func(ctx context.Context, cb asynclife.ThreadCallback) error {
			op := asynclife.Periodic("heartbeat-tick", func() *asynclife.AsyncOperation {
				return asynclife.NewThreadedOperation("tick", func(ctx context.Context, tok asynclife.CancelToken) (interface{}, error) {
					heartbeats.Set(time.Now())
					return nil, nil
				})
			}, 0, interval, asynclife.Forever)

			cb.NotifyStarted()
			_ = op.Start()

			for !cb.IsStopPending() {
				if op.WaitForFinishedTimeout(100 * time.Millisecond) {
					break
				}
			}
			op.Cancel()
			op.WaitForFinished()
			return nil
		},
		asynclife.ThreadedServiceOptions{
			ServiceOptions:          asynclife.ServiceOptions{Logger: logger},
			ManualStartNotification: true,
		})
}
