package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/timmy/tubebench/internal/metrics"
)

func newWorkerCommand(ctx *commandContext) *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Consume step messages from RabbitMQ until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			reg := prometheus.NewRegistry()
			ctx.registry = reg

			a, err := ctx.ensureApp(runCtx)
			if err != nil {
				return err
			}
			log := ctx.logger()

			pipe, err := a.StartPipeline(runCtx, "rabbitmq", true)
			if err != nil {
				return err
			}

			var srv *http.Server
			if metricsAddr != "" {
				srv = &http.Server{Addr: metricsAddr, Handler: metrics.Handler(reg)}
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						log.WithError(err).Error("Metrics server stopped")
					}
				}()
			}

			log.WithField("queue", a.Config.Queue.QueueName).Info("Worker started")
			<-runCtx.Done()
			log.Info("Received shutdown signal, stopping worker...")

			if srv != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}
			return pipe.Close()
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (for example :9090)")
	return cmd
}
