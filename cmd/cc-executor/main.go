/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Command cc-executor runs the WebSocket JSON-RPC process-execution
// service spec.md describes: it wires C1 (resource.Monitor), C2
// (timing.Oracle), C3 (hook.Engine), C4 (process package, instantiated
// per command), and C5 (session.Registry + protocol.Server) together and
// serves them on the WebSocket endpoint, plus an internal Prometheus
// metrics endpoint on a second listener when metrics_address is set.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nabbar/cc-executor/config"
	"github.com/nabbar/cc-executor/hook"
	"github.com/nabbar/cc-executor/logger"
	"github.com/nabbar/cc-executor/metrics"
	"github.com/nabbar/cc-executor/protocol"
	"github.com/nabbar/cc-executor/resource"
	"github.com/nabbar/cc-executor/session"
	"github.com/nabbar/cc-executor/timing"
)

var (
	flagConfig   string
	flagLogLevel string
	flagGPUCmd   string
)

func main() {
	root := &cobra.Command{
		Use:           "cc-executor",
		Short:         "WebSocket JSON-RPC subprocess execution service",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          run,
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", "", "path to the configuration file")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "log level: debug|info|warning|error")
	root.PersistentFlags().StringVar(&flagGPUCmd, "gpu-sample-command", "", "optional external command that prints a GPU load percentage")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	log := logger.New()
	log.SetLevel(parseLevel(flagLogLevel))

	cfg, err := config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("cc-executor: %w", err)
	}

	db := timing.OpenDB(log, cfg.TimingStoreURL)
	store := timing.Open(log, db, cfg.TimingHistoryCap)

	monitor := resource.New(log, flagGPUCmd)

	oracle := timing.New(log, store, monitor, timing.Options{
		BaselineMultiplier:  cfg.BaselineMultiplier,
		MultiplierMode:      timing.MultiplierMode(cfg.MultiplierMode),
		UnknownFloorSeconds: float64(cfg.UnknownFloorSeconds),
		LoadThresholdPct:    cfg.LoadThresholdPct,
		MaxSecondsCeiling:   24 * 3600,
	})

	manifest, err := hook.LoadManifest(cfg.HooksFile)
	if err != nil {
		return fmt.Errorf("cc-executor: loading hooks file: %w", err)
	}

	recent := hook.NewRecentStore(log, db, 50)
	hooks := hook.New(log, manifest, recent, cfg.GlobalHookTimeoutDuration())

	sessions := session.NewRegistry(cfg.MaxSessions)
	mx := metrics.New()

	srv := protocol.NewServer(cfg, log, sessions, hooks, oracle, mx)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mux := http.NewServeMux()
	mux.Handle("/ws", srv)
	wsServer := &http.Server{Addr: cfg.ListenAddress, Handler: mux}

	var metricsServer *http.Server
	if cfg.MetricsAddress != "" {
		mmux := http.NewServeMux()
		mmux.Handle("/metrics", mx.Handler())
		metricsServer = &http.Server{Addr: cfg.MetricsAddress, Handler: mmux}
	}

	errCh := make(chan error, 2)

	go func() {
		log.Info("listening", logger.Fields{"address": cfg.ListenAddress, "path": "/ws"})
		if err := wsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	if metricsServer != nil {
		go func() {
			log.Info("metrics listening", logger.Fields{"address": cfg.MetricsAddress})
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
		log.Info("shutdown requested", nil)
	case err := <-errCh:
		log.Error("listener failed", logger.Fields{"error": err})
	}

	// http.Server.Shutdown does not track hijacked WebSocket connections,
	// so cancel every session's active command before closing the listeners.
	sessions.Range(func(_ string, s *session.Session) bool {
		if c := s.ActiveCommand(); c != nil && c.Proc != nil {
			_ = c.Proc.Cancel()
		}
		return true
	})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = wsServer.Shutdown(shutdownCtx)
	if metricsServer != nil {
		_ = metricsServer.Shutdown(shutdownCtx)
	}

	return nil
}

func parseLevel(s string) logger.Level {
	switch s {
	case "debug":
		return logger.DebugLevel
	case "warning", "warn":
		return logger.WarnLevel
	case "error":
		return logger.ErrorLevel
	default:
		return logger.InfoLevel
	}
}
