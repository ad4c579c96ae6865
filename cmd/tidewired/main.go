// Copyright 2025 The tidewire Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command tidewired runs the tidewire transport as a standalone server:
// an HTTP/1.x (or AJP/1.3) listener dispatching to a small demo
// HttpHandler registry, with Prometheus metrics and pprof exposed on a
// separate admin listener. This is the only place configuration, CLI
// flags and process lifecycle live; the protocol/transport core knows
// nothing about any of it.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/tidewire/tidewire/common"
	"github.com/tidewire/tidewire/confengine"
	"github.com/tidewire/tidewire/filter"
	"github.com/tidewire/tidewire/internal/rescue"
	"github.com/tidewire/tidewire/internal/sigs"
	"github.com/tidewire/tidewire/logger"
	"github.com/tidewire/tidewire/metrics"
	"github.com/tidewire/tidewire/protocol/ajp"
	"github.com/tidewire/tidewire/protocol/http1"
	"github.com/tidewire/tidewire/protocol/http1/httpenc"
	"github.com/tidewire/tidewire/transport"
)

var (
	configPath string
	listenAddr string
	adminAddr  string
)

var rootCmd = &cobra.Command{
	Use:     "tidewired",
	Short:   "Run the tidewire transport as a standalone server",
	Example: "# tidewired --config tidewire.yaml --listen :8080",
	RunE:    run,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "Configuration file path (optional, overrides defaults)")
	rootCmd.Flags().StringVar(&listenAddr, "listen", "", "Address to accept client connections on, overrides config")
	rootCmd.Flags().StringVar(&adminAddr, "admin", ":9090", "Address to serve /metrics and /debug/pprof on")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg := defaultServerConfig()
	if configPath != "" {
		loaded, err := confengine.LoadConfigPath(configPath)
		if err != nil {
			return fmt.Errorf("tidewired: load config: %w", err)
		}
		if err := loaded.Unpack(&cfg); err != nil {
			return fmt.Errorf("tidewired: parse config: %w", err)
		}
	}
	if listenAddr != "" {
		cfg.Listen = listenAddr
	}

	logger.SetOptions(cfg.Logger)

	undo, err := maxprocs.Set(maxprocs.Logger(logger.Infof))
	if err != nil {
		logger.Warnf("automaxprocs: %v", err)
	} else {
		defer undo()
	}

	reg := prometheus.NewRegistry()
	promAdapter := metrics.NewPrometheus(reg)
	rescue.PanicCounter = promAdapter.PanicCounter(reg)

	registry := newMuxRegistry()
	registry.Register("", "/healthz", funcHandler(healthzHandler))
	registry.Register("", "/echo", funcHandler(echoHandler))
	registry.Build()

	encoding := httpenc.NewRegistry(httpenc.NewGzip(cfg.CompressionLevel))

	opt := transport.Options{
		NewChain:        chainFactory(cfg, registry, encoding),
		Metrics:         promAdapter,
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteQueueDepth: cfg.WriteQueueDepth,
		ReactorShards:   cfg.ReactorShards,
		IdleTimeout:     cfg.keepAliveTimeout(),
	}
	tr := transport.New(opt)

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return fmt.Errorf("tidewired: listen %s: %w", cfg.Listen, err)
	}
	logger.Infof("serving %s on %s", cfg.Proto, cfg.Listen)

	serveErr := make(chan error, 1)
	go func() {
		defer rescue.HandleCrash()
		serveErr <- tr.Serve(ln)
	}()

	admin := newAdminServer(adminAddr, reg)
	go func() {
		defer rescue.HandleCrash()
		if err := admin.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("admin server: %v", err)
		}
	}()

	for {
		select {
		case err := <-serveErr:
			if err != nil {
				logger.Errorf("transport serve: %v", err)
			}
			return shutdown(tr, admin)
		case <-sigs.Terminate():
			return shutdown(tr, admin)
		case <-sigs.Reload():
			logger.Infof("reload requested: tidewired reloads by restart, ignoring")
		}
	}
}

// chainFactory returns a NewChain closure building one fresh filter
// chain per connection, terminated by the protocol codec cfg selects.
// A fresh Decoder/Encoder pair per connection is required: both keep
// state across reads for that connection alone.
func chainFactory(cfg serverConfig, registry *muxRegistry, encoding *httpenc.Registry) func() *filter.Chain {
	return func() *filter.Chain {
		switch cfg.Proto {
		case "ajp":
			return filter.NewChain(ajp.NewCodecFilter(registry, encoding))
		default:
			return filter.NewChain(http1.NewCodecFilter(cfg.httpLimits(), registry, encoding))
		}
	}
}

func newAdminServer(addr string, reg *prometheus.Registry) *http.Server {
	mr := mux.NewRouter()
	mr.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mr.HandleFunc("/debug/pprof/", pprof.Index)
	mr.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mr.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mr.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mr.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return &http.Server{Addr: addr, Handler: mr}
}

func shutdown(tr *transport.Transport, admin *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = admin.Shutdown(ctx)
	return tr.Shutdown(ctx)
}

func healthzHandler(req *http1.HttpRequestPacket, body []byte) (*http1.HttpResponsePacket, []byte) {
	resp := http1.NewResponse(200, "OK")
	resp.Header.Set("Content-Type", "text/plain; charset=utf-8")
	return resp, []byte(fmt.Sprintf("ok uptime=%ds\n", time.Now().Unix()-common.Started()))
}

func echoHandler(req *http1.HttpRequestPacket, body []byte) (*http1.HttpResponsePacket, []byte) {
	resp := http1.NewResponse(200, "OK")
	resp.Header.Set("Content-Type", "text/plain; charset=utf-8")
	return resp, body
}
