// Copyright 2024 The NyxKernel Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command kerneld is the composition root: it loads a KernelConfig,
// wires every subsystem package together into one running kernel
// instance, and serves a Prometheus /metrics endpoint until it receives
// SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/nyxkernel/kernel/internal/kerneld"
	"github.com/nyxkernel/kernel/pkg/kernel/config"
)

func main() {
	configPath := flag.String("config", "", "path to a KernelConfig YAML file (optional)")
	metricsAddr := flag.String("metrics-addr", ":9090", "address the /metrics endpoint listens on")
	flag.Parse()

	log := logrus.New()
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("loading config")
	}
	if level, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		log.SetLevel(level)
	} else {
		log.WithError(err).Warn("unrecognized log level, defaulting to info")
	}

	k, err := kerneld.Build(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("building kernel")
	}
	defer k.Close()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(k.Metrics.Registry(), promhttp.HandlerOpts{}))
	server := &http.Server{Addr: *metricsAddr, Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("metrics server stopped")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithField("metrics_addr", *metricsAddr).Info("kerneld started")
	k.RunSchedulerLoop(ctx, time.Duration(cfg.Scheduler.QuantumMs)*time.Millisecond)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
	log.Info("kerneld stopped")
}
