// Copyright 2021 PingCAP, Inc. Licensed under Apache-2.0.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	tcontext "github.com/pingcap/seed-dumpling/v4/context"
	"github.com/pingcap/seed-dumpling/v4/export"
	"github.com/pingcap/seed-dumpling/v4/log"
)

func main() {
	pflag.Usage = func() {
		fmt.Fprint(os.Stderr, "seed-dumpling dumps database records into Rails seed code\n\nUsage:\n  seed-dumpling [flags]\n\nFlags:\n")
		pflag.PrintDefaults()
	}
	conf := export.DefaultConfig()
	conf.File = export.DefaultSeedsFile
	conf.DefineFlags(pflag.CommandLine)
	pflag.Parse()

	if err := parseConfig(conf); err != nil {
		fmt.Printf("\nparse arguments failed: %+v\n", err)
		os.Exit(2)
	}

	if _, err := log.InitAppLogger(&log.Config{
		Level:  conf.LogLevel,
		File:   conf.LogFile,
		Format: conf.LogFormat,
	}); err != nil {
		fmt.Printf("\ninitialize logger failed: %s\n", err.Error())
		os.Exit(1)
	}
	logger := log.With(zap.String("dump-id", uuid.NewString()))

	if err := run(logger, conf); err != nil {
		logger.Error("dump failed", zap.Error(err))
		os.Exit(1)
	}
}

// parseConfig layers the config file, the environment and the command line
// flags over the defaults, in this order.
func parseConfig(conf *export.Config) error {
	configFile, err := pflag.CommandLine.GetString(export.FlagConfig)
	if err != nil {
		return err
	}
	if configFile != "" {
		if err := conf.LoadFile(configFile); err != nil {
			return err
		}
	}
	if err := conf.ParseFromEnv(os.Environ()); err != nil {
		return err
	}
	return conf.ParseFromFlags(pflag.CommandLine)
}

func run(logger log.Logger, conf *export.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	registry.MustRegister(prometheus.NewGoCollector())
	export.RegisterMetrics(registry)

	db, err := export.OpenDB(conf)
	if err != nil {
		return err
	}
	defer db.Close()

	g, gctx := errgroup.WithContext(ctx)
	var server *http.Server
	if conf.StatusAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		server = &http.Server{Addr: conf.StatusAddr, Handler: mux}
		g.Go(func() error {
			logger.Info("start status server", zap.String("address", conf.StatusAddr))
			if err := server.ListenAndServe(); err != http.ErrServerClosed {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		if server != nil {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = server.Shutdown(shutdownCtx)
			}()
		}
		tctx := tcontext.NewContext(gctx, logger)
		out, err := export.DumpModels(tctx, db, conf)
		if err != nil {
			return err
		}
		switch {
		case out == nil:
			logger.Info("no records found, nothing written")
		case conf.File == "":
			fmt.Print(out.Text)
		default:
			logger.Info("seeds written",
				zap.String("file", conf.File),
				zap.Int("models", out.Models),
				zap.Int("records", out.Records))
		}
		return nil
	})
	return g.Wait()
}
