/*
Chartview is a single page dashboard charting the go runtime's telemetry in realtime.
The page's views render server side and are pushed to the browser over a websocket;
charts are drawn by chart behaviors attached to a host view, which wait for the chart
library to load, keep their data tables filled from the sampled telemetry and redraw
after every render.
*/

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chartview/chart_lib"
	"chartview/config"
	"chartview/server"
	"chartview/server/root_view"
	"chartview/telemetry"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var (
	dbg        = flag.Bool("debug", false, "debug mode")
	configPath = flag.String("config", "./config.yaml", "The dashboard config; empty for defaults")
	host       = flag.String("host", "", "The host ip, overriding the config")
	port       = flag.String("port", "", "The host port, overriding the config")
	assetsHost = flag.String("assets", chart_lib.DefaultAssetsHost, "Where the page loads echarts.min.js from")
	loadDelay  = flag.Duration("load-delay", 0, "How long the chart library takes to load")
)

func newLogger(debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.DateTime}
	return zerolog.New(output).Level(level).With().Timestamp().Logger()
}

// loadConfig reads the config file, if any, and applies the command line overrides.
func loadConfig(path, host, port string) (cfg *config.AppConfig, err error) {
	if path == "" {
		cfg = config.Default()
	} else if cfg, err = config.FromYaml(path); err != nil {
		return nil, err
	}

	if host != "" {
		cfg.Server.Host = host
	}
	if port != "" {
		cfg.Server.Port = port
	}
	return cfg, nil
}

func runApp(log zerolog.Logger) (err error) {
	var cfg *config.AppConfig
	if cfg, err = loadConfig(*configPath, *host, *port); err != nil {
		return
	}

	appCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	group, groupCtx := errgroup.WithContext(appCtx)

	lib := chart_lib.NewLibrary(
		log.With().Str("component", "chart_lib").Logger(),
		chart_lib.WithAssetsHost(*assetsHost))
	sampler := telemetry.NewSampler(
		cfg.Telemetry.Interval,
		cfg.Telemetry.Window,
		telemetry.WithLogger(log.With().Str("component", "telemetry").Logger()))

	var rootView *root_view.RootView
	if rootView, err = root_view.NewRootView(
		groupCtx,
		sampler.Run(groupCtx),
		lib,
		cfg.Charts,
		*assetsHost,
		log.With().Str("component", "views").Logger(),
	); err != nil {
		return
	}

	srv := server.NewServer(cfg.Server.Addr(), rootView, sampler, lib, log)
	group.Go(func() error {
		return srv.Serve(groupCtx)
	})
	// The library loads independently of the views; charts appear once it has.
	group.Go(func() error {
		select {
		case <-time.After(*loadDelay):
			lib.Load()
		case <-groupCtx.Done():
		}
		return nil
	})

	return group.Wait()
}

func main() {
	flag.Parse()
	log := newLogger(*dbg)
	if err := runApp(log); err != nil {
		log.Fatal().Err(err).Msg("chartview stopped")
	}
}
