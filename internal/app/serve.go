package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"horse.fit/glossian/internal/cli"
	"horse.fit/glossian/internal/httpapi"
	"horse.fit/glossian/internal/surface"
)

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	host := fs.String("host", "127.0.0.1", "Host interface to bind")
	port := fs.Int("port", 8787, "HTTP port")
	engine := fs.String("engine", "", "Translation engine override (google, deepl, chatgpt)")
	queueSize := fs.Int("queue-size", 256, "Maximum pending surface updates")
	readTimeout := fs.Duration("read-timeout", 10*time.Second, "HTTP read timeout")
	writeTimeout := fs.Duration("write-timeout", 60*time.Second, "HTTP write timeout")
	shutdownTimeout := fs.Duration("shutdown-timeout", 10*time.Second, "Graceful shutdown timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *port <= 0 || *port > 65535 {
		fmt.Fprintln(os.Stderr, "--port must be between 1 and 65535")
		return 2
	}
	if *queueSize < 1 {
		fmt.Fprintln(os.Stderr, "--queue-size must be >= 1")
		return 2
	}

	cfg, logger, err := loadRuntime(envLoader, *engine)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	bootCtx, bootCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer bootCancel()

	p, err := openPipeline(bootCtx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("serve failed to build pipeline")
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		<-sigCh
		cancel()
	}()

	queue := surface.NewQueue(*queueSize)
	poller := surface.NewPoller(queue, p.surface, p.dispatchers, cfg.PollInterval, logger)
	poller.Start(ctx)
	defer poller.Stop()

	srv := httpapi.NewServer(httpapi.Deps{
		Dispatchers: p.dispatchers,
		Records:     p.cache,
		Engines:     p.registry,
		Surface:     p.surface,
		Queue:       queue,
		Health:      p.pool,
	}, logger, httpapi.Options{
		Host:            *host,
		Port:            *port,
		ReadTimeout:     *readTimeout,
		WriteTimeout:    *writeTimeout,
		ShutdownTimeout: *shutdownTimeout,
	})

	if err := srv.Start(ctx); err != nil {
		logger.Error().Err(err).Str("host", *host).Int("port", *port).Msg("server failed")
		fmt.Fprintf(os.Stderr, "Server failed: %v\n", err)
		return 1
	}

	return 0
}
