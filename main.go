package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"docassistant/controllers"
	"docassistant/services"
	"docassistant/stubserver"
	"docassistant/ui/console"
	"docassistant/ui/discord"
	"docassistant/ui/tui"
	"docassistant/utils"

	"go.uber.org/zap"
)

func main() {
	utils.LoadEnv()

	cfg, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	logger := utils.NewLogger(utils.LoggerOptions{
		FilePath: cfg.LogFile,
		Level:    cfg.LogLevel,
		Console:  utils.StderrIfTerminalFree(cfg.UI),
	})
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("exiting with error", zap.Error(err))
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func parseFlags(fs *flag.FlagSet, args []string) (utils.Config, error) {
	cfg := utils.DefaultConfig()

	fs.StringVar(&cfg.BackendURL, "backend", cfg.BackendURL, "Base URL of the document assistant backend")
	fs.DurationVar(&cfg.RequestTimeout, "timeout", cfg.RequestTimeout, "Per-request timeout (0 waits indefinitely)")
	fs.StringVar(&cfg.UI, "ui", cfg.UI, "Front-end: tui, console or discord")
	fs.BoolVar(&cfg.Demo, "demo", cfg.Demo, "Start the built-in stub backend and connect to it")
	fs.StringVar(&cfg.DemoAddr, "demo-addr", cfg.DemoAddr, "Listen address of the stub backend in -demo mode")
	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Log file (rotated); empty disables file logging")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn or error")

	if err := fs.Parse(args); err != nil {
		return utils.Config{}, err
	}
	return cfg, nil
}

func run(ctx context.Context, cfg utils.Config, logger *zap.Logger) error {
	if cfg.Demo {
		baseURL, shutdown, err := startDemoBackend(cfg.DemoAddr, logger)
		if err != nil {
			return err
		}
		defer shutdown()
		cfg.BackendURL = baseURL
	}

	backend := services.NewBackendClient(cfg.BackendURL, cfg.RequestTimeout, logger)
	logger.Info("document assistant starting",
		zap.String("ui", cfg.UI),
		zap.Any("backend", backend.GetStatus()))

	checkCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	if err := backend.Health(checkCtx); err != nil {
		logger.Warn("backend health check failed; continuing", zap.Error(err))
	}
	cancel()

	switch cfg.UI {
	case utils.UIDiscord:
		return runDiscord(ctx, cfg, backend, logger)
	case utils.UIConsole:
		ctrl := controllers.NewSessionController(backend, logger)
		return console.New(ctrl, os.Stdin, os.Stdout, logger).Run(ctx)
	default:
		ctrl := controllers.NewSessionController(backend, logger)
		defer ctrl.Wait()
		return tui.Run(ctx, ctrl, logger)
	}
}

func runDiscord(ctx context.Context, cfg utils.Config, backend services.Backend, logger *zap.Logger) error {
	bot, err := discord.NewBot(cfg.DiscordToken, cfg.DiscordCommandPrefix, backend, logger)
	if err != nil {
		return err
	}
	if err := bot.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info("shutting down discord bot")
	return bot.Stop()
}

// startDemoBackend serves the stub backend in-process and returns its base URL
func startDemoBackend(addr string, logger *zap.Logger) (string, func(), error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, fmt.Errorf("demo backend: %w", err)
	}

	srv := stubserver.NewServer(addr, logger)
	go func() {
		if err := srv.Serve(l); err != nil && !errors.Is(err, net.ErrClosed) {
			logger.Error("demo backend stopped", zap.Error(err))
		}
	}()

	shutdown := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("demo backend shutdown", zap.Error(err))
		}
	}
	return "http://" + l.Addr().String(), shutdown, nil
}
