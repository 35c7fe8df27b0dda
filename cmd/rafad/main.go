package main

import (
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rafa/config"
	"rafa/core/events"
	"rafa/native/lottery"
	"rafa/observability/logging"
	"rafa/rpc"
	"rafa/state"
	"rafa/storage"
)

// logEmitter mirrors engine events onto the structured log so an operator
// can follow round lifecycle without an indexer.
type logEmitter struct {
	log *slog.Logger
}

func (l logEmitter) Emit(evt events.Event) {
	payload, ok := evt.(*events.Payload)
	if !ok || payload == nil {
		return
	}
	attrs := make([]any, 0, len(payload.Attributes))
	for key, value := range payload.Attributes {
		attrs = append(attrs, slog.String(key, value))
	}
	l.log.Info(payload.Type, attrs...)
}

func main() {
	configPath := flag.String("config", "./config.toml", "path to the TOML config file")
	env := flag.String("env", "local", "deployment environment tag for log lines")
	flag.Parse()

	logger := logging.Setup("rafad", *env)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", slog.String("path", *configPath), slog.Any("error", err))
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("failed to open database", slog.String("dataDir", cfg.DataDir), slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	store := state.NewStore(db)
	engine := lottery.NewEngine(lottery.Params{
		TicketPrice:   cfg.TicketPrice,
		EpochDuration: time.Duration(cfg.EpochSeconds) * time.Second,
		ReserveFloor:  cfg.ReserveFloor,
	})
	engine.SetState(store)
	engine.SetEmitter(events.MultiEmitter{logEmitter{log: logger}})

	logger.Info("node configured",
		slog.String("network", cfg.NetworkName),
		slog.Uint64("ticketPrice", cfg.TicketPrice),
		slog.Uint64("epochSeconds", cfg.EpochSeconds),
		slog.Uint64("reserveFloor", cfg.ReserveFloor),
	)

	server := rpc.NewServer(engine, store, logger)
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(cfg.RPCAddress)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("shutting down", slog.String("signal", sig.String()))
	case err := <-errCh:
		logger.Error("rpc server stopped", slog.Any("error", err))
		db.Close()
		os.Exit(1)
	}
}
