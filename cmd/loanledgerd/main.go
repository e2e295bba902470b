package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"loanledger/config"
	"loanledger/core/events"
	"loanledger/native/lending"
	"loanledger/native/token"
	"loanledger/observability/logging"
	"loanledger/observability/metrics"
	"loanledger/rpc"
	"loanledger/storage"
)

const authTokenEnv = "LOANLEDGER_RPC_TOKEN"

// logEmitter forwards engine events to the structured logger and the metrics
// registry.
type logEmitter struct {
	log *slog.Logger
}

func (e logEmitter) Emit(evt events.Event) {
	payload := evt.Event()
	if payload == nil {
		return
	}
	metrics.Lending().RecordEvent(payload.Type)

	attrs := make([]any, 0, 2*len(payload.Attributes)+2)
	attrs = append(attrs, slog.String("type", payload.Type))
	for key, value := range payload.Attributes {
		attrs = append(attrs, slog.String(key, value))
	}
	e.log.Info("lending event", attrs...)
}

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("LOANLEDGER_ENV"))
	logger := logging.Setup("loanledgerd", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	engine, db, err := buildEngine(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize lending engine", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	authToken := strings.TrimSpace(os.Getenv(authTokenEnv))
	if authToken == "" {
		authToken = strings.TrimSpace(cfg.RPCAuthToken)
	}
	if authToken == "" {
		logger.Warn("rpc authentication disabled: no token configured")
	}

	rpcServer := rpc.NewServer(engine, authToken, logger)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(30 * time.Second))
	router.Handle("/rpc", rpcServer)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:              cfg.RPCAddress,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("rpc server listening", slog.String("address", cfg.RPCAddress))
		errCh <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", slog.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("shutdown failed", slog.Any("error", err))
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("rpc server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}
}

func buildEngine(cfg *config.Config, logger *slog.Logger) (*lending.Engine, storage.Database, error) {
	moduleAddr, err := parseAddress(cfg.ModuleAddress, "ModuleAddress")
	if err != nil {
		return nil, nil, err
	}
	vaultAddr, err := parseAddress(cfg.VaultAddress, "VaultAddress")
	if err != nil {
		return nil, nil, err
	}
	price, err := cfg.CollateralPrice()
	if err != nil {
		return nil, nil, err
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("open database at %s: %w", cfg.DataDir, err)
	}

	loanBook := token.NewBook(cfg.LoanAssetSymbol)
	baseBook := token.NewBook(cfg.BaseAssetSymbol)

	params := lending.Params{
		CollateralizationRatio: cfg.Lending.CollateralizationRatio,
		LiquidationRatio:       cfg.Lending.LiquidationRatio,
		InterestRatePerYear:    cfg.Lending.InterestRatePerYear,
		CollateralPrice:        price,
	}
	if err := params.Validate(); err != nil {
		db.Close()
		return nil, nil, err
	}

	engine := lending.NewEngine(moduleAddr, vaultAddr, loanBook.Bind(moduleAddr), baseBook.Bind(vaultAddr), params)
	engine.SetState(lending.NewKVState(db))
	engine.SetEmitter(logEmitter{log: logger})

	return engine, db, nil
}

func parseAddress(raw, field string) (common.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("config: %s must be a hex address, got %q", field, raw)
	}
	return common.HexToAddress(trimmed), nil
}
