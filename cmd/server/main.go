// Server runs the e-waste tracker HTTP API and the gRPC health endpoint.
package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ewaste-tracker/backend/internal/config"
	"ewaste-tracker/backend/internal/db"
	"ewaste-tracker/backend/internal/device/repository"
	"ewaste-tracker/backend/internal/device/service"
	"ewaste-tracker/backend/internal/ledger"
	"ewaste-tracker/backend/internal/logging"
	policyengine "ewaste-tracker/backend/internal/policy/engine"
	policyrepo "ewaste-tracker/backend/internal/policy/repository"
	"ewaste-tracker/backend/internal/security"
	"ewaste-tracker/backend/internal/server"
	"ewaste-tracker/backend/internal/telemetry"
	telemetryotel "ewaste-tracker/backend/internal/telemetry/otel"
	"ewaste-tracker/backend/internal/telemetry/producer"
)

const serviceName = "ewaste-tracker"

func main() {
	if err := run(); err != nil {
		slog.Error("server: exiting", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Setup(os.Stdout, cfg.LogFormat, cfg.LogLevel)
	if err := cfg.ValidateLedger(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetryotel.NewProviders(ctx, cfg.OTLPEndpoint, serviceName, cfg.OTLPInsecure)
	if err != nil {
		return err
	}
	providers.SetGlobal()

	contract, err := ledger.Dial(ctx, cfg.LedgerRPCURL, cfg.LedgerPrivateKey, cfg.LedgerContractAddress)
	if err != nil {
		return err
	}
	defer contract.Close()
	slog.Info("ledger: connected",
		"contract", contract.ContractAddress().Hex(),
		"operator", contract.OperatorAddress().Hex())
	adapter := ledger.NewAdapter(contract, ledger.WithCountTimeout(cfg.LedgerCountTimeout))

	backend, closeBackend, err := openSnapshotBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeBackend()
	store := repository.NewStore(ctx, backend)

	policy, err := policyengine.NewOPAEvaluator(ctx, policyrepo.NewFileRepository(cfg.LifecyclePolicyFile))
	if err != nil {
		return err
	}

	emitters := []telemetry.EventEmitter{telemetryotel.NewEventEmitter(providers.LoggerProvider)}
	var closers []io.Closer
	kafkaProducer, err := producer.NewKafkaProducer(cfg.KafkaBrokersList(), cfg.LifecycleKafkaTopic)
	if err != nil {
		return err
	}
	if kafkaProducer != nil {
		slog.Info("telemetry: kafka producer enabled", "topic", cfg.LifecycleKafkaTopic)
		emitters = append(emitters, kafkaProducer)
		closers = append(closers, kafkaProducer)
	}
	if cfg.MQTTBrokerURL != "" {
		pub, err := producer.DialMQTT(cfg.MQTTBrokerURL, cfg.MQTTClientID)
		if err != nil {
			slog.Warn("telemetry: mqtt disabled", "error", err)
		} else {
			mqttProducer := producer.NewMQTTProducer(pub, cfg.MQTTTopicPrefix)
			emitters = append(emitters, mqttProducer)
			closers = append(closers, mqttProducer)
		}
	}
	events := telemetry.Fanout(emitters...)

	svc := service.NewDeviceService(adapter, store, policy, events, nil)

	deps := server.Deps{
		Devices:           svc,
		Health:            svc,
		Events:            events,
		Metrics:           providers.MetricsHandler,
		MetricsRegisterer: providers.Registry,
		FrontendURL:       cfg.FrontendURL,
	}
	if cfg.OperatorAuthEnabled() {
		pub, err := security.ParsePublicKey(cfg.OperatorJWTPublicKey)
		if err != nil {
			return err
		}
		deps.Tokens = security.NewTokenProvider(nil, pub, cfg.OperatorJWTIssuer, cfg.OperatorJWTAudience, cfg.OperatorTokenTTL)
		slog.Info("server: operator auth enabled", "alg", security.KeyAlg(pub))
	} else {
		slog.Warn("server: OPERATOR_JWT_PUBLIC_KEY not set, mutating routes are unauthenticated")
	}

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}
	grpcSrv := server.NewGRPCServer(svc)
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return err
	}

	errCh := make(chan error, 2)
	go func() {
		slog.Info("server: http listening", "addr", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		slog.Info("server: grpc listening", "addr", cfg.GRPCAddr)
		if err := grpcSrv.Serve(lis); err != nil {
			errCh <- err
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		slog.Info("server: shutting down")
	case serveErr = <-errCh:
		slog.Error("server: serve failed", "error", serveErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("server: http shutdown", "error", err)
	}
	grpcSrv.GracefulStop()

	// Let in-flight async emits finish before tearing down their sinks.
	time.Sleep(telemetry.ShutdownDrainDuration)
	for _, c := range closers {
		if err := c.Close(); err != nil {
			slog.Warn("telemetry: close producer", "error", err)
		}
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		slog.Warn("telemetry: shutdown providers", "error", err)
	}
	slog.Info("server: stopped")
	return serveErr
}

// openSnapshotBackend returns the Postgres backend when STORE_DATABASE_URL is
// set, and the JSON file backend otherwise.
func openSnapshotBackend(ctx context.Context, cfg *config.Config) (repository.SnapshotBackend, func(), error) {
	if cfg.StoreDatabaseURL == "" {
		slog.Info("store: using file snapshot", "path", cfg.StorePath)
		return repository.NewFileBackend(cfg.StorePath), func() {}, nil
	}
	conn, err := db.Open(ctx, cfg.StoreDatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	backend, err := repository.NewPostgresBackend(ctx, conn, repository.DefaultSnapshotKey)
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	slog.Info("store: using postgres snapshot")
	return backend, func() { _ = conn.Close() }, nil
}
