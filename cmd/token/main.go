// Token mints an operator JWT for the mutating API routes.
//
//	go run ./cmd/token -subject recycler-01
//
// The signing key is read from OPERATOR_JWT_PRIVATE_KEY (PEM or path to file).
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"ewaste-tracker/backend/internal/config"
	"ewaste-tracker/backend/internal/security"
)

func main() {
	subject := flag.String("subject", "", "operator identity placed in the sub claim")
	ttl := flag.Duration("ttl", 0, "token lifetime; defaults to OPERATOR_TOKEN_TTL")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("token: config", "error", err)
		os.Exit(1)
	}
	if cfg.OperatorJWTPrivateKey == "" {
		slog.Error("token: OPERATOR_JWT_PRIVATE_KEY is required")
		os.Exit(1)
	}
	key, err := security.ParsePrivateKey(cfg.OperatorJWTPrivateKey)
	if err != nil {
		slog.Error("token: parse private key", "error", err)
		os.Exit(1)
	}
	lifetime := cfg.OperatorTokenTTL
	if *ttl > 0 {
		lifetime = *ttl
	}

	tokens := security.NewTokenProvider(key, nil, cfg.OperatorJWTIssuer, cfg.OperatorJWTAudience, lifetime)
	token, expiresAt, err := tokens.Issue(*subject)
	if err != nil {
		slog.Error("token: issue", "error", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "operator token for %q expires %s\n", *subject, expiresAt.Format(time.RFC3339))
	fmt.Println(token)
}
