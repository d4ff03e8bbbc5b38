package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/yungbote/companion-client/internal/platform/envutil"
	"github.com/yungbote/companion-client/internal/platform/logger"
	"github.com/yungbote/companion-client/internal/sandbox"
)

func main() {
	issueFor := flag.String("issue-token", "", "print a bearer token for this owner id and exit")
	flag.Parse()

	log, err := logger.New(envutil.String("LOG_MODE", "development"))
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg := sandbox.ConfigFromEnv()

	if *issueFor != "" {
		if cfg.JWTSecret == "" {
			log.Fatal("SANDBOX_JWT_SECRET must be set to issue tokens")
		}
		token, err := sandbox.NewTokens(cfg.JWTSecret, cfg.TokenTTL).Issue(*issueFor)
		if err != nil {
			log.Fatal("issue token failed", "error", err)
		}
		fmt.Println(token)
		return
	}

	db, err := sandbox.OpenDB(cfg, log)
	if err != nil {
		log.Fatal("database init failed", "error", err)
	}
	if cfg.JWTSecret == "" {
		log.Warn("SANDBOX_JWT_SECRET not set; bearer auth disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := sandbox.NewServer(db, cfg, log)
	if err := srv.Run(ctx); err != nil {
		log.Error("sandbox stopped", "error", err)
		os.Exit(1)
	}
	log.Info("sandbox stopped")
}
