// Command token prints a signed bearer token for a user id, for local use
// against a server running with AUTH_MODE=jwt.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/fkhayef/settleup/internal/auth"
	"github.com/fkhayef/settleup/internal/config"
)

func main() {
	userID := flag.String("user", "", "user id to put in the token")
	flag.Parse()

	if *userID == "" {
		fmt.Fprintln(os.Stderr, "usage: token -user <id>")
		os.Exit(2)
	}

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if cfg.JWTSecret == "" {
		slog.Error("JWT_SECRET is not set")
		os.Exit(1)
	}

	token, err := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL).Generate(*userID)
	if err != nil {
		slog.Error("failed to sign token", "error", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
