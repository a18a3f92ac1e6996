package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/nerrad567/gray-logic-lightnode/internal/auth"
	"github.com/nerrad567/gray-logic-lightnode/internal/infrastructure/config"
)

// cli is the command line: the daemon by default, plus "token".
type cli struct {
	Config  string           `short:"c" help:"Configuration file path." env:"LIGHTNODE_CONFIG" default:"configs/config.yaml"`
	Version kong.VersionFlag `help:"Show version and exit."`

	Run   runCmd   `cmd:"" default:"1" help:"Run the light node daemon (default)."`
	Token tokenCmd `cmd:"" help:"Mint an operator token for the HTTP API."`
}

// runCmd starts the daemon and stops it on SIGINT or SIGTERM.
type runCmd struct{}

func (runCmd) Run(root *cli) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return run(ctx, root.Config)
}

// tokenCmd signs a token with the node's api.auth.jwt_secret.
//
//	lightnode token --subject alice --role operator --ttl 24h
type tokenCmd struct {
	Subject string        `short:"s" required:"" help:"Who the token is issued to."`
	Role    string        `short:"r" enum:"viewer,operator,owner" default:"operator" help:"Role granted: ${enum}."`
	TTL     time.Duration `name:"ttl" help:"Token lifetime. Defaults to api.auth.token_ttl_minutes."`
}

func (t *tokenCmd) Run(root *cli) error {
	return t.mint(root.Config, os.Stdout)
}

// mint loads the configuration at configPath and writes one token to out.
func (t *tokenCmd) mint(configPath string, out io.Writer) error {
	role, err := auth.ParseRole(t.Role)
	if err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.API.Auth.JWTSecret == "" {
		return fmt.Errorf("api.auth.jwt_secret is not set: %w", auth.ErrNoSecret)
	}

	lifetime := t.TTL
	if lifetime <= 0 {
		lifetime = time.Duration(cfg.API.Auth.TokenTTLMinutes) * time.Minute
	}

	tok, err := auth.GenerateToken(t.Subject, role, cfg.Device.ID, cfg.API.Auth.JWTSecret, lifetime)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, tok)
	return nil
}
