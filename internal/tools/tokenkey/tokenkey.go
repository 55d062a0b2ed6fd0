// Package tokenkey generates the EdDSA key pair used for courtroom
// access tokens, and optionally mints a development token for a user.
package tokenkey

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/adjourn-app/courtroom/internal/courtroom/app"
	"github.com/adjourn-app/courtroom/internal/platform/id"
)

// Config holds configuration for token key generation.
type Config struct {
	Issuer   string
	Audience string
	UserID   string
	TTL      time.Duration
}

// ParseConfig parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Config{
		Issuer:   "adjourn-auth",
		Audience: "courtroom",
		TTL:      time.Hour,
	}
	fs.StringVar(&cfg.Issuer, "issuer", cfg.Issuer, "token issuer")
	fs.StringVar(&cfg.Audience, "audience", cfg.Audience, "token audience")
	fs.StringVar(&cfg.UserID, "user", cfg.UserID, "also mint a development token for this user id")
	fs.DurationVar(&cfg.TTL, "ttl", cfg.TTL, "development token lifetime")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run generates the key pair and writes exports, plus a development
// token when a user id was given.
func Run(cfg Config, out io.Writer, reader io.Reader) error {
	if out == nil {
		return errors.New("output is required")
	}
	if reader == nil {
		reader = rand.Reader
	}

	publicKey, privateKey, err := ed25519.GenerateKey(reader)
	if err != nil {
		return fmt.Errorf("generate token key: %w", err)
	}
	if _, err := fmt.Fprintf(out, "export ADJOURN_TOKEN_PRIVATE_KEY=%s\n", base64.StdEncoding.EncodeToString(privateKey)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(out, "export ADJOURN_TOKEN_PUBLIC_KEY=%s\n", base64.StdEncoding.EncodeToString(publicKey)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(out, "export ADJOURN_TOKEN_ISSUER=%s\n", cfg.Issuer); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(out, "export ADJOURN_TOKEN_AUDIENCE=%s\n", cfg.Audience); err != nil {
		return err
	}

	if cfg.UserID == "" {
		return nil
	}
	jwtID, err := id.NewID()
	if err != nil {
		return fmt.Errorf("generate token id: %w", err)
	}
	token, err := app.SignAccessToken(privateKey, app.TokenConfig{
		Issuer:   cfg.Issuer,
		Audience: cfg.Audience,
		Key:      publicKey,
	}, cfg.UserID, cfg.TTL, jwtID)
	if err != nil {
		return fmt.Errorf("mint development token: %w", err)
	}
	if _, err := fmt.Fprintf(out, "token=%s\n", token); err != nil {
		return err
	}
	return nil
}
