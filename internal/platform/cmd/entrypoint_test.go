package cmd

import (
	"context"
	"errors"
	"flag"
	"testing"
)

type entrypointTestConfig struct {
	Addr string `env:"ADJOURN_ENTRYPOINT_TEST_ADDR" envDefault:":0"`
}

func TestParseConfigFromArgs(t *testing.T) {
	t.Setenv("ADJOURN_ENTRYPOINT_TEST_ADDR", ":7070")

	var cfg entrypointTestConfig
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")

	if err := ParseConfigFromArgs(&cfg, fs, []string{"-addr", ":7071"}); err != nil {
		t.Fatalf("parse config from args: %v", err)
	}
	if cfg.Addr != ":7071" {
		t.Fatalf("expected flag override :7071, got %q", cfg.Addr)
	}
}

func TestParseConfigNilTarget(t *testing.T) {
	if err := ParseConfig[entrypointTestConfig](nil); err == nil {
		t.Fatal("expected error for nil config target")
	}
}

func TestRunWithTelemetryRequiresService(t *testing.T) {
	err := RunWithTelemetry(context.Background(), "  ", func(context.Context) error { return nil })
	if err == nil {
		t.Fatal("expected error for empty service name")
	}
}

func TestRunWithTelemetryRequiresRun(t *testing.T) {
	err := RunWithTelemetry(context.Background(), ServiceCourtroom, nil)
	if err == nil {
		t.Fatal("expected error for nil run function")
	}
}

func TestRunWithTelemetryPropagatesRunError(t *testing.T) {
	t.Setenv("ADJOURN_OTEL_ENDPOINT", "")

	wantErr := errors.New("serve failed")
	err := RunWithTelemetry(context.Background(), ServiceCourtroom, func(context.Context) error {
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected run error, got %v", err)
	}
}
