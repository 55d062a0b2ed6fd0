// Package main starts the courtroom service and handles termination.
//
// The process owns the full dispute-session lifecycle: serialized
// session state, the settlement sub-protocol, verdict generation, and
// the HTTP/WebSocket surface participants connect to.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	courtroomcmd "github.com/adjourn-app/courtroom/internal/cmd/courtroom"
)

func main() {
	cfg, err := courtroomcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[COURTROOM] ")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := courtroomcmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
