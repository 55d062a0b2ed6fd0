// Package main generates the EdDSA key pair for courtroom access
// tokens and, optionally, a development token for local testing.
package main

import (
	"flag"
	"os"

	"github.com/adjourn-app/courtroom/internal/platform/config"
	"github.com/adjourn-app/courtroom/internal/tools/tokenkey"
)

func main() {
	cfg, err := tokenkey.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	if err := tokenkey.Run(cfg, os.Stdout, nil); err != nil {
		config.Exitf("generate key: %v", err)
	}
}
