package main

import (
	"context"
	"os"

	"kefctl/internal/transports/cli"
	"kefctl/pkg/logger"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

func main() {
	v := buildVersion()
	lg := logger.New(logger.Options{Format: "text", Version: v, Output: os.Stderr})

	root := cli.New(v)
	if err := root.ExecuteContext(context.Background()); err != nil {
		lg.Error("command failed", "err", err)
		os.Exit(1)
	}
}

func buildVersion() string {
	v := version
	if commit != "" {
		v += " (" + commit + ")"
	}
	if date != "" {
		v += " " + date
	}
	return v
}
