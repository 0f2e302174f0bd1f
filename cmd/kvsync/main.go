// Package main is the entry point for the kvsync CLI application.
package main

import (
	"fmt"
	"os"

	"github.com/pulsepoint/kvsync/internal/cli"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Version information (set during build).
var (
	Version   = "dev"
	BuildDate = "unknown"
)

func main() {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cli.SetVersionInfo(Version, BuildDate)

	if err := cli.Execute(); err != nil {
		logger.Error("kvsync execution failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
