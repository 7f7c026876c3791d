// Package main is the entry point for the aadata command line tool.
package main

import (
	"context"
	"os"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ocha-dap/aadatakit/cmd/aadata/app"
	"github.com/ocha-dap/aadatakit/internal/config"
)

// getLogLevel parses the AADATA_LOG_LEVEL environment variable.
// Defaults to info if unset or invalid.
func getLogLevel() zapcore.Level {
	v := viper.New()
	v.SetEnvPrefix(config.EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	switch strings.ToLower(v.GetString("LOG_LEVEL")) {
	case "debug":
		return zapcore.DebugLevel
	case "info", "":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func main() {
	// Log to stderr so stdout stays clean for commands that output data
	// (e.g. process writing CSV to stdout).
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(getLogLevel())
	zapCfg.OutputPaths = []string{"stderr"}

	zapLogger, err := zapCfg.Build()
	if err != nil {
		os.Exit(1)
	}
	defer func() {
		_ = zapLogger.Sync()
	}()

	ctx := logr.NewContext(context.Background(), zapr.NewLogger(zapLogger))

	if err := app.NewRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
