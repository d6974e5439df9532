// Command reacture runs headless rescue sessions and serves their datasets.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/reacture/engine/internal/config"
	"github.com/reacture/engine/internal/logging"
	intOtel "github.com/reacture/engine/internal/otel"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// module defs - set at build time via ldflags
var (
	Version   = "0.0.1"
	BuildDate = "unknown"
)

const appName = "reacture"

// app is what every subcommand gets after setup.
type app struct {
	start   time.Time
	logger  *slog.Logger
	zlog    zerolog.Logger
	slogs   *logging.SlogManager
	otel    *intOtel.Provider
	context *logging.RunContext
	closers []io.Closer
}

func (rt *app) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if rt.otel != nil {
		if err := rt.otel.Shutdown(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "otel shutdown: %v\n", err)
		}
	}
	for i := len(rt.closers) - 1; i >= 0; i-- {
		_ = rt.closers[i].Close()
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: %s <command> [flags]

Commands:
  run      run one headless session driven by the autopilot
  serve    serve exported datasets and collect live streams
  version  print the version

Run '%s <command> --help' for the flags of a command.
`, appName, appName)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "run":
		err = runCommand(ctx, os.Args[2:])
	case "serve":
		err = serveCommand(ctx, os.Args[2:])
	case "version":
		fmt.Printf("%s %s (built %s)\n", appName, Version, BuildDate)
	case "-h", "--help", "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}
	if err != nil && !errors.Is(err, pflag.ErrHelp) {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// commonFlags registers the flags shared by every subcommand.
func commonFlags(fs *pflag.FlagSet) *string {
	configDir := fs.String("config-dir", ".", "directory holding "+config.FileName)
	fs.String("log-level", "info", "debug, info, warn or error")
	fs.String("logs-dir", "./reacturelogs", "directory for per-run log files")
	return configDir
}

var commonKeys = map[string]string{
	"logLevel": "log-level",
	"logsDir":  "logs-dir",
}

// setup loads the configuration, binds fs and builds the logging stack.
func setup(fs *pflag.FlagSet, configDir string, keys map[string]string) (*app, error) {
	if err := config.Load(configDir); err != nil {
		return nil, err
	}
	if err := config.BindFlags(fs, commonKeys); err != nil {
		return nil, err
	}
	if err := config.BindFlags(fs, keys); err != nil {
		return nil, err
	}

	rt := &app{
		start:   time.Now(),
		slogs:   logging.NewSlogManager(),
		context: &logging.RunContext{},
	}
	logsDir := viper.GetString("logsDir")
	level := viper.GetString("logLevel")

	logFile, err := logging.OpenLogFile(logsDir, appName, rt.start)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, logFile)

	otelCfg := config.GetOTelConfig()
	providerCfg := intOtel.Config{
		Enabled:      otelCfg.Enabled,
		ServiceName:  otelCfg.ServiceName,
		BatchTimeout: otelCfg.BatchTimeout,
		Endpoint:     otelCfg.Endpoint,
		Insecure:     otelCfg.Insecure,
		Metrics:      otelCfg.Metrics,
	}
	if otelCfg.Enabled {
		otelFile, err := logging.OpenLogFile(logsDir, appName+".otel", rt.start)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.closers = append(rt.closers, otelFile)
		providerCfg.LogWriter = otelFile
	}
	rt.otel, err = intOtel.New(providerCfg)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to set up OpenTelemetry: %w", err)
	}

	opts := logging.Options{
		Level:    level,
		File:     logFile,
		Provider: rt.otel.LoggerProvider(),
		Context:  rt.context.Attrs,
	}
	if gl := config.GetGraylogConfig(); gl.Enabled {
		w, err := logging.DialGELF(gl.Address)
		if err != nil {
			fmt.Fprintf(os.Stderr, "graylog disabled: %v\n", err)
		} else {
			rt.closers = append(rt.closers, w)
			opts.GELF = w
		}
	}
	rt.logger = rt.slogs.Setup(opts)
	slog.SetDefault(rt.logger)
	rt.zlog = logging.NewZerolog(logFile, level, appName)

	rt.logger.Info("Starting up",
		"version", Version,
		"build", BuildDate,
		"config", filepath.Join(configDir, config.FileName),
		"logFile", logFile.Name(),
		"otel", rt.otel.Enabled())
	return rt, nil
}
