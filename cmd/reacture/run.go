package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/reacture/engine/internal/api"
	"github.com/reacture/engine/internal/config"
	"github.com/reacture/engine/internal/dispatcher"
	"github.com/reacture/engine/internal/influx"
	"github.com/reacture/engine/internal/logging"
	"github.com/reacture/engine/internal/monitor"
	"github.com/reacture/engine/internal/session"
	"github.com/reacture/engine/internal/storage"
	"github.com/reacture/engine/pkg/core"
	"github.com/spf13/pflag"
)

var runKeys = map[string]string{
	"simulation.environment":   "environment",
	"simulation.seed":          "seed",
	"simulation.duration":      "duration",
	"simulation.tickRate":      "tick-rate",
	"simulation.playerId":      "player-id",
	"simulation.playerName":    "player-name",
	"telemetry.captureFrames":  "frames",
	"storage.type":             "storage",
	"storage.memory.outputDir": "output-dir",
	"api.upload":               "upload",
}

func runCommand(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	configDir := commonFlags(fs)
	fs.String("environment", "earthquake", "earthquake, tsunami or wildfire")
	fs.Int64("seed", 0, "map seed, 0 derives one from the start time")
	fs.Duration("duration", 3*time.Minute, "simulated session length")
	fs.Int("tick-rate", 60, "simulated ticks per second")
	fs.String("player-id", "anonymous", "player id recorded in the dataset")
	fs.String("player-name", "Anonymous", "player name recorded in the dataset")
	fs.Bool("frames", true, "capture visual frames")
	fs.String("storage", "memory", "comma separated backends: memory, postgres, sqlite, websocket")
	fs.String("output-dir", "./datasets", "dataset directory of the memory backend")
	fs.Bool("upload", false, "upload the exported dataset to api.serverUrl")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rt, err := setup(fs, *configDir, runKeys)
	if err != nil {
		return err
	}
	defer rt.Close()
	return run(ctx, rt)
}

func run(ctx context.Context, rt *app) error {
	simCfg := config.GetSimulationConfig()
	telCfg := config.GetTelemetryConfig()
	logger := rt.logger

	backend, err := storage.NewBackend(config.GetStorageConfig(), storage.Options{
		DB:       config.GetDBConfig(),
		Logger:   logger,
		DBLogger: rt.zlog.With().Str("component", "database").Logger(),
	})
	if err != nil {
		return err
	}
	if err := backend.Init(); err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Error("Failed to close storage", "error", err)
		}
	}()

	opts := []session.Option{session.WithLogger(logger), session.WithRecorder(backend)}

	if influxCfg := config.GetInfluxConfig(); influxCfg.Enabled {
		backupPath := filepath.Join(config.GetString("logsDir"),
			fmt.Sprintf("influx_backup_%s.lp.gz", rt.start.Format("20060102_150405")))
		m := influx.NewManager(rt.zlog.With().Str("component", "influx").Logger(), influxCfg, backupPath)
		if err := m.Connect(ctx); err != nil {
			logger.Warn("InfluxDB unavailable, metrics disabled", "error", err)
		} else {
			opts = append(opts, session.WithRecorder(influx.NewRecorder(m)))
			defer func() {
				if err := m.Close(); err != nil {
					logger.Error("Failed to close InfluxDB", "error", err)
				}
			}()
		}
	}

	sess, err := session.New(session.Config{
		Environment:   simCfg.Environment,
		Seed:          simCfg.Seed,
		PlayerID:      simCfg.PlayerID,
		PlayerName:    simCfg.PlayerName,
		SamplePeriod:  telCfg.SamplePeriod(),
		CaptureFrames: telCfg.CaptureFrames,
		FrameSize:     telCfg.FrameSize,
	}, opts...)
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	rt.context.SetSession(sess.Info().ID)

	d, err := dispatcher.New(logging.NewDispatcherLogger(rt.zlog.With().Str("component", "dispatcher").Logger()))
	if err != nil {
		return err
	}
	defer d.Close()
	dispatcher.BindSession(d, sess)

	mon := monitor.NewService(monitor.Dependencies{
		Logger:     logger,
		StatusFile: filepath.Join(config.GetString("logsDir"), "status.json"),
		Session:    monitor.SessionStatus(d),
		Pending:    func() int { return storage.Pending(backend) },
	})
	if err := mon.Start(); err != nil {
		logger.Warn("Status monitor disabled", "error", err)
	}
	defer mon.Stop()

	wallStart := time.Now()
	res, err := drive(ctx, d, sess, simCfg, rt)
	if err != nil {
		return err
	}
	printSummary(sess, res, time.Since(wallStart))

	if config.GetAPIConfig().Upload {
		if err := upload(ctx, rt, backend); err != nil {
			logger.Error("Upload failed", "error", err)
			return err
		}
	}
	return nil
}

// drive ticks the session at the configured rate until it ends, the duration
// runs out or ctx is cancelled, then ends it.
func drive(ctx context.Context, d *dispatcher.Dispatcher, sess *session.Session, cfg config.SimulationConfig, rt *app) (core.SessionResult, error) {
	rate := max(cfg.TickRate, 1)
	step := 1 / float64(rate)
	ticks := int(math.Ceil(cfg.Duration.Seconds() * float64(rate)))
	pilot := newAutopilot()

	for i := 0; i < ticks; i++ {
		if ctx.Err() != nil {
			rt.logger.Warn("Interrupted, ending session")
			break
		}

		plan := pilot.Plan(sess.World(), sess.Elapsed())
		for _, cmd := range plan.Commands {
			out, err := d.Dispatch(dispatcher.Event{Command: cmd})
			if err != nil {
				return core.SessionResult{}, fmt.Errorf("%s failed: %w", cmd, err)
			}
			pilot.Observe(out.(dispatcher.Result))
		}

		payload, err := json.Marshal(dispatcher.TickArgs{Delta: step, Input: plan.Input})
		if err != nil {
			return core.SessionResult{}, err
		}
		out, err := d.Dispatch(dispatcher.Event{Command: dispatcher.CmdTick, Payload: payload})
		if err != nil {
			return core.SessionResult{}, fmt.Errorf("tick failed: %w", err)
		}
		rt.context.SetTick(uint64(i+1), sess.Elapsed().Milliseconds())
		if rep, ok := out.(dispatcher.Result).Value.(session.Report); ok && rep.Ended {
			break
		}
	}

	if res, ok := sess.Result(); ok {
		return res, nil
	}
	out, err := d.Dispatch(dispatcher.Event{Command: dispatcher.CmdEnd})
	if err != nil {
		return core.SessionResult{}, err
	}
	return out.(dispatcher.Result).Value.(core.SessionResult), nil
}

func printSummary(sess *session.Session, res core.SessionResult, wall time.Duration) {
	info := sess.Info()
	fmt.Printf("\nSession %s (%s)\n", info.ID, info.EnvironmentName)
	fmt.Printf("  result:    %s (%s)\n", res.CompletionStatus, res.Reason)
	fmt.Printf("  score:     %s (base %s, time %s, health %s, fuel %s)\n",
		humanize.Comma(int64(res.Score)),
		humanize.Comma(int64(res.BaseScore)),
		humanize.Comma(int64(res.TimeBonus)),
		humanize.Comma(int64(res.HealthBonus)),
		humanize.Comma(int64(res.FuelBonus)))
	fmt.Printf("  victims:   %d saved, %d died, %d total\n", res.VictimsSaved, res.VictimsDied, res.VictimsTotal)
	fmt.Printf("  robot:     %.1f%% health, %.1f%% fuel, %d rubble destroyed\n", res.FinalHealth, res.FinalFuel, res.RubbleDestroyed)
	fmt.Printf("  telemetry: %s samples, %s frames, %s decisions\n",
		humanize.Comma(int64(sess.Log().Len())),
		humanize.Comma(int64(len(sess.Frames()))),
		humanize.Comma(int64(len(sess.Decisions()))))
	fmt.Printf("  time:      %s simulated in %s\n", res.Elapsed.Round(time.Millisecond), wall.Round(time.Millisecond))
}

// upload sends the dataset exported by the memory backend to the collector.
func upload(ctx context.Context, rt *app, backend storage.Backend) error {
	up, ok := uploadable(backend)
	if !ok {
		rt.logger.Warn("Upload requested but no backend exported a dataset")
		return nil
	}
	apiCfg := config.GetAPIConfig()
	client := api.New(apiCfg.ServerURL, apiCfg.APIKey, apiCfg.Timeout)
	if err := client.Healthcheck(ctx); err != nil {
		return err
	}
	resp, err := client.Upload(ctx, up.GetExportedFilePath(), up.GetExportMetadata())
	if err != nil {
		return err
	}
	rt.logger.Info("Dataset uploaded", "session_id", resp.SessionID, "files", resp.Files, "server", apiCfg.ServerURL)
	return nil
}

func uploadable(b storage.Backend) (storage.Uploadable, bool) {
	switch b := b.(type) {
	case storage.Multi:
		return b.Uploadable()
	case storage.Uploadable:
		return b, b.GetExportedFilePath() != ""
	}
	return nil, false
}
