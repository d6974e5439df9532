// internal/storage/memory/export.go
package memory

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/invopop/jsonschema"
	"github.com/reacture/engine/internal/geo"
	"github.com/reacture/engine/internal/npy"
	"github.com/reacture/engine/pkg/core"
)

// Dataset file names, before the optional .gz suffix.
const (
	MetadataFile   = "metadata.json"
	LogFile        = "session_log.jsonl"
	FramesFile     = "frames.npy"
	TimestampsFile = "timestamps.npy"
	ReadmeFile     = "README.md"
	SchemaFile     = "schema.json"
	MLReadyFile    = "ml_ready.json"

	gzipSuffix = ".gz"
)

// Metadata is the content of metadata.json.
type Metadata struct {
	SessionID       string               `json:"session_id"`
	StartTime       time.Time            `json:"start_time"`
	EndTime         time.Time            `json:"end_time"`
	DurationS       float64              `json:"duration_s"`
	SamplingRateHz  int                  `json:"sampling_rate_hz"`
	PlayerID        string               `json:"player_id"`
	PlayerName      string               `json:"player_name"`
	RobotModel      string               `json:"robot_model"`
	Environment     string               `json:"environment"`
	EnvironmentName string               `json:"environment_name"`
	Seed            int64                `json:"seed"`
	GameResult      GameResult           `json:"game_result"`
	DataStats       DataStats            `json:"data_stats"`
	Trajectory      TrajectoryInfo       `json:"trajectory"`
	Victims         []core.VictimOutcome `json:"victims"`
	Files           []FileInfo           `json:"files"`
}

// GameResult is the outcome block of metadata.json.
type GameResult struct {
	VictimsTotal     int     `json:"victims_total"`
	VictimsSaved     int     `json:"victims_saved"`
	VictimsDied      int     `json:"victims_died"`
	FinalScore       int     `json:"final_score"`
	BaseScore        int     `json:"base_score"`
	TimeBonus        int     `json:"time_bonus"`
	HealthBonus      int     `json:"health_bonus"`
	FuelBonus        int     `json:"fuel_bonus"`
	RubbleDestroyed  int     `json:"rubble_destroyed"`
	FinalHealth      float64 `json:"final_health"`
	FinalFuel        float64 `json:"final_fuel"`
	CompletionStatus string  `json:"completion_status"`
	Reason           string  `json:"reason"`
}

// DataStats counts what the dataset holds.
type DataStats struct {
	TotalSamples   int   `json:"total_samples"`
	TotalFrames    int   `json:"total_frames"`
	ActionsLogged  int   `json:"actions_logged"`
	DecisionsTotal int   `json:"decisions_total"`
	FrameShape     []int `json:"frame_shape,omitempty"`
}

// TrajectoryInfo is the robot ground track.
type TrajectoryInfo struct {
	Points    int          `json:"points"`
	DistanceM float64      `json:"distance_m"`
	WKT       string       `json:"wkt"`
	Origin    [2]float64   `json:"origin_lonlat"`
	LonLat    [][2]float64 `json:"lonlat,omitempty"`
}

// FileInfo is one file of the dataset directory.
type FileInfo struct {
	Name  string `json:"name"`
	Bytes int64  `json:"bytes"`
	Size  string `json:"size"`
}

// MLDataset is the content of ml_ready.json.
type MLDataset struct {
	Metadata MLMetadata  `json:"metadata"`
	Data     []MLSession `json:"data"`
}

// MLMetadata describes the features and labels of an ML dataset.
type MLMetadata struct {
	Format       string    `json:"format"`
	ExportedAt   time.Time `json:"exported_at"`
	TotalSamples int       `json:"total_samples"`
	Features     []string  `json:"features"`
	Labels       []string  `json:"labels"`
}

// MLSession is one session flattened into feature sequences and labels.
type MLSession struct {
	SessionID   string `json:"session_id"`
	PlayerID    string `json:"player_id"`
	Environment string `json:"environment"`

	Trajectory []MLPoint  `json:"trajectory"`
	Actions    []MLAction `json:"actions"`
	Sensors    []MLSensor `json:"sensors"`

	Score        int `json:"score"`
	VictimsSaved int `json:"victims_saved"`
}

// MLPoint is one trajectory step.
type MLPoint struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
	Yaw   float64 `json:"yaw"`
	Pitch float64 `json:"pitch"`
	T     int64   `json:"t"`
}

// MLAction is one decision attempt.
type MLAction struct {
	Type    string  `json:"type"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Z       float64 `json:"z"`
	T       int64   `json:"t"`
	Success bool    `json:"success"`
}

// MLSensor is one sensor reading at the sampling rate.
type MLSensor struct {
	T         int64   `json:"t"`
	AccelX    float64 `json:"accel_x"`
	AccelY    float64 `json:"accel_y"`
	AccelZ    float64 `json:"accel_z"`
	Battery   float64 `json:"battery"`
	Damage    float64 `json:"damage"`
	Proximity float64 `json:"proximity"`
}

// NewMLDataset wraps sessions with the ml-ready header.
func NewMLDataset(sessions []MLSession) MLDataset {
	if sessions == nil {
		sessions = []MLSession{}
	}
	return MLDataset{
		Metadata: MLMetadata{
			Format:       "ml-ready",
			ExportedAt:   time.Now().UTC(),
			TotalSamples: len(sessions),
			Features:     []string{"trajectory", "actions", "sensors"},
			Labels:       []string{"score", "victims_saved"},
		},
		Data: sessions,
	}
}

// export writes the dataset directory. Called with the lock held.
func (b *Backend) export() error {
	dir := filepath.Join(b.cfg.OutputDir, b.info.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create dataset directory: %w", err)
	}

	samples := b.sortedSamples()
	meta := b.buildMetadata(samples)
	compress := b.cfg.CompressOutput

	var files []string
	add := func(name string, err error) error {
		if err != nil {
			return err
		}
		files = append(files, name)
		return nil
	}

	if err := add(writeFile(dir, LogFile, compress, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		for i := range samples {
			if err := enc.Encode(&samples[i]); err != nil {
				return err
			}
		}
		return nil
	})); err != nil {
		return err
	}

	for _, arr := range []struct {
		name  string
		write func(io.Writer, []core.FrameRecord) error
	}{
		{FramesFile, npy.WriteFrames},
		{TimestampsFile, npy.WriteTimestamps},
	} {
		if len(b.frames) == 0 {
			b.logger.Debug("No frames captured, skipping", "file", arr.name)
			break
		}
		if err := add(writeFile(dir, arr.name, false, func(w io.Writer) error {
			return arr.write(w, b.frames)
		})); err != nil {
			return err
		}
	}

	if err := add(writeFile(dir, SchemaFile, compress, func(w io.Writer) error {
		return writeIndented(w, jsonschema.Reflect(&core.TelemetrySample{}))
	})); err != nil {
		return err
	}

	if err := add(writeFile(dir, MLReadyFile, compress, func(w io.Writer) error {
		return writeIndented(w, NewMLDataset([]MLSession{b.buildMLSession(samples)}))
	})); err != nil {
		return err
	}

	if err := add(writeFile(dir, ReadmeFile, false, func(w io.Writer) error {
		return writeReadme(w, meta)
	})); err != nil {
		return err
	}

	for _, name := range files {
		st, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", name, err)
		}
		meta.Files = append(meta.Files, FileInfo{
			Name:  name,
			Bytes: st.Size(),
			Size:  humanize.Bytes(uint64(st.Size())),
		})
	}

	if _, err := writeFile(dir, MetadataFile, compress, func(w io.Writer) error {
		return writeIndented(w, meta)
	}); err != nil {
		return err
	}

	b.lastExportPath = dir
	b.lastExportMeta = &meta
	b.logger.Info("Dataset exported",
		"path", dir,
		"samples", meta.DataStats.TotalSamples,
		"frames", meta.DataStats.TotalFrames,
		"distance_m", meta.Trajectory.DistanceM)
	return nil
}

func (b *Backend) buildMetadata(samples []core.TelemetrySample) Metadata {
	info, res := b.info, b.result

	actions := 0
	for _, s := range samples {
		if s.Type == core.SamplePlayerAction {
			actions++
		}
	}

	traj := geo.TrajectoryFromSamples(samples)
	tinfo := TrajectoryInfo{
		Points:    len(traj.Points),
		DistanceM: traj.Length(),
		WKT:       traj.WKT(),
	}
	if env, ok := core.LookupEnvironment(info.Environment); ok {
		ref := geo.ForEnvironment(env)
		tinfo.Origin = [2]float64{env.OriginLongitude, env.OriginLatitude}
		tinfo.LonLat = traj.LonLat(ref)
	}

	stats := DataStats{
		TotalSamples:   len(samples),
		TotalFrames:    len(b.frames),
		ActionsLogged:  actions,
		DecisionsTotal: len(b.decisions),
	}
	if len(b.frames) > 0 {
		f := b.frames[0]
		stats.FrameShape = []int{len(b.frames), f.Height, f.Width, 3}
	}

	victims := res.Victims
	if victims == nil {
		victims = []core.VictimOutcome{}
	}

	return Metadata{
		SessionID:       info.ID,
		StartTime:       info.StartTime,
		EndTime:         res.EndTime,
		DurationS:       res.DurationS,
		SamplingRateHz:  core.SamplingRateHz,
		PlayerID:        info.PlayerID,
		PlayerName:      info.PlayerName,
		RobotModel:      core.RobotModel,
		Environment:     info.Environment,
		EnvironmentName: info.EnvironmentName,
		Seed:            info.Seed,
		GameResult: GameResult{
			VictimsTotal:     res.VictimsTotal,
			VictimsSaved:     res.VictimsSaved,
			VictimsDied:      res.VictimsDied,
			FinalScore:       res.Score,
			BaseScore:        res.BaseScore,
			TimeBonus:        res.TimeBonus,
			HealthBonus:      res.HealthBonus,
			FuelBonus:        res.FuelBonus,
			RubbleDestroyed:  res.RubbleDestroyed,
			FinalHealth:      res.FinalHealth,
			FinalFuel:        res.FinalFuel,
			CompletionStatus: res.CompletionStatus,
			Reason:           string(res.Reason),
		},
		DataStats:  stats,
		Trajectory: tinfo,
		Victims:    victims,
		Files:      make([]FileInfo, 0),
	}
}

func (b *Backend) buildMLSession(samples []core.TelemetrySample) MLSession {
	m := MLSession{
		SessionID:    b.info.ID,
		PlayerID:     b.info.PlayerID,
		Environment:  b.info.Environment,
		Trajectory:   make([]MLPoint, 0),
		Actions:      make([]MLAction, 0, len(b.decisions)),
		Sensors:      make([]MLSensor, 0),
		Score:        b.result.Score,
		VictimsSaved: b.result.VictimsSaved,
	}
	for _, s := range samples {
		if !s.Periodic() {
			continue
		}
		p := s.Robot.Position
		m.Trajectory = append(m.Trajectory, MLPoint{
			X: p.X, Y: p.Y, Z: p.Z,
			Yaw:   s.Camera.Yaw,
			Pitch: s.Camera.Pitch,
			T:     s.TimestampMS,
		})
		m.Sensors = append(m.Sensors, MLSensor{
			T:         s.TimestampMS,
			AccelX:    s.Accelerometer.X,
			AccelY:    s.Accelerometer.Y,
			AccelZ:    s.Accelerometer.Z,
			Battery:   s.Battery,
			Damage:    s.Damage,
			Proximity: s.Sensors.Proximity,
		})
	}
	for _, d := range b.decisions {
		m.Actions = append(m.Actions, MLAction{
			Type:    d.Type,
			X:       d.Position.X,
			Y:       d.Position.Y,
			Z:       d.Position.Z,
			T:       d.TimestampMS,
			Success: d.Success,
		})
	}
	return m
}

// writeFile creates dir/name, gzipped with a .gz suffix when compress is set,
// and returns the name actually written.
func writeFile(dir, name string, compress bool, write func(io.Writer) error) (string, error) {
	if compress {
		name += gzipSuffix
	}
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	var w io.Writer = bw
	var gz *gzip.Writer
	if compress {
		gz = gzip.NewWriter(bw)
		w = gz
	}
	if err := write(w); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return "", fmt.Errorf("failed to finish %s: %w", name, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush %s: %w", name, err)
	}
	return name, f.Close()
}

func writeIndented(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// OpenFile opens dir/name, falling back to its gzipped variant. The returned
// reader yields the uncompressed content.
func OpenFile(dir, name string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(dir, name))
	if err == nil {
		return f, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	f, err = os.Open(filepath.Join(dir, name+gzipSuffix))
	if err != nil {
		return nil, err
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to open gzip %s: %w", name, err)
	}
	return &gzipFile{Reader: gz, file: f}, nil
}

type gzipFile struct {
	*gzip.Reader
	file *os.File
}

func (g *gzipFile) Close() error {
	return errors.Join(g.Reader.Close(), g.file.Close())
}

// ReadJSON decodes dir/name, or its gzipped variant, into v.
func ReadJSON(dir, name string, v any) error {
	rc, err := OpenFile(dir, name)
	if err != nil {
		return err
	}
	defer rc.Close()
	if err := json.NewDecoder(rc).Decode(v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", name, err)
	}
	return nil
}

// ReadMetadata loads the metadata.json of a dataset directory.
func ReadMetadata(dir string) (Metadata, error) {
	var m Metadata
	err := ReadJSON(dir, MetadataFile, &m)
	return m, err
}
