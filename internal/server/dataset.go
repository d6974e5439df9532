package server

import (
	"cmp"
	"errors"
	"image"
	"image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/mux"
	"github.com/reacture/engine/internal/npy"
	"github.com/reacture/engine/internal/storage/memory"
	"github.com/reacture/engine/pkg/core"
)

// datasetFiles lists what may be served or uploaded, with its content type.
var datasetFiles = map[string]string{
	memory.MetadataFile:   "application/json",
	memory.LogFile:        "application/x-ndjson",
	memory.FramesFile:     "application/octet-stream",
	memory.TimestampsFile: "application/octet-stream",
	memory.ReadmeFile:     "text/markdown; charset=utf-8",
	memory.SchemaFile:     "application/schema+json",
	memory.MLReadyFile:    "application/json",
}

// allowedUpload reports whether name is a dataset file or its gzipped variant.
func allowedUpload(name string) bool {
	_, ok := datasetFiles[strings.TrimSuffix(name, ".gz")]
	return ok
}

// Summary is one entry of the dataset listing.
type Summary struct {
	SessionID    string    `json:"session_id"`
	PlayerID     string    `json:"player_id"`
	PlayerName   string    `json:"player_name"`
	Environment  string    `json:"environment"`
	StartTime    time.Time `json:"start_time"`
	DurationS    float64   `json:"duration_s"`
	FinalScore   int       `json:"final_score"`
	VictimsSaved int       `json:"victims_saved"`
	VictimsTotal int       `json:"victims_total"`
	Status       string    `json:"completion_status"`
	Samples      int       `json:"total_samples"`
	Frames       int       `json:"total_frames"`
	DistanceM    float64   `json:"distance_m"`
	Bytes        int64     `json:"bytes"`
	Size         string    `json:"size"`
}

func summarize(m memory.Metadata) Summary {
	var bytes int64
	for _, f := range m.Files {
		bytes += f.Bytes
	}
	return Summary{
		SessionID:    m.SessionID,
		PlayerID:     m.PlayerID,
		PlayerName:   m.PlayerName,
		Environment:  m.Environment,
		StartTime:    m.StartTime,
		DurationS:    m.DurationS,
		FinalScore:   m.GameResult.FinalScore,
		VictimsSaved: m.GameResult.VictimsSaved,
		VictimsTotal: m.GameResult.VictimsTotal,
		Status:       m.GameResult.CompletionStatus,
		Samples:      m.DataStats.TotalSamples,
		Frames:       m.DataStats.TotalFrames,
		DistanceM:    m.Trajectory.DistanceM,
		Bytes:        bytes,
		Size:         humanize.Bytes(uint64(bytes)),
	}
}

// datasets loads the metadata of every dataset directory, newest first.
// Directories without readable metadata are skipped.
func (s *Server) datasets() ([]memory.Metadata, error) {
	entries, err := os.ReadDir(s.cfg.DataDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []memory.Metadata
	for _, e := range entries {
		if !e.IsDir() || !idPattern.MatchString(e.Name()) {
			continue
		}
		m, err := memory.ReadMetadata(filepath.Join(s.cfg.DataDir, e.Name()))
		if err != nil {
			s.logger.Debug("Skipping dataset directory", "dir", e.Name(), "error", err)
			continue
		}
		out = append(out, m)
	}
	slices.SortFunc(out, func(a, b memory.Metadata) int {
		return b.StartTime.Compare(a.StartTime)
	})
	return out, nil
}

type listResponse struct {
	Success  bool      `json:"success"`
	Count    int       `json:"count"`
	Sessions []Summary `json:"sessions"`
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	all, err := s.datasets()
	if err != nil {
		s.logger.Error("Failed to list datasets", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list datasets")
		return
	}
	resp := listResponse{Success: true, Count: len(all), Sessions: make([]Summary, len(all))}
	for i, m := range all {
		resp.Sessions[i] = summarize(m)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Stats aggregates every stored dataset.
type Stats struct {
	Success         bool           `json:"success"`
	TotalSessions   int            `json:"total_sessions"`
	TotalSamples    int            `json:"total_samples"`
	TotalFrames     int            `json:"total_frames"`
	VictimsSaved    int            `json:"total_victims_saved"`
	VictimsTotal    int            `json:"total_victims"`
	AverageScore    float64        `json:"average_score"`
	BestScore       int            `json:"best_score"`
	TotalDistanceM  float64        `json:"total_distance_m"`
	ByEnvironment   map[string]int `json:"by_environment"`
	TotalBytes      int64          `json:"total_bytes"`
	TotalSize       string         `json:"total_size"`
	SuccessfulRuns  int            `json:"successful_sessions"`
	LatestSessionID string         `json:"latest_session_id,omitempty"`
}

func computeStats(all []memory.Metadata) Stats {
	st := Stats{Success: true, TotalSessions: len(all), ByEnvironment: map[string]int{}}
	scoreSum := 0
	for i, m := range all {
		sum := summarize(m)
		st.TotalSamples += sum.Samples
		st.TotalFrames += sum.Frames
		st.VictimsSaved += sum.VictimsSaved
		st.VictimsTotal += sum.VictimsTotal
		st.TotalDistanceM += sum.DistanceM
		st.TotalBytes += sum.Bytes
		st.ByEnvironment[m.Environment]++
		scoreSum += sum.FinalScore
		if i == 0 || sum.FinalScore > st.BestScore {
			st.BestScore = sum.FinalScore
		}
		if sum.Status == core.StatusSuccess {
			st.SuccessfulRuns++
		}
	}
	if len(all) > 0 {
		st.AverageScore = float64(scoreSum) / float64(len(all))
		st.LatestSessionID = all[0].SessionID
	}
	st.TotalSize = humanize.Bytes(uint64(st.TotalBytes))
	return st
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	all, err := s.datasets()
	if err != nil {
		s.logger.Error("Failed to compute stats", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to compute stats")
		return
	}
	writeJSON(w, http.StatusOK, computeStats(all))
}

// handleMLReady merges the ml_ready.json of every dataset.
func (s *Server) handleMLReady(w http.ResponseWriter, _ *http.Request) {
	all, err := s.datasets()
	if err != nil {
		s.logger.Error("Failed to list datasets", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list datasets")
		return
	}
	var sessions []memory.MLSession
	for _, m := range all {
		var ds memory.MLDataset
		if err := memory.ReadJSON(s.datasetDir(m.SessionID), memory.MLReadyFile, &ds); err != nil {
			s.logger.Warn("Skipping dataset without ml-ready data", "session_id", m.SessionID, "error", err)
			continue
		}
		sessions = append(sessions, ds.Data...)
	}
	slices.SortStableFunc(sessions, func(a, b memory.MLSession) int {
		return cmp.Compare(a.SessionID, b.SessionID)
	})
	writeJSON(w, http.StatusOK, memory.NewMLDataset(sessions))
}

func (s *Server) datasetDir(id string) string {
	return filepath.Join(s.cfg.DataDir, id)
}

type metadataResponse struct {
	Success  bool            `json:"success"`
	Metadata memory.Metadata `json:"metadata"`
}

func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	m, err := memory.ReadMetadata(s.datasetDir(id))
	if errors.Is(err, os.ErrNotExist) {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}
	if err != nil {
		s.logger.Error("Failed to read metadata", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to read metadata")
		return
	}
	writeJSON(w, http.StatusOK, metadataResponse{Success: true, Metadata: m})
}

// handleFile streams one dataset file, decompressing a gzipped export.
func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, name := vars["id"], vars["file"]
	contentType, ok := datasetFiles[name]
	if !ok {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}

	rc, err := memory.OpenFile(s.datasetDir(id), name)
	if errors.Is(err, os.ErrNotExist) {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}
	if err != nil {
		s.logger.Error("Failed to open dataset file", "session_id", id, "file", name, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to open file")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Warn("Dataset file transfer interrupted", "session_id", id, "file", name, "error", err)
	}
}

// handleFrame renders one frame of frames.npy as PNG.
func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]
	index, err := strconv.Atoi(vars["index"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid frame index")
		return
	}

	rc, err := memory.OpenFile(s.datasetDir(id), memory.FramesFile)
	if errors.Is(err, os.ErrNotExist) {
		writeError(w, http.StatusNotFound, "Session has no frames")
		return
	}
	if err != nil {
		s.logger.Error("Failed to open frames", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to open frames")
		return
	}
	defer rc.Close()

	frames, err := npy.ReadFrames(rc)
	if err != nil {
		s.logger.Error("Failed to decode frames", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to decode frames")
		return
	}
	if index >= len(frames) {
		writeError(w, http.StatusNotFound, "Frame not found")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, frameImage(frames[index])); err != nil {
		s.logger.Warn("Failed to encode frame", "session_id", id, "index", index, "error", err)
	}
}

// frameImage expands packed RGB pixels into an opaque RGBA image.
func frameImage(f core.FrameRecord) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for i, j := 0, 0; i+2 < len(f.Pixels) && j+3 < len(img.Pix); i, j = i+3, j+4 {
		img.Pix[j] = f.Pixels[i]
		img.Pix[j+1] = f.Pixels[i+1]
		img.Pix[j+2] = f.Pixels[i+2]
		img.Pix[j+3] = 0xff
	}
	return img
}
