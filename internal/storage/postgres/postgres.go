// Package postgres implements the storage.Backend interface using GORM/PostgreSQL
// with internal queues and a background DB writer goroutine.
package postgres

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/reacture/engine/internal/config"
	"github.com/reacture/engine/internal/database"
	"github.com/reacture/engine/internal/geo"
	"github.com/reacture/engine/internal/model"
	"github.com/reacture/engine/internal/model/convert"
	"github.com/reacture/engine/internal/queue"
	"github.com/reacture/engine/pkg/core"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultFlushInterval is how often queued rows are written.
const DefaultFlushInterval = 2 * time.Second

// ErrNoSession is returned when output arrives before StartSession.
var ErrNoSession = errors.New("postgres: no session started")

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	// DB is used as is when set. Otherwise Init connects to DBConfig.
	DB            *gorm.DB
	DBConfig      config.DBConfig
	Logger        *slog.Logger
	DBLogger      zerolog.Logger
	FlushInterval time.Duration
}

// queues holds all the write queues for batch DB insertion.
type queues struct {
	Samples   *queue.Queue[model.Sample]
	Frames    *queue.Queue[model.Frame]
	Decisions *queue.Queue[model.Decision]
}

func newQueues() *queues {
	return &queues{
		Samples:   queue.New[model.Sample](),
		Frames:    queue.New[model.Frame](),
		Decisions: queue.New[model.Decision](),
	}
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
type Backend struct {
	deps    Dependencies
	manager *database.Manager
	db      *gorm.DB
	log     *slog.Logger
	queues  *queues

	sessionRowID atomic.Uint64

	mu         sync.Mutex
	row        *model.Session
	trajectory geo.Trajectory

	flushMu  sync.Mutex
	stopChan chan struct{}
	done     chan struct{}
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = DefaultFlushInterval
	}
	return &Backend{
		deps:   deps,
		log:    deps.Logger.With("backend", "gorm"),
		queues: newQueues(),
	}
}

// Init runs schema migration and starts the DB writer goroutine. If no DB was
// injected via Dependencies, it creates its own postgres connection.
func (b *Backend) Init() error {
	b.db = b.deps.DB
	if b.db == nil {
		b.manager = database.NewManager(b.deps.DBLogger)
		if err := b.manager.OpenPostgres(b.deps.DBConfig); err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		b.db = b.manager.DB
	}

	b.log.Info("Migrating schema", "dialect", b.db.Name())
	if err := b.db.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})
	go b.writerLoop()
	return nil
}

// DB returns the connection in use after Init.
func (b *Backend) DB() *gorm.DB {
	return b.db
}

// Close stops the DB writer goroutine, writes what is still queued and
// closes a connection the backend opened itself.
func (b *Backend) Close() error {
	if b.stopChan != nil {
		close(b.stopChan)
		<-b.done
		b.stopChan = nil
	}
	var err error
	if b.db != nil {
		err = b.Flush()
	}
	if b.manager != nil {
		err = errors.Join(err, b.manager.Close())
		b.manager = nil
	}
	return err
}

// StartSession inserts the session row synchronously so queued rows can
// reference its id.
func (b *Backend) StartSession(info *core.SessionInfo) error {
	if b.db == nil {
		return fmt.Errorf("postgres: backend not initialized")
	}
	row := convert.CoreToSession(*info)
	if err := b.db.Omit(clause.Associations).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	b.mu.Lock()
	b.row = &row
	b.trajectory = geo.Trajectory{}
	b.mu.Unlock()
	b.sessionRowID.Store(uint64(row.ID))

	b.log.Debug("Session row created", "session_id", info.ID, "row_id", row.ID)
	return nil
}

func (b *Backend) currentID() (uint, error) {
	id := uint(b.sessionRowID.Load())
	if id == 0 {
		return 0, ErrNoSession
	}
	return id, nil
}

// RecordSample converts and queues a sample.
func (b *Backend) RecordSample(s *core.TelemetrySample) error {
	id, err := b.currentID()
	if err != nil {
		return err
	}
	if s.Periodic() {
		b.mu.Lock()
		b.trajectory.Points = append(b.trajectory.Points, s.Robot.Position.Vec())
		b.mu.Unlock()
	}
	b.queues.Samples.Push(convert.CoreToSample(id, *s))
	return nil
}

// RecordFrame converts and queues a frame.
func (b *Backend) RecordFrame(f *core.FrameRecord) error {
	id, err := b.currentID()
	if err != nil {
		return err
	}
	b.queues.Frames.Push(convert.CoreToFrame(id, *f))
	return nil
}

// RecordDecision converts and queues a decision.
func (b *Backend) RecordDecision(d *core.Decision) error {
	id, err := b.currentID()
	if err != nil {
		return err
	}
	b.queues.Decisions.Push(convert.CoreToDecision(id, *d))
	return nil
}

// EndSession writes everything still queued, then the result columns, the
// ground track and the victim outcomes.
func (b *Backend) EndSession(res *core.SessionResult) error {
	id, err := b.currentID()
	if err != nil {
		return err
	}
	if err := b.Flush(); err != nil {
		return err
	}

	b.mu.Lock()
	row := b.row
	traj := b.trajectory
	b.mu.Unlock()

	convert.ApplyResult(row, *res)
	row.Trajectory = traj.LineString()
	row.DistanceM = traj.Length()

	err = b.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(row).Error; err != nil {
			return fmt.Errorf("failed to update session: %w", err)
		}
		if len(res.Victims) == 0 {
			return nil
		}
		outcomes := make([]model.VictimOutcome, len(res.Victims))
		for i, v := range res.Victims {
			outcomes[i] = convert.CoreToVictimOutcome(id, v)
		}
		if err := tx.Omit(clause.Associations).Create(&outcomes).Error; err != nil {
			return fmt.Errorf("failed to insert victim outcomes: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	b.sessionRowID.Store(0)
	b.log.Info("Session stored",
		"session_id", row.SessionID,
		"score", row.FinalScore,
		"distance_m", row.DistanceM)
	return nil
}

// writeQueue writes all items from a queue to the database in a transaction.
// A failed batch goes back to the head of the queue.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, log *slog.Logger) error {
	if q.Empty() {
		return nil
	}

	items := q.GetAndEmpty()
	err := db.Transaction(func(tx *gorm.DB) error {
		return tx.Omit(clause.Associations).Create(&items).Error
	})
	if err != nil {
		log.Error("Error creating rows", "table", name, "count", len(items), "error", err)
		q.PushFront(items...)
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	log.Debug("Rows written", "table", name, "count", len(items))
	return nil
}

// Flush writes every queue now.
func (b *Backend) Flush() error {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	return errors.Join(
		writeQueue(b.db, b.queues.Samples, "samples", b.log),
		writeQueue(b.db, b.queues.Frames, "frames", b.log),
		writeQueue(b.db, b.queues.Decisions, "decisions", b.log),
	)
}

// Pending is the number of rows waiting to be written.
func (b *Backend) Pending() int {
	return b.queues.Samples.Len() + b.queues.Frames.Len() + b.queues.Decisions.Len()
}

// writerLoop periodically drains the queues into the DB.
func (b *Backend) writerLoop() {
	defer close(b.done)
	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			// errors are logged by writeQueue and retried on the next tick
			_ = b.Flush()
		}
	}
}
