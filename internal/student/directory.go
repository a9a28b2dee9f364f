package student

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"classqa/internal/classroom/model"
	"classqa/pkg/utils/logger"

	"go.uber.org/zap"
)

// Directory resolves student identifiers to display names.
type Directory interface {
	// Lookup reports whether id is on the roster. A non-nil error means the
	// roster could not be read at all.
	Lookup(ctx context.Context, id string) (model.Student, bool, error)
	List(ctx context.Context) ([]model.Student, error)
}

// RosterDirectory serves a JSON roster of the form [{"id": "...", "name": "..."}].
// Entries keep file order; later duplicates of an id are ignored.
// The roster is reloaded when older than the refresh interval and its source
// version changed. A failed reload keeps serving the last good roster.
type RosterDirectory struct {
	source  Source
	refresh time.Duration
	now     func() time.Time

	mu       sync.Mutex
	loaded   bool
	version  string
	loadedAt time.Time
	students []model.Student
	byID     map[string]model.Student
}

// Option customizes a RosterDirectory.
type Option func(*RosterDirectory)

// WithClock overrides the clock used for the refresh interval.
func WithClock(now func() time.Time) Option {
	return func(d *RosterDirectory) {
		if now != nil {
			d.now = now
		}
	}
}

// NewRosterDirectory creates a directory over src. A refresh of 0 checks the
// source version on every call.
func NewRosterDirectory(src Source, refresh time.Duration, opts ...Option) *RosterDirectory {
	d := &RosterDirectory{
		source:  src,
		refresh: refresh,
		now:     time.Now,
		byID:    make(map[string]model.Student),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *RosterDirectory) Lookup(ctx context.Context, id string) (model.Student, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ensureLoadedLocked(ctx); err != nil {
		return model.Student{}, false, err
	}
	student, ok := d.byID[id]
	return student, ok, nil
}

func (d *RosterDirectory) List(ctx context.Context) ([]model.Student, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ensureLoadedLocked(ctx); err != nil {
		return nil, err
	}
	out := make([]model.Student, len(d.students))
	copy(out, d.students)
	return out, nil
}

func (d *RosterDirectory) ensureLoadedLocked(ctx context.Context) error {
	now := d.now()
	if d.loaded && d.refresh > 0 && now.Sub(d.loadedAt) < d.refresh {
		return nil
	}

	version, err := d.source.Version(ctx)
	if errors.Is(err, ErrSourceMissing) {
		// A missing roster is an empty class, not an outage.
		if d.loaded && d.version != "" {
			logger.Warn(ctx, "student roster disappeared, keeping last roster", zap.String("source", d.source.Name()))
			d.loadedAt = now
			return nil
		}
		d.replaceLocked(nil, "", now)
		return nil
	}
	if err != nil {
		return d.staleOrFail(ctx, now, err)
	}
	if d.loaded && version == d.version {
		d.loadedAt = now
		return nil
	}

	students, err := d.fetch(ctx)
	if err != nil {
		return d.staleOrFail(ctx, now, err)
	}
	d.replaceLocked(students, version, now)
	logger.Info(ctx, "student roster loaded",
		zap.String("source", d.source.Name()),
		zap.Int("students", len(students)),
	)
	return nil
}

func (d *RosterDirectory) staleOrFail(ctx context.Context, now time.Time, err error) error {
	if !d.loaded {
		return fmt.Errorf("load student roster failed: %w", err)
	}
	logger.Warn(ctx, "student roster reload failed, serving last roster",
		zap.String("source", d.source.Name()),
		zap.Error(err),
	)
	d.loadedAt = now
	return nil
}

func (d *RosterDirectory) fetch(ctx context.Context) ([]model.Student, error) {
	data, err := readRoster(ctx, d.source)
	if err != nil {
		return nil, err
	}
	var students []model.Student
	if err := json.Unmarshal(data, &students); err != nil {
		return nil, fmt.Errorf("decode student roster failed: %w", err)
	}
	return students, nil
}

func (d *RosterDirectory) replaceLocked(students []model.Student, version string, now time.Time) {
	byID := make(map[string]model.Student, len(students))
	kept := make([]model.Student, 0, len(students))
	for _, s := range students {
		if s.ID == "" {
			continue
		}
		if _, dup := byID[s.ID]; dup {
			continue
		}
		byID[s.ID] = s
		kept = append(kept, s)
	}
	d.students = kept
	d.byID = byID
	d.version = version
	d.loadedAt = now
	d.loaded = true
}
