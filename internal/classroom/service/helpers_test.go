package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"classqa/internal/classroom/model"
	"classqa/internal/classroom/repository"
	"classqa/internal/classroom/service"
	"classqa/internal/common/db"
	pkgerrors "classqa/pkg/errors"
)

var dbSeq atomic.Int64

type fixture struct {
	database  db.Database
	questions *repository.SQLQuestionRepository
	answers   *repository.SQLAnswerRepository
	students  *fakeDirectory
	events    *fakePublisher
	clock     *fakeClock
	lifecycle *service.LifecycleService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:classqa_svc_%d?mode=memory&cache=shared", dbSeq.Add(1))
	database, err := db.Open(&db.Config{Driver: "sqlite", DSN: dsn})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })
	if err := repository.EnsureSchema(t.Context(), database); err != nil {
		t.Fatalf("ensure schema failed: %v", err)
	}

	clock := &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	f := &fixture{
		database:  database,
		questions: repository.NewQuestionRepository(database, nil, repository.WithQuestionClock(clock.Now)),
		answers:   repository.NewAnswerRepository(database, clock.Now),
		students: newFakeDirectory(map[string]string{
			"s1": "Ada",
			"s2": "Grace",
		}),
		events: &fakePublisher{},
		clock:  clock,
	}
	f.lifecycle = service.NewLifecycleService(
		db.NewStaticProvider(database),
		f.questions,
		f.answers,
		f.students,
		f.events,
		service.LifecycleConfig{Clock: clock.Now},
	)
	return f
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeDirectory struct {
	mu      sync.Mutex
	names   map[string]string
	order   []string
	failErr error
}

func newFakeDirectory(names map[string]string) *fakeDirectory {
	d := &fakeDirectory{names: make(map[string]string)}
	for _, id := range []string{"s1", "s2", "s3"} {
		if name, ok := names[id]; ok {
			d.names[id] = name
			d.order = append(d.order, id)
		}
	}
	return d
}

func (d *fakeDirectory) Lookup(ctx context.Context, id string) (model.Student, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failErr != nil {
		return model.Student{}, false, d.failErr
	}
	name, ok := d.names[id]
	if !ok {
		return model.Student{}, false, nil
	}
	return model.Student{ID: id, Name: name}, true, nil
}

func (d *fakeDirectory) List(ctx context.Context) ([]model.Student, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failErr != nil {
		return nil, d.failErr
	}
	out := make([]model.Student, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, model.Student{ID: id, Name: d.names[id]})
	}
	return out, nil
}

func (d *fakeDirectory) remove(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.names, id)
}

func (d *fakeDirectory) fail(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failErr = err
}

type fakePublisher struct {
	mu     sync.Mutex
	events []model.QuestionEvent
	err    error
}

func (p *fakePublisher) Publish(ctx context.Context, event model.QuestionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *fakePublisher) types() []model.QuestionEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.QuestionEventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType)
	}
	return out
}

func expectCode(t *testing.T, err error, code pkgerrors.ErrorCode) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error code %d, got nil", code)
	}
	if got := pkgerrors.GetCode(err); got != code {
		t.Fatalf("expected error code %d, got %d (%v)", code, got, err)
	}
}

var errBoom = errors.New("boom")
