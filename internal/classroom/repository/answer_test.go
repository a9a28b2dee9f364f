package repository_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"classqa/internal/classroom/repository"
	"classqa/internal/common/db"
)

func TestAnswerRepositoryUpsertOverwrites(t *testing.T) {
	database := newTestDatabase(t)
	clock := newStepClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	repo := repository.NewAnswerRepository(database, clock.Now)

	first, err := repo.Upsert(t.Context(), nil, 1, "s1", "Paris")
	if err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}
	clock.Advance(time.Second)
	second, err := repo.Upsert(t.Context(), nil, 1, "s1", "Berlin")
	if err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	if second.ID != first.ID {
		t.Fatalf("overwrite must keep the row id: %d != %d", second.ID, first.ID)
	}
	if second.Text != "Berlin" {
		t.Fatalf("expected overwritten text, got %q", second.Text)
	}
	if !second.Timestamp.After(first.Timestamp) {
		t.Fatalf("timestamp must move forward: %v then %v", first.Timestamp, second.Timestamp)
	}
	count, err := repo.CountByQuestion(t.Context(), nil, 1)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one answer, got %d", count)
	}
}

func TestAnswerRepositoryTimestampStrictlyIncreasesWithinSameInstant(t *testing.T) {
	database := newTestDatabase(t)
	clock := newStepClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	repo := repository.NewAnswerRepository(database, clock.Now)

	prev, err := repo.Upsert(t.Context(), nil, 1, "s1", "v0")
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	for i := 1; i <= 3; i++ {
		next, err := repo.Upsert(t.Context(), nil, 1, "s1", fmt.Sprintf("v%d", i))
		if err != nil {
			t.Fatalf("upsert %d failed: %v", i, err)
		}
		if !next.Timestamp.After(prev.Timestamp) {
			t.Fatalf("upsert %d: timestamp %v not after %v", i, next.Timestamp, prev.Timestamp)
		}
		prev = next
	}
}

func TestAnswerRepositoryFindMissing(t *testing.T) {
	repo := repository.NewAnswerRepository(newTestDatabase(t), nil)
	answer, err := repo.Find(t.Context(), nil, 1, "nobody")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if answer != nil {
		t.Fatalf("expected nil answer, got %+v", answer)
	}
}

func TestAnswerRepositoryListNewestFirst(t *testing.T) {
	database := newTestDatabase(t)
	clock := newStepClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	repo := repository.NewAnswerRepository(database, clock.Now)

	for _, student := range []string{"s1", "s2", "s3"} {
		if _, err := repo.Upsert(t.Context(), nil, 5, student, "answer "+student); err != nil {
			t.Fatalf("upsert %s failed: %v", student, err)
		}
		clock.Advance(time.Minute)
	}
	// s1 resubmits and becomes the newest.
	if _, err := repo.Upsert(t.Context(), nil, 5, "s1", "changed"); err != nil {
		t.Fatalf("resubmit failed: %v", err)
	}
	if _, err := repo.Upsert(t.Context(), nil, 6, "s9", "other question"); err != nil {
		t.Fatalf("upsert other question failed: %v", err)
	}

	answers, err := repo.ListByQuestion(t.Context(), nil, 5)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	want := []string{"s1", "s3", "s2"}
	if len(answers) != len(want) {
		t.Fatalf("expected %d answers, got %d", len(want), len(answers))
	}
	for i, a := range answers {
		if a.StudentID != want[i] {
			t.Fatalf("position %d: expected %s, got %s", i, want[i], a.StudentID)
		}
	}

	empty, err := repo.ListByQuestion(t.Context(), nil, 404)
	if err != nil {
		t.Fatalf("list empty failed: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", empty)
	}
}

func TestAnswerRepositoryCountByQuestions(t *testing.T) {
	repo := repository.NewAnswerRepository(newTestDatabase(t), nil)
	for _, item := range []struct {
		question int64
		student  string
	}{{1, "a"}, {1, "b"}, {2, "a"}} {
		if _, err := repo.Upsert(t.Context(), nil, item.question, item.student, "x"); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}
	}

	counts, err := repo.CountByQuestions(t.Context(), nil, []int64{1, 2, 3})
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if counts[1] != 2 || counts[2] != 1 || counts[3] != 0 {
		t.Fatalf("unexpected counts: %v", counts)
	}

	none, err := repo.CountByQuestions(t.Context(), nil, nil)
	if err != nil || len(none) != 0 {
		t.Fatalf("expected empty counts, got %v, %v", none, err)
	}
}

func TestAnswerRepositoryDeleteByQuestion(t *testing.T) {
	repo := repository.NewAnswerRepository(newTestDatabase(t), nil)
	for _, student := range []string{"a", "b"} {
		if _, err := repo.Upsert(t.Context(), nil, 3, student, "x"); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}
	}
	deleted, err := repo.DeleteByQuestion(t.Context(), nil, 3)
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("expected 2 deleted, got %d", deleted)
	}
}

func TestAnswerRepositoryConcurrentFirstSubmissions(t *testing.T) {
	database := newTestDatabase(t)
	repo := repository.NewAnswerRepository(database, nil)

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.Upsert(t.Context(), nil, 1, "s1", fmt.Sprintf("attempt %d", i))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent upsert failed: %v", err)
		}
	}

	count, err := repo.CountByQuestion(t.Context(), nil, 1)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one answer row, got %d", count)
	}
}

func TestAnswerRepositoryUpsertInTransaction(t *testing.T) {
	database := newTestDatabase(t)
	repo := repository.NewAnswerRepository(database, nil)

	err := database.Transaction(t.Context(), func(tx db.Transaction) error {
		_, err := repo.Upsert(t.Context(), tx, 1, "s1", "inside")
		return err
	})
	if err != nil {
		t.Fatalf("transaction failed: %v", err)
	}
	answer, err := repo.Find(t.Context(), nil, 1, "s1")
	if err != nil || answer == nil || answer.Text != "inside" {
		t.Fatalf("expected committed answer, got %+v, %v", answer, err)
	}
}
