package student_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"classqa/internal/common/storage"
	"classqa/internal/student"

	"github.com/klauspost/compress/zstd"
)

const rosterJSON = `[{"id":"s1","name":"Ada"},{"id":"s2","name":"Grace"},{"id":"s1","name":"Duplicate"}]`

func writeFile(t *testing.T, path string, data []byte, mtime time.Time) {
	t.Helper()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write roster failed: %v", err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("chtimes failed: %v", err)
	}
}

func TestRosterDirectoryFileLookup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "students.json")
	writeFile(t, path, []byte(rosterJSON), time.Unix(1000, 0))
	dir := student.NewRosterDirectory(student.NewFileSource(path), time.Minute)

	got, ok, err := dir.Lookup(t.Context(), "s1")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if !ok || got.Name != "Ada" {
		t.Fatalf("expected first entry for s1, got %+v ok=%v", got, ok)
	}
	if _, ok, _ := dir.Lookup(t.Context(), "S1"); ok {
		t.Fatalf("lookup must be case sensitive")
	}

	all, err := dir.List(t.Context())
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(all) != 2 || all[0].ID != "s1" || all[1].ID != "s2" {
		t.Fatalf("unexpected roster: %+v", all)
	}
}

func TestRosterDirectoryMissingFileIsEmpty(t *testing.T) {
	dir := student.NewRosterDirectory(student.NewFileSource(filepath.Join(t.TempDir(), "none.json")), 0)
	all, err := dir.List(t.Context())
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("expected empty roster, got %+v", all)
	}
	if _, ok, err := dir.Lookup(t.Context(), "s1"); err != nil || ok {
		t.Fatalf("expected unknown student, got ok=%v err=%v", ok, err)
	}
}

func TestRosterDirectoryReloadsChangedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "students.json")
	writeFile(t, path, []byte(`[{"id":"s1","name":"Ada"}]`), time.Unix(1000, 0))

	now := time.Unix(5000, 0)
	dir := student.NewRosterDirectory(student.NewFileSource(path), time.Minute,
		student.WithClock(func() time.Time { return now }))

	if _, ok, _ := dir.Lookup(t.Context(), "s3"); ok {
		t.Fatalf("s3 should not exist yet")
	}

	writeFile(t, path, []byte(`[{"id":"s1","name":"Ada"},{"id":"s3","name":"Linus"}]`), time.Unix(2000, 0))
	if _, ok, _ := dir.Lookup(t.Context(), "s3"); ok {
		t.Fatalf("roster must not reload inside the refresh interval")
	}

	now = now.Add(2 * time.Minute)
	got, ok, err := dir.Lookup(t.Context(), "s3")
	if err != nil || !ok || got.Name != "Linus" {
		t.Fatalf("expected reloaded roster, got %+v ok=%v err=%v", got, ok, err)
	}
}

func TestRosterDirectoryKeepsLastGoodRoster(t *testing.T) {
	path := filepath.Join(t.TempDir(), "students.json")
	writeFile(t, path, []byte(`[{"id":"s1","name":"Ada"}]`), time.Unix(1000, 0))
	dir := student.NewRosterDirectory(student.NewFileSource(path), 0)

	if _, ok, err := dir.Lookup(t.Context(), "s1"); err != nil || !ok {
		t.Fatalf("initial lookup failed: ok=%v err=%v", ok, err)
	}
	writeFile(t, path, []byte(`{not json`), time.Unix(2000, 0))
	if _, ok, err := dir.Lookup(t.Context(), "s1"); err != nil || !ok {
		t.Fatalf("expected last good roster, got ok=%v err=%v", ok, err)
	}
}

func TestRosterDirectoryCorruptFirstLoadFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "students.json")
	writeFile(t, path, []byte(`{not json`), time.Unix(1000, 0))
	dir := student.NewRosterDirectory(student.NewFileSource(path), 0)
	if _, _, err := dir.Lookup(t.Context(), "s1"); err == nil {
		t.Fatalf("expected error for unreadable roster")
	}
}

type fakeObjectStorage struct {
	objects map[string][]byte
	etags   map[string]string
	statErr error
}

type nopReadCloser struct {
	io.Reader
}

func (nopReadCloser) Close() error { return nil }

func (s *fakeObjectStorage) GetObject(ctx context.Context, bucket, objectKey string) (storage.ObjectReader, error) {
	data, ok := s.objects[bucket+"/"+objectKey]
	if !ok {
		return nil, errors.New("no such key")
	}
	return nopReadCloser{bytes.NewReader(data)}, nil
}

func (s *fakeObjectStorage) StatObject(ctx context.Context, bucket, objectKey string) (storage.ObjectStat, error) {
	if s.statErr != nil {
		return storage.ObjectStat{}, s.statErr
	}
	data, ok := s.objects[bucket+"/"+objectKey]
	if !ok {
		return storage.ObjectStat{}, storage.ErrObjectNotFound
	}
	return storage.ObjectStat{SizeBytes: int64(len(data)), ETag: s.etags[bucket+"/"+objectKey]}, nil
}

func TestRosterDirectoryObjectSourceZstd(t *testing.T) {
	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatalf("create zstd writer failed: %v", err)
	}
	compressed := encoder.EncodeAll([]byte(rosterJSON), nil)
	_ = encoder.Close()

	store := &fakeObjectStorage{
		objects: map[string][]byte{"rosters/class.json.zst": compressed},
		etags:   map[string]string{"rosters/class.json.zst": "etag-1"},
	}
	dir := student.NewRosterDirectory(student.NewObjectSource(store, "rosters", "class.json.zst"), 0)

	got, ok, err := dir.Lookup(t.Context(), "s2")
	if err != nil || !ok || got.Name != "Grace" {
		t.Fatalf("expected s2 from compressed object, got %+v ok=%v err=%v", got, ok, err)
	}

	// Store outage after a good load keeps the roster.
	store.statErr = errors.New("connection refused")
	if _, ok, err := dir.Lookup(t.Context(), "s1"); err != nil || !ok {
		t.Fatalf("expected cached roster during outage, got ok=%v err=%v", ok, err)
	}
}

func TestRosterDirectoryObjectSourceUnavailable(t *testing.T) {
	store := &fakeObjectStorage{statErr: errors.New("connection refused")}
	dir := student.NewRosterDirectory(student.NewObjectSource(store, "rosters", "class.json"), 0)
	if _, err := dir.List(t.Context()); err == nil {
		t.Fatalf("expected error when roster never loaded")
	}
}

func TestRosterDirectoryMissingObjectIsEmpty(t *testing.T) {
	store := &fakeObjectStorage{objects: map[string][]byte{}}
	dir := student.NewRosterDirectory(student.NewObjectSource(store, "rosters", "class.json"), 0)
	students, err := dir.List(t.Context())
	if err != nil {
		t.Fatalf("missing object should read as empty roster, got %v", err)
	}
	if len(students) != 0 {
		t.Fatalf("expected empty roster, got %d", len(students))
	}
}
