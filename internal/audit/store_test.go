package audit

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/vineetp6/serving/internal/serving"
)

func TestStore_PublishAndRecent(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	s.Publish(serving.Event{Name: "publish", Model: "m", Version: 1, Fields: map[string]any{"path": "/srv/m/1"}})
	s.Publish(serving.Event{Name: "retire", Model: "m", Version: 1})
	s.Publish(serving.Event{Name: "unload", Model: "m", Version: 1})

	recs, err := s.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("got %d records, want 3", len(recs))
	}
	// Newest first.
	if recs[0].Name != "unload" || recs[2].Name != "publish" {
		t.Fatalf("order wrong: %s .. %s", recs[0].Name, recs[2].Name)
	}
	if recs[2].Fields["path"] != "/srv/m/1" {
		t.Fatalf("fields not round-tripped: %+v", recs[2].Fields)
	}

	recs, err = s.Recent(context.Background(), 1)
	if err != nil {
		t.Fatalf("recent limit: %v", err)
	}
	if len(recs) != 1 || recs[0].Model != "m" {
		t.Fatalf("limit not applied: %+v", recs)
	}
}

func TestStore_ReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	s.Publish(serving.Event{Name: "publish", Model: "m", Version: 2})
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	recs, err := s.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recs) != 1 || recs[0].Version != 2 {
		t.Fatalf("history lost: %+v", recs)
	}
}
