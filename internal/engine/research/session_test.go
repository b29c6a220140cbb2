package research

import (
	"errors"
	"testing"
)

func TestStoreCreateDuplicate(t *testing.T) {
	st := NewStore()
	if _, err := st.Create("k", "q", 3, NewVectorIndex(&stubEmbedder{})); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := st.Create("k", "other query", 3, NewVectorIndex(&stubEmbedder{}))
	if !errors.Is(err, ErrSessionExists) {
		t.Fatalf("expected ErrSessionExists, got %v", err)
	}
	if st.Active() != 1 {
		t.Errorf("duplicate create changed session count: %d", st.Active())
	}
	// The original session is untouched.
	s, err := st.Get("k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if s.Query != "q" {
		t.Errorf("original session overwritten: query %q", s.Query)
	}
}

func TestStoreGetDelete(t *testing.T) {
	st := NewStore()
	if _, err := st.Get("absent"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}

	if _, err := st.Create("k", "q", 3, NewVectorIndex(&stubEmbedder{})); err != nil {
		t.Fatalf("create: %v", err)
	}
	st.Delete("k")
	if st.Active() != 0 {
		t.Errorf("delete left %d sessions", st.Active())
	}
	// Deleting again is a no-op.
	st.Delete("k")

	// The key is reusable after delete.
	if _, err := st.Create("k", "q2", 3, NewVectorIndex(&stubEmbedder{})); err != nil {
		t.Errorf("create after delete: %v", err)
	}
}

func TestSessionRecordDedup(t *testing.T) {
	st := NewStore()
	s, err := st.Create("k", "q", 3, NewVectorIndex(&stubEmbedder{}))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if s.Seen("v1") {
		t.Error("fresh session claims to have seen v1")
	}
	s.Record(VideoMetadata{ID: "v1", Title: "first"})
	if !s.Seen("v1") {
		t.Error("recorded video not seen")
	}
	// Re-recording keeps the first metadata.
	s.Record(VideoMetadata{ID: "v1", Title: "overwritten"})
	if got := s.Processed["v1"].Title; got != "first" {
		t.Errorf("re-record overwrote metadata: %q", got)
	}
	if len(s.Processed) != 1 {
		t.Errorf("expected 1 processed video, got %d", len(s.Processed))
	}
}
