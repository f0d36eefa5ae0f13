package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"photoagent/internal/chat"
	"photoagent/internal/library"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_ConversationCRUD(t *testing.T) {
	store := newTestStore(t)

	meta := ConversationMeta{ID: "conv_test_001", Title: "beach trip", PlannerMode: "remote"}
	if err := store.CreateConversation(meta); err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}

	loaded, err := store.LoadConversation("conv_test_001")
	if err != nil {
		t.Fatalf("LoadConversation: %v", err)
	}
	if loaded.Title != "beach trip" {
		t.Fatalf("Title=%q, want %q", loaded.Title, "beach trip")
	}
	if loaded.PlannerSessionID != "" {
		t.Fatalf("PlannerSessionID=%q, want empty", loaded.PlannerSessionID)
	}

	meta.PlannerSessionID = "s-42"
	if err := store.SaveConversation(meta); err != nil {
		t.Fatalf("SaveConversation: %v", err)
	}
	latest, err := store.LatestConversation()
	if err != nil {
		t.Fatalf("LatestConversation: %v", err)
	}
	if latest.ID != "conv_test_001" || latest.PlannerSessionID != "s-42" {
		t.Fatalf("latest=%+v", latest)
	}

	if _, err := store.LoadConversation("missing"); err == nil {
		t.Fatalf("expected error for missing conversation")
	}
}

func TestSQLiteStore_LatestConversationEmpty(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.LatestConversation(); err == nil {
		t.Fatalf("expected error on empty store")
	}
}

func TestSQLiteStore_AppendMessages(t *testing.T) {
	store := newTestStore(t)
	if err := store.CreateConversation(ConversationMeta{ID: "conv_msg"}); err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}

	first := []chat.Message{
		{ID: "m1", Sender: chat.SenderUser, Text: "find sunsets"},
		{ID: "m2", Sender: chat.SenderAgent, Text: "found 2", Images: []string{"a.jpg", "b.jpg"},
			Suggested: []chat.SuggestedAction{{Label: "Collage", Prompt: "make a collage"}}},
	}
	if err := store.AppendMessages("conv_msg", 0, first); err != nil {
		t.Fatalf("AppendMessages: %v", err)
	}
	second := []chat.Message{{ID: "m3", Sender: chat.SenderError, Text: "boom"}}
	if err := store.AppendMessages("conv_msg", 2, second); err != nil {
		t.Fatalf("AppendMessages second batch: %v", err)
	}

	loaded, err := store.LoadMessages("conv_msg")
	if err != nil {
		t.Fatalf("LoadMessages: %v", err)
	}
	if len(loaded) != 3 {
		t.Fatalf("len=%d, want 3", len(loaded))
	}
	if loaded[1].Images[1] != "b.jpg" || loaded[1].Suggested[0].Prompt != "make a collage" {
		t.Fatalf("message 2 round trip lost data: %+v", loaded[1])
	}
	if loaded[2].Sender != chat.SenderError {
		t.Fatalf("sender=%q, want error", loaded[2].Sender)
	}

	// seq 冲突应失败 / a duplicate seq must be rejected
	if err := store.AppendMessages("conv_msg", 2, second); err == nil {
		t.Fatalf("expected duplicate seq to fail")
	}
}

func TestSQLiteStore_PhotosKeepOrderAndEmbedding(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	taken := time.Date(2023, 7, 14, 10, 30, 0, 0, time.UTC)

	recs := []library.Record{
		{URI: "c.jpg", Embedding: []float32{0.5, -1.25, 3}, Location: "Lisbon", TakenAt: taken, People: []string{"p1"}},
		{URI: "a.jpg", Embedding: []float32{1, 0, 0}},
		{URI: "b.jpg", Embedding: []float32{0, 1, 0}, Width: 640, Height: 480},
	}
	for _, r := range recs {
		if err := store.Put(ctx, r); err != nil {
			t.Fatalf("Put %s: %v", r.URI, err)
		}
	}
	// 重新索引不改变顺序 / re-indexing keeps position
	if err := store.Put(ctx, library.Record{URI: "c.jpg", Embedding: []float32{9, 9, 9}, Location: "Porto"}); err != nil {
		t.Fatalf("Put update: %v", err)
	}

	all, err := store.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 3 || all[0].URI != "c.jpg" || all[1].URI != "a.jpg" || all[2].URI != "b.jpg" {
		t.Fatalf("order=%v", all)
	}
	if all[0].Embedding[0] != 9 || all[0].Location != "Porto" {
		t.Fatalf("update not applied: %+v", all[0])
	}
	if all[2].Width != 640 || all[2].Height != 480 {
		t.Fatalf("dimensions lost: %+v", all[2])
	}

	got, err := store.ByURI(ctx, "a.jpg")
	if err != nil {
		t.Fatalf("ByURI: %v", err)
	}
	if len(got.Embedding) != 3 || got.Embedding[0] != 1 {
		t.Fatalf("embedding=%v", got.Embedding)
	}
	if _, err := store.ByURI(ctx, "zzz.jpg"); err != library.ErrNotFound {
		t.Fatalf("err=%v, want ErrNotFound", err)
	}
}

func TestSQLiteStore_SoftDeleteAndRestore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	for _, uri := range []string{"a.jpg", "b.jpg", "c.jpg"} {
		if err := store.Put(ctx, library.Record{URI: uri, Embedding: []float32{1}}); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	if err := store.SoftDelete(ctx, []string{"a.jpg", "c.jpg", "missing.jpg"}); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	all, _ := store.All(ctx)
	live := library.Live(all)
	if len(live) != 1 || live[0].URI != "b.jpg" {
		t.Fatalf("live=%v", live)
	}

	if err := store.Restore(ctx, []string{"c.jpg"}); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	all, _ = store.All(ctx)
	if len(library.Live(all)) != 2 {
		t.Fatalf("restore did not bring c.jpg back")
	}

	if err := store.DeleteByURI(ctx, "b.jpg"); err != nil {
		t.Fatalf("DeleteByURI: %v", err)
	}
	all, _ = store.All(ctx)
	if len(all) != 2 {
		t.Fatalf("len=%d after hard delete, want 2", len(all))
	}
}

func TestSQLiteStore_LogConsent(t *testing.T) {
	store := newTestStore(t)
	entry := ConsentEntry{ConversationID: "conv_x", Tool: "delete_photos", Kind: "delete", Decision: "granted", Count: 3}
	if err := store.LogConsent(entry); err != nil {
		t.Fatalf("LogConsent: %v", err)
	}
	var n int
	if err := store.db.QueryRow("SELECT count(*) FROM consent_log WHERE decision='granted'").Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("consent rows=%d, want 1", n)
	}
}

func TestImportJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	manifest := `[
		{"uri": "a.jpg", "embedding": [1, 0], "location": "Paris", "taken_at": "2024-01-02"},
		{"uri": "", "embedding": [1, 0]},
		{"uri": "noembed.jpg"},
		{"uri": "b.jpg", "embedding": [0, 1], "people": ["p7"], "taken_at": "2024-05-06T08:00:00Z"}
	]`
	if err := os.WriteFile(path, []byte(manifest), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	mem := library.NewMemoryStore()
	n, err := ImportJSON(context.Background(), path, mem)
	if err != nil {
		t.Fatalf("ImportJSON: %v", err)
	}
	if n != 2 {
		t.Fatalf("imported=%d, want 2", n)
	}
	rec, err := mem.ByURI(context.Background(), "a.jpg")
	if err != nil {
		t.Fatalf("ByURI: %v", err)
	}
	if rec.TakenAt.Year() != 2024 || rec.Location != "Paris" {
		t.Fatalf("rec=%+v", rec)
	}
}
