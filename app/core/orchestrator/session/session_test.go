package session

import (
	"context"
	"strings"
	"testing"

	"github.com/tidwall/gjson"

	"taskpilot/app/core/orchestrator/db"
)

func newTestManager(t *testing.T) (*Manager, *db.DB) {
	t.Helper()
	database, err := db.NewSQLiteDB(t.TempDir())
	if err != nil {
		t.Fatalf("NewSQLiteDB failed: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	m, err := NewManager(context.Background(), database, 30)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return m, database
}

func TestNewManagerCreatesInitialConversation(t *testing.T) {
	m, _ := newTestManager(t)
	if m.ActiveID() == "" {
		t.Fatalf("expected an active conversation")
	}
	if m.ActiveTitle() != DefaultTitle {
		t.Fatalf("unexpected title: %q", m.ActiveTitle())
	}
	if infos := m.List(); len(infos) != 1 || !infos[0].Active {
		t.Fatalf("unexpected listing: %v", infos)
	}
}

func TestTaskIsolationAcrossConversations(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	firstID := m.ActiveID()

	store := m.TaskStore()
	store.CreateAt("2025-08-16T09:00", "belongs to first")
	if err := m.SaveTasks(ctx); err != nil {
		t.Fatalf("SaveTasks failed: %v", err)
	}

	secondID, err := m.Create(ctx, "second")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("new conversation must start with no tasks, got %d", store.Len())
	}
	store.CreateAt("2025-08-17T09:00", "belongs to second")
	if err := m.SaveTasks(ctx); err != nil {
		t.Fatalf("SaveTasks failed: %v", err)
	}

	if err := m.Switch(ctx, firstID); err != nil {
		t.Fatalf("Switch failed: %v", err)
	}
	tasks := store.Tasks("2025-08-16T09:00")
	if len(tasks) != 1 || tasks[0].Text != "belongs to first" {
		t.Fatalf("first conversation's tasks lost: %v", tasks)
	}
	if len(store.Tasks("2025-08-17T09:00")) != 0 {
		t.Fatalf("second conversation's tasks leaked into first")
	}

	if err := m.Switch(ctx, secondID); err != nil {
		t.Fatalf("Switch back failed: %v", err)
	}
	if got := store.Tasks("2025-08-17T09:00"); len(got) != 1 || got[0].Text != "belongs to second" {
		t.Fatalf("second conversation's tasks lost: %v", got)
	}
}

func TestDeleteLastConversationRefused(t *testing.T) {
	m, _ := newTestManager(t)
	err := m.Delete(context.Background(), m.ActiveID())
	if err == nil || !strings.Contains(err.Error(), "cannot delete the last conversation") {
		t.Fatalf("expected refusal, got %v", err)
	}
}

func TestDeleteActiveActivatesEarliestSurvivor(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	firstID := m.ActiveID()

	secondID, err := m.Create(ctx, "second")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := m.Delete(ctx, secondID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if m.ActiveID() != firstID {
		t.Fatalf("expected earliest survivor to become active")
	}
	if len(m.List()) != 1 {
		t.Fatalf("deleted conversation still listed")
	}
}

func TestDeleteUnknownConversation(t *testing.T) {
	m, _ := newTestManager(t)
	if err := m.Delete(context.Background(), "nope"); err == nil {
		t.Fatalf("expected error for unknown id")
	}
}

func TestTitleClaimedByFirstUserMessage(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	if err := m.AppendMessage(ctx, "user", "Plan the weekend hiking trip with everyone"); err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}
	title := m.ActiveTitle()
	if title == DefaultTitle {
		t.Fatalf("first user message should claim the title")
	}
	if len([]rune(title)) > 30 {
		t.Fatalf("title not truncated: %q", title)
	}

	if err := m.AppendMessage(ctx, "user", "different text entirely"); err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}
	if m.ActiveTitle() != title {
		t.Fatalf("title must be claimed only once")
	}
}

func TestAssistantMessageDoesNotClaimTitle(t *testing.T) {
	m, _ := newTestManager(t)
	if err := m.AppendMessage(context.Background(), "assistant", "Hello!"); err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}
	if m.ActiveTitle() != DefaultTitle {
		t.Fatalf("assistant message must not claim the title")
	}
}

func TestPersistenceAcrossReload(t *testing.T) {
	database, err := db.NewSQLiteDB(t.TempDir())
	if err != nil {
		t.Fatalf("NewSQLiteDB failed: %v", err)
	}
	defer database.Close()
	ctx := context.Background()

	m, err := NewManager(ctx, database, 30)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	if err := m.AppendMessage(ctx, "user", "remember this"); err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}
	m.TaskStore().CreateAt("2025-08-16T09:00", "persisted task")
	if err := m.SaveTasks(ctx); err != nil {
		t.Fatalf("SaveTasks failed: %v", err)
	}

	reloaded, err := NewManager(ctx, database, 30)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	messages := reloaded.Messages()
	if len(messages) != 1 || messages[0].Content != "remember this" {
		t.Fatalf("transcript lost: %v", messages)
	}
	tasks := reloaded.TaskStore().Tasks("2025-08-16T09:00")
	if len(tasks) != 1 || tasks[0].Text != "persisted task" {
		t.Fatalf("tasks lost: %v", tasks)
	}
	if reloaded.TaskStore().LastReferenced() != tasks[0].ID {
		t.Fatalf("pointer lost across reload")
	}
}

func TestSingleRecordStorage(t *testing.T) {
	m, database := newTestManager(t)
	ctx := context.Background()

	if _, err := m.Create(ctx, "second"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	raw, err := database.GetRecord(ctx, RecordKey)
	if err != nil {
		t.Fatalf("GetRecord failed: %v", err)
	}
	parsed := gjson.Parse(raw)
	if !parsed.IsObject() {
		t.Fatalf("record is not a JSON object: %q", raw)
	}
	count := 0
	parsed.ForEach(func(_, _ gjson.Result) bool { count++; return true })
	if count != 2 {
		t.Fatalf("expected both conversations in one record, got %d", count)
	}
}

func TestLoadSkipsUnreadableEntry(t *testing.T) {
	database, err := db.NewSQLiteDB(t.TempDir())
	if err != nil {
		t.Fatalf("NewSQLiteDB failed: %v", err)
	}
	defer database.Close()
	ctx := context.Background()

	record := `{"good": {"title": "Kept", "created_at": 1, "messages": [], "tasks": {"tasksByDatetime": {}, "taskIdCounter": 0, "lastReferencedTaskId": ""}}, "bad": "not an object"}`
	if err := database.PutRecord(ctx, RecordKey, record); err != nil {
		t.Fatalf("PutRecord failed: %v", err)
	}

	m, err := NewManager(ctx, database, 30)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	infos := m.List()
	if len(infos) != 1 || infos[0].Title != "Kept" {
		t.Fatalf("expected only the readable conversation, got %v", infos)
	}
}
