package task

import (
	"strings"
	"testing"
	"time"
)

var reconcileNow = time.Date(2025, 8, 15, 10, 0, 0, 0, time.Local)

func newTestReconciler(t *testing.T) (*Store, *Reconciler, *int) {
	t.Helper()
	store := NewStore()
	persisted := 0
	rec := NewReconciler(store, func() time.Time { return reconcileNow }, func() { persisted++ })
	return store, rec, &persisted
}

func TestParseActionsArray(t *testing.T) {
	actions, ok := ParseActions(`[{"action": "add", "task": "Buy milk", "datetime": "tomorrow 5pm"}]`)
	if !ok || len(actions) != 1 {
		t.Fatalf("parse failed: ok=%v actions=%v", ok, actions)
	}
	a := actions[0]
	if a.Type != "add" || a.Text != "Buy milk" || a.Datetime != "tomorrow 5pm" {
		t.Fatalf("unexpected action: %+v", a)
	}
}

func TestParseActionsSingleObject(t *testing.T) {
	actions, ok := ParseActions(`{"action": "delete", "id": "t1"}`)
	if !ok || len(actions) != 1 {
		t.Fatalf("parse failed: ok=%v actions=%v", ok, actions)
	}
	if actions[0].Type != "delete" || actions[0].ID != "t1" {
		t.Fatalf("unexpected action: %+v", actions[0])
	}
}

func TestParseActionsSynonymKeys(t *testing.T) {
	actions, ok := ParseActions(`[
		{"action": "create", "text": "walk dog", "when": "today 6pm"},
		{"action": "update", "search": "walk dog", "new": "walk the dog"},
		{"action": "remove", "taskId": "t9"},
		{"action": "reschedule", "task": "walk the dog", "when": "tomorrow"}
	]`)
	if !ok || len(actions) != 4 {
		t.Fatalf("parse failed: ok=%v actions=%v", ok, actions)
	}
	if actions[0].Type != "add" || actions[0].Text != "walk dog" || actions[0].Datetime != "today 6pm" {
		t.Fatalf("create synonyms not mapped: %+v", actions[0])
	}
	if actions[1].Type != "edit" || actions[1].Find != "walk dog" || actions[1].Text != "walk the dog" {
		t.Fatalf("update synonyms not mapped: %+v", actions[1])
	}
	if actions[2].Type != "delete" || actions[2].ID != "t9" {
		t.Fatalf("remove synonyms not mapped: %+v", actions[2])
	}
	if actions[3].Type != "move" || actions[3].Find != "walk the dog" || actions[3].Datetime != "tomorrow" {
		t.Fatalf("reschedule synonyms not mapped: %+v", actions[3])
	}
}

func TestParseActionsRejectsInvalid(t *testing.T) {
	if _, ok := ParseActions(`[{"action": "add"`); ok {
		t.Fatalf("truncated JSON should not parse")
	}
	if _, ok := ParseActions(`"just a string"`); ok {
		t.Fatalf("bare string should not parse")
	}
}

func TestApplyAdd(t *testing.T) {
	store, rec, persisted := newTestReconciler(t)

	results := rec.Apply([]Action{{Type: "add", Text: "Buy milk", Datetime: "tomorrow 5pm"}})
	if len(results) != 1 || !results[0].Success || results[0].Operation != "created" {
		t.Fatalf("unexpected results: %+v", results)
	}
	if results[0].To != "2025-08-16T17:00" {
		t.Fatalf("unexpected bucket key: %q", results[0].To)
	}
	tasks := store.Tasks("2025-08-16T17:00")
	if len(tasks) != 1 || tasks[0].Text != "Buy milk" {
		t.Fatalf("task not stored: %v", tasks)
	}
	if *persisted != 1 {
		t.Fatalf("expected one persist, got %d", *persisted)
	}
}

func TestApplyAddWithoutText(t *testing.T) {
	store, rec, persisted := newTestReconciler(t)
	results := rec.Apply([]Action{{Type: "add"}})
	if results[0].Success || results[0].Err != "no task text provided" {
		t.Fatalf("unexpected result: %+v", results[0])
	}
	if store.Len() != 0 || *persisted != 0 {
		t.Fatalf("failed add must not mutate or persist")
	}
}

func TestApplyEditByFind(t *testing.T) {
	store, rec, _ := newTestReconciler(t)
	store.CreateAt("2025-08-16T09:00", "buy groceries")

	results := rec.Apply([]Action{{Type: "edit", Find: "grocery", Text: "buy organic groceries"}})
	if !results[0].Success || results[0].OldText != "buy groceries" || results[0].NewText != "buy organic groceries" {
		t.Fatalf("unexpected result: %+v", results[0])
	}
	if store.Tasks("2025-08-16T09:00")[0].Text != "buy organic groceries" {
		t.Fatalf("edit not applied")
	}
}

func TestApplyEditFallsBackToLastReferenced(t *testing.T) {
	store, rec, _ := newTestReconciler(t)
	created := store.CreateAt("2025-08-16T09:00", "draft report")

	results := rec.Apply([]Action{{Type: "edit", Text: "finish report"}})
	if !results[0].Success {
		t.Fatalf("edit should target last-referenced task: %+v", results[0])
	}
	if _, got, _ := store.FindByID(created.ID); got.Text != "finish report" {
		t.Fatalf("edit not applied to pointed task")
	}
}

func TestApplyEditWithoutText(t *testing.T) {
	store, rec, _ := newTestReconciler(t)
	store.CreateAt("2025-08-16T09:00", "keep me")

	results := rec.Apply([]Action{{Type: "edit", Find: "keep me"}})
	if results[0].Success || results[0].Err != "no new text provided for edit" {
		t.Fatalf("unexpected result: %+v", results[0])
	}
	if store.Tasks("2025-08-16T09:00")[0].Text != "keep me" {
		t.Fatalf("failed edit must not mutate")
	}
}

func TestApplyDeleteMissingTarget(t *testing.T) {
	store, rec, persisted := newTestReconciler(t)
	results := rec.Apply([]Action{{Type: "delete", Find: "nothing here"}})
	if results[0].Success || results[0].Err != "could not find task to delete" {
		t.Fatalf("unexpected result: %+v", results[0])
	}
	if store.Len() != 0 || *persisted != 0 {
		t.Fatalf("failed delete must not persist")
	}
}

func TestApplyDeleteNonexistentIDLeavesStoreUnchanged(t *testing.T) {
	store, rec, persisted := newTestReconciler(t)
	created := store.CreateAt("2025-08-16T09:00", "keep me safe")

	results := rec.Apply([]Action{{Type: "delete", ID: "t999"}})
	if results[0].Success || results[0].Err != "could not find task to delete" {
		t.Fatalf("unexpected result: %+v", results[0])
	}
	if store.Len() != 1 || *persisted != 0 {
		t.Fatalf("delete of a nonexistent id must leave the store unchanged")
	}
	if store.LastReferenced() != created.ID {
		t.Fatalf("pointer must survive a failed delete")
	}
}

func TestApplyDeleteUnmatchedFindDoesNotUsePointer(t *testing.T) {
	store, rec, persisted := newTestReconciler(t)
	store.CreateAt("2025-08-16T09:00", "water the plants")

	results := rec.Apply([]Action{{Type: "delete", Find: "completely unrelated zebra quantum"}})
	if results[0].Success || results[0].Err != "could not find task to delete" {
		t.Fatalf("unexpected result: %+v", results[0])
	}
	if store.Len() != 1 || *persisted != 0 {
		t.Fatalf("an unmatched search must not fall back to the pointed task")
	}
}

func TestApplyEditExplicitIDDoesNotFallBack(t *testing.T) {
	store, rec, _ := newTestReconciler(t)
	store.CreateAt("2025-08-16T09:00", "original text")

	results := rec.Apply([]Action{{Type: "edit", ID: "t999", Text: "hijacked"}})
	if results[0].Success || results[0].Err != "could not find task to edit" {
		t.Fatalf("unexpected result: %+v", results[0])
	}
	if store.Tasks("2025-08-16T09:00")[0].Text != "original text" {
		t.Fatalf("edit with an unknown id must not touch another task")
	}
}

func TestApplyMove(t *testing.T) {
	store, rec, _ := newTestReconciler(t)
	created := store.CreateAt("2025-08-16T09:00", "dentist")

	results := rec.Apply([]Action{{Type: "move", ID: created.ID, Datetime: "2025-08-17T14:00"}})
	if !results[0].Success || results[0].From != "2025-08-16T09:00" || results[0].To != "2025-08-17T14:00" {
		t.Fatalf("unexpected result: %+v", results[0])
	}
	if len(store.Tasks("2025-08-17T14:00")) != 1 {
		t.Fatalf("task not moved")
	}
}

func TestApplyUnknownActionType(t *testing.T) {
	_, rec, persisted := newTestReconciler(t)
	results := rec.Apply([]Action{{Type: "archive"}})
	if results[0].Success || results[0].Err != "unknown action type: archive" {
		t.Fatalf("unexpected result: %+v", results[0])
	}
	if *persisted != 0 {
		t.Fatalf("unknown action must not persist")
	}
}

func TestApplyBatchSequencing(t *testing.T) {
	store, rec, _ := newTestReconciler(t)

	// The add sets the last-referenced pointer, so the bare edit that follows
	// targets the task created moments earlier in the same batch.
	results := rec.Apply([]Action{
		{Type: "add", Text: "draft email", Datetime: "2025-08-16T09:00"},
		{Type: "edit", Text: "draft and send email"},
	})
	if !results[0].Success || !results[1].Success {
		t.Fatalf("batch failed: %+v", results)
	}
	if store.Tasks("2025-08-16T09:00")[0].Text != "draft and send email" {
		t.Fatalf("second action did not see the first one's task")
	}
}

func TestApplyBatchNoRollback(t *testing.T) {
	store, rec, _ := newTestReconciler(t)

	results := rec.Apply([]Action{
		{Type: "add", Text: "survives", Datetime: "2025-08-16T09:00"},
		{Type: "add"},
	})
	if !results[0].Success || results[1].Success {
		t.Fatalf("unexpected results: %+v", results)
	}
	if store.Len() != 1 {
		t.Fatalf("earlier success must survive a later failure")
	}
}

func TestSummary(t *testing.T) {
	results := []Result{
		{Success: true, Operation: "created", Task: Task{Text: "Buy milk"}},
		{Success: true, Operation: "edited", OldText: "a", NewText: "b"},
		{Err: "could not find task to delete"},
	}
	got := Summary(results)
	if !strings.HasPrefix(got, "Completed 2 task operation(s):") {
		t.Fatalf("unexpected summary header: %q", got)
	}
	if !strings.Contains(got, `- Created: "Buy milk"`) || !strings.Contains(got, `- Edited: "a" -> "b"`) {
		t.Fatalf("missing success lines: %q", got)
	}
	if !strings.Contains(got, "Failed 1 operation(s):") || !strings.Contains(got, "- could not find task to delete") {
		t.Fatalf("missing failure lines: %q", got)
	}
}
