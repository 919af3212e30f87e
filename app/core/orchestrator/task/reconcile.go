package task

import (
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"taskpilot/app/core/orchestrator/extract"
)

// Action is one normalized action request. The wire payload is loosely typed
// and accepts synonymous keys; ParseActions maps those onto these canonical
// fields before the reconciler sees them.
type Action struct {
	Type     string // add, edit, delete, move, or the raw unknown name
	Text     string // task text for add, replacement text for edit
	ID       string
	Find     string
	Datetime string // bucket expression for add, destination for move
}

// Result reports the outcome of one applied action.
type Result struct {
	Success     bool
	Operation   string // created, edited, deleted, moved
	Task        Task
	OldText     string
	NewText     string
	DeletedText string
	From        string
	To          string
	Err         string
}

// ParseActions decodes an extracted JSON candidate into normalized actions.
// A single object is treated as a one-element batch. Returns false when the
// candidate is not valid JSON or not an object/array.
func ParseActions(jsonText string) ([]Action, bool) {
	if !gjson.Valid(jsonText) {
		return nil, false
	}
	parsed := gjson.Parse(jsonText)

	var items []gjson.Result
	switch {
	case parsed.IsArray():
		items = parsed.Array()
	case parsed.IsObject():
		items = []gjson.Result{parsed}
	default:
		return nil, false
	}

	actions := make([]Action, 0, len(items))
	for _, item := range items {
		actions = append(actions, normalizeAction(item))
	}
	return actions, true
}

func normalizeAction(item gjson.Result) Action {
	rawType := strings.ToLower(strings.TrimSpace(item.Get("action").String()))
	a := Action{Type: rawType}

	switch rawType {
	case "add", "create":
		a.Type = "add"
		a.Text = firstString(item, "task", "text", "description")
		a.Datetime = firstString(item, "datetime", "when", "time")
	case "edit", "update", "modify", "change":
		a.Type = "edit"
		a.ID = firstString(item, "id", "taskId")
		a.Find = firstString(item, "find", "search", "old", "original")
		a.Text = firstString(item, "task", "text", "new", "to")
	case "delete", "remove", "cancel":
		a.Type = "delete"
		a.ID = firstString(item, "id", "taskId")
		a.Find = firstString(item, "find", "search", "task", "text")
	case "move", "reschedule":
		a.Type = "move"
		a.ID = firstString(item, "id", "taskId")
		a.Find = firstString(item, "find", "search", "task")
		a.Datetime = firstString(item, "to", "datetime", "when")
	}
	return a
}

func firstString(item gjson.Result, keys ...string) string {
	for _, key := range keys {
		if value := item.Get(key); value.Exists() {
			if s := strings.TrimSpace(value.String()); s != "" {
				return s
			}
		}
	}
	return ""
}

// Reconciler applies action batches against a store. Actions run strictly in
// order; each successful mutation is persisted immediately, so later actions
// in the same batch can reference tasks earlier ones touched.
type Reconciler struct {
	store   *Store
	now     func() time.Time
	persist func()
}

func NewReconciler(store *Store, now func() time.Time, persist func()) *Reconciler {
	if now == nil {
		now = time.Now
	}
	return &Reconciler{store: store, now: now, persist: persist}
}

func (r *Reconciler) Apply(actions []Action) []Result {
	results := make([]Result, 0, len(actions))
	for _, a := range actions {
		results = append(results, r.applyOne(a))
	}
	return results
}

func (r *Reconciler) applyOne(a Action) Result {
	switch a.Type {
	case "add":
		return r.applyAdd(a)
	case "edit":
		return r.applyEdit(a)
	case "delete":
		return r.applyDelete(a)
	case "move":
		return r.applyMove(a)
	default:
		return Result{Err: fmt.Sprintf("unknown action type: %s", a.Type)}
	}
}

func (r *Reconciler) applyAdd(a Action) Result {
	text := strings.TrimSpace(a.Text)
	if text == "" {
		return Result{Err: "no task text provided"}
	}
	key := extract.ResolveDatetime(a.Datetime, r.now())
	created := r.store.CreateAt(key, text)
	r.save()
	return Result{Success: true, Operation: "created", Task: created, To: key}
}

func (r *Reconciler) applyEdit(a Action) Result {
	target, ok := r.resolveTarget(a)
	if !ok {
		return Result{Err: "could not find task to edit"}
	}
	newText := strings.TrimSpace(a.Text)
	if newText == "" {
		return Result{Err: "no new text provided for edit"}
	}
	oldText := target.Text
	r.store.Edit(target.ID, newText)
	r.save()
	target.Text = newText
	return Result{Success: true, Operation: "edited", Task: target, OldText: oldText, NewText: newText}
}

func (r *Reconciler) applyDelete(a Action) Result {
	target, ok := r.resolveTarget(a)
	if !ok {
		return Result{Err: "could not find task to delete"}
	}
	if !r.store.Delete(target.ID) {
		return Result{Err: "failed to delete task"}
	}
	r.save()
	return Result{Success: true, Operation: "deleted", DeletedText: target.Text}
}

func (r *Reconciler) applyMove(a Action) Result {
	target, ok := r.resolveTarget(a)
	if !ok {
		return Result{Err: "could not find task to move"}
	}
	newKey := extract.ResolveDatetime(a.Datetime, r.now())
	oldKey, moved := r.store.Move(target.ID, newKey)
	if !moved {
		return Result{Err: "failed to move task"}
	}
	r.save()
	return Result{Success: true, Operation: "moved", Task: target, From: oldKey, To: newKey}
}

// resolveTarget finds the task an action refers to. Resolution is exclusive
// on which field is present: an explicit id resolves by id or not at all, and
// search text resolves by fuzzy match or not at all. The last-referenced
// pointer is consulted only when the action carries neither.
func (r *Reconciler) resolveTarget(a Action) (Task, bool) {
	if a.ID != "" {
		_, t, ok := r.store.FindByID(a.ID)
		return t, ok
	}
	if a.Find != "" {
		if matches := r.store.FindByText(a.Find); len(matches) > 0 {
			return matches[0].Task, true
		}
		return Task{}, false
	}
	if last := r.store.LastReferenced(); last != "" {
		if _, t, ok := r.store.FindByID(last); ok {
			return t, true
		}
	}
	return Task{}, false
}

func (r *Reconciler) save() {
	if r.persist != nil {
		r.persist()
	}
}

// Summary renders a batch's results as a human-readable operation report.
func Summary(results []Result) string {
	var succeeded, failed []Result
	for _, res := range results {
		if res.Success {
			succeeded = append(succeeded, res)
		} else {
			failed = append(failed, res)
		}
	}

	var b strings.Builder
	if len(succeeded) > 0 {
		fmt.Fprintf(&b, "Completed %d task operation(s):\n", len(succeeded))
		for _, res := range succeeded {
			switch res.Operation {
			case "created":
				fmt.Fprintf(&b, "- Created: %q\n", res.Task.Text)
			case "edited":
				fmt.Fprintf(&b, "- Edited: %q -> %q\n", res.OldText, res.NewText)
			case "deleted":
				fmt.Fprintf(&b, "- Deleted: %q\n", res.DeletedText)
			case "moved":
				fmt.Fprintf(&b, "- Moved: %q to %s\n", res.Task.Text, extract.FormatKey(res.To))
			}
		}
	}
	if len(failed) > 0 {
		fmt.Fprintf(&b, "Failed %d operation(s):\n", len(failed))
		for _, res := range failed {
			fmt.Fprintf(&b, "- %s\n", res.Err)
		}
	}
	return strings.TrimSpace(b.String())
}
