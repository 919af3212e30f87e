package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"taskpilot/app/core/orchestrator/extract"
	"taskpilot/app/core/orchestrator/session"
	"taskpilot/app/pkg/types"
)

// Executor handles slash commands: local conversation and task operations
// that never involve the language-model backend.
type Executor struct {
	sessions *session.Manager
	now      func() time.Time
}

func NewExecutor(sessions *session.Manager) *Executor {
	return &Executor{sessions: sessions, now: time.Now}
}

// SetClock overrides the wall clock, for tests.
func (e *Executor) SetClock(now func() time.Time) {
	if now != nil {
		e.now = now
	}
}

// ExecuteSlash runs msg.Content as a slash command. The second return value
// reports whether the message was handled as a command at all.
func (e *Executor) ExecuteSlash(ctx context.Context, msg types.Message) (string, bool, error) {
	cmd := strings.TrimSpace(strings.TrimPrefix(msg.Content, "/"))
	if cmd == "" {
		return "", false, nil
	}
	parts := strings.Fields(cmd)
	name := strings.ToLower(parts[0])
	rest := strings.TrimSpace(strings.TrimPrefix(cmd, parts[0]))

	switch name {
	case "help":
		return helpText, true, nil
	case "chats":
		return e.listChats(), true, nil
	case "new":
		return e.newChat(ctx, rest)
	case "switch":
		return e.switchChat(ctx, rest)
	case "delete":
		return e.deleteChat(ctx, rest)
	case "tasks":
		return e.listTasks(), true, nil
	case "add":
		return e.addTask(ctx, rest)
	case "edit":
		return e.editTask(ctx, parts[1:])
	case "del":
		return e.deleteTask(ctx, rest)
	default:
		return "", false, nil
	}
}

const helpText = `Commands:
/help                     show this help
/chats                    list conversations
/new [title]              create and switch to a new conversation
/switch <id>              switch to a conversation
/delete <id>              delete a conversation (the last one is kept)
/tasks                    list the current conversation's tasks
/add <text> [@ <when>]    add a task ("when" may be natural language)
/edit <task-id> <text>    replace a task's text
/del <task-id>            delete a task
Anything else is sent to the assistant.`

func (e *Executor) listChats() string {
	var b strings.Builder
	for _, info := range e.sessions.List() {
		marker := " "
		if info.Active {
			marker = "*"
		}
		fmt.Fprintf(&b, "%s %s  %s (%d messages)\n", marker, info.ID, info.Title, info.Messages)
	}
	return strings.TrimSpace(b.String())
}

func (e *Executor) newChat(ctx context.Context, title string) (string, bool, error) {
	id, err := e.sessions.Create(ctx, title)
	if err != nil {
		return "", true, err
	}
	return fmt.Sprintf("Created and switched to conversation %s", id), true, nil
}

func (e *Executor) switchChat(ctx context.Context, id string) (string, bool, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", true, fmt.Errorf("usage: /switch <id>")
	}
	if err := e.sessions.Switch(ctx, id); err != nil {
		return "", true, err
	}
	return fmt.Sprintf("Switched to conversation %s (%s)", id, e.sessions.ActiveTitle()), true, nil
}

func (e *Executor) deleteChat(ctx context.Context, id string) (string, bool, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", true, fmt.Errorf("usage: /delete <id>")
	}
	if err := e.sessions.Delete(ctx, id); err != nil {
		return "", true, err
	}
	return fmt.Sprintf("Deleted conversation %s. Active: %s", id, e.sessions.ActiveID()), true, nil
}

func (e *Executor) listTasks() string {
	store := e.sessions.TaskStore()
	keys := store.SortedKeys()
	if len(keys) == 0 {
		return "No tasks yet for this conversation."
	}
	var b strings.Builder
	for _, key := range keys {
		fmt.Fprintf(&b, "%s\n", extract.FormatKey(key))
		for _, t := range store.Tasks(key) {
			fmt.Fprintf(&b, "  %s: %s\n", t.ID, t.Text)
		}
	}
	return strings.TrimSpace(b.String())
}

func (e *Executor) addTask(ctx context.Context, rest string) (string, bool, error) {
	text := rest
	when := ""
	if idx := strings.LastIndex(rest, " @ "); idx >= 0 {
		text = rest[:idx]
		when = rest[idx+3:]
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", true, fmt.Errorf("please enter a task description")
	}
	store := e.sessions.TaskStore()
	key := extract.ResolveDatetime(when, e.now())
	created := store.CreateAt(key, text)
	if err := e.sessions.SaveTasks(ctx); err != nil {
		return "", true, err
	}
	return fmt.Sprintf("Created %s: %q at %s", created.ID, created.Text, extract.FormatKey(key)), true, nil
}

func (e *Executor) editTask(ctx context.Context, args []string) (string, bool, error) {
	if len(args) < 2 {
		return "", true, fmt.Errorf("usage: /edit <task-id> <text>")
	}
	id := args[0]
	text := strings.TrimSpace(strings.Join(args[1:], " "))
	if text == "" {
		return "", true, fmt.Errorf("please enter the new task text")
	}
	store := e.sessions.TaskStore()
	if !store.Edit(id, text) {
		return "", true, fmt.Errorf("task not found: %s", id)
	}
	if err := e.sessions.SaveTasks(ctx); err != nil {
		return "", true, err
	}
	return fmt.Sprintf("Updated %s to: %s", id, text), true, nil
}

func (e *Executor) deleteTask(ctx context.Context, id string) (string, bool, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", true, fmt.Errorf("usage: /del <task-id>")
	}
	store := e.sessions.TaskStore()
	if !store.Delete(id) {
		return "", true, fmt.Errorf("task not found: %s", id)
	}
	if err := e.sessions.SaveTasks(ctx); err != nil {
		return "", true, err
	}
	return fmt.Sprintf("Deleted task %s", id), true, nil
}
