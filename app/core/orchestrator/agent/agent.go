package agent

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	config "taskpilot/app/configs"
	"taskpilot/app/core/orchestrator/backend"
	"taskpilot/app/core/orchestrator/command"
	"taskpilot/app/core/orchestrator/extract"
	"taskpilot/app/core/orchestrator/session"
	"taskpilot/app/core/orchestrator/task"
	"taskpilot/app/pkg/types"
)

// DefaultAgent drives one chat turn: local shorthand edits first, otherwise a
// prompt embedding the current tasks and history goes to the backend, the
// reply's JSON byproduct is reconciled against the task store, and the user
// gets the operation summary plus the remaining prose.
type DefaultAgent struct {
	name       string
	sessions   *session.Manager
	generator  backend.Generator
	command    *command.Executor
	reconciler *task.Reconciler
	chatCfg    config.ChatConfig
	now        func() time.Time

	// Serializes turns: every task-store mutation happens inside exactly one
	// in-flight Process call.
	mu sync.Mutex
}

func NewAgent(name string, sessions *session.Manager, generator backend.Generator, chatCfg config.ChatConfig) *DefaultAgent {
	a := &DefaultAgent{
		name:      name,
		sessions:  sessions,
		generator: generator,
		chatCfg:   chatCfg,
		now:       time.Now,
	}
	a.command = command.NewExecutor(sessions)
	a.reconciler = task.NewReconciler(sessions.TaskStore(), func() time.Time { return a.now() }, func() {
		if err := sessions.SaveTasks(context.Background()); err != nil {
			log.Printf("[Agent] Failed to persist task state: %v", err)
		}
	})
	return a
}

// SetClock overrides the wall clock, for tests.
func (a *DefaultAgent) SetClock(now func() time.Time) {
	if now != nil {
		a.now = now
		a.command.SetClock(now)
	}
}

func (a *DefaultAgent) Name() string {
	return a.name
}

func (a *DefaultAgent) Process(ctx context.Context, msg types.Message) (types.Message, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	trimmed := strings.TrimSpace(msg.Content)
	if trimmed == "" {
		return a.newReply(msg, "Please enter a message first.", nil), nil
	}
	msg.Content = trimmed

	if strings.HasPrefix(trimmed, "/") {
		out, handled, err := a.command.ExecuteSlash(ctx, msg)
		if handled {
			if err != nil {
				return a.newReply(msg, fmt.Sprintf("Command failed: %v", err), map[string]interface{}{"command_error": true}), nil
			}
			return a.newReply(msg, out, nil), nil
		}
	}

	if err := a.sessions.AppendMessage(ctx, types.MessageRoleUser, trimmed); err != nil {
		log.Printf("[Agent] Failed to persist user message: %v", err)
	}

	if reply, handled := a.tryShorthandEdit(ctx, msg, trimmed); handled {
		return reply, nil
	}

	prompt := a.buildPrompt(trimmed)
	output, err := a.generator.Generate(ctx, prompt)
	if err != nil {
		errText := fmt.Sprintf("Error: %v", err)
		if appendErr := a.sessions.AppendMessage(ctx, types.MessageRoleAssistant, errText); appendErr != nil {
			log.Printf("[Agent] Failed to persist error reply: %v", appendErr)
		}
		return a.newReply(msg, errText, map[string]interface{}{"transport_error": true}), nil
	}

	display := a.reconcileReply(output)
	if err := a.sessions.AppendMessage(ctx, types.MessageRoleAssistant, display); err != nil {
		log.Printf("[Agent] Failed to persist assistant reply: %v", err)
	}
	return a.newReply(msg, display, nil), nil
}

// tryShorthandEdit applies "edit it to X" style messages locally. Without a
// last-referenced task the message falls through to the backend.
func (a *DefaultAgent) tryShorthandEdit(ctx context.Context, msg types.Message, trimmed string) (types.Message, bool) {
	newText, ok := extract.EditShorthand(trimmed)
	if !ok {
		return types.Message{}, false
	}
	store := a.sessions.TaskStore()
	lastID := store.LastReferenced()
	if lastID == "" || !store.Edit(lastID, newText) {
		return types.Message{}, false
	}
	if err := a.sessions.SaveTasks(ctx); err != nil {
		log.Printf("[Agent] Failed to persist shorthand edit: %v", err)
	}
	confirmation := fmt.Sprintf("Updated the previous task to: %s", newText)
	if err := a.sessions.AppendMessage(ctx, types.MessageRoleAssistant, confirmation); err != nil {
		log.Printf("[Agent] Failed to persist shorthand confirmation: %v", err)
	}
	return a.newReply(msg, confirmation, map[string]interface{}{"shorthand_edit": true}), true
}

// reconcileReply extracts the JSON byproduct from the model output, applies
// the actions, and assembles the display text. A candidate that fails to
// parse means no actions; the full reply stays visible.
func (a *DefaultAgent) reconcileReply(output string) string {
	jsonText, prose, found := extract.FirstJSON(output)
	if !found {
		return strings.TrimSpace(output)
	}
	actions, ok := task.ParseActions(jsonText)
	if !ok {
		log.Printf("[Agent] Ignoring unparseable JSON byproduct (%d bytes)", len(jsonText))
		return strings.TrimSpace(output)
	}

	var summary string
	if len(actions) > 0 {
		summary = task.Summary(a.reconciler.Apply(actions))
	}

	display := strings.TrimSpace(prose)
	if display == "" {
		display = strings.TrimSpace(output)
	}
	if summary != "" {
		if display == "" {
			return summary
		}
		return summary + "\n\n" + display
	}
	return display
}

func (a *DefaultAgent) buildPrompt(userInput string) string {
	var b strings.Builder
	b.WriteString("You are ")
	b.WriteString(a.name)
	b.WriteString(", an advanced task management assistant. Current time is: ")
	b.WriteString(a.now().Format("Mon, Jan 2 2006 3:04 PM"))
	b.WriteString("\n\n")
	b.WriteString(instructionBlock)

	messages := a.sessions.Messages()
	if len(messages) > 1 {
		history := messages[:len(messages)-1]
		if len(history) > a.chatCfg.HistoryLimit {
			history = history[len(history)-a.chatCfg.HistoryLimit:]
		}
		b.WriteString("\n\nPrevious conversation:\n")
		for _, m := range history {
			role := "User"
			if m.Role == types.MessageRoleAssistant {
				role = "Assistant"
			}
			b.WriteString(role)
			b.WriteString(": ")
			b.WriteString(m.Content)
			b.WriteString("\n")
		}
	}

	lines := a.sessions.TaskStore().ContextLines()
	if len(lines) > 0 {
		b.WriteString("\nCurrent tasks:\n")
		for _, line := range lines {
			b.WriteString(line)
			b.WriteString("\n")
		}
	} else {
		b.WriteString("\nNo current tasks.\n")
	}

	b.WriteString("\nUser said: ")
	b.WriteString(userInput)
	return b.String()
}

const instructionBlock = `CRITICAL INSTRUCTIONS FOR TASK OPERATIONS:
Respond with JSON first when handling task requests, then a short friendly explanation.

JSON FORMAT - use this exact structure for all task operations:
[
  {
    "action": "add|edit|delete|move",
    "task": "task description",
    "datetime": "YYYY-MM-DDTHH:MM",
    "id": "task_id_if_editing_or_deleting",
    "find": "text_to_search_for_if_no_id",
    "to": "new_datetime_if_moving"
  }
]

SUPPORTED ACTIONS:
1. ADD/CREATE: {"action": "add", "task": "Buy groceries", "datetime": "2025-08-16T17:00"}
2. EDIT/UPDATE: {"action": "edit", "id": "t3", "task": "Buy organic groceries"} OR {"action": "edit", "find": "Buy groceries", "task": "Buy organic groceries"}
3. DELETE/REMOVE: {"action": "delete", "id": "t3"} OR {"action": "delete", "find": "Buy groceries"}
4. MOVE/RESCHEDULE: {"action": "move", "id": "t3", "to": "2025-08-17T10:00"} OR {"action": "move", "find": "groceries", "to": "tomorrow 10am"}

DATETIME HANDLING:
- Always convert natural language to the exact format YYYY-MM-DDTHH:MM.
- If no time is specified, pick a sensible default (9am for morning tasks, 6pm for evening).

TASK IDENTIFICATION FOR EDIT/DELETE/MOVE:
- Use "id" when you know the exact task id from the current task list.
- Use "find" to search by text content; the system finds the best match.

EXAMPLES:
User: "Change my grocery task to include organic vegetables"
Response: [{"action": "edit", "find": "grocery", "task": "Buy organic vegetables and groceries"}]

User: "Move my dentist appointment to Friday at 2pm"
Response: [{"action": "move", "find": "dentist", "to": "Friday 2pm"}]

User: "Delete the task about cleaning"
Response: [{"action": "delete", "find": "cleaning"}]`

func (a *DefaultAgent) newReply(msg types.Message, content string, meta map[string]interface{}) types.Message {
	if meta == nil {
		meta = map[string]interface{}{}
	}
	for k, v := range msg.Meta {
		if _, exists := meta[k]; !exists {
			meta[k] = v
		}
	}
	return types.Message{
		ID:             fmt.Sprintf("asst-%d", time.Now().UnixNano()),
		Content:        content,
		Role:           types.MessageRoleAssistant,
		ChannelID:      msg.ChannelID,
		UserID:         msg.UserID,
		ConversationID: a.sessions.ActiveID(),
		RequestID:      msg.RequestID,
		Meta:           meta,
	}
}
