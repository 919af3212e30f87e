package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"taskpilot/app/core/orchestrator/db"
	"taskpilot/app/core/orchestrator/task"
)

// RecordKey is the fixed storage key for the serialized conversations record.
const RecordKey = "conversations"

const DefaultTitle = "New Chat"

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Conversation struct {
	Title     string        `json:"title"`
	CreatedAt int64         `json:"created_at,omitempty"`
	Messages  []ChatMessage `json:"messages"`
	Tasks     task.State    `json:"tasks"`
}

// Info is a read-only listing entry for one conversation.
type Info struct {
	ID       string
	Title    string
	Active   bool
	Messages int
}

// Manager owns the conversation collection, the active-conversation pointer,
// and the live working task store. The live store and each conversation's
// stored snapshot never alias the same mutable structure: switching flushes
// the outgoing conversation's live state before loading the incoming one's.
type Manager struct {
	mu            sync.Mutex
	db            *db.DB
	conversations map[string]*Conversation
	activeID      string
	live          *task.Store
	raw           string // cached serialized record, mirrors kv_store
	titleMaxRunes int
}

func NewManager(ctx context.Context, database *db.DB, titleMaxRunes int) (*Manager, error) {
	if titleMaxRunes <= 0 {
		titleMaxRunes = 30
	}
	m := &Manager{
		db:            database,
		conversations: map[string]*Conversation{},
		live:          task.NewStore(),
		raw:           "{}",
		titleMaxRunes: titleMaxRunes,
	}
	if err := m.load(ctx); err != nil {
		return nil, err
	}
	if len(m.conversations) == 0 {
		if _, err := m.Create(ctx, ""); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Manager) load(ctx context.Context) error {
	raw, err := m.db.GetRecord(ctx, RecordKey)
	if err != nil {
		return fmt.Errorf("load conversations record: %w", err)
	}
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	m.raw = raw
	gjson.Parse(raw).ForEach(func(key, value gjson.Result) bool {
		var conv Conversation
		if err := json.Unmarshal([]byte(value.Raw), &conv); err != nil {
			log.Printf("[Session] Skipping unreadable conversation %s: %v", key.String(), err)
			return true
		}
		if conv.Tasks.TasksByDatetime == nil {
			conv.Tasks.TasksByDatetime = map[string][]task.Task{}
		}
		m.conversations[key.String()] = &conv
		return true
	})

	if len(m.conversations) == 0 {
		return nil
	}
	m.activeID = m.earliestID("")
	m.live.Restore(m.conversations[m.activeID].Tasks)
	return nil
}

// Create flushes the current conversation, then creates and activates a new
// one with an empty task state.
func (m *Manager) Create(ctx context.Context, title string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.activeID != "" {
		if err := m.flushLocked(ctx); err != nil {
			return "", err
		}
	}

	title = strings.TrimSpace(title)
	if title == "" {
		title = DefaultTitle
	}
	id := uuid.NewString()
	conv := &Conversation{
		Title:     title,
		CreatedAt: time.Now().UnixNano(),
		Messages:  []ChatMessage{},
		Tasks:     task.EmptyState(),
	}
	m.conversations[id] = conv
	m.activeID = id
	m.live.Restore(conv.Tasks)

	if err := m.persistLocked(ctx, id); err != nil {
		return "", err
	}
	return id, nil
}

// Switch flushes the outgoing conversation's live task state into its stored
// snapshot, then loads the incoming one's snapshot into the working set.
func (m *Manager) Switch(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[id]
	if !ok {
		return fmt.Errorf("conversation not found: %s", id)
	}
	if id == m.activeID {
		return nil
	}
	if err := m.flushLocked(ctx); err != nil {
		return err
	}
	m.activeID = id
	m.live.Restore(conv.Tasks)
	return nil
}

// Delete removes a conversation. Deleting the sole remaining conversation is
// refused; deleting the active one activates the earliest-created survivor.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.conversations[id]; !ok {
		return fmt.Errorf("conversation not found: %s", id)
	}
	if len(m.conversations) <= 1 {
		return fmt.Errorf("cannot delete the last conversation; create a new one first")
	}

	if id == m.activeID {
		survivor := m.earliestID(id)
		m.activeID = survivor
		m.live.Restore(m.conversations[survivor].Tasks)
	}
	delete(m.conversations, id)

	updated, err := sjson.Delete(m.raw, escapePath(id))
	if err != nil {
		return fmt.Errorf("remove conversation from record: %w", err)
	}
	m.raw = updated
	return m.db.PutRecord(ctx, RecordKey, m.raw)
}

// AppendMessage appends a turn to the active conversation and persists. The
// first user message claims the title while it is still the default.
func (m *Manager) AppendMessage(ctx context.Context, role string, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[m.activeID]
	if !ok {
		return fmt.Errorf("no active conversation")
	}
	conv.Messages = append(conv.Messages, ChatMessage{Role: role, Content: content})
	if role == "user" && conv.Title == DefaultTitle {
		conv.Title = truncateRunes(strings.TrimSpace(content), m.titleMaxRunes)
		if conv.Title == "" {
			conv.Title = DefaultTitle
		}
	}
	return m.persistLocked(ctx, m.activeID)
}

// SaveTasks mirrors the live task store into the active conversation's stored
// snapshot and persists. Called after every task mutation.
func (m *Manager) SaveTasks(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flushLocked(ctx)
}

// TaskStore returns the live working task store for the active conversation.
// The pointer is stable across switches; Switch swaps its contents.
func (m *Manager) TaskStore() *task.Store {
	return m.live
}

func (m *Manager) ActiveID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeID
}

func (m *Manager) ActiveTitle() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if conv, ok := m.conversations[m.activeID]; ok {
		return conv.Title
	}
	return ""
}

// Messages returns a copy of the active conversation's transcript.
func (m *Manager) Messages() []ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.conversations[m.activeID]
	if !ok {
		return nil
	}
	return append([]ChatMessage(nil), conv.Messages...)
}

// List returns all conversations in creation order.
func (m *Manager) List() []Info {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.conversations))
	for id := range m.conversations {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := m.conversations[ids[i]], m.conversations[ids[j]]
		if a.CreatedAt != b.CreatedAt {
			return a.CreatedAt < b.CreatedAt
		}
		return ids[i] < ids[j]
	})

	infos := make([]Info, 0, len(ids))
	for _, id := range ids {
		conv := m.conversations[id]
		infos = append(infos, Info{
			ID:       id,
			Title:    conv.Title,
			Active:   id == m.activeID,
			Messages: len(conv.Messages),
		})
	}
	return infos
}

func (m *Manager) flushLocked(ctx context.Context) error {
	conv, ok := m.conversations[m.activeID]
	if !ok {
		return nil
	}
	conv.Tasks = m.live.Snapshot()
	return m.persistLocked(ctx, m.activeID)
}

func (m *Manager) persistLocked(ctx context.Context, id string) error {
	conv, ok := m.conversations[id]
	if !ok {
		return fmt.Errorf("conversation not found: %s", id)
	}
	data, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("encode conversation: %w", err)
	}
	updated, err := sjson.SetRaw(m.raw, escapePath(id), string(data))
	if err != nil {
		return fmt.Errorf("update conversations record: %w", err)
	}
	m.raw = updated
	return m.db.PutRecord(ctx, RecordKey, m.raw)
}

func (m *Manager) earliestID(skip string) string {
	best := ""
	var bestCreated int64
	for id, conv := range m.conversations {
		if id == skip {
			continue
		}
		if best == "" || conv.CreatedAt < bestCreated || (conv.CreatedAt == bestCreated && id < best) {
			best = id
			bestCreated = conv.CreatedAt
		}
	}
	return best
}

// escapePath protects sjson/gjson path metacharacters in conversation ids.
func escapePath(id string) string {
	replacer := strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`, "|", `\|`, "#", `\#`, "@", `\@`)
	return replacer.Replace(id)
}

func truncateRunes(text string, maxRunes int) string {
	if maxRunes <= 0 || utf8.RuneCountInString(text) <= maxRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxRunes])
}
