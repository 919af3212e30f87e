package task

import (
	"fmt"
	"sort"
	"strings"

	"taskpilot/app/core/orchestrator/extract"
)

// Store holds one conversation's live task data: a bucket-key → ordered task
// list mapping, the id counter, and the last-referenced pointer. A bucket key
// is present only while its list is non-empty, and an id appears in at most
// one bucket at a time.
type Store struct {
	buckets        map[string][]Task
	counter        int
	lastReferenced string
}

func NewStore() *Store {
	return &Store{buckets: map[string][]Task{}}
}

// CreateAt appends a new task to the bucket for key and points the
// last-referenced pointer at it.
func (s *Store) CreateAt(key string, text string) Task {
	s.counter++
	t := Task{ID: fmt.Sprintf("t%d", s.counter), Text: strings.TrimSpace(text)}
	s.buckets[key] = append(s.buckets[key], t)
	s.lastReferenced = t.ID
	return t
}

// FindByID returns the bucket key and task for id.
func (s *Store) FindByID(id string) (string, Task, bool) {
	for key, tasks := range s.buckets {
		for _, t := range tasks {
			if t.ID == id {
				return key, t, true
			}
		}
	}
	return "", Task{}, false
}

// Edit replaces the task's text in place; bucket membership is unchanged.
func (s *Store) Edit(id string, newText string) bool {
	for key, tasks := range s.buckets {
		for i, t := range tasks {
			if t.ID == id {
				s.buckets[key][i].Text = strings.TrimSpace(newText)
				s.lastReferenced = id
				return true
			}
		}
	}
	return false
}

// Delete removes the task from its bucket, pruning the bucket when it becomes
// empty and clearing the last-referenced pointer if it pointed at the task.
func (s *Store) Delete(id string) bool {
	for key, tasks := range s.buckets {
		for i, t := range tasks {
			if t.ID == id {
				s.buckets[key] = append(tasks[:i:i], tasks[i+1:]...)
				if len(s.buckets[key]) == 0 {
					delete(s.buckets, key)
				}
				if s.lastReferenced == id {
					s.lastReferenced = ""
				}
				return true
			}
		}
	}
	return false
}

// Move removes the task from its current bucket and appends it to newKey's
// list. The old bucket is pruned when emptied.
func (s *Store) Move(id string, newKey string) (string, bool) {
	oldKey, t, ok := s.FindByID(id)
	if !ok {
		return "", false
	}
	tasks := s.buckets[oldKey]
	for i := range tasks {
		if tasks[i].ID == id {
			s.buckets[oldKey] = append(tasks[:i:i], tasks[i+1:]...)
			break
		}
	}
	if len(s.buckets[oldKey]) == 0 {
		delete(s.buckets, oldKey)
	}
	s.buckets[newKey] = append(s.buckets[newKey], t)
	s.lastReferenced = id
	return oldKey, true
}

// LastReferenced returns the id of the most recently touched task, or "".
func (s *Store) LastReferenced() string {
	return s.lastReferenced
}

// SortedKeys returns bucket keys in chronological (lexicographic) order.
func (s *Store) SortedKeys() []string {
	keys := make([]string, 0, len(s.buckets))
	for key := range s.buckets {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Tasks returns a copy of the bucket's task list.
func (s *Store) Tasks(key string) []Task {
	return append([]Task(nil), s.buckets[key]...)
}

// Len returns the total number of tasks across all buckets.
func (s *Store) Len() int {
	total := 0
	for _, tasks := range s.buckets {
		total += len(tasks)
	}
	return total
}

// Snapshot returns a value copy of the full store state. The live store and
// the snapshot never alias the same mutable structure.
func (s *Store) Snapshot() State {
	return State{
		TasksByDatetime:      s.buckets,
		TaskIDCounter:        s.counter,
		LastReferencedTaskID: s.lastReferenced,
	}.Clone()
}

// Restore replaces the store contents with a value copy of st.
func (s *Store) Restore(st State) {
	cloned := st.Clone()
	if cloned.TasksByDatetime == nil {
		cloned.TasksByDatetime = map[string][]Task{}
	}
	s.buckets = cloned.TasksByDatetime
	s.counter = cloned.TaskIDCounter
	s.lastReferenced = cloned.LastReferencedTaskID
}

// ContextLines renders every task as `ID: "text" | formatted time`, in
// chronological bucket order, for embedding into the model prompt.
func (s *Store) ContextLines() []string {
	var lines []string
	for _, key := range s.SortedKeys() {
		for _, t := range s.buckets[key] {
			lines = append(lines, fmt.Sprintf("ID: %s | %q | %s", t.ID, t.Text, extract.FormatKey(key)))
		}
	}
	return lines
}
