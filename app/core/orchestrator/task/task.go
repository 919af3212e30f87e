package task

// Task is a single scheduled item. The id is assigned at creation and never
// reused or renumbered; text is the only mutable field.
type Task struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// State is the serializable snapshot of one conversation's task data.
type State struct {
	TasksByDatetime      map[string][]Task `json:"tasksByDatetime"`
	TaskIDCounter        int               `json:"taskIdCounter"`
	LastReferencedTaskID string            `json:"lastReferencedTaskId"`
}

// EmptyState returns a fresh, non-nil state.
func EmptyState() State {
	return State{TasksByDatetime: map[string][]Task{}}
}

// Clone returns a value copy that shares no mutable structure with s.
func (s State) Clone() State {
	out := State{
		TasksByDatetime:      make(map[string][]Task, len(s.TasksByDatetime)),
		TaskIDCounter:        s.TaskIDCounter,
		LastReferencedTaskID: s.LastReferencedTaskID,
	}
	for key, tasks := range s.TasksByDatetime {
		out.TasksByDatetime[key] = append([]Task(nil), tasks...)
	}
	return out
}
