package a2a

import (
	"sync"

	"github.com/rotisserie/eris"
)

// ErrTaskTerminal is returned when an update targets a finished task.
var ErrTaskTerminal = eris.New("a2a: task already in a terminal state")

// TaskUpdater records an executor's progress on one task. Hosts are
// non-streaming, so updates only accumulate; the caller sees the final
// snapshot.
type TaskUpdater struct {
	mu   sync.Mutex
	task Task
}

// NewTaskUpdater starts a submitted task for msg. The task joins msg's
// context when it names one.
func NewTaskUpdater(msg Message) *TaskUpdater {
	contextID := msg.ContextID
	if contextID == "" {
		contextID = NewID()
	}
	taskID := NewID()
	msg.ContextID = contextID
	msg.TaskID = taskID
	return &TaskUpdater{
		task: Task{
			Kind:      KindTask,
			ID:        taskID,
			ContextID: contextID,
			Status:    TaskStatus{State: TaskStateSubmitted, Timestamp: timestamp()},
			History:   []Message{msg},
		},
	}
}

// UpdateStatus moves the task to state with an optional text status message.
func (u *TaskUpdater) UpdateStatus(state TaskState, text string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.setStatusLocked(state, text)
}

// AddArtifact attaches a named artifact.
func (u *TaskUpdater) AddArtifact(name string, parts ...Part) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.task.Status.State.Terminal() {
		return ErrTaskTerminal
	}
	u.task.Artifacts = append(u.task.Artifacts, Artifact{
		ArtifactID: NewID(),
		Name:       name,
		Parts:      parts,
	})
	return nil
}

// Complete marks the task completed.
func (u *TaskUpdater) Complete() error {
	return u.UpdateStatus(TaskStateCompleted, "")
}

// Reject marks the task rejected with reason.
func (u *TaskUpdater) Reject(reason string) error {
	return u.UpdateStatus(TaskStateRejected, reason)
}

// Failed marks the task failed with reason.
func (u *TaskUpdater) Failed(reason string) error {
	return u.UpdateStatus(TaskStateFailed, reason)
}

// Task returns a snapshot of the task.
func (u *TaskUpdater) Task() Task {
	u.mu.Lock()
	defer u.mu.Unlock()
	t := u.task
	t.Artifacts = append([]Artifact(nil), u.task.Artifacts...)
	t.History = append([]Message(nil), u.task.History...)
	return t
}

func (u *TaskUpdater) setStatusLocked(state TaskState, text string) error {
	if u.task.Status.State.Terminal() {
		return ErrTaskTerminal
	}
	status := TaskStatus{State: state, Timestamp: timestamp()}
	if text != "" {
		m := NewMessage(RoleAgent, TextPart(text))
		m.ContextID = u.task.ContextID
		m.TaskID = u.task.ID
		status.Message = &m
	}
	u.task.Status = status
	return nil
}
