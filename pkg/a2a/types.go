// Package a2a implements the subset of the agent-to-agent protocol the
// benchmark actors speak: agent cards, non-streaming JSON-RPC message/send,
// and the Message/Task reply shapes.
package a2a

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

// ProtocolVersion is advertised in agent cards.
const ProtocolVersion = "0.3.0"

// CardPath is where an actor publishes its agent card, relative to its base URL.
const CardPath = "/.well-known/agent-card.json"

// MethodSendMessage is the only JSON-RPC method hosts accept.
const MethodSendMessage = "message/send"

// Event kinds.
const (
	KindMessage = "message"
	KindTask    = "task"
)

// Role identifies the sender of a message.
type Role string

// Message roles.
const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// TaskState is the lifecycle state of a task.
type TaskState string

// Task states.
const (
	TaskStateSubmitted     TaskState = "submitted"
	TaskStateWorking       TaskState = "working"
	TaskStateInputRequired TaskState = "input-required"
	TaskStateCompleted     TaskState = "completed"
	TaskStateCanceled      TaskState = "canceled"
	TaskStateFailed        TaskState = "failed"
	TaskStateRejected      TaskState = "rejected"
	TaskStateAuthRequired  TaskState = "auth-required"
	TaskStateUnknown       TaskState = "unknown"
)

// Terminal reports whether no further updates follow s.
func (s TaskState) Terminal() bool {
	switch s {
	case TaskStateCompleted, TaskStateCanceled, TaskStateFailed, TaskStateRejected:
		return true
	}
	return false
}

// PartKind tags a Part.
type PartKind string

// Part kinds.
const (
	PartKindText PartKind = "text"
	PartKindData PartKind = "data"
)

// Part is one piece of message or artifact content.
type Part struct {
	Kind PartKind       `json:"kind"`
	Text string         `json:"text,omitempty"`
	Data map[string]any `json:"data,omitempty"`
}

// TextPart returns a text part.
func TextPart(text string) Part {
	return Part{Kind: PartKindText, Text: text}
}

// NewDataPart encodes v, which must marshal to a JSON object, as a data part.
func NewDataPart(v any) (Part, error) {
	if m, ok := v.(map[string]any); ok {
		return Part{Kind: PartKindData, Data: m}, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return Part{}, eris.Wrap(err, "a2a: marshal data part")
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return Part{}, eris.Wrap(err, "a2a: data part must be a JSON object")
	}
	return Part{Kind: PartKindData, Data: m}, nil
}

// DecodeData decodes a data payload into v.
func DecodeData(data map[string]any, v any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return eris.Wrap(err, "a2a: marshal data")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return eris.Wrap(err, "a2a: decode data")
	}
	return nil
}

// Message is a single conversational turn.
type Message struct {
	Kind      string `json:"kind"`
	MessageID string `json:"messageId"`
	Role      Role   `json:"role"`
	Parts     []Part `json:"parts"`
	ContextID string `json:"contextId,omitempty"`
	TaskID    string `json:"taskId,omitempty"`
}

// NewMessage builds a message with a fresh id.
func NewMessage(role Role, parts ...Part) Message {
	return Message{
		Kind:      KindMessage,
		MessageID: NewID(),
		Role:      role,
		Parts:     parts,
	}
}

// Text returns the text parts of m joined by newlines.
func (m Message) Text() string {
	var texts []string
	for _, p := range m.Parts {
		if p.Kind == PartKindText {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// TaskStatus is a task's current state plus an optional status message.
type TaskStatus struct {
	State     TaskState `json:"state"`
	Message   *Message  `json:"message,omitempty"`
	Timestamp string    `json:"timestamp,omitempty"`
}

// Artifact is a named output of a task.
type Artifact struct {
	ArtifactID string `json:"artifactId"`
	Name       string `json:"name,omitempty"`
	Parts      []Part `json:"parts"`
}

// Task is a unit of work tracked by the host.
type Task struct {
	Kind      string     `json:"kind"`
	ID        string     `json:"id"`
	ContextID string     `json:"contextId"`
	Status    TaskStatus `json:"status"`
	Artifacts []Artifact `json:"artifacts,omitempty"`
	History   []Message  `json:"history,omitempty"`
}

// Event is a message/send result: exactly one of Message or Task is set.
type Event struct {
	Message *Message
	Task    *Task
}

// MarshalJSON encodes whichever variant is set.
func (e Event) MarshalJSON() ([]byte, error) {
	switch {
	case e.Message != nil:
		return json.Marshal(e.Message)
	case e.Task != nil:
		return json.Marshal(e.Task)
	}
	return nil, eris.New("a2a: empty event")
}

// UnmarshalJSON dispatches on the "kind" discriminator.
func (e *Event) UnmarshalJSON(raw []byte) error {
	var head struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return eris.Wrap(err, "a2a: decode event")
	}
	switch head.Kind {
	case KindMessage:
		var m Message
		if err := json.Unmarshal(raw, &m); err != nil {
			return eris.Wrap(err, "a2a: decode message")
		}
		*e = Event{Message: &m}
	case KindTask:
		var t Task
		if err := json.Unmarshal(raw, &t); err != nil {
			return eris.Wrap(err, "a2a: decode task")
		}
		*e = Event{Task: &t}
	default:
		return eris.Errorf("a2a: unknown event kind %q", head.Kind)
	}
	return nil
}

// AgentCapabilities advertises optional protocol features.
type AgentCapabilities struct {
	Streaming bool `json:"streaming"`
}

// AgentSkill describes one thing an actor can do.
type AgentSkill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Examples    []string `json:"examples,omitempty"`
}

// AgentCard is an actor's published self-description.
type AgentCard struct {
	Name               string            `json:"name"`
	Description        string            `json:"description"`
	URL                string            `json:"url"`
	Version            string            `json:"version"`
	ProtocolVersion    string            `json:"protocolVersion"`
	Capabilities       AgentCapabilities `json:"capabilities"`
	DefaultInputModes  []string          `json:"defaultInputModes"`
	DefaultOutputModes []string          `json:"defaultOutputModes"`
	Skills             []AgentSkill      `json:"skills"`
}

// NewID returns a random UUID string.
func NewID() string {
	return uuid.New().String()
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
