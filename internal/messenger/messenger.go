// Package messenger sends one message to a remote actor and unwraps its
// reply, remembering a conversation per endpoint.
//
// A Messenger is owned by a single evaluation run and is not safe for
// concurrent use. Separate runs must use separate Messengers.
package messenger

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/invest-bench/internal/monitoring"
	"github.com/sells-group/invest-bench/pkg/a2a"
)

// Transport is the remote-call channel. *a2a.Client implements it.
type Transport interface {
	ResolveCard(ctx context.Context, baseURL string) (*a2a.AgentCard, error)
	SendMessage(ctx context.Context, card *a2a.AgentCard, msg a2a.Message) ([]a2a.Event, error)
}

// Reply is the unwrapped final reply of a remote actor.
type Reply struct {
	Status    a2a.TaskState
	ContextID string
	Text      string
	DataParts []map[string]any
}

// IncompleteError reports a reply whose status is not completed.
type IncompleteError struct {
	Endpoint string
	Status   a2a.TaskState
	Reply    Reply
}

func (e *IncompleteError) Error() string {
	msg := fmt.Sprintf("messenger: %s finished with status %q", e.Endpoint, e.Status)
	if e.Reply.Text != "" {
		msg += ": " + e.Reply.Text
	}
	return msg
}

// Messenger invokes remote actors.
type Messenger struct {
	transport Transport
	metrics   *monitoring.Metrics
	sessions  map[string]string
}

// Option configures the messenger.
type Option func(*Messenger)

// WithMetrics records each invocation's terminal status in m.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(ms *Messenger) {
		ms.metrics = m
	}
}

// New creates a Messenger over transport.
func New(transport Transport, opts ...Option) *Messenger {
	m := &Messenger{
		transport: transport,
		sessions:  make(map[string]string),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Invoke sends message as a single text part to endpoint and returns the
// unwrapped final reply. Unless newConversation is set, the stored session
// for endpoint is continued. Sessions only advance on completed replies.
func (m *Messenger) Invoke(ctx context.Context, message, endpoint string, newConversation bool) (*Reply, error) {
	log := zap.L().With(zap.String("endpoint", endpoint))

	card, err := m.transport.ResolveCard(ctx, endpoint)
	if err != nil {
		m.metrics.ObserveRemoteCall("error")
		return nil, eris.Wrap(err, "messenger: resolve card")
	}

	msg := a2a.NewMessage(a2a.RoleUser, a2a.TextPart(message))
	if !newConversation {
		msg.ContextID = m.sessions[endpoint]
	}

	events, err := m.transport.SendMessage(ctx, card, msg)
	if err != nil {
		m.metrics.ObserveRemoteCall("error")
		return nil, eris.Wrap(err, "messenger: send message")
	}
	if len(events) == 0 {
		m.metrics.ObserveRemoteCall("error")
		return nil, eris.Errorf("messenger: %s returned no events", endpoint)
	}

	reply := Unwrap(events[len(events)-1])
	m.metrics.ObserveRemoteCall(string(reply.Status))
	if reply.Status != a2a.TaskStateCompleted {
		log.Warn("messenger: remote call incomplete", zap.String("status", string(reply.Status)))
		return nil, &IncompleteError{Endpoint: endpoint, Status: reply.Status, Reply: reply}
	}

	// A reply without a context id keeps the existing session.
	if reply.ContextID != "" {
		m.sessions[endpoint] = reply.ContextID
	}
	log.Debug("messenger: remote call complete",
		zap.String("context_id", reply.ContextID),
		zap.Int("data_parts", len(reply.DataParts)),
	)
	return &reply, nil
}

// Session returns the stored session id for endpoint.
func (m *Messenger) Session(endpoint string) (string, bool) {
	id, ok := m.sessions[endpoint]
	return id, ok
}

// Reset forgets every stored session.
func (m *Messenger) Reset() {
	clear(m.sessions)
}

// Unwrap flattens a reply event. A message is always completed. For a task,
// status-message parts come first, then every artifact's data parts in order.
func Unwrap(ev a2a.Event) Reply {
	switch {
	case ev.Message != nil:
		r := Reply{Status: a2a.TaskStateCompleted, ContextID: ev.Message.ContextID}
		texts, data := splitParts(ev.Message.Parts)
		r.Text = strings.Join(texts, "\n")
		r.DataParts = data
		return r

	case ev.Task != nil:
		r := Reply{Status: ev.Task.Status.State, ContextID: ev.Task.ContextID}
		var texts []string
		if sm := ev.Task.Status.Message; sm != nil {
			texts, r.DataParts = splitParts(sm.Parts)
		}
		for _, art := range ev.Task.Artifacts {
			_, data := splitParts(art.Parts)
			r.DataParts = append(r.DataParts, data...)
		}
		r.Text = strings.Join(texts, "\n")
		return r
	}
	return Reply{Status: a2a.TaskStateUnknown}
}

func splitParts(parts []a2a.Part) (texts []string, data []map[string]any) {
	for _, p := range parts {
		switch p.Kind {
		case a2a.PartKindText:
			texts = append(texts, p.Text)
		case a2a.PartKindData:
			if p.Data != nil {
				data = append(data, p.Data)
			}
		}
	}
	return texts, data
}
