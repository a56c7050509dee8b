package a2a

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rotisserie/eris"
)

// DefaultTimeout bounds a single remote call, card resolution included.
const DefaultTimeout = 300 * time.Second

// Client calls remote actors over JSON-RPC. It is safe for concurrent use.
type Client struct {
	http *resty.Client
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.http.SetTimeout(d)
		}
	}
}

// NewClient creates a client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		http: resty.New().
			SetTimeout(DefaultTimeout).
			SetHeader("Accept", "application/json"),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ResolveCard fetches the agent card published under baseURL. A card that
// leaves its url empty is addressed at baseURL.
func (c *Client) ResolveCard(ctx context.Context, baseURL string) (*AgentCard, error) {
	base := strings.TrimRight(baseURL, "/")
	resp, err := c.http.R().SetContext(ctx).Get(base + CardPath)
	if err != nil {
		return nil, eris.Wrapf(err, "a2a: resolve card %s", base)
	}
	if resp.IsError() {
		return nil, eris.Errorf("a2a: resolve card %s: unexpected status %d", base, resp.StatusCode())
	}

	var card AgentCard
	if err := json.Unmarshal(resp.Body(), &card); err != nil {
		return nil, eris.Wrap(err, "a2a: decode agent card")
	}
	if card.URL == "" {
		card.URL = base
	}
	return &card, nil
}

// SendMessage posts msg to the card's endpoint with message/send and
// returns the reply events. Non-streaming hosts produce exactly one.
func (c *Client) SendMessage(ctx context.Context, card *AgentCard, msg Message) ([]Event, error) {
	if card == nil || card.URL == "" {
		return nil, eris.New("a2a: agent card has no url")
	}

	params, err := json.Marshal(MessageSendParams{Message: msg})
	if err != nil {
		return nil, eris.Wrap(err, "a2a: marshal params")
	}
	id, err := json.Marshal(NewID())
	if err != nil {
		return nil, eris.Wrap(err, "a2a: marshal request id")
	}
	req := Request{
		JSONRPC: jsonRPCVersion,
		ID:      id,
		Method:  MethodSendMessage,
		Params:  params,
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		Post(card.URL)
	if err != nil {
		return nil, eris.Wrapf(err, "a2a: send message to %s", card.URL)
	}
	if resp.IsError() {
		return nil, eris.Errorf("a2a: send message to %s: unexpected status %d: %s",
			card.URL, resp.StatusCode(), resp.String())
	}

	var rpcResp Response
	if err := json.Unmarshal(resp.Body(), &rpcResp); err != nil {
		return nil, eris.Wrap(err, "a2a: decode response")
	}
	if rpcResp.Error != nil {
		return nil, rpcResp.Error
	}
	if len(rpcResp.Result) == 0 {
		return nil, eris.New("a2a: response has no result")
	}

	var ev Event
	if err := json.Unmarshal(rpcResp.Result, &ev); err != nil {
		return nil, eris.Wrap(err, "a2a: decode result")
	}
	return []Event{ev}, nil
}
