// Package session maps incoming agent actions to agent identities.
package session

import (
	"errors"
	"strings"

	"github.com/tanya-io/tanya/pkg/protocol"
)

// ErrUnauthorized reports that an action did not originate from the
// designated agent channel.
var ErrUnauthorized = errors.New("session: action outside the agent channel")

// ActionContext is the decoded transport context of one claim or reply
// action.
type ActionContext struct {
	ActorID   string // transport-level sender identity
	Username  string // optional handle, without leading @
	FirstName string // fallback display name
	ChatID    string // channel the action arrived in
}

// Resolver validates agent actions against the single shared agent
// channel. The transport guarantees sender identity inside that channel;
// beyond channel membership there is no per-agent verification.
type Resolver struct {
	agentChatID string
}

// NewResolver creates a resolver bound to the agent channel.
func NewResolver(agentChatID string) *Resolver {
	return &Resolver{agentChatID: strings.TrimSpace(agentChatID)}
}

// Resolve returns the acting agent's identity, or ErrUnauthorized when
// the action came from any other chat.
func (r *Resolver) Resolve(actx ActionContext) (protocol.AgentIdentity, error) {
	if strings.TrimSpace(actx.ChatID) != r.agentChatID || r.agentChatID == "" {
		return protocol.AgentIdentity{}, ErrUnauthorized
	}
	display := actx.FirstName
	if actx.Username != "" {
		display = "@" + actx.Username
	}
	return protocol.NewAgentIdentity(actx.ActorID, display), nil
}
