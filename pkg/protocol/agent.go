package protocol

import "strings"

// AgentIdentity identifies a human agent acting in the agent channel.
// ID is the transport-level identity and is the value lock ownership is
// compared against; Display is a human-readable label recorded on the
// ticket for the requester to see.
type AgentIdentity struct {
	ID      string `json:"id"`
	Display string `json:"display"`
}

// NewAgentIdentity normalizes an identity. Lock ownership checks use exact
// string equality on ID, so both sides are trimmed once here rather than
// at every comparison site.
func NewAgentIdentity(id, display string) AgentIdentity {
	return AgentIdentity{
		ID:      strings.TrimSpace(id),
		Display: strings.TrimSpace(display),
	}
}

// Is reports whether the identity matches a stored lock owner value.
func (a AgentIdentity) Is(lockedBy string) bool {
	return a.ID != "" && a.ID == strings.TrimSpace(lockedBy)
}
