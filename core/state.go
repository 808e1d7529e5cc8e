package core

// ConversationState is the mutable context threaded through one loop run.
// History is append-only: messages are never reordered or truncated while a
// run is in progress. A state is owned by the run that created it and must
// not be shared across concurrent runs.
type ConversationState struct {
	History        []Message
	IterationCount int
}

// NewConversationState creates a state seeded with the given messages.
func NewConversationState(seed ...Message) *ConversationState {
	h := make([]Message, 0, len(seed)+8)
	h = append(h, seed...)
	return &ConversationState{History: h}
}

// Append adds messages to the end of the history.
func (s *ConversationState) Append(msgs ...Message) {
	s.History = append(s.History, msgs...)
}

// Last returns the most recent message and false when the history is empty.
func (s *ConversationState) Last() (Message, bool) {
	if len(s.History) == 0 {
		return Message{}, false
	}
	return s.History[len(s.History)-1], true
}

// Len returns the number of messages in the history.
func (s *ConversationState) Len() int { return len(s.History) }

// Snapshot returns a copy of the history safe to hand to callers.
func (s *ConversationState) Snapshot() []Message {
	out := make([]Message, len(s.History))
	copy(out, s.History)
	return out
}
