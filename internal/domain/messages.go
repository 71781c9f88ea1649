package domain

import (
	"encoding/json"
	"fmt"
)

// MessageType tags a session channel message.
type MessageType string

const (
	MessageJoin          MessageType = "join"
	MessageSubmitAnswer  MessageType = "submit_answer"
	MessageStateSnapshot MessageType = "state_snapshot"
	MessageRevealAnswer  MessageType = "reveal_answer"
	MessageRequestState  MessageType = "request_state"
	MessageSessionEnded  MessageType = "session_ended"
)

// Message is the tagged union exchanged on a session channel.
type Message interface {
	Type() MessageType
}

// Join announces a participant to the host.
type Join struct {
	ParticipantID string `json:"participantId"`
	DisplayName   string `json:"displayName"`
}

// SubmitAnswer carries a participant's answer with client-reported elapsed time.
type SubmitAnswer struct {
	ParticipantID        string  `json:"participantId"`
	QuestionID           string  `json:"questionId"`
	Value                string  `json:"value"`
	ClientElapsedSeconds float64 `json:"clientElapsedSeconds"`
}

// StateSnapshot is the authoritative session state; receivers replace their view with it.
type StateSnapshot struct {
	SessionID       string        `json:"sessionId"`
	State           SessionState  `json:"state"`
	CurrentQuestion *QuestionView `json:"currentQuestion,omitempty"`
	TotalQuestions  int           `json:"totalQuestions"`
}

// RevealAnswer discloses the answer key of one question.
type RevealAnswer struct {
	QuestionID    string `json:"questionId"`
	QuestionIndex int    `json:"questionIndex"`
	CorrectAnswer string `json:"correctAnswer"`
	Explanation   string `json:"explanation"`
}

// RequestState asks the host to re-broadcast the current snapshot.
type RequestState struct {
	ParticipantID string `json:"participantId"`
}

// SessionEnded tells participants the host has closed the session.
type SessionEnded struct {
	SessionID string `json:"sessionId"`
}

func (Join) Type() MessageType          { return MessageJoin }
func (SubmitAnswer) Type() MessageType  { return MessageSubmitAnswer }
func (StateSnapshot) Type() MessageType { return MessageStateSnapshot }
func (RevealAnswer) Type() MessageType  { return MessageRevealAnswer }
func (RequestState) Type() MessageType  { return MessageRequestState }
func (SessionEnded) Type() MessageType  { return MessageSessionEnded }

// Envelope is the serialized form of a Message.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Sender  string          `json:"sender,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// EncodeMessage wraps msg into an envelope.
func EncodeMessage(msg Message) (Envelope, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s: %w", msg.Type(), err)
	}
	return Envelope{Type: msg.Type(), Payload: payload}, nil
}

// DecodeMessage unwraps an envelope. Unrecognised tags yield ErrUnknownMessage.
func DecodeMessage(env Envelope) (Message, error) {
	switch env.Type {
	case MessageJoin:
		return decodePayload[Join](env)
	case MessageSubmitAnswer:
		return decodePayload[SubmitAnswer](env)
	case MessageStateSnapshot:
		return decodePayload[StateSnapshot](env)
	case MessageRevealAnswer:
		return decodePayload[RevealAnswer](env)
	case MessageRequestState:
		return decodePayload[RequestState](env)
	case MessageSessionEnded:
		return decodePayload[SessionEnded](env)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, env.Type)
	}
}

func decodePayload[T Message](env Envelope) (Message, error) {
	var msg T
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, &msg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
	}
	return msg, nil
}
