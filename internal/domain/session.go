package domain

import "time"

// Phase is the discrete state of a live session.
type Phase string

const (
	PhaseLobby            Phase = "lobby"
	PhaseQuestionActive   Phase = "question-active"
	PhaseQuestionRevealed Phase = "question-revealed"
	PhaseSessionComplete  Phase = "session-complete"
)

// SessionState is owned by the host and broadcast verbatim in snapshots.
type SessionState struct {
	Phase                Phase     `json:"phase"`
	QuestionIndex        int       `json:"questionIndex"`
	QuestionStartedAt    time.Time `json:"questionStartedAt"`
	TimerEnabled         bool      `json:"timerEnabled"`
	TimeRemainingSeconds int       `json:"timeRemainingSeconds"`
	LeaderboardVisible   bool      `json:"leaderboardVisible"`
}
