package app

import (
	"math"
	"strings"
	"time"

	"aiquiz-service/internal/domain"
)

// Roster tracks participants in join order. It is owned by a single Host and
// is not safe for concurrent use on its own.
type Roster struct {
	now          func() time.Time
	order        []string
	participants map[string]*domain.Participant
}

func NewRoster(now func() time.Time) *Roster {
	if now == nil {
		now = time.Now
	}
	return &Roster{
		now:          now,
		participants: make(map[string]*domain.Participant),
	}
}

// Join adds a participant. Repeated ids and blank names are ignored; the
// first join wins.
func (r *Roster) Join(id, displayName string) (domain.Participant, bool) {
	displayName = strings.TrimSpace(displayName)
	if id == "" || displayName == "" {
		return domain.Participant{}, false
	}
	if existing, ok := r.participants[id]; ok {
		return existing.Clone(), false
	}
	p := &domain.Participant{
		ID:          id,
		DisplayName: displayName,
		Answers:     make(map[string]domain.AnswerRecord),
		JoinOrder:   len(r.order),
		JoinedAt:    r.now(),
	}
	r.participants[id] = p
	r.order = append(r.order, id)
	return p.Clone(), true
}

// Record scores the first submission of a participant for q.
func (r *Roster) Record(id string, q domain.Question, value string, elapsedSeconds float64) (domain.AnswerRecord, error) {
	p, ok := r.participants[id]
	if !ok {
		return domain.AnswerRecord{}, domain.ErrParticipantNotFound
	}
	if _, answered := p.Answers[q.ID]; answered {
		return domain.AnswerRecord{}, domain.ErrAlreadyAnswered
	}
	if elapsedSeconds < 0 || math.IsNaN(elapsedSeconds) {
		elapsedSeconds = 0
	}
	correct, points := Score(q, value, elapsedSeconds)
	rec := domain.AnswerRecord{
		Value:               value,
		Correct:             correct,
		ResponseTimeSeconds: elapsedSeconds,
		Points:              points,
	}
	p.Answers[q.ID] = rec
	p.Score += points
	return rec, nil
}

func (r *Roster) Len() int {
	return len(r.order)
}

// Participant returns a copy of one participant.
func (r *Roster) Participant(id string) (domain.Participant, bool) {
	p, ok := r.participants[id]
	if !ok {
		return domain.Participant{}, false
	}
	return p.Clone(), true
}

// Participants returns copies in join order.
func (r *Roster) Participants() []domain.Participant {
	out := make([]domain.Participant, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.participants[id].Clone())
	}
	return out
}

// Ranking returns copies sorted by score, ties by join order.
func (r *Roster) Ranking() []domain.Participant {
	return domain.RankParticipants(r.Participants())
}

// Leaderboard returns ranked entries for display.
func (r *Roster) Leaderboard() []domain.LeaderboardEntry {
	ranked := r.Ranking()
	entries := make([]domain.LeaderboardEntry, 0, len(ranked))
	for i, p := range ranked {
		entries = append(entries, domain.LeaderboardEntry{
			Rank:          i + 1,
			ParticipantID: p.ID,
			DisplayName:   p.DisplayName,
			Score:         p.Score,
		})
	}
	return entries
}

// Answered counts participants holding a record for questionID.
func (r *Roster) Answered(questionID string) int {
	n := 0
	for _, p := range r.participants {
		if _, ok := p.Answers[questionID]; ok {
			n++
		}
	}
	return n
}

// Distribution tallies the answers given to q. Values that match no option
// (short answers) only count towards Answered and Correct.
func (r *Roster) Distribution(q domain.Question) domain.AnswerDistribution {
	dist := domain.AnswerDistribution{
		QuestionID:   q.ID,
		Options:      make([]domain.OptionCount, len(q.Options)),
		Participants: len(r.order),
	}
	index := make(map[string]int, len(q.Options))
	for i, opt := range q.Options {
		dist.Options[i] = domain.OptionCount{Option: opt, Correct: opt == q.CorrectAnswer}
		index[opt] = i
	}
	for _, id := range r.order {
		rec, ok := r.participants[id].Answers[q.ID]
		if !ok {
			continue
		}
		dist.Answered++
		if rec.Correct {
			dist.Correct++
		}
		if i, ok := index[rec.Value]; ok {
			dist.Options[i].Count++
		}
	}
	return dist
}
