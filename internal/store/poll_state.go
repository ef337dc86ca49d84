package store

import (
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/botsim/internal/clock"
	"github.com/nextlevelbuilder/botsim/pkg/botapi"
)

// Poll option bounds.
const (
	MinPollOptions = 2
	MaxPollOptions = 10
)

// PollSpec describes a poll to create.
type PollSpec struct {
	Question              string
	Options               []string
	IsAnonymous           bool
	Type                  string
	AllowsMultipleAnswers bool
	CorrectOptionID       *int
	Explanation           string
	OpenPeriod            int
	CloseDate             int64
}

type pollEntry struct {
	poll      botapi.Poll
	chatID    int64
	messageID int
	closeAt   int64
	votes     map[int64][]int
}

type messageKey struct {
	chatID    int64
	messageID int
}

// PollState owns polls and their votes.
type PollState struct {
	mu        sync.Mutex
	clock     clock.Clock
	polls     map[string]*pollEntry
	byMessage map[messageKey]string
}

// NewPollState creates an empty poll store.
func NewPollState(clk clock.Clock) *PollState {
	return &PollState{
		clock:     clk,
		polls:     make(map[string]*pollEntry),
		byMessage: make(map[messageKey]string),
	}
}

func (s *PollState) now() int64 { return s.clock.Now().Unix() }

// Create validates spec and stores a new open poll. Attach binds it to its message.
func (s *PollState) Create(chatID int64, spec PollSpec) (botapi.Poll, error) {
	if len(spec.Options) < MinPollOptions || len(spec.Options) > MaxPollOptions {
		return botapi.Poll{}, ErrPollOptions
	}
	if spec.Type == "" {
		spec.Type = botapi.PollRegular
	}
	if spec.Type == botapi.PollQuiz {
		if spec.CorrectOptionID == nil || *spec.CorrectOptionID < 0 || *spec.CorrectOptionID >= len(spec.Options) {
			return botapi.Poll{}, ErrQuizCorrectOption
		}
		if spec.AllowsMultipleAnswers {
			return botapi.Poll{}, ErrMultipleAnswers
		}
	}
	p := botapi.Poll{
		ID:                    uuid.NewString(),
		Question:              spec.Question,
		Options:               make([]botapi.PollOption, len(spec.Options)),
		IsAnonymous:           spec.IsAnonymous,
		Type:                  spec.Type,
		AllowsMultipleAnswers: spec.AllowsMultipleAnswers,
		Explanation:           spec.Explanation,
		OpenPeriod:            spec.OpenPeriod,
		CloseDate:             spec.CloseDate,
	}
	if spec.CorrectOptionID != nil {
		id := *spec.CorrectOptionID
		p.CorrectOptionID = &id
	}
	for i, text := range spec.Options {
		p.Options[i] = botapi.PollOption{Text: text}
	}
	e := &pollEntry{poll: p, chatID: chatID, votes: make(map[int64][]int)}
	switch {
	case spec.OpenPeriod > 0:
		e.closeAt = s.now() + int64(spec.OpenPeriod)
	case spec.CloseDate > 0:
		e.closeAt = spec.CloseDate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.polls[p.ID] = e
	return e.snapshot(), nil
}

// Attach records the message carrying the poll.
func (s *PollState) Attach(pollID string, chatID int64, messageID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.polls[pollID]
	if !ok {
		return ErrPollNotFound
	}
	e.chatID = chatID
	e.messageID = messageID
	s.byMessage[messageKey{chatID, messageID}] = pollID
	return nil
}

// Discard drops a poll that never made it into a message.
func (s *PollState) Discard(pollID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.polls[pollID]; ok && e.messageID == 0 {
		delete(s.polls, pollID)
	}
}

// Poll returns a poll, closing it first if its deadline has passed.
func (s *PollState) Poll(pollID string) (botapi.Poll, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.polls[pollID]
	if !ok {
		return botapi.Poll{}, false
	}
	s.settle(e)
	return e.snapshot(), true
}

// ByMessage returns the poll carried by a message, settling its deadline.
func (s *PollState) ByMessage(chatID int64, messageID int) (botapi.Poll, bool) {
	s.mu.Lock()
	id, ok := s.byMessage[messageKey{chatID, messageID}]
	s.mu.Unlock()
	if !ok {
		return botapi.Poll{}, false
	}
	return s.Poll(id)
}

// Location returns the chat and message a poll was sent in.
func (s *PollState) Location(pollID string) (chatID int64, messageID int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.polls[pollID]
	if !ok {
		return 0, 0, false
	}
	return e.chatID, e.messageID, true
}

// IsClosed is an observe-and-settle read of the poll's closed state.
func (s *PollState) IsClosed(pollID string) bool {
	p, ok := s.Poll(pollID)
	return !ok || p.IsClosed
}

func (s *PollState) settle(e *pollEntry) {
	if !e.poll.IsClosed && e.closeAt > 0 && s.now() >= e.closeAt {
		e.poll.IsClosed = true
	}
}

// Vote replaces userID's selection. The previous selection is withdrawn first;
// an empty selection is a pure retraction. Quiz answers are final.
func (s *PollState) Vote(pollID string, userID int64, optionIDs []int) (botapi.Poll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.polls[pollID]
	if !ok {
		return botapi.Poll{}, ErrPollNotFound
	}
	s.settle(e)
	if e.poll.IsClosed {
		return botapi.Poll{}, ErrPollClosed
	}
	if len(optionIDs) > 1 && !e.poll.AllowsMultipleAnswers {
		return botapi.Poll{}, ErrMultipleAnswers
	}
	seen := make(map[int]bool, len(optionIDs))
	for _, id := range optionIDs {
		if id < 0 || id >= len(e.poll.Options) || seen[id] {
			return botapi.Poll{}, ErrInvalidOption
		}
		seen[id] = true
	}
	prev, voted := e.votes[userID]
	if e.poll.Type == botapi.PollQuiz && voted {
		return botapi.Poll{}, ErrQuizAnswerFinal
	}

	if voted {
		for _, id := range prev {
			e.poll.Options[id].VoterCount--
		}
		e.poll.TotalVoterCount--
		delete(e.votes, userID)
	}
	if len(optionIDs) > 0 {
		for _, id := range optionIDs {
			e.poll.Options[id].VoterCount++
		}
		e.poll.TotalVoterCount++
		e.votes[userID] = slices.Clone(optionIDs)
	}
	return e.snapshot(), nil
}

// UserVote returns userID's current selection.
func (s *PollState) UserVote(pollID string, userID int64) ([]int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.polls[pollID]
	if !ok {
		return nil, false
	}
	v, ok := e.votes[userID]
	return slices.Clone(v), ok
}

// Stop closes a poll. Stopping a closed poll fails with ErrPollClosed.
func (s *PollState) Stop(pollID string) (botapi.Poll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.polls[pollID]
	if !ok {
		return botapi.Poll{}, ErrPollNotFound
	}
	s.settle(e)
	if e.poll.IsClosed {
		return botapi.Poll{}, ErrPollClosed
	}
	e.poll.IsClosed = true
	return e.snapshot(), nil
}

// Reset drops every poll.
func (s *PollState) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.polls = make(map[string]*pollEntry)
	s.byMessage = make(map[messageKey]string)
}

func (e *pollEntry) snapshot() botapi.Poll {
	p := e.poll
	p.Options = slices.Clone(e.poll.Options)
	if e.poll.CorrectOptionID != nil {
		id := *e.poll.CorrectOptionID
		p.CorrectOptionID = &id
	}
	return p
}
