package store

import (
	"errors"
	"testing"
	"time"

	"github.com/nextlevelbuilder/botsim/internal/clock"
	"github.com/nextlevelbuilder/botsim/pkg/botapi"
)

func sumVotes(p botapi.Poll) int {
	n := 0
	for _, o := range p.Options {
		n += o.VoterCount
	}
	return n
}

func TestPollState_VoteChange(t *testing.T) {
	ps := NewPollState(clock.NewSim(clock.DefaultStart))
	p, err := ps.Create(testChat, PollSpec{Question: "?", Options: []string{"A", "B"}})
	if err != nil {
		t.Fatal(err)
	}
	ps.Vote(p.ID, 1, []int{0})
	ps.Vote(p.ID, 2, []int{1})
	got, err := ps.Vote(p.ID, 1, []int{1})
	if err != nil {
		t.Fatal(err)
	}
	if got.Options[0].VoterCount != 0 || got.Options[1].VoterCount != 2 || got.TotalVoterCount != 2 {
		t.Errorf("counts = %d/%d total %d", got.Options[0].VoterCount, got.Options[1].VoterCount, got.TotalVoterCount)
	}
}

func TestPollState_SingleAnswerInvariant(t *testing.T) {
	ps := NewPollState(clock.NewSim(clock.DefaultStart))
	p, _ := ps.Create(testChat, PollSpec{Question: "?", Options: []string{"A", "B", "C"}})
	seq := []struct {
		user int64
		ids  []int
	}{
		{1, []int{0}}, {2, []int{2}}, {1, nil}, {3, []int{1}}, {2, []int{0}}, {1, []int{2}}, {3, []int{}},
	}
	for _, v := range seq {
		got, err := ps.Vote(p.ID, v.user, v.ids)
		if err != nil {
			t.Fatalf("vote %+v: %v", v, err)
		}
		if sumVotes(got) != got.TotalVoterCount {
			t.Fatalf("after %+v: sum %d != total %d", v, sumVotes(got), got.TotalVoterCount)
		}
	}
	if got, _ := ps.Poll(p.ID); got.TotalVoterCount != 2 {
		t.Errorf("total = %d, want 2", got.TotalVoterCount)
	}
}

func TestPollState_MultipleAnswers(t *testing.T) {
	ps := NewPollState(clock.NewSim(clock.DefaultStart))
	p, _ := ps.Create(testChat, PollSpec{Question: "?", Options: []string{"A", "B", "C"}, AllowsMultipleAnswers: true})
	ps.Vote(p.ID, 1, []int{0, 1, 2})
	got, _ := ps.Vote(p.ID, 2, []int{1})
	if got.TotalVoterCount != 2 || sumVotes(got) < got.TotalVoterCount || sumVotes(got) != 4 {
		t.Errorf("total %d sum %d", got.TotalVoterCount, sumVotes(got))
	}
}

func TestPollState_Rejections(t *testing.T) {
	ps := NewPollState(clock.NewSim(clock.DefaultStart))
	if _, err := ps.Create(testChat, PollSpec{Options: []string{"only"}}); !errors.Is(err, ErrPollOptions) {
		t.Errorf("one option err = %v", err)
	}
	if _, err := ps.Create(testChat, PollSpec{Options: []string{"A", "B"}, Type: botapi.PollQuiz}); !errors.Is(err, ErrQuizCorrectOption) {
		t.Errorf("quiz without answer err = %v", err)
	}
	p, _ := ps.Create(testChat, PollSpec{Options: []string{"A", "B"}})

	tests := []struct {
		name string
		ids  []int
		want error
	}{
		{"two answers", []int{0, 1}, ErrMultipleAnswers},
		{"out of range", []int{2}, ErrInvalidOption},
		{"negative", []int{-1}, ErrInvalidOption},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ps.Vote(p.ID, 1, tt.ids); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
	if _, err := ps.Vote("missing", 1, []int{0}); !errors.Is(err, ErrPollNotFound) {
		t.Errorf("missing poll err = %v", err)
	}

	ps.Stop(p.ID)
	if _, err := ps.Vote(p.ID, 1, []int{0}); !errors.Is(err, ErrPollClosed) {
		t.Errorf("vote on closed err = %v", err)
	}
	if _, err := ps.Stop(p.ID); !errors.Is(err, ErrPollClosed) {
		t.Errorf("second stop err = %v", err)
	}
}

func TestPollState_QuizAnswerIsFinal(t *testing.T) {
	ps := NewPollState(clock.NewSim(clock.DefaultStart))
	correct := 1
	p, err := ps.Create(testChat, PollSpec{Options: []string{"A", "B"}, Type: botapi.PollQuiz, CorrectOptionID: &correct})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ps.Vote(p.ID, 1, []int{0}); err != nil {
		t.Fatal(err)
	}
	if _, err := ps.Vote(p.ID, 1, []int{1}); !errors.Is(err, ErrQuizAnswerFinal) {
		t.Errorf("changing quiz answer err = %v", err)
	}
}

func TestPollState_OpenPeriodClosesLazily(t *testing.T) {
	clk := clock.NewSim(clock.DefaultStart)
	ps := NewPollState(clk)
	p, _ := ps.Create(testChat, PollSpec{Options: []string{"A", "B"}, OpenPeriod: 30})
	ps.Attach(p.ID, testChat, 7)

	clk.Advance(29 * time.Second)
	if ps.IsClosed(p.ID) {
		t.Fatal("closed before open_period elapsed")
	}
	clk.Advance(time.Second)
	got, ok := ps.ByMessage(testChat, 7)
	if !ok || !got.IsClosed {
		t.Errorf("poll after open_period = %+v, %v", got, ok)
	}
}
