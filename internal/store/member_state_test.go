package store

import (
	"errors"
	"testing"
	"time"

	"github.com/nextlevelbuilder/botsim/internal/clock"
	"github.com/nextlevelbuilder/botsim/pkg/botapi"
)

const testChat int64 = -1001

func TestMemberState_RestrictionExpiresOnQuery(t *testing.T) {
	clk := clock.NewSim(clock.DefaultStart)
	ms := NewMemberState(clk)
	ms.SetOwner(testChat, 1)
	ms.SetMember(testChat, 2)

	m, err := ms.Restrict(testChat, 2, botapi.ChatPermissions{CanSendMessages: false}, clk.Unix()+60)
	if err != nil {
		t.Fatalf("restrict: %v", err)
	}
	if m.Status() != botapi.StatusRestricted {
		t.Fatalf("status = %q, want restricted", m.Status())
	}
	if ms.CanSendMessages(testChat, 2) {
		t.Fatal("restricted member can send before expiry")
	}

	clk.Advance(61 * time.Second)

	// a plain read does not settle
	if m, _ := ms.Member(testChat, 2); m.Status() != botapi.StatusRestricted {
		t.Fatalf("Member() settled the restriction: %q", m.Status())
	}
	if !ms.CanSendMessages(testChat, 2) {
		t.Fatal("expected CanSendMessages after expiry")
	}
	m, _ = ms.Member(testChat, 2)
	if m.Status() != botapi.StatusMember {
		t.Errorf("status = %q, want member", m.Status())
	}
	if _, ok := m.State.(Restricted); ok {
		t.Error("restricted permissions survived expiry")
	}
}

func TestMemberState_RestrictUnrestrictRoundTrip(t *testing.T) {
	ms := NewMemberState(clock.NewSim(clock.DefaultStart))
	ms.SetMember(testChat, 2)

	if _, err := ms.Restrict(testChat, 2, botapi.ChatPermissions{CanSendPolls: true}, 0); err != nil {
		t.Fatal(err)
	}
	m, err := ms.Unrestrict(testChat, 2)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := m.State.(Regular); !ok {
		t.Errorf("state = %T, want Regular", m.State)
	}
	if _, err := ms.Unrestrict(testChat, 2); !errors.Is(err, ErrNotRestricted) {
		t.Errorf("second unrestrict err = %v, want ErrNotRestricted", err)
	}
}

func TestMemberState_Transitions(t *testing.T) {
	ms := NewMemberState(clock.NewSim(clock.DefaultStart))
	ms.SetOwner(testChat, 1)
	ms.SetMember(testChat, 2)

	tests := []struct {
		name    string
		op      func() (Member, error)
		wantErr error
		want    string
	}{
		{"demote owner", func() (Member, error) { return ms.Demote(testChat, 1) }, ErrIsOwner, ""},
		{"ban owner", func() (Member, error) { return ms.Ban(testChat, 1, 0) }, ErrIsOwner, ""},
		{"restrict owner", func() (Member, error) { return ms.Restrict(testChat, 1, botapi.ChatPermissions{}, 0) }, ErrIsOwner, ""},
		{"promote owner", func() (Member, error) {
			return ms.SetAdmin(testChat, 1, botapi.ChatAdministratorRights{}, "")
		}, ErrIsOwner, ""},
		{"promote member", func() (Member, error) {
			return ms.SetAdmin(testChat, 2, botapi.ChatAdministratorRights{CanDeleteMessages: true}, "mod")
		}, nil, botapi.StatusAdministrator},
		{"restrict admin", func() (Member, error) { return ms.Restrict(testChat, 2, botapi.ChatPermissions{}, 0) }, ErrIsAdmin, ""},
		{"demote admin", func() (Member, error) { return ms.Demote(testChat, 2) }, nil, botapi.StatusMember},
		{"ban member", func() (Member, error) { return ms.Ban(testChat, 2, 0) }, nil, botapi.StatusKicked},
		{"unban", func() (Member, error) { return ms.Unban(testChat, 2) }, nil, botapi.StatusLeft},
		{"rejoin", func() (Member, error) { return ms.SetMember(testChat, 2), nil }, nil, botapi.StatusMember},
		{"leave", func() (Member, error) { return ms.Leave(testChat, 2) }, nil, botapi.StatusLeft},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := tt.op()
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if m.Status() != tt.want {
				t.Errorf("status = %q, want %q", m.Status(), tt.want)
			}
		})
	}
}

func TestMemberState_PromotionDoesNotInheritRights(t *testing.T) {
	ms := NewMemberState(clock.NewSim(clock.DefaultStart))
	ms.SetMember(testChat, 2)
	ms.SetAdmin(testChat, 2, botapi.ChatAdministratorRights{CanDeleteMessages: true, CanPinMessages: true}, "")
	ms.SetAdmin(testChat, 2, botapi.ChatAdministratorRights{CanInviteUsers: true}, "")

	r, ok := ms.Rights(testChat, 2)
	if !ok {
		t.Fatal("expected admin rights")
	}
	if r.CanDeleteMessages || r.CanPinMessages || !r.CanInviteUsers {
		t.Errorf("rights = %+v", r)
	}
}

func TestMemberState_RejoinResetsJoinDate(t *testing.T) {
	clk := clock.NewSim(clock.DefaultStart)
	ms := NewMemberState(clk)
	first := ms.SetMember(testChat, 2)
	ms.Ban(testChat, 2, 0)
	clk.Advance(time.Hour)
	again := ms.SetMember(testChat, 2)
	if again.JoinedAt != first.JoinedAt+3600 {
		t.Errorf("joined_at = %d, want %d", again.JoinedAt, first.JoinedAt+3600)
	}
	if ms.Count(testChat) != 1 {
		t.Errorf("count = %d, want 1", ms.Count(testChat))
	}
}

func TestMemberState_BanExpires(t *testing.T) {
	clk := clock.NewSim(clock.DefaultStart)
	ms := NewMemberState(clk)
	ms.SetMember(testChat, 2)
	ms.Ban(testChat, 2, clk.Unix()+30)

	clk.Advance(31 * time.Second)
	m, _ := ms.Settle(testChat, 2)
	if m.Status() != botapi.StatusLeft {
		t.Errorf("status = %q, want left", m.Status())
	}
}

func TestMember_ChatMemberVariant(t *testing.T) {
	u := botapi.User{ID: 2, FirstName: "Bob"}
	m := Member{ChatID: testChat, UserID: 2, State: Restricted{UntilDate: 99, IsMember: true}}
	cm, ok := m.ChatMember(u).(botapi.ChatMemberRestricted)
	if !ok {
		t.Fatalf("variant = %T", m.ChatMember(u))
	}
	if cm.UntilDate != 99 || !cm.IsMember || cm.User.ID != 2 {
		t.Errorf("converted = %+v", cm)
	}
}
