package store

import (
	"errors"
	"testing"
	"time"

	"github.com/nextlevelbuilder/botsim/internal/clock"
	"github.com/nextlevelbuilder/botsim/pkg/botapi"
)

func newGroupState(t *testing.T) (*ChatState, *clock.Sim) {
	t.Helper()
	clk := clock.NewSim(clock.DefaultStart)
	cs := NewChatState(clk, DefaultRateLimits())
	cs.Create(botapi.Chat{ID: testChat, Type: botapi.ChatTypeSupergroup, Title: "Test"})
	return cs, clk
}

var creator = botapi.User{ID: 1, FirstName: "Owner"}

func TestInviteLink_MemberLimit(t *testing.T) {
	cs, _ := newGroupState(t)
	link, err := cs.CreateInviteLink(testChat, creator, InviteLinkOptions{MemberLimit: 2})
	if err != nil {
		t.Fatal(err)
	}

	for i, userID := range []int64{10, 11} {
		l, err := cs.UseInviteLink(testChat, link.URL, userID)
		if err != nil {
			t.Fatalf("use %d: %v", i, err)
		}
		if l.UsageCount != i+1 {
			t.Errorf("usage = %d, want %d", l.UsageCount, i+1)
		}
	}
	if _, err := cs.UseInviteLink(testChat, link.URL, 12); !errors.Is(err, ErrLinkLimitReached) {
		t.Fatalf("third use err = %v, want ErrLinkLimitReached", err)
	}
	l, _ := cs.InviteLink(testChat, link.URL)
	if l.UsageCount != 2 {
		t.Errorf("usage after rejection = %d, want 2", l.UsageCount)
	}
	if len(l.Joined) != 2 {
		t.Errorf("joined = %v", l.Joined)
	}
}

func TestInviteLink_Validity(t *testing.T) {
	cs, clk := newGroupState(t)
	now := clk.Unix()

	tests := []struct {
		name string
		link InviteLink
		want bool
	}{
		{"plain", InviteLink{}, true},
		{"revoked", InviteLink{IsRevoked: true}, false},
		{"expires now", InviteLink{ExpireDate: now}, true},
		{"expired", InviteLink{ExpireDate: now - 1}, false},
		{"under limit", InviteLink{MemberLimit: 2, UsageCount: 1}, true},
		{"at limit", InviteLink{MemberLimit: 2, UsageCount: 2}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.link.ValidAt(now); got != tt.want {
				t.Errorf("ValidAt = %v, want %v", got, tt.want)
			}
		})
	}

	link, _ := cs.CreateInviteLink(testChat, creator, InviteLinkOptions{ExpireDate: now + 10})
	clk.Advance(11 * time.Second)
	if cs.IsInviteLinkValid(testChat, link.URL) {
		t.Error("link valid after expire_date")
	}
	if _, err := cs.UseInviteLink(testChat, link.URL, 5); !errors.Is(err, ErrLinkExpired) {
		t.Errorf("err = %v, want ErrLinkExpired", err)
	}
}

func TestInviteLink_RevokeIsIdempotent(t *testing.T) {
	cs, _ := newGroupState(t)
	link, _ := cs.CreateInviteLink(testChat, creator, InviteLinkOptions{Name: "promo"})

	first, already, err := cs.RevokeInviteLink(testChat, link.URL)
	if err != nil || already || !first.IsRevoked {
		t.Fatalf("first revoke = %+v, %v, %v", first, already, err)
	}
	second, already, err := cs.RevokeInviteLink(testChat, link.URL)
	if err != nil {
		t.Fatalf("second revoke err = %v", err)
	}
	if !already || !second.IsRevoked {
		t.Errorf("second revoke = %+v, already=%v", second, already)
	}
	if _, err := cs.EditInviteLink(testChat, link.URL, InviteLinkOptions{}); !errors.Is(err, ErrLinkRevoked) {
		t.Errorf("edit revoked err = %v", err)
	}
}

func TestInviteLink_PrimaryLifecycle(t *testing.T) {
	cs, _ := newGroupState(t)
	if _, ok := cs.Primary(testChat); ok {
		t.Fatal("primary link exists before export")
	}
	first, err := cs.ExportInviteLink(testChat, creator)
	if err != nil || !first.IsPrimary {
		t.Fatalf("export = %+v, %v", first, err)
	}
	second, _ := cs.ExportInviteLink(testChat, creator)
	if second.URL == first.URL {
		t.Fatal("export reused the old link")
	}
	old, _ := cs.InviteLink(testChat, first.URL)
	if !old.IsRevoked || old.IsPrimary {
		t.Errorf("old primary = %+v", old)
	}

	cs.RevokeInviteLink(testChat, second.URL)
	cur, ok := cs.Primary(testChat)
	if !ok || cur.URL == second.URL || cur.IsRevoked {
		t.Errorf("primary after revoke = %+v, %v", cur, ok)
	}
}

func TestInviteLink_JoinRequests(t *testing.T) {
	cs, _ := newGroupState(t)
	if _, err := cs.CreateInviteLink(testChat, creator, InviteLinkOptions{CreatesJoinRequest: true, MemberLimit: 5}); !errors.Is(err, ErrLinkConflict) {
		t.Fatalf("err = %v, want ErrLinkConflict", err)
	}
	link, _ := cs.CreateInviteLink(testChat, creator, InviteLinkOptions{CreatesJoinRequest: true})
	if _, err := cs.UseInviteLink(testChat, link.URL, 7); !errors.Is(err, ErrLinkNeedsRequest) {
		t.Fatalf("err = %v, want ErrLinkNeedsRequest", err)
	}
	if _, err := cs.RequestJoin(testChat, link.URL, 7); err != nil {
		t.Fatal(err)
	}
	l, _ := cs.InviteLink(testChat, link.URL)
	if l.API().PendingJoinRequestCount != 1 {
		t.Errorf("pending = %d, want 1", l.API().PendingJoinRequestCount)
	}
	if _, err := cs.ResolveJoinRequest(testChat, 7, true); err != nil {
		t.Fatal(err)
	}
	if _, err := cs.ResolveJoinRequest(testChat, 7, true); !errors.Is(err, ErrRequestNotFound) {
		t.Errorf("second resolve err = %v", err)
	}
	l, _ = cs.InviteLink(testChat, link.URL)
	if len(l.Pending) != 0 || len(l.Joined) != 1 || l.UsageCount != 0 {
		t.Errorf("link after approval = %+v", l)
	}
}
