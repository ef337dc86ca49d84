package store

import (
	"sort"
	"sync"

	"github.com/nextlevelbuilder/botsim/internal/clock"
	"github.com/nextlevelbuilder/botsim/pkg/botapi"
)

// Membership is the status-tagged state of one (chat, user) pair. Each variant
// carries only the fields valid for its status.
type Membership interface {
	Status() string
}

// Owner is the chat creator.
type Owner struct {
	Title       string
	IsAnonymous bool
}

// Admin is a promoted member with an explicit rights record.
type Admin struct {
	Rights      botapi.ChatAdministratorRights
	Title       string
	CanBeEdited bool
}

// Regular is an ordinary member.
type Regular struct{}

// Restricted is a user under restrictions. UntilDate 0 means forever.
type Restricted struct {
	Permissions botapi.ChatPermissions
	UntilDate   int64
	IsMember    bool
}

// Left is a user who left or was removed without a ban.
type Left struct{}

// Banned is a kicked user. UntilDate 0 means forever.
type Banned struct {
	UntilDate int64
}

func (Owner) Status() string      { return botapi.StatusCreator }
func (Admin) Status() string      { return botapi.StatusAdministrator }
func (Regular) Status() string    { return botapi.StatusMember }
func (Restricted) Status() string { return botapi.StatusRestricted }
func (Left) Status() string       { return botapi.StatusLeft }
func (Banned) Status() string     { return botapi.StatusKicked }

// Member is a snapshot of one membership.
type Member struct {
	ChatID   int64
	UserID   int64
	JoinedAt int64
	State    Membership
}

// Status is shorthand for m.State.Status().
func (m Member) Status() string {
	if m.State == nil {
		return botapi.StatusLeft
	}
	return m.State.Status()
}

// IsCurrent reports whether the user currently belongs to the chat.
func (m Member) IsCurrent() bool {
	switch s := m.State.(type) {
	case Owner, Admin, Regular:
		return true
	case Restricted:
		return s.IsMember
	}
	return false
}

// IsAdmin reports whether the member is the creator or an administrator.
func (m Member) IsAdmin() bool {
	switch m.State.(type) {
	case Owner, Admin:
		return true
	}
	return false
}

// Rights returns the administrator rights; the creator holds all of them.
func (m Member) Rights() (botapi.ChatAdministratorRights, bool) {
	switch s := m.State.(type) {
	case Owner:
		r := botapi.FullAdministratorRights()
		r.IsAnonymous = s.IsAnonymous
		return r, true
	case Admin:
		return s.Rights, true
	}
	return botapi.ChatAdministratorRights{}, false
}

// ChatMember converts the membership to its wire variant for user.
func (m Member) ChatMember(user botapi.User) botapi.ChatMember {
	switch s := m.State.(type) {
	case Owner:
		return botapi.ChatMemberOwner{User: user, IsAnonymous: s.IsAnonymous, CustomTitle: s.Title}
	case Admin:
		return botapi.ChatMemberAdministrator{User: user, CanBeEdited: s.CanBeEdited, ChatAdministratorRights: s.Rights, CustomTitle: s.Title}
	case Regular:
		return botapi.ChatMemberMember{User: user}
	case Restricted:
		return botapi.ChatMemberRestricted{User: user, IsMember: s.IsMember, ChatPermissions: s.Permissions, UntilDate: s.UntilDate}
	case Banned:
		return botapi.ChatMemberBanned{User: user, UntilDate: s.UntilDate}
	}
	return botapi.ChatMemberLeft{User: user}
}

type memberKey struct {
	chatID int64
	userID int64
}

// MemberState owns users and their chat memberships. Permission checks are the
// dispatcher's job; this store only enforces the state machine.
type MemberState struct {
	mu      sync.Mutex
	clock   clock.Clock
	users   map[int64]botapi.User
	members map[memberKey]*Member
}

// NewMemberState creates an empty member store.
func NewMemberState(clk clock.Clock) *MemberState {
	return &MemberState{
		clock:   clk,
		users:   make(map[int64]botapi.User),
		members: make(map[memberKey]*Member),
	}
}

func (s *MemberState) now() int64 { return s.clock.Now().Unix() }

// PutUser registers or replaces a user.
func (s *MemberState) PutUser(u botapi.User) {
	s.mu.Lock()
	s.users[u.ID] = u
	s.mu.Unlock()
}

// User returns a registered user.
func (s *MemberState) User(id int64) (botapi.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	return u, ok
}

// Member returns the membership without settling expiry.
func (s *MemberState) Member(chatID, userID int64) (Member, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[memberKey{chatID, userID}]
	if !ok {
		return Member{}, false
	}
	return *m, true
}

// Settle is an observe-and-settle read: an expired restriction turns back into
// a regular membership (or Left for non-members) and an expired ban into Left,
// then the settled membership is returned.
func (s *MemberState) Settle(chatID, userID int64) (Member, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[memberKey{chatID, userID}]
	if !ok {
		return Member{}, false
	}
	s.settle(m)
	return *m, true
}

func (s *MemberState) settle(m *Member) {
	now := s.now()
	switch st := m.State.(type) {
	case Restricted:
		if st.UntilDate > 0 && st.UntilDate < now {
			if st.IsMember {
				m.State = Regular{}
			} else {
				m.State = Left{}
			}
		}
	case Banned:
		if st.UntilDate > 0 && st.UntilDate < now {
			m.State = Left{}
		}
	}
}

// CanSendMessages settles expiry and reports whether the member's own status lets
// them post. Chat-wide default permissions are applied by the caller.
func (s *MemberState) CanSendMessages(chatID, userID int64) bool {
	m, ok := s.Settle(chatID, userID)
	if !ok {
		return false
	}
	switch st := m.State.(type) {
	case Owner, Admin, Regular:
		return true
	case Restricted:
		return st.IsMember && st.Permissions.CanSendMessages
	}
	return false
}

// IsMember reports whether the user currently belongs to the chat.
func (s *MemberState) IsMember(chatID, userID int64) bool {
	m, ok := s.Member(chatID, userID)
	return ok && m.IsCurrent()
}

// IsAdmin reports whether the user is the creator or an administrator.
func (s *MemberState) IsAdmin(chatID, userID int64) bool {
	m, ok := s.Member(chatID, userID)
	return ok && m.IsAdmin()
}

// Rights returns the user's administrator rights in the chat.
func (s *MemberState) Rights(chatID, userID int64) (botapi.ChatAdministratorRights, bool) {
	m, ok := s.Member(chatID, userID)
	if !ok {
		return botapi.ChatAdministratorRights{}, false
	}
	return m.Rights()
}

func (s *MemberState) set(chatID, userID int64, state Membership) Member {
	k := memberKey{chatID, userID}
	m, ok := s.members[k]
	if !ok {
		m = &Member{ChatID: chatID, UserID: userID, JoinedAt: s.now()}
		s.members[k] = m
	}
	m.State = state
	return *m
}

// SetMember makes the user a regular member. Joining from Left or Banned (or for
// the first time) starts a fresh membership; current members are unchanged.
func (s *MemberState) SetMember(chatID, userID int64) Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := memberKey{chatID, userID}
	if m, ok := s.members[k]; ok {
		s.settle(m)
		if m.IsCurrent() {
			return *m
		}
		if r, ok := m.State.(Restricted); ok {
			r.IsMember = true
			m.State = r
			m.JoinedAt = s.now()
			return *m
		}
		delete(s.members, k)
	}
	return s.set(chatID, userID, Regular{})
}

// SetOwner makes the user the chat creator. Idempotent.
func (s *MemberState) SetOwner(chatID, userID int64) Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.members[memberKey{chatID, userID}]; ok {
		if _, isOwner := m.State.(Owner); isOwner {
			return *m
		}
	}
	return s.set(chatID, userID, Owner{})
}

// SetAdmin promotes the user with exactly the given rights; nothing is inherited
// from an earlier promotion.
func (s *MemberState) SetAdmin(chatID, userID int64, rights botapi.ChatAdministratorRights, title string) (Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.members[memberKey{chatID, userID}]; ok {
		if _, isOwner := m.State.(Owner); isOwner {
			return Member{}, ErrIsOwner
		}
	}
	return s.set(chatID, userID, Admin{Rights: rights, Title: title, CanBeEdited: true}), nil
}

// Demote turns an administrator back into a regular member, clearing rights and title.
func (s *MemberState) Demote(chatID, userID int64) (Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[memberKey{chatID, userID}]
	if !ok {
		return Member{}, ErrNotMember
	}
	switch m.State.(type) {
	case Owner:
		return Member{}, ErrIsOwner
	case Admin:
		m.State = Regular{}
	}
	if !m.IsCurrent() {
		return Member{}, ErrNotMember
	}
	return *m, nil
}

// SetCustomTitle changes an administrator's title.
func (s *MemberState) SetCustomTitle(chatID, userID int64, title string) (Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[memberKey{chatID, userID}]
	if !ok {
		return Member{}, ErrNotMember
	}
	switch st := m.State.(type) {
	case Owner:
		st.Title = title
		m.State = st
	case Admin:
		st.Title = title
		m.State = st
	default:
		return Member{}, ErrNotAdmin
	}
	return *m, nil
}

// Restrict applies per-member permissions until untilDate (0 = forever).
// Administrators and the creator cannot be restricted.
func (s *MemberState) Restrict(chatID, userID int64, perms botapi.ChatPermissions, untilDate int64) (Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	isMember := false
	if m, ok := s.members[memberKey{chatID, userID}]; ok {
		switch m.State.(type) {
		case Owner:
			return Member{}, ErrIsOwner
		case Admin:
			return Member{}, ErrIsAdmin
		}
		isMember = m.IsCurrent()
	}
	return s.set(chatID, userID, Restricted{Permissions: perms, UntilDate: untilDate, IsMember: isMember}), nil
}

// Unrestrict lifts a restriction. Only valid from Restricted.
func (s *MemberState) Unrestrict(chatID, userID int64) (Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[memberKey{chatID, userID}]
	if !ok {
		return Member{}, ErrNotRestricted
	}
	r, ok := m.State.(Restricted)
	if !ok {
		return Member{}, ErrNotRestricted
	}
	if r.IsMember {
		m.State = Regular{}
	} else {
		m.State = Left{}
	}
	return *m, nil
}

// Ban kicks the user until untilDate (0 = forever). The creator cannot be banned.
func (s *MemberState) Ban(chatID, userID int64, untilDate int64) (Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.members[memberKey{chatID, userID}]; ok {
		if _, isOwner := m.State.(Owner); isOwner {
			return Member{}, ErrIsOwner
		}
	}
	return s.set(chatID, userID, Banned{UntilDate: untilDate}), nil
}

// Unban moves the user to Left.
func (s *MemberState) Unban(chatID, userID int64) (Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[memberKey{chatID, userID}]
	if !ok {
		return Member{}, ErrNotMember
	}
	if _, isOwner := m.State.(Owner); isOwner {
		return Member{}, ErrIsOwner
	}
	m.State = Left{}
	return *m, nil
}

// Leave moves the user to Left.
func (s *MemberState) Leave(chatID, userID int64) (Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[memberKey{chatID, userID}]
	if !ok {
		return Member{}, ErrNotMember
	}
	m.State = Left{}
	return *m, nil
}

// Members lists every membership record of a chat, current or not, by user id.
func (s *MemberState) Members(chatID int64) []Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Member
	for k, m := range s.members {
		if k.chatID == chatID {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// Administrators lists the creator and administrators, creator first.
func (s *MemberState) Administrators(chatID int64) []Member {
	var out []Member
	for _, m := range s.Members(chatID) {
		if m.IsAdmin() {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		_, iOwner := out[i].State.(Owner)
		_, jOwner := out[j].State.(Owner)
		return iOwner && !jOwner
	})
	return out
}

// Count returns the number of current members.
func (s *MemberState) Count(chatID int64) int {
	n := 0
	for _, m := range s.Members(chatID) {
		if m.IsCurrent() {
			n++
		}
	}
	return n
}

// CopyChat duplicates every membership of one chat into another, used when a
// group migrates to a supergroup.
func (s *MemberState) CopyChat(from, to int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, m := range s.members {
		if k.chatID != from {
			continue
		}
		cp := *m
		cp.ChatID = to
		s.members[memberKey{to, k.userID}] = &cp
	}
}

// Reset drops every user and membership.
func (s *MemberState) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = make(map[int64]botapi.User)
	s.members = make(map[memberKey]*Member)
}
