package dispatcher

import (
	"context"
	"errors"
	"unicode/utf8"

	"github.com/nextlevelbuilder/botsim/internal/store"
	"github.com/nextlevelbuilder/botsim/pkg/botapi"
)

// Restrictions and bans shorter than 30 seconds or longer than 366 days are
// permanent.
const (
	minUntilPeriod = 30
	maxUntilPeriod = 366 * 24 * 60 * 60
)

func (s *Server) untilDate(p botapi.Params) int64 {
	until, _ := p.Int64("until_date")
	now := s.clock.Unix()
	if until == 0 || until-now < minUntilPeriod || until-now > maxUntilPeriod {
		return 0
	}
	return until
}

// memberTarget resolves chat and user_id of a member management call and checks
// the bot's right r.
func (s *Server) memberTarget(p botapi.Params, r right) (store.Chat, botapi.User, error) {
	c, err := s.resolveChat(p)
	if err != nil {
		return store.Chat{}, botapi.User{}, err
	}
	if err := requireGroup(c); err != nil {
		return store.Chat{}, botapi.User{}, err
	}
	u, err := s.resolveUser(p, "user_id")
	if err != nil {
		return store.Chat{}, botapi.User{}, err
	}
	if _, err := s.requireRight(c, r); err != nil {
		return store.Chat{}, botapi.User{}, err
	}
	return c, u, nil
}

// guardTarget rejects acting on self, on the owner, and on administrators the
// bot did not promote.
func (s *Server) guardTarget(c store.Chat, userID int64, self string) error {
	if userID == s.botID() {
		return botapi.InvalidArgument(self)
	}
	m, ok := s.Members.Member(c.ID, userID)
	if !ok {
		return nil
	}
	switch st := m.State.(type) {
	case store.Owner:
		return botapi.NotEnoughRights("can't remove chat owner")
	case store.Admin:
		if !st.CanBeEdited {
			return botapi.NotEnoughRights("user is an administrator of the chat")
		}
	}
	return nil
}

func (s *Server) handleBanChatMember(_ context.Context, call *Call) (any, error) {
	p := call.Params
	c, u, err := s.memberTarget(p, rightRestrict)
	if err != nil {
		return nil, err
	}
	if err := s.guardTarget(c, u.ID, "can't remove self"); err != nil {
		return nil, err
	}
	until := s.untilDate(p)
	if c.Type == botapi.ChatTypeGroup {
		until = 0
	}
	m, err := s.Members.Ban(c.ID, u.ID, until)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	if p.Bool("revoke_messages") || c.Type == botapi.ChatTypeGroup {
		for _, msg := range s.Chats.Messages(c.ID) {
			if msg.From != nil && msg.From.ID == u.ID {
				s.Chats.DeleteMessage(c.ID, msg.MessageID)
			}
		}
	}
	call.Response.AddMemberChange(c.ID, u.ID, m.Status())
	return true, nil
}

func (s *Server) handleUnbanChatMember(_ context.Context, call *Call) (any, error) {
	p := call.Params
	c, u, err := s.memberTarget(p, rightRestrict)
	if err != nil {
		return nil, err
	}
	if u.ID == s.botID() {
		return nil, botapi.InvalidArgument("can't unban self")
	}
	m, ok := s.Members.Settle(c.ID, u.ID)
	if !ok {
		return true, nil
	}
	switch {
	case m.Status() == botapi.StatusKicked:
	case p.Bool("only_if_banned"):
		return true, nil
	case m.Status() == botapi.StatusCreator:
		return nil, botapi.NotEnoughRights("can't remove chat owner")
	case !m.IsCurrent():
		return true, nil
	}
	if m.IsAdmin() {
		if err := s.guardTarget(c, u.ID, "can't unban self"); err != nil {
			return nil, err
		}
	}
	m, err = s.Members.Unban(c.ID, u.ID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	call.Response.AddMemberChange(c.ID, u.ID, m.Status())
	return true, nil
}

// fullPermissions reports whether perms grants everything, which lifts a restriction.
func fullPermissions(perms botapi.ChatPermissions) bool {
	all := botapi.DefaultChatPermissions()
	all.CanChangeInfo, all.CanManageTopics = true, true
	return perms == all
}

func (s *Server) handleRestrictChatMember(_ context.Context, call *Call) (any, error) {
	p := call.Params
	c, u, err := s.memberTarget(p, rightRestrict)
	if err != nil {
		return nil, err
	}
	if c.Type != botapi.ChatTypeSupergroup {
		return nil, botapi.InvalidArgument("method is available only for supergroups")
	}
	if u.ID == s.botID() {
		return nil, botapi.InvalidArgument("can't restrict self")
	}
	var perms botapi.ChatPermissions
	found, err := p.Decode("permissions", &perms)
	if err != nil || !found {
		return nil, botapi.InvalidArgument("can't parse chat permissions JSON object")
	}
	var m store.Member
	if fullPermissions(perms) {
		m, err = s.Members.Unrestrict(c.ID, u.ID)
		if errors.Is(err, store.ErrNotRestricted) {
			return true, nil
		}
	} else {
		m, err = s.Members.Restrict(c.ID, u.ID, perms, s.untilDate(p))
	}
	if err != nil {
		return nil, mapStoreErr(err)
	}
	call.Response.AddMemberChange(c.ID, u.ID, m.Status())
	return true, nil
}

// promoteRights reads the rights flags of promoteChatMember.
func promoteRights(p botapi.Params) botapi.ChatAdministratorRights {
	return botapi.ChatAdministratorRights{
		IsAnonymous:         p.Bool("is_anonymous"),
		CanManageChat:       p.Bool("can_manage_chat"),
		CanDeleteMessages:   p.Bool("can_delete_messages"),
		CanManageVideoChats: p.Bool("can_manage_video_chats"),
		CanRestrictMembers:  p.Bool("can_restrict_members"),
		CanPromoteMembers:   p.Bool("can_promote_members"),
		CanChangeInfo:       p.Bool("can_change_info"),
		CanInviteUsers:      p.Bool("can_invite_users"),
		CanPostStories:      p.Bool("can_post_stories"),
		CanEditStories:      p.Bool("can_edit_stories"),
		CanDeleteStories:    p.Bool("can_delete_stories"),
		CanPostMessages:     p.Bool("can_post_messages"),
		CanEditMessages:     p.Bool("can_edit_messages"),
		CanPinMessages:      p.Bool("can_pin_messages"),
		CanManageTopics:     p.Bool("can_manage_topics"),
	}
}

// exceeds reports whether want grants a right have lacks.
func exceeds(want, have botapi.ChatAdministratorRights) bool {
	pairs := [][2]bool{
		{want.CanManageChat, have.CanManageChat},
		{want.CanDeleteMessages, have.CanDeleteMessages},
		{want.CanManageVideoChats, have.CanManageVideoChats},
		{want.CanRestrictMembers, have.CanRestrictMembers},
		{want.CanPromoteMembers, have.CanPromoteMembers},
		{want.CanChangeInfo, have.CanChangeInfo},
		{want.CanInviteUsers, have.CanInviteUsers},
		{want.CanPostStories, have.CanPostStories},
		{want.CanEditStories, have.CanEditStories},
		{want.CanDeleteStories, have.CanDeleteStories},
		{want.CanPostMessages, have.CanPostMessages},
		{want.CanEditMessages, have.CanEditMessages},
		{want.CanPinMessages, have.CanPinMessages},
		{want.CanManageTopics, have.CanManageTopics},
	}
	for _, pr := range pairs {
		if pr[0] && !pr[1] {
			return true
		}
	}
	return false
}

func (s *Server) handlePromoteChatMember(_ context.Context, call *Call) (any, error) {
	p := call.Params
	c, u, err := s.memberTarget(p, rightPromote)
	if err != nil {
		return nil, err
	}
	if u.ID == s.botID() {
		return nil, botapi.InvalidArgument("can't promote self")
	}
	if err := s.guardTarget(c, u.ID, "can't promote self"); err != nil {
		return nil, err
	}
	want := promoteRights(p)
	if want == (botapi.ChatAdministratorRights{}) {
		m, err := s.Members.Demote(c.ID, u.ID)
		if err != nil {
			return nil, mapStoreErr(err)
		}
		call.Response.AddMemberChange(c.ID, u.ID, m.Status())
		return true, nil
	}
	have, _ := s.Members.Rights(c.ID, s.botID())
	if exceeds(want, have) {
		return nil, botapi.NotEnoughRights("RIGHT_FORBIDDEN")
	}
	if !s.Members.IsMember(c.ID, u.ID) {
		return nil, mapStoreErr(store.ErrNotMember)
	}
	title := ""
	if cur, ok := s.Members.Member(c.ID, u.ID); ok {
		if a, isAdmin := cur.State.(store.Admin); isAdmin {
			title = a.Title
		}
	}
	m, err := s.Members.SetAdmin(c.ID, u.ID, want, title)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	call.Response.AddMemberChange(c.ID, u.ID, m.Status())
	return true, nil
}

func (s *Server) handleSetChatAdministratorCustomTitle(_ context.Context, call *Call) (any, error) {
	p := call.Params
	c, u, err := s.memberTarget(p, rightPromote)
	if err != nil {
		return nil, err
	}
	if c.Type != botapi.ChatTypeSupergroup {
		return nil, botapi.InvalidArgument("method is available only for supergroups")
	}
	title := p.String("custom_title")
	if utf8.RuneCountInString(title) > 16 {
		return nil, botapi.InvalidArgument("ADMIN_RANK_INVALID")
	}
	if err := s.guardTarget(c, u.ID, "can't change own title"); err != nil {
		return nil, err
	}
	if _, err := s.Members.SetCustomTitle(c.ID, u.ID, title); err != nil {
		return nil, mapStoreErr(err)
	}
	return true, nil
}

func (s *Server) resolveJoinRequest(call *Call, approved bool) (any, error) {
	p := call.Params
	c, u, err := s.memberTarget(p, rightInvite)
	if err != nil {
		return nil, err
	}
	if _, err := s.Chats.ResolveJoinRequest(c.ID, u.ID, approved); err != nil {
		return nil, mapStoreErr(err)
	}
	if !approved {
		return true, nil
	}
	m := s.Members.SetMember(c.ID, u.ID)
	s.serviceMessage(c, botapi.Message{NewChatMembers: []botapi.User{u}})
	call.Response.AddMemberChange(c.ID, u.ID, m.Status())
	return true, nil
}

func (s *Server) handleApproveChatJoinRequest(_ context.Context, call *Call) (any, error) {
	return s.resolveJoinRequest(call, true)
}

func (s *Server) handleDeclineChatJoinRequest(_ context.Context, call *Call) (any, error) {
	return s.resolveJoinRequest(call, false)
}
