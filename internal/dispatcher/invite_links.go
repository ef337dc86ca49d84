package dispatcher

import (
	"context"
	"unicode/utf8"

	"github.com/nextlevelbuilder/botsim/internal/store"
	"github.com/nextlevelbuilder/botsim/pkg/botapi"
)

const maxMemberLimit = 99999

// linkChat resolves the chat of an invite link call; every such call needs the
// invite right.
func (s *Server) linkChat(p botapi.Params) (store.Chat, error) {
	c, err := s.resolveChat(p)
	if err != nil {
		return store.Chat{}, err
	}
	if c.Type == botapi.ChatTypePrivate {
		return store.Chat{}, botapi.InvalidArgument("can't invite members to a private chat")
	}
	if _, err := s.requireRight(c, rightInvite); err != nil {
		return store.Chat{}, err
	}
	return c, nil
}

func (s *Server) linkOptions(p botapi.Params) (store.InviteLinkOptions, error) {
	opts := store.InviteLinkOptions{
		Name:               p.String("name"),
		CreatesJoinRequest: p.Bool("creates_join_request"),
	}
	if utf8.RuneCountInString(opts.Name) > 32 {
		return opts, botapi.InvalidArgument("invite link name is too long")
	}
	if limit, ok := p.Int("member_limit"); ok {
		if limit < 1 || limit > maxMemberLimit {
			return opts, botapi.InvalidArgument("USAGE_LIMIT_INVALID")
		}
		opts.MemberLimit = limit
	}
	if exp, ok := p.Int64("expire_date"); ok && exp != 0 {
		if exp <= s.clock.Unix() {
			return opts, botapi.InvalidArgument("EXPIRE_DATE_INVALID")
		}
		opts.ExpireDate = exp
	}
	return opts, nil
}

func (s *Server) handleExportChatInviteLink(_ context.Context, call *Call) (any, error) {
	c, err := s.linkChat(call.Params)
	if err != nil {
		return nil, err
	}
	l, err := s.Chats.ExportInviteLink(c.ID, s.cfg.Bot)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	call.Response.AddInviteLink(l.API())
	return l.URL, nil
}

func (s *Server) handleCreateChatInviteLink(_ context.Context, call *Call) (any, error) {
	p := call.Params
	c, err := s.linkChat(p)
	if err != nil {
		return nil, err
	}
	opts, err := s.linkOptions(p)
	if err != nil {
		return nil, err
	}
	l, err := s.Chats.CreateInviteLink(c.ID, s.cfg.Bot, opts)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	link := l.API()
	call.Response.AddInviteLink(link)
	return link, nil
}

// ownLink loads invite_link and checks the bot created it.
func (s *Server) ownLink(c store.Chat, p botapi.Params) (store.InviteLink, error) {
	url := p.String("invite_link")
	if url == "" {
		return store.InviteLink{}, botapi.InvalidArgument("invite_link is empty")
	}
	l, ok := s.Chats.InviteLink(c.ID, url)
	if !ok {
		return store.InviteLink{}, mapStoreErr(store.ErrLinkNotFound)
	}
	if l.Creator.ID != s.botID() {
		return store.InviteLink{}, botapi.NotEnoughRights("CHAT_ADMIN_REQUIRED")
	}
	return l, nil
}

func (s *Server) handleEditChatInviteLink(_ context.Context, call *Call) (any, error) {
	p := call.Params
	c, err := s.linkChat(p)
	if err != nil {
		return nil, err
	}
	cur, err := s.ownLink(c, p)
	if err != nil {
		return nil, err
	}
	if cur.IsPrimary {
		return nil, botapi.InvalidArgument("can't edit the primary invite link")
	}
	opts, err := s.linkOptions(p)
	if err != nil {
		return nil, err
	}
	l, err := s.Chats.EditInviteLink(c.ID, cur.URL, opts)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	link := l.API()
	call.Response.AddInviteLink(link)
	return link, nil
}

func (s *Server) handleRevokeChatInviteLink(_ context.Context, call *Call) (any, error) {
	p := call.Params
	c, err := s.linkChat(p)
	if err != nil {
		return nil, err
	}
	cur, err := s.ownLink(c, p)
	if err != nil {
		return nil, err
	}
	l, already, err := s.Chats.RevokeInviteLink(c.ID, cur.URL)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	if already {
		return nil, botapi.AlreadyTerminal("invite link is already revoked")
	}
	link := l.API()
	call.Response.AddInviteLink(link)
	if fresh, ok := s.Chats.Primary(c.ID); ok && cur.IsPrimary {
		call.Response.AddInviteLink(fresh.API())
	}
	return link, nil
}
