package dispatcher

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/nextlevelbuilder/botsim/internal/store"
	"github.com/nextlevelbuilder/botsim/pkg/botapi"
)

const maxReactionCount = 11

func (s *Server) handleGetChat(_ context.Context, call *Call) (any, error) {
	c, err := s.resolveChat(call.Params)
	if err != nil {
		return nil, err
	}
	info := botapi.ChatFullInfo{
		Chat:             c.Chat,
		Description:      c.Description,
		SlowModeDelay:    c.SlowModeDelay,
		MaxReactionCount: maxReactionCount,
	}
	if c.Type != botapi.ChatTypePrivate {
		perms := c.Permissions
		info.Permissions = &perms
		if l, ok := s.Chats.Primary(c.ID); ok {
			info.InviteLink = l.URL
		}
	}
	if pinned, ok := s.Chats.PinnedMessage(c.ID); ok {
		info.PinnedMessage = &pinned
	}
	return info, nil
}

func (s *Server) handleGetChatMember(_ context.Context, call *Call) (any, error) {
	p := call.Params
	c, err := s.resolveChat(p)
	if err != nil {
		return nil, err
	}
	u, err := s.resolveUser(p, "user_id")
	if err != nil {
		return nil, err
	}
	if c.Type == botapi.ChatTypePrivate {
		if u.ID != c.ID && u.ID != s.botID() {
			return nil, botapi.InvalidArgument("USER_NOT_PARTICIPANT")
		}
		return botapi.ChatMemberMember{User: u}, nil
	}
	m, ok := s.Members.Settle(c.ID, u.ID)
	if !ok {
		return botapi.ChatMemberLeft{User: u}, nil
	}
	return m.ChatMember(u), nil
}

func (s *Server) handleGetChatMemberCount(_ context.Context, call *Call) (any, error) {
	c, err := s.resolveChat(call.Params)
	if err != nil {
		return nil, err
	}
	if c.Type == botapi.ChatTypePrivate {
		return 2, nil
	}
	return s.Members.Count(c.ID), nil
}

func (s *Server) handleGetChatAdministrators(_ context.Context, call *Call) (any, error) {
	c, err := s.resolveChat(call.Params)
	if err != nil {
		return nil, err
	}
	if c.Type == botapi.ChatTypePrivate {
		return nil, botapi.InvalidArgument("there are no administrators in the private chat")
	}
	admins := s.Members.Administrators(c.ID)
	out := make([]botapi.ChatMember, 0, len(admins))
	for _, m := range admins {
		out = append(out, m.ChatMember(s.memberUser(m.UserID)))
	}
	return out, nil
}

// serviceMessage posts a service message from the bot without throttling.
func (s *Server) serviceMessage(c store.Chat, msg botapi.Message) {
	if c.Type == botapi.ChatTypeChannel {
		sender := c.Chat
		msg.SenderChat = &sender
	} else {
		bot := s.cfg.Bot
		msg.From = &bot
	}
	if _, err := s.Chats.AddMessage(c.ID, msg); err != nil {
		s.logger.Warn("service message dropped", "chat_id", c.ID, "error", err)
	}
}

func (s *Server) handleSetChatTitle(_ context.Context, call *Call) (any, error) {
	p := call.Params
	c, err := s.resolveChat(p)
	if err != nil {
		return nil, err
	}
	if c.Type == botapi.ChatTypePrivate {
		return nil, botapi.InvalidArgument("chat title can't be changed in private chats")
	}
	title := strings.TrimSpace(p.String("title"))
	if n := utf8.RuneCountInString(title); n == 0 || n > 128 {
		return nil, botapi.InvalidArgument("chat title must be 1-128 characters")
	}
	if _, err := s.requireRight(c, rightChangeInfo); err != nil {
		return nil, err
	}
	if title == c.Title {
		return nil, botapi.InvalidArgument("chat title is not modified")
	}
	if _, err := s.Chats.SetTitle(c.ID, title); err != nil {
		return nil, mapStoreErr(err)
	}
	s.serviceMessage(c, botapi.Message{NewChatTitle: title})
	return true, nil
}

func (s *Server) handleSetChatDescription(_ context.Context, call *Call) (any, error) {
	p := call.Params
	c, err := s.resolveChat(p)
	if err != nil {
		return nil, err
	}
	if c.Type == botapi.ChatTypePrivate {
		return nil, botapi.InvalidArgument("chat description can't be changed in private chats")
	}
	desc := p.String("description")
	if utf8.RuneCountInString(desc) > 255 {
		return nil, botapi.InvalidArgument("chat description is too long")
	}
	if _, err := s.requireRight(c, rightChangeInfo); err != nil {
		return nil, err
	}
	if desc == c.Description {
		return nil, botapi.InvalidArgument("chat description is not modified")
	}
	if _, err := s.Chats.SetDescription(c.ID, desc); err != nil {
		return nil, mapStoreErr(err)
	}
	return true, nil
}

func (s *Server) handleSetChatPermissions(_ context.Context, call *Call) (any, error) {
	p := call.Params
	c, err := s.resolveChat(p)
	if err != nil {
		return nil, err
	}
	if !c.IsGroup() {
		return nil, botapi.InvalidArgument("method is available only for groups and supergroups")
	}
	var perms botapi.ChatPermissions
	found, err := p.Decode("permissions", &perms)
	if err != nil || !found {
		return nil, botapi.InvalidArgument("can't parse chat permissions JSON object")
	}
	if _, err := s.requireRight(c, rightRestrict); err != nil {
		return nil, err
	}
	if _, err := s.Chats.SetPermissions(c.ID, perms); err != nil {
		return nil, mapStoreErr(err)
	}
	return true, nil
}

func (s *Server) handleLeaveChat(_ context.Context, call *Call) (any, error) {
	c, err := s.resolveChat(call.Params)
	if err != nil {
		return nil, err
	}
	if c.Type == botapi.ChatTypePrivate {
		return nil, botapi.InvalidArgument("chat member status can't be changed in private chats")
	}
	if _, err := s.botMember(c); err != nil {
		return nil, err
	}
	if _, err := s.Members.Leave(c.ID, s.botID()); err != nil {
		return nil, mapStoreErr(err)
	}
	call.Response.AddMemberChange(c.ID, s.botID(), botapi.StatusLeft)
	return true, nil
}
