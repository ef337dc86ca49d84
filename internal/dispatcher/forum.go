package dispatcher

import (
	"context"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/nextlevelbuilder/botsim/internal/store"
	"github.com/nextlevelbuilder/botsim/pkg/botapi"
)

// topicColors are the icon colors a new topic may use.
var topicColors = []int{7322096, 16766590, 13338331, 9367192, 16749490, 16478047}

// forumChat resolves a forum supergroup and checks the bot's right r.
func (s *Server) forumChat(p botapi.Params, r right) (store.Chat, error) {
	c, err := s.resolveChat(p)
	if err != nil {
		return store.Chat{}, err
	}
	if !c.IsForum {
		return store.Chat{}, mapStoreErr(store.ErrNotForum)
	}
	if _, err := s.requireRight(c, r); err != nil {
		return store.Chat{}, err
	}
	return c, nil
}

func topicName(name string) error {
	if n := utf8.RuneCountInString(strings.TrimSpace(name)); n == 0 || n > 128 {
		return botapi.InvalidArgument("TOPIC_TITLE_EMPTY")
	}
	return nil
}

func (s *Server) handleCreateForumTopic(_ context.Context, call *Call) (any, error) {
	p := call.Params
	c, err := s.forumChat(p, rightTopics)
	if err != nil {
		return nil, err
	}
	name := p.String("name")
	if err := topicName(name); err != nil {
		return nil, err
	}
	color := p.IntOr("icon_color", 0)
	if color != 0 && !slices.Contains(topicColors, color) {
		return nil, botapi.InvalidArgument("invalid icon_color specified")
	}
	t, err := s.Chats.CreateTopic(c.ID, name, color, p.String("icon_custom_emoji_id"))
	if err != nil {
		return nil, mapStoreErr(err)
	}
	s.serviceMessage(c, botapi.Message{
		MessageThreadID:   t.MessageThreadID,
		ForumTopicCreated: &botapi.ForumTopicCreated{Name: t.Name, IconColor: t.IconColor},
	})
	call.Response.AddTopic(t.ForumTopic)
	return t.ForumTopic, nil
}

func (s *Server) editTopic(call *Call, threadID int) (any, error) {
	p := call.Params
	c, err := s.forumChat(p, rightTopics)
	if err != nil {
		return nil, err
	}
	var name, emoji *string
	if p.Has("name") {
		n := p.String("name")
		if err := topicName(n); err != nil {
			return nil, err
		}
		name = &n
	}
	if p.Has("icon_custom_emoji_id") {
		e := p.String("icon_custom_emoji_id")
		emoji = &e
	}
	if name == nil && emoji == nil {
		return nil, botapi.InvalidArgument("TOPIC_NOT_MODIFIED")
	}
	t, err := s.Chats.EditTopic(c.ID, threadID, name, emoji)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	call.Response.AddTopic(t.ForumTopic)
	return true, nil
}

func threadParam(p botapi.Params) (int, error) {
	id, ok := p.Int("message_thread_id")
	if !ok || id <= 0 {
		return 0, botapi.InvalidArgument("message thread not found")
	}
	return id, nil
}

func (s *Server) handleEditForumTopic(_ context.Context, call *Call) (any, error) {
	id, err := threadParam(call.Params)
	if err != nil {
		return nil, err
	}
	return s.editTopic(call, id)
}

func (s *Server) handleEditGeneralForumTopic(_ context.Context, call *Call) (any, error) {
	if !call.Params.Has("name") {
		return nil, botapi.InvalidArgument("TOPIC_NOT_MODIFIED")
	}
	return s.editTopic(call, store.GeneralTopicID)
}

func (s *Server) setTopicClosed(call *Call, threadID int, closed bool) (any, error) {
	c, err := s.forumChat(call.Params, rightTopics)
	if err != nil {
		return nil, err
	}
	t, err := s.Chats.SetTopicClosed(c.ID, threadID, closed)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	call.Response.AddTopic(t.ForumTopic)
	return true, nil
}

func (s *Server) handleCloseForumTopic(_ context.Context, call *Call) (any, error) {
	id, err := threadParam(call.Params)
	if err != nil {
		return nil, err
	}
	return s.setTopicClosed(call, id, true)
}

func (s *Server) handleReopenForumTopic(_ context.Context, call *Call) (any, error) {
	id, err := threadParam(call.Params)
	if err != nil {
		return nil, err
	}
	return s.setTopicClosed(call, id, false)
}

func (s *Server) handleCloseGeneralForumTopic(_ context.Context, call *Call) (any, error) {
	return s.setTopicClosed(call, store.GeneralTopicID, true)
}

func (s *Server) handleReopenGeneralForumTopic(_ context.Context, call *Call) (any, error) {
	return s.setTopicClosed(call, store.GeneralTopicID, false)
}

func (s *Server) handleDeleteForumTopic(_ context.Context, call *Call) (any, error) {
	p := call.Params
	id, err := threadParam(p)
	if err != nil {
		return nil, err
	}
	c, err := s.forumChat(p, rightDelete)
	if err != nil {
		return nil, err
	}
	if err := s.Chats.DeleteTopic(c.ID, id); err != nil {
		return nil, mapStoreErr(err)
	}
	return true, nil
}
