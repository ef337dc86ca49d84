package dispatcher

import (
	"context"
	"errors"

	"github.com/nextlevelbuilder/botsim/internal/store"
	"github.com/nextlevelbuilder/botsim/pkg/botapi"
)

const notModified = "message is not modified: specified new message content and reply markup are exactly the same as a current content and reply markup of the message"

// editTarget resolves the message an edit method addresses. Inline messages are
// not stored; ok is false for them and the edit is recorded as-is.
func (s *Server) editTarget(p botapi.Params) (c store.Chat, m botapi.Message, ok bool, err error) {
	if p.Has("inline_message_id") && !p.Has("chat_id") {
		return store.Chat{}, botapi.Message{}, false, nil
	}
	c, err = s.resolveChat(p)
	if err != nil {
		return
	}
	m, err = s.resolveMessage(c, p, "message_id", "message to edit not found")
	if err != nil {
		return
	}
	if !s.ownMessage(c, m) {
		err = botapi.NotEnoughRights("message can't be edited")
		return
	}
	return c, m, true, nil
}

// applyEdit stores an edit and records it.
func (s *Server) applyEdit(call *Call, c store.Chat, id int, fn func(m *botapi.Message)) (any, error) {
	edited, err := s.Chats.EditMessage(c.ID, id, fn)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	call.Response.AddEdited(edited)
	return edited, nil
}

func (s *Server) handleEditMessageText(_ context.Context, call *Call) (any, error) {
	p := call.Params
	text, entities, err := s.messageText(p)
	if err != nil {
		return nil, err
	}
	markup, err := replyMarkup(p)
	if err != nil {
		return nil, err
	}
	c, m, stored, err := s.editTarget(p)
	if err != nil {
		return nil, err
	}
	if !stored {
		call.Response.AddEdited(botapi.Message{Text: text, Entities: entities, ReplyMarkup: markup.Inline(), EditDate: s.clock.Unix()})
		return true, nil
	}
	if m.Text == "" {
		return nil, botapi.InvalidArgument("there is no text in the message to edit")
	}
	if m.Text == text && sameEntities(m.Entities, entities) && sameMarkup(m.ReplyMarkup, markup.Inline()) {
		return nil, botapi.InvalidArgument(notModified)
	}
	return s.applyEdit(call, c, m.MessageID, func(e *botapi.Message) {
		e.Text, e.Entities = text, entities
		e.ReplyMarkup = markup.Inline()
	})
}

func (s *Server) handleEditMessageCaption(_ context.Context, call *Call) (any, error) {
	p := call.Params
	caption, entities, err := s.caption(p)
	if err != nil {
		return nil, err
	}
	markup, err := replyMarkup(p)
	if err != nil {
		return nil, err
	}
	c, m, stored, err := s.editTarget(p)
	if err != nil {
		return nil, err
	}
	if !stored {
		call.Response.AddEdited(botapi.Message{Caption: caption, CaptionEntities: entities, ReplyMarkup: markup.Inline(), EditDate: s.clock.Unix()})
		return true, nil
	}
	if !hasMedia(m) {
		return nil, botapi.InvalidArgument("there is no caption in the message to edit")
	}
	if m.Caption == caption && sameEntities(m.CaptionEntities, entities) && sameMarkup(m.ReplyMarkup, markup.Inline()) {
		return nil, botapi.InvalidArgument(notModified)
	}
	return s.applyEdit(call, c, m.MessageID, func(e *botapi.Message) {
		e.Caption, e.CaptionEntities = caption, entities
		e.ReplyMarkup = markup.Inline()
	})
}

func (s *Server) handleEditMessageReplyMarkup(_ context.Context, call *Call) (any, error) {
	p := call.Params
	markup, err := replyMarkup(p)
	if err != nil {
		return nil, err
	}
	c, m, stored, err := s.editTarget(p)
	if err != nil {
		return nil, err
	}
	if !stored {
		call.Response.AddEdited(botapi.Message{ReplyMarkup: markup.Inline(), EditDate: s.clock.Unix()})
		return true, nil
	}
	if sameMarkup(m.ReplyMarkup, markup.Inline()) {
		return nil, botapi.InvalidArgument(notModified)
	}
	return s.applyEdit(call, c, m.MessageID, func(e *botapi.Message) {
		e.ReplyMarkup = markup.Inline()
	})
}

// ownDeleteWindow is how long a non-administrator may delete its own messages in groups.
const ownDeleteWindow = 48 * 60 * 60

// canDelete checks that the bot may delete m in c.
func (s *Server) canDelete(c store.Chat, m botapi.Message) error {
	if c.Type == botapi.ChatTypePrivate {
		return nil
	}
	_, err := s.requireRight(c, rightDelete)
	if err == nil {
		return nil
	}
	if !s.ownMessage(c, m) || errors.Is(err, botapi.ErrConflict) {
		return err
	}
	if c.IsGroup() && s.clock.Unix()-m.Date > ownDeleteWindow {
		return botapi.NotEnoughRights("message can't be deleted for everyone")
	}
	return nil
}

func (s *Server) handleDeleteMessage(_ context.Context, call *Call) (any, error) {
	p := call.Params
	c, err := s.resolveChat(p)
	if err != nil {
		return nil, err
	}
	m, err := s.resolveMessage(c, p, "message_id", "message to delete not found")
	if err != nil {
		return nil, err
	}
	if err := s.canDelete(c, m); err != nil {
		return nil, err
	}
	s.Chats.DeleteMessage(c.ID, m.MessageID)
	call.Response.AddDeleted(c.ID, m.MessageID)
	return true, nil
}

// maxDeleteBatch bounds deleteMessages.
const maxDeleteBatch = 100

func (s *Server) handleDeleteMessages(_ context.Context, call *Call) (any, error) {
	p := call.Params
	c, err := s.resolveChat(p)
	if err != nil {
		return nil, err
	}
	var ids []int
	if _, err := p.Decode("message_ids", &ids); err != nil || len(ids) == 0 || len(ids) > maxDeleteBatch {
		return nil, botapi.InvalidArgument("message_ids must contain 1-100 identifiers")
	}
	deleted := 0
	for _, id := range ids {
		m, ok := s.Chats.Message(c.ID, id)
		if !ok {
			continue
		}
		if err := s.canDelete(c, m); err != nil {
			return nil, err
		}
		s.Chats.DeleteMessage(c.ID, id)
		call.Response.AddDeleted(c.ID, id)
		deleted++
	}
	if deleted == 0 {
		return nil, botapi.NotFound("message to delete not found")
	}
	return true, nil
}

func (s *Server) handlePinChatMessage(_ context.Context, call *Call) (any, error) {
	p := call.Params
	c, err := s.resolveChat(p)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireRight(c, rightPin); err != nil {
		return nil, err
	}
	m, err := s.resolveMessage(c, p, "message_id", "message to pin not found")
	if err != nil {
		return nil, err
	}
	if err := s.Chats.Pin(c.ID, m.MessageID); err != nil {
		return nil, mapStoreErr(err)
	}
	if !p.Bool("disable_notification") && c.Type != botapi.ChatTypeChannel {
		bot := s.cfg.Bot
		pinned := m
		pinned.PinnedMessage = nil
		pinned.ReplyToMessage = nil
		s.Chats.AddMessage(c.ID, botapi.Message{From: &bot, PinnedMessage: &pinned})
	}
	return true, nil
}

func (s *Server) handleUnpinChatMessage(_ context.Context, call *Call) (any, error) {
	p := call.Params
	c, err := s.resolveChat(p)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireRight(c, rightPin); err != nil {
		return nil, err
	}
	id := p.IntOr("message_id", 0)
	if err := s.Chats.Unpin(c.ID, id); err != nil {
		return nil, botapi.NotFound("message to unpin not found")
	}
	return true, nil
}

func (s *Server) handleUnpinAllChatMessages(_ context.Context, call *Call) (any, error) {
	c, err := s.resolveChat(call.Params)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireRight(c, rightPin); err != nil {
		return nil, err
	}
	if err := s.Chats.UnpinAll(c.ID); err != nil {
		return nil, mapStoreErr(err)
	}
	return true, nil
}

// reactionType is one entry of setMessageReaction's reaction list.
type reactionType struct {
	Type          string `json:"type"`
	Emoji         string `json:"emoji,omitempty"`
	CustomEmojiID string `json:"custom_emoji_id,omitempty"`
}

func (s *Server) handleSetMessageReaction(_ context.Context, call *Call) (any, error) {
	p := call.Params
	c, err := s.resolveChat(p)
	if err != nil {
		return nil, err
	}
	m, err := s.resolveMessage(c, p, "message_id", "message to react not found")
	if err != nil {
		return nil, err
	}
	var reactions []reactionType
	if _, err := p.Decode("reaction", &reactions); err != nil {
		return nil, botapi.InvalidArgument("can't parse reaction types JSON object")
	}
	if len(reactions) > 1 {
		return nil, botapi.InvalidArgument("REACTIONS_TOO_MANY")
	}
	emoji := make([]string, 0, len(reactions))
	for _, r := range reactions {
		switch r.Type {
		case "emoji":
			if r.Emoji == "" {
				return nil, botapi.InvalidArgument("REACTION_INVALID")
			}
			emoji = append(emoji, r.Emoji)
		case "custom_emoji":
			emoji = append(emoji, r.CustomEmojiID)
		default:
			return nil, botapi.InvalidArgument("REACTION_INVALID")
		}
	}
	call.Response.AddReaction(c.ID, m.MessageID, emoji)
	return true, nil
}
