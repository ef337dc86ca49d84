package dispatcher

import (
	"context"
	"strings"

	"github.com/nextlevelbuilder/botsim/internal/store"
	"github.com/nextlevelbuilder/botsim/pkg/botapi"
)

// pollOptions accepts both plain strings and InputPollOption objects.
func pollOptions(p botapi.Params) ([]string, error) {
	var raw []any
	if _, err := p.Decode("options", &raw); err != nil {
		return nil, botapi.InvalidArgument("can't parse options JSON object")
	}
	out := make([]string, 0, len(raw))
	for _, o := range raw {
		var text string
		switch v := o.(type) {
		case string:
			text = v
		case map[string]any:
			text, _ = v["text"].(string)
		}
		if strings.TrimSpace(text) == "" {
			return nil, botapi.InvalidArgument("POLL_OPTION_INVALID")
		}
		out = append(out, text)
	}
	return out, nil
}

func (s *Server) handleSendPoll(_ context.Context, call *Call) (any, error) {
	p := call.Params
	out, err := s.prepareSend(p, sendPolls)
	if err != nil {
		return nil, err
	}
	c := out.gate.chat
	question := strings.TrimSpace(p.String("question"))
	if question == "" {
		return nil, botapi.InvalidArgument("poll question must be non-empty")
	}
	options, err := pollOptions(p)
	if err != nil {
		return nil, err
	}
	spec := store.PollSpec{
		Question:              question,
		Options:               options,
		IsAnonymous:           p.BoolOr("is_anonymous", true),
		Type:                  p.String("type"),
		AllowsMultipleAnswers: p.Bool("allows_multiple_answers"),
		Explanation:           p.String("explanation"),
		OpenPeriod:            p.IntOr("open_period", 0),
	}
	if id, ok := p.Int("correct_option_id"); ok {
		spec.CorrectOptionID = &id
	}
	if cd, ok := p.Int64("close_date"); ok {
		spec.CloseDate = cd
	}
	switch spec.Type {
	case "", botapi.PollRegular, botapi.PollQuiz:
	default:
		return nil, botapi.InvalidArgument("wrong poll type specified")
	}
	if !spec.IsAnonymous && c.Type == botapi.ChatTypeChannel {
		return nil, botapi.InvalidArgument("non-anonymous polls can't be sent to channel chats")
	}
	if spec.OpenPeriod != 0 && (spec.OpenPeriod < 5 || spec.OpenPeriod > 600) {
		return nil, botapi.InvalidArgument("open_period must be 5-600 seconds")
	}
	if spec.CloseDate != 0 && spec.CloseDate <= s.clock.Unix() {
		return nil, botapi.InvalidArgument("close_date must be in the future")
	}

	poll, err := s.Polls.Create(c.ID, spec)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	out.msg.Poll = &poll
	msg, err := s.commit(call, out)
	if err != nil {
		s.Polls.Discard(poll.ID)
		return nil, err
	}
	if err := s.Polls.Attach(poll.ID, c.ID, msg.MessageID); err != nil {
		return nil, mapStoreErr(err)
	}
	return msg, nil
}

func (s *Server) handleStopPoll(_ context.Context, call *Call) (any, error) {
	p := call.Params
	c, err := s.resolveChat(p)
	if err != nil {
		return nil, err
	}
	m, err := s.resolveMessage(c, p, "message_id", "message with poll to stop not found")
	if err != nil {
		return nil, err
	}
	if m.Poll == nil {
		return nil, botapi.InvalidArgument("message with poll to stop not found")
	}
	if !s.ownMessage(c, m) {
		return nil, botapi.NotEnoughRights("poll can't be stopped")
	}
	markup, err := replyMarkup(p)
	if err != nil {
		return nil, err
	}
	poll, err := s.Polls.Stop(m.Poll.ID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	if _, err := s.Chats.EditMessage(c.ID, m.MessageID, func(e *botapi.Message) {
		stopped := poll
		e.Poll = &stopped
		if markup != nil {
			e.ReplyMarkup = markup.Inline()
		}
	}); err != nil {
		return nil, mapStoreErr(err)
	}
	call.Response.SetPoll(poll)
	return poll, nil
}
