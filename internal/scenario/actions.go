package scenario

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/nextlevelbuilder/botsim/internal/response"
	"github.com/nextlevelbuilder/botsim/internal/store"
	"github.com/nextlevelbuilder/botsim/pkg/botapi"
	"github.com/nextlevelbuilder/botsim/pkg/botsim"
)

// action performs a user action and records what the bot did in response.
func (st *run) action(ctx context.Context, step Step, sr *StepReport, vars map[string]any) error {
	str := func(s string) (string, error) {
		if s == "" {
			return "", nil
		}
		v, err := st.eval.expand(s, vars)
		if err != nil {
			return "", err
		}
		return fmt.Sprint(v), nil
	}
	as, err := str(step.As)
	if err != nil {
		return fmt.Errorf("as: %w", err)
	}
	from, err := st.userID(as)
	if err != nil {
		return err
	}

	var (
		resp   *botsim.BotResponse
		actErr error
	)
	switch step.Action {
	case ActionSend, ActionCommand:
		chatRef, err := str(step.Chat)
		if err != nil {
			return fmt.Errorf("chat: %w", err)
		}
		chatID, err := st.chatID(chatRef, from)
		if err != nil {
			return err
		}
		text, err := str(step.Text)
		if err != nil {
			return fmt.Errorf("text: %w", err)
		}
		if step.Action == ActionSend {
			resp, actErr = st.h.SendMessage(ctx, from, chatID, text)
		} else {
			resp, actErr = st.h.SendCommand(ctx, from, chatID, step.Command, text)
		}
	case ActionClick:
		msg, err := st.target(step)
		if err != nil {
			return err
		}
		button, err := str(step.Button)
		if err != nil {
			return fmt.Errorf("button: %w", err)
		}
		resp, actErr = st.h.ClickButton(ctx, from, msg, button)
	case ActionVote:
		pollID, err := str(step.Poll)
		if err != nil {
			return fmt.Errorf("poll: %w", err)
		}
		if pollID == "" {
			msg, err := st.target(step)
			if err != nil {
				return err
			}
			if msg.Poll == nil {
				return fmt.Errorf("message %d has no poll", msg.MessageID)
			}
			pollID = msg.Poll.ID
		}
		resp, actErr = st.h.VotePoll(ctx, from, pollID, step.Options...)
	case ActionJoin:
		link, err := str(step.Link)
		if err != nil {
			return fmt.Errorf("link: %w", err)
		}
		resp, actErr = st.h.JoinViaLink(ctx, from, link)
	case ActionPay:
		msg, err := st.target(step)
		if err != nil {
			return err
		}
		resp, actErr = st.h.PayInvoice(ctx, from, msg)
	case ActionInline:
		query, err := str(step.Text)
		if err != nil {
			return fmt.Errorf("text: %w", err)
		}
		resp, actErr = st.h.InlineQuery(ctx, from, query)
	default:
		return fmt.Errorf("unknown action %q", step.Action)
	}

	sr.OK = actErr == nil
	sr.Error = errorInfo(actErr)
	if resp != nil {
		sum := resp.Summary()
		sr.Response = &sum
		vars["response"] = summaryVars(sum)
		st.noteResponse(resp)
		if step.Save != "" {
			st.steps[step.Save] = summaryVars(sum)
			if m, ok := resp.LastMessage(); ok {
				st.saved[step.Save] = m
			}
		}
	}
	return nil
}

// userID resolves a user key or a numeric id.
func (st *run) userID(ref string) (int64, error) {
	if u, ok := st.users[ref].(map[string]any); ok {
		if id, ok := u["id"].(int64); ok {
			return id, nil
		}
	}
	id, err := strconv.ParseInt(ref, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unknown user %q", ref)
	}
	return id, nil
}

// chatID resolves a chat key or a numeric id; empty means the private chat
// with the acting user.
func (st *run) chatID(ref string, from int64) (int64, error) {
	if ref == "" {
		return from, nil
	}
	if c, ok := st.chats[ref].(map[string]any); ok {
		if id, ok := c["id"].(int64); ok {
			return id, nil
		}
	}
	id, err := strconv.ParseInt(ref, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unknown chat %q", ref)
	}
	return id, nil
}

// target is the message an action operates on.
func (st *run) target(step Step) (botapi.Message, error) {
	if step.Message != "" {
		m, ok := st.saved[step.Message]
		if !ok {
			return botapi.Message{}, fmt.Errorf("no saved message %q", step.Message)
		}
		return m, nil
	}
	if st.last == nil {
		return botapi.Message{}, errors.New("the bot has not sent a message yet")
	}
	return *st.last, nil
}

func (st *run) noteResponse(resp *botsim.BotResponse) {
	if m, ok := resp.LastMessage(); ok {
		st.last = &m
	}
}

func summaryVars(s response.Summary) map[string]any {
	list := func(in []string) []any {
		out := make([]any, len(in))
		for i, v := range in {
			out[i] = v
		}
		return out
	}
	return map[string]any{
		"cause":   s.Cause,
		"calls":   list(s.Calls),
		"texts":   list(s.Texts),
		"buttons": list(s.Buttons),
		"error":   s.Error,
	}
}

// harnessKind classifies errors raised by the harness rather than the API.
func harnessKind(err error) botapi.ErrorKind {
	switch {
	case errors.Is(err, botsim.ErrCannotSend), errors.Is(err, botsim.ErrCheckoutDeclined):
		return botapi.KindPermissionDenied
	case errors.Is(err, botsim.ErrButtonNotFound), errors.Is(err, botsim.ErrInvoiceNotFound),
		errors.Is(err, store.ErrUserNotFound), errors.Is(err, store.ErrChatNotFound),
		errors.Is(err, store.ErrMessageNotFound), errors.Is(err, store.ErrLinkNotFound),
		errors.Is(err, store.ErrPollNotFound):
		return botapi.KindNotFound
	case errors.Is(err, store.ErrPollClosed):
		return botapi.KindAlreadyTerminal
	case errors.Is(err, botsim.ErrNoHandler):
		return botapi.KindUnsupported
	case errors.Is(err, botsim.ErrSlowMode):
		return botapi.KindRateLimited
	case errors.Is(err, botsim.ErrAlreadyMember):
		return botapi.KindInvalidArgument
	}
	return botapi.KindInternal
}
