package botsim

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/botsim/internal/dispatcher"
	"github.com/nextlevelbuilder/botsim/internal/response"
	"github.com/nextlevelbuilder/botsim/internal/store"
	"github.com/nextlevelbuilder/botsim/pkg/botapi"
)

// Errors returned by user actions that the platform would not let a user perform.
var (
	ErrCannotSend         = errors.New("botsim: user cannot send messages in this chat")
	ErrButtonNotFound     = errors.New("botsim: no inline button with that callback data")
	ErrInvoiceNotFound    = errors.New("botsim: message is not an invoice")
	ErrCheckoutUnanswered = errors.New("botsim: bot did not answer the pre-checkout query")
	ErrCheckoutDeclined   = errors.New("botsim: bot declined the pre-checkout query")
	ErrSlowMode           = errors.New("botsim: slow mode is active")
	ErrAlreadyMember      = errors.New("botsim: user is already a member of the chat")
)

// User actions build the updates a real client would produce and deliver them.

func (h *Harness) user(id int64) (botapi.User, error) {
	u, ok := h.server.Members.User(id)
	if !ok {
		return botapi.User{}, fmt.Errorf("botsim: user %d: %w", id, store.ErrUserNotFound)
	}
	return u, nil
}

// postAs stores msg as sent by fromID into chatID, checking that the user may
// write there and that slow mode allows it. Private chats with the bot are
// opened on demand.
func (h *Harness) postAs(fromID, chatID int64, msg botapi.Message) (botapi.Message, error) {
	u, err := h.user(fromID)
	if err != nil {
		return botapi.Message{}, err
	}
	if chatID == fromID {
		if _, err := h.CreatePrivateChat(fromID); err != nil {
			return botapi.Message{}, err
		}
	}
	c, ok := h.server.Chats.Get(chatID)
	if !ok {
		return botapi.Message{}, fmt.Errorf("botsim: chat %d: %w", chatID, store.ErrChatNotFound)
	}
	if c.IsGroup() && !h.server.Members.CanSendMessages(chatID, fromID) {
		return botapi.Message{}, fmt.Errorf("%w: user %d in chat %d", ErrCannotSend, fromID, chatID)
	}
	if d := h.server.Chats.CheckSlowMode(chatID, fromID, h.server.Members.IsAdmin(chatID, fromID)); !d.Allowed {
		return botapi.Message{}, fmt.Errorf("%w: user %d in chat %d: %w", ErrSlowMode, fromID, chatID, botapi.RateLimited(d.RetryAfter))
	}
	msg.From = &u
	return h.server.Chats.AddMessage(chatID, msg)
}

// SendMessage delivers a text message from a user. Commands, mentions, links,
// hashtags and similar entities are detected the way clients do.
func (h *Harness) SendMessage(ctx context.Context, fromID, chatID int64, text string) (*BotResponse, error) {
	msg, err := h.postAs(fromID, chatID, botapi.Message{
		Text:     text,
		Entities: dispatcher.DetectEntities(text, nil),
	})
	if err != nil {
		return nil, err
	}
	return h.Deliver(ctx, botapi.Update{Message: &msg})
}

// SendCommand delivers "/command args". In groups the command is addressed to the
// bot as "/command@username".
func (h *Harness) SendCommand(ctx context.Context, fromID, chatID int64, command, args string) (*BotResponse, error) {
	text := "/" + strings.TrimPrefix(command, "/")
	if c, ok := h.server.Chats.Get(chatID); ok && c.IsGroup() && h.Bot().Username != "" {
		text += "@" + h.Bot().Username
	}
	if args != "" {
		text += " " + args
	}
	return h.SendMessage(ctx, fromID, chatID, text)
}

// ClickButton presses the inline button of msg whose callback data (or label)
// is data. The message is re-read first so edited keyboards are honored.
func (h *Harness) ClickButton(ctx context.Context, fromID int64, msg botapi.Message, data string) (*BotResponse, error) {
	u, err := h.user(fromID)
	if err != nil {
		return nil, err
	}
	current, ok := h.server.Chats.Message(msg.Chat.ID, msg.MessageID)
	if !ok {
		return nil, fmt.Errorf("botsim: message %d: %w", msg.MessageID, store.ErrMessageNotFound)
	}
	callbackData, ok := findButton(current.ReplyMarkup, data)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrButtonNotFound, data)
	}
	id := uuid.NewString()
	h.server.OpenCallbackQuery(id, fromID)
	return h.Deliver(ctx, botapi.Update{CallbackQuery: &botapi.CallbackQuery{
		ID:           id,
		From:         u,
		Message:      &current,
		ChatInstance: strconv.FormatInt(current.Chat.ID, 10),
		Data:         callbackData,
	}})
}

func findButton(markup *botapi.InlineKeyboardMarkup, data string) (string, bool) {
	if markup == nil {
		return "", false
	}
	for _, row := range markup.InlineKeyboard {
		for _, b := range row {
			if b.CallbackData == "" {
				continue
			}
			if b.CallbackData == data || b.Text == data {
				return b.CallbackData, true
			}
		}
	}
	return "", false
}

// VotePoll casts (or, with no options, retracts) fromID's vote. Non-anonymous
// polls produce a poll_answer update; every vote produces a poll update.
func (h *Harness) VotePoll(ctx context.Context, fromID int64, pollID string, optionIDs ...int) (*BotResponse, error) {
	u, err := h.user(fromID)
	if err != nil {
		return nil, err
	}
	if optionIDs == nil {
		optionIDs = []int{}
	}
	poll, err := h.server.Polls.Vote(pollID, fromID, optionIDs)
	if err != nil {
		return nil, fmt.Errorf("botsim: vote: %w", err)
	}
	if chatID, messageID, ok := h.server.Polls.Location(pollID); ok {
		if err := h.server.Chats.RefreshPoll(chatID, messageID, poll); err != nil {
			h.logger.Warn("poll message not refreshed", "poll_id", pollID, "error", err)
		}
	}
	var updates []botapi.Update
	if !poll.IsAnonymous {
		updates = append(updates, botapi.Update{PollAnswer: &botapi.PollAnswer{
			PollID:    pollID,
			User:      &u,
			OptionIDs: optionIDs,
		}})
	}
	updates = append(updates, botapi.Update{Poll: &poll})
	return h.deliverAll(ctx, "vote "+pollID, updates...)
}

// JoinViaLink makes fromID follow an invite link. Approval links produce a
// chat_join_request; others admit the user and produce chat_member plus the
// new_chat_members service message. Current members are turned away and the
// link is left unused.
func (h *Harness) JoinViaLink(ctx context.Context, fromID int64, link string) (*BotResponse, error) {
	u, err := h.user(fromID)
	if err != nil {
		return nil, err
	}
	l, ok := h.server.Chats.FindInviteLink(link)
	if !ok {
		return nil, fmt.Errorf("botsim: %w", store.ErrLinkNotFound)
	}
	c, ok := h.server.Chats.Get(l.ChatID)
	if !ok {
		return nil, fmt.Errorf("botsim: chat %d: %w", l.ChatID, store.ErrChatNotFound)
	}
	if m, ok := h.server.Members.Settle(c.ID, fromID); ok && m.Status() == botapi.StatusKicked {
		return nil, fmt.Errorf("botsim: user %d is banned from chat %d", fromID, c.ID)
	}
	if h.server.Members.IsMember(c.ID, fromID) {
		return nil, fmt.Errorf("%w: user %d in chat %d", ErrAlreadyMember, fromID, c.ID)
	}

	apiLink := l.API()
	now := h.Now().Unix()
	if l.CreatesJoinRequest {
		if _, err := h.server.Chats.RequestJoin(c.ID, link, fromID); err != nil {
			return nil, fmt.Errorf("botsim: join request: %w", err)
		}
		return h.Deliver(ctx, botapi.Update{ChatJoinRequest: &botapi.ChatJoinRequest{
			Chat:       c.Chat,
			From:       u,
			UserChatID: u.ID,
			Date:       now,
			InviteLink: &apiLink,
		}})
	}

	used, err := h.server.Chats.UseInviteLink(c.ID, link, fromID)
	if err != nil {
		return nil, fmt.Errorf("botsim: join: %w", err)
	}
	apiLink = used.API()
	old := botapi.ChatMember(botapi.ChatMemberLeft{User: u, Status: botapi.StatusLeft})
	if m, ok := h.server.Members.Member(c.ID, fromID); ok {
		old = m.ChatMember(u)
	}
	joined := h.server.Members.SetMember(c.ID, fromID)
	service, err := h.server.Chats.AddMessage(c.ID, botapi.Message{From: &u, NewChatMembers: []botapi.User{u}})
	if err != nil {
		return nil, err
	}
	return h.deliverAll(ctx, "join "+link,
		botapi.Update{ChatMember: &botapi.ChatMemberUpdated{
			Chat:          c.Chat,
			From:          u,
			Date:          now,
			OldChatMember: old,
			NewChatMember: joined.ChatMember(u),
			InviteLink:    &apiLink,
		}},
		botapi.Update{Message: &service},
	)
}

// PayInvoice pays the invoice in msg as fromID: the bot first receives a
// pre_checkout_query and must approve it; then the payment completes with a
// successful_payment message. Star payments are recorded as transactions.
func (h *Harness) PayInvoice(ctx context.Context, fromID int64, msg botapi.Message) (*BotResponse, error) {
	u, err := h.user(fromID)
	if err != nil {
		return nil, err
	}
	inv, ok := h.server.Payments.Invoice(msg.Chat.ID, msg.MessageID)
	if !ok {
		return nil, ErrInvoiceNotFound
	}
	q := h.server.Payments.NewPreCheckout(u, inv.Invoice.Currency, inv.Invoice.TotalAmount, inv.Payload)
	resp, err := h.deliverAll(ctx, "payment "+q.ID, botapi.Update{PreCheckoutQuery: &q})
	if err != nil {
		return resp, err
	}
	pc, _ := h.server.Payments.PreCheckout(q.ID)
	if !pc.Answered {
		return resp, ErrCheckoutUnanswered
	}
	if !pc.OK {
		return resp, fmt.Errorf("%w: %s", ErrCheckoutDeclined, pc.ErrorMessage)
	}

	paid := botapi.SuccessfulPayment{
		Currency:       inv.Invoice.Currency,
		TotalAmount:    inv.Invoice.TotalAmount,
		InvoicePayload: inv.Payload,
	}
	if inv.Invoice.Currency == botapi.CurrencyStars {
		tx := h.server.Payments.RecordStarPayment(u.ID, h.Bot().ID, inv.Invoice.TotalAmount, inv.Payload)
		paid.TelegramPaymentChargeID = tx.ChargeID
	} else {
		paid.TelegramPaymentChargeID = "tg_" + strings.ReplaceAll(uuid.NewString(), "-", "")
		paid.ProviderPaymentChargeID = "prov_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	chatID := msg.Chat.ID
	if c, ok := h.server.Chats.Get(chatID); !ok || c.Type != botapi.ChatTypePrivate {
		chatID = u.ID
	}
	receipt, err := h.postAs(u.ID, chatID, botapi.Message{SuccessfulPayment: &paid})
	if err != nil {
		return resp, err
	}
	err = h.dispatch(response.WithResponse(ctx, resp), h.stamp(botapi.Update{Message: &receipt}))
	return resp, err
}

// InlineQuery delivers an inline query typed by fromID.
func (h *Harness) InlineQuery(ctx context.Context, fromID int64, query string) (*BotResponse, error) {
	u, err := h.user(fromID)
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()
	h.server.OpenInlineQuery(id, fromID)
	return h.Deliver(ctx, botapi.Update{InlineQuery: &botapi.InlineQuery{
		ID:       id,
		From:     u,
		Query:    query,
		ChatType: "sender",
	}})
}
