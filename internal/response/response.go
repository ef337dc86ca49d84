// Package response implements BotResponse, the per-cause record of every API side
// effect a bot produced. The dispatcher appends to it; tests read it.
package response

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/botsim/pkg/botapi"
)

// APICall is one dispatched call with its outcome.
type APICall struct {
	Method string
	Params botapi.Params
	Result any
	Err    error
	At     time.Time
}

// Deletion identifies a deleted message.
type Deletion struct {
	ChatID    int64
	MessageID int
}

// ChatAction records a sendChatAction call.
type ChatAction struct {
	ChatID int64
	Action string
}

// MemberChange records a status change the bot caused.
type MemberChange struct {
	ChatID int64
	UserID int64
	Status string
}

// Reaction records a setMessageReaction call.
type Reaction struct {
	ChatID    int64
	MessageID int
	Emoji     []string
}

// CheckoutAnswer records answerPreCheckoutQuery or answerShippingQuery.
type CheckoutAnswer struct {
	QueryID      string
	Shipping     bool
	OK           bool
	ErrorMessage string
}

// BotResponse accumulates side effects of one cause, in dispatch order. It is
// safe for concurrent use; accessors return copies and never mutate.
type BotResponse struct {
	mu sync.Mutex

	id    string
	cause string

	sent           []botapi.Message
	edited         []botapi.Message
	deleted        []Deletion
	callbackAnswer *botapi.CallbackAnswer
	inlineAnswer   *botapi.InlineAnswer
	poll           *botapi.Poll
	invoice        *botapi.Message
	err            error
	calls          []APICall
	inviteLinks    []botapi.ChatInviteLink
	actions        []ChatAction
	memberChanges  []MemberChange
	reactions      []Reaction
	topics         []botapi.ForumTopic
	checkouts      []CheckoutAnswer
	refunds        []string
}

// New creates an empty response for the named cause (e.g. "update 12").
func New(cause string) *BotResponse {
	return &BotResponse{id: uuid.NewString(), cause: cause}
}

// ID uniquely identifies the response.
func (r *BotResponse) ID() string { return r.id }

// Cause describes what the response was created for.
func (r *BotResponse) Cause() string { return r.cause }

// --- Recording (dispatcher side) ---

// RecordCall appends an API call to the history.
func (r *BotResponse) RecordCall(c APICall) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
	if c.Err != nil {
		r.err = c.Err
	}
}

func (r *BotResponse) AddSent(m botapi.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, m)
	if m.Poll != nil {
		p := *m.Poll
		r.poll = &p
	}
	if m.Invoice != nil {
		inv := m
		r.invoice = &inv
	}
}

func (r *BotResponse) AddEdited(m botapi.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.edited = append(r.edited, m)
}

func (r *BotResponse) AddDeleted(chatID int64, messageID int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, Deletion{ChatID: chatID, MessageID: messageID})
}

func (r *BotResponse) SetCallbackAnswer(a botapi.CallbackAnswer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbackAnswer = &a
}

func (r *BotResponse) SetInlineAnswer(a botapi.InlineAnswer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inlineAnswer = &a
}

// SetPoll records a poll state returned by the dispatcher (e.g. from stopPoll).
func (r *BotResponse) SetPoll(p botapi.Poll) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.poll = &p
}

func (r *BotResponse) AddInviteLink(l botapi.ChatInviteLink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inviteLinks = append(r.inviteLinks, l)
}

func (r *BotResponse) AddChatAction(chatID int64, action string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, ChatAction{ChatID: chatID, Action: action})
}

func (r *BotResponse) AddMemberChange(chatID, userID int64, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.memberChanges = append(r.memberChanges, MemberChange{ChatID: chatID, UserID: userID, Status: status})
}

func (r *BotResponse) AddReaction(chatID int64, messageID int, emoji []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reactions = append(r.reactions, Reaction{ChatID: chatID, MessageID: messageID, Emoji: slices.Clone(emoji)})
}

func (r *BotResponse) AddTopic(t botapi.ForumTopic) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topics = append(r.topics, t)
}

func (r *BotResponse) AddCheckoutAnswer(a CheckoutAnswer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkouts = append(r.checkouts, a)
}

func (r *BotResponse) AddRefund(chargeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refunds = append(r.refunds, chargeID)
}

// --- Accessors (test side) ---

// Sent returns every message the bot sent, in order.
func (r *BotResponse) Sent() []botapi.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.sent)
}

// Edited returns every edited message, in order.
func (r *BotResponse) Edited() []botapi.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.edited)
}

// Deleted returns every deletion, in order.
func (r *BotResponse) Deleted() []Deletion {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.deleted)
}

// LastMessage returns the most recently sent message.
func (r *BotResponse) LastMessage() (botapi.Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return botapi.Message{}, false
	}
	return r.sent[len(r.sent)-1], true
}

// Text returns the text (or caption) of the last sent message.
func (r *BotResponse) Text() string {
	m, ok := r.LastMessage()
	if !ok {
		return ""
	}
	text, _ := m.Body()
	return text
}

// Texts returns the text or caption of every sent message, skipping empty ones.
func (r *BotResponse) Texts() []string {
	var out []string
	for _, m := range r.Sent() {
		if text, _ := m.Body(); text != "" {
			out = append(out, text)
		}
	}
	return out
}

// EditedTexts returns the texts of every edited message.
func (r *BotResponse) EditedTexts() []string {
	var out []string
	for _, m := range r.Edited() {
		if text, _ := m.Body(); text != "" {
			out = append(out, text)
		}
	}
	return out
}

// Keyboard returns the inline keyboard of the latest sent or edited message
// that carries one.
func (r *BotResponse) Keyboard() *botapi.InlineKeyboardMarkup {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, list := range [][]botapi.Message{r.edited, r.sent} {
		for i := len(list) - 1; i >= 0; i-- {
			if kb := list[i].ReplyMarkup; kb != nil {
				cp := *kb
				return &cp
			}
		}
	}
	return nil
}

// Buttons returns the labels of the keyboard returned by Keyboard.
func (r *BotResponse) Buttons() []string {
	kb := r.Keyboard()
	if kb == nil {
		return nil
	}
	return (&botapi.ReplyMarkup{InlineKeyboard: kb.InlineKeyboard}).ButtonTexts()
}

// Entities returns the entities of the given type across all sent messages.
// An empty type matches every entity.
func (r *BotResponse) Entities(typ string) []botapi.MessageEntity {
	var out []botapi.MessageEntity
	for _, m := range r.Sent() {
		_, entities := m.Body()
		for _, e := range entities {
			if typ == "" || e.Type == typ {
				out = append(out, e)
			}
		}
	}
	return out
}

// EntityTexts returns the covered text of every entity of the given type.
func (r *BotResponse) EntityTexts(typ string) []string {
	var out []string
	for _, m := range r.Sent() {
		text, entities := m.Body()
		for _, e := range entities {
			if typ == "" || e.Type == typ {
				out = append(out, e.Slice(text))
			}
		}
	}
	return out
}

// CallbackAnswer returns the answer to the callback query, if any.
func (r *BotResponse) CallbackAnswer() (botapi.CallbackAnswer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.callbackAnswer == nil {
		return botapi.CallbackAnswer{}, false
	}
	return *r.callbackAnswer, true
}

// InlineAnswer returns the answer to the inline query, if any.
func (r *BotResponse) InlineAnswer() (botapi.InlineAnswer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inlineAnswer == nil {
		return botapi.InlineAnswer{}, false
	}
	return *r.inlineAnswer, true
}

// Poll returns the last poll sent or stopped.
func (r *BotResponse) Poll() (botapi.Poll, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.poll == nil {
		return botapi.Poll{}, false
	}
	return *r.poll, true
}

// Invoice returns the last invoice message.
func (r *BotResponse) Invoice() (botapi.Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.invoice == nil {
		return botapi.Message{}, false
	}
	return *r.invoice, true
}

// Err returns the last failed call's error.
func (r *BotResponse) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Calls returns the full API call history.
func (r *BotResponse) Calls() []APICall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.calls)
}

// CallsTo returns the calls made to one method.
func (r *BotResponse) CallsTo(method string) []APICall {
	var out []APICall
	for _, c := range r.Calls() {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// Called reports whether method was called at least once.
func (r *BotResponse) Called(method string) bool {
	return len(r.CallsTo(method)) > 0
}

func (r *BotResponse) InviteLinks() []botapi.ChatInviteLink {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.inviteLinks)
}

func (r *BotResponse) ChatActions() []ChatAction {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.actions)
}

func (r *BotResponse) MemberChanges() []MemberChange {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.memberChanges)
}

func (r *BotResponse) Reactions() []Reaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.reactions)
}

func (r *BotResponse) Topics() []botapi.ForumTopic {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.topics)
}

func (r *BotResponse) CheckoutAnswers() []CheckoutAnswer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.checkouts)
}

func (r *BotResponse) Refunds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.refunds)
}

// Empty reports whether no call was recorded at all.
func (r *BotResponse) Empty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls) == 0
}

// Summary is a JSON-friendly view of the response, used by reports.
type Summary struct {
	Cause   string   `json:"cause"`
	Calls   []string `json:"calls"`
	Texts   []string `json:"texts,omitempty"`
	Buttons []string `json:"buttons,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// Summary condenses the response.
func (r *BotResponse) Summary() Summary {
	s := Summary{Cause: r.cause, Texts: r.Texts(), Buttons: r.Buttons()}
	for _, c := range r.Calls() {
		s.Calls = append(s.Calls, c.Method)
	}
	if err := r.Err(); err != nil {
		s.Error = err.Error()
	}
	return s
}
