package store

import (
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/nextlevelbuilder/botsim/internal/clock"
	"github.com/nextlevelbuilder/botsim/pkg/botapi"
)

// Chat is a snapshot of one chat's settings.
type Chat struct {
	botapi.Chat
	Description      string
	Permissions      botapi.ChatPermissions
	SlowModeDelay    int
	MigrateToChatID  int64
	IsLocked         bool
	PinnedMessageIDs []int
	CreatedAt        int64
}

type chatEntry struct {
	chat          Chat
	messages      map[int]*botapi.Message
	order         []int
	nextMessageID int
	links         map[string]*linkEntry
	primaryLink   string
	topics        map[int]*Topic
	nextTopicID   int
	requests      map[int64]JoinRequest
	limiter       *chatLimiter
}

// ChatState owns chats with their messages, pins, invite links, forum topics and
// send throttling. Every method returns copies; callers never see internal maps.
type ChatState struct {
	mu        sync.Mutex
	clock     clock.Clock
	limits    RateLimits
	chats     map[int64]*chatEntry
	usernames map[string]int64
}

// NewChatState creates an empty chat store reading time from clk.
func NewChatState(clk clock.Clock, limits RateLimits) *ChatState {
	return &ChatState{
		clock:     clk,
		limits:    limits,
		chats:     make(map[int64]*chatEntry),
		usernames: make(map[string]int64),
	}
}

func (s *ChatState) now() int64 { return s.clock.Now().Unix() }

// Create registers a chat. Creating an existing id returns the stored chat unchanged.
func (s *ChatState) Create(c botapi.Chat) Chat {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.chats[c.ID]; ok {
		return e.snapshot()
	}
	e := s.newEntry(c)
	return e.snapshot()
}

func (s *ChatState) newEntry(c botapi.Chat) *chatEntry {
	e := &chatEntry{
		chat:          Chat{Chat: c, CreatedAt: s.now()},
		messages:      make(map[int]*botapi.Message),
		nextMessageID: 1,
		links:         make(map[string]*linkEntry),
		topics:        make(map[int]*Topic),
		nextTopicID:   2,
		requests:      make(map[int64]JoinRequest),
	}
	if c.IsGroup() {
		e.chat.Permissions = botapi.DefaultChatPermissions()
	}
	if c.IsForum {
		e.chat.IsForum = false
		e.enableForum()
	}
	e.limiter = newChatLimiter(s.limits, c.IsGroup())
	s.chats[c.ID] = e
	if c.Username != "" {
		s.usernames[strings.ToLower(c.Username)] = c.ID
	}
	return e
}

// Get returns the chat with the given id.
func (s *ChatState) Get(id int64) (Chat, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.chats[id]
	if !ok {
		return Chat{}, false
	}
	return e.snapshot(), true
}

// Resolve looks a chat up by numeric id or @username.
func (s *ChatState) Resolve(ref botapi.ChatRef) (Chat, bool) {
	if ref.Username == "" {
		return s.Get(ref.ID)
	}
	s.mu.Lock()
	id, ok := s.usernames[strings.ToLower(ref.Username)]
	s.mu.Unlock()
	if !ok {
		return Chat{}, false
	}
	return s.Get(id)
}

// Chats lists every chat ordered by id.
func (s *ChatState) Chats() []Chat {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Chat, 0, len(s.chats))
	for _, e := range s.chats {
		out = append(out, e.snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// update applies fn to an existing chat under the lock.
func (s *ChatState) update(id int64, fn func(e *chatEntry) error) (Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.chats[id]
	if !ok {
		return Chat{}, ErrChatNotFound
	}
	if err := fn(e); err != nil {
		return Chat{}, err
	}
	return e.snapshot(), nil
}

// SetTitle renames a chat.
func (s *ChatState) SetTitle(id int64, title string) (Chat, error) {
	return s.update(id, func(e *chatEntry) error {
		e.chat.Title = title
		return nil
	})
}

// SetDescription changes the chat description.
func (s *ChatState) SetDescription(id int64, description string) (Chat, error) {
	return s.update(id, func(e *chatEntry) error {
		e.chat.Description = description
		return nil
	})
}

// SetPermissions replaces the default member permissions.
func (s *ChatState) SetPermissions(id int64, perms botapi.ChatPermissions) (Chat, error) {
	return s.update(id, func(e *chatEntry) error {
		e.chat.Permissions = perms
		return nil
	})
}

// SetSlowMode sets the per-member send spacing. Only the platform's fixed set of
// delays is accepted.
func (s *ChatState) SetSlowMode(id int64, delay int) (Chat, error) {
	if !ValidSlowModeDelay(delay) {
		return Chat{}, ErrInvalidSlowMode
	}
	return s.update(id, func(e *chatEntry) error {
		e.chat.SlowModeDelay = delay
		return nil
	})
}

// SetLocked toggles whether only administrators may post.
func (s *ChatState) SetLocked(id int64, locked bool) (Chat, error) {
	return s.update(id, func(e *chatEntry) error {
		e.chat.IsLocked = locked
		return nil
	})
}

// SupergroupID returns the id a basic group gets after migration.
func SupergroupID(groupID int64) int64 {
	if groupID < 0 {
		groupID = -groupID
	}
	return -(1_000_000_000_000 + groupID)
}

// Migrate upgrades a basic group to a supergroup. The old chat keeps a
// MigrateToChatID pointer; the new one starts without messages.
func (s *ChatState) Migrate(id int64) (Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.chats[id]
	if !ok {
		return Chat{}, ErrChatNotFound
	}
	if old.chat.Type != botapi.ChatTypeGroup || old.chat.MigrateToChatID != 0 {
		return Chat{}, ErrNotSupergroup
	}
	c := old.chat.Chat
	c.ID = SupergroupID(id)
	c.Type = botapi.ChatTypeSupergroup
	if c.Username != "" {
		delete(s.usernames, strings.ToLower(c.Username))
	}
	e := s.newEntry(c)
	e.chat.Description = old.chat.Description
	e.chat.Permissions = old.chat.Permissions
	old.chat.MigrateToChatID = c.ID
	return e.snapshot(), nil
}

// CheckRateLimit evaluates the send gates for userID in chat id. Administrators
// bypass every gate. All gates are evaluated before anything is consumed, so a
// rejected send never advances a counter.
func (s *ChatState) CheckRateLimit(id, userID int64, isAdmin bool) RateDecision {
	if isAdmin {
		return RateDecision{Allowed: true}
	}
	return s.gate(id, userID, s.limits.Enabled)
}

// CheckSlowMode applies only the chat's slow mode to a member's own message.
// The flood ceilings meter the bot's sends and are left untouched.
func (s *ChatState) CheckSlowMode(id, userID int64, isAdmin bool) RateDecision {
	if isAdmin {
		return RateDecision{Allowed: true}
	}
	return s.gate(id, userID, false)
}

func (s *ChatState) gate(id, userID int64, ceilings bool) RateDecision {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.chats[id]
	if !ok {
		return RateDecision{Allowed: true}
	}
	now := s.clock.Now()
	slowMode := e.chat.SlowModeDelay
	if !e.chat.IsGroup() {
		slowMode = 0
	}
	d := e.limiter.check(now, userID, slowMode, ceilings)
	if !d.Allowed {
		return d
	}
	e.limiter.commit(now, userID, ceilings)
	return d
}

// --- Messages ---

// AddMessage appends msg to the chat, assigning its id, date and chat.
func (s *ChatState) AddMessage(chatID int64, msg botapi.Message) (botapi.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.chats[chatID]
	if !ok {
		return botapi.Message{}, ErrChatNotFound
	}
	msg.MessageID = e.nextMessageID
	e.nextMessageID++
	msg.Date = s.now()
	msg.Chat = e.chat.Chat
	stored := cloneMessage(msg)
	e.messages[msg.MessageID] = &stored
	e.order = append(e.order, msg.MessageID)
	return msg, nil
}

// Message returns one message.
func (s *ChatState) Message(chatID int64, messageID int) (botapi.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.chats[chatID]
	if !ok {
		return botapi.Message{}, false
	}
	m, ok := e.messages[messageID]
	if !ok {
		return botapi.Message{}, false
	}
	return cloneMessage(*m), true
}

// Messages lists the chat's messages in send order.
func (s *ChatState) Messages(chatID int64) []botapi.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.chats[chatID]
	if !ok {
		return nil
	}
	out := make([]botapi.Message, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, cloneMessage(*e.messages[id]))
	}
	return out
}

// EditMessage applies fn to a stored message and stamps its edit date.
func (s *ChatState) EditMessage(chatID int64, messageID int, fn func(m *botapi.Message)) (botapi.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.chats[chatID]
	if !ok {
		return botapi.Message{}, ErrChatNotFound
	}
	m, ok := e.messages[messageID]
	if !ok {
		return botapi.Message{}, ErrMessageNotFound
	}
	edited := cloneMessage(*m)
	fn(&edited)
	edited.MessageID = m.MessageID
	edited.Chat = m.Chat
	edited.EditDate = s.now()
	*m = cloneMessage(edited)
	return edited, nil
}

// RefreshPoll replaces the poll carried by a message with a newer snapshot of
// the same poll. Vote counts are not an edit, so the edit date is kept.
func (s *ChatState) RefreshPoll(chatID int64, messageID int, poll botapi.Poll) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.chats[chatID]
	if !ok {
		return ErrChatNotFound
	}
	m, ok := e.messages[messageID]
	if !ok {
		return ErrMessageNotFound
	}
	if m.Poll == nil || m.Poll.ID != poll.ID {
		return ErrMessageNotFound
	}
	p := clonePoll(poll)
	m.Poll = &p
	return nil
}

// DeleteMessage removes a message and any pin on it. It reports whether the
// message existed.
func (s *ChatState) DeleteMessage(chatID int64, messageID int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.chats[chatID]
	if !ok {
		return false
	}
	if _, ok := e.messages[messageID]; !ok {
		return false
	}
	e.deleteMessage(messageID)
	return true
}

func (e *chatEntry) deleteMessage(id int) {
	delete(e.messages, id)
	e.order = slices.DeleteFunc(e.order, func(v int) bool { return v == id })
	e.chat.PinnedMessageIDs = slices.DeleteFunc(e.chat.PinnedMessageIDs, func(v int) bool { return v == id })
}

// --- Pins ---

// Pin marks a message as pinned; re-pinning moves it to the top.
func (s *ChatState) Pin(chatID int64, messageID int) error {
	_, err := s.update(chatID, func(e *chatEntry) error {
		if _, ok := e.messages[messageID]; !ok {
			return ErrMessageNotFound
		}
		e.chat.PinnedMessageIDs = slices.DeleteFunc(e.chat.PinnedMessageIDs, func(v int) bool { return v == messageID })
		e.chat.PinnedMessageIDs = append(e.chat.PinnedMessageIDs, messageID)
		return nil
	})
	return err
}

// Unpin removes one pin. A zero messageID unpins the most recent pin.
func (s *ChatState) Unpin(chatID int64, messageID int) error {
	_, err := s.update(chatID, func(e *chatEntry) error {
		pins := e.chat.PinnedMessageIDs
		if messageID == 0 {
			if len(pins) == 0 {
				return ErrMessageNotFound
			}
			e.chat.PinnedMessageIDs = pins[:len(pins)-1]
			return nil
		}
		if !slices.Contains(pins, messageID) {
			return ErrMessageNotFound
		}
		e.chat.PinnedMessageIDs = slices.DeleteFunc(pins, func(v int) bool { return v == messageID })
		return nil
	})
	return err
}

// UnpinAll clears every pin in the chat.
func (s *ChatState) UnpinAll(chatID int64) error {
	_, err := s.update(chatID, func(e *chatEntry) error {
		e.chat.PinnedMessageIDs = nil
		return nil
	})
	return err
}

// PinnedMessage returns the most recently pinned message.
func (s *ChatState) PinnedMessage(chatID int64) (botapi.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.chats[chatID]
	if !ok || len(e.chat.PinnedMessageIDs) == 0 {
		return botapi.Message{}, false
	}
	m, ok := e.messages[e.chat.PinnedMessageIDs[len(e.chat.PinnedMessageIDs)-1]]
	if !ok {
		return botapi.Message{}, false
	}
	return cloneMessage(*m), true
}

// Reset drops every chat.
func (s *ChatState) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chats = make(map[int64]*chatEntry)
	s.usernames = make(map[string]int64)
}

func (e *chatEntry) snapshot() Chat {
	c := e.chat
	c.PinnedMessageIDs = slices.Clone(e.chat.PinnedMessageIDs)
	return c
}
