package botsim

import (
	"fmt"

	"github.com/nextlevelbuilder/botsim/internal/store"
	"github.com/nextlevelbuilder/botsim/pkg/botapi"
)

// Setup bypasses permission checks: it seeds the world the bot is tested in.

// CreateUser registers a user. A zero ID is assigned from a sequence.
func (h *Harness) CreateUser(u botapi.User) botapi.User {
	if u.ID == 0 {
		u.ID = h.nextUserID.Add(1)
	}
	if u.FirstName == "" {
		u.FirstName = fmt.Sprintf("User%d", u.ID)
	}
	u.IsBot = false
	h.server.Members.PutUser(u)
	return u
}

// CreatePrivateChat opens the private chat between userID and the bot.
func (h *Harness) CreatePrivateChat(userID int64) (store.Chat, error) {
	u, ok := h.server.Members.User(userID)
	if !ok {
		return store.Chat{}, fmt.Errorf("botsim: user %d: %w", userID, store.ErrUserNotFound)
	}
	return h.server.Chats.Create(botapi.Chat{
		ID:        u.ID,
		Type:      botapi.ChatTypePrivate,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}), nil
}

// GroupOption customizes CreateGroup.
type GroupOption func(*botapi.Chat)

// WithChatID fixes the chat id instead of assigning one.
func WithChatID(id int64) GroupOption { return func(c *botapi.Chat) { c.ID = id } }

// WithUsername makes the chat public under @username.
func WithUsername(username string) GroupOption {
	return func(c *botapi.Chat) { c.Username = username }
}

// AsForum creates the supergroup with forum topics enabled.
func AsForum() GroupOption { return func(c *botapi.Chat) { c.IsForum = true } }

// nextGroupID follows the platform's id shapes: basic groups are small negative
// numbers, supergroups and channels carry the -100 prefix.
func (h *Harness) nextGroupID(typ string) int64 {
	n := h.nextChatID.Add(1)
	if typ == botapi.ChatTypeGroup {
		return -(1000 + n)
	}
	return -(1000000000000 + 1000 + n)
}

// CreateGroup creates a group, supergroup or channel owned by owner, with the
// bot as a regular member.
func (h *Harness) CreateGroup(typ, title string, owner int64, opts ...GroupOption) (store.Chat, error) {
	switch typ {
	case botapi.ChatTypeGroup, botapi.ChatTypeSupergroup, botapi.ChatTypeChannel:
	default:
		return store.Chat{}, fmt.Errorf("botsim: chat type %q is not a group type", typ)
	}
	if _, ok := h.server.Members.User(owner); !ok {
		return store.Chat{}, fmt.Errorf("botsim: owner %d: %w", owner, store.ErrUserNotFound)
	}
	c := botapi.Chat{Type: typ, Title: title}
	for _, opt := range opts {
		opt(&c)
	}
	if c.IsForum && typ != botapi.ChatTypeSupergroup {
		return store.Chat{}, fmt.Errorf("botsim: only supergroups can be forums: %w", store.ErrNotSupergroup)
	}
	if c.ID == 0 {
		c.ID = h.nextGroupID(typ)
	}
	chat := h.server.Chats.Create(c)
	h.server.Members.SetOwner(chat.ID, owner)
	h.server.Members.SetMember(chat.ID, h.Bot().ID)
	return chat, nil
}

// AddMember makes userID a regular member of chatID.
func (h *Harness) AddMember(chatID, userID int64) error {
	if _, ok := h.server.Chats.Get(chatID); !ok {
		return fmt.Errorf("botsim: chat %d: %w", chatID, store.ErrChatNotFound)
	}
	if _, ok := h.server.Members.User(userID); !ok {
		return fmt.Errorf("botsim: user %d: %w", userID, store.ErrUserNotFound)
	}
	h.server.Members.SetMember(chatID, userID)
	return nil
}

// PromoteUser makes userID an administrator of chatID with rights.
func (h *Harness) PromoteUser(chatID, userID int64, rights botapi.ChatAdministratorRights) error {
	if _, err := h.server.Members.SetAdmin(chatID, userID, rights, ""); err != nil {
		return fmt.Errorf("botsim: promote %d in %d: %w", userID, chatID, err)
	}
	return nil
}

// PromoteBot makes the bot an administrator of chatID with rights.
func (h *Harness) PromoteBot(chatID int64, rights botapi.ChatAdministratorRights) error {
	return h.PromoteUser(chatID, h.Bot().ID, rights)
}

// RestrictUser restricts userID in chatID until untilDate (0 = forever).
func (h *Harness) RestrictUser(chatID, userID int64, perms botapi.ChatPermissions, untilDate int64) error {
	if _, err := h.server.Members.Restrict(chatID, userID, perms, untilDate); err != nil {
		return fmt.Errorf("botsim: restrict %d in %d: %w", userID, chatID, err)
	}
	return nil
}

// EnableForum turns a supergroup into a forum with its General topic.
func (h *Harness) EnableForum(chatID int64) (store.Chat, error) {
	return h.server.Chats.EnableForum(chatID)
}

// SetSlowMode sets the chat's slow mode delay in seconds.
func (h *Harness) SetSlowMode(chatID int64, delay int) (store.Chat, error) {
	return h.server.Chats.SetSlowMode(chatID, delay)
}

// BlockBot marks that userID blocked the bot; sends to them then fail.
func (h *Harness) BlockBot(userID int64, blocked bool) {
	h.server.SetBlocked(userID, blocked)
}
