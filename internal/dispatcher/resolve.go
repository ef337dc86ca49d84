package dispatcher

import (
	"errors"

	"github.com/nextlevelbuilder/botsim/internal/store"
	"github.com/nextlevelbuilder/botsim/pkg/botapi"
)

// storeErrors maps store sentinels to the platform error a real server returns.
var storeErrors = []struct {
	err error
	api *botapi.Error
}{
	{store.ErrChatNotFound, botapi.NotFound("chat not found")},
	{store.ErrUserNotFound, botapi.NotFound("user not found")},
	{store.ErrMessageNotFound, botapi.NotFound("message not found")},
	{store.ErrInvalidSlowMode, botapi.InvalidArgument("invalid slow mode delay specified")},
	{store.ErrNotSupergroup, botapi.InvalidArgument("method is available only for supergroups")},
	{store.ErrNotMember, botapi.InvalidArgument("USER_NOT_PARTICIPANT")},
	{store.ErrIsOwner, botapi.NotEnoughRights("can't change chat owner's status")},
	{store.ErrIsAdmin, botapi.NotEnoughRights("user is an administrator of the chat")},
	{store.ErrNotAdmin, botapi.InvalidArgument("user is not an administrator")},
	{store.ErrNotRestricted, botapi.InvalidArgument("user is not restricted")},
	{store.ErrLinkNotFound, botapi.NotFound("INVITE_HASH_INVALID")},
	{store.ErrLinkRevoked, botapi.AlreadyTerminal("INVITE_HASH_EXPIRED")},
	{store.ErrLinkExpired, botapi.InvalidArgument("INVITE_HASH_EXPIRED")},
	{store.ErrLinkLimitReached, botapi.InvalidArgument("USERS_TOO_MUCH")},
	{store.ErrLinkNeedsRequest, botapi.InvalidArgument("INVITE_REQUEST_SENT")},
	{store.ErrLinkConflict, botapi.InvalidArgument("member limit can't be specified for links requiring administrator approval")},
	{store.ErrRequestNotFound, botapi.InvalidArgument("HIDE_REQUESTER_MISSING")},
	{store.ErrNotForum, botapi.InvalidArgument("the chat is not a forum")},
	{store.ErrTopicNotFound, botapi.NotFound("message thread not found")},
	{store.ErrGeneralTopic, botapi.InvalidArgument("TOPIC_ID_INVALID")},
	{store.ErrTopicClosed, botapi.InvalidArgument("TOPIC_NOT_MODIFIED")},
	{store.ErrTopicOpen, botapi.InvalidArgument("TOPIC_NOT_MODIFIED")},
	{store.ErrPollNotFound, botapi.NotFound("poll not found")},
	{store.ErrPollClosed, botapi.AlreadyTerminal("poll has already been closed")},
	{store.ErrPollOptions, botapi.InvalidArgument("poll must have 2-10 options")},
	{store.ErrInvalidOption, botapi.InvalidArgument("poll option out of range")},
	{store.ErrMultipleAnswers, botapi.InvalidArgument("poll doesn't allow multiple answers")},
	{store.ErrQuizAnswerFinal, botapi.AlreadyTerminal("quiz answer can't be changed")},
	{store.ErrQuizCorrectOption, botapi.InvalidArgument("wrong correct option id specified")},
	{store.ErrQueryNotFound, botapi.InvalidArgument("query is too old and response timeout expired or query ID is invalid")},
	{store.ErrQueryAnswered, botapi.AlreadyTerminal("QUERY_ALREADY_ANSWERED")},
	{store.ErrTransactionNotFound, botapi.NotFound("CHARGE_NOT_FOUND")},
	{store.ErrChargeUserMismatch, botapi.InvalidArgument("CHARGE_ID_INVALID")},
	{store.ErrAlreadyRefunded, botapi.AlreadyTerminal("CHARGE_ALREADY_REFUNDED")},
	{store.ErrFileNotFound, botapi.InvalidArgument("wrong file_id or the file is temporarily unavailable")},
}

// mapStoreErr translates a store failure into a platform error. The dispatcher
// is the only place this happens.
func mapStoreErr(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := botapi.AsError(err); ok {
		return err
	}
	for _, m := range storeErrors {
		if errors.Is(err, m.err) {
			e := *m.api
			return &e
		}
	}
	return err
}

// chatKind names a chat type the way platform error messages do.
func chatKind(c store.Chat) string {
	switch c.Type {
	case botapi.ChatTypeSupergroup:
		return "supergroup"
	case botapi.ChatTypeChannel:
		return "channel"
	case botapi.ChatTypePrivate:
		return "private"
	}
	return "group"
}

func (s *Server) botID() int64 { return s.cfg.Bot.ID }

// resolveChat finds the chat named by the chat_id parameter. Private chats with
// known users are created on first touch; migrated groups redirect the caller.
func (s *Server) resolveChat(p botapi.Params) (store.Chat, error) {
	return s.resolveChatKey(p, "chat_id")
}

func (s *Server) resolveChatKey(p botapi.Params, key string) (store.Chat, error) {
	ref, ok := p.ChatRef(key)
	if !ok {
		return store.Chat{}, botapi.InvalidArgument(key + " is empty")
	}
	c, ok := s.Chats.Resolve(ref)
	if !ok {
		if ref.Username == "" && ref.ID > 0 {
			if u, known := s.Members.User(ref.ID); known && !u.IsBot {
				return s.Chats.Create(privateChat(u)), nil
			}
		}
		return store.Chat{}, botapi.NotFound("chat not found")
	}
	if c.MigrateToChatID != 0 {
		return store.Chat{}, botapi.Migrated(c.MigrateToChatID)
	}
	return c, nil
}

func privateChat(u botapi.User) botapi.Chat {
	return botapi.Chat{
		ID:        u.ID,
		Type:      botapi.ChatTypePrivate,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

// resolveUser finds the user named by key.
func (s *Server) resolveUser(p botapi.Params, key string) (botapi.User, error) {
	id, ok := p.Int64(key)
	if !ok || id == 0 {
		return botapi.User{}, botapi.InvalidArgument(key + " is empty")
	}
	u, ok := s.Members.User(id)
	if !ok {
		return botapi.User{}, botapi.NotFound("user not found")
	}
	return u, nil
}

// resolveMessage finds message_id inside c. missing is the description used when
// the message does not exist.
func (s *Server) resolveMessage(c store.Chat, p botapi.Params, key, missing string) (botapi.Message, error) {
	id, ok := p.Int(key)
	if !ok || id <= 0 {
		return botapi.Message{}, botapi.InvalidArgument(key + " is empty")
	}
	m, ok := s.Chats.Message(c.ID, id)
	if !ok {
		return botapi.Message{}, botapi.NotFound(missing)
	}
	return m, nil
}

// requireGroup rejects private chats for member management methods.
func requireGroup(c store.Chat) error {
	if c.Type == botapi.ChatTypePrivate {
		return botapi.InvalidArgument("chat member status can't be changed in private chats")
	}
	return nil
}

// botMember returns the bot's own membership, failing when it cannot act in c.
func (s *Server) botMember(c store.Chat) (store.Member, error) {
	m, ok := s.Members.Settle(c.ID, s.botID())
	if !ok || (!m.IsCurrent() && m.Status() != botapi.StatusKicked) {
		return store.Member{}, botapi.Conflict("bot is not a member of the " + chatKind(c) + " chat")
	}
	if m.Status() == botapi.StatusKicked {
		return store.Member{}, botapi.Conflict("bot was kicked from the " + chatKind(c) + " chat")
	}
	return m, nil
}

// right selects one administrator right; perm selects the member permission that
// grants the same action to non-administrators, when there is one.
type right struct {
	admin func(botapi.ChatAdministratorRights) bool
	perm  func(botapi.ChatPermissions) bool
	deny  string
}

var (
	rightDelete = right{
		admin: func(r botapi.ChatAdministratorRights) bool { return r.CanDeleteMessages },
		deny:  "message can't be deleted",
	}
	rightPin = right{
		admin: func(r botapi.ChatAdministratorRights) bool { return r.CanPinMessages },
		perm:  func(p botapi.ChatPermissions) bool { return p.CanPinMessages },
		deny:  "not enough rights to manage pinned messages in the chat",
	}
	rightRestrict = right{
		admin: func(r botapi.ChatAdministratorRights) bool { return r.CanRestrictMembers },
		deny:  "not enough rights to restrict/unrestrict chat member",
	}
	rightPromote = right{
		admin: func(r botapi.ChatAdministratorRights) bool { return r.CanPromoteMembers },
		deny:  "not enough rights to promote chat members",
	}
	rightInvite = right{
		admin: func(r botapi.ChatAdministratorRights) bool { return r.CanInviteUsers },
		perm:  func(p botapi.ChatPermissions) bool { return p.CanInviteUsers },
		deny:  "not enough rights to manage chat invite links",
	}
	rightChangeInfo = right{
		admin: func(r botapi.ChatAdministratorRights) bool { return r.CanChangeInfo },
		perm:  func(p botapi.ChatPermissions) bool { return p.CanChangeInfo },
		deny:  "not enough rights to change chat info",
	}
	rightTopics = right{
		admin: func(r botapi.ChatAdministratorRights) bool { return r.CanManageTopics },
		perm:  func(p botapi.ChatPermissions) bool { return p.CanManageTopics },
		deny:  "not enough rights to manage topics",
	}
)

// requireRight checks that the bot holds r in c. Private chats need no rights.
// Non-administrators qualify through the chat's default permissions where the
// platform allows it, unless they are restricted.
func (s *Server) requireRight(c store.Chat, r right) (store.Member, error) {
	if c.Type == botapi.ChatTypePrivate {
		return store.Member{}, nil
	}
	m, err := s.botMember(c)
	if err != nil {
		return store.Member{}, err
	}
	if rights, ok := m.Rights(); ok {
		if r.admin(rights) {
			return m, nil
		}
		return store.Member{}, botapi.NotEnoughRights(r.deny)
	}
	if r.perm != nil && c.Type != botapi.ChatTypeChannel {
		perms := c.Permissions
		if st, ok := m.State.(store.Restricted); ok {
			perms = st.Permissions
		}
		if r.perm(perms) {
			return m, nil
		}
	}
	return store.Member{}, botapi.NotEnoughRights(r.deny)
}

// sendKind is a class of content with its own send permission.
type sendKind struct {
	label string
	perm  func(botapi.ChatPermissions) bool
}

var (
	sendText      = sendKind{"text messages", func(p botapi.ChatPermissions) bool { return p.CanSendMessages }}
	sendPhotos    = sendKind{"photos", func(p botapi.ChatPermissions) bool { return p.CanSendPhotos }}
	sendDocuments = sendKind{"documents", func(p botapi.ChatPermissions) bool { return p.CanSendDocuments }}
	sendVideos    = sendKind{"videos", func(p botapi.ChatPermissions) bool { return p.CanSendVideos }}
	sendAudios    = sendKind{"audios", func(p botapi.ChatPermissions) bool { return p.CanSendAudios }}
	sendVoices    = sendKind{"voice notes", func(p botapi.ChatPermissions) bool { return p.CanSendVoiceNotes }}
	sendOther     = sendKind{"stickers, animations and games", func(p botapi.ChatPermissions) bool { return p.CanSendOtherMessages }}
	sendPolls     = sendKind{"polls", func(p botapi.ChatPermissions) bool { return p.CanSendPolls }}
)

// sendGate is the result of checking whether the bot may post in a chat.
type sendGate struct {
	chat    store.Chat
	isAdmin bool
	rights  botapi.ChatAdministratorRights
}

// canSend checks everything except throttling: membership, blocks, restrictions,
// chat permissions, channel rights and forum topic state.
func (s *Server) canSend(c store.Chat, threadID int, kind sendKind) (sendGate, error) {
	g := sendGate{chat: c}
	switch c.Type {
	case botapi.ChatTypePrivate:
		if s.isBlocked(c.ID) {
			return g, botapi.Conflict("bot was blocked by the user")
		}
		return g, nil
	case botapi.ChatTypeChannel:
		m, err := s.botMember(c)
		if err != nil {
			return g, err
		}
		rights, ok := m.Rights()
		if !ok || !rights.CanPostMessages {
			return g, botapi.NotEnoughRights("need administrator rights in the channel chat")
		}
		g.isAdmin, g.rights = true, rights
		return g, nil
	}

	m, err := s.botMember(c)
	if err != nil {
		return g, err
	}
	g.rights, g.isAdmin = m.Rights()
	if !g.isAdmin {
		deny := botapi.NotEnoughRights("not enough rights to send " + kind.label + " to the chat")
		if c.IsLocked {
			return g, deny
		}
		if !s.Members.CanSendMessages(c.ID, s.botID()) {
			return g, deny
		}
		perms := c.Permissions
		if st, ok := m.State.(store.Restricted); ok {
			perms = st.Permissions
		}
		if !kind.perm(perms) {
			return g, deny
		}
	}
	if c.IsForum {
		if err := s.checkTopic(c, threadID, g); err != nil {
			return g, err
		}
	}
	return g, nil
}

func (s *Server) checkTopic(c store.Chat, threadID int, g sendGate) error {
	if threadID == 0 {
		threadID = store.GeneralTopicID
	}
	t, ok := s.Chats.Topic(c.ID, threadID)
	if !ok {
		return botapi.NotFound("message thread not found")
	}
	if t.IsClosed && !(g.isAdmin && g.rights.CanManageTopics) {
		return botapi.InvalidArgument("TOPIC_CLOSED")
	}
	return nil
}

// throttle applies slow mode and the flood ceilings. Administrators bypass them.
func (s *Server) throttle(g sendGate) error {
	d := s.Chats.CheckRateLimit(g.chat.ID, s.botID(), g.isAdmin)
	if !d.Allowed {
		s.logger.Debug("send throttled", "chat_id", g.chat.ID, "gate", d.Gate, "retry_after", d.RetryAfter)
		return botapi.RateLimited(d.RetryAfter)
	}
	return nil
}

// ownMessage reports whether the bot authored m (or may treat it as its own, as
// channel administrators with edit rights may).
func (s *Server) ownMessage(c store.Chat, m botapi.Message) bool {
	if m.From != nil && m.From.ID == s.botID() {
		return true
	}
	if c.Type == botapi.ChatTypeChannel && m.SenderChat != nil && m.SenderChat.ID == c.ID {
		rights, ok := s.Members.Rights(c.ID, s.botID())
		return ok && rights.CanEditMessages
	}
	return false
}

// memberUser returns the user with id, falling back to a bare record.
func (s *Server) memberUser(id int64) botapi.User {
	if u, ok := s.Members.User(id); ok {
		return u
	}
	return botapi.User{ID: id}
}
