package botapi

import (
	"encoding/json"
	"fmt"
)

// Member statuses as they appear on the wire.
const (
	StatusCreator       = "creator"
	StatusAdministrator = "administrator"
	StatusMember        = "member"
	StatusRestricted    = "restricted"
	StatusLeft          = "left"
	StatusKicked        = "kicked"
)

// ChatPermissions is the set of actions allowed to non-administrator members.
type ChatPermissions struct {
	CanSendMessages       bool `json:"can_send_messages"`
	CanSendAudios         bool `json:"can_send_audios"`
	CanSendDocuments      bool `json:"can_send_documents"`
	CanSendPhotos         bool `json:"can_send_photos"`
	CanSendVideos         bool `json:"can_send_videos"`
	CanSendVideoNotes     bool `json:"can_send_video_notes"`
	CanSendVoiceNotes     bool `json:"can_send_voice_notes"`
	CanSendPolls          bool `json:"can_send_polls"`
	CanSendOtherMessages  bool `json:"can_send_other_messages"`
	CanAddWebPagePreviews bool `json:"can_add_web_page_previews"`
	CanChangeInfo         bool `json:"can_change_info"`
	CanInviteUsers        bool `json:"can_invite_users"`
	CanPinMessages        bool `json:"can_pin_messages"`
	CanManageTopics       bool `json:"can_manage_topics"`
}

// DefaultChatPermissions is what a freshly created group grants its members.
func DefaultChatPermissions() ChatPermissions {
	return ChatPermissions{
		CanSendMessages:       true,
		CanSendAudios:         true,
		CanSendDocuments:      true,
		CanSendPhotos:         true,
		CanSendVideos:         true,
		CanSendVideoNotes:     true,
		CanSendVoiceNotes:     true,
		CanSendPolls:          true,
		CanSendOtherMessages:  true,
		CanAddWebPagePreviews: true,
		CanInviteUsers:        true,
		CanPinMessages:        true,
	}
}

// ChatAdministratorRights is the rights record of an administrator.
type ChatAdministratorRights struct {
	IsAnonymous         bool `json:"is_anonymous"`
	CanManageChat       bool `json:"can_manage_chat"`
	CanDeleteMessages   bool `json:"can_delete_messages"`
	CanManageVideoChats bool `json:"can_manage_video_chats"`
	CanRestrictMembers  bool `json:"can_restrict_members"`
	CanPromoteMembers   bool `json:"can_promote_members"`
	CanChangeInfo       bool `json:"can_change_info"`
	CanInviteUsers      bool `json:"can_invite_users"`
	CanPostStories      bool `json:"can_post_stories"`
	CanEditStories      bool `json:"can_edit_stories"`
	CanDeleteStories    bool `json:"can_delete_stories"`
	CanPostMessages     bool `json:"can_post_messages,omitempty"`
	CanEditMessages     bool `json:"can_edit_messages,omitempty"`
	CanPinMessages      bool `json:"can_pin_messages,omitempty"`
	CanManageTopics     bool `json:"can_manage_topics,omitempty"`
}

// FullAdministratorRights grants every right; used for chat creators.
func FullAdministratorRights() ChatAdministratorRights {
	return ChatAdministratorRights{
		CanManageChat:       true,
		CanDeleteMessages:   true,
		CanManageVideoChats: true,
		CanRestrictMembers:  true,
		CanPromoteMembers:   true,
		CanChangeInfo:       true,
		CanInviteUsers:      true,
		CanPostStories:      true,
		CanEditStories:      true,
		CanDeleteStories:    true,
		CanPostMessages:     true,
		CanEditMessages:     true,
		CanPinMessages:      true,
		CanManageTopics:     true,
	}
}

// ChatMember is one of the status-tagged member shapes below.
type ChatMember interface {
	MemberStatus() string
	MemberUser() User
}

// ChatMemberOwner is the chat creator.
type ChatMemberOwner struct {
	Status      string `json:"status"`
	User        User   `json:"user"`
	IsAnonymous bool   `json:"is_anonymous"`
	CustomTitle string `json:"custom_title,omitempty"`
}

// ChatMemberAdministrator is a promoted member.
type ChatMemberAdministrator struct {
	Status      string `json:"status"`
	User        User   `json:"user"`
	CanBeEdited bool   `json:"can_be_edited"`
	ChatAdministratorRights
	CustomTitle string `json:"custom_title,omitempty"`
}

// ChatMemberMember is a regular member.
type ChatMemberMember struct {
	Status    string `json:"status"`
	User      User   `json:"user"`
	UntilDate int64  `json:"until_date,omitempty"`
}

// ChatMemberRestricted is a member under restrictions.
type ChatMemberRestricted struct {
	Status   string `json:"status"`
	User     User   `json:"user"`
	IsMember bool   `json:"is_member"`
	ChatPermissions
	UntilDate int64 `json:"until_date"`
}

// ChatMemberLeft is a user who is not (or no longer) in the chat.
type ChatMemberLeft struct {
	Status string `json:"status"`
	User   User   `json:"user"`
}

// ChatMemberBanned is a user banned from the chat.
type ChatMemberBanned struct {
	Status    string `json:"status"`
	User      User   `json:"user"`
	UntilDate int64  `json:"until_date"`
}

func (m ChatMemberOwner) MemberStatus() string         { return StatusCreator }
func (m ChatMemberOwner) MemberUser() User             { return m.User }
func (m ChatMemberAdministrator) MemberStatus() string { return StatusAdministrator }
func (m ChatMemberAdministrator) MemberUser() User     { return m.User }
func (m ChatMemberMember) MemberStatus() string        { return StatusMember }
func (m ChatMemberMember) MemberUser() User            { return m.User }
func (m ChatMemberRestricted) MemberStatus() string    { return StatusRestricted }
func (m ChatMemberRestricted) MemberUser() User        { return m.User }
func (m ChatMemberLeft) MemberStatus() string          { return StatusLeft }
func (m ChatMemberLeft) MemberUser() User              { return m.User }
func (m ChatMemberBanned) MemberStatus() string        { return StatusKicked }
func (m ChatMemberBanned) MemberUser() User            { return m.User }

// ChatMemberUpdated is the payload of my_chat_member and chat_member updates.
type ChatMemberUpdated struct {
	Chat          Chat            `json:"chat"`
	From          User            `json:"from"`
	Date          int64           `json:"date"`
	OldChatMember ChatMember      `json:"old_chat_member"`
	NewChatMember ChatMember      `json:"new_chat_member"`
	InviteLink    *ChatInviteLink `json:"invite_link,omitempty"`
}

// ChatJoinRequest is sent when a user asks to join through an approval link.
type ChatJoinRequest struct {
	Chat       Chat            `json:"chat"`
	From       User            `json:"from"`
	UserChatID int64           `json:"user_chat_id"`
	Date       int64           `json:"date"`
	InviteLink *ChatInviteLink `json:"invite_link,omitempty"`
}

// ChatInviteLink is an invite link as exposed by the API.
type ChatInviteLink struct {
	InviteLink              string `json:"invite_link"`
	Creator                 User   `json:"creator"`
	CreatesJoinRequest      bool   `json:"creates_join_request"`
	IsPrimary               bool   `json:"is_primary"`
	IsRevoked               bool   `json:"is_revoked"`
	Name                    string `json:"name,omitempty"`
	ExpireDate              int64  `json:"expire_date,omitempty"`
	MemberLimit             int    `json:"member_limit,omitempty"`
	PendingJoinRequestCount int    `json:"pending_join_request_count,omitempty"`
}

// The marshalers stamp the status tag so callers never have to set it.

func (m ChatMemberOwner) MarshalJSON() ([]byte, error) {
	type plain ChatMemberOwner
	m.Status = StatusCreator
	return json.Marshal(plain(m))
}

func (m ChatMemberAdministrator) MarshalJSON() ([]byte, error) {
	type plain ChatMemberAdministrator
	m.Status = StatusAdministrator
	return json.Marshal(plain(m))
}

func (m ChatMemberMember) MarshalJSON() ([]byte, error) {
	type plain ChatMemberMember
	m.Status = StatusMember
	return json.Marshal(plain(m))
}

func (m ChatMemberRestricted) MarshalJSON() ([]byte, error) {
	type plain ChatMemberRestricted
	m.Status = StatusRestricted
	return json.Marshal(plain(m))
}

func (m ChatMemberLeft) MarshalJSON() ([]byte, error) {
	type plain ChatMemberLeft
	m.Status = StatusLeft
	return json.Marshal(plain(m))
}

func (m ChatMemberBanned) MarshalJSON() ([]byte, error) {
	type plain ChatMemberBanned
	m.Status = StatusKicked
	return json.Marshal(plain(m))
}

// UnmarshalChatMember decodes a status-tagged member object into its variant.
func UnmarshalChatMember(data []byte) (ChatMember, error) {
	var head struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}
	var (
		m   ChatMember
		err error
	)
	switch head.Status {
	case StatusCreator:
		var v ChatMemberOwner
		err = json.Unmarshal(data, &v)
		m = v
	case StatusAdministrator:
		var v ChatMemberAdministrator
		err = json.Unmarshal(data, &v)
		m = v
	case StatusMember:
		var v ChatMemberMember
		err = json.Unmarshal(data, &v)
		m = v
	case StatusRestricted:
		var v ChatMemberRestricted
		err = json.Unmarshal(data, &v)
		m = v
	case StatusLeft:
		var v ChatMemberLeft
		err = json.Unmarshal(data, &v)
		m = v
	case StatusKicked:
		var v ChatMemberBanned
		err = json.Unmarshal(data, &v)
		m = v
	default:
		return nil, fmt.Errorf("unknown chat member status %q", head.Status)
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (u *ChatMemberUpdated) UnmarshalJSON(data []byte) error {
	type plain ChatMemberUpdated
	var raw struct {
		plain
		OldChatMember json.RawMessage `json:"old_chat_member"`
		NewChatMember json.RawMessage `json:"new_chat_member"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*u = ChatMemberUpdated(raw.plain)
	var err error
	if len(raw.OldChatMember) > 0 {
		if u.OldChatMember, err = UnmarshalChatMember(raw.OldChatMember); err != nil {
			return fmt.Errorf("old_chat_member: %w", err)
		}
	}
	if len(raw.NewChatMember) > 0 {
		if u.NewChatMember, err = UnmarshalChatMember(raw.NewChatMember); err != nil {
			return fmt.Errorf("new_chat_member: %w", err)
		}
	}
	return nil
}
