package botapi

import "unicode/utf16"

// Message entity types.
const (
	EntityMention       = "mention"
	EntityHashtag       = "hashtag"
	EntityCashtag       = "cashtag"
	EntityBotCommand    = "bot_command"
	EntityURL           = "url"
	EntityEmail         = "email"
	EntityBold          = "bold"
	EntityItalic        = "italic"
	EntityUnderline     = "underline"
	EntityStrikethrough = "strikethrough"
	EntitySpoiler       = "spoiler"
	EntityCode          = "code"
	EntityPre           = "pre"
	EntityTextLink      = "text_link"
	EntityTextMention   = "text_mention"
	EntityBlockquote    = "blockquote"
)

// Message is a chat message as returned by send/edit methods and carried in updates.
type Message struct {
	MessageID         int                   `json:"message_id"`
	MessageThreadID   int                   `json:"message_thread_id,omitempty"`
	From              *User                 `json:"from,omitempty"`
	SenderChat        *Chat                 `json:"sender_chat,omitempty"`
	Date              int64                 `json:"date"`
	Chat              Chat                  `json:"chat"`
	ForwardOrigin     *MessageOrigin        `json:"forward_origin,omitempty"`
	IsTopicMessage    bool                  `json:"is_topic_message,omitempty"`
	ReplyToMessage    *Message              `json:"reply_to_message,omitempty"`
	EditDate          int64                 `json:"edit_date,omitempty"`
	Text              string                `json:"text,omitempty"`
	Entities          []MessageEntity       `json:"entities,omitempty"`
	Animation         *Media                `json:"animation,omitempty"`
	Audio             *Media                `json:"audio,omitempty"`
	Document          *Media                `json:"document,omitempty"`
	Photo             []PhotoSize           `json:"photo,omitempty"`
	Sticker           *Media                `json:"sticker,omitempty"`
	Video             *Media                `json:"video,omitempty"`
	Voice             *Media                `json:"voice,omitempty"`
	Caption           string                `json:"caption,omitempty"`
	CaptionEntities   []MessageEntity       `json:"caption_entities,omitempty"`
	Contact           *Contact              `json:"contact,omitempty"`
	Dice              *Dice                 `json:"dice,omitempty"`
	Poll              *Poll                 `json:"poll,omitempty"`
	Location          *Location             `json:"location,omitempty"`
	NewChatMembers    []User                `json:"new_chat_members,omitempty"`
	LeftChatMember    *User                 `json:"left_chat_member,omitempty"`
	NewChatTitle      string                `json:"new_chat_title,omitempty"`
	PinnedMessage     *Message              `json:"pinned_message,omitempty"`
	MigrateToChatID   int64                 `json:"migrate_to_chat_id,omitempty"`
	MigrateFromChatID int64                 `json:"migrate_from_chat_id,omitempty"`
	Invoice           *Invoice              `json:"invoice,omitempty"`
	SuccessfulPayment *SuccessfulPayment    `json:"successful_payment,omitempty"`
	ForumTopicCreated *ForumTopicCreated    `json:"forum_topic_created,omitempty"`
	ReplyMarkup       *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

// MessageEntity marks a span of text or caption. Offsets are in UTF-16 code units.
type MessageEntity struct {
	Type     string `json:"type"`
	Offset   int    `json:"offset"`
	Length   int    `json:"length"`
	URL      string `json:"url,omitempty"`
	User     *User  `json:"user,omitempty"`
	Language string `json:"language,omitempty"`
}

// MessageOrigin describes where a forwarded message came from.
type MessageOrigin struct {
	Type       string `json:"type"`
	Date       int64  `json:"date"`
	SenderUser *User  `json:"sender_user,omitempty"`
	Chat       *Chat  `json:"chat,omitempty"`
	MessageID  int    `json:"message_id,omitempty"`
}

// ForumTopicCreated is the service payload of a topic creation message.
type ForumTopicCreated struct {
	Name      string `json:"name"`
	IconColor int    `json:"icon_color"`
}

// InlineKeyboardMarkup is a keyboard attached to a message.
type InlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton `json:"inline_keyboard"`
}

// InlineKeyboardButton is one button of an inline keyboard.
type InlineKeyboardButton struct {
	Text                         string `json:"text"`
	URL                          string `json:"url,omitempty"`
	CallbackData                 string `json:"callback_data,omitempty"`
	SwitchInlineQuery            string `json:"switch_inline_query,omitempty"`
	SwitchInlineQueryCurrentChat string `json:"switch_inline_query_current_chat,omitempty"`
	Pay                          bool   `json:"pay,omitempty"`
}

// KeyboardButton is one button of a custom reply keyboard.
type KeyboardButton struct {
	Text            string `json:"text"`
	RequestContact  bool   `json:"request_contact,omitempty"`
	RequestLocation bool   `json:"request_location,omitempty"`
}

// ReplyMarkup is the union of the reply_markup shapes a bot may send: inline keyboard,
// custom reply keyboard, keyboard removal, or force reply.
type ReplyMarkup struct {
	InlineKeyboard        [][]InlineKeyboardButton `json:"inline_keyboard,omitempty"`
	Keyboard              [][]KeyboardButton       `json:"keyboard,omitempty"`
	IsPersistent          bool                     `json:"is_persistent,omitempty"`
	ResizeKeyboard        bool                     `json:"resize_keyboard,omitempty"`
	OneTimeKeyboard       bool                     `json:"one_time_keyboard,omitempty"`
	RemoveKeyboard        bool                     `json:"remove_keyboard,omitempty"`
	ForceReply            bool                     `json:"force_reply,omitempty"`
	InputFieldPlaceholder string                   `json:"input_field_placeholder,omitempty"`
	Selective             bool                     `json:"selective,omitempty"`
}

// Inline returns the inline keyboard part of the markup, or nil.
func (m *ReplyMarkup) Inline() *InlineKeyboardMarkup {
	if m == nil || len(m.InlineKeyboard) == 0 {
		return nil
	}
	return &InlineKeyboardMarkup{InlineKeyboard: m.InlineKeyboard}
}

// ButtonTexts flattens every button label of the markup in row order.
func (m *ReplyMarkup) ButtonTexts() []string {
	if m == nil {
		return nil
	}
	var texts []string
	for _, row := range m.InlineKeyboard {
		for _, b := range row {
			texts = append(texts, b.Text)
		}
	}
	for _, row := range m.Keyboard {
		for _, b := range row {
			texts = append(texts, b.Text)
		}
	}
	return texts
}

// UTF16Len returns the length of s in UTF-16 code units, the unit entity
// offsets are measured in.
func UTF16Len(s string) int {
	n := 0
	for _, r := range s {
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
	}
	return n
}

// Slice returns the part of text the entity covers. Out-of-range entities yield "".
func (e MessageEntity) Slice(text string) string {
	units := utf16.Encode([]rune(text))
	if e.Offset < 0 || e.Length < 0 || e.Offset+e.Length > len(units) {
		return ""
	}
	return string(utf16.Decode(units[e.Offset : e.Offset+e.Length]))
}

// Body returns the text of the message, or its caption for media messages.
func (m *Message) Body() (string, []MessageEntity) {
	if m.Text != "" {
		return m.Text, m.Entities
	}
	return m.Caption, m.CaptionEntities
}
