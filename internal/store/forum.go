package store

import (
	"sort"

	"github.com/nextlevelbuilder/botsim/pkg/botapi"
)

// GeneralTopicID is the thread id of the always-present General topic.
const GeneralTopicID = 1

// generalIconColor is the platform's default topic color (0x6FB9F0).
const generalIconColor = 7322096

// Topic is a forum thread.
type Topic struct {
	botapi.ForumTopic
	IsClosed  bool
	IsGeneral bool
	CreatedAt int64
}

func (e *chatEntry) enableForum() {
	e.chat.IsForum = true
	if _, ok := e.topics[GeneralTopicID]; ok {
		return
	}
	e.topics[GeneralTopicID] = &Topic{
		ForumTopic: botapi.ForumTopic{MessageThreadID: GeneralTopicID, Name: "General", IconColor: generalIconColor},
		IsGeneral:  true,
		CreatedAt:  e.chat.CreatedAt,
	}
}

// EnableForum turns a supergroup into a forum. The General topic is created if missing.
func (s *ChatState) EnableForum(chatID int64) (Chat, error) {
	return s.update(chatID, func(e *chatEntry) error {
		if e.chat.Type != botapi.ChatTypeSupergroup {
			return ErrNotSupergroup
		}
		e.enableForum()
		return nil
	})
}

// CreateTopic opens a new thread. Ids increase strictly, starting above General.
func (s *ChatState) CreateTopic(chatID int64, name string, iconColor int, emojiID string) (Topic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.chats[chatID]
	if !ok {
		return Topic{}, ErrChatNotFound
	}
	if !e.chat.IsForum {
		return Topic{}, ErrNotForum
	}
	if iconColor == 0 {
		iconColor = generalIconColor
	}
	t := &Topic{
		ForumTopic: botapi.ForumTopic{
			MessageThreadID:   e.nextTopicID,
			Name:              name,
			IconColor:         iconColor,
			IconCustomEmojiID: emojiID,
		},
		CreatedAt: s.now(),
	}
	e.nextTopicID++
	e.topics[t.MessageThreadID] = t
	return *t, nil
}

// Topic returns one thread.
func (s *ChatState) Topic(chatID int64, threadID int) (Topic, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.topic(chatID, threadID)
	if err != nil {
		return Topic{}, false
	}
	return *t, true
}

// Topics lists a forum's threads by id.
func (s *ChatState) Topics(chatID int64) []Topic {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.chats[chatID]
	if !ok {
		return nil
	}
	out := make([]Topic, 0, len(e.topics))
	for _, t := range e.topics {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MessageThreadID < out[j].MessageThreadID })
	return out
}

// EditTopic renames a thread or changes its icon. Nil arguments are left unchanged.
func (s *ChatState) EditTopic(chatID int64, threadID int, name, emojiID *string) (Topic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.topic(chatID, threadID)
	if err != nil {
		return Topic{}, err
	}
	if name != nil {
		t.Name = *name
	}
	if emojiID != nil && !t.IsGeneral {
		t.IconCustomEmojiID = *emojiID
	}
	return *t, nil
}

// SetTopicClosed closes or reopens a thread. A call that changes nothing fails
// with ErrTopicClosed or ErrTopicOpen.
func (s *ChatState) SetTopicClosed(chatID int64, threadID int, closed bool) (Topic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.topic(chatID, threadID)
	if err != nil {
		return Topic{}, err
	}
	if t.IsClosed == closed {
		if closed {
			return Topic{}, ErrTopicClosed
		}
		return Topic{}, ErrTopicOpen
	}
	t.IsClosed = closed
	return *t, nil
}

// DeleteTopic removes a thread and its messages. General can never be deleted.
func (s *ChatState) DeleteTopic(chatID int64, threadID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.topic(chatID, threadID)
	if err != nil {
		return err
	}
	if t.IsGeneral {
		return ErrGeneralTopic
	}
	e := s.chats[chatID]
	delete(e.topics, threadID)
	for _, id := range append([]int(nil), e.order...) {
		if e.messages[id].MessageThreadID == threadID {
			e.deleteMessage(id)
		}
	}
	return nil
}

// topic must be called with s.mu held.
func (s *ChatState) topic(chatID int64, threadID int) (*Topic, error) {
	e, ok := s.chats[chatID]
	if !ok {
		return nil, ErrChatNotFound
	}
	if !e.chat.IsForum {
		return nil, ErrNotForum
	}
	t, ok := e.topics[threadID]
	if !ok {
		return nil, ErrTopicNotFound
	}
	return t, nil
}
