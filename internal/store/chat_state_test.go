package store

import (
	"errors"
	"testing"
	"time"

	"github.com/nextlevelbuilder/botsim/internal/clock"
	"github.com/nextlevelbuilder/botsim/pkg/botapi"
)

func TestChatState_MessagesAndPins(t *testing.T) {
	cs, clk := newGroupState(t)
	m1, _ := cs.AddMessage(testChat, botapi.Message{Text: "one"})
	clk.Advance(time.Second)
	m2, _ := cs.AddMessage(testChat, botapi.Message{Text: "two"})
	if m1.MessageID != 1 || m2.MessageID != 2 {
		t.Fatalf("ids = %d, %d", m1.MessageID, m2.MessageID)
	}
	if m2.Date != clk.Unix() || m2.Chat.ID != testChat {
		t.Errorf("message = %+v", m2)
	}

	edited, err := cs.EditMessage(testChat, 1, func(m *botapi.Message) { m.Text = "uno" })
	if err != nil || edited.Text != "uno" || edited.EditDate == 0 {
		t.Fatalf("edit = %+v, %v", edited, err)
	}

	cs.Pin(testChat, 1)
	cs.Pin(testChat, 2)
	if p, _ := cs.PinnedMessage(testChat); p.MessageID != 2 {
		t.Errorf("pinned = %d, want 2", p.MessageID)
	}
	cs.DeleteMessage(testChat, 2)
	if p, _ := cs.PinnedMessage(testChat); p.MessageID != 1 {
		t.Errorf("pinned after delete = %d, want 1", p.MessageID)
	}
	if err := cs.Unpin(testChat, 9); !errors.Is(err, ErrMessageNotFound) {
		t.Errorf("unpin unknown err = %v", err)
	}
	if got := len(cs.Messages(testChat)); got != 1 {
		t.Errorf("messages = %d, want 1", got)
	}
	if cs.DeleteMessage(testChat, 2) {
		t.Error("double delete reported success")
	}
}

func TestChatState_SlowModeValues(t *testing.T) {
	cs, _ := newGroupState(t)
	for _, d := range []int{0, 10, 30, 60, 300, 900, 3600} {
		if _, err := cs.SetSlowMode(testChat, d); err != nil {
			t.Errorf("SetSlowMode(%d) = %v", d, err)
		}
	}
	for _, d := range []int{-1, 5, 61, 7200} {
		if _, err := cs.SetSlowMode(testChat, d); !errors.Is(err, ErrInvalidSlowMode) {
			t.Errorf("SetSlowMode(%d) err = %v", d, err)
		}
	}
}

func TestChatState_ResolveAndMigrate(t *testing.T) {
	cs := NewChatState(clock.NewSim(clock.DefaultStart), DefaultRateLimits())
	cs.Create(botapi.Chat{ID: -42, Type: botapi.ChatTypeGroup, Title: "g", Username: "MyGroup"})

	if c, ok := cs.Resolve(botapi.ChatRef{Username: "mygroup"}); !ok || c.ID != -42 {
		t.Fatalf("resolve = %+v, %v", c, ok)
	}
	sg, err := cs.Migrate(-42)
	if err != nil {
		t.Fatal(err)
	}
	if sg.ID != -1000000000042 || sg.Type != botapi.ChatTypeSupergroup {
		t.Errorf("supergroup = %+v", sg.Chat)
	}
	old, _ := cs.Get(-42)
	if old.MigrateToChatID != sg.ID {
		t.Errorf("migrate_to = %d", old.MigrateToChatID)
	}
	if c, _ := cs.Resolve(botapi.ChatRef{Username: "MyGroup"}); c.ID != sg.ID {
		t.Errorf("username resolves to %d after migration", c.ID)
	}
	if _, err := cs.Migrate(-42); !errors.Is(err, ErrNotSupergroup) {
		t.Errorf("second migrate err = %v", err)
	}
}

func TestChatState_Forum(t *testing.T) {
	cs, _ := newGroupState(t)
	if _, err := cs.CreateTopic(testChat, "x", 0, ""); !errors.Is(err, ErrNotForum) {
		t.Fatalf("err = %v, want ErrNotForum", err)
	}
	if _, err := cs.EnableForum(testChat); err != nil {
		t.Fatal(err)
	}
	general, ok := cs.Topic(testChat, GeneralTopicID)
	if !ok || general.Name != "General" || !general.IsGeneral {
		t.Fatalf("general = %+v, %v", general, ok)
	}

	a, _ := cs.CreateTopic(testChat, "a", 0, "")
	b, _ := cs.CreateTopic(testChat, "b", 0, "")
	if a.MessageThreadID <= GeneralTopicID || b.MessageThreadID <= a.MessageThreadID {
		t.Errorf("ids = %d, %d", a.MessageThreadID, b.MessageThreadID)
	}
	if err := cs.DeleteTopic(testChat, GeneralTopicID); !errors.Is(err, ErrGeneralTopic) {
		t.Errorf("delete general err = %v", err)
	}
	if _, err := cs.SetTopicClosed(testChat, a.MessageThreadID, true); err != nil {
		t.Fatal(err)
	}
	if _, err := cs.SetTopicClosed(testChat, a.MessageThreadID, true); !errors.Is(err, ErrTopicClosed) {
		t.Errorf("double close err = %v", err)
	}
	cs.AddMessage(testChat, botapi.Message{MessageThreadID: a.MessageThreadID, Text: "in a"})
	if err := cs.DeleteTopic(testChat, a.MessageThreadID); err != nil {
		t.Fatal(err)
	}
	if len(cs.Messages(testChat)) != 0 {
		t.Error("topic messages survived deletion")
	}

	c, _ := cs.EnableForum(testChat)
	if !c.IsForum || len(cs.Topics(testChat)) != 2 {
		t.Errorf("re-enable changed topics: %d", len(cs.Topics(testChat)))
	}
}

func TestChatState_EnableForumRequiresSupergroup(t *testing.T) {
	cs := NewChatState(clock.NewSim(clock.DefaultStart), DefaultRateLimits())
	cs.Create(botapi.Chat{ID: -5, Type: botapi.ChatTypeGroup})
	if _, err := cs.EnableForum(-5); !errors.Is(err, ErrNotSupergroup) {
		t.Errorf("err = %v", err)
	}
}

func TestChatState_ReadsReturnCopies(t *testing.T) {
	cs, _ := newGroupState(t)
	msg := botapi.Message{
		Text:     "/start",
		Entities: []botapi.MessageEntity{{Type: botapi.EntityBotCommand, Length: 6}},
		ReplyMarkup: &botapi.InlineKeyboardMarkup{InlineKeyboard: [][]botapi.InlineKeyboardButton{
			{{Text: "Go", CallbackData: "go"}},
		}},
	}
	sent, err := cs.AddMessage(testChat, msg)
	if err != nil {
		t.Fatal(err)
	}
	msg.Entities[0].Type = "bold"

	got, _ := cs.Message(testChat, sent.MessageID)
	if got.Entities[0].Type != botapi.EntityBotCommand {
		t.Fatalf("stored entity changed through the caller's slice: %q", got.Entities[0].Type)
	}
	got.Entities[0].Type = "italic"
	got.ReplyMarkup.InlineKeyboard[0][0].CallbackData = "stop"
	listed := cs.Messages(testChat)
	listed[0].Entities[0].Length = 99

	again, _ := cs.Message(testChat, sent.MessageID)
	if again.Entities[0].Type != botapi.EntityBotCommand || again.Entities[0].Length != 6 {
		t.Errorf("entities = %+v, want the original", again.Entities)
	}
	if data := again.ReplyMarkup.InlineKeyboard[0][0].CallbackData; data != "go" {
		t.Errorf("callback data = %q, want go", data)
	}
}

func TestChatState_RefreshPoll(t *testing.T) {
	cs, clk := newGroupState(t)
	poll := botapi.Poll{ID: "p1", Question: "Lunch?", Options: []botapi.PollOption{{Text: "Pizza"}, {Text: "Salad"}}}
	sent, err := cs.AddMessage(testChat, botapi.Message{Poll: &poll})
	if err != nil {
		t.Fatal(err)
	}
	clk.Advance(time.Minute)

	voted := poll
	voted.Options = []botapi.PollOption{{Text: "Pizza", VoterCount: 1}, {Text: "Salad"}}
	voted.TotalVoterCount = 1
	if err := cs.RefreshPoll(testChat, sent.MessageID, voted); err != nil {
		t.Fatalf("RefreshPoll: %v", err)
	}
	got, _ := cs.Message(testChat, sent.MessageID)
	if got.Poll.TotalVoterCount != 1 || got.Poll.Options[0].VoterCount != 1 {
		t.Errorf("poll = %+v, want the refreshed counts", *got.Poll)
	}
	if got.EditDate != 0 {
		t.Errorf("edit date = %d, want 0", got.EditDate)
	}

	other := botapi.Poll{ID: "p2"}
	if err := cs.RefreshPoll(testChat, sent.MessageID, other); !errors.Is(err, ErrMessageNotFound) {
		t.Errorf("refresh with another poll = %v, want ErrMessageNotFound", err)
	}
	text, _ := cs.AddMessage(testChat, botapi.Message{Text: "hi"})
	if err := cs.RefreshPoll(testChat, text.MessageID, voted); !errors.Is(err, ErrMessageNotFound) {
		t.Errorf("refresh on a text message = %v, want ErrMessageNotFound", err)
	}
}
