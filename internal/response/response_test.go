package response

import (
	"context"
	"sync"
	"testing"

	"github.com/nextlevelbuilder/botsim/pkg/botapi"
)

func TestBotResponse_DerivedViews(t *testing.T) {
	r := New("update 1")
	r.AddSent(botapi.Message{MessageID: 1, Text: "hello @bob", Entities: []botapi.MessageEntity{{Type: botapi.EntityMention, Offset: 6, Length: 4}}})
	r.AddSent(botapi.Message{MessageID: 2, Caption: "photo", ReplyMarkup: &botapi.InlineKeyboardMarkup{
		InlineKeyboard: [][]botapi.InlineKeyboardButton{{{Text: "Yes", CallbackData: "y"}, {Text: "No", CallbackData: "n"}}},
	}})
	r.AddDeleted(5, 1)

	if got := r.Text(); got != "photo" {
		t.Errorf("Text() = %q, want caption", got)
	}
	if got := r.Texts(); len(got) != 2 || got[0] != "hello @bob" {
		t.Errorf("Texts() = %v", got)
	}
	if got := r.Buttons(); len(got) != 2 || got[1] != "No" {
		t.Errorf("Buttons() = %v", got)
	}
	if got := r.EntityTexts(botapi.EntityMention); len(got) != 1 || got[0] != "@bob" {
		t.Errorf("EntityTexts() = %v", got)
	}
	if got := r.Entities(botapi.EntityURL); len(got) != 0 {
		t.Errorf("Entities(url) = %v", got)
	}
	if d := r.Deleted(); len(d) != 1 || d[0].MessageID != 1 {
		t.Errorf("Deleted() = %v", d)
	}

	// accessors return copies
	sent := r.Sent()
	sent[0].Text = "mutated"
	if r.Sent()[0].Text != "hello @bob" {
		t.Error("Sent() exposed internal slice")
	}
}

func TestBotResponse_KeyboardPrefersEdits(t *testing.T) {
	r := New("cb")
	kb := func(label string) *botapi.InlineKeyboardMarkup {
		return &botapi.InlineKeyboardMarkup{InlineKeyboard: [][]botapi.InlineKeyboardButton{{{Text: label}}}}
	}
	r.AddSent(botapi.Message{ReplyMarkup: kb("sent")})
	r.AddEdited(botapi.Message{ReplyMarkup: kb("edited")})
	if got := r.Buttons(); len(got) != 1 || got[0] != "edited" {
		t.Errorf("Buttons() = %v", got)
	}
}

func TestBotResponse_CallsAndErrors(t *testing.T) {
	r := New("x")
	if !r.Empty() {
		t.Fatal("new response not empty")
	}
	r.RecordCall(APICall{Method: botapi.MethodSendMessage})
	r.RecordCall(APICall{Method: botapi.MethodDeleteMessage, Err: botapi.NotFound("message to delete not found")})
	if !r.Called(botapi.MethodDeleteMessage) || r.Called(botapi.MethodGetMe) {
		t.Error("Called mismatch")
	}
	if r.Err() == nil {
		t.Error("expected recorded error")
	}
	s := r.Summary()
	if len(s.Calls) != 2 || s.Error == "" {
		t.Errorf("summary = %+v", s)
	}
}

func TestContext_Isolation(t *testing.T) {
	if FromContext(context.Background()) != nil {
		t.Fatal("background context has a response")
	}
	var wg sync.WaitGroup
	responses := make([]*BotResponse, 8)
	for i := range responses {
		responses[i] = New("cause")
		ctx := WithResponse(context.Background(), responses[i])
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for n := 0; n < 50; n++ {
				FromContext(ctx).AddSent(botapi.Message{MessageID: i})
			}
		}(i)
	}
	wg.Wait()
	for i, r := range responses {
		sent := r.Sent()
		if len(sent) != 50 {
			t.Fatalf("response %d has %d messages", i, len(sent))
		}
		for _, m := range sent {
			if m.MessageID != i {
				t.Fatalf("response %d received message from cause %d", i, m.MessageID)
			}
		}
	}
}
