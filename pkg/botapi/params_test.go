package botapi

import (
	"encoding/json"
	"testing"
)

func TestParams_LenientCoercion(t *testing.T) {
	p := Params{
		"json_num":   json.Number("42"),
		"float":      float64(7),
		"str_num":    "-100123",
		"native":     int64(9),
		"flag":       "true",
		"bool":       true,
		"empty":      "",
		"username":   "@my_group",
		"keyboard":   `{"inline_keyboard":[[{"text":"A","callback_data":"a"}]]}`,
		"option_ids": []any{json.Number("0"), json.Number("2")},
	}

	for key, want := range map[string]int64{"json_num": 42, "float": 7, "str_num": -100123, "native": 9} {
		got, ok := p.Int64(key)
		if !ok || got != want {
			t.Errorf("Int64(%q) = %d, %v; want %d", key, got, ok, want)
		}
	}
	if !p.Bool("flag") || !p.Bool("bool") || p.Bool("missing") {
		t.Error("Bool coercion mismatch")
	}
	if p.Has("empty") || p.Has("missing") || !p.Has("flag") {
		t.Error("Has mismatch")
	}
	if got := p.String("json_num"); got != "42" {
		t.Errorf("String(json_num) = %q", got)
	}

	ref, ok := p.ChatRef("username")
	if !ok || ref.Username != "my_group" || ref.String() != "@my_group" {
		t.Errorf("ChatRef(username) = %+v, %v", ref, ok)
	}
	ref, ok = p.ChatRef("str_num")
	if !ok || ref.ID != -100123 {
		t.Errorf("ChatRef(str_num) = %+v, %v", ref, ok)
	}

	var markup ReplyMarkup
	found, err := p.Decode("keyboard", &markup)
	if !found || err != nil {
		t.Fatalf("Decode(keyboard) = %v, %v", found, err)
	}
	if texts := markup.ButtonTexts(); len(texts) != 1 || texts[0] != "A" {
		t.Errorf("button texts = %v", texts)
	}

	var ids []int
	if _, err := p.Decode("option_ids", &ids); err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || ids[1] != 2 {
		t.Errorf("option_ids = %v", ids)
	}
}

func TestParamsOf_Struct(t *testing.T) {
	p, err := ParamsOf(struct {
		ChatID int64  `json:"chat_id"`
		Text   string `json:"text"`
	}{ChatID: 5, Text: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	if id, _ := p.Int64("chat_id"); id != 5 {
		t.Errorf("chat_id = %d", id)
	}
	if p.String("text") != "hi" {
		t.Errorf("text = %q", p.String("text"))
	}
}
