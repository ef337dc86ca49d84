package dispatcher

import (
	"errors"
	"reflect"
	"testing"

	"github.com/nextlevelbuilder/botsim/pkg/botapi"
)

func entity(typ string, offset, length int) botapi.MessageEntity {
	return botapi.MessageEntity{Type: typ, Offset: offset, Length: length}
}

func TestParseText(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		mode     string
		want     string
		entities []botapi.MessageEntity
	}{
		{
			name: "no mode",
			text: "<b>raw</b>",
			want: "<b>raw</b>",
		},
		{
			name:     "html bold and italic",
			text:     "<b>bold</b> and <i>it</i>",
			mode:     botapi.ModeHTML,
			want:     "bold and it",
			entities: []botapi.MessageEntity{entity(botapi.EntityBold, 0, 4), entity(botapi.EntityItalic, 9, 2)},
		},
		{
			name: "html escapes",
			text: "a &lt; b",
			mode: botapi.ModeHTML,
			want: "a < b",
		},
		{
			name:     "html offsets count utf-16 units",
			text:     "😀 <b>hi</b>",
			mode:     botapi.ModeHTML,
			want:     "😀 hi",
			entities: []botapi.MessageEntity{entity(botapi.EntityBold, 3, 2)},
		},
		{
			name: "html pre with language",
			text: `<pre><code class="language-go">fmt</code></pre>`,
			mode: botapi.ModeHTML,
			want: "fmt",
			entities: []botapi.MessageEntity{
				{Type: botapi.EntityPre, Offset: 0, Length: 3, Language: "go"},
			},
		},
		{
			name: "html link",
			text: `<a href="https://example.com">site</a>`,
			mode: botapi.ModeHTML,
			want: "site",
			entities: []botapi.MessageEntity{
				{Type: botapi.EntityTextLink, Offset: 0, Length: 4, URL: "https://example.com"},
			},
		},
		{
			name:     "markdown",
			text:     "*bold* _it_ `code`",
			mode:     botapi.ModeMarkdown,
			want:     "bold it code",
			entities: []botapi.MessageEntity{entity(botapi.EntityBold, 0, 4), entity(botapi.EntityItalic, 5, 2), entity(botapi.EntityCode, 8, 4)},
		},
		{
			name:     "markdown v2 nested styles",
			text:     "*bold* __u__ ||s||",
			mode:     botapi.ModeMarkdownV2,
			want:     "bold u s",
			entities: []botapi.MessageEntity{entity(botapi.EntityBold, 0, 4), entity(botapi.EntityUnderline, 5, 1), entity(botapi.EntitySpoiler, 7, 1)},
		},
		{
			name: "markdown v2 escaped reserved character",
			text: `a\.b`,
			mode: botapi.ModeMarkdownV2,
			want: "a.b",
		},
		{
			name: "markdown v2 link",
			text: "[t](https://e.com)",
			mode: "markdownv2",
			want: "t",
			entities: []botapi.MessageEntity{
				{Type: botapi.EntityTextLink, Offset: 0, Length: 1, URL: "https://e.com"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, entities, err := ParseText(tt.text, tt.mode)
			if err != nil {
				t.Fatalf("ParseText: %v", err)
			}
			if got != tt.want {
				t.Errorf("text = %q, want %q", got, tt.want)
			}
			if len(entities) == 0 && len(tt.entities) == 0 {
				return
			}
			if !reflect.DeepEqual(entities, tt.entities) {
				t.Errorf("entities = %+v, want %+v", entities, tt.entities)
			}
		})
	}
}

func TestParseTextErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
		mode string
	}{
		{"html unsupported tag", "<div>x</div>", botapi.ModeHTML},
		{"html unclosed tag", "<b>x", botapi.ModeHTML},
		{"html mismatched tag", "<b><i>x</b></i>", botapi.ModeHTML},
		{"markdown unclosed", "*bold", botapi.ModeMarkdown},
		{"markdown v2 reserved", "a.b", botapi.ModeMarkdownV2},
		{"markdown v2 unclosed", "*x", botapi.ModeMarkdownV2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseText(tt.text, tt.mode)
			if !errors.Is(err, errParse) {
				t.Errorf("error = %v, want a parse error", err)
			}
		})
	}
	if _, _, err := ParseText("x", "rtf"); err == nil {
		t.Error("unknown parse mode accepted")
	}
}

func TestDetectEntities(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		existing []botapi.MessageEntity
		want     []botapi.MessageEntity
	}{
		{"command", "/start", nil, []botapi.MessageEntity{entity(botapi.EntityBotCommand, 0, 6)}},
		{"mention", "hi @username", nil, []botapi.MessageEntity{entity(botapi.EntityMention, 3, 9)}},
		{"url trims punctuation", "see https://example.com/a.", nil, []botapi.MessageEntity{entity(botapi.EntityURL, 4, 21)}},
		{"hashtag", "#golang rocks", nil, []botapi.MessageEntity{entity(botapi.EntityHashtag, 0, 7)}},
		{"cashtag", "buy $USD", nil, []botapi.MessageEntity{entity(botapi.EntityCashtag, 4, 4)}},
		{"email wins over domain", "me@mail.com", nil, []botapi.MessageEntity{entity(botapi.EntityEmail, 0, 11)}},
		{"utf-16 offsets", "😀 #tag", nil, []botapi.MessageEntity{entity(botapi.EntityHashtag, 3, 4)}},
		{
			name:     "code blocks detection",
			text:     "/start",
			existing: []botapi.MessageEntity{entity(botapi.EntityCode, 0, 6)},
			want:     []botapi.MessageEntity{entity(botapi.EntityCode, 0, 6)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectEntities(tt.text, tt.existing)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DetectEntities(%q) = %+v, want %+v", tt.text, got, tt.want)
			}
		})
	}
}
