package dispatcher

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/nextlevelbuilder/botsim/pkg/botapi"
)

// entityBuilder accumulates plain text and tracks its length in UTF-16 units.
type entityBuilder struct {
	buf      strings.Builder
	units    int
	entities []botapi.MessageEntity
}

func (b *entityBuilder) write(s string) {
	b.buf.WriteString(s)
	b.units += botapi.UTF16Len(s)
}

func (b *entityBuilder) add(e botapi.MessageEntity) {
	if e.Length > 0 {
		b.entities = append(b.entities, e)
	}
}

func (b *entityBuilder) result() (string, []botapi.MessageEntity) {
	sortEntities(b.entities)
	return b.buf.String(), b.entities
}

func sortEntities(es []botapi.MessageEntity) {
	sort.SliceStable(es, func(i, j int) bool {
		if es[i].Offset != es[j].Offset {
			return es[i].Offset < es[j].Offset
		}
		return es[i].Length > es[j].Length
	})
}

// errParse is wrapped by every markup failure.
var errParse = errors.New("can't parse entities")

func parseErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errParse, fmt.Sprintf(format, args...))
}

// ParseText converts marked-up text into plain text and entities according to
// the parse mode. An empty mode returns text unchanged.
func ParseText(text, mode string) (string, []botapi.MessageEntity, error) {
	switch strings.ToLower(mode) {
	case "":
		return text, nil, nil
	case "html":
		return parseHTML(text)
	case "markdown":
		return parseMarkdown(text)
	case "markdownv2":
		return parseMarkdownV2(text)
	}
	return "", nil, fmt.Errorf("unsupported parse_mode %q", mode)
}

// linkEntity builds a text_link, or a text_mention for tg://user links.
func linkEntity(url string, offset int) botapi.MessageEntity {
	if rest, ok := strings.CutPrefix(url, "tg://user?id="); ok {
		if id, err := strconv.ParseInt(rest, 10, 64); err == nil {
			return botapi.MessageEntity{Type: botapi.EntityTextMention, Offset: offset, User: &botapi.User{ID: id}}
		}
	}
	return botapi.MessageEntity{Type: botapi.EntityTextLink, Offset: offset, URL: url}
}

// --- HTML ---

var htmlTags = map[string]string{
	"b":          botapi.EntityBold,
	"strong":     botapi.EntityBold,
	"i":          botapi.EntityItalic,
	"em":         botapi.EntityItalic,
	"u":          botapi.EntityUnderline,
	"ins":        botapi.EntityUnderline,
	"s":          botapi.EntityStrikethrough,
	"strike":     botapi.EntityStrikethrough,
	"del":        botapi.EntityStrikethrough,
	"tg-spoiler": botapi.EntitySpoiler,
	"code":       botapi.EntityCode,
	"pre":        botapi.EntityPre,
	"a":          botapi.EntityTextLink,
	"span":       botapi.EntitySpoiler,
	"blockquote": botapi.EntityBlockquote,
}

type htmlOpen struct {
	tag    string
	entity botapi.MessageEntity
	merged bool
}

func parseHTML(text string) (string, []botapi.MessageEntity, error) {
	var b entityBuilder
	var stack []htmlOpen
	z := html.NewTokenizer(strings.NewReader(text))
	offset := 0
	for {
		tt := z.Next()
		raw := len(z.Raw())
		switch tt {
		case html.ErrorToken:
			if !errors.Is(z.Err(), io.EOF) {
				return "", nil, parseErr("%v", z.Err())
			}
			if len(stack) > 0 {
				return "", nil, parseErr("Can't find end tag corresponding to start tag \"%s\"", stack[len(stack)-1].tag)
			}
			out, es := b.result()
			return out, es, nil
		case html.TextToken:
			b.write(string(z.Text()))
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			tag := string(name)
			attrs := map[string]string{}
			for hasAttr {
				var k, v []byte
				k, v, hasAttr = z.TagAttr()
				attrs[string(k)] = string(v)
			}
			typ, ok := htmlTags[tag]
			if !ok || (tag == "span" && attrs["class"] != "tg-spoiler") {
				return "", nil, parseErr("Unsupported start tag \"%s\" at byte offset %d", tag, offset)
			}
			open := htmlOpen{tag: tag, entity: botapi.MessageEntity{Type: typ, Offset: b.units}}
			switch tag {
			case "a":
				href, ok := attrs["href"]
				if !ok || href == "" {
					return "", nil, parseErr("Can't find href of the link at byte offset %d", offset)
				}
				open.entity = linkEntity(href, b.units)
			case "code":
				if n := len(stack); n > 0 && stack[n-1].tag == "pre" {
					stack[n-1].entity.Language = strings.TrimPrefix(attrs["class"], "language-")
					open.merged = true
				}
			}
			if tt == html.SelfClosingTagToken {
				break
			}
			stack = append(stack, open)
		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if len(stack) == 0 {
				return "", nil, parseErr("Unexpected end tag at byte offset %d", offset)
			}
			top := stack[len(stack)-1]
			if top.tag != tag {
				return "", nil, parseErr("Unmatched end tag at byte offset %d, expected \"</%s>\", found \"</%s>\"", offset, top.tag, tag)
			}
			stack = stack[:len(stack)-1]
			if !top.merged {
				top.entity.Length = b.units - top.entity.Offset
				b.add(top.entity)
			}
		}
		offset += raw
	}
}

// --- Markdown (legacy) ---

func parseMarkdown(text string) (string, []botapi.MessageEntity, error) {
	var b entityBuilder
	i := 0
	for i < len(text) {
		c := text[i]
		switch c {
		case '\\':
			if i+1 < len(text) && strings.IndexByte("_*`[", text[i+1]) >= 0 {
				b.write(text[i+1 : i+2])
				i += 2
				continue
			}
			b.write("\\")
			i++
		case '*', '_':
			end := strings.IndexByte(text[i+1:], c)
			if end < 0 {
				return "", nil, parseErr("Can't find end of the entity starting at byte offset %d", i)
			}
			typ := botapi.EntityBold
			if c == '_' {
				typ = botapi.EntityItalic
			}
			start := b.units
			b.write(text[i+1 : i+1+end])
			b.add(botapi.MessageEntity{Type: typ, Offset: start, Length: b.units - start})
			i += end + 2
		case '`':
			if strings.HasPrefix(text[i:], "```") {
				end := strings.Index(text[i+3:], "```")
				if end < 0 {
					return "", nil, parseErr("Can't find end of the entity starting at byte offset %d", i)
				}
				body, lang := splitPreLanguage(text[i+3 : i+3+end])
				start := b.units
				b.write(body)
				b.add(botapi.MessageEntity{Type: botapi.EntityPre, Offset: start, Length: b.units - start, Language: lang})
				i += end + 6
				continue
			}
			end := strings.IndexByte(text[i+1:], '`')
			if end < 0 {
				return "", nil, parseErr("Can't find end of the entity starting at byte offset %d", i)
			}
			start := b.units
			b.write(text[i+1 : i+1+end])
			b.add(botapi.MessageEntity{Type: botapi.EntityCode, Offset: start, Length: b.units - start})
			i += end + 2
		case '[':
			closeText := strings.IndexByte(text[i+1:], ']')
			if closeText < 0 {
				return "", nil, parseErr("Can't find end of the entity starting at byte offset %d", i)
			}
			label := text[i+1 : i+1+closeText]
			rest := text[i+2+closeText:]
			if !strings.HasPrefix(rest, "(") {
				b.write(label)
				i += closeText + 2
				continue
			}
			closeURL := strings.IndexByte(rest, ')')
			if closeURL < 0 {
				return "", nil, parseErr("Can't find end of a URL at byte offset %d", i)
			}
			start := b.units
			b.write(label)
			e := linkEntity(rest[1:closeURL], start)
			e.Length = b.units - start
			b.add(e)
			i += closeText + 2 + closeURL + 1
		default:
			_, size := utf8.DecodeRuneInString(text[i:])
			b.write(text[i : i+size])
			i += size
		}
	}
	out, es := b.result()
	return out, es, nil
}

// splitPreLanguage separates an optional language name on the first line of a
// fenced block.
func splitPreLanguage(body string) (string, string) {
	nl := strings.IndexByte(body, '\n')
	if nl <= 0 {
		return strings.TrimPrefix(body, "\n"), ""
	}
	first := body[:nl]
	if strings.ContainsAny(first, " \t") {
		return body, ""
	}
	return body[nl+1:], first
}

// --- MarkdownV2 ---

const markdownV2Reserved = "_*[]()~`>#+-=|{}.!"

type mdOpen struct {
	marker string
	typ    string
	start  int
	at     int
}

func parseMarkdownV2(text string) (string, []botapi.MessageEntity, error) {
	var b entityBuilder
	var stack []mdOpen
	quoteStart, quoteEnd := -1, -1

	toggle := func(marker, typ string, at int) {
		if n := len(stack); n > 0 && stack[n-1].marker == marker {
			top := stack[n-1]
			stack = stack[:n-1]
			b.add(botapi.MessageEntity{Type: top.typ, Offset: top.start, Length: b.units - top.start})
			return
		}
		stack = append(stack, mdOpen{marker: marker, typ: typ, start: b.units, at: at})
	}

	i := 0
	for i < len(text) {
		c := text[i]
		lineStart := i == 0 || text[i-1] == '\n'
		if lineStart {
			if c == '>' {
				if quoteStart < 0 {
					quoteStart = b.units
				}
				i++
				continue
			}
			if quoteStart >= 0 {
				b.add(botapi.MessageEntity{Type: botapi.EntityBlockquote, Offset: quoteStart, Length: quoteEnd - quoteStart})
				quoteStart = -1
			}
		}
		switch {
		case c == '\\':
			if i+1 >= len(text) {
				return "", nil, parseErr("Character '\\' is reserved and must be escaped with the preceding '\\'")
			}
			_, size := utf8.DecodeRuneInString(text[i+1:])
			b.write(text[i+1 : i+1+size])
			i += 1 + size
			continue
		case c == '\n':
			if quoteStart >= 0 {
				quoteEnd = b.units
			}
			b.write("\n")
		case c == '`':
			if strings.HasPrefix(text[i:], "```") {
				end := strings.Index(text[i+3:], "```")
				if end < 0 {
					return "", nil, parseErr("Can't find end of Pre entity at byte offset %d", i)
				}
				body, lang := splitPreLanguage(unescapeCode(text[i+3 : i+3+end]))
				start := b.units
				b.write(body)
				b.add(botapi.MessageEntity{Type: botapi.EntityPre, Offset: start, Length: b.units - start, Language: lang})
				i += end + 6
				continue
			}
			end := indexUnescaped(text[i+1:], '`')
			if end < 0 {
				return "", nil, parseErr("Can't find end of Code entity at byte offset %d", i)
			}
			start := b.units
			b.write(unescapeCode(text[i+1 : i+1+end]))
			b.add(botapi.MessageEntity{Type: botapi.EntityCode, Offset: start, Length: b.units - start})
			i += end + 2
			continue
		case c == '*':
			toggle("*", botapi.EntityBold, i)
		case c == '_' && strings.HasPrefix(text[i:], "__"):
			toggle("__", botapi.EntityUnderline, i)
			i += 2
			continue
		case c == '_':
			toggle("_", botapi.EntityItalic, i)
		case c == '~':
			toggle("~", botapi.EntityStrikethrough, i)
		case c == '|' && strings.HasPrefix(text[i:], "||"):
			toggle("||", botapi.EntitySpoiler, i)
			i += 2
			continue
		case c == '[':
			stack = append(stack, mdOpen{marker: "[", typ: botapi.EntityTextLink, start: b.units, at: i})
		case c == ']':
			n := len(stack)
			if n == 0 || stack[n-1].marker != "[" {
				return "", nil, parseErr("Character ']' is reserved and must be escaped with the preceding '\\'")
			}
			if !strings.HasPrefix(text[i+1:], "(") {
				return "", nil, parseErr("Can't find end of a URL at byte offset %d", i)
			}
			end := indexUnescaped(text[i+2:], ')')
			if end < 0 {
				return "", nil, parseErr("Can't find end of a URL at byte offset %d", i)
			}
			top := stack[n-1]
			stack = stack[:n-1]
			e := linkEntity(unescapeCode(text[i+2:i+2+end]), top.start)
			e.Length = b.units - top.start
			b.add(e)
			i += end + 3
			continue
		case strings.IndexByte(markdownV2Reserved, c) >= 0:
			return "", nil, parseErr("Character '%c' is reserved and must be escaped with the preceding '\\'", c)
		default:
			_, size := utf8.DecodeRuneInString(text[i:])
			b.write(text[i : i+size])
			i += size
			continue
		}
		i++
	}
	if len(stack) > 0 {
		top := stack[len(stack)-1]
		return "", nil, parseErr("Can't find end of %s entity at byte offset %d", top.typ, top.at)
	}
	if quoteStart >= 0 {
		b.add(botapi.MessageEntity{Type: botapi.EntityBlockquote, Offset: quoteStart, Length: b.units - quoteStart})
	}
	out, es := b.result()
	return out, es, nil
}

// indexUnescaped finds the first c in s not preceded by a backslash.
func indexUnescaped(s string, c byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' {
			i++
			continue
		}
		if s[i] == c {
			return i
		}
	}
	return -1
}

// unescapeCode drops the backslash in front of ` and \ inside code spans and URLs.
func unescapeCode(s string) string {
	if !strings.Contains(s, "\\") {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

// --- Automatic entities ---

var autoPatterns = []struct {
	typ   string
	re    *regexp.Regexp
	group int
}{
	{botapi.EntityEmail, regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9-]+(?:\.[A-Za-z0-9-]+)*\.[A-Za-z]{2,}`), 0},
	{botapi.EntityURL, regexp.MustCompile(`(?i)\bhttps?://[^\s<>"]+`), 0},
	{botapi.EntityURL, regexp.MustCompile(`(?i)\b(?:[a-z0-9](?:[a-z0-9-]*[a-z0-9])?\.)+(?:com|org|net|io|dev|app|me|ru|de|uk|co|ai|info|ly|gg|tv)(?:/[^\s<>"]*)?`), 0},
	{botapi.EntityBotCommand, regexp.MustCompile(`(?:^|\s)(/[A-Za-z0-9_]{1,32}(?:@[A-Za-z0-9_]{3,32})?)`), 1},
	{botapi.EntityMention, regexp.MustCompile(`(?:^|[^\w@])(@[A-Za-z0-9_]{5,32})\b`), 1},
	{botapi.EntityHashtag, regexp.MustCompile(`(?:^|[^\w#])(#[\p{L}\p{N}_]*[\p{L}_][\p{L}\p{N}_]*)`), 1},
	{botapi.EntityCashtag, regexp.MustCompile(`(?:^|[^\w$])(\$[A-Z]{1,8})\b`), 1},
}

// blocksDetection lists entity types inside which nothing is auto-detected.
var blocksDetection = map[string]bool{
	botapi.EntityCode:        true,
	botapi.EntityPre:         true,
	botapi.EntityTextLink:    true,
	botapi.EntityTextMention: true,
	botapi.EntityURL:         true,
	botapi.EntityEmail:       true,
	botapi.EntityMention:     true,
	botapi.EntityBotCommand:  true,
	botapi.EntityHashtag:     true,
	botapi.EntityCashtag:     true,
}

// DetectEntities adds the entities the platform recognizes in plain text: urls,
// emails, mentions, hashtags, cashtags and bot commands. Spans overlapping an
// existing code, pre, link or detected entity are skipped.
func DetectEntities(text string, existing []botapi.MessageEntity) []botapi.MessageEntity {
	out := append([]botapi.MessageEntity(nil), existing...)
	taken := make([][2]int, 0, len(existing))
	for _, e := range existing {
		if blocksDetection[e.Type] {
			taken = append(taken, [2]int{e.Offset, e.Offset + e.Length})
		}
	}
	overlaps := func(start, end int) bool {
		for _, t := range taken {
			if start < t[1] && t[0] < end {
				return true
			}
		}
		return false
	}
	for _, p := range autoPatterns {
		for _, m := range p.re.FindAllStringSubmatchIndex(text, -1) {
			lo, hi := m[2*p.group], m[2*p.group+1]
			if lo < 0 {
				continue
			}
			if p.typ == botapi.EntityURL {
				hi = lo + len(strings.TrimRight(text[lo:hi], ".,;:!?)'\""))
			}
			start := botapi.UTF16Len(text[:lo])
			end := start + botapi.UTF16Len(text[lo:hi])
			if end <= start || overlaps(start, end) {
				continue
			}
			taken = append(taken, [2]int{start, end})
			out = append(out, botapi.MessageEntity{Type: p.typ, Offset: start, Length: end - start})
		}
	}
	sortEntities(out)
	return out
}
