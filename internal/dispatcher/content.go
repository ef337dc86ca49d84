package dispatcher

import (
	"errors"
	"path"
	"strings"

	"github.com/nextlevelbuilder/botsim/internal/media"
	"github.com/nextlevelbuilder/botsim/internal/store"
	"github.com/nextlevelbuilder/botsim/pkg/botapi"
)

// Length limits in UTF-16 units.
const (
	maxTextLength    = 4096
	maxCaptionLength = 1024
)

// formatText reads text and its formatting from p. Explicit entities win over
// parse mode; detected entities are added either way.
func (s *Server) formatText(p botapi.Params, textKey, modeKey, entitiesKey string) (string, []botapi.MessageEntity, error) {
	raw := p.String(textKey)
	var (
		text     string
		entities []botapi.MessageEntity
	)
	found, err := p.Decode(entitiesKey, &entities)
	switch {
	case err != nil:
		return "", nil, botapi.InvalidArgument("can't parse " + entitiesKey + " JSON object")
	case found:
		text = raw
		units := botapi.UTF16Len(text)
		for _, e := range entities {
			if e.Offset < 0 || e.Length <= 0 || e.Offset+e.Length > units {
				return "", nil, botapi.InvalidArgument("can't parse entities: entity is out of text bounds")
			}
		}
	default:
		text, entities, err = ParseText(raw, p.String(modeKey))
		if err != nil {
			if errors.Is(err, errParse) {
				return "", nil, botapi.InvalidArgument(err.Error())
			}
			return "", nil, botapi.InvalidArgument("unsupported parse_mode")
		}
	}
	entities = DetectEntities(text, entities)
	for i, e := range entities {
		if e.Type == botapi.EntityTextMention && e.User != nil {
			u, ok := s.Members.User(e.User.ID)
			if !ok {
				return "", nil, botapi.InvalidArgument("can't parse entities: user not found")
			}
			entities[i].User = &u
		}
	}
	if len(entities) == 0 {
		entities = nil
	}
	return text, entities, nil
}

// messageText formats the text of sendMessage and editMessageText.
func (s *Server) messageText(p botapi.Params) (string, []botapi.MessageEntity, error) {
	text, entities, err := s.formatText(p, "text", "parse_mode", "entities")
	if err != nil {
		return "", nil, err
	}
	if strings.TrimSpace(text) == "" {
		return "", nil, botapi.InvalidArgument("message text is empty")
	}
	if botapi.UTF16Len(text) > maxTextLength {
		return "", nil, botapi.InvalidArgument("message is too long")
	}
	return text, entities, nil
}

// caption formats an optional media caption.
func (s *Server) caption(p botapi.Params) (string, []botapi.MessageEntity, error) {
	text, entities, err := s.formatText(p, "caption", "parse_mode", "caption_entities")
	if err != nil {
		return "", nil, err
	}
	if botapi.UTF16Len(text) > maxCaptionLength {
		return "", nil, botapi.InvalidArgument("message caption is too long")
	}
	return text, entities, nil
}

// replyMarkup decodes reply_markup. Only inline keyboards are kept on the message.
func replyMarkup(p botapi.Params) (*botapi.ReplyMarkup, error) {
	var m botapi.ReplyMarkup
	found, err := p.Decode("reply_markup", &m)
	if err != nil {
		return nil, botapi.InvalidArgument("can't parse reply keyboard markup JSON object")
	}
	if !found {
		return nil, nil
	}
	for _, row := range m.InlineKeyboard {
		for _, btn := range row {
			if btn.Text == "" {
				return nil, botapi.InvalidArgument("text buttons are unallowed in the inline keyboard")
			}
			if len(btn.CallbackData) > 64 {
				return nil, botapi.InvalidArgument("BUTTON_DATA_INVALID")
			}
		}
	}
	return &m, nil
}

// inputFile resolves a media parameter: an upload, an attach:// reference to an
// upload, a URL or an existing file_id. New files are registered.
func (s *Server) inputFile(p botapi.Params, key, kind string) (store.StoredFile, error) {
	if f, ok := p.File(key); ok {
		return s.registerUpload(kind, f), nil
	}
	ref := strings.TrimSpace(p.String(key))
	switch {
	case ref == "":
		return store.StoredFile{}, botapi.InvalidArgument("there is no " + kind + " in the request")
	case strings.HasPrefix(ref, "attach://"):
		f, ok := p.File(strings.TrimPrefix(ref, "attach://"))
		if !ok {
			return store.StoredFile{}, botapi.InvalidArgument("wrong file identifier/HTTP URL specified")
		}
		return s.registerUpload(kind, f), nil
	case strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://"):
		return s.Files.Register(kind, path.Base(ref), "", 0), nil
	}
	f, ok := s.Files.Get(ref)
	if !ok {
		return store.StoredFile{}, botapi.InvalidArgument("wrong file identifier/HTTP URL specified")
	}
	return f, nil
}

// registerUpload stores an uploaded file. Decodable images get their dimensions,
// and photos the thumbnail ladder, each size registered as its own file.
func (s *Server) registerUpload(kind string, in botapi.InputFile) store.StoredFile {
	size := in.Size
	if size == 0 {
		size = int64(len(in.Data))
	}
	f := s.Files.Register(kind, in.Name, in.ContentType, size)
	info, ok := media.Probe(in.Data)
	if !ok {
		return f
	}
	f.Width, f.Height = info.Width, info.Height
	if kind == "photo" {
		sizes, err := media.Thumbnails(in.Data)
		if err != nil {
			s.logger.Warn("photo thumbnails failed", "file", in.Name, "error", err)
		}
		for i, sz := range sizes {
			ps := botapi.PhotoSize{Width: sz.Width, Height: sz.Height, FileSize: int64(len(sz.Data))}
			if i == len(sizes)-1 {
				ps.FileID, ps.FileUniqueID = f.FileID, f.FileUniqueID
			} else {
				thumb := s.Files.Register(kind, in.Name, "image/jpeg", ps.FileSize)
				ps.FileID, ps.FileUniqueID = thumb.FileID, thumb.FileUniqueID
			}
			f.Sizes = append(f.Sizes, ps)
		}
	}
	s.Files.Update(f)
	return f
}

func mediaOf(f store.StoredFile) *botapi.Media {
	return &botapi.Media{
		FileID:       f.FileID,
		FileUniqueID: f.FileUniqueID,
		FileName:     f.FileName,
		MimeType:     f.MimeType,
		FileSize:     f.FileSize,
		Width:        f.Width,
		Height:       f.Height,
	}
}

func photoOf(f store.StoredFile) []botapi.PhotoSize {
	if len(f.Sizes) > 0 {
		return append([]botapi.PhotoSize(nil), f.Sizes...)
	}
	return []botapi.PhotoSize{{
		FileID:       f.FileID,
		FileUniqueID: f.FileUniqueID,
		Width:        1280,
		Height:       720,
		FileSize:     f.FileSize,
	}}
}

// hasMedia reports whether m carries a captionable attachment.
func hasMedia(m botapi.Message) bool {
	return m.Photo != nil || m.Document != nil || m.Video != nil || m.Audio != nil ||
		m.Voice != nil || m.Animation != nil
}

func sameEntities(a, b []botapi.MessageEntity) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		x, y := a[i], b[i]
		if x.Type != y.Type || x.Offset != y.Offset || x.Length != y.Length || x.URL != y.URL || x.Language != y.Language {
			return false
		}
	}
	return true
}

func sameMarkup(a, b *botapi.InlineKeyboardMarkup) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if len(a.InlineKeyboard) != len(b.InlineKeyboard) {
		return false
	}
	for i := range a.InlineKeyboard {
		if len(a.InlineKeyboard[i]) != len(b.InlineKeyboard[i]) {
			return false
		}
		for j := range a.InlineKeyboard[i] {
			if a.InlineKeyboard[i][j] != b.InlineKeyboard[i][j] {
				return false
			}
		}
	}
	return true
}
