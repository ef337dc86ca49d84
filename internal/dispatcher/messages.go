package dispatcher

import (
	"context"
	"math/rand/v2"

	"github.com/nextlevelbuilder/botsim/internal/store"
	"github.com/nextlevelbuilder/botsim/pkg/botapi"
)

// outgoing is a message being assembled by a send method.
type outgoing struct {
	gate sendGate
	msg  botapi.Message
}

// prepareSend runs the checks shared by every send method and returns the
// message skeleton: author, thread, reply and inline keyboard.
func (s *Server) prepareSend(p botapi.Params, kind sendKind) (*outgoing, error) {
	c, err := s.resolveChat(p)
	if err != nil {
		return nil, err
	}
	threadID := p.IntOr("message_thread_id", 0)
	gate, err := s.canSend(c, threadID, kind)
	if err != nil {
		return nil, err
	}
	out := &outgoing{gate: gate}
	if c.Type == botapi.ChatTypeChannel {
		sender := c.Chat
		out.msg.SenderChat = &sender
	} else {
		bot := s.cfg.Bot
		out.msg.From = &bot
	}
	if c.IsForum && threadID != 0 {
		out.msg.MessageThreadID = threadID
		out.msg.IsTopicMessage = true
	}
	if err := s.attachReply(c, p, &out.msg); err != nil {
		return nil, err
	}
	markup, err := replyMarkup(p)
	if err != nil {
		return nil, err
	}
	out.msg.ReplyMarkup = markup.Inline()
	return out, nil
}

func (s *Server) attachReply(c store.Chat, p botapi.Params, msg *botapi.Message) error {
	replyTo, _ := p.Int("reply_to_message_id")
	allowMissing := p.Bool("allow_sending_without_reply")
	var rp struct {
		MessageID                int  `json:"message_id"`
		AllowSendingWithoutReply bool `json:"allow_sending_without_reply"`
	}
	if found, err := p.Decode("reply_parameters", &rp); err != nil {
		return botapi.InvalidArgument("can't parse reply parameters JSON object")
	} else if found {
		replyTo = rp.MessageID
		allowMissing = allowMissing || rp.AllowSendingWithoutReply
	}
	if replyTo == 0 {
		return nil
	}
	orig, ok := s.Chats.Message(c.ID, replyTo)
	if !ok {
		if allowMissing {
			return nil
		}
		return botapi.NotFound("message to be replied not found")
	}
	orig.ReplyToMessage = nil
	msg.ReplyToMessage = &orig
	return nil
}

// commit throttles, stores and records the message.
func (s *Server) commit(call *Call, out *outgoing) (botapi.Message, error) {
	if err := s.throttle(out.gate); err != nil {
		return botapi.Message{}, err
	}
	stored, err := s.Chats.AddMessage(out.gate.chat.ID, out.msg)
	if err != nil {
		return botapi.Message{}, mapStoreErr(err)
	}
	call.Response.AddSent(stored)
	return stored, nil
}

func (s *Server) handleSendMessage(_ context.Context, call *Call) (any, error) {
	out, err := s.prepareSend(call.Params, sendText)
	if err != nil {
		return nil, err
	}
	text, entities, err := s.messageText(call.Params)
	if err != nil {
		return nil, err
	}
	out.msg.Text, out.msg.Entities = text, entities
	return s.commit(call, out)
}

// mediaMethod describes one send method carrying a file.
type mediaMethod struct {
	param string
	kind  sendKind
	set   func(m *botapi.Message, f store.StoredFile)
}

var mediaMethods = map[string]mediaMethod{
	botapi.MethodSendPhoto: {"photo", sendPhotos, func(m *botapi.Message, f store.StoredFile) { m.Photo = photoOf(f) }},
	botapi.MethodSendDocument: {"document", sendDocuments, func(m *botapi.Message, f store.StoredFile) {
		m.Document = mediaOf(f)
	}},
	botapi.MethodSendVideo: {"video", sendVideos, func(m *botapi.Message, f store.StoredFile) {
		m.Video = mediaOf(f)
		if m.Video.Width == 0 {
			m.Video.Width, m.Video.Height = 1280, 720
		}
	}},
	botapi.MethodSendAudio: {"audio", sendAudios, func(m *botapi.Message, f store.StoredFile) { m.Audio = mediaOf(f) }},
	botapi.MethodSendVoice: {"voice", sendVoices, func(m *botapi.Message, f store.StoredFile) { m.Voice = mediaOf(f) }},
	botapi.MethodSendAnimation: {"animation", sendOther, func(m *botapi.Message, f store.StoredFile) {
		m.Animation = mediaOf(f)
	}},
	botapi.MethodSendSticker: {"sticker", sendOther, func(m *botapi.Message, f store.StoredFile) {
		m.Sticker = mediaOf(f)
	}},
}

func (s *Server) sendMedia(method string) MethodHandler {
	mm := mediaMethods[method]
	return func(_ context.Context, call *Call) (any, error) {
		p := call.Params
		out, err := s.prepareSend(p, mm.kind)
		if err != nil {
			return nil, err
		}
		if method != botapi.MethodSendSticker {
			if out.msg.Caption, out.msg.CaptionEntities, err = s.caption(p); err != nil {
				return nil, err
			}
		}
		f, err := s.inputFile(p, mm.param, mm.param)
		if err != nil {
			return nil, err
		}
		mm.set(&out.msg, f)
		if method == botapi.MethodSendSticker {
			out.msg.Sticker.Emoji = p.String("emoji")
		}
		if d, ok := p.Int("duration"); ok && out.msg.Video != nil {
			out.msg.Video.Duration = d
		}
		return s.commit(call, out)
	}
}

func (s *Server) handleSendLocation(_ context.Context, call *Call) (any, error) {
	p := call.Params
	out, err := s.prepareSend(p, sendText)
	if err != nil {
		return nil, err
	}
	lat, okLat := p.Float("latitude")
	lon, okLon := p.Float("longitude")
	if !okLat || !okLon || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil, botapi.InvalidArgument("wrong latitude or longitude specified")
	}
	out.msg.Location = &botapi.Location{Latitude: lat, Longitude: lon}
	return s.commit(call, out)
}

func (s *Server) handleSendContact(_ context.Context, call *Call) (any, error) {
	p := call.Params
	out, err := s.prepareSend(p, sendText)
	if err != nil {
		return nil, err
	}
	phone, first := p.String("phone_number"), p.String("first_name")
	if phone == "" || first == "" {
		return nil, botapi.InvalidArgument("phone number and first name must be non-empty")
	}
	uid, _ := p.Int64("user_id")
	out.msg.Contact = &botapi.Contact{PhoneNumber: phone, FirstName: first, LastName: p.String("last_name"), UserID: uid}
	return s.commit(call, out)
}

// diceFaces is the number of values each dice emoji can roll.
var diceFaces = map[string]int{"🎲": 6, "🎯": 6, "🎳": 6, "🏀": 5, "⚽": 5, "🎰": 64}

func (s *Server) handleSendDice(_ context.Context, call *Call) (any, error) {
	p := call.Params
	out, err := s.prepareSend(p, sendOther)
	if err != nil {
		return nil, err
	}
	emoji := p.String("emoji")
	if emoji == "" {
		emoji = "🎲"
	}
	faces, ok := diceFaces[emoji]
	if !ok {
		return nil, botapi.InvalidArgument("wrong emoji specified")
	}
	out.msg.Dice = &botapi.Dice{Emoji: emoji, Value: rand.IntN(faces) + 1}
	return s.commit(call, out)
}

var chatActions = map[string]bool{
	"typing": true, "upload_photo": true, "record_video": true, "upload_video": true,
	"record_voice": true, "upload_voice": true, "upload_document": true, "choose_sticker": true,
	"find_location": true, "record_video_note": true, "upload_video_note": true,
}

func (s *Server) handleSendChatAction(_ context.Context, call *Call) (any, error) {
	p := call.Params
	c, err := s.resolveChat(p)
	if err != nil {
		return nil, err
	}
	action := p.String("action")
	if !chatActions[action] {
		return nil, botapi.InvalidArgument("wrong parameter action in request")
	}
	if _, err := s.canSend(c, p.IntOr("message_thread_id", 0), sendText); err != nil {
		return nil, err
	}
	call.Response.AddChatAction(c.ID, action)
	return true, nil
}

// copyContent carries the content of src onto dst, leaving author and ids alone.
func copyContent(dst *botapi.Message, src botapi.Message) {
	dst.Text, dst.Entities = src.Text, src.Entities
	dst.Caption, dst.CaptionEntities = src.Caption, src.CaptionEntities
	dst.Photo, dst.Document, dst.Video = src.Photo, src.Document, src.Video
	dst.Audio, dst.Voice, dst.Animation, dst.Sticker = src.Audio, src.Voice, src.Animation, src.Sticker
	dst.Contact, dst.Location, dst.Dice = src.Contact, src.Location, src.Dice
}

// sourceMessage resolves from_chat_id and message_id of forward/copy.
func (s *Server) sourceMessage(p botapi.Params, missing string) (store.Chat, botapi.Message, error) {
	from, err := s.resolveChatKey(p, "from_chat_id")
	if err != nil {
		return store.Chat{}, botapi.Message{}, err
	}
	m, err := s.resolveMessage(from, p, "message_id", missing)
	if err != nil {
		return store.Chat{}, botapi.Message{}, err
	}
	if m.Poll != nil || m.Invoice != nil {
		return store.Chat{}, botapi.Message{}, botapi.InvalidArgument("message can't be copied")
	}
	return from, m, nil
}

func (s *Server) handleForwardMessage(_ context.Context, call *Call) (any, error) {
	p := call.Params
	from, src, err := s.sourceMessage(p, "message to forward not found")
	if err != nil {
		return nil, err
	}
	out, err := s.prepareSend(p, sendText)
	if err != nil {
		return nil, err
	}
	copyContent(&out.msg, src)
	origin := &botapi.MessageOrigin{Type: "user", Date: src.Date, SenderUser: src.From}
	if src.SenderChat != nil {
		chat := from.Chat
		origin = &botapi.MessageOrigin{Type: "chat", Date: src.Date, Chat: &chat}
		if from.Type == botapi.ChatTypeChannel {
			origin.Type, origin.MessageID = "channel", src.MessageID
		}
	}
	out.msg.ForwardOrigin = origin
	return s.commit(call, out)
}

// MessageID is the result of copyMessage.
type MessageID struct {
	MessageID int `json:"message_id"`
}

func (s *Server) handleCopyMessage(_ context.Context, call *Call) (any, error) {
	p := call.Params
	_, src, err := s.sourceMessage(p, "message to copy not found")
	if err != nil {
		return nil, err
	}
	out, err := s.prepareSend(p, sendText)
	if err != nil {
		return nil, err
	}
	copyContent(&out.msg, src)
	if p.Has("caption") && hasMedia(src) {
		if out.msg.Caption, out.msg.CaptionEntities, err = s.caption(p); err != nil {
			return nil, err
		}
	}
	msg, err := s.commit(call, out)
	if err != nil {
		return nil, err
	}
	return MessageID{MessageID: msg.MessageID}, nil
}

func (s *Server) handleGetFile(_ context.Context, call *Call) (any, error) {
	id := call.Params.String("file_id")
	if id == "" {
		return nil, botapi.InvalidArgument("file_id is empty")
	}
	f, ok := s.Files.Get(id)
	if !ok {
		return nil, mapStoreErr(store.ErrFileNotFound)
	}
	return f.File, nil
}
