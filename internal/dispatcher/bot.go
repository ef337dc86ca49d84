package dispatcher

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/nextlevelbuilder/botsim/pkg/botapi"
)

var (
	commandPattern = regexp.MustCompile(`^[a-z0-9_]{1,32}$`)
	secretPattern  = regexp.MustCompile(`^[A-Za-z0-9_-]{1,256}$`)
)

const (
	maxCommands          = 100
	defaultScopeKey      = "default|"
	defaultMaxConnection = 40
)

func (s *Server) handleGetMe(context.Context, *Call) (any, error) {
	return s.cfg.Bot, nil
}

// commandScope is the scope object of the command methods.
type commandScope struct {
	Type   string `json:"type"`
	ChatID any    `json:"chat_id,omitempty"`
	UserID int64  `json:"user_id,omitempty"`
}

// scopeKey identifies a (scope, language) pair of command lists.
func scopeKey(p botapi.Params) (string, error) {
	var sc commandScope
	if _, err := p.Decode("scope", &sc); err != nil {
		return "", botapi.InvalidArgument("can't parse BotCommandScope JSON object")
	}
	switch sc.Type {
	case "", "default":
		sc.Type = "default"
	case "all_private_chats", "all_group_chats", "all_chat_administrators":
	case "chat", "chat_administrators", "chat_member":
		if sc.ChatID == nil {
			return "", botapi.InvalidArgument("chat_id is empty")
		}
	default:
		return "", botapi.InvalidArgument("wrong scope type specified")
	}
	key := sc.Type
	if sc.ChatID != nil {
		key += fmt.Sprintf(":%v", sc.ChatID)
	}
	if sc.UserID != 0 {
		key += fmt.Sprintf(":%d", sc.UserID)
	}
	return key + "|" + p.String("language_code"), nil
}

func (s *Server) handleSetMyCommands(_ context.Context, call *Call) (any, error) {
	p := call.Params
	var cmds []botapi.BotCommand
	if _, err := p.Decode("commands", &cmds); err != nil {
		return nil, botapi.InvalidArgument("can't parse commands JSON object")
	}
	if len(cmds) > maxCommands {
		return nil, botapi.InvalidArgument("too many commands specified")
	}
	for _, c := range cmds {
		if !commandPattern.MatchString(c.Command) {
			return nil, botapi.InvalidArgument("BOT_COMMAND_INVALID")
		}
		if n := utf8.RuneCountInString(c.Description); n == 0 || n > 256 {
			return nil, botapi.InvalidArgument("command description must be 1-256 characters")
		}
	}
	key, err := scopeKey(p)
	if err != nil {
		return nil, err
	}
	s.stateMu.Lock()
	s.commands[key] = slices.Clone(cmds)
	s.stateMu.Unlock()
	return true, nil
}

func (s *Server) handleGetMyCommands(_ context.Context, call *Call) (any, error) {
	key, err := scopeKey(call.Params)
	if err != nil {
		return nil, err
	}
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	out := slices.Clone(s.commands[key])
	if out == nil {
		out = []botapi.BotCommand{}
	}
	return out, nil
}

func (s *Server) handleDeleteMyCommands(_ context.Context, call *Call) (any, error) {
	key, err := scopeKey(call.Params)
	if err != nil {
		return nil, err
	}
	s.stateMu.Lock()
	delete(s.commands, key)
	s.stateMu.Unlock()
	return true, nil
}

func (s *Server) handleSetWebhook(_ context.Context, call *Call) (any, error) {
	p := call.Params
	url := strings.TrimSpace(p.String("url"))
	if url == "" {
		s.stateMu.Lock()
		s.webhook = webhook{}
		s.stateMu.Unlock()
		return true, nil
	}
	if !strings.HasPrefix(url, "https://") {
		return nil, botapi.InvalidArgument("bad webhook: An HTTPS URL must be provided for webhook")
	}
	secret := p.String("secret_token")
	if secret != "" && !secretPattern.MatchString(secret) {
		return nil, botapi.InvalidArgument("bad webhook: secret token contains unallowed characters")
	}
	maxConn := p.IntOr("max_connections", defaultMaxConnection)
	if maxConn < 1 || maxConn > 100 {
		return nil, botapi.InvalidArgument("bad webhook: max_connections must be 1-100")
	}
	var allowed []string
	if _, err := p.Decode("allowed_updates", &allowed); err != nil {
		return nil, botapi.InvalidArgument("can't parse allowed_updates JSON object")
	}
	_, hasCert := p.File("certificate")
	s.stateMu.Lock()
	s.webhook = webhook{
		info: botapi.WebhookInfo{
			URL:            url,
			HasCustomCert:  hasCert,
			MaxConnections: maxConn,
			AllowedUpdates: allowed,
		},
		secret: secret,
	}
	s.stateMu.Unlock()
	s.logger.Debug("webhook set", "url", url)
	return true, nil
}

func (s *Server) handleDeleteWebhook(context.Context, *Call) (any, error) {
	s.stateMu.Lock()
	s.webhook = webhook{}
	s.stateMu.Unlock()
	return true, nil
}

func (s *Server) handleGetWebhookInfo(context.Context, *Call) (any, error) {
	info, _ := s.WebhookInfo()
	return info, nil
}
