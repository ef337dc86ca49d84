package botsim

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mymmrac/telego"

	"github.com/nextlevelbuilder/botsim/pkg/botapi"
)

// TelegoBot returns a telego bot wired to the simulator. The same bot is
// returned on every call.
func (h *Harness) TelegoBot() (*telego.Bot, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.bot != nil {
		return h.bot, nil
	}
	bot, err := h.transport.NewTelegoBot(h.cfg.Bot.Token)
	if err != nil {
		return nil, fmt.Errorf("botsim: telego bot: %w", err)
	}
	h.bot = bot
	return bot, nil
}

// TelegoUpdate converts an update to telego's representation.
func TelegoUpdate(update botapi.Update) (telego.Update, error) {
	var out telego.Update
	data, err := json.Marshal(update)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("botsim: telego update: %w", err)
	}
	return out, nil
}

// TelegoHandler adapts a telego-style handler. API calls made with the bot it is
// given inherit ctx, so they are attributed to the update's response.
func (h *Harness) TelegoHandler(fn func(ctx context.Context, bot *telego.Bot, update telego.Update) error) Handler {
	return HandlerFunc(func(ctx context.Context, update botapi.Update) error {
		bot, err := h.TelegoBot()
		if err != nil {
			return err
		}
		tu, err := TelegoUpdate(update)
		if err != nil {
			return err
		}
		return fn(ctx, bot, tu)
	})
}
