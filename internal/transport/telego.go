package transport

import (
	"github.com/mymmrac/telego"
	ta "github.com/mymmrac/telego/telegoapi"
)

// TelegoCaller returns a telego API caller whose requests never leave the process.
func (t *Transport) TelegoCaller() ta.Caller {
	return &ta.HTTPCaller{Client: t.Client()}
}

// NewTelegoBot builds a telego bot that talks to the simulator.
func (t *Transport) NewTelegoBot(token string, opts ...telego.BotOption) (*telego.Bot, error) {
	base := []telego.BotOption{
		telego.WithAPIServer("https://" + t.host),
		telego.WithAPICaller(t.TelegoCaller()),
		telego.WithDiscardLogger(),
	}
	return telego.NewBot(token, append(base, opts...)...)
}
