package scenario

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/nextlevelbuilder/botsim/internal/jsbot"
)

// setup seeds the world and installs the scenario's bot.
func (st *run) setup(sc *Scenario, logger *slog.Logger) error {
	if err := st.seed(sc); err != nil {
		return err
	}
	if sc.Bot == nil {
		return nil
	}
	return st.installBot(sc, logger)
}

func (st *run) installBot(sc *Scenario, logger *slog.Logger) error {
	name, src := "bot.js", sc.Bot.Script
	if sc.Bot.File != "" {
		name = sc.Bot.File
		if !filepath.IsAbs(name) && sc.path != "" {
			name = filepath.Join(filepath.Dir(sc.path), name)
		}
		data, err := os.ReadFile(name)
		if err != nil {
			return fmt.Errorf("bot: %w", err)
		}
		src = string(data)
	}
	bot, err := jsbot.New(name, src, st.h, logger)
	if err != nil {
		return fmt.Errorf("bot: %w", err)
	}
	st.h.SetHandler(bot)

	for i, t := range sc.Bot.Timers {
		if !bot.HasFunction(t.Function) {
			return fmt.Errorf("bot.timers[%d]: script has no function %s", i, t.Function)
		}
		timerName := t.Name
		if timerName == "" {
			timerName = t.Function
		}
		fn := func(ctx context.Context) error { return bot.Invoke(ctx, t.Function) }
		switch {
		case t.Every != "":
			d, _ := time.ParseDuration(t.Every)
			_, err = st.h.Every(timerName, d, fn)
		case t.At != "":
			d, _ := time.ParseDuration(t.At)
			_, err = st.h.At(timerName, st.h.Now().Add(d), fn)
		default:
			_, err = st.h.Cron(timerName, t.Cron, fn)
		}
		if err != nil {
			return fmt.Errorf("bot.timers[%d]: %w", i, err)
		}
	}
	return nil
}
