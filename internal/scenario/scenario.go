// Package scenario runs YAML-described Bot API scenarios against a fresh
// simulated world and reports, per step, whether its expectations held.
package scenario

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nextlevelbuilder/botsim/pkg/botapi"
)

// Scenario is one YAML document.
type Scenario struct {
	Name   string    `yaml:"name"`
	Config yaml.Node `yaml:"config"` // overrides applied on top of the base config
	Bot    *Bot      `yaml:"bot"`
	Users  []User    `yaml:"users"`
	Chats  []Chat    `yaml:"chats"`
	Steps  []Step    `yaml:"steps"`

	path string
}

// Bot is a JavaScript bot driven by the scenario's user actions.
type Bot struct {
	Script string  `yaml:"script"`
	File   string  `yaml:"file"` // relative to the scenario file
	Timers []Timer `yaml:"timers"`
}

// Timer runs a global function of the bot script on simulated time. At is an
// offset from the moment the bot is installed.
type Timer struct {
	Name     string `yaml:"name"`
	Function string `yaml:"function"`
	Every    string `yaml:"every"`
	At       string `yaml:"at"`
	Cron     string `yaml:"cron"`
}

// User seeds a synthetic user. Key names the user in expressions (users.<key>).
type User struct {
	Key          string `yaml:"key"`
	ID           int64  `yaml:"id"`
	FirstName    string `yaml:"first_name"`
	LastName     string `yaml:"last_name"`
	Username     string `yaml:"username"`
	LanguageCode string `yaml:"language_code"`
	IsPremium    bool   `yaml:"is_premium"`
}

// Chat seeds a chat. Groups need an owner; private chats need a user.
type Chat struct {
	Key         string          `yaml:"key"`
	ID          int64           `yaml:"id"`
	Type        string          `yaml:"type"`
	Title       string          `yaml:"title"`
	Username    string          `yaml:"username"`
	Owner       int64           `yaml:"owner"`
	User        int64           `yaml:"user"`
	Forum       bool            `yaml:"forum"`
	SlowMode    int             `yaml:"slow_mode"`
	Permissions map[string]bool `yaml:"permissions"`
	Members     []Member        `yaml:"members"`
}

// Member places a user, or the bot, in a chat with a status.
type Member struct {
	User        int64           `yaml:"user"`
	Bot         bool            `yaml:"bot"`
	Status      string          `yaml:"status"`
	Rights      map[string]bool `yaml:"rights"`
	Permissions map[string]bool `yaml:"permissions"`
	Until       int64           `yaml:"until"`
}

// Step is an API call made as the bot, a user action or a clock advance.
type Step struct {
	Name        string         `yaml:"name"`
	Save        string         `yaml:"save"` // stores the result under steps.<save>
	Call        string         `yaml:"call"`
	Params      map[string]any `yaml:"params"`
	Expect      string         `yaml:"expect"`
	ExpectError string         `yaml:"expect_error"`
	Advance     string         `yaml:"advance"`

	// User actions. String fields accept ${expr} placeholders.
	Action  string `yaml:"action"`
	As      string `yaml:"as"`      // user key or id
	Chat    string `yaml:"chat"`    // chat key or id; defaults to the private chat of as
	Text    string `yaml:"text"`    // send text, command arguments or inline query
	Command string `yaml:"command"` // command without the slash
	Button  string `yaml:"button"`  // callback data or label
	Message string `yaml:"message"` // saved step holding the target message; defaults to the bot's last message
	Poll    string `yaml:"poll"`    // poll id; defaults to the poll of the target message
	Options []int  `yaml:"options"`
	Link    string `yaml:"link"`
}

// User actions.
const (
	ActionSend    = "send"
	ActionCommand = "command"
	ActionClick   = "click"
	ActionVote    = "vote"
	ActionJoin    = "join"
	ActionPay     = "pay"
	ActionInline  = "inline"
)

// Label names the step in reports.
func (s Step) Label(i int) string {
	switch {
	case s.Name != "":
		return s.Name
	case s.Call != "":
		return fmt.Sprintf("#%d %s", i+1, s.Call)
	case s.Action != "":
		return fmt.Sprintf("#%d %s as %s", i+1, s.Action, s.As)
	default:
		return fmt.Sprintf("#%d advance %s", i+1, s.Advance)
	}
}

var errInvalid = errors.New("invalid scenario")

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	sc.path = path
	if sc.Name == "" {
		sc.Name = path
	}
	return sc, nil
}

// Parse decodes and validates a scenario document.
func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Path returns the file the scenario was loaded from, if any.
func (sc *Scenario) Path() string { return sc.path }

// Validate checks the structure. Expressions are compiled by the runner.
func (sc *Scenario) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{errInvalid}, args...)...))
	}

	if b := sc.Bot; b != nil {
		if (b.Script == "") == (b.File == "") {
			fail("bot: needs exactly one of script or file")
		}
		for i, t := range b.Timers {
			if t.Function == "" {
				fail("bot.timers[%d]: needs function", i)
			}
			n := 0
			for _, v := range []string{t.Every, t.At, t.Cron} {
				if v != "" {
					n++
				}
			}
			if n != 1 {
				fail("bot.timers[%d]: needs exactly one of every, at or cron", i)
			}
			for _, d := range []string{t.Every, t.At} {
				if d == "" {
					continue
				}
				if v, err := time.ParseDuration(d); err != nil || v <= 0 {
					fail("bot.timers[%d]: %q is not a positive duration", i, d)
				}
			}
		}
	}

	keys := map[string]bool{}
	for i, u := range sc.Users {
		if u.Key != "" && keys["u:"+u.Key] {
			fail("users[%d]: duplicate key %q", i, u.Key)
		}
		keys["u:"+u.Key] = true
	}
	for i, c := range sc.Chats {
		if c.Key != "" && keys["c:"+c.Key] {
			fail("chats[%d]: duplicate key %q", i, c.Key)
		}
		keys["c:"+c.Key] = true
		switch c.Type {
		case botapi.ChatTypePrivate:
			if c.User == 0 {
				fail("chats[%d]: private chat needs user", i)
			}
		case botapi.ChatTypeGroup, botapi.ChatTypeSupergroup, botapi.ChatTypeChannel:
			if c.Owner == 0 {
				fail("chats[%d]: %s needs owner", i, c.Type)
			}
		default:
			fail("chats[%d]: unknown type %q", i, c.Type)
		}
		for j, m := range c.Members {
			if !validStatus(m.Status) {
				fail("chats[%d].members[%d]: unknown status %q", i, j, m.Status)
			}
			if m.User == 0 && !m.Bot {
				fail("chats[%d].members[%d]: needs user or bot", i, j)
			}
		}
	}
	for i, st := range sc.Steps {
		kinds := 0
		for _, v := range []string{st.Call, st.Advance, st.Action} {
			if v != "" {
				kinds++
			}
		}
		switch {
		case kinds > 1:
			fail("steps[%d]: call, advance and action are exclusive", i)
		case kinds == 0:
			fail("steps[%d]: needs call, advance or action", i)
		case st.Advance != "":
			if d, err := time.ParseDuration(st.Advance); err != nil || d < 0 {
				fail("steps[%d]: advance %q is not a non-negative duration", i, st.Advance)
			}
		case st.Action != "":
			validateAction(i, st, fail)
		}
		if st.ExpectError != "" && !validKind(botapi.ErrorKind(st.ExpectError)) {
			fail("steps[%d]: unknown error kind %q", i, st.ExpectError)
		}
	}
	return errors.Join(errs...)
}

func validateAction(i int, st Step, fail func(string, ...any)) {
	if st.As == "" {
		fail("steps[%d]: %s needs as", i, st.Action)
	}
	switch st.Action {
	case ActionSend:
		if st.Text == "" {
			fail("steps[%d]: send needs text", i)
		}
	case ActionCommand:
		if st.Command == "" {
			fail("steps[%d]: command needs command", i)
		}
	case ActionClick:
		if st.Button == "" {
			fail("steps[%d]: click needs button", i)
		}
	case ActionJoin:
		if st.Link == "" {
			fail("steps[%d]: join needs link", i)
		}
	case ActionVote, ActionPay, ActionInline:
	default:
		fail("steps[%d]: unknown action %q", i, st.Action)
	}
}

func validStatus(s string) bool {
	switch s {
	case "", botapi.StatusCreator, botapi.StatusAdministrator, botapi.StatusMember,
		botapi.StatusRestricted, botapi.StatusLeft, botapi.StatusKicked:
		return true
	}
	return false
}

func validKind(k botapi.ErrorKind) bool {
	switch k {
	case botapi.KindNotFound, botapi.KindPermissionDenied, botapi.KindInvalidArgument,
		botapi.KindAlreadyTerminal, botapi.KindRateLimited, botapi.KindUnsupported,
		botapi.KindConflict, botapi.KindMigrated, botapi.KindInternal:
		return true
	}
	return false
}
