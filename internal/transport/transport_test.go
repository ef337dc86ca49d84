package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/nextlevelbuilder/botsim/internal/dispatcher"
	"github.com/nextlevelbuilder/botsim/internal/response"
	"github.com/nextlevelbuilder/botsim/internal/store"
	"github.com/nextlevelbuilder/botsim/pkg/botapi"
)

var testToken = "100:" + strings.Repeat("a", 35)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newServer(t *testing.T) *dispatcher.Server {
	t.Helper()
	s, err := dispatcher.New(dispatcher.Config{
		Bot:        botapi.User{ID: 100, FirstName: "Test", Username: "test_bot"},
		Token:      testToken,
		RateLimits: store.DefaultRateLimits(),
	}, dispatcher.WithLogger(discard()))
	if err != nil {
		t.Fatalf("dispatcher.New: %v", err)
	}
	s.Members.PutUser(botapi.User{ID: 42, FirstName: "Alice"})
	return s
}

func post(t *testing.T, c *http.Client, ctx context.Context, method string, body any) (int, botapi.Response) {
	t.Helper()
	data, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		"https://"+DefaultAPIHost+"/bot"+testToken+"/"+method, bytes.NewReader(data))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer resp.Body.Close()
	var env botapi.Response
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return resp.StatusCode, env
}

func TestSplitPath(t *testing.T) {
	tests := []struct {
		path   string
		token  string
		method string
		ok     bool
	}{
		{"/bot1:abc/getMe", "1:abc", "getMe", true},
		{"/bot1:abc/", "", "", false},
		{"/bot/getMe", "", "", false},
		{"/file/bot1:abc/photos/1.jpg", "", "", false},
		{"/bot1:abc/a/b", "", "", false},
	}
	for _, tt := range tests {
		token, method, ok := splitPath(tt.path)
		if token != tt.token || method != tt.method || ok != tt.ok {
			t.Errorf("splitPath(%q) = %q, %q, %v; want %q, %q, %v",
				tt.path, token, method, ok, tt.token, tt.method, tt.ok)
		}
	}
}

func TestParseRequest(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/bot1:a/sendMessage?chat_id=1",
			strings.NewReader(`{"chat_id":42,"text":"hi"}`))
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
		p, err := parseRequest(req)
		if err != nil {
			t.Fatalf("parseRequest: %v", err)
		}
		if id, _ := p.Int64("chat_id"); id != 42 {
			t.Errorf("chat_id = %d, want 42 (body wins over query)", id)
		}
		if p.String("text") != "hi" {
			t.Errorf("text = %q, want hi", p.String("text"))
		}
	})

	t.Run("form", func(t *testing.T) {
		form := url.Values{"chat_id": {"42"}, "reply_markup": {`{"inline_keyboard":[]}`}}
		req := httptest.NewRequest(http.MethodPost, "/bot1:a/sendMessage", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		p, err := parseRequest(req)
		if err != nil {
			t.Fatalf("parseRequest: %v", err)
		}
		if p["chat_id"] != "42" {
			t.Errorf("chat_id = %#v, want string 42", p["chat_id"])
		}
		var markup botapi.InlineKeyboardMarkup
		if ok, err := p.Decode("reply_markup", &markup); !ok || err != nil {
			t.Errorf("reply_markup decode = %v, %v", ok, err)
		}
	})

	t.Run("multipart", func(t *testing.T) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		_ = mw.WriteField("chat_id", "42")
		fw, _ := mw.CreateFormFile("photo", "cat.jpg")
		_, _ = fw.Write([]byte("jpegbytes"))
		_ = mw.Close()
		req := httptest.NewRequest(http.MethodPost, "/bot1:a/sendPhoto", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		p, err := parseRequest(req)
		if err != nil {
			t.Fatalf("parseRequest: %v", err)
		}
		f, ok := p.File("photo")
		if !ok {
			t.Fatalf("photo = %#v, want InputFile", p["photo"])
		}
		if f.Name != "cat.jpg" || f.Size != int64(len("jpegbytes")) {
			t.Errorf("file = %+v, want cat.jpg of 9 bytes", f)
		}
		if p.String("chat_id") != "42" {
			t.Errorf("chat_id = %q, want 42", p.String("chat_id"))
		}
	})

	t.Run("query only", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/bot1:a/getChat?chat_id=@group", nil)
		p, err := parseRequest(req)
		if err != nil {
			t.Fatalf("parseRequest: %v", err)
		}
		if p.String("chat_id") != "@group" {
			t.Errorf("chat_id = %q, want @group", p.String("chat_id"))
		}
	})

	t.Run("malformed json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/bot1:a/getMe", strings.NewReader(`{`))
		req.Header.Set("Content-Type", "application/json")
		if _, err := parseRequest(req); err == nil {
			t.Error("malformed body accepted")
		}
	})
}

func TestRoundTripEnvelopes(t *testing.T) {
	s := newServer(t)
	c := New(s, WithLogger(discard())).Client()
	ctx := context.Background()

	tests := []struct {
		name   string
		method string
		body   any
		status int
		ok     bool
	}{
		{"success", botapi.MethodGetMe, nil, http.StatusOK, true},
		{"send", botapi.MethodSendMessage, map[string]any{"chat_id": 42, "text": "hi"}, http.StatusOK, true},
		{"not found", botapi.MethodSendMessage, map[string]any{"chat_id": 999, "text": "hi"}, http.StatusBadRequest, false},
		{"unsupported", "launchRocket", nil, http.StatusNotFound, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := post(t, c, ctx, tt.method, tt.body)
			if status != tt.status || env.OK != tt.ok {
				t.Fatalf("status = %d ok = %v, want %d ok = %v (%s)", status, env.OK, tt.status, tt.ok, env.Description)
			}
			if !env.OK && env.ErrorCode != status {
				t.Errorf("error_code = %d, want %d", env.ErrorCode, status)
			}
		})
	}
}

func TestUnauthorizedToken(t *testing.T) {
	s := newServer(t)
	c := New(s).Client()
	resp, err := c.Post("https://api.telegram.org/bot1:wrong/getMe", "application/json", nil)
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestRateLimitParameters(t *testing.T) {
	s := newServer(t)
	s.Chats.Create(botapi.Chat{ID: -1001, Type: botapi.ChatTypeSupergroup, Title: "G"})
	s.Members.SetOwner(-1001, 42)
	s.Members.SetMember(-1001, 100)
	if _, err := s.Chats.SetSlowMode(-1001, 30); err != nil {
		t.Fatalf("SetSlowMode: %v", err)
	}
	c := New(s, WithLogger(discard())).Client()
	ctx := context.Background()
	body := map[string]any{"chat_id": -1001, "text": "x"}
	if status, env := post(t, c, ctx, botapi.MethodSendMessage, body); status != http.StatusOK {
		t.Fatalf("first send status = %d (%s)", status, env.Description)
	}
	status, env := post(t, c, ctx, botapi.MethodSendMessage, body)
	if status != http.StatusTooManyRequests {
		t.Fatalf("second send status = %d, want 429", status)
	}
	if env.Parameters == nil || env.Parameters.RetryAfter != 30 {
		t.Errorf("parameters = %+v, want retry_after 30", env.Parameters)
	}
}

func TestRequestContextAttribution(t *testing.T) {
	s := newServer(t)
	c := New(s).Client()
	resp := response.New("update 1")
	ctx := response.WithResponse(context.Background(), resp)
	post(t, c, ctx, botapi.MethodSendMessage, map[string]any{"chat_id": 42, "text": "attributed"})
	if got := resp.Text(); got != "attributed" {
		t.Errorf("response text = %q, want attributed", got)
	}
	if n := len(s.Unattributed().Calls()); n != 0 {
		t.Errorf("unattributed calls = %d, want 0", n)
	}
}

func TestPassThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "real")
	}))
	defer srv.Close()

	c := New(newServer(t)).Client()
	resp, err := c.Get(srv.URL + "/bot" + testToken + "/getMe")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if string(data) != "real" {
		t.Errorf("body = %q, want the upstream reply", data)
	}
}

func TestInstallIsIdempotent(t *testing.T) {
	tr := New(newServer(t))
	c := &http.Client{}

	undo1 := tr.Install(c)
	undo2 := tr.Install(c)
	if c.Transport != tr {
		t.Fatalf("transport not installed")
	}
	undo1()
	if c.Transport != nil {
		t.Errorf("transport = %v, want original nil", c.Transport)
	}
	undo1()
	undo2()
	tr.Uninstall(c)
	if c.Transport != nil {
		t.Errorf("repeated uninstall changed transport to %v", c.Transport)
	}

	custom := &http.Transport{}
	c2 := &http.Client{Transport: custom}
	undo := tr.Install(c2)
	undo()
	if c2.Transport != custom {
		t.Errorf("custom transport not restored")
	}
}

func TestHandler(t *testing.T) {
	srv := httptest.NewServer(New(newServer(t)))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/bot"+testToken+"/getMe", "application/json", nil)
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	defer resp.Body.Close()
	var env botapi.Response
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	var me botapi.User
	if err := json.Unmarshal(env.Result, &me); err != nil || me.ID != 100 || !me.IsBot {
		t.Errorf("getMe = %+v, %v; want bot 100", me, err)
	}
}

func TestTelegoBot(t *testing.T) {
	s := newServer(t)
	bot, err := New(s).NewTelegoBot(testToken)
	if err != nil {
		t.Fatalf("NewTelegoBot: %v", err)
	}
	ctx := context.Background()

	me, err := bot.GetMe(ctx)
	if err != nil {
		t.Fatalf("GetMe: %v", err)
	}
	if me.ID != 100 || me.Username != "test_bot" {
		t.Errorf("me = %+v, want bot 100", me)
	}

	msg, err := bot.SendMessage(ctx, tu.Message(tu.ID(42), "hello from telego"))
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if msg.Text != "hello from telego" || msg.Chat.ID != 42 {
		t.Errorf("message = %q in %d, want the sent text in chat 42", msg.Text, msg.Chat.ID)
	}

	if _, err := bot.SendMessage(ctx, tu.Message(tu.ID(999), "nobody")); err == nil {
		t.Error("send to unknown chat succeeded")
	}
}
