package dispatcher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"testing"

	"github.com/nextlevelbuilder/botsim/internal/response"
	"github.com/nextlevelbuilder/botsim/pkg/botapi"
)

func TestMethodRouter(t *testing.T) {
	r := NewMethodRouter(slog.New(slog.NewTextHandler(io.Discard, nil)))
	r.Register("getMe", func(context.Context, *Call) (any, error) { return "me", nil })

	res, err := r.Handle(context.Background(), &Call{Method: "GETME", Response: response.New("t")})
	if err != nil || res != "me" {
		t.Fatalf("Handle = %v, %v; want me", res, err)
	}
	_, err = r.Handle(context.Background(), &Call{Method: "nope", Response: response.New("t")})
	if !errors.Is(err, botapi.ErrUnsupported) {
		t.Errorf("error = %v, want unsupported", err)
	}
	if got := r.Methods(); !slices.Equal(got, []string{"getMe"}) {
		t.Errorf("Methods() = %v, want [getMe]", got)
	}
}

func TestServerRegistersEveryMethod(t *testing.T) {
	s := newTestServer(t)
	for _, m := range []string{
		botapi.MethodSendPhoto, botapi.MethodSendSticker, botapi.MethodSendPoll,
		botapi.MethodCreateForumTopic, botapi.MethodEditGeneralForumTopic,
		botapi.MethodRefundStarPayment, botapi.MethodSetPassportDataErrors,
	} {
		if !s.Supports(m) {
			t.Errorf("%s is not registered", m)
		}
	}
	if n := len(s.Methods()); n != 69 {
		t.Errorf("registered methods = %d, want 69", n)
	}
}
