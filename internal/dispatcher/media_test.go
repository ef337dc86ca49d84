package dispatcher

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"testing"

	"github.com/nextlevelbuilder/botsim/pkg/botapi"
)

func TestSendPhotoUpload(t *testing.T) {
	s := newTestServer(t)
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 1600, 900))); err != nil {
		t.Fatalf("encode: %v", err)
	}
	ctx := context.Background()
	msg := mustCall(t, s, ctx, botapi.MethodSendPhoto, botapi.Params{
		"chat_id": testUserID,
		"photo":   botapi.InputFile{Name: "cat.png", ContentType: "image/png", Data: buf.Bytes()},
	}).(botapi.Message)

	if len(msg.Photo) != 4 {
		t.Fatalf("photo sizes = %d, want 4", len(msg.Photo))
	}
	largest := msg.Photo[3]
	if largest.Width != 1280 || largest.Height != 720 {
		t.Errorf("largest = %dx%d, want 1280x720", largest.Width, largest.Height)
	}
	seen := map[string]bool{}
	for _, ps := range msg.Photo {
		if seen[ps.FileID] {
			t.Errorf("duplicate file id %s", ps.FileID)
		}
		seen[ps.FileID] = true
	}

	// Re-sending by file id keeps the sizes.
	again := mustCall(t, s, ctx, botapi.MethodSendPhoto, botapi.Params{
		"chat_id": testUserID,
		"photo":   largest.FileID,
	}).(botapi.Message)
	if len(again.Photo) != 4 {
		t.Errorf("resent photo sizes = %d, want 4", len(again.Photo))
	}
}

func TestSendPhotoWithoutData(t *testing.T) {
	s := newTestServer(t)
	msg := mustCall(t, s, context.Background(), botapi.MethodSendPhoto, botapi.Params{
		"chat_id": testUserID,
		"photo":   botapi.InputFile{Name: "cat.jpg", Size: 2048},
	}).(botapi.Message)
	if len(msg.Photo) != 1 || msg.Photo[0].FileSize != 2048 {
		t.Errorf("photo = %+v, want one placeholder size of 2048 bytes", msg.Photo)
	}
}
