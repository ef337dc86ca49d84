package botsim

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/nextlevelbuilder/botsim/pkg/botapi"
)

// SecretTokenHeader carries the webhook secret on every delivery.
const SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// WebhookRequest builds the request the platform would POST to a bot's webhook
// for update. An empty path uses the path of the registered webhook, and an empty
// secretToken uses the registered secret; with neither, no header is set.
func (h *Harness) WebhookRequest(update botapi.Update, path, secretToken string) (*http.Request, error) {
	update = h.stamp(update)
	info, secret := h.server.WebhookInfo()
	target := "http://localhost/"
	if info.URL != "" {
		target = info.URL
	}
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("botsim: webhook url: %w", err)
	}
	if path != "" {
		u.Path = path
	}
	if secretToken == "" {
		secretToken = secret
	}
	body, err := json.Marshal(update)
	if err != nil {
		return nil, fmt.Errorf("botsim: encode update: %w", err)
	}
	req, err := http.NewRequest(http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if secretToken != "" {
		req.Header.Set(SecretTokenHeader, secretToken)
	}
	return req, nil
}
