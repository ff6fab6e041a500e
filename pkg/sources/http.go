package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sudorandom/sim-gallery/pkg/gallery"
	"github.com/sudorandom/sim-gallery/pkg/utils"
)

// HTTP talks to the data service. Plot and step requests go to BaseURL; item
// metadata is read from ItemURL, which defaults to BaseURL.
type HTTP struct {
	BaseURL string
	ItemURL string
	Token   string
	Client  *http.Client
}

func NewHTTP(baseURL, itemURL, token string, timeout time.Duration) *HTTP {
	return &HTTP{
		BaseURL: strings.TrimRight(baseURL, "/"),
		ItemURL: strings.TrimRight(itemURL, "/"),
		Token:   token,
		Client:  &http.Client{Timeout: timeout},
	}
}

func (h *HTTP) header() http.Header {
	hdr := http.Header{}
	if h.Token != "" {
		hdr.Set(TokenHeader, h.Token)
	}
	return hdr
}

func (h *HTTP) itemBase() string {
	if h.ItemURL != "" {
		return h.ItemURL
	}
	return h.BaseURL
}

func (h *HTTP) Timesteps(ctx context.Context, itemID string) (gallery.Timesteps, error) {
	u := h.BaseURL + fmt.Sprintf(TimestepsPath, url.PathEscape(itemID))
	body, _, err := utils.FetchBytes(ctx, h.Client, u, h.header(), "[FETCH] timesteps "+itemID)
	if err != nil {
		return gallery.Timesteps{}, err
	}
	var ts gallery.Timesteps
	if err := json.Unmarshal(body, &ts); err != nil {
		return gallery.Timesteps{}, fmt.Errorf("decode timesteps for %s: %w", itemID, err)
	}
	return ts, nil
}

func (h *HTTP) Frame(ctx context.Context, itemID string, step int) (string, []byte, error) {
	u := h.BaseURL + fmt.Sprintf(PlotPath, url.PathEscape(itemID), step)
	body, contentType, err := utils.FetchBytes(ctx, h.Client, u, h.header(), fmt.Sprintf("[FETCH] %s step %d", itemID, step))
	if err != nil {
		return "", nil, err
	}
	return contentType, body, nil
}

func (h *HTTP) ItemName(ctx context.Context, itemID string) (string, error) {
	u := h.itemBase() + fmt.Sprintf(ItemPath, url.PathEscape(itemID))
	body, _, err := utils.FetchBytes(ctx, h.Client, u, h.header(), "[FETCH] item "+itemID)
	if err != nil {
		return "", err
	}
	var item struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(body, &item); err != nil {
		return "", fmt.Errorf("decode item %s: %w", itemID, err)
	}
	return item.Name, nil
}
