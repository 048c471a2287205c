package pages

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
)

// FlashCookie carries messages across a redirect.
const FlashCookie = "bread_flash"

const flashKey = "pages.flashes"

// Flash levels.
const (
	FlashSuccess = "success"
	FlashError   = "error"
	FlashInfo    = "info"
)

// Flash is a one-time message shown on the next rendered page.
type Flash struct {
	Level   string `json:"l"`
	Message string `json:"m"`
}

// AddFlash queues a message for the next page, in this response or after a redirect.
func AddFlash(c *gin.Context, level, message string) {
	pending := append(pendingFlashes(c), Flash{Level: level, Message: message})
	c.Set(flashKey, pending)

	raw, err := json.Marshal(pending)
	if err != nil {
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(FlashCookie, base64.RawURLEncoding.EncodeToString(raw), 0, "/", "", false, true)
}

// TakeFlashes returns the queued messages and clears the cookie.
func TakeFlashes(c *gin.Context) []Flash {
	out := pendingFlashes(c)
	c.Set(flashKey, []Flash{})
	if len(out) > 0 {
		c.SetCookie(FlashCookie, "", -1, "/", "", false, true)
	}
	return out
}

// pendingFlashes returns the messages of this request: those set earlier in
// the request, or else the ones that arrived with the cookie.
func pendingFlashes(c *gin.Context) []Flash {
	if v, ok := c.Get(flashKey); ok {
		if flashes, ok := v.([]Flash); ok {
			return flashes
		}
	}
	var out []Flash
	if v, err := c.Cookie(FlashCookie); err == nil && v != "" {
		if raw, err := base64.RawURLEncoding.DecodeString(v); err == nil {
			_ = json.Unmarshal(raw, &out)
		}
	}
	return out
}
