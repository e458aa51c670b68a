package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisplayName(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		assert.Equal(t, "Unknown Device", DisplayName(""))
	})

	t.Run("desktop chrome", func(t *testing.T) {
		ua := "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
		name := DisplayName(ua)
		assert.Contains(t, name, "Chrome on ")
		assert.Contains(t, name, "Windows")
	})

	t.Run("mobile safari uses platform", func(t *testing.T) {
		ua := "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
		assert.Equal(t, "Safari on iPhone", DisplayName(ua))
	})

	t.Run("bot", func(t *testing.T) {
		ua := "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"
		assert.Equal(t, "Bot", DisplayName(ua))
	})

	t.Run("garbage", func(t *testing.T) {
		assert.NotEmpty(t, DisplayName("curl-ish"))
	})
}
