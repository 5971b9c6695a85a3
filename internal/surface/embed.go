package surface

import (
	"net/url"
	"strconv"
	"strings"
)

// DefaultEmbedPrefix is used when an endpoint has no prefix of its own.
const DefaultEmbedPrefix = "https://www.youtube.com/embed/"

// EmbedParams are the player parameters encoded into the embed URL.
type EmbedParams struct {
	Autoplay   bool
	Muted      bool
	Controls   bool
	StartAtSec int
	Loop       bool
	// Origin is the page origin hosting the frames. Empty omits origin
	// and widget_referrer.
	Origin string
}

// BuildEmbedURL joins prefix and videoRef and appends the player query.
func BuildEmbedURL(prefix, videoRef string, p EmbedParams) string {
	if prefix == "" {
		prefix = DefaultEmbedPrefix
	}

	q := url.Values{}
	q.Set("enablejsapi", "1")
	if p.Origin != "" {
		q.Set("origin", p.Origin)
		q.Set("widget_referrer", strings.TrimSuffix(p.Origin, "/")+"/")
	}
	if p.Autoplay {
		q.Set("autoplay", "1")
	}
	if p.Muted {
		q.Set("mute", "1")
	}
	q.Set("controls", boolParam(p.Controls))
	if p.StartAtSec > 0 {
		q.Set("start", strconv.Itoa(p.StartAtSec))
	}
	if p.Loop {
		q.Set("loop", "1")
		q.Set("playlist", videoRef)
	}
	return prefix + url.PathEscape(videoRef) + "?" + q.Encode()
}

func boolParam(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
