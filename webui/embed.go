// Package webui embeds the page that hosts the player frames and relays
// load signals over the bridge websocket.
package webui

import (
	"embed"
	"io/fs"
)

//go:embed dist
var distFS embed.FS

// DistFS returns an fs.FS rooted at the embedded dist directory.
func DistFS() (fs.FS, error) {
	return fs.Sub(distFS, "dist")
}
