package api

import (
	"net/http"

	"github.com/Resinat/Relayview/internal/buildinfo"
)

// HandleSystemInfo returns a handler for GET /api/v1/system/info.
func HandleSystemInfo(info buildinfo.Info) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, info)
	}
}
