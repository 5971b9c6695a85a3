package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/Resinat/Relayview/internal/orchestrator"
	"github.com/Resinat/Relayview/internal/session"
	"github.com/Resinat/Relayview/internal/surface"
)

var sessionSortFields = []string{"created_at", "id", "video_ref", "endpoint_id", "status", "views", "watch_time"}

func compareSessions(field string) func(a, b session.Session) int {
	return func(a, b session.Session) int {
		switch field {
		case "id":
			return strings.Compare(a.ID, b.ID)
		case "video_ref":
			return strings.Compare(a.VideoRef, b.VideoRef)
		case "endpoint_id":
			return strings.Compare(a.EndpointID, b.EndpointID)
		case "status":
			return strings.Compare(string(a.Status), string(b.Status))
		case "views":
			return cmpInt64(a.Stats.Views, b.Stats.Views)
		case "watch_time":
			return cmpInt64(a.Stats.WatchTimeSec, b.Stats.WatchTimeSec)
		default:
			return a.CreatedAt.Compare(b.CreatedAt)
		}
	}
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

type createSessionRequest struct {
	VideoRef        string           `json:"video_ref"`
	Endpoint        string           `json:"endpoint"`
	ViewDurationSec int              `json:"view_duration_sec"`
	FrameID         string           `json:"frame_id"`
	Options         *session.Options `json:"options"`
}

// sessionResponse marks sessions served from the removal history.
type sessionResponse struct {
	session.Session
	Removed bool `json:"removed"`
}

type loadedSignalRequest struct {
	ElapsedMs int64 `json:"elapsed_ms"`
}

// HandleListSessions handles GET /api/v1/sessions.
func HandleListSessions(c Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pg, ok := parsePaginationOrWriteInvalid(w, r)
		if !ok {
			return
		}
		sorting, ok := parseSortingOrWriteInvalid(w, r, sessionSortFields, "created_at", "asc")
		if !ok {
			return
		}
		status := session.Status(r.URL.Query().Get("status"))
		switch status {
		case "", session.StatusLoading, session.StatusReady, session.StatusRetrying, session.StatusError:
		default:
			writeInvalidArgument(w, "status: must be one of loading, ready, retrying, error")
			return
		}

		all := c.Sessions()
		items := make([]session.Session, 0, len(all))
		for _, s := range all {
			if status == "" || s.Status == status {
				items = append(items, s)
			}
		}
		SortSlice(items, sorting, compareSessions(sorting.SortBy))
		WritePage(w, http.StatusOK, items, pg)
	}
}

// HandleCreateSession handles POST /api/v1/sessions.
func HandleCreateSession(c Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createSessionRequest
		if err := DecodeBody(r, &req); err != nil {
			writeDecodeBodyError(w, err)
			return
		}
		if req.ViewDurationSec < 0 {
			writeInvalidArgument(w, "view_duration_sec: must not be negative")
			return
		}
		h, err := c.CreateSession(orchestrator.Descriptor{
			VideoRef:        req.VideoRef,
			EndpointID:      req.Endpoint,
			ViewDurationSec: req.ViewDurationSec,
			Options:         req.Options,
			FrameID:         req.FrameID,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, h)
	}
}

// HandleClearSessions handles DELETE /api/v1/sessions.
func HandleClearSessions(c Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c.ClearAll()
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleGetSession handles GET /api/v1/sessions/{id}. Removed sessions are
// served from the history while they remain cached.
func HandleGetSession(c Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := requireUUIDPathParam(w, r, "id", "id")
		if !ok {
			return
		}
		if s, ok := c.Session(id); ok {
			WriteJSON(w, http.StatusOK, sessionResponse{Session: s})
			return
		}
		if s, ok := c.History(id); ok {
			WriteJSON(w, http.StatusOK, sessionResponse{Session: s, Removed: true})
			return
		}
		writeNotFound(w, "session not found")
	}
}

// HandleDeleteSession handles DELETE /api/v1/sessions/{id}.
func HandleDeleteSession(c Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := requireUUIDPathParam(w, r, "id", "id")
		if !ok {
			return
		}
		if !c.RemoveSession(id) {
			writeNotFound(w, "session not found")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleControlSession handles POST /api/v1/sessions/{id}/actions/{command}.
func HandleControlSession(c Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := requireUUIDPathParam(w, r, "id", "id")
		if !ok {
			return
		}
		cmd, err := surface.ParseCommand(PathParam(r, "command"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if _, ok := c.Session(id); !ok {
			writeNotFound(w, "session not found")
			return
		}
		if !c.ControlSession(id, cmd) {
			WriteError(w, http.StatusServiceUnavailable, CodeUnavailable, "command could not be dispatched")
			return
		}
		s, _ := c.Session(id)
		WriteJSON(w, http.StatusOK, sessionResponse{Session: s})
	}
}

// HandleControlAll handles POST /api/v1/sessions/actions/{command}.
func HandleControlAll(c Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cmd, err := surface.ParseCommand(PathParam(r, "command"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		n := c.ControlAll(cmd)
		WriteJSON(w, http.StatusOK, map[string]int{"dispatched": n})
	}
}

// HandleLoadedSignal handles POST /api/v1/sessions/{id}/signals/loaded.
// The body is optional: {"elapsed_ms": n}.
func HandleLoadedSignal(c Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := requireUUIDPathParam(w, r, "id", "id")
		if !ok {
			return
		}
		var req loadedSignalRequest
		if err := DecodeOptionalBody(r, &req); err != nil {
			writeDecodeBodyError(w, err)
			return
		}
		if req.ElapsedMs < 0 {
			writeInvalidArgument(w, "elapsed_ms: must not be negative")
			return
		}
		applySignal(w, c, id, func() bool {
			return c.Loaded(id, time.Duration(req.ElapsedMs)*time.Millisecond)
		})
	}
}

// HandleFailedSignal handles POST /api/v1/sessions/{id}/signals/failed.
func HandleFailedSignal(c Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := requireUUIDPathParam(w, r, "id", "id")
		if !ok {
			return
		}
		applySignal(w, c, id, func() bool { return c.Failed(id) })
	}
}

func applySignal(w http.ResponseWriter, c Controller, id string, signal func() bool) {
	if _, ok := c.Session(id); !ok {
		writeNotFound(w, "session not found")
		return
	}
	if !signal() {
		WriteError(w, http.StatusConflict, CodeConflict, "session is not loading")
		return
	}
	s, _ := c.Session(id)
	WriteJSON(w, http.StatusOK, sessionResponse{Session: s})
}
