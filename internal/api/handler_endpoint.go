package api

import (
	"net/http"

	"github.com/Resinat/Relayview/internal/endpoint"
)

// HandleListEndpoints handles GET /api/v1/endpoints. With healthy=true only
// healthy endpoints are listed, best first.
func HandleListEndpoints(c Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		healthy, ok := parseBoolQueryOrWriteInvalid(w, r, "healthy")
		if !ok {
			return
		}
		if healthy == nil || !*healthy {
			WriteJSON(w, http.StatusOK, map[string]any{"items": c.Endpoints()})
			return
		}
		ids := c.HealthyEndpoints()
		items := make([]endpoint.Info, 0, len(ids))
		for _, id := range ids {
			if info, ok := c.Endpoint(id); ok {
				items = append(items, info)
			}
		}
		WriteJSON(w, http.StatusOK, map[string]any{"items": items})
	}
}

// HandleEndpointAnalytics handles GET /api/v1/endpoints/analytics.
func HandleEndpointAnalytics(c Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, c.ProxyAnalytics())
	}
}

// HandleGetEndpoint handles GET /api/v1/endpoints/{id}.
func HandleGetEndpoint(c Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info, ok := c.Endpoint(PathParam(r, "id"))
		if !ok {
			writeNotFound(w, "endpoint not found")
			return
		}
		WriteJSON(w, http.StatusOK, info)
	}
}

// HandleResetEndpoint handles POST /api/v1/endpoints/{id}/actions/reset.
func HandleResetEndpoint(c Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := PathParam(r, "id")
		info, ok := c.Endpoint(id)
		if !ok {
			writeNotFound(w, "endpoint not found")
			return
		}
		if info.Virtual || !c.ResetEndpoint(id) {
			writeInvalidArgument(w, "virtual endpoint has no health record")
			return
		}
		info, _ = c.Endpoint(id)
		WriteJSON(w, http.StatusOK, info)
	}
}

// HandleOptimizeEndpoints handles POST /api/v1/endpoints/actions/optimize.
func HandleOptimizeEndpoints(c Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c.OptimizeAll()
		WriteJSON(w, http.StatusOK, c.ProxyAnalytics())
	}
}
