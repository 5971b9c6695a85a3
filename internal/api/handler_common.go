package api

import (
	"fmt"
	"net/http"
	"time"
)

func parsePaginationOrWriteInvalid(w http.ResponseWriter, r *http.Request) (Pagination, bool) {
	pg, err := ParsePagination(r)
	if err != nil {
		writeInvalidArgument(w, err.Error())
		return Pagination{}, false
	}
	return pg, true
}

func parseSortingOrWriteInvalid(
	w http.ResponseWriter,
	r *http.Request,
	allowed []string,
	defaultField string,
	defaultOrder string,
) (Sorting, bool) {
	s, err := ParseSorting(r, allowed, defaultField, defaultOrder)
	if err != nil {
		writeInvalidArgument(w, err.Error())
		return Sorting{}, false
	}
	return s, true
}

func parseBoolQueryOrWriteInvalid(w http.ResponseWriter, r *http.Request, key string) (*bool, bool) {
	v, err := ParseBoolQuery(r, key)
	if err != nil {
		writeInvalidArgument(w, err.Error())
		return nil, false
	}
	return v, true
}

func requireUUIDPathParam(
	w http.ResponseWriter,
	r *http.Request,
	paramName string,
	fieldName string,
) (string, bool) {
	value := PathParam(r, paramName)
	if !ValidateUUID(value) {
		writeInvalidArgument(w, fmt.Sprintf("%s: must be a valid UUID", fieldName))
		return "", false
	}
	return value, true
}

// parseTimeRange extracts from/to from query params (RFC3339Nano).
// Defaults: to=now, from=to-window.
func parseTimeRange(w http.ResponseWriter, r *http.Request, window time.Duration) (from, to time.Time, ok bool) {
	q := r.URL.Query()
	to = time.Now()

	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			writeInvalidArgument(w, "invalid 'to': expected RFC3339Nano")
			return time.Time{}, time.Time{}, false
		}
		to = t
	}
	from = to.Add(-window)
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			writeInvalidArgument(w, "invalid 'from': expected RFC3339Nano")
			return time.Time{}, time.Time{}, false
		}
		from = t
	}

	if !from.Before(to) {
		writeInvalidArgument(w, "'from' must be before 'to'")
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}
