package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aqro/aqro-server/database/dbhelper"
	"github.com/aqro/aqro-server/models"
)

const defaultReportLimit = 500

// ListActivities serves the reporting query. All query parameters are
// optional and combine as AND; list parameters are comma-separated.
func ListActivities(w http.ResponseWriter, r *http.Request) {
	filter, err := parseActivityFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	limit := defaultReportLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, convErr := strconv.Atoi(raw)
		if convErr != nil || n < 1 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	activities, err := dbhelper.ListActivities(*filter, limit)
	if err != nil {
		http.Error(w, "failed to query activities", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, activities)
}

func parseActivityFilter(r *http.Request) (*models.ActivityFilter, error) {
	q := r.URL.Query()
	var filter models.ActivityFilter

	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, errInvalidParam("from")
		}
		filter.From = &t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, errInvalidParam("to")
		}
		filter.To = &t
	}

	for _, raw := range splitParam(q.Get("types")) {
		t := models.ActivityType(raw)
		if !t.IsValid() {
			return nil, errInvalidParam("types")
		}
		filter.Types = append(filter.Types, t)
	}

	var err error
	if filter.RestaurantIDs, err = parseUUIDList(q.Get("restaurants")); err != nil {
		return nil, errInvalidParam("restaurants")
	}
	if filter.CustomerIDs, err = parseUUIDList(q.Get("customers")); err != nil {
		return nil, errInvalidParam("customers")
	}
	if filter.ContainerTypeIDs, err = parseUUIDList(q.Get("containerTypes")); err != nil {
		return nil, errInvalidParam("containerTypes")
	}

	return &filter, nil
}

func splitParam(raw string) []string {
	if raw == "" {
		return nil
	}
	var parts []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

func parseUUIDList(raw string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, p := range splitParam(raw) {
		id, err := uuid.Parse(p)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

type paramError string

func (e paramError) Error() string {
	return "invalid " + string(e) + " parameter"
}

func errInvalidParam(name string) error {
	return paramError(name)
}
