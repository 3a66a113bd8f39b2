package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/aqro/aqro-server/database/dbhelper"
)

func CreateContainerType(w http.ResponseWriter, r *http.Request) {
	type request struct {
		Name        string          `json:"name"`
		Description string          `json:"description"`
		MaxUses     int             `json:"maxUses"`
		RebateValue decimal.Decimal `json:"rebateValue"`
	}
	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.Name == "" || req.MaxUses < 1 {
		http.Error(w, "name and a positive maxUses are required", http.StatusBadRequest)
		return
	}

	id, err := dbhelper.CreateContainerType(req.Name, req.Description, req.MaxUses, req.RebateValue)
	if err != nil {
		http.Error(w, "failed to create container type", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"id":      id,
		"message": "container type created",
	})
}

func ListContainerTypes(w http.ResponseWriter, r *http.Request) {
	includeInactive := r.URL.Query().Get("includeInactive") == "true"

	types, err := dbhelper.ListContainerTypes(includeInactive)
	if err != nil {
		http.Error(w, "failed to query container types", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, types)
}

func GetContainerType(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid container type id", http.StatusBadRequest)
		return
	}

	ct, err := dbhelper.GetContainerTypeByID(id)
	if err != nil {
		http.Error(w, "failed to query container type", http.StatusInternalServerError)
		return
	}
	if ct == nil {
		respondJSON(w, http.StatusNotFound, map[string]string{"message": "container type not found"})
		return
	}

	respondJSON(w, http.StatusOK, ct)
}

func UpdateContainerType(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid container type id", http.StatusBadRequest)
		return
	}

	type request struct {
		Name        string          `json:"name"`
		Description string          `json:"description"`
		MaxUses     int             `json:"maxUses"`
		RebateValue decimal.Decimal `json:"rebateValue"`
		IsActive    bool            `json:"isActive"`
	}
	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.Name == "" || req.MaxUses < 1 {
		http.Error(w, "name and a positive maxUses are required", http.StatusBadRequest)
		return
	}

	err = dbhelper.UpdateContainerType(id, req.Name, req.Description, req.MaxUses, req.RebateValue, req.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		respondJSON(w, http.StatusNotFound, map[string]string{"message": "container type not found"})
		return
	}
	if err != nil {
		http.Error(w, "failed to update container type", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "container type updated"})
}

// DeleteContainerType soft-deletes by default; a hard delete is only
// allowed while no container references the type.
func DeleteContainerType(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid container type id", http.StatusBadRequest)
		return
	}

	if r.URL.Query().Get("hard") == "true" {
		count, countErr := dbhelper.CountContainersByType(id)
		if countErr != nil {
			http.Error(w, "failed to query containers", http.StatusInternalServerError)
			return
		}
		if count > 0 {
			respondJSON(w, http.StatusConflict, map[string]string{
				"message": "container type is still referenced by containers",
			})
			return
		}
		if err := dbhelper.HardDeleteContainerType(id); err != nil {
			http.Error(w, "failed to delete container type", http.StatusInternalServerError)
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"message": "container type deleted"})
		return
	}

	err = dbhelper.SoftDeleteContainerType(id)
	if errors.Is(err, sql.ErrNoRows) {
		respondJSON(w, http.StatusNotFound, map[string]string{"message": "container type not found"})
		return
	}
	if err != nil {
		http.Error(w, "failed to delete container type", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "container type deactivated"})
}
