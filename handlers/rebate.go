package handlers

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/hashicorp/go-multierror"
	"github.com/shopspring/decimal"

	"github.com/aqro/aqro-server/database"
	"github.com/aqro/aqro-server/database/dbhelper"
)

// ManageRebateMappings bulk-upserts per-restaurant rebate prices. Every
// referenced container type is validated before any write, then the whole
// batch goes through one transaction: either all mappings are saved or
// none is.
func ManageRebateMappings(w http.ResponseWriter, r *http.Request) {
	type mappingInput struct {
		ContainerTypeID uuid.UUID       `json:"containerTypeId"`
		RebateValue     decimal.Decimal `json:"rebateValue"`
	}
	type request struct {
		RestaurantID uuid.UUID      `json:"restaurantId"`
		Mappings     []mappingInput `json:"mappings"`
	}

	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.RestaurantID == uuid.Nil || len(req.Mappings) == 0 {
		http.Error(w, "restaurantId and at least one mapping are required", http.StatusBadRequest)
		return
	}

	exists, err := dbhelper.IsRestaurantExists(req.RestaurantID)
	if err != nil {
		http.Error(w, "failed to query restaurant", http.StatusInternalServerError)
		return
	}
	if !exists {
		respondJSON(w, http.StatusNotFound, map[string]string{"message": "restaurant not found"})
		return
	}

	var validation *multierror.Error
	for _, m := range req.Mappings {
		if m.RebateValue.IsNegative() {
			validation = multierror.Append(validation,
				fmt.Errorf("container type %s: rebate value cannot be negative", m.ContainerTypeID))
			continue
		}
		ct, ctErr := dbhelper.GetContainerTypeByID(m.ContainerTypeID)
		if ctErr != nil {
			http.Error(w, "failed to query container types", http.StatusInternalServerError)
			return
		}
		if ct == nil {
			validation = multierror.Append(validation,
				fmt.Errorf("container type %s does not exist", m.ContainerTypeID))
		}
	}
	if err := validation.ErrorOrNil(); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}

	txErr := database.Tx(func(tx *sql.Tx) error {
		for _, m := range req.Mappings {
			if err := dbhelper.UpsertRebateMapping(tx, req.RestaurantID, m.ContainerTypeID, m.RebateValue); err != nil {
				return err
			}
		}
		return nil
	})
	if txErr != nil {
		http.Error(w, "failed to save rebate mappings", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "rebate mappings saved",
		"count":   len(req.Mappings),
	})
}

func ListRebateMappings(w http.ResponseWriter, r *http.Request) {
	containerTypeID, err := uuid.Parse(mux.Vars(r)["containerTypeId"])
	if err != nil {
		http.Error(w, "invalid container type id", http.StatusBadRequest)
		return
	}

	mappings, err := dbhelper.ListRebateMappingsByType(containerTypeID)
	if err != nil {
		http.Error(w, "failed to query rebate mappings", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, mappings)
}

func GetStaffRebateTotals(w http.ResponseWriter, r *http.Request) {
	staffID, err := uuid.Parse(mux.Vars(r)["staffId"])
	if err != nil {
		http.Error(w, "invalid staff id", http.StatusBadRequest)
		return
	}

	total, err := dbhelper.GetStaffRebateTotal(staffID)
	if err != nil {
		http.Error(w, "failed to compute totals", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"staffId": staffID,
		"total":   total,
	})
}

func GetRestaurantRebateTotals(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := uuid.Parse(mux.Vars(r)["restaurantId"])
	if err != nil {
		http.Error(w, "invalid restaurant id", http.StatusBadRequest)
		return
	}

	total, err := dbhelper.GetRestaurantRebateTotal(restaurantID)
	if err != nil {
		http.Error(w, "failed to compute totals", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"restaurantId": restaurantID,
		"total":        total,
	})
}
