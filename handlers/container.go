package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/aqro/aqro-server/database/dbhelper"
	"github.com/aqro/aqro-server/engine"
	"github.com/aqro/aqro-server/middlewares"
	"github.com/aqro/aqro-server/models"
)

func RegisterContainer(w http.ResponseWriter, r *http.Request) {
	claims, err := middlewares.GetAuthenticatedUser(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	type request struct {
		QRCode string `json:"qrCode"`
	}
	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if !strings.HasPrefix(req.QRCode, engine.QRCodePrefix) {
		http.Error(w, "not a recognized QR code", http.StatusBadRequest)
		return
	}

	result, err := eng.Register(r.Context(), engine.RegisterCommand{
		QRCode:     req.QRCode,
		CustomerID: claims.UserID,
	})
	if err != nil {
		respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func ReturnContainer(w http.ResponseWriter, r *http.Request) {
	claims, err := middlewares.GetAuthenticatedUser(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	containerID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid container id", http.StatusBadRequest)
		return
	}

	container, err := eng.ProcessReturn(r.Context(), engine.ReturnCommand{
		ContainerID: containerID,
		StaffID:     claims.UserID,
	})
	if err != nil {
		respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":   "container returned",
		"container": container,
	})
}

func RebateContainer(w http.ResponseWriter, r *http.Request) {
	claims, err := middlewares.GetAuthenticatedUser(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	containerID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid container id", http.StatusBadRequest)
		return
	}

	result, err := eng.ProcessRebate(r.Context(), engine.RebateCommand{
		ContainerID: containerID,
		StaffID:     claims.UserID,
	})
	if err != nil {
		respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func MarkContainerStatus(w http.ResponseWriter, r *http.Request) {
	claims, err := middlewares.GetAuthenticatedUser(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	containerID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid container id", http.StatusBadRequest)
		return
	}

	type request struct {
		Status models.ContainerStatus `json:"status"`
	}
	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	container, err := eng.MarkStatus(r.Context(), engine.MarkStatusCommand{
		ContainerID: containerID,
		RequesterID: claims.UserID,
		Requester:   claims.UserType,
		NewStatus:   req.Status,
	})
	if err != nil {
		respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":   "container status updated",
		"container": container,
	})
}

func GenerateQRCode(w http.ResponseWriter, r *http.Request) {
	code, err := eng.GenerateQRCode(r.Context())
	if err != nil {
		respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"qrCode": code})
}

func CreateContainer(w http.ResponseWriter, r *http.Request) {
	type request struct {
		QRCode          string     `json:"qrCode"`
		ContainerTypeID uuid.UUID  `json:"containerTypeId"`
		RestaurantID    *uuid.UUID `json:"restaurantId"`
		PurchaseDate    *time.Time `json:"purchaseDate"`
	}
	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.QRCode == "" || req.ContainerTypeID == uuid.Nil {
		http.Error(w, "qrCode and containerTypeId are required", http.StatusBadRequest)
		return
	}

	container, err := eng.CreateContainer(r.Context(), engine.CreateContainerCommand{
		QRCode:          req.QRCode,
		ContainerTypeID: req.ContainerTypeID,
		RestaurantID:    req.RestaurantID,
		PurchaseDate:    req.PurchaseDate,
	})
	if err != nil {
		respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, container)
}

func UpdateContainer(w http.ResponseWriter, r *http.Request) {
	containerID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid container id", http.StatusBadRequest)
		return
	}

	// customerId needs three states: absent (leave alone), null (clear the
	// owner so the container can start a new cycle), or a user id.
	type request struct {
		Status          *models.ContainerStatus `json:"status"`
		ContainerTypeID *uuid.UUID              `json:"containerTypeId"`
		CustomerID      json.RawMessage         `json:"customerId"`
		RestaurantID    *uuid.UUID              `json:"restaurantId"`
	}
	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.Status != nil && !req.Status.IsValid() {
		http.Error(w, "invalid container status", http.StatusBadRequest)
		return
	}

	cmd := engine.UpdateContainerCommand{
		ContainerID:     containerID,
		Status:          req.Status,
		ContainerTypeID: req.ContainerTypeID,
		RestaurantID:    req.RestaurantID,
	}
	if len(req.CustomerID) > 0 {
		if string(req.CustomerID) == "null" {
			cmd.ClearCustomer = true
		} else {
			var customerID uuid.UUID
			if err := json.Unmarshal(req.CustomerID, &customerID); err != nil {
				http.Error(w, "invalid customer id", http.StatusBadRequest)
				return
			}
			cmd.CustomerID = &customerID
		}
	}

	container, err := eng.UpdateContainer(r.Context(), cmd)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, container)
}

func ListMyContainers(w http.ResponseWriter, r *http.Request) {
	claims, err := middlewares.GetAuthenticatedUser(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	containers, err := dbhelper.ListContainersByCustomer(claims.UserID)
	if err != nil {
		http.Error(w, "failed to query containers", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, containers)
}

func GetCustomerStats(w http.ResponseWriter, r *http.Request) {
	claims, err := middlewares.GetAuthenticatedUser(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	stats, err := dbhelper.GetCustomerStats(claims.UserID)
	if err != nil {
		http.Error(w, "failed to compute stats", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, stats)
}

func GetRestaurantStats(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid restaurant id", http.StatusBadRequest)
		return
	}

	exists, err := dbhelper.IsRestaurantExists(restaurantID)
	if err != nil {
		http.Error(w, "failed to query restaurant", http.StatusInternalServerError)
		return
	}
	if !exists {
		respondJSON(w, http.StatusNotFound, map[string]string{"message": "restaurant not found"})
		return
	}

	stats, err := dbhelper.GetRestaurantStats(restaurantID)
	if err != nil {
		http.Error(w, "failed to compute stats", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, stats)
}
