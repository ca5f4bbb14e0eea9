package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/openalpha/tranche-protocol/api/types"
)

// RiskHandler handles risk and liquidation HTTP requests
type RiskHandler struct {
	service types.RiskService
}

// NewRiskHandler creates a new risk handler
func NewRiskHandler(service types.RiskService) *RiskHandler {
	return &RiskHandler{service: service}
}

// HandleRiskStatus handles GET /v1/risk/{id}
func (h *RiskHandler) HandleRiskStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
		return
	}

	idStr := strings.TrimPrefix(r.URL.Path, "/v1/risk/")
	positionID, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_position_id", "Position ID must be a number")
		return
	}

	status, err := h.service.GetRiskStatus(r.Context(), positionID)
	if err != nil {
		writeError(w, http.StatusNotFound, "position_not_found", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// HandleBark handles POST /v1/bark
func (h *RiskHandler) HandleBark(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
		return
	}

	var req types.BarkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "Invalid JSON body")
		return
	}
	if req.Triggerer == "" {
		req.Triggerer = r.Header.Get("X-Owner-Address")
	}
	if req.Owner == "" || req.Triggerer == "" {
		writeError(w, http.StatusBadRequest, "missing_address", "owner and triggerer addresses are required")
		return
	}

	record, err := h.service.Bark(r.Context(), &req)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			writeError(w, http.StatusNotFound, "position_not_found", err.Error())
		} else {
			writeError(w, http.StatusBadRequest, "bark_failed", err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// HandleRecords handles GET /v1/liquidations
func (h *RiskHandler) HandleRecords(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
		return
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	records, err := h.service.ListRecords(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list_records_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"records": records,
		"total":   len(records),
	})
}
