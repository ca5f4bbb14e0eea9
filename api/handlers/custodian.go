package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/openalpha/tranche-protocol/api/types"
)

// CustodianHandler handles mint, burn and ledger HTTP requests
type CustodianHandler struct {
	service types.CustodianService
}

// NewCustodianHandler creates a new custodian handler
func NewCustodianHandler(service types.CustodianService) *CustodianHandler {
	return &CustodianHandler{service: service}
}

// HandleMint handles POST /v1/mint
func (h *CustodianHandler) HandleMint(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
		return
	}

	var req types.MintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "Invalid JSON body")
		return
	}
	if req.Creditor == "" {
		req.Creditor = r.Header.Get("X-Owner-Address")
	}
	if req.Creditor == "" {
		writeError(w, http.StatusBadRequest, "missing_creditor", "creditor address is required")
		return
	}
	if req.Collateral == "" {
		writeError(w, http.StatusBadRequest, "missing_collateral", "collateral is required")
		return
	}

	resp, err := h.service.Mint(r.Context(), &req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "mint_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleBurn handles POST /v1/burn
func (h *CustodianHandler) HandleBurn(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
		return
	}

	var req types.BurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "Invalid JSON body")
		return
	}
	if req.Owner == "" {
		req.Owner = r.Header.Get("X-Owner-Address")
	}
	if req.Owner == "" {
		writeError(w, http.StatusBadRequest, "missing_owner", "owner address is required")
		return
	}

	resp, err := h.service.Burn(r.Context(), &req)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			writeError(w, http.StatusNotFound, "position_not_found", err.Error())
		} else {
			writeError(w, http.StatusBadRequest, "burn_failed", err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandlePositions handles GET /v1/positions
func (h *CustodianHandler) HandlePositions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
		return
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
		return
	}

	owner := r.URL.Query().Get("owner")
	if owner == "" {
		owner = r.Header.Get("X-Owner-Address")
	}
	if owner == "" {
		writeError(w, http.StatusBadRequest, "missing_owner", "owner address is required")
		return
	}

	positions, err := h.service.ListPositions(r.Context(), owner)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list_positions_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"positions": positions,
		"total":     len(positions),
	})
}

// HandlePosition handles GET /v1/positions/{id}
func (h *CustodianHandler) HandlePosition(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
		return
	}

	idStr := strings.TrimPrefix(r.URL.Path, "/v1/positions/")
	positionID, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_position_id", "Position ID must be a number")
		return
	}

	position, err := h.service.GetPosition(r.Context(), positionID)
	if err != nil {
		writeError(w, http.StatusNotFound, "position_not_found", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"position": position})
}

// HandleLedger handles GET /v1/ledger
func (h *CustodianHandler) HandleLedger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
		return
	}

	ledger, err := h.service.GetLedger(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "get_ledger_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ledger)
}

// HandlePrice handles GET /v1/price
func (h *CustodianHandler) HandlePrice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
		return
	}

	price, err := h.service.GetPrice(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "get_price_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, price)
}

// HandleTiers handles GET /v1/tiers
func (h *CustodianHandler) HandleTiers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
		return
	}

	tiers, err := h.service.ListTiers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list_tiers_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tiers": tiers})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   code,
		"message": message,
	})
}
