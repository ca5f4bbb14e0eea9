package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/openalpha/tranche-protocol/api/types"
)

// AuctionHandler handles auction HTTP requests
type AuctionHandler struct {
	service types.AuctionService
}

// NewAuctionHandler creates a new auction handler
func NewAuctionHandler(service types.AuctionService) *AuctionHandler {
	return &AuctionHandler{service: service}
}

// HandleAuctions handles GET /v1/auctions
func (h *AuctionHandler) HandleAuctions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
		return
	}

	auctions, err := h.service.ListAuctions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list_auctions_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"auctions": auctions,
		"total":    len(auctions),
	})
}

// HandleAuction handles GET /v1/auctions/{id} and POST /v1/auctions/purchase
func (h *AuctionHandler) HandleAuction(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/auctions/")
	if path == "purchase" {
		h.HandlePurchase(w, r)
		return
	}

	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
		return
	}

	auctionID, err := strconv.ParseUint(path, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_auction_id", "Auction ID must be a number")
		return
	}

	auction, err := h.service.GetAuction(r.Context(), auctionID)
	if err != nil {
		writeError(w, http.StatusNotFound, "auction_not_found", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"auction": auction})
}

// HandlePurchase handles POST /v1/auctions/purchase
func (h *AuctionHandler) HandlePurchase(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
		return
	}

	var req types.PurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "Invalid JSON body")
		return
	}
	if req.Buyer == "" {
		req.Buyer = r.Header.Get("X-Owner-Address")
	}
	if req.Buyer == "" {
		writeError(w, http.StatusBadRequest, "missing_buyer", "buyer address is required")
		return
	}
	if req.MaxUnderlying == "" || req.MaxPrice == "" {
		writeError(w, http.StatusBadRequest, "missing_bounds", "max_underlying and max_price are required")
		return
	}

	resp, err := h.service.Purchase(r.Context(), &req)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			writeError(w, http.StatusNotFound, "auction_not_found", err.Error())
		} else {
			writeError(w, http.StatusBadRequest, "purchase_failed", err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
