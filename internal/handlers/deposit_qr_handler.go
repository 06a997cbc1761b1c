package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/coinvault/backend/internal/services"
)

type DepositQRHandler struct {
	service   *services.DepositQRService
	validator *services.ValidationHelper
}

func NewDepositQRHandler(service *services.DepositQRService) *DepositQRHandler {
	return &DepositQRHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

// GenerateDepositQR issues a BTC deposit QR code for the caller
// @Summary Generate deposit QR code
// @Description Generate a short-lived QR code with BTC deposit instructions for the authenticated user
// @Tags deposits
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{amount=string} false "Optional suggested amount"
// @Success 200 {object} object{code=string,qrImage=string}
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Router /deposits/qr [post]
func (h *DepositQRHandler) GenerateDepositQR(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		Amount string `json:"amount" validate:"omitempty,numeric"`
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil && err != io.EOF {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	code, qrImage, err := h.service.GenerateDepositCode(r.Context(), userID, req.Amount)
	if err != nil {
		services.SendDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"code":    code,
		"qrImage": qrImage,
	})
}

// ResolveDepositQR redeems a scanned deposit code
// @Summary Redeem deposit QR code
// @Description Redeem a deposit code and return its payload; codes are single-use
// @Tags deposits
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{code=string} true "Deposit code"
// @Success 200 {object} object{userId=string,walletBTCAddress=string,currency=string}
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Router /deposits/qr/resolve [post]
func (h *DepositQRHandler) ResolveDepositQR(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		Code string `json:"code" validate:"required"`
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	payload, err := h.service.ResolveDepositCode(r.Context(), req.Code)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payload)
}
