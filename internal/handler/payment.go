package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/campick-system/internal/extraction"
	"github.com/mmeshcher/campick-system/internal/middleware"
	"github.com/mmeshcher/campick-system/internal/model"
	"github.com/mmeshcher/campick-system/internal/pricing"
	"github.com/mmeshcher/campick-system/internal/repository"
	"github.com/mmeshcher/campick-system/internal/service"
)

type verifyPaymentRequest struct {
	ShopID        int64                    `json:"shop_id"`
	ScreenshotURL string                   `json:"payment_screenshot_url"`
	Method        string                   `json:"payment_method"`
	Amount        float64                  `json:"amount"`
	Items         []model.OrderItemRequest `json:"items"`
}

type paymentResponse struct {
	PaymentID          string  `json:"payment_id"`
	OrderID            string  `json:"order_id"`
	ScreenshotURL      string  `json:"payment_screenshot_url"`
	Method             string  `json:"payment_method"`
	ClaimedAmount      float64 `json:"claimed_amount"`
	ExtractedAmount    float64 `json:"extracted_amount"`
	VerificationStatus string  `json:"verification_status"`
	BankName           string  `json:"bank_name,omitempty"`
	PayFrom            string  `json:"pay_from,omitempty"`
	PayTo              string  `json:"pay_to,omitempty"`
	CreatedAt          string  `json:"created_at"`
}

func toPaymentResponse(p model.Payment) paymentResponse {
	return paymentResponse{
		PaymentID:          p.ID,
		OrderID:            p.OrderID,
		ScreenshotURL:      p.ScreenshotURL,
		Method:             p.Method,
		ClaimedAmount:      fromCents(p.ClaimedAmount),
		ExtractedAmount:    fromCents(p.ExtractedAmount),
		VerificationStatus: string(p.VerificationStatus),
		BankName:           p.BankName,
		PayFrom:            p.PayFrom,
		PayTo:              p.PayTo,
		CreatedAt:          p.CreatedAt.Format(time.RFC3339),
	}
}

type verifyPaymentResponse struct {
	Order   orderResponse       `json:"order"`
	Items   []orderItemResponse `json:"items"`
	Payment paymentResponse     `json:"payment"`
}

// VerifyPaymentAndCreateOrder проверяет скриншот оплаты и создаёт заказ.
func (h *Handler) VerifyPaymentAndCreateOrder(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return
	}

	var req verifyPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	res, err := h.service.VerifyPaymentAndCreateOrder(r.Context(), identity.UserID, service.VerifyPaymentRequest{
		ShopID:        req.ShopID,
		ScreenshotURL: req.ScreenshotURL,
		Method:        req.Method,
		ClaimedAmount: toCents(req.Amount),
		Items:         req.Items,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMissingFields):
			writeError(w, http.StatusBadRequest, "missing required fields", err.Error())
		case errors.Is(err, service.ErrOrdersForbidden):
			writeError(w, http.StatusForbidden, "only students and teachers can place orders", "")
		case errors.Is(err, service.ErrAccountRestricted):
			writeError(w, http.StatusForbidden, "account restricted", "too many alerts")
		case errors.Is(err, pricing.ErrUnknownItem), errors.Is(err, pricing.ErrBadQuantity), errors.Is(err, pricing.ErrEmptyOrder):
			writeError(w, http.StatusBadRequest, "invalid order items", err.Error())
		case errors.Is(err, repository.ErrShopNotFound):
			writeError(w, http.StatusNotFound, "shop not found", "")
		case errors.Is(err, service.ErrPaymentMismatch), errors.Is(err, extraction.ErrAmountNotFound), errors.Is(err, extraction.ErrMalformedExtraction):
			writeError(w, http.StatusInternalServerError, "failed to verify payment and create order", err.Error())
		default:
			h.logger.Error("verify payment error", zap.Error(err), zap.Int64("userID", identity.UserID))
			writeError(w, http.StatusInternalServerError, "failed to verify payment and create order", "")
		}
		return
	}

	writeJSON(w, http.StatusCreated, verifyPaymentResponse{
		Order:   toOrderResponse(res.Order),
		Items:   toItemResponses(res.Items),
		Payment: toPaymentResponse(res.Payment),
	})
}

// UpdatePaymentStatus вручную подтверждает или отклоняет платёж.
func (h *Handler) UpdatePaymentStatus(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "paymentId")

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	res, err := h.service.SetPaymentStatus(r.Context(), paymentID, model.VerificationStatus(req.Status))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidStatus):
			writeError(w, http.StatusBadRequest, "invalid verification status", err.Error())
		case errors.Is(err, repository.ErrPaymentNotFound):
			writeError(w, http.StatusNotFound, "payment not found", "")
		default:
			h.logger.Error("update payment status error", zap.Error(err), zap.String("payment", paymentID))
			writeError(w, http.StatusInternalServerError, "failed to update payment status", "")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"payment": toPaymentResponse(res.Payment),
		"order":   toOrderResponse(res.Order),
	})
}

// GetPaymentDetails возвращает сведения о платеже.
func (h *Handler) GetPaymentDetails(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "paymentId")

	payment, err := h.service.GetPayment(r.Context(), paymentID)
	if err != nil {
		if errors.Is(err, repository.ErrPaymentNotFound) {
			writeError(w, http.StatusNotFound, "payment not found", "")
			return
		}
		h.logger.Error("get payment details error", zap.Error(err), zap.String("payment", paymentID))
		writeError(w, http.StatusInternalServerError, "failed to get payment details", "")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"payment": toPaymentResponse(*payment)})
}
