// Package handler содержит HTTP-обработчики API сервиса кампусных заказов.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/campick-system/internal/middleware"
	"github.com/mmeshcher/campick-system/internal/model"
	"github.com/mmeshcher/campick-system/internal/notify"
	"github.com/mmeshcher/campick-system/internal/pricing"
	"github.com/mmeshcher/campick-system/internal/repository"
	"github.com/mmeshcher/campick-system/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, name, email, password string, role model.Role) (int64, error)
	AuthenticateUser(ctx context.Context, email, password string) (*model.User, error)
	CreateOrder(ctx context.Context, userID, shopID int64, items []model.OrderItemRequest) (*model.Order, []model.OrderItem, error)
	ChangeOrderStatus(ctx context.Context, ownerID int64, orderID string, status model.OrderStatus) (*repository.TransitionResult, error)
	GetOrderDetails(ctx context.Context, userID int64, orderID string) (*model.Order, []model.OrderItem, error)
	ListUserOrders(ctx context.Context, userID int64) ([]model.Order, error)
	ListShopOrders(ctx context.Context, ownerID int64) (int64, []repository.ShopOrder, error)
	VerifyPaymentAndCreateOrder(ctx context.Context, userID int64, req service.VerifyPaymentRequest) (*service.VerifyPaymentResult, error)
	SetPaymentStatus(ctx context.Context, paymentID string, status model.VerificationStatus) (*repository.PaymentCascade, error)
	GetPayment(ctx context.Context, paymentID string) (*model.Payment, error)
}

// Handler реализует HTTP-обработчики API сервиса кампусных заказов.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	hub            *notify.Hub
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware, hub *notify.Hub) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
		hub:            hub,
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeError(w http.ResponseWriter, status int, errText, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: errText, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// toCents переводит сумму из денежных единиц API в копейки хранения.
func toCents(v float64) int64 {
	return int64(math.Round(v * 100))
}

func fromCents(c int64) float64 {
	return float64(c) / 100
}

type orderResponse struct {
	OrderID       string  `json:"order_id"`
	UserID        int64   `json:"user_id"`
	ShopID        int64   `json:"shop_id"`
	TotalPrice    float64 `json:"total_price"`
	Status        string  `json:"status"`
	PaymentStatus string  `json:"payment_status"`
	CreatedAt     string  `json:"created_at"`
	UpdatedAt     string  `json:"updated_at"`
}

type orderItemResponse struct {
	ItemID   int64   `json:"item_id"`
	ItemName string  `json:"item_name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

func toOrderResponse(o model.Order) orderResponse {
	return orderResponse{
		OrderID:       o.ID,
		UserID:        o.UserID,
		ShopID:        o.ShopID,
		TotalPrice:    fromCents(o.TotalPrice),
		Status:        string(o.Status),
		PaymentStatus: string(o.PaymentStatus),
		CreatedAt:     o.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     o.UpdatedAt.Format(time.RFC3339),
	}
}

func toItemResponses(items []model.OrderItem) []orderItemResponse {
	res := make([]orderItemResponse, 0, len(items))
	for _, it := range items {
		res = append(res, orderItemResponse{
			ItemID:   it.ItemID,
			ItemName: it.ItemName,
			Quantity: it.Quantity,
			Price:    fromCents(it.Price),
		})
	}
	return res
}

type registerRequest struct {
	UserName string `json:"user_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// Register обрабатывает регистрацию нового пользователя.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	userID, err := h.service.RegisterUser(r.Context(), req.UserName, req.Email, req.Password, model.Role(req.Role))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMissingFields), errors.Is(err, service.ErrInvalidRole):
			writeError(w, http.StatusBadRequest, "invalid registration data", err.Error())
		case errors.Is(err, repository.ErrUserExists):
			writeError(w, http.StatusConflict, "user already exists", "")
		default:
			h.logger.Error("register user error", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to register user", "")
		}
		return
	}

	token, err := h.authMiddleware.IssueToken(userID, model.Role(req.Role))
	if err != nil {
		h.logger.Error("issue token error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to issue token", "")
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{Token: token})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login выполняет аутентификацию пользователя и выпуск токена.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required", "")
		return
	}

	user, err := h.service.AuthenticateUser(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrUserNotFound), errors.Is(err, service.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "invalid credentials", "")
		case errors.Is(err, service.ErrAccountRestricted):
			writeError(w, http.StatusForbidden, "account restricted", "too many alerts")
		default:
			h.logger.Error("login user error", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to sign in", "")
		}
		return
	}

	token, err := h.authMiddleware.IssueToken(user.ID, user.Role)
	if err != nil {
		h.logger.Error("issue token error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to issue token", "")
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{Token: token})
}

type createOrderRequest struct {
	ShopID int64                    `json:"shop_id"`
	Items  []model.OrderItemRequest `json:"items"`
}

type createOrderResponse struct {
	OrderID    string  `json:"order_id"`
	TotalPrice float64 `json:"total_price"`
	Status     string  `json:"status"`
}

// CreateOrder создаёт заказ от имени текущего пользователя.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	order, _, err := h.service.CreateOrder(r.Context(), identity.UserID, req.ShopID, req.Items)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrdersForbidden):
			writeError(w, http.StatusForbidden, "only students and teachers can place orders", "")
		case errors.Is(err, service.ErrAccountRestricted):
			writeError(w, http.StatusForbidden, "account restricted", "too many alerts")
		case errors.Is(err, pricing.ErrUnknownItem), errors.Is(err, pricing.ErrBadQuantity), errors.Is(err, pricing.ErrEmptyOrder):
			writeError(w, http.StatusBadRequest, "invalid order items", err.Error())
		case errors.Is(err, repository.ErrShopNotFound):
			writeError(w, http.StatusNotFound, "shop not found", "")
		case errors.Is(err, repository.ErrUserNotFound):
			writeError(w, http.StatusUnauthorized, "unauthorized", "")
		default:
			h.logger.Error("create order error", zap.Error(err), zap.Int64("userID", identity.UserID))
			writeError(w, http.StatusInternalServerError, "failed to create order", "")
		}
		return
	}

	writeJSON(w, http.StatusCreated, createOrderResponse{
		OrderID:    order.ID,
		TotalPrice: fromCents(order.TotalPrice),
		Status:     string(order.Status),
	})
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type orderWithItemsResponse struct {
	Order orderResponse       `json:"order"`
	Items []orderItemResponse `json:"items"`
}

// UpdateOrderStatus меняет статус заказа от имени владельца точки питания.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return
	}

	orderID := chi.URLParam(r, "orderId")

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	res, err := h.service.ChangeOrderStatus(r.Context(), identity.UserID, orderID, model.OrderStatus(req.Status))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidStatus), errors.Is(err, service.ErrInvalidTransition):
			writeError(w, http.StatusBadRequest, "invalid status", err.Error())
		case errors.Is(err, repository.ErrNotShopOwner):
			writeError(w, http.StatusForbidden, "you are not authorized to update this order", "")
		case errors.Is(err, repository.ErrOrderNotFound):
			writeError(w, http.StatusNotFound, "order not found", "")
		default:
			h.logger.Error("update order status error", zap.Error(err), zap.String("order", orderID))
			writeError(w, http.StatusInternalServerError, "failed to update order status", "")
		}
		return
	}

	writeJSON(w, http.StatusOK, orderWithItemsResponse{
		Order: toOrderResponse(res.Order),
		Items: toItemResponses(res.Items),
	})
}

// GetOrderDetails возвращает заказ текущего пользователя с позициями.
func (h *Handler) GetOrderDetails(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return
	}

	orderID := chi.URLParam(r, "orderId")

	order, items, err := h.service.GetOrderDetails(r.Context(), identity.UserID, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			writeError(w, http.StatusNotFound, "order not found", "")
			return
		}
		h.logger.Error("get order details error", zap.Error(err), zap.String("order", orderID))
		writeError(w, http.StatusInternalServerError, "failed to get order details", "")
		return
	}

	writeJSON(w, http.StatusOK, orderWithItemsResponse{
		Order: toOrderResponse(*order),
		Items: toItemResponses(items),
	})
}

// ListUserOrders возвращает список заказов текущего пользователя.
func (h *Handler) ListUserOrders(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return
	}

	orders, err := h.service.ListUserOrders(r.Context(), identity.UserID)
	if err != nil {
		h.logger.Error("list user orders error", zap.Error(err), zap.Int64("userID", identity.UserID))
		writeError(w, http.StatusInternalServerError, "failed to list user orders", "")
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, toOrderResponse(o))
	}

	writeJSON(w, http.StatusOK, map[string]any{"orders": resp})
}

type shopOrderResponse struct {
	orderResponse
	UserName  string              `json:"user_name"`
	UserEmail string              `json:"email"`
	Items     []orderItemResponse `json:"items"`
}

// ListShopOrders возвращает заказы точки питания текущего владельца.
func (h *Handler) ListShopOrders(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return
	}

	shopID, orders, err := h.service.ListShopOrders(r.Context(), identity.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrShopNotFound) {
			writeError(w, http.StatusNotFound, "shop not found for this owner", "")
			return
		}
		h.logger.Error("list shop orders error", zap.Error(err), zap.Int64("ownerID", identity.UserID))
		writeError(w, http.StatusInternalServerError, "failed to list shop orders", "")
		return
	}

	resp := make([]shopOrderResponse, 0, len(orders))
	for _, so := range orders {
		resp = append(resp, shopOrderResponse{
			orderResponse: toOrderResponse(so.Order),
			UserName:      so.UserName,
			UserEmail:     so.UserEmail,
			Items:         toItemResponses(so.Items),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"shop_id": shopID,
		"orders":  resp,
	})
}

// ServeWS подключает клиента к каналу событий заказов.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	h.hub.ServeWS(w, r)
}
