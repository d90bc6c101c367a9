package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/mmeshcher/campick-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса кампусных заказов.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))
	r.Use(custommiddleware.Metrics)

	r.Method(http.MethodGet, "/metrics", custommiddleware.MetricsHandler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Post("/createOrder", h.CreateOrder)
			r.Get("/orderDetails/{orderId}", h.GetOrderDetails)
			r.Get("/listUserOrders", h.ListUserOrders)
			r.Put("/updateOrderStatus/{orderId}", h.UpdateOrderStatus)
			r.Get("/listShopOrders", h.ListShopOrders)

			r.Post("/verifyPaymentAndCreateOrder", h.VerifyPaymentAndCreateOrder)
			r.Put("/updatePaymentStatus/{paymentId}", h.UpdatePaymentStatus)
			r.Get("/paymentDetails/{paymentId}", h.GetPaymentDetails)
		})
	})

	r.Get("/ws", h.ServeWS)

	return r
}
