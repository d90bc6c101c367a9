package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mmeshcher/campick-system/internal/extraction"
	"github.com/mmeshcher/campick-system/internal/model"
	"github.com/mmeshcher/campick-system/internal/notify"
	"github.com/mmeshcher/campick-system/internal/repository"
	"github.com/mmeshcher/campick-system/internal/validation"
)

// VerifyPaymentRequest — запрос на создание заказа с проверкой платежа.
type VerifyPaymentRequest struct {
	ShopID        int64
	ScreenshotURL string
	Method        string
	// ClaimedAmount — заявленная клиентом сумма в копейках.
	ClaimedAmount int64
	Items         []model.OrderItemRequest
}

// VerifyPaymentResult — созданный заказ вместе с платежом.
type VerifyPaymentResult struct {
	Order   model.Order
	Items   []model.OrderItem
	Payment model.Payment
}

// VerifyPaymentAndCreateOrder проверяет платёж по скриншоту и создаёт заказ.
// Извлечение выполняется до открытия транзакции: внешний вызов не держит
// соединение БД. Судьба заказа при расхождении сумм задаётся политикой
// OnMismatch; в любом исходе транзакция либо фиксируется целиком, либо нет.
func (s *Service) VerifyPaymentAndCreateOrder(ctx context.Context, userID int64, req VerifyPaymentRequest) (*VerifyPaymentResult, error) {
	if req.ScreenshotURL == "" || req.ShopID == 0 || req.ClaimedAmount <= 0 ||
		req.Method == "" || len(req.Items) == 0 {
		return nil, ErrMissingFields
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := canPlaceOrders(user); err != nil {
		return nil, err
	}

	ext, err := s.extractor.Extract(ctx, req.ScreenshotURL)
	if err != nil {
		return nil, fmt.Errorf("extract payment data: %w", err)
	}

	matched := extraction.AmountMatches(ext.Amount, req.ClaimedAmount)
	if !matched && s.opts.OnMismatch == MismatchRollbackOrder {
		return nil, fmt.Errorf("%w: extracted %d, claimed %d",
			ErrPaymentMismatch, ext.Amount, req.ClaimedAmount)
	}

	verification := model.VerificationVerified
	if !matched {
		verification = model.VerificationRejected
	}

	order, items, payment, err := s.repo.CreatePaidOrder(ctx, repository.CreatePaidOrderParams{
		UserID:          userID,
		ShopID:          req.ShopID,
		Items:           req.Items,
		Method:          req.Method,
		ScreenshotURL:   req.ScreenshotURL,
		ClaimedAmount:   req.ClaimedAmount,
		ExtractedAmount: ext.Amount,
		BankName:        ext.BankName,
		PayFrom:         ext.From,
		PayTo:           ext.To,
		ExtractionRaw:   ext.Raw,
		Verification:    verification,
		AdvanceOrder:    s.opts.AutoConfirm,
	})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(notify.EventNewOrder, notify.OrderEvent{
		Order:     *order,
		Items:     items,
		UserName:  user.UserName,
		UserEmail: user.Email,
	})

	if !matched {
		// Платёж сохранён как rejected для ручной проверки, но запрос
		// считается неуспешным.
		return nil, fmt.Errorf("%w: extracted %d, claimed %d",
			ErrPaymentMismatch, ext.Amount, req.ClaimedAmount)
	}

	return &VerifyPaymentResult{
		Order:   *order,
		Items:   items,
		Payment: *payment,
	}, nil
}

// SetPaymentStatus — ручная смена статуса платежа оператором с каскадом
// на заказ: rejected отклоняет заказ, verified переводит его в preparing.
func (s *Service) SetPaymentStatus(ctx context.Context, paymentID string, status model.VerificationStatus) (*repository.PaymentCascade, error) {
	if !validation.IsValidVerificationStatus(status) {
		return nil, ErrInvalidStatus
	}

	res, err := s.repo.SetPaymentStatus(ctx, paymentID, status)
	if err != nil {
		return nil, err
	}

	event := notify.OrderEvent{
		Order: res.Order,
		Items: res.Items,
	}
	if user, err := s.repo.GetUserByID(ctx, res.Order.UserID); err == nil {
		event.UserName = user.UserName
		event.UserEmail = user.Email
	} else {
		s.logger.Warn("order purchaser lookup failed",
			zap.String("order", res.Order.ID), zap.Error(err))
	}
	s.publisher.Publish(notify.EventOrderUpdate, event)

	return res, nil
}

// GetPayment возвращает платёж по идентификатору.
func (s *Service) GetPayment(ctx context.Context, paymentID string) (*model.Payment, error) {
	return s.repo.GetPaymentByID(ctx, paymentID)
}
