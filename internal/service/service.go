// Package service реализует бизнес-логику сервиса кампусных заказов.
package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mmeshcher/campick-system/internal/extraction"
	"github.com/mmeshcher/campick-system/internal/mailer"
	"github.com/mmeshcher/campick-system/internal/model"
	"github.com/mmeshcher/campick-system/internal/notify"
	"github.com/mmeshcher/campick-system/internal/repository"
	"github.com/mmeshcher/campick-system/internal/validation"
)

// ErrOrdersForbidden возвращается, если роль не даёт права оформлять заказы.
var (
	ErrOrdersForbidden = errors.New("only students and teachers can place orders")
	// ErrAccountRestricted возвращается для студентов с превышенным числом предупреждений.
	ErrAccountRestricted = errors.New("account restricted: too many alerts")
	// ErrInvalidStatus возвращается для статуса вне распознаваемого набора.
	ErrInvalidStatus = errors.New("invalid status")
	// ErrInvalidTransition возвращается в строгом режиме для недопустимого перехода.
	ErrInvalidTransition = errors.New("status transition not allowed")
	// ErrPaymentMismatch возвращается при расхождении извлечённой и заявленной сумм.
	ErrPaymentMismatch = errors.New("payment amount verification failed")
	// ErrInvalidCredentials возвращается при неверной паре email/пароль.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrMissingFields возвращается при неполном запросе.
	ErrMissingFields = errors.New("missing required fields")
	// ErrInvalidRole возвращается при регистрации с неизвестной ролью.
	ErrInvalidRole = errors.New("unknown role")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateUser(ctx context.Context, name, email string, passwordHash []byte, role model.Role) (int64, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetShopByOwner(ctx context.Context, ownerID int64) (*model.Shop, error)
	CreateOrder(ctx context.Context, userID, shopID int64, items []model.OrderItemRequest) (*model.Order, []model.OrderItem, error)
	CreatePaidOrder(ctx context.Context, p repository.CreatePaidOrderParams) (*model.Order, []model.OrderItem, *model.Payment, error)
	TransitionOrder(ctx context.Context, orderID string, ownerID int64, status model.OrderStatus, validate repository.TransitionValidator) (*repository.TransitionResult, error)
	SetPaymentStatus(ctx context.Context, paymentID string, status model.VerificationStatus) (*repository.PaymentCascade, error)
	GetOrderWithItems(ctx context.Context, orderID string, userID int64) (*model.Order, []model.OrderItem, error)
	ListOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error)
	ListShopOrders(ctx context.Context, ownerID int64) (int64, []repository.ShopOrder, error)
	GetPaymentByID(ctx context.Context, paymentID string) (*model.Payment, error)
}

// Options — настройки политик сервиса, зафиксированные на старте.
type Options struct {
	// OnMismatch: reject_payment сохраняет отклонённый платёж для
	// ручной проверки, rollback_order не сохраняет ничего.
	OnMismatch string
	// AutoConfirm переводит заказ в preparing сразу после успешной
	// проверки платежа.
	AutoConfirm bool
	// StrictTransitions включает проверку переходов по графу статусов.
	StrictTransitions bool
}

// MismatchRollbackOrder — значение OnMismatch, при котором несовпадение
// сумм откатывает заказ целиком.
const MismatchRollbackOrder = "rollback_order"

// Service содержит бизнес-логику сервиса кампусных заказов.
type Service struct {
	repo      Repository
	extractor extraction.Extractor
	publisher notify.Publisher
	mailer    mailer.Mailer
	logger    *zap.Logger
	opts      Options
}

// NewService создаёт новый сервис с указанными зависимостями.
func NewService(repo Repository, extractor extraction.Extractor, publisher notify.Publisher, m mailer.Mailer, logger *zap.Logger, opts Options) *Service {
	return &Service{
		repo:      repo,
		extractor: extractor,
		publisher: publisher,
		mailer:    m,
		logger:    logger,
		opts:      opts,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

func canPlaceOrders(u *model.User) error {
	if u.Role != model.RoleStudent && u.Role != model.RoleTeacher {
		return ErrOrdersForbidden
	}
	if u.Restricted() {
		return ErrAccountRestricted
	}
	return nil
}

// CreateOrder создаёт заказ: проверяет право пользователя заказывать,
// рассчитывает стоимость по ценам меню и записывает заказ с позициями
// одной транзакцией. Событие newOrder публикуется после фиксации.
func (s *Service) CreateOrder(ctx context.Context, userID, shopID int64, items []model.OrderItemRequest) (*model.Order, []model.OrderItem, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	if err := canPlaceOrders(user); err != nil {
		return nil, nil, err
	}

	order, orderItems, err := s.repo.CreateOrder(ctx, userID, shopID, items)
	if err != nil {
		return nil, nil, err
	}

	s.publisher.Publish(notify.EventNewOrder, notify.OrderEvent{
		Order:     *order,
		Items:     orderItems,
		UserName:  user.UserName,
		UserEmail: user.Email,
	})

	return order, orderItems, nil
}

// ChangeOrderStatus меняет статус заказа от имени владельца точки питания.
// Побочные эффекты применяются в одной транзакции со сменой статуса;
// письмо о выполнении — best-effort и не влияет на результат.
func (s *Service) ChangeOrderStatus(ctx context.Context, ownerID int64, orderID string, status model.OrderStatus) (*repository.TransitionResult, error) {
	if !validation.IsValidOrderStatus(status) {
		return nil, ErrInvalidStatus
	}

	var validate repository.TransitionValidator
	if s.opts.StrictTransitions {
		validate = func(from, to model.OrderStatus) error {
			if !validation.IsAllowedTransition(from, to) {
				return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
			}
			return nil
		}
	}

	res, err := s.repo.TransitionOrder(ctx, orderID, ownerID, status, validate)
	if err != nil {
		return nil, err
	}

	if res.RevenueApplied {
		if err := s.mailer.SendOrderConfirmation(res.UserEmail, res.UserName, res.Order, res.Items); err != nil {
			s.logger.Warn("order confirmation mail failed",
				zap.String("order", res.Order.ID), zap.Error(err))
		}
	}

	s.publisher.Publish(notify.EventOrderUpdate, notify.OrderEvent{
		Order:     res.Order,
		Items:     res.Items,
		UserName:  res.UserName,
		UserEmail: res.UserEmail,
	})

	return res, nil
}

// GetOrderDetails возвращает заказ пользователя вместе с позициями.
func (s *Service) GetOrderDetails(ctx context.Context, userID int64, orderID string) (*model.Order, []model.OrderItem, error) {
	return s.repo.GetOrderWithItems(ctx, orderID, userID)
}

// ListUserOrders возвращает список заказов пользователя.
func (s *Service) ListUserOrders(ctx context.Context, userID int64) ([]model.Order, error) {
	return s.repo.ListOrdersByUser(ctx, userID)
}

// ListShopOrders возвращает заказы точки питания владельца.
func (s *Service) ListShopOrders(ctx context.Context, ownerID int64) (int64, []repository.ShopOrder, error) {
	return s.repo.ListShopOrders(ctx, ownerID)
}
