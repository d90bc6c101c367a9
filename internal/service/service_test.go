package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/campick-system/internal/extraction"
	"github.com/mmeshcher/campick-system/internal/model"
	"github.com/mmeshcher/campick-system/internal/repository"
)

type stubRepo struct {
	user       *model.User
	userErr    error
	order      *model.Order
	items      []model.OrderItem
	createErr  error
	transition *repository.TransitionResult
	transErr   error

	paidOrder      *model.Order
	paidItems      []model.OrderItem
	paidPayment    *model.Payment
	paidErr        error
	lastPaidParams repository.CreatePaidOrderParams

	cascade    *repository.PaymentCascade
	cascadeErr error

	payment *model.Payment

	createUserID  int64
	createUserErr error

	lastValidator repository.TransitionValidator
}

func (s *stubRepo) Close() error { return nil }

func (s *stubRepo) CreateUser(ctx context.Context, name, email string, passwordHash []byte, role model.Role) (int64, error) {
	return s.createUserID, s.createUserErr
}

func (s *stubRepo) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	if s.user == nil {
		return nil, repository.ErrUserNotFound
	}
	return s.user, s.userErr
}

func (s *stubRepo) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	if s.userErr != nil {
		return nil, s.userErr
	}
	if s.user == nil {
		return nil, repository.ErrUserNotFound
	}
	return s.user, nil
}

func (s *stubRepo) GetShopByOwner(ctx context.Context, ownerID int64) (*model.Shop, error) {
	return nil, repository.ErrShopNotFound
}

func (s *stubRepo) CreateOrder(ctx context.Context, userID, shopID int64, items []model.OrderItemRequest) (*model.Order, []model.OrderItem, error) {
	if s.createErr != nil {
		return nil, nil, s.createErr
	}
	return s.order, s.items, nil
}

func (s *stubRepo) CreatePaidOrder(ctx context.Context, p repository.CreatePaidOrderParams) (*model.Order, []model.OrderItem, *model.Payment, error) {
	s.lastPaidParams = p
	if s.paidErr != nil {
		return nil, nil, nil, s.paidErr
	}
	return s.paidOrder, s.paidItems, s.paidPayment, nil
}

func (s *stubRepo) TransitionOrder(ctx context.Context, orderID string, ownerID int64, status model.OrderStatus, validate repository.TransitionValidator) (*repository.TransitionResult, error) {
	s.lastValidator = validate
	if s.transErr != nil {
		return nil, s.transErr
	}
	if validate != nil && s.transition != nil {
		if err := validate(s.transition.Order.Status, status); err != nil {
			return nil, err
		}
	}
	if s.transition != nil {
		res := *s.transition
		res.Order.Status = status
		return &res, nil
	}
	return nil, repository.ErrOrderNotFound
}

func (s *stubRepo) SetPaymentStatus(ctx context.Context, paymentID string, status model.VerificationStatus) (*repository.PaymentCascade, error) {
	if s.cascadeErr != nil {
		return nil, s.cascadeErr
	}
	return s.cascade, nil
}

func (s *stubRepo) GetOrderWithItems(ctx context.Context, orderID string, userID int64) (*model.Order, []model.OrderItem, error) {
	if s.order == nil {
		return nil, nil, repository.ErrOrderNotFound
	}
	return s.order, s.items, nil
}

func (s *stubRepo) ListOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	if s.order == nil {
		return nil, nil
	}
	return []model.Order{*s.order}, nil
}

func (s *stubRepo) ListShopOrders(ctx context.Context, ownerID int64) (int64, []repository.ShopOrder, error) {
	return 0, nil, repository.ErrShopNotFound
}

func (s *stubRepo) GetPaymentByID(ctx context.Context, paymentID string) (*model.Payment, error) {
	if s.payment == nil {
		return nil, repository.ErrPaymentNotFound
	}
	return s.payment, nil
}

type stubExtractor struct {
	result *extraction.Result
	err    error
}

func (s *stubExtractor) Extract(ctx context.Context, screenshotURL string) (*extraction.Result, error) {
	return s.result, s.err
}

type recordedEvent struct {
	event   string
	payload any
}

type stubPublisher struct {
	events []recordedEvent
}

func (s *stubPublisher) Publish(event string, payload any) {
	s.events = append(s.events, recordedEvent{event: event, payload: payload})
}

type stubMailer struct {
	sent int
	err  error
}

func (s *stubMailer) SendOrderConfirmation(to, userName string, order model.Order, items []model.OrderItem) error {
	s.sent++
	return s.err
}

func newTestService(repo *stubRepo, ext extraction.Extractor, pub *stubPublisher, m *stubMailer, opts Options) *Service {
	if ext == nil {
		ext = &stubExtractor{}
	}
	if m == nil {
		m = &stubMailer{}
	}
	return NewService(repo, ext, pub, m, zap.NewNop(), opts)
}

func hashPasswordForTest(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
}

func studentUser() *model.User {
	return &model.User{ID: 1, UserName: "Ali", Email: "ali@campus.edu", Role: model.RoleStudent}
}

func TestCreateOrder_PublishesNewOrderEvent(t *testing.T) {
	repo := &stubRepo{
		user:  studentUser(),
		order: &model.Order{ID: "o-1", UserID: 1, ShopID: 2, TotalPrice: 13000, Status: model.OrderStatusPending},
		items: []model.OrderItem{{ItemID: 1, Quantity: 2, Price: 10000}},
	}
	pub := &stubPublisher{}
	svc := newTestService(repo, nil, pub, nil, Options{})

	order, _, err := svc.CreateOrder(context.Background(), 1, 2, []model.OrderItemRequest{{ItemID: 1, Quantity: 2}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.TotalPrice != 13000 {
		t.Errorf("total = %d, want 13000", order.TotalPrice)
	}
	if len(pub.events) != 1 || pub.events[0].event != "newOrder" {
		t.Fatalf("expected one newOrder event, got %+v", pub.events)
	}
}

func TestCreateOrder_RestrictedStudent(t *testing.T) {
	u := studentUser()
	u.AlertCount = model.MaxAlertCount
	repo := &stubRepo{user: u}
	pub := &stubPublisher{}
	svc := newTestService(repo, nil, pub, nil, Options{})

	_, _, err := svc.CreateOrder(context.Background(), 1, 2, []model.OrderItemRequest{{ItemID: 1, Quantity: 1}})
	if !errors.Is(err, ErrAccountRestricted) {
		t.Fatalf("expected ErrAccountRestricted, got %v", err)
	}
	if len(pub.events) != 0 {
		t.Errorf("no event expected, got %+v", pub.events)
	}
}

func TestCreateOrder_ShopOwnerForbidden(t *testing.T) {
	repo := &stubRepo{user: &model.User{ID: 5, Role: model.RoleShopOwner}}
	svc := newTestService(repo, nil, &stubPublisher{}, nil, Options{})

	_, _, err := svc.CreateOrder(context.Background(), 5, 2, []model.OrderItemRequest{{ItemID: 1, Quantity: 1}})
	if !errors.Is(err, ErrOrdersForbidden) {
		t.Fatalf("expected ErrOrdersForbidden, got %v", err)
	}
}

func TestCreateOrder_RestrictedTeacherAllowed(t *testing.T) {
	u := &model.User{ID: 3, Role: model.RoleTeacher, AlertCount: model.MaxAlertCount + 1}
	repo := &stubRepo{
		user:  u,
		order: &model.Order{ID: "o-2", UserID: 3, Status: model.OrderStatusPending},
	}
	svc := newTestService(repo, nil, &stubPublisher{}, nil, Options{})

	_, _, err := svc.CreateOrder(context.Background(), 3, 2, []model.OrderItemRequest{{ItemID: 1, Quantity: 1}})
	if err != nil {
		t.Fatalf("teacher should not be alert-restricted: %v", err)
	}
}

func TestChangeOrderStatus_InvalidStatus(t *testing.T) {
	svc := newTestService(&stubRepo{}, nil, &stubPublisher{}, nil, Options{})

	_, err := svc.ChangeOrderStatus(context.Background(), 1, "o-1", "shipped")
	if !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestChangeOrderStatus_SendsMailOnRevenue(t *testing.T) {
	repo := &stubRepo{
		transition: &repository.TransitionResult{
			Order:          model.Order{ID: "o-1", Status: model.OrderStatusReady},
			UserName:       "Ali",
			UserEmail:      "ali@campus.edu",
			RevenueApplied: true,
		},
	}
	pub := &stubPublisher{}
	m := &stubMailer{}
	svc := newTestService(repo, nil, pub, m, Options{})

	res, err := svc.ChangeOrderStatus(context.Background(), 1, "o-1", model.OrderStatusDelivered)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Order.Status != model.OrderStatusDelivered {
		t.Errorf("status = %s, want delivered", res.Order.Status)
	}
	if m.sent != 1 {
		t.Errorf("expected 1 confirmation mail, got %d", m.sent)
	}
	if len(pub.events) != 1 || pub.events[0].event != "orderUpdate" {
		t.Fatalf("expected one orderUpdate event, got %+v", pub.events)
	}
}

func TestChangeOrderStatus_MailFailureDoesNotFailRequest(t *testing.T) {
	repo := &stubRepo{
		transition: &repository.TransitionResult{
			Order:          model.Order{ID: "o-1", Status: model.OrderStatusReady},
			RevenueApplied: true,
		},
	}
	m := &stubMailer{err: errors.New("smtp down")}
	svc := newTestService(repo, nil, &stubPublisher{}, m, Options{})

	_, err := svc.ChangeOrderStatus(context.Background(), 1, "o-1", model.OrderStatusPickedUp)
	if err != nil {
		t.Fatalf("mail failure must not fail transition: %v", err)
	}
}

func TestChangeOrderStatus_NoMailWithoutRevenue(t *testing.T) {
	repo := &stubRepo{
		transition: &repository.TransitionResult{
			Order: model.Order{ID: "o-1", Status: model.OrderStatusPending},
		},
	}
	m := &stubMailer{}
	svc := newTestService(repo, nil, &stubPublisher{}, m, Options{})

	_, err := svc.ChangeOrderStatus(context.Background(), 1, "o-1", model.OrderStatusAccepted)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.sent != 0 {
		t.Errorf("no mail expected, got %d", m.sent)
	}
}

func TestChangeOrderStatus_StrictRejectsBadTransition(t *testing.T) {
	repo := &stubRepo{
		transition: &repository.TransitionResult{
			Order: model.Order{ID: "o-1", Status: model.OrderStatusDelivered},
		},
	}
	svc := newTestService(repo, nil, &stubPublisher{}, nil, Options{StrictTransitions: true})

	_, err := svc.ChangeOrderStatus(context.Background(), 1, "o-1", model.OrderStatusPending)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestChangeOrderStatus_PermissiveByDefault(t *testing.T) {
	repo := &stubRepo{
		transition: &repository.TransitionResult{
			Order: model.Order{ID: "o-1", Status: model.OrderStatusDelivered},
		},
	}
	svc := newTestService(repo, nil, &stubPublisher{}, nil, Options{})

	_, err := svc.ChangeOrderStatus(context.Background(), 1, "o-1", model.OrderStatusPending)
	if err != nil {
		t.Fatalf("default mode should allow any transition: %v", err)
	}
	if repo.lastValidator != nil {
		t.Error("no validator expected in permissive mode")
	}
}

func TestRegisterUser_PropagatesDuplicateError(t *testing.T) {
	repo := &stubRepo{createUserErr: repository.ErrUserExists}
	svc := newTestService(repo, nil, &stubPublisher{}, nil, Options{})

	_, err := svc.RegisterUser(context.Background(), "Ali", "ali@campus.edu", "pass", "")
	if !errors.Is(err, repository.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestRegisterUser_UnknownRole(t *testing.T) {
	svc := newTestService(&stubRepo{}, nil, &stubPublisher{}, nil, Options{})

	_, err := svc.RegisterUser(context.Background(), "Ali", "ali@campus.edu", "pass", "janitor")
	if !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}

func TestRegisterUser_MissingFields(t *testing.T) {
	svc := newTestService(&stubRepo{}, nil, &stubPublisher{}, nil, Options{})

	_, err := svc.RegisterUser(context.Background(), "", "ali@campus.edu", "pass", "")
	if !errors.Is(err, ErrMissingFields) {
		t.Fatalf("expected ErrMissingFields, got %v", err)
	}
}

func TestAuthenticateUser_InvalidCredentials(t *testing.T) {
	u := studentUser()
	hash, _ := hashPasswordForTest("correct")
	u.PasswordHash = hash
	repo := &stubRepo{user: u}
	svc := newTestService(repo, nil, &stubPublisher{}, nil, Options{})

	_, err := svc.AuthenticateUser(context.Background(), "ali@campus.edu", "wrong")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthenticateUser_RestrictedStudentBlocked(t *testing.T) {
	u := studentUser()
	u.AlertCount = model.MaxAlertCount
	hash, _ := hashPasswordForTest("correct")
	u.PasswordHash = hash
	repo := &stubRepo{user: u}
	svc := newTestService(repo, nil, &stubPublisher{}, nil, Options{})

	_, err := svc.AuthenticateUser(context.Background(), "ali@campus.edu", "correct")
	if !errors.Is(err, ErrAccountRestricted) {
		t.Fatalf("expected ErrAccountRestricted, got %v", err)
	}
}

func TestAuthenticateUser_OK(t *testing.T) {
	u := studentUser()
	hash, _ := hashPasswordForTest("correct")
	u.PasswordHash = hash
	repo := &stubRepo{user: u}
	svc := newTestService(repo, nil, &stubPublisher{}, nil, Options{})

	got, err := svc.AuthenticateUser(context.Background(), "ali@campus.edu", "correct")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != u.ID {
		t.Errorf("user id = %d, want %d", got.ID, u.ID)
	}
}
