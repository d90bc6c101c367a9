// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"

	"github.com/mmeshcher/campick-system/internal/model"
	"github.com/mmeshcher/campick-system/internal/pricing"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrUserExists возвращается при попытке создать пользователя с уже существующим email.
var (
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound возвращается, если пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrShopNotFound возвращается, если точка питания не найдена.
	ErrShopNotFound = errors.New("shop not found")
	// ErrOrderNotFound возвращается, если заказ не найден.
	ErrOrderNotFound = errors.New("order not found")
	// ErrPaymentNotFound возвращается, если платёж не найден.
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrNotShopOwner возвращается при попытке изменить чужой заказ.
	ErrNotShopOwner = errors.New("actor does not own the shop")
)

// TransitionValidator проверяет допустимость перехода статуса заказа.
// Вызывается внутри транзакции, когда строка заказа уже заблокирована.
type TransitionValidator func(from, to model.OrderStatus) error

// TransitionResult описывает итог смены статуса заказа.
type TransitionResult struct {
	Order          model.Order
	Items          []model.OrderItem
	UserName       string
	UserEmail      string
	RevenueApplied bool
	AlertApplied   bool
}

// CreatePaidOrderParams — параметры создания заказа вместе с платежом.
// Результат сверки суммы уже известен: извлечение выполняется до
// открытия транзакции и соединение БД во время сетевого вызова не держится.
type CreatePaidOrderParams struct {
	UserID          int64
	ShopID          int64
	Items           []model.OrderItemRequest
	Method          string
	ScreenshotURL   string
	ClaimedAmount   int64
	ExtractedAmount int64
	BankName        string
	PayFrom         string
	PayTo           string
	ExtractionRaw   string
	Verification    model.VerificationStatus
	// AdvanceOrder переводит заказ сразу в preparing/completed
	// (режим автоподтверждения проверенного платежа).
	AdvanceOrder bool
}

// ShopOrder — заказ в выдаче владельца точки питания вместе с покупателем.
type ShopOrder struct {
	Order     model.Order
	UserName  string
	UserEmail string
	Items     []model.OrderItem
}

// PaymentCascade описывает итог ручной смены статуса платежа и
// каскадного изменения заказа.
type PaymentCascade struct {
	Payment model.Payment
	Order   model.Order
	Items   []model.OrderItem
}

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// withRetry повторяет транзакцию при ошибках сериализации, дедлоках
// и сетевых сбоях. Ретраи не применяются к доменным ошибкам.
func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	backoff := retry.WithMaxRetries(3, retry.NewConstant(1*time.Second))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				return retry.RetryableError(err)
			}
		}

		if isConnectionError(err) {
			return retry.RetryableError(err)
		}

		return err
	})
}

func isConnectionError(err error) bool {
	// Упрощенная проверка на ошибки соединения
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreateUser создаёт нового пользователя.
func (r *PostgresRepository) CreateUser(ctx context.Context, name, email string, passwordHash []byte, role model.Role) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (user_name, email, password_hash, role) VALUES ($1, $2, $3, $4) RETURNING id`,
		name, email, passwordHash, string(role),
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return 0, fmt.Errorf("%w: %s", ErrUserExists, email)
		}
		return 0, fmt.Errorf("create user: %w", err)
	}
	return id, nil
}

const userColumns = `id, user_name, email, password_hash, role, is_verified, alert_count, created_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	var role string
	err := row.Scan(&u.ID, &u.UserName, &u.Email, &u.PasswordHash, &role, &u.IsVerified, &u.AlertCount, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.Role = model.Role(role)
	return &u, nil
}

// GetUserByEmail возвращает пользователя по email.
func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

// GetUserByID возвращает пользователя по идентификатору.
func (r *PostgresRepository) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetShopByOwner возвращает точку питания по её владельцу.
func (r *PostgresRepository) GetShopByOwner(ctx context.Context, ownerID int64) (*model.Shop, error) {
	var s model.Shop
	err := r.pool.QueryRow(ctx,
		`SELECT id, owner_id, name, email, total_revenue, created_at FROM shops WHERE owner_id = $1`,
		ownerID,
	).Scan(&s.ID, &s.OwnerID, &s.Name, &s.Email, &s.TotalRevenue, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrShopNotFound
		}
		return nil, fmt.Errorf("get shop: %w", err)
	}
	return &s, nil
}

// menuItemsTx читает позиции меню точки питания с блокировкой FOR SHARE:
// цена не может измениться, пока заказ не записан в той же транзакции.
func menuItemsTx(ctx context.Context, tx pgx.Tx, shopID int64, items []model.OrderItemRequest) (map[int64]model.MenuItem, error) {
	ids := make([]int64, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ItemID)
	}

	rows, err := tx.Query(ctx,
		`SELECT id, name, price FROM menu_items WHERE shop_id = $1 AND id = ANY($2) FOR SHARE`,
		shopID, ids,
	)
	if err != nil {
		return nil, fmt.Errorf("select menu items: %w", err)
	}
	defer rows.Close()

	menu := make(map[int64]model.MenuItem, len(ids))
	for rows.Next() {
		var mi model.MenuItem
		if err := rows.Scan(&mi.ID, &mi.Name, &mi.Price); err != nil {
			return nil, fmt.Errorf("scan menu item: %w", err)
		}
		mi.ShopID = shopID
		menu[mi.ID] = mi
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return menu, nil
}

func insertOrderTx(ctx context.Context, tx pgx.Tx, order *model.Order) error {
	err := tx.QueryRow(ctx,
		`INSERT INTO orders (id, user_id, shop_id, total_price, status, payment_status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at, updated_at`,
		order.ID, order.UserID, order.ShopID, order.TotalPrice,
		string(order.Status), string(order.PaymentStatus),
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return ErrShopNotFound
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func insertOrderItemsTx(ctx context.Context, tx pgx.Tx, orderID string, lines []pricing.Line, menu map[int64]model.MenuItem) ([]model.OrderItem, error) {
	res := make([]model.OrderItem, 0, len(lines))
	for _, line := range lines {
		var id int64
		err := tx.QueryRow(ctx,
			`INSERT INTO order_items (order_id, item_id, quantity, price) VALUES ($1, $2, $3, $4) RETURNING id`,
			orderID, line.ItemID, line.Quantity, line.Total,
		).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("insert order item: %w", err)
		}

		res = append(res, model.OrderItem{
			ID:       id,
			OrderID:  orderID,
			ItemID:   line.ItemID,
			ItemName: menu[line.ItemID].Name,
			Quantity: line.Quantity,
			Price:    line.Total,
		})
	}
	return res, nil
}

func orderItemsTx(ctx context.Context, q interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}, orderID string) ([]model.OrderItem, error) {
	rows, err := q.Query(ctx,
		`SELECT oi.id, oi.order_id, oi.item_id, mi.name, oi.quantity, oi.price
		 FROM order_items oi
		 JOIN menu_items mi ON mi.id = oi.item_id
		 WHERE oi.order_id = $1
		 ORDER BY oi.id`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("select order items: %w", err)
	}
	defer rows.Close()

	var items []model.OrderItem
	for rows.Next() {
		var it model.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ItemID, &it.ItemName, &it.Quantity, &it.Price); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, it)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

// CreateOrder создаёт заказ и все его позиции в одной транзакции.
// Стоимость вычисляется по ценам меню, прочитанным в этой же транзакции.
// Любая некорректная позиция откатывает заказ целиком.
func (r *PostgresRepository) CreateOrder(ctx context.Context, userID, shopID int64, items []model.OrderItemRequest) (*model.Order, []model.OrderItem, error) {
	var (
		order      *model.Order
		orderItems []model.OrderItem
	)

	err := r.withRetry(ctx, func() error {
		var err error
		order, orderItems, err = r.createOrderTx(ctx, userID, shopID, items)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	return order, orderItems, nil
}

func (r *PostgresRepository) createOrderTx(ctx context.Context, userID, shopID int64, items []model.OrderItemRequest) (*model.Order, []model.OrderItem, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	menu, err := menuItemsTx(ctx, tx, shopID, items)
	if err != nil {
		return nil, nil, err
	}

	prices := make(map[int64]int64, len(menu))
	for id, mi := range menu {
		prices[id] = mi.Price
	}

	lines, total, err := pricing.Calculate(prices, items)
	if err != nil {
		return nil, nil, err
	}

	order := &model.Order{
		ID:            uuid.NewString(),
		UserID:        userID,
		ShopID:        shopID,
		TotalPrice:    total,
		Status:        model.OrderStatusPending,
		PaymentStatus: model.PaymentStatusPending,
	}

	if err := insertOrderTx(ctx, tx, order); err != nil {
		return nil, nil, err
	}

	orderItems, err := insertOrderItemsTx(ctx, tx, order.ID, lines, menu)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit tx: %w", err)
	}

	return order, orderItems, nil
}

// CreatePaidOrder создаёт заказ, его позиции и запись о платеже в одной
// короткой транзакции. Результат проверки платежа передаётся готовым:
// внешний вызов извлечения уже завершён к этому моменту.
func (r *PostgresRepository) CreatePaidOrder(ctx context.Context, p CreatePaidOrderParams) (*model.Order, []model.OrderItem, *model.Payment, error) {
	var (
		order      *model.Order
		orderItems []model.OrderItem
		payment    *model.Payment
	)

	err := r.withRetry(ctx, func() error {
		var err error
		order, orderItems, payment, err = r.createPaidOrderTx(ctx, p)
		return err
	})
	if err != nil {
		return nil, nil, nil, err
	}

	return order, orderItems, payment, nil
}

func (r *PostgresRepository) createPaidOrderTx(ctx context.Context, p CreatePaidOrderParams) (*model.Order, []model.OrderItem, *model.Payment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	menu, err := menuItemsTx(ctx, tx, p.ShopID, p.Items)
	if err != nil {
		return nil, nil, nil, err
	}

	prices := make(map[int64]int64, len(menu))
	for id, mi := range menu {
		prices[id] = mi.Price
	}

	lines, total, err := pricing.Calculate(prices, p.Items)
	if err != nil {
		return nil, nil, nil, err
	}

	order := &model.Order{
		ID:            uuid.NewString(),
		UserID:        p.UserID,
		ShopID:        p.ShopID,
		TotalPrice:    total,
		Status:        model.OrderStatusPending,
		PaymentStatus: model.PaymentStatusPending,
	}
	if p.AdvanceOrder && p.Verification == model.VerificationVerified {
		order.Status = model.OrderStatusPreparing
		order.PaymentStatus = model.PaymentStatusCompleted
	}

	if err := insertOrderTx(ctx, tx, order); err != nil {
		return nil, nil, nil, err
	}

	orderItems, err := insertOrderItemsTx(ctx, tx, order.ID, lines, menu)
	if err != nil {
		return nil, nil, nil, err
	}

	payment := &model.Payment{
		ID:                 uuid.NewString(),
		OrderID:            order.ID,
		UserID:             p.UserID,
		ShopID:             p.ShopID,
		ClaimedAmount:      p.ClaimedAmount,
		ExtractedAmount:    p.ExtractedAmount,
		Method:             p.Method,
		ScreenshotURL:      p.ScreenshotURL,
		BankName:           p.BankName,
		PayFrom:            p.PayFrom,
		PayTo:              p.PayTo,
		ExtractionRaw:      p.ExtractionRaw,
		VerificationStatus: p.Verification,
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO payments (id, order_id, user_id, shop_id, claimed_amount, extracted_amount,
		                       payment_method, screenshot_url, bank_name, pay_from, pay_to, extraction_raw, verification_status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING created_at`,
		payment.ID, payment.OrderID, payment.UserID, payment.ShopID, payment.ClaimedAmount,
		payment.ExtractedAmount, payment.Method, payment.ScreenshotURL, payment.BankName,
		payment.PayFrom, payment.PayTo, payment.ExtractionRaw, string(payment.VerificationStatus),
	).Scan(&payment.CreatedAt)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("insert payment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, nil, fmt.Errorf("commit tx: %w", err)
	}

	return order, orderItems, payment, nil
}

// TransitionOrder меняет статус заказа и применяет побочные эффекты в
// одной транзакции: удаление позиций при rejected, начисление выручки
// при delivered/pickedup, предупреждение покупателю при discarded.
// Строка заказа блокируется FOR UPDATE, эффекты защищены от повторного
// применения проверкой текущего статуса.
func (r *PostgresRepository) TransitionOrder(ctx context.Context, orderID string, ownerID int64, status model.OrderStatus, validate TransitionValidator) (*TransitionResult, error) {
	var res *TransitionResult

	err := r.withRetry(ctx, func() error {
		var err error
		res, err = r.transitionOrderTx(ctx, orderID, ownerID, status, validate)
		return err
	})
	if err != nil {
		return nil, err
	}

	return res, nil
}

func (r *PostgresRepository) transitionOrderTx(ctx context.Context, orderID string, ownerID int64, status model.OrderStatus, validate TransitionValidator) (*TransitionResult, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	res := &TransitionResult{}
	o := &res.Order

	var prevStatus, paymentStatus string
	err = tx.QueryRow(ctx,
		`SELECT o.id, o.user_id, o.shop_id, o.total_price, o.status, o.payment_status,
		        o.created_at, o.updated_at, u.user_name, u.email
		 FROM orders o
		 JOIN users u ON u.id = o.user_id
		 WHERE o.id = $1
		 FOR UPDATE OF o`,
		orderID,
	).Scan(&o.ID, &o.UserID, &o.ShopID, &o.TotalPrice, &prevStatus, &paymentStatus,
		&o.CreatedAt, &o.UpdatedAt, &res.UserName, &res.UserEmail)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("select order: %w", err)
	}
	o.PaymentStatus = model.PaymentStatus(paymentStatus)

	var dummy int
	err = tx.QueryRow(ctx, `SELECT 1 FROM shops WHERE id = $1 AND owner_id = $2`, o.ShopID, ownerID).Scan(&dummy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotShopOwner
		}
		return nil, fmt.Errorf("check shop ownership: %w", err)
	}

	prev := model.OrderStatus(prevStatus)
	if validate != nil {
		if err := validate(prev, status); err != nil {
			return nil, err
		}
	}

	switch status {
	case model.OrderStatusRejected:
		// Заказ остаётся, его позиции удаляются безвозвратно.
		if prev != model.OrderStatusRejected {
			if _, err := tx.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, orderID); err != nil {
				return nil, fmt.Errorf("delete order items: %w", err)
			}
		}

	case model.OrderStatusDelivered, model.OrderStatusPickedUp:
		// Выручка начисляется ровно один раз на заказ.
		if prev != model.OrderStatusDelivered && prev != model.OrderStatusPickedUp {
			if _, err := tx.Exec(ctx,
				`UPDATE shops SET total_revenue = total_revenue + $1 WHERE id = $2`,
				o.TotalPrice, o.ShopID,
			); err != nil {
				return nil, fmt.Errorf("update shop revenue: %w", err)
			}
			res.RevenueApplied = true
		}

	case model.OrderStatusDiscarded:
		if prev != model.OrderStatusDiscarded {
			if _, err := tx.Exec(ctx,
				`UPDATE users SET alert_count = alert_count + 1 WHERE id = $1`,
				o.UserID,
			); err != nil {
				return nil, fmt.Errorf("increment alert count: %w", err)
			}
			res.AlertApplied = true
		}
	}

	err = tx.QueryRow(ctx,
		`UPDATE orders SET status = $2, updated_at = now() WHERE id = $1 RETURNING updated_at`,
		orderID, string(status),
	).Scan(&o.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}
	o.Status = status

	res.Items, err = orderItemsTx(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return res, nil
}

// SetPaymentStatus меняет статус проверки платежа и каскадно — заказа:
// rejected переводит заказ в rejected и удаляет его позиции,
// verified переводит заказ в preparing. Обе записи в одной транзакции.
func (r *PostgresRepository) SetPaymentStatus(ctx context.Context, paymentID string, status model.VerificationStatus) (*PaymentCascade, error) {
	var res *PaymentCascade

	err := r.withRetry(ctx, func() error {
		var err error
		res, err = r.setPaymentStatusTx(ctx, paymentID, status)
		return err
	})
	if err != nil {
		return nil, err
	}

	return res, nil
}

func (r *PostgresRepository) setPaymentStatusTx(ctx context.Context, paymentID string, status model.VerificationStatus) (*PaymentCascade, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	res := &PaymentCascade{}
	p := &res.Payment

	var verification string
	err = tx.QueryRow(ctx,
		`SELECT id, order_id, user_id, shop_id, claimed_amount, extracted_amount, payment_method,
		        screenshot_url, bank_name, pay_from, pay_to, extraction_raw, verification_status, created_at
		 FROM payments WHERE id = $1 FOR UPDATE`,
		paymentID,
	).Scan(&p.ID, &p.OrderID, &p.UserID, &p.ShopID, &p.ClaimedAmount, &p.ExtractedAmount,
		&p.Method, &p.ScreenshotURL, &p.BankName, &p.PayFrom, &p.PayTo, &p.ExtractionRaw,
		&verification, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("select payment: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE payments SET verification_status = $2 WHERE id = $1`,
		paymentID, string(status),
	); err != nil {
		return nil, fmt.Errorf("update payment status: %w", err)
	}
	p.VerificationStatus = status

	o := &res.Order
	var orderStatus, paymentStatus string
	err = tx.QueryRow(ctx,
		`SELECT id, user_id, shop_id, total_price, status, payment_status, created_at, updated_at
		 FROM orders WHERE id = $1 FOR UPDATE`,
		p.OrderID,
	).Scan(&o.ID, &o.UserID, &o.ShopID, &o.TotalPrice, &orderStatus, &paymentStatus, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("select order: %w", err)
	}
	o.Status = model.OrderStatus(orderStatus)
	o.PaymentStatus = model.PaymentStatus(paymentStatus)

	switch status {
	case model.VerificationRejected:
		if o.Status != model.OrderStatusRejected {
			if _, err := tx.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, o.ID); err != nil {
				return nil, fmt.Errorf("delete order items: %w", err)
			}
		}
		err = tx.QueryRow(ctx,
			`UPDATE orders SET status = $2, updated_at = now() WHERE id = $1 RETURNING updated_at`,
			o.ID, string(model.OrderStatusRejected),
		).Scan(&o.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("update order status: %w", err)
		}
		o.Status = model.OrderStatusRejected

	case model.VerificationVerified:
		err = tx.QueryRow(ctx,
			`UPDATE orders SET status = $2, payment_status = $3, updated_at = now() WHERE id = $1 RETURNING updated_at`,
			o.ID, string(model.OrderStatusPreparing), string(model.PaymentStatusCompleted),
		).Scan(&o.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("update order status: %w", err)
		}
		o.Status = model.OrderStatusPreparing
		o.PaymentStatus = model.PaymentStatusCompleted
	}

	res.Items, err = orderItemsTx(ctx, tx, o.ID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return res, nil
}

const orderColumns = `id, user_id, shop_id, total_price, status, payment_status, created_at, updated_at`

func scanOrder(row pgx.Row) (*model.Order, error) {
	var o model.Order
	var status, paymentStatus string
	err := row.Scan(&o.ID, &o.UserID, &o.ShopID, &o.TotalPrice, &status, &paymentStatus, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	o.Status = model.OrderStatus(status)
	o.PaymentStatus = model.PaymentStatus(paymentStatus)
	return &o, nil
}

// GetOrderWithItems возвращает заказ пользователя вместе с позициями
// и названиями блюд. Чужие заказы не видны.
func (r *PostgresRepository) GetOrderWithItems(ctx context.Context, orderID string, userID int64) (*model.Order, []model.OrderItem, error) {
	order, err := scanOrder(r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 AND user_id = $2`,
		orderID, userID,
	))
	if err != nil {
		return nil, nil, err
	}

	items, err := orderItemsTx(ctx, r.pool, orderID)
	if err != nil {
		return nil, nil, err
	}

	return order, items, nil
}

// ListOrdersByUser возвращает все заказы пользователя.
func (r *PostgresRepository) ListOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return orders, nil
}

// ListShopOrders возвращает заказы точки питания владельца вместе с
// покупателями и позициями.
func (r *PostgresRepository) ListShopOrders(ctx context.Context, ownerID int64) (int64, []ShopOrder, error) {
	shop, err := r.GetShopByOwner(ctx, ownerID)
	if err != nil {
		return 0, nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT o.id, o.user_id, o.shop_id, o.total_price, o.status, o.payment_status,
		        o.created_at, o.updated_at, u.user_name, u.email
		 FROM orders o
		 JOIN users u ON u.id = o.user_id
		 WHERE o.shop_id = $1
		 ORDER BY o.created_at DESC`,
		shop.ID,
	)
	if err != nil {
		return 0, nil, fmt.Errorf("select shop orders: %w", err)
	}
	defer rows.Close()

	var orders []ShopOrder
	for rows.Next() {
		var so ShopOrder
		var status, paymentStatus string
		if err := rows.Scan(&so.Order.ID, &so.Order.UserID, &so.Order.ShopID, &so.Order.TotalPrice,
			&status, &paymentStatus, &so.Order.CreatedAt, &so.Order.UpdatedAt,
			&so.UserName, &so.UserEmail); err != nil {
			return 0, nil, fmt.Errorf("scan shop order: %w", err)
		}
		so.Order.Status = model.OrderStatus(status)
		so.Order.PaymentStatus = model.PaymentStatus(paymentStatus)
		orders = append(orders, so)
	}

	if err := rows.Err(); err != nil {
		return 0, nil, fmt.Errorf("rows error: %w", err)
	}

	for i := range orders {
		items, err := orderItemsTx(ctx, r.pool, orders[i].Order.ID)
		if err != nil {
			return 0, nil, err
		}
		orders[i].Items = items
	}

	return shop.ID, orders, nil
}

// GetPaymentByID возвращает платёж по идентификатору.
func (r *PostgresRepository) GetPaymentByID(ctx context.Context, paymentID string) (*model.Payment, error) {
	var p model.Payment
	var verification string
	err := r.pool.QueryRow(ctx,
		`SELECT id, order_id, user_id, shop_id, claimed_amount, extracted_amount, payment_method,
		        screenshot_url, bank_name, pay_from, pay_to, extraction_raw, verification_status, created_at
		 FROM payments WHERE id = $1`,
		paymentID,
	).Scan(&p.ID, &p.OrderID, &p.UserID, &p.ShopID, &p.ClaimedAmount, &p.ExtractedAmount,
		&p.Method, &p.ScreenshotURL, &p.BankName, &p.PayFrom, &p.PayTo, &p.ExtractionRaw,
		&verification, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}
	p.VerificationStatus = model.VerificationStatus(verification)
	return &p, nil
}
