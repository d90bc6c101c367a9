// Package model содержит доменные сущности сервиса кампусных заказов.
package model

import "time"

// Role описывает роль пользователя в системе.
type Role string

const (
	RoleStudent   Role = "student"
	RoleTeacher   Role = "teacher"
	RoleShopOwner Role = "shop_owner"
)

// MaxAlertCount — порог предупреждений, после которого студент
// блокируется для новых заказов и входа в систему.
const MaxAlertCount = 3

// User представляет зарегистрированного пользователя: студента,
// преподавателя или владельца точки питания.
type User struct {
	ID           int64
	UserName     string
	Email        string
	PasswordHash []byte
	Role         Role
	IsVerified   bool
	AlertCount   int
	CreatedAt    time.Time
}

// Restricted сообщает, заблокирован ли пользователь по числу предупреждений.
// Ограничение действует только для студентов.
func (u *User) Restricted() bool {
	return u.Role == RoleStudent && u.AlertCount >= MaxAlertCount
}

// Shop описывает точку питания. TotalRevenue хранится в копейках и
// увеличивается только при терминальных статусах delivered/pickedup.
type Shop struct {
	ID           int64
	OwnerID      int64
	Name         string
	Email        string
	TotalRevenue int64
	CreatedAt    time.Time
}

// MenuItem — позиция меню точки питания. Price хранится в копейках и
// является единственным доверенным источником цены при расчёте заказа.
type MenuItem struct {
	ID        int64
	ShopID    int64
	Name      string
	Price     int64
	CreatedAt time.Time
}

// OrderStatus описывает статус жизненного цикла заказа.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusAccepted  OrderStatus = "accepted"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusPickedUp  OrderStatus = "pickedup"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusDiscarded OrderStatus = "discarded"
	OrderStatusRejected  OrderStatus = "rejected"
)

// PaymentStatus описывает состояние оплаты заказа.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
)

// Order описывает заказ пользователя в одной точке питания.
// TotalPrice всегда вычисляется на сервере как сумма строчных итогов.
type Order struct {
	ID            string
	UserID        int64
	ShopID        int64
	TotalPrice    int64
	Status        OrderStatus
	PaymentStatus PaymentStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// OrderItem — строка заказа. Price хранит строчный итог
// (количество × цена позиции на момент заказа), а не цену за единицу.
type OrderItem struct {
	ID       int64
	OrderID  string
	ItemID   int64
	ItemName string
	Quantity int
	Price    int64
}

// OrderItemRequest — позиция заказа в том виде, в котором её присылает
// клиент. Цена клиентом не передаётся и не принимается.
type OrderItemRequest struct {
	ItemID   int64 `json:"item_id"`
	Quantity int   `json:"quantity"`
}

// VerificationStatus описывает состояние проверки платежа,
// независимое от статуса заказа.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationRejected VerificationStatus = "rejected"
)

// Payment описывает попытку оплаты заказа по скриншоту перевода.
// Суммы в копейках; извлечённые из скриншота данные сохраняются
// для ручной проверки.
type Payment struct {
	ID                 string
	OrderID            string
	UserID             int64
	ShopID             int64
	ClaimedAmount      int64
	ExtractedAmount    int64
	Method             string
	ScreenshotURL      string
	BankName           string
	PayFrom            string
	PayTo              string
	ExtractionRaw      string
	VerificationStatus VerificationStatus
	CreatedAt          time.Time
}
