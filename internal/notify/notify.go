// Package notify рассылает события жизненного цикла заказов подключённым
// клиентам. Доставка строго после фиксации транзакции и без гарантий:
// сбой доставки никогда не влияет на сам заказ.
package notify

import "github.com/mmeshcher/campick-system/internal/model"

// EventNewOrder публикуется при создании заказа.
const EventNewOrder = "newOrder"

// EventOrderUpdate публикуется при смене статуса заказа или платежа.
const EventOrderUpdate = "orderUpdate"

// OrderEvent — денормализованная полезная нагрузка события: заказ,
// его позиции и покупатель. Фильтрация по точке питания — забота клиента.
type OrderEvent struct {
	Order     model.Order       `json:"order"`
	Items     []model.OrderItem `json:"items"`
	UserName  string            `json:"user_name"`
	UserEmail string            `json:"user_email"`
}

// Publisher публикует событие всем подписчикам. Реализации обязаны
// не блокировать вызывающего и молча переживать отсутствие подписчиков.
type Publisher interface {
	Publish(event string, payload any)
}

// Noop — заглушка для тестов и конфигураций без подписчиков.
type Noop struct{}

// Publish ничего не делает.
func (Noop) Publish(string, any) {}

// Multi рассылает событие в несколько издателей: например, в
// websocket-хаб и внешний брокер одновременно.
type Multi []Publisher

// Publish передаёт событие каждому издателю по очереди.
func (m Multi) Publish(event string, payload any) {
	for _, p := range m {
		p.Publish(event, payload)
	}
}
