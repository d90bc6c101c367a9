// Package pricing вычисляет авторитетную стоимость заказа по ценам меню.
package pricing

import (
	"errors"
	"fmt"

	"github.com/mmeshcher/campick-system/internal/model"
)

// ErrUnknownItem возвращается, если позиция отсутствует в меню точки
// питания. Ссылка на чужую позицию — признак подделки запроса, а не
// обычное "не найдено".
var (
	ErrUnknownItem = errors.New("menu item not found or does not belong to the shop")
	// ErrBadQuantity возвращается при нулевом или отрицательном количестве.
	ErrBadQuantity = errors.New("item quantity must be positive")
	// ErrEmptyOrder возвращается для заказа без позиций.
	ErrEmptyOrder = errors.New("order has no items")
)

// Line — рассчитанная строка заказа. Total хранит строчный итог
// в копейках: количество × цена позиции.
type Line struct {
	ItemID   int64
	Quantity int
	Total    int64
}

// Calculate вычисляет строчные итоги и общую стоимость заказа.
// prices — цены позиций меню, прочитанные в той же транзакции,
// в которой будет записан заказ. Цены клиента не учитываются.
// Любая некорректная строка отвергает заказ целиком.
func Calculate(prices map[int64]int64, items []model.OrderItemRequest) ([]Line, int64, error) {
	if len(items) == 0 {
		return nil, 0, ErrEmptyOrder
	}

	lines := make([]Line, 0, len(items))
	var total int64

	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, 0, fmt.Errorf("%w: item %d", ErrBadQuantity, it.ItemID)
		}

		price, ok := prices[it.ItemID]
		if !ok {
			return nil, 0, fmt.Errorf("%w: item %d", ErrUnknownItem, it.ItemID)
		}

		lineTotal := price * int64(it.Quantity)
		lines = append(lines, Line{
			ItemID:   it.ItemID,
			Quantity: it.Quantity,
			Total:    lineTotal,
		})
		total += lineTotal
	}

	return lines, total, nil
}
