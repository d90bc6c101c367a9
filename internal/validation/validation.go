// Package validation содержит функции валидации входных данных.
package validation

import "github.com/mmeshcher/campick-system/internal/model"

var orderStatuses = map[model.OrderStatus]struct{}{
	model.OrderStatusPending:   {},
	model.OrderStatusAccepted:  {},
	model.OrderStatusPreparing: {},
	model.OrderStatusReady:     {},
	model.OrderStatusPickedUp:  {},
	model.OrderStatusDelivered: {},
	model.OrderStatusDiscarded: {},
	model.OrderStatusRejected:  {},
}

// IsValidOrderStatus проверяет, что статус входит в распознаваемый набор.
func IsValidOrderStatus(s model.OrderStatus) bool {
	_, ok := orderStatuses[s]
	return ok
}

// IsValidVerificationStatus проверяет статус проверки платежа.
func IsValidVerificationStatus(s model.VerificationStatus) bool {
	switch s {
	case model.VerificationPending, model.VerificationVerified, model.VerificationRejected:
		return true
	}
	return false
}

// IsTerminalOrderStatus сообщает, что после статуса побочные эффекты
// (выручка, предупреждения) повторно не применяются.
func IsTerminalOrderStatus(s model.OrderStatus) bool {
	switch s {
	case model.OrderStatusPickedUp, model.OrderStatusDelivered,
		model.OrderStatusDiscarded, model.OrderStatusRejected:
		return true
	}
	return false
}

// strictGraph описывает допустимые переходы строгого режима.
// Исходная система позволяла любой переход; строгий режим включается
// отдельной настройкой и не является поведением по умолчанию.
var strictGraph = map[model.OrderStatus][]model.OrderStatus{
	model.OrderStatusPending:   {model.OrderStatusAccepted, model.OrderStatusPreparing, model.OrderStatusRejected, model.OrderStatusDiscarded},
	model.OrderStatusAccepted:  {model.OrderStatusPreparing, model.OrderStatusReady, model.OrderStatusDiscarded},
	model.OrderStatusPreparing: {model.OrderStatusReady, model.OrderStatusDiscarded},
	model.OrderStatusReady:     {model.OrderStatusPickedUp, model.OrderStatusDelivered, model.OrderStatusDiscarded},
}

// IsAllowedTransition проверяет переход по строгому графу статусов.
// Повторная установка текущего статуса переходом не считается.
func IsAllowedTransition(from, to model.OrderStatus) bool {
	if from == to {
		return false
	}
	for _, next := range strictGraph[from] {
		if next == to {
			return true
		}
	}
	return false
}
