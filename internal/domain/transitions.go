package domain

// Таблицы легальных переходов статусов. Администраторская правка статуса
// заказа — сознательный обход таблицы (operational escape hatch), все
// остальные изменения статусов обязаны проходить через CanTransition.

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusConfirmed, OrderStatusCancelled, OrderStatusRefunded},
	OrderStatusConfirmed:  {OrderStatusProcessing, OrderStatusCancelled, OrderStatusRefunded},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled, OrderStatusRefunded},
	OrderStatusShipped:    {OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded},
	OrderStatusDelivered:  {},
	OrderStatusCancelled:  {},
	OrderStatusRefunded:   {},
}

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:    {PaymentStatusProcessing, PaymentStatusCancelled},
	PaymentStatusProcessing: {PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusCancelled},
	PaymentStatusCompleted:  {PaymentStatusRefunded},
	PaymentStatusFailed:     {},
	PaymentStatusRefunded:   {},
	PaymentStatusCancelled:  {},
}

// CanTransitionOrder проверяет легальность перехода статуса заказа.
func CanTransitionOrder(from, to OrderStatus) bool {
	return containsStatus(orderTransitions[from], to)
}

// CanTransitionPayment проверяет легальность перехода статуса платежа.
func CanTransitionPayment(from, to PaymentStatus) bool {
	return containsStatus(paymentTransitions[from], to)
}

// TransitionOrder применяет переход или возвращает IllegalTransitionError.
func TransitionOrder(o *Order, to OrderStatus) error {
	if !CanTransitionOrder(o.Status, to) {
		return &IllegalTransitionError{Entity: "order", From: string(o.Status), To: string(to)}
	}
	o.Status = to
	return nil
}

// TransitionPayment применяет переход или возвращает IllegalTransitionError.
func TransitionPayment(p *Payment, to PaymentStatus) error {
	if !CanTransitionPayment(p.Status, to) {
		return &IllegalTransitionError{Entity: "payment", From: string(p.Status), To: string(to)}
	}
	p.Status = to
	return nil
}

// AllowedOrderTransitions возвращает копию списка разрешённых переходов.
func AllowedOrderTransitions(from OrderStatus) []OrderStatus {
	allowed := orderTransitions[from]
	result := make([]OrderStatus, len(allowed))
	copy(result, allowed)
	return result
}

func containsStatus[S ~string](list []S, s S) bool {
	for _, candidate := range list {
		if candidate == s {
			return true
		}
	}
	return false
}
