package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/saveitforlater/checkout/internal/domain"
	"github.com/saveitforlater/checkout/internal/service/checkout"
	"github.com/saveitforlater/checkout/internal/service/gateway"
)

type addressPayload struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

func (a addressPayload) toDomain() domain.Address {
	return domain.Address{
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
	}
}

func addressView(a domain.Address) addressPayload {
	return addressPayload{
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
	}
}

type createOrderRequest struct {
	ShippingAddress addressPayload `json:"shipping_address"`
	BillingAddress  addressPayload `json:"billing_address"`
	CustomerEmail   string         `json:"customer_email"`
	CustomerPhone   string         `json:"customer_phone"`
	Notes           string         `json:"notes"`
	PaymentMethod   string         `json:"payment_method"`
}

type payOrderRequest struct {
	CardNumber string `json:"card_number"`
	HolderName string `json:"holder_name"`
	Expiry     string `json:"expiry"`
	CVV        string `json:"cvv"`
}

type setStatusRequest struct {
	Status string `json:"status"`
}

type orderItemView struct {
	ID          string `json:"id"`
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	SKU         string `json:"sku"`
	Qty         int32  `json:"qty"`
	Price       string `json:"price"`
	Subtotal    string `json:"subtotal"`
}

type paymentView struct {
	ID             string `json:"id"`
	Method         string `json:"method"`
	Status         string `json:"status"`
	Amount         string `json:"amount"`
	TransactionRef string `json:"transaction_ref,omitempty"`
	CardBrand      string `json:"card_brand,omitempty"`
	CardLastFour   string `json:"card_last_four,omitempty"`
	Gateway        string `json:"gateway,omitempty"`
	PaidAt         string `json:"paid_at,omitempty"`
}

type orderView struct {
	ID              string          `json:"id"`
	Number          string          `json:"number"`
	CustomerID      string          `json:"customer_id"`
	Status          string          `json:"status"`
	Total           string          `json:"total"`
	ShippingAddress addressPayload  `json:"shipping_address"`
	BillingAddress  addressPayload  `json:"billing_address"`
	CustomerEmail   string          `json:"customer_email,omitempty"`
	CustomerPhone   string          `json:"customer_phone,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	Items           []orderItemView `json:"items"`
	Payment         paymentView     `json:"payment"`
	CreatedAt       string          `json:"created_at"`
	UpdatedAt       string          `json:"updated_at"`
}

func renderOrder(order domain.Order) orderView {
	items := make([]orderItemView, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemView{
			ID:          item.ID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			SKU:         item.SKU,
			Qty:         item.Qty,
			Price:       item.Price.StringFixed(2),
			Subtotal:    item.Subtotal.StringFixed(2),
		})
	}

	payment := paymentView{
		ID:             order.Payment.ID,
		Method:         string(order.Payment.Method),
		Status:         string(order.Payment.Status),
		Amount:         order.Payment.Amount.StringFixed(2),
		TransactionRef: order.Payment.TransactionRef,
		CardBrand:      order.Payment.CardBrand,
		CardLastFour:   order.Payment.CardLastFour,
		Gateway:        order.Payment.Gateway,
	}
	if !order.Payment.PaidAt.IsZero() {
		payment.PaidAt = order.Payment.PaidAt.Format(time.RFC3339)
	}

	return orderView{
		ID:              order.ID,
		Number:          order.Number,
		CustomerID:      order.CustomerID,
		Status:          string(order.Status),
		Total:           order.Total.StringFixed(2),
		ShippingAddress: addressView(order.ShippingAddress),
		BillingAddress:  addressView(order.BillingAddress),
		CustomerEmail:   order.CustomerEmail,
		CustomerPhone:   order.CustomerPhone,
		Notes:           order.Notes,
		Items:           items,
		Payment:         payment,
		CreatedAt:       order.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       order.UpdatedAt.Format(time.RFC3339),
	}
}

func renderOrders(orders []domain.Order) []orderView {
	views := make([]orderView, 0, len(orders))
	for _, order := range orders {
		views = append(views, renderOrder(order))
	}
	return views
}

func (s *Server) handleCreateOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	order, err := s.svc.CreateOrder(c.Request.Context(), principalFrom(c), checkout.CreateOrderInput{
		ShippingAddress: req.ShippingAddress.toDomain(),
		BillingAddress:  req.BillingAddress.toDomain(),
		CustomerEmail:   req.CustomerEmail,
		CustomerPhone:   req.CustomerPhone,
		Notes:           req.Notes,
		PaymentMethod:   domain.PaymentMethod(req.PaymentMethod),
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, renderOrder(order))
}

func (s *Server) handlePayOrder(c *gin.Context) {
	var req payOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	order, err := s.svc.PayOrder(c.Request.Context(), principalFrom(c), c.Param("id"), gateway.CardDetails{
		Number:     req.CardNumber,
		HolderName: req.HolderName,
		Expiry:     req.Expiry,
		CVV:        req.CVV,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, renderOrder(order))
}

func (s *Server) handleGetOrder(c *gin.Context) {
	order, err := s.svc.GetOrder(c.Request.Context(), principalFrom(c), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, renderOrder(order))
}

func (s *Server) handleListMyOrders(c *gin.Context) {
	limit, offset := pagination(c)
	orders, err := s.svc.ListOrders(c.Request.Context(), principalFrom(c), limit, offset)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": renderOrders(orders)})
}

func (s *Server) handleListAllOrders(c *gin.Context) {
	limit, offset := pagination(c)
	orders, err := s.svc.ListAllOrders(c.Request.Context(), principalFrom(c), limit, offset)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": renderOrders(orders)})
}

func (s *Server) handleSetOrderStatus(c *gin.Context) {
	var req setStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	order, err := s.svc.SetOrderStatus(c.Request.Context(), principalFrom(c), c.Param("id"), domain.OrderStatus(req.Status))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, renderOrder(order))
}

func (s *Server) handleSetPaymentStatus(c *gin.Context) {
	var req setStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	order, err := s.svc.SetPaymentStatus(c.Request.Context(), principalFrom(c), c.Param("id"), domain.PaymentStatus(req.Status))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, renderOrder(order))
}

func pagination(c *gin.Context) (int, int) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	return limit, offset
}
