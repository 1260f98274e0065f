package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/service"
)

const IdempotencyKeyHeader = "Idempotency-Key"

type LineItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,gt=0"`
}

type ShippingAddressRequest struct {
	Name       string `json:"name" binding:"required"`
	Street     string `json:"street" binding:"required"`
	City       string `json:"city" binding:"required"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode" binding:"required"`
	Country    string `json:"country" binding:"required"`
}

type PlaceOrderRequest struct {
	Items           []LineItemRequest      `json:"items" binding:"required,min=1,dive"`
	ShippingAddress ShippingAddressRequest `json:"shippingAddress"`
	PaymentMethod   string                 `json:"paymentMethod" binding:"required,oneof=credit_card paypal bank_transfer"`
	PaymentDetails  map[string]any         `json:"paymentDetails"`
	Notes           string                 `json:"notes" binding:"max=1000"`
}

type OrderQuery struct {
	PageQuery
	Status string `form:"status" binding:"omitempty,oneof=pending processing shipped delivered cancelled"`
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=pending processing shipped delivered cancelled"`
}

func (r PlaceOrderRequest) toInput(userID, idempotencyKey string) service.PlaceOrderInput {
	items := make([]domain.LineItem, len(r.Items))
	for i, item := range r.Items {
		items[i] = domain.LineItem{ProductID: item.ProductID, Quantity: item.Quantity}
	}

	a := r.ShippingAddress
	return service.PlaceOrderInput{
		UserID: userID,
		Items:  items,
		ShippingAddress: domain.ShippingAddress{
			Name:       a.Name,
			Street:     a.Street,
			City:       a.City,
			State:      a.State,
			PostalCode: a.PostalCode,
			Country:    a.Country,
		},
		PaymentMethod:  domain.PaymentMethod(r.PaymentMethod),
		PaymentDetails: r.PaymentDetails,
		Notes:          r.Notes,
		IdempotencyKey: idempotencyKey,
	}
}

func (h *HTTPHandler) PlaceOrder(c *gin.Context) {
	var req PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	principal, _ := principalFrom(c)
	key := strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader))

	order, err := h.orders.PlaceOrder(c.Request.Context(), req.toInput(principal.UserID, key))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *HTTPHandler) ListOrders(c *gin.Context) {
	var q OrderQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		writeBindError(c, err)
		return
	}

	principal, _ := principalFrom(c)
	result, err := h.orders.ListOrders(c.Request.Context(), principal, domain.OrderStatus(q.Status), q.toPage())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *HTTPHandler) GetOrder(c *gin.Context) {
	principal, _ := principalFrom(c)
	order, err := h.orders.GetOrder(c.Request.Context(), principal, c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *HTTPHandler) UpdateOrderStatus(c *gin.Context) {
	var req UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	order, err := h.orders.UpdateOrderStatus(c.Request.Context(), c.Param("id"), domain.OrderStatus(req.Status))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}
