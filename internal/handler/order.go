package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/partstore/storefront/internal/domain/order"
)

// createOrder converts the request body to a domain request, delegates to
// the order service and returns the created order.
func (h *Handler) createOrder(c *gin.Context) {
	p, _ := principalFrom(c)
	var req orderRequest
	if !bind(c, &req) {
		return
	}

	items := make([]order.ItemRequest, len(req.OrderItems))
	for i, it := range req.OrderItems {
		items[i] = order.ItemRequest{ProductID: it.Product, Quantity: it.Quantity}
	}
	method := req.PaymentMethod
	if method == "" {
		method = order.PaymentMethodCard
	}

	o, err := h.orders.Create(c.Request.Context(), order.CreateRequest{
		UserID:          p.UserID,
		Items:           items,
		ShippingAddress: req.ShippingAddress.toDomain(),
		PaymentMethod:   method,
		TotalPrice:      req.TotalPrice,
		Source:          order.SourceDirect,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, toOrder(o))
}

func (h *Handler) myOrders(c *gin.Context) {
	p, _ := principalFrom(c)
	orders, err := h.orders.ListMine(c.Request.Context(), p.UserID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": toOrders(orders)})
}

func (h *Handler) listOrders(c *gin.Context) {
	orders, err := h.orders.ListAll(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": toOrders(orders)})
}

func (h *Handler) getOrder(c *gin.Context) {
	p, _ := principalFrom(c)
	o, err := h.orders.Get(c.Request.Context(), c.Param("id"), p.requester())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrder(o))
}

func (h *Handler) payOrder(c *gin.Context) {
	p, _ := principalFrom(c)
	var req paymentResultBody
	if !bind(c, &req) {
		return
	}
	o, err := h.orders.MarkPaid(c.Request.Context(), c.Param("id"), p.requester(), order.PaymentResult{
		ID:           req.ID,
		Status:       req.Status,
		UpdateTime:   req.UpdateTime,
		EmailAddress: req.EmailAddress,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrder(o))
}

func (h *Handler) deliverOrder(c *gin.Context) {
	o, err := h.orders.MarkDelivered(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrder(o))
}
