package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/partstore/storefront/internal/domain/checkout"
)

func (h *Handler) createCheckoutSession(c *gin.Context) {
	p, _ := principalFrom(c)
	var body checkoutRequest
	if !bind(c, &body) {
		return
	}

	req := checkout.Request{
		UserID:     p.UserID,
		Products:   make([]checkout.LineItem, len(body.Products)),
		CouponCode: body.CouponCode,
	}
	for i, it := range body.Products {
		if it.Price == nil {
			fail(c, &checkout.InvalidItemError{Index: i, Reason: "price is required"})
			return
		}
		id := it.ID
		if id == "" {
			id = it.LegacyID
		}
		req.Products[i] = checkout.LineItem{
			ID:       id,
			Name:     it.Name,
			Price:    *it.Price,
			Quantity: it.Quantity,
			Image:    it.Image,
		}
	}
	if body.ShippingAddress != nil {
		addr := body.ShippingAddress.toDomain()
		req.ShippingAddress = &addr
	}

	res, err := h.checkout.CreateSession(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toCheckout(res))
}

func (h *Handler) checkoutSuccess(c *gin.Context) {
	p, _ := principalFrom(c)
	var req checkoutSuccessRequest
	if !bind(c, &req) {
		return
	}
	o, err := h.checkout.Complete(c.Request.Context(), req.SessionID, p.requester())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, checkoutSuccessResponse{
		Success: true,
		Message: "Payment successful, order created.",
		OrderID: o.ID,
	})
}
