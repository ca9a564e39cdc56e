package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"

	"github.com/partstore/storefront/internal/domain/coupon"
)

// activeCoupon returns the caller's coupon, or null when there is none.
func (h *Handler) activeCoupon(c *gin.Context) {
	p, _ := principalFrom(c)
	cp, err := h.coupons.Active(c.Request.Context(), p.UserID)
	switch {
	case errors.Is(err, coupon.ErrCouponNotFound):
		c.JSON(http.StatusOK, nil)
	case err != nil:
		fail(c, err)
	default:
		c.JSON(http.StatusOK, toCoupon(cp))
	}
}

func (h *Handler) validateCoupon(c *gin.Context) {
	p, _ := principalFrom(c)
	var req couponCodeRequest
	if !bind(c, &req) {
		return
	}
	cp, err := h.coupons.Redeem(c.Request.Context(), req.Code, p.UserID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":            "Coupon is valid",
		"code":               cp.Code,
		"discountPercentage": cp.DiscountPercentage,
	})
}
