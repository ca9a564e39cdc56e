package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/partstore/storefront/internal/domain/blob"
	"github.com/partstore/storefront/internal/domain/category"
	"github.com/partstore/storefront/internal/domain/checkout"
	"github.com/partstore/storefront/internal/domain/coupon"
	"github.com/partstore/storefront/internal/domain/external"
	"github.com/partstore/storefront/internal/domain/order"
	"github.com/partstore/storefront/internal/domain/product"
)

// errInvalidBody is returned when the request body cannot be decoded.
var errInvalidBody = errors.New("invalid request body")

// statusBySentinel maps domain sentinel errors to HTTP status codes.
var statusBySentinel = []struct {
	err    error
	status int
}{
	{errInvalidBody, http.StatusBadRequest},
	{order.ErrEmptyOrder, http.StatusBadRequest},
	{order.ErrInvalidAddress, http.StatusBadRequest},
	{order.ErrInvalidTotal, http.StatusBadRequest},
	{checkout.ErrEmptyCart, http.StatusBadRequest},
	{checkout.ErrSessionRequired, http.StatusBadRequest},
	{checkout.ErrInvalidMetadata, http.StatusBadRequest},
	{category.ErrNameRequired, http.StatusBadRequest},
	{product.ErrNameRequired, http.StatusBadRequest},
	{product.ErrInvalidPrice, http.StatusBadRequest},
	{product.ErrInvalidStock, http.StatusBadRequest},
	{product.ErrImageRequired, http.StatusBadRequest},
	{blob.ErrInvalidImage, http.StatusBadRequest},
	{coupon.ErrCouponExpired, http.StatusBadRequest},

	{checkout.ErrPaymentNotCompleted, http.StatusPaymentRequired},

	{order.ErrForbidden, http.StatusForbidden},

	{order.ErrOrderNotFound, http.StatusNotFound},
	{product.ErrNotFound, http.StatusNotFound},
	{category.ErrCategoryNotFound, http.StatusNotFound},
	{category.ErrSubcategoryNotFound, http.StatusNotFound},
	{coupon.ErrCouponNotFound, http.StatusNotFound},

	{category.ErrCategoryExists, http.StatusConflict},
	{category.ErrSubcategoryExists, http.StatusConflict},
	{category.ErrCategoryInUse, http.StatusConflict},
	{category.ErrSubcategoryInUse, http.StatusConflict},
	{order.ErrInvalidTransition, http.StatusConflict},
	{order.ErrDuplicateSession, http.StatusConflict},
}

// mapError converts domain errors to a status code and a client-facing
// message. Unknown errors become a generic 500.
func mapError(err error) (int, string) {
	for _, s := range statusBySentinel {
		if errors.Is(err, s.err) {
			return s.status, err.Error()
		}
	}

	var (
		quantityErr *order.InvalidQuantityError
		itemErr     *checkout.InvalidItemError
		notFoundErr *order.ProductNotFoundError
		stockErr    *order.InsufficientStockError
		extErr      *external.Error
	)
	switch {
	case errors.As(err, &quantityErr):
		return http.StatusBadRequest, quantityErr.Error()
	case errors.As(err, &itemErr):
		return http.StatusBadRequest, itemErr.Error()
	case errors.As(err, &notFoundErr):
		return http.StatusNotFound, notFoundErr.Error()
	case errors.As(err, &stockErr):
		return http.StatusConflict, stockErr.Error()
	case errors.As(err, &extErr):
		return http.StatusBadGateway, extErr.Service + " is unavailable"
	}
	return http.StatusInternalServerError, "internal server error"
}

// fail writes err as a JSON error response and aborts the chain.
func fail(c *gin.Context, err error) {
	status, msg := mapError(err)
	if status >= http.StatusInternalServerError {
		zctx.From(c.Request.Context()).Error("Request failed", zap.Error(err))
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, errorResponse{Code: status, Message: msg})
}

// bind decodes the JSON body into dst, reporting decode failures as 400.
func bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		fail(c, errors.Wrap(errInvalidBody, err.Error()))
		return false
	}
	return true
}
