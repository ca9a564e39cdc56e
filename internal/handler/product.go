package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/partstore/storefront/internal/domain/product"
)

func (h *Handler) listProducts(c *gin.Context) {
	ps, err := h.products.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": toProducts(ps)})
}

func (h *Handler) featuredProducts(c *gin.Context) {
	h.respondProducts(c, h.products.ListFeatured)
}

func (h *Handler) recommendedProducts(c *gin.Context) {
	h.respondProducts(c, h.products.Recommended)
}

func (h *Handler) productsByCategory(c *gin.Context) {
	h.respondProducts(c, func(ctx context.Context) ([]product.Product, error) {
		return h.products.ListByCategory(ctx, c.Param("slug"))
	})
}

func (h *Handler) productsBySubcategory(c *gin.Context) {
	h.respondProducts(c, func(ctx context.Context) ([]product.Product, error) {
		return h.products.ListBySubcategory(ctx, c.Param("slug"), c.Param("subSlug"))
	})
}

func (h *Handler) respondProducts(c *gin.Context, list func(context.Context) ([]product.Product, error)) {
	ps, err := list(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toProducts(ps))
}

func (h *Handler) getProduct(c *gin.Context) {
	p, err := h.products.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toProduct(p))
}

func (h *Handler) createProduct(c *gin.Context) {
	var req productRequest
	if !bind(c, &req) {
		return
	}
	p, err := h.products.Create(c.Request.Context(), product.CreateRequest{
		Name:          req.Name,
		Description:   req.Description,
		Price:         req.Price,
		Stock:         req.Stock,
		CategoryID:    req.CategoryID,
		SubcategoryID: req.SubcategoryID,
		Image:         req.Image,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, toProduct(p))
}

func (h *Handler) deleteProduct(c *gin.Context) {
	if err := h.products.Delete(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "product deleted"})
}

func (h *Handler) toggleFeatured(c *gin.Context) {
	p, err := h.products.ToggleFeatured(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toProduct(p))
}
