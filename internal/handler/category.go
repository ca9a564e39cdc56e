package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/partstore/storefront/internal/domain/category"
)

func (h *Handler) listCategories(c *gin.Context) {
	cats, err := h.categories.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	out := make([]categoryResponse, len(cats))
	for i := range cats {
		out[i] = toCategory(&cats[i])
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) getCategory(c *gin.Context) {
	cat, err := h.categories.GetBySlug(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toCategory(cat))
}

func (h *Handler) createCategory(c *gin.Context) {
	var req categoryRequest
	if !bind(c, &req) {
		return
	}
	cat, err := h.categories.Create(c.Request.Context(), category.CreateRequest{
		Name:  req.Name,
		Image: req.Image,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, toCategory(cat))
}

func (h *Handler) updateCategory(c *gin.Context) {
	var req categoryPatch
	if !bind(c, &req) {
		return
	}
	cat, err := h.categories.Update(c.Request.Context(), c.Param("id"), category.UpdateRequest{
		Name:  req.Name,
		Image: req.Image,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toCategory(cat))
}

func (h *Handler) deleteCategory(c *gin.Context) {
	if err := h.categories.Delete(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "category deleted"})
}

func (h *Handler) addSubcategory(c *gin.Context) {
	var req subcategoryRequest
	if !bind(c, &req) {
		return
	}
	sub, err := h.categories.AddSubcategory(c.Request.Context(), c.Param("id"), category.SubcategoryRequest{
		Name:        req.Name,
		Description: req.Description,
		Image:       req.Image,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, toSubcategory(*sub))
}

func (h *Handler) updateSubcategory(c *gin.Context) {
	var req subcategoryPatch
	if !bind(c, &req) {
		return
	}
	sub, err := h.categories.UpdateSubcategory(c.Request.Context(), c.Param("id"), c.Param("subId"),
		category.SubcategoryUpdate{
			Name:        req.Name,
			Description: req.Description,
			Image:       req.Image,
		})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toSubcategory(*sub))
}

func (h *Handler) deleteSubcategory(c *gin.Context) {
	if err := h.categories.DeleteSubcategory(c.Request.Context(), c.Param("id"), c.Param("subId")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "subcategory deleted"})
}
