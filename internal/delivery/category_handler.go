package delivery

import (
	"net/http"

	"deenice_finds/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type CategoryHandler struct {
	useCase domain.CategoryUseCase
	log     *logrus.Logger
}

func NewCategoryHandler(uc domain.CategoryUseCase, logger *logrus.Logger) *CategoryHandler {
	return &CategoryHandler{useCase: uc, log: logger}
}

func (h *CategoryHandler) RegisterRoutes(router gin.IRouter, admin gin.HandlerFunc) {
	categories := router.Group("/categories")
	{
		categories.GET("", h.ListCategories)
		categories.POST("", admin, h.CreateCategory)
		categories.PUT("/:id", admin, h.UpdateCategory)
		categories.DELETE("/:id", admin, h.DeleteCategory)
	}
}

type categoryRequest struct {
	Name  string `json:"name"`
	Icon  string `json:"icon"`
	Order int    `json:"order"`
}

func (h *CategoryHandler) CreateCategory(c *gin.Context) {
	var req categoryRequest
	if !bindJSON(c, h.log, &req) {
		return
	}
	created, err := h.useCase.CreateCategory(c.Request.Context(), &domain.Category{Name: req.Name, Icon: req.Icon, Order: req.Order})
	if err != nil {
		respondError(c, h.log, err, "create category")
		return
	}
	SuccessResponse(c, http.StatusCreated, "Category created successfully", gin.H{"category": created})
}

func (h *CategoryHandler) UpdateCategory(c *gin.Context) {
	var req categoryRequest
	if !bindJSON(c, h.log, &req) {
		return
	}
	updated, err := h.useCase.UpdateCategory(c.Request.Context(), &domain.Category{ID: c.Param("id"), Name: req.Name, Icon: req.Icon, Order: req.Order})
	if err != nil {
		respondError(c, h.log, err, "update category")
		return
	}
	SuccessResponse(c, http.StatusOK, "Category updated successfully", gin.H{"category": updated})
}

func (h *CategoryHandler) DeleteCategory(c *gin.Context) {
	if err := h.useCase.DeleteCategory(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, h.log, err, "delete category")
		return
	}
	SuccessResponse(c, http.StatusOK, "Category deleted successfully", nil)
}

func (h *CategoryHandler) ListCategories(c *gin.Context) {
	categories, err := h.useCase.ListCategories(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err, "retrieve categories")
		return
	}
	SuccessResponse(c, http.StatusOK, "", gin.H{"categories": categories})
}
