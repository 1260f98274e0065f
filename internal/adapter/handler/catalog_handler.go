package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/rl1809/storefront/internal/core/domain"
)

type PageQuery struct {
	Page  int `form:"page" binding:"omitempty,min=1,max=100000"`
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}

func (q PageQuery) toPage() domain.Page {
	return domain.NewPage(q.Page, q.Limit)
}

type ProductQuery struct {
	PageQuery
	CategoryID string `form:"category"`
	Query      string `form:"q" binding:"max=100"`
	MinPrice   string `form:"minPrice" binding:"omitempty,numeric"`
	MaxPrice   string `form:"maxPrice" binding:"omitempty,numeric"`
	InStock    bool   `form:"inStock"`
	Sort       string `form:"sort" binding:"omitempty,oneof=price name created_at"`
	Order      string `form:"order" binding:"omitempty,oneof=asc desc"`
}

func (q ProductQuery) toFilter() domain.ProductFilter {
	filter := domain.ProductFilter{
		CategoryID:  q.CategoryID,
		Query:       q.Query,
		InStockOnly: q.InStock,
		Sort:        domain.ProductSort(q.Sort),
		Descending:  q.Order == "desc",
		Page:        q.toPage(),
	}
	if filter.Sort == "" {
		filter.Sort = domain.ProductSortCreatedAt
		filter.Descending = q.Order != "asc"
	}
	if v, err := decimal.NewFromString(q.MinPrice); err == nil {
		filter.MinPrice = &v
	}
	if v, err := decimal.NewFromString(q.MaxPrice); err == nil {
		filter.MaxPrice = &v
	}
	return filter
}

type ProductRequest struct {
	Name        string          `json:"name" binding:"required,max=200"`
	Description string          `json:"description" binding:"max=2000"`
	Price       decimal.Decimal `json:"price"`
	Inventory   int             `json:"inventory" binding:"min=0"`
	CategoryID  string          `json:"categoryId"`
	ImageURL    string          `json:"imageUrl" binding:"omitempty,url"`
}

func (r ProductRequest) toProduct(id string) *domain.Product {
	return &domain.Product{
		ID:          id,
		Name:        r.Name,
		Description: r.Description,
		Price:       r.Price,
		Inventory:   r.Inventory,
		CategoryID:  r.CategoryID,
		ImageURL:    r.ImageURL,
	}
}

type CategoryRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Description string `json:"description" binding:"max=1000"`
}

func (h *HTTPHandler) ListProducts(c *gin.Context) {
	var q ProductQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		writeBindError(c, err)
		return
	}

	result, err := h.catalog.ListProducts(c.Request.Context(), q.toFilter())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *HTTPHandler) GetProduct(c *gin.Context) {
	product, err := h.catalog.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *HTTPHandler) CreateProduct(c *gin.Context) {
	var req ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	product := req.toProduct("")
	if err := h.catalog.CreateProduct(c.Request.Context(), product); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

func (h *HTTPHandler) UpdateProduct(c *gin.Context) {
	var req ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	product := req.toProduct(c.Param("id"))
	if err := h.catalog.UpdateProduct(c.Request.Context(), product); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *HTTPHandler) DeleteProduct(c *gin.Context) {
	if err := h.catalog.DeleteProduct(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *HTTPHandler) ListCategories(c *gin.Context) {
	var q PageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		writeBindError(c, err)
		return
	}

	result, err := h.catalog.ListCategories(c.Request.Context(), q.toPage())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *HTTPHandler) GetCategory(c *gin.Context) {
	category, err := h.catalog.GetCategory(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, category)
}

func (h *HTTPHandler) CreateCategory(c *gin.Context) {
	var req CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	category := &domain.Category{Name: req.Name, Description: req.Description}
	if err := h.catalog.CreateCategory(c.Request.Context(), category); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, category)
}

func (h *HTTPHandler) UpdateCategory(c *gin.Context) {
	var req CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	category := &domain.Category{ID: c.Param("id"), Name: req.Name, Description: req.Description}
	if err := h.catalog.UpdateCategory(c.Request.Context(), category); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, category)
}

func (h *HTTPHandler) DeleteCategory(c *gin.Context) {
	if err := h.catalog.DeleteCategory(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
