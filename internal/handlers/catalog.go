package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/coinsora/server/internal/catalog"
	"github.com/coinsora/server/pkg/response"
)

// CatalogHandler serves the read-only catalog views.
type CatalogHandler struct {
	svc *catalog.Service
}

// NewCatalogHandler constructs a CatalogHandler.
func NewCatalogHandler(svc *catalog.Service) (*CatalogHandler, error) {
	if svc == nil {
		return nil, errors.New("catalog handler: service is required")
	}
	return &CatalogHandler{svc: svc}, nil
}

// GET /api/category-list
func (h *CatalogHandler) CategoryList(c *gin.Context) {
	response.Success(c, http.StatusOK, h.svc.CategoryList())
}

// GET /api/categories
func (h *CatalogHandler) Categories(c *gin.Context) {
	response.Success(c, http.StatusOK, h.svc.Categories())
}

// GET /api/category/:name
func (h *CatalogHandler) Category(c *gin.Context) {
	// Gin delivers path params already percent-decoded.
	items, err := h.svc.Category(c.Param("name"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, items)
}

// GET /api/item/:id
func (h *CatalogHandler) Item(c *gin.Context) {
	item, err := h.svc.Item(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, item)
}
