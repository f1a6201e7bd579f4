package api

import (
	"github.com/gin-gonic/gin"

	"github.com/coinsora/server/internal/handlers"
)

func registerCatalogRoutes(api *gin.RouterGroup, catalogHandler *handlers.CatalogHandler) {
	api.GET("/category-list", catalogHandler.CategoryList)
	api.GET("/categories", catalogHandler.Categories)
	api.GET("/category/:name", catalogHandler.Category)
	api.GET("/item/:id", catalogHandler.Item)
}
