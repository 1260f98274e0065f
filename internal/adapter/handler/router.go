package handler

import (
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/rl1809/storefront/internal/platform/metrics"
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(jsonFieldName)
	}
}

// jsonFieldName makes validation errors name fields the way clients send them.
func jsonFieldName(field reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name := strings.SplitN(field.Tag.Get(tag), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return field.Name
}

// NewRouter wires every route. m may be nil.
func NewRouter(h *HTTPHandler, m *metrics.ServerMetrics) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestID())
	router.Use(Logger(h.logger))
	if m != nil {
		router.Use(m.Middleware())
		router.GET("/metrics", gin.WrapH(m.Handler()))
	}

	router.GET("/health", h.HealthCheck)

	authenticated := h.Authenticate()
	adminOnly := RequireAdmin()

	api := router.Group("/api")
	{
		auth := api.Group("/auth")
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
		auth.POST("/logout", authenticated, h.Logout)
		auth.GET("/me", authenticated, h.Me)

		api.GET("/users/:id", authenticated, h.GetUser)

		products := api.Group("/products")
		products.GET("", h.ListProducts)
		products.GET("/:id", h.GetProduct)
		products.POST("", authenticated, adminOnly, h.CreateProduct)
		products.PUT("/:id", authenticated, adminOnly, h.UpdateProduct)
		products.DELETE("/:id", authenticated, adminOnly, h.DeleteProduct)

		categories := api.Group("/categories")
		categories.GET("", h.ListCategories)
		categories.GET("/:id", h.GetCategory)
		categories.POST("", authenticated, adminOnly, h.CreateCategory)
		categories.PUT("/:id", authenticated, adminOnly, h.UpdateCategory)
		categories.DELETE("/:id", authenticated, adminOnly, h.DeleteCategory)

		orders := api.Group("/orders", authenticated)
		orders.POST("", h.PlaceOrder)
		orders.GET("", h.ListOrders)
		orders.GET("/:id", h.GetOrder)
		orders.PATCH("/:id/status", adminOnly, h.UpdateOrderStatus)
	}

	return router
}
