package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"lavka/internal/domain"
	"lavka/internal/metrics"
	"lavka/internal/repository"
	"lavka/internal/service"
)

type Server struct {
	engine  *gin.Engine
	catalog *service.CatalogService
	orders  *service.OrderService
	metrics *metrics.Metrics
}

func NewServer(catalog *service.CatalogService, orders *service.OrderService, m *metrics.Metrics) *Server {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), m.GinMiddleware())
	s := &Server{engine: r, catalog: catalog, orders: orders, metrics: m}
	s.registerRoutes()
	return s
}

func (s *Server) Engine() *gin.Engine { return s.engine }

func (s *Server) registerRoutes() {
	s.engine.GET("/health", s.health)
	s.engine.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	// Swagger UI
	s.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := s.engine.Group("/api/v1")
	{
		customers := v1.Group("/customers")
		customers.POST("", s.registerCustomer)
		customers.GET(":id", s.getCustomer)

		products := v1.Group("/products")
		products.GET("", s.listProducts)
		products.GET(":id", s.getProduct)

		orders := v1.Group("/orders")
		orders.POST("", s.createOrder)
		orders.GET(":id", s.getOrder)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Customer handlers
type registerCustomerReq struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// @Summary Register customer
// @Tags customers
// @Accept json
// @Produce json
// @Param input body registerCustomerReq true "Customer"
// @Success 201 {object} domain.Customer
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /customers [post]
func (s *Server) registerCustomer(c *gin.Context) {
	var req registerCustomerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	cust, err := s.catalog.RegisterCustomer(c, req.Name, req.Email)
	if err != nil {
		c.JSON(mapErrorToStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, cust)
}

// @Summary Get customer by id
// @Tags customers
// @Produce json
// @Param id path string true "Customer ID"
// @Success 200 {object} domain.Customer
// @Failure 404 {object} map[string]string
// @Router /customers/{id} [get]
func (s *Server) getCustomer(c *gin.Context) {
	cust, err := s.catalog.GetCustomer(c, c.Param("id"))
	if err != nil {
		c.JSON(mapErrorToStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, cust)
}

// Product handlers

// @Summary List products
// @Tags products
// @Produce json
// @Param q query string false "Name contains"
// @Success 200 {array} domain.Product
// @Router /products [get]
func (s *Server) listProducts(c *gin.Context) {
	list, err := s.catalog.ListProducts(c, repository.ProductFilter{NameSubstring: c.Query("q")})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, list)
}

// @Summary Get product by id
// @Tags products
// @Produce json
// @Param id path string true "Product ID"
// @Success 200 {object} domain.Product
// @Failure 404 {object} map[string]string
// @Router /products/{id} [get]
func (s *Server) getProduct(c *gin.Context) {
	p, err := s.catalog.GetProduct(c, c.Param("id"))
	if err != nil {
		c.JSON(mapErrorToStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, p)
}

// Order handlers
type createOrderReq struct {
	CustomerID string                    `json:"customer_id"`
	Items      []domain.OrderLineRequest `json:"items"`
}

// @Summary Place order
// @Description Validates the customer and every line against current stock and applies the order atomically.
// @Tags orders
// @Accept json
// @Produce json
// @Param input body createOrderReq true "Order"
// @Success 201 {object} domain.Order
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /orders [post]
func (s *Server) createOrder(c *gin.Context) {
	var req createOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	o, err := s.orders.PlaceOrder(c, req.CustomerID, req.Items)
	if err != nil {
		s.countRejection(err)
		c.JSON(mapErrorToStatus(err), gin.H{"error": err.Error()})
		return
	}
	s.metrics.OrdersPlaced.Inc()
	c.JSON(http.StatusCreated, o)
}

// @Summary Get order by id
// @Tags orders
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} domain.Order
// @Failure 404 {object} map[string]string
// @Router /orders/{id} [get]
func (s *Server) getOrder(c *gin.Context) {
	o, err := s.orders.GetOrder(c, c.Param("id"))
	if err != nil {
		c.JSON(mapErrorToStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, o)
}

func (s *Server) countRejection(err error) {
	s.metrics.OrderRejections.WithLabelValues(rejectionReason(err)).Inc()
	if errors.Is(err, repository.ErrStockConflict) {
		s.metrics.StockConflicts.Inc()
	}
}

func rejectionReason(err error) string {
	var (
		pnf *service.ProductNotFoundError
		ins *service.InsufficientStockError
	)
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, service.ErrCustomerNotFound):
		return "customer_not_found"
	case errors.As(err, &pnf):
		return "product_not_found"
	case errors.As(err, &ins):
		return "insufficient_stock"
	case errors.Is(err, repository.ErrStockConflict):
		return "stock_conflict"
	default:
		return "internal"
	}
}

func mapErrorToStatus(err error) int {
	var (
		pnf *service.ProductNotFoundError
		ins *service.InsufficientStockError
	)
	switch {
	case errors.Is(err, service.ErrInvalidInput), errors.As(err, &ins):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrCustomerNotFound), errors.As(err, &pnf), errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrStockConflict), errors.Is(err, repository.ErrAlreadyExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
