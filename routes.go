package main

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/mapletrade/store_backend/middlewares"
	"github.com/mapletrade/store_backend/models"
	"github.com/mapletrade/store_backend/utils"
)

func registerRoutes(r *gin.Engine) {
	r.POST("/auth/register", registerHandler)
	r.POST("/auth/login", loginHandler)

	r.GET("/products", listProductsHandler)
	r.GET("/products/:id", getProductHandler)
	r.GET("/inventory/products/:id/summary", productStockSummaryHandler)
	r.GET("/inventory/variants/:id/movements", stockMovementHistoryHandler)

	authed := r.Group("", middlewares.RequireAuth())
	{
		authed.POST("/orders", createOrderHandler)
		authed.GET("/orders", listOrdersHandler)
		authed.GET("/orders/:id", getOrderHandler)
		authed.GET("/orders/:id/stock-availability", orderStockAvailabilityHandler)
		authed.POST("/addresses", createAddressHandler)
		authed.GET("/addresses", listAddressesHandler)
	}

	admin := r.Group("/admin", middlewares.RequireAuth(), middlewares.RequireAdmin())
	{
		admin.POST("/products", createProductHandler)
		admin.POST("/products/variants", createVariantHandler)
		admin.POST("/inventory/entries", createStockEntryHandler)
		admin.POST("/inventory/exits", createStockExitHandler)
		admin.POST("/orders", createOrderAsAdminHandler)
		admin.PATCH("/orders/:id", updateOrderHandler)
		admin.POST("/orders/:id/status", updateOrderStatusHandler)
		admin.POST("/orders/bulk-status", bulkStatusHandler)
		admin.GET("/expenses", listExpensesHandler)
	}
}

// respondError maps application errors to HTTP statuses. Stock conflicts
// carry their shortfall report in the body.
func respondError(c *gin.Context, err error) {
	var conflict *models.StockConflictError
	if errors.As(err, &conflict) {
		c.JSON(http.StatusConflict, gin.H{
			"error":      conflict.Error(),
			"order_id":   conflict.OrderId,
			"shortfalls": conflict.Shortfalls,
		})
		return
	}

	if verrs, ok := err.(validator.ValidationErrors); ok {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": utils.ProcessValidationErrors(verrs)})
		return
	}

	switch utils.CodeOf(err) {
	case utils.ErrorCodeNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case utils.ErrorCodeValidation, utils.ErrorCodeInsufficientStock:
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case utils.ErrorCodeConflict:
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func pathId(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func actorId(c *gin.Context) int {
	id, _ := utils.GetUserIdFromContext(c.Request.Context())
	return id
}

func pagination(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "0"))
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	return limit, offset
}

func registerHandler(c *gin.Context) {
	var input models.NewUser
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, err)
		return
	}
	user, err := models.CreateUser(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func loginHandler(c *gin.Context) {
	var input struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, err)
		return
	}
	token, user, err := models.AuthenticateUser(c.Request.Context(), input.Email, input.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}

func listProductsHandler(c *gin.Context) {
	limit, offset := pagination(c)
	products, err := models.GetProducts(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func getProductHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	product, err := models.GetProduct(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func createProductHandler(c *gin.Context) {
	var input models.NewProduct
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, err)
		return
	}
	product, err := models.CreateProduct(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

func createVariantHandler(c *gin.Context) {
	var input models.NewProductVariant
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, err)
		return
	}
	variant, err := models.CreateProductVariant(c.Request.Context(), &input, actorId(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, variant)
}

func createStockEntryHandler(c *gin.Context) {
	var input models.NewStockEntry
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, err)
		return
	}
	movement, err := models.CreateStockEntry(c.Request.Context(), &input, actorId(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, movement)
}

func createStockExitHandler(c *gin.Context) {
	var input models.NewStockExit
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, err)
		return
	}
	movement, err := models.CreateStockExit(c.Request.Context(), &input, actorId(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, movement)
}

func stockMovementHistoryHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	limit, offset := pagination(c)
	movements, total, err := models.GetStockMovementHistory(c.Request.Context(), id, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"total": total, "movements": movements})
}

func listExpensesHandler(c *gin.Context) {
	limit, offset := pagination(c)
	expenses, err := models.GetExpenses(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, expenses)
}

func productStockSummaryHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	summary, err := models.GetProductStockSummary(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func createOrderHandler(c *gin.Context) {
	var input models.NewOrder
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, err)
		return
	}
	order, err := models.CreateOrder(c.Request.Context(), &input, actorId(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func createOrderAsAdminHandler(c *gin.Context) {
	var input struct {
		models.NewOrder
		UserId int `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, err)
		return
	}
	order, err := models.CreateOrderAsAdmin(c.Request.Context(), &input.NewOrder, input.UserId, actorId(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func listOrdersHandler(c *gin.Context) {
	limit, offset := pagination(c)
	orders, err := models.GetOrdersForUser(c.Request.Context(), actorId(c), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func getOrderHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	order, err := models.GetOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	isAdmin, _ := utils.GetIsAdminFromContext(c.Request.Context())
	if !isAdmin && order.UserId != actorId(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}
	c.JSON(http.StatusOK, order)
}

func updateOrderHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var input models.UpdateOrderInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, err)
		return
	}
	order, err := models.UpdateOrder(c.Request.Context(), id, &input, actorId(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func updateOrderStatusHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var input struct {
		NewStatus models.OrderStatus `json:"new_status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, err)
		return
	}
	order, err := models.UpdateOrderStatus(c.Request.Context(), id, input.NewStatus, actorId(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func bulkStatusHandler(c *gin.Context) {
	var input struct {
		OrderIds  []int              `json:"order_ids" binding:"required"`
		NewStatus models.OrderStatus `json:"new_status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, err)
		return
	}
	report := models.BulkUpdateOrderStatus(c.Request.Context(), input.OrderIds, input.NewStatus, actorId(c))
	c.JSON(http.StatusOK, report)
}

func orderStockAvailabilityHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	shortfalls, err := models.CheckOrderStockAvailability(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"available": len(shortfalls) == 0, "shortfalls": shortfalls})
}

func createAddressHandler(c *gin.Context) {
	var input models.NewShippingAddress
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, err)
		return
	}
	address, err := models.CreateShippingAddress(c.Request.Context(), &input, actorId(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, address)
}

func listAddressesHandler(c *gin.Context) {
	addresses, err := models.GetShippingAddressesForUser(c.Request.Context(), actorId(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, addresses)
}
