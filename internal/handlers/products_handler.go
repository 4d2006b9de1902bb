package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"pricing-service/internal/repository"
)

// ProductsHandler serves the catalog listing used to build batch selections
type ProductsHandler struct {
	products repository.ProductsRepositoryInterface
}

// NewProductsHandler creates a new ProductsHandler
func NewProductsHandler(products repository.ProductsRepositoryInterface) *ProductsHandler {
	return &ProductsHandler{products: products}
}

// ListProducts lists a seller's products for selection
// @Summary List products
// @Tags Products
// @Produce json
// @Param sellerId query string true "Seller ID"
// @Param search query string false "Search in title and vendor code"
// @Param brand query string false "Brand filter"
// @Param category query string false "Category filter"
// @Param active_only query bool false "Only active products"
// @Param limit query int false "Limit" default(20)
// @Param offset query int false "Offset" default(0)
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/products [get]
func (h *ProductsHandler) ListProducts(c *gin.Context) {
	tenantID := c.GetString("tenant_id")

	sellerID, err := uuid.Parse(c.Query("sellerId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sellerId is required"})
		return
	}

	filter := repository.ProductFilter{
		Search:     c.Query("search"),
		Brand:      c.Query("brand"),
		Category:   c.Query("category"),
		ActiveOnly: c.Query("active_only") == "true",
	}
	limit, offset := pagination(c)

	products, total, err := h.products.ListProducts(c.Request.Context(), tenantID, sellerID, filter, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "An internal error occurred"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":   products,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// GetProduct retrieves a single product by its marketplace nm_id
// @Summary Get product
// @Tags Products
// @Produce json
// @Param nmId path int true "Marketplace nm_id"
// @Param sellerId query string true "Seller ID"
// @Success 200 {object} models.Product
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/products/{nmId} [get]
func (h *ProductsHandler) GetProduct(c *gin.Context) {
	tenantID := c.GetString("tenant_id")

	sellerID, err := uuid.Parse(c.Query("sellerId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sellerId is required"})
		return
	}

	nmID, err := strconv.ParseInt(c.Param("nmId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid nmId"})
		return
	}

	product, err := h.products.GetProductByNmID(c.Request.Context(), tenantID, sellerID, nmID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "An internal error occurred"})
		return
	}

	c.JSON(http.StatusOK, product)
}
