package handler

import (
	"bytes"
	"net/http"
	"time"

	"catalogsync/internal/dto"
	"catalogsync/internal/service"

	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type ProductsHandler struct{ svc service.ProductService }

func NewProductsHandler(svc service.ProductService) *ProductsHandler {
	return &ProductsHandler{svc: svc}
}

// List godoc
// @Summary Search the synced catalog
// @Tags products
// @Produce json
// @Param q query string false "Matches stock code, SKU, name or description"
// @Param page query int false "Page (from 1)"
// @Param limit query int false "Page size (max 100)"
// @Success 200 {object} dto.ProductListResponse
// @Failure 422 {object} apierror.ValidationError
// @Router /v1/products [get]
func (h *ProductsHandler) List(c *gin.Context) {
	var filter dto.ProductFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Get godoc
// @Summary Product by stock code
// @Tags products
// @Produce json
// @Param code path string true "Stock code"
// @Success 200 {object} dto.ProductResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/products/{code} [get]
func (h *ProductsHandler) Get(c *gin.Context) {
	resp, err := h.svc.GetByStockCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Export godoc
// @Summary Download the catalog as XLSX
// @Tags products
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Success 200 {file} file
// @Router /v1/export/products.xlsx [get]
func (h *ProductsHandler) Export(c *gin.Context) {
	// buffered so a failure can still produce a JSON error
	var buf bytes.Buffer
	if err := h.svc.Export(c.Request.Context(), &buf); err != nil {
		respondError(c, err)
		return
	}
	name := "products-" + time.Now().UTC().Format("20060102") + ".xlsx"
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
