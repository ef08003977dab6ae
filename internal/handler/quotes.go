package handler

import (
	"net/http"

	"catalogsync/internal/apierror"
	"catalogsync/internal/dto"
	"catalogsync/internal/service"

	"github.com/gin-gonic/gin"
)

type QuotesHandler struct{ svc service.QuoteService }

func NewQuotesHandler(svc service.QuoteService) *QuotesHandler { return &QuotesHandler{svc: svc} }

// Create godoc
// @Summary Create a draft quote
// @Tags quotes
// @Accept json
// @Produce json
// @Param body body dto.CreateQuoteRequest true "Customer details"
// @Success 201 {object} dto.QuoteResponse
// @Failure 422 {object} apierror.ValidationError
// @Router /v1/quotes [post]
func (h *QuotesHandler) Create(c *gin.Context) {
	var req dto.CreateQuoteRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Get godoc
// @Summary Fetch a quote
// @Tags quotes
// @Produce json
// @Param id path string true "Quote ID"
// @Param token query string false "Share token"
// @Success 200 {object} dto.QuoteResponse
// @Failure 403 {object} apierror.APIError
// @Failure 404 {object} apierror.APIError
// @Router /v1/quotes/{id} [get]
func (h *QuotesHandler) Get(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Get(c.Request.Context(), id, tokenQuery(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// UpdateHeader godoc
// @Summary Partially update the quote header
// @Description Omitted members are kept; null clears. Status may only be kept as is.
// @Tags quotes
// @Accept json
// @Produce json
// @Param id path string true "Quote ID"
// @Param body body dto.UpdateQuoteRequest true "Header fields"
// @Success 200 {object} dto.QuoteResponse
// @Failure 400 {object} apierror.APIError
// @Router /v1/quotes/{id} [patch]
func (h *QuotesHandler) UpdateHeader(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateQuoteRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if v := req.CustomerEmail.Value; v != nil && *v != "" {
		if err := validate.Var(*v, "email"); err != nil {
			c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(map[string]string{"CustomerEmail": "email"}))
			return
		}
	}
	resp, err := h.svc.UpdateHeader(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// PDF godoc
// @Summary Download the quote as PDF
// @Tags quotes
// @Produce application/pdf
// @Param id path string true "Quote ID"
// @Param token query string false "Share token"
// @Success 200 {file} file
// @Failure 403 {object} apierror.APIError
// @Failure 404 {object} apierror.APIError
// @Router /v1/quotes/{id}/pdf [get]
func (h *QuotesHandler) PDF(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	doc, name, err := h.svc.PDF(c.Request.Context(), id, tokenQuery(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", `inline; filename="`+name+`"`)
	c.Data(http.StatusOK, "application/pdf", doc)
}

// AddItem godoc
// @Summary Add a product to the quote
// @Description Adding a stock code already on the quote increases that line's qty.
// @Tags quotes
// @Accept json
// @Produce json
// @Param id path string true "Quote ID"
// @Param body body dto.AddItemRequest true "Item"
// @Success 200 {object} dto.QuoteResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/quotes/{id}/items [post]
func (h *QuotesHandler) AddItem(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req dto.AddItemRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.AddItem(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// UpdateItem godoc
// @Summary Set a line's quantity (0 removes it)
// @Tags quotes
// @Accept json
// @Produce json
// @Param id path string true "Quote ID"
// @Param item_id path string true "Item ID"
// @Param body body dto.UpdateItemRequest true "Quantity"
// @Success 200 {object} dto.QuoteResponse
// @Failure 400 {object} apierror.APIError
// @Failure 404 {object} apierror.APIError
// @Router /v1/quotes/{id}/items/{item_id} [patch]
func (h *QuotesHandler) UpdateItem(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	itemID, ok := uuidParam(c, "item_id")
	if !ok {
		return
	}
	var req dto.UpdateItemRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.UpdateItem(c.Request.Context(), id, itemID, *req.Qty)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// DeleteItem godoc
// @Summary Remove a line
// @Tags quotes
// @Produce json
// @Param id path string true "Quote ID"
// @Param item_id path string true "Item ID"
// @Success 200 {object} dto.QuoteResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/quotes/{id}/items/{item_id} [delete]
func (h *QuotesHandler) DeleteItem(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	itemID, ok := uuidParam(c, "item_id")
	if !ok {
		return
	}
	resp, err := h.svc.DeleteItem(c.Request.Context(), id, itemID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Send godoc
// @Summary E-mail the quote with its PDF and mark it SENT
// @Tags quotes
// @Accept json
// @Produce json
// @Param id path string true "Quote ID"
// @Param body body dto.SendQuoteRequest false "Recipient override"
// @Success 200 {object} dto.SendQuoteResponse
// @Failure 400 {object} apierror.APIError
// @Failure 503 {object} apierror.APIError
// @Router /v1/quotes/{id}/send [post]
func (h *QuotesHandler) Send(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req dto.SendQuoteRequest
	// the body is optional
	if c.Request.ContentLength != 0 {
		if !bindAndValidate(c, &req) {
			return
		}
	}
	resp, err := h.svc.Send(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
