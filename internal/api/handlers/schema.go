package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/conduit/conduit/internal/core/schema"
	"github.com/conduit/conduit/internal/core/validation"
)

type SchemaHandler struct {
	schemaService *schema.Service
}

func NewSchemaHandler(schemaService *schema.Service) *SchemaHandler {
	return &SchemaHandler{schemaService: schemaService}
}

func (h *SchemaHandler) Create(c *gin.Context) {
	var req schema.CreateSchemaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	sc, err := h.schemaService.Create(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, sc)
}

func (h *SchemaHandler) List(c *gin.Context) {
	resp, err := h.schemaService.List(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *SchemaHandler) Get(c *gin.Context) {
	sc, err := h.schemaService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, sc)
}

// Fields returns the flattened field map editors pick query and assignment
// targets from.
func (h *SchemaHandler) Fields(c *gin.Context) {
	resp, err := h.schemaService.Fields(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *SchemaHandler) Update(c *gin.Context) {
	var req schema.UpdateSchemaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	sc, err := h.schemaService.Update(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, sc)
}

func (h *SchemaHandler) Delete(c *gin.Context) {
	if err := h.schemaService.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "schema deleted"})
}

func (h *SchemaHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, schema.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "code": "not_found"})
	case errors.Is(err, schema.ErrAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "code": "duplicate_name"})
	case errors.Is(err, schema.ErrInUse):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "code": "schema_in_use"})
	case validation.IsValidationError(err):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation failed",
			"code":    "invalid_schema",
			"details": validation.GetValidationErrors(err).Errors,
		})
	default:
		_ = c.Error(err)
	}
}
