package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	gschema "github.com/gorilla/schema"

	"github.com/conduit/conduit/internal/core/endpoint"
)

var listDecoder = newListDecoder()

func newListDecoder() *gschema.Decoder {
	d := gschema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}

type EndpointHandler struct {
	endpointService *endpoint.Service
}

func NewEndpointHandler(endpointService *endpoint.Service) *EndpointHandler {
	return &EndpointHandler{endpointService: endpointService}
}

func (h *EndpointHandler) Create(c *gin.Context) {
	draft, ok := h.bindDraft(c)
	if !ok {
		return
	}

	def, err := h.endpointService.Create(c.Request.Context(), draft)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, def)
}

// List accepts ?schema=, ?operation=, ?name= (prefix), ?limit= and ?offset=.
func (h *EndpointHandler) List(c *gin.Context) {
	var filter endpoint.ListFilter
	if err := listDecoder.Decode(&filter, c.Request.URL.Query()); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.endpointService.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *EndpointHandler) Get(c *gin.Context) {
	def, err := h.endpointService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, def)
}

func (h *EndpointHandler) Update(c *gin.Context) {
	draft, ok := h.bindDraft(c)
	if !ok {
		return
	}

	def, err := h.endpointService.Update(c.Request.Context(), c.Param("id"), draft)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, def)
}

func (h *EndpointHandler) Delete(c *gin.Context) {
	if err := h.endpointService.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "custom endpoint deleted"})
}

// Validate is a dry run of Create: it reports the first problem or
// {"valid": true}, and never writes.
func (h *EndpointHandler) Validate(c *gin.Context) {
	draft, ok := h.bindDraft(c)
	if !ok {
		return
	}

	if err := h.endpointService.Validate(c.Request.Context(), draft); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"valid": true})
}

// Revalidate checks a stored endpoint against the current schema.
func (h *EndpointHandler) Revalidate(c *gin.Context) {
	if err := h.endpointService.Revalidate(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"valid": true})
}

func (h *EndpointHandler) Plan(c *gin.Context) {
	plan, err := h.endpointService.Plan(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, plan)
}

// maxDraftBytes caps the request body of create, update and validate.
const maxDraftBytes = 1 << 20

// bindDraft decodes the request body. Malformed or oversized query trees
// surface with their own error code.
func (h *EndpointHandler) bindDraft(c *gin.Context) (*endpoint.Draft, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxDraftBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error(), "code": "body_too_large"})
		} else {
			badRequest(c, err)
		}
		return nil, false
	}

	draft, err := h.endpointService.DecodeDraft(body)
	if err != nil {
		if _, ok := endpoint.AsValidationError(err); ok {
			respondError(c, err)
		} else {
			badRequest(c, err)
		}
		return nil, false
	}
	return draft, true
}
