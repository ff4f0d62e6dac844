package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/EternisAI/orca/internal/api/http/dto"
	"github.com/EternisAI/orca/internal/identity"
	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 100
	maxPageSize     = 1000
)

type IdentityReader interface {
	List(ctx context.Context, limit, offset int) ([]identity.Identity, error)
	Lookup(ctx context.Context, identifier string) (*identity.Identity, error)
}

type IdentityHandler struct {
	identities IdentityReader
}

func NewIdentityHandler(identities IdentityReader) *IdentityHandler {
	return &IdentityHandler{identities: identities}
}

// ListIdentities returns registered machines, most recently seen first
// GET /api/v1/identities?limit=&offset=
func (h *IdentityHandler) ListIdentities(c *gin.Context) {
	limit, ok := queryInt(c, "limit", defaultPageSize)
	if !ok {
		return
	}
	offset, ok := queryInt(c, "offset", 0)
	if !ok {
		return
	}
	limit = min(limit, maxPageSize)

	list, err := h.identities.List(c.Request.Context(), limit, offset)
	if err != nil {
		slog.Error("Failed to list identities", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list identities"})
		return
	}

	responses := make([]dto.IdentityResponse, len(list))
	for i, ident := range list {
		responses[i] = toIdentityResponse(ident)
	}

	c.JSON(http.StatusOK, dto.ListIdentitiesResponse{Identities: responses, Count: len(responses)})
}

// GetIdentity resolves an id, ip, hostname or MAC address
// GET /api/v1/identities/:identifier
func (h *IdentityHandler) GetIdentity(c *gin.Context) {
	identifier := c.Param("identifier")

	ident, err := h.identities.Lookup(c.Request.Context(), identifier)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrAmbiguousIdentifier):
			c.JSON(http.StatusConflict, gin.H{"error": "identifier matches more than one identity"})
		case errors.Is(err, identity.ErrIdentityNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "identity not found"})
		default:
			slog.Error("Failed to look up identity", "error", err, "identifier", identifier)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to look up identity"})
		}
		return
	}

	c.JSON(http.StatusOK, toIdentityResponse(*ident))
}

func toIdentityResponse(ident identity.Identity) dto.IdentityResponse {
	return dto.IdentityResponse{
		ID:         ident.ID,
		IP:         ident.IP,
		Hostname:   ident.Hostname,
		MACAddress: ident.MACAddress,
		CreatedAt:  ident.CreatedAt,
		UpdatedAt:  ident.UpdatedAt,
	}
}

func queryInt(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return v, true
}
