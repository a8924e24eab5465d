package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/topodata/geoflow/internal/http/middleware"
	"github.com/topodata/geoflow/internal/model"
	"github.com/topodata/geoflow/internal/repository"
)

// RecordStore is the generic record collaborator for the simple CRUD
// surfaces (clients, properties, professionals, services, registries,
// projects, cards, expenses).
type RecordStore interface {
	Upsert(ctx context.Context, principal model.Principal, kind string, id *uuid.UUID, fields map[string]interface{}) (uuid.UUID, error)
	Delete(ctx context.Context, principal model.Principal, kind string, id uuid.UUID) error
	List(ctx context.Context, principal model.Principal, kind string) ([]map[string]interface{}, error)
}

func (h *Handler) listRecords(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	rows, err := h.records.List(c.Request.Context(), principal, c.Param("kind"))
	if err != nil {
		h.handleRecordError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": rows})
}

func (h *Handler) createRecord(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	var fields map[string]interface{}
	if err := c.ShouldBindJSON(&fields); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, err := h.records.Upsert(c.Request.Context(), principal, c.Param("kind"), nil, fields)
	if err != nil {
		h.handleRecordError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id.String()})
}

func (h *Handler) updateRecord(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid record id"})
		return
	}
	var fields map[string]interface{}
	if err := c.ShouldBindJSON(&fields); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := h.records.Upsert(c.Request.Context(), principal, c.Param("kind"), &id, fields); err != nil {
		h.handleRecordError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id.String()})
}

func (h *Handler) deleteRecord(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid record id"})
		return
	}
	if err := h.records.Delete(c.Request.Context(), principal, c.Param("kind"), id); err != nil {
		h.handleRecordError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) handleRecordError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrUnknownKind):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
	default:
		h.handleError(c, err)
	}
}
