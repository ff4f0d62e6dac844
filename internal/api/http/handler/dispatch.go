package handler

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"

	"github.com/EternisAI/orca/internal/api/http/dto"
	"github.com/EternisAI/orca/internal/dispatch"
	"github.com/EternisAI/orca/internal/identity"
	"github.com/EternisAI/orca/internal/protocol"
	"github.com/gin-gonic/gin"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, req dispatch.Request) (*dispatch.Result, error)
}

type DispatchHandler struct {
	dispatcher Dispatcher
}

func NewDispatchHandler(dispatcher Dispatcher) *DispatchHandler {
	return &DispatchHandler{dispatcher: dispatcher}
}

// Dispatch runs one command on one machine
// POST /api/v1/dispatch
func (h *DispatchHandler) Dispatch(c *gin.Context) {
	var req dto.DispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "command and client are required"})
		return
	}

	files := make([]protocol.File, 0, len(req.Attachments))
	for _, a := range req.Attachments {
		content, err := base64.StdEncoding.DecodeString(a.Content)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "attachment " + a.Name + " is not valid base64"})
			return
		}
		files = append(files, protocol.File{Name: a.Name, Content: content})
	}

	slog.Info("Received dispatch command", "client", req.Client, "command", req.Command)

	result, err := h.dispatcher.Dispatch(c.Request.Context(), dispatch.Request{
		Target:    req.Client,
		Command:   req.Command,
		FilePaths: dispatch.ParseFileList(req.Files),
		Files:     files,
	})

	resp := dto.DispatchResponse{Success: err == nil}
	if result != nil {
		resp.Stdout = string(result.Response)
		resp.ClientID = result.Identity.ID
		resp.ClientIP = result.Identity.IP
		resp.Files = result.Files
		resp.Truncated = result.Truncated
		if result.Event != nil {
			resp.EventID = &result.Event.ID
		}
	}
	if err != nil {
		slog.Error("Dispatch command failed", "client", req.Client, "error", err)
		resp.Stderr = err.Error()
	}

	c.JSON(dispatchStatus(err), resp)
}

func dispatchStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, identity.ErrAmbiguousIdentifier):
		return http.StatusConflict
	case errors.Is(err, identity.ErrIdentityNotFound):
		return http.StatusNotFound
	case errors.Is(err, dispatch.ErrConnect), errors.Is(err, dispatch.ErrSend), errors.Is(err, dispatch.ErrRead):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
