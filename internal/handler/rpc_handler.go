package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/arrayops/librarian/internal/response"
	"github.com/arrayops/librarian/internal/service/catalog"
	"github.com/arrayops/librarian/internal/service/event"
	"github.com/arrayops/librarian/internal/service/instance"
)

// RPCHandler serves the legacy flat RPC surface that client scripts and
// peer librarians call. These endpoints keep their historical shapes;
// the richer REST surface lives under /api/v1.
type RPCHandler struct {
	eventService    event.EventService
	instanceService instance.InstanceService
}

// NewRPCHandler creates the RPC handler.
func NewRPCHandler(eventService event.EventService, instanceService instance.InstanceService) *RPCHandler {
	return &RPCHandler{
		eventService:    eventService,
		instanceService: instanceService,
	}
}

type createFileEventRequest struct {
	FileName string                 `json:"file_name" binding:"required"`
	Type     string                 `json:"type" binding:"required"`
	Payload  map[string]interface{} `json:"payload"`
}

type locateFileInstanceRequest struct {
	FileName string `json:"file_name" binding:"required"`
}

// CreateFileEvent appends a client-supplied event to a file's log.
// @Summary Record a file event
// @Description Appends an event of a client-chosen type to the named file's event log
// @Tags rpc
// @Accept json
// @Produce json
// @Param request body createFileEventRequest true "event to record"
// @Success 200 {object} response.Response "empty data on success"
// @Failure 400 {object} response.Response "invalid name or oversized payload"
// @Failure 404 {object} response.Response "file is not cataloged"
// @Router /api/create_file_event [post]
func (h *RPCHandler) CreateFileEvent(c *gin.Context) {
	var req createFileEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "file_name and type are required")
		return
	}

	fileEvent, err := catalog.NewFileEvent(req.FileName, req.Type, req.Payload)
	if err != nil {
		response.AppError(c, err)
		return
	}

	if err := h.eventService.Append(fileEvent); err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, gin.H{})
}

// LocateFileInstance returns the preferred copy of a file.
// @Summary Locate a file instance
// @Description Resolves the named file to the copy a client should retrieve
// @Tags rpc
// @Accept json
// @Produce json
// @Param request body locateFileInstanceRequest true "file to locate"
// @Success 200 {object} response.Response "location of the preferred copy"
// @Failure 404 {object} response.Response "file unknown or has no copies"
// @Router /api/locate_file_instance [post]
func (h *RPCHandler) LocateFileInstance(c *gin.Context) {
	var req locateFileInstanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "file_name is required")
		return
	}

	location, err := h.instanceService.Locate(req.FileName)
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, location)
}
