package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/arrayops/librarian/internal/response"
	"github.com/arrayops/librarian/internal/service/instance"
)

// InstanceHandler serves the instance REST surface.
type InstanceHandler struct {
	instanceService instance.InstanceService
}

// NewInstanceHandler creates the instance handler.
func NewInstanceHandler(instanceService instance.InstanceService) *InstanceHandler {
	return &InstanceHandler{instanceService: instanceService}
}

type instanceRequest struct {
	StoreName  string `json:"store_name" binding:"required"`
	ParentDirs string `json:"parent_dirs"`
	FileName   string `json:"file_name" binding:"required"`
}

// CreateInstance records a copy of a cataloged file on a store.
// @Summary Record a file instance
// @Tags instances
// @Accept json
// @Produce json
// @Param request body instanceRequest true "copy to record"
// @Success 200 {object} response.Response "the recorded instance"
// @Failure 404 {object} response.Response "file or store unknown"
// @Failure 409 {object} response.Response "this copy is already recorded"
// @Router /api/v1/instances [post]
func (h *InstanceHandler) CreateInstance(c *gin.Context) {
	var req instanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "store_name and file_name are required")
		return
	}

	inst, err := h.instanceService.CreateInstance(req.StoreName, req.ParentDirs, req.FileName)
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, inst)
}

// DeleteInstance forgets a recorded copy. The File record survives.
// @Summary Delete a file instance
// @Tags instances
// @Accept json
// @Produce json
// @Param request body instanceRequest true "copy to forget"
// @Success 200 {object} response.Response "empty data on success"
// @Failure 404 {object} response.Response "copy was not recorded"
// @Router /api/v1/instances [delete]
func (h *InstanceHandler) DeleteInstance(c *gin.Context) {
	var req instanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "store_name and file_name are required")
		return
	}

	if err := h.instanceService.DeleteInstance(req.StoreName, req.ParentDirs, req.FileName); err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, gin.H{})
}
