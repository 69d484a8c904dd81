// Package handler contains the gin HTTP handlers for the librarian API.
package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arrayops/librarian/internal/response"
	"github.com/arrayops/librarian/internal/service/catalog"
	"github.com/arrayops/librarian/internal/service/event"
	"github.com/arrayops/librarian/internal/service/instance"
	storeservice "github.com/arrayops/librarian/internal/service/store"
)

// FileHandler serves the catalog REST surface.
type FileHandler struct {
	catalogService  catalog.CatalogService
	eventService    event.EventService
	instanceService instance.InstanceService
	storeService    storeservice.StoreService

	// sourceName is this librarian's name, stamped onto files created
	// through this handler.
	sourceName string
}

// NewFileHandler creates the file handler.
func NewFileHandler(catalogService catalog.CatalogService, eventService event.EventService, instanceService instance.InstanceService, storeService storeservice.StoreService, sourceName string) *FileHandler {
	return &FileHandler{
		catalogService:  catalogService,
		eventService:    eventService,
		instanceService: instanceService,
		storeService:    storeService,
		sourceName:      sourceName,
	}
}

type registerFileRequest struct {
	Name       string `json:"name" binding:"required"`
	Type       string `json:"type" binding:"required"`
	ObsID      int64  `json:"obsid" binding:"required"`
	Size       int64  `json:"size"`
	MD5        string `json:"md5" binding:"required"`
	CreateTime *int64 `json:"create_time"`
}

type resolveFileRequest struct {
	StoreName string                 `json:"store_name" binding:"required"`
	StorePath string                 `json:"store_path" binding:"required"`
	Info      *storeservice.FileInfo `json:"info"`
}

type importFileRequest struct {
	SourceName string             `json:"source_name" binding:"required"`
	Record     catalog.FileRecord `json:"record" binding:"required"`
}

// RegisterFile catalogs a new file.
// @Summary Register a file
// @Description Validates and persists a new catalog entry; existing entries are never overwritten
// @Tags files
// @Accept json
// @Produce json
// @Param request body registerFileRequest true "file to register"
// @Success 200 {object} response.Response "the created file"
// @Failure 400 {object} response.Response "invalid name, md5 or size"
// @Failure 409 {object} response.Response "a file with this name exists"
// @Router /api/v1/files [post]
func (h *FileHandler) RegisterFile(c *gin.Context) {
	var req registerFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "name, type, obsid and md5 are required")
		return
	}

	var createTime *time.Time
	if req.CreateTime != nil {
		t := time.Unix(*req.CreateTime, 0).UTC()
		createTime = &t
	}

	file, err := h.catalogService.RegisterFile(req.Name, req.Type, req.ObsID, h.sourceName, req.Size, req.MD5, createTime)
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, file)
}

// ListFiles returns a page of the catalog.
// @Summary List files
// @Tags files
// @Produce json
// @Param page query int false "page number, from 1"
// @Param page_size query int false "page size, default 20"
// @Success 200 {object} response.Response "paged file list"
// @Router /api/v1/files [get]
func (h *FileHandler) ListFiles(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 500 {
		pageSize = 20
	}

	files, total, err := h.catalogService.ListFiles(page, pageSize)
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.SuccessWithPage(c, files, total, page, pageSize)
}

// GetFile returns one catalog entry.
// @Summary Get a file
// @Tags files
// @Produce json
// @Param name path string true "file name"
// @Success 200 {object} response.Response "the file"
// @Failure 404 {object} response.Response "file is not cataloged"
// @Router /api/v1/files/{name} [get]
func (h *FileHandler) GetFile(c *gin.Context) {
	file, err := h.catalogService.GetFileByName(c.Param("name"))
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, file)
}

// GetFileEvents returns a file's event history, most recent first.
// @Summary Get a file's events
// @Tags files
// @Produce json
// @Param name path string true "file name"
// @Success 200 {object} response.Response "the file's events"
// @Failure 404 {object} response.Response "file is not cataloged"
// @Router /api/v1/files/{name}/events [get]
func (h *FileHandler) GetFileEvents(c *gin.Context) {
	name := c.Param("name")
	if _, err := h.catalogService.GetFileByName(name); err != nil {
		response.AppError(c, err)
		return
	}

	events, err := h.eventService.History(name)
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, events)
}

// GetFileInstances returns every recorded copy of a file.
// @Summary Get a file's instances
// @Tags files
// @Produce json
// @Param name path string true "file name"
// @Success 200 {object} response.Response "the file's instances"
// @Failure 404 {object} response.Response "file is not cataloged"
// @Router /api/v1/files/{name}/instances [get]
func (h *FileHandler) GetFileInstances(c *gin.Context) {
	name := c.Param("name")
	if _, err := h.catalogService.GetFileByName(name); err != nil {
		response.AppError(c, err)
		return
	}

	instances, err := h.instanceService.ListInstances(name)
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, instances)
}

// GetFileRecord returns a file's serialized exchange record.
// @Summary Export a file record
// @Description Returns the serialized form used to share the file with another librarian
// @Tags files
// @Produce json
// @Param name path string true "file name"
// @Success 200 {object} response.Response "the serialized record"
// @Failure 404 {object} response.Response "file is not cataloged"
// @Router /api/v1/files/{name}/record [get]
func (h *FileHandler) GetFileRecord(c *gin.Context) {
	file, err := h.catalogService.GetFileByName(c.Param("name"))
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, h.catalogService.ExportFile(file))
}

// ImportFileRecord catalogs a record received from another librarian.
// @Summary Import a file record
// @Description Reconstructs a catalog entry from a record shared by a peer librarian
// @Tags files
// @Accept json
// @Produce json
// @Param request body importFileRequest true "record and its sender"
// @Success 200 {object} response.Response "the created file"
// @Failure 400 {object} response.Response "invalid record"
// @Failure 409 {object} response.Response "a file with this name exists"
// @Router /api/v1/files/import [post]
func (h *FileHandler) ImportFileRecord(c *gin.Context) {
	var req importFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "source_name and record are required")
		return
	}

	file, err := h.catalogService.ImportFile(req.SourceName, &req.Record)
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, file)
}

// ResolveFile resolves a store path to its catalog entry, creating the
// entry when the path is unseen.
// @Summary Resolve a store path
// @Description Returns the File for a path on a store, probing the store for metadata when the path is new
// @Tags files
// @Accept json
// @Produce json
// @Param request body resolveFileRequest true "store path to resolve, with optional pre-probed metadata"
// @Success 200 {object} response.Response "the resolved file"
// @Failure 404 {object} response.Response "store is not registered"
// @Failure 502 {object} response.Response "store probe failed"
// @Router /api/v1/files/resolve [post]
func (h *FileHandler) ResolveFile(c *gin.Context) {
	var req resolveFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "store_name and store_path are required")
		return
	}

	store, err := h.storeService.GetStoreByName(req.StoreName)
	if err != nil {
		response.AppError(c, err)
		return
	}

	file, err := h.catalogService.ResolveFile(store, req.StorePath, h.sourceName, req.Info)
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, file)
}
