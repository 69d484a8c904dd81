package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/arrayops/librarian/internal/database"
	"github.com/arrayops/librarian/internal/response"
	storeservice "github.com/arrayops/librarian/internal/service/store"
)

// StoreHandler serves the store administration surface.
type StoreHandler struct {
	storeService storeservice.StoreService
}

// NewStoreHandler creates the store handler.
func NewStoreHandler(storeService storeservice.StoreService) *StoreHandler {
	return &StoreHandler{storeService: storeService}
}

type availabilityRequest struct {
	Available *bool `json:"available" binding:"required"`
}

// CreateStore registers a storage node.
// @Summary Register a store
// @Tags stores
// @Accept json
// @Produce json
// @Param request body database.Store true "store to register"
// @Success 200 {object} response.Response "the created store"
// @Failure 400 {object} response.Response "invalid store kind"
// @Failure 409 {object} response.Response "a store with this name exists"
// @Router /api/v1/stores [post]
func (h *StoreHandler) CreateStore(c *gin.Context) {
	var store database.Store
	if err := c.ShouldBindJSON(&store); err != nil {
		response.BadRequest(c, "invalid store definition")
		return
	}

	created, err := h.storeService.CreateStore(&store)
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, created)
}

// ListStores returns every registered store.
// @Summary List stores
// @Tags stores
// @Produce json
// @Success 200 {object} response.Response "all stores"
// @Router /api/v1/stores [get]
func (h *StoreHandler) ListStores(c *gin.Context) {
	stores, err := h.storeService.ListStores()
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, stores)
}

// GetStore returns one store.
// @Summary Get a store
// @Tags stores
// @Produce json
// @Param name path string true "store name"
// @Success 200 {object} response.Response "the store"
// @Failure 404 {object} response.Response "store is not registered"
// @Router /api/v1/stores/{name} [get]
func (h *StoreHandler) GetStore(c *gin.Context) {
	store, err := h.storeService.GetStoreByName(c.Param("name"))
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, store)
}

// SetAvailability flips whether a store may serve file copies.
// @Summary Set store availability
// @Tags stores
// @Accept json
// @Produce json
// @Param name path string true "store name"
// @Param request body availabilityRequest true "new availability"
// @Success 200 {object} response.Response "the updated store"
// @Failure 404 {object} response.Response "store is not registered"
// @Router /api/v1/stores/{name}/availability [put]
func (h *StoreHandler) SetAvailability(c *gin.Context) {
	var req availabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "available is required")
		return
	}

	store, err := h.storeService.SetAvailability(c.Param("name"), *req.Available)
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, store)
}

// TestStore checks that a store is reachable through its prober.
// @Summary Test a store connection
// @Tags stores
// @Produce json
// @Param name path string true "store name"
// @Success 200 {object} response.Response "empty data when reachable"
// @Failure 502 {object} response.Response "store is unreachable"
// @Router /api/v1/stores/{name}/test [post]
func (h *StoreHandler) TestStore(c *gin.Context) {
	if err := h.storeService.TestStore(c.Param("name")); err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, gin.H{})
}
