package controller

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/ankitm14/ContractSage/middleware"
	model "github.com/ankitm14/ContractSage/models"
	service "github.com/ankitm14/ContractSage/service"

	"github.com/gin-gonic/gin"
)

// ContractAnalyzer is the slice of the analysis service the HTTP layer
// needs; tests substitute a mock.
type ContractAnalyzer interface {
	AnalyzeContract(ctx context.Context, userID, contractID string) (*model.Contract, error)
	GetContract(userID, contractID string) (*model.Contract, error)
	ListContracts(userID string) ([]model.Contract, error)
	SearchContracts(userID, query string) ([]map[string]interface{}, error)
}

// ContractController handles the contract analysis HTTP surface.
type ContractController struct {
	service ContractAnalyzer
}

func NewContractController(service ContractAnalyzer) *ContractController {
	return &ContractController{service}
}

type analyzeRequest struct {
	ContractID string `json:"contract_id"`
}

// AnalyzeContract triggers the analysis pipeline for one contract.
func (cc *ContractController) AnalyzeContract(ctx *gin.Context) {
	var req analyzeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}
	if req.ContractID == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "contract_id is required"})
		return
	}

	userID := middleware.GetUserID(ctx)
	contract, err := cc.service.AnalyzeContract(ctx.Request.Context(), userID, req.ContractID)
	if err != nil {
		log.Printf("Analyze request for contract %s failed: %v", req.ContractID, err)
		ctx.JSON(statusForError(err), gin.H{"success": false, "error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"success":     true,
		"contract_id": contract.ID,
		"status":      contract.Status,
	})
}

// GetContract returns one contract record for status/result read-back.
func (cc *ContractController) GetContract(ctx *gin.Context) {
	userID := middleware.GetUserID(ctx)
	contract, err := cc.service.GetContract(userID, ctx.Param("id"))
	if err != nil {
		ctx.JSON(statusForError(err), gin.H{"success": false, "error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"success": true, "contract": contract})
}

// ListContracts returns every contract owned by the caller.
func (cc *ContractController) ListContracts(ctx *gin.Context) {
	userID := middleware.GetUserID(ctx)
	contracts, err := cc.service.ListContracts(userID)
	if err != nil {
		log.Printf("Error listing contracts for user %s: %v", userID, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to retrieve contracts"})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"success":   true,
		"contracts": contracts,
		"total":     len(contracts),
	})
}

// SearchContracts runs a full-text query over the caller's indexed analyses.
func (cc *ContractController) SearchContracts(ctx *gin.Context) {
	query := ctx.Query("q")
	if query == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "query parameter 'q' is required"})
		return
	}

	userID := middleware.GetUserID(ctx)
	results, err := cc.service.SearchContracts(userID, query)
	if err != nil {
		ctx.JSON(statusForError(err), gin.H{"success": false, "error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"success": true, "results": results})
}

// statusForError maps the pipeline error taxonomy onto HTTP statuses.
func statusForError(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrSearchUnavailable):
		// Disabled, not broken: search is an optional component.
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
