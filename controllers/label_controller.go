package controllers

import (
	"net/http"
	"strconv"

	"label-service/models"
	"label-service/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// LabelController handles HTTP requests for label printing.
type LabelController struct {
	printService services.LabelPrintService
}

// NewLabelController creates a new LabelController.
func NewLabelController(svc services.LabelPrintService) *LabelController {
	return &LabelController{printService: svc}
}

// BatchPrint handles POST /labels/batch-print
func (lc *LabelController) BatchPrint(ctx *gin.Context) {
	var req models.BatchPrintRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	resp, svcErr := lc.printService.PrintLabels(ctx.Request.Context(), &req)
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	ctx.JSON(http.StatusOK, resp)
}

// GetRun handles GET /labels/runs/:run_id
func (lc *LabelController) GetRun(ctx *gin.Context) {
	id, err := uuid.Parse(ctx.Param("run_id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid run ID"})
		return
	}

	run, svcErr := lc.printService.GetRun(ctx.Request.Context(), id)
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	ctx.JSON(http.StatusOK, run)
}

// ListRuns handles GET /labels/runs
func (lc *LabelController) ListRuns(ctx *gin.Context) {
	page, limit := parsePaginationParams(ctx)

	runs, total, svcErr := lc.printService.ListRuns(ctx.Request.Context(), page, limit)
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"runs": runs, "total": total, "page": page, "limit": limit})
}

// parsePaginationParams extracts and validates page/limit query params.
func parsePaginationParams(ctx *gin.Context) (int, int) {
	const maxLimit = 100
	pageInt, limitInt := 1, 10
	if p, err := strconv.Atoi(ctx.DefaultQuery("page", "1")); err == nil && p > 0 {
		pageInt = p
	}
	if l, err := strconv.Atoi(ctx.DefaultQuery("limit", "10")); err == nil && l > 0 {
		if l > maxLimit {
			l = maxLimit
		}
		limitInt = l
	}
	return pageInt, limitInt
}
