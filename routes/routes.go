package routes

import (
	"label-service/controllers"
	"label-service/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterLabelRoutes sets up all label-printing routes.
func RegisterLabelRoutes(r *gin.Engine, lc *controllers.LabelController, jwtSecret []byte) {
	labels := r.Group("/labels")
	labels.Use(middleware.AuthMiddleware(jwtSecret))

	// Protected (internal/admin): trigger a consolidation run
	labels.POST("/batch-print", lc.BatchPrint)

	// Protected: audit and redownload past runs
	labels.GET("/runs", lc.ListRuns)
	labels.GET("/runs/:run_id", lc.GetRun)
}
