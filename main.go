package main

import (
	"log"
	"net/http"
	"os"

	controller "github.com/ankitm14/ContractSage/controller"
	"github.com/ankitm14/ContractSage/initializers"
	middleware "github.com/ankitm14/ContractSage/middleware"
	service "github.com/ankitm14/ContractSage/service"

	"github.com/gin-gonic/gin"
)

func init() {
	if err := initializers.LoadEnv(); err != nil {
		log.Printf("[WARN] no .env file loaded: %s", err)
	}
	if err := initializers.ConnectDB(); err != nil {
		log.Fatalf("[CRITICAL] Failed to initialize database connection: %s", err)
	}
	if err := initializers.Migrate(); err != nil {
		log.Fatalf("[CRITICAL] Failed to run database migrations: %s", err)
	}
}

func main() {
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("[CRITICAL] JWT_SECRET is not set")
	}

	analysisService, err := service.NewAnalysisService(initializers.DB, service.ConfigFromEnv())
	if err != nil {
		log.Fatalf("Failed to initialize analysis service: %s", err)
	}

	// Records stranded in "analyzing" by a crash have no other recovery path.
	if _, err := analysisService.RecoverStaleAnalyses(); err != nil {
		log.Printf("[WARN] stale analysis sweep failed: %s", err)
	}

	contractController := controller.NewContractController(analysisService)

	router := gin.Default()
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.RequestID())
	router.Use(middleware.GlobalRateLimiter.Limit())

	// Healthcheck endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	authed := router.Group("/", middleware.AuthMiddleware(jwtSecret))

	// Analysis is expensive; rate limit it harder than the read-back routes.
	authed.POST("/contracts/analyze",
		middleware.StrictRateLimiter.Limit(),
		contractController.AnalyzeContract)

	authed.GET("/contracts", contractController.ListContracts)
	authed.GET("/contracts/search", contractController.SearchContracts)
	authed.GET("/contracts/:id", contractController.GetContract)

	router.Run(":8080")
}
