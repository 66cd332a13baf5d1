package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/piwi3910/msolo/internal/driver"
	"github.com/piwi3910/msolo/internal/lcmerr"
	"github.com/piwi3910/msolo/internal/models"
)

// setupRoutes configures all HTTP routes of the gateway.
// It organizes routes into logical groups:
//   - Health and readiness endpoints
//   - Prometheus metrics endpoint
//   - Orchestrator registry and NS lifecycle per orchestrator family
//   - Subscriptions and pushed notifications (NFVO only)
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthCheck.HealthHandler())
	s.router.GET("/ready", s.healthCheck.ReadinessHandler())

	if s.config.Observability.Metrics.Enabled {
		s.router.GET(s.config.Observability.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	s.router.GET("/", s.handleRoot)

	// Orchestrator family: /nfvo or /rano
	family := s.router.Group("/:type", s.orchestratorType())
	family.GET("", s.handleListOrchestrators)

	orchestrator := family.Group("/:orcId")
	if s.rateLimiter != nil {
		orchestrator.Use(s.rateLimiter.Middleware())
	}
	{
		orchestrator.GET("", s.handleGetOrchestrator)

		nsInstances := orchestrator.Group("/ns_instances")
		{
			nsInstances.GET("", s.handleListNs)
			nsInstances.POST("", s.handleCreateNs)
			nsInstances.GET("/:nsId", s.handleGetNs)
			nsInstances.DELETE("/:nsId", s.handleDeleteNs)
			nsInstances.POST("/:nsId/instantiate", s.handleInstantiateNs)
			nsInstances.POST("/:nsId/terminate", s.handleTerminateNs)
			nsInstances.POST("/:nsId/scale", s.handleScaleNs)
		}

		opOccs := orchestrator.Group("/ns_lcm_op_occs")
		{
			opOccs.GET("", s.handleListOps)
			opOccs.GET("/:opId", s.handleGetOp)
		}

		// Subscriptions and notifications exist for NFVOs only.
		subscriptions := orchestrator.Group("/subscriptions", s.requireFamily(models.NFVO))
		{
			subscriptions.GET("", s.handleListSubscriptions)
			subscriptions.POST("", s.handleCreateSubscription)
			subscriptions.GET("/:subId", s.handleGetSubscription)
			subscriptions.DELETE("/:subId", s.handleDeleteSubscription)
		}

		orchestrator.POST("/notifications", s.requireFamily(models.NFVO), s.handleNotification)
	}
}

const orchestratorTypeKey = "msolo.orchestratorType"

// orchestratorType parses the :type path parameter. Unknown families are
// not routed.
func (s *Server) orchestratorType() gin.HandlerFunc {
	return func(c *gin.Context) {
		orchType, err := models.ParseOrchestratorType(c.Param("type"))
		if err != nil {
			s.abortWithError(c, lcmerr.New(lcmerr.ErrResourceNotFound,
				fmt.Sprintf("Unknown orchestrator type %s.", c.Param("type"))))
			return
		}
		c.Set(orchestratorTypeKey, orchType)
		c.Next()
	}
}

// requireFamily restricts a route to one orchestrator family.
func (s *Server) requireFamily(want models.OrchestratorType) gin.HandlerFunc {
	return func(c *gin.Context) {
		if typeOf(c) != want {
			s.abortWithError(c, lcmerr.New(lcmerr.ErrResourceNotFound,
				fmt.Sprintf("Resource not available for %s.", typeOf(c))))
			return
		}
		c.Next()
	}
}

func typeOf(c *gin.Context) models.OrchestratorType {
	if v, ok := c.Get(orchestratorTypeKey); ok {
		if t, ok := v.(models.OrchestratorType); ok {
			return t
		}
	}
	return ""
}

// abortWithError writes err as the gateway error body with the status of
// its taxonomy kind.
func (s *Server) abortWithError(c *gin.Context, err error) {
	status := lcmerr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": lcmerr.Description(err)})
}

// handleRoot returns basic API information.
func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        "msolo",
		"description": "Multi-orchestrator NS lifecycle gateway",
		"endpoints": gin.H{
			"health":  "/health",
			"ready":   "/ready",
			"metrics": s.config.Observability.Metrics.Path,
			"nfvo":    "/nfvo",
			"rano":    "/rano",
		},
	})
}

// Orchestrator registry handlers

func (s *Server) handleListOrchestrators(c *gin.Context) {
	start := time.Now()
	orchs, err := s.repo.ListOrchestrators(c.Request.Context(), typeOf(c))
	s.recordRepository("list_orchestrators", start, err)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	if orchs == nil {
		orchs = []*models.Orchestrator{}
	}
	c.JSON(http.StatusOK, orchs)
}

func (s *Server) handleGetOrchestrator(c *gin.Context) {
	start := time.Now()
	orcID := c.Param("orcId")
	orch, err := s.repo.GetOrchestrator(c.Request.Context(), typeOf(c), orcID)
	s.recordRepository("get_orchestrator", start, err)
	if err != nil {
		s.abortWithError(c, lcmerr.Remap(err, lcmerr.OrchestratorNotFound(orcID)))
		return
	}
	c.JSON(http.StatusOK, orch)
}

func (s *Server) recordRepository(operation string, start time.Time, err error) {
	if s.metrics != nil {
		s.metrics.RecordRepositoryOperation(operation, time.Since(start), err)
	}
}

// NS lifecycle handlers

// driverCall is one driver operation bound to the request context.
type driverCall func(c *gin.Context, drv driver.Driver, args driver.Args) (any, driver.Headers, error)

// withoutBody adapts driver operations that return headers only.
func withoutBody(op func(c *gin.Context, drv driver.Driver, args driver.Args) (driver.Headers, error)) driverCall {
	return func(c *gin.Context, drv driver.Driver, args driver.Args) (any, driver.Headers, error) {
		headers, err := op(c, drv, args)
		return nil, headers, err
	}
}

// serveDriver resolves the driver of the addressed orchestrator, runs call
// and writes its result with status on success.
func (s *Server) serveDriver(c *gin.Context, operation string, status int, call driverCall) {
	orchType := typeOf(c)
	orcID := c.Param("orcId")

	args, err := requestArgs(c)
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	start := time.Now()
	drv, err := s.drivers.Resolve(c.Request.Context(), orchType, orcID)
	if err == nil {
		var (
			body    any
			headers driver.Headers
		)
		body, headers, err = call(c, drv, args)
		if err == nil {
			s.observeDriver(c, operation, start, nil)
			writeDriverResult(c, status, body, headers)
			return
		}
	}

	s.observeDriver(c, operation, start, err)
	s.abortWithError(c, err)
}

func (s *Server) observeDriver(c *gin.Context, operation string, start time.Time, err error) {
	family := string(typeOf(c))
	if s.metrics != nil {
		s.metrics.RecordDriverOperation(family, operation, time.Since(start), err)
	}
	s.log.WithContext(c.Request.Context()).LogDriverOperation(operation, family, c.Param("orcId"), err)
}

// requestArgs collects the JSON payload and query of the request. An empty
// body is an empty payload.
func requestArgs(c *gin.Context) (driver.Args, error) {
	args := driver.Args{Query: c.Request.URL.Query()}
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return args, nil
	}

	var payload map[string]any
	if err := c.ShouldBindJSON(&payload); err != nil {
		if errors.Is(err, io.EOF) {
			return args, nil
		}
		return args, lcmerr.BadRequest("Invalid JSON body: %v", err)
	}
	args.Payload = payload
	return args, nil
}

func writeDriverResult(c *gin.Context, status int, body any, headers driver.Headers) {
	for name, value := range headers {
		if name == driver.HeaderLocation {
			name = "Location"
		}
		c.Header(name, value)
	}
	if body == nil || status == http.StatusNoContent {
		c.Status(status)
		return
	}
	c.JSON(status, body)
}

func (s *Server) handleListNs(c *gin.Context) {
	s.serveDriver(c, "get_ns_list", http.StatusOK,
		func(c *gin.Context, drv driver.Driver, args driver.Args) (any, driver.Headers, error) {
			return drv.GetNsList(c.Request.Context(), args)
		})
}

func (s *Server) handleCreateNs(c *gin.Context) {
	s.serveDriver(c, "create_ns", http.StatusCreated,
		func(c *gin.Context, drv driver.Driver, args driver.Args) (any, driver.Headers, error) {
			return drv.CreateNs(c.Request.Context(), args)
		})
}

func (s *Server) handleGetNs(c *gin.Context) {
	s.serveDriver(c, "get_ns", http.StatusOK,
		func(c *gin.Context, drv driver.Driver, args driver.Args) (any, driver.Headers, error) {
			return drv.GetNs(c.Request.Context(), c.Param("nsId"), args)
		})
}

func (s *Server) handleDeleteNs(c *gin.Context) {
	s.serveDriver(c, "delete_ns", http.StatusNoContent,
		withoutBody(func(c *gin.Context, drv driver.Driver, args driver.Args) (driver.Headers, error) {
			return drv.DeleteNs(c.Request.Context(), c.Param("nsId"), args)
		}))
}

func (s *Server) handleInstantiateNs(c *gin.Context) {
	s.serveDriver(c, "instantiate_ns", http.StatusAccepted,
		withoutBody(func(c *gin.Context, drv driver.Driver, args driver.Args) (driver.Headers, error) {
			return drv.InstantiateNs(c.Request.Context(), c.Param("nsId"), args)
		}))
}

func (s *Server) handleTerminateNs(c *gin.Context) {
	s.serveDriver(c, "terminate_ns", http.StatusAccepted,
		withoutBody(func(c *gin.Context, drv driver.Driver, args driver.Args) (driver.Headers, error) {
			return drv.TerminateNs(c.Request.Context(), c.Param("nsId"), args)
		}))
}

func (s *Server) handleScaleNs(c *gin.Context) {
	s.serveDriver(c, "scale_ns", http.StatusAccepted,
		withoutBody(func(c *gin.Context, drv driver.Driver, args driver.Args) (driver.Headers, error) {
			return drv.ScaleNs(c.Request.Context(), c.Param("nsId"), args)
		}))
}

func (s *Server) handleListOps(c *gin.Context) {
	s.serveDriver(c, "get_op_list", http.StatusOK,
		func(c *gin.Context, drv driver.Driver, args driver.Args) (any, driver.Headers, error) {
			return drv.GetOpList(c.Request.Context(), args)
		})
}

func (s *Server) handleGetOp(c *gin.Context) {
	s.serveDriver(c, "get_op", http.StatusOK,
		func(c *gin.Context, drv driver.Driver, args driver.Args) (any, driver.Headers, error) {
			return drv.GetOp(c.Request.Context(), c.Param("opId"), args)
		})
}
