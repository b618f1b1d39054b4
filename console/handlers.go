package console

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/kitchen_admin/config"
	"github.com/mmdatafocus/kitchen_admin/edo"
	"github.com/mmdatafocus/kitchen_admin/models"
	"github.com/mmdatafocus/kitchen_admin/utils"
	"gorm.io/gorm"
)

const moduleName = "console"

// RegisterRoutes mounts the EDO console API under /api/console/edo.
func RegisterRoutes(r gin.IRouter, reg *Registry) {
	g := r.Group("/api/console/edo")
	g.GET("/health", healthHandler())

	sessions := g.Group("/sessions", requireUser())
	sessions.POST("", createSessionHandler(reg))
	sessions.GET("/:id/view", viewHandler(reg))
	sessions.POST("/:id/intents", intentHandler(reg))
	sessions.DELETE("/:id", deleteSessionHandler(reg))

	g.GET("/documents/:docflowId/activity", activityHandler())
	g.GET("/documents/:docflowId/events", eventStatusHandler())
	g.POST("/documents/:docflowId/events/reprocess", reprocessEventsHandler())
}

func healthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"ok":                    true,
			"service":               "diadoc-connector",
			"environmentConfigured": config.DiadocConfigured(),
		})
	}
}

// requireUser rejects callers without a resolved session user.
func requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if username, ok := utils.GetUsernameFromContext(c.Request.Context()); !ok || username == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func currentUser(c *gin.Context) string {
	username, _ := utils.GetUsernameFromContext(c.Request.Context())
	return username
}

func createSessionHandler(reg *Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, res := reg.Create(c.Request.Context(), currentUser(c))
		c.JSON(http.StatusCreated, gin.H{"sessionId": id, "result": res})
	}
}

func lookup(c *gin.Context, reg *Registry) (*edo.Controller, bool) {
	controller, ok := reg.Get(c.Param("id"), currentUser(c))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return nil, false
	}
	c.Request = c.Request.WithContext(utils.SetSessionIdInContext(c.Request.Context(), c.Param("id")))
	return controller, true
}

func viewHandler(reg *Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		controller, ok := lookup(c, reg)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, controller.View())
	}
}

func intentHandler(reg *Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		controller, ok := lookup(c, reg)
		if !ok {
			return
		}
		var cmd edo.Command
		if err := c.ShouldBindJSON(&cmd); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		// Action failures are reported as notices inside the result.
		c.JSON(http.StatusOK, controller.Dispatch(c.Request.Context(), cmd))
	}
}

func deleteSessionHandler(reg *Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !reg.Delete(c.Param("id"), currentUser(c)) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func activityHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.Query("limit"))
		rows, err := models.ListEdoActivity(c.Request.Context(), models.EdoActivityFilter{
			DocflowId: c.Param("docflowId"),
			Kind:      c.Query("kind"),
			Limit:     limit,
		})
		if err != nil {
			writeModelError(c, "activityHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": rows})
	}
}

func eventStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		status, err := models.GetEdoEventStatus(c.Request.Context(), c.Param("docflowId"))
		if err != nil {
			writeModelError(c, "eventStatusHandler", err)
			return
		}
		c.JSON(http.StatusOK, status)
	}
}

func reprocessEventsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if currentUser(c) == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		status, err := models.ReprocessEdoEvents(c.Request.Context(), c.Param("docflowId"))
		if err != nil {
			writeModelError(c, "reprocessEventsHandler", err)
			return
		}
		c.JSON(http.StatusOK, status)
	}
}

func writeModelError(c *gin.Context, funcName string, err error) {
	switch {
	case errors.Is(err, models.ErrJournalDisabled):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "nothing to reprocess"})
	default:
		config.LogError(config.GetLogger(), moduleName, funcName, c.Param("docflowId"), nil, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
