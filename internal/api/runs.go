package api

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/wisdomia/uiverify/internal/flows"
	"github.com/wisdomia/uiverify/internal/version"
)

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
		"version":   version.GetInfo(),
	})
}

func (s *Server) listRuns(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    s.runs.LatestAll(),
	})
}

func (s *Server) getRun(c *gin.Context) {
	name, ok := knownFlow(c)
	if !ok {
		return
	}
	res, ok := s.runs.Latest(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "flow has not run yet",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    res,
	})
}

// triggerRun runs a flow. By default the request waits for the result; with
// ?async=true it returns 202 immediately and the result shows up under GET.
func (s *Server) triggerRun(c *gin.Context) {
	name, ok := knownFlow(c)
	if !ok {
		return
	}

	if c.Query("async") == "true" {
		go func() {
			if _, err := s.runs.Run(s.baseCtx, name); err != nil {
				s.log.Warn("Triggered run failed", zap.String("flow", name), zap.Error(err))
			}
		}()
		c.JSON(http.StatusAccepted, gin.H{
			"success": true,
			"message": "run started",
		})
		return
	}

	res, err := s.runs.Run(c.Request.Context(), name)
	if res == nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": !res.Failed(),
		"data":    res,
	})
}

func knownFlow(c *gin.Context) (string, bool) {
	name := c.Param("flow")
	if !slices.Contains(flows.Names(), name) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "unknown flow: " + name,
		})
		return "", false
	}
	return name, true
}
