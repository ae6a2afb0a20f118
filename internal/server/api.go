package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	bagdomain "github.com/smallbiznis/cemtrack/internal/bag/domain"
	usagedomain "github.com/smallbiznis/cemtrack/internal/usage/domain"
	"github.com/smallbiznis/cemtrack/pkg/db/pagination"
)

func (s *Server) GetDashboardStats(c *gin.Context) {
	stats, err := s.dashboardSvc.GetStats(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (s *Server) RegisterBatch(c *gin.Context) {
	var req bagdomain.RegisterBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.bagSvc.RegisterBatch(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (s *Server) RecordUsage(c *gin.Context) {
	var req usagedomain.RecordUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.usageSvc.RecordUsage(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (s *Server) ListBagUsage(c *gin.Context) {
	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.usageSvc.List(c.Request.Context(), usagedomain.ListUsageRequest{
		BagID:     c.Param("bag_id"),
		PageToken: page.PageToken,
		PageSize:  page.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

type generateLabelsRequest struct {
	IDs []string `json:"ids"`
}

func (s *Server) GenerateLabels(c *gin.Context) {
	var req generateLabelsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	doc, err := s.labels.GenerateLabels(c.Request.Context(), req.IDs)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	body, err := io.ReadAll(doc)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="bag-labels.pdf"`)
	c.Data(http.StatusOK, "application/pdf", body)
}
