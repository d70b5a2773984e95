package server

import (
	"net/http"
	"strings"

	boxdomain "github.com/duniafantasy/fantasybox/internal/box/domain"
	"github.com/duniafantasy/fantasybox/internal/tenantcontext"
	"github.com/duniafantasy/fantasybox/pkg/db/pagination"
	"github.com/gin-gonic/gin"
)

type purchaseBoxRequest struct {
	CreditTier int    `json:"credit_tier"`
	Track      string `json:"track"`
}

func (s *Server) PurchaseBox(c *gin.Context) {
	var req purchaseBoxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	actorID, ok := tenantcontext.ActorIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	resp, err := s.boxSvc.Purchase(c.Request.Context(), boxdomain.PurchaseRequest{
		MemberID:   actorID.String(),
		CreditTier: req.CreditTier,
		Track:      strings.TrimSpace(req.Track),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) OpenBox(c *gin.Context) {
	actorID, ok := tenantcontext.ActorIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	resp, err := s.boxSvc.Open(c.Request.Context(), boxdomain.OpenRequest{
		MemberID:      actorID.String(),
		TransactionID: strings.TrimSpace(c.Param("id")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListInventory(c *gin.Context) {
	actorID, ok := tenantcontext.ActorIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	items, err := s.boxSvc.ListInventory(c.Request.Context(), actorID.String())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (s *Server) ListBoxTransactions(c *gin.Context) {
	var query struct {
		pagination.Pagination
		MemberID string `form:"member_id"`
		Status   string `form:"status"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.boxSvc.ListTransactions(c.Request.Context(), boxdomain.ListTransactionsRequest{
		PageToken: query.PageToken,
		PageSize:  query.PageSize,
		MemberID:  strings.TrimSpace(query.MemberID),
		Status:    strings.TrimSpace(query.Status),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type setProcessedRequest struct {
	Processed bool `json:"processed"`
}

func (s *Server) SetBoxProcessed(c *gin.Context) {
	var req setProcessedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.boxSvc.SetProcessed(c.Request.Context(), boxdomain.SetProcessedRequest{
		TransactionID: strings.TrimSpace(c.Param("id")),
		Processed:     req.Processed,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
