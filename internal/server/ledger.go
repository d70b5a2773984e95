package server

import (
	"net/http"
	"strings"

	ledgerdomain "github.com/duniafantasy/fantasybox/internal/ledger/domain"
	"github.com/duniafantasy/fantasybox/pkg/db/pagination"
	"github.com/gin-gonic/gin"
)

type creditMutationRequest struct {
	MemberID    string `json:"member_id"`
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
}

func (s *Server) Topup(c *gin.Context) {
	var req creditMutationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.ledgerSvc.Topup(c.Request.Context(), ledgerdomain.TopupRequest{
		MemberID:    strings.TrimSpace(req.MemberID),
		Amount:      req.Amount,
		Description: strings.TrimSpace(req.Description),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) AdjustDown(c *gin.Context) {
	var req creditMutationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.ledgerSvc.AdjustDown(c.Request.Context(), ledgerdomain.AdjustDownRequest{
		MemberID:    strings.TrimSpace(req.MemberID),
		Amount:      req.Amount,
		Description: strings.TrimSpace(req.Description),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListLedgerEntries(c *gin.Context) {
	var query struct {
		pagination.Pagination
		MemberID string `form:"member_id"`
		Kind     string `form:"kind"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.ledgerSvc.List(c.Request.Context(), ledgerdomain.ListEntriesRequest{
		PageToken: query.PageToken,
		PageSize:  query.PageSize,
		MemberID:  strings.TrimSpace(query.MemberID),
		Kind:      strings.TrimSpace(query.Kind),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
