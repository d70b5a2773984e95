package server

import (
	"net/http"
	"strings"

	memberdomain "github.com/duniafantasy/fantasybox/internal/member/domain"
	"github.com/duniafantasy/fantasybox/internal/tenantcontext"
	"github.com/duniafantasy/fantasybox/pkg/db/pagination"
	"github.com/gin-gonic/gin"
)

type createMemberRequest struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

func (s *Server) CreateMember(c *gin.Context) {
	var req createMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	role := memberdomain.Role(strings.ToUpper(strings.TrimSpace(req.Role)))
	if role == "" {
		role = memberdomain.RoleMember
	}

	resp, err := s.memberSvc.Create(c.Request.Context(), memberdomain.CreateMemberRequest{
		Username: strings.TrimSpace(req.Username),
		Role:     role,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetMemberByID(c *gin.Context) {
	resp, err := s.memberSvc.GetByID(c.Request.Context(), memberdomain.GetMemberRequest{
		ID: strings.TrimSpace(c.Param("id")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListMembers(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Username string `form:"username"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.memberSvc.List(c.Request.Context(), memberdomain.ListMemberRequest{
		PageToken: query.PageToken,
		PageSize:  query.PageSize,
		Username:  strings.TrimSpace(query.Username),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// GetMe returns the acting member's own profile, balance included.
func (s *Server) GetMe(c *gin.Context) {
	actorID, ok := tenantcontext.ActorIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	resp, err := s.memberSvc.GetByID(c.Request.Context(), memberdomain.GetMemberRequest{
		ID: actorID.String(),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
