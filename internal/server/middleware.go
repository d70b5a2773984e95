package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	memberdomain "github.com/duniafantasy/fantasybox/internal/member/domain"
	"github.com/duniafantasy/fantasybox/internal/tenantcontext"
	"github.com/gin-gonic/gin"
)

// Identity arrives on trusted gateway headers; the service itself does
// not authenticate.
const (
	HeaderTenant = "X-Tenant-ID"
	HeaderMember = "X-Member-ID"
)

// TenantContext resolves the active tenant from the gateway header,
// falling back to the configured default tenant for single-tenant
// deployments.
func (s *Server) TenantContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderTenant))

		var tenantID snowflake.ID
		if raw != "" {
			parsed, err := snowflake.ParseString(raw)
			if err != nil || parsed == 0 {
				AbortWithError(c, newValidationError("tenant_id", "invalid_tenant", "invalid tenant id"))
				return
			}
			tenantID = parsed
		} else if s.cfg.DefaultTenantID != 0 {
			tenantID = snowflake.ID(s.cfg.DefaultTenantID)
		} else {
			AbortWithError(c, newValidationError("tenant_id", "invalid_tenant", "tenant id is required"))
			return
		}

		ctx := tenantcontext.WithTenantID(c.Request.Context(), tenantID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// ActorContext threads the acting member through the request context.
// Member-facing routes require it; staff routes tolerate its absence.
func (s *Server) ActorContext(required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderMember))
		if raw == "" {
			if required {
				AbortWithError(c, ErrUnauthorized)
				return
			}
			c.Next()
			return
		}

		actorID, err := snowflake.ParseString(raw)
		if err != nil || actorID == 0 {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := tenantcontext.WithActorID(c.Request.Context(), actorID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireStaff gates the panel surface: the acting member must exist in
// the tenant and carry the ADMIN or CS role.
func (s *Server) RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		actorID, ok := tenantcontext.ActorIDFromContext(ctx)
		if !ok || actorID == 0 {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		member, err := s.memberSvc.GetByID(ctx, memberdomain.GetMemberRequest{ID: actorID.String()})
		if err != nil {
			AbortWithError(c, ErrForbidden)
			return
		}
		if member.Role != memberdomain.RoleAdmin && member.Role != memberdomain.RoleCS {
			AbortWithError(c, ErrForbidden)
			return
		}
		c.Next()
	}
}

// PurchaseRateLimit throttles purchases per acting member. The limiter
// fails open when redis is unavailable.
func (s *Server) PurchaseRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.purchaseLimiter.Enabled() {
			c.Next()
			return
		}
		actorID, ok := tenantcontext.ActorIDFromContext(c.Request.Context())
		if !ok || actorID == 0 {
			c.Next()
			return
		}
		allowed, err := s.purchaseLimiter.AllowMember(c.Request.Context(), actorID.String())
		if err == nil && !allowed {
			AbortWithError(c, ErrTooManyRequests)
			return
		}
		c.Next()
	}
}
