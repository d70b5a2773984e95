package server

import (
	"net/http"
	"strconv"
	"strings"

	probabilitydomain "github.com/duniafantasy/fantasybox/internal/probability/domain"
	"github.com/gin-gonic/gin"
)

func (s *Server) ListRarities(c *gin.Context) {
	resp, err := s.probabilitySvc.ListRarities(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetTierWeights(c *gin.Context) {
	tier, err := parseTierParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.probabilitySvc.TierWeights(c.Request.Context(), tier)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type saveWeightsRequest struct {
	Rows []probabilitydomain.WeightInput `json:"rows"`
}

func (s *Server) SaveTierWeights(c *gin.Context) {
	tier, err := parseTierParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req saveWeightsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.probabilitySvc.SaveTierWeights(c.Request.Context(), probabilitydomain.SaveTierWeightsRequest{
		CreditTier: tier,
		Rows:       req.Rows,
	}); err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.probabilitySvc.TierWeights(c.Request.Context(), tier)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) SaveRewardWeights(c *gin.Context) {
	rarityID := strings.TrimSpace(c.Param("rarityId"))

	var req saveWeightsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.probabilitySvc.SaveRewardWeights(c.Request.Context(), probabilitydomain.SaveRewardWeightsRequest{
		RarityID: rarityID,
		Rows:     req.Rows,
	}); err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.probabilitySvc.ListRewards(c.Request.Context(), probabilitydomain.ListRewardsRequest{
		RarityID: rarityID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListRewards(c *gin.Context) {
	var query struct {
		RarityID string `form:"rarity_id"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.probabilitySvc.ListRewards(c.Request.Context(), probabilitydomain.ListRewardsRequest{
		RarityID: strings.TrimSpace(query.RarityID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type createRewardRequest struct {
	RarityID   string `json:"rarity_id"`
	Label      string `json:"label"`
	RewardType string `json:"reward_type"`
	Amount     int64  `json:"amount"`
}

func (s *Server) CreateReward(c *gin.Context) {
	var req createRewardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.probabilitySvc.CreateReward(c.Request.Context(), probabilitydomain.CreateRewardRequest{
		RarityID:   strings.TrimSpace(req.RarityID),
		Label:      req.Label,
		RewardType: probabilitydomain.RewardType(strings.ToUpper(strings.TrimSpace(req.RewardType))),
		Amount:     req.Amount,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type updateRewardRequest struct {
	Label    *string `json:"label"`
	Amount   *int64  `json:"amount"`
	IsActive *bool   `json:"is_active"`
}

func (s *Server) UpdateReward(c *gin.Context) {
	var req updateRewardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.probabilitySvc.UpdateReward(c.Request.Context(), probabilitydomain.UpdateRewardRequest{
		ID:       strings.TrimSpace(c.Param("id")),
		Label:    req.Label,
		Amount:   req.Amount,
		IsActive: req.IsActive,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func parseTierParam(c *gin.Context) (int, error) {
	tier, err := strconv.Atoi(strings.TrimSpace(c.Param("tier")))
	if err != nil {
		return 0, newValidationError("tier", "invalid_tier", "invalid credit tier")
	}
	return tier, nil
}
