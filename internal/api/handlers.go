package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/drug-risk-ml-server/internal/cache"
	"github.com/drug-risk-ml-server/internal/domain"
)

// predictRequest is the body of the prediction endpoints. ModelType is
// optional; absent or "default" resolves to the ensemble.
type predictRequest struct {
	Features  domain.FeaturePayload `json:"features"`
	DrugName  string                `json:"drug_name" binding:"required"`
	ModelType string                `json:"model_type"`
}

func (r *predictRequest) mode() domain.ModelMode {
	if r.ModelType == "" {
		return domain.MODE_DEFAULT
	}
	return domain.ModelMode(r.ModelType)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "healthy",
		"model_loaded": s.predictor != nil,
		"message":      "drug risk prediction service",
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleMetadata(c *gin.Context) {
	meta := s.predictor.Metadata()
	c.JSON(http.StatusOK, gin.H{
		"model_type":         meta.ModelType,
		"training_date":      meta.TrainingDate,
		"individual_models":  meta.IndividualModels,
		"selected_models":    meta.SelectedModels,
		"evaluation_results": meta.EvaluationResults,
		"feature_columns":    meta.FeatureColumns,
	})
}

func (s *Server) handlePredict(c *gin.Context) {
	req, ok := s.bindRequest(c)
	if !ok {
		return
	}

	mode := req.mode()
	if !mode.IsValid() || mode == domain.MODE_BOTH {
		s.respondBadRequest(c, "model_type must be ensemble, single_model or default")
		return
	}

	key := s.cacheKey(req, mode.Resolve())
	if payload, hit := s.cachedResponse(c, key); hit {
		c.Data(http.StatusOK, "application/json", payload)
		return
	}

	result, defaulted, err := s.predictor.Predict(&req.Features, req.DrugName, mode)
	if err != nil {
		s.respondError(c, err)
		return
	}

	s.recordAudit(c, req, mode, result, defaulted)
	s.respondCached(c, key, gin.H{
		"result":             result,
		"defaulted_features": defaulted,
		"request_id":         c.GetString("request_id"),
	})
}

func (s *Server) handlePredictBoth(c *gin.Context) {
	req, ok := s.bindRequest(c)
	if !ok {
		return
	}

	key := s.cacheKey(req, domain.MODE_BOTH)
	if payload, hit := s.cachedResponse(c, key); hit {
		c.Data(http.StatusOK, "application/json", payload)
		return
	}

	combined, defaulted, err := s.predictor.PredictBoth(&req.Features, req.DrugName)
	if err != nil {
		s.respondError(c, err)
		return
	}

	s.recordAudit(c, req, domain.MODE_BOTH, combined.Ensemble, defaulted)
	s.respondCached(c, key, gin.H{
		"result":             combined,
		"defaulted_features": defaulted,
		"request_id":         c.GetString("request_id"),
	})
}

func (s *Server) handleExplain(c *gin.Context) {
	req, ok := s.bindRequest(c)
	if !ok {
		return
	}

	mode := req.mode()
	if !mode.IsValid() || mode == domain.MODE_BOTH {
		s.respondBadRequest(c, "model_type must be ensemble, single_model or default")
		return
	}

	explanation, err := s.predictor.Explain(&req.Features, req.DrugName, mode)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"explanation": explanation,
		"request_id":  c.GetString("request_id"),
	})
}

func (s *Server) bindRequest(c *gin.Context) (*predictRequest, bool) {
	var req predictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondBadRequest(c, "invalid request body: "+err.Error())
		return nil, false
	}
	return &req, true
}

// cacheKey derives the cache key from the fully defaulted payload
// projected onto the persisted manifest, so equivalent requests share
// an entry regardless of field order or explicit defaults.
func (s *Server) cacheKey(req *predictRequest, mode domain.ModelMode) string {
	if s.cache == nil {
		return ""
	}
	row := req.Features.ToVector().Materialize(s.predictor.Metadata().FeatureColumns)
	return cache.Key(row, req.DrugName, mode)
}

func (s *Server) cachedResponse(c *gin.Context, key string) (json.RawMessage, bool) {
	if s.cache == nil || key == "" {
		return nil, false
	}
	return s.cache.Get(c.Request.Context(), key)
}

func (s *Server) respondCached(c *gin.Context, key string, body gin.H) {
	if s.cache != nil && key != "" {
		if payload, err := json.Marshal(body); err == nil {
			s.cache.Set(c.Request.Context(), key, payload)
		}
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) recordAudit(c *gin.Context, req *predictRequest, mode domain.ModelMode,
	result *domain.PredictionResult, defaulted []string) {
	if s.audit == nil {
		return
	}
	entry := &domain.AuditEntry{
		RequestID:         c.GetString("request_id"),
		DrugName:          req.DrugName,
		Mode:              mode,
		Probability:       result.Probability,
		RiskLevel:         result.RiskLevel,
		Confidence:        result.Confidence,
		DefaultedFeatures: defaulted,
	}
	if err := s.audit.Record(context.Background(), entry); err != nil {
		s.log.WithError(err).Warn("Audit record failed")
	}
}

func (s *Server) respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":      message,
		"request_id": c.GetString("request_id"),
	})
}

// respondError maps prediction failures onto HTTP statuses. Input
// problems are the caller's fault; everything else is request-scoped
// server failure and must not crash the loaded models.
func (s *Server) respondError(c *gin.Context, err error) {
	var vErr *domain.ValidationError
	if errors.As(err, &vErr) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      vErr.Error(),
			"field":      vErr.Field,
			"request_id": c.GetString("request_id"),
		})
		return
	}
	if errors.Is(err, domain.ErrInvalidMode) {
		s.respondBadRequest(c, "invalid model mode")
		return
	}

	s.log.WithFields(logrus.Fields{
		"request_id": c.GetString("request_id"),
	}).WithError(err).Error("Prediction failed")
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":      "prediction failed",
		"request_id": c.GetString("request_id"),
	})
}
