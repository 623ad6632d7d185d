package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drug-risk-ml-server/internal/artifacts"
	"github.com/drug-risk-ml-server/internal/cache"
	"github.com/drug-risk-ml-server/internal/domain"
	"github.com/drug-risk-ml-server/internal/features"
	"github.com/drug-risk-ml-server/internal/ml"
	"github.com/drug-risk-ml-server/internal/service"
)

type stubConfigManager struct {
	cfg *domain.Config
}

func (m *stubConfigManager) GetConfig() *domain.Config                   { return m.cfg }
func (m *stubConfigManager) GetServerConfig() *domain.ServerConfig       { return &m.cfg.Server }
func (m *stubConfigManager) GetWarehouseConfig() *domain.WarehouseConfig { return &m.cfg.Warehouse }
func (m *stubConfigManager) GetModelConfig() *domain.ModelConfig         { return &m.cfg.Model }
func (m *stubConfigManager) GetRiskConfig() *domain.RiskConfig           { return &m.cfg.Risk }
func (m *stubConfigManager) Validate() error                             { return nil }
func (m *stubConfigManager) Reload() error                               { return nil }

type stubModel struct {
	name        string
	prob        float64
	importances []float64
}

func (s *stubModel) Name() string                     { return s.name }
func (s *stubModel) Fit([][]float64, []int) error     { return nil }
func (s *stubModel) PredictProba(x []float64) float64 { return s.prob }
func (s *stubModel) FeatureImportances() []float64    { return s.importances }

type recordingAudit struct {
	entries []*domain.AuditEntry
}

func (r *recordingAudit) Record(ctx context.Context, entry *domain.AuditEntry) error {
	r.entries = append(r.entries, entry)
	return nil
}

func (r *recordingAudit) Close() error { return nil }

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func testConfig(rps float64, burst int) *stubConfigManager {
	return &stubConfigManager{cfg: &domain.Config{
		Server: domain.ServerConfig{
			Host:           "127.0.0.1",
			Port:           5001,
			RateLimitRPS:   rps,
			RateLimitBurst: burst,
		},
		Risk: domain.RiskConfig{
			HighThreshold:       0.7,
			ModerateThreshold:   0.4,
			ConfidenceHighUpper: 0.8,
			ConfidenceHighLower: 0.2,
			ConfidenceMedUpper:  0.6,
			ConfidenceMedLower:  0.4,
		},
		Logging: domain.LoggingConfig{Level: "error"},
	}}
}

func testPredictor(t *testing.T, ensembleProbs []float64, singleProb float64) *service.Predictor {
	t.Helper()

	schema := features.NewSchema([]string{"WARFARIN"}, 100)
	columns := schema.Columns()

	scaler := features.NewScaler()
	zeros := make([]float64, len(columns))
	_, err := scaler.FitTransform([][]float64{zeros, zeros})
	require.NoError(t, err)

	bundle := &artifacts.Bundle{
		Single: &stubModel{name: "xgb", prob: singleProb, importances: make([]float64, len(columns))},
		Scaler: scaler,
		Metadata: domain.BundleMetadata{
			ModelType:       "ensemble",
			TrainingDate:    time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			FeatureColumns:  columns,
			SelectedModels:  []string{"xgb", "rf", "gb", "lr"},
			MaxVariantCount: 100,
			DrugVocabulary:  []string{"WARFARIN"},
		},
	}
	names := []string{"xgb", "rf", "gb", "lr"}
	for i, p := range ensembleProbs {
		bundle.Members = append(bundle.Members, ml.CandidateScore{
			ModelName: names[i%len(names)],
			Model:     &stubModel{prob: p},
		})
	}

	predictor, err := service.NewPredictor(bundle, testConfig(1000, 1000).GetRiskConfig(), quietLogger())
	require.NoError(t, err)
	return predictor
}

type serverOptions struct {
	rps   float64
	burst int
	cache *cache.PredictionCache
	audit domain.AuditStore
}

func newTestServer(t *testing.T, opts serverOptions) *Server {
	t.Helper()
	if opts.rps == 0 && opts.burst == 0 {
		opts.rps, opts.burst = 1000, 1000
	}
	predictor := testPredictor(t, []float64{0.9, 0.7, 0.5, 0.3}, 0.8)
	return NewServer(testConfig(opts.rps, opts.burst), predictor, opts.cache, opts.audit, quietLogger())
}

func doRequest(t *testing.T, server *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func warfarinRequest(modelType string) map[string]any {
	return map[string]any{
		"features": map[string]any{
			"variant_count":       15,
			"high_risk_variants":  8,
			"risk_score":          0.75,
			"drug_interactions":   12,
			"pathogenic_variants": 2,
		},
		"drug_name":  "Warfarin",
		"model_type": modelType,
	}
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(t, serverOptions{})

	rec := doRequest(t, server, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, true, body["model_loaded"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestMetadataEndpoint(t *testing.T) {
	server := newTestServer(t, serverOptions{})

	rec := doRequest(t, server, http.MethodGet, "/metadata", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "ensemble", body["model_type"])
	assert.Len(t, body["selected_models"], 4)
	assert.NotEmpty(t, body["feature_columns"])
}

func TestPredictEnsemble(t *testing.T) {
	server := newTestServer(t, serverOptions{})

	rec := doRequest(t, server, http.MethodPost, "/predict", warfarinRequest("ensemble"))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	result := body["result"].(map[string]any)
	assert.InDelta(t, 0.6, result["probability"], 1e-9)
	assert.Equal(t, float64(1), result["prediction"])
	assert.Equal(t, "MODERATE", result["risk_level"])
	assert.Equal(t, "ensemble", result["model_type"])
	assert.Len(t, body["defaulted_features"], 5)
	assert.NotEmpty(t, body["request_id"])
}

func TestPredictSingleIncludesImportances(t *testing.T) {
	server := newTestServer(t, serverOptions{})

	rec := doRequest(t, server, http.MethodPost, "/predict", warfarinRequest("single_model"))
	require.Equal(t, http.StatusOK, rec.Code)

	result := decodeBody(t, rec)["result"].(map[string]any)
	assert.Equal(t, "xgb", result["model_type"])
	assert.InDelta(t, 0.8, result["probability"], 1e-9)
	assert.Contains(t, result, "feature_importance")
}

func TestPredictDefaultModeUsesEnsemble(t *testing.T) {
	server := newTestServer(t, serverOptions{})

	req := warfarinRequest("")
	delete(req, "model_type")
	rec := doRequest(t, server, http.MethodPost, "/predict", req)
	require.Equal(t, http.StatusOK, rec.Code)

	result := decodeBody(t, rec)["result"].(map[string]any)
	assert.Equal(t, "ensemble", result["model_type"])
}

func TestPredictRejectsBothMode(t *testing.T) {
	server := newTestServer(t, serverOptions{})

	rec := doRequest(t, server, http.MethodPost, "/predict", warfarinRequest("both"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPredictRejectsUnknownMode(t *testing.T) {
	server := newTestServer(t, serverOptions{})

	rec := doRequest(t, server, http.MethodPost, "/predict", warfarinRequest("quantum"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPredictRejectsOutOfRangeFeature(t *testing.T) {
	server := newTestServer(t, serverOptions{})

	req := warfarinRequest("ensemble")
	req["features"].(map[string]any)["risk_score"] = 1.5
	rec := doRequest(t, server, http.MethodPost, "/predict", req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "risk_score", body["field"])
}

func TestPredictRejectsMissingDrugName(t *testing.T) {
	server := newTestServer(t, serverOptions{})

	req := warfarinRequest("ensemble")
	delete(req, "drug_name")
	rec := doRequest(t, server, http.MethodPost, "/predict", req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPredictBothReportsAgreement(t *testing.T) {
	server := newTestServer(t, serverOptions{})

	rec := doRequest(t, server, http.MethodPost, "/predict/both", warfarinRequest(""))
	require.Equal(t, http.StatusOK, rec.Code)

	result := decodeBody(t, rec)["result"].(map[string]any)
	assert.Equal(t, true, result["agreement"])
	assert.InDelta(t, 0.2, result["probability_difference"], 1e-9)

	ensemble := result["ensemble"].(map[string]any)
	single := result["single_model"].(map[string]any)
	assert.Equal(t, "ensemble", ensemble["model_type"])
	assert.Equal(t, "xgb", single["model_type"])
}

func TestExplainEndpoint(t *testing.T) {
	server := newTestServer(t, serverOptions{})

	rec := doRequest(t, server, http.MethodPost, "/explain", warfarinRequest("ensemble"))
	require.Equal(t, http.StatusOK, rec.Code)

	explanation := decodeBody(t, rec)["explanation"].(map[string]any)
	assert.Equal(t, "MODERATE", explanation["risk_level"])
	assert.NotEmpty(t, explanation["key_factors"])
	assert.NotEmpty(t, explanation["recommendations"])
}

func TestRateLimitReturns429(t *testing.T) {
	server := newTestServer(t, serverOptions{rps: 0.0001, burst: 2})

	for i := 0; i < 2; i++ {
		rec := doRequest(t, server, http.MethodPost, "/predict", warfarinRequest("ensemble"))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := doRequest(t, server, http.MethodPost, "/predict", warfarinRequest("ensemble"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// Probes are never rate limited.
	health := doRequest(t, server, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, health.Code)
}

func TestPredictReadThroughCache(t *testing.T) {
	predictionCache, err := cache.NewMemoryOnly(16, time.Minute, quietLogger())
	require.NoError(t, err)
	audit := &recordingAudit{}
	server := newTestServer(t, serverOptions{cache: predictionCache, audit: audit})

	first := doRequest(t, server, http.MethodPost, "/predict", warfarinRequest("ensemble"))
	require.Equal(t, http.StatusOK, first.Code)
	require.Len(t, audit.entries, 1)
	assert.Equal(t, "Warfarin", audit.entries[0].DrugName)
	assert.Len(t, audit.entries[0].DefaultedFeatures, 5)

	// The second identical request is served from cache: no second
	// audit row, identical prediction body.
	second := doRequest(t, server, http.MethodPost, "/predict", warfarinRequest("ensemble"))
	require.Equal(t, http.StatusOK, second.Code)
	assert.Len(t, audit.entries, 1)

	firstBody := decodeBody(t, first)
	secondBody := decodeBody(t, second)
	assert.Equal(t, firstBody["result"], secondBody["result"])
}

func TestAuditRecordsMode(t *testing.T) {
	audit := &recordingAudit{}
	server := newTestServer(t, serverOptions{audit: audit})

	rec := doRequest(t, server, http.MethodPost, "/predict/both", warfarinRequest(""))
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, audit.entries, 1)
	assert.Equal(t, domain.MODE_BOTH, audit.entries[0].Mode)
	assert.NotEmpty(t, audit.entries[0].RequestID)
}
