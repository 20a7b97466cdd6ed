package predictor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/neuroshield/scan-api/pkg/errors"

	"github.com/neuroshield/scan-api/internal/model"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(Config{
		URL:         srv.URL,
		Timeout:     2 * time.Second,
		MaxFailures: 3,
	})
}

func predict(t *testing.T, c Client) (*model.Result, error) {
	t.Helper()
	return c.Predict(context.Background(), "scan.png", strings.NewReader("imagebytes"))
}

func TestPredictHighRisk(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/predict", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, _, err := r.FormFile("file")
		require.NoError(t, err)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"stroke_probability": 0.825,
			"model_confidence":   0.91,
			"analysis_result":    "High Risk",
		})
	})

	result, err := predict(t, client)
	require.NoError(t, err)

	assert.InDelta(t, 82.5, result.StrokeProbability, 0.001)
	assert.InDelta(t, 91.0, result.ModelConfidence, 0.001)
	assert.Equal(t, "High Risk", result.AnalysisResult)
	assert.Equal(t, model.RecommendationFor(model.RiskHigh), result.Recommendations)
}

func TestPredictScalesFractions(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"stroke_probability": 0.42,
			"model_confidence":   0.9,
		})
	})

	result, err := predict(t, client)
	require.NoError(t, err)

	assert.InDelta(t, 42.0, result.StrokeProbability, 0.001)
	assert.InDelta(t, 90.0, result.ModelConfidence, 0.001)
	assert.Equal(t, "Medium Risk", result.AnalysisResult)
}

func TestPredictSubPercentProbability(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"stroke_probability": 0.008,
			"model_confidence":   0.97,
		})
	})

	result, err := predict(t, client)
	require.NoError(t, err)

	// 0.008 is 0.8%, not 80%.
	assert.InDelta(t, 0.8, result.StrokeProbability, 0.001)
	assert.Equal(t, "Low Risk", result.AnalysisResult)
}

func TestPredictServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model crashed", http.StatusInternalServerError)
	})

	_, err := predict(t, client)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrPrediction))
}

func TestPredictUnreachable(t *testing.T) {
	client := NewClient(Config{
		URL:         "http://127.0.0.1:1",
		Timeout:     200 * time.Millisecond,
		MaxFailures: 3,
	})

	_, err := predict(t, client)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrPrediction))
}

func TestPercentFromFractionClipping(t *testing.T) {
	assert.Equal(t, 100.0, percentFromFraction(1.2))
	assert.Equal(t, 0.0, percentFromFraction(-0.03))
	assert.Equal(t, 100.0, percentFromFraction(1.0))
	assert.InDelta(t, 55.0, percentFromFraction(0.55), 0.001)
}
