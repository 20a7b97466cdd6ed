package predictor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/neuroshield/scan-api/pkg/circuitbreaker"
	apperrors "github.com/neuroshield/scan-api/pkg/errors"

	"github.com/neuroshield/scan-api/internal/model"
)

// Client calls the external stroke-prediction model service. The model is an
// opaque collaborator: it receives the stored CT image and returns a result
// blob. Failures surface as PredictionError so ingestion can degrade
// per-image instead of failing the upload.
type Client interface {
	Predict(ctx context.Context, imageKey string, image io.Reader) (*model.Result, error)
}

type Config struct {
	URL         string
	Timeout     time.Duration
	MaxFailures int
}

type httpClient struct {
	rc *resty.Client
	cb *circuitbreaker.CircuitBreaker
}

func NewClient(cfg Config) Client {
	rc := resty.New().
		SetBaseURL(cfg.URL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(0)

	cb := circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
		Name:        "predictor",
		MaxFailures: cfg.MaxFailures,
		Timeout:     30 * time.Second,
	})

	return &httpClient{rc: rc, cb: cb}
}

// predictionResponse is the model service's wire format. Probability and
// confidence are fractions in [0,1]; everything downstream stores and
// displays the 0-100 scale.
type predictionResponse struct {
	StrokeProbability float64 `json:"stroke_probability"`
	ModelConfidence   float64 `json:"model_confidence"`
	AnalysisResult    string  `json:"analysis_result"`
}

func (c *httpClient) Predict(ctx context.Context, imageKey string, image io.Reader) (*model.Result, error) {
	var out predictionResponse

	err := c.cb.Execute(func() error {
		resp, err := c.rc.R().
			SetContext(ctx).
			SetFileReader("file", imageKey, image).
			SetResult(&out).
			Post("/predict")
		if err != nil {
			return err
		}
		if resp.StatusCode() != http.StatusOK {
			return fmt.Errorf("model service returned %d: %s", resp.StatusCode(), resp.String())
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.Prediction("prediction failed", err)
	}

	probability := percentFromFraction(out.StrokeProbability)
	confidence := percentFromFraction(out.ModelConfidence)

	riskLevel := model.RiskLevelFor(probability)
	analysis := out.AnalysisResult
	if analysis == "" {
		analysis = riskLevel + " Risk"
	}

	return &model.Result{
		AnalysisResult:    analysis,
		StrokeProbability: probability,
		ModelConfidence:   confidence,
		Recommendations:   model.RecommendationFor(riskLevel),
	}, nil
}

// percentFromFraction scales a [0,1] fraction to the 0-100 scale, clipping
// out-of-range values.
func percentFromFraction(v float64) float64 {
	v *= 100
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
