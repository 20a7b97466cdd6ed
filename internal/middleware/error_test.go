package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	apperrors "github.com/neuroshield/scan-api/pkg/errors"
	"github.com/neuroshield/scan-api/pkg/httputil"
)

func newErrorTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandler())
	return r
}

func TestErrorHandlerRespondsWhenNothingWritten(t *testing.T) {
	r := newErrorTestRouter()
	r.GET("/boom", func(c *gin.Context) {
		c.Error(apperrors.NotFound("patient", nil))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "patient not found")
}

func TestErrorHandlerSkipsWrittenResponse(t *testing.T) {
	r := newErrorTestRouter()
	r.GET("/handled", func(c *gin.Context) {
		httputil.RespondWithError(c, apperrors.Forbidden("doctor role required"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/handled", nil))

	assert.Equal(t, http.StatusForbidden, w.Code)
	// The handler's body is the whole body; the middleware must not append
	// a second payload.
	assert.JSONEq(t, `{"status":"error","message":"doctor role required"}`, w.Body.String())
}

func TestErrorHandlerNoErrors(t *testing.T) {
	r := newErrorTestRouter()
	r.GET("/ok", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}
