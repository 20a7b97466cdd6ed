package dashboard

import (
	"github.com/gin-gonic/gin"

	apperrors "github.com/neuroshield/scan-api/pkg/errors"
	"github.com/neuroshield/scan-api/pkg/httputil"

	"github.com/neuroshield/scan-api/internal/middleware"
	"github.com/neuroshield/scan-api/internal/model"
	"github.com/neuroshield/scan-api/internal/service/gateway"
)

// Handler exposes the role-scoped read views: the doctor dashboard and the
// patient self-view.
type Handler struct {
	gateway *gateway.Service
}

func NewHandler(gw *gateway.Service) *Handler {
	return &Handler{gateway: gw}
}

func (h *Handler) RegisterDoctorRoutes(r *gin.RouterGroup) {
	doctor := r.Group("/doctor")
	{
		doctor.GET("/dashboard", h.DoctorDashboard)
		doctor.GET("/patients", h.DoctorPatients)
	}
}

func (h *Handler) RegisterPatientRoutes(r *gin.RouterGroup) {
	patient := r.Group("/patient")
	{
		patient.GET("/profile", h.PatientProfile)
		patient.GET("/scans", h.PatientScans)
	}
}

func (h *Handler) DoctorDashboard(c *gin.Context) {
	h.respond(c, func(ident *model.Identity) (interface{}, error) {
		return h.gateway.DoctorDashboard(c.Request.Context(), ident)
	})
}

func (h *Handler) DoctorPatients(c *gin.Context) {
	h.respond(c, func(ident *model.Identity) (interface{}, error) {
		return h.gateway.DoctorPatients(c.Request.Context(), ident)
	})
}

func (h *Handler) PatientProfile(c *gin.Context) {
	h.respond(c, func(ident *model.Identity) (interface{}, error) {
		return h.gateway.PatientProfile(c.Request.Context(), ident)
	})
}

func (h *Handler) PatientScans(c *gin.Context) {
	h.respond(c, func(ident *model.Identity) (interface{}, error) {
		return h.gateway.PatientScans(c.Request.Context(), ident)
	})
}

func (h *Handler) respond(c *gin.Context, fn func(*model.Identity) (interface{}, error)) {
	ident, ok := middleware.IdentityFrom(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized("not authenticated"))
		return
	}

	data, err := fn(ident)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, data)
}
