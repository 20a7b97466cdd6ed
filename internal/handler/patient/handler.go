package patient

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/neuroshield/scan-api/pkg/errors"
	"github.com/neuroshield/scan-api/pkg/httputil"

	"github.com/neuroshield/scan-api/internal/middleware"
	"github.com/neuroshield/scan-api/internal/model"
	"github.com/neuroshield/scan-api/internal/service/gateway"
	patientService "github.com/neuroshield/scan-api/internal/service/patient"
)

type Handler struct {
	service *patientService.Service
	gateway *gateway.Service
}

func NewHandler(service *patientService.Service, gw *gateway.Service) *Handler {
	return &Handler{service: service, gateway: gw}
}

// RegisterAdminRoutes binds the admin-only patient registry endpoints.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.POST("/patients", h.CreatePatient)
	r.GET("/patients", h.ListPatients)
}

// RegisterDoctorRoutes binds the doctor-facing lookup endpoints.
func (h *Handler) RegisterDoctorRoutes(r *gin.RouterGroup) {
	r.GET("/patients/search", h.SearchPatients)
	r.GET("/patients/:id", h.GetPatient)
}

func (h *Handler) CreatePatient(c *gin.Context) {
	var req model.CreatePatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBadRequest(c, err.Error())
		return
	}

	patient, err := h.service.CreatePatient(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithCreated(c, patient)
}

// ListPatients is the admin directory: demographics only, no scan data.
func (h *Handler) ListPatients(c *gin.Context) {
	ident, ok := middleware.IdentityFrom(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized("not authenticated"))
		return
	}

	entries, err := h.gateway.AdminDirectory(c.Request.Context(), ident)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, entries)
}

func (h *Handler) GetPatient(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.Validation("id", "invalid patient id"))
		return
	}

	patient, err := h.service.GetPatient(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, patient)
}

func (h *Handler) SearchPatients(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		httputil.RespondWithError(c, apperrors.Validation("q", "search query is required"))
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	patients, err := h.service.SearchPatients(c.Request.Context(), query, limit)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, patients)
}
