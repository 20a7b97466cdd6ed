package scan

import (
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/neuroshield/scan-api/pkg/errors"
	"github.com/neuroshield/scan-api/pkg/httputil"

	"github.com/neuroshield/scan-api/internal/middleware"
	"github.com/neuroshield/scan-api/internal/model"
	"github.com/neuroshield/scan-api/internal/service/ingestion"
)

const imagesField = "ct_images"

type Handler struct {
	service *ingestion.Service
}

func NewHandler(service *ingestion.Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes binds the doctor-only scan ingestion endpoints.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/scans", h.UploadScans)
	r.PUT("/scans/:id/notes", h.UpdateNotes)
}

// UploadScans accepts a multipart form with one or more CT images plus the
// scan metadata fields. Each image is ingested independently and the response
// reports a per-image outcome.
func (h *Handler) UploadScans(c *gin.Context) {
	ident, ok := middleware.IdentityFrom(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized("not authenticated"))
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		httputil.RespondWithBadRequest(c, "invalid multipart form")
		return
	}

	req, err := uploadRequestFrom(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	files := form.File[imagesField]
	opened := make([]multipart.File, 0, len(files))
	defer func() {
		for _, f := range opened {
			f.Close()
		}
	}()

	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			httputil.RespondWithError(c, apperrors.Validation(imagesField, "unreadable file in upload"))
			return
		}
		opened = append(opened, f)
		req.Images = append(req.Images, ingestion.Image{FileName: fh.Filename, Reader: f})
	}

	resp, err := h.service.Upload(c.Request.Context(), ident, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	// Created only when at least one image was fully ingested; the outcome
	// list still goes back either way so the caller can see what failed.
	if !resp.Success {
		c.JSON(http.StatusUnprocessableEntity, httputil.Response{
			Status:  "error",
			Message: "no images were ingested",
			Data:    resp,
		})
		return
	}

	httputil.RespondWithCreated(c, resp)
}

func (h *Handler) UpdateNotes(c *gin.Context) {
	ident, ok := middleware.IdentityFrom(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized("not authenticated"))
		return
	}

	scanID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.Validation("id", "invalid scan id"))
		return
	}

	var req model.UpdateScanNotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBadRequest(c, err.Error())
		return
	}

	if err := h.service.UpdateDoctorNotes(c.Request.Context(), ident, scanID, req.DoctorNotes); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, gin.H{"scan_id": scanID})
}

func uploadRequestFrom(c *gin.Context) (*ingestion.UploadRequest, error) {
	patientID, err := uuid.Parse(c.PostForm("patient_id"))
	if err != nil {
		return nil, apperrors.Validation("patient_id", "patient_id must be a valid uuid")
	}

	scanDate, err := time.Parse("2006-01-02", c.PostForm("scan_date"))
	if err != nil {
		return nil, apperrors.Validation("scan_date", "scan_date must be YYYY-MM-DD")
	}

	scanType := c.PostForm("scan_type")
	if scanType == "" {
		scanType = "CT"
	}

	return &ingestion.UploadRequest{
		PatientID:   patientID,
		ScanDate:    scanDate,
		ScanType:    scanType,
		Notes:       c.PostForm("notes"),
		DoctorNotes: c.PostForm("doctor_notes"),
	}, nil
}
