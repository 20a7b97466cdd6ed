package httputil

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/neuroshield/scan-api/pkg/errors"
)

// Response wraps all API responses
type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Field   string      `json:"field,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// RespondWithSuccess sends a success response
func RespondWithSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Status: "success",
		Data:   data,
	})
}

// RespondWithCreated sends a 201 response
func RespondWithCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Status: "success",
		Data:   data,
	})
}

// RespondWithError sends an error response, mapping AppError codes to
// HTTP statuses, and records the error on the gin context so the error
// middleware logs it with the request fields. An empty list is never routed
// through here: "no data" is a success with an empty payload, not an error.
func RespondWithError(c *gin.Context, err error) {
	_ = c.Error(err)

	statusCode := http.StatusInternalServerError
	message := "internal server error"
	field := ""

	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		statusCode = appErr.StatusCode()
		message = appErr.Message
		field = appErr.Field
	}

	c.JSON(statusCode, Response{
		Status:  "error",
		Message: message,
		Field:   field,
	})
}

// RespondWithBadRequest sends a 400 with a plain message, used for
// malformed request bodies before they reach a service.
func RespondWithBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Response{
		Status:  "error",
		Message: message,
	})
}
