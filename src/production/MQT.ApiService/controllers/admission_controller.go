package controllers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"gitlab.com/maplesense1/mpt.meteo_gateway/src/production/MQT.ApiService/implementation/admission"
	"gitlab.com/maplesense1/mpt.meteo_gateway/src/production/MQT.ApiService/middleware"
	logger "gitlab.com/maplesense1/mpt.meteo_gateway/src/production/MQT.Logger"
	api_models "gitlab.com/maplesense1/mpt.meteo_gateway/src/production/MQT.Models/api"
)

// maxReadingBytes bounds an ingest body
const maxReadingBytes = 64 << 10

// credentialParam is the query parameter carrying the chip credential
const credentialParam = "jwt"

// AdmissionController handles the chip-facing endpoints
type AdmissionController struct {
	service *admission.Service
	logger  *logger.Logger
}

// NewAdmissionController creates a new admission controller
func NewAdmissionController(service *admission.Service, logger *logger.Logger) *AdmissionController {
	return &AdmissionController{
		service: service,
		logger:  logger.WithComponent("admission_controller"),
	}
}

// RegisterRoutes registers the admission routes with Gin
func (c *AdmissionController) RegisterRoutes(router gin.IRouter) {
	router.POST("/request", c.RequestAccess)
	router.POST("/generate_token", c.IssueToken)
	router.POST("/get_data", c.Ingest)
}

func (c *AdmissionController) RequestAccess(ctx *gin.Context) {
	if err := c.service.RequestAccess(ctx.Request.Context(), ctx.Query(credentialParam)); err != nil {
		c.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, api_models.MessageResponse{Message: "Access request submitted"})
}

// IssueToken responds with the new token as a bare JSON string
func (c *AdmissionController) IssueToken(ctx *gin.Context) {
	token, err := c.service.IssueToken(ctx.Request.Context(), ctx.Query(credentialParam))
	if err != nil {
		c.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, token)
}

// Ingest echoes the accepted reading back
func (c *AdmissionController) Ingest(ctx *gin.Context) {
	var body []byte
	if ctx.Request.Body != nil {
		var err error
		body, err = io.ReadAll(http.MaxBytesReader(ctx.Writer, ctx.Request.Body, maxReadingBytes))
		if err != nil {
			// an unreadable body is treated like an absent one
			body = nil
		}
	}

	echo, err := c.service.Ingest(ctx.Request.Context(), ctx.Query(credentialParam), body)
	if err != nil {
		c.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, echo)
}

func (c *AdmissionController) respondError(ctx *gin.Context, err error) {
	var admissionErr *admission.Error
	if errors.As(err, &admissionErr) {
		ctx.JSON(admissionErr.Status, api_models.ErrorResponse{
			Error: admissionErr.Message,
			Code:  admissionErr.Status,
		})
		return
	}

	middleware.RequestLogger(ctx, c.logger).ErrorWithError(err, "admission failed")
	ctx.JSON(http.StatusInternalServerError, api_models.ErrorResponse{
		Error: "internal server error",
		Code:  http.StatusInternalServerError,
	})
}
