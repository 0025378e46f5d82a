package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Gowreesh-VT/Data-Rhythm-Academy-sub001/internal/service"
	appErrors "github.com/Gowreesh-VT/Data-Rhythm-Academy-sub001/pkg/errors"
	"github.com/Gowreesh-VT/Data-Rhythm-Academy-sub001/pkg/response"
)

// CertificateHandler exposes completion-certificate links and downloads.
type CertificateHandler struct {
	certificates *service.CertificateService
}

func NewCertificateHandler(certificates *service.CertificateService) *CertificateHandler {
	return &CertificateHandler{certificates: certificates}
}

// Link godoc
// @Summary Signed download link for a completion certificate
// @Tags Certificates
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/certificate [get]
func (h *CertificateHandler) Link(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	link, err := h.certificates.Link(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link, nil)
}

// Download streams the certificate PDF behind a signed token. The token is
// the only credential, so the route stays outside the JWT group.
func (h *CertificateHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.New(appErrors.ErrValidation.Code, http.StatusBadRequest, "missing token"))
		return
	}
	file, err := h.certificates.Resolve(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to read certificate"))
		return
	}
	c.Header("Content-Disposition", "attachment; filename="+info.Name())
	c.DataFromReader(http.StatusOK, info.Size(), "application/pdf", file, nil)
}
