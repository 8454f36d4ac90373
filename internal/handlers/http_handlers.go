package handlers

import (
	"bytes"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"
	"github.com/google/uuid"

	"prizedraw/internal/draw"
	"prizedraw/internal/models"
	"prizedraw/internal/privacy"
	"prizedraw/internal/services"
)

const (
	tenantHeader = "X-Tenant-ID"
	tenantCookie = "tenant_id"
	tenantKey    = "tenantID"
)

// LiveServer attaches websocket screens to a tenant.
type LiveServer interface {
	ServeWS(w http.ResponseWriter, r *http.Request, tenant string) error
}

// HTTPHandler holds the dependencies for the HTTP handlers.
type HTTPHandler struct {
	service *services.DrawService
	live    LiveServer
}

// NewHTTPHandler creates a new HTTPHandler. live may be nil, in which case
// the websocket endpoint answers 501.
func NewHTTPHandler(service *services.DrawService, live LiveServer) *HTTPHandler {
	return &HTTPHandler{
		service: service,
		live:    live,
	}
}

// RegisterPublicRoutes registers routes that need no tenant.
func (h *HTTPHandler) RegisterPublicRoutes(router gin.IRoutes) {
	router.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "OK") })
	router.GET("/attempts", h.ListAttempts)
}

// RegisterTenantRoutes registers routes that act on the caller's session.
// The group must use TenantMiddleware.
func (h *HTTPHandler) RegisterTenantRoutes(router gin.IRoutes) {
	router.GET("/pool", h.GetPool)
	router.POST("/pool/entries", h.AddEntry)
	router.POST("/pool/csv", h.UploadPoolCSV)
	router.POST("/pool/load", h.LoadPool)
	router.DELETE("/session", h.ClearSession)

	router.POST("/draws", h.StartDraw)
	router.POST("/draws/advance", h.Advance)
	router.GET("/draws/current", h.Current)
	router.POST("/draws/fields/:field/toggle", h.ToggleField)
	router.GET("/draws/export.csv", h.ExportResultsCSV)

	router.GET("/live", h.Live)
}

// TenantMiddleware identifies the tenant from the X-Tenant-ID header or the
// tenant cookie, issuing a new cookie when neither is present.
func (h *HTTPHandler) TenantMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := strings.TrimSpace(c.GetHeader(tenantHeader))
		if tenantID == "" {
			if cookie, err := c.Cookie(tenantCookie); err == nil {
				tenantID = strings.TrimSpace(cookie)
			}
		}
		if tenantID == "" {
			tenantID = uuid.NewString()
			c.SetCookie(tenantCookie, tenantID, 0, "/", "", false, true)
		}

		c.Set(tenantKey, tenantID)
		c.Next()
	}
}

func tenant(c *gin.Context) string {
	return c.GetString(tenantKey)
}

// ListAttempts handles GET /attempts.
func (h *HTTPHandler) ListAttempts(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Attempts())
}

// GetPool handles GET /pool.
func (h *HTTPHandler) GetPool(c *gin.Context) {
	h.respondPool(c, http.StatusOK)
}

// AddEntry handles POST /pool/entries.
func (h *HTTPHandler) AddEntry(c *gin.Context) {
	var entry models.Entry
	if err := c.ShouldBindJSON(&entry); err != nil {
		h.errorResponse(c, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if err := h.service.AddEntry(tenant(c), entry); err != nil {
		h.fail(c, err)
		return
	}
	h.respondPool(c, http.StatusCreated)
}

// UploadPoolCSV handles the CSV upload of a pool.
func (h *HTTPHandler) UploadPoolCSV(c *gin.Context) {
	file, _, err := c.Request.FormFile("poolCSV")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, "Error retrieving file: "+err.Error())
		return
	}
	defer file.Close()

	added, err := h.service.ImportCSV(tenant(c), file)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, "Error reading CSV: "+err.Error())
		return
	}

	logger.Infof("Imported %d pool entries for tenant %s", added, tenant(c))
	h.respondPool(c, http.StatusOK)
}

// LoadPool handles POST /pool/load.
func (h *HTTPHandler) LoadPool(c *gin.Context) {
	var req models.LoadPoolRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Ref) == "" {
		h.errorResponse(c, http.StatusBadRequest, "ref is required")
		return
	}

	if _, err := h.service.LoadPool(c.Request.Context(), tenant(c), req.Ref); err != nil {
		h.fail(c, err)
		return
	}
	h.respondPool(c, http.StatusOK)
}

// ClearSession handles DELETE /session.
func (h *HTTPHandler) ClearSession(c *gin.Context) {
	h.service.ClearSession(tenant(c))
	c.Status(http.StatusNoContent)
}

// StartDraw handles POST /draws.
func (h *HTTPHandler) StartDraw(c *gin.Context) {
	var req models.StartDrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, "Invalid JSON")
		return
	}

	view, err := h.service.StartDraw(tenant(c), req.Count, req.Depth)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// Advance handles POST /draws/advance.
func (h *HTTPHandler) Advance(c *gin.Context) {
	view, err := h.service.Advance(tenant(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Current handles GET /draws/current.
func (h *HTTPHandler) Current(c *gin.Context) {
	view, err := h.service.Current(tenant(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// ToggleField handles POST /draws/fields/:field/toggle.
func (h *HTTPHandler) ToggleField(c *gin.Context) {
	kind, err := privacy.ParseKind(c.Param("field"))
	if err != nil {
		h.fail(c, err)
		return
	}

	view, err := h.service.ToggleField(tenant(c), kind)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// ExportResultsCSV handles the request to download the revealed entries as a CSV file.
func (h *HTTPHandler) ExportResultsCSV(c *gin.Context) {
	var buf bytes.Buffer
	if err := h.service.ExportCSV(tenant(c), &buf); err != nil {
		h.fail(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment;filename=draw_results.csv")
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// Live handles GET /live, upgrading to a websocket that receives every view
// of the tenant's draw.
func (h *HTTPHandler) Live(c *gin.Context) {
	if h.live == nil {
		h.errorResponse(c, http.StatusNotImplemented, "live updates are disabled")
		return
	}
	if err := h.live.ServeWS(c.Writer, c.Request, tenant(c)); err != nil {
		// The upgrader has already written the failure response.
		logger.Warningf("Websocket upgrade failed for tenant %s: %v", tenant(c), err)
	}
}

func (h *HTTPHandler) respondPool(c *gin.Context, status int) {
	pool := h.service.GetPool(tenant(c))
	c.JSON(status, models.PoolResponse{
		Entries:              pool,
		DistinctParticipants: draw.DistinctParticipants(pool),
	})
}

// fail maps service errors to HTTP statuses.
func (h *HTTPHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidCount),
		errors.Is(err, services.ErrInvalidDepth),
		errors.Is(err, services.ErrInvalidEntry),
		errors.Is(err, privacy.ErrUnknownField):
		h.errorResponse(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrNoActiveDraw):
		h.errorResponse(c, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrNoSource):
		h.errorResponse(c, http.StatusNotImplemented, err.Error())
	default:
		logger.Errorf("Request %s %s for tenant %s failed: %v", c.Request.Method, c.Request.URL.Path, tenant(c), err)
		h.errorResponse(c, http.StatusInternalServerError, "Internal error")
	}
}

func (h *HTTPHandler) errorResponse(c *gin.Context, status int, message string) {
	c.JSON(status, models.ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
	})
}
