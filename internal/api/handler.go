package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"solarkiosk/internal/config"
	"solarkiosk/internal/service"
	"solarkiosk/internal/upstream"
	"solarkiosk/internal/view"
	"solarkiosk/pkg/logger"
)

// Handler handles HTTP requests
type Handler struct {
	cfg     *config.Config
	fetcher service.Fetcher
	agg     *service.Aggregator
	cache   *service.Cache
	roles   view.Roles
	now     func() time.Time
}

// NewHandler creates a new handler
func NewHandler(cfg *config.Config, fetcher service.Fetcher, agg *service.Aggregator, cache *service.Cache) *Handler {
	return &Handler{
		cfg:     cfg,
		fetcher: fetcher,
		agg:     agg,
		cache:   cache,
		roles: view.Roles{
			HouseControllerName: cfg.HouseControllerName,
			ShedControllerName:  cfg.ShedControllerName,
			BatteryCategory:     cfg.BatteryCategory,
		},
		now: time.Now,
	}
}

// GetDevices handles GET /api/devices
func (h *Handler) GetDevices(c *gin.Context) {
	h.proxy(c, service.EndpointDeviceList, nil)
}

// GetDeviceDataMap handles GET /api/devices/:id/datamap
func (h *Handler) GetDeviceDataMap(c *gin.Context) {
	h.proxy(c, "/device/datamap", deviceParams(c))
}

// GetDeviceLatest handles GET /api/devices/:id/latest
func (h *Handler) GetDeviceLatest(c *gin.Context) {
	h.proxy(c, service.EndpointLatestData, deviceParams(c))
}

// GetDeviceHistory handles GET /api/devices/:id/history
// Query defaults: year=current, month=current, utcOffsetHours=0.
func (h *Handler) GetDeviceHistory(c *gin.Context) {
	now := h.now()
	params := deviceParams(c)
	params.Set("year", c.DefaultQuery("year", strconv.Itoa(now.Year())))
	params.Set("month", c.DefaultQuery("month", strconv.Itoa(int(now.Month()))))
	params.Set("utcOffsetHours", c.DefaultQuery("utcOffsetHours", "0"))

	h.proxy(c, "/device/history", params)
}

// GetDeviceAlarms handles GET /api/devices/:id/alarms
func (h *Handler) GetDeviceAlarms(c *gin.Context) {
	h.proxy(c, service.EndpointAlarmList, deviceParams(c))
}

// GetDeviceLogs handles GET /api/devices/:id/logs
func (h *Handler) GetDeviceLogs(c *gin.Context) {
	h.proxy(c, "/device/log/list", deviceParams(c))
}

// TestCredentials handles GET /api/test
func (h *Handler) TestCredentials(c *gin.Context) {
	if !h.cfg.HasCredentials() {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Missing credentials",
			"details": "set ACCESS_KEY and SECRET_KEY in the environment",
		})
		return
	}

	payload, err := h.fetcher.Request(c.Request.Context(), service.EndpointDeviceList, nil)
	if err != nil {
		status, details := upstreamStatus(err)
		body := gin.H{
			"success": false,
			"error":   "Credential check failed",
			"details": details,
		}
		var apiErr *upstream.APIError
		if errors.As(err, &apiErr) {
			body["statusCode"] = apiErr.StatusCode
			body["statusText"] = apiErr.Status
			body["headers"] = flattenHeader(apiErr.Header)
		}
		c.JSON(status, body)
		return
	}

	var env struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(payload, &env); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Unexpected vendor response",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"message":     "Credentials verified",
		"deviceCount": len(env.Data),
		"devices":     env.Data,
	})
}

// GetDashboard handles GET /api/dashboard
func (h *Handler) GetDashboard(c *gin.Context) {
	devices, err := h.agg.BuildDashboard(c.Request.Context())
	if err != nil {
		logger.Errorf("dashboard build failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to build dashboard",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, devices)
}

// GetView handles GET /api/view
func (h *Handler) GetView(c *gin.Context) {
	devices, err := h.agg.BuildDashboard(c.Request.Context())
	if err != nil {
		logger.Errorf("view build failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to build view",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, view.Build(devices, h.roles))
}

// GetCacheStats handles GET /api/cache/stats
func (h *Handler) GetCacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"entries": h.cache.Size(),
		"ttl_ms":  h.cache.TTL().Milliseconds(),
	})
}

// proxy forwards one vendor call and passes the raw payload through,
// mirroring the upstream status on failure.
func (h *Handler) proxy(c *gin.Context, endpoint string, params url.Values) {
	payload, err := h.fetcher.Request(c.Request.Context(), endpoint, params)
	if err != nil {
		status, details := upstreamStatus(err)
		c.JSON(status, gin.H{
			"error":   "Vendor request failed",
			"details": details,
		})
		return
	}

	c.Data(http.StatusOK, "application/json", payload)
}

// upstreamStatus maps an upstream error to the HTTP status to mirror and a
// details string, falling back to 500 with a generic message.
func upstreamStatus(err error) (int, string) {
	var apiErr *upstream.APIError
	if errors.As(err, &apiErr) {
		details := apiErr.Body
		if details == "" {
			details = apiErr.Status
		}
		return apiErr.StatusCode, details
	}
	return http.StatusInternalServerError, err.Error()
}

func deviceParams(c *gin.Context) url.Values {
	params := url.Values{}
	params.Set("deviceId", c.Param("id"))
	return params
}

func flattenHeader(header http.Header) map[string]string {
	flat := make(map[string]string, len(header))
	for k, v := range header {
		flat[k] = strings.Join(v, ", ")
	}
	return flat
}
