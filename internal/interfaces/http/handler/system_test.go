package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemHandler_GetSystemInfo(t *testing.T) {
	h := NewSystemHandler("integration-registry", "1.2.0")

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/system/info", nil)
	h.GetSystemInfo(c)

	require.Equal(t, http.StatusOK, w.Code)
	var info SystemInfoResponse
	decodeData(t, w, &info)
	assert.Equal(t, "integration-registry", info.Name)
	assert.Equal(t, "1.2.0", info.Version)
	assert.NotEmpty(t, info.GoVersion)
	assert.NotEmpty(t, info.Uptime)
}

func TestSystemHandler_Ping(t *testing.T) {
	h := NewSystemHandler("integration-registry", "1.2.0")

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/system/ping", nil)
	h.Ping(c)

	require.Equal(t, http.StatusOK, w.Code)
	var pong PingResponse
	decodeData(t, w, &pong)
	assert.Equal(t, "pong", pong.Message)
	assert.NotEmpty(t, pong.Timestamp)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	assert.Equal(t, true, raw["success"])
}
