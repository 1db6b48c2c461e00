package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/serverestaa/instagram-client/pkg/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestHealthRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := &Router{Engine: gin.New(), Config: config.Get()}
	r.Engine.GET("/health", r.healthCheckHandler())

	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	r.Engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func corsEngine(origins []string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(corsMiddleware(origins))
	engine.GET("/chat/user_chats", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{})
	})
	return engine
}

func TestCORSMiddlewareAnswersPreflight(t *testing.T) {
	engine := corsEngine([]string{"*"})

	req, _ := http.NewRequest(http.MethodOptions, "/chat/user_chats", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSMiddlewareEnforcesAllowList(t *testing.T) {
	engine := corsEngine([]string{"https://app.example.com"})

	req, _ := http.NewRequest(http.MethodGet, "/chat/user_chats", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	req, _ = http.NewRequest(http.MethodGet, "/chat/user_chats", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"), "an unlisted origin gets no CORS grant")
}
