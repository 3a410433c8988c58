package http_server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chatrelay/internal/chat"
	"chatrelay/internal/identity"
	"chatrelay/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouter_Routes(t *testing.T) {
	gin.SetMode(gin.TestMode)

	reg := chat.NewRegistry(chat.Options{})
	wsSrv := ws.NewWsServer(reg, identity.AnonymousProvider, ws.Options{})
	r := NewHttpServer(context.Background(), 8085, wsSrv, reg).Router()

	tests := []struct {
		name string
		path string
		want int
	}{
		{name: "health", path: "/health", want: http.StatusOK},
		{name: "rooms", path: "/rooms", want: http.StatusOK},
		{name: "unknown room", path: "/rooms/none", want: http.StatusNotFound},
		// plain GET without upgrade headers
		{name: "chat without upgrade", path: "/chat/alice", want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.want, w.Code)
		})
	}
	assert.Equal(t, 0, reg.Len())
}

func newTestHttpServer() *httpServer {
	reg := chat.NewRegistry(chat.Options{})
	wsSrv := ws.NewWsServer(reg, identity.AnonymousProvider, ws.Options{})
	return NewHttpServer(context.Background(), 0, wsSrv, reg)
}

func TestHttpServer_DisposeBeforeStart(t *testing.T) {
	h := newTestHttpServer()
	require.NoError(t, h.Dispose())
	assert.NoError(t, h.Start(), "a disposed server returns without serving")
}

func TestHttpServer_DisposeWhileServing(t *testing.T) {
	h := newTestHttpServer()

	started := make(chan error, 1)
	go func() { started <- h.Start() }()
	require.NoError(t, h.Dispose())

	select {
	case err := <-started:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after Dispose")
	}
}
