package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGatewayService_AllURLs(t *testing.T) {
	service := NewGatewayService(nil, nil)

	urls := service.AllURLs("Qmabc")
	require.Len(t, urls, 4)
	for i, url := range urls {
		assert.True(t, strings.HasSuffix(url, "Qmabc"))
		assert.Equal(t, DefaultGateways[i]+"Qmabc", url)
	}
}

func TestGatewayService_URLFor(t *testing.T) {
	service := NewGatewayService([]string{"https://a.example/ipfs/", " ", "https://b.example/ipfs/"}, nil)

	tests := []struct {
		name     string
		index    int
		expected string
	}{
		{name: "preferred", index: 0, expected: "https://a.example/ipfs/Qmx"},
		{name: "second", index: 1, expected: "https://b.example/ipfs/Qmx"},
		{name: "out of range", index: 7, expected: "https://a.example/ipfs/Qmx"},
		{name: "negative", index: -1, expected: "https://a.example/ipfs/Qmx"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, service.URLFor("Qmx", tt.index))
		})
	}
	assert.Len(t, service.Gateways(), 2)
}

func TestGatewayService_CheckAvailability(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		if strings.HasSuffix(r.URL.Path, "/QmPresent") {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	service := NewGatewayService([]string{server.URL + "/ipfs/"}, server.Client())

	assert.True(t, service.CheckAvailability(context.Background(), "QmPresent"))
	assert.False(t, service.CheckAvailability(context.Background(), "QmMissing"))

	unreachable := NewGatewayService([]string{"http://127.0.0.1:1/ipfs/"}, nil)
	assert.False(t, unreachable.CheckAvailability(context.Background(), "QmPresent"))
}
