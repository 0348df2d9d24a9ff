package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPCardChargerPaths(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"status":"approved"}`))
	}))
	defer srv.Close()

	c := NewHTTPCardCharger(srv.Client(), srv.URL, "secret")
	require.NoError(t, c.Charge(context.Background(), "ORD1", 50000))
	require.NoError(t, c.Refund(context.Background(), "ORD1", 50000))
	assert.Equal(t, []string{"/charge", "/refund"}, paths)
}

func TestHTTPCardChargerDecline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"declined","error":"insufficient funds"}`))
	}))
	defer srv.Close()

	c := NewHTTPCardCharger(srv.Client(), srv.URL, "")
	err := c.Charge(context.Background(), "ORD2", 50000)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient funds")
}
