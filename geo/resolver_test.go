package geo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestByIP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/198.51.100.7", r.URL.Path)
		_, _ = w.Write([]byte(`{"city":"Hanoi","country":"Vietnam"}`))
	}))
	defer server.Close()

	resolver := NewResolver(ResolverConfig{IPLookupURL: server.URL})
	place, err := resolver.ByIP(context.Background(), "198.51.100.7")
	require.NoError(t, err)
	require.Equal(t, "Hanoi", place.City)
	require.Equal(t, "Vietnam", place.Country)
}

func TestByCoordinates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "38.72", r.URL.Query().Get("lat"))
		require.Equal(t, "-9.14", r.URL.Query().Get("lon"))
		_, _ = w.Write([]byte(`{"city":"Lisbon","country":"Portugal"}`))
	}))
	defer server.Close()

	resolver := NewResolver(ResolverConfig{CoordinateURL: server.URL})
	place, err := resolver.ByCoordinates(context.Background(), 38.72, -9.14)
	require.NoError(t, err)
	require.Equal(t, "Lisbon", place.City)
}

func TestByCoordinatesWithoutEndpoint(t *testing.T) {
	resolver := NewResolver(ResolverConfig{})
	_, err := resolver.ByCoordinates(context.Background(), 1, 2)
	require.Error(t, err)
}

func TestPublicIP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("203.0.113.9\n"))
	}))
	defer server.Close()

	resolver := NewResolver(ResolverConfig{PublicIPURL: server.URL})
	ip, err := resolver.PublicIP(context.Background())
	require.NoError(t, err)
	require.Equal(t, "203.0.113.9", ip)
}

func TestLookupErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	resolver := NewResolver(ResolverConfig{IPLookupURL: server.URL})
	_, err := resolver.ByIP(context.Background(), "198.51.100.7")
	require.Error(t, err)
}
