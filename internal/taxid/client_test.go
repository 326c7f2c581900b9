package taxid

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newCache(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	return mr, redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func registryStub(t *testing.T, hits *atomic.Int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		switch r.URL.Path {
		case "/contribuyentes/131246789":
			json.NewEncoder(w).Encode(map[string]string{
				"rnc": "131246789", "razon_social": "COMERCIAL LARIMAR SRL", "estado": "ACTIVO",
			})
		case "/contribuyentes/131000000":
			json.NewEncoder(w).Encode(map[string]string{
				"rnc": "131000000", "razon_social": "SUSPENDIDA SA", "estado": "SUSPENDIDO",
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestValidateActiveTaxID(t *testing.T) {
	srv := registryStub(t, nil)
	defer srv.Close()
	client := NewClient(srv.URL, 5*time.Second, nil, 0)

	result, err := client.Validate(context.Background(), "131-24678-9")
	require.NoError(t, err)
	require.True(t, result.Valid)
	require.Equal(t, "131246789", result.NormalizedID)
	require.Equal(t, "COMERCIAL LARIMAR SRL", result.LegalName)
}

func TestValidateInactiveAndUnknown(t *testing.T) {
	srv := registryStub(t, nil)
	defer srv.Close()
	client := NewClient(srv.URL, 5*time.Second, nil, 0)
	ctx := context.Background()

	result, err := client.Validate(ctx, "131000000")
	require.NoError(t, err)
	require.False(t, result.Valid)

	result, err = client.Validate(ctx, "999999999")
	require.NoError(t, err)
	require.False(t, result.Valid)
	require.Equal(t, "not registered", result.Status)
}

func TestValidateCachesAnswers(t *testing.T) {
	var hits atomic.Int64
	srv := registryStub(t, &hits)
	defer srv.Close()

	_, cache := newCache(t)
	client := NewClient(srv.URL, 5*time.Second, cache, time.Hour)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result, err := client.Validate(ctx, "131246789")
		require.NoError(t, err)
		require.True(t, result.Valid)
	}
	require.Equal(t, int64(1), hits.Load())
}

func TestValidateCacheExpires(t *testing.T) {
	var hits atomic.Int64
	srv := registryStub(t, &hits)
	defer srv.Close()

	mr, cache := newCache(t)
	client := NewClient(srv.URL, 5*time.Second, cache, time.Minute)
	ctx := context.Background()

	_, err := client.Validate(ctx, "131246789")
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)
	_, err = client.Validate(ctx, "131246789")
	require.NoError(t, err)
	require.Equal(t, int64(2), hits.Load())
}

func TestValidatorUnavailableDegrades(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	client := NewClient(srv.URL, time.Second, nil, 0)

	result, err := client.Validate(context.Background(), "131246789")
	require.ErrorIs(t, err, ErrValidatorUnavailable)
	require.False(t, result.Valid)
	require.Equal(t, "131246789", result.NormalizedID)
}

func TestValidateRejectsEmptyID(t *testing.T) {
	client := NewClient("http://localhost:0", time.Second, nil, 0)
	_, err := client.Validate(context.Background(), "  ")
	require.Error(t, err)
}
