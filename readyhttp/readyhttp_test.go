package readyhttp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sethgrid/pester"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbeSucceedsImmediately(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	hook := Probe(srv.URL, Options{MaxRetries: 1})
	require.NoError(t, hook(context.Background()))
}

func TestProbeRetriesUntilReady(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	hook := Probe(srv.URL, Options{MaxRetries: 5, Backoff: pester.LinearBackoff})
	require.NoError(t, hook(context.Background()))
	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(3))
}

func TestProbeFailsAfterExhaustingRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	hook := Probe(srv.URL, Options{MaxRetries: 1, Backoff: pester.LinearBackoff})
	assert.Error(t, hook(context.Background()))
}

func TestWaitForSucceedsOnceReady(t *testing.T) {
	var ready atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ready.Load() {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	go func() {
		time.Sleep(20 * time.Millisecond)
		ready.Store(true)
	}()

	err := WaitFor(context.Background(), srv.URL, 5*time.Millisecond, time.Second)
	require.NoError(t, err)
}

func TestWaitForTimesOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := WaitFor(context.Background(), srv.URL, 5*time.Millisecond, 30*time.Millisecond)
	assert.Error(t, err)
}
