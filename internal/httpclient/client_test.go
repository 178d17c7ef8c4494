package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/petalpost/petalpost/internal/config"
	ierr "github.com/petalpost/petalpost/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Configuration {
	return &config.Configuration{
		HTTPClient: config.HTTPClientConfig{
			Timeout:      time.Second,
			RetryMax:     0,
			RetryWaitMin: time.Millisecond,
			RetryWaitMax: time.Millisecond,
		},
	}
}

func TestDefaultClient_SendForm(t *testing.T) {
	var gotContentType, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("X-Test", "yes")
		_, _ = w.Write([]byte("VALID"))
	}))
	defer srv.Close()

	c := NewDefaultClient(testConfig(), nil)
	resp, err := c.Send(context.Background(), &Request{
		Method:      http.MethodPost,
		URL:         srv.URL,
		Body:        []byte("a=1&b=2"),
		ContentType: ContentTypeForm,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "VALID", string(resp.Body))
	assert.Equal(t, "yes", resp.Headers["X-Test"])
	assert.Equal(t, ContentTypeForm, gotContentType)
	assert.Equal(t, "a=1&b=2", gotBody)
}

func TestDefaultClient_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("nope"))
	}))
	defer srv.Close()

	c := NewDefaultClient(testConfig(), nil)
	_, err := c.Send(context.Background(), &Request{Method: http.MethodGet, URL: srv.URL})
	require.Error(t, err)

	httpErr, ok := IsHTTPError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, httpErr.StatusCode)
	assert.Equal(t, "nope", string(httpErr.Response))
}

func TestDefaultClient_TimeoutIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewDefaultClient(testConfig(), nil)
	_, err := c.Send(context.Background(), &Request{
		Method:  http.MethodGet,
		URL:     srv.URL,
		Timeout: 20 * time.Millisecond,
	})
	require.Error(t, err)
	assert.True(t, ierr.IsTransient(err))
}
