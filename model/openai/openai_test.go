package openai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hupe1980/reviewmesh/logging"
	"github.com/hupe1980/reviewmesh/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ model.Generator = (*Model)(nil)

func TestModel_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4o-mini",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"hello"}}]}`))
	}))
	defer srv.Close()

	m := NewModel(func(o *Options) {
		o.APIKey = "test"
		o.BaseURL = srv.URL + "/"
	})

	out, err := m.Generate(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
	assert.Equal(t, model.Info{Name: "gpt-4o-mini", Provider: "openai"}, m.Info())
}

func TestModel_Generate_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4o-mini","choices":[]}`))
	}))
	defer srv.Close()

	log := &warnLogger{}
	m := NewModel(func(o *Options) {
		o.APIKey = "test"
		o.BaseURL = srv.URL + "/"
		o.Logger = log
	})

	_, err := m.Generate(context.Background(), "hi")
	assert.Error(t, err)

	out, err := m.BatchGenerate(context.Background(), []string{"x"})
	require.NoError(t, err)
	assert.Equal(t, []string{""}, out)
	assert.Equal(t, []string{"batch generation failed"}, log.warns)
}

// warnLogger counts Warn calls.
type warnLogger struct {
	logging.NoOpLogger
	warns []string
}

func (w *warnLogger) Warn(msg string, _ ...any) { w.warns = append(w.warns, msg) }
