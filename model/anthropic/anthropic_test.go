package anthropic

import (
	"context"
	"encoding/json"
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
		assert.Equal(t, "/v1/messages", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		msgs := body["messages"].([]any)
		assert.Len(t, msgs, 1)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"claude-3-5-sonnet-20241022",
			"content":[{"type":"text","text":"{\"findings\":"},{"type":"text","text":"[]}"}],
			"stop_reason":"end_turn","usage":{"input_tokens":3,"output_tokens":4}}`))
	}))
	defer srv.Close()

	m := NewModel(func(o *Options) {
		o.APIKey = "test"
		o.BaseURL = srv.URL + "/"
		o.Adapter = "lora-v1"
	})

	out, err := m.Generate(context.Background(), "review this")
	require.NoError(t, err)
	assert.Equal(t, `{"findings":[]}`, out)

	info := m.Info()
	assert.Equal(t, "anthropic", info.Provider)
	assert.Equal(t, "lora-v1", info.Adapter)
}

func TestModel_BatchGenerate_FailedItemIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`))
	}))
	defer srv.Close()

	log := &warnLogger{}
	m := NewModel(func(o *Options) {
		o.APIKey = "test"
		o.BaseURL = srv.URL + "/"
		o.Logger = log
	})

	out, err := m.BatchGenerate(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"", ""}, out)
	assert.Equal(t, []string{"batch generation failed"}, log.warns)
}

// warnLogger counts Warn calls.
type warnLogger struct {
	logging.NoOpLogger
	warns []string
}

func (w *warnLogger) Warn(msg string, _ ...any) { w.warns = append(w.warns, msg) }
