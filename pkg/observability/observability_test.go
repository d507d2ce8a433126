package observability

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	c := NewCollector("test")

	c.RecordHTTPRequest(http.MethodGet, "/identity/login", http.StatusOK, 10*time.Millisecond)
	c.RecordView("login", nil, time.Millisecond)
	c.RecordView("login", errors.New("template"), time.Millisecond)
	c.RecordClientLog("error")
	c.RecordDBOperation("PutItem", "client-logs", nil, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.HTTPRequests.WithLabelValues(http.MethodGet, "/identity/login", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ViewsRendered.WithLabelValues("login", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ViewsRendered.WithLabelValues("login", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ClientLogs.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.DBOperations.WithLabelValues("PutItem", "client-logs", "success")))

	// A second collector has its own registry.
	assert.NotPanics(t, func() { NewCollector("test") })
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector("test")
	c.RecordClientLog("warning")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(body), `test_client_logs_received_total{level="warning"} 1`)
}

func TestInitTracing_Disabled(t *testing.T) {
	tp, err := InitTracing(context.Background(), TracingConfig{Enabled: false})
	require.NoError(t, err)

	_, span := tp.StartSpan(context.Background(), "views.Login")
	assert.False(t, span.IsRecording())
	span.End()

	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestServiceResource(t *testing.T) {
	t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "bit-identity-api")
	t.Setenv("AWS_REGION", "eu-west-1")

	res := serviceResource(TracingConfig{ServiceName: "bit", Version: "1.2.3", Environment: "staging"})

	values := map[string]string{}
	for _, kv := range res.Attributes() {
		values[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "bit", values["service.name"])
	assert.Equal(t, "1.2.3", values["service.version"])
	assert.Equal(t, "aws", values["cloud.provider"])
	assert.Equal(t, "bit-identity-api", values["faas.name"])
	assert.Equal(t, "eu-west-1", values["cloud.region"])
}

func TestDefaultSampleRate(t *testing.T) {
	assert.Equal(t, 0.1, defaultSampleRate("production"))
	assert.Equal(t, 0.5, defaultSampleRate("staging"))
	assert.Equal(t, 1.0, defaultSampleRate("development"))
}
