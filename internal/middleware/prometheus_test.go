package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/endurain/backend/config"
	"github.com/endurain/backend/internal/common"
	"github.com/endurain/backend/pkg/errorx"
	"github.com/endurain/backend/pkg/logger"
	"github.com/endurain/backend/pkg/router"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestPrometheusCloserLabels(t *testing.T) {
	r := router.New(nil, config.Configs{}, logger.NewLogger(logger.SILENCE))
	r.AddCloser(Prometheus())

	router.GET(r, "/ok", func(context.Context, *struct{}) (*struct{}, error) {
		return &struct{}{}, nil
	})
	router.GET(r, "/fail", func(context.Context, *struct{}) (*struct{}, error) {
		return nil, errorx.New(errorx.NotFound, "missing")
	})

	counter := common.PromCounters[common.HTTPRequestTotal]
	okBefore := promtestutil.ToFloat64(counter.WithLabelValues(http.MethodGet, "0"))
	failBefore := promtestutil.ToFloat64(counter.WithLabelValues(http.MethodGet, "100004"))

	r.Handler().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))
	r.Handler().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/fail", nil))

	// The method label carries the HTTP method, the status label the errorx
	// code (0 on success).
	require.Equal(t, okBefore+1,
		promtestutil.ToFloat64(counter.WithLabelValues(http.MethodGet, "0")))
	require.Equal(t, failBefore+1,
		promtestutil.ToFloat64(counter.WithLabelValues(http.MethodGet, "100004")))
}
