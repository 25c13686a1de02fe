package middleware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/endurain/backend/internal/common"
	"github.com/endurain/backend/pkg/errorx"
	"github.com/endurain/backend/pkg/router"
	"github.com/endurain/backend/pkg/xcontext"
)

func Prometheus() router.CloserFunc {
	return func(ctx context.Context) {
		startTime := xcontext.StartTime(ctx)

		req := xcontext.HTTPRequest(ctx)
		code := 0
		if err := xcontext.Error(ctx); err != nil {
			var errx errorx.Error
			if errors.As(err, &errx) {
				code = int(errx.Code)
			} else {
				code = -1
			}
		}
		for key, counter := range common.PromCounters {
			switch key {
			case common.HTTPRequestTotal:
				counter.WithLabelValues(req.Method, fmt.Sprint(code)).Inc()
			}
		}

		for key, histogram := range common.PromHistograms {
			switch key {
			case common.HTTPRequestDurationSeconds:
				histogram.WithLabelValues(req.Method, fmt.Sprint(code)).Observe(time.Since(startTime).Seconds())
			}
		}
	}
}
