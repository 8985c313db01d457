package usecase

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// HealthReport is the per-backend reachability summary
type HealthReport struct {
	Healthy    bool
	Components map[string]string
}

// Health probes both backends concurrently. The report always covers
// every component; Healthy is true only when all probes passed.
func (uc *UseCases) Health(ctx context.Context) *HealthReport {
	report := &HealthReport{
		Healthy:    true,
		Components: make(map[string]string),
	}

	var mu sync.Mutex
	record := func(name string, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			report.Healthy = false
			report.Components[name] = err.Error()
			return
		}
		report.Components[name] = "ok"
	}

	var g errgroup.Group
	g.Go(func() error {
		record("vector_index", uc.vector.Ping(ctx))
		return nil
	})
	g.Go(func() error {
		record("warehouse", uc.warehouse.Ping(ctx))
		return nil
	})
	_ = g.Wait()

	return report
}
