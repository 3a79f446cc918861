package multimodal

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
)

// ReadyThreshold is the fraction of component checks that must pass for
// the system to be considered operational.
const ReadyThreshold = 0.7

// Check is one component health check result.
type Check struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// Report is the outcome of a full system validation.
type Report struct {
	Components  []Check `json:"components"`
	Passed      int     `json:"passed"`
	Total       int     `json:"total"`
	SuccessRate float64 `json:"success_rate"`
	Ready       bool    `json:"ready"`
}

func checkDir(name, dir string) Check {
	if dir == "" {
		return Check{Name: name, OK: false, Detail: "not configured"}
	}
	info, err := os.Stat(dir)
	if err != nil {
		return Check{Name: name, OK: false, Detail: err.Error()}
	}
	if !info.IsDir() {
		return Check{Name: name, OK: false, Detail: "not a directory"}
	}
	return Check{Name: name, OK: true}
}

// Validate probes every component and reports readiness. The system is
// ready when at least ReadyThreshold of the checks pass, so a degraded
// semantic path does not take the whole memory system down.
func (a *Adapter) Validate(ctx context.Context) Report {
	var report Report

	report.Components = append(report.Components,
		checkDir("base_directory", a.baseDir),
		checkDir("images_directory", a.imagesDir),
		checkDir("cache_directory", a.cacheDir),
	)

	dbCheck := Check{Name: "database", OK: true}
	if err := a.store.Ping(ctx); err != nil {
		dbCheck.OK = false
		dbCheck.Detail = err.Error()
	}
	report.Components = append(report.Components, dbCheck)

	embCheck := Check{Name: "embedder", OK: a.embedder != nil}
	if a.embedder == nil {
		embCheck.Detail = "not configured, substring fallback in use"
	}
	report.Components = append(report.Components, embCheck)

	vecCheck := Check{Name: "vector_store", OK: a.vector != nil}
	if a.vector == nil {
		vecCheck.Detail = "not configured, substring fallback in use"
	} else if _, err := a.vector.Count(ctx, a.textCollection, nil); err != nil {
		vecCheck.OK = false
		vecCheck.Detail = err.Error()
	}
	report.Components = append(report.Components, vecCheck)

	report.Total = len(report.Components)
	for _, c := range report.Components {
		if c.OK {
			report.Passed++
		}
	}
	report.SuccessRate = float64(report.Passed) / float64(report.Total)
	report.Ready = report.SuccessRate >= ReadyThreshold

	a.logger.Info("memory system validation",
		zap.Int("passed", report.Passed),
		zap.Int("total", report.Total),
		zap.String("success_rate", fmt.Sprintf("%.0f%%", report.SuccessRate*100)),
		zap.Bool("ready", report.Ready),
	)

	return report
}
