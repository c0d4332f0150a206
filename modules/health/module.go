// Package health exposes the liveness endpoint. The report covers database
// connectivity, process uptime, and host resource usage; a failing database
// check degrades the status and the endpoint answers 503.
package health

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/forgeline/keel"
	"github.com/forgeline/keel/httpx"
	"github.com/forgeline/keel/modules/database"
	"github.com/forgeline/keel/modules/router"
)

// ModuleName is the unique identifier for the health module.
const ModuleName = "health"

// Version is stamped at build time via -ldflags.
var Version = "dev"

const checkTimeout = 2 * time.Second

type checkResult struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Error   string `json:"error,omitempty"`
}

type systemInfo struct {
	Goroutines  int     `json:"goroutines"`
	MemoryUsed  uint64  `json:"memoryUsedBytes"`
	MemoryTotal uint64  `json:"memoryTotalBytes"`
	MemoryPct   float64 `json:"memoryUsedPercent"`
	CPUPct      float64 `json:"cpuUsedPercent"`
}

type report struct {
	Status      string                 `json:"status"`
	Version     string                 `json:"version"`
	Environment string                 `json:"environment"`
	Uptime      string                 `json:"uptime"`
	Checks      map[string]checkResult `json:"checks"`
	System      systemInfo             `json:"system"`
}

// Module implements the health endpoint.
type Module struct {
	db          database.Service
	environment string
	startedAt   time.Time
	logger      keel.Logger
}

// NewModule creates the health module.
func NewModule() *Module {
	return &Module{}
}

// Name returns the module name.
func (m *Module) Name() string {
	return ModuleName
}

// Dependencies declares the modules this one builds on.
func (m *Module) Dependencies() []string {
	return []string{database.ModuleName, router.ModuleName}
}

// Init resolves the database service and attaches the health route.
func (m *Module) Init(app keel.Application) error {
	m.logger = app.Logger()
	m.startedAt = time.Now()

	if err := app.GetService(database.ServiceName, &m.db); err != nil {
		return fmt.Errorf("failed to resolve database service: %w", err)
	}

	var rt router.Service
	if err := app.GetService(router.ServiceName, &rt); err != nil {
		return fmt.Errorf("failed to resolve router service: %w", err)
	}

	if cp, err := app.GetConfigSection(router.ModuleName); err == nil {
		m.environment = cp.GetConfig().(*router.Config).Environment
	}

	rt.Router().Get(router.HealthPath, rt.Wrap(m.handleHealth))
	return nil
}

// ProvidesServices declares no provided services.
func (m *Module) ProvidesServices() []keel.ServiceProvider {
	return nil
}

// RequiresServices declares the database and router services.
func (m *Module) RequiresServices() []keel.ServiceDependency {
	return []keel.ServiceDependency{
		{Name: database.ServiceName, Required: true},
		{Name: router.ServiceName, Required: true},
	}
}

func (m *Module) handleHealth(w http.ResponseWriter, r *http.Request) error {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	rep := report{
		Status:      "ok",
		Version:     Version,
		Environment: m.environment,
		Uptime:      time.Since(m.startedAt).Round(time.Second).String(),
		Checks:      map[string]checkResult{},
		System:      collectSystem(),
	}

	start := time.Now()
	if err := m.db.Ping(ctx); err != nil {
		rep.Status = "degraded"
		rep.Checks["database"] = checkResult{Status: "down", Error: err.Error()}
	} else {
		rep.Checks["database"] = checkResult{Status: "up", Latency: time.Since(start).String()}
	}

	status := http.StatusOK
	if rep.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	httpx.JSON(w, r, status, rep)
	return nil
}

func collectSystem() systemInfo {
	info := systemInfo{Goroutines: runtime.NumGoroutine()}

	if vm, err := mem.VirtualMemory(); err == nil {
		info.MemoryUsed = vm.Used
		info.MemoryTotal = vm.Total
		info.MemoryPct = vm.UsedPercent
	}
	// Non-blocking sample; reports usage since the previous call.
	if pcts, err := cpu.Percent(0, false); err == nil && len(pcts) > 0 {
		info.CPUPct = pcts[0]
	}
	return info
}
