// Package wire provides dependency injection for the loom application.
// It creates singleton services with lazy initialization.
package wire

import (
	"log"
	"os"
	"sync"

	"github.com/example/loom/internal/adapters/knotcli"
	"github.com/example/loom/internal/adapters/localdb"
	"github.com/example/loom/internal/adapters/memory"
	"github.com/example/loom/internal/app"
	"github.com/example/loom/internal/config"
	"github.com/example/loom/internal/core/verification"
	"github.com/example/loom/internal/core/workflow"
	"github.com/example/loom/internal/ports/primary"
	"github.com/example/loom/internal/router"
)

var (
	backendRouter       *router.Router
	markerWatcher       *router.Watcher
	taskService         primary.TaskService
	cascadeService      primary.CascadeService
	regroomService      primary.RegroomService
	verificationService primary.VerificationService
	backendInfoService  primary.BackendInfoService
	flows               []*workflow.Descriptor
	once                sync.Once
)

// TaskService returns the singleton TaskService instance.
func TaskService() primary.TaskService {
	once.Do(initServices)
	return taskService
}

// CascadeService returns the singleton CascadeService instance.
func CascadeService() primary.CascadeService {
	once.Do(initServices)
	return cascadeService
}

// RegroomService returns the singleton RegroomService instance.
func RegroomService() primary.RegroomService {
	once.Do(initServices)
	return regroomService
}

// VerificationService returns the singleton VerificationService instance.
func VerificationService() primary.VerificationService {
	once.Do(initServices)
	return verificationService
}

// BackendInfoService returns the singleton BackendInfoService instance.
func BackendInfoService() primary.BackendInfoService {
	once.Do(initServices)
	return backendInfoService
}

// Router returns the singleton backend router.
func Router() *router.Router {
	once.Do(initServices)
	return backendRouter
}

// Workflows returns the loaded workflow descriptors.
func Workflows() []*workflow.Descriptor {
	once.Do(initServices)
	return flows
}

// initServices initializes all services and their dependencies.
// This is called once via sync.Once.
func initServices() {
	cwd, err := os.Getwd()
	if err != nil {
		log.Fatalf("failed to get working directory: %v", err)
	}

	cfg, err := config.LoadConfig(cwd)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	flows, err = workflow.LoadDescriptors(cfg.WorkflowsPath(cwd))
	if err != nil {
		log.Fatalf("failed to load workflows: %v", err)
	}

	// Concrete backends behind the router. The memory backend is
	// registered for dry runs and scripting against throwaway state.
	local := localdb.New()
	backendRouter = router.New(cfg.DefaultBackend,
		knotcli.New(),
		local,
		memory.New(),
	)

	// The watcher keeps the routing cache honest when marker
	// directories appear or disappear while loom runs. Failure to set
	// it up degrades to cache-until-cleared behavior.
	if w, err := router.NewWatcher(backendRouter); err == nil {
		markerWatcher = w
		_ = markerWatcher.WatchRepo(cwd)
	}

	audit := localdb.NewAuditLog(local, "")
	locks := verification.NewLockManager()

	taskService = app.NewTaskService(backendRouter, flows)
	cascadeService = app.NewCascadeService(backendRouter, audit, flows)
	regroomService = app.NewRegroomService(backendRouter, audit, flows)
	verificationService = app.NewVerificationService(backendRouter, locks, audit)
	backendInfoService = app.NewBackendInfoService(backendRouter)
}
