// Package httpapi exposes the application services as a versioned JSON API.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/vsinha/cims/pkg/application/services"
	"github.com/vsinha/cims/pkg/domain/entities"
)

// Pinger reports whether the backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options are the collaborators of the API besides the services
type Options struct {
	Logger  *zap.Logger
	Metrics RequestObserver
	// MetricsHandler serves /metrics when set
	MetricsHandler http.Handler
	Health         Pinger
}

// API holds the handlers
type API struct {
	svc       *services.Services
	validator *Validator
	logger    *zap.Logger
	health    Pinger
}

// NewRouter builds the complete HTTP handler
func NewRouter(svc *services.Services, opts Options) (http.Handler, error) {
	validator, err := NewValidator()
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &API{svc: svc, validator: validator, logger: logger, health: opts.Health}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	if opts.Metrics != nil {
		r.Use(instrument(opts.Metrics))
	}
	r.Use(middleware.Recoverer)

	r.Get("/healthz", a.healthz)
	if opts.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", opts.MetricsHandler)
	}

	r.Route("/api/"+CurrentVersion, func(r chi.Router) {
		r.Use(versionHeaders(CurrentVersion))
		a.routes(r)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, envelope{Status: "fail", Message: "Can't find " + r.URL.Path + " on this server"})
	})
	return r, nil
}

var (
	managers       = []entities.Role{entities.RoleAdmin, entities.RoleExecutive, entities.RoleProjectManager}
	procurement    = []entities.Role{entities.RoleAdmin, entities.RoleProcurementOfficer, entities.RoleProjectManager, entities.RoleStoreKeeper}
	storekeepers   = []entities.Role{entities.RoleAdmin, entities.RoleStoreKeeper, entities.RoleInventoryManager}
	materialOwners = []entities.Role{entities.RoleAdmin, entities.RoleInventoryManager, entities.RoleStoreKeeper, entities.RoleProcurementOfficer}
	projectOwners  = []entities.Role{entities.RoleAdmin, entities.RoleExecutive, entities.RoleProjectManager}
	boqEditors     = []entities.Role{entities.RoleAdmin, entities.RoleProjectManager, entities.RoleSiteEngineer}
)

func (a *API) routes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", a.register)
		r.Post("/login", a.login)
		r.Post("/refresh", a.refresh)
		r.Post("/forgot-password", a.forgotPassword)
		r.Post("/reset-password", a.resetPassword)
		r.Group(func(r chi.Router) {
			r.Use(a.protect)
			r.Get("/me", a.me)
			r.Patch("/update-password", a.changePassword)
			r.With(a.restrictTo(entities.RoleAdmin)).Post("/users", a.createUser)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(a.protect)

		r.Route("/materials", func(r chi.Router) {
			r.Get("/", a.listMaterials)
			r.Get("/categories", a.materialCategories)
			r.Get("/low-stock", a.lowStockMaterials)
			r.Get("/export", a.exportMaterials)
			r.Get("/{id}", a.getMaterial)
			r.Get("/{id}/stock", a.materialStockLevel)
			r.Group(func(r chi.Router) {
				r.Use(a.restrictTo(materialOwners...))
				r.Post("/", a.createMaterial)
				r.Post("/import", a.importMaterials)
				r.Put("/{id}", a.updateMaterial)
				r.Delete("/{id}", a.deleteMaterial)
			})
		})

		r.Route("/suppliers", func(r chi.Router) {
			r.Get("/", a.listSuppliers)
			r.Get("/{id}", a.getSupplier)
			r.Group(func(r chi.Router) {
				r.Use(a.restrictTo(entities.RoleAdmin, entities.RoleProcurementOfficer))
				r.Post("/", a.createSupplier)
				r.Put("/{id}", a.updateSupplier)
				r.Delete("/{id}", a.deleteSupplier)
			})
		})

		r.Route("/warehouses", a.warehouseRoutes)

		r.Route("/procurement", func(r chi.Router) {
			r.Route("/purchase-orders", func(r chi.Router) {
				r.Get("/", a.listOrders)
				r.Get("/{id}", a.getOrder)
				r.Group(func(r chi.Router) {
					r.Use(a.restrictTo(procurement...))
					r.Post("/", a.createOrder)
					r.Put("/{id}", a.updateOrder)
					r.Delete("/{id}", a.deleteOrder)
					r.Post("/{id}/submit", a.submitOrder)
					r.Post("/{id}/send", a.issueOrder)
					r.Post("/{id}/issue", a.issueOrder)
					r.Post("/{id}/cancel", a.cancelOrder)
					r.Post("/{id}/revise", a.reviseOrder)
				})
				r.With(a.restrictTo(managers...)).Post("/{id}/approve", a.approveOrder)
			})
			r.Route("/requisitions", func(r chi.Router) {
				r.Get("/", a.listRequisitions)
				r.Post("/", a.createRequisition)
				r.Get("/{id}", a.getRequisition)
				r.With(a.restrictTo(managers...)).Post("/{id}/approve", a.approveRequisition)
				r.With(a.restrictTo(managers...)).Post("/{id}/reject", a.rejectRequisition)
				r.With(a.restrictTo(entities.RoleAdmin, entities.RoleProcurementOfficer)).Post("/{id}/convert", a.convertRequisition)
			})
		})

		r.Route("/inventory", func(r chi.Router) {
			r.Get("/stock", a.listStock)
			r.Get("/stock/low", a.lowStockAlerts)
			r.Get("/stock/{materialId}", a.stockByMaterial)
			r.Get("/movements", a.listMovements)
			r.Route("/warehouses", a.warehouseRoutes)
			r.Route("/grn", func(r chi.Router) {
				r.Get("/", a.listGRNs)
				r.Get("/{id}", a.getGRN)
				r.Group(func(r chi.Router) {
					r.Use(a.restrictTo(storekeepers...))
					r.Post("/", a.createGRN)
					r.Post("/{id}/inspect", a.inspectGRN)
				})
				r.Group(func(r chi.Router) {
					r.Use(a.restrictTo(append(managers, entities.RoleInventoryManager)...))
					r.Post("/{id}/approve", a.approveGRN)
					r.Post("/{id}/reject", a.rejectGRN)
				})
			})
			r.Group(func(r chi.Router) {
				r.Use(a.restrictTo(storekeepers...))
				r.Post("/adjust", a.adjustStock)
				r.Post("/transfer", a.transferStock)
				r.Post("/issue", a.issueStock)
				r.Post("/return", a.returnStock)
			})
		})

		r.Route("/projects", func(r chi.Router) {
			r.Get("/", a.listProjects)
			r.Get("/{id}", a.getProject)
			r.Get("/{id}/stats", a.projectStats)
			r.Group(func(r chi.Router) {
				r.Use(a.restrictTo(projectOwners...))
				r.Post("/", a.createProject)
				r.Put("/{id}", a.updateProject)
				r.Delete("/{id}", a.deleteProject)
				r.Patch("/{id}/status", a.updateProjectStatus)
			})

			r.Route("/{id}/boq", func(r chi.Router) {
				r.Get("/", a.listBOQ)
				r.Get("/summary", a.boqSummary)
				r.Get("/export", a.exportBOQ)
				r.Get("/{itemId}", a.getBOQ)
				r.Group(func(r chi.Router) {
					r.Use(a.restrictTo(boqEditors...))
					r.Post("/", a.createBOQ)
					r.Post("/import", a.importBOQ)
					r.Put("/{itemId}", a.updateBOQ)
					r.Delete("/{itemId}", a.deleteBOQ)
				})
			})
		})

		r.Get("/planning/shortages", a.shortages)

		r.Route("/dashboard", func(r chi.Router) {
			r.Get("/stats", a.dashboardStats)
			r.Get("/stock-value", a.stockValueByCategory)
			r.Get("/activities", a.recentActivities)
			r.Get("/po-stats", a.poStats)
			r.Get("/supplier-performance", a.supplierPerformance)
			r.Get("/project-budgets", a.projectBudgets)
			r.Get("/kpis", a.kpis)
			r.Get("/alerts", a.listAlerts)
			r.Patch("/alerts/{id}/read", a.markAlertRead)
			r.Patch("/alerts/{id}/dismiss", a.dismissAlert)
		})

		r.Route("/system/config", func(r chi.Router) {
			r.Get("/", a.getConfig)
			r.With(a.restrictTo(entities.RoleAdmin)).Put("/", a.updateConfig)
		})
	})
}

func (a *API) warehouseRoutes(r chi.Router) {
	r.Get("/", a.listWarehouses)
	r.Get("/{id}", a.getWarehouse)
	r.Get("/{id}/stock", a.warehouseStock)
	r.With(a.restrictTo(entities.RoleAdmin, entities.RoleInventoryManager)).Post("/", a.createWarehouse)
}

func (a *API) healthz(w http.ResponseWriter, r *http.Request) {
	if a.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.health.Ping(ctx); err != nil {
			a.logger.Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
