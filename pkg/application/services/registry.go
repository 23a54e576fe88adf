package services

import (
	"time"

	"github.com/vsinha/cims/pkg/infrastructure/security"
)

// AuthOptions configures token signing and password handling
type AuthOptions struct {
	Tokens        *security.TokenIssuer
	Hasher        *security.PasswordHasher
	Mailer        Mailer
	ResetTokenTTL time.Duration
	ExpiryWindow  time.Duration
}

// Services is the full application service graph sharing one set of dependencies
type Services struct {
	Auth         *AuthService
	Materials    *MaterialService
	Suppliers    *SupplierService
	Warehouses   *WarehouseService
	Orders       *PurchaseOrderService
	Requisitions *RequisitionService
	GRNs         *GRNService
	Inventory    *InventoryService
	Projects     *ProjectService
	Planning     *PlanningService
	Dashboard    *DashboardService
	Alerts       *AlertService
	Settings     *SettingsService
}

// New wires every service
func New(deps Dependencies, auth AuthOptions) *Services {
	deps = deps.withDefaults()

	suppliers := NewSupplierService(deps)
	orders := NewPurchaseOrderService(deps)
	inventory := NewInventoryService(deps)
	alerts := NewAlertService(deps, auth.ExpiryWindow)

	return &Services{
		Auth:         NewAuthService(deps, auth.Tokens, auth.Hasher, auth.Mailer, auth.ResetTokenTTL),
		Materials:    NewMaterialService(deps),
		Suppliers:    suppliers,
		Warehouses:   NewWarehouseService(deps),
		Orders:       orders,
		Requisitions: NewRequisitionService(deps, orders),
		GRNs:         NewGRNService(deps, inventory, suppliers, alerts),
		Inventory:    inventory,
		Projects:     NewProjectService(deps),
		Planning:     NewPlanningService(deps),
		Dashboard:    NewDashboardService(deps, suppliers),
		Alerts:       alerts,
		Settings:     NewSettingsService(deps),
	}
}
