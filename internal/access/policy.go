// Package access holds the role → permitted-actions table.
package access

import "github.com/kitchenunity/cabinet-bfa-go/internal/domain"

// Action is an operation an actor may attempt.
type Action string

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
)

// Module is a functional area of the product.
type Module string

const (
	ModuleDashboard  Module = "dashboard"
	ModuleLeads      Module = "leads"
	ModuleCustomers  Module = "customers"
	ModuleClaims     Module = "claims"
	ModuleSales      Module = "sales"
	ModuleInventory  Module = "inventory"
	ModulePlanner    Module = "planner"
	ModuleAccounting Module = "accounting"
	ModuleReports    Module = "reports"
	ModuleSettings   Module = "settings"
	ModuleStores     Module = "stores"
)

var tenantModules = []Module{
	ModuleDashboard, ModuleLeads, ModuleCustomers, ModuleClaims, ModuleSales,
	ModuleInventory, ModulePlanner, ModuleAccounting, ModuleReports, ModuleSettings,
}

// globalModules is what an admin navigates while no store is selected.
var globalModules = []Module{ModuleDashboard, ModuleReports, ModuleSettings, ModuleStores}

// ModuleFor maps an entity kind to the module that owns it.
func ModuleFor(kind domain.Kind) Module {
	switch kind {
	case domain.KindLead:
		return ModuleLeads
	case domain.KindCustomer:
		return ModuleCustomers
	case domain.KindClaim:
		return ModuleClaims
	case domain.KindOrder:
		return ModuleSales
	case domain.KindInventory:
		return ModuleInventory
	case domain.KindPlanner:
		return ModulePlanner
	}
	return ""
}

// Scope is where an action is attempted.
type Scope struct {
	StoreID string
	Module  Module
}

// CanPerform reports whether role may perform action in scope.
//
// Employees and shop owners share one capability set. Only admins delete,
// manage stores, or read across tenants. In the "all" context an admin
// views the navigable global modules plus the aggregate lists of every
// entity module, and creates stores; accounting and every tenant write
// wait until a concrete store is selected.
func CanPerform(role domain.Role, action Action, scope Scope) bool {
	if scope.StoreID == "" {
		return false
	}

	switch role {
	case domain.RoleAdmin:
		if scope.StoreID == domain.AllStores {
			if scope.Module == ModuleStores {
				return action == ActionView || action == ActionCreate
			}
			return action == ActionView && globallyReadable(scope.Module)
		}
		return true

	case domain.RoleEmployee, domain.RoleCustomer:
		if scope.StoreID == domain.AllStores || scope.Module == ModuleStores {
			return false
		}
		return action != ActionDelete
	}
	return false
}

func globallyReadable(m Module) bool {
	for _, g := range globalModules {
		if g == m {
			return true
		}
	}
	for _, kind := range domain.Kinds {
		if ModuleFor(kind) == m {
			return true
		}
	}
	return false
}

// ModulesFor lists the modules role can navigate in the given store context.
// Every module listed passes CanPerform for view. In the "all" context the
// entity modules are readable as aggregate lists without being navigable.
func ModulesFor(role domain.Role, storeID string) []Module {
	switch {
	case storeID == "":
		return nil
	case role == domain.RoleAdmin && storeID == domain.AllStores:
		return append([]Module(nil), globalModules...)
	case role == domain.RoleAdmin:
		return append(append([]Module(nil), tenantModules...), ModuleStores)
	case role == domain.RoleEmployee, role == domain.RoleCustomer:
		if storeID == domain.AllStores {
			return nil
		}
		return append([]Module(nil), tenantModules...)
	}
	return nil
}

// Require returns ErrForbidden when CanPerform is false.
func Require(role domain.Role, action Action, scope Scope) error {
	if CanPerform(role, action, scope) {
		return nil
	}
	return &domain.ErrForbidden{Action: string(action) + " " + string(scope.Module)}
}
