package httpapi

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/vsinha/cims/pkg/application/services"
	"github.com/vsinha/cims/pkg/domain/entities"
	"github.com/vsinha/cims/pkg/domain/repositories"
)

func (a *API) listStock(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := a.svc.Inventory.ListStock(r.Context(), services.StockQuery{
		MaterialID:        q.Get("materialId"),
		WarehouseID:       q.Get("warehouseId"),
		BelowReorderLevel: q.Get("belowReorderLevel") == "true",
		Page:              pageParams(r),
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (a *API) stockByMaterial(w http.ResponseWriter, r *http.Request) {
	stock, err := a.svc.Inventory.StockByMaterial(r.Context(), chi.URLParam(r, "materialId"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ok(w, stock)
}

func (a *API) lowStockAlerts(w http.ResponseWriter, r *http.Request) {
	items, err := a.svc.Inventory.LowStockAlerts(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ok(w, items)
}

func (a *API) listMovements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	created, err := dateRange(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	movements, err := a.svc.Inventory.Movements(r.Context(), repositories.MovementFilter{
		MaterialID:  q.Get("materialId"),
		WarehouseID: q.Get("warehouseId"),
		ProjectID:   q.Get("projectId"),
		Created:     created,
		Limit:       intParam(r, "limit", 50),
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ok(w, movements)
}

func (a *API) adjustStock(w http.ResponseWriter, r *http.Request) {
	var in services.AdjustInput
	if err := a.validator.Decode(r, "stock_operation", &in); err != nil {
		a.writeError(w, r, err)
		return
	}
	result, err := a.svc.Inventory.Adjust(r.Context(), currentUser(r), in)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ok(w, result)
}

func (a *API) transferStock(w http.ResponseWriter, r *http.Request) {
	var in services.TransferInput
	if err := a.validator.Decode(r, "stock_operation", &in); err != nil {
		a.writeError(w, r, err)
		return
	}
	result, err := a.svc.Inventory.Transfer(r.Context(), currentUser(r), in)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ok(w, result)
}

func (a *API) issueStock(w http.ResponseWriter, r *http.Request) {
	var in services.IssueInput
	if err := a.validator.Decode(r, "stock_operation", &in); err != nil {
		a.writeError(w, r, err)
		return
	}
	result, err := a.svc.Inventory.IssueToProject(r.Context(), currentUser(r), in)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ok(w, result)
}

func (a *API) returnStock(w http.ResponseWriter, r *http.Request) {
	var in services.ReturnInput
	if err := a.validator.Decode(r, "stock_operation", &in); err != nil {
		a.writeError(w, r, err)
		return
	}
	result, err := a.svc.Inventory.Return(r.Context(), currentUser(r), in)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ok(w, result)
}

func (a *API) listProjects(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	started, err := dateRange(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	page, err := a.svc.Projects.List(r.Context(), repositories.ProjectFilter{
		Status:    entities.ProjectStatus(strings.ToUpper(q.Get("status"))),
		ManagerID: q.Get("managerId"),
		Search:    q.Get("search"),
		Started:   started,
		Page:      pageParams(r),
		Sort:      sortParams(r),
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (a *API) getProject(w http.ResponseWriter, r *http.Request) {
	project, err := a.svc.Projects.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ok(w, project)
}

func (a *API) createProject(w http.ResponseWriter, r *http.Request) {
	var in services.ProjectInput
	if err := a.validator.Decode(r, "project", &in); err != nil {
		a.writeError(w, r, err)
		return
	}
	project, err := a.svc.Projects.Create(r.Context(), currentUser(r), in)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	created(w, project)
}

func (a *API) updateProject(w http.ResponseWriter, r *http.Request) {
	var in services.ProjectInput
	if err := a.validator.Decode(r, "project", &in); err != nil {
		a.writeError(w, r, err)
		return
	}
	project, err := a.svc.Projects.Update(r.Context(), currentUser(r), chi.URLParam(r, "id"), in)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ok(w, project)
}

func (a *API) deleteProject(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.Projects.Delete(r.Context(), currentUser(r), chi.URLParam(r, "id")); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) updateProjectStatus(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Status entities.ProjectStatus `json:"status"`
	}
	if err := decode(r, &in); err != nil {
		a.writeError(w, r, err)
		return
	}
	project, err := a.svc.Projects.UpdateStatus(r.Context(), currentUser(r), chi.URLParam(r, "id"), in.Status)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ok(w, project)
}

func (a *API) projectStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.svc.Projects.Stats(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ok(w, stats)
}

func (a *API) listBOQ(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := a.svc.Projects.ListBOQ(r.Context(), repositories.BOQFilter{
		ProjectID: chi.URLParam(r, "id"),
		Category:  q.Get("category"),
		Search:    q.Get("search"),
		Page:      pageParams(r),
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (a *API) getBOQ(w http.ResponseWriter, r *http.Request) {
	line, err := a.svc.Projects.GetBOQ(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "itemId"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ok(w, line)
}

func (a *API) createBOQ(w http.ResponseWriter, r *http.Request) {
	var in services.BOQInput
	if err := a.validator.Decode(r, "boq_item", &in); err != nil {
		a.writeError(w, r, err)
		return
	}
	line, err := a.svc.Projects.CreateBOQ(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	created(w, line)
}

func (a *API) updateBOQ(w http.ResponseWriter, r *http.Request) {
	var in services.BOQUpdate
	if err := decode(r, &in); err != nil {
		a.writeError(w, r, err)
		return
	}
	line, err := a.svc.Projects.UpdateBOQ(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "itemId"), in)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ok(w, line)
}

func (a *API) deleteBOQ(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.Projects.DeleteBOQ(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "itemId")); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) boqSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := a.svc.Projects.BOQSummary(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ok(w, summary)
}

func (a *API) importBOQ(w http.ResponseWriter, r *http.Request) {
	body, err := csvUpload(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	result, err := a.svc.Projects.ImportBOQ(r.Context(), chi.URLParam(r, "id"), body)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ok(w, result)
}

func (a *API) exportBOQ(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := a.svc.Projects.ExportBOQ(r.Context(), chi.URLParam(r, "id"), &buf); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeCSV(w, "boq.csv", buf.Bytes())
}

func (a *API) shortages(w http.ResponseWriter, r *http.Request) {
	result, err := a.svc.Planning.Plan(r.Context(), r.URL.Query().Get("projectId"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ok(w, result)
}

func (a *API) dashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.svc.Dashboard.Stats(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ok(w, stats)
}

func (a *API) stockValueByCategory(w http.ResponseWriter, r *http.Request) {
	values, err := a.svc.Dashboard.StockValueByCategory(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ok(w, values)
}

func (a *API) recentActivities(w http.ResponseWriter, r *http.Request) {
	activities, err := a.svc.Dashboard.Activities(r.Context(), intParam(r, "limit", 10))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ok(w, activities)
}

func (a *API) poStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.svc.Dashboard.POStats(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ok(w, stats)
}

func (a *API) supplierPerformance(w http.ResponseWriter, r *http.Request) {
	ranking, err := a.svc.Dashboard.SupplierPerformance(r.Context(), intParam(r, "limit", 5))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ok(w, ranking)
}

func (a *API) projectBudgets(w http.ResponseWriter, r *http.Request) {
	budgets, err := a.svc.Dashboard.ProjectBudgetUtilization(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ok(w, budgets)
}

func (a *API) kpis(w http.ResponseWriter, r *http.Request) {
	kpis, err := a.svc.Dashboard.KPIs(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ok(w, kpis)
}

func (a *API) listAlerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	alerts, err := a.svc.Alerts.List(r.Context(), repositories.AlertFilter{
		IncludeDismissed: q.Get("includeDismissed") == "true",
		Type:             entities.AlertType(strings.ToUpper(q.Get("type"))),
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ok(w, alerts)
}

func (a *API) markAlertRead(w http.ResponseWriter, r *http.Request) {
	alert, err := a.svc.Alerts.MarkRead(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ok(w, alert)
}

func (a *API) dismissAlert(w http.ResponseWriter, r *http.Request) {
	alert, err := a.svc.Alerts.Dismiss(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ok(w, alert)
}

func (a *API) getConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := a.svc.Settings.Get(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ok(w, cfg)
}

func (a *API) updateConfig(w http.ResponseWriter, r *http.Request) {
	var cfg entities.SystemConfig
	if err := decode(r, &cfg); err != nil {
		a.writeError(w, r, err)
		return
	}
	saved, err := a.svc.Settings.Update(r.Context(), currentUser(r), cfg)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ok(w, saved)
}
