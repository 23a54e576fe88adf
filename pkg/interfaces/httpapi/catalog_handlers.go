package httpapi

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/vsinha/cims/pkg/application/services"
	"github.com/vsinha/cims/pkg/domain/entities"
	"github.com/vsinha/cims/pkg/domain/repositories"
)

func (a *API) listMaterials(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := a.svc.Materials.List(r.Context(), repositories.MaterialFilter{
		Search:   q.Get("search"),
		Category: entities.MaterialCategory(strings.ToUpper(q.Get("category"))),
		Status:   entities.MaterialStatus(strings.ToUpper(q.Get("status"))),
		Page:     pageParams(r),
		Sort:     sortParams(r),
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (a *API) getMaterial(w http.ResponseWriter, r *http.Request) {
	material, err := a.svc.Materials.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ok(w, material)
}

func (a *API) createMaterial(w http.ResponseWriter, r *http.Request) {
	var in services.MaterialInput
	if err := a.validator.Decode(r, "material", &in); err != nil {
		a.writeError(w, r, err)
		return
	}
	material, err := a.svc.Materials.Create(r.Context(), currentUser(r), in)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	created(w, material)
}

func (a *API) updateMaterial(w http.ResponseWriter, r *http.Request) {
	var in services.MaterialUpdate
	if err := decode(r, &in); err != nil {
		a.writeError(w, r, err)
		return
	}
	material, err := a.svc.Materials.Update(r.Context(), currentUser(r), chi.URLParam(r, "id"), in)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ok(w, material)
}

func (a *API) deleteMaterial(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.Materials.Delete(r.Context(), currentUser(r), chi.URLParam(r, "id")); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) materialCategories(w http.ResponseWriter, r *http.Request) {
	ok(w, a.svc.Materials.Categories())
}

func (a *API) materialStockLevel(w http.ResponseWriter, r *http.Request) {
	level, err := a.svc.Materials.StockLevel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ok(w, level)
}

func (a *API) lowStockMaterials(w http.ResponseWriter, r *http.Request) {
	items, err := a.svc.Materials.LowStock(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ok(w, items)
}

func (a *API) exportMaterials(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := a.svc.Materials.Export(r.Context(), &buf); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeCSV(w, "materials.csv", buf.Bytes())
}

func (a *API) importMaterials(w http.ResponseWriter, r *http.Request) {
	body, err := csvUpload(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	result, err := a.svc.Materials.Import(r.Context(), currentUser(r), body)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ok(w, result)
}

// csvUpload accepts either a multipart "file" field or a raw CSV body
func csvUpload(r *http.Request) (io.Reader, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
			return nil, badRequest("Invalid upload: " + err.Error())
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, badRequest("Please upload a CSV file in the \"file\" field")
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return nil, badRequest("Failed to read upload")
		}
		return bytes.NewReader(data), nil
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, badRequest("Failed to read request body")
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, badRequest("CSV body is empty")
	}
	return bytes.NewReader(data), nil
}

func writeCSV(w http.ResponseWriter, filename string, data []byte) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (a *API) listSuppliers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := a.svc.Suppliers.List(r.Context(), repositories.SupplierFilter{
		Search: q.Get("search"),
		Status: entities.SupplierStatus(strings.ToUpper(q.Get("status"))),
		Page:   pageParams(r),
		Sort:   sortParams(r),
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (a *API) getSupplier(w http.ResponseWriter, r *http.Request) {
	detail, err := a.svc.Suppliers.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ok(w, detail)
}

func (a *API) createSupplier(w http.ResponseWriter, r *http.Request) {
	var in services.SupplierInput
	if err := a.validator.Decode(r, "supplier", &in); err != nil {
		a.writeError(w, r, err)
		return
	}
	supplier, err := a.svc.Suppliers.Create(r.Context(), currentUser(r), in)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	created(w, supplier)
}

func (a *API) updateSupplier(w http.ResponseWriter, r *http.Request) {
	var in services.SupplierInput
	if err := a.validator.Decode(r, "supplier", &in); err != nil {
		a.writeError(w, r, err)
		return
	}
	supplier, err := a.svc.Suppliers.Update(r.Context(), currentUser(r), chi.URLParam(r, "id"), in)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ok(w, supplier)
}

func (a *API) deleteSupplier(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.Suppliers.Delete(r.Context(), currentUser(r), chi.URLParam(r, "id")); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) listWarehouses(w http.ResponseWriter, r *http.Request) {
	warehouses, err := a.svc.Warehouses.List(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ok(w, warehouses)
}

func (a *API) getWarehouse(w http.ResponseWriter, r *http.Request) {
	warehouse, err := a.svc.Warehouses.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ok(w, warehouse)
}

func (a *API) createWarehouse(w http.ResponseWriter, r *http.Request) {
	var in services.WarehouseInput
	if err := a.validator.Decode(r, "warehouse", &in); err != nil {
		a.writeError(w, r, err)
		return
	}
	warehouse, err := a.svc.Warehouses.Create(r.Context(), currentUser(r), in)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	created(w, warehouse)
}

func (a *API) warehouseStock(w http.ResponseWriter, r *http.Request) {
	page, err := a.svc.Warehouses.Stock(r.Context(), chi.URLParam(r, "id"), pageParams(r))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}
