package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/vsinha/cims/pkg/application/services"
	"github.com/vsinha/cims/pkg/domain/entities"
	"github.com/vsinha/cims/pkg/domain/repositories"
)

type decisionRequest struct {
	Approved   *bool  `json:"approved"`
	Comments   string `json:"comments"`
	Reason     string `json:"reason"`
	SupplierID string `json:"supplierId"`
	Notes      string `json:"notes"`
}

// optionalBody decodes a JSON body when one was sent
func optionalBody(r *http.Request, dst any) error {
	if r.ContentLength == 0 {
		return nil
	}
	return decode(r, dst)
}

func (a *API) listOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	created, err := dateRange(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	filter := repositories.PurchaseOrderFilter{
		SupplierID: q.Get("supplierId"),
		ProjectID:  q.Get("projectId"),
		Created:    created,
		Search:     q.Get("search"),
		Page:       pageParams(r),
		Sort:       sortParams(r),
	}
	if status := q.Get("status"); status != "" {
		for _, s := range strings.Split(status, ",") {
			filter.Statuses = append(filter.Statuses, entities.POStatus(strings.ToUpper(strings.TrimSpace(s))))
		}
	}
	page, err := a.svc.Orders.List(r.Context(), filter)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (a *API) getOrder(w http.ResponseWriter, r *http.Request) {
	po, err := a.svc.Orders.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ok(w, po)
}

func (a *API) createOrder(w http.ResponseWriter, r *http.Request) {
	var in services.PurchaseOrderInput
	if err := a.validator.Decode(r, "purchase_order", &in); err != nil {
		a.writeError(w, r, err)
		return
	}
	po, err := a.svc.Orders.Create(r.Context(), currentUser(r), in)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	created(w, po)
}

func (a *API) updateOrder(w http.ResponseWriter, r *http.Request) {
	var in services.PurchaseOrderInput
	if err := a.validator.Decode(r, "purchase_order", &in); err != nil {
		a.writeError(w, r, err)
		return
	}
	po, err := a.svc.Orders.Update(r.Context(), currentUser(r), chi.URLParam(r, "id"), in)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ok(w, po)
}

func (a *API) deleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.Orders.Delete(r.Context(), currentUser(r), chi.URLParam(r, "id")); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) submitOrder(w http.ResponseWriter, r *http.Request) {
	po, err := a.svc.Orders.Submit(r.Context(), currentUser(r), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ok(w, po)
}

func (a *API) approveOrder(w http.ResponseWriter, r *http.Request) {
	var in decisionRequest
	if err := decode(r, &in); err != nil {
		a.writeError(w, r, err)
		return
	}
	if in.Approved == nil {
		a.writeError(w, r, badRequest("approved must be true or false"))
		return
	}
	po, err := a.svc.Orders.Approve(r.Context(), currentUser(r), chi.URLParam(r, "id"), *in.Approved, in.Comments)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ok(w, po)
}

func (a *API) issueOrder(w http.ResponseWriter, r *http.Request) {
	po, err := a.svc.Orders.Issue(r.Context(), currentUser(r), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ok(w, po)
}

func (a *API) cancelOrder(w http.ResponseWriter, r *http.Request) {
	var in decisionRequest
	if err := optionalBody(r, &in); err != nil {
		a.writeError(w, r, err)
		return
	}
	po, err := a.svc.Orders.Cancel(r.Context(), currentUser(r), chi.URLParam(r, "id"), in.Reason)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ok(w, po)
}

func (a *API) reviseOrder(w http.ResponseWriter, r *http.Request) {
	po, err := a.svc.Orders.Revise(r.Context(), currentUser(r), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ok(w, po)
}

func (a *API) listRequisitions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := a.svc.Requisitions.List(r.Context(), repositories.RequisitionFilter{
		Status:      entities.RequisitionStatus(strings.ToUpper(q.Get("status"))),
		ProjectID:   q.Get("projectId"),
		RequestedBy: q.Get("requestedBy"),
		Page:        pageParams(r),
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (a *API) getRequisition(w http.ResponseWriter, r *http.Request) {
	req, err := a.svc.Requisitions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ok(w, req)
}

func (a *API) createRequisition(w http.ResponseWriter, r *http.Request) {
	var in services.RequisitionInput
	if err := a.validator.Decode(r, "requisition", &in); err != nil {
		a.writeError(w, r, err)
		return
	}
	req, err := a.svc.Requisitions.Create(r.Context(), currentUser(r), in)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	created(w, req)
}

func (a *API) approveRequisition(w http.ResponseWriter, r *http.Request) {
	var in decisionRequest
	if err := optionalBody(r, &in); err != nil {
		a.writeError(w, r, err)
		return
	}
	req, err := a.svc.Requisitions.Approve(r.Context(), currentUser(r), chi.URLParam(r, "id"), in.Comments)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ok(w, req)
}

func (a *API) rejectRequisition(w http.ResponseWriter, r *http.Request) {
	var in decisionRequest
	if err := optionalBody(r, &in); err != nil {
		a.writeError(w, r, err)
		return
	}
	req, err := a.svc.Requisitions.Reject(r.Context(), currentUser(r), chi.URLParam(r, "id"), in.Reason)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ok(w, req)
}

func (a *API) convertRequisition(w http.ResponseWriter, r *http.Request) {
	var in decisionRequest
	if err := decode(r, &in); err != nil {
		a.writeError(w, r, err)
		return
	}
	po, err := a.svc.Requisitions.Convert(r.Context(), currentUser(r), chi.URLParam(r, "id"), in.SupplierID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	created(w, po)
}

func (a *API) listGRNs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	received, err := dateRange(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	page, err := a.svc.GRNs.List(r.Context(), repositories.GRNFilter{
		PurchaseOrderID: q.Get("poId"),
		SupplierID:      q.Get("supplierId"),
		Status:          entities.GRNStatus(strings.ToUpper(q.Get("status"))),
		Received:        received,
		Page:            pageParams(r),
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (a *API) getGRN(w http.ResponseWriter, r *http.Request) {
	grn, err := a.svc.GRNs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ok(w, grn)
}

func (a *API) createGRN(w http.ResponseWriter, r *http.Request) {
	var in services.GRNInput
	if err := a.validator.Decode(r, "grn", &in); err != nil {
		a.writeError(w, r, err)
		return
	}
	grn, err := a.svc.GRNs.Create(r.Context(), currentUser(r), in)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	created(w, grn)
}

func (a *API) inspectGRN(w http.ResponseWriter, r *http.Request) {
	var in decisionRequest
	if err := optionalBody(r, &in); err != nil {
		a.writeError(w, r, err)
		return
	}
	grn, err := a.svc.GRNs.Inspect(r.Context(), currentUser(r), chi.URLParam(r, "id"), in.Notes)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ok(w, grn)
}

func (a *API) approveGRN(w http.ResponseWriter, r *http.Request) {
	grn, err := a.svc.GRNs.Approve(r.Context(), currentUser(r), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ok(w, grn)
}

func (a *API) rejectGRN(w http.ResponseWriter, r *http.Request) {
	var in decisionRequest
	if err := optionalBody(r, &in); err != nil {
		a.writeError(w, r, err)
		return
	}
	grn, err := a.svc.GRNs.Reject(r.Context(), currentUser(r), chi.URLParam(r, "id"), in.Reason)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ok(w, grn)
}
