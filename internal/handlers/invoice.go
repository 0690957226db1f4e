package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/diewo77/invoice-dashboard/httpx"
	"github.com/diewo77/invoice-dashboard/i18n"
	"github.com/diewo77/invoice-dashboard/internal/cache"
	"github.com/diewo77/invoice-dashboard/internal/models"
	"github.com/diewo77/invoice-dashboard/internal/repository"
	"github.com/diewo77/invoice-dashboard/internal/services"
	"github.com/diewo77/invoice-dashboard/validation"
	"github.com/diewo77/invoice-dashboard/view"
	"go.uber.org/zap"
)

// InvoiceHandler serves the dashboard invoice pages in HTML or JSON.
type InvoiceHandler struct {
	svc    *services.InvoiceService
	pages  *cache.PageCache
	logger *zap.Logger
}

// NewInvoiceHandler wires the handler. pages may be nil to disable page caching.
func NewInvoiceHandler(svc *services.InvoiceService, pages *cache.PageCache, logger *zap.Logger) *InvoiceHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InvoiceHandler{svc: svc, pages: pages, logger: logger.Named("handlers")}
}

// Register mounts the invoice routes on mux.
func (h *InvoiceHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /dashboard/invoices", h.List)
	mux.HandleFunc("GET /dashboard/invoices/create", h.CreateForm)
	mux.HandleFunc("GET /dashboard/invoices/{id}/edit", h.EditForm)
	mux.HandleFunc("POST /dashboard/invoices", h.Create)
	// "create" names the form page, never an invoice id.
	mux.HandleFunc("POST /dashboard/invoices/create", formPageOnly)
	mux.HandleFunc("POST /dashboard/invoices/{id}", h.Update)
	mux.HandleFunc("POST /dashboard/invoices/{id}/delete", h.Delete)
	mux.HandleFunc("DELETE /dashboard/invoices/{id}", h.Delete)
}

// ResultResponse is the JSON body returned by successful mutations.
type ResultResponse struct {
	ID           string   `json:"id,omitempty"`
	RowsAffected int64    `json:"rows_affected"`
	Revalidated  []string `json:"revalidated"`
	NextView     string   `json:"next_view,omitempty"`
	Swallowed    bool     `json:"storage_error_swallowed,omitempty"`
}

func newResultResponse(res services.Result) ResultResponse {
	revalidated := res.Revalidated
	if revalidated == nil {
		revalidated = []string{}
	}
	return ResultResponse{
		ID:           res.InvoiceID,
		RowsAffected: res.RowsAffected,
		Revalidated:  revalidated,
		NextView:     res.NextView,
		Swallowed:    res.Swallowed != nil,
	}
}

// List: GET /dashboard/invoices – HTML (cached) or JSON
func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))

	if httpx.WantsJSON(r) {
		p, err := h.svc.List(r.Context(), query, page)
		if err != nil {
			h.logger.Error("Failed to list invoices", zap.Error(err))
			httpx.JSONError(w, http.StatusInternalServerError, "failed_to_list_invoices", nil)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{
			"items":       p.Invoices,
			"total":       p.Total,
			"page":        p.Page,
			"page_size":   p.PageSize,
			"total_pages": p.TotalPages,
		})
		return
	}

	key := pageKey(r)
	var gen uint64
	if h.pages != nil {
		if body, ok := h.pages.Get(key); ok {
			writeHTML(w, http.StatusOK, body, "HIT")
			return
		}
		gen = h.pages.Generation(r.URL.Path)
	}

	p, err := h.svc.List(r.Context(), query, page)
	if err != nil {
		h.logger.Error("Failed to list invoices", zap.Error(err))
		http.Error(w, i18n.T(i18n.LangFromContext(r.Context()), "invoice_list_failed"), http.StatusInternalServerError)
		return
	}
	body, err := view.RenderBytes(r, "invoices/index.html", map[string]any{"Page": p})
	if err != nil {
		h.logger.Error("Failed to render invoice list", zap.Error(err))
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	if h.pages != nil && !h.pages.SetIfCurrent(r.URL.Path, key, gen, body) {
		h.logger.Debug("Invoice list purged while rendering, not cached", zap.String("key", key))
	}
	writeHTML(w, http.StatusOK, body, "MISS")
}

// pageKey keys the cached list by path, normalised query and language so
// a purge of the path drops every variant.
func pageKey(r *http.Request) string {
	q := r.URL.Query()
	q.Set("lang", i18n.LangFromContext(r.Context()))
	return cache.Key(r.URL.Path, q.Encode())
}

func writeHTML(w http.ResponseWriter, status int, body []byte, cacheState string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Cache", cacheState)
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// CreateForm: GET /dashboard/invoices/create
func (h *InvoiceHandler) CreateForm(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, http.StatusOK, "invoices/create.html", services.InvoicesPath, map[string]string{}, nil, "")
}

// EditForm: GET /dashboard/invoices/{id}/edit
func (h *InvoiceHandler) EditForm(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	inv, err := h.svc.Get(r.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		h.logger.Error("Failed to load invoice", zap.String("invoice_id", id), zap.Error(err))
		http.Error(w, "failed to load invoice", http.StatusInternalServerError)
		return
	}
	values := map[string]string{
		services.FieldCustomerID: inv.CustomerID,
		services.FieldAmount:     view.UnitsFromCents(inv.Amount),
		services.FieldStatus:     string(inv.Status),
	}
	h.renderForm(w, r, http.StatusOK, "invoices/edit.html", editPath(id), values, nil, "")
}

// Create: POST /dashboard/invoices – form or JSON
func (h *InvoiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	values, ok := h.readValues(w, r)
	if !ok {
		return
	}
	form := services.FormFromValues(values)
	res, err := h.svc.Create(r.Context(), form)
	if err != nil {
		h.mutationFailed(w, r, "create", "invoices/create.html", services.InvoicesPath, form, err)
		return
	}
	h.mutationDone(w, r, http.StatusCreated, res)
}

// Update: POST /dashboard/invoices/{id} – form or JSON
func (h *InvoiceHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	values, ok := h.readValues(w, r)
	if !ok {
		return
	}
	form := services.FormFromValues(values)
	res, err := h.svc.Update(r.Context(), id, form)
	if err != nil {
		h.mutationFailed(w, r, "update", "invoices/edit.html", editPath(id), form, err)
		return
	}
	h.mutationDone(w, r, http.StatusOK, res)
}

// Delete: POST /dashboard/invoices/{id}/delete (form) and
// DELETE /dashboard/invoices/{id} (API). Form callers go back to the page
// they came from.
func (h *InvoiceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	api := r.Method == http.MethodDelete || httpx.WantsJSON(r)

	res, err := h.svc.Delete(r.Context(), id)
	if err != nil {
		if api {
			httpx.JSONError(w, http.StatusInternalServerError, "failed_to_delete_invoice", nil)
			return
		}
		h.renderListError(w, r, "invoice_not_deleted")
		return
	}
	if api {
		httpx.JSON(w, http.StatusOK, newResultResponse(res))
		return
	}
	http.Redirect(w, r, backTo(r), http.StatusSeeOther)
}

func formPageOnly(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", http.MethodGet)
	if httpx.WantsJSON(r) {
		httpx.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}

func (h *InvoiceHandler) readValues(w http.ResponseWriter, r *http.Request) (map[string]string, bool) {
	values, err := httpx.Values(w, r)
	if err == nil {
		return values, true
	}
	if httpx.WantsJSON(r) {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_body", nil)
	} else {
		http.Error(w, "invalid request body", http.StatusBadRequest)
	}
	return nil, false
}

func (h *InvoiceHandler) mutationDone(w http.ResponseWriter, r *http.Request, status int, res services.Result) {
	if httpx.WantsJSON(r) {
		httpx.JSON(w, status, newResultResponse(res))
		return
	}
	http.Redirect(w, r, res.NextView, http.StatusSeeOther)
}

func (h *InvoiceHandler) mutationFailed(w http.ResponseWriter, r *http.Request, op, page, action string, form services.InvoiceForm, err error) {
	if verr, ok := validation.AsError(err); ok {
		if httpx.WantsJSON(r) {
			httpx.JSONError(w, http.StatusUnprocessableEntity, "validation_failed", verr.Violations)
			return
		}
		h.renderForm(w, r, http.StatusUnprocessableEntity, page, action, form.Values(), verr.Violations, "")
		return
	}

	h.logger.Error("Invoice mutation failed", zap.String("op", op), zap.Error(err))
	if httpx.WantsJSON(r) {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_"+op+"_invoice", nil)
		return
	}
	h.renderForm(w, r, http.StatusInternalServerError, page, action, form.Values(), nil, "invoice_not_saved")
}

func (h *InvoiceHandler) renderForm(w http.ResponseWriter, r *http.Request, status int, page, action string, values map[string]string, errs validation.Violations, errCode string) {
	customers, err := h.svc.Customers(r.Context())
	if err != nil {
		h.logger.Warn("Failed to load customers", zap.Error(err))
		customers = []models.Customer{}
	}
	if errs == nil {
		errs = validation.Violations{}
	}
	data := map[string]any{
		"Action":    action,
		"Customers": customers,
		"Statuses":  models.InvoiceStatuses,
		"Values":    values,
		"Errors":    errs,
		"Error":     errCode,
	}
	if err := view.RenderStatus(w, r, status, page, data); err != nil {
		h.logger.Error("Failed to render form", zap.String("page", page), zap.Error(err))
		http.Error(w, "template error", http.StatusInternalServerError)
	}
}

func (h *InvoiceHandler) renderListError(w http.ResponseWriter, r *http.Request, errCode string) {
	p, err := h.svc.List(r.Context(), "", 1)
	if err != nil {
		http.Error(w, i18n.T(i18n.LangFromContext(r.Context()), errCode), http.StatusInternalServerError)
		return
	}
	data := map[string]any{"Page": p, "Error": errCode}
	if err := view.RenderStatus(w, r, http.StatusInternalServerError, "invoices/index.html", data); err != nil {
		http.Error(w, "template error", http.StatusInternalServerError)
	}
}

func editPath(id string) string {
	return services.InvoicesPath + "/" + url.PathEscape(id)
}

// backTo returns the local referring page, or the invoice list.
func backTo(r *http.Request) string {
	ref, err := url.Parse(r.Referer())
	if err != nil || ref.Path == "" || !strings.HasPrefix(ref.Path, "/") {
		return services.InvoicesPath
	}
	if ref.Host != "" && ref.Host != r.Host {
		return services.InvoicesPath
	}
	if ref.RawQuery != "" {
		return ref.Path + "?" + ref.RawQuery
	}
	return ref.Path
}
