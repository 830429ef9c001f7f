// Package httpapi exposes the application services over REST.
package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	app "github.com/freelancebill/freelancebill/internal/app"
	"github.com/freelancebill/freelancebill/internal/app/domain/client"
	"github.com/freelancebill/freelancebill/internal/app/domain/user"
	"github.com/freelancebill/freelancebill/internal/app/metrics"
	"github.com/freelancebill/freelancebill/internal/app/services/clients"
	"github.com/freelancebill/freelancebill/internal/app/services/invoices"
	apperrors "github.com/freelancebill/freelancebill/internal/errors"
	"github.com/freelancebill/freelancebill/internal/middleware"
	"github.com/freelancebill/freelancebill/pkg/logger"
)

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app *app.Application
	log *logger.Logger
}

// NewHandler returns a router exposing the REST API. Session validation is
// derived from the application's token secret.
func NewHandler(application *app.Application, log *logger.Logger) http.Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	h := &handler{app: application, log: log}
	auth := middleware.NewAuthMiddleware(application.TokenSecret(), log)

	r := chi.NewRouter()

	r.Get("/healthz", h.healthz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Post("/register", h.register)
	r.Get("/verify/{token}", h.verify)
	r.Post("/login", h.login)
	r.Post("/login/google", h.loginGoogle)
	r.Post("/recover-password", h.recoverPassword)
	r.Post("/reset-password/{token}", h.resetPassword)

	r.Group(func(r chi.Router) {
		r.Use(auth.Handler)

		r.Post("/change-password", h.changePassword)
		r.Post("/update-email", h.updateEmail)

		r.Get("/clients", h.listClients)
		r.Post("/client", h.createClient)
		r.Put("/clients/{id}", h.updateClient)

		r.Get("/invoices", h.listInvoices)
		r.Post("/invoice", h.createInvoice)
		r.Get("/invoice/{id}", h.getInvoice)
		r.Post("/invoice/{id}/items", h.addInvoiceItem)
		r.Delete("/invoice/item/{id}", h.deleteInvoiceItem)
		r.Post("/invoice/{id}/mark-paid", h.markInvoicePaid)
		r.Post("/invoice/{id}/cancel", h.cancelInvoice)
	})

	return metrics.InstrumentHandler(r)
}

func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- auth ---

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Username     string `json:"username"`
		Password     string `json:"password"`
		Name         string `json:"name"`
		BusinessName string `json:"business_name"`
		Email        string `json:"email"`
		Phone        string `json:"phone"`
		Address      string `json:"address"`
		TaxNumber    string `json:"tax_number"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		h.writeError(w, apperrors.Validation("invalid request body"))
		return
	}

	_, err := h.app.Auth.Register(r.Context(), payload.Username, payload.Password, user.Profile{
		Name:         payload.Name,
		BusinessName: payload.BusinessName,
		Email:        payload.Email,
		Phone:        payload.Phone,
		Address:      payload.Address,
		TaxNumber:    payload.TaxNumber,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"message": "registration successful, please verify your email",
	})
}

func (h *handler) verify(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Auth.Verify(r.Context(), chi.URLParam(r, "token")); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "email verified"})
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		h.writeError(w, apperrors.Validation("invalid request body"))
		return
	}

	token, err := h.app.Auth.Login(r.Context(), payload.Username, payload.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (h *handler) loginGoogle(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		IDToken string `json:"id_token"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		h.writeError(w, apperrors.Validation("invalid request body"))
		return
	}

	token, u, err := h.app.Auth.LoginWithGoogle(r.Context(), payload.IDToken)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"token":    token,
		"username": u.Username,
	})
}

func (h *handler) recoverPassword(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Username string `json:"username"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		h.writeError(w, apperrors.Validation("invalid request body"))
		return
	}

	if err := h.app.Auth.RecoverPassword(r.Context(), payload.Username); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "recovery email sent"})
}

func (h *handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Password        string `json:"password"`
		ConfirmPassword string `json:"confirm_password"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		h.writeError(w, apperrors.Validation("invalid request body"))
		return
	}

	if err := h.app.Auth.ResetPassword(r.Context(), chi.URLParam(r, "token"), payload.Password, payload.ConfirmPassword); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "password reset"})
}

func (h *handler) changePassword(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		h.writeError(w, apperrors.Validation("invalid request body"))
		return
	}

	username := middleware.GetUsername(r.Context())
	if err := h.app.Auth.ChangePassword(r.Context(), username, payload.CurrentPassword, payload.NewPassword); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "password changed"})
}

func (h *handler) updateEmail(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		h.writeError(w, apperrors.Validation("invalid request body"))
		return
	}

	username := middleware.GetUsername(r.Context())
	if err := h.app.Auth.UpdateEmail(r.Context(), username, payload.Email); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "email updated, please verify your new address",
	})
}

// --- clients ---

type clientPayload struct {
	Name         *string `json:"name"`
	BusinessName *string `json:"business_name"`
	Email        *string `json:"email"`
	Phone        *string `json:"phone"`
	Address      *string `json:"address"`
}

type clientView struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	BusinessName string `json:"business_name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Address      string `json:"address"`
}

func clientsUpdateInput(p clientPayload) clients.UpdateInput {
	return clients.UpdateInput{
		Name:         p.Name,
		BusinessName: p.BusinessName,
		Email:        p.Email,
		Phone:        p.Phone,
		Address:      p.Address,
	}
}

func toClientView(c client.Client) clientView {
	return clientView{
		ID:           c.ID,
		Name:         c.Name,
		BusinessName: c.BusinessName,
		Email:        c.Email,
		Phone:        c.Phone,
		Address:      c.Address,
	}
}

func (h *handler) listClients(w http.ResponseWriter, r *http.Request) {
	username := middleware.GetUsername(r.Context())
	listed, err := h.app.Clients.List(r.Context(), username)
	if err != nil {
		h.writeError(w, err)
		return
	}
	views := make([]clientView, 0, len(listed))
	for _, c := range listed {
		views = append(views, toClientView(c))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *handler) createClient(w http.ResponseWriter, r *http.Request) {
	var payload clientPayload
	if err := decodeJSON(r.Body, &payload); err != nil {
		h.writeError(w, apperrors.Validation("invalid request body"))
		return
	}

	deref := func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	}
	username := middleware.GetUsername(r.Context())
	created, err := h.app.Clients.Create(r.Context(), username, client.Client{
		Name:         deref(payload.Name),
		BusinessName: deref(payload.BusinessName),
		Email:        deref(payload.Email),
		Phone:        deref(payload.Phone),
		Address:      deref(payload.Address),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toClientView(created))
}

func (h *handler) updateClient(w http.ResponseWriter, r *http.Request) {
	var payload clientPayload
	if err := decodeJSON(r.Body, &payload); err != nil {
		h.writeError(w, apperrors.Validation("invalid request body"))
		return
	}

	username := middleware.GetUsername(r.Context())
	updated, err := h.app.Clients.Update(r.Context(), username, chi.URLParam(r, "id"), clientsUpdateInput(payload))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toClientView(updated))
}

// --- invoices ---

type itemPayload struct {
	Description string   `json:"description"`
	Quantity    *float64 `json:"quantity"`
	Unit        string   `json:"unit"`
	Rate        *float64 `json:"rate"`
	Discount    float64  `json:"discount"`
}

func (p itemPayload) toInput() invoices.ItemInput {
	return invoices.ItemInput{
		Description: p.Description,
		Quantity:    p.Quantity,
		Unit:        p.Unit,
		Rate:        p.Rate,
		Discount:    p.Discount,
	}
}

func (h *handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	username := middleware.GetUsername(r.Context())
	views, err := h.app.Invoices.List(r.Context(), username)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *handler) createInvoice(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ClientID      string        `json:"client_id"`
		IssueDate     string        `json:"issue_date"`
		DueDate       string        `json:"due_date"`
		Currency      string        `json:"currency"`
		TaxRate       float64       `json:"tax_rate"`
		PaymentMethod string        `json:"payment_method"`
		Status        string        `json:"status"`
		Items         []itemPayload `json:"items"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		h.writeError(w, apperrors.Validation("invalid request body"))
		return
	}

	items := make([]invoices.ItemInput, 0, len(payload.Items))
	for _, it := range payload.Items {
		items = append(items, it.toInput())
	}

	username := middleware.GetUsername(r.Context())
	view, err := h.app.Invoices.Create(r.Context(), username, invoices.CreateInput{
		ClientID:      payload.ClientID,
		IssueDate:     payload.IssueDate,
		DueDate:       payload.DueDate,
		Currency:      payload.Currency,
		TaxRate:       payload.TaxRate,
		PaymentMethod: payload.PaymentMethod,
		Status:        payload.Status,
		Items:         items,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (h *handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	view, err := h.app.Invoices.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *handler) addInvoiceItem(w http.ResponseWriter, r *http.Request) {
	var payload itemPayload
	if err := decodeJSON(r.Body, &payload); err != nil {
		h.writeError(w, apperrors.Validation("invalid request body"))
		return
	}

	item, err := h.app.Invoices.AddItem(r.Context(), chi.URLParam(r, "id"), payload.toInput())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (h *handler) deleteInvoiceItem(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Invoices.DeleteItem(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "item deleted"})
}

func (h *handler) markInvoicePaid(w http.ResponseWriter, r *http.Request) {
	view, err := h.app.Invoices.MarkPaid(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *handler) cancelInvoice(w http.ResponseWriter, r *http.Request) {
	view, err := h.app.Invoices.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// --- helpers ---

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (h *handler) writeError(w http.ResponseWriter, err error) {
	serviceErr := apperrors.GetServiceError(err)
	if serviceErr == nil {
		h.log.WithError(err).Error("unhandled error")
		serviceErr = apperrors.Internal("internal error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(serviceErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"code":    serviceErr.Code,
			"message": serviceErr.Message,
		},
	})
}
