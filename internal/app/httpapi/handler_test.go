package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	app "github.com/freelancebill/freelancebill/internal/app"
	"github.com/freelancebill/freelancebill/internal/app/services/auth"
	"github.com/freelancebill/freelancebill/internal/app/storage/memory"
)

type fixture struct {
	t       *testing.T
	handler http.Handler
	store   *memory.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	application, err := app.New(app.Options{
		Stores:      app.Stores{Users: store, Clients: store, Invoices: store},
		TokenSecret: []byte("test-secret"),
		Links: auth.Links{
			VerifyBase: "https://app.example.com/verify",
			ResetBase:  "https://app.example.com/reset",
		},
	})
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	return &fixture{t: t, handler: NewHandler(application, nil), store: store}
}

func marshal(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(v); err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return buf
}

func (f *fixture) do(method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	f.t.Helper()
	var reader *bytes.Buffer
	if body != nil {
		reader = marshal(f.t, body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	var decoded map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &decoded)
	return rec, decoded
}

// registerAndLogin walks the full register, verify, login flow and returns
// a session token.
func (f *fixture) registerAndLogin(username, password string) string {
	f.t.Helper()
	rec, _ := f.do(http.MethodPost, "/register", "", map[string]any{
		"username": username,
		"password": password,
		"email":    username,
	})
	if rec.Code != http.StatusCreated {
		f.t.Fatalf("register: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	u, err := f.store.GetUserByUsername(context.Background(), username)
	if err != nil {
		f.t.Fatalf("read stored user: %v", err)
	}
	rec, _ = f.do(http.MethodGet, "/verify/"+u.Token, "", nil)
	if rec.Code != http.StatusOK {
		f.t.Fatalf("verify: expected 200, got %d", rec.Code)
	}

	rec, body := f.do(http.MethodPost, "/login", "", map[string]any{
		"username": username,
		"password": password,
	})
	if rec.Code != http.StatusOK {
		f.t.Fatalf("login: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	token, _ := body["token"].(string)
	if token == "" {
		f.t.Fatalf("login: no token in response")
	}
	return token
}

func (f *fixture) createClient(token, name string) string {
	f.t.Helper()
	rec, body := f.do(http.MethodPost, "/client", token, map[string]any{"name": name})
	if rec.Code != http.StatusCreated {
		f.t.Fatalf("create client: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	id, _ := body["id"].(string)
	return id
}

func TestAuthFlow(t *testing.T) {
	f := newFixture(t)

	token := f.registerAndLogin("alice@example.com", "s3cret")

	// duplicate registration conflicts
	rec, _ := f.do(http.MethodPost, "/register", "", map[string]any{
		"username": "alice@example.com",
		"password": "other",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}

	// protected routes require a session
	rec, _ = f.do(http.MethodGet, "/clients", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
	rec, _ = f.do(http.MethodGet, "/clients", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", rec.Code)
	}

	// wrong password is rejected with a taxonomy code
	rec, body := f.do(http.MethodPost, "/login", "", map[string]any{
		"username": "alice@example.com",
		"password": "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	errObj, _ := body["error"].(map[string]any)
	if errObj["code"] != "INVALID_CREDENTIALS" {
		t.Fatalf("unexpected error body: %v", body)
	}
}

func TestPasswordRecoveryFlow(t *testing.T) {
	f := newFixture(t)
	f.registerAndLogin("alice@example.com", "s3cret")

	rec, _ := f.do(http.MethodPost, "/recover-password", "", map[string]any{
		"username": "nobody@example.com",
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown user, got %d", rec.Code)
	}

	rec, _ = f.do(http.MethodPost, "/recover-password", "", map[string]any{
		"username": "alice@example.com",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("recover: expected 200, got %d", rec.Code)
	}

	u, err := f.store.GetUserByUsername(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("read stored user: %v", err)
	}
	rec, _ = f.do(http.MethodPost, "/reset-password/"+u.Token, "", map[string]any{
		"password":         "newpass",
		"confirm_password": "newpass",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("reset: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec, _ = f.do(http.MethodPost, "/login", "", map[string]any{
		"username": "alice@example.com",
		"password": "newpass",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login with new password: expected 200, got %d", rec.Code)
	}
}

func TestClientEndpoints(t *testing.T) {
	f := newFixture(t)
	token := f.registerAndLogin("alice@example.com", "s3cret")

	id := f.createClient(token, "Acme Corp")

	rec, _ := f.do(http.MethodPost, "/client", token, map[string]any{"name": ""})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank name, got %d", rec.Code)
	}

	rec, body := f.do(http.MethodPut, "/clients/"+id, token, map[string]any{"email": "billing@acme.test"})
	if rec.Code != http.StatusOK {
		t.Fatalf("update client: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if body["email"] != "billing@acme.test" || body["name"] != "Acme Corp" {
		t.Fatalf("unexpected update response: %v", body)
	}

	// another user cannot touch it
	otherToken := f.registerAndLogin("bob@example.com", "pw")
	rec, _ = f.do(http.MethodPut, "/clients/"+id, otherToken, map[string]any{"name": "Hijacked"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign client, got %d", rec.Code)
	}
}

func TestInvoiceEndpoints(t *testing.T) {
	f := newFixture(t)
	token := f.registerAndLogin("alice@example.com", "s3cret")
	clientID := f.createClient(token, "Acme Corp")

	create := map[string]any{
		"client_id":      clientID,
		"issue_date":     "2026-08-01",
		"due_date":       "2026-12-01",
		"currency":       "USD",
		"tax_rate":       5,
		"payment_method": "Bank Transfer",
		"status":         "Unpaid",
		"items": []map[string]any{
			{"description": "Consulting", "quantity": 2, "unit": "HOURS", "rate": 50, "discount": 10},
		},
	}
	rec, body := f.do(http.MethodPost, "/invoice", token, create)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create invoice: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if body["invoice_number"] != "1" || body["status"] != "Unpaid" {
		t.Fatalf("unexpected invoice: %v", body)
	}
	if body["total_amount"].(float64) != 94.5 {
		t.Fatalf("unexpected total: %v", body["total_amount"])
	}
	invoiceID := body["id"].(string)

	rec, body = f.do(http.MethodGet, "/invoice/"+invoiceID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get invoice: expected 200, got %d", rec.Code)
	}
	if body["client_name"] != "Acme Corp" {
		t.Fatalf("unexpected client name: %v", body["client_name"])
	}

	rec, body = f.do(http.MethodPost, "/invoice/"+invoiceID+"/items", token, map[string]any{
		"description": "Hosting", "quantity": 1, "unit": "PIECES", "rate": 30,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add item: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	itemID := body["id"].(string)

	rec, _ = f.do(http.MethodDelete, "/invoice/item/"+itemID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete item: expected 200, got %d", rec.Code)
	}

	rec, body = f.do(http.MethodPost, "/invoice/"+invoiceID+"/mark-paid", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("mark paid: expected 200, got %d", rec.Code)
	}
	if body["status"] != "Paid" || body["payment_date"] == nil {
		t.Fatalf("unexpected paid invoice: %v", body)
	}

	rec, body = f.do(http.MethodPost, "/invoice/"+invoiceID+"/cancel", token, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("cancel paid: expected 409, got %d", rec.Code)
	}
	errObj, _ := body["error"].(map[string]any)
	if errObj["code"] != "INVALID_TRANSITION" {
		t.Fatalf("unexpected error body: %v", body)
	}

	rec, _ = f.do(http.MethodGet, "/invoices", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list invoices: expected 200, got %d", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	rec, body := f.do(http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body["status"] != "ok" {
		t.Fatalf("unexpected body: %v", body)
	}
}
