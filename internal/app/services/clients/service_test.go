package clients

import (
	"context"
	"testing"

	"github.com/freelancebill/freelancebill/internal/app/domain/client"
	"github.com/freelancebill/freelancebill/internal/app/domain/user"
	"github.com/freelancebill/freelancebill/internal/app/storage/memory"
	apperrors "github.com/freelancebill/freelancebill/internal/errors"
	"github.com/freelancebill/freelancebill/pkg/logger"
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	for _, name := range []string{"alice@example.com", "bob@example.com"} {
		if _, err := store.CreateUser(context.Background(), user.User{Username: name, Verified: true}); err != nil {
			t.Fatalf("CreateUser(%s): %v", name, err)
		}
	}
	return New(store, store, logger.NewDefault("clients-test")), store
}

func TestCreateAndList(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "alice@example.com", client.Client{
		Name:  "Acme Corp",
		Email: "billing@acme.test",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected an assigned ID")
	}

	if _, err := svc.Create(ctx, "alice@example.com", client.Client{Name: "  "}); err == nil {
		t.Fatalf("expected blank name to fail")
	}

	listed, err := svc.List(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(listed) != 1 || listed[0].Name != "Acme Corp" {
		t.Fatalf("unexpected listing: %+v", listed)
	}

	other, err := svc.List(ctx, "bob@example.com")
	if err != nil {
		t.Fatalf("List for other user: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("expected no clients for other user, got %d", len(other))
	}
}

func TestUpdatePartial(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "alice@example.com", client.Client{
		Name:  "Acme Corp",
		Phone: "111",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	email := "new@acme.test"
	updated, err := svc.Update(ctx, "alice@example.com", created.ID, UpdateInput{Email: &email})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Email != email {
		t.Fatalf("expected email to change, got %q", updated.Email)
	}
	if updated.Name != "Acme Corp" || updated.Phone != "111" {
		t.Fatalf("expected untouched fields to survive, got %+v", updated)
	}

	blank := ""
	if _, err := svc.Update(ctx, "alice@example.com", created.ID, UpdateInput{Name: &blank}); err == nil {
		t.Fatalf("expected blanking the name to fail")
	}
}

func TestUpdateOwnerScoping(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "alice@example.com", client.Client{Name: "Acme Corp"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	name := "Hijacked"
	_, err = svc.Update(ctx, "bob@example.com", created.ID, UpdateInput{Name: &name})
	if se := apperrors.GetServiceError(err); se == nil || se.Code != apperrors.CodeNotFound {
		t.Fatalf("expected not found for foreign client, got %v", err)
	}

	_, err = svc.Update(ctx, "alice@example.com", "missing", UpdateInput{Name: &name})
	if se := apperrors.GetServiceError(err); se == nil || se.Code != apperrors.CodeNotFound {
		t.Fatalf("expected not found for unknown id, got %v", err)
	}
}
