package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/freelancebill/freelancebill/internal/app/domain/client"
	"github.com/freelancebill/freelancebill/internal/app/domain/invoice"
	"github.com/freelancebill/freelancebill/internal/app/domain/user"
	"github.com/freelancebill/freelancebill/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local
// development.
type Store struct {
	mu     sync.RWMutex
	nextID int64

	users          map[string]user.User
	usersByName    map[string]string
	clients        map[string]client.Client
	clientsByUser  map[string][]string
	invoices       map[string]invoice.Invoice
	invoicesByUser map[string][]string
	items          map[string]invoice.Item
	itemsByInvoice map[string][]string
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.ClientStore = (*Store)(nil)
var _ storage.InvoiceStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:         1,
		users:          make(map[string]user.User),
		usersByName:    make(map[string]string),
		clients:        make(map[string]client.Client),
		clientsByUser:  make(map[string][]string),
		invoices:       make(map[string]invoice.Invoice),
		invoicesByUser: make(map[string][]string),
		items:          make(map[string]invoice.Item),
		itemsByInvoice: make(map[string][]string),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("%d", id)
}

// UserStore implementation ----------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByName[u.Username]; exists {
		return user.User{}, fmt.Errorf("user %s: %w", u.Username, storage.ErrConflict)
	}
	if u.ID == "" {
		u.ID = s.nextIDLocked()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	s.users[u.ID] = u
	s.usersByName[u.Username] = u.ID
	return u, nil
}

func (s *Store) UpdateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.users[u.ID]
	if !ok {
		return user.User{}, fmt.Errorf("user %s: %w", u.ID, storage.ErrNotFound)
	}
	if u.Username != original.Username {
		if _, taken := s.usersByName[u.Username]; taken {
			return user.User{}, fmt.Errorf("user %s: %w", u.Username, storage.ErrConflict)
		}
		delete(s.usersByName, original.Username)
		s.usersByName[u.Username] = u.ID
	}
	u.CreatedAt = original.CreatedAt
	u.UpdatedAt = time.Now().UTC()

	s.users[u.ID] = u
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, fmt.Errorf("user %s: %w", id, storage.ErrNotFound)
	}
	return u, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByName[username]
	if !ok {
		return user.User{}, fmt.Errorf("user %s: %w", username, storage.ErrNotFound)
	}
	return s.users[id], nil
}

func (s *Store) GetUserByToken(_ context.Context, token string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if token == "" {
		return user.User{}, storage.ErrNotFound
	}
	for _, u := range s.users {
		if u.Token == token {
			return u, nil
		}
	}
	return user.User{}, storage.ErrNotFound
}

// ClientStore implementation --------------------------------------------------

func (s *Store) CreateClient(_ context.Context, c client.Client) (client.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = s.nextIDLocked()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	s.clients[c.ID] = c
	s.clientsByUser[c.UserID] = append(s.clientsByUser[c.UserID], c.ID)
	return c, nil
}

func (s *Store) UpdateClient(_ context.Context, c client.Client) (client.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.clients[c.ID]
	if !ok {
		return client.Client{}, fmt.Errorf("client %s: %w", c.ID, storage.ErrNotFound)
	}
	c.UserID = original.UserID
	c.CreatedAt = original.CreatedAt
	c.UpdatedAt = time.Now().UTC()

	s.clients[c.ID] = c
	return c, nil
}

func (s *Store) GetClient(_ context.Context, id string) (client.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.clients[id]
	if !ok {
		return client.Client{}, fmt.Errorf("client %s: %w", id, storage.ErrNotFound)
	}
	return c, nil
}

func (s *Store) ListClients(_ context.Context, userID string) ([]client.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.clientsByUser[userID]
	result := make([]client.Client, 0, len(ids))
	for _, id := range ids {
		result = append(result, s.clients[id])
	}
	return result, nil
}

// InvoiceStore implementation -------------------------------------------------

func (s *Store) CreateInvoice(_ context.Context, inv invoice.Invoice, items []invoice.Item) (invoice.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if inv.ID == "" {
		inv.ID = s.nextIDLocked()
	}
	now := time.Now().UTC()
	inv.CreatedAt = now
	inv.UpdatedAt = now

	s.invoices[inv.ID] = inv
	s.invoicesByUser[inv.UserID] = append(s.invoicesByUser[inv.UserID], inv.ID)

	for _, item := range items {
		item.InvoiceID = inv.ID
		if item.ID == "" {
			item.ID = s.nextIDLocked()
		}
		item.CreatedAt = now
		s.items[item.ID] = item
		s.itemsByInvoice[inv.ID] = append(s.itemsByInvoice[inv.ID], item.ID)
	}
	return inv, nil
}

func (s *Store) UpdateInvoice(_ context.Context, inv invoice.Invoice) (invoice.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.invoices[inv.ID]
	if !ok {
		return invoice.Invoice{}, fmt.Errorf("invoice %s: %w", inv.ID, storage.ErrNotFound)
	}
	inv.UserID = original.UserID
	inv.ClientID = original.ClientID
	inv.Number = original.Number
	inv.CreatedAt = original.CreatedAt
	inv.UpdatedAt = time.Now().UTC()

	s.invoices[inv.ID] = inv
	return inv, nil
}

func (s *Store) GetInvoice(_ context.Context, id string) (invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, ok := s.invoices[id]
	if !ok {
		return invoice.Invoice{}, fmt.Errorf("invoice %s: %w", id, storage.ErrNotFound)
	}
	return inv, nil
}

func (s *Store) ListInvoices(_ context.Context, userID string) ([]invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.invoicesByUser[userID]
	result := make([]invoice.Invoice, 0, len(ids))
	for _, id := range ids {
		result = append(result, s.invoices[id])
	}
	return result, nil
}

func (s *Store) LastInvoiceNumber(_ context.Context, userID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.invoicesByUser[userID]
	if len(ids) == 0 {
		return "", nil
	}
	return s.invoices[ids[len(ids)-1]].Number, nil
}

func (s *Store) CreateInvoiceItem(_ context.Context, item invoice.Item) (invoice.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.invoices[item.InvoiceID]; !ok {
		return invoice.Item{}, fmt.Errorf("invoice %s: %w", item.InvoiceID, storage.ErrNotFound)
	}
	if item.ID == "" {
		item.ID = s.nextIDLocked()
	}
	item.CreatedAt = time.Now().UTC()

	s.items[item.ID] = item
	s.itemsByInvoice[item.InvoiceID] = append(s.itemsByInvoice[item.InvoiceID], item.ID)
	return item, nil
}

func (s *Store) GetInvoiceItem(_ context.Context, id string) (invoice.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return invoice.Item{}, fmt.Errorf("item %s: %w", id, storage.ErrNotFound)
	}
	return item, nil
}

func (s *Store) DeleteInvoiceItem(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return fmt.Errorf("item %s: %w", id, storage.ErrNotFound)
	}
	delete(s.items, id)

	ids := s.itemsByInvoice[item.InvoiceID]
	for i, itemID := range ids {
		if itemID == id {
			s.itemsByInvoice[item.InvoiceID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

func (s *Store) ListInvoiceItems(_ context.Context, invoiceID string) ([]invoice.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.itemsByInvoice[invoiceID]
	result := make([]invoice.Item, 0, len(ids))
	for _, id := range ids {
		result = append(result, s.items[id])
	}
	return result, nil
}
