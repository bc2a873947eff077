// Package memstore keeps plants, orders and users in process memory with the
// same semantics as the Postgres repositories. It backs STORE_DRIVER=memory
// and the unit tests.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ariefcatur/plantnet-orders/internal/access"
	"github.com/ariefcatur/plantnet-orders/internal/inventory"
	"github.com/ariefcatur/plantnet-orders/internal/orders"
	"github.com/google/uuid"
)

type Store struct {
	mu     sync.Mutex
	plants map[string]orders.Plant
	orders map[string]orders.Order
	users  map[string]access.User
}

func New() *Store {
	return &Store{
		plants: map[string]orders.Plant{},
		orders: map[string]orders.Order{},
		users:  map[string]access.User{},
	}
}

func (s *Store) PutPlant(p orders.Plant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	s.plants[p.ID] = p
}

func (s *Store) PutUser(u access.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.Role == "" {
		u.Role = access.RoleCustomer
	}
	s.users[u.Email] = u
}

// ---- inventory ledger ----

func (s *Store) FindPlant(_ context.Context, id string) (orders.Plant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plants[id]
	if !ok {
		return orders.Plant{}, fmt.Errorf("plant %s: %w", id, orders.ErrNotFound)
	}
	return p, nil
}

func (s *Store) AdjustQuantity(_ context.Context, plantID string, delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plants[plantID]
	if !ok {
		return 0, fmt.Errorf("plant %s: %w", plantID, orders.ErrNotFound)
	}
	if p.Quantity+delta < 0 {
		return p.Quantity, &inventory.StockError{PlantID: plantID, Required: -delta, Available: p.Quantity}
	}
	p.Quantity += delta
	s.plants[plantID] = p
	return p.Quantity, nil
}

// ---- order store ----

func (s *Store) Create(_ context.Context, o orders.Order) (string, error) {
	if err := o.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	o.Status = orders.StatusPending
	o.Debited = false
	o.CreatedAt, o.UpdatedAt = now, now
	s.orders[o.ID] = o
	return o.ID, nil
}

func (s *Store) FindByID(_ context.Context, id string) (orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return orders.Order{}, fmt.Errorf("order %s: %w", id, orders.ErrNotFound)
	}
	return o, nil
}

func (s *Store) SetStatus(_ context.Context, id string, st orders.Status) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return 0, fmt.Errorf("order %s: %w", id, orders.ErrNotFound)
	}
	if o.Status == st {
		return 0, nil
	}
	o.Status, o.UpdatedAt = st, time.Now().UTC()
	s.orders[id] = o
	return 1, nil
}

func (s *Store) TransitionStatus(_ context.Context, id string, from, to orders.Status) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.Status != from {
		return 0, nil
	}
	o.Status, o.UpdatedAt = to, time.Now().UTC()
	s.orders[id] = o
	return 1, nil
}

func (s *Store) Delete(_ context.Context, id string) (orders.Order, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return orders.Order{}, 0, nil
	}
	if o.Status == orders.StatusDelivered {
		return orders.Order{}, 0, orders.ErrAlreadyDelivered
	}
	delete(s.orders, id)
	return o, 1, nil
}

func (s *Store) MarkDebited(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.orders[id]; ok {
		o.Debited, o.UpdatedAt = true, time.Now().UTC()
		s.orders[id] = o
	}
	return nil
}

func (s *Store) ListUndebited(_ context.Context, olderThan time.Duration, limit int) ([]orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-olderThan)
	var out []orders.Order
	for _, o := range s.orders {
		if !o.Debited && !o.CreatedAt.After(cutoff) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Orders whose plant no longer exists are left out, as the SQL join does.
func (s *Store) ListBySeller(_ context.Context, sellerEmail string) ([]orders.SellerOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []orders.SellerOrder{}
	for _, o := range s.sortedOrders() {
		p, ok := s.plants[o.PlantID]
		if ok && o.SellerEmail == sellerEmail {
			out = append(out, orders.SellerOrder{Order: o, Name: p.Name})
		}
	}
	return out, nil
}

func (s *Store) ListByCustomer(_ context.Context, customerEmail string) ([]orders.CustomerOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []orders.CustomerOrder{}
	for _, o := range s.sortedOrders() {
		p, ok := s.plants[o.PlantID]
		if ok && o.Customer.Email == customerEmail {
			out = append(out, orders.CustomerOrder{Order: o, Name: p.Name, Image: p.Image, Category: p.Category})
		}
	}
	return out, nil
}

// newest first; caller holds mu
func (s *Store) sortedOrders() []orders.Order {
	out := make([]orders.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *Store) Stats(_ context.Context) (orders.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := orders.Stats{
		TotalPlants: int64(len(s.plants)),
		TotalUsers:  int64(len(s.users)),
		TotalOrders: int64(len(s.orders)),
	}
	for _, o := range s.orders {
		st.TotalRevenue += o.PriceCents
	}
	return st, nil
}

// ---- users ----

func (s *Store) FindUser(_ context.Context, email string) (access.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[email]
	if !ok {
		return access.User{}, fmt.Errorf("user %s: %w", email, orders.ErrNotFound)
	}
	return u, nil
}

func (s *Store) Role(ctx context.Context, email string) (access.Role, error) {
	u, err := s.FindUser(ctx, email)
	if err != nil {
		return "", err
	}
	return u.Role, nil
}
