package reservations

import (
	"context"
	"sync"
)

// MemoryStore keeps clients and reservations in process. Iteration follows
// insertion order so ties resolve deterministically.
type MemoryStore struct {
	mu           sync.RWMutex
	clients      map[string]*Client
	clientOrder  []string
	reservations map[string]*Reservation
	resOrder     []string
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		clients:      make(map[string]*Client),
		reservations: make(map[string]*Reservation),
	}
}

// PutClient inserts or replaces a client.
func (s *MemoryStore) PutClient(c Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c.ID]; !ok {
		s.clientOrder = append(s.clientOrder, c.ID)
	}
	cp := c
	s.clients[c.ID] = &cp
}

// PutReservation inserts or replaces a reservation.
func (s *MemoryStore) PutReservation(r Reservation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reservations[r.ID]; !ok {
		s.resOrder = append(s.resOrder, r.ID)
	}
	cp := r
	s.reservations[r.ID] = &cp
}

// Client returns a copy of the stored client.
func (s *MemoryStore) Client(id string) (Client, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[id]
	if !ok {
		return Client{}, false
	}
	return *c, true
}

// Reservation returns a copy of the stored reservation.
func (s *MemoryStore) Reservation(id string) (Reservation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reservations[id]
	if !ok {
		return Reservation{}, false
	}
	return *r, true
}

func (s *MemoryStore) FindClientByPhone(ctx context.Context, phone string) (Client, bool, error) {
	if err := ctx.Err(); err != nil {
		return Client{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.clientOrder {
		if c := s.clients[id]; c.Phone == phone {
			return *c, true, nil
		}
	}
	return Client{}, false, nil
}

func (s *MemoryStore) ListFromDate(ctx context.Context, clientID, fromDate string) ([]Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Reservation
	for _, id := range s.resOrder {
		r := s.reservations[id]
		if r.ClientID == clientID && r.Date >= fromDate {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *MemoryStore) UpdateStatus(ctx context.Context, reservationID string, status Status) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[reservationID]
	if !ok {
		return ErrReservationNotFound
	}
	r.Status = status
	return nil
}

// CancelReservation validates both documents before mutating either, under one lock.
func (s *MemoryStore) CancelReservation(ctx context.Context, reservationID, clientID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[reservationID]
	if !ok {
		return ErrReservationNotFound
	}
	c, ok := s.clients[clientID]
	if !ok {
		return ErrClientNotFound
	}
	r.Status = StatusCancelled
	c.CancelledCount++
	return nil
}
