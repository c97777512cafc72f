package appointment

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// MemoryDirectory is a Directory kept in process memory. It backs tests and
// runs without a database.
type MemoryDirectory struct {
	mu       sync.RWMutex
	patients map[uuid.UUID]Patient
	doctors  map[uuid.UUID]Doctor
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		patients: make(map[uuid.UUID]Patient),
		doctors:  make(map[uuid.UUID]Doctor),
	}
}

// AddPatient registers p, assigning an id when it has none.
func (d *MemoryDirectory) AddPatient(p Patient) Patient {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	d.mu.Lock()
	d.patients[p.ID] = p
	d.mu.Unlock()
	return p
}

// AddDoctor registers doc, assigning an id when it has none.
func (d *MemoryDirectory) AddDoctor(doc Doctor) Doctor {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	d.mu.Lock()
	d.doctors[doc.ID] = doc
	d.mu.Unlock()
	return doc
}

func (d *MemoryDirectory) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.patients[id]
	if !ok {
		return nil, errors.Wrapf(ErrPatientNotFound, "patient %s", id)
	}
	return &p, nil
}

func (d *MemoryDirectory) GetDoctorByID(_ context.Context, id uuid.UUID) (*Doctor, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	doc, ok := d.doctors[id]
	if !ok {
		return nil, errors.Wrapf(ErrDoctorNotFound, "doctor %s", id)
	}
	return &doc, nil
}
