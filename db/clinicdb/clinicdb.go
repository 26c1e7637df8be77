package clinicdb

import "context"

// DB exposes the current contents of the locally stored clinic collections.
type DB interface {
	Patients(ctx context.Context) ([]Patient, error)
	Consultations(ctx context.Context) ([]Consultation, error)
	Supplies(ctx context.Context) (*Supplies, error)
	Equipment(ctx context.Context) (*EquipmentItems, error)
	Seed(ctx context.Context, fixtures *Fixtures) error
	Close() error
}
