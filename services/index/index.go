package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/meghashyamc/clinicsearch/clients/medicinesapi"
	"github.com/meghashyamc/clinicsearch/db/clinicdb"
	"github.com/meghashyamc/clinicsearch/db/kvdb"
	"github.com/meghashyamc/clinicsearch/db/searchdb"
	"github.com/meghashyamc/clinicsearch/logger"
)

// ClinicStore represents the locally stored clinic collections the index is built from
type ClinicStore interface {
	Patients(ctx context.Context) ([]clinicdb.Patient, error)
	Consultations(ctx context.Context) ([]clinicdb.Consultation, error)
	Supplies(ctx context.Context) (*clinicdb.Supplies, error)
	Equipment(ctx context.Context) (*clinicdb.EquipmentItems, error)
}

// MedicineFetcher represents the remote medicines source
type MedicineFetcher interface {
	FetchAll(ctx context.Context) ([]medicinesapi.Medicine, error)
}

// Catalog represents the full-text search database operations needed to mirror the index
type Catalog interface {
	ReplaceCategory(source string, documents []searchdb.Document) error
	GetDocCount() (uint64, error)
}

// MetadataStore keeps per-category index metadata
type MetadataStore interface {
	Set(bucket string, key string, value string) error
	Get(bucket string, key string) (string, error)
}

type Service struct {
	logger        logger.Logger
	index         *Index
	clinicStore   ClinicStore
	medicines     MedicineFetcher
	catalog       Catalog
	metadataStore MetadataStore
	now           func() time.Time

	refreshMu  sync.Mutex
	background sync.WaitGroup
}

// New wires a builder for idx. catalog and metadataStore may be nil.
func New(logger logger.Logger, idx *Index, clinicStore ClinicStore, medicines MedicineFetcher, catalog Catalog, metadataStore MetadataStore) *Service {
	return &Service{
		logger:        logger,
		index:         idx,
		clinicStore:   clinicStore,
		medicines:     medicines,
		catalog:       catalog,
		metadataStore: metadataStore,
		now:           time.Now,
	}
}

func (s *Service) Index() *Index {
	return s.index
}

// Build installs the static categories and starts fetching medicines in the
// background. It returns once the static categories are installed; the
// index's Ready channel closes when the medicines category follows.
func (s *Service) Build(ctx context.Context) error {
	var (
		patients      []clinicdb.Patient
		consultations []clinicdb.Consultation
		supplies      *clinicdb.Supplies
		equipment     *clinicdb.EquipmentItems
		failed        = make(map[Category]bool, len(Categories))
		failedMu      sync.Mutex
	)

	markFailed := func(categories ...Category) {
		failedMu.Lock()
		defer failedMu.Unlock()
		for _, category := range categories {
			failed[category] = true
		}
	}

	// rows that come back together with an error are discarded
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		loaded, err := s.clinicStore.Patients(groupCtx)
		if err != nil {
			s.logger.Error("failed to load patients", "err", err.Error())
			markFailed(CategoryPatients, CategoryMedicalRecords)
			return nil
		}
		patients = loaded
		return nil
	})
	group.Go(func() error {
		loaded, err := s.clinicStore.Consultations(groupCtx)
		if err != nil {
			s.logger.Error("failed to load consultations", "err", err.Error())
			markFailed(CategoryConsultations, CategoryMedicalRecords)
			return nil
		}
		consultations = loaded
		return nil
	})
	group.Go(func() error {
		loaded, err := s.clinicStore.Supplies(groupCtx)
		if err != nil {
			s.logger.Error("failed to load supplies", "err", err.Error())
			markFailed(CategorySupplies)
			return nil
		}
		supplies = loaded
		return nil
	})
	group.Go(func() error {
		loaded, err := s.clinicStore.Equipment(groupCtx)
		if err != nil {
			s.logger.Error("failed to load equipment", "err", err.Error())
			markFailed(CategoryEquipment)
			return nil
		}
		equipment = loaded
		return nil
	})
	if err := group.Wait(); err != nil {
		return err
	}
	// a cancelled build is terminal; readers stop waiting for medicines
	if err := ctx.Err(); err != nil {
		s.logger.Warn("index build cancelled", "reason", err)
		s.index.markReady()
		return err
	}

	// visit counts are only true when both inputs loaded
	medicalRecords := []Record{}
	if !failed[CategoryMedicalRecords] {
		medicalRecords = medicalRecordRecords(deriveMedicalRecords(patients, consultations))
	}

	s.install(CategoryPatients, patientRecords(patients), failed[CategoryPatients])
	s.install(CategoryConsultations, consultationRecords(consultations, patients), failed[CategoryConsultations])
	s.install(CategoryMedicalRecords, medicalRecords, failed[CategoryMedicalRecords])
	s.install(CategorySupplies, supplyRecords(supplies), failed[CategorySupplies])
	s.install(CategoryEquipment, equipmentRecords(equipment), failed[CategoryEquipment])
	s.logger.Info("installed static categories")

	s.background.Add(1)
	go func() {
		defer s.background.Done()
		defer s.index.markReady()
		// failures are already logged and leave an empty medicines category
		_ = s.RefreshMedicines(ctx)
	}()

	return nil
}

// Wait blocks until background work started by Build has finished.
func (s *Service) Wait() {
	s.background.Wait()
}

// RefreshMedicines refetches medicines and replaces only that category.
// A failed fetch installs an empty category and is returned for logging.
func (s *Service) RefreshMedicines(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	medicines, err := s.medicines.FetchAll(ctx)
	if err != nil {
		s.logger.Error("failed to fetch medicines", "err", err.Error())
		s.install(CategoryMedicines, []Record{}, true)
		return fmt.Errorf("failed to fetch medicines: %w", err)
	}

	s.install(CategoryMedicines, medicineRecords(medicines), false)
	s.logger.Info("refreshed medicines", "count", len(medicines))
	return nil
}

func (s *Service) install(category Category, records []Record, failed bool) {
	kept := make([]Record, 0, len(records))
	for _, record := range records {
		if record.Title == "" {
			s.logger.Warn("dropping record without a title", "category", category, "id", record.ID)
			continue
		}
		kept = append(kept, record)
	}

	s.index.Install(category, kept)
	s.mirror(category, kept)
	s.setCategoryMetadata(category, kvdb.CategoryMetadata{
		Count:       len(kept),
		RefreshedAt: s.now().UTC(),
		Failed:      failed,
	})
}

func (s *Service) mirror(category Category, records []Record) {
	if s.catalog == nil {
		return
	}

	documents := make([]searchdb.Document, 0, len(records))
	for _, record := range records {
		documents = append(documents, searchdb.Document{
			Key:         record.Key,
			ID:          record.ID,
			Source:      string(category),
			Title:       record.Title,
			Subtitle:    record.Subtitle,
			Description: record.Description,
			Category:    record.Category,
			Page:        string(record.Page),
			Icon:        string(record.Icon),
		})
	}

	if err := s.catalog.ReplaceCategory(string(category), documents); err != nil {
		s.logger.Error("failed to mirror category into the full-text catalog", "category", category, "err", err.Error())
	}
}

func (s *Service) setCategoryMetadata(category Category, metadata kvdb.CategoryMetadata) {
	if s.metadataStore == nil {
		return
	}

	data, err := json.Marshal(metadata)
	if err != nil {
		s.logger.Error("failed to marshal category metadata", "category", category, "err", err.Error())
		return
	}

	if err := s.metadataStore.Set(kvdb.IndexBucket, string(category), string(data)); err != nil {
		s.logger.Error("failed to set category metadata", "category", category, "err", err.Error())
	}
}

func (s *Service) getCategoryMetadata(category Category) (*kvdb.CategoryMetadata, error) {
	if s.metadataStore == nil {
		return nil, &kvdb.NotFoundError{Bucket: kvdb.IndexBucket, Key: string(category)}
	}

	value, err := s.metadataStore.Get(kvdb.IndexBucket, string(category))
	if err != nil {
		return nil, err
	}

	var metadata kvdb.CategoryMetadata
	if err := json.Unmarshal([]byte(value), &metadata); err != nil {
		s.logger.Error("failed to unmarshal category metadata", "category", category, "err", err.Error())
		return nil, fmt.Errorf("failed to unmarshal metadata for %s: %w", category, err)
	}

	return &metadata, nil
}

type Status struct {
	Ready            bool                               `json:"ready"`
	Categories       map[Category]kvdb.CategoryMetadata `json:"categories"`
	CatalogDocuments uint64                             `json:"catalog_documents"`
}

// Status reports the ready flag and what was last installed per category.
func (s *Service) Status() Status {
	status := Status{
		Ready:      !s.index.Warming(),
		Categories: make(map[Category]kvdb.CategoryMetadata, len(Categories)),
	}

	for _, category := range Categories {
		metadata, err := s.getCategoryMetadata(category)
		if err != nil {
			if !errors.Is(err, kvdb.ErrNotFound) {
				s.logger.Warn("could not read category metadata", "category", category, "err", err.Error())
			}
			status.Categories[category] = kvdb.CategoryMetadata{Count: len(s.index.Records(category))}
			continue
		}
		status.Categories[category] = *metadata
	}

	if s.catalog != nil {
		count, err := s.catalog.GetDocCount()
		if err != nil {
			s.logger.Warn("could not count catalog documents", "err", err.Error())
		} else {
			status.CatalogDocuments = count
		}
	}

	return status
}
