package clinicdb

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/meghashyamc/clinicsearch/config"
	"github.com/meghashyamc/clinicsearch/logger"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"
)

const (
	driverSQLite   = "sqlite"
	driverPostgres = "postgres"
)

type GormDB struct {
	db     *gorm.DB
	logger logger.Logger
}

func New(logger logger.Logger, cfg *config.Config) (*GormDB, error) {
	dialector, err := newDialector(cfg.GetDBDriver(), cfg.GetDBDSN())
	if err != nil {
		logger.Error("could not configure clinic database", "driver", cfg.GetDBDriver(), "err", err.Error())
		return nil, err
	}

	gormLog := gormLogger.New(
		log.New(os.Stderr, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLog,
	})
	if err != nil {
		logger.Error("could not open clinic database", "driver", cfg.GetDBDriver(), "err", err.Error())
		return nil, fmt.Errorf("could not open clinic database: %w", err)
	}

	if err := db.AutoMigrate(&Patient{}, &Consultation{}, &Supply{}, &Equipment{}); err != nil {
		logger.Error("could not migrate clinic database", "err", err.Error())
		return nil, fmt.Errorf("could not migrate clinic database: %w", err)
	}

	return &GormDB{db: db, logger: logger}, nil
}

func newDialector(driver string, dsn string) (gorm.Dialector, error) {
	if dsn == "" {
		return nil, fmt.Errorf("missing dsn for %s clinic database", driver)
	}

	switch driver {
	case driverSQLite:
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return nil, fmt.Errorf("could not create clinic database directory: %w", err)
		}
		return sqlite.Open(dsn), nil
	case driverPostgres:
		return postgres.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported clinic database driver %q", driver)
	}
}

func (g *GormDB) Patients(ctx context.Context) ([]Patient, error) {
	var patients []Patient
	if err := g.db.WithContext(ctx).Order("id").Find(&patients).Error; err != nil {
		g.logger.Error("could not list patients", "err", err.Error())
		return nil, fmt.Errorf("could not list patients: %w", err)
	}
	return patients, nil
}

func (g *GormDB) Consultations(ctx context.Context) ([]Consultation, error) {
	var consultations []Consultation
	if err := g.db.WithContext(ctx).Order("id").Find(&consultations).Error; err != nil {
		g.logger.Error("could not list consultations", "err", err.Error())
		return nil, fmt.Errorf("could not list consultations: %w", err)
	}
	return consultations, nil
}

func (g *GormDB) Supplies(ctx context.Context) (*Supplies, error) {
	supplies := &Supplies{}
	if err := g.departmentQuery(ctx, DepartmentMedical).Find(&supplies.Medical).Error; err != nil {
		g.logger.Error("could not list medical supplies", "err", err.Error())
		return nil, fmt.Errorf("could not list medical supplies: %w", err)
	}
	if err := g.departmentQuery(ctx, DepartmentDental).Find(&supplies.Dental).Error; err != nil {
		g.logger.Error("could not list dental supplies", "err", err.Error())
		return nil, fmt.Errorf("could not list dental supplies: %w", err)
	}
	return supplies, nil
}

func (g *GormDB) Equipment(ctx context.Context) (*EquipmentItems, error) {
	equipment := &EquipmentItems{}
	if err := g.departmentQuery(ctx, DepartmentMedical).Find(&equipment.Medical).Error; err != nil {
		g.logger.Error("could not list medical equipment", "err", err.Error())
		return nil, fmt.Errorf("could not list medical equipment: %w", err)
	}
	if err := g.departmentQuery(ctx, DepartmentDental).Find(&equipment.Dental).Error; err != nil {
		g.logger.Error("could not list dental equipment", "err", err.Error())
		return nil, fmt.Errorf("could not list dental equipment: %w", err)
	}
	return equipment, nil
}

func (g *GormDB) departmentQuery(ctx context.Context, department Department) *gorm.DB {
	return g.db.WithContext(ctx).Where("department = ?", department).Order("id")
}

// Seed upserts the fixtures in one transaction. Supplies and equipment take
// their department from the sub-collection they are listed under.
func (g *GormDB) Seed(ctx context.Context, fixtures *Fixtures) error {
	if fixtures == nil {
		return nil
	}

	supplies := make([]Supply, 0, len(fixtures.Supplies.Medical)+len(fixtures.Supplies.Dental))
	for _, supply := range fixtures.Supplies.Medical {
		supply.Department = DepartmentMedical
		supplies = append(supplies, supply)
	}
	for _, supply := range fixtures.Supplies.Dental {
		supply.Department = DepartmentDental
		supplies = append(supplies, supply)
	}

	equipment := make([]Equipment, 0, len(fixtures.Equipment.Medical)+len(fixtures.Equipment.Dental))
	for _, item := range fixtures.Equipment.Medical {
		item.Department = DepartmentMedical
		equipment = append(equipment, item)
	}
	for _, item := range fixtures.Equipment.Dental {
		item.Department = DepartmentDental
		equipment = append(equipment, item)
	}

	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		upsert := func() *gorm.DB { return tx.Clauses(clause.OnConflict{UpdateAll: true}) }
		if len(fixtures.Patients) > 0 {
			if err := upsert().Create(&fixtures.Patients).Error; err != nil {
				return fmt.Errorf("could not seed patients: %w", err)
			}
		}
		if len(fixtures.Consultations) > 0 {
			if err := upsert().Create(&fixtures.Consultations).Error; err != nil {
				return fmt.Errorf("could not seed consultations: %w", err)
			}
		}
		if len(supplies) > 0 {
			if err := upsert().Create(&supplies).Error; err != nil {
				return fmt.Errorf("could not seed supplies: %w", err)
			}
		}
		if len(equipment) > 0 {
			if err := upsert().Create(&equipment).Error; err != nil {
				return fmt.Errorf("could not seed equipment: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		g.logger.Error("could not seed clinic database", "err", err.Error())
		return err
	}

	g.logger.Info("seeded clinic database",
		"patients", len(fixtures.Patients),
		"consultations", len(fixtures.Consultations),
		"supplies", len(supplies),
		"equipment", len(equipment))
	return nil
}

func (g *GormDB) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.Close(); err != nil {
		g.logger.Error("could not close clinic database", "err", err.Error())
		return err
	}
	return nil
}
