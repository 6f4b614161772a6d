package gormstore

import (
	"context"
	"fmt"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"

	v1 "github.com/exordiom/talent-training/pkg/apis/training/v1"
	hferrors "github.com/exordiom/talent-training/pkg/errors"
	"github.com/exordiom/talent-training/pkg/store"
)

type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

func (c Config) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, sslMode)
}

type GormStore struct {
	db *gorm.DB
}

var _ store.Store = &GormStore{}

func Open(cfg Config) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		// unique violations surface as gorm.ErrDuplicatedKey
		TranslateError: true,
		NamingStrategy: schema.NamingStrategy{SingularTable: false},
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "error connecting to the database")
	}
	return New(db), nil
}

func New(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Migrate creates or updates the tables and unique indexes the training core relies on.
func (s *GormStore) Migrate() error {
	err := s.db.AutoMigrate(
		&v1.Profile{},
		&v1.SectionProgress{},
		&v1.QuizAttempt{},
		&v1.QuizQuestion{},
	)
	if err != nil {
		return errors.Wrap(err, "error migrating database")
	}
	glog.V(2).Infof("database migrated")
	return nil
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStore) GetByID(ctx context.Context, id string, out v1.Record) error {
	err := s.db.WithContext(ctx).Table(out.TableName()).Where("id = ?", id).First(out).Error
	return translate(err, "%s %s", out.TableName(), id)
}

func (s *GormStore) Query(ctx context.Context, filter store.Filter, out interface{}) error {
	tx := s.db.WithContext(ctx)
	if len(filter.Equals) > 0 {
		tx = tx.Where(filter.Equals)
	}
	if filter.OrderBy != nil {
		tx = tx.Order(clause.OrderByColumn{
			Column: clause.Column{Name: filter.OrderBy.Column},
			Desc:   filter.OrderBy.Descending,
		})
	}
	if filter.Limit > 0 {
		tx = tx.Limit(filter.Limit)
	}
	return translate(tx.Find(out).Error, "query")
}

func (s *GormStore) Insert(ctx context.Context, rec v1.Record) error {
	if rec.GetId() == "" {
		rec.SetId(uuid.NewString())
	}
	err := s.db.WithContext(ctx).Create(rec).Error
	return translate(err, "%s %s", rec.TableName(), rec.GetId())
}

func (s *GormStore) Update(ctx context.Context, rec v1.Record, id string, patch map[string]interface{}) error {
	res := s.db.WithContext(ctx).Table(rec.TableName()).Where("id = ?", id).Updates(patch)
	if res.Error != nil {
		return translate(res.Error, "%s %s", rec.TableName(), id)
	}
	if res.RowsAffected == 0 {
		return hferrors.NewNotFound(fmt.Sprintf("%s %s not found", rec.TableName(), id))
	}
	return nil
}

func (s *GormStore) Upsert(ctx context.Context, rec v1.Record, on store.OnConflict) error {
	if rec.GetId() == "" {
		rec.SetId(uuid.NewString())
	}
	err := s.upsert(ctx, rec, on).Error
	return translate(err, "%s %s", rec.TableName(), rec.GetId())
}

// upsert runs INSERT ... ON CONFLICT ... RETURNING *. Returning every column scans the
// stored row, including the id of a row that already existed, back into rec.
func (s *GormStore) upsert(ctx context.Context, rec v1.Record, on store.OnConflict) *gorm.DB {
	columns := make([]clause.Column, len(on.Keys))
	for i, k := range on.Keys {
		columns[i] = clause.Column{Name: k}
	}
	set := clause.AssignmentColumns(on.Update)
	for _, col := range on.Keep {
		set = append(set, clause.Assignment{
			Column: clause.Column{Name: col},
			Value: gorm.Expr("COALESCE(?, ?)",
				clause.Column{Table: rec.TableName(), Name: col},
				clause.Column{Table: "excluded", Name: col}),
		})
	}
	conflict := clause.OnConflict{Columns: columns, DoUpdates: set}
	if len(set) == 0 {
		// nothing to change, touch the key so RETURNING still yields the row
		conflict.DoUpdates = clause.AssignmentColumns(on.Keys)
	}
	return s.db.WithContext(ctx).Clauses(conflict, clause.Returning{}).Create(rec)
}

func translate(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	what := fmt.Sprintf(format, args...)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return hferrors.NewNotFound(what + " not found")
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return hferrors.NewAlreadyExists(what + " already exists")
	}
	glog.Errorf("record store error on %s: %v", what, err)
	return errors.Wrap(hferrors.NewStorage(err.Error()), what)
}
