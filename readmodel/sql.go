package readmodel

import (
	"context"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"

	"github.com/austere-albatross/eventstore/organization"
)

// NewSQL constructs a gorm backed name read model and migrates its table.
// The unique index on name rejects a second registration of the same
// name even when both passed the uniqueness check.
func NewSQL(db *gorm.DB) (*SQL, error) {
	if err := db.AutoMigrate(&organizationName{}); err != nil {
		return nil, err
	}

	return &SQL{db: db}, nil
}

// SQL stores organization names in a table
type SQL struct {
	db *gorm.DB
}

var _ organization.NameReadModel = (*SQL)(nil)

type organizationName struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"uniqueIndex"`
}

// TableName returns gorm table name
func (organizationName) TableName() string { return "organization_name" }

// NameExists reports whether the name is stored
func (s *SQL) NameExists(ctx context.Context, name string) (bool, error) {
	var count int64

	err := s.db.
		WithContext(ctx).
		Model(&organizationName{}).
		Where("name = ?", name).
		Count(&count).Error

	return count > 0, err
}

// AddName stores the name, failing with organization.ErrDuplicateName if it is already stored
func (s *SQL) AddName(ctx context.Context, name string) error {
	err := s.db.WithContext(ctx).Create(&organizationName{Name: name}).Error

	var sqliteErr sqlite3.Error

	if errors.Is(err, gorm.ErrDuplicatedKey) ||
		(errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint) {
		return fmt.Errorf("%w: %q", organization.ErrDuplicateName, name)
	}

	return err
}
