package repository

import (
	"context"

	"github.com/dev7ch/api/internal/domain"
	"gorm.io/gorm"
)

// SchemaRepository persisted collection/field/relation metadata access
type SchemaRepository interface {
	ListCollections(ctx context.Context) ([]domain.Collection, error)
	ListFields(ctx context.Context) ([]domain.Field, error)
	ListRelations(ctx context.Context) ([]domain.Relation, error)

	CreateCollection(tx *gorm.DB, c *domain.Collection) error
	DeleteCollection(tx *gorm.DB, name string) error
	CreateField(tx *gorm.DB, f *domain.Field) error
	UpdateField(tx *gorm.DB, collection, field string, values map[string]interface{}) error
	DeleteField(tx *gorm.DB, collection, field string) error
	CreateRelation(tx *gorm.DB, r *domain.Relation) error
	DeleteRelationsFor(tx *gorm.DB, collection string) error
}

type schemaRepository struct {
	db *gorm.DB
}

// NewSchemaRepository creates a new SchemaRepository
func NewSchemaRepository(db *gorm.DB) SchemaRepository {
	return &schemaRepository{db: db}
}

func (r *schemaRepository) ListCollections(ctx context.Context) ([]domain.Collection, error) {
	var collections []domain.Collection
	err := r.db.WithContext(ctx).Order("collection ASC").Find(&collections).Error
	return collections, err
}

// ListFields returns all field rows ordered by id so that later
// declarations of the same (collection, field) pair win during load.
func (r *schemaRepository) ListFields(ctx context.Context) ([]domain.Field, error) {
	var fields []domain.Field
	err := r.db.WithContext(ctx).Order("id ASC").Find(&fields).Error
	return fields, err
}

func (r *schemaRepository) ListRelations(ctx context.Context) ([]domain.Relation, error) {
	var relations []domain.Relation
	err := r.db.WithContext(ctx).Order("id ASC").Find(&relations).Error
	return relations, err
}

func (r *schemaRepository) CreateCollection(tx *gorm.DB, c *domain.Collection) error {
	return tx.Create(c).Error
}

func (r *schemaRepository) DeleteCollection(tx *gorm.DB, name string) error {
	if err := tx.Where("collection = ?", name).Delete(&domain.Field{}).Error; err != nil {
		return err
	}
	return tx.Where("collection = ?", name).Delete(&domain.Collection{}).Error
}

func (r *schemaRepository) CreateField(tx *gorm.DB, f *domain.Field) error {
	return tx.Create(f).Error
}

func (r *schemaRepository) UpdateField(tx *gorm.DB, collection, field string, values map[string]interface{}) error {
	return tx.Model(&domain.Field{}).
		Where("collection = ? AND field = ?", collection, field).
		Updates(values).Error
}

func (r *schemaRepository) DeleteField(tx *gorm.DB, collection, field string) error {
	return tx.Where("collection = ? AND field = ?", collection, field).Delete(&domain.Field{}).Error
}

func (r *schemaRepository) CreateRelation(tx *gorm.DB, rel *domain.Relation) error {
	return tx.Create(rel).Error
}

// DeleteRelationsFor removes relation rows referencing the collection on
// either side. Weak back-references only; related collections are never
// cascaded.
func (r *schemaRepository) DeleteRelationsFor(tx *gorm.DB, collection string) error {
	return tx.Where("collection_many = ? OR collection_one = ?", collection, collection).
		Delete(&domain.Relation{}).Error
}
