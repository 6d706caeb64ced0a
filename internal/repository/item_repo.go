package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dev7ch/api/internal/common"
	"github.com/dev7ch/api/internal/domain"
	"gorm.io/gorm"
)

// ListQuery narrows a FindAll call. Filter is equality-only; anything
// richer belongs to the search mirror, not the row store.
type ListQuery struct {
	Fields []string
	Filter map[string]interface{}
	Limit  int
	Offset int
}

// ItemRepository reads and writes rows of arbitrary collections. Rows
// are plain maps; the schema registry, not this layer, knows what the
// columns mean.
type ItemRepository interface {
	Insert(tx *gorm.DB, collection string, values map[string]interface{}) (int64, error)
	UpdateByID(tx *gorm.DB, collection, pk string, id interface{}, values map[string]interface{}) error
	DeleteByID(tx *gorm.DB, collection, pk string, id interface{}) error
	FindByID(ctx context.Context, collection, pk string, id interface{}) (domain.Record, error)
	FindByIDTx(tx *gorm.DB, collection, pk string, id interface{}) (domain.Record, error)
	FindAll(ctx context.Context, collection string, q ListQuery) ([]domain.Record, error)
	FindWhereIn(ctx context.Context, collection, column string, values []interface{}) ([]domain.Record, error)
	Count(ctx context.Context, collection string) (int64, error)
}

type itemRepository struct {
	db *gorm.DB
}

// NewItemRepository creates a new ItemRepository
func NewItemRepository(db *gorm.DB) ItemRepository {
	return &itemRepository{db: db}
}

// Insert creates a row and returns the generated primary key
func (r *itemRepository) Insert(tx *gorm.DB, collection string, values map[string]interface{}) (int64, error) {
	if err := tx.Table(collection).Create(values).Error; err != nil {
		return 0, err
	}
	return lastInsertID(tx)
}

// lastInsertID fetches the auto-generated id for a map-based insert.
// GORM only backfills primary keys on struct creates.
func lastInsertID(tx *gorm.DB) (int64, error) {
	var id int64
	var query string
	switch tx.Dialector.Name() {
	case "sqlite":
		query = "SELECT last_insert_rowid()"
	default:
		query = "SELECT LAST_INSERT_ID()"
	}
	err := tx.Raw(query).Scan(&id).Error
	return id, err
}

func (r *itemRepository) UpdateByID(tx *gorm.DB, collection, pk string, id interface{}, values map[string]interface{}) error {
	res := tx.Table(collection).Where(fmt.Sprintf("%s = ?", quoteIdent(pk)), id).Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *itemRepository) DeleteByID(tx *gorm.DB, collection, pk string, id interface{}) error {
	res := tx.Exec(fmt.Sprintf("DELETE FROM %s WHERE %s = ?", quoteIdent(collection), quoteIdent(pk)), id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *itemRepository) FindByID(ctx context.Context, collection, pk string, id interface{}) (domain.Record, error) {
	return r.FindByIDTx(r.db.WithContext(ctx), collection, pk, id)
}

func (r *itemRepository) FindByIDTx(tx *gorm.DB, collection, pk string, id interface{}) (domain.Record, error) {
	row := map[string]interface{}{}
	err := tx.Table(collection).Where(fmt.Sprintf("%s = ?", quoteIdent(pk)), id).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, err
	}
	return domain.Record(row), nil
}

func (r *itemRepository) FindAll(ctx context.Context, collection string, q ListQuery) ([]domain.Record, error) {
	query := r.db.WithContext(ctx).Table(collection)
	if len(q.Fields) > 0 {
		query = query.Select(quoteIdents(q.Fields))
	}
	for column, value := range q.Filter {
		query = query.Where(fmt.Sprintf("%s = ?", quoteIdent(column)), value)
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}
	if q.Offset > 0 {
		query = query.Offset(q.Offset)
	}

	var rows []map[string]interface{}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	records := make([]domain.Record, len(rows))
	for i, row := range rows {
		records[i] = domain.Record(row)
	}
	return records, nil
}

func (r *itemRepository) FindWhereIn(ctx context.Context, collection, column string, values []interface{}) ([]domain.Record, error) {
	if len(values) == 0 {
		return nil, nil
	}
	var rows []map[string]interface{}
	err := r.db.WithContext(ctx).Table(collection).
		Where(fmt.Sprintf("%s IN ?", quoteIdent(column)), values).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	records := make([]domain.Record, len(rows))
	for i, row := range rows {
		records[i] = domain.Record(row)
	}
	return records, nil
}

func (r *itemRepository) Count(ctx context.Context, collection string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Table(collection).Count(&count).Error
	return count, err
}

// quoteIdent guards column names interpolated into SQL. Identifiers come
// from the registry or are validated against it before reaching here, but
// stripping backticks keeps raw user input from ever breaking out.
func quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "") + "`"
}

func quoteIdents(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = quoteIdent(n)
	}
	return out
}
