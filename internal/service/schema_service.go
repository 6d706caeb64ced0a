package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dev7ch/api/internal/common"
	"github.com/dev7ch/api/internal/domain"
	"github.com/dev7ch/api/internal/repository"
	"github.com/dev7ch/api/internal/schema"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// FieldInput declares one field of a new or existing collection
type FieldInput struct {
	Field        string          `json:"field" binding:"required"`
	Type         string          `json:"type" binding:"required"`
	Interface    string          `json:"interface"`
	Options      json.RawMessage `json:"options"`
	Required     bool            `json:"required"`
	Readonly     bool            `json:"readonly"`
	HiddenDetail bool            `json:"hidden_detail"`
	HiddenBrowse bool            `json:"hidden_browse"`
	Sort         *int            `json:"sort"`
	Note         string          `json:"note"`

	// for m2o fields: the collection the foreign key points into
	RelatedCollection string `json:"related_collection"`
}

// CollectionInput declares a new collection and its fields
type CollectionInput struct {
	Collection string       `json:"collection" binding:"required"`
	Hidden     bool         `json:"hidden"`
	Single     bool         `json:"single"`
	Icon       string       `json:"icon"`
	Note       string       `json:"note"`
	Fields     []FieldInput `json:"fields" binding:"required,min=1"`
}

// SchemaService manages collection and field metadata together with the
// physical tables behind them. Mutations are activity-logged like any
// other write; callers must reload the registry afterwards to see them.
type SchemaService interface {
	ListCollections(ctx context.Context) ([]domain.Collection, error)
	GetCollection(ctx context.Context, name string) (*domain.Collection, error)
	CreateCollection(ctx context.Context, in CollectionInput, opts MutationOptions) (*domain.Collection, error)
	DeleteCollection(ctx context.Context, name string, opts MutationOptions) error

	ListFields(ctx context.Context, collection string) ([]domain.Field, error)
	AddField(ctx context.Context, collection string, in FieldInput, opts MutationOptions) (*domain.Field, error)
	UpdateField(ctx context.Context, collection, field string, values map[string]interface{}, opts MutationOptions) error
	DeleteField(ctx context.Context, collection, field string, opts MutationOptions) error
}

type schemaService struct {
	db       *gorm.DB
	registry *schema.Registry
	repo     repository.SchemaRepository
	items    repository.ItemRepository
	tracker  ActivityService
}

// NewSchemaService creates a new SchemaService
func NewSchemaService(db *gorm.DB, registry *schema.Registry, repo repository.SchemaRepository, items repository.ItemRepository, tracker ActivityService) SchemaService {
	return &schemaService{db: db, registry: registry, repo: repo, items: items, tracker: tracker}
}

func (s *schemaService) ListCollections(ctx context.Context) ([]domain.Collection, error) {
	return s.repo.ListCollections(ctx)
}

func (s *schemaService) GetCollection(ctx context.Context, name string) (*domain.Collection, error) {
	collection, err := s.registry.Collection(name)
	if err != nil {
		return nil, err
	}
	c := *collection
	c.Fields = make([]domain.Field, 0)
	for _, f := range s.registry.Fields(name) {
		c.Fields = append(c.Fields, *f)
	}
	return &c, nil
}

func (s *schemaService) ListFields(ctx context.Context, collection string) ([]domain.Field, error) {
	if !s.registry.IsManaged(collection) {
		return nil, fmt.Errorf("%w: %s", common.ErrNotManaged, collection)
	}
	fields := s.registry.Fields(collection)
	out := make([]domain.Field, 0, len(fields))
	for _, f := range fields {
		out = append(out, *f)
	}
	return out, nil
}

// CreateCollection writes the metadata rows and creates the physical
// table in one transaction. The new collection is invisible to readers
// until the registry is reloaded.
func (s *schemaService) CreateCollection(ctx context.Context, in CollectionInput, opts MutationOptions) (*domain.Collection, error) {
	if opts.Can != nil && !opts.Can("dev7_collections", domain.ActionCreate) {
		return nil, common.ErrForbidden
	}
	if err := validCollectionName(in.Collection); err != nil {
		return nil, err
	}
	if s.registry.IsManaged(in.Collection) {
		verr := &common.ValidationError{Collection: in.Collection}
		verr.Add("collection", common.CodeConflict, "collection already exists")
		return nil, verr
	}
	if err := validateFieldInputs(in.Collection, in.Fields); err != nil {
		return nil, err
	}

	collection := &domain.Collection{
		Collection: in.Collection,
		Managed:    true,
		Hidden:     domain.Bool(in.Hidden),
		Single:     domain.Bool(in.Single),
		Icon:       in.Icon,
		Note:       in.Note,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.CreateCollection(tx, collection); err != nil {
			return err
		}
		for i := range in.Fields {
			field := fieldFromInput(in.Collection, in.Fields[i])
			if err := s.repo.CreateField(tx, field); err != nil {
				return err
			}
			if err := s.maybeCreateRelation(tx, in.Collection, in.Fields[i]); err != nil {
				return err
			}
		}
		if err := tx.Exec(buildCreateTable(tx.Dialector.Name(), in.Collection, in.Fields)).Error; err != nil {
			return err
		}
		_, err := s.tracker.Record(tx, RecordInput{
			Action:     domain.ActionCreate,
			Actor:      opts.Actor,
			IP:         opts.IP,
			UserAgent:  opts.UserAgent,
			Collection: "dev7_collections",
			Item:       in.Collection,
			Before:     domain.Record{},
			After:      domain.Record{"collection": in.Collection},
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("collection", in.Collection).Int("fields", len(in.Fields)).
		Msg("Collection created, registry reload required")
	return collection, nil
}

// DeleteCollection refuses to drop a collection that still holds items
func (s *schemaService) DeleteCollection(ctx context.Context, name string, opts MutationOptions) error {
	if opts.Can != nil && !opts.Can("dev7_collections", domain.ActionDelete) {
		return common.ErrForbidden
	}
	if !s.registry.IsManaged(name) {
		return fmt.Errorf("%w: %s", common.ErrNotManaged, name)
	}
	count, err := s.items.Count(ctx, name)
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: %s has %d items", common.ErrCollectionNotEmpty, name, count)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.DeleteCollection(tx, name); err != nil {
			return err
		}
		if err := s.repo.DeleteRelationsFor(tx, name); err != nil {
			return err
		}
		if err := tx.Exec(fmt.Sprintf("DROP TABLE IF EXISTS `%s`", name)).Error; err != nil {
			return err
		}
		_, err := s.tracker.Record(tx, RecordInput{
			Action:     domain.ActionDelete,
			Actor:      opts.Actor,
			IP:         opts.IP,
			UserAgent:  opts.UserAgent,
			Collection: "dev7_collections",
			Item:       name,
			Before:     domain.Record{"collection": name},
			After:      domain.Record{},
		})
		return err
	})
	if err != nil {
		return err
	}

	log.Info().Str("collection", name).Msg("Collection deleted, registry reload required")
	return nil
}

// AddField appends a field row and, for column-backed types, the column
func (s *schemaService) AddField(ctx context.Context, collection string, in FieldInput, opts MutationOptions) (*domain.Field, error) {
	if opts.Can != nil && !opts.Can("dev7_fields", domain.ActionCreate) {
		return nil, common.ErrForbidden
	}
	if !s.registry.IsManaged(collection) {
		return nil, fmt.Errorf("%w: %s", common.ErrNotManaged, collection)
	}
	if _, err := s.registry.Field(collection, in.Field); err == nil {
		verr := &common.ValidationError{Collection: collection}
		verr.Add(in.Field, common.CodeConflict, "field already exists")
		return nil, verr
	}
	if err := validateFieldInputs(collection, []FieldInput{in}); err != nil {
		return nil, err
	}

	field := fieldFromInput(collection, in)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.CreateField(tx, field); err != nil {
			return err
		}
		if err := s.maybeCreateRelation(tx, collection, in); err != nil {
			return err
		}
		if column := columnDDL(tx.Dialector.Name(), in); column != "" {
			ddl := fmt.Sprintf("ALTER TABLE `%s` ADD COLUMN %s", collection, column)
			if err := tx.Exec(ddl).Error; err != nil {
				return err
			}
		}
		_, err := s.tracker.Record(tx, RecordInput{
			Action:     domain.ActionCreate,
			Actor:      opts.Actor,
			IP:         opts.IP,
			UserAgent:  opts.UserAgent,
			Collection: "dev7_fields",
			Item:       collection + "." + in.Field,
			Before:     domain.Record{},
			After:      domain.Record{"collection": collection, "field": in.Field, "type": in.Type},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return field, nil
}

// UpdateField changes field metadata only; the column type stays as is
func (s *schemaService) UpdateField(ctx context.Context, collection, field string, values map[string]interface{}, opts MutationOptions) error {
	if opts.Can != nil && !opts.Can("dev7_fields", domain.ActionUpdate) {
		return common.ErrForbidden
	}
	if _, err := s.registry.Field(collection, field); err != nil {
		return err
	}

	allowed := map[string]bool{
		"interface": true, "options": true, "required": true, "readonly": true,
		"hidden_detail": true, "hidden_browse": true, "sort": true, "note": true,
	}
	updates := map[string]interface{}{}
	verr := &common.ValidationError{Collection: collection}
	for k, v := range values {
		if !allowed[k] {
			verr.Add(k, common.CodeValidationFailed, "attribute cannot be changed")
			continue
		}
		updates[k] = v
	}
	if verr.HasViolations() {
		return verr
	}
	if len(updates) == 0 {
		return nil
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.UpdateField(tx, collection, field, updates); err != nil {
			return err
		}
		_, err := s.tracker.Record(tx, RecordInput{
			Action:     domain.ActionUpdate,
			Actor:      opts.Actor,
			IP:         opts.IP,
			UserAgent:  opts.UserAgent,
			Collection: "dev7_fields",
			Item:       collection + "." + field,
			Before:     domain.Record{},
			After:      domain.Record{"collection": collection, "field": field},
		})
		return err
	})
}

// DeleteField removes the field row and its column. Alias fields have
// no column, so only the metadata goes.
func (s *schemaService) DeleteField(ctx context.Context, collection, field string, opts MutationOptions) error {
	if opts.Can != nil && !opts.Can("dev7_fields", domain.ActionDelete) {
		return common.ErrForbidden
	}
	meta, err := s.registry.Field(collection, field)
	if err != nil {
		return err
	}
	if meta.Interface == "primary-key" {
		verr := &common.ValidationError{Collection: collection}
		verr.Add(field, common.CodeValidationFailed, "primary key field cannot be deleted")
		return verr
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.DeleteField(tx, collection, field); err != nil {
			return err
		}
		if !meta.IsAlias() {
			ddl := fmt.Sprintf("ALTER TABLE `%s` DROP COLUMN `%s`", collection, field)
			if err := tx.Exec(ddl).Error; err != nil {
				return err
			}
		}
		_, err := s.tracker.Record(tx, RecordInput{
			Action:     domain.ActionDelete,
			Actor:      opts.Actor,
			IP:         opts.IP,
			UserAgent:  opts.UserAgent,
			Collection: "dev7_fields",
			Item:       collection + "." + field,
			Before:     domain.Record{"collection": collection, "field": field},
			After:      domain.Record{},
		})
		return err
	})
}

// maybeCreateRelation records the m2o relation row for foreign key
// fields declared with a related collection
func (s *schemaService) maybeCreateRelation(tx *gorm.DB, collection string, in FieldInput) error {
	if in.RelatedCollection == "" {
		return nil
	}
	if in.Type != domain.TypeManyToOne && in.Type != domain.TypeFile {
		return nil
	}
	return s.repo.CreateRelation(tx, &domain.Relation{
		CollectionMany: collection,
		FieldMany:      in.Field,
		CollectionOne:  in.RelatedCollection,
	})
}

func fieldFromInput(collection string, in FieldInput) *domain.Field {
	return &domain.Field{
		Collection:   collection,
		Field:        in.Field,
		Type:         in.Type,
		Interface:    in.Interface,
		Options:      in.Options,
		Required:     domain.Bool(in.Required),
		Readonly:     domain.Bool(in.Readonly),
		HiddenDetail: domain.Bool(in.HiddenDetail),
		HiddenBrowse: domain.Bool(in.HiddenBrowse),
		Sort:         in.Sort,
		Note:         in.Note,
	}
}

var knownFieldTypes = map[string]bool{
	domain.TypeInteger: true, domain.TypeString: true, domain.TypeBoolean: true,
	domain.TypeDatetime: true, domain.TypeJSON: true, domain.TypeHash: true,
	domain.TypeFile: true, domain.TypeArray: true, domain.TypeAlias: true,
	domain.TypeManyToOne: true, domain.TypeOneToMany: true, domain.TypeManyToMany: true,
	domain.TypeStatus: true, domain.TypeSort: true,
}

func validateFieldInputs(collection string, fields []FieldInput) error {
	verr := &common.ValidationError{Collection: collection}
	seen := map[string]bool{}
	for _, f := range fields {
		if err := validIdentifier(f.Field); err != nil {
			verr.Add(f.Field, common.CodeValidationFailed, err.Error())
			continue
		}
		if seen[f.Field] {
			verr.Add(f.Field, common.CodeConflict, "duplicate field name")
			continue
		}
		seen[f.Field] = true
		if !knownFieldTypes[f.Type] {
			verr.Add(f.Field, common.CodeValidationFailed, fmt.Sprintf("unknown type %q", f.Type))
		}
	}
	if verr.HasViolations() {
		return verr
	}
	return nil
}

func validCollectionName(name string) error {
	if strings.HasPrefix(name, "dev7_") {
		verr := &common.ValidationError{Collection: name}
		verr.Add("collection", common.CodeValidationFailed, "the dev7_ prefix is reserved for system tables")
		return verr
	}
	if err := validIdentifier(name); err != nil {
		verr := &common.ValidationError{Collection: name}
		verr.Add("collection", common.CodeValidationFailed, err.Error())
		return verr
	}
	return nil
}

// validIdentifier keeps user-supplied names safe for interpolation into
// DDL statements, which cannot take placeholders
func validIdentifier(name string) error {
	if name == "" {
		return fmt.Errorf("name must not be empty")
	}
	if len(name) > 64 {
		return fmt.Errorf("name exceeds 64 characters")
	}
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r == '_':
		case r >= '0' && r <= '9':
			if i == 0 {
				return fmt.Errorf("name must not start with a digit")
			}
		default:
			return fmt.Errorf("name may only contain lowercase letters, digits and underscores")
		}
	}
	return nil
}

// buildCreateTable emits the CREATE TABLE for a new collection. Every
// collection gets an auto-increment id primary key; alias-typed fields
// contribute no column.
func buildCreateTable(dialect, collection string, fields []FieldInput) string {
	cols := []string{}
	if dialect == "sqlite" {
		cols = append(cols, "`id` INTEGER PRIMARY KEY AUTOINCREMENT")
	} else {
		cols = append(cols, "`id` INT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY")
	}
	for _, f := range fields {
		if f.Field == "id" {
			continue
		}
		if column := columnDDL(dialect, f); column != "" {
			cols = append(cols, column)
		}
	}
	return fmt.Sprintf("CREATE TABLE `%s` (%s)", collection, strings.Join(cols, ", "))
}

// columnDDL maps a field type onto a column definition, or "" for
// alias-typed fields that live only in metadata
func columnDDL(dialect string, f FieldInput) string {
	var sqlType string
	switch f.Type {
	case domain.TypeInteger, domain.TypeManyToOne, domain.TypeFile, domain.TypeSort:
		sqlType = "INT"
		if dialect == "sqlite" {
			sqlType = "INTEGER"
		}
	case domain.TypeString, domain.TypeStatus:
		sqlType = "VARCHAR(255)"
	case domain.TypeHash:
		sqlType = "VARCHAR(255)"
	case domain.TypeBoolean:
		sqlType = "TINYINT(1)"
		if dialect == "sqlite" {
			sqlType = "BOOLEAN"
		}
	case domain.TypeDatetime:
		sqlType = "DATETIME"
	case domain.TypeJSON, domain.TypeArray:
		sqlType = "TEXT"
	case domain.TypeAlias, domain.TypeOneToMany, domain.TypeManyToMany:
		return ""
	default:
		sqlType = "VARCHAR(255)"
	}
	return fmt.Sprintf("`%s` %s", f.Field, sqlType)
}
