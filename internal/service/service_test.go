package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/dev7ch/api/internal/domain"
	"github.com/dev7ch/api/internal/repository"
	"github.com/dev7ch/api/internal/schema"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// testEnv wires the full service stack over an in-memory database with
// a small product catalog schema: products belong to a category (m2o),
// categories list their products (o2m), products carry labels through a
// junction (m2m), and articles soft-delete via their status field.
type testEnv struct {
	db        *gorm.DB
	registry  *schema.Registry
	items     ItemService
	relations RelationService
	activity  ActivityService
	schemaSvc SchemaService

	itemRepo     repository.ItemRepository
	activityRepo repository.ActivityRepository
	schemaRepo   repository.SchemaRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.AutoMigrate(
		&domain.Collection{}, &domain.Field{}, &domain.Relation{},
		&domain.Activity{}, &domain.Revision{},
	); err != nil {
		t.Fatalf("failed to migrate system tables: %v", err)
	}

	seedCatalog(t, db)

	schemaRepo := repository.NewSchemaRepository(db)
	itemRepo := repository.NewItemRepository(db)
	activityRepo := repository.NewActivityRepository(db)

	registry := schema.NewRegistry(schemaRepo)
	if err := registry.Reload(context.Background()); err != nil {
		t.Fatalf("failed to load registry: %v", err)
	}

	relations := NewRelationService(registry, itemRepo, 2)
	activity := NewActivityService(db, activityRepo, nil)
	items := NewItemService(db, registry, relations, activity, itemRepo, nil, nil)
	schemaSvc := NewSchemaService(db, registry, schemaRepo, itemRepo, activity)

	return &testEnv{
		db:           db,
		registry:     registry,
		items:        items,
		relations:    relations,
		activity:     activity,
		schemaSvc:    schemaSvc,
		itemRepo:     itemRepo,
		activityRepo: activityRepo,
		schemaRepo:   schemaRepo,
	}
}

func seedCatalog(t *testing.T, db *gorm.DB) {
	t.Helper()

	for _, ddl := range []string{
		"CREATE TABLE products (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT, price INTEGER, active BOOLEAN, secret TEXT, category INTEGER)",
		"CREATE TABLE categories (id INTEGER PRIMARY KEY AUTOINCREMENT, title TEXT)",
		"CREATE TABLE labels (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT)",
		"CREATE TABLE product_labels (id INTEGER PRIMARY KEY AUTOINCREMENT, product INTEGER, label INTEGER)",
		"CREATE TABLE articles (id INTEGER PRIMARY KEY AUTOINCREMENT, title TEXT, status TEXT)",
	} {
		if err := db.Exec(ddl).Error; err != nil {
			t.Fatalf("failed to create table: %v", err)
		}
	}

	collections := []domain.Collection{
		{Collection: "products", Managed: true},
		{Collection: "categories", Managed: true},
		{Collection: "labels", Managed: true},
		{Collection: "product_labels", Managed: true, Hidden: true},
		{Collection: "articles", Managed: true},
	}
	if err := db.Create(&collections).Error; err != nil {
		t.Fatalf("failed to seed collections: %v", err)
	}

	statusOptions := json.RawMessage(`{"status_mapping":{"published":{"name":"Published"},"deleted":{"name":"Deleted","soft_delete":true}}}`)
	fields := []domain.Field{
		field("products", "id", domain.TypeInteger, "primary-key", 1),
		required(field("products", "name", domain.TypeString, "text-input", 2)),
		field("products", "price", domain.TypeInteger, "numeric", 3),
		field("products", "active", domain.TypeBoolean, "toggle", 4),
		readonly(field("products", "secret", domain.TypeString, "text-input", 5)),
		field("products", "category", domain.TypeManyToOne, "many-to-one", 6),
		field("products", "labels", domain.TypeManyToMany, "many-to-many", 7),

		field("categories", "id", domain.TypeInteger, "primary-key", 1),
		field("categories", "title", domain.TypeString, "text-input", 2),
		field("categories", "products", domain.TypeOneToMany, "one-to-many", 3),

		field("labels", "id", domain.TypeInteger, "primary-key", 1),
		field("labels", "name", domain.TypeString, "text-input", 2),

		field("product_labels", "id", domain.TypeInteger, "primary-key", 1),
		field("product_labels", "product", domain.TypeManyToOne, "many-to-one", 2),
		field("product_labels", "label", domain.TypeManyToOne, "many-to-one", 3),

		field("articles", "id", domain.TypeInteger, "primary-key", 1),
		field("articles", "title", domain.TypeString, "text-input", 2),
	}
	status := field("articles", "status", domain.TypeStatus, "status", 3)
	status.Options = statusOptions
	fields = append(fields, status)

	if err := db.Create(&fields).Error; err != nil {
		t.Fatalf("failed to seed fields: %v", err)
	}

	relations := []domain.Relation{
		{CollectionMany: "products", FieldMany: "category", CollectionOne: "categories", FieldOne: "products"},
		{CollectionMany: "product_labels", FieldMany: "product", CollectionOne: "products", FieldOne: "labels", JunctionField: "label"},
		{CollectionMany: "product_labels", FieldMany: "label", CollectionOne: "labels"},
	}
	if err := db.Create(&relations).Error; err != nil {
		t.Fatalf("failed to seed relations: %v", err)
	}
}

func field(collection, name, fieldType, iface string, sort int) domain.Field {
	return domain.Field{Collection: collection, Field: name, Type: fieldType, Interface: iface, Sort: &sort}
}

func required(f domain.Field) domain.Field {
	f.Required = true
	return f
}

func readonly(f domain.Field) domain.Field {
	f.Readonly = true
	return f
}

// asEditor is the default mutation context used across the tests
func asEditor() MutationOptions {
	return MutationOptions{Actor: 7, IP: "127.0.0.1", UserAgent: "go-test"}
}
