package migration

import (
	"github.com/dev7ch/api/internal/domain"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Run creates the system tables and seeds their metadata when empty.
// Metadata for the system tables lives in the registry like any user
// collection, so the API can read and document itself.
func Run(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&domain.Collection{},
		&domain.Field{},
		&domain.Relation{},
		&domain.Activity{},
		&domain.Revision{},
		&domain.File{},
		&domain.Folder{},
	); err != nil {
		return err
	}

	var count int64
	db.Model(&domain.Collection{}).Count(&count)
	if count == 0 {
		if err := seedSystem(db); err != nil {
			return err
		}
		log.Info().Msg("System collections seeded")
	}
	return nil
}

func seedSystem(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(systemCollections()).Error; err != nil {
			return err
		}
		if err := tx.Create(systemFields()).Error; err != nil {
			return err
		}
		return tx.Create(systemRelations()).Error
	})
}

func systemCollections() []domain.Collection {
	return []domain.Collection{
		{Collection: "dev7_activity", Managed: true, Hidden: true, Icon: "notifications", Note: "Accountability log of every mutation"},
		{Collection: "dev7_files", Managed: true, Hidden: true, Icon: "description", Note: "Uploaded file descriptors"},
		{Collection: "dev7_folders", Managed: true, Hidden: true, Icon: "folder", Note: "Virtual file folders"},
		{Collection: "dev7_revisions", Managed: true, Hidden: true, Icon: "history", Note: "Snapshots and deltas per mutation"},
	}
}

func intPtr(v int) *int { return &v }

func systemFields() []domain.Field {
	f := func(collection, field, fieldType, iface string, sort int) domain.Field {
		return domain.Field{
			Collection: collection,
			Field:      field,
			Type:       fieldType,
			Interface:  iface,
			Sort:       intPtr(sort),
		}
	}

	fields := []domain.Field{
		f("dev7_activity", "id", domain.TypeInteger, "primary-key", 1),
		f("dev7_activity", "action", domain.TypeString, "text-input", 2),
		f("dev7_activity", "action_by", domain.TypeInteger, "numeric", 3),
		f("dev7_activity", "action_on", domain.TypeDatetime, "datetime", 4),
		f("dev7_activity", "collection", domain.TypeString, "text-input", 5),
		f("dev7_activity", "item", domain.TypeString, "text-input", 6),
		f("dev7_activity", "comment", domain.TypeString, "markdown", 7),

		f("dev7_files", "id", domain.TypeInteger, "primary-key", 1),
		f("dev7_files", "storage", domain.TypeString, "text-input", 2),
		f("dev7_files", "storage_key", domain.TypeString, "text-input", 3),
		f("dev7_files", "filename", domain.TypeString, "text-input", 4),
		f("dev7_files", "title", domain.TypeString, "text-input", 5),
		f("dev7_files", "type", domain.TypeString, "text-input", 6),
		f("dev7_files", "filesize", domain.TypeInteger, "numeric", 7),
		f("dev7_files", "description", domain.TypeString, "textarea", 8),
		f("dev7_files", "location", domain.TypeString, "text-input", 9),
		f("dev7_files", "tags", domain.TypeString, "tags", 10),
		f("dev7_files", "metadata", domain.TypeJSON, "code", 11),
		f("dev7_files", "folder", domain.TypeManyToOne, "many-to-one", 12),
		f("dev7_files", "uploaded_by", domain.TypeInteger, "numeric", 13),
		f("dev7_files", "uploaded_on", domain.TypeDatetime, "datetime", 14),

		f("dev7_folders", "id", domain.TypeInteger, "primary-key", 1),
		f("dev7_folders", "name", domain.TypeString, "text-input", 2),
		f("dev7_folders", "parent_folder", domain.TypeManyToOne, "many-to-one", 3),

		f("dev7_revisions", "id", domain.TypeInteger, "primary-key", 1),
		f("dev7_revisions", "activity", domain.TypeInteger, "numeric", 2),
		f("dev7_revisions", "collection", domain.TypeString, "text-input", 3),
		f("dev7_revisions", "item", domain.TypeString, "text-input", 4),
		f("dev7_revisions", "data", domain.TypeJSON, "code", 5),
		f("dev7_revisions", "delta", domain.TypeJSON, "code", 6),
	}

	// read-only system bookkeeping
	readonly := map[string]bool{"uploaded_on": true, "action_on": true}
	for i := range fields {
		if readonly[fields[i].Field] {
			fields[i].Readonly = true
		}
	}
	return fields
}

func systemRelations() []domain.Relation {
	return []domain.Relation{
		{CollectionMany: "dev7_files", FieldMany: "folder", CollectionOne: "dev7_folders"},
		{CollectionMany: "dev7_folders", FieldMany: "parent_folder", CollectionOne: "dev7_folders"},
	}
}
