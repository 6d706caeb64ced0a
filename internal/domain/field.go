package domain

import "encoding/json"

// Semantic field types. The type drives validation and relation handling;
// the interface hint is presentation-only and never interpreted here.
const (
	TypeInteger    = "integer"
	TypeString     = "string"
	TypeBoolean    = "boolean"
	TypeDatetime   = "datetime"
	TypeJSON       = "json"
	TypeHash       = "hash"
	TypeFile       = "file"
	TypeArray      = "array"
	TypeAlias      = "alias"
	TypeManyToOne  = "m2o"
	TypeOneToMany  = "o2m"
	TypeManyToMany = "m2m"
	TypeStatus     = "status"
	TypeSort       = "sort"
)

// Field is one typed attribute of a collection. Options is an opaque
// configuration document owned by presentation collaborators; the only
// key the core ever reads is the status mapping on status-typed fields.
type Field struct {
	ID           uint            `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Collection   string          `gorm:"column:collection;type:varchar(64);index:idx_collection_field" json:"collection"`
	Field        string          `gorm:"column:field;type:varchar(64);index:idx_collection_field" json:"field"`
	Type         string          `gorm:"column:type;type:varchar(16)" json:"type"`
	Interface    string          `gorm:"column:interface;type:varchar(64)" json:"interface,omitempty"`
	Options      json.RawMessage `gorm:"column:options;type:json" json:"options,omitempty"`
	Locked       Bool            `gorm:"column:locked;default:false" json:"locked"`
	Required     Bool            `gorm:"column:required;default:false" json:"required"`
	Readonly     Bool            `gorm:"column:readonly;default:false" json:"readonly"`
	HiddenDetail Bool            `gorm:"column:hidden_detail;default:false" json:"hidden_detail"`
	HiddenBrowse Bool            `gorm:"column:hidden_browse;default:false" json:"hidden_browse"`
	Sort         *int            `gorm:"column:sort" json:"sort"`
	Note         string          `gorm:"column:note;type:varchar(255)" json:"note,omitempty"`
}

// TableName returns the metadata table name
func (Field) TableName() string { return "dev7_fields" }

// IsRelational reports whether the field needs a relation entry to resolve
func (f *Field) IsRelational() bool {
	switch f.Type {
	case TypeManyToOne, TypeOneToMany, TypeManyToMany, TypeFile:
		return true
	}
	return false
}

// IsAlias reports whether the field has no backing column of its own
func (f *Field) IsAlias() bool {
	switch f.Type {
	case TypeAlias, TypeOneToMany, TypeManyToMany:
		return true
	}
	return false
}

// StatusMapping decodes the status mapping from a status field's options.
// Returns nil for non-status fields or fields without a mapping.
func (f *Field) StatusMapping() map[string]StatusValue {
	if f.Type != TypeStatus || len(f.Options) == 0 {
		return nil
	}
	var opts struct {
		StatusMapping map[string]StatusValue `json:"status_mapping"`
	}
	if err := json.Unmarshal(f.Options, &opts); err != nil {
		return nil
	}
	return opts.StatusMapping
}

// StatusValue is one entry of a status field's mapping
type StatusValue struct {
	Name       string `json:"name"`
	SoftDelete bool   `json:"soft_delete"`
}
