package domain

// Collection describes a managed table and its presentation flags.
// Unmanaged tables may exist in the database but have no row here;
// the registry treats them as opaque and skips validation for them.
type Collection struct {
	Collection string `gorm:"column:collection;primaryKey;type:varchar(64)" json:"collection"`
	Managed    Bool   `gorm:"column:managed;default:true" json:"managed"`
	Hidden     Bool   `gorm:"column:hidden;default:false" json:"hidden"`
	Single     Bool   `gorm:"column:single;default:false" json:"single"`
	Icon       string `gorm:"column:icon;type:varchar(30)" json:"icon,omitempty"`
	Note       string `gorm:"column:note;type:varchar(255)" json:"note,omitempty"`

	Fields []Field `gorm:"-" json:"fields,omitempty"`
}

// TableName returns the metadata table name
func (Collection) TableName() string { return "dev7_collections" }
