package domain

// Relation declares a link between two collections. For a many-to-one
// field the (CollectionMany, FieldMany) side holds the foreign key; the
// mirrored (CollectionOne, FieldOne) side names the alias field, if any.
// A many-to-many link sets JunctionField: CollectionMany is then the
// junction collection, FieldMany its column pointing back at
// CollectionOne, and JunctionField its column pointing at the far side.
type Relation struct {
	ID             uint   `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	CollectionMany string `gorm:"column:collection_many;type:varchar(64);index" json:"collection_many"`
	FieldMany      string `gorm:"column:field_many;type:varchar(64)" json:"field_many"`
	CollectionOne  string `gorm:"column:collection_one;type:varchar(64);index" json:"collection_one"`
	FieldOne       string `gorm:"column:field_one;type:varchar(64)" json:"field_one,omitempty"`
	JunctionField  string `gorm:"column:junction_field;type:varchar(64)" json:"junction_field,omitempty"`
}

// TableName returns the metadata table name
func (Relation) TableName() string { return "dev7_relations" }

// RelationKind classifies how a relational field resolves
type RelationKind int

const (
	KindManyToOne RelationKind = iota + 1
	KindOneToMany
	KindManyToMany
)

func (k RelationKind) String() string {
	switch k {
	case KindManyToOne:
		return "m2o"
	case KindOneToMany:
		return "o2m"
	case KindManyToMany:
		return "m2m"
	}
	return "unknown"
}
