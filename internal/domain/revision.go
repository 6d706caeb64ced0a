package domain

import "encoding/json"

// Revision stores the full post-mutation snapshot of an item plus the
// field-level delta against the prior revision. Revisions are append-only
// and tied 1:1 to a create/update/delete activity entry. The parent
// columns are set when the mutation happened through a parent item's
// nested form.
type Revision struct {
	ID               uint64          `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Activity         uint64          `gorm:"column:activity;uniqueIndex" json:"activity"`
	Collection       string          `gorm:"column:collection;type:varchar(64);index:idx_revision_item" json:"collection"`
	Item             string          `gorm:"column:item;type:varchar(115);index:idx_revision_item" json:"item"`
	Data             json.RawMessage `gorm:"column:data;type:json" json:"data"`
	Delta            json.RawMessage `gorm:"column:delta;type:json" json:"delta"`
	ParentCollection string          `gorm:"column:parent_collection;type:varchar(64)" json:"parent_collection,omitempty"`
	ParentItem       string          `gorm:"column:parent_item;type:varchar(115)" json:"parent_item,omitempty"`
	ParentChanged    Bool            `gorm:"column:parent_changed;default:false" json:"parent_changed"`
}

// TableName returns the revisions table name
func (Revision) TableName() string { return "dev7_revisions" }

// Snapshot decodes the stored post-mutation snapshot
func (r *Revision) Snapshot() (Record, error) {
	if len(r.Data) == 0 {
		return Record{}, nil
	}
	var rec Record
	if err := json.Unmarshal(r.Data, &rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Changes decodes the stored delta as field -> [old, new] pairs
func (r *Revision) Changes() (Delta, error) {
	if len(r.Delta) == 0 {
		return Delta{}, nil
	}
	var d Delta
	if err := json.Unmarshal(r.Delta, &d); err != nil {
		return nil, err
	}
	return d, nil
}
