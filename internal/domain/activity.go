package domain

import "time"

// Activity actions. One row is written per mutating operation or comment;
// rows are never updated except to edit or soft-delete a comment.
const (
	ActionCreate       = "create"
	ActionUpdate       = "update"
	ActionDelete       = "delete"
	ActionAuthenticate = "authenticate"
	ActionComment      = "comment"
)

// Activity is an immutable audit record of one mutation or comment
type Activity struct {
	ID               uint64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Action           string     `gorm:"column:action;type:varchar(45);index" json:"action"`
	ActionBy         int64      `gorm:"column:action_by;index" json:"action_by"`
	ActionOn         time.Time  `gorm:"column:action_on;autoCreateTime;index" json:"action_on"`
	IP               string     `gorm:"column:ip;type:varchar(50)" json:"ip,omitempty"`
	UserAgent        string     `gorm:"column:user_agent;type:varchar(255)" json:"user_agent,omitempty"`
	Collection       string     `gorm:"column:collection;type:varchar(64);index:idx_activity_item" json:"collection"`
	Item             string     `gorm:"column:item;type:varchar(115);index:idx_activity_item" json:"item"`
	EditedOn         *time.Time `gorm:"column:edited_on" json:"edited_on,omitempty"`
	Comment          string     `gorm:"column:comment;type:text" json:"comment,omitempty"`
	CommentDeletedOn *time.Time `gorm:"column:comment_deleted_on" json:"comment_deleted_on,omitempty"`
}

// TableName returns the activity table name
func (Activity) TableName() string { return "dev7_activity" }

// IsComment reports whether the entry is a user comment
func (a *Activity) IsComment() bool { return a.Action == ActionComment }
