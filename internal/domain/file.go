package domain

import (
	"encoding/json"
	"time"
)

// File is the descriptor row for an uploaded object. The raw bytes live
// behind the storage adapter; the core only ever touches this row.
type File struct {
	ID          int64           `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Storage     string          `gorm:"column:storage;type:varchar(50)" json:"storage"`
	Key         string          `gorm:"column:storage_key;type:varchar(255);index" json:"key"`
	Filename    string          `gorm:"column:filename;type:varchar(255)" json:"filename"`
	Title       string          `gorm:"column:title;type:varchar(255)" json:"title,omitempty"`
	Type        string          `gorm:"column:type;type:varchar(255)" json:"type,omitempty"`
	Filesize    int64           `gorm:"column:filesize" json:"filesize"`
	Width       *int            `gorm:"column:width" json:"width,omitempty"`
	Height      *int            `gorm:"column:height" json:"height,omitempty"`
	Duration    *int            `gorm:"column:duration" json:"duration,omitempty"`
	Description string          `gorm:"column:description;type:text" json:"description,omitempty"`
	Location    string          `gorm:"column:location;type:varchar(200)" json:"location,omitempty"`
	Tags        string          `gorm:"column:tags;type:varchar(255)" json:"tags,omitempty"`
	Metadata    json.RawMessage `gorm:"column:metadata;type:json" json:"metadata,omitempty"`
	Folder      *int64          `gorm:"column:folder" json:"folder,omitempty"`
	UploadedBy  int64           `gorm:"column:uploaded_by" json:"uploaded_by"`
	UploadedOn  time.Time       `gorm:"column:uploaded_on;autoCreateTime" json:"uploaded_on"`
}

// TableName returns the files table name
func (File) TableName() string { return "dev7_files" }

// Folder is a virtual grouping of file records, nestable via ParentFolder
type Folder struct {
	ID           int64  `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Name         string `gorm:"column:name;type:varchar(191)" json:"name"`
	ParentFolder *int64 `gorm:"column:parent_folder" json:"parent_folder,omitempty"`
}

// TableName returns the folders table name
func (Folder) TableName() string { return "dev7_folders" }
