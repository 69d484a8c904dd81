// Package database defines the gorm models for the librarian catalog:
// files, their physical instances, their event history, and the
// referenced observations and stores.
package database

import (
	"encoding/json"
	"path"
	"time"
)

// MaxEventPayloadBytes caps the serialized size of a FileEvent payload.
const MaxEventPayloadBytes = 512

// File is the canonical catalog entry for one data product.
//
// The facts recorded in a File never change and are universal between
// librarians; physical instances come and go but a File record is never
// deleted in normal operation. The one exception is Source, which names
// the librarian that first created the record and is never propagated
// when the record is shared.
//
// File names are unique. The name is a bare basename: it contains no
// directory components and no slash.
type File struct {
	Name       string    `gorm:"primaryKey;size:256" json:"name"`
	Type       string    `gorm:"not null;size:32" json:"type"`
	CreateTime time.Time `gorm:"not null" json:"create_time"` // truncated to whole seconds
	ObsID      int64     `gorm:"column:obsid;not null;index" json:"obsid"`
	Size       int64     `gorm:"not null" json:"size"`
	MD5        string    `gorm:"not null;size:32" json:"md5"`

	// Source is librarian-local and excluded from serialization.
	Source string `gorm:"not null;size:64" json:"-"`
}

// TableName gives the File table name.
func (File) TableName() string {
	return "file"
}

// CreateTimeUnix returns the creation time as an integer Unix
// timestamp. CreateTime is truncated to whole seconds at creation so
// this conversion is exact.
func (f *File) CreateTimeUnix() int64 {
	return f.CreateTime.Unix()
}

// FileInstance is a physical copy of a File on one of this librarian's
// stores. The File record holds the key attributes (size, md5), so an
// instance only records its location: store, parent directory and the
// file name, which is a foreign key into the File table.
//
// File names are unique, but on a store they are sorted into parent
// directories for organizational purposes.
type FileInstance struct {
	StoreID    int64  `gorm:"column:store;primaryKey" json:"store_id"`
	ParentDirs string `gorm:"primaryKey;size:128" json:"parent_dirs"`
	Name       string `gorm:"primaryKey;size:256" json:"name"`
}

// TableName gives the FileInstance table name.
func (FileInstance) TableName() string {
	return "file_instance"
}

// StorePath returns the instance path relative to the store prefix.
func (i *FileInstance) StorePath() string {
	return path.Join(i.ParentDirs, i.Name)
}

// FullPathOnStore returns the absolute path of the instance on the
// given store.
func (i *FileInstance) FullPathOnStore(store *Store) string {
	return path.Join(store.PathPrefix, i.ParentDirs, i.Name)
}

// FileEvent records something that happened to a File on this
// librarian. Events are per-File rather than per-instance so history
// survives instance deletion, and they are private to each librarian:
// they are never synchronized and their ids are not globally unique.
//
// The payload is JSON text whose shape is defined by the event type.
// Serialized payloads are capped at MaxEventPayloadBytes; the event
// log enforces the cap at append time.
type FileEvent struct {
	ID      int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name    string    `gorm:"not null;size:256;index" json:"name"`
	Time    time.Time `gorm:"not null" json:"time"` // truncated to whole seconds
	Type    string    `gorm:"size:64" json:"type"`
	Payload string    `gorm:"type:text" json:"payload"`
}

// TableName gives the FileEvent table name.
func (FileEvent) TableName() string {
	return "file_event"
}

// PayloadJSON decodes the serialized payload.
func (e *FileEvent) PayloadJSON() (map[string]interface{}, error) {
	payload := make(map[string]interface{})
	if err := json.Unmarshal([]byte(e.Payload), &payload); err != nil {
		return nil, err
	}
	return payload, nil
}
