package catalog

import (
	"encoding/json"
	"time"

	"github.com/arrayops/librarian/internal/database"
	"github.com/arrayops/librarian/internal/errors"
)

// Well-known event types written by the librarian itself. The type
// namespace is open: clients may record their own types through the
// generic builder.
const (
	EventTypeCreateInstance = "create_instance"
	EventTypeDeleteInstance = "delete_instance"
	EventTypeLaunchCopy     = "launch_copy"
	EventTypeCopyFinished   = "copy_finished"
)

// NewFileEvent builds an unpersisted event for a file's history. The
// payload is serialized once, here; the event log enforces the payload
// size cap when the event is appended.
func NewFileEvent(fileName, eventType string, payload map[string]interface{}) (*database.FileEvent, error) {
	if err := database.ValidateFileName(fileName); err != nil {
		return nil, errors.Wrap(errors.ErrFileNameInvalid, "", err)
	}
	if payload == nil {
		payload = map[string]interface{}{}
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInvalidParams, "event payload is not serializable", err)
	}

	return &database.FileEvent{
		Name:    fileName,
		Time:    time.Now().UTC().Truncate(time.Second),
		Type:    eventType,
		Payload: string(encoded),
	}, nil
}

// NewInstanceCreationEvent records that an instance of a file appeared
// on a store.
func NewInstanceCreationEvent(instance *database.FileInstance, store *database.Store) (*database.FileEvent, error) {
	return NewFileEvent(instance.Name, EventTypeCreateInstance, map[string]interface{}{
		"store_name":  store.Name,
		"parent_dirs": instance.ParentDirs,
	})
}

// NewInstanceDeletionEvent records that an instance of a file was
// removed from a store.
func NewInstanceDeletionEvent(instance *database.FileInstance, store *database.Store) (*database.FileEvent, error) {
	return NewFileEvent(instance.Name, EventTypeDeleteInstance, map[string]interface{}{
		"store_name":  store.Name,
		"parent_dirs": instance.ParentDirs,
	})
}

// NewCopyLaunchedEvent records that a copy of a file to another
// librarian was started.
func NewCopyLaunchedEvent(fileName, connectionName, remoteStorePath string) (*database.FileEvent, error) {
	return NewFileEvent(fileName, EventTypeLaunchCopy, map[string]interface{}{
		"connection_name":   connectionName,
		"remote_store_path": remoteStorePath,
	})
}

// NewCopyFinishedEvent records the outcome of a copy of a file to
// another librarian. errorCode zero means success; errorMessage carries
// the transfer tool's report either way. Duration (seconds) and average
// rate (kilobytes/sec) are recorded only when the caller measured them.
func NewCopyFinishedEvent(fileName, connectionName, remoteStorePath string, errorCode int, errorMessage string, durationSeconds, averageRateKBps *float64) (*database.FileEvent, error) {
	payload := map[string]interface{}{
		"connection_name":   connectionName,
		"remote_store_path": remoteStorePath,
		"error_code":        errorCode,
		"error_message":     errorMessage,
	}
	if durationSeconds != nil {
		payload["duration"] = *durationSeconds
	}
	if averageRateKBps != nil {
		payload["average_rate"] = *averageRateKBps
	}
	return NewFileEvent(fileName, EventTypeCopyFinished, payload)
}
