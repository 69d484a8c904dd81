// Package event implements the append-only per-file event log.
package event

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/arrayops/librarian/internal/database"
	"github.com/arrayops/librarian/internal/errors"
	"github.com/arrayops/librarian/internal/logger"
)

// EventService appends to and reads the file event log. Events are
// never updated or deleted: the log is the audit trail of everything
// that happened to a file.
type EventService interface {
	// Append persists an event built by one of the catalog's event
	// builders. The named file must already be cataloged, and the
	// serialized payload must fit the size cap.
	Append(event *database.FileEvent) error

	// History returns a file's events, most recent first. Events
	// sharing a timestamp are ordered by descending id so the later
	// append of two same-second events comes first.
	History(fileName string) ([]database.FileEvent, error)
}

type eventService struct {
	db *gorm.DB
}

// NewEventService creates the event log service.
func NewEventService(db *gorm.DB) EventService {
	return &eventService{db: db}
}

func (s *eventService) Append(event *database.FileEvent) error {
	if len(event.Payload) > database.MaxEventPayloadBytes {
		return errors.NewWithDetails(errors.ErrPayloadTooLarge, "",
			fmt.Sprintf("serialized payload is %d bytes, the cap is %d", len(event.Payload), database.MaxEventPayloadBytes))
	}

	var count int64
	if err := s.db.Model(&database.File{}).Where("name = ?", event.Name).Count(&count).Error; err != nil {
		return errors.Wrap(errors.ErrDatabaseQuery, "failed to look up file for event", err)
	}
	if count == 0 {
		return errors.NewWithDetails(errors.ErrFileNotFound, "", event.Name)
	}

	if err := s.db.Create(event).Error; err != nil {
		return errors.Wrap(errors.ErrDatabaseInsert, "failed to append file event", err)
	}

	logger.Debugf("appended %s event %d for file %s", event.Type, event.ID, event.Name)
	return nil
}

func (s *eventService) History(fileName string) ([]database.FileEvent, error) {
	var events []database.FileEvent
	if err := s.db.Where("name = ?", fileName).Order("time DESC, id DESC").Find(&events).Error; err != nil {
		return nil, errors.Wrap(errors.ErrDatabaseQuery, "failed to load file events", err)
	}
	return events, nil
}
