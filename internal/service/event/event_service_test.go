package event_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/arrayops/librarian/internal/database"
	"github.com/arrayops/librarian/internal/errors"
	"github.com/arrayops/librarian/internal/service/catalog"
	"github.com/arrayops/librarian/internal/service/event"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(&database.File{}, &database.FileEvent{})
	require.NoError(t, err)

	require.NoError(t, db.Create(&database.File{
		Name: "zen.uvh5", Type: "uvh5", ObsID: 1, Size: 10,
		MD5: "d41d8cd98f00b204e9800998ecf8427e", Source: "test",
	}).Error)

	return db
}

func TestAppend(t *testing.T) {
	db := setupTestDB(t)
	svc := event.NewEventService(db)

	t.Run("appends and assigns an id", func(t *testing.T) {
		e, err := catalog.NewFileEvent("zen.uvh5", "noted", map[string]interface{}{"k": "v"})
		require.NoError(t, err)

		require.NoError(t, svc.Append(e))
		assert.NotZero(t, e.ID)
	})

	t.Run("unknown file is not found", func(t *testing.T) {
		e, err := catalog.NewFileEvent("zen.missing.uvh5", "noted", nil)
		require.NoError(t, err)

		err = svc.Append(e)
		require.Error(t, err)
		assert.True(t, errors.IsNotFound(err))
	})

	t.Run("payload at the cap is accepted", func(t *testing.T) {
		// {"pad":"..."} serializes to exactly 512 bytes.
		pad := strings.Repeat("x", database.MaxEventPayloadBytes-len(`{"pad":""}`))
		e, err := catalog.NewFileEvent("zen.uvh5", "padded", map[string]interface{}{"pad": pad})
		require.NoError(t, err)
		require.Len(t, e.Payload, database.MaxEventPayloadBytes)

		assert.NoError(t, svc.Append(e))
	})

	t.Run("payload over the cap is rejected", func(t *testing.T) {
		pad := strings.Repeat("x", database.MaxEventPayloadBytes-len(`{"pad":""}`)+1)
		e, err := catalog.NewFileEvent("zen.uvh5", "padded", map[string]interface{}{"pad": pad})
		require.NoError(t, err)
		require.Len(t, e.Payload, database.MaxEventPayloadBytes+1)

		err = svc.Append(e)
		require.Error(t, err)
		assert.True(t, errors.IsPayloadTooLarge(err))
		assert.True(t, errors.IsValidation(err))
	})
}

func TestHistory(t *testing.T) {
	db := setupTestDB(t)
	svc := event.NewEventService(db)

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i, e := range []*database.FileEvent{
		{Name: "zen.uvh5", Time: base, Type: "first", Payload: "{}"},
		{Name: "zen.uvh5", Time: base.Add(time.Minute), Type: "second", Payload: "{}"},
		{Name: "zen.uvh5", Time: base.Add(time.Minute), Type: "third", Payload: "{}"},
	} {
		require.NoError(t, svc.Append(e), "event %d", i)
	}

	events, err := svc.History("zen.uvh5")
	require.NoError(t, err)
	require.Len(t, events, 3)

	// Most recent first; within the shared timestamp the later append
	// (higher id) comes first.
	assert.Equal(t, "third", events[0].Type)
	assert.Equal(t, "second", events[1].Type)
	assert.Equal(t, "first", events[2].Type)

	t.Run("history of a file without events is empty", func(t *testing.T) {
		events, err := svc.History("zen.quiet.uvh5")
		require.NoError(t, err)
		assert.Empty(t, events)
	})
}
