package instance_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/arrayops/librarian/internal/database"
	"github.com/arrayops/librarian/internal/errors"
	"github.com/arrayops/librarian/internal/service/catalog"
	"github.com/arrayops/librarian/internal/service/instance"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&database.Observation{},
		&database.Store{},
		&database.File{},
		&database.FileInstance{},
		&database.FileEvent{},
	)
	require.NoError(t, err)

	return db
}

func seedFile(t *testing.T, db *gorm.DB, name string) {
	require.NoError(t, db.Create(&database.File{
		Name: name, Type: "uvh5", ObsID: 1, Size: 10,
		MD5: "d41d8cd98f00b204e9800998ecf8427e", Source: "test",
	}).Error)
}

func seedStore(t *testing.T, db *gorm.DB, store *database.Store) *database.Store {
	require.NoError(t, db.Create(store).Error)
	return store
}

func TestCreateInstance(t *testing.T) {
	db := setupTestDB(t)
	svc := instance.NewInstanceService(db)
	seedStore(t, db, &database.Store{Name: "pot1", Kind: database.StoreKindSSH, PathPrefix: "/data", Available: true})
	seedFile(t, db, "zen.2458432.34569.uvh5")

	t.Run("records the copy and appends a creation event", func(t *testing.T) {
		inst, err := svc.CreateInstance("pot1", "2458432", "zen.2458432.34569.uvh5")
		require.NoError(t, err)
		assert.Equal(t, "2458432/zen.2458432.34569.uvh5", inst.StorePath())

		var events []database.FileEvent
		require.NoError(t, db.Where("name = ?", "zen.2458432.34569.uvh5").Find(&events).Error)
		require.Len(t, events, 1)
		assert.Equal(t, catalog.EventTypeCreateInstance, events[0].Type)

		payload, err := events[0].PayloadJSON()
		require.NoError(t, err)
		assert.Equal(t, "pot1", payload["store_name"])
		assert.Equal(t, "2458432", payload["parent_dirs"])
	})

	t.Run("the same copy twice conflicts", func(t *testing.T) {
		_, err := svc.CreateInstance("pot1", "2458432", "zen.2458432.34569.uvh5")
		require.Error(t, err)
		assert.True(t, errors.IsConflict(err))
	})

	t.Run("the same file elsewhere on the store is a new copy", func(t *testing.T) {
		_, err := svc.CreateInstance("pot1", "staging", "zen.2458432.34569.uvh5")
		require.NoError(t, err)
	})

	t.Run("rejects names with separators", func(t *testing.T) {
		_, err := svc.CreateInstance("pot1", "2458432", "a/b.uvh5")
		require.Error(t, err)
		assert.True(t, errors.IsValidation(err))
	})

	t.Run("uncataloged file is not found", func(t *testing.T) {
		_, err := svc.CreateInstance("pot1", "2458432", "zen.unknown.uvh5")
		require.Error(t, err)
		assert.True(t, errors.IsNotFound(err))
	})

	t.Run("unknown store is not found", func(t *testing.T) {
		_, err := svc.CreateInstance("pot9", "2458432", "zen.2458432.34569.uvh5")
		require.Error(t, err)
		assert.True(t, errors.IsNotFound(err))
	})
}

func TestLocate(t *testing.T) {
	t.Run("unknown file is not found", func(t *testing.T) {
		db := setupTestDB(t)
		svc := instance.NewInstanceService(db)

		_, err := svc.Locate("zen.unknown.uvh5")
		require.Error(t, err)
		assert.True(t, errors.IsNotFound(err))
	})

	t.Run("cataloged file without copies reports no instances", func(t *testing.T) {
		db := setupTestDB(t)
		svc := instance.NewInstanceService(db)
		seedFile(t, db, "zen.lonely.uvh5")

		_, err := svc.Locate("zen.lonely.uvh5")
		require.Error(t, err)
		assert.True(t, errors.IsNotFound(err))
	})

	t.Run("returns the full path on the store", func(t *testing.T) {
		db := setupTestDB(t)
		svc := instance.NewInstanceService(db)
		seedStore(t, db, &database.Store{
			Name: "pot1", Kind: database.StoreKindSSH, PathPrefix: "/data",
			SSHHost: "pot1.example.org", Available: true,
		})
		seedFile(t, db, "zen.path.uvh5")

		_, err := svc.CreateInstance("pot1", "2458432", "zen.path.uvh5")
		require.NoError(t, err)

		loc, err := svc.Locate("zen.path.uvh5")
		require.NoError(t, err)
		assert.Equal(t, "/data/2458432/zen.path.uvh5", loc.FullPathOnStore)
		assert.Equal(t, "pot1", loc.StoreName)
		assert.Equal(t, "2458432/zen.path.uvh5", loc.StorePath)
		assert.Equal(t, "pot1.example.org", loc.StoreSSHHost)
	})

	t.Run("prefers copies on available stores", func(t *testing.T) {
		db := setupTestDB(t)
		svc := instance.NewInstanceService(db)
		seedStore(t, db, &database.Store{Name: "down", PathPrefix: "/down", Available: false})
		seedStore(t, db, &database.Store{Name: "up", PathPrefix: "/up", Available: true})
		seedFile(t, db, "zen.avail.uvh5")

		_, err := svc.CreateInstance("down", "d", "zen.avail.uvh5")
		require.NoError(t, err)
		_, err = svc.CreateInstance("up", "d", "zen.avail.uvh5")
		require.NoError(t, err)

		loc, err := svc.Locate("zen.avail.uvh5")
		require.NoError(t, err)
		assert.Equal(t, "up", loc.StoreName)
	})

	t.Run("selection is deterministic across equivalent copies", func(t *testing.T) {
		db := setupTestDB(t)
		svc := instance.NewInstanceService(db)
		seedStore(t, db, &database.Store{Name: "pot-a", PathPrefix: "/a", Available: true})
		seedStore(t, db, &database.Store{Name: "pot-b", PathPrefix: "/b", Available: true})
		seedFile(t, db, "zen.tie.uvh5")

		_, err := svc.CreateInstance("pot-b", "z", "zen.tie.uvh5")
		require.NoError(t, err)
		_, err = svc.CreateInstance("pot-a", "y", "zen.tie.uvh5")
		require.NoError(t, err)
		_, err = svc.CreateInstance("pot-a", "x", "zen.tie.uvh5")
		require.NoError(t, err)

		// Lowest store id wins, then the lexically first directory,
		// and repeated calls agree.
		first, err := svc.Locate("zen.tie.uvh5")
		require.NoError(t, err)
		assert.Equal(t, "pot-a", first.StoreName)
		assert.Equal(t, "x/zen.tie.uvh5", first.StorePath)

		second, err := svc.Locate("zen.tie.uvh5")
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})
}

func TestDeleteInstance(t *testing.T) {
	db := setupTestDB(t)
	svc := instance.NewInstanceService(db)
	seedStore(t, db, &database.Store{Name: "pot1", PathPrefix: "/data", Available: true})
	seedFile(t, db, "zen.del.uvh5")

	_, err := svc.CreateInstance("pot1", "2458432", "zen.del.uvh5")
	require.NoError(t, err)

	t.Run("removes the copy and appends a deletion event", func(t *testing.T) {
		require.NoError(t, svc.DeleteInstance("pot1", "2458432", "zen.del.uvh5"))

		instances, err := svc.ListInstances("zen.del.uvh5")
		require.NoError(t, err)
		assert.Empty(t, instances)

		// The File record survives instance deletion.
		var file database.File
		require.NoError(t, db.Where("name = ?", "zen.del.uvh5").First(&file).Error)

		var events []database.FileEvent
		require.NoError(t, db.Where("name = ? AND type = ?", "zen.del.uvh5",
			catalog.EventTypeDeleteInstance).Find(&events).Error)
		assert.Len(t, events, 1)
	})

	t.Run("deleting an unrecorded copy is not found", func(t *testing.T) {
		err := svc.DeleteInstance("pot1", "2458432", "zen.del.uvh5")
		require.Error(t, err)
		assert.True(t, errors.IsNotFound(err))
	})
}
