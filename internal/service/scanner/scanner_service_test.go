package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/arrayops/librarian/config"
	"github.com/arrayops/librarian/internal/database"
	"github.com/arrayops/librarian/internal/service/catalog"
	"github.com/arrayops/librarian/internal/service/instance"
	storeservice "github.com/arrayops/librarian/internal/service/store"
)

// fakeStores serves a fixed listing and fixed probe results. The
// embedded interface covers the methods the scanner never calls.
type fakeStores struct {
	storeservice.StoreService
	stores []database.Store
	paths  []string
	info   *storeservice.FileInfo
	probes int
}

func (f *fakeStores) ListStores() ([]database.Store, error) {
	return f.stores, nil
}

func (f *fakeStores) ListStorePaths(store *database.Store, prefix string, max int) ([]string, error) {
	return f.paths, nil
}

func (f *fakeStores) ProbeFile(store *database.Store, storePath string) (*storeservice.FileInfo, error) {
	f.probes++
	info := *f.info
	return &info, nil
}

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

func TestScanRound(t *testing.T) {
	db := setupTestDB(t)

	startJD := 2458432.5
	store := database.Store{Name: "pot1", Kind: database.StoreKindSSH, PathPrefix: "/data", Available: true}
	require.NoError(t, db.Create(&store).Error)

	fake := &fakeStores{
		stores: []database.Store{store},
		paths: []string{
			"2458432/zen.2458432.34569.uvh5",
			"2458432/zen.2458432.34569.uvh5" + storeservice.InfoSidecarSuffix,
		},
		info: &storeservice.FileInfo{
			Size:    1024,
			MD5:     "d41d8cd98f00b204e9800998ecf8427e",
			Type:    "uvh5",
			ObsID:   2458432,
			StartJD: &startJD,
		},
	}

	cat := catalog.NewCatalogService(db, fake)
	inst := instance.NewInstanceService(db)
	svc := NewScannerService(config.ScannerConfig{Interval: 300, MaxKeys: 100}, "scan-src", fake, cat, inst).(*scannerService)

	svc.scanAll()

	// The data file is cataloged with an instance; the sidecar is not.
	file, err := cat.GetFileByName("zen.2458432.34569.uvh5")
	require.NoError(t, err)
	assert.Equal(t, "scan-src", file.Source)
	assert.Equal(t, 1, fake.probes)

	instances, err := inst.ListInstances("zen.2458432.34569.uvh5")
	require.NoError(t, err)
	require.Len(t, instances, 1)
	assert.Equal(t, "2458432", instances[0].ParentDirs)

	var total int64
	require.NoError(t, db.Model(&database.File{}).Count(&total).Error)
	assert.Equal(t, int64(1), total)

	// A second round is a no-op: the record is authoritative, so the
	// store is not probed again and nothing new is created.
	svc.scanAll()
	assert.Equal(t, 1, fake.probes)

	instances, err = inst.ListInstances("zen.2458432.34569.uvh5")
	require.NoError(t, err)
	assert.Len(t, instances, 1)
}

func TestScannerSkipsUnavailableStores(t *testing.T) {
	db := setupTestDB(t)

	fake := &fakeStores{
		stores: []database.Store{{ID: 1, Name: "down", Available: false}},
		paths:  []string{"x/zen.uvh5"},
	}

	cat := catalog.NewCatalogService(db, fake)
	inst := instance.NewInstanceService(db)
	svc := NewScannerService(config.ScannerConfig{}, "src", fake, cat, inst).(*scannerService)

	svc.scanAll()
	assert.Zero(t, fake.probes)
}
