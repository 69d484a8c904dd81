package store

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/arrayops/librarian/internal/database"
	"github.com/arrayops/librarian/internal/errors"
	"github.com/arrayops/librarian/internal/logger"
)

// StoreService manages the store registry and runs metadata probes
// against registered stores.
type StoreService interface {
	// CreateStore registers a new store.
	CreateStore(store *database.Store) (*database.Store, error)

	// GetStoreByName looks a store up by its unique name.
	GetStoreByName(name string) (*database.Store, error)

	// GetStoreByID looks a store up by id.
	GetStoreByID(id int64) (*database.Store, error)

	// ListStores returns all registered stores.
	ListStores() ([]database.Store, error)

	// SetAvailability flips a store's availability flag.
	SetAvailability(name string, available bool) (*database.Store, error)

	// ProbeFile asks the store for the metadata of one of its paths.
	ProbeFile(store *database.Store, storePath string) (*FileInfo, error)

	// ListStorePaths lists up to max store paths under a prefix.
	ListStorePaths(store *database.Store, prefix string, max int) ([]string, error)

	// TestStore verifies the named store is reachable.
	TestStore(name string) error
}

// proberFactory is satisfied by ProberFactory; tests substitute fakes.
type proberFactory interface {
	CreateProber(store *database.Store) (Prober, error)
}

type storeService struct {
	db      *gorm.DB
	factory proberFactory
}

// NewStoreService creates the store service.
func NewStoreService(db *gorm.DB) StoreService {
	return &storeService{
		db:      db,
		factory: &ProberFactory{},
	}
}

func (s *storeService) CreateStore(store *database.Store) (*database.Store, error) {
	if store.Name == "" {
		return nil, errors.New(errors.ErrInvalidParams, "store name must not be empty")
	}
	switch store.Kind {
	case database.StoreKindSSH, database.StoreKindAliyun, database.StoreKindTencent, database.StoreKindQiniu:
	case "":
		store.Kind = database.StoreKindSSH
	default:
		return nil, errors.NewWithDetails(errors.ErrStoreKindInvalid, "", store.Kind)
	}

	if err := s.db.Create(store).Error; err != nil {
		if database.IsDuplicateKey(err) {
			return nil, errors.NewWithDetails(errors.ErrStoreConflict, "", store.Name)
		}
		return nil, errors.Wrap(errors.ErrDatabaseInsert, "failed to create store", err)
	}

	logger.Infof("registered store %s (kind %s, prefix %s)", store.Name, store.Kind, store.PathPrefix)
	return store, nil
}

func (s *storeService) GetStoreByName(name string) (*database.Store, error) {
	var store database.Store
	if err := s.db.Where("name = ?", name).First(&store).Error; err != nil {
		if database.IsRecordNotFound(err) {
			return nil, errors.NewWithDetails(errors.ErrStoreNotFound, "", name)
		}
		return nil, errors.Wrap(errors.ErrDatabaseQuery, "failed to look up store", err)
	}
	return &store, nil
}

func (s *storeService) GetStoreByID(id int64) (*database.Store, error) {
	var store database.Store
	if err := s.db.First(&store, id).Error; err != nil {
		if database.IsRecordNotFound(err) {
			return nil, errors.NewWithDetails(errors.ErrStoreNotFound, "", fmt.Sprintf("id %d", id))
		}
		return nil, errors.Wrap(errors.ErrDatabaseQuery, "failed to look up store", err)
	}
	return &store, nil
}

func (s *storeService) ListStores() ([]database.Store, error) {
	var stores []database.Store
	if err := s.db.Order("id").Find(&stores).Error; err != nil {
		return nil, errors.Wrap(errors.ErrDatabaseQuery, "failed to list stores", err)
	}
	return stores, nil
}

func (s *storeService) SetAvailability(name string, available bool) (*database.Store, error) {
	store, err := s.GetStoreByName(name)
	if err != nil {
		return nil, err
	}
	if err := s.db.Model(store).Update("available", available).Error; err != nil {
		return nil, errors.Wrap(errors.ErrDatabaseQuery, "failed to update store availability", err)
	}
	store.Available = available
	logger.Infof("store %s availability set to %v", name, available)
	return store, nil
}

func (s *storeService) ProbeFile(store *database.Store, storePath string) (*FileInfo, error) {
	if !store.Available {
		return nil, errors.NewWithDetails(errors.ErrStoreUnavailable, "", store.Name)
	}

	prober, err := s.factory.CreateProber(store)
	if err != nil {
		if _, ok := errors.GetAppError(err); ok {
			return nil, err
		}
		return nil, errors.Wrap(errors.ErrStoreProbeFailed,
			fmt.Sprintf("cannot probe %s:%s", store.Name, storePath), err)
	}

	info, err := prober.GetInfoForPath(storePath)
	if err != nil {
		return nil, errors.Wrap(errors.ErrStoreProbeFailed,
			fmt.Sprintf("cannot probe %s:%s", store.Name, storePath), err)
	}
	return info, nil
}

func (s *storeService) ListStorePaths(store *database.Store, prefix string, max int) ([]string, error) {
	if !store.Available {
		return nil, errors.NewWithDetails(errors.ErrStoreUnavailable, "", store.Name)
	}

	prober, err := s.factory.CreateProber(store)
	if err != nil {
		return nil, err
	}

	paths, err := prober.ListPaths(prefix, max)
	if err != nil {
		return nil, errors.Wrap(errors.ErrStoreProbeFailed,
			fmt.Sprintf("cannot list %s:%s", store.Name, prefix), err)
	}
	return paths, nil
}

func (s *storeService) TestStore(name string) error {
	store, err := s.GetStoreByName(name)
	if err != nil {
		return err
	}

	prober, err := s.factory.CreateProber(store)
	if err != nil {
		return err
	}

	if err := prober.TestConnection(); err != nil {
		return errors.Wrap(errors.ErrStoreProbeFailed,
			fmt.Sprintf("cannot reach store %s", name), err)
	}
	return nil
}
