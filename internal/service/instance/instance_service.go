// Package instance tracks where copies of cataloged files live and
// resolves the preferred copy to hand to clients.
package instance

import (
	"fmt"
	"sort"

	"gorm.io/gorm"

	"github.com/arrayops/librarian/internal/database"
	"github.com/arrayops/librarian/internal/errors"
	"github.com/arrayops/librarian/internal/logger"
	"github.com/arrayops/librarian/internal/service/catalog"
)

// Location describes the preferred copy of a file, with everything a
// client needs to retrieve it from the store that holds it.
type Location struct {
	FullPathOnStore string `json:"full_path_on_store"`
	StoreName       string `json:"store_name"`
	StorePath       string `json:"store_path"`
	StoreSSHHost    string `json:"store_ssh_host"`
}

// InstanceService owns FileInstance records.
type InstanceService interface {
	// CreateInstance records that a copy of a cataloged file exists on
	// a store, and appends a creation event to the file's log.
	// Recording the same copy twice fails with a conflict.
	CreateInstance(storeName, parentDirs, fileName string) (*database.FileInstance, error)

	// Locate returns the preferred copy of a file. Copies on available
	// stores win over copies on unavailable ones; ties break by store
	// id, then by parent directory, so repeated calls agree.
	Locate(fileName string) (*Location, error)

	// ListInstances returns every recorded copy of a file.
	ListInstances(fileName string) ([]database.FileInstance, error)

	// DeleteInstance forgets a recorded copy and appends a deletion
	// event to the file's log. The File record itself is untouched.
	DeleteInstance(storeName, parentDirs, fileName string) error
}

type instanceService struct {
	db *gorm.DB
}

// NewInstanceService creates the instance tracking service.
func NewInstanceService(db *gorm.DB) InstanceService {
	return &instanceService{db: db}
}

func (s *instanceService) CreateInstance(storeName, parentDirs, fileName string) (*database.FileInstance, error) {
	if err := database.ValidateFileName(fileName); err != nil {
		return nil, errors.Wrap(errors.ErrFileNameInvalid, "", err)
	}

	var file database.File
	if err := s.db.Where("name = ?", fileName).First(&file).Error; err != nil {
		if database.IsRecordNotFound(err) {
			return nil, errors.NewWithDetails(errors.ErrFileNotFound, "", fileName)
		}
		return nil, errors.Wrap(errors.ErrDatabaseQuery, "failed to look up file", err)
	}

	store, err := s.getStoreByName(storeName)
	if err != nil {
		return nil, err
	}

	inst := &database.FileInstance{
		StoreID:    store.ID,
		ParentDirs: parentDirs,
		Name:       fileName,
	}

	event, err := catalog.NewInstanceCreationEvent(inst, store)
	if err != nil {
		return nil, err
	}

	// The instance and its creation event commit together.
	txErr := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(inst).Error; err != nil {
			return err
		}
		return tx.Create(event).Error
	})
	if txErr != nil {
		if database.IsDuplicateKey(txErr) {
			return nil, errors.NewWithDetails(errors.ErrInstanceConflict, "",
				fmt.Sprintf("%s already recorded on store %s under %s", fileName, store.Name, parentDirs))
		}
		return nil, errors.Wrap(errors.ErrDatabaseTransaction, "failed to record file instance", txErr)
	}

	logger.Infof("recorded instance of %s on store %s at %s", fileName, store.Name, inst.StorePath())
	return inst, nil
}

func (s *instanceService) Locate(fileName string) (*Location, error) {
	var count int64
	if err := s.db.Model(&database.File{}).Where("name = ?", fileName).Count(&count).Error; err != nil {
		return nil, errors.Wrap(errors.ErrDatabaseQuery, "failed to look up file", err)
	}
	if count == 0 {
		return nil, errors.NewWithDetails(errors.ErrFileNotFound, "", fileName)
	}

	instances, err := s.ListInstances(fileName)
	if err != nil {
		return nil, err
	}
	if len(instances) == 0 {
		return nil, errors.NewWithDetails(errors.ErrNoInstances, "", fileName)
	}

	stores, err := s.storesByID(instances)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(instances, func(i, j int) bool {
		a, b := instances[i], instances[j]
		availA, availB := stores[a.StoreID].Available, stores[b.StoreID].Available
		if availA != availB {
			return availA
		}
		if a.StoreID != b.StoreID {
			return a.StoreID < b.StoreID
		}
		return a.ParentDirs < b.ParentDirs
	})

	best := instances[0]
	store := stores[best.StoreID]
	return &Location{
		FullPathOnStore: best.FullPathOnStore(store),
		StoreName:       store.Name,
		StorePath:       best.StorePath(),
		StoreSSHHost:    store.SSHHost,
	}, nil
}

func (s *instanceService) ListInstances(fileName string) ([]database.FileInstance, error) {
	var instances []database.FileInstance
	if err := s.db.Where("name = ?", fileName).Find(&instances).Error; err != nil {
		return nil, errors.Wrap(errors.ErrDatabaseQuery, "failed to list file instances", err)
	}
	return instances, nil
}

func (s *instanceService) DeleteInstance(storeName, parentDirs, fileName string) error {
	store, err := s.getStoreByName(storeName)
	if err != nil {
		return err
	}

	inst := &database.FileInstance{
		StoreID:    store.ID,
		ParentDirs: parentDirs,
		Name:       fileName,
	}

	event, err := catalog.NewInstanceDeletionEvent(inst, store)
	if err != nil {
		return err
	}

	txErr := s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("store = ? AND parent_dirs = ? AND name = ?", store.ID, parentDirs, fileName).
			Delete(&database.FileInstance{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errors.NewWithDetails(errors.ErrInstanceNotFound, "",
				fmt.Sprintf("%s on store %s under %s", fileName, store.Name, parentDirs))
		}
		return tx.Create(event).Error
	})
	if txErr != nil {
		if _, ok := errors.GetAppError(txErr); ok {
			return txErr
		}
		return errors.Wrap(errors.ErrDatabaseTransaction, "failed to delete file instance", txErr)
	}

	logger.Infof("deleted instance of %s on store %s under %s", fileName, store.Name, parentDirs)
	return nil
}

func (s *instanceService) getStoreByName(name string) (*database.Store, error) {
	var store database.Store
	if err := s.db.Where("name = ?", name).First(&store).Error; err != nil {
		if database.IsRecordNotFound(err) {
			return nil, errors.NewWithDetails(errors.ErrStoreNotFound, "", name)
		}
		return nil, errors.Wrap(errors.ErrDatabaseQuery, "failed to look up store", err)
	}
	return &store, nil
}

func (s *instanceService) storesByID(instances []database.FileInstance) (map[int64]*database.Store, error) {
	ids := make([]int64, 0, len(instances))
	for _, inst := range instances {
		ids = append(ids, inst.StoreID)
	}

	var stores []database.Store
	if err := s.db.Where("id IN ?", ids).Find(&stores).Error; err != nil {
		return nil, errors.Wrap(errors.ErrDatabaseQuery, "failed to load stores", err)
	}

	byID := make(map[int64]*database.Store, len(stores))
	for i := range stores {
		byID[stores[i].ID] = &stores[i]
	}
	for _, inst := range instances {
		if _, ok := byID[inst.StoreID]; !ok {
			return nil, errors.NewWithDetails(errors.ErrStoreNotFound,
				"", fmt.Sprintf("store id %d referenced by an instance of %s", inst.StoreID, inst.Name))
		}
	}
	return byID, nil
}
