// Package catalog implements the file catalog: registration of
// canonical File records, inference of records from files discovered on
// stores, and the serialized form used to exchange records between
// librarians.
package catalog

import (
	"fmt"
	"path"
	"time"

	"gorm.io/gorm"

	"github.com/arrayops/librarian/internal/database"
	"github.com/arrayops/librarian/internal/errors"
	"github.com/arrayops/librarian/internal/logger"
	storeservice "github.com/arrayops/librarian/internal/service/store"
)

// MetadataProber is the slice of the store service the catalog needs:
// asking a store for the metadata of one of its paths.
type MetadataProber interface {
	ProbeFile(store *database.Store, storePath string) (*storeservice.FileInfo, error)
}

// FileRecord is the serialized form of a File exchanged between
// librarians. CreateTime is an integer Unix timestamp, which is exact
// because File creation times are truncated to whole seconds. Source is
// deliberately absent: it is local to each librarian.
type FileRecord struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	CreateTime int64  `json:"create_time"`
	ObsID      int64  `json:"obsid"`
	Size       int64  `json:"size"`
	MD5        string `json:"md5"`
}

// CatalogService owns File records and their invariants.
type CatalogService interface {
	// RegisterFile validates and persists a new File. Registering a
	// name that already exists fails with a conflict: catalog facts
	// are permanent and never overwritten.
	RegisterFile(name, fileType string, obsid int64, source string, size int64, md5 string, createTime *time.Time) (*database.File, error)

	// ResolveFile returns the File for a path reported by a store,
	// creating the File (and its Observation, if absent) when the path
	// is unseen. An existing record is authoritative: it is returned
	// unchanged without consulting the store. When info is nil the
	// store is probed for the file's metadata.
	ResolveFile(store *database.Store, storePath, sourceName string, info *storeservice.FileInfo) (*database.File, error)

	// GetFileByName looks up a File.
	GetFileByName(name string) (*database.File, error)

	// ListFiles returns a page of Files ordered by creation time,
	// newest first.
	ListFiles(page, pageSize int) ([]database.File, int64, error)

	// ExportFile projects a File into its serialized record.
	ExportFile(file *database.File) FileRecord

	// ImportFile reconstructs a File from a serialized record received
	// from another librarian, stamping it with an explicit source.
	ImportFile(source string, record *FileRecord) (*database.File, error)
}

type catalogService struct {
	db     *gorm.DB
	prober MetadataProber
}

// NewCatalogService creates the catalog service.
func NewCatalogService(db *gorm.DB, prober MetadataProber) CatalogService {
	return &catalogService{
		db:     db,
		prober: prober,
	}
}

func (s *catalogService) RegisterFile(name, fileType string, obsid int64, source string, size int64, md5 string, createTime *time.Time) (*database.File, error) {
	file, err := newFile(name, fileType, obsid, source, size, md5, createTime)
	if err != nil {
		return nil, err
	}

	if err := s.db.Create(file).Error; err != nil {
		if database.IsDuplicateKey(err) {
			return nil, errors.NewWithDetails(errors.ErrFileConflict, "", name)
		}
		return nil, errors.Wrap(errors.ErrDatabaseInsert, "failed to register file", err)
	}

	logger.Infof("registered file %s (type %s, obsid %d, %d bytes) from %s",
		file.Name, file.Type, file.ObsID, file.Size, file.Source)
	return file, nil
}

// newFile validates the catalog invariants and builds an unpersisted
// File. Times are truncated to whole seconds so they round-trip exactly
// through integer Unix timestamps.
func newFile(name, fileType string, obsid int64, source string, size int64, md5 string, createTime *time.Time) (*database.File, error) {
	if err := database.ValidateFileName(name); err != nil {
		return nil, errors.Wrap(errors.ErrFileNameInvalid, "", err)
	}

	normalizedMD5, err := database.NormalizeMD5(md5)
	if err != nil {
		return nil, errors.Wrap(errors.ErrMD5Invalid, "", err)
	}

	if size < 0 {
		return nil, errors.NewWithDetails(errors.ErrSizeInvalid,
			"", fmt.Sprintf("size %d of file %q", size, name))
	}

	var when time.Time
	if createTime != nil {
		when = createTime.UTC().Truncate(time.Second)
	} else {
		when = time.Now().UTC().Truncate(time.Second)
	}

	return &database.File{
		Name:       name,
		Type:       fileType,
		CreateTime: when,
		ObsID:      obsid,
		Size:       size,
		MD5:        normalizedMD5,
		Source:     source,
	}, nil
}

func (s *catalogService) ResolveFile(store *database.Store, storePath, sourceName string, info *storeservice.FileInfo) (*database.File, error) {
	name := path.Base(storePath)

	// An existing record is authoritative. Its observation and
	// metadata were settled when it was created; a fresh probe must
	// never re-derive it.
	if existing, err := s.GetFileByName(name); err == nil {
		return existing, nil
	} else if !errors.IsNotFound(err) {
		return nil, err
	}

	if info == nil {
		probed, err := s.prober.ProbeFile(store, storePath)
		if err != nil {
			return nil, err
		}
		info = probed
	}

	file, err := newFile(name, info.Type, info.ObsID, sourceName, info.Size, info.MD5, nil)
	if err != nil {
		return nil, err
	}

	// Observation creation (if any) and File creation commit together:
	// a partially created pair must never be observable.
	txErr := s.db.Transaction(func(tx *gorm.DB) error {
		var obs database.Observation
		err := tx.Where("obsid = ?", info.ObsID).First(&obs).Error
		if database.IsRecordNotFound(err) {
			if info.StartJD == nil {
				return errors.NewWithDetails(errors.ErrStoreInfoMalformed,
					"", fmt.Sprintf("store %s reported unknown obsid %d without start_jd", store.Name, info.ObsID))
			}
			obs = database.Observation{
				ObsID:    info.ObsID,
				StartJD:  *info.StartJD,
				LSTStart: info.LST,
			}
			if err := tx.Create(&obs).Error; err != nil && !database.IsDuplicateKey(err) {
				return err
			}
		} else if err != nil {
			return err
		}

		return tx.Create(file).Error
	})

	if txErr != nil {
		// Another worker won the creation race. The records describe
		// the same physical file, so the loser adopts the winner's.
		if database.IsDuplicateKey(txErr) {
			logger.Infof("lost creation race for file %s, fetching existing record", name)
			return s.GetFileByName(name)
		}
		if _, ok := errors.GetAppError(txErr); ok {
			return nil, txErr
		}
		return nil, errors.Wrap(errors.ErrDatabaseTransaction, "failed to create file record", txErr)
	}

	logger.Infof("resolved new file %s from %s:%s (obsid %d)", name, store.Name, storePath, info.ObsID)
	return file, nil
}

func (s *catalogService) GetFileByName(name string) (*database.File, error) {
	var file database.File
	if err := s.db.Where("name = ?", name).First(&file).Error; err != nil {
		if database.IsRecordNotFound(err) {
			return nil, errors.NewWithDetails(errors.ErrFileNotFound, "", name)
		}
		return nil, errors.Wrap(errors.ErrDatabaseQuery, "failed to look up file", err)
	}
	return &file, nil
}

func (s *catalogService) ListFiles(page, pageSize int) ([]database.File, int64, error) {
	var files []database.File
	var total int64

	if err := s.db.Model(&database.File{}).Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(errors.ErrDatabaseQuery, "failed to count files", err)
	}

	offset := (page - 1) * pageSize
	if err := s.db.Order("create_time DESC, name").Offset(offset).Limit(pageSize).Find(&files).Error; err != nil {
		return nil, 0, errors.Wrap(errors.ErrDatabaseQuery, "failed to list files", err)
	}
	return files, total, nil
}

func (s *catalogService) ExportFile(file *database.File) FileRecord {
	return FileRecord{
		Name:       file.Name,
		Type:       file.Type,
		CreateTime: file.CreateTimeUnix(),
		ObsID:      file.ObsID,
		Size:       file.Size,
		MD5:        file.MD5,
	}
}

func (s *catalogService) ImportFile(source string, record *FileRecord) (*database.File, error) {
	createTime := time.Unix(record.CreateTime, 0).UTC()
	return s.RegisterFile(record.Name, record.Type, record.ObsID, source, record.Size, record.MD5, &createTime)
}
