// Package store manages the store registry and the metadata probers
// that ask a storage node about the files it holds. One prober
// implementation exists per store kind: ssh stores answer through a
// remote helper command, object-storage stores (aliyun, tencent, qiniu)
// answer through bucket metadata plus a sidecar info object.
package store

import (
	"path"
	"strings"

	"github.com/arrayops/librarian/internal/database"
	"github.com/arrayops/librarian/internal/errors"
)

// FileInfo is the metadata a store reports for one of its paths. It
// carries everything the catalog needs to register the file and its
// observation.
type FileInfo struct {
	Size    int64    `json:"size"`
	MD5     string   `json:"md5"`
	Type    string   `json:"type"`
	LST     float64  `json:"lst"`
	ObsID   int64    `json:"obsid"`
	StartJD *float64 `json:"start_jd,omitempty"`
}

// Prober answers metadata questions about paths on one store. Paths are
// relative to the store's path prefix.
type Prober interface {
	// GetInfoForPath retrieves the FileInfo for a store path.
	GetInfoForPath(storePath string) (*FileInfo, error)

	// ListPaths returns up to max store paths under the given prefix.
	ListPaths(prefix string, max int) ([]string, error)

	// TestConnection verifies the store is reachable.
	TestConnection() error
}

// ProberFactory builds the prober matching a store's kind.
type ProberFactory struct{}

// CreateProber returns a prober for the store.
func (f *ProberFactory) CreateProber(store *database.Store) (Prober, error) {
	switch store.Kind {
	case database.StoreKindSSH:
		return NewSSHProber(store)
	case database.StoreKindAliyun:
		return NewAliyunProber(store)
	case database.StoreKindTencent:
		return NewTencentProber(store)
	case database.StoreKindQiniu:
		return NewQiniuProber(store)
	default:
		return nil, errors.NewWithDetails(errors.ErrStoreKindInvalid, "", store.Kind)
	}
}

// InfoSidecarSuffix names the sidecar object written next to every data
// product on an object-storage store. The sidecar carries the fields
// (md5, type, lst, obsid, start_jd) that bucket metadata cannot.
const InfoSidecarSuffix = ".info.json"

// objectKey maps a store path onto a bucket object key under the
// store's path prefix. Object keys never start with a slash.
func objectKey(s *database.Store, storePath string) string {
	return strings.TrimLeft(path.Join(s.PathPrefix, storePath), "/")
}

// storePathFromKey is the inverse of objectKey.
func storePathFromKey(s *database.Store, key string) string {
	prefix := strings.TrimLeft(s.PathPrefix, "/")
	return strings.TrimPrefix(strings.TrimPrefix(key, prefix), "/")
}
