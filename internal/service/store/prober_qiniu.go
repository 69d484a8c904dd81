package store

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/qiniu/go-sdk/v7/auth/qbox"
	"github.com/qiniu/go-sdk/v7/storage"

	"github.com/arrayops/librarian/internal/database"
	"github.com/arrayops/librarian/internal/logger"
)

// QiniuProber probes a Qiniu Kodo backed store.
type QiniuProber struct {
	mac          *qbox.Mac
	region       *storage.Region
	bucketDomain string
	store        *database.Store
}

// NewQiniuProber resolves the store's bucket region and domain.
func NewQiniuProber(store *database.Store) (*QiniuProber, error) {
	mac := qbox.NewMac(store.AccessKey, store.SecretKey)

	region, err := storage.GetRegion(store.AccessKey, store.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to get qiniu region for store %s: %w", store.Name, err)
	}

	bucketDomain := store.Endpoint
	if bucketDomain == "" {
		bucketDomain = fmt.Sprintf("%s.%s", store.Bucket, region.RsHost)
	}

	return &QiniuProber{
		mac:          mac,
		region:       region,
		bucketDomain: bucketDomain,
		store:        store,
	}, nil
}

// GetInfoForPath downloads the sidecar info object through a private
// URL and reads the data object's size from its stat record.
func (p *QiniuProber) GetInfoForPath(storePath string) (*FileInfo, error) {
	key := objectKey(p.store, storePath)
	logger.Debugf("[qiniu:%s] probing %s", p.store.Name, key)

	deadline := time.Now().Add(time.Hour).Unix()
	sidecarURL := storage.MakePrivateURL(p.mac, p.bucketDomain, key+InfoSidecarSuffix, deadline)

	resp, err := http.Get(sidecarURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get info sidecar for %s on store %s: %w", storePath, p.store.Name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to get info sidecar for %s on store %s: status %s", storePath, p.store.Name, resp.Status)
	}

	info, err := decodeSidecar(resp.Body, p.store.Name, storePath)
	if err != nil {
		return nil, err
	}

	stat, err := p.bucketManager().Stat(p.store.Bucket, key)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s on store %s: %w", storePath, p.store.Name, err)
	}
	info.Size = stat.Fsize

	return info, nil
}

// ListPaths lists data objects under the prefix, skipping sidecars.
func (p *QiniuProber) ListPaths(prefix string, max int) ([]string, error) {
	entries, _, _, _, err := p.bucketManager().ListFiles(p.store.Bucket, objectKey(p.store, prefix), "", "", max)
	if err != nil {
		return nil, fmt.Errorf("failed to list objects on store %s: %w", p.store.Name, err)
	}

	var paths []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Key, InfoSidecarSuffix) {
			continue
		}
		paths = append(paths, storePathFromKey(p.store, entry.Key))
	}
	return paths, nil
}

// TestConnection verifies the bucket is reachable.
func (p *QiniuProber) TestConnection() error {
	if _, _, _, _, err := p.bucketManager().ListFiles(p.store.Bucket, "", "", "", 1); err != nil {
		return fmt.Errorf("failed to reach bucket %s on store %s: %w", p.store.Bucket, p.store.Name, err)
	}
	return nil
}

func (p *QiniuProber) bucketManager() *storage.BucketManager {
	return storage.NewBucketManager(p.mac, &storage.Config{
		Region: p.region,
	})
}
