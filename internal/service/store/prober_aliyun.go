package store

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"

	"github.com/arrayops/librarian/internal/database"
	"github.com/arrayops/librarian/internal/logger"
)

// AliyunProber probes an Aliyun OSS backed store. Object size comes
// from the object metadata; the remaining fields come from the sidecar
// info object written next to each data product.
type AliyunProber struct {
	client *oss.Client
	bucket *oss.Bucket
	store  *database.Store
}

// NewAliyunProber connects to the store's bucket.
func NewAliyunProber(store *database.Store) (*AliyunProber, error) {
	endpoint := store.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://oss-%s.aliyuncs.com", store.Region)
	}

	client, err := oss.New(endpoint, store.AccessKey, store.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create aliyun oss client for store %s: %w", store.Name, err)
	}

	bucket, err := client.Bucket(store.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to get bucket %s for store %s: %w", store.Bucket, store.Name, err)
	}

	return &AliyunProber{
		client: client,
		bucket: bucket,
		store:  store,
	}, nil
}

// GetInfoForPath reads the sidecar info object and the data object's
// Content-Length.
func (p *AliyunProber) GetInfoForPath(storePath string) (*FileInfo, error) {
	key := objectKey(p.store, storePath)
	logger.Debugf("[aliyun:%s] probing %s", p.store.Name, key)

	body, err := p.bucket.GetObject(key + InfoSidecarSuffix)
	if err != nil {
		return nil, fmt.Errorf("failed to get info sidecar for %s on store %s: %w", storePath, p.store.Name, err)
	}
	defer body.Close()

	info, err := decodeSidecar(body, p.store.Name, storePath)
	if err != nil {
		return nil, err
	}

	meta, err := p.bucket.GetObjectMeta(key)
	if err != nil {
		return nil, fmt.Errorf("failed to get object meta for %s on store %s: %w", storePath, p.store.Name, err)
	}
	if sizeStr := meta.Get("Content-Length"); sizeStr != "" {
		size, err := strconv.ParseInt(sizeStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed content length %q for %s on store %s", sizeStr, storePath, p.store.Name)
		}
		info.Size = size
	}

	return info, nil
}

// ListPaths lists data objects under the prefix, skipping sidecars.
func (p *AliyunProber) ListPaths(prefix string, max int) ([]string, error) {
	lsRes, err := p.bucket.ListObjects(
		oss.Prefix(objectKey(p.store, prefix)),
		oss.MaxKeys(max),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list objects on store %s: %w", p.store.Name, err)
	}

	var paths []string
	for _, object := range lsRes.Objects {
		if strings.HasSuffix(object.Key, InfoSidecarSuffix) {
			continue
		}
		paths = append(paths, storePathFromKey(p.store, object.Key))
	}
	return paths, nil
}

// TestConnection verifies the bucket is reachable.
func (p *AliyunProber) TestConnection() error {
	if _, err := p.client.GetBucketInfo(p.store.Bucket); err != nil {
		return fmt.Errorf("failed to reach bucket %s on store %s: %w", p.store.Bucket, p.store.Name, err)
	}
	return nil
}

// decodeSidecar parses a sidecar info object.
func decodeSidecar(r io.Reader, storeName, storePath string) (*FileInfo, error) {
	var info FileInfo
	if err := json.NewDecoder(r).Decode(&info); err != nil {
		return nil, fmt.Errorf("malformed info sidecar from store %s for %s: %w", storeName, storePath, err)
	}
	return &info, nil
}
