package store

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/tencentyun/cos-go-sdk-v5"

	"github.com/arrayops/librarian/internal/database"
	"github.com/arrayops/librarian/internal/logger"
)

// TencentProber probes a Tencent COS backed store.
type TencentProber struct {
	client *cos.Client
	store  *database.Store
}

// NewTencentProber connects to the store's bucket.
func NewTencentProber(store *database.Store) (*TencentProber, error) {
	bucketURL := fmt.Sprintf("https://%s.cos.%s.myqcloud.com", store.Bucket, store.Region)
	if store.Endpoint != "" {
		bucketURL = store.Endpoint
	}

	u, err := url.Parse(bucketURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bucket URL for store %s: %w", store.Name, err)
	}

	client := cos.NewClient(&cos.BaseURL{BucketURL: u}, &http.Client{
		Transport: &cos.AuthorizationTransport{
			SecretID:  store.AccessKey,
			SecretKey: store.SecretKey,
		},
	})

	return &TencentProber{
		client: client,
		store:  store,
	}, nil
}

// GetInfoForPath reads the sidecar info object and the data object's
// Content-Length.
func (p *TencentProber) GetInfoForPath(storePath string) (*FileInfo, error) {
	key := objectKey(p.store, storePath)
	logger.Debugf("[tencent:%s] probing %s", p.store.Name, key)

	resp, err := p.client.Object.Get(context.Background(), key+InfoSidecarSuffix, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get info sidecar for %s on store %s: %w", storePath, p.store.Name, err)
	}
	defer resp.Body.Close()

	info, err := decodeSidecar(resp.Body, p.store.Name, storePath)
	if err != nil {
		return nil, err
	}

	head, err := p.client.Object.Head(context.Background(), key, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to head %s on store %s: %w", storePath, p.store.Name, err)
	}
	info.Size = head.ContentLength

	return info, nil
}

// ListPaths lists data objects under the prefix, skipping sidecars.
func (p *TencentProber) ListPaths(prefix string, max int) ([]string, error) {
	result, _, err := p.client.Bucket.Get(context.Background(), &cos.BucketGetOptions{
		Prefix:  objectKey(p.store, prefix),
		MaxKeys: max,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list objects on store %s: %w", p.store.Name, err)
	}

	var paths []string
	for _, object := range result.Contents {
		if strings.HasSuffix(object.Key, InfoSidecarSuffix) {
			continue
		}
		paths = append(paths, storePathFromKey(p.store, object.Key))
	}
	return paths, nil
}

// TestConnection verifies the bucket is reachable.
func (p *TencentProber) TestConnection() error {
	if _, err := p.client.Bucket.Head(context.Background()); err != nil {
		return fmt.Errorf("failed to reach bucket %s on store %s: %w", p.store.Bucket, p.store.Name, err)
	}
	return nil
}
