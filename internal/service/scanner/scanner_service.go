// Package scanner implements the background store scanner, which
// discovers files that appeared on stores outside the API and folds
// them into the catalog.
package scanner

import (
	"context"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/arrayops/librarian/config"
	"github.com/arrayops/librarian/internal/database"
	"github.com/arrayops/librarian/internal/errors"
	"github.com/arrayops/librarian/internal/logger"
	"github.com/arrayops/librarian/internal/service/catalog"
	"github.com/arrayops/librarian/internal/service/instance"
	storeservice "github.com/arrayops/librarian/internal/service/store"
)

// ScannerService periodically lists the configured prefixes of every
// available store and resolves unseen paths into File and FileInstance
// records. Resolution is idempotent, so rescanning a path that is
// already cataloged is a no-op.
type ScannerService interface {
	// Start launches the scan loop. It returns immediately; the loop
	// runs until Stop is called or ctx is canceled.
	Start(ctx context.Context)

	// Stop terminates the scan loop and waits for an in-flight round
	// to finish.
	Stop()
}

type scannerService struct {
	cfg       config.ScannerConfig
	source    string
	stores    storeservice.StoreService
	catalog   catalog.CatalogService
	instances instance.InstanceService

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewScannerService creates the scanner. source names this librarian
// and is stamped onto every File the scanner creates.
func NewScannerService(cfg config.ScannerConfig, source string, stores storeservice.StoreService, cat catalog.CatalogService, instances instance.InstanceService) ScannerService {
	return &scannerService{
		cfg:       cfg,
		source:    source,
		stores:    stores,
		catalog:   cat,
		instances: instances,
		stopCh:    make(chan struct{}),
	}
}

func (s *scannerService) Start(ctx context.Context) {
	interval := time.Duration(s.cfg.Interval) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		logger.Infof("store scanner started, scanning every %s", interval)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				logger.Info("store scanner stopped: context canceled")
				return
			case <-s.stopCh:
				logger.Info("store scanner stopped")
				return
			case <-ticker.C:
				s.scanAll()
			}
		}
	}()
}

func (s *scannerService) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	s.wg.Wait()
}

func (s *scannerService) scanAll() {
	stores, err := s.stores.ListStores()
	if err != nil {
		logger.Errorf("store scanner: failed to list stores: %v", err)
		return
	}

	prefixes := s.cfg.Prefixes
	if len(prefixes) == 0 {
		prefixes = []string{""}
	}

	for i := range stores {
		store := &stores[i]
		if !store.Available {
			continue
		}
		for _, prefix := range prefixes {
			s.scanPrefix(store, prefix)
		}
	}
}

func (s *scannerService) scanPrefix(store *database.Store, prefix string) {
	paths, err := s.stores.ListStorePaths(store, prefix, s.cfg.MaxKeys)
	if err != nil {
		logger.Warnf("store scanner: cannot list %s under %q: %v", store.Name, prefix, err)
		return
	}

	var created int
	for _, storePath := range paths {
		if strings.HasSuffix(storePath, storeservice.InfoSidecarSuffix) {
			continue
		}
		if s.resolvePath(store, storePath) {
			created++
		}
	}
	if created > 0 {
		logger.Infof("store scanner: cataloged %d new instances on %s under %q", created, store.Name, prefix)
	}
}

// resolvePath folds one discovered path into the catalog. It reports
// whether a new instance was recorded.
func (s *scannerService) resolvePath(store *database.Store, storePath string) bool {
	if _, err := s.catalog.ResolveFile(store, storePath, s.source, nil); err != nil {
		logger.Warnf("store scanner: cannot resolve %s:%s: %v", store.Name, storePath, err)
		return false
	}

	parentDirs := path.Dir(storePath)
	if parentDirs == "." {
		parentDirs = ""
	}
	name := path.Base(storePath)

	if _, err := s.instances.CreateInstance(store.Name, parentDirs, name); err != nil {
		// The copy was recorded on an earlier round.
		if errors.IsConflict(err) {
			return false
		}
		logger.Warnf("store scanner: cannot record instance %s:%s: %v", store.Name, storePath, err)
		return false
	}
	return true
}
