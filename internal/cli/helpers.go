package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/ppiankov/guardscan/internal/catalog"
	"github.com/ppiankov/guardscan/internal/classifier"
	"github.com/ppiankov/guardscan/internal/models"
	"github.com/ppiankov/guardscan/internal/storage"
)

// loadCatalog reads the catalog at path, or the built-in one when path is
// empty. Every failure is a *CatalogError.
func loadCatalog(path string) (*catalog.Catalog, error) {
	var (
		c   *catalog.Catalog
		err error
	)
	if path == "" {
		c, err = catalog.LoadDefault()
	} else {
		c, err = catalog.LoadFile(path)
	}
	if err != nil {
		return nil, &CatalogError{Path: path, Err: err}
	}
	logDebug("Loaded %d rule(s) from %s", c.Len(), catalogName(path))
	return c, nil
}

func catalogName(path string) string {
	if path == "" {
		return "built-in catalog"
	}
	return path
}

// openStorage resolves cfg.StorageDir into a local store
func openStorage() (*storage.LocalStorage, error) {
	storagePath, err := cfg.GetStoragePath()
	if err != nil {
		return nil, err
	}
	return storage.NewLocal(storagePath), nil
}

// openClassifier loads recorded labels from the local store
func openClassifier(store *storage.LocalStorage) (*classifier.Classifier, error) {
	return classifier.New(store, logger, classifier.WithActor(cfg.Actor))
}

// loadReport reads a report from path, or the latest stored run when path
// is empty
func loadReport(store *storage.LocalStorage, path string) (*models.Report, error) {
	if path != "" {
		return storage.LoadReportFile(path)
	}
	run, err := store.GetLatestRun()
	if err != nil {
		return nil, fmt.Errorf("no stored runs (run 'guardscan scan --store' first): %w", err)
	}
	return run.Report, nil
}

// openOutput returns stdout or a created file, and a close func
func openOutput(path string) (io.Writer, func() error, error) {
	if path == "" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f.Close, nil
}
