package service

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
)

// SourceService lists the data files the feature service loads.
type SourceService struct {
	dataDir string
}

// NewSourceService creates a new source service.
func NewSourceService(dataDir string) *SourceService {
	return &SourceService{dataDir: dataDir}
}

// Source file locations, relative to the data directory.
const (
	sectionsDir = "sources"
	countersDir = "counters"
)

// List returns all available source files. counts maps a file name to the
// number of features it contributed, when known.
func (s *SourceService) List(counts map[string]int) ([]SourceFile, error) {
	var files []SourceFile

	for _, dir := range []struct{ name, fileType, ext string }{
		{sectionsDir, "GeoJSON", ".geojson"},
		{countersDir, "Counter", ".json"},
	} {
		root := filepath.Join(s.dataDir, dir.name)
		err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				if os.IsNotExist(err) {
					return filepath.SkipDir
				}
				return err
			}
			if d.IsDir() || strings.ToLower(filepath.Ext(path)) != dir.ext {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return nil
			}
			rel, _ := filepath.Rel(s.dataDir, path)
			rel = filepath.ToSlash(rel)
			files = append(files, SourceFile{
				Name:     rel,
				Size:     humanize.Bytes(uint64(info.Size())),
				FileType: dir.fileType,
				Features: counts[rel],
			})
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	if files == nil {
		files = []SourceFile{}
	}
	return files, nil
}

// DataDir returns the data directory.
func (s *SourceService) DataDir() string {
	return s.dataDir
}
