package service

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-velo/internal/mapview"
)

// FeatureService loads the cycling network from the data directory and
// serves filtered feature collections.
type FeatureService struct {
	dataDir string
	logger  *slog.Logger

	mu       sync.RWMutex
	features []*geojson.Feature
	perFile  map[string]int
	records  []CounterRecord
	cache    *lru.Cache[string, *geojson.FeatureCollection]
}

// NewFeatureService creates a feature service and loads the data directory.
func NewFeatureService(dataDir string) (*FeatureService, error) {
	cache, err := lru.New[string, *geojson.FeatureCollection](64)
	if err != nil {
		return nil, err
	}
	s := &FeatureService{
		dataDir: dataDir,
		logger:  slog.With("svc", "features"),
		cache:   cache,
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload rereads every section and counter file.
func (s *FeatureService) Reload() error {
	var features []*geojson.Feature
	perFile := make(map[string]int)

	sections, err := s.walk(sectionsDir, ".geojson")
	if err != nil {
		return err
	}
	for _, path := range sections {
		fc, err := readCollection(path)
		if err != nil {
			return err
		}
		features = append(features, fc.Features...)
		perFile[s.rel(path)] = len(fc.Features)
	}

	counterFiles, err := s.walk(countersDir, ".json")
	if err != nil {
		return err
	}
	var records []CounterRecord
	for _, path := range counterFiles {
		rec, err := readCounter(path)
		if err != nil {
			return err
		}
		if rec.Path == "" {
			rec.Path = counterPath(s.rel(path))
		}
		records = append(records, rec)
		features = append(features, rec.Feature())
		perFile[s.rel(path)] = 1
	}

	s.mu.Lock()
	s.features = features
	s.perFile = perFile
	s.records = records
	s.cache.Purge()
	s.mu.Unlock()

	s.logger.Info("Loaded features", "files", len(perFile), "features", len(features), "counters", len(records))
	return nil
}

func (s *FeatureService) rel(path string) string {
	rel, err := filepath.Rel(s.dataDir, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

// walk lists files with ext under dataDir/dir in lexical order.
func (s *FeatureService) walk(dir, ext string) ([]string, error) {
	var paths []string
	root := filepath.Join(s.dataDir, dir)
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipDir
			}
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ext) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}
	return paths, nil
}

func readCollection(path string) (*geojson.FeatureCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return fc, nil
}

func readCounter(path string) (CounterRecord, error) {
	var rec CounterRecord
	data, err := os.ReadFile(path)
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("parsing %s: %w", path, err)
	}
	return rec, nil
}

// counterPath derives the page path of a counter from its file name.
func counterPath(rel string) string {
	return "/" + strings.TrimSuffix(rel, filepath.Ext(rel))
}

// Feature converts a counter record to a counter point feature.
func (r CounterRecord) Feature() *geojson.Feature {
	f := geojson.NewFeature(orb.Point{r.Coordinates[0], r.Coordinates[1]})
	kind := r.Type
	if kind == "" {
		kind = string(mapview.KindCounter)
	}
	f.Properties[mapview.PropType] = kind
	f.Properties[mapview.PropName] = r.Name
	f.Properties[mapview.PropIDPdc] = r.IDPdc
	f.Properties[mapview.PropCounts] = slices.Clone(r.Counts)
	if r.Description != "" {
		f.Properties["description"] = r.Description
	}
	if r.Neighbor != nil {
		f.Properties[mapview.PropNeighbor] = *r.Neighbor
	}
	if r.Path != "" {
		f.Properties[mapview.PropLink] = r.Path
	}
	return f
}

// Collection returns the features matching filter. Results are cached per
// filter until the next Reload.
func (s *FeatureService) Collection(filter FeatureFilter) *geojson.FeatureCollection {
	key := filterKey(filter)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if fc, ok := s.cache.Get(key); ok {
		return fc
	}

	fc := geojson.NewFeatureCollection()
	for _, f := range s.features {
		if keep(f, filter) {
			fc.Append(f)
		}
	}
	s.cache.Add(key, fc)
	return fc
}

func keep(f *geojson.Feature, filter FeatureFilter) bool {
	if mapview.IsLineString(f) {
		if len(filter.Status) > 0 && !slices.Contains(filter.Status, string(mapview.StatusOf(f))) {
			return false
		}
		if len(filter.Line) > 0 && !slices.Contains(filter.Line, mapview.LineOf(f)) {
			return false
		}
		return true
	}
	if kind, ok := mapview.KindOf(f); ok && kind == mapview.KindViewpoint && len(filter.Line) > 0 {
		return slices.Contains(filter.Line, mapview.LineOf(f))
	}
	return true
}

func filterKey(filter FeatureFilter) string {
	status := slices.Clone(filter.Status)
	slices.Sort(status)
	lines := make([]string, len(filter.Line))
	for i, l := range filter.Line {
		lines[i] = strconv.Itoa(l)
	}
	slices.Sort(lines)
	return strings.Join(status, ",") + "|" + strings.Join(lines, ",")
}

// Counters returns the counter features ranked by their latest count.
func (s *FeatureService) Counters(top int) []*geojson.Feature {
	s.mu.RLock()
	var counters []*geojson.Feature
	for _, f := range s.features {
		if kind, ok := mapview.KindOf(f); ok && kind == mapview.KindCounter {
			counters = append(counters, f)
		}
	}
	s.mu.RUnlock()
	return mapview.RankCounters(counters, top)
}

// Records returns the loaded counter records.
func (s *FeatureService) Records() []CounterRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.records)
}

// Sections returns every line section.
func (s *FeatureService) Sections() []*geojson.Feature {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*geojson.Feature
	for _, f := range s.features {
		if mapview.IsLineString(f) {
			out = append(out, f)
		}
	}
	return out
}

// FileCounts maps each loaded file to the number of features it holds.
func (s *FeatureService) FileCounts() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int, len(s.perFile))
	for k, v := range s.perFile {
		out[k] = v
	}
	return out
}
