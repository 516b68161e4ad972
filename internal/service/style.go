package service

import (
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-velo/internal/mapview"
)

// StyleService manages the map style configuration stored in styles.yaml.
type StyleService struct {
	dataDir string
	bus     *EventBus
	logger  *slog.Logger
	config  StyleConfig
	mu      sync.RWMutex
}

// NewStyleService creates a new style service. bus may be nil.
func NewStyleService(dataDir string, bus *EventBus) *StyleService {
	s := &StyleService{
		dataDir: dataDir,
		bus:     bus,
		logger:  slog.With("svc", "styles"),
		config:  DefaultStyleConfig(),
	}
	s.loadFromDisk()
	return s
}

// DefaultStyleConfig is used until styles.yaml provides values.
func DefaultStyleConfig() StyleConfig {
	return StyleConfig{
		Lines: LinesConfig{
			Colors:   slices.Clone(mapview.DefaultPalette),
			Priority: slices.Clone(mapview.DefaultPriority),
		},
		Counters: CountersConfig{Top: mapview.DefaultTopCounters},
		Layers:   map[string]LayerStyle{},
	}
}

// Config returns a copy of the configuration.
func (s *StyleService) Config() StyleConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := s.config
	c.Lines.Colors = slices.Clone(c.Lines.Colors)
	c.Lines.Priority = slices.Clone(c.Lines.Priority)
	c.Layers = maps.Clone(c.Layers)
	return c
}

// Composer returns composer options reflecting the configuration.
func (s *StyleService) Composer() mapview.Options {
	c := s.Config()
	overrides := make(map[string]mapview.LayerOverride, len(c.Layers))
	for id, l := range c.Layers {
		overrides[id] = l.LayerOverride
	}
	return mapview.Options{
		Classifier: mapview.Classifier{
			Priority: c.Lines.Priority,
			Colors:   mapview.Palette(c.Lines.Colors),
		},
		Overrides:   overrides,
		TopCounters: c.Counters.Top,
	}
}

// List returns all layer style overrides.
func (s *StyleService) List() map[string]LayerStyle {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]LayerStyle, len(s.config.Layers))
	for k, v := range s.config.Layers {
		v.ID = k
		result[k] = v
	}
	return result
}

// Get returns a layer style override by layer ID.
func (s *StyleService) Get(id string) (LayerStyle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.config.Layers[id]
	l.ID = id
	return l, ok
}

// Put creates or replaces the override of a layer.
func (s *StyleService) Put(id string, l LayerStyle) (LayerStyle, error) {
	if id == "" {
		return LayerStyle{}, fmt.Errorf("layer id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, existed := s.config.Layers[id]
	l.ID = id
	if s.config.Layers == nil {
		s.config.Layers = make(map[string]LayerStyle)
	}
	s.config.Layers[id] = l
	if err := s.saveToDisk(); err != nil {
		return LayerStyle{}, err
	}

	action := "created"
	if existed {
		action = "updated"
	}
	s.publish(action, id)
	return l, nil
}

// Delete removes the override of a layer.
func (s *StyleService) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.config.Layers[id]; !exists {
		return fmt.Errorf("layer %q: %w", id, ErrLayerNotFound)
	}

	delete(s.config.Layers, id)
	if err := s.saveToDisk(); err != nil {
		return err
	}
	s.publish("deleted", id)
	return nil
}

// SetLines replaces the palette and line priority.
func (s *StyleService) SetLines(lines LinesConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(lines.Colors) == 0 {
		lines.Colors = slices.Clone(mapview.DefaultPalette)
	}
	s.config.Lines = lines
	if err := s.saveToDisk(); err != nil {
		return err
	}
	s.publish("updated", "lines")
	return nil
}

func (s *StyleService) publish(action, id string) {
	if s.bus != nil {
		s.bus.Publish(Event{Resource: "styles", Action: action, ID: id})
	}
}

// configFile returns the path to the styles config file.
func (s *StyleService) configFile() string {
	return filepath.Join(s.dataDir, "styles.yaml")
}

// loadFromDisk merges styles.yaml over the defaults.
func (s *StyleService) loadFromDisk() {
	data, err := os.ReadFile(s.configFile())
	if err != nil {
		return // File doesn't exist yet, keep defaults
	}

	var c StyleConfig
	if err := yaml.Unmarshal(data, &c); err != nil {
		s.logger.Error("Invalid styles.yaml, using defaults", "error", err)
		return
	}
	if len(c.Lines.Colors) > 0 {
		s.config.Lines.Colors = c.Lines.Colors
	}
	if c.Lines.Priority != nil {
		s.config.Lines.Priority = c.Lines.Priority
	}
	if c.Counters.Top > 0 {
		s.config.Counters.Top = c.Counters.Top
	}
	if c.Layers != nil {
		s.config.Layers = c.Layers
	}
}

// saveToDisk persists the configuration.
func (s *StyleService) saveToDisk() error {
	if err := os.MkdirAll(s.dataDir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(s.config)
	if err != nil {
		return err
	}

	return os.WriteFile(s.configFile(), data, 0644)
}
