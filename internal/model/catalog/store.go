package catalog

// Store exposes the selectable models and themes.
type Store interface {
	Models() []ModelOption
	DefaultModel() ModelOption
	FindModel(id string) (ModelOption, bool)
	Themes() []Theme
	FindTheme(id string) (Theme, bool)
}

// MemoryStore implements Store with fixed in-memory slices.
type MemoryStore struct {
	models []ModelOption
	themes []Theme
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied entries.
// When models is empty the DefaultModelIDs are used.
func NewMemoryStore(models []ModelOption, themes []Theme) *MemoryStore {
	if len(models) == 0 {
		models = ModelsFromIDs(DefaultModelIDs)
	}
	return &MemoryStore{
		models: append([]ModelOption(nil), models...),
		themes: append([]Theme(nil), themes...),
	}
}

// Models returns the model list; the first entry is the default.
func (s *MemoryStore) Models() []ModelOption {
	return append([]ModelOption(nil), s.models...)
}

// DefaultModel returns the first configured model.
func (s *MemoryStore) DefaultModel() ModelOption {
	return s.models[0]
}

// FindModel looks up a model by identifier.
func (s *MemoryStore) FindModel(id string) (ModelOption, bool) {
	for _, item := range s.models {
		if item.ID == id {
			return item, true
		}
	}
	return ModelOption{}, false
}

// Themes returns the theme list.
func (s *MemoryStore) Themes() []Theme {
	return append([]Theme(nil), s.themes...)
}

// FindTheme looks up a theme by identifier.
func (s *MemoryStore) FindTheme(id string) (Theme, bool) {
	for _, item := range s.themes {
		if item.ID == id {
			return item, true
		}
	}
	return Theme{}, false
}
