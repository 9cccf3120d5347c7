package catalog

// ModelOption is one selectable completion model.
type ModelOption struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// DefaultModelIDs lists the models offered when none are configured.
var DefaultModelIDs = []string{"gemini-1.5-flash", "gemini-1.5-pro"}

// ModelsFromIDs turns identifiers into options, dropping blanks and duplicates.
func ModelsFromIDs(ids []string) []ModelOption {
	seen := make(map[string]struct{}, len(ids))
	options := make([]ModelOption, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		options = append(options, ModelOption{ID: id, Label: id})
	}
	return options
}
