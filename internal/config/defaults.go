package config

// Recognized configuration keys (see config.yaml in the workspace layout).
// Unknown keys are preserved on disk but otherwise ignored.
const (
	KeyIDPrefix          = "id.prefix"
	KeyIDMinHashLength   = "id.min_hash_length"
	KeyIDMaxHashLength   = "id.max_hash_length"
	KeyDefaultPriority   = "defaults.priority"
	KeyDefaultIssueType  = "defaults.issue_type"
	KeySyncAutoFlush     = "sync.auto_flush"
	KeySyncAutoImport    = "sync.auto_import"
	KeyOutputColor       = "output.color"
	KeyActor             = "actor"
)

// DefaultValues returns the default config map written by workspace init.
func DefaultValues() map[string]string {
	return map[string]string{
		KeyIDPrefix:         "bd",
		KeyIDMinHashLength:  "3",
		KeyIDMaxHashLength:  "8",
		KeyDefaultPriority:  "2",
		KeyDefaultIssueType: "task",
		KeySyncAutoFlush:    "true",
		KeySyncAutoImport:   "true",
		KeyOutputColor:      "true",
		KeyActor:            "${USER}",
	}
}

// ApplyDefaults fills any missing recognized keys in s with their default values.
func ApplyDefaults(s Store) error {
	defaults := DefaultValues()
	all := s.All()
	for k, v := range defaults {
		if _, exists := all[k]; !exists {
			if err := s.Set(k, v); err != nil {
				return err
			}
		}
	}
	return nil
}
