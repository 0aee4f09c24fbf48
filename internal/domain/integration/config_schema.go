package integration

// FieldType is the value type of a configuration field
type FieldType string

const (
	FieldTypeString  FieldType = "string"
	FieldTypeNumber  FieldType = "number"
	FieldTypeBoolean FieldType = "boolean"
	FieldTypeSelect  FieldType = "select"
	FieldTypeSecret  FieldType = "secret"
	FieldTypeURL     FieldType = "url"
)

// IsValid checks if the field type is valid
func (t FieldType) IsValid() bool {
	switch t {
	case FieldTypeString, FieldTypeNumber, FieldTypeBoolean, FieldTypeSelect, FieldTypeSecret, FieldTypeURL:
		return true
	default:
		return false
	}
}

// ConfigField describes one configuration value an integration accepts
type ConfigField struct {
	Key         string    `json:"key" toml:"key" validate:"required,max=64"`
	Label       string    `json:"label" toml:"label"`
	Type        FieldType `json:"type" toml:"type" validate:"required"`
	Required    bool      `json:"required" toml:"required"`
	Default     any       `json:"default,omitempty" toml:"default"`
	Options     []string  `json:"options,omitempty" toml:"options"`
	Description string    `json:"description,omitempty" toml:"description"`
}
