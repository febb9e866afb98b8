package streak

import (
	"bytes"
	"encoding/json"
	"sort"
)

// Pipeline is a Streak pipeline with its stage map and field definitions.
type Pipeline struct {
	Key                  string           `json:"key"`
	Name                 string           `json:"name"`
	Description          string           `json:"description,omitempty"`
	CreationDate         int64            `json:"creationDate,omitempty"`
	LastUpdatedTimestamp int64            `json:"lastUpdatedTimestamp,omitempty"`
	Stages               map[string]Stage `json:"stages,omitempty"`
	StageOrder           []string         `json:"stageOrder,omitempty"`
	Fields               []Field          `json:"fields,omitempty"`

	// Tenant is filled in by this service, never by Streak.
	Tenant string `json:"tenant,omitempty"`
}

// Stage is one step of a pipeline.
type Stage struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// StageName returns the display name for stageKey, the key itself when
// the stage is unknown, or "Unknown Stage" when stageKey is empty.
func (p *Pipeline) StageName(stageKey string) string {
	if stageKey == "" {
		return "Unknown Stage"
	}
	if s, ok := p.Stages[stageKey]; ok && s.Name != "" {
		return s.Name
	}
	return stageKey
}

// OrderedStageKeys returns stage keys in pipeline order. Stages missing
// from StageOrder follow in key order.
func (p *Pipeline) OrderedStageKeys() []string {
	seen := make(map[string]bool, len(p.Stages))
	keys := make([]string, 0, len(p.Stages))
	for _, k := range p.StageOrder {
		if _, ok := p.Stages[k]; ok && !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	rest := make([]string, 0)
	for k := range p.Stages {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

// Field is a custom field definition.
type Field struct {
	Key              string            `json:"key"`
	Name             string            `json:"name"`
	Type             string            `json:"type,omitempty"`
	FieldOptions     []FieldOption     `json:"fieldOptions,omitempty"`
	DropdownSettings *DropdownSettings `json:"dropdownSettings,omitempty"`
}

// FieldOption is a key to label pair of a dropdown field.
type FieldOption struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// DropdownSettings is Streak's native container for dropdown options.
type DropdownSettings struct {
	Items []FieldOption `json:"items,omitempty"`
}

// Options returns the field's options, preferring fieldOptions over
// dropdownSettings.items.
func (f Field) Options() []FieldOption {
	if len(f.FieldOptions) > 0 {
		return f.FieldOptions
	}
	if f.DropdownSettings != nil {
		return f.DropdownSettings.Items
	}
	return nil
}

// Contact is a person attached to a box.
type Contact struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// Box is a deal record. Fields maps field keys to raw values (numbers are
// decoded as json.Number). Attributes this type does not model are kept in
// Extra and written back out unchanged.
type Box struct {
	Key                  string         `json:"key"`
	Name                 string         `json:"name"`
	Notes                string         `json:"notes,omitempty"`
	StageKey             string         `json:"stageKey,omitempty"`
	PipelineKey          string         `json:"pipelineKey,omitempty"`
	LastUpdatedTimestamp int64          `json:"lastUpdatedTimestamp,omitempty"`
	Fields               map[string]any `json:"fields,omitempty"`
	Contacts             []Contact      `json:"contacts,omitempty"`
	EmailAddresses       []string       `json:"emailAddresses,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

var boxKnownKeys = []string{
	"key", "name", "notes", "stageKey", "pipelineKey",
	"lastUpdatedTimestamp", "fields", "contacts", "emailAddresses",
}

// UnmarshalJSON decodes a box, keeping unmodelled attributes in Extra.
func (b *Box) UnmarshalJSON(data []byte) error {
	type plain Box
	var p plain
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&p); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for _, k := range boxKnownKeys {
		delete(raw, k)
	}
	if len(raw) > 0 {
		p.Extra = raw
	}

	*b = Box(p)
	return nil
}

// MarshalJSON encodes the box including Extra attributes. Modelled
// attributes win over Extra entries of the same name.
func (b Box) MarshalJSON() ([]byte, error) {
	type plain Box
	data, err := json.Marshal(plain(b))
	if err != nil || len(b.Extra) == 0 {
		return data, err
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	for k, v := range b.Extra {
		if _, ok := merged[k]; !ok {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}
