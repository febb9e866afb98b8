package core

// resolver.go rewrites opaque custom-field codes on boxes into display
// values. A FieldSchema is derived from one pipeline's metadata and applied
// to that pipeline's boxes; nothing is cached between calls.

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/JonMunkholm/streakflow/internal/streak"
)

// Defaults for FieldConfig.
const (
	DefaultPartnershipValueKey = "1001"
	DefaultPartnershipName     = "partnership"
	DefaultPartnerPageLiveName = "partner page live"

	// ResolvedSuffix is appended to the partnership value key to name the
	// injected label field ("1001_resolved").
	ResolvedSuffix = "_resolved"

	// PartnerPageLiveKey is the normalized boolean written on every box.
	PartnerPageLiveKey = "partnerPageLive"
)

// FieldConfig names the custom fields the resolver understands. Explicit
// keys take precedence over name matching.
type FieldConfig struct {
	// PartnershipValueKey is the box field holding the partnership option key.
	PartnershipValueKey string

	// PartnershipName is matched case-insensitively as a substring of field
	// names to find the field whose options label partnerships.
	PartnershipName string
	PartnershipKey  string

	// PartnerPageLiveName locates the checkbox normalized into
	// PartnerPageLiveKey.
	PartnerPageLiveName string
	PartnerPageLiveKey  string
}

// DefaultFieldConfig returns the field names used by the Techorama pipelines.
func DefaultFieldConfig() FieldConfig {
	return FieldConfig{
		PartnershipValueKey: DefaultPartnershipValueKey,
		PartnershipName:     DefaultPartnershipName,
		PartnerPageLiveName: DefaultPartnerPageLiveName,
	}
}

// Validate checks that every field can be located one way or another.
func (c FieldConfig) Validate() error {
	var errs []string
	if strings.TrimSpace(c.PartnershipValueKey) == "" {
		errs = append(errs, "partnership value key is empty")
	}
	if strings.TrimSpace(c.PartnershipName) == "" && strings.TrimSpace(c.PartnershipKey) == "" {
		errs = append(errs, "partnership field needs a name or a key")
	}
	if strings.TrimSpace(c.PartnerPageLiveName) == "" && strings.TrimSpace(c.PartnerPageLiveKey) == "" {
		errs = append(errs, "partner page live field needs a name or a key")
	}
	if len(errs) > 0 {
		return fmt.Errorf("field config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// ResolvedKey is the box field that receives the partnership label.
func (c FieldConfig) ResolvedKey() string {
	return c.PartnershipValueKey + ResolvedSuffix
}

// FieldSchema is the per-pipeline lookup derived from field definitions.
type FieldSchema struct {
	valueKey    string
	resolvedKey string

	// partnershipOptions maps option key to label. Empty when the pipeline
	// has no partnership field.
	partnershipOptions map[string]string

	// liveKey is the partner-page-live field key, "" when absent.
	liveKey string
}

// BuildSchema derives the lookup tables for pipeline p. It fails with
// ErrAmbiguousField when a name matches more than one field. A field that
// matches nothing is treated as absent.
func (c FieldConfig) BuildSchema(p *streak.Pipeline) (*FieldSchema, error) {
	s := &FieldSchema{
		valueKey:           c.PartnershipValueKey,
		resolvedKey:        c.ResolvedKey(),
		partnershipOptions: make(map[string]string),
	}
	if p == nil {
		return s, nil
	}

	partnership, err := findField(p.Fields, c.PartnershipKey, c.PartnershipName)
	if err != nil {
		return nil, fmt.Errorf("pipeline %s: %w", p.Key, err)
	}
	if partnership != nil {
		for _, opt := range partnership.Options() {
			s.partnershipOptions[opt.Key] = opt.Name
		}
	}

	live, err := findField(p.Fields, c.PartnerPageLiveKey, c.PartnerPageLiveName)
	if err != nil {
		return nil, fmt.Errorf("pipeline %s: %w", p.Key, err)
	}
	if live != nil {
		s.liveKey = live.Key
	}
	return s, nil
}

// findField returns the field with key when key is set, otherwise the single
// field whose name contains name (case-insensitive).
func findField(fields []streak.Field, key, name string) (*streak.Field, error) {
	if key = strings.TrimSpace(key); key != "" {
		for i := range fields {
			if fields[i].Key == key {
				return &fields[i], nil
			}
		}
		return nil, nil
	}

	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return nil, nil
	}
	var (
		match   *streak.Field
		matched []string
	)
	for i := range fields {
		if strings.Contains(strings.ToLower(fields[i].Name), needle) {
			if match == nil {
				match = &fields[i]
			}
			matched = append(matched, fields[i].Name)
		}
	}
	if len(matched) > 1 {
		return nil, fmt.Errorf("%w: %q matches %q", ErrAmbiguousField, name, matched)
	}
	return match, nil
}

// Apply resolves every box in place and returns the same slice. Boxes are
// independent and re-applying yields identical output.
func (s *FieldSchema) Apply(boxes []streak.Box) []streak.Box {
	for i := range boxes {
		s.applyOne(&boxes[i])
	}
	return boxes
}

func (s *FieldSchema) applyOne(b *streak.Box) {
	if b.Fields == nil {
		b.Fields = make(map[string]any)
	}

	if code, ok := optionKey(b.Fields[s.valueKey]); ok {
		if label, ok := s.partnershipOptions[code]; ok {
			b.Fields[s.resolvedKey] = label
		}
	}

	live := false
	if s.liveKey != "" {
		if raw, ok := b.Fields[s.liveKey]; ok {
			// Only a JSON true counts; "true", 1 and the like do not.
			v, isBool := raw.(bool)
			live = isBool && v
		}
	}
	b.Fields[PartnerPageLiveKey] = live
}

// optionKey renders a raw field value as an option key. Empty and
// non-scalar values yield false.
func optionKey(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, t != ""
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	default:
		return "", false
	}
}

// ResolveBoxes builds the schema for p and applies it to boxes. On error no
// box is modified.
func (c FieldConfig) ResolveBoxes(p *streak.Pipeline, boxes []streak.Box) ([]streak.Box, error) {
	schema, err := c.BuildSchema(p)
	if err != nil {
		return nil, err
	}
	return schema.Apply(boxes), nil
}
