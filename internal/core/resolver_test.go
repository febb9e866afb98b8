package core

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/JonMunkholm/streakflow/internal/streak"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func partnershipPipeline() *streak.Pipeline {
	return &streak.Pipeline{
		Key:  "p1",
		Name: "Partners 2026",
		Fields: []streak.Field{
			{Key: "1001", Name: "Partnership Type", Type: "DROPDOWN", FieldOptions: []streak.FieldOption{
				{Key: "9001", Name: "Gold"},
				{Key: "9002", Name: "Silver"},
			}},
			{Key: "1002", Name: "Partner Page Live", Type: "CHECKBOX"},
			{Key: "1003", Name: "Notes for booth"},
		},
	}
}

func TestResolveBoxes(t *testing.T) {
	cfg := DefaultFieldConfig()
	boxes := []streak.Box{
		{Key: "b1", Fields: map[string]any{"1001": "9001", "1002": true}},
		{Key: "b2", Fields: map[string]any{"1001": "9002", "1002": false}},
		{Key: "b3", Fields: map[string]any{"1001": "7777"}},
		{Key: "b4"},
		{Key: "b5", Fields: map[string]any{"1002": "true"}},
	}

	got, err := cfg.ResolveBoxes(partnershipPipeline(), boxes)
	require.NoError(t, err)
	require.Len(t, got, 5)

	assert.Equal(t, "Gold", got[0].Fields["1001_resolved"])
	assert.Equal(t, true, got[0].Fields[PartnerPageLiveKey])
	assert.Equal(t, "9001", got[0].Fields["1001"], "raw value is kept")

	assert.Equal(t, "Silver", got[1].Fields["1001_resolved"])
	assert.Equal(t, false, got[1].Fields[PartnerPageLiveKey])

	_, resolved := got[2].Fields["1001_resolved"]
	assert.False(t, resolved, "unknown option leaves the label absent")

	require.NotNil(t, got[3].Fields)
	assert.Equal(t, false, got[3].Fields[PartnerPageLiveKey])

	assert.Equal(t, false, got[4].Fields[PartnerPageLiveKey], "only a JSON true counts")
}

func TestResolveBoxes_Idempotent(t *testing.T) {
	cfg := DefaultFieldConfig()
	boxes := []streak.Box{{Key: "b1", Fields: map[string]any{"1001": "9001", "1002": true}}}

	once, err := cfg.ResolveBoxes(partnershipPipeline(), boxes)
	require.NoError(t, err)
	first, _ := json.Marshal(once)

	twice, err := cfg.ResolveBoxes(partnershipPipeline(), once)
	require.NoError(t, err)
	second, _ := json.Marshal(twice)

	assert.JSONEq(t, string(first), string(second))
}

func TestResolveBoxes_NumericOptionKey(t *testing.T) {
	var box streak.Box
	require.NoError(t, json.Unmarshal([]byte(`{"key":"b1","fields":{"1001":9001}}`), &box))

	got, err := DefaultFieldConfig().ResolveBoxes(partnershipPipeline(), []streak.Box{box})
	require.NoError(t, err)
	assert.Equal(t, "Gold", got[0].Fields["1001_resolved"])
}

func TestResolveBoxes_DropdownSettingsFallback(t *testing.T) {
	p := &streak.Pipeline{
		Key: "p1",
		Fields: []streak.Field{{
			Key:  "1001",
			Name: "partnership",
			DropdownSettings: &streak.DropdownSettings{Items: []streak.FieldOption{
				{Key: "9003", Name: "Platinum"},
			}},
		}},
	}
	got, err := DefaultFieldConfig().ResolveBoxes(p, []streak.Box{{Key: "b", Fields: map[string]any{"1001": "9003"}}})
	require.NoError(t, err)
	assert.Equal(t, "Platinum", got[0].Fields["1001_resolved"])
}

func TestResolveBoxes_NoPartnershipField(t *testing.T) {
	p := &streak.Pipeline{Key: "p1", Fields: []streak.Field{{Key: "1003", Name: "Booth"}}}
	boxes := []streak.Box{{Key: "b", Fields: map[string]any{"1001": "9001"}}}

	got, err := DefaultFieldConfig().ResolveBoxes(p, boxes)
	require.NoError(t, err)
	_, ok := got[0].Fields["1001_resolved"]
	assert.False(t, ok)
	assert.Equal(t, false, got[0].Fields[PartnerPageLiveKey])
}

func TestResolveBoxes_AmbiguousName(t *testing.T) {
	p := partnershipPipeline()
	p.Fields = append(p.Fields, streak.Field{Key: "1009", Name: "Previous partnership"})
	boxes := []streak.Box{{Key: "b", Fields: map[string]any{"1001": "9001"}}}

	_, err := DefaultFieldConfig().ResolveBoxes(p, boxes)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAmbiguousField))
	_, touched := boxes[0].Fields[PartnerPageLiveKey]
	assert.False(t, touched, "boxes are left alone on error")
}

func TestResolveBoxes_ExplicitKeyBeatsName(t *testing.T) {
	p := partnershipPipeline()
	p.Fields = append(p.Fields, streak.Field{Key: "1009", Name: "Previous partnership", FieldOptions: []streak.FieldOption{
		{Key: "9001", Name: "Legacy Gold"},
	}})
	cfg := DefaultFieldConfig()
	cfg.PartnershipKey = "1009"

	got, err := cfg.ResolveBoxes(p, []streak.Box{{Key: "b", Fields: map[string]any{"1001": "9001"}}})
	require.NoError(t, err)
	assert.Equal(t, "Legacy Gold", got[0].Fields["1001_resolved"])
}

func TestFieldConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultFieldConfig().Validate())

	err := FieldConfig{}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "partnership value key is empty")
	assert.Contains(t, err.Error(), "partnership field needs a name or a key")
	assert.Contains(t, err.Error(), "partner page live field needs a name or a key")

	assert.NoError(t, FieldConfig{PartnershipValueKey: "1001", PartnershipKey: "1001", PartnerPageLiveKey: "1002"}.Validate())
}

func TestOptionKey(t *testing.T) {
	tests := []struct {
		in     any
		want   string
		wantOK bool
	}{
		{"9001", "9001", true},
		{"", "", false},
		{json.Number("9001"), "9001", true},
		{float64(9001), "9001", true},
		{9001, "9001", true},
		{int64(9001), "9001", true},
		{true, "", false},
		{nil, "", false},
		{[]any{"9001"}, "", false},
	}
	for _, tt := range tests {
		got, ok := optionKey(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("optionKey(%#v) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}
