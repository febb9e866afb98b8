package core

import (
	"sort"
	"strings"

	"github.com/JonMunkholm/streakflow/internal/streak"
)

// UnassignedPartnership labels boxes without a resolved partnership.
const UnassignedPartnership = "Unassigned"

// partnershipRank orders the known partnership tiers; other labels sort
// alphabetically after them and Unassigned always comes last.
var partnershipRank = map[string]int{
	"Ultimate": 0,
	"Platinum": 1,
	"Gold":     2,
	"Silver":   3,
}

// BoxFilter narrows a box list. Zero values match everything.
type BoxFilter struct {
	// Query matches box name or notes, case-insensitive.
	Query string
	// Partnership matches the resolved label exactly (case-insensitive).
	Partnership string
	// PartnerPageLive, when set, matches the normalized flag.
	PartnerPageLive *bool
}

// Empty reports whether the filter matches everything.
func (f BoxFilter) Empty() bool {
	return strings.TrimSpace(f.Query) == "" && strings.TrimSpace(f.Partnership) == "" && f.PartnerPageLive == nil
}

// StageGroup is the boxes of one stage within a partnership group.
type StageGroup struct {
	StageKey  string       `json:"stageKey"`
	StageName string       `json:"stageName"`
	Boxes     []streak.Box `json:"boxes"`
}

// PartnershipGroup is the boxes sharing one partnership label.
type PartnershipGroup struct {
	Partnership string       `json:"partnership"`
	Count       int          `json:"count"`
	Stages      []StageGroup `json:"stages"`
}

// PartnershipLabel returns the resolved partnership of b under labelKey.
func PartnershipLabel(b streak.Box, labelKey string) string {
	if label, ok := b.Fields[labelKey].(string); ok && label != "" {
		return label
	}
	return UnassignedPartnership
}

// PartnerPageLive returns the normalized flag written by the resolver.
func PartnerPageLive(b streak.Box) bool {
	live, _ := b.Fields[PartnerPageLiveKey].(bool)
	return live
}

// FilterBoxes returns the boxes matching f, preserving order.
func FilterBoxes(boxes []streak.Box, f BoxFilter, labelKey string) []streak.Box {
	if f.Empty() {
		return boxes
	}
	q := strings.ToLower(strings.TrimSpace(f.Query))
	partnership := strings.TrimSpace(f.Partnership)

	out := make([]streak.Box, 0, len(boxes))
	for _, b := range boxes {
		if q != "" &&
			!strings.Contains(strings.ToLower(b.Name), q) &&
			!strings.Contains(strings.ToLower(b.Notes), q) {
			continue
		}
		if partnership != "" && !strings.EqualFold(PartnershipLabel(b, labelKey), partnership) {
			continue
		}
		if f.PartnerPageLive != nil && PartnerPageLive(b) != *f.PartnerPageLive {
			continue
		}
		out = append(out, b)
	}
	return out
}

// GroupBoxes groups boxes by partnership, then by stage in pipeline order.
// Boxes keep their input order within a stage.
func GroupBoxes(p *streak.Pipeline, boxes []streak.Box, labelKey string) []PartnershipGroup {
	byPartnership := make(map[string]map[string][]streak.Box)
	for _, b := range boxes {
		label := PartnershipLabel(b, labelKey)
		if byPartnership[label] == nil {
			byPartnership[label] = make(map[string][]streak.Box)
		}
		byPartnership[label][b.StageKey] = append(byPartnership[label][b.StageKey], b)
	}

	labels := make([]string, 0, len(byPartnership))
	for label := range byPartnership {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool { return partnershipLess(labels[i], labels[j]) })

	order := stageOrder(p, boxes)
	groups := make([]PartnershipGroup, 0, len(labels))
	for _, label := range labels {
		stages := byPartnership[label]
		g := PartnershipGroup{Partnership: label}
		for _, key := range order {
			sb, ok := stages[key]
			if !ok {
				continue
			}
			g.Stages = append(g.Stages, StageGroup{
				StageKey:  key,
				StageName: p.StageName(key),
				Boxes:     sb,
			})
			g.Count += len(sb)
		}
		groups = append(groups, g)
	}
	return groups
}

// stageOrder lists pipeline stages first, then stage keys only seen on
// boxes in first-seen order, then the empty key.
func stageOrder(p *streak.Pipeline, boxes []streak.Box) []string {
	order := p.OrderedStageKeys()
	seen := make(map[string]bool, len(order))
	for _, k := range order {
		seen[k] = true
	}
	hasEmpty := false
	for _, b := range boxes {
		if b.StageKey == "" {
			hasEmpty = true
			continue
		}
		if !seen[b.StageKey] {
			seen[b.StageKey] = true
			order = append(order, b.StageKey)
		}
	}
	if hasEmpty {
		order = append(order, "")
	}
	return order
}

func partnershipLess(a, b string) bool {
	if a == UnassignedPartnership || b == UnassignedPartnership {
		return b == UnassignedPartnership && a != UnassignedPartnership
	}
	ra, okA := partnershipRank[a]
	rb, okB := partnershipRank[b]
	switch {
	case okA && okB:
		return ra < rb
	case okA != okB:
		return okA
	default:
		return a < b
	}
}
