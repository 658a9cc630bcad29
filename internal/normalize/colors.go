package normalize

import (
	"regexp"
	"strings"
)

// DefaultColor is used when no emotion keyword matches.
const DefaultColor = "#9CA3AF"

type colorKeyword struct {
	keyword string
	color   string
}

// emotionColors is checked in order; the first keyword contained in the
// lower-cased emotion name wins.
var emotionColors = []colorKeyword{
	{"overwhelm", "#7C3AED"},
	{"frustrat", "#EF4444"},
	{"anger", "#DC2626"},
	{"angry", "#DC2626"},
	{"irritat", "#F87171"},
	{"anxi", "#F59E0B"},
	{"worr", "#FBBF24"},
	{"nervous", "#FBBF24"},
	{"stress", "#F97316"},
	{"fear", "#B45309"},
	{"scared", "#B45309"},
	{"unhapp", "#3B82F6"},
	{"sad", "#3B82F6"},
	{"grief", "#1E40AF"},
	{"lonel", "#6366F1"},
	{"disappoint", "#60A5FA"},
	{"guilt", "#78716C"},
	{"shame", "#57534E"},
	{"tired", "#94A3B8"},
	{"exhaust", "#64748B"},
	{"bored", "#A8A29E"},
	{"confus", "#A78BFA"},
	{"nostalg", "#C084FC"},
	{"joy", "#FACC15"},
	{"happ", "#FDE047"},
	{"excite", "#FB923C"},
	{"proud", "#F472B6"},
	{"love", "#EC4899"},
	{"grate", "#22C55E"},
	{"thankful", "#22C55E"},
	{"hope", "#10B981"},
	{"optimis", "#34D399"},
	{"calm", "#06B6D4"},
	{"peace", "#67E8F9"},
	{"relie", "#2DD4BF"},
	{"content", "#14B8A6"},
	{"curio", "#8B5CF6"},
	{"motivat", "#F97316"},
	{"determin", "#EA580C"},
	{"confiden", "#0EA5E9"},
}

var hexColorPattern = regexp.MustCompile(`^#?([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// ColorFor returns the color for an emotion name by case-insensitive keyword match.
func ColorFor(name string) string {
	lower := strings.ToLower(name)
	for _, kc := range emotionColors {
		if strings.Contains(lower, kc.keyword) {
			return kc.color
		}
	}
	return DefaultColor
}

// normalizeHex returns a "#"-prefixed hex color, or false when s is not one.
func normalizeHex(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if !hexColorPattern.MatchString(s) {
		return "", false
	}
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	return s, true
}
