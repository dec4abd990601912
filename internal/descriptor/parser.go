// Package descriptor parses structured task descriptors such as
// "2x Post + 1x Miniature + 1x Carousel 4p" into billable line items.
package descriptor

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ItemType is a recognized billable unit type.
type ItemType string

const (
	TypePost      ItemType = "Post"
	TypeMiniature ItemType = "Miniature"
	TypeCarousel  ItemType = "Carousel"
)

// DefaultCarouselPages applies for pricing when a carousel entry omits
// its page count. The label never carries the defaulted value.
const DefaultCarouselPages = 4

// LineItem is one parsed unit of billable work. Items are frozen at
// parent creation; the label is the item's identity within its parent.
type LineItem struct {
	Type     ItemType `json:"type"`
	Label    string   `json:"label"`
	Pages    int      `json:"pages,omitempty"` // 0 when not specified
	Position int      `json:"position"`
}

// PagesOrDefault returns the explicit page count, falling back to the
// carousel default for pricing purposes.
func (li LineItem) PagesOrDefault() int {
	if li.Pages > 0 {
		return li.Pages
	}
	if li.Type == TypeCarousel {
		return DefaultCarouselPages
	}
	return 0
}

var entryPattern = regexp.MustCompile(`^(?i)(?:(\d+)\s*x\s*)?([a-z]+)(?:\s+(\d+)\s*p)?$`)

var knownTypes = map[string]ItemType{
	"post":      TypePost,
	"miniature": TypeMiniature,
	"carousel":  TypeCarousel,
}

// Parse expands a descriptor into its ordered line items. Unrecognized
// entries are skipped rather than failing the whole descriptor; the
// caller sees fewer expected items than the author wrote. Given the
// same text the same list is produced every time.
func Parse(text string) []LineItem {
	items := make([]LineItem, 0)
	for _, raw := range strings.Split(text, "+") {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}

		match := entryPattern.FindStringSubmatch(entry)
		if match == nil {
			continue
		}

		itemType, ok := knownTypes[strings.ToLower(match[2])]
		if !ok {
			continue
		}

		qty := 1
		if match[1] != "" {
			parsed, err := strconv.Atoi(match[1])
			if err == nil && parsed > 0 {
				qty = parsed
			}
		}

		pages := 0
		if match[3] != "" {
			parsed, err := strconv.Atoi(match[3])
			if err == nil && parsed > 0 {
				pages = parsed
			}
		}

		for i := 1; i <= qty; i++ {
			items = append(items, LineItem{
				Type:     itemType,
				Label:    buildLabel(itemType, i, qty, pages),
				Pages:    pages,
				Position: len(items),
			})
		}
	}
	return items
}

// Labels returns the distinct labels in parse order.
func Labels(items []LineItem) []string {
	labels := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		if seen[item.Label] {
			continue
		}
		seen[item.Label] = true
		labels = append(labels, item.Label)
	}
	return labels
}

func buildLabel(itemType ItemType, ordinal, qty, pages int) string {
	label := string(itemType)
	if qty > 1 {
		label = fmt.Sprintf("%s %d", label, ordinal)
	}
	if pages > 0 {
		label = fmt.Sprintf("%s %dp", label, pages)
	}
	return label
}

var labelPattern = regexp.MustCompile(`^(?i)([a-z]+)(?:\s+\d+)?(?:\s+(\d+)\s*p)?$`)

// ParseLabel recovers the item type and explicit page count from a
// line item label. Earnings derivation uses this when a delivery row
// predates structured line items.
func ParseLabel(label string) (ItemType, int, bool) {
	match := labelPattern.FindStringSubmatch(strings.TrimSpace(label))
	if match == nil {
		return "", 0, false
	}
	itemType, ok := knownTypes[strings.ToLower(match[1])]
	if !ok {
		return "", 0, false
	}
	pages := 0
	if match[2] != "" {
		parsed, err := strconv.Atoi(match[2])
		if err == nil {
			pages = parsed
		}
	}
	return itemType, pages, true
}
