package domain

import (
	"github.com/smallbiznis/prooflink/internal/descriptor"
)

// Flat rates in account currency units. Carousels price per page pair.
const (
	RatePost      = 40
	RateMiniature = 40
	RatePerSpread = 40
)

// PriceFor prices one line item by type and page count.
func PriceFor(itemType descriptor.ItemType, pages int) int {
	switch itemType {
	case descriptor.TypePost:
		return RatePost
	case descriptor.TypeMiniature:
		return RateMiniature
	case descriptor.TypeCarousel:
		if pages <= 0 {
			pages = descriptor.DefaultCarouselPages
		}
		return (pages / 2) * RatePerSpread
	}
	return 0
}

// PriceForLabel re-derives type and pages from the label text. The
// parent_line_items row is the primary source; this is the fallback for
// rows whose parent predates structured line items.
func PriceForLabel(label string) int {
	itemType, pages, ok := descriptor.ParseLabel(label)
	if !ok {
		return 0
	}
	return PriceFor(itemType, pages)
}
