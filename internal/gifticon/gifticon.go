// Package gifticon stores vouchers, their images and their lifecycle
// (available, used, expired, trashed) and serves them over HTTP.
package gifticon

import (
	"fmt"
	"sort"
	"time"
)

// Status is the lifecycle state of a gifticon at a point in time
type Status string

const (
	StatusAvailable Status = "available"
	StatusUsed      Status = "used"
	StatusExpired   Status = "expired"
)

// Gifticon represents a stored voucher with metadata
type Gifticon struct {
	ID             string     `json:"id"`
	Brand          string     `json:"brand" validate:"required"`
	ProductName    string     `json:"product_name" validate:"required"`
	ExpirationDate time.Time  `json:"expiration_date"`
	IsUsed         bool       `json:"is_used"`
	ImagePath      string     `json:"image_path,omitempty"`
	ContentType    string     `json:"content_type,omitempty"`
	Price          *int       `json:"price,omitempty" validate:"omitempty,gte=0"`          // Price in won
	OriginalPrice  *int       `json:"original_price,omitempty" validate:"omitempty,gte=0"` // Price before discount, in won
	Barcode        string     `json:"barcode,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	TrashedAt      *time.Time `json:"trashed_at,omitempty"`
}

// NewGifticon creates an unused gifticon. ID and timestamps are assigned
// when the Service saves it.
func NewGifticon(brand, productName string, expirationDate time.Time, imagePath string) *Gifticon {
	return &Gifticon{
		Brand:          brand,
		ProductName:    productName,
		ExpirationDate: expirationDate,
		ImagePath:      imagePath,
	}
}

// Status reports whether the gifticon is available, used or expired at now.
// A voucher expires at the exact ExpirationDate instant.
func (g *Gifticon) Status(now time.Time) Status {
	switch {
	case g.IsUsed:
		return StatusUsed
	case !g.ExpirationDate.After(now):
		return StatusExpired
	default:
		return StatusAvailable
	}
}

// IsAvailable reports whether the gifticon can still be redeemed
func (g *Gifticon) IsAvailable(now time.Time) bool {
	return g.Status(now) == StatusAvailable
}

// IsUsedOrExpired is the complement of IsAvailable
func (g *Gifticon) IsUsedOrExpired(now time.Time) bool {
	return !g.IsAvailable(now)
}

// StatusFilter narrows the used/expired view
type StatusFilter string

const (
	FilterAll     StatusFilter = "all"
	FilterUsed    StatusFilter = "used"
	FilterExpired StatusFilter = "expired"
)

// ParseStatusFilter parses a filter name; empty means FilterAll
func ParseStatusFilter(s string) (StatusFilter, error) {
	switch StatusFilter(s) {
	case "", FilterAll:
		return FilterAll, nil
	case FilterUsed, FilterExpired:
		return StatusFilter(s), nil
	}
	return "", fmt.Errorf("%w: unknown status filter %q", ErrInvalid, s)
}

func (f StatusFilter) matches(g *Gifticon, now time.Time) bool {
	switch f {
	case FilterUsed:
		return g.Status(now) == StatusUsed
	case FilterExpired:
		return g.Status(now) == StatusExpired
	default:
		return g.IsUsedOrExpired(now)
	}
}

// SortOrder orders gifticons by expiration date
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// ParseSortOrder parses a sort order; empty means def
func ParseSortOrder(s string, def SortOrder) (SortOrder, error) {
	switch SortOrder(s) {
	case "":
		return def, nil
	case SortAsc, SortDesc:
		return SortOrder(s), nil
	}
	return "", fmt.Errorf("%w: unknown sort order %q", ErrInvalid, s)
}

// Partition splits gifticons into the available and used/expired views.
// Every gifticon lands in exactly one of the two.
func Partition(gifticons []*Gifticon, now time.Time) (available, usedOrExpired []*Gifticon) {
	available = make([]*Gifticon, 0)
	usedOrExpired = make([]*Gifticon, 0)
	for _, g := range gifticons {
		if g.IsAvailable(now) {
			available = append(available, g)
		} else {
			usedOrExpired = append(usedOrExpired, g)
		}
	}
	return available, usedOrExpired
}

// sortByExpiration sorts in place; ties keep the older record first
func sortByExpiration(gifticons []*Gifticon, order SortOrder) {
	sort.SliceStable(gifticons, func(i, j int) bool {
		a, b := gifticons[i], gifticons[j]
		if a.ExpirationDate.Equal(b.ExpirationDate) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		if order == SortDesc {
			return a.ExpirationDate.After(b.ExpirationDate)
		}
		return a.ExpirationDate.Before(b.ExpirationDate)
	})
}
