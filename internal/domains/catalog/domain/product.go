// Package domain models products and their sellable variants.
package domain

import "strings"

// Product is a catalog entry. Stock on the product itself is only
// authoritative when the product has no variants; otherwise each variant
// carries its own stock row.
type Product struct {
	ID        int64
	Name      string
	Price     int64
	Stock     int64
	Sold      int64
	ImageURLs []string
	Variants  []Variant
}

// Variant is a concrete color/size combination of a product. Price, when
// set, overrides the product price.
type Variant struct {
	ID        int64
	ProductID int64
	Color     string
	Size      string
	Price     *int64
	Stock     int64
}

// HasVariants reports whether stock is tracked per variant.
func (p *Product) HasVariants() bool { return len(p.Variants) > 0 }

// VariantByID returns the variant with the given id, or nil.
func (p *Product) VariantByID(id int64) *Variant {
	for i := range p.Variants {
		if p.Variants[i].ID == id {
			return &p.Variants[i]
		}
	}
	return nil
}

// MatchVariant resolves a variant from color/size hints, case-insensitively.
// Empty hints match any value, so a product with one blue variant resolves
// from color alone.
func (p *Product) MatchVariant(color, size string) *Variant {
	var found *Variant
	for i := range p.Variants {
		v := &p.Variants[i]
		if color != "" && !strings.EqualFold(v.Color, color) {
			continue
		}
		if size != "" && !strings.EqualFold(v.Size, size) {
			continue
		}
		if found != nil {
			return nil // ambiguous
		}
		found = v
	}
	return found
}

// UnitPrice returns the effective price of the variant, falling back to
// the product price.
func (p *Product) UnitPrice(v *Variant) int64 {
	if v != nil && v.Price != nil {
		return *v.Price
	}
	return p.Price
}

// VariantHint is the shape returned to clients when a variant choice is
// required but could not be resolved.
type VariantHint struct {
	OptionID int64  `json:"optionId"`
	Color    string `json:"color"`
	Size     string `json:"size"`
	Stock    int64  `json:"stock"`
}

// Hints lists all variants of the product as selection candidates.
func (p *Product) Hints() []VariantHint {
	hints := make([]VariantHint, 0, len(p.Variants))
	for _, v := range p.Variants {
		hints = append(hints, VariantHint{OptionID: v.ID, Color: v.Color, Size: v.Size, Stock: v.Stock})
	}
	return hints
}
