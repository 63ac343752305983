package models

// Variant is a purchasable SKU of a product. Prices are in minor
// currency units (centavos).
type Variant struct {
	VariantID     string            `json:"variantId" bson:"variantid"`
	SKU           string            `json:"sku" bson:"sku"`
	Price         int64             `json:"price" bson:"price"`
	DiscountPrice int64             `json:"discountPrice,omitempty" bson:"discountprice,omitempty"`
	Available     int               `json:"available" bson:"available"`
	Total         int               `json:"total" bson:"total"`
	Images        []string          `json:"images,omitempty" bson:"images,omitempty"`
	Options       map[string]string `json:"options,omitempty" bson:"options,omitempty"`
}

// Product groups one or more variants. A product without explicit
// variants carries a single default one.
type Product struct {
	ProductID string    `json:"productId" bson:"productid"`
	Name      string    `json:"name" bson:"name"`
	Tags      []string  `json:"tags,omitempty" bson:"tags,omitempty"`
	Variants  []Variant `json:"variants" bson:"variants"`
}

// VariantStock is the denormalized stock counter keyed by variant id.
// It is the target of every conditional decrement so a reserve never
// has to load the whole product document. Its counters must equal the
// nested variant's after any committed operation.
type VariantStock struct {
	VariantID string `json:"variantId" bson:"variantid"`
	ProductID string `json:"productId" bson:"productid"`
	Available int    `json:"available" bson:"available"`
	Total     int    `json:"total" bson:"total"`
}

// Variant returns the variant with the given id, if present.
func (p *Product) Variant(variantID string) (Variant, bool) {
	for _, v := range p.Variants {
		if v.VariantID == variantID {
			return v, true
		}
	}
	return Variant{}, false
}
