package checkout

import (
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// ProductRef identifies which catalog product a cart line points at. The
// storefront sends either a bare numeric id (7) or a composite id string
// ("7-Rojo-M") where the suffix selects a color/size variant. Variants are
// cosmetic: pricing and stock live on the base product.
type ProductRef struct {
	ID      int
	Variant string
}

// String renders the ref back in the storefront's composite form.
func (r ProductRef) String() string {
	if r.Variant == "" {
		return strconv.Itoa(r.ID)
	}
	return strconv.Itoa(r.ID) + "-" + r.Variant
}

// UnmarshalJSON accepts a JSON number or a composite id string. The
// heterogeneous wire shape is dispatched on the JSON token type instead of
// decoding into any and type-switching.
func (r *ProductRef) UnmarshalJSON(data []byte) error {
	d := jx.DecodeBytes(data)
	switch d.Next() {
	case jx.Number:
		n, err := d.Int()
		if err != nil {
			return errors.Wrap(err, "product id")
		}
		*r = ProductRef{ID: n}
		return nil
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return errors.Wrap(err, "product id")
		}
		return r.parse(s)
	default:
		return errors.Errorf("product id must be a number or string, got %s", d.Next())
	}
}

// MarshalJSON renders the ref the way the storefront sent it: a bare number
// without a variant, a composite string with one.
func (r ProductRef) MarshalJSON() ([]byte, error) {
	var e jx.Encoder
	if r.Variant == "" {
		e.Int(r.ID)
	} else {
		e.Str(r.String())
	}
	return e.Bytes(), nil
}

// parse splits a composite id at the first dash: the leading segment is the
// numeric product id, everything after it the variant descriptor.
func (r *ProductRef) parse(s string) error {
	idPart, variant, _ := strings.Cut(s, "-")
	id, err := strconv.Atoi(idPart)
	if err != nil {
		return errors.Errorf("product id %q has no leading numeric id", s)
	}
	*r = ProductRef{ID: id, Variant: variant}
	return nil
}

// Line is one client-submitted cart entry. Everything in it is untrusted:
// the ref and quantity say what the client wants, the price and name are
// only checked against (never copied into) the authoritative catalog data.
type Line struct {
	Ref      ProductRef      `json:"id"`
	Name     string          `json:"name,omitempty"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}
