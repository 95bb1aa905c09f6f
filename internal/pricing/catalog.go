package pricing

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// CatalogEntry is one vendor's published pricing. Category may be empty to
// match the vendor in any category.
type CatalogEntry struct {
	Vendor          string `yaml:"vendor"`
	Category        string `yaml:"category"`
	Currency        string `yaml:"currency"`
	MonthlyPrice    string `yaml:"monthly_price"`
	YearlyListPrice string `yaml:"yearly_list_price"`
	YearlyDiscount  string `yaml:"yearly_discount"`
}

type catalogFile struct {
	Vendors []CatalogEntry `yaml:"vendors"`
}

// Terms are the annual-plan figures known for a vendor. Nil means unknown.
type Terms struct {
	YearlyListPrice *decimal.Decimal
	YearlyDiscount  *decimal.Decimal
}

type catalogPrice struct {
	monthly  *decimal.Decimal
	currency string
	terms    Terms
}

// Catalog is a static price list loaded from YAML. It answers lookups
// locally and supplies annual terms.
type Catalog struct {
	prices map[string]catalogPrice
}

func LoadCatalog(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open price catalog: %w", err)
	}
	defer f.Close()
	return ParseCatalog(f)
}

func ParseCatalog(r io.Reader) (*Catalog, error) {
	var file catalogFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode price catalog: %w", err)
	}

	c := &Catalog{prices: make(map[string]catalogPrice, len(file.Vendors))}
	for i, e := range file.Vendors {
		if strings.TrimSpace(e.Vendor) == "" {
			return nil, fmt.Errorf("price catalog entry %d: vendor is required", i+1)
		}
		var p catalogPrice
		var err error
		if p.monthly, err = optionalDecimal(e.MonthlyPrice); err != nil {
			return nil, fmt.Errorf("price catalog entry %q monthly_price: %w", e.Vendor, err)
		}
		if p.terms.YearlyListPrice, err = optionalDecimal(e.YearlyListPrice); err != nil {
			return nil, fmt.Errorf("price catalog entry %q yearly_list_price: %w", e.Vendor, err)
		}
		if p.terms.YearlyDiscount, err = optionalDecimal(e.YearlyDiscount); err != nil {
			return nil, fmt.Errorf("price catalog entry %q yearly_discount: %w", e.Vendor, err)
		}
		if d := p.terms.YearlyDiscount; d != nil && d.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			return nil, fmt.Errorf("price catalog entry %q yearly_discount must be below 1", e.Vendor)
		}
		p.currency = strings.ToUpper(strings.TrimSpace(e.Currency))
		c.prices[Key(e.Vendor, e.Category)] = p
	}
	return c, nil
}

func optionalDecimal(s string) (*decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, err
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("negative value %s", s)
	}
	return &d, nil
}

func (c *Catalog) find(vendor, category string) (catalogPrice, bool) {
	if p, ok := c.prices[Key(vendor, category)]; ok {
		return p, true
	}
	p, ok := c.prices[Key(vendor, "")]
	return p, ok
}

func (c *Catalog) Lookup(ctx context.Context, vendor, category string) (Quote, error) {
	p, ok := c.find(vendor, category)
	if !ok || p.monthly == nil {
		return Quote{}, ErrPriceUnknown
	}
	return Quote{
		Vendor:       vendor,
		Category:     category,
		MonthlyPrice: *p.monthly,
		Currency:     p.currency,
		Source:       "catalog",
	}, nil
}

// Terms returns the annual terms listed for a vendor, if any.
func (c *Catalog) Terms(vendor, category string) (Terms, bool) {
	p, ok := c.find(vendor, category)
	if !ok || (p.terms.YearlyListPrice == nil && p.terms.YearlyDiscount == nil) {
		return Terms{}, false
	}
	return p.terms, true
}

func (c *Catalog) Len() int {
	return len(c.prices)
}
