package catalog

import "strings"

// Product is one sellable supplement as it appears in the catalog feed.
// Every field besides SKU is optional in the source data.
type Product struct {
	SKU          string   `json:"sku"`
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	Benefits     []string `json:"benefits,omitempty"`
	Directions   string   `json:"directions,omitempty"`
	Warnings     string   `json:"warnings,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	Brand        string   `json:"brand,omitempty"`
	PriceText    string   `json:"price_text,omitempty"`
	CategoryPath []string `json:"category_path,omitempty"`
	Link         string   `json:"link,omitempty"`
}

// ComboItem references a product inside a combo protocol.
type ComboItem struct {
	SKU  string `json:"sku"`
	Qty  int    `json:"qty,omitempty"`
	Note string `json:"note,omitempty"`
}

// Combo is a curated bundle of products targeting a set of complaints.
type Combo struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Targets  []string    `json:"targets,omitempty"`
	Items    []ComboItem `json:"items,omitempty"`
	Protocol string      `json:"protocol,omitempty"`
	Notes    string      `json:"notes,omitempty"`
}

// Symptom is one advisory record: the complaint, its query keywords and the
// recommended first-line response.
type Symptom struct {
	ID                string   `json:"id"`
	Symptom           string   `json:"symptom"`
	Keywords          []string `json:"keywords,omitempty"`
	TriageQuestions   []string `json:"triage_questions,omitempty"`
	RedFlags          []string `json:"red_flags,omitempty"`
	FirstLineProducts []string `json:"first_line_products,omitempty"`
	Combos            []string `json:"combos,omitempty"`
	Protocol          string   `json:"protocol,omitempty"`
}

// Counts summarizes the size of a catalog per collection.
type Counts struct {
	Products int `json:"products"`
	Combos   int `json:"combos"`
	Symptoms int `json:"symptoms"`
}

// Catalog holds the three entity collections of one load. Lookups are
// linear; the collections are small enough that an index would not pay for
// itself.
type Catalog struct {
	Products []Product
	Combos   []Combo
	Symptoms []Symptom
}

func (c Catalog) Counts() Counts {
	return Counts{
		Products: len(c.Products),
		Combos:   len(c.Combos),
		Symptoms: len(c.Symptoms),
	}
}

// Empty reports whether no collection holds any record.
func (c Catalog) Empty() bool {
	return len(c.Products) == 0 && len(c.Combos) == 0 && len(c.Symptoms) == 0
}

// Product returns the first product whose SKU matches. Records without a
// SKU never match.
func (c Catalog) Product(sku string) (*Product, bool) {
	if strings.TrimSpace(sku) == "" {
		return nil, false
	}
	for i := range c.Products {
		if c.Products[i].SKU == sku {
			return &c.Products[i], true
		}
	}
	return nil, false
}

// Combo returns the first combo whose ID matches.
func (c Catalog) Combo(id string) (*Combo, bool) {
	if strings.TrimSpace(id) == "" {
		return nil, false
	}
	for i := range c.Combos {
		if c.Combos[i].ID == id {
			return &c.Combos[i], true
		}
	}
	return nil, false
}

// Symptom returns the first symptom whose ID matches.
func (c Catalog) Symptom(id string) (*Symptom, bool) {
	if strings.TrimSpace(id) == "" {
		return nil, false
	}
	for i := range c.Symptoms {
		if c.Symptoms[i].ID == id {
			return &c.Symptoms[i], true
		}
	}
	return nil, false
}
