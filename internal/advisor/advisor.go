// Package advisor turns retrieval matches into a structured consultation
// reply: recommended products, combos, triage questions, and safety notes
// derived from the customer profile.
package advisor

import (
	"github.com/huyndo/tpcn-advisor/internal/catalog"
	"github.com/huyndo/tpcn-advisor/internal/corpus"
	"github.com/huyndo/tpcn-advisor/internal/retriever"
)

const (
	// ReplySymptom marks a reply assembled from a recognized symptom record.
	ReplySymptom = "symptom"
	// ReplyFallback marks a reply assembled from nearest products and combos.
	ReplyFallback = "fallback"

	searchDepth          = 6
	maxSymptomCombos     = 3
	maxFirstLineProducts = 3
	maxFallbackProducts  = 3
	maxFallbackCombos    = 2

	defaultProtocol = "Phác đồ tham khảo 7–14 ngày; theo dõi đáp ứng sau 3–5 ngày."
	disclaimerText  = "Thông tin tham khảo theo tài liệu nội bộ TPCN; không thay thế tư vấn y tế khi có dấu hiệu bất thường."

	pregnancyNote = "Lưu ý: phụ nữ có thai tránh nhóm hoạt chất nhạy cảm; ưu tiên sản phẩm an toàn thai kỳ."
	ulcerNote     = "Lưu ý: tiền sử loét dạ dày – cần tránh hoạt chất gây kích ứng dạ dày."
)

// Profile carries the facts a customer shared. Only the safety flags drive
// the reply today; age and gender travel with the profile for logging and
// future use.
type Profile struct {
	Age      int    `json:"age,omitempty"`
	Gender   string `json:"gender,omitempty"`
	Pregnant bool   `json:"pregnant,omitempty"`
	Ulcer    bool   `json:"ulcer,omitempty"`
}

// ProductCard is the product subset exposed in a reply.
type ProductCard struct {
	SKU        string   `json:"sku"`
	Name       string   `json:"name"`
	Benefits   []string `json:"benefits"`
	Directions string   `json:"directions"`
	Warnings   string   `json:"warnings"`
	Link       string   `json:"link"`
}

// ComboCard is the combo subset exposed in a reply.
type ComboCard struct {
	ID       string              `json:"id"`
	Name     string              `json:"name"`
	Targets  []string            `json:"targets"`
	Items    []catalog.ComboItem `json:"items"`
	Protocol string              `json:"protocol"`
	Notes    string              `json:"notes"`
}

// Reply is the full consultation answer for one query.
type Reply struct {
	Type            string        `json:"type"`
	Query           string        `json:"query"`
	TriageQuestions []string      `json:"triage_questions"`
	RedFlags        []string      `json:"red_flags"`
	Products        []ProductCard `json:"products"`
	Combos          []ComboCard   `json:"combos"`
	Protocol        string        `json:"protocol"`
	SafetyNotes     []string      `json:"safety_notes"`
	Disclaimer      string        `json:"disclaimer"`
}

// Engine is the retrieval surface the advisor consumes.
type Engine interface {
	Search(query string, topk int) []retriever.Match
	Product(sku string) (*catalog.Product, bool)
	Combo(id string) (*catalog.Combo, bool)
	Symptom(id string) (*catalog.Symptom, bool)
}

type Advisor struct {
	engine Engine
}

func New(engine Engine) *Advisor {
	return &Advisor{engine: engine}
}

// Suggest answers one customer query. A symptom match drives the curated
// first-line recommendations; otherwise the nearest products and combos are
// returned as a fallback. Slices in the reply are always non-nil so the JSON
// encoding stays stable for API clients.
func (a *Advisor) Suggest(query string, profile Profile) Reply {
	reply := Reply{
		Type:            ReplyFallback,
		Query:           query,
		TriageQuestions: []string{},
		RedFlags:        []string{},
		Products:        []ProductCard{},
		Combos:          []ComboCard{},
		SafetyNotes:     guardNotes(profile),
		Disclaimer:      disclaimerText,
	}

	hits := a.engine.Search(query, searchDepth)
	if symptom, ok := a.firstSymptom(hits); ok {
		a.fillFromSymptom(&reply, symptom)
		return reply
	}
	a.fillFromHits(&reply, hits)
	return reply
}

// firstSymptom returns the highest-ranked symptom hit that still resolves in
// the current snapshot.
func (a *Advisor) firstSymptom(hits []retriever.Match) (*catalog.Symptom, bool) {
	for _, hit := range hits {
		if hit.Kind != corpus.KindSymptom {
			continue
		}
		if symptom, ok := a.engine.Symptom(hit.ID); ok {
			return symptom, true
		}
	}
	return nil, false
}

func (a *Advisor) fillFromSymptom(reply *Reply, symptom *catalog.Symptom) {
	reply.Type = ReplySymptom
	reply.Protocol = protocolText(symptom.Protocol)
	reply.TriageQuestions = append(reply.TriageQuestions, symptom.TriageQuestions...)
	reply.RedFlags = append(reply.RedFlags, symptom.RedFlags...)

	for _, id := range headOf(symptom.Combos, maxSymptomCombos) {
		if combo, ok := a.engine.Combo(id); ok {
			reply.Combos = append(reply.Combos, comboCard(combo))
		}
	}
	for _, sku := range headOf(symptom.FirstLineProducts, maxFirstLineProducts) {
		if product, ok := a.engine.Product(sku); ok {
			reply.Products = append(reply.Products, productCard(product))
		}
	}
}

// fillFromHits keeps the ranked order and caps by hits seen, not by records
// resolved, so a stale reference costs its slot instead of promoting a lower
// ranked one.
func (a *Advisor) fillFromHits(reply *Reply, hits []retriever.Match) {
	productHits, comboHits := 0, 0
	for _, hit := range hits {
		switch hit.Kind {
		case corpus.KindProduct:
			if productHits >= maxFallbackProducts {
				continue
			}
			productHits++
			if product, ok := a.engine.Product(hit.ID); ok {
				reply.Products = append(reply.Products, productCard(product))
			}
		case corpus.KindCombo:
			if comboHits >= maxFallbackCombos {
				continue
			}
			comboHits++
			if combo, ok := a.engine.Combo(hit.ID); ok {
				reply.Combos = append(reply.Combos, comboCard(combo))
			}
		}
	}
}

func productCard(p *catalog.Product) ProductCard {
	card := ProductCard{
		SKU:        p.SKU,
		Name:       p.Name,
		Benefits:   []string{},
		Directions: p.Directions,
		Warnings:   p.Warnings,
		Link:       p.Link,
	}
	card.Benefits = append(card.Benefits, p.Benefits...)
	return card
}

func comboCard(c *catalog.Combo) ComboCard {
	card := ComboCard{
		ID:       c.ID,
		Name:     c.Name,
		Targets:  []string{},
		Items:    []catalog.ComboItem{},
		Protocol: c.Protocol,
		Notes:    c.Notes,
	}
	card.Targets = append(card.Targets, c.Targets...)
	card.Items = append(card.Items, c.Items...)
	return card
}

func guardNotes(profile Profile) []string {
	notes := []string{}
	if profile.Pregnant {
		notes = append(notes, pregnancyNote)
	}
	if profile.Ulcer {
		notes = append(notes, ulcerNote)
	}
	return notes
}

func protocolText(proto string) string {
	if proto == "" {
		return defaultProtocol
	}
	return proto
}

func headOf(values []string, limit int) []string {
	if len(values) <= limit {
		return values
	}
	return values[:limit]
}
