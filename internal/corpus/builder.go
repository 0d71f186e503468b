package corpus

import (
	"strings"

	"github.com/huyndo/tpcn-advisor/internal/catalog"
)

// EntityKind discriminates which collection a corpus document came from.
type EntityKind string

const (
	KindProduct EntityKind = "product"
	KindCombo   EntityKind = "combo"
	KindSymptom EntityKind = "symptom"
)

// DocRef ties one corpus document back to its source entity.
type DocRef struct {
	Kind EntityKind `json:"type"`
	ID   string     `json:"id"`
}

// Corpus is the ordered document set of one catalog snapshot. Docs and Refs
// are index-aligned: Refs[i] names the entity whose fields produced Docs[i].
// A Fallback corpus carries a single empty document and no refs; it exists
// only so the index can be built over an empty catalog.
type Corpus struct {
	Docs     []string
	Refs     []DocRef
	Fallback bool
}

const fieldSeparator = " | "

// Build derives one normalized document per entity in the fixed order
// products, combos, symptoms. Field order within a document is part of the
// contract: it decides bigram boundaries and therefore match quality.
func Build(cat catalog.Catalog) Corpus {
	total := len(cat.Products) + len(cat.Combos) + len(cat.Symptoms)
	if total == 0 {
		return Corpus{Docs: []string{""}, Fallback: true}
	}
	docs := make([]string, 0, total)
	refs := make([]DocRef, 0, total)

	for _, p := range cat.Products {
		docs = append(docs, productDoc(p))
		refs = append(refs, DocRef{Kind: KindProduct, ID: p.SKU})
	}
	for _, c := range cat.Combos {
		docs = append(docs, comboDoc(c))
		refs = append(refs, DocRef{Kind: KindCombo, ID: c.ID})
	}
	for _, s := range cat.Symptoms {
		docs = append(docs, symptomDoc(s))
		refs = append(refs, DocRef{Kind: KindSymptom, ID: s.ID})
	}
	return Corpus{Docs: docs, Refs: refs}
}

func productDoc(p catalog.Product) string {
	return strings.Join([]string{
		NormalizeText(p.Name),
		NormalizeText(p.Description),
		JoinList(p.Benefits),
		NormalizeText(p.Directions),
		NormalizeText(p.Warnings),
		JoinList(p.Tags),
		NormalizeText(p.Brand),
		NormalizeText(p.PriceText),
		JoinList(p.CategoryPath),
	}, fieldSeparator)
}

func comboDoc(c catalog.Combo) string {
	skus := make([]string, len(c.Items))
	for i, item := range c.Items {
		skus[i] = item.SKU
	}
	return strings.Join([]string{
		NormalizeText(c.Name),
		JoinList(c.Targets),
		NormalizeText(c.Protocol),
		JoinList(skus),
		NormalizeText(c.Notes),
	}, fieldSeparator)
}

func symptomDoc(s catalog.Symptom) string {
	return strings.Join([]string{
		NormalizeText(s.Symptom),
		JoinList(s.Keywords),
		JoinList(s.TriageQuestions),
		JoinList(s.RedFlags),
		NormalizeText(s.Protocol),
	}, fieldSeparator)
}
