package sync

import (
	"encoding/json"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// jsonldTypes lists the schema.org types accepted as product payloads.
var jsonldTypes = map[string]bool{
	"Product":           true,
	"DietarySupplement": true,
	"ProductModel":      true,
}

type structuredProduct struct {
	Name        string
	SKU         string
	Description string
	Price       string
}

// extractJSONLD scans script[type="application/ld+json"] blocks in document
// order and returns the first schema.org product found. Blocks that fail to
// decode are skipped; shops routinely ship broken JSON-LD next to valid
// blocks.
func extractJSONLD(root *html.Node) structuredProduct {
	var result structuredProduct
	walk(root, func(n *html.Node) bool {
		if n.Type != html.ElementNode || n.Data != "script" {
			return true
		}
		if kind, _ := findAttr(n, "type"); !strings.EqualFold(kind, "application/ld+json") {
			return true
		}
		if product, ok := decodeJSONLD(rawText(n)); ok {
			result = product
			return false
		}
		return true
	})
	return result
}

func decodeJSONLD(raw string) (structuredProduct, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return structuredProduct{}, false
	}
	var decoded any
	if err := json.Unmarshal([]byte(trimmed), &decoded); err != nil {
		return structuredProduct{}, false
	}
	items, ok := decoded.([]any)
	if !ok {
		items = []any{decoded}
	}
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if !jsonldTypes[stringField(obj, "@type")] {
			continue
		}
		product := structuredProduct{
			Name:        stringField(obj, "name"),
			SKU:         stringField(obj, "sku"),
			Description: stringField(obj, "description"),
		}
		if product.SKU == "" {
			product.SKU = stringField(obj, "mpn")
		}
		if offers, ok := obj["offers"].(map[string]any); ok {
			product.Price = stringField(offers, "price")
		}
		return product, true
	}
	return structuredProduct{}, false
}

// stringField tolerates numeric values; JSON-LD prices are strings on some
// themes and numbers on others.
func stringField(obj map[string]any, key string) string {
	switch v := obj[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

// rawText concatenates direct text children without collapsing whitespace;
// collapsing would corrupt JSON string values.
func rawText(n *html.Node) string {
	var b strings.Builder
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.TextNode {
			b.WriteString(child.Data)
		}
	}
	return b.String()
}
