package sync

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/huyndo/tpcn-advisor/internal/catalog"
)

// Selector lists mirror the storefront theme: the structured JSON-LD block
// wins when present, these are the template fallbacks.
var (
	nameSelectors      = []string{"h1.product-title", "h1.entry-title"}
	skuSelectors       = []string{".sku", "span[itemprop='sku']"}
	descSelectors      = []string{".product-short-description", ".entry-content p"}
	benefitSelectors   = []string{".benefits li"}
	directionSelectors = []string{".directions, .usage, .huong-dan"}
	warningSelectors   = []string{".warnings, .canh-bao"}
	tagSelectors       = []string{".product-tags a", ".tags a"}
)

var errNoProduct = errors.New("no product data on page")

// parseProductPage turns one product page into a catalog record. JSON-LD
// fields take priority over scraped template text; a page yielding neither
// a name nor a SKU is rejected rather than stored as an empty record.
func parseProductPage(pageURL string, body []byte) (catalog.Product, error) {
	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return catalog.Product{}, fmt.Errorf("parse page: %w", err)
	}
	structured := extractJSONLD(root)

	product := catalog.Product{
		Name:        firstNonEmpty(structured.Name, pickText(root, nameSelectors)),
		SKU:         firstNonEmpty(structured.SKU, pickText(root, skuSelectors)),
		Description: firstNonEmpty(structured.Description, pickText(root, descSelectors)),
		Benefits:    pickList(root, benefitSelectors),
		Directions:  pickText(root, directionSelectors),
		Warnings:    pickText(root, warningSelectors),
		Tags:        pickList(root, tagSelectors),
		PriceText:   structured.Price,
		Link:        pageURL,
	}
	if product.Name == "" && product.SKU == "" {
		return catalog.Product{}, errNoProduct
	}
	if product.SKU == "" {
		product.SKU = fallbackSKU(product.Name)
	}
	return product, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// pickText returns the collapsed text of the first element matching any of
// the selectors, in document order. A selector whose match has no text
// falls through to the next one.
func pickText(root *html.Node, selectors []string) string {
	for _, raw := range selectors {
		group := parseSelectorGroup(raw)
		if n := findFirst(root, group); n != nil {
			if text := nodeText(n); text != "" {
				return text
			}
		}
	}
	return ""
}

// pickList returns the texts of every element matched by the first selector
// that yields anything.
func pickList(root *html.Node, selectors []string) []string {
	for _, raw := range selectors {
		group := parseSelectorGroup(raw)
		var values []string
		for _, n := range findAll(root, group) {
			if text := nodeText(n); text != "" {
				values = append(values, text)
			}
		}
		if len(values) > 0 {
			return values
		}
	}
	return nil
}

// The selector engine below covers the subset the templates use: tag names,
// one class, one [attr='value'] filter, descendant chains, and
// comma-separated alternatives.

type simpleSelector struct {
	tag     string
	class   string
	attrKey string
	attrVal string
}

type selectorChain struct {
	parts []simpleSelector
}

func parseSelectorGroup(raw string) []selectorChain {
	var group []selectorChain
	for _, alt := range strings.Split(raw, ",") {
		alt = strings.TrimSpace(alt)
		if alt == "" {
			continue
		}
		var chain selectorChain
		for _, part := range strings.Fields(alt) {
			chain.parts = append(chain.parts, parseSimpleSelector(part))
		}
		group = append(group, chain)
	}
	return group
}

func parseSimpleSelector(raw string) simpleSelector {
	var sel simpleSelector
	if open := strings.IndexByte(raw, '['); open >= 0 {
		attr := strings.TrimSuffix(raw[open+1:], "]")
		raw = raw[:open]
		if eq := strings.IndexByte(attr, '='); eq >= 0 {
			sel.attrKey = attr[:eq]
			sel.attrVal = strings.Trim(attr[eq+1:], `'"`)
		} else {
			sel.attrKey = attr
		}
	}
	if dot := strings.IndexByte(raw, '.'); dot >= 0 {
		sel.tag = raw[:dot]
		sel.class = raw[dot+1:]
	} else {
		sel.tag = raw
	}
	return sel
}

func (s simpleSelector) matches(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if s.tag != "" && n.Data != s.tag {
		return false
	}
	if s.class != "" && !hasClass(n, s.class) {
		return false
	}
	if s.attrKey != "" {
		value, ok := findAttr(n, s.attrKey)
		if !ok {
			return false
		}
		if s.attrVal != "" && value != s.attrVal {
			return false
		}
	}
	return true
}

// matches checks the final part against the node itself and the remaining
// parts against its ancestor chain, nearest first.
func (c selectorChain) matches(n *html.Node) bool {
	if len(c.parts) == 0 {
		return false
	}
	if !c.parts[len(c.parts)-1].matches(n) {
		return false
	}
	idx := len(c.parts) - 2
	for ancestor := n.Parent; ancestor != nil && idx >= 0; ancestor = ancestor.Parent {
		if c.parts[idx].matches(ancestor) {
			idx--
		}
	}
	return idx < 0
}

// walk visits the tree depth-first in document order; visit returns false
// to stop early.
func walk(n *html.Node, visit func(*html.Node) bool) bool {
	if !visit(n) {
		return false
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if !walk(child, visit) {
			return false
		}
	}
	return true
}

func findFirst(root *html.Node, group []selectorChain) *html.Node {
	var found *html.Node
	walk(root, func(n *html.Node) bool {
		for _, chain := range group {
			if chain.matches(n) {
				found = n
				return false
			}
		}
		return true
	})
	return found
}

func findAll(root *html.Node, group []selectorChain) []*html.Node {
	var nodes []*html.Node
	walk(root, func(n *html.Node) bool {
		for _, chain := range group {
			if chain.matches(n) {
				nodes = append(nodes, n)
				break
			}
		}
		return true
	})
	return nodes
}

// nodeText flattens a subtree to one whitespace-collapsed string.
func nodeText(n *html.Node) string {
	var b strings.Builder
	var gather func(*html.Node)
	gather = func(node *html.Node) {
		if node.Type == html.TextNode {
			b.WriteString(node.Data)
			b.WriteByte(' ')
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			gather(child)
		}
	}
	gather(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

func hasClass(n *html.Node, class string) bool {
	value, ok := findAttr(n, "class")
	if !ok {
		return false
	}
	for _, part := range strings.Fields(value) {
		if part == class {
			return true
		}
	}
	return false
}

func findAttr(n *html.Node, key string) (string, bool) {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val, true
		}
	}
	return "", false
}
