package sync

import "testing"

func TestDecodeJSONLDObject(t *testing.T) {
	product, ok := decodeJSONLD(`{"@type":"DietarySupplement","name":" Omega 3 ","sku":"GW-1","description":"dầu cá","offers":{"price":"250.000đ"}}`)
	if !ok {
		t.Fatal("expected product")
	}
	if product.Name != "Omega 3" || product.SKU != "GW-1" {
		t.Fatalf("product = %+v", product)
	}
	if product.Price != "250.000đ" {
		t.Fatalf("Price = %q", product.Price)
	}
}

func TestDecodeJSONLDListPicksFirstProduct(t *testing.T) {
	raw := `[
{"@type":"BreadcrumbList","name":"nav"},
{"@type":"ProductModel","name":"Viên khớp","mpn":"GW-2"},
{"@type":"Product","name":"khác","sku":"GW-3"}
]`
	product, ok := decodeJSONLD(raw)
	if !ok {
		t.Fatal("expected product")
	}
	if product.Name != "Viên khớp" {
		t.Fatalf("Name = %q, first matching entry should win", product.Name)
	}
	if product.SKU != "GW-2" {
		t.Fatalf("SKU = %q, mpn should back a missing sku", product.SKU)
	}
}

func TestDecodeJSONLDRejects(t *testing.T) {
	cases := map[string]string{
		"broken json":   `{"@type":"Product",`,
		"wrong type":    `{"@type":"Article","name":"bài viết"}`,
		"empty":         "   ",
		"non-object":    `["chuỗi", 42]`,
		"type as array": `{"@type":["Product","Thing"],"name":"x"}`,
	}
	for name, raw := range cases {
		if _, ok := decodeJSONLD(raw); ok {
			t.Errorf("%s: expected rejection", name)
		}
	}
}

func TestExtractJSONLDSkipsBrokenBlocks(t *testing.T) {
	page := `<html><head>
<script type="application/ld+json">{broken</script>
<script type="text/javascript">var x = {"@type":"Product","name":"no"}</script>
<script type="APPLICATION/LD+JSON">{"@type":"Product","name":"Thật","sku":"GW-9"}</script>
</head></html>`
	product := extractJSONLD(mustParseHTML(t, page))
	if product.SKU != "GW-9" || product.Name != "Thật" {
		t.Fatalf("product = %+v", product)
	}
}

func TestExtractJSONLDAbsent(t *testing.T) {
	product := extractJSONLD(mustParseHTML(t, `<html><body><p>gì đó</p></body></html>`))
	if product != (structuredProduct{}) {
		t.Fatalf("product = %+v, want zero value", product)
	}
}
