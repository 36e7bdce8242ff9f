// Package mapper converts unstable upstream items into canonical records.
package mapper

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/oemdirect/catalog-scraper/internal/catalog"
)

// Defaults applied when the upstream item omits the corresponding field.
const (
	DefaultCurrency  = "USD"
	DefaultCondition = "unknown"
)

// consumedKeys are upstream fields mapped to typed record fields; anything
// else lands verbatim in OtherParams so no data is silently dropped.
var consumedKeys = map[string]bool{
	"id":           true,
	"itemId":       true,
	"partNumber":   true,
	"name":         true,
	"title":        true,
	"description":  true,
	"price":        true,
	"pricing":      true,
	"currency":     true,
	"manufacturer": true,
	"brand":        true,
	"category":     true,
	"subcategory":  true,
	"fitment":      true,
	"donorVehicle": true,
	"images":       true,
	"inStock":      true,
	"quantity":     true,
	"condition":    true,
	"details":      true,
}

// Mapper normalizes raw items for one upstream source. ToCanonical is pure:
// no I/O, and identical input always yields a structurally identical record.
type Mapper struct {
	source string
}

// New builds a Mapper tagged with the upstream source name.
func New(source string) *Mapper {
	return &Mapper{source: source}
}

// ToCanonical maps one raw item (plus any merged detail payload) into the
// canonical schema. It returns nil only for an empty item; any internal
// mapping failure degrades to a minimal record instead of an error.
func (m *Mapper) ToCanonical(item catalog.RawItem) (record *catalog.CanonicalRecord) {
	if len(item) == 0 {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			record = m.minimalRecord(item, fmt.Sprintf("mapping panic: %v", r))
		}
	}()

	price, currency := extractPrice(item)
	rec := &catalog.CanonicalRecord{
		PartNumber:     getString(item, "partNumber", "id", "itemId"),
		Name:           getString(item, "name", "title"),
		Description:    getString(item, "description"),
		Price:          price,
		Currency:       currency,
		Manufacturer:   getString(item, "manufacturer", "brand"),
		Category:       getString(item, "category"),
		Subcategory:    getString(item, "subcategory"),
		Compatibility:  extractFitment(item["fitment"]),
		Images:         extractImages(item["images"]),
		Specifications: extractSpecs(getString(item, "description")),
		InStock:        extractInStock(item),
		Condition:      normalizeCondition(getString(item, "condition")),
		Source:         m.source,
		Metadata:       extractMetadata(item),
		OtherParams:    extractOthers(item),
	}
	return rec
}

func (m *Mapper) minimalRecord(item catalog.RawItem, note string) *catalog.CanonicalRecord {
	return &catalog.CanonicalRecord{
		PartNumber: getString(item, "partNumber", "id", "itemId"),
		Name:       getString(item, "name", "title"),
		Currency:   DefaultCurrency,
		Condition:  DefaultCondition,
		Source:     m.source,
		Metadata:   map[string]string{"mapping_error": note},
	}
}

func getString(item catalog.RawItem, keys ...string) string {
	for _, key := range keys {
		switch v := item[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

// extractPrice takes a direct price field when present, else the first
// entry of a pricing list, else zero.
func extractPrice(item catalog.RawItem) (float64, string) {
	currency := getString(item, "currency")
	if currency == "" {
		currency = DefaultCurrency
	}

	if p, ok := toFloat(item["price"]); ok {
		return p, currency
	}

	if list, ok := item["pricing"].([]any); ok && len(list) > 0 {
		if entry, ok := list[0].(map[string]any); ok {
			if p, ok := toFloat(entry["amount"]); ok {
				if c, ok := entry["currency"].(string); ok && c != "" {
					currency = c
				}
				return p, currency
			}
		}
		if p, ok := toFloat(list[0]); ok {
			return p, currency
		}
	}
	return 0, currency
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		cleaned := strings.TrimSpace(strings.TrimPrefix(n, "$"))
		cleaned = strings.ReplaceAll(cleaned, ",", "")
		if f, err := strconv.ParseFloat(cleaned, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// fitmentEntry mirrors the embedded fitment sub-document. Year stays in its
// upstream representation; the site mixes plain years and ranges.
type fitmentEntry struct {
	Make  string          `json:"make"`
	Model string          `json:"model"`
	Year  json.RawMessage `json:"year"`
	Trim  string          `json:"trim"`
}

// extractFitment tolerates the fitment field arriving as a stringified
// JSON list, an already decoded list, or garbage. Anything unparseable is
// treated as absent.
func extractFitment(raw any) []catalog.CompatibilityEntry {
	var entries []fitmentEntry
	switch v := raw.(type) {
	case string:
		if err := json.Unmarshal([]byte(v), &entries); err != nil {
			return nil
		}
	case []any:
		data, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil
		}
	default:
		return nil
	}

	out := make([]catalog.CompatibilityEntry, 0, len(entries))
	for _, e := range entries {
		if e.Make == "" && e.Model == "" {
			continue
		}
		out = append(out, catalog.CompatibilityEntry{
			Make:  e.Make,
			Model: e.Model,
			Year:  rawYear(e.Year),
			Trim:  e.Trim,
		})
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func rawYear(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString
	}
	return strings.TrimSpace(string(raw))
}

func extractImages(raw any) []catalog.ImageRef {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]catalog.ImageRef, 0, len(list))
	for _, entry := range list {
		switch v := entry.(type) {
		case string:
			if v != "" {
				out = append(out, catalog.ImageRef{URL: v})
			}
		case map[string]any:
			url, _ := v["url"].(string)
			alt, _ := v["alt"].(string)
			if url != "" {
				out = append(out, catalog.ImageRef{URL: url, Alt: alt})
			}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// extractSpecs derives key/value pairs by naive whitespace-splitting of the
// free-text description. Lossy and best-effort: only "Key: Value" lines
// survive.
func extractSpecs(description string) map[string]string {
	if description == "" {
		return nil
	}
	specs := make(map[string]string)
	for _, line := range strings.Split(description, "\n") {
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" || value == "" || len(strings.Fields(key)) > 4 {
			continue
		}
		specs[key] = value
	}
	if len(specs) == 0 {
		return nil
	}
	return specs
}

func extractInStock(item catalog.RawItem) bool {
	if b, ok := item["inStock"].(bool); ok {
		return b
	}
	if q, ok := toFloat(item["quantity"]); ok {
		return q > 0
	}
	return false
}

func normalizeCondition(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "new":
		return "new"
	case "used":
		return "used"
	case "refurbished", "remanufactured":
		return "refurbished"
	default:
		return DefaultCondition
	}
}

// extractMetadata collects provenance fields, including the donor-vehicle
// sub-document when it parses.
func extractMetadata(item catalog.RawItem) map[string]string {
	meta := make(map[string]string)
	if id := getString(item, "id", "itemId"); id != "" {
		meta["upstream_id"] = id
	}

	donor := item["donorVehicle"]
	var record map[string]any
	switch v := donor.(type) {
	case string:
		if err := json.Unmarshal([]byte(v), &record); err != nil {
			record = nil
		}
	case map[string]any:
		record = v
	}
	for key, value := range record {
		switch s := value.(type) {
		case string:
			meta["donor_"+key] = s
		case float64:
			meta["donor_"+key] = strconv.FormatFloat(s, 'f', -1, 64)
		}
	}
	if len(meta) == 0 {
		return nil
	}
	return meta
}

func extractOthers(item catalog.RawItem) map[string]any {
	others := make(map[string]any)
	for key, value := range item {
		if consumedKeys[key] {
			continue
		}
		others[key] = value
	}
	if len(others) == 0 {
		return nil
	}
	return others
}
