// Package supportdocs loads reference documents (product specs, discount
// rules, validation rules) and extracts grounded test data from them:
// discount codes, product ids, and realistic input values with confidence
// scores.
package supportdocs

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Document type classifications.
const (
	TypeDiscountRules   = "discount_rules"
	TypeProductCatalog  = "product_catalog"
	TypeValidationRules = "validation_rules"
	TypeAPISpec         = "api_spec"
	TypeGeneral         = "general"
)

var (
	tablePattern   = regexp.MustCompile(`(?m)\|\s*([A-Z0-9]+)\s*\|([^|]+)\|([^|]+)\|`)
	listPattern    = regexp.MustCompile(`\b([A-Z0-9]{4,15})\b\s*[-:]\s*([^.\n]+)`)
	codePattern    = regexp.MustCompile(`^[A-Z0-9]{4,15}$`)
	sectionCode    = regexp.MustCompile(`\b([A-Z]{4,15})\b`)
	headingSplit   = regexp.MustCompile(`\n#{1,3}\s+`)
	productIDStart = regexp.MustCompile(`(?i)(?:Product\s*ID|ID):\s*([A-Z0-9-]+)`)
	boldName       = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	priceValue     = regexp.MustCompile(`\$\s*(\d+(?:\.\d{2})?)`)
	emailValue     = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	phoneValue     = regexp.MustCompile(`\b(?:\+?1[-.\s]?)?\(?([0-9]{3})\)?[-.\s]?([0-9]{3})[-.\s]?([0-9]{4})\b`)
	regexRule      = regexp.MustCompile(`(?i)regex:\s*([^\n]+)`)
)

// codeStopWords are uppercase tokens that appear in discount sections but are
// never codes.
var codeStopWords = map[string]struct{}{
	"HTTPS": {}, "HTTP": {}, "POST": {}, "GET": {},
}

var discountKeywords = []string{"discount", "coupon", "promo", "code", "save", "off"}

// DiscountCode is a promo code extracted from a support document.
type DiscountCode struct {
	Code        string
	Description string
	Value       string
	Confidence  float64
	Source      string
}

// Product is a catalog entry extracted from a support document.
type Product struct {
	ID         string
	Name       string
	Price      string
	Confidence float64
	Source     string
}

type document struct {
	name    string
	content string
	docType string
}

// Store holds loaded support documents and answers test-data queries against
// them. Construct one at startup and pass it where needed.
type Store struct {
	docs   []document
	logger *zap.Logger
}

// NewStore loads the given files. Missing or unreadable files are logged and
// skipped, matching how a partially provisioned docs directory should behave.
func NewStore(paths []string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{logger: logger.Named("supportdocs")}

	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			s.logger.Warn("could not load support document", zap.String("path", p), zap.Error(err))
			continue
		}
		name := filepath.Base(p)
		docType := ClassifyContent(string(data), name)
		s.docs = append(s.docs, document{name: name, content: string(data), docType: docType})
		s.logger.Info("loaded support document", zap.String("name", name), zap.String("type", docType))
	}
	return s
}

// NewStoreFromDir loads every regular file directly under dir.
func NewStoreFromDir(dir string, logger *zap.Logger) *Store {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if logger != nil {
			logger.Warn("could not read support docs directory", zap.String("dir", dir), zap.Error(err))
		}
		return NewStore(nil, logger)
	}
	var paths []string
	for _, e := range entries {
		if !e.IsDir() {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return NewStore(paths, logger)
}

// Len reports how many documents loaded successfully.
func (s *Store) Len() int { return len(s.docs) }

// ClassifyContent buckets a document by its dominant vocabulary.
func ClassifyContent(content, filename string) string {
	lower := strings.ToLower(content)
	switch {
	case containsAny(lower, "discount", "coupon", "promo", "code"):
		return TypeDiscountRules
	case containsAny(lower, "product", "item", "catalog", "price"):
		return TypeProductCatalog
	case containsAny(lower, "validation", "rule", "constraint", "regex"):
		return TypeValidationRules
	case containsAny(lower, "api", "endpoint", "route"):
		return TypeAPISpec
	default:
		return TypeGeneral
	}
}

// ExtractDiscountCodes scans every document with three extractors in
// decreasing confidence order: markdown table rows (0.95), "CODE - desc"
// list lines whose neighborhood mentions discounts (0.85), and bare uppercase
// tokens inside discount-titled sections (0.75). Results are deduplicated by
// code and sorted by confidence.
func (s *Store) ExtractDiscountCodes() []DiscountCode {
	var codes []DiscountCode
	seen := make(map[string]struct{})

	add := func(dc DiscountCode) {
		if _, dup := seen[dc.Code]; dup {
			return
		}
		seen[dc.Code] = struct{}{}
		codes = append(codes, dc)
	}

	for _, doc := range s.docs {
		for _, m := range tablePattern.FindAllStringSubmatch(doc.content, -1) {
			code := strings.TrimSpace(m[1])
			if !codePattern.MatchString(code) {
				continue
			}
			add(DiscountCode{
				Code:        code,
				Description: strings.TrimSpace(m[2]),
				Value:       strings.TrimSpace(m[3]),
				Confidence:  0.95,
				Source:      doc.name,
			})
		}

		for _, loc := range listPattern.FindAllStringSubmatchIndex(doc.content, -1) {
			code := strings.TrimSpace(doc.content[loc[2]:loc[3]])
			desc := strings.TrimSpace(doc.content[loc[4]:loc[5]])
			window := strings.ToLower(doc.content[max(0, loc[0]-100):min(len(doc.content), loc[1]+100)])
			if !containsAny(window, discountKeywords...) {
				continue
			}
			add(DiscountCode{
				Code:        code,
				Description: desc,
				Value:       "See document for details",
				Confidence:  0.85,
				Source:      doc.name,
			})
		}

		lower := strings.ToLower(doc.content)
		if strings.Contains(lower, "discount") || strings.Contains(lower, "coupon") {
			for _, section := range headingSplit.Split(doc.content, -1) {
				if !containsAny(strings.ToLower(section), "discount", "coupon", "promo") {
					continue
				}
				for _, m := range sectionCode.FindAllStringSubmatch(section, -1) {
					code := m[1]
					if _, stop := codeStopWords[code]; stop {
						continue
					}
					add(DiscountCode{
						Code:        code,
						Description: "Extracted from discount section",
						Value:       "See document",
						Confidence:  0.75,
						Source:      doc.name,
					})
				}
			}
		}
	}

	sort.SliceStable(codes, func(i, j int) bool { return codes[i].Confidence > codes[j].Confidence })
	s.logger.Debug("extracted discount codes", zap.Int("count", len(codes)))
	return codes
}

// ExtractProductIDs scans documents for "Product ID: X" declarations and pulls
// the nearest bold name and price from the surrounding text.
func (s *Store) ExtractProductIDs() []Product {
	var products []Product
	for _, doc := range s.docs {
		for _, loc := range productIDStart.FindAllStringSubmatchIndex(doc.content, -1) {
			id := strings.TrimSpace(doc.content[loc[2]:loc[3]])
			window := doc.content[max(0, loc[0]-200):min(len(doc.content), loc[1]+200)]

			name := "Unknown Product"
			if m := boldName.FindStringSubmatch(window); m != nil {
				name = strings.TrimSpace(m[1])
			}
			price := "N/A"
			if m := priceValue.FindStringSubmatch(window); m != nil {
				price = "$" + m[1]
			}

			products = append(products, Product{
				ID:         id,
				Name:       name,
				Price:      price,
				Confidence: 0.90,
				Source:     doc.name,
			})
		}
	}
	s.logger.Debug("extracted product ids", zap.Int("count", len(products)))
	return products
}

// ExtractValidInputValue returns a document-sourced value for the given field
// purpose with a confidence score, or ("", 0) when the documents hold nothing
// usable. Promo and product fields use the dedicated extractors; email and
// phone fields reuse real values mentioned in the docs, skipping obvious
// placeholder domains.
func (s *Store) ExtractValidInputValue(purpose, fieldName string) (string, float64) {
	switch purpose {
	case "promo", "discount", "coupon":
		if codes := s.ExtractDiscountCodes(); len(codes) > 0 {
			best := codes[0]
			s.logger.Info("using extracted discount code",
				zap.String("code", best.Code), zap.String("source", best.Source))
			return best.Code, best.Confidence
		}
	case "product", "product_id", "item_id":
		if products := s.ExtractProductIDs(); len(products) > 0 {
			best := products[0]
			s.logger.Info("using extracted product id",
				zap.String("id", best.ID), zap.String("source", best.Source))
			return best.ID, best.Confidence
		}
	case "email":
		for _, doc := range s.docs {
			for _, email := range emailValue.FindAllString(doc.content, -1) {
				lower := strings.ToLower(email)
				if strings.Contains(lower, "example.com") || strings.Contains(lower, "test.com") {
					continue
				}
				return email, 0.85
			}
		}
	case "phone":
		for _, doc := range s.docs {
			if m := phoneValue.FindStringSubmatch(doc.content); m != nil {
				return "(" + m[1] + ") " + m[2] + "-" + m[3], 0.85
			}
		}
	}
	return "", 0
}

// ValidateGeneratedValue checks a generated value against the documents.
// Promo codes and product ids must exist in the extracted sets; other
// purposes are checked against any regex rule found in validation-rules
// documents. When no rule applies the value passes with middling confidence.
func (s *Store) ValidateGeneratedValue(purpose, value string) (bool, float64, string) {
	switch purpose {
	case "promo", "discount", "coupon":
		codes := s.ExtractDiscountCodes()
		known := make([]string, 0, len(codes))
		for _, dc := range codes {
			if dc.Code == value {
				return true, 0.95, "Code '" + value + "' found in support documents"
			}
			known = append(known, dc.Code)
		}
		return false, 0, "Code '" + value + "' not found. Valid codes: " + strings.Join(capStrings(known, 3), ", ")
	case "product", "product_id":
		products := s.ExtractProductIDs()
		known := make([]string, 0, len(products))
		for _, p := range products {
			if p.ID == value {
				return true, 0.95, "Product ID '" + value + "' found in support documents"
			}
			known = append(known, p.ID)
		}
		return false, 0, "Product ID '" + value + "' not found. Valid IDs: " + strings.Join(capStrings(known, 3), ", ")
	}

	for _, doc := range s.docs {
		if doc.docType != TypeValidationRules {
			continue
		}
		if !strings.Contains(strings.ToLower(doc.content), purpose) {
			continue
		}
		m := regexRule.FindStringSubmatch(doc.content)
		if m == nil {
			continue
		}
		pattern := strings.TrimSpace(strings.Trim(strings.TrimSpace(m[1]), "/"))
		re, err := regexp.Compile(pattern)
		if err != nil {
			s.logger.Warn("invalid regex rule in support document",
				zap.String("doc", doc.name), zap.String("pattern", pattern))
			continue
		}
		if matched := re.FindStringIndex(value); matched != nil && matched[0] == 0 {
			return true, 0.85, "Value matches regex pattern from " + doc.name
		}
		return false, 0, "Value does not match regex pattern: " + pattern
	}
	return true, 0.5, "No validation rules found in documents"
}

func containsAny(s string, keywords ...string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func capStrings(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
