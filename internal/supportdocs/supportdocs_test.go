package supportdocs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const discountDoc = `# Store Policies

## Discount Codes

| Code | Description | Value |
| SAVE15 | 15 percent off orders above $25 | 15% |
| FREESHIP | Free shipping on any order | $0.00 |

Seasonal promo: WINTER20 - twenty percent off winter items.

Support contact: help@acmestore.io or (415) 555-0134.
`

const catalogDoc = `# Product Catalog

**Mechanical Keyboard**
Product ID: KB-200
Price: $89.99

**Wireless Mouse**
Product ID: MS-310
Price: $24.50
`

const rulesDoc = `Validation rules for checkout fields.

zip validation
regex: ^\d{5}$
`

func writeDocs(t *testing.T, docs map[string]string) []string {
	t.Helper()
	dir := t.TempDir()
	var paths []string
	for name, content := range docs {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
		paths = append(paths, p)
	}
	return paths
}

func storeWith(t *testing.T, docs map[string]string) *Store {
	t.Helper()
	return NewStore(writeDocs(t, docs), zap.NewNop())
}

func TestNewStore_SkipsMissingFiles(t *testing.T) {
	paths := writeDocs(t, map[string]string{"rules.txt": rulesDoc})
	paths = append(paths, "/nonexistent/ghost.md")

	s := NewStore(paths, zap.NewNop())
	assert.Equal(t, 1, s.Len())
}

func TestClassifyContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"discounts win", discountDoc, TypeDiscountRules},
		{"catalog", "our product catalog lists every item", TypeProductCatalog},
		{"validation", "each field has a validation constraint", TypeValidationRules},
		{"api", "the /orders endpoint accepts JSON", TypeAPISpec},
		{"general", "welcome to the store", TypeGeneral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyContent(tt.content, "doc.md"))
		})
	}
}

func TestExtractDiscountCodes(t *testing.T) {
	s := storeWith(t, map[string]string{"discounts.md": discountDoc})

	codes := s.ExtractDiscountCodes()
	require.NotEmpty(t, codes)

	byCode := make(map[string]DiscountCode, len(codes))
	for _, dc := range codes {
		require.NotContains(t, byCode, dc.Code, "codes are deduplicated")
		byCode[dc.Code] = dc
	}

	save, ok := byCode["SAVE15"]
	require.True(t, ok)
	assert.Equal(t, 0.95, save.Confidence, "table rows carry highest confidence")
	assert.Equal(t, "15 percent off orders above $25", save.Description)
	assert.Equal(t, "15%", save.Value)
	assert.Equal(t, "discounts.md", save.Source)

	winter, ok := byCode["WINTER20"]
	require.True(t, ok)
	assert.Equal(t, 0.85, winter.Confidence, "list lines near discount words")

	assert.NotContains(t, byCode, "HTTP")

	for i := 1; i < len(codes); i++ {
		assert.GreaterOrEqual(t, codes[i-1].Confidence, codes[i].Confidence,
			"sorted by confidence descending")
	}
}

func TestExtractProductIDs(t *testing.T) {
	s := storeWith(t, map[string]string{"catalog.md": catalogDoc})

	products := s.ExtractProductIDs()
	require.Len(t, products, 2)

	assert.Equal(t, "KB-200", products[0].ID)
	assert.Equal(t, "Mechanical Keyboard", products[0].Name)
	assert.Equal(t, "$89.99", products[0].Price)
	assert.Equal(t, 0.90, products[0].Confidence)
	assert.Equal(t, "MS-310", products[1].ID)
}

func TestExtractValidInputValue(t *testing.T) {
	s := storeWith(t, map[string]string{
		"discounts.md": discountDoc,
		"catalog.md":   catalogDoc,
	})

	t.Run("promo uses best discount code", func(t *testing.T) {
		value, conf := s.ExtractValidInputValue("promo", "promo-code")
		assert.Equal(t, 0.95, conf)
		assert.Contains(t, []string{"SAVE15", "FREESHIP"}, value)
	})

	t.Run("product uses first catalog id", func(t *testing.T) {
		value, conf := s.ExtractValidInputValue("product_id", "sku")
		assert.Equal(t, "KB-200", value)
		assert.Equal(t, 0.90, conf)
	})

	t.Run("email skips placeholder domains", func(t *testing.T) {
		value, conf := s.ExtractValidInputValue("email", "email")
		assert.Equal(t, "help@acmestore.io", value)
		assert.Equal(t, 0.85, conf)
	})

	t.Run("phone formats extracted number", func(t *testing.T) {
		value, conf := s.ExtractValidInputValue("phone", "phone")
		assert.Equal(t, "(415) 555-0134", value)
		assert.Equal(t, 0.85, conf)
	})

	t.Run("unknown purpose yields nothing", func(t *testing.T) {
		value, conf := s.ExtractValidInputValue("favorite-color", "color")
		assert.Empty(t, value)
		assert.Zero(t, conf)
	})
}

func TestExtractValidInputValue_PlaceholderEmailsOnly(t *testing.T) {
	s := storeWith(t, map[string]string{
		"contact.txt": "Reach us at demo@example.com or qa@test.com.",
	})
	value, conf := s.ExtractValidInputValue("email", "email")
	assert.Empty(t, value)
	assert.Zero(t, conf)
}

func TestValidateGeneratedValue(t *testing.T) {
	s := storeWith(t, map[string]string{
		"discounts.md": discountDoc,
		"catalog.md":   catalogDoc,
		"rules.txt":    rulesDoc,
	})

	t.Run("known promo code passes", func(t *testing.T) {
		ok, conf, reason := s.ValidateGeneratedValue("promo", "SAVE15")
		assert.True(t, ok)
		assert.Equal(t, 0.95, conf)
		assert.Contains(t, reason, "SAVE15")
	})

	t.Run("unknown promo code fails with suggestions", func(t *testing.T) {
		ok, conf, reason := s.ValidateGeneratedValue("promo", "BOGUS99")
		assert.False(t, ok)
		assert.Zero(t, conf)
		assert.Contains(t, reason, "Valid codes:")
	})

	t.Run("known product id passes", func(t *testing.T) {
		ok, _, _ := s.ValidateGeneratedValue("product", "MS-310")
		assert.True(t, ok)
	})

	t.Run("regex rule applies", func(t *testing.T) {
		ok, conf, _ := s.ValidateGeneratedValue("zip", "94107")
		assert.True(t, ok)
		assert.Equal(t, 0.85, conf)

		ok, _, reason := s.ValidateGeneratedValue("zip", "abc")
		assert.False(t, ok)
		assert.Contains(t, reason, "regex pattern")
	})

	t.Run("no rule means pass with middling confidence", func(t *testing.T) {
		ok, conf, _ := s.ValidateGeneratedValue("nickname", "charlie")
		assert.True(t, ok)
		assert.Equal(t, 0.5, conf)
	})
}
