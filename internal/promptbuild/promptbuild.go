// Package promptbuild prepares retrieved context and assembles generation
// prompts: redaction, sanitization, token budgeting, deduplication, and the
// grounded prompt with HTML structure and form dependency sections.
package promptbuild

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/testweave/testweave/internal/domain"
	"github.com/testweave/testweave/internal/pagemodel"
)

// DefaultContextTokens caps how much retrieved context enters a prompt when
// the caller does not compute a model-specific budget.
const DefaultContextTokens = 6000

var (
	emailPattern      = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	cardPattern       = regexp.MustCompile(`\b\d{4}[- ]?\d{4}[- ]?\d{4}[- ]?\d{4}\b`)
	controlPattern    = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F]`)
	whitespacePattern = regexp.MustCompile(`\s+`)
	countPattern      = regexp.MustCompile(`(\d+)\s+test`)
)

// RedactSensitive masks email addresses and card-shaped digit runs before
// text leaves the process.
func RedactSensitive(text string) string {
	if text == "" {
		return text
	}
	text = emailPattern.ReplaceAllString(text, "[EMAIL]")
	text = cardPattern.ReplaceAllString(text, "[CARD]")
	return text
}

// SanitizeText strips control characters and collapses whitespace runs.
func SanitizeText(text string) string {
	if text == "" {
		return ""
	}
	text = controlPattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))
}

// EstimateTokens approximates the token count of text at four characters per
// token, never returning less than one.
func EstimateTokens(text string) int {
	n := len(text) / 4
	if n < 1 {
		return 1
	}
	return n
}

// RequestedCount extracts an explicit test case count from the user prompt,
// such as "generate 5 test cases". Defaults to one.
func RequestedCount(prompt string) int {
	match := countPattern.FindStringSubmatch(strings.ToLower(prompt))
	if match == nil {
		return 1
	}
	n := 0
	for _, r := range match[1] {
		n = n*10 + int(r-'0')
	}
	if n < 1 {
		return 1
	}
	return n
}

// DeduplicateChunks drops chunks whose normalized text already appeared,
// preserving order. Returns the surviving chunks and how many were removed.
func DeduplicateChunks(chunks []domain.Chunk) ([]domain.Chunk, int) {
	seen := make(map[string]struct{}, len(chunks))
	out := make([]domain.Chunk, 0, len(chunks))
	for _, c := range chunks {
		sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(c.Text))))
		key := hex.EncodeToString(sum[:])
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out, len(chunks) - len(out)
}

// TruncateContextSmart selects chunks in ranked order until the token budget
// is exhausted and renders them as a single context block with source
// attributions. The boolean reports whether any chunks were cut.
func TruncateContextSmart(chunks []domain.Chunk, maxTokens int) (string, bool, []domain.Chunk) {
	if maxTokens <= 0 {
		maxTokens = DefaultContextTokens
	}

	var selected []domain.Chunk
	total := 0
	for _, c := range chunks {
		tok := EstimateTokens(c.Text)
		if total+tok > maxTokens {
			break
		}
		selected = append(selected, c)
		total += tok
	}

	parts := make([]string, 0, len(selected))
	for _, c := range selected {
		source := c.Source
		if source == "" {
			source = "unknown"
		}
		parts = append(parts, fmt.Sprintf("[Source: %s]\n%s\n", source, SanitizeText(c.Text)))
	}
	return strings.Join(parts, "\n"), len(selected) < len(chunks), selected
}

// BuildDynamicPrompt assembles the full generation prompt. The page and
// preconditions are optional; when present they add an element reference
// section and mandatory form-filling rules so generated steps target real
// element ids and never skip required fields.
func BuildDynamicPrompt(userPrompt, context string, requestedCount int, page *pagemodel.Page, pre *pagemodel.SubmissionPreconditions) string {
	if requestedCount < 1 {
		requestedCount = 1
	}

	htmlSection := ""
	if page != nil {
		htmlSection = fmt.Sprintf(`
HTML STRUCTURE REFERENCE (Use these EXACT element IDs/names in test steps):
%s
`, formatHTMLStructure(page))
	}

	dependencySection := ""
	if pre != nil {
		dependencySection = fmt.Sprintf(`
FORM VALIDATION & DEPENDENCY RULES (CRITICAL - Follow this exact order):
%s

IMPORTANT: The submit button is DISABLED until ALL required fields are valid.
You MUST include ALL prerequisite steps before the submit action.
`, formatDependencySection(pre))
	}

	return fmt.Sprintf(`You are a QA test case generator. Your task is to create test cases based ONLY on the provided documentation and HTML structure.

CRITICAL RULES:
1. Use ONLY information from the CONTEXT below
2. Do NOT invent prices, numbers, or data
3. Test steps must reference ACTUAL element IDs/names from HTML structure
4. Do NOT include specific values like "$18.00" or "$1.80" in test steps
5. Generate EXACTLY %d test case(s)
6. Each test step should be actionable and map to HTML elements

**MANDATORY FORM VALIDATION RULES (NON-NEGOTIABLE):**
7. If REQUIRED FIELDS are listed below, you MUST include steps to fill ALL of them
8. If a RECOMMENDED FILL ORDER is provided, follow it exactly
9. The submit button will be DISABLED until all required fields are valid
10. Even if the user's request is brief (e.g., "test discount code"), you MUST still fill ALL required fields first
11. NEVER generate a test case that tries to submit without filling required fields - it will FAIL in real execution

CONTEXT (Your ONLY source of truth):
%s
%s
%s
USER REQUEST:
%s

OUTPUT FORMAT (JSON array only, no markdown):
[
  {
    "test_id": "TC-001",
    "feature": "Brief feature name from context",
    "test_scenario": "What is being tested",
    "test_steps": [
      "Select [element_name] from dropdown",
      "Enter value in [field_id]",
      "Click [button_id] button"
    ],
    "expected_result": "Expected outcome from context",
    "test_type": "positive",
    "priority": "high",
    "grounded_in": "document_name_from_context"
  }
]

Generate the JSON array now:`, requestedCount, clip(context, 3000), htmlSection, dependencySection, userPrompt)
}

func formatHTMLStructure(page *pagemodel.Page) string {
	var sections []string

	if len(page.Inputs) > 0 {
		sections = append(sections, "INPUT FIELDS:")
		for _, in := range capSlice(page.Inputs, 15) {
			info := "  - ID: " + orNA(in.ID)
			if in.Name != "" {
				info += ", Name: " + in.Name
			}
			info += ", Type: " + orDefault(in.Type, "text")
			if in.Placeholder != "" {
				info += ", Placeholder: '" + in.Placeholder + "'"
			}
			sections = append(sections, info)
		}
	}

	if len(page.Selects) > 0 {
		sections = append(sections, "\nDROPDOWN MENUS:")
		for _, sel := range capSlice(page.Selects, 10) {
			info := "  - ID: " + orNA(sel.ID)
			if sel.Name != "" {
				info += ", Name: " + sel.Name
			}
			if len(sel.Options) > 0 {
				var values []string
				for _, opt := range capSlice(sel.Options, 5) {
					if opt.Value != "" {
						values = append(values, opt.Value)
					} else {
						values = append(values, opt.Text)
					}
				}
				info += "\n    Options: [" + strings.Join(values, ", ") + "]"
			}
			sections = append(sections, info)
		}
	}

	if len(page.Buttons) > 0 {
		sections = append(sections, "\nBUTTONS:")
		for _, btn := range capSlice(page.Buttons, 10) {
			info := "  - ID: " + orNA(btn.ID)
			if btn.Text != "" {
				info += ", Text: '" + btn.Text + "'"
			}
			if btn.Type != "" {
				info += ", Type: " + btn.Type
			}
			sections = append(sections, info)
		}
	}

	if len(page.Checkboxes) > 0 {
		sections = append(sections, "\nCHECKBOXES:")
		for _, cb := range capSlice(page.Checkboxes, 10) {
			info := "  - ID: " + orNA(cb.ID)
			if cb.Label != "" {
				info += ", Label: '" + cb.Label + "'"
			}
			sections = append(sections, info)
		}
	}

	if len(page.SuccessElements) > 0 {
		sections = append(sections, "\nSUCCESS/CONFIRMATION ELEMENTS:")
		for _, elem := range capSlice(page.SuccessElements, 5) {
			info := "  - ID: " + orNA(elem.ID)
			if elem.Text != "" {
				info += ", Content: '" + clip(elem.Text, 50) + "'"
			}
			sections = append(sections, info)
		}
	}

	if len(page.DynamicElements) > 0 {
		sections = append(sections, "\nDYNAMIC ELEMENTS (for validation/waiting):")
		for _, elem := range capSlice(page.DynamicElements, 5) {
			info := "  - ID: " + orNA(elem.ID)
			if elem.Class != "" {
				info += ", Class: " + elem.Class
			}
			sections = append(sections, info)
		}
	}

	return strings.Join(sections, "\n")
}

func formatDependencySection(pre *pagemodel.SubmissionPreconditions) string {
	divider := strings.Repeat("=", 80)
	sections := []string{
		"\n" + divider,
		"  FORM DEPENDENCY GRAPH - MUST FOLLOW EXACTLY ",
		divider,
	}

	required := make(map[string]struct{}, len(pre.RequiredFields))
	for _, id := range pre.RequiredFields {
		required[id] = struct{}{}
	}

	if len(pre.RequiredFields) > 0 {
		sections = append(sections, "\n REQUIRED FIELDS (ALL must be filled before ANY submit action):")
		for _, id := range pre.RequiredFields {
			sections = append(sections, " "+id)
		}
		sections = append(sections,
			"\n CRITICAL: Test cases that skip required fields WILL FAIL in execution!",
			" ALWAYS include steps to fill ALL required fields, even if user's prompt doesn't mention them.")
	}

	if len(pre.FillOrder) > 0 {
		sections = append(sections, "\n RECOMMENDED FILL ORDER (follow this sequence):")
		order := pre.FillOrder
		if len(order) > 15 {
			order = order[:15]
		}
		for i, id := range order {
			marker := "optional"
			if _, ok := required[id]; ok {
				marker = " REQUIRED"
			}
			sections = append(sections, fmt.Sprintf("  %d. %s (%s)", i+1, id, marker))
		}
	}

	if len(pre.ConditionalFields) > 0 {
		sections = append(sections, "\n CONDITIONAL DEPENDENCIES:")
		for _, dep := range pre.ConditionalFields {
			cond := dep.Condition
			if cond == "" {
				cond = "N/A"
			}
			sections = append(sections, fmt.Sprintf("  - %s depends on %s (condition: %s)", dep.To, dep.From, cond))
		}
	}

	if len(pre.ValidationRules) > 0 {
		sections = append(sections, "\nVALIDATION RULES:")
		for _, id := range sortedKeys(pre.ValidationRules) {
			rule := pre.ValidationRules[id]
			if rule != "" {
				sections = append(sections, "  - "+id+": "+clip(rule, 100))
			}
		}
	}

	if pre.SubmitEnabledWhen != "" {
		sections = append(sections,
			"\n SUBMIT BUTTON STATUS: "+pre.SubmitEnabledWhen,
			"  Attempting to click submit before meeting these conditions will FAIL!")
	}

	sections = append(sections, "\n"+divider)
	return strings.Join(sections, "\n")
}

func clip(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func capSlice[T any](in []T, n int) []T {
	if len(in) > n {
		return in[:n]
	}
	return in
}
