// Package scriptgen renders validated test cases into a runnable Selenium
// script built on the page object pattern. The output is fully determined by
// the page inventory and the mapped actions: locators come from element ids,
// helper methods are emitted only when something uses them, and every test
// ends with the submit-and-verify block.
package scriptgen

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/testweave/testweave/internal/domain"
	"github.com/testweave/testweave/internal/pagemodel"
	"github.com/testweave/testweave/internal/stepmapper"
)

// Supported output flavors.
const (
	FrameworkPytest   = "pytest"
	FrameworkUnittest = "unittest"
)

// DefaultPageURL is emitted when the caller does not know where the page
// will be served from. The placeholder keeps generated scripts runnable
// after a single edit.
const DefaultPageURL = "file:///path/to/page.html"

// Options configures one script rendering.
type Options struct {
	Framework string
	Browser   string
	PageURL   string
}

// Result carries the rendered script together with coverage counters the
// caller reports back to the user.
type Result struct {
	Script           string
	Framework        string
	Browser          string
	PageTitle        string
	ElementsMapped   int
	TestCasesCovered int
	GeneratedAt      time.Time
}

// Generator renders scripts. The mapper resolves each case's steps into
// actions before anything is written.
type Generator struct {
	mapper *stepmapper.Mapper
	logger *zap.Logger
}

func NewGenerator(mapper *stepmapper.Mapper, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{mapper: mapper, logger: logger.Named("scriptgen")}
}

// Generate renders one complete script covering all given test cases. An
// empty case list is replaced by a single smoke test so the output is never
// an empty file.
func (g *Generator) Generate(ctx context.Context, page *pagemodel.Page, cases []domain.TestCase, opts Options) (*Result, error) {
	framework := opts.Framework
	if framework == "" {
		framework = FrameworkPytest
	}
	if framework != FrameworkPytest && framework != FrameworkUnittest {
		return nil, domain.NewError(domain.ErrCodeValidation,
			fmt.Sprintf("unsupported framework %q", framework))
	}
	browser := opts.Browser
	if browser == "" {
		browser = "chrome"
	}
	pageURL := opts.PageURL
	if pageURL == "" {
		pageURL = DefaultPageURL
	}
	if len(cases) == 0 {
		cases = []domain.TestCase{smokeCase(page)}
		g.logger.Info("no test cases supplied, synthesized a smoke test")
	}

	// Tests are rendered first so the page class can emit exactly the
	// helper methods the action bodies ended up calling.
	needs := newMethodNeeds(page)
	var tests []string
	for i, tc := range cases {
		actions := g.mapper.Map(ctx, tc.TestSteps, page, tc)
		tests = append(tests, renderTest(tc, i+1, actions, framework, pageURL, needs))
	}

	title := page.Title
	if title == "" {
		title = "Page"
	}

	var b strings.Builder
	b.WriteString("# Selenium Test Script for " + title + "\n")
	b.WriteString("# Generated: " + time.Now().Format(time.RFC3339) + "\n\n")
	b.WriteString(renderImports(framework) + "\n\n")
	b.WriteString(renderPageClass(page, needs) + "\n\n")
	b.WriteString(renderHarness(framework) + "\n\n")
	b.WriteString(strings.Join(tests, "\n\n") + "\n\n")
	b.WriteString(renderMainBlock(framework) + "\n")

	script := b.String()
	g.logger.Info("rendered selenium script",
		zap.String("framework", framework),
		zap.Int("test_cases", len(cases)),
		zap.Int("chars", len(script)))

	return &Result{
		Script:           script,
		Framework:        framework,
		Browser:          browser,
		PageTitle:        title,
		ElementsMapped:   countMappedElements(page),
		TestCasesCovered: len(cases),
		GeneratedAt:      time.Now(),
	}, nil
}

// smokeCase covers the bare minimum when validation accepted nothing: open
// the page, touch the first elements, expect no errors.
func smokeCase(page *pagemodel.Page) domain.TestCase {
	feature := page.Title
	if feature == "" {
		feature = "UI Validation"
	}
	return domain.TestCase{
		TestID:       "TC-001",
		Feature:      feature,
		TestScenario: "Basic interaction with " + feature + " form elements",
		TestSteps: []string{
			"Open page",
			"Populate first input field (if any)",
			"Click first button (if any)",
			"Verify no errors thrown",
		},
		ExpectedResult: "Page responds without errors and elements are interactable",
		TestType:       "positive",
		Priority:       "medium",
		GroundedIn:     "inference",
	}
}

func countMappedElements(page *pagemodel.Page) int {
	return len(page.Forms) + len(page.Inputs) + len(page.Buttons) +
		len(page.Selects) + len(page.Links)
}
