package scriptgen

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/testweave/testweave/internal/domain"
	"github.com/testweave/testweave/internal/pagemodel"
	"github.com/testweave/testweave/internal/semantic"
	"github.com/testweave/testweave/internal/stepmapper"
)

// nullEmbedder returns zero vectors, so every semantic gate in the step
// mapper stays closed and only the substring rules fire.
type nullEmbedder struct{}

func (nullEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{0, 0, 0}, nil
}

func (nullEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0, 0, 0}
	}
	return out, nil
}

func newTestGenerator() *Generator {
	embedder := nullEmbedder{}
	matcher := semantic.NewMatcher(embedder, zap.NewNop())
	mapper := stepmapper.NewMapper(matcher, embedder, nil, nil, 11, zap.NewNop())
	return NewGenerator(mapper, zap.NewNop())
}

func signupPage() *pagemodel.Page {
	return &pagemodel.Page{
		Title: "Signup Form",
		Inputs: []pagemodel.Input{
			{Type: "email", ID: "email", Name: "email"},
		},
		Buttons: []pagemodel.Button{
			{Tag: "button", Type: "submit", ID: "submit-order", Text: "Sign Up"},
		},
		SuccessElements: []pagemodel.MessageElement{
			{ID: "confirmation", Tag: "div", Text: "Thanks for signing up"},
		},
	}
}

func signupCase() domain.TestCase {
	return domain.TestCase{
		TestID:         "TC-001",
		Feature:        "Signup",
		TestScenario:   "Register with a valid email address",
		TestSteps:      []string{"Enter test@example.com in the email field"},
		ExpectedResult: "Confirmation message is shown",
		TestType:       "positive",
		Priority:       "high",
	}
}

func TestGenerate_Pytest(t *testing.T) {
	g := newTestGenerator()

	result, err := g.Generate(context.Background(), signupPage(), []domain.TestCase{signupCase()}, Options{})
	require.NoError(t, err)

	assert.Equal(t, FrameworkPytest, result.Framework)
	assert.Equal(t, "chrome", result.Browser)
	assert.Equal(t, "Signup Form", result.PageTitle)
	assert.Equal(t, 1, result.TestCasesCovered)
	assert.Equal(t, 2, result.ElementsMapped)

	script := result.Script
	assert.Contains(t, script, "# Selenium Test Script for Signup Form")
	assert.Contains(t, script, "import pytest")
	assert.NotContains(t, script, "import unittest")

	// Locators for every identified element.
	assert.Contains(t, script, "self.email = (By.ID, 'email')")
	assert.Contains(t, script, "self.submit_order = (By.ID, 'submit-order')")
	assert.Contains(t, script, "self.confirmation = (By.ID, 'confirmation')")

	// Helpers follow the inventory: no selects or checkboxes on this page.
	assert.Contains(t, script, "def fill_input_field")
	assert.Contains(t, script, "def click_button")
	assert.Contains(t, script, "def get_element_text")
	assert.Contains(t, script, "def wait_for_element")
	assert.NotContains(t, script, "def select_dropdown_option")
	assert.NotContains(t, script, "def check_checkbox")

	assert.Contains(t, script, "@pytest.fixture(scope='module')")
	assert.Contains(t, script, "def test_tc_001(driver):")
	assert.Contains(t, script, "Register with a valid email address")
	assert.Contains(t, script, "Priority: high")
	assert.Contains(t, script, "driver.get('file:///path/to/page.html')")

	assert.Contains(t, script, "page.fill_input_field('email', 'test_")
	assert.Contains(t, script, "# Submit form and verify")
	assert.Contains(t, script, "page.click_button('submit-order')")
	assert.Contains(t, script, "page.wait_for_element('confirmation')")
	assert.Contains(t, script, "result = page.get_element_text('confirmation')")
	assert.Contains(t, script, "assert 'Thanks for signing up' in result")
	assert.Contains(t, script, "pytest.main([__file__, '-v'])")
}

func TestGenerate_Unittest(t *testing.T) {
	g := newTestGenerator()

	result, err := g.Generate(context.Background(), signupPage(), []domain.TestCase{signupCase()},
		Options{Framework: FrameworkUnittest, PageURL: "http://localhost:8000/signup.html"})
	require.NoError(t, err)

	script := result.Script
	assert.Contains(t, script, "import unittest")
	assert.NotContains(t, script, "import pytest")
	assert.Contains(t, script, "class TestSuite(unittest.TestCase):")
	assert.Contains(t, script, "    def test_tc_001(self):")
	assert.Contains(t, script, "        page = Page(self.driver)")
	assert.Contains(t, script, "self.driver.get('http://localhost:8000/signup.html')")
	assert.Contains(t, script, "unittest.main(verbosity=2)")
	assert.NotContains(t, script, "@pytest.fixture")
}

func TestGenerate_UnknownFramework(t *testing.T) {
	g := newTestGenerator()

	_, err := g.Generate(context.Background(), signupPage(), []domain.TestCase{signupCase()},
		Options{Framework: "mocha"})
	require.Error(t, err)
	assert.Equal(t, domain.ErrCodeValidation, domain.GetErrorCode(err))
}

func TestGenerate_SynthesizesSmokeCase(t *testing.T) {
	g := newTestGenerator()
	page := &pagemodel.Page{
		Title:  "Contact",
		Inputs: []pagemodel.Input{{Type: "text", ID: "message", Name: "message"}},
	}

	result, err := g.Generate(context.Background(), page, nil, Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, result.TestCasesCovered)
	assert.Contains(t, result.Script, "def test_tc_001(driver):")
	assert.Contains(t, result.Script, "Basic interaction with Contact form elements")
	assert.Contains(t, result.Script, "# No submit button detected")
}

func TestGenerate_ButtonWithoutID(t *testing.T) {
	g := newTestGenerator()
	page := &pagemodel.Page{
		Title:   "Landing",
		Buttons: []pagemodel.Button{{Tag: "button", Text: "Go"}},
	}

	result, err := g.Generate(context.Background(), page, []domain.TestCase{{
		TestID:       "TC-001",
		TestScenario: "Launch",
		TestSteps:    []string{"Open the page"},
	}}, Options{})
	require.NoError(t, err)

	assert.Contains(t, result.Script, "def click_button_by_text")
	assert.Contains(t, result.Script, "page.click_button_by_text('Go')")
}

func TestTestFuncName(t *testing.T) {
	assert.Equal(t, "test_tc_003", testFuncName("TC-003", 3))
	assert.Equal(t, "test_tc_002", testFuncName("", 2))
}

func TestPyQuote(t *testing.T) {
	assert.Equal(t, `O\'Brien`, pyQuote("O'Brien"))
	assert.Equal(t, `a\\b`, pyQuote(`a\b`))
	assert.Equal(t, "plain", pyQuote("plain"))
}
