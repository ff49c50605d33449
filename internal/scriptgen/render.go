package scriptgen

import (
	"strings"

	"github.com/testweave/testweave/internal/domain"
	"github.com/testweave/testweave/internal/pagemodel"
	"github.com/testweave/testweave/internal/stepmapper"
)

// Page helper method names, in emission order.
var methodOrder = []string{
	"fill_input_field",
	"select_dropdown_option",
	"check_checkbox",
	"select_radio",
	"click_button",
	"wait_button_enabled",
	"click_button_by_text",
	"click_button_by_class",
	"click_button_by_onclick",
	"get_element_text",
	"wait_for_element",
}

var methodBodies = map[string][]string{
	"fill_input_field": {
		"    def fill_input_field(self, field_id: str, value: str):",
		`        """Fill any text input field (text/email/tel/number) by its ID"""`,
		"        field = self.driver.find_element(By.ID, field_id)",
		"        field.clear()",
		"        field.send_keys(value)",
	},
	"select_dropdown_option": {
		"    def select_dropdown_option(self, field_id: str, option_text: str):",
		`        """Select option from dropdown by visible text"""`,
		"        select = Select(self.driver.find_element(By.ID, field_id))",
		"        select.select_by_visible_text(option_text)",
	},
	"check_checkbox": {
		"    def check_checkbox(self, field_id: str):",
		`        """Check a checkbox by its ID"""`,
		"        checkbox = self.driver.find_element(By.ID, field_id)",
		"        if not checkbox.is_selected():",
		"            checkbox.click()",
	},
	"select_radio": {
		"    def select_radio(self, radio_id: str):",
		`        """Select a radio button by its ID"""`,
		"        radio = self.driver.find_element(By.ID, radio_id)",
		"        if not radio.is_selected():",
		"            radio.click()",
	},
	"click_button": {
		"    def click_button(self, button_id: str):",
		`        """Click any button by its ID"""`,
		"        self.driver.find_element(By.ID, button_id).click()",
	},
	"wait_button_enabled": {
		"    def wait_button_enabled(self, button_id: str, timeout: int = 10):",
		`        """Wait for button to become enabled (for JS validation)"""`,
		"        WebDriverWait(self.driver, timeout).until(",
		"            lambda d: d.find_element(By.ID, button_id).is_enabled()",
		"        )",
	},
	"click_button_by_text": {
		"    def click_button_by_text(self, button_text: str):",
		`        """Click button by its visible text"""`,
		`        self.driver.find_element(By.XPATH, f"//button[contains(text(), '{button_text}')]").click()`,
	},
	"click_button_by_class": {
		"    def click_button_by_class(self, class_name: str):",
		`        """Click first button with given class name"""`,
		"        self.driver.find_element(By.CLASS_NAME, class_name).click()",
	},
	"click_button_by_onclick": {
		"    def click_button_by_onclick(self, onclick_text: str):",
		`        """Click button whose onclick attribute contains the given text"""`,
		`        self.driver.find_element(By.XPATH, f"//button[contains(@onclick, '{onclick_text}')]").click()`,
	},
	"get_element_text": {
		"    def get_element_text(self, element_id: str, wait: bool = True):",
		`        """Get text content from any element by ID"""`,
		"        if wait:",
		"            self.wait.until(EC.visibility_of_element_located((By.ID, element_id)))",
		"        return self.driver.find_element(By.ID, element_id).text",
	},
	"wait_for_element": {
		"    def wait_for_element(self, element_id: str, timeout: int = 10):",
		`        """Wait for element to be visible"""`,
		"        WebDriverWait(self.driver, timeout).until(",
		"            EC.visibility_of_element_located((By.ID, element_id))",
		"        )",
	},
}

// methodNeeds tracks which page helpers the rendered tests actually call.
// The core interaction helpers are seeded from the element inventory; the
// locator-variant clicks and waits are marked as action bodies use them.
type methodNeeds struct {
	used map[string]bool
}

func newMethodNeeds(page *pagemodel.Page) *methodNeeds {
	n := &methodNeeds{used: map[string]bool{"wait_for_element": true}}
	if len(page.Inputs) > 0 {
		n.used["fill_input_field"] = true
	}
	if len(page.Selects) > 0 {
		n.used["select_dropdown_option"] = true
	}
	if len(page.Checkboxes) > 0 {
		n.used["check_checkbox"] = true
	}
	if len(page.RadioGroups) > 0 {
		n.used["select_radio"] = true
	}
	if len(page.Buttons) > 0 {
		n.used["click_button"] = true
	}
	if len(page.SuccessElements) > 0 || len(page.DynamicElements) > 0 {
		n.used["get_element_text"] = true
	}
	return n
}

func (n *methodNeeds) mark(name string) { n.used[name] = true }

func renderImports(framework string) string {
	lines := []string{
		"from selenium import webdriver",
		"from selenium.webdriver.common.by import By",
		"from selenium.webdriver.support.ui import WebDriverWait",
		"from selenium.webdriver.support import expected_conditions as EC",
		"from selenium.webdriver.support.ui import Select",
	}
	if framework == FrameworkPytest {
		lines = append(lines, "import pytest")
	} else {
		lines = append(lines, "import unittest")
	}
	return strings.Join(lines, "\n")
}

func renderPageClass(page *pagemodel.Page, needs *methodNeeds) string {
	lines := []string{
		"class Page:",
		"    def __init__(self, driver):",
		"        self.driver = driver",
		"        self.wait = WebDriverWait(driver, 10)",
	}
	for _, loc := range pageLocators(page) {
		lines = append(lines, "        "+loc)
	}
	lines = append(lines, "")

	for _, name := range methodOrder {
		if !needs.used[name] {
			continue
		}
		lines = append(lines, methodBodies[name]...)
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

// pageLocators emits one locator attribute per uniquely identified element.
// Radio groups locate by name since their options share it.
func pageLocators(page *pagemodel.Page) []string {
	var locators []string
	seen := make(map[string]bool)

	byID := func(id string) {
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		locators = append(locators, "self."+attrName(id)+" = (By.ID, '"+pyQuote(id)+"')")
	}

	for _, sel := range page.Selects {
		byID(sel.ID)
	}
	for _, in := range page.Inputs {
		byID(in.ID)
	}
	for _, cb := range page.Checkboxes {
		byID(cb.ID)
	}
	for _, rg := range page.RadioGroups {
		if rg.Name == "" || seen[rg.Name] || len(rg.Options) == 0 {
			continue
		}
		seen[rg.Name] = true
		locators = append(locators, "self."+attrName(rg.Name)+" = (By.NAME, '"+pyQuote(rg.Name)+"')")
	}
	for _, btn := range page.Buttons {
		byID(btn.ID)
	}
	for _, elem := range page.SuccessElements {
		byID(elem.ID)
	}
	for _, elem := range page.DynamicElements {
		byID(elem.ID)
	}
	return locators
}

func renderHarness(framework string) string {
	if framework == FrameworkPytest {
		return strings.Join([]string{
			"@pytest.fixture(scope='module')",
			"def driver():",
			`    """Create and configure WebDriver instance"""`,
			"    driver = webdriver.Chrome()",
			"    driver.maximize_window()",
			"    driver.implicitly_wait(5)",
			"    yield driver",
			"    driver.quit()",
		}, "\n")
	}
	return strings.Join([]string{
		"class TestSuite(unittest.TestCase):",
		"    @classmethod",
		"    def setUpClass(cls):",
		"        cls.driver = webdriver.Chrome()",
		"        cls.driver.maximize_window()",
		"        cls.driver.implicitly_wait(5)",
		"",
		"    @classmethod",
		"    def tearDownClass(cls):",
		"        cls.driver.quit()",
	}, "\n")
}

func renderMainBlock(framework string) string {
	if framework == FrameworkPytest {
		return strings.Join([]string{
			"if __name__ == '__main__':",
			"    # Run with: pytest <filename> -v",
			"    pytest.main([__file__, '-v'])",
		}, "\n")
	}
	return strings.Join([]string{
		"if __name__ == '__main__':",
		"    unittest.main(verbosity=2)",
	}, "\n")
}

func renderTest(tc domain.TestCase, idx int, actions []stepmapper.Action, framework, pageURL string, needs *methodNeeds) string {
	testName := testFuncName(tc.TestID, idx)
	scenario := tc.TestScenario
	if scenario == "" {
		scenario = "Test scenario"
	}
	priority := tc.Priority
	if priority == "" {
		priority = "medium"
	}

	body := renderActions(actions, needs)

	var lines []string
	if framework == FrameworkPytest {
		lines = []string{
			"def " + testName + "(driver):",
			`    """`,
			"    " + scenario,
			"    Test ID: " + tc.TestID,
			"    Priority: " + string(priority),
			`    """`,
			"    page = Page(driver)",
			"    driver.get('" + pyQuote(pageURL) + "')",
			"",
		}
		lines = append(lines, indent(body, "    ")...)
	} else {
		lines = []string{
			"    def " + testName + "(self):",
			`        """`,
			"        " + scenario,
			"        Test ID: " + tc.TestID,
			"        Priority: " + string(priority),
			`        """`,
			"        page = Page(self.driver)",
			"        self.driver.get('" + pyQuote(pageURL) + "')",
			"",
		}
		lines = append(lines, indent(body, "        ")...)
	}
	return strings.Join(lines, "\n")
}

// renderActions writes the unindented statement lines for one test body and
// marks every helper method it calls.
func renderActions(actions []stepmapper.Action, needs *methodNeeds) []string {
	var lines []string
	for _, act := range actions {
		if act.Comment != "" {
			lines = append(lines, "# "+act.Comment)
		}
		switch act.Type {
		case stepmapper.ActionFillInput:
			needs.mark("fill_input_field")
			lines = append(lines, "page.fill_input_field('"+pyQuote(act.FieldID)+"', '"+pyQuote(act.Value)+"')")
		case stepmapper.ActionSelectDropdown:
			needs.mark("select_dropdown_option")
			lines = append(lines, "page.select_dropdown_option('"+pyQuote(act.FieldID)+"', '"+pyQuote(act.Option)+"')")
		case stepmapper.ActionCheckCheckbox:
			needs.mark("check_checkbox")
			lines = append(lines, "page.check_checkbox('"+pyQuote(act.FieldID)+"')")
		case stepmapper.ActionSelectRadio:
			needs.mark("select_radio")
			lines = append(lines, "page.select_radio('"+pyQuote(act.FieldID)+"')")
		case stepmapper.ActionClickButton:
			lines = append(lines, renderClick(act, needs)...)
		case stepmapper.ActionWaitAndVerify:
			needs.mark("wait_for_element")
			lines = append(lines, "page.wait_for_element('"+pyQuote(act.ElementID)+"')")
			if act.ExpectedText != "" {
				needs.mark("get_element_text")
				expected := pyQuote(act.ExpectedText)
				lines = append(lines, "result = page.get_element_text('"+pyQuote(act.ElementID)+"')")
				lines = append(lines, "assert '"+expected+`' in result, f'Expected "`+expected+`", got: {result}'`)
			}
		}
		lines = append(lines, "")
	}
	// Trim the trailing spacer so tests do not end with blank lines.
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func renderClick(act stepmapper.Action, needs *methodNeeds) []string {
	var lines []string
	switch act.ButtonBy {
	case stepmapper.ByID:
		if act.WaitEnabled {
			needs.mark("wait_button_enabled")
			lines = append(lines, "page.wait_button_enabled('"+pyQuote(act.ButtonRef)+"')")
		}
		needs.mark("click_button")
		lines = append(lines, "page.click_button('"+pyQuote(act.ButtonRef)+"')")
	case stepmapper.ByText:
		needs.mark("click_button_by_text")
		lines = append(lines, "page.click_button_by_text('"+pyQuote(act.ButtonRef)+"')")
	case stepmapper.ByClass:
		needs.mark("click_button_by_class")
		lines = append(lines, "page.click_button_by_class('"+pyQuote(act.ButtonRef)+"')")
	case stepmapper.ByOnClick:
		needs.mark("click_button_by_onclick")
		lines = append(lines, "page.click_button_by_onclick('"+pyQuote(act.ButtonRef)+"')")
	}
	return lines
}

func testFuncName(testID string, idx int) string {
	if testID == "" {
		testID = domain.FormatTestID(idx)
	}
	name := strings.ToLower(strings.ReplaceAll(testID, "-", "_"))
	return "test_" + name
}

// attrName makes an element id usable as a Python attribute.
func attrName(id string) string {
	return strings.ReplaceAll(strings.ReplaceAll(id, "-", "_"), ".", "_")
}

// pyQuote escapes a value for a single-quoted Python string literal.
func pyQuote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, "'", `\'`)
}

func indent(lines []string, prefix string) []string {
	out := make([]string, len(lines))
	for i, line := range lines {
		if line == "" {
			out[i] = ""
			continue
		}
		out[i] = prefix + line
	}
	return out
}
