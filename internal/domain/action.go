package domain

// ActionType enumerates the concrete UI interactions a natural-language test
// step can resolve to.
type ActionType string

const (
	ActionFillInput      ActionType = "fill_input"
	ActionSelectDropdown ActionType = "select_dropdown"
	ActionCheckCheckbox  ActionType = "check_checkbox"
	ActionSelectRadio    ActionType = "select_radio"
	ActionClickButton    ActionType = "click_button"
	ActionWaitAndVerify  ActionType = "wait_and_verify"
	ActionComment        ActionType = "comment"
)

// ButtonLocator says which attribute identifies the button to click.
type ButtonLocator string

const (
	LocateByID      ButtonLocator = "id"
	LocateByText    ButtonLocator = "text"
	LocateByClass   ButtonLocator = "class"
	LocateByOnclick ButtonLocator = "onclick"
)

// ActionDescriptor is a structured, typed instruction derived from one
// natural-language test step. The sequence of descriptors preserves step
// order and is the input contract of the script emitter.
type ActionDescriptor struct {
	Type    ActionType `json:"type"`
	Comment string     `json:"comment,omitempty"`

	// fill_input, check_checkbox, select_radio, select_dropdown
	FieldID string `json:"field_id,omitempty"`
	Value   string `json:"value,omitempty"`
	Option  string `json:"option,omitempty"`

	// click_button
	ButtonID    string        `json:"button_id,omitempty"`
	ButtonBy    ButtonLocator `json:"button_by,omitempty"`
	ButtonKey   string        `json:"button_key,omitempty"` // text/class/onclick value when ButtonBy != id
	WaitEnabled bool          `json:"wait_enabled,omitempty"`

	// wait_and_verify
	ElementID    string `json:"element_id,omitempty"`
	ExpectedText string `json:"expected_text,omitempty"`
}
