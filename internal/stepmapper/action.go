package stepmapper

// Action types emitted by the mapper.
const (
	ActionComment        = "comment"
	ActionFillInput      = "fill_input"
	ActionSelectDropdown = "select_dropdown"
	ActionCheckCheckbox  = "check_checkbox"
	ActionSelectRadio    = "select_radio"
	ActionClickButton    = "click_button"
	ActionWaitAndVerify  = "wait_and_verify"
)

// Button locator strategies, in order of reliability.
const (
	ByID      = "id"
	ByText    = "text"
	ByClass   = "class"
	ByOnClick = "onclick"
)

// Action is one concrete browser interaction resolved from a test step.
// Which fields are meaningful depends on Type.
type Action struct {
	Type    string `json:"type"`
	Comment string `json:"comment,omitempty"`

	// fill_input, select_dropdown, check_checkbox, select_radio
	FieldID string `json:"field_id,omitempty"`
	Value   string `json:"value,omitempty"`
	Option  string `json:"option,omitempty"`

	// click_button
	ButtonBy    string `json:"button_by,omitempty"`
	ButtonRef   string `json:"button_ref,omitempty"`
	WaitEnabled bool   `json:"wait_enabled,omitempty"`

	// wait_and_verify
	ElementID    string `json:"element_id,omitempty"`
	ExpectedText string `json:"expected_text,omitempty"`
}

// ActionsFromRaw converts recovered JSON objects into typed actions,
// discarding objects with an unknown type or missing target. The model emits
// button clicks as {button_id}; those become ById click actions.
func ActionsFromRaw(raw []map[string]any) []Action {
	var actions []Action
	for _, obj := range raw {
		actionType, _ := obj["type"].(string)
		comment, _ := obj["comment"].(string)

		switch actionType {
		case ActionFillInput:
			fieldID, _ := obj["field_id"].(string)
			value, _ := obj["value"].(string)
			if fieldID == "" {
				continue
			}
			actions = append(actions, Action{Type: ActionFillInput, Comment: comment, FieldID: fieldID, Value: value})
		case ActionSelectDropdown:
			fieldID, _ := obj["field_id"].(string)
			option, _ := obj["option"].(string)
			if fieldID == "" {
				continue
			}
			actions = append(actions, Action{Type: ActionSelectDropdown, Comment: comment, FieldID: fieldID, Option: option})
		case ActionCheckCheckbox, ActionSelectRadio:
			fieldID, _ := obj["field_id"].(string)
			if fieldID == "" {
				continue
			}
			actions = append(actions, Action{Type: actionType, Comment: comment, FieldID: fieldID})
		case ActionClickButton:
			buttonID, _ := obj["button_id"].(string)
			if buttonID == "" {
				continue
			}
			waitEnabled, _ := obj["wait_enabled"].(bool)
			actions = append(actions, Action{
				Type: ActionClickButton, Comment: comment,
				ButtonBy: ByID, ButtonRef: buttonID, WaitEnabled: waitEnabled,
			})
		case ActionWaitAndVerify:
			elementID, _ := obj["element_id"].(string)
			if elementID == "" {
				continue
			}
			expected, _ := obj["expected_text"].(string)
			actions = append(actions, Action{Type: ActionWaitAndVerify, Comment: comment, ElementID: elementID, ExpectedText: expected})
		}
	}
	return actions
}

// TargetID reports which element an action touches, for filled-field tracking.
func (a Action) TargetID() string {
	switch a.Type {
	case ActionFillInput, ActionSelectDropdown, ActionCheckCheckbox, ActionSelectRadio:
		return a.FieldID
	case ActionClickButton:
		if a.ButtonBy == ByID {
			return a.ButtonRef
		}
	}
	return ""
}
