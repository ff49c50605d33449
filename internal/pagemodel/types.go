// Package pagemodel parses page HTML into a typed element inventory and a
// form dependency graph.
package pagemodel

// Input describes an <input> element.
type Input struct {
	Type        string
	ID          string
	Name        string
	Placeholder string
	Value       string
	Class       string
	Required    bool
	Disabled    bool
	ReadOnly    bool
	Pattern     string
	MinLength   string
	MaxLength   string
	Min         string
	Max         string
	AriaLabel   string
	Label       string
}

// SelectOption is one <option> of a dropdown.
type SelectOption struct {
	Value    string
	Text     string
	Selected bool
}

// Select describes a <select> element.
type Select struct {
	ID        string
	Name      string
	Class     string
	Required  bool
	Multiple  bool
	Disabled  bool
	AriaLabel string
	Options   []SelectOption
}

// TextArea describes a <textarea> element.
type TextArea struct {
	ID          string
	Name        string
	Placeholder string
	Class       string
	Required    bool
	Disabled    bool
	MaxLength   string
	AriaLabel   string
}

// Button describes a clickable <button> or button-like <input>.
type Button struct {
	Tag       string
	Type      string
	ID        string
	Name      string
	Text      string
	Class     string
	OnClick   string
	Disabled  bool
	AriaLabel string
}

// Checkbox describes an <input type="checkbox"> with its resolved label.
type Checkbox struct {
	ID       string
	Name     string
	Value    string
	Checked  bool
	Required bool
	Disabled bool
	Label    string
	Class    string
}

// RadioOption is one option within a radio group.
type RadioOption struct {
	ID      string
	Value   string
	Checked bool
	Label   string
}

// RadioGroup collects radios sharing a name attribute.
type RadioGroup struct {
	Name     string
	Required bool
	Options  []RadioOption
}

// Link describes an <a> element.
type Link struct {
	Href  string
	Text  string
	ID    string
	Class string
}

// Heading describes an h1..h6 element.
type Heading struct {
	Level string
	Text  string
	ID    string
}

// FormField is a field or button inside a form.
type FormField struct {
	Tag         string
	Type        string
	ID          string
	Name        string
	Placeholder string
	Required    bool
	Text        string
	OptionCount int
}

// Form describes a <form> and its fields.
type Form struct {
	Index  int
	ID     string
	Name   string
	Action string
	Method string
	Fields []FormField
}

// ConditionalSection is a container hidden until some interaction reveals it.
type ConditionalSection struct {
	ID             string
	Tag            string
	ConditionType  string
	Class          string
	ContainsInputs bool
}

// DynamicElement is an aria-live region whose content changes at runtime.
type DynamicElement struct {
	ID       string
	Tag      string
	AriaLive string
	Role     string
	Class    string
}

// MessageElement is an error or success message container.
type MessageElement struct {
	ID               string
	Tag              string
	Class            string
	Role             string
	Text             string
	InitiallyVisible bool
}

// ValidationAttr captures declarative validation on a field.
type ValidationAttr struct {
	ID        string
	Name      string
	Type      string
	Required  bool
	Pattern   string
	MinLength string
	MaxLength string
	Min       string
	Max       string
}

// RequiredField is a field the page marks as mandatory.
type RequiredField struct {
	ID   string
	Name string
	Type string
}

// Page is the parsed element inventory of one HTML document.
type Page struct {
	Title               string
	Forms               []Form
	Inputs              []Input
	Selects             []Select
	TextAreas           []TextArea
	Buttons             []Button
	Checkboxes          []Checkbox
	RadioGroups         []RadioGroup
	Links               []Link
	Headings            []Heading
	ConditionalSections []ConditionalSection
	DynamicElements     []DynamicElement
	ErrorElements       []MessageElement
	SuccessElements     []MessageElement
	ValidationAttrs     []ValidationAttr
	RequiredFields      []RequiredField
	DisabledButtons     []Button
	Scripts             []string
}

// InputByID returns the input with the given id.
func (p *Page) InputByID(id string) (Input, bool) {
	for _, in := range p.Inputs {
		if in.ID == id {
			return in, true
		}
	}
	return Input{}, false
}

// SelectByID returns the select with the given id.
func (p *Page) SelectByID(id string) (Select, bool) {
	for _, sel := range p.Selects {
		if sel.ID == id {
			return sel, true
		}
	}
	return Select{}, false
}

// ButtonByID returns the button with the given id.
func (p *Page) ButtonByID(id string) (Button, bool) {
	for _, btn := range p.Buttons {
		if btn.ID == id {
			return btn, true
		}
	}
	return Button{}, false
}
