package pagemodel

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// Parse builds a Page from raw HTML. Script and style content is excluded
// from text extraction; script bodies are kept for dependency analysis.
func Parse(content string) (*Page, error) {
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}

	page := &Page{Title: "Untitled Page"}
	labelFor := collectLabels(doc)
	radioGroups := make(map[string]int)

	var walk func(n *html.Node, parentLabel string)
	walk = func(n *html.Node, parentLabel string) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if t := nodeText(n); t != "" {
					page.Title = t
				}
			case "script":
				if body := rawText(n); strings.TrimSpace(body) != "" {
					page.Scripts = append(page.Scripts, body)
				}
				return
			case "style":
				return
			case "label":
				parentLabel = nodeText(n)
			case "input":
				page.addInput(n, labelFor, parentLabel, radioGroups)
			case "select":
				page.addSelect(n)
			case "textarea":
				page.addTextArea(n)
			case "button":
				page.addButton(n)
			case "a":
				page.Links = append(page.Links, Link{
					Href:  attr(n, "href"),
					Text:  nodeText(n),
					ID:    attr(n, "id"),
					Class: attr(n, "class"),
				})
			case "h1", "h2", "h3", "h4", "h5", "h6":
				page.Headings = append(page.Headings, Heading{
					Level: n.Data,
					Text:  nodeText(n),
					ID:    attr(n, "id"),
				})
			case "form":
				page.addForm(n)
			case "div", "section", "fieldset":
				page.addConditionalSection(n)
			}

			if attr(n, "aria-live") != "" {
				page.DynamicElements = append(page.DynamicElements, DynamicElement{
					ID:       attr(n, "id"),
					Tag:      n.Data,
					AriaLive: attr(n, "aria-live"),
					Role:     attr(n, "role"),
					Class:    attr(n, "class"),
				})
			}

			if n.Data == "div" || n.Data == "span" || n.Data == "p" {
				page.addMessageElement(n)
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, parentLabel)
		}
	}
	walk(doc, "")

	page.collectValidationAttrs()
	page.collectRequiredFields()
	page.collectDisabledButtons()

	return page, nil
}

func (p *Page) addInput(n *html.Node, labelFor map[string]string, parentLabel string, radioGroups map[string]int) {
	inputType := attrDefault(n, "type", "text")
	id := attr(n, "id")

	label := labelFor[id]
	if label == "" {
		label = parentLabel
	}

	switch inputType {
	case "checkbox":
		p.Checkboxes = append(p.Checkboxes, Checkbox{
			ID:       id,
			Name:     attr(n, "name"),
			Value:    attrDefault(n, "value", "on"),
			Checked:  hasAttr(n, "checked"),
			Required: hasAttr(n, "required"),
			Disabled: hasAttr(n, "disabled"),
			Label:    label,
			Class:    attr(n, "class"),
		})
	case "radio":
		name := attr(n, "name")
		if name == "" {
			break
		}
		opt := RadioOption{
			ID:      id,
			Value:   attr(n, "value"),
			Checked: hasAttr(n, "checked"),
			Label:   label,
		}
		if idx, ok := radioGroups[name]; ok {
			p.RadioGroups[idx].Options = append(p.RadioGroups[idx].Options, opt)
			if hasAttr(n, "required") {
				p.RadioGroups[idx].Required = true
			}
		} else {
			radioGroups[name] = len(p.RadioGroups)
			p.RadioGroups = append(p.RadioGroups, RadioGroup{
				Name:     name,
				Required: hasAttr(n, "required"),
				Options:  []RadioOption{opt},
			})
		}
	case "button", "submit", "reset":
		p.Buttons = append(p.Buttons, Button{
			Tag:       "input",
			Type:      inputType,
			ID:        id,
			Name:      attr(n, "name"),
			Text:      attr(n, "value"),
			Class:     attr(n, "class"),
			OnClick:   attr(n, "onclick"),
			Disabled:  hasAttr(n, "disabled"),
			AriaLabel: attr(n, "aria-label"),
		})
	}

	p.Inputs = append(p.Inputs, Input{
		Type:        inputType,
		ID:          id,
		Name:        attr(n, "name"),
		Placeholder: attr(n, "placeholder"),
		Value:       attr(n, "value"),
		Class:       attr(n, "class"),
		Required:    hasAttr(n, "required"),
		Disabled:    hasAttr(n, "disabled"),
		ReadOnly:    hasAttr(n, "readonly"),
		Pattern:     attr(n, "pattern"),
		MinLength:   attr(n, "minlength"),
		MaxLength:   attr(n, "maxlength"),
		Min:         attr(n, "min"),
		Max:         attr(n, "max"),
		AriaLabel:   attr(n, "aria-label"),
		Label:       label,
	})
}

func (p *Page) addSelect(n *html.Node) {
	sel := Select{
		ID:        attr(n, "id"),
		Name:      attr(n, "name"),
		Class:     attr(n, "class"),
		Required:  hasAttr(n, "required"),
		Multiple:  hasAttr(n, "multiple"),
		Disabled:  hasAttr(n, "disabled"),
		AriaLabel: attr(n, "aria-label"),
	}

	forEachElement(n, "option", func(opt *html.Node) {
		text := nodeText(opt)
		value := attr(opt, "value")
		if value == "" {
			value = text
		}
		sel.Options = append(sel.Options, SelectOption{
			Value:    value,
			Text:     text,
			Selected: hasAttr(opt, "selected"),
		})
	})

	p.Selects = append(p.Selects, sel)
}

func (p *Page) addTextArea(n *html.Node) {
	p.TextAreas = append(p.TextAreas, TextArea{
		ID:          attr(n, "id"),
		Name:        attr(n, "name"),
		Placeholder: attr(n, "placeholder"),
		Class:       attr(n, "class"),
		Required:    hasAttr(n, "required"),
		Disabled:    hasAttr(n, "disabled"),
		MaxLength:   attr(n, "maxlength"),
		AriaLabel:   attr(n, "aria-label"),
	})
}

func (p *Page) addButton(n *html.Node) {
	p.Buttons = append(p.Buttons, Button{
		Tag:       "button",
		Type:      attrDefault(n, "type", "button"),
		ID:        attr(n, "id"),
		Name:      attr(n, "name"),
		Text:      nodeText(n),
		Class:     attr(n, "class"),
		OnClick:   attr(n, "onclick"),
		Disabled:  hasAttr(n, "disabled"),
		AriaLabel: attr(n, "aria-label"),
	})
}

func (p *Page) addForm(n *html.Node) {
	form := Form{
		Index:  len(p.Forms) + 1,
		ID:     attr(n, "id"),
		Name:   attr(n, "name"),
		Action: attr(n, "action"),
		Method: strings.ToUpper(attrDefault(n, "method", "GET")),
	}
	if form.ID == "" {
		form.ID = fmt.Sprintf("form_%d", form.Index)
	}

	var collect func(node *html.Node)
	collect = func(node *html.Node) {
		if node.Type == html.ElementNode {
			switch node.Data {
			case "input", "select", "textarea":
				field := FormField{
					Tag:         node.Data,
					Type:        attrDefault(node, "type", "text"),
					ID:          attr(node, "id"),
					Name:        attr(node, "name"),
					Placeholder: attr(node, "placeholder"),
					Required:    hasAttr(node, "required"),
				}
				if node.Data == "select" {
					field.OptionCount = countElements(node, "option")
				}
				form.Fields = append(form.Fields, field)
			case "button":
				form.Fields = append(form.Fields, FormField{
					Tag:  "button",
					Type: attrDefault(node, "type", "submit"),
					ID:   attr(node, "id"),
					Name: attr(node, "name"),
					Text: nodeText(node),
				})
			}
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collect(c)
	}

	p.Forms = append(p.Forms, form)
}

func (p *Page) addConditionalSection(n *html.Node) {
	conditionType := ""
	switch {
	case attr(n, "aria-hidden") == "true":
		conditionType = "aria-hidden"
	case styleHidesElement(attr(n, "style")):
		conditionType = "display:none"
	case hasAnyClass(n, "hidden", "disabled", "collapsed"):
		conditionType = "css-class"
	default:
		return
	}

	p.ConditionalSections = append(p.ConditionalSections, ConditionalSection{
		ID:             attr(n, "id"),
		Tag:            n.Data,
		ConditionType:  conditionType,
		Class:          attr(n, "class"),
		ContainsInputs: countElements(n, "input")+countElements(n, "select")+countElements(n, "button") > 0,
	})
}

func (p *Page) addMessageElement(n *html.Node) {
	role := attr(n, "role")
	visible := !styleHidesElement(attr(n, "style"))

	if hasAnyClass(n, "error") || role == "alert" {
		p.ErrorElements = append(p.ErrorElements, MessageElement{
			ID:               attr(n, "id"),
			Tag:              n.Data,
			Class:            attr(n, "class"),
			Role:             role,
			InitiallyVisible: visible,
		})
	}

	if hasAnyClass(n, "success", "confirmation", "alert-success") {
		p.SuccessElements = append(p.SuccessElements, MessageElement{
			ID:               attr(n, "id"),
			Tag:              n.Data,
			Class:            attr(n, "class"),
			Role:             role,
			Text:             nodeText(n),
			InitiallyVisible: visible,
		})
	}
}

func (p *Page) collectValidationAttrs() {
	for _, in := range p.Inputs {
		if in.Pattern != "" || in.Required || in.MinLength != "" || in.MaxLength != "" {
			p.ValidationAttrs = append(p.ValidationAttrs, ValidationAttr{
				ID:        in.ID,
				Name:      in.Name,
				Type:      in.Type,
				Required:  in.Required,
				Pattern:   in.Pattern,
				MinLength: in.MinLength,
				MaxLength: in.MaxLength,
				Min:       in.Min,
				Max:       in.Max,
			})
		}
	}
	for _, ta := range p.TextAreas {
		if ta.Required || ta.MaxLength != "" {
			p.ValidationAttrs = append(p.ValidationAttrs, ValidationAttr{
				ID:        ta.ID,
				Name:      ta.Name,
				Type:      "textarea",
				Required:  ta.Required,
				MaxLength: ta.MaxLength,
			})
		}
	}
	for _, sel := range p.Selects {
		if sel.Required {
			p.ValidationAttrs = append(p.ValidationAttrs, ValidationAttr{
				ID:       sel.ID,
				Name:     sel.Name,
				Type:     "select",
				Required: true,
			})
		}
	}
}

func (p *Page) collectRequiredFields() {
	for _, in := range p.Inputs {
		if in.Required {
			p.RequiredFields = append(p.RequiredFields, RequiredField{ID: in.ID, Name: in.Name, Type: in.Type})
		}
	}
	for _, sel := range p.Selects {
		if sel.Required {
			p.RequiredFields = append(p.RequiredFields, RequiredField{ID: sel.ID, Name: sel.Name, Type: "select"})
		}
	}
	for _, ta := range p.TextAreas {
		if ta.Required {
			p.RequiredFields = append(p.RequiredFields, RequiredField{ID: ta.ID, Name: ta.Name, Type: "textarea"})
		}
	}
}

func (p *Page) collectDisabledButtons() {
	for _, btn := range p.Buttons {
		if btn.Disabled {
			p.DisabledButtons = append(p.DisabledButtons, btn)
		}
	}
}

// collectLabels maps label[for] ids to label text.
func collectLabels(doc *html.Node) map[string]string {
	labels := make(map[string]string)
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "label" {
			if forID := attr(n, "for"); forID != "" {
				labels[forID] = nodeText(n)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return labels
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func attrDefault(n *html.Node, key, def string) string {
	if v := attr(n, key); v != "" {
		return v
	}
	return def
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

func hasAnyClass(n *html.Node, names ...string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		for _, name := range names {
			if c == name {
				return true
			}
		}
	}
	return false
}

func styleHidesElement(style string) bool {
	return strings.Contains(strings.ReplaceAll(style, " ", ""), "display:none")
}

// nodeText returns the trimmed text content of a subtree, skipping scripts
// and styles.
func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(node *html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
		}
		if node.Type == html.ElementNode && (node.Data == "script" || node.Data == "style") {
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

// rawText returns the unprocessed text children of a node.
func rawText(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	}
	return sb.String()
}

func forEachElement(n *html.Node, tag string, fn func(*html.Node)) {
	var walk func(node *html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && node.Data == tag {
			fn(node)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c)
	}
}

func countElements(n *html.Node, tag string) int {
	count := 0
	forEachElement(n, tag, func(*html.Node) { count++ })
	return count
}
