package pagemodel

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/testweave/testweave/internal/semantic"
)

// Node is a form element in the dependency graph.
type Node struct {
	ID               string
	Type             string // input, select, button, submit_action
	InputType        string
	ButtonType       string
	Required         bool
	ImplicitRequired bool
	Reason           string
	Name             string
	Placeholder      string
	Text             string
	Min              string
	Max              string
	MaxLength        string
	MinLength        string
	Pattern          string
	Options          []string
	Disabled         bool
	ValidationRule   string
	validationVar    string
}

// Edge is a directed dependency between two elements.
type Edge struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Condition string `json:"condition,omitempty"`
}

// FormDependencyGraph captures which fields gate form submission and in what
// order fields should be filled.
type FormDependencyGraph struct {
	nodes     map[string]*Node
	nodeOrder []string
	edges     []Edge
	submitSet map[string]struct{}
}

// NewFormDependencyGraph creates an empty graph.
func NewFormDependencyGraph() *FormDependencyGraph {
	return &FormDependencyGraph{
		nodes:     make(map[string]*Node),
		submitSet: make(map[string]struct{}),
	}
}

// AddNode registers an element. Re-adding an id updates it in place without
// changing its position.
func (g *FormDependencyGraph) AddNode(node *Node) {
	if _, exists := g.nodes[node.ID]; !exists {
		g.nodeOrder = append(g.nodeOrder, node.ID)
	}
	g.nodes[node.ID] = node
}

// Node returns the node with the given id.
func (g *FormDependencyGraph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns all nodes in insertion order.
func (g *FormDependencyGraph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.nodeOrder))
	for _, id := range g.nodeOrder {
		out = append(out, g.nodes[id])
	}
	return out
}

// AddEdge records that `to` depends on `from`.
func (g *FormDependencyGraph) AddEdge(from, to, condition string) {
	g.edges = append(g.edges, Edge{From: from, To: to, Condition: condition})
}

// Edges returns all edges.
func (g *FormDependencyGraph) Edges() []Edge {
	return g.edges
}

// AddSubmitDependency marks an element as a submit prerequisite.
func (g *FormDependencyGraph) AddSubmitDependency(id string) {
	g.submitSet[id] = struct{}{}
}

// SubmitDependencies returns prerequisite ids in insertion order.
func (g *FormDependencyGraph) SubmitDependencies() []string {
	out := make([]string, 0, len(g.submitSet))
	for _, id := range g.nodeOrder {
		if _, ok := g.submitSet[id]; ok {
			out = append(out, id)
		}
	}
	// Dependencies on ids never registered as nodes still count.
	var extra []string
	for id := range g.submitSet {
		if _, ok := g.nodes[id]; !ok {
			extra = append(extra, id)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}

// TopologicalSort orders nodes so dependencies come before dependents. When
// the graph has a cycle, the nodes stuck in it are appended in insertion
// order rather than dropped, and hasCycle reports true.
func (g *FormDependencyGraph) TopologicalSort() (order []string, hasCycle bool) {
	inDegree := make(map[string]int, len(g.nodes))
	for _, id := range g.nodeOrder {
		inDegree[id] = 0
	}
	for _, edge := range g.edges {
		if _, ok := inDegree[edge.To]; ok {
			inDegree[edge.To]++
		}
	}

	var queue []string
	for _, id := range g.nodeOrder {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	placed := make(map[string]struct{}, len(g.nodes))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		placed[id] = struct{}{}

		for _, edge := range g.edges {
			if edge.From != id {
				continue
			}
			if _, ok := inDegree[edge.To]; !ok {
				continue
			}
			inDegree[edge.To]--
			if inDegree[edge.To] == 0 {
				queue = append(queue, edge.To)
			}
		}
	}

	if len(order) < len(g.nodeOrder) {
		hasCycle = true
		for _, id := range g.nodeOrder {
			if _, ok := placed[id]; !ok {
				order = append(order, id)
			}
		}
	}
	return order, hasCycle
}

// SubmissionPreconditions summarizes what must hold before submitting.
type SubmissionPreconditions struct {
	RequiredFields    []string          `json:"required_fields"`
	ValidationRules   map[string]string `json:"validation_rules"`
	FillOrder         []string          `json:"fill_order"`
	ConditionalFields []Edge            `json:"conditional_fields"`
	SubmitEnabledWhen string            `json:"submit_button_enabled_when"`
	HasCycle          bool              `json:"has_cycle,omitempty"`
}

// Preconditions computes the submission preconditions for the graph.
func (g *FormDependencyGraph) Preconditions() SubmissionPreconditions {
	rules := make(map[string]string)
	for id := range g.submitSet {
		if node, ok := g.nodes[id]; ok && node.ValidationRule != "" {
			rules[id] = node.ValidationRule
		}
	}

	var conditional []Edge
	for _, edge := range g.edges {
		if edge.Condition != "" {
			conditional = append(conditional, edge)
		}
	}

	order, hasCycle := g.TopologicalSort()

	return SubmissionPreconditions{
		RequiredFields:    g.SubmitDependencies(),
		ValidationRules:   rules,
		FillOrder:         order,
		ConditionalFields: conditional,
		SubmitEnabledWhen: "All required fields valid AND terms accepted",
		HasCycle:          hasCycle,
	}
}

var (
	validationVarPattern = regexp.MustCompile(`const\s+(\w+Valid)\s*=\s*(.+?);`)
	elementIDPattern     = regexp.MustCompile(`getElementById\(["'](\w+)["']\)`)
	allValidPattern      = regexp.MustCompile(`const\s+allValid\s*=\s*(.+?);`)
	validVarRefPattern   = regexp.MustCompile(`(\w+Valid|\w+Ok)`)
	conditionalJSPattern = regexp.MustCompile(`if\s*\((\w+)\.value\s*===\s*["'](\w+)["']\)\s*\{[^}]*?(\w+)\.style\.display`)
	termsCheckboxPattern = regexp.MustCompile(`(?i)terms|agree|accept`)
	quantityFieldPattern = regexp.MustCompile(`(?i)quantity|qty|amount`)
)

// AnalyzeDependencies builds a form dependency graph from a parsed page:
// declared attributes first, then validation logic mined from inline
// scripts, then implicit requirements. The matcher may be nil to skip
// semantic payment-field detection.
func AnalyzeDependencies(ctx context.Context, page *Page, matcher *semantic.Matcher) *FormDependencyGraph {
	graph := NewFormDependencyGraph()

	for _, in := range page.Inputs {
		if in.ID == "" {
			continue
		}
		graph.AddNode(&Node{
			ID:          in.ID,
			Type:        "input",
			InputType:   in.Type,
			Required:    in.Required,
			Name:        in.Name,
			Placeholder: in.Placeholder,
			Min:         in.Min,
			Max:         in.Max,
			MaxLength:   in.MaxLength,
			MinLength:   in.MinLength,
			Pattern:     in.Pattern,
		})
	}

	for _, sel := range page.Selects {
		if sel.ID == "" {
			continue
		}
		options := make([]string, 0, len(sel.Options))
		for _, opt := range sel.Options {
			if opt.Value != "" {
				options = append(options, opt.Value)
			} else {
				options = append(options, opt.Text)
			}
		}
		graph.AddNode(&Node{
			ID:       sel.ID,
			Type:     "select",
			Required: sel.Required,
			Name:     sel.Name,
			Options:  options,
		})
	}

	for _, btn := range page.Buttons {
		if btn.ID == "" || btn.Tag != "button" {
			continue
		}
		graph.AddNode(&Node{
			ID:         btn.ID,
			Type:       "button",
			ButtonType: btn.Type,
			Text:       btn.Text,
			Disabled:   btn.Disabled,
		})
		if btn.Type == "submit" {
			graph.AddNode(&Node{ID: "__submit__", Type: "submit_action"})
			graph.AddEdge(btn.ID, "__submit__", "")
		}
	}

	for _, script := range page.Scripts {
		parseScriptDependencies(script, graph)
	}

	inferImplicitDependencies(ctx, page, graph, matcher)

	return graph
}

func parseScriptDependencies(js string, graph *FormDependencyGraph) {
	for _, match := range validationVarPattern.FindAllStringSubmatch(js, -1) {
		varName, condition := match[1], match[2]
		if idMatch := elementIDPattern.FindStringSubmatch(condition); idMatch != nil {
			if node, ok := graph.Node(idMatch[1]); ok {
				node.ValidationRule = condition
				node.validationVar = varName
			}
		}
	}

	if match := allValidPattern.FindStringSubmatch(js); match != nil {
		for _, ref := range validVarRefPattern.FindAllString(match[1], -1) {
			for _, node := range graph.Nodes() {
				if node.validationVar == ref {
					graph.AddSubmitDependency(node.ID)
				}
			}
		}
	}

	for _, match := range conditionalJSPattern.FindAllStringSubmatch(js, -1) {
		controlling, triggerValue, dependent := match[1], match[2], match[3]
		if _, ok := graph.Node(controlling); ok {
			graph.AddEdge(controlling, dependent, "value=='"+triggerValue+"'")
		}
	}
}

func inferImplicitDependencies(ctx context.Context, page *Page, graph *FormDependencyGraph, matcher *semantic.Matcher) {
	if len(page.Forms) == 0 {
		return
	}

	hasSubmit := false
	for _, form := range page.Forms {
		for _, f := range form.Fields {
			if f.Tag == "button" && f.Type == "submit" {
				hasSubmit = true
			}
		}
	}
	if !hasSubmit {
		return
	}

	for _, rf := range page.RequiredFields {
		if rf.ID != "" {
			if _, ok := graph.Node(rf.ID); ok {
				graph.AddSubmitDependency(rf.ID)
			}
		}
	}

	for _, cb := range page.Checkboxes {
		if cb.ID != "" && termsCheckboxPattern.MatchString(cb.ID) {
			graph.AddSubmitDependency(cb.ID)
		}
	}

	// When a payment method choice exists, its card fields become implicit
	// prerequisites even without the required attribute.
	hasPaymentRadio := false
	for _, rg := range page.RadioGroups {
		if rg.Name == "payment" {
			hasPaymentRadio = true
		}
	}
	if hasPaymentRadio && matcher != nil {
		for _, in := range page.Inputs {
			if in.ID == "" {
				continue
			}
			node, ok := graph.Node(in.ID)
			if !ok {
				continue
			}
			isPayment, fieldType, _ := matcher.DetectPaymentField(ctx, semantic.FieldAttrs{
				ID:          in.ID,
				Name:        in.Name,
				Placeholder: in.Placeholder,
				AriaLabel:   in.AriaLabel,
			})
			if isPayment {
				graph.AddSubmitDependency(in.ID)
				node.ImplicitRequired = true
				node.Reason = "Payment field (" + fieldType + ")"
			}
		}
	}

	for _, in := range page.Inputs {
		if in.ID == "" {
			continue
		}
		if _, ok := graph.Node(in.ID); !ok {
			continue
		}
		if in.Type == "email" {
			graph.AddSubmitDependency(in.ID)
		}
		if in.Type == "number" && quantityFieldPattern.MatchString(in.ID) {
			graph.AddSubmitDependency(in.ID)
		}
	}
}

// TestDataForGraph proposes fill values satisfying the graph's constraints,
// keyed by element id.
func TestDataForGraph(g *FormDependencyGraph) map[string]string {
	data := make(map[string]string)
	order, _ := g.TopologicalSort()

	for _, id := range order {
		node, ok := g.Node(id)
		if !ok {
			continue
		}

		switch node.Type {
		case "input":
			switch node.InputType {
			case "text":
				length := 2
				if node.MinLength != "" {
					if n := atoiDefault(node.MinLength, 2); n > length {
						length = n
					}
				}
				data[id] = strings.Repeat("A", length)
			case "email":
				data[id] = "test@example.com"
			case "tel":
				data[id] = "1234567890"
			case "number":
				if node.Min != "" {
					data[id] = node.Min
				} else {
					data[id] = "1"
				}
			case "checkbox":
				if _, required := g.submitSet[id]; required {
					data[id] = "true"
				}
			}
		case "select":
			if len(node.Options) > 0 {
				data[id] = node.Options[0]
			}
		}
	}
	return data
}

func atoiDefault(s string, def int) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return def
		}
		n = n*10 + int(r-'0')
	}
	if s == "" {
		return def
	}
	return n
}
