// Package stepmapper resolves natural-language test steps into concrete
// browser actions against a parsed page. The generation backend gets the
// first attempt via a structured-output prompt; when it yields nothing
// usable, a deterministic per-step classifier takes over.
package stepmapper

import (
	"context"
	"encoding/json"
	"math/rand"

	"go.uber.org/zap"

	"github.com/testweave/testweave/internal/domain"
	"github.com/testweave/testweave/internal/embeddings"
	"github.com/testweave/testweave/internal/jsonrepair"
	"github.com/testweave/testweave/internal/llm"
	"github.com/testweave/testweave/internal/pagemodel"
	"github.com/testweave/testweave/internal/semantic"
	"github.com/testweave/testweave/internal/supportdocs"
)

const actionMappingMaxTokens = 1500

// Mapper turns test steps into action sequences. The backend and docs store
// may be nil: without a backend only the deterministic classifier runs, and
// without the docs store promo fields fall back to generated codes.
type Mapper struct {
	matcher   *semantic.Matcher
	embedder  embeddings.Embedder
	docs      *supportdocs.Store
	backend   llm.Backend
	recoverer *jsonrepair.Recoverer
	rng       *rand.Rand
	logger    *zap.Logger
}

// NewMapper creates a step mapper. Generated test data (emails, phone
// numbers, coupon codes) comes from the given seed, so equal seeds produce
// identical scripts.
func NewMapper(matcher *semantic.Matcher, embedder embeddings.Embedder, docs *supportdocs.Store, backend llm.Backend, seed int64, logger *zap.Logger) *Mapper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mapper{
		matcher:   matcher,
		embedder:  embedder,
		docs:      docs,
		backend:   backend,
		recoverer: jsonrepair.NewRecoverer(logger),
		rng:       rand.New(rand.NewSource(seed)),
		logger:    logger.Named("stepmapper"),
	}
}

// Map resolves the full step list into actions and appends the terminal
// verification block (submit click plus confirmation assert) that every
// script ends with.
func (m *Mapper) Map(ctx context.Context, steps []string, page *pagemodel.Page, tc domain.TestCase) []Action {
	actions := m.mapWithBackend(ctx, steps, page, tc)
	if len(actions) == 0 {
		actions = m.mapDeterministic(ctx, steps, page)
	}
	return m.appendFinalVerification(ctx, page, actions)
}

// mapWithBackend delegates the whole step list to the generation backend and
// parses its JSON response through the recovery cascade. Backend failures are
// absorbed: an empty result hands control to the deterministic classifier.
func (m *Mapper) mapWithBackend(ctx context.Context, steps []string, page *pagemodel.Page, tc domain.TestCase) []Action {
	if m.backend == nil {
		return nil
	}

	prompt := buildActionPrompt(steps, page, tc)
	raw, err := m.backend.Generate(ctx, llm.Request{Prompt: prompt, MaxTokens: actionMappingMaxTokens, Temperature: llm.DefaultTemperature})
	if err != nil {
		m.logger.Warn("backend action mapping failed, using deterministic classifier", zap.Error(err))
		return nil
	}

	objects, stage := m.recoverer.Recover(raw)
	if len(objects) == 0 {
		m.logger.Warn("backend returned no recoverable actions")
		return nil
	}

	actions := ActionsFromRaw(objects)
	m.logger.Info("backend mapped steps to actions",
		zap.Int("steps", len(steps)),
		zap.Int("actions", len(actions)),
		zap.String("recovery_stage", stage))
	return actions
}

type inventoryInput struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Name        string `json:"name"`
	Placeholder string `json:"placeholder"`
}

type inventoryDropdown struct {
	ID      string   `json:"id"`
	Options []string `json:"options"`
}

type inventoryCheckbox struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type inventoryButton struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Text string `json:"text"`
}

type inventoryDynamic struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

type elementInventory struct {
	TextInputs      []inventoryInput    `json:"text_inputs"`
	Dropdowns       []inventoryDropdown `json:"dropdowns"`
	Checkboxes      []inventoryCheckbox `json:"checkboxes"`
	Buttons         []inventoryButton   `json:"buttons"`
	DynamicElements []inventoryDynamic  `json:"dynamic_elements"`
}

func buildInventory(page *pagemodel.Page) elementInventory {
	inv := elementInventory{
		TextInputs:      []inventoryInput{},
		Dropdowns:       []inventoryDropdown{},
		Checkboxes:      []inventoryCheckbox{},
		Buttons:         []inventoryButton{},
		DynamicElements: []inventoryDynamic{},
	}
	for _, in := range page.Inputs {
		inv.TextInputs = append(inv.TextInputs, inventoryInput{ID: in.ID, Type: in.Type, Name: in.Name, Placeholder: in.Placeholder})
	}
	for _, sel := range page.Selects {
		opts := make([]string, 0, len(sel.Options))
		for _, o := range sel.Options {
			opts = append(opts, o.Text)
		}
		inv.Dropdowns = append(inv.Dropdowns, inventoryDropdown{ID: sel.ID, Options: opts})
	}
	for _, cb := range page.Checkboxes {
		inv.Checkboxes = append(inv.Checkboxes, inventoryCheckbox{ID: cb.ID, Label: cb.Label})
	}
	for _, btn := range page.Buttons {
		inv.Buttons = append(inv.Buttons, inventoryButton{ID: btn.ID, Type: btn.Type, Text: btn.Text})
	}
	for _, dyn := range page.DynamicElements {
		inv.DynamicElements = append(inv.DynamicElements, inventoryDynamic{ID: dyn.ID, Role: dyn.Role})
	}
	return inv
}

func buildActionPrompt(steps []string, page *pagemodel.Page, tc domain.TestCase) string {
	inventoryJSON, _ := json.MarshalIndent(buildInventory(page), "", "  ")
	stepsJSON, _ := json.MarshalIndent(steps, "", "  ")
	caseJSON, _ := json.MarshalIndent(tc, "", "  ")

	return `You are a test automation expert. Map the following test steps to specific HTML element interactions.

## Available HTML Elements:
` + string(inventoryJSON) + `

## Test Steps to Implement:
` + string(stepsJSON) + `

## Test Case Context:
` + string(caseJSON) + `

Your task: For EACH step, determine which HTML element(s) to interact with and generate action objects.

Action types available:
- fill_input: Fill a text input field
- select_dropdown: Select option from dropdown
- check_checkbox: Check a checkbox
- click_button: Click a button
- wait_and_verify: Wait for element and verify text

Return a JSON array of actions. Each action must have:
- type: One of the action types above
- comment: Brief description of what this action does
- For fill_input: field_id, value
- For select_dropdown: field_id, option
- For check_checkbox: field_id
- For click_button: button_id, wait_enabled (boolean)
- For wait_and_verify: element_id, expected_text (optional)

CRITICAL RULES:
1. Map steps to ACTUAL element IDs from the inventory
2. If a step is vague (e.g., "Book ticket"), break it into atomic actions (select ticket type, fill name, fill email, etc.)
3. Before clicking submit button, ensure ALL required inputs are filled
4. Use realistic test data (e.g., "John Doe" for name, "test@example.com" for email)
5. Return ONLY the JSON array, no other text

Example output format:
[
  {
    "type": "fill_input",
    "comment": "Enter customer name",
    "field_id": "name",
    "value": "John Doe"
  },
  {
    "type": "select_dropdown",
    "comment": "Select ticket type",
    "field_id": "ticketType",
    "option": "General Admission"
  },
  {
    "type": "click_button",
    "comment": "Submit the form",
    "button_id": "submitBtn",
    "wait_enabled": true
  }
]

Generate the actions now:`
}
