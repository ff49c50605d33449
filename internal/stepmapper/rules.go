package stepmapper

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/testweave/testweave/internal/embeddings"
	"github.com/testweave/testweave/internal/pagemodel"
	"github.com/testweave/testweave/internal/semantic"
)

var (
	leadingNumberPattern = regexp.MustCompile(`^\d+\.?\s*`)
	explicitIDPattern    = regexp.MustCompile(`(?i)id\s*[=:\s]\s*['"]([^'"]+)['"]`)
	explicitClassPattern = regexp.MustCompile(`(?i)class\s*[=:\s]\s*['"]([^'"]+)['"]`)
	numericPattern       = regexp.MustCompile(`\d+`)
	productIDPattern     = regexp.MustCompile(`(?i)\b(P\d{3})\b`)
	stepCodePattern      = regexp.MustCompile(`\b([A-Z0-9]{4,})\b`)
	searchTermPattern    = regexp.MustCompile(`search for (\S+)`)
	onclickNoise         = regexp.MustCompile(`[();"]`)
	camelBoundary        = regexp.MustCompile(`([a-z])([A-Z])`)
)

var finalActionIntents = []string{
	"submit the form",
	"complete the action",
	"finalize transaction",
	"proceed with operation",
	"confirm and continue",
	"finish the process",
}

var termsKeywords = []string{"term", "agree", "accept", "consent"}
var applyKeywords = []string{"apply", "submit", "validate"}
var resultKeywords = []string{"result", "message", "status"}

// stepRule pairs a predicate with the handler that fires when it matches.
// Rules are evaluated in declaration order and the first match wins, so a
// looser rule can never preempt a more specific one listed before it.
type stepRule struct {
	name  string
	match func(ctx context.Context, st *stepState) bool
	apply func(ctx context.Context, st *stepState) []Action
}

// stepState carries one step through the rule cascade. Predicates stash the
// element they resolved so handlers do not re-search.
type stepState struct {
	clean         string
	lower         string
	explicitID    string
	explicitClass string
	numerics      []string

	sel          *pagemodel.Select
	selOption    string
	checkbox     *pagemodel.Checkbox
	input        *pagemodel.Input
	inputPurpose string
	purposeScore float64
	radioID      string
	buttonAct    Action
	buttonID     string
	semanticHit  *candidate
}

func newStepState(raw string) *stepState {
	clean := leadingNumberPattern.ReplaceAllString(raw, "")
	st := &stepState{
		clean:    clean,
		lower:    strings.ToLower(clean),
		numerics: numericPattern.FindAllString(clean, -1),
	}
	if m := explicitIDPattern.FindStringSubmatch(clean); m != nil {
		st.explicitID = m[1]
	}
	if m := explicitClassPattern.FindStringSubmatch(clean); m != nil {
		st.explicitClass = m[1]
	}
	return st
}

// session is the per-script mapping state: which elements are already used
// and whether a submit click has been emitted.
type session struct {
	m      *Mapper
	page   *pagemodel.Page
	filled map[string]struct{}
}

func (s *session) used(id string) bool {
	_, ok := s.filled[id]
	return ok
}

func (m *Mapper) mapDeterministic(ctx context.Context, steps []string, page *pagemodel.Page) []Action {
	s := &session{m: m, page: page, filled: make(map[string]struct{})}

	rules := []stepRule{
		{"verification", s.isVerification, s.emitVerification},
		{"select_action", s.matchSelectGated, s.emitSelect},
		{"select_fallback", s.matchSelectUngated, s.emitSelect},
		{"checkbox", s.matchCheckbox, s.emitCheckbox},
		{"text_input", s.matchInput, s.emitInput},
		{"radio", s.matchRadio, s.emitRadio},
		{"button_action", s.matchButton, s.emitButton},
		{"semantic_fallback", s.matchSemantic, s.emitSemantic},
		{"final_action", s.matchFinal, s.emitFinal},
	}

	var actions []Action
	for _, raw := range steps {
		st := newStepState(raw)
		for _, rule := range rules {
			if !rule.match(ctx, st) {
				continue
			}
			actions = append(actions, rule.apply(ctx, st)...)
			m.logger.Debug("step matched",
				zap.String("rule", rule.name),
				zap.String("step", st.clean))
			break
		}
	}
	return actions
}

func (s *session) isVerification(ctx context.Context, st *stepState) bool {
	isVer, conf := s.m.matcher.IsVerificationStep(ctx, st.clean)
	return isVer && conf > 0.30
}

func (s *session) emitVerification(_ context.Context, st *stepState) []Action {
	return []Action{{Type: ActionComment, Comment: "VERIFICATION: " + st.clean}}
}

func (s *session) matchSelectGated(ctx context.Context, st *stepState) bool {
	if isSelect, _ := s.m.matcher.MatchSelectAction(ctx, st.lower); !isSelect {
		return false
	}
	return s.findSelect(st, true)
}

func (s *session) matchSelectUngated(_ context.Context, st *stepState) bool {
	return s.findSelect(st, false)
}

// findSelect resolves a dropdown by explicit id, id/name substring, or any
// option text appearing in the step. The chosen option is the first whose
// text the step mentions, else the dropdown's first option.
func (s *session) findSelect(st *stepState, allowExplicit bool) bool {
	for i := range s.page.Selects {
		sel := &s.page.Selects[i]
		if sel.ID == "" || s.used(sel.ID) {
			continue
		}

		idMatch := strings.Contains(st.lower, strings.ToLower(sel.ID)) ||
			(sel.Name != "" && strings.Contains(st.lower, strings.ToLower(sel.Name)))
		var chosen string
		for _, opt := range sel.Options {
			if opt.Text != "" && strings.Contains(st.lower, strings.ToLower(opt.Text)) {
				chosen = opt.Text
				break
			}
		}
		explicitMatch := allowExplicit && st.explicitID != "" && strings.EqualFold(st.explicitID, sel.ID)

		if explicitMatch || idMatch || chosen != "" {
			if chosen == "" && len(sel.Options) > 0 {
				chosen = sel.Options[0].Text
			}
			st.sel = sel
			st.selOption = chosen
			return true
		}
	}
	return false
}

func (s *session) emitSelect(_ context.Context, st *stepState) []Action {
	s.filled[st.sel.ID] = struct{}{}
	return []Action{{
		Type:    ActionSelectDropdown,
		Comment: st.clean,
		FieldID: st.sel.ID,
		Option:  st.selOption,
	}}
}

func (s *session) matchCheckbox(ctx context.Context, st *stepState) bool {
	for i := range s.page.Checkboxes {
		cb := &s.page.Checkboxes[i]
		if cb.ID == "" || s.used(cb.ID) {
			continue
		}

		idMatch := strings.Contains(st.lower, strings.ToLower(cb.ID))
		labelMatch := false
		for _, word := range strings.Fields(cb.Label) {
			if len(word) > 3 && strings.Contains(st.lower, strings.ToLower(word)) {
				labelMatch = true
				break
			}
		}

		if idMatch || labelMatch {
			st.checkbox = cb
			return true
		}
	}

	// No literal hit. A step can name a checkbox by what it is for
	// ("subscribe to the newsletter") rather than by its id or label text.
	for i := range s.page.Checkboxes {
		cb := &s.page.Checkboxes[i]
		if cb.ID == "" || s.used(cb.ID) {
			continue
		}

		purpose, score := s.m.matcher.MatchCheckboxPurpose(ctx, semantic.FieldAttrs{
			ID:    cb.ID,
			Name:  cb.Name,
			Label: cb.Label,
		})
		if purpose == "unknown" || score < semantic.ThresholdCheckboxMatch {
			continue
		}
		if strings.Contains(st.lower, purpose) {
			st.checkbox = cb
			return true
		}
	}
	return false
}

func (s *session) emitCheckbox(_ context.Context, st *stepState) []Action {
	s.filled[st.checkbox.ID] = struct{}{}
	return []Action{{
		Type:    ActionCheckCheckbox,
		Comment: st.clean,
		FieldID: st.checkbox.ID,
	}}
}

func (s *session) matchInput(ctx context.Context, st *stepState) bool {
	for i := range s.page.Inputs {
		inp := &s.page.Inputs[i]
		if inp.Type == "checkbox" || inp.Type == "radio" {
			continue
		}
		if inp.ID == "" || s.used(inp.ID) {
			continue
		}

		idMatch := strings.Contains(st.lower, strings.ToLower(inp.ID))
		nameMatch := inp.Name != "" && strings.Contains(st.lower, strings.ToLower(inp.Name))
		if idMatch || nameMatch {
			st.input = inp
			st.inputPurpose, st.purposeScore = s.m.matcher.DetectInputPurpose(ctx, semantic.FieldAttrs{
				Placeholder: inp.Placeholder,
				ID:          inp.ID,
				Name:        inp.Name,
				Type:        inp.Type,
			})
			return true
		}
	}
	return false
}

func (s *session) emitInput(_ context.Context, st *stepState) []Action {
	inp := st.input
	s.filled[inp.ID] = struct{}{}

	actions := []Action{{
		Type:    ActionFillInput,
		Comment: st.clean,
		FieldID: inp.ID,
		Value:   s.inputValue(st, inp),
	}}

	// Promo fields get an apply click and a result wait so the script can
	// observe whether the code took effect.
	if st.inputPurpose == "promo" && st.purposeScore > 0.5 {
		if applyBtn := s.findButtonByKeywords(applyKeywords); applyBtn != nil && applyBtn.ID != "" {
			actions = append(actions, Action{Type: ActionClickButton, ButtonBy: ByID, ButtonRef: applyBtn.ID})
			if result := s.findDynamicByKeywords(resultKeywords); result != nil {
				actions = append(actions, Action{Type: ActionWaitAndVerify, ElementID: result.ID})
			}
		}
	}
	return actions
}

func (s *session) findButtonByKeywords(keywords []string) *pagemodel.Button {
	for i := range s.page.Buttons {
		btn := &s.page.Buttons[i]
		idLower := strings.ToLower(btn.ID)
		textLower := strings.ToLower(btn.Text)
		for _, kw := range keywords {
			if strings.Contains(idLower, kw) || strings.Contains(textLower, kw) {
				return btn
			}
		}
	}
	return nil
}

func (s *session) findDynamicByKeywords(keywords []string) *pagemodel.DynamicElement {
	for i := range s.page.DynamicElements {
		dyn := &s.page.DynamicElements[i]
		idLower := strings.ToLower(dyn.ID)
		for _, kw := range keywords {
			if strings.Contains(idLower, kw) {
				return dyn
			}
		}
	}
	return nil
}

func (s *session) matchRadio(ctx context.Context, st *stepState) bool {
	for _, group := range s.page.RadioGroups {
		options := make([]semantic.RadioOption, 0, len(group.Options))
		for _, opt := range group.Options {
			options = append(options, semantic.RadioOption{ID: opt.ID, Value: opt.Value, Label: opt.Label})
		}
		semanticID := s.m.matcher.MatchRadioOption(ctx, st.clean, options)

		// A specific option reference wins; the group name alone only
		// identifies the group, so it falls back to the first free option.
		nameFallback := ""
		for _, opt := range group.Options {
			if opt.ID == "" || s.used(opt.ID) {
				continue
			}
			idMatch := strings.Contains(st.lower, strings.ToLower(opt.ID))
			valueMatch := opt.Value != "" && strings.Contains(st.lower, strings.ToLower(opt.Value))
			if idMatch || valueMatch || semanticID == opt.ID {
				st.radioID = opt.ID
				return true
			}
			if nameFallback == "" && group.Name != "" && strings.Contains(st.lower, strings.ToLower(group.Name)) {
				nameFallback = opt.ID
			}
		}
		if nameFallback != "" {
			st.radioID = nameFallback
			return true
		}
	}
	return false
}

func (s *session) emitRadio(_ context.Context, st *stepState) []Action {
	s.filled[st.radioID] = struct{}{}
	return []Action{{
		Type:    ActionSelectRadio,
		Comment: st.clean,
		FieldID: st.radioID,
	}}
}

func (s *session) matchButton(ctx context.Context, st *stepState) bool {
	if isButton, _ := s.m.matcher.MatchButtonAction(ctx, st.lower); !isButton {
		return false
	}

	var productID string
	if m := productIDPattern.FindStringSubmatch(st.clean); m != nil {
		productID = m[1]
	}

	for i := range s.page.Buttons {
		btn := &s.page.Buttons[i]
		if btn.ID != "" && s.used(btn.ID) {
			continue
		}

		explicitIDMatch := st.explicitID != "" && btn.ID != "" && strings.EqualFold(st.explicitID, btn.ID)
		explicitClassMatch := st.explicitClass != "" && btn.Class != "" &&
			strings.Contains(strings.ToLower(btn.Class), strings.ToLower(st.explicitClass))
		onclickProductMatch := productID != "" && btn.OnClick != "" &&
			strings.Contains(strings.ToUpper(btn.OnClick), strings.ToUpper(productID))
		idMatch := st.explicitID == "" && btn.ID != "" && strings.Contains(st.lower, strings.ToLower(btn.ID))
		textMatch := btn.Text != "" && strings.Contains(st.lower, strings.ToLower(btn.Text))
		classMatch := false
		if st.explicitClass == "" && btn.Class != "" {
			for _, cls := range strings.Fields(btn.Class) {
				if strings.Contains(st.lower, strings.ToLower(cls)) {
					classMatch = true
					break
				}
			}
		}

		if explicitIDMatch || explicitClassMatch || onclickProductMatch || idMatch || textMatch || classMatch {
			st.buttonAct = s.buttonClick(btn, st.explicitClass, productID)
			st.buttonAct.Comment = st.clean
			st.buttonID = btn.ID
			return true
		}
	}
	return false
}

// buttonClick picks the locator for a matched button: id first, then visible
// text, then class, then an onclick product reference.
func (s *session) buttonClick(btn *pagemodel.Button, targetClass, productID string) Action {
	switch {
	case btn.ID != "":
		return Action{Type: ActionClickButton, ButtonBy: ByID, ButtonRef: btn.ID}
	case btn.Text != "":
		return Action{Type: ActionClickButton, ButtonBy: ByText, ButtonRef: btn.Text}
	case btn.Class != "":
		cls := targetClass
		if cls == "" {
			cls = strings.Fields(btn.Class)[0]
		}
		return Action{Type: ActionClickButton, ButtonBy: ByClass, ButtonRef: cls}
	case productID != "" && btn.OnClick != "":
		return Action{Type: ActionClickButton, ButtonBy: ByOnClick, ButtonRef: productID}
	default:
		return Action{Type: ActionClickButton, ButtonBy: ByText, ButtonRef: btn.Text}
	}
}

func (s *session) emitButton(_ context.Context, st *stepState) []Action {
	if st.buttonID != "" {
		s.filled[st.buttonID] = struct{}{}
	}
	return []Action{st.buttonAct}
}

type candidate struct {
	tag    string
	input  *pagemodel.Input
	button *pagemodel.Button
	sel    *pagemodel.Select
}

func (c *candidate) describe() string {
	var b strings.Builder
	b.WriteString(c.tag + " ")
	write := func(key, val string) {
		if val != "" {
			b.WriteString(key + "='" + val + "' ")
		}
	}
	switch c.tag {
	case "input":
		write("id", c.input.ID)
		write("name", c.input.Name)
		write("placeholder", c.input.Placeholder)
		write("label", c.input.Label)
		write("class", c.input.Class)
	case "button":
		write("text", c.button.Text)
		write("id", c.button.ID)
		write("name", c.button.Name)
		write("class", c.button.Class)
		write("onclick", c.button.OnClick)
	case "select":
		write("id", c.sel.ID)
		write("name", c.sel.Name)
		var opts []string
		for _, o := range c.sel.Options {
			opts = append(opts, o.Text)
		}
		write("options", strings.Join(opts, ", "))
	}
	return b.String()
}

func (s *session) matchSemantic(ctx context.Context, st *stepState) bool {
	var candidates []*candidate
	for i := range s.page.Inputs {
		if s.page.Inputs[i].ID != "" && !s.used(s.page.Inputs[i].ID) {
			candidates = append(candidates, &candidate{tag: "input", input: &s.page.Inputs[i]})
		}
	}
	for i := range s.page.Buttons {
		if s.page.Buttons[i].ID != "" && s.used(s.page.Buttons[i].ID) {
			continue
		}
		candidates = append(candidates, &candidate{tag: "button", button: &s.page.Buttons[i]})
	}
	for i := range s.page.Selects {
		if s.page.Selects[i].ID != "" && !s.used(s.page.Selects[i].ID) {
			candidates = append(candidates, &candidate{tag: "select", sel: &s.page.Selects[i]})
		}
	}
	if len(candidates) == 0 {
		return false
	}

	texts := make([]string, 0, len(candidates)+1)
	texts = append(texts, st.lower)
	for _, c := range candidates {
		texts = append(texts, c.describe())
	}

	vectors, err := s.m.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		s.m.logger.Warn("semantic step matching failed", zap.Error(err))
		return false
	}

	bestIdx := -1
	bestScore := -1.0
	for i, vec := range vectors[1:] {
		if sim := embeddings.CosineSimilarity(vectors[0], vec); sim > bestScore {
			bestScore = sim
			bestIdx = i
		}
	}
	if bestIdx < 0 || bestScore < semantic.ThresholdSemanticMatch {
		return false
	}
	st.semanticHit = candidates[bestIdx]
	return true
}

func (s *session) emitSemantic(_ context.Context, st *stepState) []Action {
	hit := st.semanticHit
	comment := st.clean + " (semantic match: " + hit.tag + ")"

	switch hit.tag {
	case "button":
		btn := hit.button
		act := s.buttonClick(btn, "", "")
		if act.ButtonBy == ByText && act.ButtonRef == "" {
			if m := productIDPattern.FindStringSubmatch(btn.OnClick); m != nil {
				act = Action{Type: ActionClickButton, ButtonBy: ByOnClick, ButtonRef: m[1]}
			}
		}
		act.Comment = comment
		if btn.ID != "" {
			s.filled[btn.ID] = struct{}{}
		}
		return []Action{act}
	case "input":
		inp := hit.input
		s.filled[inp.ID] = struct{}{}
		return []Action{{
			Type:    ActionFillInput,
			Comment: comment,
			FieldID: inp.ID,
			Value:   s.m.defaultInputValue(inp.Type),
		}}
	default:
		sel := hit.sel
		s.filled[sel.ID] = struct{}{}
		var option string
		if len(sel.Options) > 0 {
			option = sel.Options[0].Text
		}
		return []Action{{
			Type:    ActionSelectDropdown,
			Comment: comment,
			FieldID: sel.ID,
			Option:  option,
		}}
	}
}

func (s *session) matchFinal(ctx context.Context, st *stepState) bool {
	score, err := s.m.matcher.MaxSimilarity(ctx, st.lower, finalActionIntents)
	if err != nil {
		s.m.logger.Warn("final action detection failed", zap.Error(err))
		return false
	}
	return score > semantic.ThresholdFinalAction
}

// emitFinal treats the step as an implicit submit: top up any simple inputs
// still empty, check remaining consent checkboxes, then click the best
// submit button.
func (s *session) emitFinal(ctx context.Context, st *stepState) []Action {
	var actions []Action

	for i := range s.page.Inputs {
		inp := &s.page.Inputs[i]
		if inp.ID == "" || s.used(inp.ID) {
			continue
		}
		switch inp.Type {
		case "text", "email", "tel", "number":
			s.filled[inp.ID] = struct{}{}
			actions = append(actions, Action{
				Type:    ActionFillInput,
				FieldID: inp.ID,
				Value:   s.m.defaultInputValue(inp.Type),
			})
		}
	}

	for i := range s.page.Checkboxes {
		cb := &s.page.Checkboxes[i]
		if cb.ID == "" || s.used(cb.ID) {
			continue
		}
		labelLower := strings.ToLower(cb.Label)
		for _, kw := range termsKeywords {
			if strings.Contains(labelLower, kw) {
				s.filled[cb.ID] = struct{}{}
				actions = append(actions, Action{Type: ActionCheckCheckbox, FieldID: cb.ID})
				break
			}
		}
	}

	if submit := s.m.findSubmitButton(ctx, s.page); submit != nil {
		act := s.buttonClick(submit, "", "")
		act.Comment = st.clean
		act.WaitEnabled = submit.Disabled && submit.ID != ""
		if submit.ID != "" {
			s.filled[submit.ID] = struct{}{}
		}
		actions = append(actions, act)
	}
	return actions
}

// findSubmitButton prefers an explicit type="submit" button, then ranks the
// rest by similarity to submit intents. Negative-action buttons (cancel,
// back, close) are excluded; buttons wired to javascript get a boost since
// pages that gate submission on validation do it through onclick handlers.
func (m *Mapper) findSubmitButton(ctx context.Context, page *pagemodel.Page) *pagemodel.Button {
	if len(page.Buttons) == 0 {
		return nil
	}
	for i := range page.Buttons {
		if page.Buttons[i].Type == "submit" {
			return &page.Buttons[i]
		}
	}

	submitIntents := []string{
		"submit form",
		"complete action",
		"finalize transaction",
		"proceed with operation",
		"confirm and continue",
	}

	var descriptions []string
	var valid []*pagemodel.Button
	for i := range page.Buttons {
		btn := &page.Buttons[i]
		var parts []string
		if btn.Text != "" {
			parts = append(parts, btn.Text)
		}
		if btn.OnClick != "" {
			cleaned := onclickNoise.ReplaceAllString(btn.OnClick, "")
			parts = append(parts, camelBoundary.ReplaceAllString(cleaned, "$1 $2"))
		}
		if btn.ID != "" {
			parts = append(parts, strings.NewReplacer("-", " ", "_", " ").Replace(btn.ID))
		}
		if btn.Class != "" {
			parts = append(parts, strings.NewReplacer("-", " ", "_", " ").Replace(btn.Class))
		}
		if len(parts) == 0 {
			continue
		}
		descriptions = append(descriptions, strings.ToLower(strings.Join(parts, " ")))
		valid = append(valid, btn)
	}
	if len(descriptions) == 0 {
		return nil
	}

	vectors, err := m.embedder.EmbedBatch(ctx, append(append([]string{}, submitIntents...), descriptions...))
	if err != nil {
		m.logger.Warn("submit button detection failed", zap.Error(err))
		return &page.Buttons[len(page.Buttons)-1]
	}

	avgIntent := meanVector(vectors[:len(submitIntents)])

	var best *pagemodel.Button
	bestScore := -1.0
	for i, vec := range vectors[len(submitIntents):] {
		btn := valid[i]
		if isNegativeButton(btn) {
			continue
		}
		score := embeddings.CosineSimilarity(avgIntent, vec)
		if btn.Type == "button" {
			score *= 1.1
		}
		if btn.OnClick != "" {
			score *= 1.15
		}
		if score > bestScore {
			bestScore = score
			best = btn
		}
	}

	if best != nil && bestScore > semantic.ThresholdSubmitButton {
		m.logger.Debug("resolved submit button semantically",
			zap.String("id", best.ID), zap.Float64("score", bestScore))
		return best
	}
	return &page.Buttons[len(page.Buttons)-1]
}

func isNegativeButton(btn *pagemodel.Button) bool {
	text := strings.ToLower(btn.Text)
	id := strings.ToLower(btn.ID)
	for _, neg := range semantic.NegativeActions {
		if strings.Contains(text, neg) || strings.Contains(id, neg) {
			return true
		}
	}
	return false
}

func meanVector(vectors [][]float32) []float32 {
	if len(vectors) == 0 {
		return nil
	}
	mean := make([]float32, len(vectors[0]))
	for _, vec := range vectors {
		for i, v := range vec {
			mean[i] += v
		}
	}
	for i := range mean {
		mean[i] /= float32(len(vectors))
	}
	return mean
}

// appendFinalVerification closes every script the same way: click the
// resolved submit button unless an earlier action already clicked it, then
// wait for the success element and assert its text.
func (m *Mapper) appendFinalVerification(ctx context.Context, page *pagemodel.Page, actions []Action) []Action {
	submit := m.findSubmitButton(ctx, page)

	var success *pagemodel.MessageElement
	if len(page.SuccessElements) > 0 {
		success = &page.SuccessElements[0]
	}

	submitClicked := false
	if submit != nil && submit.ID != "" {
		for _, act := range actions {
			if act.Type == ActionClickButton && act.ButtonBy == ByID && act.ButtonRef == submit.ID {
				submitClicked = true
				break
			}
		}
	}

	if submit != nil && !submitClicked {
		act := m.submitClick(submit)
		act.Comment = "Submit form and verify"
		actions = append(actions, act)
	}

	switch {
	case success != nil && success.ID != "":
		actions = append(actions, Action{
			Type:         ActionWaitAndVerify,
			Comment:      "Verify success",
			ElementID:    success.ID,
			ExpectedText: success.Text,
		})
	case submit == nil:
		actions = append(actions, Action{Type: ActionComment, Comment: "No submit button detected"})
	}
	return actions
}

func (m *Mapper) submitClick(submit *pagemodel.Button) Action {
	act := Action{Type: ActionClickButton}
	switch {
	case submit.ID != "":
		act.ButtonBy = ByID
		act.ButtonRef = submit.ID
		act.WaitEnabled = submit.Disabled
	case submit.Text != "":
		act.ButtonBy = ByText
		act.ButtonRef = submit.Text
	case submit.Class != "":
		act.ButtonBy = ByClass
		act.ButtonRef = strings.Fields(submit.Class)[0]
	}
	return act
}
