package semantic

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/testweave/testweave/internal/embeddings"
)

// Similarity thresholds for intent matching.
const (
	ThresholdSemanticMatch  = 0.35
	ThresholdFinalAction    = 0.35
	ThresholdSubmitButton   = 0.30
	ThresholdButtonAction   = 0.35
	ThresholdCheckboxMatch  = 0.40
	ThresholdRadioMatch     = 0.40
	ThresholdNegativeAction = 0.50
	ThresholdSelectAction   = 0.25
	ThresholdDocType        = 0.38
	ThresholdPaymentField   = 0.40

	// Verification detection compares against action intents with a margin.
	verificationThreshold = 0.30
	verificationMargin    = 0.08

	zeroCostThreshold = 0.45
	zeroCostMargin    = 0.10
)

// NegativeActions are verbs that abandon a flow rather than advance it.
var NegativeActions = []string{
	"cancel", "back", "close", "abort", "dismiss",
	"exit", "quit", "reject", "decline", "delete",
	"remove", "discard", "clear", "reset",
}

// Matcher classifies free text against labeled intent phrases using
// embedding similarity. All high-level matchers degrade to their zero
// result when the embedder is unreachable.
type Matcher struct {
	embedder embeddings.Embedder
	logger   *zap.Logger
}

// NewMatcher creates a semantic matcher backed by the given embedder.
func NewMatcher(embedder embeddings.Embedder, logger *zap.Logger) *Matcher {
	return &Matcher{embedder: embedder, logger: logger}
}

// Similarity returns the cosine similarity between two texts.
func (m *Matcher) Similarity(ctx context.Context, a, b string) (float64, error) {
	embA, err := m.embedder.Embed(ctx, a)
	if err != nil {
		return 0, err
	}
	embB, err := m.embedder.Embed(ctx, b)
	if err != nil {
		return 0, err
	}
	return embeddings.CosineSimilarity(embA, embB), nil
}

// MaxSimilarity returns the highest similarity between text and any of the
// given intent phrases.
func (m *Matcher) MaxSimilarity(ctx context.Context, text string, intents []string) (float64, error) {
	textEmb, err := m.embedder.Embed(ctx, text)
	if err != nil {
		return 0, err
	}

	var best float64
	for _, intent := range intents {
		intentEmb, err := m.embedder.Embed(ctx, intent)
		if err != nil {
			return 0, err
		}
		if sim := embeddings.CosineSimilarity(textEmb, intentEmb); sim > best {
			best = sim
		}
	}
	return best, nil
}

// Classify scores text against labeled intent phrases and returns the best
// label with its score. Returns ("", 0) when no labels are given.
func (m *Matcher) Classify(ctx context.Context, text string, intents map[string]string) (string, float64, error) {
	textEmb, err := m.embedder.Embed(ctx, text)
	if err != nil {
		return "", 0, err
	}

	var bestLabel string
	var bestScore float64
	for label, phrase := range intents {
		intentEmb, err := m.embedder.Embed(ctx, phrase)
		if err != nil {
			return "", 0, err
		}
		sim := embeddings.CosineSimilarity(textEmb, intentEmb)
		if sim > bestScore || (sim == bestScore && label < bestLabel) {
			bestScore = sim
			bestLabel = label
		}
	}
	return bestLabel, bestScore, nil
}

// FieldAttrs describes a form field for purpose detection.
type FieldAttrs struct {
	ID          string
	Name        string
	Label       string
	Placeholder string
	AriaLabel   string
	Type        string
}

// RadioOption describes a radio input for intent matching.
type RadioOption struct {
	ID    string
	Value string
	Label string
}

func wordify(s string) string {
	return strings.NewReplacer("-", " ", "_", " ").Replace(s)
}

var checkboxPurposes = map[string]string{
	"terms":        "accept terms and conditions legal agreement policy",
	"newsletter":   "subscribe to newsletter email updates marketing",
	"consent":      "consent to data usage privacy agreement permissions",
	"notification": "enable notifications alerts push messages",
	"feature":      "enable feature option preference setting",
}

// MatchCheckboxPurpose classifies what a checkbox is for based on its
// label, id and name. Returns ("unknown", 0) when nothing is descriptive.
func (m *Matcher) MatchCheckboxPurpose(ctx context.Context, attrs FieldAttrs) (string, float64) {
	var parts []string
	if attrs.Label != "" {
		parts = append(parts, attrs.Label)
	}
	if attrs.ID != "" {
		parts = append(parts, wordify(attrs.ID))
	}
	if attrs.Name != "" {
		parts = append(parts, wordify(attrs.Name))
	}
	if len(parts) == 0 {
		return "unknown", 0
	}

	desc := strings.ToLower(strings.Join(parts, " "))
	purpose, score, err := m.Classify(ctx, desc, checkboxPurposes)
	if err != nil {
		m.logger.Warn("checkbox purpose matching failed", zap.Error(err))
		return "unknown", 0
	}
	if purpose == "" {
		return "unknown", 0
	}
	return purpose, score
}

// MatchRadioOption returns the id of the radio option whose description is
// most similar to the step text, or "" when no option clears the threshold.
func (m *Matcher) MatchRadioOption(ctx context.Context, stepText string, options []RadioOption) string {
	if len(options) == 0 {
		return ""
	}

	stepEmb, err := m.embedder.Embed(ctx, strings.ToLower(stepText))
	if err != nil {
		m.logger.Warn("radio option matching failed", zap.Error(err))
		return ""
	}

	var bestID string
	var bestScore float64
	for _, opt := range options {
		var parts []string
		if opt.Value != "" {
			parts = append(parts, opt.Value)
		}
		if opt.Label != "" {
			parts = append(parts, opt.Label)
		}
		if opt.ID != "" {
			parts = append(parts, wordify(opt.ID))
		}
		if len(parts) == 0 {
			continue
		}

		optEmb, err := m.embedder.Embed(ctx, strings.ToLower(strings.Join(parts, " ")))
		if err != nil {
			m.logger.Warn("radio option matching failed", zap.Error(err))
			return ""
		}
		if sim := embeddings.CosineSimilarity(stepEmb, optEmb); sim > bestScore {
			bestScore = sim
			bestID = opt.ID
		}
	}

	if bestScore > ThresholdRadioMatch {
		return bestID
	}
	return ""
}

var inputPurposes = map[string]string{
	"email":    "email address electronic mail contact",
	"phone":    "phone number telephone mobile contact",
	"postal":   "zip code postal code location address",
	"promo":    "promo code coupon discount voucher gift card referral reward offer",
	"payment":  "credit card payment billing card number cvv expiry",
	"search":   "search query find lookup",
	"date":     "date calendar appointment schedule",
	"password": "password secret credentials secure",
	"name":     "name full name first name last name",
	"address":  "address street city location",
}

// DetectInputPurpose classifies what a text input expects. Falls back to
// ("text", 0) when the field carries no descriptive attributes.
func (m *Matcher) DetectInputPurpose(ctx context.Context, attrs FieldAttrs) (string, float64) {
	var parts []string
	if attrs.Placeholder != "" {
		parts = append(parts, attrs.Placeholder)
	}
	if attrs.ID != "" {
		parts = append(parts, wordify(attrs.ID))
	}
	if attrs.Name != "" {
		parts = append(parts, wordify(attrs.Name))
	}
	if attrs.AriaLabel != "" {
		parts = append(parts, attrs.AriaLabel)
	}
	if attrs.Type != "" {
		parts = append(parts, attrs.Type)
	}
	if len(parts) == 0 {
		return "text", 0
	}

	desc := strings.ToLower(strings.Join(parts, " "))
	purpose, score, err := m.Classify(ctx, desc, inputPurposes)
	if err != nil {
		m.logger.Warn("input purpose matching failed", zap.Error(err))
		return "text", 0
	}
	if purpose == "" {
		return "text", 0
	}
	return purpose, score
}

var explicitCostPattern = regexp.MustCompile(`(?:cost|fee|charge|price)(?:s)?\s+(?:is\s+)?\$(?:[1-9]\d*(?:\.\d{2})?|0\.(?:0[1-9]|[1-9]\d))`)

var zeroCostIntents = []string{
	"waived fee free of charge discount",
	"complimentary no cost included gift",
	"free service gratis no charge",
	"zero cost no fee included free",
	"free shipping delivery no cost",
	"gift included complimentary bonus",
}

var costIntents = []string{
	"costs price payment",
	"charged amount billing",
	"cost is price is",
}

// IsZeroCostContext decides whether context text describes something free of
// charge. An explicit non-zero dollar amount short-circuits to false.
func (m *Matcher) IsZeroCostContext(ctx context.Context, contextText string) (bool, float64) {
	lower := strings.ToLower(contextText)
	if explicitCostPattern.MatchString(lower) {
		return false, 0
	}

	zeroScore, err := m.MaxSimilarity(ctx, lower, zeroCostIntents)
	if err != nil {
		m.logger.Warn("zero cost detection failed", zap.Error(err))
		return false, 0
	}
	costScore, err := m.MaxSimilarity(ctx, lower, costIntents)
	if err != nil {
		m.logger.Warn("zero cost detection failed", zap.Error(err))
		return false, 0
	}

	isZeroCost := zeroScore > zeroCostThreshold && zeroScore > costScore+zeroCostMargin
	return isZeroCost, zeroScore
}

var buttonActionIntents = []string{
	"click button press tap",
	"submit form send data",
	"proceed continue next forward",
	"confirm okay accept approve",
	"add insert create new",
	"trigger activate execute run",
	"push hit apply go",
	"launch start begin initiate",
	"process complete finish done",
	"purchase buy checkout pay",
}

// MatchButtonAction reports whether step text describes pressing a button.
func (m *Matcher) MatchButtonAction(ctx context.Context, stepText string) (bool, float64) {
	score, err := m.MaxSimilarity(ctx, strings.ToLower(stepText), buttonActionIntents)
	if err != nil {
		m.logger.Warn("button action detection failed", zap.Error(err))
		return false, 0
	}
	return score > ThresholdButtonAction, score
}

var selectActionIntents = []string{
	"select choose pick option",
	"dropdown menu list picker",
	"opt for go with use",
	"set to change to switch to",
	"filter by sort by group by",
}

// MatchSelectAction reports whether step text describes picking from a dropdown.
func (m *Matcher) MatchSelectAction(ctx context.Context, stepText string) (bool, float64) {
	score, err := m.MaxSimilarity(ctx, strings.ToLower(stepText), selectActionIntents)
	if err != nil {
		m.logger.Warn("select action detection failed", zap.Error(err))
		return false, 0
	}
	return score > ThresholdSelectAction, score
}

var docTypeIntents = map[string]string{
	"specification":     "product requirements features functionality specification guideline standard blueprint architecture schema definition",
	"validation_rules":  "validation rules constraints checks policy verify sanitize validate compliance regulation requirement",
	"api_documentation": "api endpoint rest graphql webhook openapi swagger microservice service integration protocol",
	"ui_guidelines":     "ui ux design interface mockup wireframe prototype component layout theme style visual brand",
}

// ClassifyDocumentType labels a document by source name and a content sample.
// Anything under the classification threshold falls back to "general".
func (m *Matcher) ClassifyDocumentType(ctx context.Context, source, contentSample string) (string, float64) {
	text := strings.ToLower(source + " " + contentSample)
	docType, score, err := m.Classify(ctx, text, docTypeIntents)
	if err != nil {
		m.logger.Warn("document classification failed", zap.Error(err))
		return "general", 0.3
	}
	if docType == "" || score < ThresholdDocType {
		return "general", 0.3
	}

	m.logger.Debug("classified document",
		zap.String("source", source),
		zap.String("doc_type", docType),
		zap.Float64("score", score),
	)
	return docType, score
}

var verificationIntents = []string{
	"verify check assert validate confirm",
	"ensure make sure that if whether",
	"expect should must display show",
	"see observe notice detect",
	"error message warning alert notification",
	"success confirmation completed finished",
	"disabled enabled visible hidden",
	"displayed shown appears rendered",
	"applied correctly successfully properly",
}

var actionIntents = []string{
	"click press tap submit",
	"fill enter type input",
	"select choose pick opt",
	"open close start stop",
}

// IsVerificationStep reports whether a test step asserts an outcome rather
// than performing an action. "check if/that/whether" phrasing is a direct hit.
func (m *Matcher) IsVerificationStep(ctx context.Context, stepText string) (bool, float64) {
	lower := strings.ToLower(strings.TrimSpace(stepText))

	for _, pattern := range []string{"check if", "check that", "check whether"} {
		if strings.Contains(lower, pattern) {
			return true, 0.95
		}
	}

	verScore, err := m.MaxSimilarity(ctx, lower, verificationIntents)
	if err != nil {
		m.logger.Warn("verification detection failed", zap.Error(err))
		return false, 0
	}
	actScore, err := m.MaxSimilarity(ctx, lower, actionIntents)
	if err != nil {
		m.logger.Warn("verification detection failed", zap.Error(err))
		return false, 0
	}

	isVerification := verScore > verificationThreshold && verScore > actScore+verificationMargin
	return isVerification, verScore
}

// IsNegativeAction reports whether step text abandons the flow, either by
// containing a negative verb or by similarity to abandonment intents.
func (m *Matcher) IsNegativeAction(ctx context.Context, stepText string) bool {
	lower := strings.ToLower(stepText)
	for _, verb := range NegativeActions {
		if strings.Contains(lower, verb) {
			return true
		}
	}

	score, err := m.MaxSimilarity(ctx, lower, []string{"cancel abort dismiss reject decline abandon"})
	if err != nil {
		m.logger.Warn("negative action detection failed", zap.Error(err))
		return false
	}
	return score > ThresholdNegativeAction
}

var paymentFieldIntents = map[string]string{
	"card_number":    "credit card number debit card account number",
	"cvv":            "cvv cvc security code verification code",
	"expiry":         "expiration date expiry date valid through",
	"card_holder":    "card holder name cardholder billing name",
	"billing_zip":    "billing zip postal code billing address",
	"routing_number": "routing number aba number bank code",
	"account_number": "account number bank account checking",
	"iban":           "iban international bank account number",
	"swift":          "swift code bic bank identifier",
}

// DetectPaymentField classifies a form field as a payment detail. Returns the
// payment field type when the match clears the threshold.
func (m *Matcher) DetectPaymentField(ctx context.Context, attrs FieldAttrs) (bool, string, float64) {
	var parts []string
	for _, v := range []string{attrs.ID, attrs.Name, attrs.Placeholder, attrs.AriaLabel} {
		if v != "" {
			parts = append(parts, wordify(v))
		}
	}
	if len(parts) == 0 {
		return false, "", 0
	}

	desc := strings.ToLower(strings.Join(parts, " "))
	fieldType, score, err := m.Classify(ctx, desc, paymentFieldIntents)
	if err != nil {
		m.logger.Warn("payment field detection failed", zap.Error(err))
		return false, "", 0
	}

	if score > ThresholdPaymentField {
		return true, fieldType, score
	}
	return false, "", score
}
