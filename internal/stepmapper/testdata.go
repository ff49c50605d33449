package stepmapper

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/testweave/testweave/internal/pagemodel"
)

const genericTextValue = "Test Value"

func (m *Mapper) emailValue() string {
	return fmt.Sprintf("test_%d@example.com", 100+m.rng.Intn(900))
}

func (m *Mapper) phoneValue() string {
	return "555" + m.digits(7)
}

func (m *Mapper) zipValue() string {
	return m.digits(5)
}

func (m *Mapper) dateValue() string {
	return fmt.Sprintf("2024-%02d-%02d", 1+m.rng.Intn(12), 1+m.rng.Intn(28))
}

func (m *Mapper) couponValue() string {
	return "TEST" + m.digits(4)
}

func (m *Mapper) passwordValue() string {
	return fmt.Sprintf("Test@%d", 100+m.rng.Intn(900))
}

func (m *Mapper) digits(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteByte(byte('0' + m.rng.Intn(10)))
	}
	return b.String()
}

// defaultInputValue picks a type-appropriate value when the step text gives
// no hint.
func (m *Mapper) defaultInputValue(inputType string) string {
	switch inputType {
	case "email":
		return m.emailValue()
	case "number":
		return "1"
	case "tel":
		return m.phoneValue()
	default:
		return genericTextValue
	}
}

// inputValue chooses what to type into a matched field. Explicit numbers in
// the step win for numeric inputs; typed fields get pattern values; promo
// fields prefer a document-sourced code over anything generated.
func (s *session) inputValue(st *stepState, inp *pagemodel.Input) string {
	idLower := strings.ToLower(inp.ID)

	switch {
	case inp.Type == "number" && len(st.numerics) > 0:
		return st.numerics[0]
	case inp.Type == "email":
		return s.m.emailValue()
	case inp.Type == "tel" || strings.Contains(idLower, "phone"):
		return s.m.phoneValue()
	case strings.Contains(idLower, "zip") || strings.Contains(idLower, "postal"):
		return s.m.zipValue()
	case strings.Contains(inp.Type, "date"):
		return s.m.dateValue()
	case strings.Contains(idLower, "search"):
		if m := searchTermPattern.FindStringSubmatch(st.lower); m != nil {
			return m[1]
		}
		return "test"
	}

	if st.inputPurpose == "promo" && st.purposeScore > 0.5 {
		if s.m.docs != nil {
			if value, confidence := s.m.docs.ExtractValidInputValue("promo", inp.ID); value != "" && confidence > 0.7 {
				s.m.logger.Info("using document-extracted promo code",
					zap.String("code", value), zap.Float64("confidence", confidence))
				return value
			}
		}
		if m := stepCodePattern.FindStringSubmatch(st.clean); m != nil {
			return m[1]
		}
		code := s.m.couponValue()
		s.m.logger.Warn("using generated promo code, no valid code found in documents",
			zap.String("code", code))
		return code
	}

	if inp.Type == "password" {
		return s.m.passwordValue()
	}
	return genericTextValue
}
