// Package price turns free-form storefront price text into a canonical
// PriceSpec. Parsing never fails: unparseable or absent input resolves to a
// zero amount with unit "order", which callers treat as "no price known".
package price

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/rekohub/storefront-scraper/internal/models"
)

var (
	currencyRe = regexp.MustCompile(`(?i)rs\.?|[$€£¥₹]`)
	intRe      = regexp.MustCompile(`^\d+$`)
	decimalRe  = regexp.MustCompile(`^\d+(\.\d{1,2})?$`)
)

var unitTokens = map[string]models.PriceUnit{
	"ea":        models.UnitEach,
	"each":      models.UnitEach,
	"lb":        models.UnitPound,
	"lbs":       models.UnitPound,
	"pound":     models.UnitPound,
	"pounds":    models.UnitPound,
	"kg":        models.UnitKilogram,
	"kgs":       models.UnitKilogram,
	"kilogram":  models.UnitKilogram,
	"kilograms": models.UnitKilogram,
	"oz":        models.UnitOunce,
	"ounce":     models.UnitOunce,
	"ounces":    models.UnitOunce,
	"g":         models.UnitGram,
	"gram":      models.UnitGram,
	"grams":     models.UnitGram,
}

// Normalize parses raw price text with no caller-provided approximation flag.
func Normalize(raw string) models.PriceSpec {
	return NormalizeWithHint(raw, nil)
}

// NormalizeWithHint parses raw price text. The rules, applied in order:
//
//  1. strip currency symbols and whitespace, lower-case unit suffixes
//  2. a bare non-negative integer is already cents (unit order, exact)
//  3. a decimal amount with no unit suffix is dollars (unit order, exact)
//  4. a recognized unit token (separated by "/", "per", or trailing) makes
//     the amount dollars per unit and the price approximate
//  5. explicitApprox, when non-nil, overrides the auto-detected flag
//  6. anything unparseable resolves to the zero price
func NormalizeWithHint(raw string, explicitApprox *bool) models.PriceSpec {
	spec := parse(raw)
	if explicitApprox != nil {
		spec.Approximate = *explicitApprox
	}
	return spec
}

func parse(raw string) models.PriceSpec {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return models.ZeroPrice()
	}

	s = currencyRe.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "/", " per ")
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return models.ZeroPrice()
	}

	amount := fields[0]
	unit := models.PriceUnit("")
	for _, tok := range fields[1:] {
		if tok == "per" {
			continue
		}
		u, ok := unitTokens[strings.TrimSuffix(tok, ".")]
		if !ok {
			return models.ZeroPrice()
		}
		unit = u
	}

	if unit == "" {
		if intRe.MatchString(amount) {
			cents, err := strconv.ParseInt(amount, 10, 64)
			if err != nil {
				return models.ZeroPrice()
			}
			return models.PriceSpec{AmountCents: cents, Unit: models.UnitOrder}
		}
		if decimalRe.MatchString(amount) {
			return models.PriceSpec{AmountCents: toCents(amount), Unit: models.UnitOrder}
		}
		return models.ZeroPrice()
	}

	if !decimalRe.MatchString(amount) {
		return models.ZeroPrice()
	}
	return models.PriceSpec{AmountCents: toCents(amount), Unit: unit, Approximate: true}
}

func toCents(amount string) int64 {
	v, err := strconv.ParseFloat(amount, 64)
	if err != nil {
		return 0
	}
	return int64(math.Round(v * 100))
}
