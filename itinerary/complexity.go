package itinerary

import (
	"regexp"
	"strings"
)

// LongTripDays is the duration at which a trip counts as long.
const LongTripDays = 5

// destinationSeparator joins multiple destinations into one display string.
const destinationSeparator = " → "

var (
	// listSeparators split a destination string into several places.
	listSeparators = []string{",", "、", "，", "・", "/", ";", "&", "＆"}

	// sequenceMarkers indicate an ordered route.
	sequenceMarkers = []string{"→", "->", "=>", "⇒", "〜", "～", ">"}

	// circuitKeywords indicate a multi-stop tour.
	circuitKeywords = []string{"circuit", "tour", "round trip", "road trip", "周遊", "巡り", "めぐり", "縦断", "横断"}

	// specialRequirementTerms are matched as whole words against companion
	// and note text. Missing a need is acceptable, inventing one is not, so
	// ambiguous words ("accessible", "cane", "walker") only count in phrases.
	specialRequirementTerms = []string{
		"wheelchair", "wheelchairs", "wheelchair-accessible", "mobility aid",
		"mobility scooter", "limited mobility", "reduced mobility", "mobility issues",
		"stroller", "strollers", "pushchair", "pushchairs", "pram", "crutches",
		"walking cane", "walking stick", "walking frame", "rollator",
		"barrier-free", "barrier free", "step-free", "step free",
		"accessibility needs", "accessibility requirements", "accessible room",
	}

	// specialRequirementPattern matches specialRequirementTerms on word boundaries.
	specialRequirementPattern = wordPattern(specialRequirementTerms)

	// specialRequirementKeywordsJA are substring matched; Japanese has no word
	// boundaries.
	specialRequirementKeywordsJA = []string{
		"車椅子", "車いす", "ベビーカー", "杖をつ", "杖を使", "バリアフリー", "足が不自由", "介助", "介護",
	}

	companionKeywords = []struct {
		kind     string
		keywords []string
	}{
		{"family", []string{"family", "kid", "child", "toddler", "baby", "家族", "子供", "子ども", "赤ちゃん"}},
		{"senior", []string{"senior", "elderly", "parents", "grandparent", "両親", "祖父", "祖母", "シニア"}},
		{"couple", []string{"couple", "partner", "honeymoon", "wife", "husband", "カップル", "夫婦", "恋人"}},
		{"friends", []string{"friend", "group", "友人", "友達", "グループ"}},
		{"business", []string{"business", "colleague", "出張", "同僚"}},
		{"solo", []string{"solo", "alone", "myself", "一人", "ひとり"}},
	}
)

// EvaluateComplexity scores a request's structural difficulty. It is pure.
//
// Scored factors: long duration, multiple cities, special requirements.
// No factor is low, one is medium, two or more is high.
func EvaluateComplexity(destinations []string, days int, companion, notes string) Complexity {
	c := Complexity{
		Days:                   days,
		IsMultiCity:            IsMultiCity(destinations),
		CompanionType:          ClassifyCompanion(companion),
		HasSpecialRequirements: HasSpecialRequirements(companion, notes),
	}

	if c.Days >= LongTripDays {
		c.Score++
	}
	if c.IsMultiCity {
		c.Score++
	}
	if c.HasSpecialRequirements {
		c.Score++
	}

	switch {
	case c.Score == 0:
		c.Level = LevelLow
	case c.Score == 1:
		c.Level = LevelMedium
	default:
		c.Level = LevelHigh
	}
	return c
}

// ComplexityOf evaluates a request.
func ComplexityOf(req *Request) Complexity {
	return EvaluateComplexity(req.Destinations, req.Days, req.Companion, req.Notes)
}

// IsMultiCity reports whether the destinations describe more than one stop.
func IsMultiCity(destinations []string) bool {
	nonEmpty := 0
	for _, d := range destinations {
		if strings.TrimSpace(d) != "" {
			nonEmpty++
		}
	}
	if nonEmpty > 1 {
		return true
	}

	raw := strings.ToLower(strings.Join(destinations, " "))
	return containsAny(raw, listSeparators) ||
		containsAny(raw, sequenceMarkers) ||
		containsAny(raw, circuitKeywords)
}

// HasSpecialRequirements detects accessibility needs in free text.
func HasSpecialRequirements(texts ...string) bool {
	for _, t := range texts {
		lower := strings.ToLower(t)
		if specialRequirementPattern.MatchString(lower) || containsAny(lower, specialRequirementKeywordsJA) {
			return true
		}
	}
	return false
}

// ClassifyCompanion maps free companion text to a category.
func ClassifyCompanion(companion string) string {
	lower := strings.ToLower(strings.TrimSpace(companion))
	if lower == "" {
		return "unspecified"
	}
	for _, ck := range companionKeywords {
		if containsAny(lower, ck.keywords) {
			return ck.kind
		}
	}
	return "other"
}

// wordPattern builds a case-insensitive regexp matching any term as a whole word.
func wordPattern(terms []string) *regexp.Regexp {
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = regexp.QuoteMeta(t)
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func joinDestinations(destinations []string) string {
	parts := make([]string, 0, len(destinations))
	for _, d := range destinations {
		if d = strings.TrimSpace(d); d != "" {
			parts = append(parts, d)
		}
	}
	return strings.Join(parts, destinationSeparator)
}
