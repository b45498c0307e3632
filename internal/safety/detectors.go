package safety

import (
	"fmt"
	"regexp"
	"strings"

	"recap/internal/config"
	"recap/internal/store"
)

// Default phrase lists.
var (
	PaymentBypassPhrases = []string{
		"pay outside", "pay me directly", "bypass payment", "pay cash", "direct payment",
		"venmo", "paypal me", "cash app", "off the platform", "outside the app", "avoid fees",
	}
	SocialPlatformKeywords = []string{
		"whatsapp", "telegram", "signal app", "snapchat", "instagram", "wechat", "discord",
	}
	EngagementKeywords = []string{
		"question", "explain", "practice", "understand", "example",
		"homework", "review", "exercise", "problem", "try",
	}
)

const (
	defaultExcerptWindow  = 250
	defaultFallbackLength = 200
	defaultMinWords       = 100
	defaultMinEngagement  = 3
)

// Excerpts controls how detectors quote the transcript.
type Excerpts struct {
	Window   int
	Fallback int
}

func (e Excerpts) around(text, lower string, pos, matchLen int) string {
	window := e.Window
	if window <= 0 {
		window = defaultExcerptWindow
	}
	return excerptAround(text, lower, pos, matchLen, window)
}

func (e Excerpts) leading(text string) string {
	n := e.Fallback
	if n <= 0 {
		n = defaultFallbackLength
	}
	return leadingExcerpt(text, n)
}

// DefaultDetectors returns the standard battery configured from cfg.
func DefaultDetectors(cfg config.Safety) []Detector {
	excerpts := Excerpts{Window: cfg.ExcerptWindow, Fallback: cfg.FallbackExcerptSize}
	return []Detector{
		PaymentBypass{Excerpts: excerpts},
		InappropriateLanguage{Terms: cfg.InappropriateTerms, Excerpts: excerpts},
		ContactInfo{PlatformDomain: cfg.PlatformDomain, Excerpts: excerpts},
		LowEngagement{MinWords: cfg.MinWordCount, MinKeywords: cfg.MinEngagementTerms, Excerpts: excerpts},
	}
}

// PaymentBypass flags attempts to move payment off the platform.
type PaymentBypass struct {
	Phrases  []string
	Excerpts Excerpts
}

func (PaymentBypass) Name() string { return "payment_bypass" }

func (d PaymentBypass) Detect(in Input) *Finding {
	phrases := d.Phrases
	if len(phrases) == 0 {
		phrases = PaymentBypassPhrases
	}
	phrase, pos := firstPhrase(in.Lower, phrases)
	if pos < 0 {
		return nil
	}
	return &Finding{
		Type:        store.FlagPaymentBypass,
		Severity:    store.SeverityCritical,
		Description: fmt.Sprintf("Possible attempt to arrange payment outside the platform (matched %q)", phrase),
		Excerpt:     d.Excerpts.around(in.Transcript, in.Lower, pos, len(phrase)),
	}
}

// InappropriateLanguage matches a configurable term list. With no terms it
// never fires.
type InappropriateLanguage struct {
	Terms    []string
	Excerpts Excerpts
}

func (InappropriateLanguage) Name() string { return "inappropriate_language" }

func (d InappropriateLanguage) Detect(in Input) *Finding {
	if len(d.Terms) == 0 {
		return nil
	}
	terms := make([]string, 0, len(d.Terms))
	for _, term := range d.Terms {
		if term = strings.TrimSpace(lowerText(term)); term != "" {
			terms = append(terms, term)
		}
	}
	term, pos := firstPhrase(in.Lower, terms)
	if pos < 0 {
		return nil
	}
	return &Finding{
		Type:        store.FlagInappropriate,
		Severity:    store.SeverityHigh,
		Description: "Inappropriate language detected in session",
		Excerpt:     d.Excerpts.around(in.Transcript, in.Lower, pos, len(term)),
	}
}

var (
	digitRun   = regexp.MustCompile(`\b\d{8,15}\b`)
	phoneGroup = regexp.MustCompile(`\b\d{3,4}(?:[ -]\d{2,4}){1,3}\b`)
	emailMatch = regexp.MustCompile(`[a-z0-9._%+\-]+@([a-z0-9\-]+(?:\.[a-z0-9\-]+)*\.[a-z]{2,})`)
)

// ContactInfo flags phone numbers, off-platform email addresses, and social
// handles being exchanged.
type ContactInfo struct {
	// PlatformDomain is the platform's own email domain; addresses on it and
	// its subdomains are ignored.
	PlatformDomain string
	Keywords       []string
	Excerpts       Excerpts
}

func (ContactInfo) Name() string { return "contact_info" }

type contactMatch struct {
	kind string
	pos  int
	n    int
}

func (d ContactInfo) Detect(in Input) *Finding {
	text := spokenText(in.Transcript)
	lower := spokenText(in.Lower)
	var matches []contactMatch

	if pos, n, ok := findPhoneNumber(lower); ok {
		matches = append(matches, contactMatch{kind: "phone number", pos: pos, n: n})
	}
	if pos, n, ok := d.findEmail(lower); ok {
		matches = append(matches, contactMatch{kind: "email address", pos: pos, n: n})
	}
	keywords := d.Keywords
	if len(keywords) == 0 {
		keywords = SocialPlatformKeywords
	}
	if keyword, pos := firstPhrase(lower, keywords); pos >= 0 {
		matches = append(matches, contactMatch{kind: "social platform (" + keyword + ")", pos: pos, n: len(keyword)})
	}
	if len(matches) == 0 {
		return nil
	}

	first := matches[0]
	kinds := make([]string, 0, len(matches))
	for _, m := range matches {
		kinds = append(kinds, m.kind)
		if m.pos < first.pos {
			first = m
		}
	}
	return &Finding{
		Type:        store.FlagContactInfo,
		Severity:    store.SeverityMedium,
		Description: "Possible contact information shared: " + strings.Join(kinds, ", "),
		Excerpt:     d.Excerpts.around(text, lower, first.pos, first.n),
	}
}

func (d ContactInfo) findEmail(lower string) (int, int, bool) {
	platform := strings.ToLower(strings.TrimSpace(d.PlatformDomain))
	for _, loc := range emailMatch.FindAllStringSubmatchIndex(lower, -1) {
		domain := lower[loc[2]:loc[3]]
		if platform != "" && (domain == platform || strings.HasSuffix(domain, "."+platform)) {
			continue
		}
		return loc[0], loc[1] - loc[0], true
	}
	return 0, 0, false
}

// findPhoneNumber looks for an 8 to 15 digit run, either unbroken or laid out
// as 2 to 4 space or dash separated groups with a leading group of at least
// three digits. Runs directly after a currency symbol are amounts, not numbers
// to call. Offsets refer to lower.
func findPhoneNumber(lower string) (int, int, bool) {
	best := -1
	bestLen := 0
	for _, re := range []*regexp.Regexp{digitRun, phoneGroup} {
		for _, loc := range re.FindAllStringIndex(lower, -1) {
			if afterCurrency(lower[:loc[0]]) {
				continue
			}
			if n := countDigits(lower[loc[0]:loc[1]]); n < 8 || n > 15 {
				continue
			}
			if best < 0 || loc[0] < best {
				best, bestLen = loc[0], loc[1]-loc[0]
			}
			break
		}
	}
	if best < 0 {
		return 0, 0, false
	}
	return best, bestLen, true
}

func afterCurrency(prefix string) bool {
	return strings.HasSuffix(prefix, "$") || strings.HasSuffix(prefix, "€") || strings.HasSuffix(prefix, "£")
}

func countDigits(text string) int {
	n := 0
	for i := 0; i < len(text); i++ {
		if text[i] >= '0' && text[i] <= '9' {
			n++
		}
	}
	return n
}

// LowEngagement flags sessions that are too short or show little sign of
// instruction taking place.
type LowEngagement struct {
	MinWords    int
	MinKeywords int
	Keywords    []string
	Excerpts    Excerpts
}

func (LowEngagement) Name() string { return "low_engagement" }

func (d LowEngagement) Detect(in Input) *Finding {
	minWords := d.MinWords
	if minWords <= 0 {
		minWords = defaultMinWords
	}
	minKeywords := d.MinKeywords
	if minKeywords <= 0 {
		minKeywords = defaultMinEngagement
	}
	keywords := d.Keywords
	if len(keywords) == 0 {
		keywords = EngagementKeywords
	}

	words := tokenize(spokenText(in.Lower))
	seen := make(map[string]struct{}, len(keywords))
	for _, word := range words {
		for _, keyword := range keywords {
			if strings.HasPrefix(word, keyword) {
				seen[keyword] = struct{}{}
			}
		}
	}

	var reasons []string
	if len(words) < minWords {
		reasons = append(reasons, fmt.Sprintf("only %d words spoken (minimum %d)", len(words), minWords))
	}
	if len(seen) < minKeywords {
		reasons = append(reasons, fmt.Sprintf("%d engagement indicators found (minimum %d)", len(seen), minKeywords))
	}
	if len(reasons) == 0 {
		return nil
	}
	return &Finding{
		Type:        store.FlagSessionQuality,
		Severity:    store.SeverityLow,
		Description: "Low engagement: " + strings.Join(reasons, "; "),
		Excerpt:     d.Excerpts.leading(in.Transcript),
	}
}
