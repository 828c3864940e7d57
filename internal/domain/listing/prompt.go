package listing

import (
	"fmt"
	"strings"

	"lazy-lister/internal/platform/errors"
)

// DefaultTemplate is the prompt the web UI sends. The relay falls back to it
// when a request carries no prompt.
const DefaultTemplate = `You are an expert Nigerian seller.
Identify this item.
Write a viral sales listing for Instagram/WhatsApp.
Include:
- 🧢 Catchy Title
- 💰 Estimated Price Range (in Naira)
- ✨ Key Features (bullet points)
- 📞 Call to Action (DM for price/pickup)
Tone: Urgent but friendly.`

type Condition string

const (
	ConditionNew       Condition = "New"
	ConditionUKUsed    Condition = "UK Used"
	ConditionNaijaUsed Condition = "Naija Used"
)

// Conditions lists the accepted item conditions in display order.
var Conditions = []Condition{ConditionNew, ConditionUKUsed, ConditionNaijaUsed}

type Platform string

const (
	PlatformInstagram      Platform = "Instagram"
	PlatformWhatsAppStatus Platform = "WhatsApp Status"
	PlatformJiji           Platform = "Jiji"
)

// Platforms lists the accepted target platforms in display order.
var Platforms = []Platform{PlatformInstagram, PlatformWhatsAppStatus, PlatformJiji}

var platformGuidance = map[Platform][]string{
	PlatformWhatsAppStatus: {
		"Keep it short and punchy.",
		"Use plenty of emojis.",
		`Focus on urgency (e.g., "Fastest fingers!").`,
	},
	PlatformJiji: {
		"Write a formal, clear description.",
		"List key specifications in bullet points.",
		"Maintain a professional tone. No unnecessary emojis.",
	},
	PlatformInstagram: {
		"Write a catchy, engaging story or hook.",
		"Use a friendly and persuasive tone.",
		"Add 5-10 relevant hashtags.",
	},
}

// ParseCondition matches s case-insensitively. Empty input yields "".
func ParseCondition(s string) (Condition, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	for _, c := range Conditions {
		if strings.EqualFold(string(c), s) {
			return c, nil
		}
	}
	return "", errors.New(errors.KindInput, "listing.condition",
		fmt.Sprintf("Unknown condition %q", s))
}

// ParsePlatform matches s case-insensitively. Empty input yields "".
func ParsePlatform(s string) (Platform, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	for _, p := range Platforms {
		if strings.EqualFold(string(p), s) {
			return p, nil
		}
	}
	return "", errors.New(errors.KindInput, "listing.platform",
		fmt.Sprintf("Unknown platform %q", s))
}

// BuildPrompt returns the text sent to the provider. A non-empty prompt is
// kept verbatim; an empty one becomes DefaultTemplate. A context block is
// appended only when a condition or platform is given.
func BuildPrompt(prompt string, condition Condition, platform Platform) string {
	if strings.TrimSpace(prompt) == "" {
		prompt = DefaultTemplate
	}
	if condition == "" && platform == "" {
		return prompt
	}

	var b strings.Builder
	b.WriteString(prompt)
	b.WriteString("\n\nContext:\n")
	if condition != "" {
		fmt.Fprintf(&b, "- Condition: %s\n", condition)
	}
	if platform != "" {
		fmt.Fprintf(&b, "- Platform: %s\n", platform)
	}

	b.WriteString("\nTasks:\n")
	b.WriteString("1. Identify the item precisely.\n")
	if condition != "" {
		fmt.Fprintf(&b, "2. Estimate a price range in NGN (Naira) based on current Nigerian market value for a %s item.\n", condition)
	} else {
		b.WriteString("2. Estimate a price range in NGN (Naira) based on current Nigerian market value.\n")
	}
	if platform != "" {
		fmt.Fprintf(&b, "3. Write a sales caption tailored for %s:\n", platform)
		for _, line := range platformGuidance[platform] {
			fmt.Fprintf(&b, "   - %s\n", line)
		}
	} else {
		b.WriteString("3. Write the sales caption.\n")
	}
	b.WriteString("\nFormat the output clearly.")
	return b.String()
}
