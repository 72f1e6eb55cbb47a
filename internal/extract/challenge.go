package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ChallengeType identifies an interstitial that blocks the chat page.
type ChallengeType string

const (
	ChallengeNone       ChallengeType = ""
	ChallengeCloudflare ChallengeType = "cloudflare"
	ChallengeTurnstile  ChallengeType = "turnstile"
	ChallengeReCaptcha  ChallengeType = "recaptcha"
	ChallengeHCaptcha   ChallengeType = "hcaptcha"
)

// DetectChallenge checks a page snapshot for common bot-check indicators.
// It only reports; nothing tries to solve them.
func DetectChallenge(pageHTML string) ChallengeType {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return ChallengeNone
	}

	switch {
	case doc.Find(".cf-turnstile, [data-sitekey][class*='turnstile']").Length() > 0:
		return ChallengeTurnstile
	case doc.Find(".g-recaptcha, script[src*='recaptcha']").Length() > 0:
		return ChallengeReCaptcha
	case doc.Find(".h-captcha, script[src*='hcaptcha']").Length() > 0:
		return ChallengeHCaptcha
	case doc.Find("#challenge-form, #challenge-stage, #cf-challenge-running").Length() > 0:
		return ChallengeCloudflare
	}

	if strings.EqualFold(strings.TrimSpace(doc.Find("title").First().Text()), "Just a moment...") {
		return ChallengeCloudflare
	}
	return ChallengeNone
}
