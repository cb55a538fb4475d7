// internal/workers/ai-conversation/chat-turn/classify.go
package chatturn

import "regexp"

var (
	faqPattern    = regexp.MustCompile(`(?i)\b(returns?|refunds?|warranty|shipping|delivery|payments?|exchanges?|polic(?:y|ies))\b`)
	brokenPattern = regexp.MustCompile(`(?i)\b(broken|defective|damaged|not working|doesn'?t work|dead on arrival)\b`)

	cancelPattern = regexp.MustCompile(`(?i)\bcancel`)
	// "status" and "where is" only count next to "order"
	trackPattern       = regexp.MustCompile(`(?i)\b(track(?:ing)?|where(?:\s+is|'s)\s+(?:my\s+|the\s+)?order|order\s+status|status\s+of\s+(?:my\s+|the\s+)?order)\b`)
	orderPattern       = regexp.MustCompile(`(?i)\border`)
	orderNumberPattern = regexp.MustCompile(`#?(\d{5,})`)

	buildPattern = regexp.MustCompile(`(?i)\b(build(?:ing)?\s+(?:a|an|my|me\s+a)\s+(?:new\s+)?(?:gaming\s+)?(?:pc|computer|desktop|rig)|pc\s+build|custom\s+pc|gaming\s+rig|assembl(?:e|ing)\s+(?:a|my)\s+(?:new\s+)?(?:pc|computer|desktop))\b`)
)

type orderAction int

const (
	orderNone orderAction = iota
	orderCancel
	orderTrack
)

// classifyOrder spots order actions and the order number, if the message carries one.
func classifyOrder(message string) (orderAction, string) {
	var number string
	if m := orderNumberPattern.FindStringSubmatch(message); m != nil {
		number = m[1]
	}
	mentionsOrder := orderPattern.MatchString(message)

	switch {
	case cancelPattern.MatchString(message) && mentionsOrder:
		return orderCancel, number
	case trackPattern.MatchString(message) && (mentionsOrder || number != ""):
		return orderTrack, number
	}
	return orderNone, ""
}

func isFAQQuestion(message string) bool {
	return faqPattern.MatchString(message)
}

// isDefectReport is checked on its own; a defect report need not mention any policy word.
func isDefectReport(message string) bool {
	return brokenPattern.MatchString(message)
}

func isBuildMessage(message string) bool {
	return buildPattern.MatchString(message)
}
