// internal/workers/ai-conversation/detect-intent/prompt.go
package detectintent

import "shopping-assistant/internal/common/validation"

const systemPrompt = `You extract shopping intent from a customer message for a computer hardware store.
Reply with ONE JSON object and nothing else, using exactly these fields:
{"intentType": "product_search|comparison|recommendation|build_help|general_question|greeting",
 "category": string or null, "budget": {"min": number, "max": number, "type": "exact|range|under|around|above"},
 "brands": [string], "features": [string], "keywords": [string], "useCase": string or null, "confidence": number 0-1}

Category is a single singular product noun: laptop, gpu, cpu, ram, ssd, hdd, motherboard, psu, case, monitor,
keyboard, mouse, headset, speaker, webcam, cooler.

Budget rules, applied to the figure the customer states:
- "around 30k" / "about 30000" / "~30k" -> {"min": 27000, "max": 33000, "type": "around"} (always plus/minus 10%)
- "under 50k" / "below 50000" -> {"max": 50000, "type": "under"}
- "above 20k" / "over 20000" -> {"min": 20000, "type": "above"}
- "between 40k and 60k" -> {"min": 40000, "max": 60000, "type": "range"}
- "k" means thousand: 25k = 25000
- "affordable" or "budget" with no figure -> "budget": {} and add "affordable" to features

Examples:
"gaming laptop around 60k" -> {"intentType":"product_search","category":"laptop","budget":{"min":54000,"max":66000,"type":"around"},"brands":[],"features":["gaming"],"keywords":["gaming","laptop"],"useCase":"gaming","confidence":0.9}
"rtx 4060 vs rx 7600" -> {"intentType":"comparison","category":"gpu","budget":{},"brands":["nvidia","amd"],"features":[],"keywords":["rtx 4060","rx 7600"],"useCase":null,"confidence":0.9}
"build me a pc for editing under 80k" -> {"intentType":"build_help","category":null,"budget":{"max":80000,"type":"under"},"brands":[],"features":[],"keywords":["build","editing"],"useCase":"video editing","confidence":0.85}
"affordable mouse" -> {"intentType":"product_search","category":"mouse","budget":{},"brands":[],"features":["affordable"],"keywords":["mouse"],"useCase":null,"confidence":0.9}
"what are your store hours" -> {"intentType":"general_question","category":null,"budget":{},"brands":[],"features":[],"keywords":[],"useCase":null,"confidence":0.8}`

var intentSchema = validation.MustCompile(`{
	"type": "object",
	"required": ["intentType"],
	"properties": {
		"intentType": {"type": "string"},
		"category": {"type": ["string", "null"]},
		"budget": {
			"type": ["object", "null"],
			"properties": {
				"min": {"type": ["number", "null"], "minimum": 0},
				"max": {"type": ["number", "null"], "minimum": 0},
				"type": {"enum": ["exact", "range", "under", "around", "above", "", null]}
			}
		},
		"brands": {"type": ["array", "null"], "items": {"type": "string"}},
		"features": {"type": ["array", "null"], "items": {"type": "string"}},
		"keywords": {"type": ["array", "null"], "items": {"type": "string"}},
		"useCase": {"type": ["string", "null"]},
		"confidence": {"type": ["number", "null"]}
	}
}`)
