package gemini

import (
	"google.golang.org/genai"

	"github.com/sowankispassah/khasigpt-sub005/internal/adapter"
)

// MapFinishReason translates the endpoint's finish reason into the canonical
// vocabulary. Unlisted and absent values map to unknown.
func MapFinishReason(r genai.FinishReason) adapter.FinishReason {
	switch r {
	case genai.FinishReasonStop:
		return adapter.FinishStop
	case genai.FinishReasonMaxTokens:
		return adapter.FinishLength
	case genai.FinishReasonSafety,
		genai.FinishReasonImageSafety,
		genai.FinishReasonRecitation,
		genai.FinishReasonBlocklist,
		genai.FinishReasonProhibitedContent,
		genai.FinishReasonSPII:
		return adapter.FinishContentFilter
	case genai.FinishReasonMalformedFunctionCall:
		return adapter.FinishError
	case genai.FinishReasonUnspecified, genai.FinishReasonOther:
		return adapter.FinishOther
	default:
		return adapter.FinishUnknown
	}
}
