package gemini

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	apierrors "github.com/sowankispassah/khasigpt-sub005/internal/errors"
)

// RetrievalInstruction is prepended to the system instruction whenever the
// retrieval tool is bound.
const RetrievalInstruction = `You can search the connected knowledge stores with the retrieval tool.
Use it for questions about domain-specific, internal or organisation-specific knowledge before answering from general knowledge.
If the retrieved passages are not relevant to the question, ignore them and answer normally.
Never invent facts, citations or document contents that the retrieved passages do not support.`

// BindRetrieval declares the retrieval tool over all stores and prepends the
// retrieval instruction. With no stores the request is left untouched.
func BindRetrieval(req *GenerateContentRequest, stores []string, metadataFilter string) {
	stores = cleanStores(stores)
	if len(stores) == 0 {
		return
	}

	r := &Retrieval{StoreNames: stores}
	if f := strings.TrimSpace(metadataFilter); f != "" {
		r.MetadataFilter = f
	}
	req.Tools = []Tool{{Retrieval: r}}

	parts := []Part{{Text: RetrievalInstruction}}
	if req.SystemInstruction != nil {
		parts = append(parts, req.SystemInstruction.Parts...)
	}
	req.SystemInstruction = &SystemInstruction{Parts: parts}
}

func cleanStores(stores []string) []string {
	out := make([]string, 0, len(stores))
	for _, s := range stores {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// CheckStores verifies every store name matches at least one allow-list
// pattern. An empty allow-list admits everything.
func CheckStores(stores, patterns []string) error {
	if len(patterns) == 0 {
		return nil
	}
	for _, s := range cleanStores(stores) {
		allowed := false
		for _, p := range patterns {
			ok, err := doublestar.Match(p, s)
			if err != nil {
				return &apierrors.ConfigurationError{Message: fmt.Sprintf("bad store pattern %q: %v", p, err)}
			}
			if ok {
				allowed = true
				break
			}
		}
		if !allowed {
			return &apierrors.ConfigurationError{
				Message: fmt.Sprintf("store %q is not in the allow-list", s),
				Err:     apierrors.ErrStoreNotAllowed,
			}
		}
	}
	return nil
}
