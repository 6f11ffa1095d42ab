package fleet

// Domain describes one knowledge scope exposed to the frontend: an aircraft
// type or the generic briefing assistant. The set is fixed at startup.
type Domain struct {
	Tag           string `json:"tag"`
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	PromptHint    string `json:"promptHint,omitempty"`
	KnowledgeBase string `json:"knowledgeBase,omitempty"`
}

// Seed provides the default knowledge domains shipped with the product.
func Seed() []Domain {
	return []Domain{
		{
			Tag:           "a320",
			Name:          "A320",
			Description:   "A320 family systems, limitations and procedures.",
			PromptHint:    "You are a type-rated A320 instructor. Answer strictly from A320 family documentation and say so when the manuals are silent.",
			KnowledgeBase: "kb-a320",
		},
		{
			Tag:           "a330",
			Name:          "A330",
			Description:   "A330 systems, limitations and procedures.",
			PromptHint:    "You are a type-rated A330 instructor. Answer strictly from A330 documentation and say so when the manuals are silent.",
			KnowledgeBase: "kb-a330",
		},
		{
			Tag:           "a350",
			Name:          "A350",
			Description:   "A350 systems, limitations and procedures.",
			PromptHint:    "You are a type-rated A350 instructor. Answer strictly from A350 documentation and say so when the manuals are silent.",
			KnowledgeBase: "kb-a350",
		},
		{
			Tag:           "briefing",
			Name:          "Briefing",
			Description:   "General flight preparation: weather, NOTAMs, performance and company procedures.",
			PromptHint:    "You are a flight operations briefing assistant. Keep answers operational and concise.",
			KnowledgeBase: "kb-briefing",
		},
	}
}
