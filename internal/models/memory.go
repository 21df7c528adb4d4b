package models

// ContextMemory is the prompt context blob loaded at startup. It is static
// configuration: the conversation flow never rewrites it.
type ContextMemory struct {
	Creator          string   `json:"creator"`
	UserPreferences  []string `json:"userPreferences"`
	TechStack        []string `json:"techStack"`
	InteractionStyle string   `json:"interactionStyle"`
}

const DefaultInteractionStyle = "Professional but Witty"

func (m *ContextMemory) UpgradeFrom(version int) {
	for v := version; v < CurrentVersion; v++ {
		switch v {
		case 0:
			if m.InteractionStyle == "" {
				m.InteractionStyle = DefaultInteractionStyle
			}
		}
	}
}
