package session

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xaenox/vaaniii/internal/models"
	"github.com/xaenox/vaaniii/internal/storage"
)

// LoadMemory reads the context memory once. Absent or unreadable records
// yield defaults.
func LoadMemory(ctx context.Context, records *storage.Service, logger *zap.Logger, defaults models.ContextMemory) models.ContextMemory {
	if defaults.InteractionStyle == "" {
		defaults.InteractionStyle = models.DefaultInteractionStyle
	}

	var m models.ContextMemory
	found, err := records.LoadRecord(ctx, storage.ContextMemoryKey, models.KindMemory, &m)
	if err != nil {
		logger.Warn("Failed to load context memory, using defaults", zap.Error(err))
		return defaults
	}
	if !found {
		return defaults
	}
	if m.Creator == "" {
		m.Creator = defaults.Creator
	}
	return m
}

// SystemInstruction renders the assistant system prompt. worldContext is the
// object the user is focused on, if any.
func SystemInstruction(m models.ContextMemory, worldContext, language string) string {
	if language == "" {
		language = "English"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are VAANIII, a highly advanced Hyper-OS AI assistant created by %s.\n\n", m.Creator)
	b.WriteString("**Core Directives:**\n")
	b.WriteString("- **Identity:** You are the OS. Use terms like \"Affirmative\", \"Processing\", \"Calculating\".\n")
	fmt.Fprintf(&b, "- **Language:** Respond primarily in %s.\n", language)
	fmt.Fprintf(&b, "- **Style:** %s. Adapt tone to user.\n", m.InteractionStyle)
	if len(m.UserPreferences) > 0 {
		fmt.Fprintf(&b, "- **User Preferences:** %s.\n", strings.Join(m.UserPreferences, ", "))
	}
	if len(m.TechStack) > 0 {
		fmt.Fprintf(&b, "- **Known Tech Stack:** %s.\n", strings.Join(m.TechStack, ", "))
	}

	b.WriteString("\n**Current System Context:**\n")
	if worldContext != "" {
		fmt.Fprintf(&b, "User is currently viewing/focused on: %s. Incorporate this into answers if relevant.\n", worldContext)
	} else {
		b.WriteString("User is in the Terminal.\n")
	}

	b.WriteString("\n**Formatting:**\n- Use Markdown.\n- Be concise.\n")
	return b.String()
}
