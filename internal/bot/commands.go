package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/xaenox/vaaniii/internal/assistant"
	"github.com/xaenox/vaaniii/internal/chat"
	"github.com/xaenox/vaaniii/internal/session"
)

// protocolCommands route a prompt through a protocol, e.g. "/search go 1.24".
var protocolCommands = map[string]assistant.Protocol{
	"fast":   assistant.ProtocolSpeedLink,
	"search": assistant.ProtocolDeepSearch,
	"news":   assistant.ProtocolLatestNews,
	"code":   assistant.ProtocolCodeyBro,
	"hack":   assistant.ProtocolEthicalHacking,
	"chart":  assistant.ProtocolDataViz,
	"svg":    assistant.ProtocolVectorGen,
}

func (b *Bot) handleCommand(ctx context.Context, sess *session.Session, message *tgbotapi.Message) {
	if protocol, ok := protocolCommands[message.Command()]; ok {
		b.handleProtocol(ctx, sess, message, protocol)
		return
	}
	switch message.Command() {
	case "start":
		b.handleStart(sess, message)
	case "help":
		b.handleHelp(message)
	case "new":
		b.handleNew(ctx, sess, message)
	case "threads":
		b.handleThreads(ctx, sess, message)
	case "switch":
		b.handleSwitch(ctx, sess, message)
	case "delete":
		b.handleDelete(ctx, sess, message)
	case "forget":
		b.handleForget(ctx, sess, message)
	case "history":
		b.handleHistory(ctx, sess, message)
	case "export":
		b.handleExport(ctx, sess, message)
	case "rank":
		b.handleRank(sess, message)
	case "offline":
		b.handleOffline(ctx, sess, message)
	default:
		b.sendMessage(message.Chat.ID, "Unknown command. Use /help to see available commands.")
	}
}

func (b *Bot) handleStart(sess *session.Session, message *tgbotapi.Message) {
	welcome := fmt.Sprintf(`VAANIII online. Welcome, %s.
Rank: %s

Send any message to talk to the assistant. Conversations are kept in threads.
Use /help to see all available commands.`, sess.User.Name, sess.User.Rank)

	b.sendMessage(message.Chat.ID, welcome)
}

func (b *Bot) handleHelp(message *tgbotapi.Message) {
	help := `Available commands:
/start - Start the bot
/help - Show this help message
/new [title] - Start a new thread
/threads - List your threads
/switch <id> - Switch to a thread
/delete <id> - Delete a thread and its history
/forget - Clear the current thread
/history - Show recent messages in the current thread
/export - Download all your data as JSON
/rank - Show your rank
/offline [on|off] - Toggle offline mode

Protocols:
/fast <text> - Quick answer from the lightweight model
/search <text> - Answer grounded in web search
/news <text> - Latest news with sources
/code <text> - Frontend engineering help
/hack <text> - Defensive security instruction
/chart <text> - Chart the data in the recent conversation
/svg <text> - Generate a vector graphic`

	b.sendMessage(message.Chat.ID, help)
}

func (b *Bot) handleProtocol(ctx context.Context, sess *session.Session, message *tgbotapi.Message, protocol assistant.Protocol) {
	text := strings.TrimSpace(message.CommandArguments())
	if text == "" {
		b.sendMessage(message.Chat.ID, fmt.Sprintf("Usage: /%s <text>", message.Command()))
		return
	}
	b.converse(ctx, sess, message, protocol, text, nil)
}

func (b *Bot) handleNew(ctx context.Context, sess *session.Session, message *tgbotapi.Message) {
	t, err := b.engine.NewThread(ctx, sess, strings.TrimSpace(message.CommandArguments()))
	if err != nil {
		b.logger.Error("Failed to create thread",
			zap.Error(err),
			zap.Int64("user_id", message.From.ID))
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't create a new thread.")
		return
	}
	b.sendMessage(message.Chat.ID, fmt.Sprintf("Thread %q created (%s).", t.Title, t.ID))
}

func (b *Bot) handleThreads(ctx context.Context, sess *session.Session, message *tgbotapi.Message) {
	threads := b.engine.Threads(ctx, sess)
	if len(threads) == 0 {
		b.sendMessage(message.Chat.ID, "You don't have any threads yet.")
		return
	}

	response := "*Your threads:*\n\n"
	for _, t := range threads {
		marker := ""
		if t.ID == sess.ThreadID {
			marker = " \\(active\\)"
		}
		response += fmt.Sprintf("*%s*%s\n`%s`\n_%s_\n\n",
			escapeMarkdown(t.Title), marker, t.ID, escapeMarkdown(t.Preview))
	}

	b.sendMarkdown(message.Chat.ID, response)
}

func (b *Bot) handleSwitch(ctx context.Context, sess *session.Session, message *tgbotapi.Message) {
	id := strings.TrimSpace(message.CommandArguments())
	if id == "" {
		b.sendMessage(message.Chat.ID, "Usage: /switch <id>")
		return
	}
	t, err := b.engine.SwitchThread(ctx, sess, id)
	if err != nil {
		b.sendErrorMessage(message.Chat.ID, threadError(err))
		return
	}
	b.sendMessage(message.Chat.ID, fmt.Sprintf("Switched to %q.", t.Title))
}

func (b *Bot) handleDelete(ctx context.Context, sess *session.Session, message *tgbotapi.Message) {
	id := strings.TrimSpace(message.CommandArguments())
	if id == "" {
		b.sendMessage(message.Chat.ID, "Usage: /delete <id>")
		return
	}
	if err := b.engine.DeleteThread(ctx, sess, id); err != nil {
		b.logger.Error("Failed to delete thread",
			zap.Error(err),
			zap.String("thread_id", id))
		b.sendErrorMessage(message.Chat.ID, threadError(err))
		return
	}
	b.sendMessage(message.Chat.ID, "Thread deleted.")
}

func (b *Bot) handleForget(ctx context.Context, sess *session.Session, message *tgbotapi.Message) {
	if err := b.engine.ForgetThread(ctx, sess); err != nil {
		b.logger.Error("Failed to clear thread",
			zap.Error(err),
			zap.String("thread_id", sess.ThreadID))
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't clear this thread.")
		return
	}
	b.sendMessage(message.Chat.ID, "Thread memory cleared.")
}

func (b *Bot) handleHistory(ctx context.Context, sess *session.Session, message *tgbotapi.Message) {
	messages := b.engine.History(ctx, sess)
	if len(messages) == 0 {
		b.sendMessage(message.Chat.ID, "This thread has no messages yet.")
		return
	}
	if len(messages) > historyPreviewCount {
		messages = messages[len(messages)-historyPreviewCount:]
	}

	response := "*Recent messages:*\n\n"
	for _, msg := range messages {
		response += fmt.Sprintf("*%s*\n", escapeMarkdown(strings.ToUpper(string(msg.Role))))
		response += fmt.Sprintf("_%s_\n\n", escapeMarkdown(msg.Text))
	}

	b.sendMarkdown(message.Chat.ID, response)
}

func (b *Bot) handleExport(ctx context.Context, sess *session.Session, message *tgbotapi.Message) {
	data, err := b.engine.Export(ctx, sess)
	if err != nil {
		b.logger.Error("Failed to export data",
			zap.Error(err),
			zap.String("user_id", sess.User.ID))
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't export your data.")
		return
	}

	doc := tgbotapi.NewDocument(message.Chat.ID, tgbotapi.FileBytes{
		Name:  fmt.Sprintf("vaaniii_export_%s.json", sess.User.ID),
		Bytes: data,
	})
	if _, err := b.out.Send(doc); err != nil {
		b.logger.Error("Failed to send export",
			zap.Error(err),
			zap.Int64("chat_id", message.Chat.ID))
	}
}

func (b *Bot) handleRank(sess *session.Session, message *tgbotapi.Message) {
	sess.Lock()
	text := fmt.Sprintf("%s // LVL %d\nXP: %d", sess.User.Rank, sess.User.XP/100, sess.User.XP)
	sess.Unlock()
	b.sendMessage(message.Chat.ID, text)
}

func (b *Bot) handleOffline(ctx context.Context, sess *session.Session, message *tgbotapi.Message) {
	sess.Lock()
	offline := !sess.User.OfflineMode
	sess.Unlock()

	switch strings.ToLower(strings.TrimSpace(message.CommandArguments())) {
	case "on":
		offline = true
	case "off":
		offline = false
	}

	if err := b.engine.SetOffline(ctx, sess, offline); err != nil {
		b.logger.Error("Failed to save offline mode",
			zap.Error(err),
			zap.String("user_id", sess.User.ID))
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't change offline mode.")
		return
	}
	if offline {
		b.sendMessage(message.Chat.ID, "Offline mode enabled.")
	} else {
		b.sendMessage(message.Chat.ID, "Offline mode disabled.")
	}
}

func threadError(err error) string {
	if errors.Is(err, chat.ErrUnknownThread) {
		return "No thread with that id. Use /threads to list them."
	}
	return "Sorry, something went wrong with that thread."
}

// escapeMarkdown escapes special characters for MarkdownV2.
func escapeMarkdown(text string) string {
	specialChars := []string{"\\", "_", "*", "[", "]", "(", ")", "~", "`", ">", "#", "+", "-", "=", "|", "{", "}", ".", "!"}
	escaped := text
	for _, char := range specialChars {
		escaped = strings.ReplaceAll(escaped, char, "\\"+char)
	}
	return escaped
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.out.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) sendMarkdown(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "MarkdownV2"
	if _, err := b.out.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) sendErrorMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, "⚠️ "+text)
	if _, err := b.out.Send(msg); err != nil {
		b.logger.Error("Failed to send error message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}
