package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/xaenox/vaaniii/internal/assistant"
	"github.com/xaenox/vaaniii/internal/auth"
	"github.com/xaenox/vaaniii/internal/chat"
	"github.com/xaenox/vaaniii/internal/models"
	"github.com/xaenox/vaaniii/internal/session"
	"github.com/xaenox/vaaniii/internal/storage"
)

const historyPreviewCount = 5

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Bot struct {
	api         *tgbotapi.BotAPI
	out         sender
	engine      *chat.Engine
	records     *storage.Service
	pollTimeout int
	logger      *zap.Logger

	mu       sync.Mutex
	sessions map[int64]*sessionEntry
}

// sessionEntry opens a user's session at most once. Concurrent first
// messages from the same user wait on the same open.
type sessionEntry struct {
	once sync.Once
	sess *session.Session
	err  error
}

type Config struct {
	Token       string
	PollTimeout int
	Debug       bool
}

func New(config Config, engine *chat.Engine, records *storage.Service, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(config.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	api.Debug = config.Debug

	b := newBot(api, engine, records, logger)
	b.api = api
	if config.PollTimeout > 0 {
		b.pollTimeout = config.PollTimeout
	}
	return b, nil
}

func newBot(out sender, engine *chat.Engine, records *storage.Service, logger *zap.Logger) *Bot {
	return &Bot{
		out:         out,
		engine:      engine,
		records:     records,
		pollTimeout: 60,
		logger:      logger,
		sessions:    make(map[int64]*sessionEntry),
	}
}

// Start long-polls for updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.pollTimeout

	updates := b.api.GetUpdatesChan(u)
	b.logger.Info("Bot started", zap.String("username", b.api.Self.UserName))

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil || update.Message.From == nil {
				continue
			}
			go b.handleMessage(ctx, update.Message)
		}
	}
}

// sessionFor returns the session of a Telegram user, restoring the stored
// profile or registering a new one on first contact. Store I/O runs outside
// b.mu so first contacts of different users do not queue behind each other.
func (b *Bot) sessionFor(ctx context.Context, from *tgbotapi.User) (*session.Session, error) {
	b.mu.Lock()
	entry, ok := b.sessions[from.ID]
	if !ok {
		entry = &sessionEntry{}
		b.sessions[from.ID] = entry
	}
	b.mu.Unlock()

	entry.once.Do(func() {
		entry.sess, entry.err = b.openSession(ctx, from)
	})
	if entry.err != nil {
		b.mu.Lock()
		if b.sessions[from.ID] == entry {
			delete(b.sessions, from.ID)
		}
		b.mu.Unlock()
		return nil, entry.err
	}
	return entry.sess, nil
}

func (b *Bot) openSession(ctx context.Context, from *tgbotapi.User) (*session.Session, error) {
	manager := session.NewProfileManager(b.records, fmt.Sprintf("tg_%d", from.ID), b.logger)
	user, ok := manager.Get(ctx)
	if !ok {
		user = auth.NewTelegramUser(from.ID, displayName(from))
		b.logger.Info("Registered new user", zap.String("user_id", user.ID))
	}
	return b.engine.Open(ctx, manager, user)
}

func displayName(u *tgbotapi.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.UserName
	}
	return name
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	sess, err := b.sessionFor(ctx, message.From)
	if err != nil {
		b.logger.Error("Failed to open session",
			zap.Error(err),
			zap.Int64("user_id", message.From.ID))
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't open your session. Please try again.")
		return
	}

	if message.IsCommand() {
		b.handleCommand(ctx, sess, message)
		return
	}

	content := message.Text
	if message.Caption != "" {
		content = message.Caption
	}
	attachments := attachmentsOf(message)
	if strings.TrimSpace(content) == "" && len(attachments) == 0 {
		return
	}

	b.converse(ctx, sess, message, assistant.ProtocolStandard, content, attachments)
}

// converse runs one turn under protocol and replies to message.
func (b *Bot) converse(ctx context.Context, sess *session.Session, message *tgbotapi.Message, protocol assistant.Protocol, content string, attachments []models.Attachment) {
	reply, err := b.engine.SendAs(ctx, sess, protocol, content, attachments)
	if err != nil {
		if errors.Is(err, chat.ErrEmptyMessage) {
			return
		}
		b.logger.Error("Failed to process message",
			zap.Error(err),
			zap.Int64("user_id", message.From.ID),
			zap.String("thread_id", sess.ThreadID))
		if reply.Text != "" {
			b.sendErrorMessage(message.Chat.ID, reply.Text)
		} else {
			b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't process your message. Please try again.")
		}
		return
	}

	msg := tgbotapi.NewMessage(message.Chat.ID, formatReply(reply))
	msg.ReplyToMessageID = message.MessageID
	if _, err := b.out.Send(msg); err != nil {
		b.logger.Error("Failed to send reply",
			zap.Error(err),
			zap.Int64("chat_id", message.Chat.ID))
	}
}

// attachmentsOf describes the media carried by a message. Media bytes stay
// on Telegram; the attachment records the file id as its name.
func attachmentsOf(message *tgbotapi.Message) []models.Attachment {
	var out []models.Attachment
	if n := len(message.Photo); n > 0 {
		out = append(out, models.Attachment{
			Type:     models.ImageContent,
			MimeType: "image/jpeg",
			Name:     message.Photo[n-1].FileID,
		})
	}
	if d := message.Document; d != nil {
		out = append(out, models.Attachment{Type: models.FileContent, MimeType: d.MimeType, Name: d.FileName})
	}
	if v := message.Video; v != nil {
		out = append(out, models.Attachment{Type: models.VideoContent, MimeType: v.MimeType, Name: v.FileName})
	}
	if a := message.Audio; a != nil {
		out = append(out, models.Attachment{Type: models.AudioContent, MimeType: a.MimeType, Name: a.FileName})
	}
	if v := message.Voice; v != nil {
		out = append(out, models.Attachment{Type: models.AudioContent, MimeType: v.MimeType, Name: v.FileID})
	}
	return out
}
