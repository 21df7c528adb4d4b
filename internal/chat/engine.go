// Package chat runs one conversational turn end to end: scrubbing, history,
// thread previews, rank progression and the assistant call.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xaenox/vaaniii/internal/assistant"
	"github.com/xaenox/vaaniii/internal/models"
	"github.com/xaenox/vaaniii/internal/scrub"
	"github.com/xaenox/vaaniii/internal/session"
	"github.com/xaenox/vaaniii/internal/storage"
)

const (
	DefaultXPPerMessage = 10

	userPreviewLen  = 30
	modelPreviewLen = 50
	attachmentLabel = "Attachment sent"
	alertPrefix     = "SYSTEM_ALERT: "
	noResponse      = "NO_RESPONSE"

	chartContextLen = 5
	chartDone       = "ANALYSIS_COMPLETE :: DATA_VISUALIZED"
	chartFailed     = "ERROR: UNABLE TO PARSE DATA FOR VISUALIZATION. PLEASE PROVIDE STRUCTURED DATA."
)

var (
	ErrEmptyMessage  = errors.New("message has no text or attachments")
	ErrUnknownThread = errors.New("thread not found")
)

type Engine struct {
	records      *storage.Service
	provider     assistant.Provider
	offline      assistant.Provider
	memory       models.ContextMemory
	language     string
	xpPerMessage int
	logger       *zap.Logger
}

type Option func(*Engine)

// WithOffline sets the provider used for users in offline mode.
func WithOffline(p assistant.Provider) Option {
	return func(e *Engine) {
		e.offline = p
	}
}

func WithLanguage(language string) Option {
	return func(e *Engine) {
		e.language = language
	}
}

func WithXPPerMessage(n int) Option {
	return func(e *Engine) {
		e.xpPerMessage = n
	}
}

func New(records *storage.Service, provider assistant.Provider, memory models.ContextMemory, logger *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		records:      records,
		provider:     provider,
		offline:      assistant.NewOffline(0),
		memory:       memory,
		xpPerMessage: DefaultXPPerMessage,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Open persists user as the manager's current user and binds a session to
// the user's most recent thread.
func (e *Engine) Open(ctx context.Context, manager *session.Manager, user *models.User) (*session.Session, error) {
	if err := manager.Save(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to save user: %w", err)
	}
	thread, err := e.records.EnsureThread(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure thread: %w", err)
	}
	e.logger.Info("Session opened",
		zap.String("user_id", user.ID),
		zap.String("thread_id", thread.ID))
	return session.New(user, thread.ID, e.memory, manager), nil
}

// Send records the user's text in the active thread and appends the
// assistant's reply. On provider failure a system alert is recorded instead
// and returned together with the error.
func (e *Engine) Send(ctx context.Context, sess *session.Session, text string, attachments []models.Attachment) (models.Message, error) {
	return e.SendAs(ctx, sess, assistant.ProtocolStandard, text, attachments)
}

// SendAs is Send under the given protocol. DATA_VIZ turns answer with a
// chart built from the request and the recent conversation.
func (e *Engine) SendAs(ctx context.Context, sess *session.Session, protocol assistant.Protocol, text string, attachments []models.Attachment) (models.Message, error) {
	sess.Lock()
	defer sess.Unlock()

	clean := scrub.Text(text)
	if strings.TrimSpace(clean) == "" && len(attachments) == 0 {
		return models.Message{}, ErrEmptyMessage
	}

	userMsg := models.NewMessage(models.RoleUser, clean, e.records.Now())
	userMsg.Attachments = attachments

	if sess.User.AwardXP(e.xpPerMessage) {
		e.logger.Info("Rank changed",
			zap.String("user_id", sess.User.ID),
			zap.String("rank", string(sess.User.Rank)))
	}
	if err := sess.Persist(ctx); err != nil {
		e.logger.Error("Failed to save user", zap.Error(err), zap.String("user_id", sess.User.ID))
	}

	prior := e.records.GetHistory(ctx, sess.ThreadID)
	history := append(prior[:len(prior):len(prior)], userMsg)
	e.saveHistory(ctx, sess, history)
	e.setPreview(ctx, sess, preview(clean, userPreviewLen))

	req := assistant.Request{
		System:   session.SystemInstruction(sess.Memory, "", e.language) + protocol.Instruction(),
		History:  prior,
		Prompt:   clean,
		Protocol: protocol,
	}
	quiz := protocol != assistant.ProtocolDataViz && assistant.IsQuizRequest(clean)
	switch {
	case protocol == assistant.ProtocolDataViz:
		req.System = protocol.Instruction()
		req.History = nil
		req.Prompt = assistant.ChartPrompt(clean, recentContext(history, chartContextLen))
	case quiz:
		req.System += assistant.QuizInstruction
	}

	resp, err := e.providerFor(sess.User).Generate(ctx, req)
	if err != nil {
		e.logger.Error("Failed to generate reply",
			zap.Error(err),
			zap.String("kind", string(assistant.Classify(err))),
			zap.String("thread_id", sess.ThreadID))
		alert := models.NewMessage(models.RoleSystem, alertPrefix+assistant.UserMessage(err), e.records.Now())
		e.saveHistory(ctx, sess, append(history, alert))
		return alert, err
	}

	reply := models.NewMessage(models.RoleModel, resp.Text, e.records.Now())
	reply.TokenUsage = resp.Usage
	reply.GroundingChunks = resp.Grounding
	switch {
	case protocol == assistant.ProtocolDataViz && !sess.User.OfflineMode:
		chart, err := assistant.ParseChart(resp.Text)
		if err != nil {
			e.logger.Warn("Failed to parse chart", zap.Error(err), zap.String("thread_id", sess.ThreadID))
			reply.Text = chartFailed
		} else {
			reply.Text = chartDone
			reply.ChartData = chart
		}
	case quiz:
		reply.QuizData = assistant.ExtractQuiz(resp.Text)
	}
	if strings.TrimSpace(reply.Text) == "" {
		reply.Text = noResponse
	}
	e.saveHistory(ctx, sess, append(history, reply))
	e.setPreview(ctx, sess, preview(reply.Text, modelPreviewLen))
	return reply, nil
}

// recentContext renders the last n messages as "ROLE: text" lines.
func recentContext(history []models.Message, n int) string {
	if len(history) > n {
		history = history[len(history)-n:]
	}
	lines := make([]string, 0, len(history))
	for _, m := range history {
		lines = append(lines, strings.ToUpper(string(m.Role))+": "+m.Text)
	}
	return strings.Join(lines, "\n")
}

func (e *Engine) providerFor(user *models.User) assistant.Provider {
	if user.OfflineMode || e.provider == nil {
		return e.offline
	}
	return e.provider
}

func (e *Engine) saveHistory(ctx context.Context, sess *session.Session, history []models.Message) {
	if err := e.records.SaveHistory(ctx, sess.ThreadID, history); err != nil {
		e.logger.Error("Failed to save history",
			zap.Error(err),
			zap.String("thread_id", sess.ThreadID))
	}
}

func (e *Engine) setPreview(ctx context.Context, sess *session.Session, p string) {
	if err := e.records.UpdateThread(ctx, sess.User.ID, sess.ThreadID, storage.ThreadPatch{Preview: &p}); err != nil {
		e.logger.Error("Failed to update thread preview",
			zap.Error(err),
			zap.String("thread_id", sess.ThreadID))
	}
}

// preview cuts text to n runes and marks the cut. Empty text means the
// message carried only attachments.
func preview(text string, n int) string {
	if text == "" {
		return attachmentLabel
	}
	r := []rune(text)
	if len(r) > n {
		r = r[:n]
	}
	return string(r) + "..."
}

func (e *Engine) Threads(ctx context.Context, sess *session.Session) []models.Thread {
	sess.Lock()
	defer sess.Unlock()
	return e.records.ListThreads(ctx, sess.User.ID)
}

func (e *Engine) History(ctx context.Context, sess *session.Session) []models.Message {
	sess.Lock()
	defer sess.Unlock()
	return e.records.GetHistory(ctx, sess.ThreadID)
}

// NewThread creates a thread and makes it active.
func (e *Engine) NewThread(ctx context.Context, sess *session.Session, title string) (models.Thread, error) {
	sess.Lock()
	defer sess.Unlock()

	t, err := e.records.CreateThread(ctx, sess.User.ID, title)
	if err != nil {
		return models.Thread{}, err
	}
	sess.ThreadID = t.ID
	return t, nil
}

func (e *Engine) SwitchThread(ctx context.Context, sess *session.Session, threadID string) (models.Thread, error) {
	sess.Lock()
	defer sess.Unlock()

	threads := models.ThreadList(e.records.ListThreads(ctx, sess.User.ID))
	i := threads.Index(threadID)
	if i == -1 {
		return models.Thread{}, fmt.Errorf("%w: %s", ErrUnknownThread, threadID)
	}
	sess.ThreadID = threadID
	return threads[i], nil
}

// DeleteThread removes a thread and its history. Deleting the active thread
// moves the session to the most recent remaining one, creating a fresh
// thread when none is left.
func (e *Engine) DeleteThread(ctx context.Context, sess *session.Session, threadID string) error {
	sess.Lock()
	defer sess.Unlock()

	threads := models.ThreadList(e.records.ListThreads(ctx, sess.User.ID))
	if threads.Index(threadID) == -1 {
		return fmt.Errorf("%w: %s", ErrUnknownThread, threadID)
	}
	if err := e.records.DeleteThread(ctx, sess.User.ID, threadID); err != nil {
		return err
	}
	if threadID != sess.ThreadID {
		return nil
	}

	t, err := e.records.EnsureThread(ctx, sess.User.ID)
	if err != nil {
		return fmt.Errorf("failed to ensure thread: %w", err)
	}
	sess.ThreadID = t.ID
	return nil
}

// ForgetThread clears the active thread's history and resets its preview.
func (e *Engine) ForgetThread(ctx context.Context, sess *session.Session) error {
	sess.Lock()
	defer sess.Unlock()

	if err := e.records.ClearHistory(ctx, sess.ThreadID); err != nil {
		return err
	}
	p := models.InitialPreview
	return e.records.UpdateThread(ctx, sess.User.ID, sess.ThreadID, storage.ThreadPatch{Preview: &p})
}

// SetOffline toggles offline mode for the session's user.
func (e *Engine) SetOffline(ctx context.Context, sess *session.Session, offline bool) error {
	sess.Lock()
	defer sess.Unlock()

	sess.User.OfflineMode = offline
	return sess.Persist(ctx)
}

func (e *Engine) Export(ctx context.Context, sess *session.Session) ([]byte, error) {
	sess.Lock()
	defer sess.Unlock()
	return e.records.Export(ctx, sess.User)
}
