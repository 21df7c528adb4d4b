package bot

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap/zaptest"

	"github.com/xaenox/vaaniii/internal/assistant"
	"github.com/xaenox/vaaniii/internal/chat"
	"github.com/xaenox/vaaniii/internal/kv"
	"github.com/xaenox/vaaniii/internal/models"
	"github.com/xaenox/vaaniii/internal/session"
	"github.com/xaenox/vaaniii/internal/storage"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []tgbotapi.Chattable
}

func (s *recordingSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, c)
	return tgbotapi.Message{}, nil
}

func (s *recordingSender) lastText(t *testing.T) string {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sent) == 0 {
		t.Fatal("nothing sent")
	}
	msg, ok := s.sent[len(s.sent)-1].(tgbotapi.MessageConfig)
	if !ok {
		t.Fatalf("last sent is %T, want MessageConfig", s.sent[len(s.sent)-1])
	}
	return msg.Text
}

type echoProvider struct{}

func (echoProvider) Generate(ctx context.Context, req assistant.Request) (assistant.Response, error) {
	resp := assistant.Response{Text: "echo: " + req.Prompt}
	if req.Protocol.Search() {
		resp.Grounding = []models.GroundingChunk{
			{Web: &models.GroundingSource{URI: "https://go.dev/blog", Title: "The Go Blog"}},
		}
	}
	return resp, nil
}

func newTestBot(t *testing.T) (*Bot, *recordingSender, *storage.Service) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	records := storage.New(kv.NewBounded(0), logger)
	engine := chat.New(records, echoProvider{}, models.ContextMemory{Creator: "Tester"}, logger)
	out := &recordingSender{}
	return newBot(out, engine, records, logger), out, records
}

func textMessage(text string) *tgbotapi.Message {
	msg := &tgbotapi.Message{
		MessageID: 7,
		Text:      text,
		Chat:      &tgbotapi.Chat{ID: 100},
		From:      &tgbotapi.User{ID: 42, FirstName: "Ada", LastName: "L"},
	}
	if strings.HasPrefix(text, "/") {
		n := len(text)
		if i := strings.IndexByte(text, ' '); i != -1 {
			n = i
		}
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: n}}
	}
	return msg
}

func TestHandleMessage_PlainTextReplies(t *testing.T) {
	ctx := context.Background()
	b, out, records := newTestBot(t)

	b.handleMessage(ctx, textMessage("status report"))
	if got := out.lastText(t); got != "echo: status report" {
		t.Fatalf("reply = %q", got)
	}

	sess := b.sessions[42].sess
	if sess == nil || sess.User.ID != "tg_42" || sess.User.Name != "Ada L" {
		t.Fatalf("session = %+v", sess)
	}
	if got := records.GetHistory(ctx, sess.ThreadID); len(got) != 2 {
		t.Fatalf("history length = %d, want 2", len(got))
	}
}

func TestHandleMessage_RestoresStoredProfile(t *testing.T) {
	ctx := context.Background()
	b, _, records := newTestBot(t)
	b.handleMessage(ctx, textMessage("one"))

	logger := zaptest.NewLogger(t)
	engine := chat.New(records, echoProvider{}, models.ContextMemory{}, logger)
	restarted := newBot(&recordingSender{}, engine, records, logger)
	restarted.handleMessage(ctx, textMessage("two"))

	if xp := restarted.sessions[42].sess.User.XP; xp != 2*chat.DefaultXPPerMessage {
		t.Fatalf("xp = %d, want %d", xp, 2*chat.DefaultXPPerMessage)
	}
}

func TestHandleCommand_Threads(t *testing.T) {
	ctx := context.Background()
	b, out, _ := newTestBot(t)

	b.handleMessage(ctx, textMessage("/new Ops Room"))
	if got := out.lastText(t); !strings.Contains(got, `"Ops Room"`) {
		t.Fatalf("reply = %q", got)
	}
	sess := b.sessions[42].sess
	opsID := sess.ThreadID

	b.handleMessage(ctx, textMessage("/switch nope"))
	if got := out.lastText(t); !strings.Contains(got, "No thread") {
		t.Fatalf("reply = %q", got)
	}

	b.handleMessage(ctx, textMessage("/threads"))
	if got := out.lastText(t); !strings.Contains(got, opsID) || !strings.Contains(got, "active") {
		t.Fatalf("thread list = %q", got)
	}

	b.handleMessage(ctx, textMessage("/delete "+opsID))
	if got := out.lastText(t); got != "Thread deleted." {
		t.Fatalf("reply = %q", got)
	}
	if sess.ThreadID == opsID {
		t.Fatal("session still points at deleted thread")
	}
}

func TestHandleCommand_Offline(t *testing.T) {
	ctx := context.Background()
	b, out, _ := newTestBot(t)

	b.handleMessage(ctx, textMessage("/offline on"))
	if got := out.lastText(t); got != "Offline mode enabled." {
		t.Fatalf("reply = %q", got)
	}
	b.handleMessage(ctx, textMessage("hello"))
	if got := out.lastText(t); !strings.HasPrefix(got, "OFFLINE MODE") {
		t.Fatalf("reply = %q", got)
	}
	b.handleMessage(ctx, textMessage("/offline"))
	if got := out.lastText(t); got != "Offline mode disabled." {
		t.Fatalf("reply = %q", got)
	}
}

func TestHandleCommand_Export(t *testing.T) {
	ctx := context.Background()
	b, out, _ := newTestBot(t)
	b.handleMessage(ctx, textMessage("remember the launch codes"))
	b.handleMessage(ctx, textMessage("/export"))

	doc, ok := out.sent[len(out.sent)-1].(tgbotapi.DocumentConfig)
	if !ok {
		t.Fatalf("last sent is %T, want DocumentConfig", out.sent[len(out.sent)-1])
	}
	file, ok := doc.File.(tgbotapi.FileBytes)
	if !ok {
		t.Fatalf("document file is %T", doc.File)
	}
	var bundle models.ExportBundle
	if err := json.Unmarshal(file.Bytes, &bundle); err != nil {
		t.Fatalf("unmarshal export: %v", err)
	}
	if bundle.User == nil || bundle.User.ID != "tg_42" || len(bundle.Threads) != 1 {
		t.Fatalf("bundle = %+v", bundle)
	}
}

func TestEscapeMarkdown(t *testing.T) {
	if got := escapeMarkdown("a_b.c!"); got != `a\_b\.c\!` {
		t.Fatalf("escapeMarkdown = %q", got)
	}
}

func TestAttachmentsOf(t *testing.T) {
	msg := &tgbotapi.Message{
		Photo:    []tgbotapi.PhotoSize{{FileID: "small"}, {FileID: "large"}},
		Document: &tgbotapi.Document{FileName: "plan.pdf", MimeType: "application/pdf"},
	}
	got := attachmentsOf(msg)
	if len(got) != 2 || got[0].Name != "large" || got[1].Type != models.FileContent {
		t.Fatalf("attachments = %+v", got)
	}
}

func TestSessionFor_ConcurrentFirstContact(t *testing.T) {
	ctx := context.Background()
	b, _, records := newTestBot(t)

	users := []*tgbotapi.User{{ID: 1, FirstName: "A"}, {ID: 2, FirstName: "B"}}
	const perUser = 8
	got := make([][]*session.Session, len(users))
	for i := range got {
		got[i] = make([]*session.Session, perUser)
	}

	var wg sync.WaitGroup
	for i, u := range users {
		for j := 0; j < perUser; j++ {
			wg.Add(1)
			go func(i, j int, u *tgbotapi.User) {
				defer wg.Done()
				sess, err := b.sessionFor(ctx, u)
				if err != nil {
					t.Errorf("sessionFor(%d): %v", u.ID, err)
					return
				}
				got[i][j] = sess
			}(i, j, u)
		}
	}
	wg.Wait()

	for i, u := range users {
		for j := 1; j < perUser; j++ {
			if got[i][j] != got[i][0] {
				t.Fatalf("user %d got distinct sessions", u.ID)
			}
		}
		if threads := records.ListThreads(ctx, got[i][0].User.ID); len(threads) != 1 {
			t.Fatalf("user %d has %d threads, want 1", u.ID, len(threads))
		}
	}
}

func TestHandleCommand_Protocols(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		text string
		want []string
	}{
		{text: "/search go release notes", want: []string{"echo: go release notes", "Sources:", "1. The Go Blog - https://go.dev/blog"}},
		{text: "/fast ping", want: []string{"echo: ping"}},
		{text: "/chart", want: []string{"Usage: /chart <text>"}},
		{text: "/chart plot it", want: []string{"UNABLE TO PARSE DATA"}},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			b, out, _ := newTestBot(t)
			b.handleMessage(ctx, textMessage(tt.text))
			got := out.lastText(t)
			for _, want := range tt.want {
				if !strings.Contains(got, want) {
					t.Fatalf("reply = %q, want %q", got, want)
				}
			}
		})
	}
}

func TestFormatReply(t *testing.T) {
	tests := []struct {
		name string
		msg  models.Message
		want []string
		not  []string
	}{
		{
			name: "plain",
			msg:  models.Message{Text: "hello"},
			want: []string{"hello"},
			not:  []string{"Sources:"},
		},
		{
			name: "chart",
			msg: models.Message{
				Text: "ANALYSIS_COMPLETE :: DATA_VISUALIZED",
				ChartData: &models.ChartData{
					Type:     "bar",
					Title:    "Load",
					Labels:   []string{"Mon", "Tue"},
					Datasets: []models.ChartDataset{{Label: "CPU", Data: []float64{3, 5.5}}},
				},
			},
			want: []string{"[BAR chart]", "Load", "CPU", "Mon: 3", "Tue: 5.5"},
		},
		{
			name: "quiz",
			msg: models.Message{
				Text:     "Here.\n```json\n{\"question\":\"q\"}\n```",
				QuizData: &models.QuizData{Question: "Zero value of a map?", Options: []string{"nil", "{}"}, Topic: "go", Difficulty: "EASY"},
			},
			want: []string{"Here.", "Zero value of a map?", "A) nil", "B) {}", "QUIZ // go EASY"},
			not:  []string{"```json"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatReply(tt.msg)
			for _, want := range tt.want {
				if !strings.Contains(got, want) {
					t.Fatalf("reply = %q, want %q", got, want)
				}
			}
			for _, not := range tt.not {
				if strings.Contains(got, not) {
					t.Fatalf("reply = %q, must not contain %q", got, not)
				}
			}
		})
	}
}
