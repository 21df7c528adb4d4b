package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap/zaptest"

	"github.com/xaenox/vaaniii/internal/models"
)

type scriptedProvider struct {
	errs  []error
	calls int
}

func (p *scriptedProvider) Generate(ctx context.Context, req Request) (Response, error) {
	p.calls++
	if len(p.errs) > 0 {
		err := p.errs[0]
		p.errs = p.errs[1:]
		if err != nil {
			return Response{}, err
		}
	}
	return Response{Text: "ok"}, nil
}

func TestKindForStatus(t *testing.T) {
	tests := []struct {
		code int
		want Kind
	}{
		{http.StatusTooManyRequests, KindQuota},
		{http.StatusUnauthorized, KindPermission},
		{http.StatusForbidden, KindPermission},
		{http.StatusNotFound, KindNotFound},
		{http.StatusServiceUnavailable, KindUnavailable},
		{http.StatusBadRequest, KindUnknown},
	}
	for _, tt := range tests {
		if got := kindForStatus(tt.code); got != tt.want {
			t.Errorf("kindForStatus(%d) = %s, want %s", tt.code, got, tt.want)
		}
	}
}

func TestClassify(t *testing.T) {
	wrapped := errors.Join(errors.New("outer"), &Error{Kind: KindQuota, Provider: "x", Err: errors.New("inner")})
	if got := Classify(wrapped); got != KindQuota {
		t.Fatalf("Classify(wrapped) = %s", got)
	}
	if got := Classify(context.DeadlineExceeded); got != KindUnavailable {
		t.Fatalf("Classify(deadline) = %s", got)
	}
	if got := Classify(errors.New("boom")); got != KindUnknown {
		t.Fatalf("Classify(plain) = %s", got)
	}
	if got := UserMessage(errors.New("boom")); got != "boom" {
		t.Fatalf("UserMessage(plain) = %q", got)
	}
	if got := UserMessage(&Error{Kind: KindQuota}); !strings.Contains(got, "Quota") {
		t.Fatalf("UserMessage(quota) = %q", got)
	}
}

func TestRetrying(t *testing.T) {
	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	t.Run("retries once on permission", func(t *testing.T) {
		next := &scriptedProvider{errs: []error{&Error{Kind: KindPermission}}}
		reauths := 0
		r := NewRetrying(next, func(context.Context) error { reauths++; return nil }, logger)
		resp, err := r.Generate(ctx, Request{Prompt: "hi"})
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if resp.Text != "ok" || next.calls != 2 || reauths != 1 {
			t.Fatalf("resp=%q calls=%d reauths=%d", resp.Text, next.calls, reauths)
		}
	})

	t.Run("gives up after second failure", func(t *testing.T) {
		next := &scriptedProvider{errs: []error{&Error{Kind: KindNotFound}, &Error{Kind: KindNotFound}}}
		r := NewRetrying(next, nil, logger)
		if _, err := r.Generate(ctx, Request{}); Classify(err) != KindNotFound {
			t.Fatalf("err = %v", err)
		}
		if next.calls != 2 {
			t.Fatalf("calls = %d, want 2", next.calls)
		}
	})

	t.Run("no retry on quota", func(t *testing.T) {
		next := &scriptedProvider{errs: []error{&Error{Kind: KindQuota}}}
		r := NewRetrying(next, nil, logger)
		if _, err := r.Generate(ctx, Request{}); Classify(err) != KindQuota {
			t.Fatalf("err = %v", err)
		}
		if next.calls != 1 {
			t.Fatalf("calls = %d, want 1", next.calls)
		}
	})

	t.Run("failed reauthorize keeps original error", func(t *testing.T) {
		next := &scriptedProvider{errs: []error{&Error{Kind: KindPermission}}}
		r := NewRetrying(next, func(context.Context) error { return errors.New("no creds") }, logger)
		if _, err := r.Generate(ctx, Request{}); Classify(err) != KindPermission {
			t.Fatalf("err = %v", err)
		}
		if next.calls != 1 {
			t.Fatalf("calls = %d, want 1", next.calls)
		}
	})
}

func TestOffline(t *testing.T) {
	o := NewOffline(2)
	got := o.Topics("Plan the #Launch meeting and book a flight")
	if len(got) != 2 || got[0] != "launch" || got[1] != "schedule" {
		t.Fatalf("Topics = %v", got)
	}

	resp, err := o.Generate(context.Background(), Request{Prompt: "hello"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.HasPrefix(resp.Text, "OFFLINE MODE") || strings.Contains(resp.Text, "Detected topics") {
		t.Fatalf("reply = %q", resp.Text)
	}
}

func TestOpenAIMessages(t *testing.T) {
	req := Request{
		System: "be brief",
		History: []models.Message{
			{Role: models.RoleUser, Text: "q1"},
			{Role: models.RoleSystem, Text: "SYSTEM_ALERT: x"},
			{Role: models.RoleModel, Text: "a1"},
		},
		Prompt: "q2",
	}
	msgs := openAIMessages(req)
	roles := make([]string, len(msgs))
	for i, m := range msgs {
		roles[i] = m.Role
	}
	want := []string{
		openai.ChatMessageRoleSystem,
		openai.ChatMessageRoleUser,
		openai.ChatMessageRoleAssistant,
		openai.ChatMessageRoleUser,
	}
	if strings.Join(roles, ",") != strings.Join(want, ",") {
		t.Fatalf("roles = %v, want %v", roles, want)
	}
	if msgs[3].Content != "q2" {
		t.Fatalf("last content = %q", msgs[3].Content)
	}
}

func TestOpenAI_Generate(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantText string
		wantKind Kind
	}{
		{
			name:     "success",
			status:   http.StatusOK,
			body:     `{"id":"c1","object":"chat.completion","model":"m","choices":[{"index":0,"message":{"role":"assistant","content":" hello "},"finish_reason":"stop"}],"usage":{"prompt_tokens":12,"completion_tokens":3,"total_tokens":15}}`,
			wantText: "hello",
		},
		{
			name:     "quota",
			status:   http.StatusTooManyRequests,
			body:     `{"error":{"message":"slow down","type":"insufficient_quota","code":"insufficient_quota"}}`,
			wantKind: KindQuota,
		},
		{
			name:     "bad key",
			status:   http.StatusUnauthorized,
			body:     `{"error":{"message":"invalid key","type":"invalid_request_error"}}`,
			wantKind: KindPermission,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got openai.ChatCompletionRequest
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				b, _ := io.ReadAll(r.Body)
				_ = json.Unmarshal(b, &got)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			p := NewOpenAI(OpenAIConfig{
				APIKey:    "test",
				BaseURL:   srv.URL + "/v1",
				Model:     "gpt-test",
				MaxTokens: 64,
			}, zaptest.NewLogger(t))

			resp, err := p.Generate(context.Background(), Request{System: "sys", Prompt: "hi"})
			if tt.wantKind != "" {
				if Classify(err) != tt.wantKind {
					t.Fatalf("err = %v, want kind %s", err, tt.wantKind)
				}
				return
			}
			if err != nil {
				t.Fatalf("Generate: %v", err)
			}
			if resp.Text != tt.wantText {
				t.Fatalf("text = %q", resp.Text)
			}
			if resp.Usage == nil || resp.Usage.Input != 12 || resp.Usage.Output != 3 {
				t.Fatalf("usage = %+v", resp.Usage)
			}
			if got.Model != "gpt-test" || len(got.Messages) != 2 {
				t.Fatalf("request = %+v", got)
			}
		})
	}
}

func TestGeminiContents(t *testing.T) {
	req := Request{
		History: []models.Message{
			{Role: models.RoleUser, Text: "q1"},
			{Role: models.RoleModel, Text: "a1"},
			{Role: models.RoleSystem, Text: "ignored"},
		},
		Prompt: "q2",
	}
	contents := geminiContents(req)
	if len(contents) != 3 {
		t.Fatalf("len = %d, want 3", len(contents))
	}
	if contents[1].Role != "model" || contents[2].Parts[0].Text != "q2" {
		t.Fatalf("contents = %+v %+v", contents[1], contents[2])
	}
}
