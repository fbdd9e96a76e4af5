package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/nerdson/internal/domain"
	"github.com/soyeahso/nerdson/internal/hooks"
	"github.com/soyeahso/nerdson/internal/logging"
	"github.com/soyeahso/nerdson/internal/policy"
	"github.com/soyeahso/nerdson/internal/routing"
	"github.com/soyeahso/nerdson/internal/store"
)

func testHome(t *testing.T, configYAML string) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("NERDSON_HOME", home)
	for _, k := range []string{"OPENAI_API_KEY", "TWILIO_ACCOUNT_SID", "TWILIO_AUTH_TOKEN", "NERDSON_PORT", "NERDSON_OPERATOR_TOKEN"} {
		t.Setenv(k, "")
	}
	if configYAML != "" {
		require.NoError(t, os.WriteFile(filepath.Join(home, "config.yaml"), []byte(configYAML), 0o600))
	}
	return home
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--log-level", "silent"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	testHome(t, "")
	out, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "nerdson dev")
}

func TestConfigPathCmd(t *testing.T) {
	home := testHome(t, "")
	out, err := run(t, "", "config", "path")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "config.yaml")+"\n", out)

	out, err = run(t, "", "--config", "/etc/nerdson.yaml", "config", "path")
	require.NoError(t, err)
	assert.Equal(t, "/etc/nerdson.yaml\n", out)
}

func TestConfigGetCmd(t *testing.T) {
	testHome(t, "gateway:\n  port: 4000\npolicy:\n  humanHours:\n    days: [mon, tue]\n")

	out, err := run(t, "", "config", "get", "gateway.port")
	require.NoError(t, err)
	assert.Equal(t, "4000\n", out)

	out, err = run(t, "", "config", "get", "policy.humanHours.days")
	require.NoError(t, err)
	assert.Equal(t, "- mon\n- tue\n", out)

	_, err = run(t, "", "config", "get", "gateway.nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestConfigShowMasksSecrets(t *testing.T) {
	testHome(t, "openai:\n  apiKey: sk-1234567890\nwhatsapp:\n  authToken: twilio-secret\n")

	out, err := run(t, "", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "sk-1********")
	assert.NotContains(t, out, "sk-1234567890")
	assert.NotContains(t, out, "twilio-secret")
	assert.Contains(t, out, "America/Sao_Paulo")
}

func TestConfigValidateCmd(t *testing.T) {
	testHome(t, "")
	out, err := run(t, "", "config", "validate")
	require.NoError(t, err)
	assert.Equal(t, "config ok\n", out)

	testHome(t, "gateway:\n  port: 70000\n")
	out, err = run(t, "", "config", "validate")
	require.Error(t, err)
	assert.Contains(t, out, "gateway.port")
}

func TestStatusCmd(t *testing.T) {
	testHome(t, "operator:\n  token: op\n")
	out, err := run(t, "", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "key=missing")
	assert.Contains(t, out, "credentials=missing")
	assert.Contains(t, out, "feed=enabled")
	assert.Contains(t, out, "Archive:  disabled")
	assert.Contains(t, out, "(embedded default)")
}

func TestArchiveShowCmd(t *testing.T) {
	home := testHome(t, "archive:\n  enabled: true\n")

	_, err := run(t, "", "archive", "show")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no archive")

	db, err := store.Open(filepath.Join(home, "data", "archive.db"), logging.New(nil, "silent"))
	require.NoError(t, err)
	a := store.NewArchive(db)
	ctx := context.Background()
	require.NoError(t, a.Record(ctx, hooks.Payload{ID: "1", Event: hooks.EventMessageReceived, At: time.Now(),
		Data: map[string]any{"user": "whatsapp:+5511999990000", "body": "qual o prazo?"}}))
	require.NoError(t, a.Record(ctx, hooks.Payload{ID: "2", Event: hooks.EventHandoffRequested, At: time.Now(),
		Data: map[string]any{"user": "whatsapp:+5511888880000"}}))
	require.NoError(t, db.Close())

	out, err := run(t, "", "archive", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "qual o prazo?")
	assert.Contains(t, out, hooks.EventHandoffRequested)
	assert.Less(t, strings.Index(out, hooks.EventHandoffRequested), strings.Index(out, hooks.EventMessageReceived), "newest first")

	out, err = run(t, "", "archive", "show", "--user", "whatsapp:+5511888880000")
	require.NoError(t, err)
	assert.NotContains(t, out, "qual o prazo?")
	assert.Contains(t, out, hooks.EventHandoffRequested)
}

type recordingHandler struct {
	msgs []domain.InboundMessage
}

func (h *recordingHandler) Handle(_ context.Context, msg domain.InboundMessage) routing.Result {
	h.msgs = append(h.msgs, msg)
	if msg.Body == "shh" {
		return routing.Result{Route: policy.RouteSilence}
	}
	return routing.Result{Route: policy.RouteReply}
}

func TestRunChat(t *testing.T) {
	h := &recordingHandler{}
	var out bytes.Buffer
	in := strings.NewReader("oi\n/audio https://media.example/1\nshh\n")

	require.NoError(t, runChat(context.Background(), h, "whatsapp:+5511999990000", in, &out))

	require.Len(t, h.msgs, 3)
	assert.Equal(t, "oi", h.msgs[0].Body)
	assert.Equal(t, "whatsapp:+5511999990000", h.msgs[0].From)
	assert.False(t, h.msgs[0].ReceivedAt.IsZero())

	att, ok := h.msgs[1].Audio()
	require.True(t, ok)
	assert.Equal(t, "https://media.example/1", att.URL)
	assert.Empty(t, h.msgs[1].Body)

	assert.Contains(t, out.String(), "(silence)")
	assert.Equal(t, 4, strings.Count(out.String(), "you> "))
}

func TestConsoleSender(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, consoleSender{w: &out}.Send(context.Background(), domain.OutboundMessage{To: "u", Body: "au au"}))
	assert.Equal(t, "bot> au au\n", out.String())
}

func TestChatCmdWithoutAPIKey(t *testing.T) {
	testHome(t, "")

	out, err := run(t, "oi\nqual o prazo de entrega?\n", "chat", "--no-pauses")
	require.NoError(t, err)
	assert.Contains(t, out, "bot> "+policy.DefaultGreetingFirst)
	assert.Contains(t, out, "bot> "+routing.MissingKeyText)
}
