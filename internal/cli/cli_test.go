package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chris/tally/internal/llm"
)

// isolate gives each test its own HOME and working directory and clears
// provider variables so the developer's environment never leaks in.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())
	for _, k := range []string{
		"OPENAI_API_KEY", "OPENAI_BASE_URL", "ANTHROPIC_API_KEY", "ANTHROPIC_AUTH_TOKEN",
		"OLLAMA_BASE_URL", "TALLY_MODEL", "TALLY_LEDGER_PATH", "TALLY_MAX_TOKENS",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	return home
}

func run(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(input))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// fakeOpenAI answers chat completions with a fixed reply and counts calls.
func fakeOpenAI(t *testing.T, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			w.Write([]byte(`{"error": {"message": "upstream exploded", "type": "server_error"}}`))
			return
		}
		w.Write([]byte(`{
			"id": "chatcmpl-1", "object": "chat.completion", "created": 1, "model": "gpt-3.5-turbo",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "Doing well."}}],
			"usage": {"prompt_tokens": 17, "completion_tokens": 13, "total_tokens": 30}
		}`))
	}))
	t.Cleanup(srv.Close)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_BASE_URL", srv.URL)
	return srv, &calls
}

func TestChat_ConfirmedTurn(t *testing.T) {
	isolate(t)
	_, calls := fakeOpenAI(t, http.StatusOK)

	out, err := run(t, "Hello\ny\nn\n", "--model", "gpt-3.5-turbo", "--plain")
	require.NoError(t, err)

	assert.EqualValues(t, 1, calls.Load())
	assert.Contains(t, out, "Estimated prompt: 17 tokens, $0.00003")
	assert.Contains(t, out, "AI: Doing well.")
	assert.Contains(t, out, "17 prompt + 13 completion = 30 tokens, cost $0.00006")
	assert.Contains(t, out, "Goodbye!")

	usage, err := run(t, "", "usage")
	require.NoError(t, err)
	assert.Contains(t, usage, "gpt-3.5-turbo")
	assert.Contains(t, usage, "completed")
	assert.Contains(t, usage, "$0.00006")
}

func TestChat_DeclineMakesNoCall(t *testing.T) {
	isolate(t)
	_, calls := fakeOpenAI(t, http.StatusOK)

	out, err := run(t, "Hello\nn\n", "--model", "gpt-3.5-turbo")
	require.NoError(t, err)
	assert.Zero(t, calls.Load())
	assert.NotContains(t, out, "Doing well.")

	usage, err := run(t, "", "usage", "--json")
	require.NoError(t, err)
	var report struct {
		Totals []struct {
			Model    string `json:"model"`
			Declined int    `json:"declined"`
		} `json:"totals"`
	}
	require.NoError(t, json.Unmarshal([]byte(usage), &report))
	require.Len(t, report.Totals, 1)
	assert.Equal(t, 1, report.Totals[0].Declined)
}

func TestChat_CompletionFailure(t *testing.T) {
	isolate(t)
	_, calls := fakeOpenAI(t, http.StatusInternalServerError)

	_, err := run(t, "Hello\ny\n", "--model", "gpt-3.5-turbo")
	require.ErrorIs(t, err, llm.ErrCompletionFailed)
	assert.EqualValues(t, 1, calls.Load(), "failures are not retried")
}

func TestChat_UnknownModel(t *testing.T) {
	isolate(t)
	fakeOpenAI(t, http.StatusOK)

	_, err := run(t, "", "--model", "gpt-17")
	require.ErrorIs(t, err, llm.ErrUnsupportedModel)
}

func TestChat_MissingKey(t *testing.T) {
	isolate(t)

	_, err := run(t, "Hello\n", "--model", "gpt-4")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
}

func TestChat_ModelFromEnv(t *testing.T) {
	isolate(t)
	fakeOpenAI(t, http.StatusOK)
	t.Setenv("TALLY_MODEL", "gpt-4")

	out, err := run(t, "q\n")
	require.NoError(t, err)
	assert.Contains(t, out, "Chatting with GPT-4.")
}

func TestChat_LedgerOff(t *testing.T) {
	home := isolate(t)
	fakeOpenAI(t, http.StatusOK)
	t.Setenv("TALLY_LEDGER_PATH", "off")

	_, err := run(t, "Hello\ny\nn\n", "--model", "gpt-3.5-turbo")
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(home, ".tally", "ledger.db"))

	out, err := run(t, "", "usage")
	require.NoError(t, err)
	assert.Contains(t, out, "ledger is off")
}

func TestModels(t *testing.T) {
	isolate(t)

	out, err := run(t, "", "models")
	require.NoError(t, err)
	assert.Contains(t, out, "gpt-3.5-turbo")
	assert.Contains(t, out, "claude-3-5-haiku-latest")

	out, err = run(t, "", "models", "--json")
	require.NoError(t, err)
	var profiles []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &profiles))
	assert.NotEmpty(t, profiles)
	assert.Equal(t, "gpt-3.5-turbo", profiles[0]["id"])
}

func TestConfigInitAndShow(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "tally.yaml")

	out, err := run(t, "", "config", "init", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote "+path)
	assert.FileExists(t, path)

	_, err = run(t, "", "config", "init", "--config", path)
	require.Error(t, err)

	_, err = run(t, "", "config", "init", "--force", "--config", path)
	require.NoError(t, err)

	t.Setenv("OPENAI_API_KEY", "sk-secret")
	out, err = run(t, "", "config", "show", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "model: gpt-3.5-turbo")
	assert.NotContains(t, out, "sk-secret")
}
