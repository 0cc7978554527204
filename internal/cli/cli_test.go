package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeRequest(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "request.json")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("failed to write request: %v", err)
	}
	return path
}

func TestValidate(t *testing.T) {
	path := writeRequest(t, `{
		"destinationAddress": "a@example.org",
		"subject": "Export",
		"text": "see attachment",
		"attachment": {"format": "csv", "filename": "export", "data": [{"a": 1}]}
	}`)

	out, err := run(t, "validate", path)
	if err != nil {
		t.Fatalf("unexpected error: %v (output %q)", err, out)
	}
	for _, want := range []string{"single a@example.org", "plain", "export.csv", "valid"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q does not contain %q", out, want)
		}
	}
}

func TestValidate_Rejects(t *testing.T) {
	path := writeRequest(t, `{"subject":"s","text":"t"}`)

	_, err := run(t, "validate", path)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "Missing parameter destinationAddress") {
		t.Errorf("error: got %q", err.Error())
	}
}

func TestSend_DryRun(t *testing.T) {
	t.Setenv("GO_ENV", "production")
	t.Setenv("PROVIDER", "")
	t.Setenv("SES_REGION", "")
	t.Setenv("STATE_MACHINE_ARN", "")

	path := writeRequest(t, `{"destinationAddress":"a@example.org","subject":"s","text":"t"}`)

	out, err := run(t, "send", "--dry-run", path)
	if err != nil {
		t.Fatalf("unexpected error: %v (output %q)", err, out)
	}
}

func TestCancel_WithoutStateMachine(t *testing.T) {
	t.Setenv("GO_ENV", "production")
	t.Setenv("PROVIDER", "stdout")
	t.Setenv("STATE_MACHINE_ARN", "")

	out, err := run(t, "cancel", "arn:aws:states:eu-central-1:123:execution:email:1")
	if err == nil {
		t.Fatal("expected error without a state machine")
	}
	if !strings.Contains(out, "Could not stop step function execution") {
		t.Errorf("output: got %q", out)
	}
}
