package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gyaneshwarpardhi/phylodag/internal/sample"
)

const testModel = `
version: v1
run:
  chains: 2
  generations: 30
  sample_every: 10
model:
  sinks: [obs]
  nodes:
    - name: rate
      distribution: gamma
      params: {shape: 2, rate: 1}
    - name: obs
      distribution: exponential
      params: {rate: rate}
      observed: 1.5
moves:
  - {type: scale, node: rate, lambda: 1}
`

func writeModel(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.yaml")
	if err := os.WriteFile(path, []byte(testModel), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd(&errOut)
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRunCommand_WritesJSONLines(t *testing.T) {
	path := writeModel(t)
	out, err := execute(t, "run", "--config", path, "--generations", "20", "--seed", "3")
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	perChain := map[int]int{}
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		var s sample.Sample
		if err := json.Unmarshal(sc.Bytes(), &s); err != nil {
			t.Fatalf("bad line %q: %v", sc.Text(), err)
		}
		if _, ok := s.Values["rate"]; !ok {
			t.Errorf("sample without rate: %+v", s)
		}
		perChain[s.Chain]++
	}
	// Generation 0, 10 and 20 for each of the two configured chains.
	if perChain[0] != 3 || perChain[1] != 3 {
		t.Errorf("unexpected sample counts %v", perChain)
	}
}

func TestInspectCommand(t *testing.T) {
	path := writeModel(t)

	out, err := execute(t, "inspect", "--config", path)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if !strings.HasPrefix(out, "Model with 4 vertices") {
		t.Errorf("unexpected summary:\n%s", out)
	}

	out, err = execute(t, "inspect", "--config", path, "--format", "dot")
	if err != nil {
		t.Fatalf("inspect dot: %v", err)
	}
	if !strings.Contains(out, "digraph") {
		t.Errorf("not DOT:\n%s", out)
	}

	if _, err := execute(t, "inspect", "--config", path, "--format", "yaml"); err == nil {
		t.Error("expected an error for an unknown format")
	}
}

func TestRunCommand_MissingConfig(t *testing.T) {
	if _, err := execute(t, "run", "--config", filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

func TestNewLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger("warn", "json", &buf)
	log.Info("hidden")
	log.Warn("shown", "k", 1)
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info must be filtered at warn level")
	}
	if !strings.Contains(out, `"msg":"shown"`) {
		t.Errorf("expected a JSON record, got %q", out)
	}

	buf.Reset()
	newLogger("bogus", "text", &buf).Debug("quiet")
	if buf.Len() != 0 {
		t.Error("unknown level should fall back to info")
	}
	if !newLogger("debug", "text", &buf).Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug level not enabled")
	}
}
