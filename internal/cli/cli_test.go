package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hupe1980/reviewmesh/core"
	"github.com/hupe1980/reviewmesh/internal/testutil"
	"github.com/hupe1980/reviewmesh/preference"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

var passwordDiff = testutil.NewDiffBuilder().
	File("app/config.py").Hunk(1, 1).
	Context("import os", "").
	Add(`password = "abc123"`).
	Build()

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

// writeConfig writes a config that keeps reviews in a sqlite file under dir.
func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "reviewmesh.yaml")
	content := fmt.Sprintf(`store:
  driver: sqlite
  dsn: %s
logging:
  level: error
`, filepath.Join(dir, "reviews.db"))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRootCommandHasSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range NewRootCmd().Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"review", "worker", "preferences", "reviews", "feedback"} {
		assert.True(t, names[want], "missing subcommand %q", want)
	}
}

func TestReviewCommand_JSON(t *testing.T) {
	out, _, err := execute(t, passwordDiff, "review", "--format", "json", "-")
	require.NoError(t, err)

	var v reviewView
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, "completed", v.Status)
	assert.Equal(t, "stdin", v.Metadata["source"])
	assert.Len(t, v.Traces, 4)

	var secrets []commentView
	for _, c := range v.Comments {
		if c.Category == "secrets" {
			secrets = append(secrets, c)
		}
	}
	require.Len(t, secrets, 1)
	assert.Equal(t, "app/config.py", secrets[0].FilePath)
	assert.Equal(t, 3, secrets[0].LineNumber)
	assert.Equal(t, []string{"security_reviewer"}, secrets[0].Contributors)
}

func TestReviewCommand_YAMLFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "change.patch")
	require.NoError(t, os.WriteFile(path, []byte(passwordDiff), 0o600))

	out, _, err := execute(t, "", "review", "-f", "yaml", path)
	require.NoError(t, err)

	var v map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &v))
	assert.Equal(t, "completed", v["status"])
	assert.Equal(t, path, v["metadata"].(map[string]any)["source"])
}

func TestReviewCommand_Text(t *testing.T) {
	out, _, err := execute(t, passwordDiff, "review")
	require.NoError(t, err)
	assert.Contains(t, out, ": completed (")
	assert.Contains(t, out, "[high] app/config.py:3 secrets:")
	assert.Contains(t, out, "trace security_reviewer:")
}

func TestReviewCommand_Errors(t *testing.T) {
	_, _, err := execute(t, passwordDiff, "review", "--format", "xml")
	assert.ErrorContains(t, err, `unknown format "xml"`)

	_, _, err = execute(t, "", "review", filepath.Join(t.TempDir(), "missing.patch"))
	assert.ErrorContains(t, err, "read diff")

	_, _, err = execute(t, passwordDiff, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "review")
	assert.ErrorContains(t, err, "read config")
}

func TestReviewsListAndShow(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir)

	out, _, err := execute(t, passwordDiff, "--config", cfg, "review", "-f", "json")
	require.NoError(t, err)
	var reviewed reviewView
	require.NoError(t, json.Unmarshal([]byte(out), &reviewed))

	out, _, err = execute(t, "", "--config", cfg, "reviews", "list", "-f", "json")
	require.NoError(t, err)
	var listed []reviewView
	require.NoError(t, json.Unmarshal([]byte(out), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, reviewed.ID, listed[0].ID)
	assert.Equal(t, "completed", listed[0].Status)
	assert.Empty(t, listed[0].Comments)

	out, _, err = execute(t, "", "--config", cfg, "reviews", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, reviewed.ID)

	out, _, err = execute(t, "", "--config", cfg, "reviews", "show", reviewed.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "review "+reviewed.ID+": completed")
	assert.Contains(t, out, "app/config.py:3")

	_, _, err = execute(t, "", "--config", cfg, "reviews", "show", "nope")
	assert.ErrorContains(t, err, "review not found")
}

func TestReviewsList_Empty(t *testing.T) {
	out, _, err := execute(t, "", "reviews", "list")
	require.NoError(t, err)
	assert.Equal(t, "No reviews found.\n", out)
}

func TestWorkerCommand(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.patch")
	second := filepath.Join(dir, "second.patch")
	require.NoError(t, os.WriteFile(first, []byte(passwordDiff), 0o600))
	require.NoError(t, os.WriteFile(second, []byte(testutil.NewDiffBuilder().
		File("README.md").Hunk(1, 1).Add("Hello").Build()), 0o600))
	missing := filepath.Join(dir, "missing.patch")

	stdin := strings.Join([]string{first, "", missing, second}, "\n")
	out, errOut, err := execute(t, stdin, "--config", writeConfig(t, dir), "worker")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "\tcompleted\t"+first+"\t")
	assert.Contains(t, lines[1], "\tcompleted\t"+second+"\t")
	assert.Contains(t, errOut, "skipping "+missing)
}

func TestPreferencesCommand(t *testing.T) {
	text := testutil.NewDiffBuilder().
		File("app/config.py").Hunk(1, 1).
		Add("password = os.environ['DB_PASSWORD']", "print('debug')", "\tvalue = 1").
		Build()

	out, _, err := execute(t, text, "preferences", "-f", "json")
	require.NoError(t, err)
	var pairs []preference.Pair
	require.NoError(t, json.Unmarshal([]byte(out), &pairs))
	require.Len(t, pairs, 1)
	assert.Equal(t, "security_reviewer", pairs[0].ChosenAgent)
	assert.Equal(t, "score", pairs[0].Ranker)

	out, _, err = execute(t, text, "preferences", "--candidates")
	require.NoError(t, err)
	assert.Contains(t, out, "security_reviewer (score 3):")

	out, _, err = execute(t, "", "preferences")
	require.NoError(t, err)
	assert.Contains(t, out, "No preference pair")
}

var mixedDiff = testutil.NewDiffBuilder().
	File("app/config.py").Hunk(1, 1).
	Add("password = os.environ['DB_PASSWORD']", "print('debug')", "\tvalue = 1").
	Build()

func TestFeedbackCommands(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir)

	out, _, err := execute(t, mixedDiff, "--config", cfg, "review", "-f", "json")
	require.NoError(t, err)
	var reviewed reviewView
	require.NoError(t, json.Unmarshal([]byte(out), &reviewed))
	require.GreaterOrEqual(t, len(reviewed.Comments), 2)
	good, bad := reviewed.Comments[0], reviewed.Comments[1]
	require.NotEmpty(t, good.ID)

	out, _, err = execute(t, "", "--config", cfg, "feedback", "add", reviewed.ID, good.ID, "up", "--user", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "rated 1")

	out, _, err = execute(t, "", "--config", cfg, "feedback", "add", reviewed.ID, bad.ID, "-f", "json", "--", "-1")
	require.NoError(t, err)
	var added core.Feedback
	require.NoError(t, json.Unmarshal([]byte(out), &added))
	assert.Equal(t, reviewed.ID, added.ReviewID)
	assert.Equal(t, -1, added.Rating)

	out, _, err = execute(t, "", "--config", cfg, "feedback", "list", reviewed.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, bad.ID)

	out, _, err = execute(t, "", "--config", cfg, "feedback", "summary", reviewed.ID)
	require.NoError(t, err)
	assert.Equal(t, "up 1, down 1, neutral 0\n", out)

	out, _, err = execute(t, "", "--config", cfg, "feedback", "export", "-f", "json")
	require.NoError(t, err)
	var pairs []preference.Pair
	require.NoError(t, json.Unmarshal([]byte(out), &pairs))
	require.Len(t, pairs, 1)
	assert.Equal(t, reviewed.ID, pairs[0].ReviewID)
	assert.Equal(t, "feedback", pairs[0].Ranker)
	assert.Equal(t, good.Description, pairs[0].Chosen)
	assert.Equal(t, bad.Description, pairs[0].Rejected)
	assert.Equal(t, preference.Prompt(mixedDiff), pairs[0].Prompt)

	out, _, err = execute(t, "", "--config", cfg, "feedback", "export", reviewed.ID, "--limit", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "No preference pairs")
}

func TestFeedbackAdd_Errors(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir)

	out, _, err := execute(t, passwordDiff, "--config", cfg, "review", "-f", "json")
	require.NoError(t, err)
	var reviewed reviewView
	require.NoError(t, json.Unmarshal([]byte(out), &reviewed))
	require.NotEmpty(t, reviewed.Comments)

	_, _, err = execute(t, "", "--config", cfg, "feedback", "add", reviewed.ID, reviewed.Comments[0].ID, "2")
	assert.ErrorContains(t, err, "invalid rating")
	_, _, err = execute(t, "", "--config", cfg, "feedback", "add", reviewed.ID, reviewed.Comments[0].ID, "great")
	assert.ErrorContains(t, err, "invalid rating")

	_, _, err = execute(t, "", "--config", cfg, "feedback", "add", reviewed.ID, "no-such-comment", "1")
	assert.ErrorContains(t, err, "has no comment")

	_, _, err = execute(t, "", "--config", cfg, "feedback", "add", "nope", "c", "1")
	assert.ErrorContains(t, err, "review not found")
}

func TestWriteReviewText_SummaryAndSeverityOrder(t *testing.T) {
	r := core.Review{ID: "r1", Status: core.ReviewCompleted, Metadata: map[string]any{core.MetadataDiff: passwordDiff}}
	comments := []core.Comment{
		{ID: "c1", AggregatedComment: core.AggregatedComment{
			Finding:      core.Finding{FilePath: "a.py", LineNumber: 1, Severity: core.SeverityLow, Category: "style", Description: "tab"},
			AgentID:      "style_reviewer",
			Contributors: []string{"style_reviewer"},
		}},
		{ID: "c2", AggregatedComment: core.AggregatedComment{
			Finding:      core.Finding{FilePath: "a.py", LineNumber: 2, Severity: core.SeverityHigh, Category: "secrets", Description: "secret"},
			AgentID:      "security_reviewer",
			Contributors: []string{"security_reviewer"},
		}},
	}
	v := newReviewView(r, comments, nil)

	var buf bytes.Buffer
	require.NoError(t, writeReviewText(&buf, v))
	out := buf.String()

	assert.Contains(t, out, "  diff: 1 files, +1 -0\n")
	assert.Contains(t, out, "  severity: high 1, low 1\n")
	assert.Less(t, strings.Index(out, "[high]"), strings.Index(out, "[low]"))
	// JSON keeps the stored order.
	assert.Equal(t, "c1", v.Comments[0].ID)
	assert.Equal(t, "c2", v.bySeverity[0].ID)
}
