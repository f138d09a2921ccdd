package core

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/huangsam/kernscore/internal/contract"
	"github.com/huangsam/kernscore/schema"
)

// promptDiffLimit caps how much of the diff is sent to the oracle.
const promptDiffLimit = 10000

const promptInstruction = "Analyze this Linux kernel commit and return ONLY a valid JSON object (no markdown, no explanation):\n\n"

// commitPrompt is the JSON document embedded in the prompt. Field order is kept stable.
type commitPrompt struct {
	CommitHash     string   `json:"commit_hash"`
	ShortHash      string   `json:"short_hash"`
	AuthorName     string   `json:"author_name"`
	AuthorEmail    string   `json:"author_email"`
	AuthorDate     string   `json:"author_date"`
	CommitterName  string   `json:"committer_name"`
	CommitterEmail string   `json:"committer_email"`
	CommitDate     string   `json:"commit_date"`
	Subject        string   `json:"subject"`
	Body           string   `json:"body"`
	Files          []string `json:"files"`
	FilesChanged   int      `json:"files_changed"`
	Insertions     int      `json:"insertions"`
	Deletions      int      `json:"deletions"`
	Hunks          int      `json:"hunks"`
	DiffOutput     string   `json:"diff_output"`
	CodeSnippet    string   `json:"code_snippet"`
}

// BuildPrompt renders the scoring request for one commit.
func BuildPrompt(commit *schema.RawCommit, snippet string) (string, error) {
	files := commit.Files
	if files == nil {
		files = []string{}
	}
	doc := commitPrompt{
		CommitHash:     commit.Hash,
		ShortHash:      commit.ShortHash(),
		AuthorName:     commit.AuthorName,
		AuthorEmail:    commit.AuthorEmail,
		AuthorDate:     formatPromptTime(commit.AuthorDate),
		CommitterName:  commit.CommitterName,
		CommitterEmail: commit.CommitterEmail,
		CommitDate:     formatPromptTime(commit.CommitDate),
		Subject:        commit.Subject,
		Body:           commit.Body,
		Files:          files,
		FilesChanged:   commit.FilesChanged,
		Insertions:     commit.Insertions,
		Deletions:      commit.Deletions,
		Hunks:          commit.Hunks,
		DiffOutput:     contract.Truncate(commit.Diff, promptDiffLimit),
		CodeSnippet:    snippet,
	}

	var buf bytes.Buffer
	buf.WriteString(promptInstruction)
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func formatPromptTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
