package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJoinPath(t *testing.T) {
	tests := []struct {
		parts []string
		want  string
	}{
		{nil, "/"},
		{[]string{"/"}, "/"},
		{[]string{"/", "docs"}, "/docs"},
		{[]string{"/docs/", "/2024/", "report.xlsx"}, "/docs/2024/report.xlsx"},
		{[]string{"", "a", ""}, "/a"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, JoinPath(tt.parts...))
	}
}

func TestValidateName(t *testing.T) {
	valid := []string{"report.xlsx", "My Folder", ".env", "a (1).txt"}
	for _, name := range valid {
		assert.NoError(t, ValidateName(name), name)
	}

	invalid := []string{"", "   ", ".", "..", "a/b", `a\b`, "what?", "x:y", "trailing.", "trailing "}
	for _, name := range invalid {
		assert.Error(t, ValidateName(name), name)
	}
}

func TestDisambiguatedName(t *testing.T) {
	assert.Equal(t, "report (1).xlsx", DisambiguatedName("report.xlsx", 1))
	assert.Equal(t, "archive.tar (2).gz", DisambiguatedName("archive.tar.gz", 2))
	assert.Equal(t, "README (3)", DisambiguatedName("README", 3))
	assert.Equal(t, ".env (1)", DisambiguatedName(".env", 1))
}

func TestFreeName(t *testing.T) {
	taken := map[string]bool{"report.xlsx": true, "report (1).xlsx": true}
	isTaken := func(n string) bool { return taken[n] }

	assert.Equal(t, "other.xlsx", FreeName("other.xlsx", isTaken))
	assert.Equal(t, "report (2).xlsx", FreeName("report.xlsx", isTaken))
}

func TestDetectMimeType(t *testing.T) {
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", MimeTypeByName("Report.XLSX"))
	assert.Equal(t, "", MimeTypeByName("no-extension"))
	assert.Equal(t, "text/plain", DetectMimeType("notes.txt", nil))
	assert.Equal(t, "application/pdf", DetectMimeType("blob", strings.NewReader("%PDF-1.4\n")))
	assert.Equal(t, "application/octet-stream", DetectMimeType("blob", nil))
}
