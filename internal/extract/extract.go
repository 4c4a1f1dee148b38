// Package extract turns raw model output into a named-file collection
// and bundles collections for download. The input is unstructured,
// remote-model-generated text, so extraction is a deliberately
// heuristic fallback chain: it never fails and always produces at
// least one file.
package extract

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"io"
	"regexp"
	"strings"

	"github.com/hacf-ai/hacf-backend/internal/projects/domain"
)

// FallbackName is used when the raw text yields no structured files.
const FallbackName = "project.txt"

// defaultNames maps fence language tags to default filenames. Tags not
// listed here fall back to a generic placeholder.
var defaultNames = map[string]string{
	"python":     "script.py",
	"py":         "script.py",
	"javascript": "script.js",
	"js":         "script.js",
	"typescript": "script.ts",
	"ts":         "script.ts",
	"go":         "main.go",
	"golang":     "main.go",
	"html":       "index.html",
	"css":        "styles.css",
	"json":       "data.json",
	"yaml":       "config.yaml",
	"yml":        "config.yaml",
	"sql":        "schema.sql",
	"sh":         "script.sh",
	"bash":       "script.sh",
	"shell":      "script.sh",
}

const genericName = "file.txt"

// fileNameComment matches "File: app.py" / "filename: x" lines, with
// or without a leading comment marker.
var fileNameComment = regexp.MustCompile(`(?i)^\s*(?:#|//|<!--|/\*|--)?\s*file(?:name)?\s*:\s*(\S[^*>]*?)\s*(?:-->|\*/)?\s*$`)

type descriptor struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Extract converts one stage's raw output into files. Strategies are
// tried in order: JSON file list, fenced code blocks, whole text.
// Malformed JSON falls through silently; it is never an error.
func Extract(raw string) []domain.ProjectFile {
	if strings.TrimSpace(raw) == "" {
		return []domain.ProjectFile{{Name: FallbackName, Content: ""}}
	}

	if files, ok := fromJSON(raw); ok {
		return files
	}

	if files, ok := fromFences(raw); ok {
		return files
	}

	return []domain.ProjectFile{{Name: FallbackName, Content: raw}}
}

// fromJSON accepts either a top-level array of {name, content} objects
// or an object carrying such an array under "files".
func fromJSON(raw string) ([]domain.ProjectFile, bool) {
	var descs []descriptor
	if err := json.Unmarshal([]byte(raw), &descs); err != nil {
		var wrapper struct {
			Files []descriptor `json:"files"`
		}
		if err := json.Unmarshal([]byte(raw), &wrapper); err != nil {
			return nil, false
		}
		descs = wrapper.Files
	}

	files := make([]domain.ProjectFile, 0, len(descs))
	for _, d := range descs {
		if strings.TrimSpace(d.Name) == "" {
			continue
		}
		files = append(files, domain.ProjectFile{Name: strings.TrimSpace(d.Name), Content: d.Content})
	}
	if len(files) == 0 {
		return nil, false
	}
	return dedupe(files), true
}

// fromFences scans for ``` blocks. The filename is the language tag's
// default unless one of the 5 lines above the fence names the file
// explicitly.
func fromFences(raw string) ([]domain.ProjectFile, bool) {
	lines := strings.Split(raw, "\n")
	files := make([]domain.ProjectFile, 0, 4)

	for i := 0; i < len(lines); i++ {
		marker := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(marker, "```") {
			continue
		}
		tag := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(marker, "```")))

		var block []string
		closed := false
		j := i + 1
		for ; j < len(lines); j++ {
			if strings.TrimSpace(lines[j]) == "```" {
				closed = true
				break
			}
			block = append(block, lines[j])
		}
		if !closed {
			break
		}

		name := defaultNames[tag]
		if name == "" {
			name = genericName
		}
		if explicit := lookbackName(lines, i); explicit != "" {
			name = explicit
		}

		files = append(files, domain.ProjectFile{Name: name, Content: strings.Join(block, "\n")})
		i = j
	}

	if len(files) == 0 {
		return nil, false
	}
	return dedupe(files), true
}

// lookbackName searches up to 5 lines above the fence for an explicit
// "File:" / "filename:" marker.
func lookbackName(lines []string, fenceIdx int) string {
	for back := 1; back <= 5; back++ {
		idx := fenceIdx - back
		if idx < 0 {
			break
		}
		if m := fileNameComment.FindStringSubmatch(lines[idx]); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

// dedupe collapses duplicate names, last write wins, first-seen order.
func dedupe(files []domain.ProjectFile) []domain.ProjectFile {
	index := make(map[string]int, len(files))
	out := make([]domain.ProjectFile, 0, len(files))
	for _, f := range files {
		if at, seen := index[f.Name]; seen {
			out[at] = f
			continue
		}
		index[f.Name] = len(out)
		out = append(out, f)
	}
	return out
}

// Package bundles a file collection for download. A single file is
// returned raw under its own name; more than one becomes a zip
// archive. Zipped reports which of the two happened.
func Package(files []domain.ProjectFile) (name string, data []byte, zipped bool, err error) {
	files = dedupe(files)

	if len(files) == 0 {
		return FallbackName, []byte{}, false, nil
	}
	if len(files) == 1 {
		return files[0].Name, []byte(files[0].Content), false, nil
	}

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, f := range files {
		fw, err := w.Create(f.Name)
		if err != nil {
			return "", nil, false, err
		}
		if _, err := fw.Write([]byte(f.Content)); err != nil {
			return "", nil, false, err
		}
	}
	if err := w.Close(); err != nil {
		return "", nil, false, err
	}
	return "project.zip", buf.Bytes(), true, nil
}

// Unpack reads a zip archive produced by Package back into files.
func Unpack(data []byte) ([]domain.ProjectFile, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	files := make([]domain.ProjectFile, 0, len(zr.File))
	for _, zf := range zr.File {
		rc, err := zf.Open()
		if err != nil {
			return nil, err
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
		files = append(files, domain.ProjectFile{Name: zf.Name, Content: string(content)})
	}
	return dedupe(files), nil
}
