package prompts

import (
	"fmt"
	"strings"

	"github.com/hacf-ai/hacf-backend/internal/projects/domain"
)

// Fixed instruction templates, one per pipeline stage. Each template
// interpolates the previous stage's output (or the project brief for
// the first stage) at {{input}}.
var stageTemplates = map[domain.StageType]string{
	domain.StageTaskDefinition: `You are the task definition layer of a development pipeline.

Convert the following project brief into a structured plan: clear goals,
detailed requirements, and constraints. Respond with the plan only.

Project brief:
{{input}}`,

	domain.StageRefinement: `You are the refinement layer of a development pipeline.

From the structured plan below, produce a technical roadmap: system
architecture, chosen technologies and frameworks, data models, and the
base file structure of the project.

Structured plan:
{{input}}`,

	domain.StageDevelopment: `You are the development layer of a development pipeline.

Implement the project described by the technical roadmap below. Produce
complete, functional code for every file. Precede each fenced code block
with a line "File: <path>" naming the file it belongs to.

Technical roadmap:
{{input}}`,

	domain.StageOptimization: `You are the optimization layer of a development pipeline.

Review the code below for bugs, security issues, and performance
problems, and return the corrected full code. Keep the "File: <path>"
markers in front of each fenced code block.

Code:
{{input}}`,

	domain.StageFinalOutput: `You are the final output layer of a development pipeline.

Package the reviewed code below for delivery. Respond with a JSON array
of file objects, each {"name": "<path>", "content": "<full file
content>"}, covering every file of the project.

Reviewed code:
{{input}}`,
}

// Build fills the template for the given stage with the resolved input.
func Build(stageType domain.StageType, input string) (string, error) {
	tmpl, ok := stageTemplates[stageType]
	if !ok {
		return "", fmt.Errorf("no prompt template for stage %q", stageType)
	}
	return interpolate(tmpl, map[string]string{"input": input}), nil
}

func interpolate(tmpl string, vars map[string]string) string {
	out := tmpl
	for k, v := range vars {
		out = strings.ReplaceAll(out, "{{"+k+"}}", v)
	}
	return out
}
