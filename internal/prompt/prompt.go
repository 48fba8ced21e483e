// Package prompt loads task-list prompt files in either of xenosync's two
// formats: a plain-text format headed by a "# Raivyn [build]" marker and
// numbered sections, or a YAML mapping.
package prompt

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kspringfield13/xenosync/internal/common/xerrors"
)

// Task is one numbered item in a prompt.
type Task struct {
	Number          int      `yaml:"number" json:"number"`
	Content         string   `yaml:"content" json:"content"`
	Description     string   `yaml:"description,omitempty" json:"description,omitempty"`
	EstimatedTime   int      `yaml:"estimated_time,omitempty" json:"estimated_time,omitempty"` // minutes
	Dependencies    []int    `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	Tags            []string `yaml:"tags,omitempty" json:"tags,omitempty"`
}

// Format tags the source syntax a Prompt was parsed from.
type Format string

const (
	FormatText Format = "text"
	FormatYAML Format = "yaml"
)

// Prompt is a loaded task list plus its initial framing message.
type Prompt struct {
	Name          string
	Filename      string
	Format        Format
	InitialPrompt string
	Tasks         []Task
	Description   string
	Metadata      map[string]interface{}
}

// EstimatedDuration returns a coarse human-readable time estimate, five
// minutes per task when a task does not specify its own estimate.
func (p *Prompt) EstimatedDuration() string {
	total := 0
	for _, t := range p.Tasks {
		if t.EstimatedTime > 0 {
			total += t.EstimatedTime
		} else {
			total += 5
		}
	}
	h, m := total/60, total%60
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}

var buildMarkerRe = regexp.MustCompile(`(?s)# Raivyn \[build\](.*?)(?:\n#|\z)`)
var stepRe = regexp.MustCompile(`(?m)^(\d+)\.\s+(.+?)(?:\n\d+\.|\z)`)

// Load reads a prompt file by path, dispatching on its extension.
func Load(path string) (*Prompt, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".txt":
		return loadText(path)
	case ".yaml", ".yml":
		return loadYAML(path)
	default:
		return nil, xerrors.Config(fmt.Sprintf("unsupported prompt format %q", ext), nil)
	}
}

// List enumerates every .txt/.yaml/.yml prompt under dir, sorted by name.
func List(dir string) ([]*Prompt, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []*Prompt
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".txt" && ext != ".yaml" && ext != ".yml" {
			continue
		}
		p, err := Load(filepath.Join(dir, e.Name()))
		if err != nil {
			continue // a single malformed prompt must not break listing
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Validate re-checks structural invariants: at least one task, unique
// task numbers, non-empty task content, and dependency references that
// exist. The order of task numbers is not checked.
func Validate(p *Prompt) error {
	if len(p.Tasks) == 0 {
		return xerrors.Config("prompt has no tasks", nil)
	}
	seen := make(map[int]bool, len(p.Tasks))
	for _, t := range p.Tasks {
		if seen[t.Number] {
			return xerrors.Config(fmt.Sprintf("duplicate task number %d", t.Number), nil)
		}
		seen[t.Number] = true
		if strings.TrimSpace(t.Content) == "" {
			return xerrors.Config(fmt.Sprintf("task %d has empty content", t.Number), nil)
		}
	}
	for _, t := range p.Tasks {
		for _, dep := range t.Dependencies {
			if !seen[dep] {
				return xerrors.Config(fmt.Sprintf("task %d depends on unknown task %d", t.Number, dep), nil)
			}
		}
	}
	return nil
}

func loadText(path string) (*Prompt, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.Config("read prompt file", err)
	}
	content := string(raw)

	m := buildMarkerRe.FindStringSubmatch(content)
	if m == nil {
		return nil, xerrors.Config(fmt.Sprintf("no '# Raivyn [build]' section found in %s", path), nil)
	}
	initial := strings.TrimSpace(m[1])

	matches := stepRe.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil, xerrors.Config(fmt.Sprintf("no numbered steps found in %s", path), nil)
	}

	tasks := make([]Task, 0, len(matches))
	for _, sm := range matches {
		num, err := strconv.Atoi(sm[1])
		if err != nil {
			continue
		}
		body := strings.TrimSpace(sm[2])
		lines := strings.SplitN(body, "\n", 2)
		desc := lines[0]
		if len(desc) > 100 {
			desc = desc[:97] + "..."
		}
		tasks = append(tasks, Task{Number: num, Content: body, Description: desc})
	}

	name := extractProjectName(initial, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))

	return &Prompt{
		Name:          name,
		Filename:      filepath.Base(path),
		Format:        FormatText,
		InitialPrompt: initial,
		Tasks:         tasks,
		Metadata:      map[string]interface{}{},
	}, nil
}

var projectNamePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bbuild\s+(\w+)`),
	regexp.MustCompile(`(?i)\bcreate\s+(\w+)`),
	regexp.MustCompile(`(?i)\bdevelop\s+(\w+)`),
}

func extractProjectName(initialPrompt, fallback string) string {
	for _, re := range projectNamePatterns {
		if m := re.FindStringSubmatch(initialPrompt); m != nil {
			return m[1]
		}
	}
	return fallback
}

type yamlStep struct {
	Content       string   `yaml:"content"`
	Number        int      `yaml:"number"`
	Description   string   `yaml:"description"`
	EstimatedTime int      `yaml:"estimated_time"`
	Dependencies  []int    `yaml:"dependencies"`
	Tags          []string `yaml:"tags"`
}

type yamlPrompt struct {
	Name          string                 `yaml:"name"`
	InitialPrompt string                 `yaml:"initial_prompt"`
	Description   string                 `yaml:"description"`
	Steps         []yaml.Node            `yaml:"steps"`
	Metadata      map[string]interface{} `yaml:"metadata"`
}

func loadYAML(path string) (*Prompt, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.Config("read prompt file", err)
	}

	var yp yamlPrompt
	if err := yaml.Unmarshal(raw, &yp); err != nil {
		return nil, xerrors.Config(fmt.Sprintf("invalid YAML in %s", path), err)
	}

	if yp.Name == "" {
		return nil, xerrors.Config(fmt.Sprintf("missing 'name' field in %s", path), nil)
	}
	if yp.InitialPrompt == "" {
		return nil, xerrors.Config(fmt.Sprintf("missing 'initial_prompt' field in %s", path), nil)
	}
	if len(yp.Steps) == 0 {
		return nil, xerrors.Config(fmt.Sprintf("missing or empty 'steps' field in %s", path), nil)
	}

	tasks := make([]Task, 0, len(yp.Steps))
	for i, node := range yp.Steps {
		idx := i + 1
		if node.Kind == yaml.ScalarNode {
			var s string
			if err := node.Decode(&s); err != nil {
				return nil, xerrors.Config(fmt.Sprintf("invalid step %d in %s", idx, path), err)
			}
			desc := firstLine(s, 100)
			tasks = append(tasks, Task{Number: idx, Content: s, Description: desc})
			continue
		}

		var step yamlStep
		if err := node.Decode(&step); err != nil {
			return nil, xerrors.Config(fmt.Sprintf("invalid step %d in %s", idx, path), err)
		}
		if step.Content == "" {
			return nil, xerrors.Config(fmt.Sprintf("step %d missing 'content' field in %s", idx, path), nil)
		}
		num := step.Number
		if num == 0 {
			num = idx
		}
		desc := step.Description
		if desc == "" {
			desc = firstLine(step.Content, 100)
		}
		tasks = append(tasks, Task{
			Number:        num,
			Content:       step.Content,
			Description:   desc,
			EstimatedTime: step.EstimatedTime,
			Dependencies:  step.Dependencies,
			Tags:          step.Tags,
		})
	}

	return &Prompt{
		Name:          yp.Name,
		Filename:      filepath.Base(path),
		Format:        FormatYAML,
		InitialPrompt: yp.InitialPrompt,
		Tasks:         tasks,
		Description:   yp.Description,
		Metadata:      yp.Metadata,
	}, nil
}

func firstLine(s string, max int) string {
	line := strings.SplitN(s, "\n", 2)[0]
	if len(line) > max {
		return line[:max]
	}
	return line
}

// ToYAML renders a Prompt back out in YAML form, used by `prompt convert`.
func ToYAML(p *Prompt) ([]byte, error) {
	out := yamlPrompt{
		Name:          p.Name,
		InitialPrompt: p.InitialPrompt,
		Description:   p.Description,
		Metadata:      p.Metadata,
	}
	doc := map[string]interface{}{
		"name":           out.Name,
		"initial_prompt": out.InitialPrompt,
	}
	if out.Description != "" {
		doc["description"] = out.Description
	}
	if len(out.Metadata) > 0 {
		doc["metadata"] = out.Metadata
	}
	steps := make([]map[string]interface{}, 0, len(p.Tasks))
	for _, t := range p.Tasks {
		step := map[string]interface{}{"number": t.Number, "content": t.Content}
		if t.Description != "" {
			step["description"] = t.Description
		}
		if t.EstimatedTime > 0 {
			step["estimated_time"] = t.EstimatedTime
		}
		if len(t.Dependencies) > 0 {
			step["dependencies"] = t.Dependencies
		}
		if len(t.Tags) > 0 {
			step["tags"] = t.Tags
		}
		steps = append(steps, step)
	}
	doc["steps"] = steps
	return yaml.Marshal(doc)
}

// ToText renders a Prompt back out in the text marker format.
func ToText(p *Prompt) []byte {
	var b strings.Builder
	b.WriteString("# Raivyn [build]\n")
	b.WriteString(p.InitialPrompt)
	b.WriteString("\n\n")
	for _, t := range p.Tasks {
		fmt.Fprintf(&b, "%d. %s\n\n", t.Number, t.Content)
	}
	return []byte(b.String())
}
