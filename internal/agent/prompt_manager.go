package agent

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const plannerPromptFile = "planner.md"

// DefaultPlannerPrompt is used when no planner.md is present.
const DefaultPlannerPrompt = `You design laboratory protocols as ordered lists of short, imperative steps.
Research with the available tools when useful, then call propose_protocol exactly once
with the target program and the steps in execution order. Keep each step to one action.`

type PromptManager struct {
	Directory string
}

func NewPromptManager(dir string) *PromptManager {
	return &PromptManager{Directory: dir}
}

// GetContextPrompt joins every markdown file except planner.md, ordered
// identity, lab, safety, then the rest by name.
func (pm *PromptManager) GetContextPrompt() (string, error) {
	files, err := os.ReadDir(pm.Directory)
	if err != nil {
		return "", fmt.Errorf("failed to read prompts directory: %v", err)
	}

	var contents []string

	order := map[string]int{
		"identity.md": 1,
		"lab.md":      2,
		"safety.md":   3,
	}

	sort.Slice(files, func(i, j int) bool {
		oi, okI := order[files[i].Name()]
		oj, okJ := order[files[j].Name()]
		if okI && okJ {
			return oi < oj
		}
		if okI {
			return true
		}
		if okJ {
			return false
		}
		return files[i].Name() < files[j].Name()
	})

	for _, f := range files {
		if !f.IsDir() && strings.HasSuffix(f.Name(), ".md") && f.Name() != plannerPromptFile {
			path := filepath.Join(pm.Directory, f.Name())
			data, err := os.ReadFile(path)
			if err != nil {
				log.Printf("Warning: Failed to read prompt file %s: %v", path, err)
				continue
			}
			contents = append(contents, string(data))
		}
	}

	return strings.Join(contents, "\n\n---\n\n"), nil
}

// GetPlannerPrompt returns planner.md, falling back to DefaultPlannerPrompt.
func (pm *PromptManager) GetPlannerPrompt() (string, error) {
	path := filepath.Join(pm.Directory, plannerPromptFile)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultPlannerPrompt, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read planner prompt: %v", err)
	}
	return string(data), nil
}
