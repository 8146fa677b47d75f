package agent

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"github.com/pelletier/go-toml/v2"

	"github.com/jadenj13/clipper/internals/fault"
)

var agentNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// PromptLoader reads system prompts from <Dir>/<agent>.toml. Files are read on
// every call so edits take effect on the next request.
type PromptLoader struct {
	Dir string
}

type promptFile struct {
	Name         string `toml:"name"`
	Description  string `toml:"description"`
	SystemPrompt string `toml:"system_prompt"`
}

func (l PromptLoader) Load(agentName string) (string, error) {
	if !agentNamePattern.MatchString(agentName) {
		return "", fault.Wrap(fault.ErrNotFound, "load prompt", fmt.Sprintf("invalid agent name %q", agentName), nil)
	}
	path := filepath.Join(l.Dir, agentName+".toml")
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fault.Wrap(fault.ErrNotFound, "load prompt", fmt.Sprintf("agent config not found: %s", path), nil)
		}
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	var pf promptFile
	if err := toml.Unmarshal(data, &pf); err != nil {
		return "", fault.Wrap(fault.ErrMalformed, "load prompt", path, err)
	}
	return pf.SystemPrompt, nil
}

// Agents lists the agent names available in Dir.
func (l PromptLoader) Agents() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(l.Dir, "*.toml"))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		name := filepath.Base(m)
		name = name[:len(name)-len(".toml")]
		if agentNamePattern.MatchString(name) {
			names = append(names, name)
		}
	}
	return names, nil
}
