package recipe

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/skillet-data/skillet/internal/errs"
	"github.com/skillet-data/skillet/internal/logger"
)

// Variables placeholders look like {{name}}. Values come from the
// run's variable map first, then the process environment.
var variablePattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.\-]+)\s*\}\}`)

// Recipes may include other recipes with the !include tag:
//
//	wrangles:
//	  - !include shared/cleanup.yaml
//
// Includes resolve relative to the including file and may nest up to
// maxIncludeDepth levels.
const maxIncludeDepth = 10

// Load reads, templates and parses a recipe file. All variables and
// includes are resolved before parsing completes, so downstream
// validation never sees a placeholder.
func Load(path string, variables map[string]string) (*Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", errs.ErrRecipeNotFound, path)
		}
		return nil, fmt.Errorf("%w: %s: %v", errs.ErrRecipeNotFound, path, err)
	}
	return LoadBytes(data, filepath.Dir(path), variables)
}

// LoadBytes templates and parses recipe text. baseDir anchors
// relative !include paths.
func LoadBytes(data []byte, baseDir string, variables map[string]string) (*Recipe, error) {
	text, err := ResolveVariables(string(data), variables)
	if err != nil {
		return nil, err
	}

	var root yaml.Node
	if err := yaml.Unmarshal([]byte(text), &root); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrRecipeParse, err)
	}
	if err := resolveIncludes(&root, baseDir, variables, 0); err != nil {
		return nil, err
	}

	var r Recipe
	if err := root.Decode(&r); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrRecipeParse, err)
	}
	return &r, nil
}

// ResolveVariables substitutes every {{name}} placeholder. A name
// absent from both the variable map and the environment is a
// TemplateError.
func ResolveVariables(text string, variables map[string]string) (string, error) {
	var missing string
	resolved := variablePattern.ReplaceAllStringFunc(text, func(match string) string {
		name := strings.TrimSpace(match[2 : len(match)-2])
		if v, ok := variables[name]; ok {
			return v
		}
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		if missing == "" {
			missing = name
		}
		return match
	})
	if missing != "" {
		return "", &errs.TemplateError{Reference: missing}
	}
	return resolved, nil
}

// resolveIncludes walks the node tree replacing !include scalars
// with the parsed, templated contents of the referenced file.
func resolveIncludes(node *yaml.Node, baseDir string, variables map[string]string, depth int) error {
	if node.Tag == "!include" {
		if depth >= maxIncludeDepth {
			return &errs.TemplateError{Reference: node.Value, IsInclude: true}
		}
		path := node.Value
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return &errs.TemplateError{Reference: node.Value, IsInclude: true}
		}
		text, err := ResolveVariables(string(data), variables)
		if err != nil {
			return err
		}
		var included yaml.Node
		if err := yaml.Unmarshal([]byte(text), &included); err != nil {
			return fmt.Errorf("%w: include %q: %v", errs.ErrRecipeParse, node.Value, err)
		}
		if len(included.Content) == 0 {
			return &errs.TemplateError{Reference: node.Value, IsInclude: true}
		}
		logger.LogDebug("resolved recipe include", map[string]interface{}{"path": path})
		content := included.Content[0]
		if err := resolveIncludes(content, filepath.Dir(path), variables, depth+1); err != nil {
			return err
		}
		*node = *content
		return nil
	}
	for _, child := range node.Content {
		if err := resolveIncludes(child, baseDir, variables, depth); err != nil {
			return err
		}
	}
	return nil
}
