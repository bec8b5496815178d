package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/openmigrate/openmigrate/pkg/engine"
)

// templateDocument is the subset of a declarative template this engine
// reads: logical resource names and their types.
type templateDocument struct {
	Resources map[string]struct {
		Type string `yaml:"type"`
	} `yaml:"resources"`
}

type scanResult struct {
	Templates []string `json:"templates"`
	Resources int      `json:"resources"`
}

// Scan returns the executor for the scan step. It enumerates template
// documents under the configured template path and seeds the tracked
// resource records. Scanning never mutates anything, so dry run and real
// run behave identically.
func Scan() engine.StepExecutor {
	return engine.ExecutorFunc(func(_ context.Context, state *engine.MigrationState, _ engine.ExecOptions) (json.RawMessage, error) {
		var templates []string
		err := filepath.WalkDir(state.Config.TemplatePath, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			switch strings.ToLower(filepath.Ext(path)) {
			case ".yaml", ".yml", ".json":
				templates = append(templates, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan template path %s: %w", state.Config.TemplatePath, err)
		}
		sort.Strings(templates)

		var records []engine.ResourceRecord
		for _, path := range templates {
			raw, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("failed to read template %s: %w", path, err)
			}
			var doc templateDocument
			if err := yaml.Unmarshal(raw, &doc); err != nil {
				return nil, fmt.Errorf("failed to parse template %s: %w", path, err)
			}

			ids := make([]string, 0, len(doc.Resources))
			for id := range doc.Resources {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			for _, id := range ids {
				records = append(records, engine.ResourceRecord{
					LogicalID: id,
					Type:      doc.Resources[id].Type,
					Region:    state.Config.Region,
				})
			}
		}

		state.Resources = records
		return json.Marshal(scanResult{Templates: templates, Resources: len(records)})
	})
}
