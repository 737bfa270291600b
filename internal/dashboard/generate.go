package dashboard

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"fieldsweep/internal/telemetry"
)

//go:embed templates/*.tmpl
var templates embed.FS

// funcMap exposes the datasource uid and the telemetry table names.
func funcMap() template.FuncMap {
	return template.FuncMap{
		"env": func(key string) (string, error) {
			v := os.Getenv(key)
			if v == "" {
				return "", fmt.Errorf("environment variable %s not set", key)
			}
			return v, nil
		},
		"telemetryTable": func() string { return telemetry.TelemetryTableName },
		"detectionTable": func() string { return telemetry.DetectionTableName },
		"eventTable":     func() string { return telemetry.MissionEventTableName },
	}
}

// Render executes every embedded dashboard template and writes the
// resulting JSON files to outDir. It returns the written paths.
func Render(outDir string) ([]string, error) {
	names, err := templates.ReadDir("templates")
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}
	var out []string
	for _, e := range names {
		t, err := template.New(e.Name()).Funcs(funcMap()).ParseFS(templates, "templates/"+e.Name())
		if err != nil {
			return nil, err
		}
		outPath := filepath.Join(outDir, strings.TrimSuffix(e.Name(), ".tmpl"))
		f, err := os.Create(outPath)
		if err != nil {
			return nil, err
		}
		if err := t.Execute(f, nil); err != nil {
			f.Close()
			os.Remove(outPath)
			return nil, fmt.Errorf("render %s: %w", e.Name(), err)
		}
		if err := f.Close(); err != nil {
			return nil, err
		}
		out = append(out, outPath)
	}
	return out, nil
}
