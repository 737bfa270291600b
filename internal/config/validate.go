// CUE schema validation code
package config

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueyaml "cuelang.org/go/encoding/yaml"
)

// SchemaDefinition is the CUE definition every config must satisfy.
const SchemaDefinition = "#Config"

// ValidateWithCue validates a YAML configuration file using a CUE schema file.
func ValidateWithCue(configFile, cueFile string) error {
	yamlBytes, err := os.ReadFile(configFile)
	if err != nil {
		return fmt.Errorf("cannot read YAML config: %w", err)
	}
	schemaBytes, err := os.ReadFile(cueFile)
	if err != nil {
		return fmt.Errorf("cannot read CUE schema: %w", err)
	}
	return ValidateBytes(configFile, yamlBytes, cueFile, schemaBytes)
}

// ValidateBytes validates YAML bytes against the #Config definition of a
// CUE schema.
func ValidateBytes(configName string, yamlBytes []byte, schemaName string, schemaBytes []byte) error {
	ctx := cuecontext.New()

	schema := ctx.CompileBytes(schemaBytes, cue.Filename(schemaName))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("cannot compile CUE schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath(SchemaDefinition))
	if !def.Exists() {
		return fmt.Errorf("schema %s has no %s definition", schemaName, SchemaDefinition)
	}

	file, err := cueyaml.Extract(configName, yamlBytes)
	if err != nil {
		return fmt.Errorf("cannot parse YAML config: %w", err)
	}
	data := ctx.BuildFile(file)
	if err := data.Err(); err != nil {
		return fmt.Errorf("cannot build YAML config: %w", err)
	}

	if err := def.Unify(data).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}
