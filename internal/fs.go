package internal

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// WriteYAML encodes value into filename, creating missing parent directories.
func WriteYAML(filename string, value any) (err error) {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return err
	}

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	encoder := yaml.NewEncoder(file)
	encoder.SetIndent(2)

	if err := encoder.Encode(value); err != nil {
		return err
	}
	return encoder.Close()
}
