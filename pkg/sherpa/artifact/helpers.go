package artifact

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
)

func writeFile(path string, contents []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("artifact: mkdir %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, contents, 0644); err != nil {
		return fmt.Errorf("artifact: write %s: %w", path, err)
	}
	return nil
}

func writeInline(config string, ctx *BuildContext) error {
	path := filepath.Join(ctx.LabDir, "ztp", "tftp", ctx.NodeName+".conf")
	return writeFile(path, []byte(config))
}

func writeHttpFiles(stage, initial string, configDB []byte) error {
	if err := writeFile(filepath.Join(stage, "initial-config"), []byte(initial)); err != nil {
		return err
	}
	name := filepath.Base(stage) + "_config_db.json"
	return writeFile(filepath.Join(stage, name), configDB)
}

func encodeBase64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}
