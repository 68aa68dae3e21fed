package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	errwrap "github.com/quotagate/quotagate/internal/errors"
	"github.com/quotagate/quotagate/internal/output"
)

const (
	flagOutputFormat = "output-format"
	flagOut          = "out"
	flagOutDir       = "out-dir"
)

var formatExtensions = map[output.Format]string{
	output.FormatJSON: "json",
	output.FormatYAML: "yaml",
}

// outputSink is where a command's report goes: stdout, or a file that must
// be closed.
type outputSink struct {
	io.Writer
	file *os.File
}

func (s *outputSink) Close() error {
	if s.file == nil {
		return nil
	}
	return s.file.Close()
}

func outputExtension(format output.Format) string {
	if ext, ok := formatExtensions[format]; ok {
		return ext
	}
	return "txt"
}

// addOutputFlags registers --output-format, --out and --out-dir.
func addOutputFlags(cmd *cobra.Command, formats string) {
	flags := cmd.Flags()
	flags.String(flagOutputFormat, string(output.FormatTable), "Output format: "+formats)
	flags.String(flagOut, "", "Write output to a file (default stdout)")
	flags.String(flagOutDir, "", "Write output to a directory")
}

func resolveOutputFormat(cmd *cobra.Command) (output.Format, error) {
	value, err := cmd.Flags().GetString(flagOutputFormat)
	if err != nil {
		return "", err
	}
	return output.ParseFormat(value)
}

// resolveSinkPath combines --out and --out-dir. With --out-dir the file is
// named <name>.<ext> inside that directory. An empty path means stdout.
func resolveSinkPath(cmd *cobra.Command, name string, format output.Format) (string, error) {
	flags := cmd.Flags()
	out, _ := flags.GetString(flagOut)
	dir, _ := flags.GetString(flagOutDir)
	out, dir = strings.TrimSpace(out), strings.TrimSpace(dir)

	switch {
	case out != "" && dir != "":
		return "", errwrap.NewInvalidInputError("--out and --out-dir are mutually exclusive")
	case dir == "":
		return out, nil
	}

	if err := mkdirOutput(dir); err != nil {
		return "", err
	}
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	return filepath.Join(dir, name+"."+outputExtension(format)), nil
}

// openSink opens path for writing, creating parent directories. An empty
// path or "-" is stdout.
func openSink(path string) (*outputSink, error) {
	path = strings.TrimSpace(path)
	if path == "" || path == "-" {
		return &outputSink{Writer: os.Stdout}, nil
	}
	if err := mkdirOutput(filepath.Dir(path)); err != nil {
		return nil, err
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &outputSink{Writer: file, file: file}, nil
}

func mkdirOutput(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	return nil
}
