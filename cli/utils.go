package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/compozy/docqa/pkg/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// extractCLIFlags copies explicitly changed flags that map to configuration
// paths into flags, keeping their native types.
func extractCLIFlags(cmd *cobra.Command, flags map[string]any) error {
	var firstErr error
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if firstErr != nil {
			return
		}
		if _, ok := config.CLIFlagPath(f.Name); !ok {
			return
		}
		value, err := flagValue(cmd.Flags(), f)
		if err != nil {
			firstErr = fmt.Errorf("invalid value for --%s: %w", f.Name, err)
			return
		}
		flags[f.Name] = value
	})
	return firstErr
}

func flagValue(set *pflag.FlagSet, f *pflag.Flag) (any, error) {
	switch f.Value.Type() {
	case "bool":
		return set.GetBool(f.Name)
	case "int":
		return set.GetInt(f.Name)
	case "int64":
		return set.GetInt64(f.Name)
	case "float64":
		return set.GetFloat64(f.Name)
	case "duration":
		return set.GetDuration(f.Name)
	default:
		return f.Value.String(), nil
	}
}

// loadEnvFile loads environment variables from a file with security validation
func loadEnvFile(cmd *cobra.Command) (string, error) {
	envFile, err := cmd.Flags().GetString("env-file")
	if err != nil {
		return "", fmt.Errorf("failed to get env-file flag: %w", err)
	}
	if envFile == "" {
		return "", nil
	}
	pwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current working directory: %w", err)
	}
	if !filepath.IsAbs(envFile) {
		envFile = filepath.Join(pwd, envFile)
	}
	absPath, err := filepath.Abs(filepath.Clean(envFile))
	if err != nil {
		return "", fmt.Errorf("failed to resolve env file path: %w", err)
	}
	if !isPathWithinDirectory(absPath, pwd) {
		return "", fmt.Errorf("env file path '%s' is outside the project directory", envFile)
	}
	fileInfo, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return absPath, nil
		}
		return "", fmt.Errorf("failed to stat env file: %w", err)
	}
	if !fileInfo.Mode().IsRegular() {
		return "", fmt.Errorf("env file path '%s' is not a regular file", envFile)
	}
	if err := godotenv.Load(absPath); err != nil {
		return "", fmt.Errorf("failed to load env file %s: %w", absPath, err)
	}
	return absPath, nil
}

// isPathWithinDirectory checks if a given path is within the specified directory
func isPathWithinDirectory(path, dir string) bool {
	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return false
	}
	absDir, err := filepath.Abs(filepath.Clean(dir))
	if err != nil {
		return false
	}
	if !strings.HasSuffix(absDir, string(filepath.Separator)) {
		absDir += string(filepath.Separator)
	}
	return strings.HasPrefix(absPath, absDir) || absPath == strings.TrimSuffix(absDir, string(filepath.Separator))
}

// addPipelineFlags registers the flags shared by commands that run the pipeline.
func addPipelineFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Duration("fetch-timeout", 0, "Document download timeout")
	f.String("default-type", "", "Document type when detection is inconclusive (pdf, docx, text)")
	f.Int("chunk-size", 0, "Chunk size in characters")
	f.Int("chunk-overlap", 0, "Chunk overlap in characters")
	f.Int("top-k", 0, "Chunks returned by similarity search")
	f.Float64("threshold", 0, "Minimum similarity score")
	f.Int("max-chunks", 0, "Chunks included in each prompt")
	f.Int("context-tokens", 0, "Token budget for each question's context (0 = unlimited)")
	f.String("embedder", "", "Embedding provider (googleai, openai, ollama)")
	f.String("embedder-model", "", "Embedding model")
	f.String("llm", "", "LLM provider (google, openai, ollama, mock)")
	f.String("model", "", "LLM model")
	f.Duration("llm-timeout", 0, "Timeout per LLM attempt")
	f.Int("max-concurrency", 0, "Questions answered in parallel (0 = all)")
}
