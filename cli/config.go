package cli

import (
	"fmt"
	"sort"

	"github.com/compozy/docqa/pkg/config"
	"github.com/knadh/koanf/providers/structs"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// ConfigCmd groups configuration inspection commands.
func ConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the merged configuration as YAML",
		RunE:  runConfigShow,
	}
	show.Flags().Bool("sources", false, "Print where each value came from")
	addPipelineFlags(show)
	cmd.AddCommand(show)
	return cmd
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, svc, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	showSources, err := cmd.Flags().GetBool("sources")
	if err != nil {
		return err
	}
	values, err := structs.Provider(cfg, "koanf").Read()
	if err != nil {
		return fmt.Errorf("failed to read configuration: %w", err)
	}
	redactSensitive(values, "")
	out := cmd.OutOrStdout()
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(values); err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	if err := enc.Close(); err != nil {
		return err
	}
	if !showSources {
		return nil
	}
	keys := flattenKeys(values, "")
	sort.Strings(keys)
	fmt.Fprintln(out, "\n# sources")
	for _, key := range keys {
		fmt.Fprintf(out, "%s: %s\n", key, svc.GetSource(key))
	}
	return nil
}

// redactSensitive masks values whose configuration path is marked sensitive.
func redactSensitive(values map[string]any, prefix string) {
	for key, value := range values {
		path := joinKey(prefix, key)
		if nested, ok := value.(map[string]any); ok {
			redactSensitive(nested, path)
			continue
		}
		if config.IsSensitiveConfigPath(path) {
			if s := fmt.Sprint(value); s != "" {
				values[key] = "[REDACTED]"
			}
		}
	}
}

func flattenKeys(values map[string]any, prefix string) []string {
	var keys []string
	for key, value := range values {
		path := joinKey(prefix, key)
		if nested, ok := value.(map[string]any); ok {
			keys = append(keys, flattenKeys(nested, path)...)
			continue
		}
		keys = append(keys, path)
	}
	return keys
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
