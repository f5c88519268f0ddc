package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/ppiankov/claimcheck/internal/model"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// providerKeyEnv maps a provider name to the conventional API key variable
var providerKeyEnv = map[string]string{
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"claude":    "ANTHROPIC_API_KEY",
	"gemini":    "GEMINI_API_KEY",
	"tavily":    "TAVILY_API_KEY",
	"cohere":    "COHERE_API_KEY",
}

// loadConfig merges defaults, the config file and CLAIMCHECK_* variables, then
// fills API keys from the provider variables
func loadConfig(v *viper.Viper) (model.Config, error) {
	cfg := model.DefaultConfig()
	setDefaults(v, "", reflect.ValueOf(cfg))

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, goerr.Wrap(err, "decode configuration")
	}

	applyProviderEnv(&cfg)
	return cfg, nil
}

// setDefaults registers every mapstructure key, so AutomaticEnv can override
// nested and empty-by-default keys such as CLAIMCHECK_LLM_BASE_URL
func setDefaults(v *viper.Viper, prefix string, val reflect.Value) {
	t := val.Type()
	for i := 0; i < t.NumField(); i++ {
		name := t.Field(i).Tag.Get("mapstructure")
		if name == "" || name == "-" {
			continue
		}
		key := name
		if prefix != "" {
			key = prefix + "." + name
		}

		field := val.Field(i)
		if field.Kind() == reflect.Struct {
			setDefaults(v, key, field)
			continue
		}
		v.SetDefault(key, field.Interface())
	}
}

func applyProviderEnv(cfg *model.Config) {
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv(providerKeyEnv[strings.ToLower(cfg.LLM.Provider)])
	}
	if cfg.LLM.Provider == "ollama" && cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = os.Getenv("OLLAMA_BASE_URL")
	}
	if cfg.Search.APIKey == "" {
		cfg.Search.APIKey = os.Getenv(providerKeyEnv[cfg.Search.Provider])
	}
	if cfg.Rerank.APIKey == "" && cfg.Rerank.Provider != "" {
		cfg.Rerank.APIKey = os.Getenv(providerKeyEnv[cfg.Rerank.Provider])
	}
}

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage claimcheck configuration",
	Long: `Manage claimcheck configuration files and settings.

Configuration hierarchy (highest to lowest priority):
1. CLI flags
2. Environment variables (CLAIMCHECK_*, plus OPENAI_API_KEY, ANTHROPIC_API_KEY,
   GEMINI_API_KEY, TAVILY_API_KEY, COHERE_API_KEY; a .env file is loaded first)
3. Config file (~/.claimcheck/config.yaml)
4. Defaults`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the effective configuration after merging defaults, config file and environment. API keys are never printed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}

		if configFile := viper.ConfigFileUsed(); configFile != "" {
			fmt.Fprintf(os.Stderr, "Configuration file: %s\n\n", configFile)
		} else {
			fmt.Fprintf(os.Stderr, "No configuration file found (using defaults)\n\n")
		}

		yamlData, err := yaml.Marshal(cfg)
		if err != nil {
			return goerr.Wrap(err, "marshal config")
		}

		out := cmd.OutOrStdout()
		fmt.Fprint(out, string(yamlData))
		fmt.Fprintln(out)
		fmt.Fprintf(out, "# API keys: llm=%s search=%s rerank=%s\n",
			keyState(cfg.LLM.APIKey), keyState(cfg.Search.APIKey), keyState(cfg.Rerank.APIKey))

		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "\nWarning: %v\n", err)
		}
		return nil
	},
}

func keyState(key string) string {
	if key == "" {
		return "unset"
	}
	return "set"
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize default configuration file",
	Long:  `Create a default configuration file at ~/.claimcheck/config.yaml with all available options.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		home, err := os.UserHomeDir()
		if err != nil {
			return goerr.Wrap(err, "find home directory")
		}

		configPath := filepath.Join(home, ".claimcheck", "config.yaml")
		if err := writeDefaultConfig(configPath); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "✓ Created default configuration: %s\n", configPath)
		fmt.Fprintf(out, "\nTo view the configuration:\n")
		fmt.Fprintf(out, "  claimcheck config show\n")
		fmt.Fprintf(out, "\nTo customize, edit the file with your preferred editor:\n")
		fmt.Fprintf(out, "  $EDITOR %s\n\n", configPath)
		return nil
	},
}

const configHeader = `# claimcheck configuration file
#
# Configuration hierarchy (highest to lowest priority):
#   1. CLI flags
#   2. Environment variables (CLAIMCHECK_*, e.g. CLAIMCHECK_LLM_MODEL)
#   3. This config file
#   4. Built-in defaults

`

const configFooter = `
# API keys are read from the environment (or a .env file), never from this file:
#   export OPENAI_API_KEY=sk-...
#   export ANTHROPIC_API_KEY=sk-ant-...
#   export GEMINI_API_KEY=...
#   export TAVILY_API_KEY=tvly-...
#   export COHERE_API_KEY=...        # only with rerank.provider: cohere
#   export OLLAMA_BASE_URL=http://localhost:11434
`

// writeDefaultConfig writes the default configuration to path, refusing to overwrite
func writeDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return goerr.New("config file already exists; delete it first to recreate", goerr.V("path", path))
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return goerr.Wrap(err, "create config directory")
	}

	yamlData, err := yaml.Marshal(model.DefaultConfig())
	if err != nil {
		return goerr.Wrap(err, "marshal config")
	}

	content := configHeader + string(yamlData) + configFooter
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return goerr.Wrap(err, "write config file", goerr.V("path", path))
	}
	return nil
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}
