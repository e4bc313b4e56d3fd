package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/samzong/gco/internal/config"
	"github.com/samzong/gco/internal/llm"
	"github.com/samzong/gco/internal/refine"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Manage gco settings",
		Long: `Manage gco settings: LLM refinement, OpenAI connection, review backend,
remote and trunk overrides, and the branch name prefix.`,
	}

	configGetCmd = &cobra.Command{
		Use:   "get [KEY]",
		Short: "Show effective settings",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runConfigGet,
	}

	configSetCmd = &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Set a setting",
		Args:  cobra.ExactArgs(2),
		RunE:  runConfigSet,
	}

	configSetKeyCmd = &cobra.Command{
		Use:   "set-key",
		Short: "Store the OpenAI API key, read without echo",
		Args:  cobra.NoArgs,
		RunE:  runConfigSetKey,
	}

	configPathCmd = &cobra.Command{
		Use:   "path",
		Short: "Print the settings file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			fmt.Fprintln(outWriter(), settings.Path())
			return nil
		},
	}

	configTestCmd = &cobra.Command{
		Use:   "test",
		Short: "Send one request to the configured model to check the key and endpoint",
		Args:  cobra.NoArgs,
		RunE:  runConfigTest,
	}

	configTemplatesCmd = &cobra.Command{
		Use:   "templates",
		Short: "List builtin prompt templates for llm.prompt_template",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			names := make([]string, 0, len(refine.GetBuiltinTemplates()))
			for name := range refine.GetBuiltinTemplates() {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintln(outWriter(), name)
			}
			fmt.Fprintln(outWriter(), "Any other value is read as a path to a YAML or plain text template.")
		},
	}
)

func init() {
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configSetKeyCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configTestCmd)
	configCmd.AddCommand(configTemplatesCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigGet(_ *cobra.Command, args []string) error {
	settings, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	keys := config.KnownKeys()
	if len(args) == 1 {
		keys = []string{strings.ToLower(args[0])}
	}
	for _, key := range keys {
		value := settings.Get(key)
		if key == config.KeyAPIKey && value != "" {
			value = maskSecret(value)
		}
		if len(args) == 1 {
			fmt.Fprintln(outWriter(), value)
			continue
		}
		fmt.Fprintf(outWriter(), "%s = %s\n", key, value)
	}
	return nil
}

func runConfigSet(_ *cobra.Command, args []string) error {
	settings, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if err := settings.Set(args[0], args[1]); err != nil {
		return err
	}
	if err := settings.Save(); err != nil {
		return err
	}

	fmt.Fprintf(outWriter(), "Set %s\n", strings.ToLower(args[0]))
	if strings.EqualFold(args[0], config.KeyModel) && !isSuggestedModel(args[1]) {
		fmt.Fprintf(outWriter(), "Note: commonly used models are %s\n", strings.Join(config.GetSuggestedModels(), ", "))
	}
	return nil
}

func runConfigSetKey(cmd *cobra.Command, _ []string) error {
	settings, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	fmt.Fprint(errWriter(), "OpenAI API key: ")
	key, err := readSecret(cmd.InOrStdin())
	fmt.Fprintln(errWriter())
	if err != nil {
		return fmt.Errorf("failed to read API key: %w", err)
	}
	if key == "" {
		return errors.New("API key must not be empty")
	}

	if err := settings.Set(config.KeyAPIKey, key); err != nil {
		return err
	}
	if err := settings.Save(); err != nil {
		return err
	}
	fmt.Fprintf(outWriter(), "API key saved to %s\n", settings.Path())
	return nil
}

func runConfigTest(cmd *cobra.Command, _ []string) error {
	settings, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	cfg, err := settings.Config()
	if err != nil {
		return err
	}

	client := llm.NewClient(llm.Options{
		APIKey:    cfg.APIKey,
		BaseURL:   cfg.APIBase,
		Model:     cfg.Model,
		Timeout:   cfg.LLMTimeout(),
		MaxTokens: cfg.MaxTokens,
	})
	if err := client.TestConnection(cmd.Context()); err != nil {
		return fmt.Errorf("model %s is not reachable: %w", client.Model(), err)
	}
	fmt.Fprintf(outWriter(), "Model %s responded\n", client.Model())
	if !cfg.LLMEnabled {
		fmt.Fprintf(outWriter(), "Refinement is off; enable it with: gco config set %s true\n", config.KeyLLMEnabled)
	}
	return nil
}

// readSecret reads one line without echo from a terminal, or plainly from
// anything else so keys can be piped in.
func readSecret(in io.Reader) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func maskSecret(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:3] + "..." + s[len(s)-4:]
}

func isSuggestedModel(model string) bool {
	for _, m := range config.GetSuggestedModels() {
		if m == model {
			return true
		}
	}
	return false
}
