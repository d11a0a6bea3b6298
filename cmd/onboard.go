package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/fbarrios/folio/config"
	"github.com/fbarrios/folio/provider"
)

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Create the folio configuration",
	Long:  `Create the folio configuration directory and config.yaml interactively.`,
	RunE:  runOnboard,
}

func init() {
	rootCmd.AddCommand(onboardCmd)
}

func runOnboard(cmd *cobra.Command, _ []string) error {
	configPath, err := config.ConfigPath()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if _, err := os.Stat(configPath); err == nil {
		fmt.Fprintln(out, "Config already exists at:", configPath)
		fmt.Fprintln(out, "To reconfigure, edit the file directly or delete it first.")
		return nil
	}

	var (
		selectedProvider string
		selectedModel    string
		apiKey           string
		addr             = "127.0.0.1:3000"
		useNotion        bool
	)

	// Step 1: upstream provider
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Choose the model provider").
				Description("The relay streams replies from this provider.").
				Options(buildProviderOptions()...).
				Value(&selectedProvider),
		),
	).Run()
	if err != nil {
		return err
	}

	// Step 2: model and key
	reg, _ := provider.Registration(selectedProvider)
	keyDesc := "Leave empty to use $" + reg.EnvKey
	if reg.KeyURL != "" {
		keyDesc += ". Create one at " + reg.KeyURL
	}
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Choose model for "+selectedProvider).
				Description("The first option is the recommended default.").
				Options(buildModelOptions(selectedProvider)...).
				Value(&selectedModel),
			huh.NewInput().
				Title("API key").
				Description(keyDesc).
				EchoMode(huh.EchoModePassword).
				Value(&apiKey),
			huh.NewInput().
				Title("Relay listen address").
				Validate(func(s string) error {
					if !strings.Contains(s, ":") {
						return fmt.Errorf("address must be host:port")
					}
					return nil
				}).
				Value(&addr),
			huh.NewConfirm().
				Title("Serve projects from Notion?").
				Description("You can skip and configure later in config.yaml.").
				Value(&useNotion),
		),
	).Run()
	if err != nil {
		return err
	}

	var notionToken, notionDB string
	if useNotion {
		required := func(name string) func(string) error {
			return func(s string) error {
				if strings.TrimSpace(s) == "" {
					return fmt.Errorf("%s is required", name)
				}
				return nil
			}
		}
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Notion integration token").
					Description("Create an internal integration at https://www.notion.so/my-integrations").
					EchoMode(huh.EchoModePassword).
					Validate(required("token")).
					Value(&notionToken),
				huh.NewInput().
					Title("Projects database ID").
					Description("Share the database with the integration, then copy the ID from its URL.").
					Validate(required("database ID")).
					Value(&notionDB),
			),
		).Run()
		if err != nil {
			return err
		}
	}

	cfg := config.DefaultConfig()
	cfg.Gateway.Provider = selectedProvider
	cfg.Gateway.Model = selectedModel
	cfg.Gateway.APIKey = strings.TrimSpace(apiKey)
	cfg.Relay.Addr = strings.TrimSpace(addr)
	cfg.Client.RelayURL = "http://" + cfg.Relay.Addr
	cfg.Notion.Token = strings.TrimSpace(notionToken)
	cfg.Notion.DatabaseID = strings.TrimSpace(notionDB)

	if err := cfg.SaveFile(configPath); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "folio initialized successfully!")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "  Config:", configPath)
	fmt.Fprintln(out, "  Provider:", selectedProvider)
	fmt.Fprintln(out, "  Model:", selectedModel)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Run 'folio serve' to start the relay, then 'folio chat'.")
	return nil
}

func buildProviderOptions() []huh.Option[string] {
	names := provider.SupportedProviders()
	options := make([]huh.Option[string], 0, len(names))
	for _, name := range names {
		label := name + " (" + strings.Join(provider.SupportedModelsForProvider(name), ", ") + ")"
		if name == "gateway" {
			label += " [Recommended]"
			options = append([]huh.Option[string]{huh.NewOption(label, name)}, options...)
			continue
		}
		options = append(options, huh.NewOption(label, name))
	}
	return options
}

func buildModelOptions(providerName string) []huh.Option[string] {
	models := provider.SupportedModelsForProvider(providerName)
	options := make([]huh.Option[string], 0, len(models))
	for _, m := range models {
		options = append(options, huh.NewOption(m, m))
	}
	return options
}
