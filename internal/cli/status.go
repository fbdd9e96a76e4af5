package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/soyeahso/nerdson/internal/config"
	"github.com/soyeahso/nerdson/internal/policy"
	"github.com/soyeahso/nerdson/internal/version"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show configuration summary and credential status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "nerdson %s (commit %s)\n\n", version.Version, version.Commit)

			fmt.Fprintf(out, "Config:   %s\n", paths.Config)
			fmt.Fprintf(out, "Data:     %s\n", paths.Data)
			fmt.Fprintln(out)

			cfg, err := config.Load(paths.Config)
			if err != nil {
				fmt.Fprintf(out, "Config:   error loading: %v\n", err)
				return nil
			}

			fmt.Fprintf(out, "Gateway:  port=%d bind=%s webhook=%s\n",
				cfg.Gateway.Port, cfg.Gateway.Bind, cfg.Gateway.WebhookPath)
			fmt.Fprintf(out, "WhatsApp: from=%s credentials=%s\n",
				cfg.WhatsApp.From, present(cfg.WhatsApp.AccountSID != "" && cfg.WhatsApp.AuthToken != ""))
			fmt.Fprintf(out, "OpenAI:   model=%s transcription=%s key=%s\n",
				cfg.OpenAI.Model, cfg.OpenAI.TranscriptionModel, present(cfg.OpenAI.APIKey != ""))

			hours := cfg.Policy.HumanHours
			days := "mon-fri"
			if len(hours.Days) > 0 {
				days = strings.Join(hours.Days, ",")
			}
			fmt.Fprintf(out, "Policy:   timezone=%s human-hours=%s %s-%s\n",
				cfg.Policy.Timezone, days, orDefault(hours.Start, policy.DefaultHumanStart), orDefault(hours.End, policy.DefaultHumanEnd))

			persona := cfg.Persona.PromptFile
			if persona == "" {
				persona = "(embedded default)"
			}
			fmt.Fprintf(out, "Persona:  %s\n", persona)
			fmt.Fprintf(out, "Operator: feed=%s\n", enabled(cfg.Operator.Token != ""))
			if cfg.Archive.Enabled {
				fmt.Fprintf(out, "Archive:  %s\n", paths.ArchivePath(cfg.Archive))
			} else {
				fmt.Fprintln(out, "Archive:  disabled")
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				fmt.Fprintf(out, "\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Fprintf(out, "  - %s\n", issue)
				}
			}

			return nil
		},
	}

	return cmd
}

func present(ok bool) string {
	if ok {
		return "set"
	}
	return "missing"
}

func enabled(ok bool) string {
	if ok {
		return "enabled"
	}
	return "disabled"
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
