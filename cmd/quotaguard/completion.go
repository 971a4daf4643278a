package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion script for Quotaguard.

To load completions:

Bash:
  $ source <(quotaguard completion bash)
  # To load permanently:
  $ quotaguard completion bash > /etc/bash_completion.d/quotaguard

Zsh:
  $ quotaguard completion zsh > "${fpath[1]}/_quotaguard"
  $ compinit

Fish:
  $ quotaguard completion fish | source
  # To load permanently:
  $ quotaguard completion fish > ~/.config/fish/completions/quotaguard.fish

PowerShell:
  PS> quotaguard completion powershell | Out-String | Invoke-Expression
  # To load permanently, add to your PowerShell profile
`,
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	Args:      cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(cmd.OutOrStdout())
		case "zsh":
			return rootCmd.GenZshCompletion(cmd.OutOrStdout())
		case "fish":
			return rootCmd.GenFishCompletion(cmd.OutOrStdout(), true)
		case "powershell":
			return rootCmd.GenPowerShellCompletion(cmd.OutOrStdout())
		default:
			return fmt.Errorf("unsupported shell: %s", args[0])
		}
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
}
