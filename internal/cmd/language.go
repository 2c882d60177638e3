package cmd

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/wethinkt/go-cdrintel/internal/config"
	"github.com/wethinkt/go-cdrintel/internal/i18n"
)

var languageCmd = &cobra.Command{
	Use:   "language [lang]",
	Short: "Get or set the display language",
	Long: `Get or set the language of command output and analysis text. Use a
BCP 47 tag (e.g., en, es). CDRINTEL_LANG overrides the saved setting.

Examples:
  cdrintel language      # show current language
  cdrintel language es   # set to Spanish`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			fmt.Fprintln(stdout, i18n.Tf("cmd.language.current", "Current language: %s", i18n.ResolveLocale(cfg.Lang)))
			fmt.Fprintln(stdout, i18n.Tf("cmd.language.available", "Available: %s", strings.Join(i18n.Available(), ", ")))
			return nil
		}

		saved, err := config.LoadFile()
		if err != nil {
			return err
		}
		saved.Lang = args[0]
		if err := config.Save(saved); err != nil {
			return err
		}
		i18n.Init(i18n.ResolveLocale(args[0]))
		fmt.Fprintln(stdout, i18n.Tf("cmd.language.set", "Language set to: %s", args[0]))
		if !i18n.Supports(args[0]) {
			fmt.Fprintln(stdout, color.YellowString(i18n.Tf("cmd.language.unsupported",
				"No translations for %s yet; output stays in English.", args[0])))
		}
		return nil
	},
}
