package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/loqalabs/loqa-interpret/internal/config"
	"github.com/loqalabs/loqa-interpret/internal/llm"
	"github.com/loqalabs/loqa-interpret/internal/translate"
	"github.com/spf13/cobra"
)

func newTranslateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "translate [text...]",
		Short: "Translate text once, locally or through a running server",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			to, _ := cmd.Flags().GetString("to")
			from, _ := cmd.Flags().GetString("from")
			server, _ := cmd.Flags().GetString("server")

			translator, err := newTranslator(cmd, cfg, server)
			if err != nil {
				return err
			}
			res, err := translator.Translate(cmd.Context(), translate.Request{
				Text:       strings.Join(args, " "),
				TargetLang: to,
				SourceLang: from,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Translated)
			return nil
		},
	}
	cmd.Flags().String("to", "es", "Target language code")
	cmd.Flags().String("from", "", "Source language code (auto when empty)")
	cmd.Flags().String("server", "", "Base URL of a running server; translate locally when empty")
	return cmd
}

// newTranslator returns an HTTP client for server, or a gateway over the
// configured provider.
func newTranslator(cmd *cobra.Command, cfg config.Config, server string) (translate.Translator, error) {
	if server != "" {
		return translate.NewClient(server, time.Duration(cfg.Translate.TimeoutMS)*time.Millisecond), nil
	}
	gen, err := llm.New(cfg.Translate)
	if err != nil {
		return nil, err
	}
	return translate.NewGateway(gen, cfg.Translate, newLogger(cmd, cfg)), nil
}
