package main

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/loqalabs/loqa-interpret/internal/recognition"
	"github.com/loqalabs/loqa-interpret/internal/session"
	"github.com/loqalabs/loqa-interpret/internal/transcript"
	"github.com/spf13/cobra"
)

func newReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay <events.jsonl>",
		Short: "Run a session over recorded recognition events and print its updates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			delay, _ := cmd.Flags().GetDuration("delay")
			idle, _ := cmd.Flags().GetDuration("idle")
			modeName, _ := cmd.Flags().GetString("mode")
			from, _ := cmd.Flags().GetString("from")
			to, _ := cmd.Flags().GetString("to")
			server, _ := cmd.Flags().GetString("server")

			mode, err := transcript.ParseMode(modeName)
			if err != nil {
				return err
			}
			scripts, err := recognition.ReadScripts(f, delay)
			if err != nil {
				return fmt.Errorf("read events: %w", err)
			}
			translator, err := newTranslator(cmd, cfg, server)
			if err != nil {
				return err
			}
			if from == "" {
				from = cfg.Session.SourceLang
			}
			if to == "" {
				to = cfg.Session.TargetLang
			}

			printer := newPrinter(cmd.OutOrStdout())
			s := session.New(cmd.Context(), "replay", cfg.Session, session.Deps{
				Recognizer: recognition.NewScripted(scripts...),
				Translator: translator,
				Listener:   printer,
				Logger:     newLogger(cmd, cfg),
			})
			defer s.Close()

			if err := s.Start(session.StartOptions{SourceLang: from, TargetLang: to, Mode: mode}); err != nil {
				return err
			}
			if idle <= 0 {
				idle = time.Duration(cfg.Session.DebounceMS)*time.Millisecond + 2*time.Second
			}
			printer.waitIdle(cmd.Context().Done(), idle)
			s.Stop()
			return nil
		},
	}
	cmd.Flags().Duration("delay", 50*time.Millisecond, "Pause before each recorded event")
	cmd.Flags().Duration("idle", 0, "Exit after this long without updates (default debounce + 2s)")
	cmd.Flags().String("mode", "accumulating", "Transcript mode: accumulating or conservative")
	cmd.Flags().String("from", "", "Source language (default from configuration)")
	cmd.Flags().String("to", "", "Target language (default from configuration)")
	cmd.Flags().String("server", "", "Base URL of a running server; translate locally when empty")
	return cmd
}

// printer writes one line per session change.
type printer struct {
	mu       sync.Mutex
	w        io.Writer
	activity chan struct{}
}

func newPrinter(w io.Writer) *printer {
	return &printer{w: w, activity: make(chan struct{}, 1)}
}

func (p *printer) line(kind, text string) {
	p.mu.Lock()
	fmt.Fprintf(p.w, "%-11s %s\n", kind, text)
	p.mu.Unlock()
	select {
	case p.activity <- struct{}{}:
	default:
	}
}

func (p *printer) StateChanged(s session.State) { p.line("state", s.String()) }
func (p *printer) DisplayChanged(text string)   { p.line("display", text) }
func (p *printer) Translated(text string)       { p.line("translated", text) }
func (p *printer) Notice(n session.Notice)      { p.line("notice", n.Level+": "+n.Text) }
func (p *printer) Restarting(v bool)            { p.line("restarting", fmt.Sprint(v)) }

// waitIdle returns once no change has been printed for idle, or done closes.
func (p *printer) waitIdle(done <-chan struct{}, idle time.Duration) {
	timer := time.NewTimer(idle)
	defer timer.Stop()
	for {
		select {
		case <-done:
			return
		case <-timer.C:
			return
		case <-p.activity:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(idle)
		}
	}
}
