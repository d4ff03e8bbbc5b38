package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/yungbote/companion-client/internal/app"
	"github.com/yungbote/companion-client/internal/domain/persona"
	"github.com/yungbote/companion-client/internal/lifecycle"
	"github.com/yungbote/companion-client/internal/notify"
	"github.com/yungbote/companion-client/internal/platform/apierr"
	"github.com/yungbote/companion-client/internal/platform/envutil"
	"github.com/yungbote/companion-client/internal/platform/logger"
)

type cli struct {
	out io.Writer
	in  *bufio.Reader
	yes bool

	rt *app.Runtime
}

func main() {
	c := &cli{out: os.Stdout, in: bufio.NewReader(os.Stdin)}
	err := c.root().Execute()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	c.rt.Close(ctx)
	cancel()
	if err != nil {
		var ae *apierr.Error
		if !errors.As(err, &ae) {
			// Lifecycle failures were already shown as notifications.
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func (c *cli) root() *cobra.Command {
	root := &cobra.Command{
		Use:           "companion",
		Short:         "Manage companion personas and their outfits",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.start(cmd.Context())
		},
	}
	root.PersistentFlags().BoolVarP(&c.yes, "yes", "y", false, "answer yes to every confirmation")

	root.AddCommand(
		c.listCmd(),
		c.refreshCmd(),
		c.createPersonaCmd(),
		c.createDressCmd(),
		c.renameCmd(),
		c.deleteCmd(),
		c.favoriteCmd(),
		c.equipCmd(),
		c.convertVideoCmd(),
		c.checkCmd(),
		c.dressesCmd(),
		c.watchCmd(),
	)
	return root
}

func (c *cli) start(ctx context.Context) error {
	log, err := logger.New(envutil.String("LOG_MODE", "production"))
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	cfg, err := app.LoadConfig(log)
	if err != nil {
		log.Error("invalid configuration", "error", err)
		return err
	}
	rt, err := app.NewRuntime(ctx, cfg, log, app.Ports{
		Decider:   lifecycle.DeciderFunc(c.confirm),
		Navigator: billingPrinter{out: c.out},
		Notifier:  notify.Func(c.print),
	})
	if err != nil {
		return err
	}
	c.rt = rt
	return rt.Orchestrator.FullRefresh(ctx)
}

func (c *cli) orch() *lifecycle.Orchestrator { return c.rt.Orchestrator }

func (c *cli) print(n notify.Notification) {
	if n.Kind == notify.KindRefreshed {
		return
	}
	mark := map[notify.Severity]string{
		notify.SeveritySuccess: "ok",
		notify.SeverityInfo:    "--",
		notify.SeverityWarning: "!!",
		notify.SeverityError:   "xx",
	}[n.Severity]
	if n.Celebrate {
		mark = "**"
	}
	fmt.Fprintf(c.out, "[%s] %s\n", mark, n.Message)
}

func (c *cli) confirm(_ context.Context, d lifecycle.Decision) bool {
	fmt.Fprintf(c.out, "%s [y/N] ", d.Message)
	if c.yes {
		fmt.Fprintln(c.out, "y")
		return true
	}
	line, err := c.in.ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

type billingPrinter struct{ out io.Writer }

func (b billingPrinter) OpenBilling(_ context.Context, personaKey string) {
	fmt.Fprintf(b.out, "Open the billing page to top up points (persona %s).\n", personaKey)
}

func (c *cli) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List companions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			active := c.orch().Effective()
			for i, p := range c.orch().Personas() {
				cursor := " "
				if active != nil && active.PersonaKey == p.PersonaKey {
					cursor = ">"
				}
				fmt.Fprintf(c.out, "%s %d. %-20s %-12s dresses=%d %s\n", cursor, i+1, p.PersonaName, p.PersonaKey, c.orch().Summary(p.PersonaKey).Count, badges(p))
			}
			return nil
		},
	}
}

func badges(p persona.Persona) string {
	var b []string
	if !p.Ready() {
		b = append(b, "generating")
	}
	if p.IsDefault() {
		b = append(b, "default")
	}
	if p.IsFavorite() {
		b = append(b, "favorite")
	}
	if p.VideoPending() {
		b = append(b, "video-pending")
	} else if p.HasVideo() {
		b = append(b, "video")
	}
	return strings.Join(b, ",")
}

func (c *cli) refreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Reload companions and loaded outfits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.orch().FullRefresh(cmd.Context())
		},
	}
}

func (c *cli) createPersonaCmd() *cobra.Command {
	var in lifecycle.PersonaInput
	var photo string
	cmd := &cobra.Command{
		Use:   "create-persona",
		Short: "Start generating a new companion from a photo",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if photo != "" {
				raw, err := os.ReadFile(photo)
				if err != nil {
					return fmt.Errorf("read photo: %w", err)
				}
				in.Photo = raw
			}
			return c.orch().CreatePersona(cmd.Context(), in)
		},
	}
	cmd.Flags().StringVar(&in.Name, "name", "", "companion name")
	cmd.Flags().StringVar(&in.Description, "description", "", "personality description")
	cmd.Flags().StringVar(&in.Gender, "gender", "", "gender")
	cmd.Flags().StringVar(&photo, "photo", "", "path to a reference photo")
	return cmd
}

func (c *cli) createDressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create-dress <persona> <description>",
		Short: "Start generating an outfit",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := c.resolve(args[0])
			if err != nil {
				return err
			}
			return c.orch().CreateDress(cmd.Context(), key, strings.Join(args[1:], " "))
		},
	}
}

func (c *cli) renameCmd() *cobra.Command {
	var name, category string
	cmd := &cobra.Command{
		Use:   "rename <persona>",
		Short: "Change a companion's name or category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := c.resolve(args[0])
			if err != nil {
				return err
			}
			var patch lifecycle.BasicPatch
			if cmd.Flags().Changed("name") {
				patch.Name = &name
			}
			if cmd.Flags().Changed("category") {
				patch.Category = &category
			}
			return c.orch().RenameOrUpdateBasic(cmd.Context(), key, patch)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVar(&category, "category", "", "new category")
	return cmd
}

func (c *cli) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <persona>",
		Short: "Delete a companion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := c.resolve(args[0])
			if err != nil {
				return err
			}
			return c.orch().DeletePersona(cmd.Context(), key)
		},
	}
}

func (c *cli) favoriteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "favorite <persona>",
		Short: "Toggle a companion's favorite flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := c.resolve(args[0])
			if err != nil {
				return err
			}
			_, err = c.orch().ToggleFavorite(cmd.Context(), key)
			return err
		},
	}
}

func (c *cli) equipCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "equip <persona> <dress-number|memory-key>",
		Short: "Wear a finished outfit",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := c.resolve(args[0])
			if err != nil {
				return err
			}
			dresses, err := c.orch().LoadDresses(cmd.Context(), key)
			if err != nil {
				return err
			}
			memoryKey := args[1]
			if n, err := strconv.Atoi(args[1]); err == nil && n >= 1 && n <= len(dresses) {
				memoryKey = dresses[n-1].MemoryKey
			}
			return c.orch().EquipDress(cmd.Context(), key, memoryKey)
		},
	}
}

func (c *cli) convertVideoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "convert-video <persona>",
		Short: "Animate the current look",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := c.resolve(args[0])
			if err != nil {
				return err
			}
			return c.orch().ConvertToVideo(cmd.Context(), key)
		},
	}
}

func (c *cli) checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <persona>",
		Short: "Check once whether pending generation has finished",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := c.resolve(args[0])
			if err != nil {
				return err
			}
			_, err = c.orch().CheckStatus(cmd.Context(), key)
			return err
		},
	}
}

func (c *cli) dressesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dresses <persona>",
		Short: "List a companion's outfits",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := c.resolve(args[0])
			if err != nil {
				return err
			}
			dresses, err := c.orch().LoadDresses(cmd.Context(), key)
			if err != nil {
				return err
			}
			p, _ := c.orch().Persona(key)
			for i, d := range dresses {
				state := "ready"
				if !d.Ready() {
					state = fmt.Sprintf("generating ~%ds", d.EstimateTime)
				}
				worn := " "
				if d.MemoryKey == p.HistoryKey {
					worn = "*"
				}
				fmt.Fprintf(c.out, "%s %d. %-12s %-16s %s\n", worn, i+1, d.MemoryKey, state, d.PromptText)
			}
			return nil
		},
	}
}

func (c *cli) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print notifications published by other clients (needs redis)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return c.rt.Watch(ctx, c.print)
		},
	}
}

// resolve accepts a persona key or a 1-based list position, and pins the
// result as the active companion.
func (c *cli) resolve(arg string) (string, error) {
	key := arg
	if n, err := strconv.Atoi(arg); err == nil {
		list := c.orch().Personas()
		if n < 1 || n > len(list) {
			return "", fmt.Errorf("no companion at position %d", n)
		}
		key = list[n-1].PersonaKey
	}
	if err := c.orch().SelectPersona(key); err != nil {
		return "", fmt.Errorf("unknown companion %q", arg)
	}
	return key, nil
}
