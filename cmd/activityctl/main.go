// Package main provides activityctl, an operator CLI for the activity directory store.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"example.com/mergington/internal/config"
	"example.com/mergington/internal/domain"
	"example.com/mergington/internal/fixtures"
	"example.com/mergington/internal/persistence"
)

func main() {
	cfg := config.Load()
	if err := rootCmd(&cfg, storeOpener(&cfg)).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// session is an opened store plus the service on top of it.
type session struct {
	service *domain.Service
	close   func()
}

type opener func(context.Context) (*session, error)

// storeOpener opens the backend named by cfg at call time, after flags are parsed.
func storeOpener(cfg *config.Config) opener {
	return func(ctx context.Context) (*session, error) {
		handle, err := persistence.Open(ctx, *cfg)
		if err != nil {
			return nil, err
		}
		service := domain.NewService(handle.Store, domain.WithCapacityEnforcement(cfg.EnforceCapacity))
		return &session{service: service, close: handle.Close}, nil
	}
}

func rootCmd(cfg *config.Config, open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "activityctl",
		Short: "Inspect and edit the Mergington activity directory",
		Long: `Operate directly on the configured activity store.

Examples:
  activityctl seed                                   # Load default activities into an empty store
  activityctl list --json                            # Dump the directory as JSON
  activityctl signup "Chess Club" kim@mergington.edu
  activityctl unregister "Chess Club" kim@mergington.edu
  activityctl --backend mongo list                   # Override STORE_BACKEND
`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfg.StoreBackend, "backend", cfg.StoreBackend, "Store backend (postgres, mongo, memory)")
	cmd.PersistentFlags().StringVar(&cfg.SeedFile, "seed-file", cfg.SeedFile, "YAML fixture file; empty uses the built-in defaults")
	cmd.PersistentFlags().BoolVar(&cfg.EnforceCapacity, "enforce-capacity", cfg.EnforceCapacity, "Reject signups once an activity is full")

	cmd.AddCommand(
		seedCmd(open, cfg),
		listCmd(open),
		rosterCmd(open, "signup", "Add a student to an activity roster"),
		rosterCmd(open, "unregister", "Remove a student from an activity roster"),
	)
	return cmd
}

func withSession(cmd *cobra.Command, open opener, fn func(context.Context, *session) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := open(ctx)
	if err != nil {
		return err
	}
	defer s.close()
	return fn(ctx, s)
}

func seedCmd(open opener, cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the default activities when the store is empty",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defaults, err := fixtures.Load(cfg.SeedFile)
			if err != nil {
				return err
			}
			return withSession(cmd, open, func(ctx context.Context, s *session) error {
				inserted, err := s.service.Seed(ctx, defaults)
				if err != nil {
					return err
				}
				if inserted == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Store already populated; nothing to seed")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d activities\n", inserted)
				return nil
			})
		},
	}
}

func listCmd(open opener) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List activities with their rosters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, open, func(ctx context.Context, s *session) error {
				activities, err := s.service.ListActivities(ctx)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), activities)
				}
				return writeTable(cmd.OutOrStdout(), activities)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output the directory as JSON")
	return cmd
}

func rosterCmd(open opener, action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <activity> <email>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, open, func(ctx context.Context, s *session) error {
				mutate := s.service.Signup
				if action == "unregister" {
					mutate = s.service.Unregister
				}
				message, err := mutate(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), message)
				return nil
			})
		},
	}
}

type activityJSON struct {
	Description     string   `json:"description"`
	Schedule        string   `json:"schedule"`
	MaxParticipants int      `json:"max_participants"`
	Participants    []string `json:"participants"`
}

func writeJSON(w io.Writer, activities []domain.Activity) error {
	out := make(map[string]activityJSON, len(activities))
	for _, a := range activities {
		out[a.Name] = activityJSON{
			Description:     a.Description,
			Schedule:        a.Schedule,
			MaxParticipants: a.MaxParticipants,
			Participants:    a.Participants,
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func writeTable(w io.Writer, activities []domain.Activity) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSCHEDULE\tENROLLED\tSPOTS LEFT")
	for _, a := range activities {
		fmt.Fprintf(tw, "%s\t%s\t%d/%d\t%d\n", a.Name, a.Schedule, len(a.Participants), a.MaxParticipants, a.SpotsLeft())
	}
	return tw.Flush()
}
