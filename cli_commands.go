package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"chat_server/auth"
	"chat_server/client"
	"chat_server/config"
	"chat_server/models"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

var (
	tokenTTL    time.Duration
	watchServer string
	watchToken  string
	watchUser   string
	watchPoll   time.Duration

	tokenCmd = &cobra.Command{
		Use:   "token [userId]",
		Short: "Mint a session token for a user (development)",
		Args:  cobra.ExactArgs(1),
		RunE:  runToken,
	}

	seedCmd = &cobra.Command{
		Use:   "seed [users.yaml]",
		Short: "Load users from a YAML file into the user directory",
		Args:  cobra.ExactArgs(1),
		RunE:  runSeed,
	}

	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Follow one user's chat request buckets from the command line",
		RunE:  runWatch,
	}
)

func init() {
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")

	watchCmd.Flags().StringVar(&watchServer, "server", "http://localhost:8080", "server base URL")
	watchCmd.Flags().StringVar(&watchToken, "token", os.Getenv("CHAT_TOKEN"), "session token (default $CHAT_TOKEN)")
	watchCmd.Flags().StringVar(&watchUser, "user", "", "user id the token belongs to")
	watchCmd.Flags().DurationVar(&watchPoll, "poll", client.DefaultPollInterval, "poll interval")
	watchCmd.MarkFlagRequired("user")
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	token, expires, err := auth.NewJWTVerifier(cfg.JWTSecret, tokenTTL).Issue(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expires.Format(time.RFC3339))
	return nil
}

type seedFile struct {
	Users []models.User `yaml:"users" validate:"required,dive"`
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.StoreBackend == config.BackendBadger && cfg.BadgerPath == "" {
		return fmt.Errorf("seeding an in-memory store has no effect, set BADGER_PATH")
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse %s: %w", args[0], err)
	}
	if err := validator.New().Struct(file); err != nil {
		return fmt.Errorf("invalid seed file: %w", err)
	}

	ctx := cmd.Context()
	backend, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer backend.Close()

	now := time.Now().UTC()
	for _, u := range file.Users {
		if u.CreatedAt.IsZero() {
			u.CreatedAt = now
		}
		if err := backend.Users.Put(ctx, u); err != nil {
			return fmt.Errorf("put user %s: %w", u.UserID, err)
		}
	}
	logger.Info("seeded users", "count", len(file.Users))
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	if watchToken == "" {
		return fmt.Errorf("a session token is required (--token or $CHAT_TOKEN)")
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	api := client.NewAPIClient(watchServer, watchToken)
	view := client.NewView(api, watchUser, nil)
	last := ""
	view.OnChange(func(b client.Buckets) {
		line := formatBuckets(b)
		if line != last {
			last = line
			fmt.Fprintf(out, "%s %s\n", time.Now().Format("15:04:05"), line)
		}
	})

	push := &client.PushClient{BaseURL: watchServer, Token: watchToken}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return view.Run(ctx, watchPoll) })
	g.Go(func() error {
		err := push.Run(ctx, func(f models.PushFrame) {
			if err := view.HandleEvent(ctx, f.Event); err != nil && ctx.Err() == nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "refresh after %s: %s\n", f.Event, client.Describe(err))
			}
		})
		if err != nil && ctx.Err() == nil {
			// Polling keeps the view current without push.
			fmt.Fprintf(cmd.ErrOrStderr(), "push unavailable: %v\n", err)
			return nil
		}
		return err
	})
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func formatBuckets(b client.Buckets) string {
	ids := func(users []models.PublicUser) string {
		parts := make([]string, len(users))
		for i, u := range users {
			parts[i] = u.ID
		}
		return strings.Join(parts, ",")
	}
	reqs := func(views []models.ChatRequestView, counterpart func(models.ChatRequestView) string) string {
		parts := make([]string, len(views))
		for i, v := range views {
			parts[i] = counterpart(v)
		}
		return strings.Join(parts, ",")
	}
	return fmt.Sprintf("accepted=[%s] incoming=[%s] outgoing=[%s] discoverable=[%s]",
		ids(b.Accepted),
		reqs(b.Incoming, func(v models.ChatRequestView) string { return v.SenderID }),
		reqs(b.Outgoing, func(v models.ChatRequestView) string { return v.ReceiverID }),
		ids(b.Discoverable),
	)
}
