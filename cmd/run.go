package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/quizchain/internal/logging"
	"github.com/JakeFAU/quizchain/internal/quiz"
)

func newRunCmd() *cobra.Command {
	var (
		startURL string
		email    string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Runs one quiz chain and prints the result",
		Long: `Runs the workflow from --url without the HTTP front end and prints the
result as JSON. The secret defaults to the configured auth.secret.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := resolveRuntime(cmd.Context())
			if err != nil {
				return err
			}
			if startURL == "" || email == "" {
				return errors.New("--url and --email are required")
			}
			secret := rt.cfg.Auth.Secret
			rt.logger.Info("running quiz chain",
				zap.String("url", startURL),
				zap.String("email", email),
				logging.Secret("secret", secret),
			)

			res, err := rt.app.RunOnce(cmd.Context(), quiz.WorkflowRequest{
				StartURL: startURL,
				Email:    email,
				Secret:   secret,
			})
			if err != nil {
				return errors.New(logging.Scrub(err.Error(), secret))
			}
			out, err := json.MarshalIndent(res.Finite(), "", "  ")
			if err != nil {
				return fmt.Errorf("encode result: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}
	cmd.Flags().StringVar(&startURL, "url", "", "first quiz page")
	cmd.Flags().StringVar(&email, "email", "", "email submitted with every answer")
	cmd.Flags().String("secret", "", "overrides auth.secret")
	return cmd
}
