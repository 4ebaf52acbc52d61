package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/phishguard/phishguard/internal/adapters/message"
	"github.com/phishguard/phishguard/internal/core"
	"github.com/phishguard/phishguard/internal/di"
	"github.com/phishguard/phishguard/internal/factory"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newScanCmd(flags *di.CLIFlags) *cobra.Command {
	var (
		principalID string
		req         core.ScanRequest
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan a principal's mailbox",
		Long:  "Fetches recent messages, classifies and stores each of them and alerts on phishing",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(flags, func(d *deps) error {
				principal, err := d.stores.GetPrincipal(cmd.Context(), principalID)
				if err != nil {
					return fmt.Errorf("failed to resolve principal %s: %w", principalID, err)
				}

				outcome, err := d.service.Scan(cmd.Context(), principal, req)
				if err != nil {
					if outcome != nil {
						printOutcome(cmd.OutOrStdout(), principal, outcome)
					}
					return fmt.Errorf("%s: %w", core.UserMessage(err), err)
				}

				if asJSON {
					return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
						"scanned":           outcome.Scanned,
						"phishing_detected": outcome.Flagged,
						"emails":            outcome.Results,
					})
				}
				printOutcome(cmd.OutOrStdout(), principal, outcome)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&principalID, "principal", "p", "", "Principal id")
	cmd.Flags().IntVar(&req.MaxMessages, "max", 0, "Maximum number of messages (default from scan.max_messages)")
	cmd.Flags().StringVar(&req.Query, "query", "", "Mailbox search query (default from scan.query)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the outcome as JSON")
	_ = cmd.MarkFlagRequired("principal")
	return cmd
}

func newStatsCmd(flags *di.CLIFlags) *cobra.Command {
	var principalID string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show result totals for a principal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(flags, func(d *deps) error {
				stats, err := d.service.Stats(cmd.Context(), principalID)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), stats)
			})
		},
	}

	cmd.Flags().StringVarP(&principalID, "principal", "p", "", "Principal id")
	_ = cmd.MarkFlagRequired("principal")
	return cmd
}

func newLatestCmd(flags *di.CLIFlags) *cobra.Command {
	var (
		principalID string
		limit       int
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "latest",
		Short: "List the most recent results for a principal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(flags, func(d *deps) error {
				results, err := d.service.Latest(cmd.Context(), principalID, limit)
				if err != nil {
					return err
				}
				if results == nil {
					results = []core.ScanResult{}
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), results)
				}
				printResults(cmd.OutOrStdout(), results)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&principalID, "principal", "p", "", "Principal id")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of results")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")
	_ = cmd.MarkFlagRequired("principal")
	return cmd
}

func newClassifyCmd(flags *di.CLIFlags) *cobra.Command {
	var inputFile string

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Score a single RFC 5322 message",
		Long:  "Reads a message from --file or stdin and prints its phishing score without storing it",
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if inputFile != "" {
				f, err := os.Open(inputFile)
				if err != nil {
					return fmt.Errorf("failed to open input file: %w", err)
				}
				defer f.Close()
				in = f
			}

			msg, err := message.Parse(in)
			if err != nil {
				return err
			}

			return withDeps(flags, func(d *deps) error {
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "=== Message ===\n")
				fmt.Fprintf(out, "From: %s\n", msg.From)
				fmt.Fprintf(out, "Subject: %s\n", msg.Subject)
				fmt.Fprintf(out, "Text length: %d bytes\n\n", len(msg.Text))

				start := time.Now()
				score, label, err := d.service.Predict(cmd.Context(), msg.Text)
				if err != nil {
					d.logger.Error("Failed to classify message", zap.Error(err))
					return fmt.Errorf("%s: %w", core.UserMessage(err), err)
				}

				fmt.Fprintf(out, "=== Result ===\n")
				fmt.Fprintf(out, "Phishing: %t\n", label == core.LabelPhishing)
				fmt.Fprintf(out, "Score: %.4f\n", score)
				fmt.Fprintf(out, "Model: %s\n", modelVersion(d))
				fmt.Fprintf(out, "Processing time: %v\n", time.Since(start))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&inputFile, "file", "f", "", "Input message file (stdin if not specified)")
	return cmd
}

func newPrincipalCmd(flags *di.CLIFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "principal",
		Short: "Manage principals",
	}

	var id, email string
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Create or update a principal",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" || email == "" {
				return errors.New("--id and --email are required")
			}
			return withStore(flags, func(stores factory.Store, logger *zap.Logger) error {
				if err := stores.PutPrincipal(cmd.Context(), &core.Principal{ID: id, Email: email}); err != nil {
					return err
				}
				logger.Info("Principal saved", zap.String("principal_id", id))
				fmt.Fprintf(cmd.OutOrStdout(), "principal %s <%s> saved\n", id, email)
				return nil
			})
		},
	}
	addCmd.Flags().StringVar(&id, "id", "", "Principal id")
	addCmd.Flags().StringVar(&email, "email", "", "Mailbox address; alerts are sent to and from it")

	cmd.AddCommand(addCmd)
	return cmd
}

func newMigrateCmd(flags *di.CLIFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Opening the store applies pending migrations
			return withStore(flags, func(stores factory.Store, logger *zap.Logger) error {
				fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
				return nil
			})
		},
	}
}

func modelVersion(d *deps) string {
	if v := d.service.ModelVersion(); v != "" {
		return v
	}
	return "(none)"
}

func printOutcome(out io.Writer, principal *core.Principal, outcome *core.ScanOutcome) {
	fmt.Fprintf(out, "=== Scan ===\n")
	fmt.Fprintf(out, "Principal: %s <%s>\n", principal.ID, principal.Email)
	fmt.Fprintf(out, "Scanned: %d\n", outcome.Scanned)
	fmt.Fprintf(out, "Phishing detected: %d\n", outcome.Flagged)
	fmt.Fprintf(out, "Alerts sent: %d (failed: %d)\n", outcome.AlertsSent, outcome.AlertsFailed)
	for _, f := range outcome.Failures {
		fmt.Fprintf(out, "Failed %s at %s: %v\n", f.MessageID, f.Stage, f.Err)
	}
	fmt.Fprintln(out)
	printResults(out, outcome.Results)
}

func printResults(out io.Writer, results []core.ScanResult) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SCORE\tLABEL\tSENDER\tSUBJECT\tCREATED")
	for _, r := range results {
		label := "benign"
		if r.Label == core.LabelPhishing {
			label = "phishing"
		}
		fmt.Fprintf(w, "%.4f\t%s\t%s\t%s\t%s\n", r.Score, label, r.Sender, r.Subject, r.CreatedAt.Format(time.RFC3339))
	}
	w.Flush()
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
