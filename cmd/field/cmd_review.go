package main

import (
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cnsr/cta-inspection/internal/session"
	"github.com/cnsr/cta-inspection/internal/workflow"
)

type reviewFlags struct {
	reason string
	yes    bool
}

var reviewOpts reviewFlags

var reviewCmd = &cobra.Command{
	Use:     "review",
	Aliases: []string{"supervisor"},
	Short:   "Validate or reject pending records",
}

var reviewPendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List records waiting for a decision",
	Args:  cobra.NoArgs,
	RunE:  runReviewPending,
}

var reviewValidateCmd = &cobra.Command{
	Use:   "validate <id>",
	Short: "Validate a pending record",
	Args:  cobra.ExactArgs(1),
	RunE:  runReviewValidate,
}

var reviewRejectCmd = &cobra.Command{
	Use:   "reject <id>",
	Short: "Reject a pending record with a reason",
	Args:  cobra.ExactArgs(1),
	RunE:  runReviewReject,
}

func init() {
	reviewValidateCmd.Flags().BoolVarP(&reviewOpts.yes, "yes", "y", false, "do not ask for confirmation")
	reviewRejectCmd.Flags().StringVar(&reviewOpts.reason, "reason", "", "rejection reason (prompted when empty)")

	reviewCmd.AddCommand(reviewPendingCmd)
	reviewCmd.AddCommand(reviewValidateCmd)
	reviewCmd.AddCommand(reviewRejectCmd)
}

// newReviewer loads the session and the current pending list.
func newReviewer(cmd *cobra.Command) (*workflow.Reviewer, *session.Session, error) {
	ctx := cmd.Context()
	sess, err := current.requireSession(ctx)
	if err != nil {
		return nil, nil, err
	}
	current.prompt.assumeYes = reviewOpts.yes
	r := workflow.NewReviewer(current.api, current.prompt)
	if _, err := r.Pending(ctx, sess); err != nil {
		return nil, nil, err
	}
	return r, sess, nil
}

func runReviewPending(cmd *cobra.Command, args []string) error {
	r, _, err := newReviewer(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	pending := r.List()
	printRecords(out, pending)
	if len(pending) > 0 {
		fmt.Fprintf(out, "%d fiche(s) en attente.\n", len(pending))
	}
	return nil
}

func runReviewValidate(cmd *cobra.Command, args []string) error {
	r, sess, err := newReviewer(cmd)
	if err != nil {
		return err
	}
	done, err := r.Validate(cmd.Context(), sess, args[0])
	if err != nil {
		return err
	}
	if !done {
		fmt.Fprintln(cmd.OutOrStdout(), "Validation annulée.")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Fiche %s validée. %d fiche(s) en attente.\n", args[0], len(r.List()))
	return nil
}

func runReviewReject(cmd *cobra.Command, args []string) error {
	r, sess, err := newReviewer(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	switch {
	case strings.TrimSpace(reviewOpts.reason) != "":
		err = r.Reject(ctx, sess, args[0], reviewOpts.reason)
	case cmd.Flags().Changed("reason"):
		fmt.Fprintln(cmd.OutOrStdout(), "Le motif du rejet est obligatoire.")
		fallthrough
	default:
		err = r.RejectInteractive(ctx, sess, args[0], current.prompt)
	}
	if err != nil {
		log.WithError(err).WithField("id", args[0]).Debug("Reject failed")
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Fiche %s rejetée. %d fiche(s) en attente.\n", args[0], len(r.List()))
	return nil
}
