package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cnsr/cta-inspection/internal/cache"
	"github.com/cnsr/cta-inspection/internal/models"
)

type recordsFlags struct {
	ctaID  string
	remote bool
	yes    bool
}

var recordsOpts recordsFlags

var recordsCmd = &cobra.Command{
	Use:     "records",
	Aliases: []string{"fiches"},
	Short:   "Inspect the records cached on this device",
}

var recordsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached records",
	Args:  cobra.NoArgs,
	RunE:  runRecordsList,
}

var recordsShowCmd = &cobra.Command{
	Use:   "show <id|ref>",
	Short: "Show one cached record",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecordsShow,
}

var recordsSearchCmd = &cobra.Command{
	Use:   "search <plate>",
	Short: "Search records by plate",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecordsSearch,
}

var recordsDeleteCmd = &cobra.Command{
	Use:   "delete <id|ref>",
	Short: "Remove a record from the cache",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecordsDelete,
}

var recordsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the cache",
	Args:  cobra.NoArgs,
	RunE:  runRecordsStats,
}

var recordsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached record",
	Args:  cobra.NoArgs,
	RunE:  runRecordsClear,
}

var recordsSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Copy review decisions from the backend into the cache",
	Args:  cobra.NoArgs,
	RunE:  runRecordsSync,
}

func init() {
	recordsListCmd.Flags().StringVar(&recordsOpts.ctaID, "cta-id", "", "only records of this inspection session")
	recordsSearchCmd.Flags().BoolVar(&recordsOpts.remote, "remote", false, "search the backend instead of the cache")
	recordsClearCmd.Flags().BoolVarP(&recordsOpts.yes, "yes", "y", false, "do not ask for confirmation")

	recordsCmd.AddCommand(recordsListCmd)
	recordsCmd.AddCommand(recordsShowCmd)
	recordsCmd.AddCommand(recordsSearchCmd)
	recordsCmd.AddCommand(recordsDeleteCmd)
	recordsCmd.AddCommand(recordsStatsCmd)
	recordsCmd.AddCommand(recordsClearCmd)
	recordsCmd.AddCommand(recordsSyncCmd)
}

func runRecordsList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	var (
		records []models.InspectionRecord
		err     error
	)
	if recordsOpts.ctaID != "" {
		records, err = current.store.ListByCTA(ctx, recordsOpts.ctaID)
	} else {
		records, err = current.store.List(ctx)
	}
	if err != nil {
		return err
	}
	printRecords(cmd.OutOrStdout(), records)
	return nil
}

// findRecord looks ref up as a local id, then as a backend reference.
func findRecord(ctx context.Context, ref string) (models.InspectionRecord, error) {
	rec, err := current.store.Get(ctx, ref)
	if errors.Is(err, cache.ErrNotFound) {
		rec, err = current.store.GetByRemoteID(ctx, ref)
	}
	if err != nil {
		return rec, fmt.Errorf("record %s: %w", ref, err)
	}
	return rec, nil
}

func runRecordsShow(cmd *cobra.Command, args []string) error {
	rec, err := findRecord(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Fiche           %s\n", rec.ID)
	if rec.RemoteID != "" {
		fmt.Fprintf(out, "Référence       %s\n", rec.RemoteID)
	}
	fmt.Fprintf(out, "Session         %s\n", rec.CTAID)
	fmt.Fprintf(out, "Immatriculation %s\n", rec.LicensePlate)
	fmt.Fprintf(out, "Type            %s\n", rec.VehicleType.Label())
	fmt.Fprintf(out, "Centre          %s\n", rec.Center)
	fmt.Fprintf(out, "Visite          %s\n", rec.VisitDate.Format(models.DateLayout))
	fmt.Fprintf(out, "Validité        %s\n", rec.ValidityDate.Format(models.DateLayout))
	fmt.Fprintf(out, "Technicien      %s\n", rec.TechnicianName)
	if rec.Address != "" {
		fmt.Fprintf(out, "Adresse         %s\n", rec.Address)
	}
	fmt.Fprintf(out, "Statut          %s\n", rec.Status.Label())
	if rec.ReviewComment != "" {
		fmt.Fprintf(out, "Commentaires    %s\n", rec.ReviewComment)
	}
	for _, r := range rec.Results {
		level, verdict := "-", "-"
		if r.DefectLevel != nil {
			level = string(*r.DefectLevel)
		}
		if r.Result != nil {
			verdict = string(*r.Result)
		}
		fmt.Fprintf(out, "  %-36s %-9s %s\n", models.PointName(r.PointID), level, verdict)
	}
	return nil
}

func runRecordsSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if !recordsOpts.remote {
		records, err := current.store.SearchByPlate(ctx, args[0])
		if err != nil {
			return err
		}
		printRecords(cmd.OutOrStdout(), records)
		return nil
	}

	sess, err := current.requireSession(ctx)
	if err != nil {
		return err
	}
	records, err := current.api.SearchByPlate(ctx, sess.Token, args[0])
	if err != nil {
		return err
	}
	printRecords(cmd.OutOrStdout(), records)
	return nil
}

func runRecordsDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rec, err := findRecord(ctx, args[0])
	if err != nil {
		return err
	}
	if err := current.store.Delete(ctx, rec.ID); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Fiche %s supprimée du cache.\n", rec.ID)
	return nil
}

func runRecordsStats(cmd *cobra.Command, args []string) error {
	st, err := current.store.Stats(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Total : %d\n", st.Total)
	fmt.Fprintln(out, "Par type :")
	for _, k := range sortedKeys(st.ByVehicleType) {
		fmt.Fprintf(out, "  %-8s %d\n", k, st.ByVehicleType[k])
	}
	fmt.Fprintln(out, "Par session :")
	for _, k := range sortedKeys(st.ByCTA) {
		fmt.Fprintf(out, "  %s %d\n", k, st.ByCTA[k])
	}
	if len(st.Recent) > 0 {
		fmt.Fprintln(out, "Récentes :")
		printRecords(out, st.Recent)
	}
	return nil
}

func runRecordsClear(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if !recordsOpts.yes {
		ok, err := current.prompt.Confirm(ctx, "Supprimer toutes les fiches du cache ?")
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}
	if err := current.store.Clear(ctx); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Cache vidé.")
	return nil
}

// runRecordsSync updates cached records whose status changed on the
// backend. Records the backend does not return are left alone.
func runRecordsSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	sess, err := current.requireSession(ctx)
	if err != nil {
		return err
	}
	remote, err := current.api.ListPhotos(ctx, sess.Token)
	if err != nil {
		return err
	}

	updated := 0
	for _, r := range remote {
		local, err := current.store.GetByRemoteID(ctx, r.ID)
		if errors.Is(err, cache.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if local.Status == r.Status {
			continue
		}
		status, comment, by := r.Status, r.ReviewComment, r.ReviewedBy
		if _, err := current.store.Update(ctx, local.ID, cache.Patch{
			Status:        &status,
			ReviewComment: &comment,
			ReviewedBy:    &by,
			ReviewedAt:    r.ReviewedAt,
		}); err != nil {
			return err
		}
		log.WithFields(log.Fields{"id": local.ID, "ref": r.ID, "status": r.Status}).Debug("Cached record updated")
		updated++
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d fiche(s) mise(s) à jour.\n", updated)
	return nil
}

func printRecords(out io.Writer, records []models.InspectionRecord) {
	if len(records) == 0 {
		fmt.Fprintln(out, "Aucune fiche.")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tRÉF\tPLAQUE\tTYPE\tCENTRE\tVISITE\tSTATUT")
	for _, r := range records {
		ref := r.RemoteID
		if ref == "" {
			ref = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, ref, r.LicensePlate, r.VehicleType, r.Center,
			r.VisitDate.Format(models.DateLayout), r.Status)
	}
	_ = tw.Flush()
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
