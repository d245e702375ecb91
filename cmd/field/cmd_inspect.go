package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cnsr/cta-inspection/internal/config"
	"github.com/cnsr/cta-inspection/internal/geo"
	"github.com/cnsr/cta-inspection/internal/models"
	"github.com/cnsr/cta-inspection/internal/recognition"
	"github.com/cnsr/cta-inspection/internal/report"
	"github.com/cnsr/cta-inspection/internal/workflow"
)

type inspectFlags struct {
	photo       string
	ctaID       string
	center      string
	vehicleType string
	visitDate   string
	plate       string
	lat         float64
	lon         float64
	checklist   string
	logo        string
	reportOut   string
	yes         bool
}

var inspectOpts inspectFlags

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Run an inspection from photo to submission",
	Long: "inspect reads the vehicle photo, suggests the plate, asks for the\n" +
		"vehicle form and the checklist, renders the control sheet and submits\n" +
		"it. Values given as flags are not prompted for.",
	RunE: runInspect,
}

func init() {
	f := inspectCmd.Flags()
	f.StringVar(&inspectOpts.photo, "photo", "", "vehicle photo (jpeg or png)")
	f.StringVar(&inspectOpts.ctaID, "cta-id", "", "inspection session id (generated when empty)")
	f.StringVar(&inspectOpts.center, "center", "", "inspection center")
	f.StringVar(&inspectOpts.vehicleType, "type", "", "vehicle type: CTVL, CTPL or CTTAXI")
	f.StringVar(&inspectOpts.visitDate, "visit-date", "", "visit date as YYYY-MM-DD (today when empty)")
	f.StringVar(&inspectOpts.plate, "plate", "", "license plate, overrides recognition")
	f.Float64Var(&inspectOpts.lat, "lat", 0, "latitude of the inspection")
	f.Float64Var(&inspectOpts.lon, "lon", 0, "longitude of the inspection")
	f.StringVar(&inspectOpts.checklist, "checklist", "", "json file with the checklist results")
	f.StringVar(&inspectOpts.logo, "logo", "", "png logo printed on the sheet")
	f.StringVar(&inspectOpts.reportOut, "report-out", "", "write the rendered sheet to this file")
	f.BoolVarP(&inspectOpts.yes, "yes", "y", false, "submit without asking for confirmation")
	_ = inspectCmd.MarkFlagRequired("photo")
}

func runInspect(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	cfg := current.cfg

	sess, err := current.requireSession(ctx)
	if err != nil {
		return err
	}
	if !sess.HasRole(models.RoleTechnician, models.RoleAdmin) {
		return fmt.Errorf("role %s cannot submit inspections", sess.User.Role)
	}

	insp := workflow.NewInspection(inspectOpts.ctaID, cfg.Centers)
	capturer := newCapturer(cfg.Plate)
	camera := workflow.NewFileCamera(inspectOpts.photo)

	if err := insp.Capture(ctx, camera, capturer); err != nil {
		return err
	}
	fmt.Fprintf(out, "Session %s, reconnaissance : %s\n", insp.CTAID, insp.Analysis().Outcome())

	for insp.State() != workflow.StateForm {
		if err := resolvePlate(ctx, out, insp, camera, capturer); err != nil {
			return err
		}
	}

	form, err := askForm(ctx, cfg.Centers)
	if err != nil {
		return err
	}
	if err := insp.SubmitForm(form); err != nil {
		return err
	}
	fmt.Fprintf(out, "Véhicule %s, %s, valide jusqu'au %s\n",
		insp.Vehicle().LicensePlate, insp.Vehicle().VehicleType.Label(),
		insp.Vehicle().ValidityDate.Format(models.DateLayout))

	if inspectOpts.checklist != "" {
		err = loadChecklist(inspectOpts.checklist, insp)
	} else {
		err = askChecklist(ctx, insp)
	}
	if err != nil {
		return err
	}

	logo, err := readLogo(inspectOpts.logo)
	if err != nil {
		return err
	}
	html, err := insp.Preview(sess.User.DisplayName(), logo)
	if err != nil {
		return err
	}
	if inspectOpts.reportOut != "" {
		if err := os.WriteFile(inspectOpts.reportOut, []byte(html), 0o644); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		fmt.Fprintf(out, "Fiche écrite dans %s\n", inspectOpts.reportOut)
	}

	if !inspectOpts.yes {
		ok, err := current.prompt.Confirm(ctx, "Envoyer la fiche ?")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(out, "Envoi annulé.")
			return nil
		}
	}

	submitter := workflow.NewSubmitter(current.api, current.store, newGeoService(cmd, cfg.Nominatim), newPDFConverter(cfg.PDF), cfg.Centers)
	rec, err := insp.Submit(ctx, submitter, sess)
	if rec == nil {
		return err
	}
	if err != nil {
		log.WithError(err).Warn("Inspection sent but local copy missing")
	}
	fmt.Fprintf(out, "Fiche %s envoyée, référence serveur %s (%s)\n", rec.ID, rec.RemoteID, rec.Status.Label())
	return nil
}

func newCapturer(cfg config.PlateConfig) *workflow.Capturer {
	if cfg.APIKey == "" {
		log.Info("No plate recognizer key, plates are entered manually")
		return workflow.NewCapturer(nil)
	}
	client := recognition.NewPlateReaderClient(cfg.URL, cfg.APIKey)
	client.Regions = cfg.Regions
	return workflow.NewCapturer(client)
}

func newGeoService(cmd *cobra.Command, cfg config.NominatimConfig) *geo.Service {
	if !cmd.Flags().Changed("lat") || !cmd.Flags().Changed("lon") {
		return geo.NewService(geo.StaticLocator{}, nil)
	}
	loc := models.Location{Lat: inspectOpts.lat, Lon: inspectOpts.lon}
	return geo.NewService(geo.StaticLocator{Location: &loc}, geo.NewNominatim(cfg.URL))
}

func newPDFConverter(cfg config.PDFConfig) report.PDFConverter {
	if !cfg.Enabled {
		return report.HTMLFallback{}
	}
	return report.ChromePDF{Timeout: cfg.Timeout, ExecPath: cfg.ChromePath}
}

// resolvePlate handles one round of plate review.
func resolvePlate(ctx context.Context, out io.Writer, insp *workflow.Inspection, cam workflow.Camera, capturer *workflow.Capturer) error {
	if insp.State() == workflow.StateCapture {
		return insp.Capture(ctx, cam, capturer)
	}
	if inspectOpts.plate != "" {
		return insp.Choose(workflow.ChoiceManual, inspectOpts.plate)
	}

	d := insp.Analysis().Decision
	switch {
	case insp.Analysis().Failed:
		fmt.Fprintln(out, "La reconnaissance a échoué.")
	case d.Kind == recognition.LowConfidence:
		fmt.Fprintf(out, "Plaque suggérée : %s (confiance %.0f%%)\n", recognition.FormatCEDEAO(d.Plate), d.Score*100)
	default:
		fmt.Fprintln(out, "Aucune plaque détectée.")
	}

	choices := workflow.Choices(d)
	labels := make([]string, len(choices))
	for i, c := range choices {
		labels[i] = choiceLabel(c)
	}
	n, err := current.prompt.pick(ctx, "Que faire ?", labels)
	if err != nil {
		return err
	}

	choice := choices[n]
	var manual string
	if choice == workflow.ChoiceManual {
		if manual, err = current.prompt.ask(ctx, "Immatriculation : "); err != nil {
			return err
		}
	}
	err = insp.Choose(choice, manual)
	if errors.Is(err, workflow.ErrValidation) {
		fmt.Fprintln(out, "L'immatriculation est obligatoire.")
		return nil
	}
	return err
}

func choiceLabel(c workflow.Choice) string {
	switch c {
	case workflow.ChoiceAccept:
		return "Accepter la plaque"
	case workflow.ChoiceManual:
		return "Saisir la plaque"
	case workflow.ChoiceRetake:
		return "Reprendre la photo"
	default:
		return c.String()
	}
}

var vehicleTypes = []models.VehicleType{models.VehicleLight, models.VehicleHeavy, models.VehicleTaxi}

func askForm(ctx context.Context, centers []string) (workflow.FormInput, error) {
	in := workflow.FormInput{
		LicensePlate: inspectOpts.plate,
		Center:       inspectOpts.center,
		VehicleType:  models.VehicleType(inspectOpts.vehicleType),
	}

	if in.Center == "" {
		n, err := current.prompt.pick(ctx, "Centre :", centers)
		if err != nil {
			return in, err
		}
		in.Center = centers[n]
	}
	if in.VehicleType == "" {
		labels := make([]string, len(vehicleTypes))
		for i, t := range vehicleTypes {
			labels[i] = t.Label()
		}
		n, err := current.prompt.pick(ctx, "Type de véhicule :", labels)
		if err != nil {
			return in, err
		}
		in.VehicleType = vehicleTypes[n]
	}
	if inspectOpts.visitDate != "" {
		visit, err := time.ParseInLocation(models.DateLayout, inspectOpts.visitDate, time.Local)
		if err != nil {
			return in, fmt.Errorf("invalid visit date %q: %w", inspectOpts.visitDate, err)
		}
		in.VisitDate = visit
	}
	return in, nil
}

// loadChecklist applies results from a json array of
// {"pointId", "defectLevel", "result"} objects.
func loadChecklist(path string, insp *workflow.Inspection) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read checklist: %w", err)
	}
	var results []models.ControlResult
	if err := json.Unmarshal(data, &results); err != nil {
		return fmt.Errorf("invalid checklist file: %w", err)
	}
	engine := insp.Checklist()
	for _, r := range results {
		if r.DefectLevel != nil {
			if !r.DefectLevel.IsValid() {
				return fmt.Errorf("point %s: unknown defect level %q", r.PointID, *r.DefectLevel)
			}
			engine.SetDefectLevel(r.PointID, *r.DefectLevel)
		}
		if r.Result != nil {
			if !r.Result.IsValid() {
				return fmt.Errorf("point %s: unknown result %q", r.PointID, *r.Result)
			}
			engine.SetResult(r.PointID, *r.Result)
		}
	}
	return nil
}

var (
	defectLevels = []models.DefectLevel{models.DefectMinor, models.DefectMajor, models.DefectCritical}
	verdicts     = []models.Verdict{models.VerdictGood, models.VerdictBad}
)

func askChecklist(ctx context.Context, insp *workflow.Inspection) error {
	engine := insp.Checklist()
	levelLabels := make([]string, len(defectLevels))
	for i, l := range defectLevels {
		levelLabels[i] = string(l)
	}
	verdictLabels := make([]string, len(verdicts))
	for i, v := range verdicts {
		verdictLabels[i] = string(v)
	}

	for _, fn := range models.Functions {
		fmt.Fprintf(current.prompt.out, "== %s ==\n", fn)
		for _, p := range models.ControlPoints {
			if p.Function != fn {
				continue
			}
			n, err := current.prompt.pick(ctx, p.Name+" : niveau de défaut", levelLabels)
			if err != nil {
				return err
			}
			engine.SetDefectLevel(p.ID, defectLevels[n])
			n, err = current.prompt.pick(ctx, p.Name+" : résultat", verdictLabels)
			if err != nil {
				return err
			}
			engine.SetResult(p.ID, verdicts[n])
		}
	}
	return nil
}

func readLogo(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read logo: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
