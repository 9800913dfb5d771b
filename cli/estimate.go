package cli

import (
	"fmt"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"go.viam.com/lfd/dataset"
	"go.viam.com/lfd/evaluation"
	"go.viam.com/lfd/lfd"
	"go.viam.com/lfd/logging"
	"go.viam.com/lfd/quadric"
	"go.viam.com/lfd/utils"
)

const (
	statusEstimated    = "estimated"
	statusInsufficient = "insufficient observations"
	statusDegenerate   = "degenerate estimate"
)

// Report is the outcome of an estimate run, as written by --output.
type Report struct {
	Scene    string         `json:"scene"`
	Frames   int            `json:"frames"`
	Duration string         `json:"duration"`
	Objects  []ObjectReport `json:"objects"`
	// Reprojection summarises the IoU between every visible detection and the projection of the
	// estimate of its object.
	Reprojection *evaluation.Summary `json:"reprojection_iou,omitempty"`
	// Evaluation is only present when the scene carries ground truth.
	Evaluation *EvaluationReport `json:"evaluation,omitempty"`
}

// ObjectReport describes the estimate of one object.
type ObjectReport struct {
	Object  string          `json:"object"`
	Frames  []int           `json:"frames"`
	Status  string          `json:"status"`
	Quadric quadric.Quadric `json:"quadric"`
	Center  []float64       `json:"center,omitempty"`
	Axes    []float64       `json:"axes,omitempty"`
}

// EvaluationReport compares the estimates with the ground truth of the scene.
type EvaluationReport struct {
	// Quadrics only lists the objects where both quadrics are ellipsoids.
	Quadrics    []evaluation.QuadricComparison `json:"quadrics"`
	CenterError *evaluation.Summary            `json:"center_error,omitempty"`
}

// EstimateAction runs the estimator on a scene and prints the per object results.
func EstimateAction(c *cli.Context) error {
	cfg, err := runConfig(c)
	if err != nil {
		return err
	}
	logger := newLogger(c, cfg)

	scene, err := dataset.LoadScene(cfg.Scene)
	if err != nil {
		return err
	}
	in, err := scene.Build()
	if err != nil {
		return errors.Wrapf(err, "cannot estimate %s", cfg.Scene)
	}
	ctx := c.Context
	if c.Bool(flagDebug) {
		ctx = logging.EnableDebugMode(ctx, "estimate")
	}
	results, err := lfd.ComputeEstimates(ctx, in, cfg.Options(logger))
	if err != nil {
		return err
	}

	report, err := newReport(cfg.Scene, scene, results, logger)
	if err != nil {
		return err
	}
	printf(c.App.Writer, "%s", objectTable(report))
	if report.Reprojection != nil {
		printf(c.App.Writer, "reprojection IoU: %s", formatSummary(*report.Reprojection))
	}
	if report.Evaluation != nil {
		if report.Evaluation.CenterError != nil {
			printf(c.App.Writer, "centre error: %s", formatSummary(*report.Evaluation.CenterError))
		} else {
			warningf(c.App.ErrWriter, "no object could be compared with its ground truth")
		}
	}

	if cfg.Output == "" {
		return nil
	}
	if err := utils.WriteJSONFile(cfg.Output, report); err != nil {
		return err
	}
	printf(c.App.Writer, "wrote report to %s", cfg.Output)
	return nil
}

func newReport(path string, scene *dataset.Scene, results *lfd.Results, logger logging.Logger) (*Report, error) {
	report := &Report{
		Scene:    path,
		Frames:   len(results.InputEllipses),
		Duration: results.Duration.String(),
	}
	for obj, q := range results.EstimatedQuadrics {
		or := ObjectReport{
			Object:  results.Objects.ID(obj),
			Frames:  results.Visibility.VisibleFrames(obj),
			Status:  status(results.Failures[obj]),
			Quadric: q,
		}
		if q.IsDefined() {
			e, err := q.Ellipsoid()
			if err != nil {
				logger.Warnw("estimate cannot be decomposed", "object", or.Object, "error", err)
			} else {
				or.Center = vectorSlice(e.Center)
				or.Axes = vectorSlice(e.Axes)
			}
		}
		report.Objects = append(report.Objects, or)
	}

	ellipses, err := evaluation.CompareEllipses(results.VisibleEstimatedEllipses, results.InputEllipses, results.Objects)
	if err != nil {
		return nil, err
	}
	if summary, err := evaluation.Summarize(evaluation.IoUs(ellipses)); err == nil {
		report.Reprojection = &summary
	}

	if len(scene.GroundTruth) == 0 {
		return report, nil
	}
	comparisons, err := evaluation.CompareQuadrics(results.EstimatedQuadrics, scene.GroundTruth, results.Objects)
	if err != nil {
		return nil, err
	}
	report.Evaluation = &EvaluationReport{Quadrics: []evaluation.QuadricComparison{}}
	for _, cmp := range comparisons {
		if cmp.Valid {
			report.Evaluation.Quadrics = append(report.Evaluation.Quadrics, cmp)
		}
	}
	if summary, err := evaluation.Summarize(evaluation.CenterErrors(report.Evaluation.Quadrics)); err == nil {
		report.Evaluation.CenterError = &summary
	}
	return report, nil
}

func status(err error) string {
	switch {
	case err == nil:
		return statusEstimated
	case errors.Is(err, quadric.ErrInsufficientObservations):
		return statusInsufficient
	case errors.Is(err, quadric.ErrDegenerateEstimate):
		return statusDegenerate
	default:
		return err.Error()
	}
}

// objectTable prints one row per object with its status, frames and ellipsoid.
func objectTable(report *Report) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "Object", "Frames", "Status", "Center", "Axes"})
	for i, or := range report.Objects {
		frames := make([]string, 0, len(or.Frames))
		for _, f := range or.Frames {
			frames = append(frames, fmt.Sprintf("%d", f))
		}
		t.AppendRow(table.Row{
			fmt.Sprintf("%d", i),
			or.Object,
			strings.Join(frames, ","),
			or.Status,
			formatVector(or.Center),
			formatVector(or.Axes),
		})
	}
	return t.Render()
}

func formatVector(v []float64) string {
	if len(v) != 3 {
		return ""
	}
	return fmt.Sprintf("X:%.3f, Y:%.3f, Z:%.3f", v[0], v[1], v[2])
}

func formatSummary(s evaluation.Summary) string {
	return fmt.Sprintf("mean %.4f, median %.4f, std dev %.4f, max %.4f over %d", s.Mean, s.Median, s.StdDev, s.Max, s.Count)
}

func vectorSlice(v r3.Vector) []float64 {
	return []float64{v.X, v.Y, v.Z}
}
