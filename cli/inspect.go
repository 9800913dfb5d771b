package cli

import (
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"go.viam.com/lfd/config"
	"go.viam.com/lfd/dataset"
	"go.viam.com/lfd/detection"
	"go.viam.com/lfd/utils"
)

// VisibilityAction prints the visibility of every object in every frame of a scene. Cameras are
// not needed.
func VisibilityAction(c *cli.Context) error {
	scene, err := dataset.LoadScene(c.String(flagScene))
	if err != nil {
		return err
	}
	det, err := scene.BuildDetections()
	if err != nil {
		return err
	}
	printf(c.App.Writer, "%s", visibilityTable(det))
	return nil
}

func visibilityTable(det *detection.Detections) string {
	t := table.NewWriter()
	header := table.Row{"Frame"}
	for _, id := range det.Objects().IDs() {
		header = append(header, id)
	}
	t.AppendHeader(header)
	vis := det.Visibility()
	for frame := 0; frame < det.NumFrames(); frame++ {
		row := table.Row{fmt.Sprintf("%d", frame)}
		for _, visible := range vis.Row(frame) {
			if visible {
				row = append(row, "x")
			} else {
				row = append(row, "")
			}
		}
		t.AppendRow(row)
	}
	footer := table.Row{"Frames"}
	for obj := 0; obj < det.NumObjects(); obj++ {
		footer = append(footer, fmt.Sprintf("%d", len(vis.VisibleFrames(obj))))
	}
	t.AppendFooter(footer)
	return t.Render()
}

// SchemaAction prints the JSON schema of scene or config files.
func SchemaAction(c *cli.Context) error {
	kind := schemaScene
	if c.Args().Len() > 0 {
		kind = c.Args().First()
	}
	var schema *jsonschema.Schema
	switch kind {
	case schemaScene:
		schema = dataset.SceneSchema()
	case schemaConfig:
		schema = config.Schema()
	default:
		return errors.Errorf("unknown schema %q, expected %q or %q", kind, schemaScene, schemaConfig)
	}
	return utils.WriteJSON(c.App.Writer, schema)
}
