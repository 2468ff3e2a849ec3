package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/banshee-data/normals.report/internal/surface/l3planes"
)

// WriteCentroids writes the cluster summary table: three rows holding the
// x, y and z components of each mean direction, one row of
// concentrations and one row of proportions. Columns are clusters in ID
// order; fields are space separated.
func WriteCentroids(w io.Writer, clusters []l3planes.Cluster) error {
	rows := make([][]string, 5)
	for i := range rows {
		rows[i] = make([]string, len(clusters))
	}
	for j, c := range clusters {
		rows[0][j] = formatFloat(c.MeanDirection.X)
		rows[1][j] = formatFloat(c.MeanDirection.Y)
		rows[2][j] = formatFloat(c.MeanDirection.Z)
		rows[3][j] = formatFloat(c.Concentration)
		rows[4][j] = formatFloat(c.Proportion)
	}

	cw := csv.NewWriter(w)
	cw.Comma = ' '
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write centroid table: %w", err)
	}
	return nil
}

// SaveCentroids writes the cluster summary table to path.
func SaveCentroids(path string, clusters []l3planes.Cluster) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := WriteCentroids(f, clusters); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 9, 64)
}
