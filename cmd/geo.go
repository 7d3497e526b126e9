/*
Copyright © 2026 James Lawson (jpl-au) <hello@caelisco.net>
*/

// geo.go implements "foiacorpus geo", a query over the entities stage's
// extracted coordinates. Only the server (Postgres) backend answers these;
// the embedded backend reports ErrUnsupportedOnBackend (spec 4.I).
package cmd

import (
	"fmt"

	"github.com/foiacorpus/corpus/internal/store"
	"github.com/spf13/cobra"
)

func newGeoCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "geo",
		Short: "Query extracted entities by location (server backend only)",
		Long: `Query extracted entities by location.

  foiacorpus geo --near 38.9,-77.03 --radius 50
  foiacorpus geo --bbox 38.8,-77.1,39.0,-76.9

Answers against the configured backend's document_entities.latitude/
longitude columns. The embedded (sqlite) backend has no distance query
wired in and returns an error; switch storage.backend to postgres to use
this command.`,
		RunE: runGeo,
	}
	c.Flags().String("near", "", "lat,lon center point for a radius query")
	c.Flags().Float64("radius", 10, "radius in kilometres for --near")
	c.Flags().String("bbox", "", "minLat,minLon,maxLat,maxLon bounding box")
	return c
}

func runGeo(c *cobra.Command, _ []string) error {
	ctx := c.Context()
	near, _ := c.Flags().GetString("near")
	radius, _ := c.Flags().GetFloat64("radius")
	bbox, _ := c.Flags().GetString("bbox")

	var (
		entities []store.DocumentEntity
		err      error
	)
	switch {
	case near != "":
		var lat, lon float64
		if _, scanErr := fmt.Sscanf(near, "%f,%f", &lat, &lon); scanErr != nil {
			return PrintJSONError(fmt.Errorf("parse --near %q: %w", near, scanErr))
		}
		entities, err = theStore.EntitiesWithinRadius(ctx, lat, lon, radius)
	case bbox != "":
		var minLat, minLon, maxLat, maxLon float64
		if _, scanErr := fmt.Sscanf(bbox, "%f,%f,%f,%f", &minLat, &minLon, &maxLat, &maxLon); scanErr != nil {
			return PrintJSONError(fmt.Errorf("parse --bbox %q: %w", bbox, scanErr))
		}
		entities, err = theStore.EntitiesInBoundingBox(ctx, minLat, minLon, maxLat, maxLon)
	default:
		return PrintJSONError(fmt.Errorf("one of --near or --bbox is required"))
	}
	if err != nil {
		return PrintJSONError(fmt.Errorf("geo query: %w", err))
	}

	if JSON() {
		return PrintJSON(map[string]any{"entities": entities})
	}
	for _, e := range entities {
		fmt.Fprintf(Out(), "%s\t%s\t%.4f,%.4f\t%s\n", e.DocumentID, e.EntityType, derefOrZero(e.Latitude), derefOrZero(e.Longitude), e.Text)
	}
	fmt.Fprintf(Out(), "%d entit(y/ies)\n", len(entities))
	return nil
}

func derefOrZero(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

func init() {
	rootCmd.AddCommand(newGeoCmd())
}
