package db

import (
	"context"
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-velo/internal/mapview"
)

func lineFeature(line int, status string, coords ...orb.Point) *geojson.Feature {
	f := geojson.NewFeature(orb.LineString(coords))
	f.Properties["line"] = line
	f.Properties["status"] = status
	return f
}

func TestMirrorAndStats(t *testing.T) {
	conn, err := Open(Config{DataDir: t.TempDir(), DBName: "test"})
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	sections := []*geojson.Feature{
		lineFeature(1, "done", orb.Point{0, 0}, orb.Point{0.01, 0}),
		lineFeature(1, "done", orb.Point{0, 1}, orb.Point{0.01, 1}),
		lineFeature(2, "wip", orb.Point{0, 2}, orb.Point{0.02, 2}),
	}
	c := geojson.NewFeature(orb.Point{0, 0})
	c.Properties["type"] = "counter"
	c.Properties["idPdc"] = 725
	c.Properties["counts"] = []mapview.Count{{Timestamp: "2024-05-01", Count: 10}, {Timestamp: "2024-06-01", Count: 12}}

	ctx := context.Background()
	if err := Mirror(ctx, conn, sections, []*geojson.Feature{c}); err != nil {
		t.Fatal(err)
	}

	stats, err := Stats(ctx, conn)
	if err != nil {
		t.Fatal(err)
	}
	if len(stats) != 2 {
		t.Fatalf("stats=%+v, want 2 statuses", stats)
	}
	if stats[0].Status != "done" || stats[0].Sections != 2 {
		t.Errorf("done=%+v", stats[0])
	}
	if math.Abs(stats[1].LengthKm-2.22) > 0.05 {
		t.Errorf("wip length=%v, want about 2.22", stats[1].LengthKm)
	}

	var total float64
	if err := conn.QueryRowContext(ctx, "SELECT sum(count) FROM counts WHERE id_pdc = '725'").Scan(&total); err != nil {
		t.Fatal(err)
	}
	if total != 22 {
		t.Fatalf("total=%v, want 22", total)
	}

	// a second mirror replaces rather than appends
	if err := Mirror(ctx, conn, sections[:1], nil); err != nil {
		t.Fatal(err)
	}
	stats, _ = Stats(ctx, conn)
	if len(stats) != 1 || stats[0].Sections != 1 {
		t.Fatalf("stats after remirror=%+v", stats)
	}
}
