package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/constellation-edge/overwatch/internal/journal"
)

// review inspects a detection journal offline: recent detections, one
// track's history, label totals, or the alert log.
func main() {
	dbPath := flag.String("db", "./overwatch.db", "Journal database path")
	trackID := flag.String("track", "", "Show all detections for one track ID")
	recent := flag.Int("recent", 0, "Show the N most recent detections")
	labels := flag.Bool("labels", false, "Show detection counts per label")
	alerts := flag.Bool("alerts", false, "Show the threat alert log")
	flag.Parse()

	jnl, err := journal.Open(*dbPath)
	if err != nil {
		log.Fatal("Failed to open journal: ", err)
	}
	defer jnl.Close()

	ctx := context.Background()

	switch {
	case *trackID != "":
		rows, err := jnl.DetectionsByTrack(ctx, *trackID)
		if err != nil {
			log.Fatal("Failed to query track: ", err)
		}
		if len(rows) == 0 {
			fmt.Printf("No detections for track %s\n", *trackID)
			return
		}
		fmt.Printf("Track %s: %d detections\n", *trackID, len(rows))
		for _, row := range rows {
			printRow(row)
		}

	case *recent > 0:
		rows, err := jnl.RecentDetections(ctx, *recent)
		if err != nil {
			log.Fatal("Failed to query recent detections: ", err)
		}
		for _, row := range rows {
			printRow(row)
		}

	case *labels:
		counts, err := jnl.LabelCounts(ctx)
		if err != nil {
			log.Fatal("Failed to query label counts: ", err)
		}
		for label, n := range counts {
			fmt.Printf("%6d  %s\n", n, label)
		}

	case *alerts:
		list, err := jnl.Alerts(ctx)
		if err != nil {
			log.Fatal("Failed to query alerts: ", err)
		}
		for _, alert := range list {
			fmt.Printf("[%s] %s  %s  track=%s  conf=%.2f  %s\n",
				alert.ThreatLevel, alert.FirstDetected, alert.Label,
				alert.TrackID, alert.Confidence, alert.Status)
		}

	default:
		flag.Usage()
	}
}

func printRow(row *journal.DetectionRow) {
	fmt.Printf("frame %6d  %s  %-20s  conf=%.2f  %s  track=%s\n",
		row.FrameIndex, row.Timestamp, row.Label, row.Confidence,
		row.ThreatLevel, row.TrackID)
}
