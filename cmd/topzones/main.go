// Command topzones ranks pickup zones by trip count against a cleaned
// database. The database does the grouping; the ranking itself runs here so
// ties break deterministically regardless of backend.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"mobility/internal/storage"
	"mobility/internal/topk"

	_ "mobility/internal/storage/all"
)

func main() {
	var (
		kind      string
		dsn       string
		k         int
		borough   string
		timeOfDay string
		hour      int
	)

	flag.StringVar(&kind, "storage", "sqlite", "storage kind (sqlite, postgres)")
	flag.StringVar(&dsn, "dsn", "", "connection string (overrides env TRIPS_DSN)")
	flag.IntVar(&k, "k", 15, "number of zones to show")
	flag.StringVar(&borough, "borough", "", "restrict to one pickup borough")
	flag.StringVar(&timeOfDay, "time-of-day", "", "restrict to one time-of-day bucket (Morning, Afternoon, Evening, Night)")
	flag.IntVar(&hour, "hour", -1, "restrict to one pickup hour (0-23)")
	flag.Parse()

	_ = godotenv.Load()

	if dsn == "" {
		dsn = os.Getenv("TRIPS_DSN")
	}
	if dsn == "" {
		fatalf("no DSN: pass -dsn or set TRIPS_DSN")
	}
	if k < 1 {
		fatalf("-k must be at least 1, got %d", k)
	}

	filter := storage.Filter{Borough: borough, TimeOfDay: timeOfDay}
	if hour >= 0 {
		if hour > 23 {
			fatalf("-hour must be in 0-23, got %d", hour)
		}
		h := hour
		filter.PickupHour = &h
	}

	ctx := context.Background()

	repo, err := storage.New(ctx, storage.Config{Kind: kind, DSN: dsn})
	if err != nil {
		fatalf("%v", err)
	}
	defer repo.Close()

	// The zone counts and the table summary are independent queries; fetch
	// them concurrently.
	var (
		counts  []storage.ZoneCount
		summary storage.Summary
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		counts, err = repo.TripCountsByPickupZone(gctx, filter)
		return err
	})
	g.Go(func() error {
		var err error
		summary, err = repo.Summary(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		fatalf("%v", err)
	}

	byID := make(map[int]storage.ZoneCount, len(counts))
	entities := make([]topk.Entity, 0, len(counts))
	for _, c := range counts {
		byID[c.LocationID] = c
		entities = append(entities, topk.Entity{ID: c.LocationID, Label: c.ZoneName, Count: c.TripCount})
	}

	top, err := topk.Top(entities, k)
	if err != nil {
		fatalf("%v", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tZONE\tBOROUGH\tTRIPS")
	for i, e := range top {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\n", i+1, e.Label, byID[e.ID].Borough, e.Count)
	}
	if err := w.Flush(); err != nil {
		log.Fatalf("%v", err)
	}

	fmt.Printf("\ntotal trips: %d  avg fare: %.2f  avg distance: %.2f mi  avg speed: %.1f mph\n",
		summary.TotalTrips, summary.AvgFare, summary.AvgDistance, summary.AvgSpeed)
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
