package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"

	"ucmmm/pkg/schedule"
)

func main() {
	imgPath := flag.String("img", "schedules/test.png", "schedule image to extract")
	week := flag.String("week", time.Now().Format("2006-01-02"), "week start date (YYYY-MM-DD)")
	flag.Parse()
	p, _ := filepath.Abs(*imgPath)
	fmt.Printf("Extracting schedule from %s\n", p)

	img, err := imaging.Open(p)
	if err != nil {
		log.Fatalf("open image: %v", err)
	}
	pipe := schedule.NewPipeline(schedule.NewTesseractRecognizer())
	pipe.Progress = func(ev schedule.ProgressEvent) {
		fmt.Printf("  [%s] %.0f%% %s\n", ev.Stage, ev.Fraction*100, ev.Message)
	}
	res, err := pipe.Extract(context.Background(), img, *week)
	if err != nil {
		log.Fatalf("extract: %v", err)
	}
	fmt.Printf("path=%s strategy=%q rows=%d\n", res.Path, res.Strategy, len(res.Rows))
	for _, r := range res.Rows {
		if r.Kind == schedule.RowKindDayTable {
			fmt.Printf("  %-30s %v\n", r.Location, r.Days)
		} else {
			fmt.Printf("  generic: %v\n", r.Columns)
		}
	}
	fmt.Printf("entries=%d\n", len(res.Entries))
	for _, e := range res.Entries {
		fmt.Printf("  %s %s %s-%s %s\n", e.Day, e.Truck, e.Start, e.End, e.Cuisine)
	}
}
