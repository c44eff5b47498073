package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/fsnotify/fsnotify"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ucmmm/models"
	"ucmmm/pkg/schedule"
)

// Filenames carry the week dates: 8-25-8-31.png or 9-1.png (single start date).
var fileDateRE = regexp.MustCompile(`^(\d{1,2})-(\d{1,2})`)

// Global DB handle for helper funcs
var db *gorm.DB

// global flags (parsed in main)
var (
	verbose bool
	force   bool
)

// preload caches
type preloadState struct {
	entriesByWeek map[string]int64 // weekStart -> stored entry count
	mu            sync.RWMutex
}

func newPreloadState() *preloadState {
	return &preloadState{entriesByWeek: make(map[string]int64, 64)}
}

func (ps *preloadState) getCount(week string) (int64, bool) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	n, ok := ps.entriesByWeek[week]
	return n, ok
}

func (ps *preloadState) putCount(week string, n int64) {
	ps.mu.Lock()
	ps.entriesByWeek[week] = n
	ps.mu.Unlock()
}

func mustInitDBFromEnv() *gorm.DB {
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatalf("DB_DSN must be set in environment to run this tool")
	}
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	return gdb
}

// Main: scans a directory of dropped schedule images, extracts each into
// truck_schedule_entries, optional watch mode for new drops.
func main() {
	dirFlag := flag.String("dir", "schedules", "directory to scan for schedule images")
	yearFlag := flag.Int("year", time.Now().Year(), "year for filename week dates")
	dryRun := flag.Bool("dry-run", false, "Skip all DB writes; just extract and print entry counts")
	watch := flag.Bool("watch", false, "Watch directory for new files")
	workers := flag.Int("workers", 0, "Worker pool size (default NumCPU)")
	flag.BoolVar(&verbose, "verbose", false, "Verbose per-file logging")
	flag.BoolVar(&force, "force", false, "Re-extract weeks that already have stored entries")
	flag.Parse()

	if *dryRun {
		log.Printf("Dry-run: scanning %s (no DB writes)", *dirFlag)
		files := listImageFiles(*dirFlag)
		log.Printf("Found %d candidate files", len(files))
		for _, f := range files {
			week, err := weekStartFromName(f, *yearFlag)
			if err != nil {
				log.Printf("SKIP %s: %v", f, err)
				continue
			}
			entries, err := extractFile(filepath.Join(*dirFlag, f), week)
			if err != nil {
				log.Printf("FAIL %s: %v", f, err)
				continue
			}
			log.Printf("OK %s week=%s entries=%d", f, week, len(entries))
		}
		return
	}

	db = mustInitDBFromEnv()
	ps := preloadAll()
	log.Printf("Preloaded: weeks=%d", len(ps.entriesByWeek))

	files := listImageFiles(*dirFlag)
	log.Printf("Scanning %d files (workers=%d)", len(files), effectiveWorkers(*workers))
	runWorkerPool(*dirFlag, *yearFlag, ps, files, effectiveWorkers(*workers))

	if *watch {
		if err := watchDirectory(*dirFlag, *yearFlag, ps, effectiveWorkers(*workers)); err != nil {
			log.Fatalf("watch failed: %v", err)
		}
	}
}

func effectiveWorkers(w int) int {
	if w <= 0 {
		return runtime.NumCPU()
	}
	return w
}

func logV(format string, args ...any) {
	if verbose {
		log.Printf(format, args...)
	}
}

// preloadAll counts stored entries per week to minimize per-file queries.
func preloadAll() *preloadState {
	ps := newPreloadState()
	type weekCount struct {
		WeekStart string
		N         int64
	}
	var rows []weekCount
	if err := db.Model(&models.TruckScheduleEntry{}).
		Select("week_start, count(*) as n").Group("week_start").Scan(&rows).Error; err == nil {
		for _, r := range rows {
			ps.entriesByWeek[r.WeekStart] = r.N
		}
	}
	return ps
}

// weekStartFromName derives the ISO week-start date from the leading
// month-day pair in the filename.
func weekStartFromName(name string, year int) (string, error) {
	m := fileDateRE.FindStringSubmatch(name)
	if m == nil {
		return "", fmt.Errorf("no leading month-day in %q", name)
	}
	month, _ := strconv.Atoi(m[1])
	day, _ := strconv.Atoi(m[2])
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return "", fmt.Errorf("implausible date %s-%s in %q", m[1], m[2], name)
	}
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day), nil
}

func listImageFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !isSupportedExt(e.Name()) {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out
}

func watchDirectory(dir string, year int, ps *preloadState, workers int) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return err
	}
	log.Printf("Watching %s (debounced) ...", dir)

	fileCh := make(chan string, 256)
	go func() {
		// simple debounce map of pending files
		pending := map[string]time.Time{}
		ticker := time.NewTicker(250 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					close(fileCh)
					return
				}
				if ev.Op&fsnotify.Create == fsnotify.Create {
					name := filepath.Base(ev.Name)
					if !isSupportedExt(name) {
						continue
					}
					pending[name] = time.Now()
				}
			case <-ticker.C:
				now := time.Now()
				for name, t := range pending {
					if now.Sub(t) > 300*time.Millisecond { // stable
						fileCh <- name
						delete(pending, name)
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					close(fileCh)
					return
				}
				log.Printf("watch error: %v", err)
			}
		}
	}()

	// Use worker pool for watch events too
	go runWorkerPool(dir, year, ps, nil, workers, fileCh)
	// block forever (Ctrl+C to exit)
	select {}
}

func isSupportedExt(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp":
		return true
	}
	return false
}

// worker pool orchestrator
func runWorkerPool(dir string, year int, ps *preloadState, initial []string, workers int, extraCh ...<-chan string) {
	fileCh := make(chan string, 1024)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for name := range fileCh {
				processSingleFile(dir, name, year, ps)
			}
		}()
	}
	// feed initial
	go func() {
		for _, f := range initial {
			fileCh <- f
		}
		// also relay from extra channels if provided
		for _, ch := range extraCh {
			go func(c <-chan string) {
				for n := range c {
					fileCh <- n
				}
			}(ch)
		}
		// if no extraCh (scan only) close when done
		if len(extraCh) == 0 {
			close(fileCh)
		}
	}()
	if len(extraCh) == 0 {
		wg.Wait()
	}
}

func extractFile(path, weekStart string) ([]schedule.Entry, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()
	p := schedule.NewPipeline(schedule.NewTesseractRecognizer())
	if verbose {
		p.Progress = func(ev schedule.ProgressEvent) {
			logV("  %s %.0f%% %s", ev.Stage, ev.Fraction*100, ev.Message)
		}
	}
	res, err := p.Extract(ctx, img, weekStart)
	if err != nil {
		return nil, err
	}
	return res.Entries, nil
}

// processSingleFile extracts one dropped image and stores its entries.
func processSingleFile(dir, name string, year int, ps *preloadState) {
	week, err := weekStartFromName(name, year)
	if err != nil {
		logV("SKIP %s: %v", name, err)
		return
	}
	if n, ok := ps.getCount(week); ok && n > 0 && !force {
		logV("SKIP week already extracted %s (%d entries)", week, n)
		return
	}

	entries, err := extractFile(filepath.Join(dir, name), week)
	if errors.Is(err, schedule.ErrNoSchedule) {
		log.Printf("NO SCHEDULE %s", name)
		return
	}
	if err != nil {
		log.Printf("ERROR extract %s: %v", name, err)
		return
	}

	stored := int64(0)
	for _, e := range entries {
		rec := models.TruckScheduleEntry{
			WeekStart: e.WeekStart,
			Day:       e.Day,
			Truck:     e.Truck,
			Start:     e.Start,
			End:       e.End,
			Cuisine:   e.Cuisine,
			Notes:     e.Notes,
			ImageURL:  "file://" + name,
		}
		err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "week_start"}, {Name: "day"}, {Name: "truck"}},
			DoUpdates: clause.AssignmentColumns([]string{"start", "end", "cuisine", "notes", "image_url"}),
		}).Create(&rec).Error
		if err != nil {
			log.Printf("ERROR store entry %s/%s/%s: %v", e.WeekStart, e.Day, e.Truck, err)
			continue
		}
		stored++
	}
	ps.putCount(week, stored)
	log.Printf("WEEK %s entries=%d file=%s", week, stored, name)
	// Move the processed file into processed/ so new images are handled only once
	if err := moveToProcessed(filepath.Join(dir, name), name); err != nil {
		log.Printf("WARN failed to move processed file %s: %v", name, err)
	} else {
		logV("moved processed %s", name)
	}
}

// moveToProcessed moves a file into <dir>/../processed/<name>.
// It attempts an atomic rename and falls back to copy+remove when necessary.
func moveToProcessed(srcFullPath, name string) error {
	const maxBytes = 1_000_000 // 1 MB budget
	processedDir := filepath.Join(filepath.Dir(filepath.Dir(srcFullPath)), "processed")
	if err := os.MkdirAll(processedDir, 0o755); err != nil {
		return err
	}
	dst := filepath.Join(processedDir, name)

	fi, err := os.Stat(srcFullPath)
	if err != nil {
		return err
	}
	// Fast path: already small enough -> attempt rename/copy
	if fi.Size() <= maxBytes {
		if err := os.Rename(srcFullPath, dst); err == nil {
			return nil
		}
		return copyRemove(srcFullPath, dst)
	}
	// Need compression / resizing
	img, err := imaging.Open(srcFullPath)
	if err != nil { // fallback to raw move if cannot decode
		if err := os.Rename(srcFullPath, dst); err == nil {
			return nil
		}
		return copyRemove(srcFullPath, dst)
	}
	// Estimate scale factor based on sqrt(max/current) (size roughly scales with area)
	scale := math.Sqrt(float64(maxBytes) / float64(fi.Size()))
	if scale > 0.95 {
		scale = 0.95
	}
	if scale < 0.1 { // avoid absurd downscale
		scale = 0.1
	}
	if scale < 1 {
		w := img.Bounds().Dx()
		h := img.Bounds().Dy()
		newW := int(math.Max(1, math.Round(float64(w)*scale)))
		newH := int(math.Max(1, math.Round(float64(h)*scale)))
		img = imaging.Resize(img, newW, newH, imaging.Lanczos)
	}
	// Save to dst (overwrite if exists)
	if err := imaging.Save(img, dst); err != nil {
		// fallback to original move
		if err := os.Rename(srcFullPath, dst); err == nil {
			return nil
		}
		return copyRemove(srcFullPath, dst)
	}
	// Remove original after successful save
	_ = os.Remove(srcFullPath)
	return nil
}

func copyRemove(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	_ = out.Close()
	if err := os.Remove(src); err != nil {
		return err
	}
	return nil
}
