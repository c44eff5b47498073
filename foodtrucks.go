package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"ucmmm/models"
	"ucmmm/pkg/schedule"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm/clause"
)

var (
	httpClient = &http.Client{Timeout: 30 * time.Second}

	// one extraction per image URL at a time; later callers wait for the result
	inflightMu sync.Mutex
	inflight   = map[string]chan struct{}{}
)

func diningSourceURL() string {
	if v := os.Getenv("DINING_SOURCE_URL"); v != "" {
		return v
	}
	return "https://dining.ucmerced.edu/food-trucks"
}

// listWeekImagesHandler scrapes the dining page for weekly schedule graphics
// and mirrors them into week_images for later lookups.
func listWeekImagesHandler(c *gin.Context) {
	weeks, err := schedule.FetchWeekImages(c.Request.Context(), httpClient, diningSourceURL())
	if err != nil {
		log.Printf("week image discovery failed: %v", err)
		// serve whatever was mirrored earlier
		var cached []models.WeekImage
		if dberr := db.Order("week_start").Find(&cached).Error; dberr == nil && len(cached) > 0 {
			out := make([]schedule.WeekImage, 0, len(cached))
			for _, w := range cached {
				out = append(out, schedule.WeekImage{URL: w.URL, Label: w.Label, Start: w.WeekStart, End: w.WeekEnd})
			}
			c.JSON(http.StatusOK, gin.H{"weeks": out, "stale": true})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "could not reach dining site"})
		return
	}
	for _, w := range weeks {
		rec := models.WeekImage{URL: w.URL, Label: w.Label, WeekStart: w.Start, WeekEnd: w.End}
		db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "url"}},
			DoUpdates: clause.AssignmentColumns([]string{"label", "week_start", "week_end"}),
		}).Create(&rec)
	}
	c.JSON(http.StatusOK, gin.H{"weeks": weeks})
}

// getScheduleHandler serves cached entries for a week (default: the active one).
func getScheduleHandler(c *gin.Context) {
	weekStart := c.Query("week_start")
	if weekStart == "" {
		var w models.WeekImage
		today := time.Now().Format("2006-01-02")
		err := db.Where("week_start <= ? AND week_end >= ?", today, today).First(&w).Error
		if err != nil {
			err = db.Order("week_start desc").First(&w).Error
		}
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no known schedule weeks; call /foodtrucks/images first"})
			return
		}
		weekStart = w.WeekStart
	}
	var entries []models.TruckScheduleEntry
	if err := db.Where("week_start = ?", weekStart).Order("day, start, truck").Find(&entries).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	imageURL := ""
	if len(entries) > 0 {
		imageURL = entries[0].ImageURL
	}
	c.JSON(http.StatusOK, gin.H{"week_start": weekStart, "entries": entriesJSON(entries), "image_url": imageURL, "source": "cache"})
}

// submitScheduleHandler writes client-extracted entries into the week cache.
// Entries with an unknown day or a blank truck are rejected; rows already
// cached for the week (same day and truck) are skipped, not overwritten.
func submitScheduleHandler(c *gin.Context) {
	var req struct {
		WeekStart string           `json:"week_start"`
		Entries   []schedule.Entry `json:"entries"`
		ImageURL  string           `json:"image_url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	if req.WeekStart == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "week_start required"})
		return
	}
	if len(req.Entries) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "entries required; use /foodtrucks/ocr to extract server-side"})
		return
	}

	// client submissions get exact vocabulary checks, no fuzzy matching:
	// 3-letter abbreviations or full day names only
	valid := map[string]string{}
	for _, d := range schedule.DefaultDayConfig().Canonical {
		ab := schedule.Abbrev(d)
		valid[ab] = ab
		valid[strings.ToLower(d)] = ab
	}

	inserted := int64(0)
	skipped := 0
	for _, e := range req.Entries {
		day, ok := valid[strings.ToLower(strings.TrimSpace(e.Day))]
		if !ok {
			skipped++
			continue
		}
		truck := strings.TrimSpace(e.Truck)
		if truck == "" {
			skipped++
			continue
		}
		rec := models.TruckScheduleEntry{
			WeekStart: req.WeekStart,
			Day:       day,
			Truck:     truck,
			Start:     e.Start,
			End:       e.End,
			Cuisine:   e.Cuisine,
			Notes:     e.Notes,
			ImageURL:  req.ImageURL,
		}
		res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&rec)
		if res.Error != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "store failed"})
			return
		}
		inserted += res.RowsAffected
	}
	c.JSON(http.StatusOK, gin.H{"week_start": req.WeekStart, "inserted": inserted, "skipped": skipped})
}

// ocrExtractHandler runs extraction server-side and upserts the normalized
// entries into the week cache. It accepts either a multipart image upload or
// a JSON body naming an image URL; with neither it re-extracts the active
// week's published image. Concurrent requests for the same image share one
// extraction run.
func ocrExtractHandler(c *gin.Context) {
	if _, ok := getUserFromContext(c); !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		ocrUpload(c)
		return
	}

	var req struct {
		ImageURL  string `json:"image_url"`
		WeekStart string `json:"week_start"`
	}
	_ = c.ShouldBindJSON(&req)

	imageURL := req.ImageURL
	weekStart := req.WeekStart
	if imageURL == "" {
		weeks, err := schedule.FetchWeekImages(c.Request.Context(), httpClient, diningSourceURL())
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": "could not reach dining site"})
			return
		}
		active := schedule.ActiveWeek(weeks, time.Now().Format("2006-01-02"))
		if active == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no schedule images published"})
			return
		}
		imageURL = active.URL
		if weekStart == "" {
			weekStart = active.Start
		}
	}
	if weekStart == "" {
		weekStart = time.Now().Format("2006-01-02")
	}

	if ch, running := claimExtraction(imageURL); running {
		// another request is already extracting this image; wait and read back
		select {
		case <-ch:
			serveStoredWeek(c, weekStart, imageURL)
		case <-c.Request.Context().Done():
			c.JSON(http.StatusRequestTimeout, gin.H{"error": "cancelled"})
		}
		return
	}
	defer releaseExtraction(imageURL)

	img, err := schedule.FetchImage(c.Request.Context(), httpClient, imageURL)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "could not fetch schedule image"})
		return
	}
	p := schedule.NewPipeline(schedule.NewTesseractRecognizer())
	res, err := p.Extract(c.Request.Context(), img, weekStart)
	if errors.Is(err, schedule.ErrNoSchedule) {
		c.JSON(http.StatusOK, gin.H{"week_start": weekStart, "entries": []schedule.Entry{}, "image_url": imageURL, "condition": "could_not_parse"})
		return
	}
	if err != nil {
		log.Printf("extraction failed for %s: %v", imageURL, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "extraction failed"})
		return
	}
	if err := upsertEntries(weekStart, imageURL, res.Entries); err != nil {
		log.Printf("store entries failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store failed"})
		return
	}
	entries := res.Entries
	if entries == nil {
		entries = []schedule.Entry{}
	}
	c.JSON(http.StatusOK, gin.H{"week_start": weekStart, "entries": entries, "image_url": imageURL, "path": res.Path})
}

func claimExtraction(imageURL string) (chan struct{}, bool) {
	inflightMu.Lock()
	defer inflightMu.Unlock()
	if ch, ok := inflight[imageURL]; ok {
		return ch, true
	}
	inflight[imageURL] = make(chan struct{})
	return nil, false
}

func releaseExtraction(imageURL string) {
	inflightMu.Lock()
	ch := inflight[imageURL]
	delete(inflight, imageURL)
	inflightMu.Unlock()
	if ch != nil {
		close(ch)
	}
}

func serveStoredWeek(c *gin.Context, weekStart, imageURL string) {
	var entries []models.TruckScheduleEntry
	if err := db.Where("week_start = ?", weekStart).Order("day, start, truck").Find(&entries).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"week_start": weekStart, "entries": entriesJSON(entries), "image_url": imageURL})
}

// upsertEntries writes extracted rows inside one transaction, updating hours
// and notes for (week, day, truck) rows that already exist. Stale rows are
// left alone; DELETE /foodtrucks/schedule clears a week outright.
func upsertEntries(weekStart, imageURL string, entries []schedule.Entry) error {
	tx := db.Begin()
	if tx.Error != nil {
		return tx.Error
	}
	for _, e := range entries {
		rec := models.TruckScheduleEntry{
			WeekStart: e.WeekStart,
			Day:       e.Day,
			Truck:     e.Truck,
			Start:     e.Start,
			End:       e.End,
			Cuisine:   e.Cuisine,
			Notes:     e.Notes,
			ImageURL:  imageURL,
		}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "week_start"}, {Name: "day"}, {Name: "truck"}},
			DoUpdates: clause.AssignmentColumns([]string{"start", "end", "cuisine", "notes", "image_url"}),
		}).Create(&rec).Error
		if err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit().Error
}

func entriesJSON(entries []models.TruckScheduleEntry) []schedule.Entry {
	out := make([]schedule.Entry, 0, len(entries))
	for _, e := range entries {
		out = append(out, schedule.Entry{
			WeekStart: e.WeekStart,
			Truck:     e.Truck,
			Day:       e.Day,
			Start:     e.Start,
			End:       e.End,
			Cuisine:   e.Cuisine,
			Notes:     e.Notes,
		})
	}
	return out
}

// proxyImageHandler streams a schedule image from the dining site so browser
// clients do not hit cross-origin blocks. Only the dining host is allowed.
func proxyImageHandler(c *gin.Context) {
	raw := c.Query("url")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url required"})
		return
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid url"})
		return
	}
	src, err := url.Parse(diningSourceURL())
	if err != nil || !strings.EqualFold(u.Host, src.Host) {
		c.JSON(http.StatusForbidden, gin.H{"error": "host not allowed"})
		return
	}
	req, err := http.NewRequestWithContext(c.Request.Context(), http.MethodGet, raw, nil)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid url"})
		return
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "fetch failed"})
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream error"})
		return
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "image/png"
	}
	c.Header("Cache-Control", "public, max-age=3600")
	c.DataFromReader(http.StatusOK, resp.ContentLength, ct, resp.Body, nil)
}

// ocrUpload extracts a schedule from an uploaded image and caches the result
// under the given week. Useful for images not yet published on the dining site.
func ocrUpload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file missing"})
		return
	}
	if file.Size > 10*1024*1024 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file too large (max 10MB)"})
		return
	}
	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "open failed"})
		return
	}
	defer f.Close()
	img, err := imaging.Decode(io.LimitReader(f, 10*1024*1024))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "not a decodable image"})
		return
	}
	weekStart := c.PostForm("week_start")
	if weekStart == "" {
		weekStart = time.Now().Format("2006-01-02")
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Minute)
	defer cancel()
	p := schedule.NewPipeline(schedule.NewTesseractRecognizer())
	res, err := p.Extract(ctx, img, weekStart)
	if errors.Is(err, schedule.ErrNoSchedule) {
		c.JSON(http.StatusOK, gin.H{"week_start": weekStart, "entries": []schedule.Entry{}, "condition": "could_not_parse"})
		return
	}
	if err != nil {
		log.Printf("upload extraction failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "extraction failed"})
		return
	}
	if err := upsertEntries(weekStart, "", res.Entries); err != nil {
		log.Printf("store entries failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store failed"})
		return
	}
	entries := res.Entries
	if entries == nil {
		entries = []schedule.Entry{}
	}
	c.JSON(http.StatusOK, gin.H{"week_start": weekStart, "entries": entries, "path": res.Path, "strategy": res.Strategy})
}

// purgeScheduleHandler drops cached entries for a week so the next extraction
// or submission starts from scratch. Admin only.
func purgeScheduleHandler(c *gin.Context) {
	role, _ := c.Get("role")
	if role != "administrator" {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	weekStart := c.Query("week_start")
	if weekStart == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "week_start required"})
		return
	}
	res := db.Where("week_start = ?", weekStart).Delete(&models.TruckScheduleEntry{})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": res.RowsAffected})
}
