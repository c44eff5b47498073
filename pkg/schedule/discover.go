package schedule

import (
	"context"
	"fmt"
	"image"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"
)

// WeekImage describes one published weekly schedule graphic discovered on
// the dining site. Start/End are inclusive ISO dates.
type WeekImage struct {
	URL   string `json:"url"`
	Label string `json:"label"`
	Start string `json:"start"`
	End   string `json:"end"`
}

const userAgent = "ucmmm-bot/1.0"

// Filename patterns the dining site uses for schedule graphics:
// 8-25-8-31.png (startMonth-startDay-endMonth-endDay) and the occasional
// single-date 9-1.png form, which spans six days from its start.
var (
	weekRangeRE  = regexp.MustCompile(`src="([^"]*?(\d{1,2})-(\d{1,2})-(\d{1,2})-(\d{1,2})\.png)"`)
	weekSingleRE = regexp.MustCompile(`src="([^"]*?/page/images/(\d{1,2})-(\d{1,2})\.png)"`)
)

// ParseWeekImages extracts week-image descriptors from the dining page HTML.
// The year is not encoded in the filenames and must be supplied. Duplicates
// are dropped and results are sorted by start date.
func ParseWeekImages(html, sourceURL string, year int) []WeekImage {
	var weeks []WeekImage
	seen := map[string]struct{}{}

	for _, m := range weekRangeRE.FindAllStringSubmatch(html, -1) {
		full := m[1]
		if _, dup := seen[full]; dup {
			continue
		}
		seen[full] = struct{}{}
		sm, _ := strconv.Atoi(m[2])
		sd, _ := strconv.Atoi(m[3])
		em, _ := strconv.Atoi(m[4])
		ed, _ := strconv.Atoi(m[5])
		weeks = append(weeks, WeekImage{
			URL:   resolveURL(full, sourceURL),
			Label: fmt.Sprintf("%d/%d - %d/%d", sm, sd, em, ed),
			Start: isoDate(year, sm, sd),
			End:   isoDate(year, em, ed),
		})
	}

	for _, m := range weekSingleRE.FindAllStringSubmatch(html, -1) {
		full := m[1]
		if strings.Contains(full, "logo") || strings.Contains(full, "icon") {
			continue
		}
		if _, dup := seen[full]; dup {
			continue
		}
		seen[full] = struct{}{}
		sm, _ := strconv.Atoi(m[2])
		sd, _ := strconv.Atoi(m[3])
		start := time.Date(year, time.Month(sm), sd, 0, 0, 0, 0, time.UTC)
		end := start.AddDate(0, 0, 6)
		weeks = append(weeks, WeekImage{
			URL:   resolveURL(full, sourceURL),
			Label: fmt.Sprintf("%d/%d", sm, sd),
			Start: start.Format("2006-01-02"),
			End:   end.Format("2006-01-02"),
		})
	}

	sort.Slice(weeks, func(i, j int) bool { return weeks[i].Start < weeks[j].Start })
	return weeks
}

func isoDate(year, month, day int) string {
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day)
}

func resolveURL(href, base string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(u).String()
}

// FetchWeekImages downloads the dining page and parses its schedule images.
func FetchWeekImages(ctx context.Context, client *http.Client, sourceURL string) ([]WeekImage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch dining page: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch dining page: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read dining page: %w", err)
	}
	return ParseWeekImages(string(body), sourceURL, time.Now().Year()), nil
}

// ActiveWeek picks the week whose [Start, End] range contains today
// (ISO date string compare), falling back to the most recent week.
func ActiveWeek(weeks []WeekImage, today string) *WeekImage {
	if len(weeks) == 0 {
		return nil
	}
	for i := range weeks {
		if today >= weeks[i].Start && today <= weeks[i].End {
			return &weeks[i]
		}
	}
	return &weeks[len(weeks)-1]
}

// FetchImage retrieves and decodes a schedule image. Non-OK statuses are
// returned as errors so the caller can surface a retryable failure.
func FetchImage(ctx context.Context, client *http.Client, imageURL string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch image: status %d", resp.StatusCode)
	}
	img, err := imaging.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}
