package extraction

import (
	"strings"
)

// Image describes a candidate image discovered in page content, scored for
// how likely it is to depict a creative work.
type Image struct {
	URL            string
	AltText        string
	Position       int
	NearbyText     string
	HeuristicScore float64
	EstimatedType  string
}

// Estimated image types produced by the heuristics.
const (
	ImageTypeBookCover   = "book_cover"
	ImageTypeMoviePoster = "movie_poster"
	ImageTypeTVPoster    = "tv_poster"
	ImageTypeUnknown     = "unknown"
)

type imageCollector struct {
	images []Image
	seen   map[string]struct{}
	max    int
}

func newImageCollector(max int) *imageCollector {
	return &imageCollector{seen: make(map[string]struct{}), max: max}
}

func (c *imageCollector) add(src, alt, nearby string) {
	if c.max > 0 && len(c.images) >= c.max {
		return
	}
	if _, dup := c.seen[src]; dup {
		return
	}
	if isDecorativeImage(src, alt) {
		return
	}
	c.seen[src] = struct{}{}
	score, estimated := scoreImage(src, alt, nearby)
	c.images = append(c.images, Image{
		URL:            src,
		AltText:        alt,
		Position:       len(c.images),
		NearbyText:     nearby,
		HeuristicScore: score,
		EstimatedType:  estimated,
	})
}

var decorativeFragments = []string{
	"sprite", "icon", "logo", "avatar", "badge", "pixel", "spacer",
	"tracking", "advert", "banner", "1x1", "emoji", "favicon",
}

func isDecorativeImage(src, alt string) bool {
	lowered := strings.ToLower(src)
	for _, fragment := range decorativeFragments {
		if strings.Contains(lowered, fragment) {
			return true
		}
	}
	loweredAlt := strings.ToLower(alt)
	return loweredAlt == "logo" || loweredAlt == "icon"
}

var (
	bookSignals  = []string{"book", "cover", "novel", "paperback", "hardcover", "isbn", "read"}
	movieSignals = []string{"movie", "film", "poster", "cinema", "trailer"}
	tvSignals    = []string{"tv", "series", "season", "episode", "show"}
)

// scoreImage estimates how likely an image depicts a creative work using its
// URL, alt text, and surrounding prose. Scores stay coarse; the vision pass
// makes the real call.
func scoreImage(src, alt, nearby string) (float64, string) {
	haystack := strings.ToLower(src + " " + alt + " " + nearby)

	bookHits := countSignals(haystack, bookSignals)
	movieHits := countSignals(haystack, movieSignals)
	tvHits := countSignals(haystack, tvSignals)

	best := bookHits
	estimated := ImageTypeBookCover
	if movieHits > best {
		best = movieHits
		estimated = ImageTypeMoviePoster
	}
	if tvHits > best {
		best = tvHits
		estimated = ImageTypeTVPoster
	}
	if best == 0 {
		estimated = ImageTypeUnknown
	}

	score := 0.2
	if alt != "" {
		score += 0.2
	}
	if nearby != "" {
		score += 0.1
	}
	score += 0.15 * float64(best)
	if score > 1 {
		score = 1
	}
	return score, estimated
}

func countSignals(haystack string, signals []string) int {
	hits := 0
	for _, signal := range signals {
		if strings.Contains(haystack, signal) {
			hits++
		}
	}
	return hits
}
