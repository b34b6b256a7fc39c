package instagram

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

var linkPattern = regexp.MustCompile(`(?:https?://)?(?:www\.)?instagram\.com/(?:reel/|p/|stories/|s/aGlnaGxpZ2h0)\S*`)

var ErrNoShortcode = errors.New("no shortcode in instagram link")

// FindLink returns the first reel, post, story or highlight link in text.
func FindLink(text string) (string, bool) {
	link := linkPattern.FindString(text)
	if link == "" {
		return "", false
	}
	if !strings.HasPrefix(link, "http") {
		link = "https://" + link
	}
	return link, true
}

// Shortcode extracts the media identifier from a link.
// Posts and reels use the segment after p/ or reel/; stories and highlights use the last segment.
func Shortcode(link string) (string, error) {
	parsed, err := url.Parse(link)
	if err != nil {
		return "", err
	}

	var segments []string
	for _, s := range strings.Split(parsed.Path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	if len(segments) < 2 {
		return "", ErrNoShortcode
	}

	switch segments[0] {
	case "p", "reel", "reels", "tv":
		return segments[1], nil
	default:
		return segments[len(segments)-1], nil
	}
}
