package linkedinads

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/ajitpratap0/linkedin-ads-tap/pkg/clients"
)

const (
	apiHost  = clients.DefaultBaseURL
	restBase = apiHost + "/rest"
)

var pageTokenPattern = regexp.MustCompile(`pageToken=[^&]+`)

// verbatimLinkPaths mark next-page hrefs that must stay percent-encoded.
var verbatimLinkPaths = []string{"rest/creatives", "rest/posts"}

// NextURL returns the request for the page after prevURL, or false when
// body is the last page.
func NextURL(style PaginationStyle, prevURL string, body map[string]interface{}) (string, bool) {
	if style == PaginateToken {
		return nextTokenURL(prevURL, body)
	}
	return nextLinkURL(body)
}

func nextTokenURL(prevURL string, body map[string]interface{}) (string, bool) {
	metadata, _ := body["metadata"].(map[string]interface{})
	token, _ := metadata["nextPageToken"].(string)
	if token == "" {
		return "", false
	}
	if strings.Contains(prevURL, "pageToken=") {
		return pageTokenPattern.ReplaceAllLiteralString(prevURL, "pageToken="+token), true
	}
	return prevURL + "&pageToken=" + token, true
}

func nextLinkURL(body map[string]interface{}) (string, bool) {
	paging, _ := body["paging"].(map[string]interface{})
	links, _ := paging["links"].([]interface{})

	next := ""
	for _, l := range links {
		link, ok := l.(map[string]interface{})
		if !ok || link["rel"] != "next" {
			continue
		}
		href, _ := link["href"].(string)
		if href == "" {
			continue
		}
		for _, p := range verbatimLinkPaths {
			if strings.Contains(href, p) {
				return apiHost + href, true
			}
		}
		if unescaped, err := url.PathUnescape(href); err == nil {
			href = unescaped
		}
		next = apiHost + href
	}
	return next, next != ""
}
