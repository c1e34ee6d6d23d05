package linkedinads

import (
	"testing"

	"github.com/ajitpratap0/linkedin-ads-tap/pkg/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNextURLToken(t *testing.T) {
	tests := []struct {
		name   string
		prev   string
		body   string
		want   string
		wantOK bool
	}{
		{
			name:   "appends token",
			prev:   "https://api.linkedin.com/rest/adAccounts?pageSize=1000&q=search",
			body:   `{"elements":[{}],"metadata":{"nextPageToken":"abc"}}`,
			want:   "https://api.linkedin.com/rest/adAccounts?pageSize=1000&q=search&pageToken=abc",
			wantOK: true,
		},
		{
			name:   "replaces token",
			prev:   "https://api.linkedin.com/rest/adAccounts?pageSize=1000&pageToken=abc&q=search",
			body:   `{"metadata":{"nextPageToken":"def"}}`,
			want:   "https://api.linkedin.com/rest/adAccounts?pageSize=1000&pageToken=def&q=search",
			wantOK: true,
		},
		{
			name: "no token ends",
			prev: "https://api.linkedin.com/rest/adAccounts?pageSize=1000",
			body: `{"metadata":{}}`,
		},
		{
			name: "links ignored in token mode",
			prev: "https://api.linkedin.com/rest/adAccounts?pageSize=1000",
			body: `{"paging":{"links":[{"rel":"next","href":"/rest/adAccounts?start=10"}]}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NextURL(PaginateToken, tt.prev, testutil.Body(tt.body))
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextURLLinks(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		want   string
		wantOK bool
	}{
		{
			name:   "decodes href",
			body:   `{"paging":{"links":[{"rel":"prev","href":"/rest/adAnalytics?start=0"},{"rel":"next","href":"/rest/adAnalytics?q=analytics&campaigns%5B0%5D=urn%3Ali%3AsponsoredCampaign%3A1&start=10"}]}}`,
			want:   "https://api.linkedin.com/rest/adAnalytics?q=analytics&campaigns[0]=urn:li:sponsoredCampaign:1&start=10",
			wantOK: true,
		},
		{
			name:   "creatives href verbatim",
			body:   `{"paging":{"links":[{"rel":"next","href":"/rest/creatives?campaigns=List(urn%3Ali%3AsponsoredCampaign%3A1)&start=100"}]}}`,
			want:   "https://api.linkedin.com/rest/creatives?campaigns=List(urn%3Ali%3AsponsoredCampaign%3A1)&start=100",
			wantOK: true,
		},
		{
			name:   "posts href verbatim",
			body:   `{"paging":{"links":[{"rel":"next","href":"/rest/posts?dscAdAccount=urn%3Ali%3AsponsoredAccount%3A9&start=100"}]}}`,
			want:   "https://api.linkedin.com/rest/posts?dscAdAccount=urn%3Ali%3AsponsoredAccount%3A9&start=100",
			wantOK: true,
		},
		{
			name: "no next link",
			body: `{"paging":{"links":[{"rel":"prev","href":"/rest/adAccountUsers?start=0"}]}}`,
		},
		{
			name: "no paging",
			body: `{"elements":[]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NextURL(PaginateLinks, "https://api.linkedin.com/rest/x?start=0", testutil.Body(tt.body))
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
