package linkedinads

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/ajitpratap0/linkedin-ads-tap/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldChunks(t *testing.T) {
	t.Run("forty fields", func(t *testing.T) {
		chunks := FieldChunks(analyticsMetrics)
		require.Len(t, chunks, 4)
		assert.Equal(t, []string{"dateRange", "pivotValues"}, chunks[0])

		sizes := make([]int, 0, 3)
		for _, chunk := range chunks[1:] {
			sizes = append(sizes, len(chunk)-len(requiredAnalyticsFields))
		}
		assert.Equal(t, []int{18, 18, 4}, sizes)

		for _, chunk := range chunks {
			assert.Contains(t, chunk, "dateRange")
			assert.Contains(t, chunk, "pivotValues")
			assert.LessOrEqual(t, len(chunk), MaxChunkLength+2)
		}
		assert.Equal(t, "actionClicks", chunks[1][0])
		assert.Contains(t, chunks[3], "viralImpressions")
	})

	t.Run("unsupported and duplicate fields dropped", func(t *testing.T) {
		chunks := FieldChunks([]string{"impressions", "campaign_id", "start_at", "pivot_value_name", "impressions", "date_range"})
		assert.Equal(t, [][]string{
			{"dateRange", "pivotValues"},
			{"impressions", "dateRange", "pivotValues"},
		}, chunks)
	})

	t.Run("no fields", func(t *testing.T) {
		assert.Equal(t, [][]string{{"dateRange", "pivotValues"}}, FieldChunks(nil))
	})
}

func TestDateWindows(t *testing.T) {
	today := testutil.Date(2024, 2, 1)

	w := FirstWindow(testutil.Date(2024, 1, 1), 30, today)
	assert.Equal(t, DateWindow{Start: testutil.Date(2023, 12, 25), End: testutil.Date(2024, 1, 24)}, w)

	w = w.Next(today, 30, 0)
	assert.Equal(t, DateWindow{Start: testutil.Date(2024, 1, 24), End: testutil.Date(2024, 2, 1)}, w)
	assert.False(t, w.Empty())

	w = w.Next(today, 30, 0)
	assert.True(t, w.Empty())

	t.Run("clamped to today", func(t *testing.T) {
		w := FirstWindow(testutil.Date(2024, 1, 30), 30, today)
		assert.Equal(t, DateWindow{Start: testutil.Date(2024, 1, 23), End: today}, w)
	})

	t.Run("bookmark in the future", func(t *testing.T) {
		w := FirstWindow(testutil.Date(2024, 3, 1), 30, today)
		assert.Equal(t, today, w.Start)
		assert.True(t, w.Empty())
	})

	t.Run("forced size", func(t *testing.T) {
		w := DateWindow{Start: testutil.Date(2024, 1, 1), End: testutil.Date(2024, 1, 2)}.Next(today, 30, 3)
		assert.Equal(t, testutil.Date(2024, 1, 5), w.End)
	})

	t.Run("params", func(t *testing.T) {
		p := DateWindow{Start: testutil.Date(2023, 12, 25), End: testutil.Date(2024, 1, 24)}.Params()
		assert.Equal(t, "dateRange.start.day=25&dateRange.start.month=12&dateRange.start.year=2023"+
			"&dateRange.end.day=24&dateRange.end.month=1&dateRange.end.year=2024", p.Encode())
	})
}

func analyticsBody(pivotValue string, day int, fields string) map[string]interface{} {
	return testutil.Body(fmt.Sprintf(`{"elements":[{
		"dateRange":{"start":{"year":2024,"month":1,"day":%d},"end":{"year":2024,"month":1,"day":%d}},
		"pivotValues":[%q]%s
	}],"paging":{"links":[]}}`, day, day, pivotValue, fields))
}

func TestSyncAnalyticsWindows(t *testing.T) {
	h := newHarness()
	h.accounts = []string{"99"}
	h.state.SetBookmark("ad_analytics_by_campaign", "2024-01-01T00:00:00.000000Z")
	h.fields["ad_analytics_by_campaign"] = []string{"impressions", "clicks"}
	h.client.
		OnPrefix(campaignsPrefix, campaignsPage(5)).
		OnPrefix("https://api.linkedin.com/rest/adAnalytics", analyticsBody("urn:li:sponsoredCampaign:5", 20, `,"impressions":10,"clicks":2`))

	require.NoError(t, h.syncer(t, "ad_analytics_by_campaign").Run(context.Background()))

	calls := h.client.CallsTo("https://api.linkedin.com/rest/adAnalytics")
	require.Len(t, calls, 4, "two windows of two field chunks")

	first := "dateRange.start.day=25&dateRange.start.month=12&dateRange.start.year=2023&dateRange.end.day=24&dateRange.end.month=1&dateRange.end.year=2024"
	second := "dateRange.start.day=24&dateRange.start.month=1&dateRange.start.year=2024&dateRange.end.day=1&dateRange.end.month=2&dateRange.end.year=2024"
	assert.Equal(t, "https://api.linkedin.com/rest/adAnalytics?start=0&q=analytics&pivot=CAMPAIGN&timeGranularity=DAILY&count=10000"+
		"&campaigns[0]=urn:li:sponsoredCampaign:5&"+first+"&fields=dateRange,pivotValues", calls[0].URL)
	assert.True(t, strings.HasSuffix(calls[1].URL, first+"&fields=impressions,clicks,dateRange,pivotValues"))
	assert.Contains(t, calls[2].URL, second)
	assert.Contains(t, calls[3].URL, second)

	records := h.sink.RecordsFor("ad_analytics_by_campaign")
	require.Len(t, records, 2, "one merged row per window")
	rec := records[0]
	assert.Equal(t, int64(5), rec["campaign_id"])
	assert.Equal(t, "CAMPAIGN", rec["pivot"])
	assert.Equal(t, "urn:li:sponsoredCampaign:5", rec["pivot_value"])
	assert.Equal(t, "2024-01-20T00:00:00.000000Z", rec["start_at"])
	assert.Equal(t, "2024-01-20T00:00:00.000000Z", rec["end_at"])
	assert.Contains(t, rec, "impressions")
	assert.Contains(t, rec, "clicks")

	assert.Equal(t, "2024-01-20T00:00:00.000000Z", h.state.Bookmarks["ad_analytics_by_campaign"])
	assert.Empty(t, h.sink.RecordsFor("campaigns"))
	assert.NotContains(t, h.state.Bookmarks, "campaigns")
}

func TestSyncAnalyticsLookbackFilter(t *testing.T) {
	h := newHarness()
	h.accounts = []string{"99"}
	h.now = testutil.Date(2024, 1, 20)
	h.state.SetBookmark("ad_analytics_by_creative", "2024-01-15T00:00:00.000000Z")
	h.fields["ad_analytics_by_creative"] = []string{"clicks"}
	h.client.
		OnPrefix(campaignsPrefix, campaignsPage(5)).
		OnPrefix("https://api.linkedin.com/rest/adAnalytics", testutil.Body(`{"elements":[
			{"dateRange":{"start":{"year":2024,"month":1,"day":7},"end":{"year":2024,"month":1,"day":7}},"pivotValues":["urn:li:sponsoredCreative:8"],"clicks":1},
			{"dateRange":{"start":{"year":2024,"month":1,"day":8},"end":{"year":2024,"month":1,"day":8}},"pivotValues":["urn:li:sponsoredCreative:8"],"clicks":2},
			{"dateRange":{"start":{"year":2024,"month":1,"day":16},"end":{"year":2024,"month":1,"day":16}},"pivotValues":["urn:li:sponsoredCreative:8"],"clicks":3}
		]}`))

	require.NoError(t, h.syncer(t, "ad_analytics_by_creative").Run(context.Background()))

	records := h.sink.RecordsFor("ad_analytics_by_creative")
	require.Len(t, records, 2, "rows before the look-back baseline are dropped")
	assert.Equal(t, "2024-01-08T00:00:00.000000Z", records[0]["start_at"])
	assert.Equal(t, int64(8), records[0]["creative_id"])
	assert.Equal(t, int64(5), records[0]["campaign_id"])
	assert.Equal(t, "2024-01-16T00:00:00.000000Z", h.state.Bookmarks["ad_analytics_by_creative"])
}

func TestSyncAnalyticsResolvesPivotNames(t *testing.T) {
	h := newHarness()
	h.accounts = []string{"99"}
	h.state.SetBookmark("ad_analytics_by_member_job_title", "2024-01-01T00:00:00.000000Z")
	h.fields["ad_analytics_by_member_job_title"] = []string{"impressions"}
	h.client.
		OnPrefix(campaignsPrefix, campaignsPage(5)).
		OnPrefix("https://api.linkedin.com/rest/adAnalytics", analyticsBody("urn:li:title:10", 20, `,"impressions":4`)).
		On("https://api.linkedin.com/v2/titles?ids=List(10)&locale=en_US",
			testutil.Body(`{"results":{"10":{"name":{"localized":{"en_US":"Engineer"}}}}}`))

	require.NoError(t, h.syncer(t, "ad_analytics_by_member_job_title").Run(context.Background()))

	records := h.sink.RecordsFor("ad_analytics_by_member_job_title")
	require.NotEmpty(t, records)
	assert.Equal(t, "Engineer", records[0]["pivot_value_name"])
	assert.Equal(t, "MEMBER_JOB_TITLE", records[0]["pivot"])
	assert.Equal(t, int64(5), records[0]["campaign_id"])
	assert.Contains(t, h.client.URLs()[1], "timeGranularity=MONTHLY")
	assert.Len(t, h.client.CallsTo("https://api.linkedin.com/v2/titles"), 1, "names are cached across windows")
}

func TestSyncAnalyticsSiblingsShareParentPage(t *testing.T) {
	h := newHarness()
	h.accounts = []string{"99"}
	h.client.
		OnPrefix(campaignsPrefix, campaignsPage(1, 2)).
		OnPrefix("https://api.linkedin.com/rest/adAnalytics", testutil.Body(`{"elements":[]}`))
	h.now = testutil.Date(2023, 6, 10)

	require.NoError(t, h.syncer(t, "ad_analytics_by_campaign", "ad_analytics_by_creative").Run(context.Background()))

	assert.Len(t, h.client.CallsTo(campaignsPrefix), 1, "the parent is paged once")
	for _, id := range []string{"1", "2"} {
		for _, pivot := range []string{"CAMPAIGN", "CREATIVE"} {
			found := false
			for _, c := range h.client.CallsTo("https://api.linkedin.com/rest/adAnalytics") {
				if strings.Contains(c.URL, "pivot="+pivot) && strings.Contains(c.URL, "campaigns[0]=urn:li:sponsoredCampaign:"+id+"&") {
					found = true
				}
			}
			assert.True(t, found, "pivot %s for campaign %s", pivot, id)
		}
	}
	assert.Equal(t, []string{"ad_analytics_by_campaign", "ad_analytics_by_creative"}, h.sink.SchemaStreams())
	assert.Equal(t, "2023-06-01T00:00:00.000000Z", h.state.Bookmarks["ad_analytics_by_campaign"])
}
