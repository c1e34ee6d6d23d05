package linkedinads

import (
	"testing"

	"github.com/ajitpratap0/linkedin-ads-tap/pkg/config"
	"github.com/ajitpratap0/linkedin-ads-tap/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParams(t *testing.T) {
	base := Params{{Key: "q", Value: "search"}, {Key: "count", Value: "100"}}

	replaced := base.With("count", "10")
	assert.Equal(t, "q=search&count=10", replaced.Encode())
	assert.Equal(t, "q=search&count=100", base.Encode(), "With copies")

	appended := base.With("start", "0")
	assert.Equal(t, "q=search&count=100&start=0", appended.Encode())

	merged := base.Merge(Params{{Key: "count", Value: "5"}, {Key: "fields", Value: "id"}})
	assert.Equal(t, "q=search&count=5&fields=id", merged.Encode())
	assert.Equal(t, "q=search&count=100", base.Encode(), "Merge copies")

	v, ok := merged.Get("fields")
	assert.True(t, ok)
	assert.Equal(t, "id", v)
	_, ok = merged.Get("missing")
	assert.False(t, ok)

	assert.Equal(t, "", Params(nil).Encode())
}

func TestRegistryInvariants(t *testing.T) {
	names := StreamNames()
	assert.Len(t, names, 17)
	assert.Equal(t, "accounts", names[0])

	seen := make(map[string]bool)
	for _, d := range Streams() {
		require.False(t, seen[d.Name], "duplicate stream %s", d.Name)
		seen[d.Name] = true

		assert.NotEmpty(t, d.KeyProperties, d.Name)
		assert.NotEmpty(t, d.BookmarkField, d.Name)
		assert.Equal(t, "elements", d.DataKey, d.Name)

		for _, childName := range d.Children {
			child, ok := Lookup(childName)
			require.True(t, ok, "%s lists unknown child %s", d.Name, childName)
			assert.Equal(t, d.Name, child.Parent)
		}
		if d.Parent != "" {
			parent, ok := Lookup(d.Parent)
			require.True(t, ok)
			assert.Contains(t, parent.Children, d.Name)
			assert.NotEmpty(t, d.ForeignKey, d.Name)
			assert.NotEmpty(t, d.ParentParam.Key, d.Name)
		}
		if d.IsAnalytics() {
			assert.Equal(t, Incremental, d.Replication, d.Name)
			assert.Equal(t, "end_at", d.BookmarkField, d.Name)
			assert.Equal(t, "campaigns", d.Parent, d.Name)
		}
	}

	_, ok := Lookup("ad_analytics_by_campaign_group")
	assert.False(t, ok)
}

func TestParentParams(t *testing.T) {
	d, _ := Lookup("video_ads")
	assert.Equal(t, Params{{Key: "dscAdAccount", Value: "urn%3Ali%3AsponsoredAccount%3A7"}}, d.parentParams("7"))

	d, _ = Lookup("ad_analytics_by_member_company")
	assert.Equal(t, Params{{Key: "campaigns[0]", Value: "urn:li:sponsoredCampaign:12"}}, d.parentParams("12"))
	assert.Equal(t, CategoryOrganizations, d.Resolver)

	d, _ = Lookup("accounts")
	assert.Nil(t, d.parentParams("1"))
}

func TestSchema(t *testing.T) {
	t.Run("structural", func(t *testing.T) {
		d, _ := Lookup("account_users")
		s := d.Schema()
		assert.Equal(t, "account_users", s.Stream)
		assert.Equal(t, []string{"account_id", "user_person_id"}, s.KeyProperties)
		assert.Empty(t, s.BookmarkProperties, "full-table streams have no replication key")
		assert.Equal(t, true, s.Properties["additionalProperties"])

		props := s.Properties["properties"].(map[string]interface{})
		assert.Equal(t, nullableString, props["user_person_id"])
		assert.Equal(t, nullableTime, props["last_modified_time"])
	})

	t.Run("analytics", func(t *testing.T) {
		d, _ := Lookup("ad_analytics_by_creative")
		s := d.Schema()
		assert.Equal(t, []string{"creative_id", "start_at"}, s.KeyProperties)
		assert.Equal(t, false, s.Properties["additionalProperties"])
		assert.Equal(t, []string{"end_at"}, s.BookmarkProperties)

		props := s.Properties["properties"].(map[string]interface{})
		for _, field := range []string{"start_at", "end_at", "pivot", "pivot_value", "pivot_value_name", "campaign_id", "creative_id", "impressions", "cost_in_usd"} {
			assert.Contains(t, props, field)
		}
		assert.Equal(t, nullableNumber, props["impressions"])
	})
}

func TestCatalog(t *testing.T) {
	c, err := NewCatalog(map[string]config.StreamSelection{
		"creatives":                {Selected: true},
		"ad_analytics_by_campaign": {Selected: true, Fields: []string{"clicks"}},
		"accounts":                 {Selected: false},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"creatives", "ad_analytics_by_campaign"}, c.Selected())
	assert.False(t, c.IsSelected("accounts"))

	campaigns, _ := Lookup("campaigns")
	accounts, _ := Lookup("accounts")
	assert.True(t, c.Needed(campaigns), "parent of selected children")
	assert.False(t, c.Needed(accounts))

	analytics, _ := Lookup("ad_analytics_by_campaign")
	assert.Equal(t, []string{"clicks"}, c.Fields(analytics))
	other, _ := Lookup("ad_analytics_by_creative")
	assert.Equal(t, analyticsMetrics, c.Fields(other))

	t.Run("unknown stream", func(t *testing.T) {
		_, err := NewCatalog(map[string]config.StreamSelection{"ads": {Selected: true}, "accounts": {Selected: true}})
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	})
}
