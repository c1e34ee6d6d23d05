package linkedinads

import (
	"strconv"
	"strings"

	"github.com/ajitpratap0/linkedin-ads-tap/pkg/models"
)

// ReplicationMethod controls how a stream's records are filtered.
type ReplicationMethod string

const (
	// FullTable streams emit every record on every run.
	FullTable ReplicationMethod = "FULL_TABLE"
	// Incremental streams emit records at or after the bookmark.
	Incremental ReplicationMethod = "INCREMENTAL"
)

// PaginationStyle selects how the next page is requested.
type PaginationStyle int

const (
	// PaginateLinks follows the paging.links entry with rel "next".
	PaginateLinks PaginationStyle = iota
	// PaginateToken passes metadata.nextPageToken back as pageToken.
	PaginateToken
)

// AccountScope describes how a stream's requests are narrowed to accounts.
type AccountScope int

const (
	// ScopeNone issues one shared request.
	ScopeNone AccountScope = iota
	// ScopeAccountPath issues one request per account under
	// /adAccounts/{id}/{path}.
	ScopeAccountPath
	// ScopeAccountParam issues one request per account with an accounts
	// query parameter.
	ScopeAccountParam
	// ScopeSearchIDs narrows a single request with a search on account ids.
	ScopeSearchIDs
)

// Param is one query parameter. Values are sent as written.
type Param struct {
	Key   string
	Value string
}

// Params is an ordered query parameter list. Methods never modify the
// receiver so descriptor params can be shared between requests.
type Params []Param

// Get returns the value for key.
func (p Params) Get(key string) (string, bool) {
	for _, kv := range p {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}

// With returns a copy with key set to value. An existing key keeps its
// position; a new key is appended.
func (p Params) With(key, value string) Params {
	out := make(Params, len(p), len(p)+1)
	copy(out, p)
	for i := range out {
		if out[i].Key == key {
			out[i].Value = value
			return out
		}
	}
	return append(out, Param{Key: key, Value: value})
}

// Merge returns a copy with every parameter of other applied via With.
func (p Params) Merge(other Params) Params {
	out := make(Params, len(p), len(p)+len(other))
	copy(out, p)
	for _, kv := range other {
		out = out.With(kv.Key, kv.Value)
	}
	return out
}

// Encode joins the parameters as key=value pairs separated by "&".
func (p Params) Encode() string {
	parts := make([]string, len(p))
	for i, kv := range p {
		parts[i] = kv.Key + "=" + kv.Value
	}
	return strings.Join(parts, "&")
}

// Descriptor is the static definition of one stream.
type Descriptor struct {
	Name          string
	Replication   ReplicationMethod
	BookmarkField string
	KeyProperties []string

	// Path is the REST resource under /rest, DataKey the response collection.
	Path    string
	DataKey string
	Params  Params
	Headers map[string]string

	Pagination PaginationStyle
	Scope      AccountScope
	// FixedPageSize overrides the configured page size when non-zero.
	FixedPageSize int

	Parent   string
	Children []string
	// ForeignKey is the parent record field holding the parent's id.
	ForeignKey string
	// ParentKey is set on this stream's records from the parent id when
	// the record lacks it.
	ParentKey string
	// ParentParam is added to requests made for one parent record. "{id}"
	// in the value is replaced with the parent id.
	ParentParam Param

	// Pivot marks an analytics stream and names its pivot dimension.
	Pivot    string
	Resolver Category
	// DefaultFields is the analytics field selection when none is configured.
	DefaultFields []string

	// ToleratedError is an API error text treated as an empty sync.
	ToleratedError string
}

// IsAnalytics reports whether the stream is synced in date windows.
func (d *Descriptor) IsAnalytics() bool {
	return d.Pivot != ""
}

// parentParams builds the per-parent overlay for parentID.
func (d *Descriptor) parentParams(parentID string) Params {
	if d.ParentParam.Key == "" {
		return nil
	}
	return Params{{Key: d.ParentParam.Key, Value: strings.ReplaceAll(d.ParentParam.Value, "{id}", parentID)}}
}

const restliHeader = "X-Restli-Protocol-Version"

var restliV2 = map[string]string{restliHeader: "2.0.0"}

const (
	accountURN  = "urn%3Ali%3AsponsoredAccount%3A"
	campaignURN = "urn:li:sponsoredCampaign:"

	videoAdsPermissionError = "Not enough permissions to access: partnerApiPostsExternal"
)

var campaignStatuses = []string{"ACTIVE", "PAUSED", "ARCHIVED", "COMPLETED", "CANCELED", "DRAFT", "PENDING_DELETION", "REMOVED"}

func campaignSearchParams() Params {
	p := Params{{Key: "q", Value: "search"}}
	for i, status := range campaignStatuses {
		p = append(p, Param{Key: "search.status.values[" + strconv.Itoa(i) + "]", Value: status})
	}
	return p
}

// analyticsMetrics is the default field selection for analytics streams.
var analyticsMetrics = []string{
	"action_clicks", "ad_unit_clicks", "approximate_member_reach", "average_dwell_time",
	"card_clicks", "card_impressions", "clicks", "comment_likes", "comments",
	"company_page_clicks", "conversion_value_in_local_currency", "cost_in_local_currency",
	"cost_in_usd", "external_website_conversions", "external_website_post_click_conversions",
	"external_website_post_view_conversions", "follows", "full_screen_plays", "impressions",
	"landing_page_clicks", "lead_generation_mail_contact_info_shares",
	"lead_generation_mail_interested_clicks", "likes", "one_click_lead_form_opens",
	"one_click_leads", "opens", "other_engagements", "reactions", "sends", "shares",
	"text_url_clicks", "total_engagements", "video_completions",
	"video_first_quartile_completions", "video_midpoint_completions", "video_starts",
	"video_third_quartile_completions", "video_views", "viral_clicks", "viral_impressions",
}

func analytics(name, pivot, granularity string, keys []string, resolver Category) *Descriptor {
	return &Descriptor{
		Name:          name,
		Replication:   Incremental,
		BookmarkField: "end_at",
		KeyProperties: keys,
		Path:          "adAnalytics",
		DataKey:       "elements",
		Params: Params{
			{Key: "q", Value: "analytics"},
			{Key: "pivot", Value: pivot},
			{Key: "timeGranularity", Value: granularity},
			{Key: "count", Value: "10000"},
		},
		Pagination:    PaginateLinks,
		Parent:        "campaigns",
		ForeignKey:    "id",
		ParentKey:     "campaign_id",
		ParentParam:   Param{Key: "campaigns[0]", Value: campaignURN + "{id}"},
		Pivot:         pivot,
		Resolver:      resolver,
		DefaultFields: analyticsMetrics,
	}
}

var (
	campaignDayKeys = []string{"campaign_id", "start_at"}
	creativeDayKeys = []string{"creative_id", "start_at"}
)

var descriptors = []*Descriptor{
	{
		Name:          "accounts",
		Replication:   FullTable,
		BookmarkField: "last_modified_time",
		KeyProperties: []string{"id"},
		Path:          "adAccounts",
		DataKey:       "elements",
		Params:        Params{{Key: "q", Value: "search"}},
		Headers:       restliV2,
		Pagination:    PaginateToken,
		Scope:         ScopeSearchIDs,
		FixedPageSize: 1000,
		Children:      []string{"video_ads"},
	},
	{
		Name:          "video_ads",
		Replication:   Incremental,
		BookmarkField: "last_modified_time",
		KeyProperties: []string{"content_reference"},
		Path:          "posts",
		DataKey:       "elements",
		Params: Params{
			{Key: "q", Value: "dscAdAccount"},
			{Key: "dscAdTypes", Value: "List(VIDEO)"},
			{Key: "count", Value: "100"},
		},
		Headers:        restliV2,
		Pagination:     PaginateLinks,
		Parent:         "accounts",
		ForeignKey:     "id",
		ParentKey:      "account_id",
		ParentParam:    Param{Key: "dscAdAccount", Value: accountURN + "{id}"},
		ToleratedError: videoAdsPermissionError,
	},
	{
		Name:          "account_users",
		Replication:   FullTable,
		BookmarkField: "last_modified_time",
		KeyProperties: []string{"account_id", "user_person_id"},
		Path:          "adAccountUsers",
		DataKey:       "elements",
		Params:        Params{{Key: "q", Value: "accounts"}},
		Pagination:    PaginateLinks,
		Scope:         ScopeAccountParam,
	},
	{
		Name:          "campaign_groups",
		Replication:   FullTable,
		BookmarkField: "last_modified_time",
		KeyProperties: []string{"id"},
		Path:          "adCampaignGroups",
		DataKey:       "elements",
		Params:        Params{{Key: "q", Value: "search"}},
		Pagination:    PaginateToken,
		Scope:         ScopeAccountPath,
	},
	{
		Name:          "campaigns",
		Replication:   FullTable,
		BookmarkField: "last_modified_time",
		KeyProperties: []string{"id"},
		Path:          "adCampaigns",
		DataKey:       "elements",
		Params:        campaignSearchParams(),
		Pagination:    PaginateToken,
		Scope:         ScopeAccountPath,
		Children: []string{
			"creatives",
			"ad_analytics_by_campaign",
			"ad_analytics_by_creative",
			"ad_analytics_by_member_company_size",
			"ad_analytics_by_member_industry",
			"ad_analytics_by_member_seniority",
			"ad_analytics_by_member_job_title",
			"ad_analytics_by_member_job_function",
			"ad_analytics_by_member_country_v2",
			"ad_analytics_by_member_region_v2",
			"ad_analytics_by_member_company",
			"ad_analytics_by_placement_name",
		},
	},
	{
		Name:          "creatives",
		Replication:   FullTable,
		BookmarkField: "last_modified_at",
		KeyProperties: []string{"id"},
		Path:          "creatives",
		DataKey:       "elements",
		Params: Params{
			{Key: "q", Value: "criteria"},
			{Key: "sortOrder", Value: "ASCENDING"},
		},
		Headers:     map[string]string{restliHeader: "2.0.0", "X-RestLi-Method": "FINDER"},
		Pagination:  PaginateToken,
		Scope:       ScopeAccountPath,
		Parent:      "campaigns",
		ForeignKey:  "id",
		ParentKey:   "campaign_id",
		ParentParam: Param{Key: "campaigns", Value: "List(urn%3Ali%3AsponsoredCampaign%3A{id})"},
	},
	analytics("ad_analytics_by_campaign", "CAMPAIGN", "DAILY", campaignDayKeys, ""),
	analytics("ad_analytics_by_creative", "CREATIVE", "DAILY", creativeDayKeys, ""),
	analytics("ad_analytics_by_member_company_size", "MEMBER_COMPANY_SIZE", "MONTHLY", campaignDayKeys, ""),
	analytics("ad_analytics_by_member_industry", "MEMBER_INDUSTRY", "MONTHLY", campaignDayKeys, CategoryIndustries),
	analytics("ad_analytics_by_member_seniority", "MEMBER_SENIORITY", "MONTHLY", campaignDayKeys, CategorySeniorities),
	analytics("ad_analytics_by_member_job_title", "MEMBER_JOB_TITLE", "MONTHLY", campaignDayKeys, CategoryTitles),
	analytics("ad_analytics_by_member_job_function", "MEMBER_JOB_FUNCTION", "MONTHLY", campaignDayKeys, CategoryFunctions),
	analytics("ad_analytics_by_member_country_v2", "MEMBER_COUNTRY_V2", "MONTHLY", campaignDayKeys, CategoryGeo),
	analytics("ad_analytics_by_member_region_v2", "MEMBER_REGION_V2", "MONTHLY", campaignDayKeys, CategoryGeo),
	analytics("ad_analytics_by_member_company", "MEMBER_COMPANY", "MONTHLY", campaignDayKeys, CategoryOrganizations),
	analytics("ad_analytics_by_placement_name", "PLACEMENT_NAME", "MONTHLY", campaignDayKeys, ""),
}

var byName = func() map[string]*Descriptor {
	m := make(map[string]*Descriptor, len(descriptors))
	for _, d := range descriptors {
		m[d.Name] = d
	}
	return m
}()

// Lookup returns the descriptor for a stream name.
func Lookup(name string) (*Descriptor, bool) {
	d, ok := byName[name]
	return d, ok
}

// Streams returns every descriptor in sync order.
func Streams() []*Descriptor {
	out := make([]*Descriptor, len(descriptors))
	copy(out, descriptors)
	return out
}

// StreamNames returns every stream name in sync order.
func StreamNames() []string {
	names := make([]string, len(descriptors))
	for i, d := range descriptors {
		names[i] = d.Name
	}
	return names
}

var (
	nullableInteger = map[string]interface{}{"type": []interface{}{"null", "integer"}}
	nullableNumber  = map[string]interface{}{"type": []interface{}{"null", "number"}}
	nullableString  = map[string]interface{}{"type": []interface{}{"null", "string"}}
	nullableTime    = map[string]interface{}{"type": []interface{}{"null", "string"}, "format": "date-time"}
)

// Schema returns the SCHEMA message body for the stream. Structural streams
// declare their key and replication fields and allow any other property.
func (d *Descriptor) Schema() models.Schema {
	props := make(map[string]interface{})
	for _, key := range d.KeyProperties {
		props[key] = propertyFor(key)
	}
	if d.ParentKey != "" {
		props[d.ParentKey] = nullableInteger
	}
	props[d.BookmarkField] = nullableTime

	doc := map[string]interface{}{
		"type":                 "object",
		"additionalProperties": !d.IsAnalytics(),
	}
	if d.IsAnalytics() {
		props["start_at"] = nullableTime
		props["end_at"] = nullableTime
		props["pivot"] = nullableString
		props["pivot_value"] = nullableString
		props["pivot_value_name"] = nullableString
		props["campaign_id"] = nullableInteger
		props["creative_id"] = nullableInteger
		for _, metric := range d.DefaultFields {
			props[metric] = nullableNumber
		}
	} else {
		props["created_time"] = nullableTime
		props["last_modified_time"] = nullableTime
	}
	doc["properties"] = props

	var bookmarks []string
	if d.Replication == Incremental {
		bookmarks = []string{d.BookmarkField}
	}
	return models.Schema{
		Stream:             d.Name,
		Properties:         doc,
		KeyProperties:      append([]string(nil), d.KeyProperties...),
		BookmarkProperties: bookmarks,
	}
}

func propertyFor(field string) map[string]interface{} {
	switch {
	case strings.HasSuffix(field, "_person_id"):
		return nullableString
	case field == "id" || strings.HasSuffix(field, "_id"):
		return nullableInteger
	case strings.HasSuffix(field, "_at") || strings.HasSuffix(field, "_time"):
		return nullableTime
	default:
		return nullableString
	}
}
