// ABOUTME: Artist analytics document types
// ABOUTME: Mirrors the single-channel and multi-channel analytics JSON files
package analytics

// Trend classifies a channel's recent activity
type Trend string

const (
	TrendHot       Trend = "hot"
	TrendRising    Trend = "rising"
	TrendStable    Trend = "stable"
	TrendDeclining Trend = "declining"
	TrendDormant   Trend = "dormant"
)

// Metadata describes how a document was produced
type Metadata struct {
	TotalArtists      int    `json:"total_artists"`
	TotalChannels     int    `json:"total_channels,omitempty"`
	AnalysisTimestamp string `json:"analysis_timestamp"`
	DataSource        string `json:"data_source"`
	ScriptVersion     string `json:"script_version"`
}

// Leader names the best artist for one metric
type Leader struct {
	Name             string  `json:"name"`
	Subscribers      int64   `json:"subscribers,omitempty"`
	TotalSubscribers int64   `json:"total_subscribers,omitempty"`
	ChannelCount     int     `json:"channel_count,omitempty"`
	EngagementRate   float64 `json:"engagement_rate,omitempty"`
	MomentumScore    float64 `json:"momentum_score,omitempty"`
	UploadFrequency  float64 `json:"upload_frequency,omitempty"`
}

// ChannelMetrics are the metrics shared by every channel entry
type ChannelMetrics struct {
	ChannelName             string  `json:"channel_name"`
	ChannelID               string  `json:"channel_id"`
	Subscribers             int64   `json:"subscribers"`
	TotalViews              int64   `json:"total_views"`
	VideoCount              int     `json:"video_count"`
	AvgViewsPerVideo        float64 `json:"avg_views_per_video"`
	RecentAvgViews          float64 `json:"recent_avg_views"`
	RecentAvgLikes          float64 `json:"recent_avg_likes"`
	RecentEngagementRate    float64 `json:"recent_engagement_rate"`
	MomentumScore           float64 `json:"momentum_score"`
	UploadFrequencyPerMonth float64 `json:"upload_frequency_per_month"`
	LatestVideoDaysAgo      int     `json:"latest_video_days_ago"`
	PopularityScore         float64 `json:"popularity_score"`
	SubscribersPerYear      float64 `json:"subscribers_per_year"`
	ChannelAgeYears         float64 `json:"channel_age_years"`
	Description             string  `json:"description"`
	Status                  Trend   `json:"status"`
}

// Artist is a ranked entry of the single-channel report
type Artist struct {
	Rank int `json:"rank"`
	ChannelMetrics
}

// ArtistSummary aggregates the single-channel report
type ArtistSummary struct {
	AverageSubscribers   float64 `json:"average_subscribers"`
	TopPerformer         Leader  `json:"top_performer"`
	HighestEngagement    Leader  `json:"highest_engagement"`
	BestMomentum         Leader  `json:"best_momentum"`
	MostActive           Leader  `json:"most_active"`
	ActiveChannelsCount  int     `json:"active_channels_count"`
	GrowingChannelsCount int     `json:"growing_channels_count"`
}

// ArtistReport is artist_analytics.json
type ArtistReport struct {
	Metadata     Metadata      `json:"metadata"`
	SummaryStats ArtistSummary `json:"summary_stats"`
	Artists      []Artist      `json:"artists"`
}

// Channel is one channel of a multi-channel artist
type Channel struct {
	ChannelMetrics
	ArtistName    string `json:"artist_name"`
	DataFetchedAt string `json:"data_fetched_at"`
}

// ChannelRef is a short channel reference
type ChannelRef struct {
	Name        string `json:"name"`
	ID          string `json:"id"`
	Subscribers int64  `json:"subscribers"`
}

// MultiChannelArtist aggregates every channel of one artist
type MultiChannelArtist struct {
	Rank                    int          `json:"rank"`
	ArtistName              string       `json:"artist_name"`
	ChannelCount            int          `json:"channel_count"`
	PrimaryChannelName      string       `json:"primary_channel_name"`
	PrimaryChannelID        string       `json:"primary_channel_id"`
	Channels                []ChannelRef `json:"channels"`
	DataFetchedAt           string       `json:"data_fetched_at"`
	TotalSubscribers        int64        `json:"total_subscribers"`
	TotalViews              int64        `json:"total_views"`
	TotalVideos             int          `json:"total_videos"`
	AvgViewsPerVideo        float64      `json:"avg_views_per_video"`
	RecentAvgViews          float64      `json:"recent_avg_views"`
	RecentEngagementRate    float64      `json:"recent_engagement_rate"`
	MomentumScore           float64      `json:"momentum_score"`
	UploadFrequencyPerMonth float64      `json:"upload_frequency_per_month"`
	LatestVideoDaysAgo      int          `json:"latest_video_days_ago"`
	AvgChannelAgeYears      float64      `json:"avg_channel_age_years"`
	PopularityScore         float64      `json:"popularity_score"`
	SubscribersPerYear      float64      `json:"subscribers_per_year"`
	Status                  Trend        `json:"status"`
	IndividualChannels      []Channel    `json:"individual_channels"`
}

// MultiChannelSummary aggregates the multi-channel report
type MultiChannelSummary struct {
	AverageTotalSubscribers float64 `json:"average_total_subscribers"`
	TopPerformer            Leader  `json:"top_performer"`
	HighestEngagement       Leader  `json:"highest_engagement"`
	BestMomentum            Leader  `json:"best_momentum"`
	MostActive              Leader  `json:"most_active"`
	ActiveArtistsCount      int     `json:"active_artists_count"`
	GrowingArtistsCount     int     `json:"growing_artists_count"`
	MultiChannelArtists     int     `json:"multi_channel_artists"`
}

// MultiChannelReport is artist_analytics_multi_channel.json
type MultiChannelReport struct {
	Metadata           Metadata             `json:"metadata"`
	SummaryStats       MultiChannelSummary  `json:"artist_summary_stats"`
	Artists            []MultiChannelArtist `json:"artists"`
	IndividualChannels []Channel            `json:"individual_channels"`
}
