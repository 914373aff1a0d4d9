package model

// Trend is a momentum classification of the most recent samples of a metric.
type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)
