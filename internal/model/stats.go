package model

import "time"

// DailyCount is one bucket of a daily trend.
type DailyCount struct {
	Day   time.Time `json:"day"`
	Count int64     `json:"count"`
}

// ClientTotal is the submission total of one client.
type ClientTotal struct {
	ClientID   string `json:"client_id"`
	ClientName string `json:"client_name"`
	Total      int64  `json:"total"`
}

// GlobalStats is the dashboard-wide rollup.
type GlobalStats struct {
	TotalSubmissions     int64         `json:"totalSubmissions"`
	SubmissionsThisMonth int64         `json:"submissionsThisMonth"`
	LastMonthSubmissions int64         `json:"lastMonthSubmissions"`
	ActiveClients        int64         `json:"activeClients"`
	ActiveForms          int64         `json:"activeForms"`
	DailyTrend           []int64       `json:"dailyTrend"`
	DailyBuckets         []DailyCount  `json:"dailyBuckets"`
	ClientTotals         []ClientTotal `json:"clientTotals"`
}

// ClientStats is the rollup of a single client.
type ClientStats struct {
	ClientID             string       `json:"client_id"`
	TotalSubmissions     int64        `json:"totalSubmissions"`
	SubmissionsThisMonth int64        `json:"submissionsThisMonth"`
	ActiveForms          int64        `json:"activeForms"`
	DailyTrend           []int64      `json:"dailyTrend"`
	DailyBuckets         []DailyCount `json:"dailyBuckets"`
}
