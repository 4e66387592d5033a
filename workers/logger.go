package workers

import "github.com/dwhitlockii/ebay-sold-scrapper-sub000/models"

// LogFunc is a function that logs to the scrape_logs table
type LogFunc func(level models.LogLevel, query, message string)

// NoOpLogger does nothing (default)
var NoOpLogger LogFunc = func(level models.LogLevel, query, message string) {}
