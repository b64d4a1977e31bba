package config

import (
	"os"
	"time"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Auth.AnonymousUser == "" {
		cfg.Auth.AnonymousUser = "demo_user"
	}
	if cfg.Quota.Plans == nil {
		cfg.Quota.Plans = map[string]PlanLimits{}
	}
	if _, ok := cfg.Quota.Plans["free"]; !ok {
		cfg.Quota.Plans["free"] = PlanLimits{Daily: 3, Monthly: 10}
	}
	if _, ok := cfg.Quota.Plans["builder"]; !ok {
		cfg.Quota.Plans["builder"] = PlanLimits{Daily: 100, Monthly: 1000}
	}
	if cfg.Retriever.Mode == "" {
		cfg.Retriever.Mode = "browser"
	}
	if cfg.Retriever.SearchURL == "" {
		cfg.Retriever.SearchURL = "https://www.google.com/search"
	}
	if cfg.Retriever.Delay == 0 {
		cfg.Retriever.Delay = 2 * time.Second
	}
	if cfg.Retriever.SettleTime == 0 {
		cfg.Retriever.SettleTime = 3 * time.Second
	}
	if cfg.Retriever.NavigationTimeout == 0 {
		cfg.Retriever.NavigationTimeout = 30 * time.Second
	}
	if cfg.Retriever.MaxPages <= 0 {
		cfg.Retriever.MaxPages = 1
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "openai"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-ada-002"
	}
	if cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 1536
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Cluster.Restarts == 0 {
		cfg.Cluster.Restarts = 10
	}
	if cfg.Cluster.MaxIterations == 0 {
		cfg.Cluster.MaxIterations = 300
	}
	if cfg.Cluster.Epsilon == 0 {
		cfg.Cluster.Epsilon = 0.3
	}
	if cfg.Cluster.MinSamples == 0 {
		cfg.Cluster.MinSamples = 2
	}
	if cfg.Pipeline.MinTextLength == 0 {
		cfg.Pipeline.MinTextLength = 10
	}
	if cfg.Pipeline.MaxTextLength == 0 {
		cfg.Pipeline.MaxTextLength = 200
	}
	if cfg.Jobs.TTL == 0 {
		cfg.Jobs.TTL = 24 * time.Hour
	}
	if cfg.Jobs.SweepInterval == 0 {
		cfg.Jobs.SweepInterval = 10 * time.Minute
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "paaexplorer"
	}
}
