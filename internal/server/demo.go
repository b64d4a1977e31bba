package server

type demoQuestion struct {
	Text       string  `json:"text"`
	Keyword    string  `json:"keyword"`
	Cluster    string  `json:"cluster"`
	Confidence float64 `json:"confidence"`
}

type demoCluster struct {
	Label     string         `json:"label"`
	Size      int            `json:"size"`
	Quality   float64        `json:"quality"`
	Questions []demoQuestion `json:"questions"`
}

type demoResponse struct {
	Questions []demoQuestion `json:"questions"`
	Clusters  []demoCluster  `json:"clusters"`
	Stats     map[string]any `json:"stats"`
	IsDemo    bool           `json:"is_demo"`
	Message   string         `json:"message"`
}

var demoQuestions = []demoQuestion{
	{"What are the best free SEO tools for beginners?", "seo tools", "Free SEO Tools", 0.85},
	{"How to use Google Search Console for SEO?", "seo tools", "Free SEO Tools", 0.85},
	{"Are free SEO tools as good as paid ones?", "seo tools", "Free SEO Tools", 0.85},
	{"How to find long tail keywords for free?", "keyword research", "Keyword Research", 0.85},
	{"What is keyword difficulty and how to check it?", "keyword research", "Keyword Research", 0.85},
	{"How many keywords should I target per page?", "keyword research", "Keyword Research", 0.85},
	{"How to optimize content for SEO?", "content optimization", "Technical SEO", 0.85},
	{"What is on-page SEO checklist?", "content optimization", "Technical SEO", 0.85},
}

func demoPayload() demoResponse {
	clusters := []demoCluster{
		{Label: "Free SEO Tools", Size: 34, Quality: 0.92},
		{Label: "Keyword Research", Size: 28, Quality: 0.89},
		{Label: "Technical SEO", Size: 23, Quality: 0.87},
	}
	for i := range clusters {
		for _, q := range demoQuestions {
			if q.Cluster == clusters[i].Label {
				clusters[i].Questions = append(clusters[i].Questions, q)
			}
		}
	}
	return demoResponse{
		Questions: demoQuestions,
		Clusters:  clusters,
		Stats: map[string]any{
			"total_questions":    247,
			"total_clusters":     8,
			"clustering_quality": 0.92,
		},
		IsDemo:  true,
		Message: "This is demo data. Upgrade to Builder for live scraping.",
	}
}
