package persona

// Built-in persona IDs.
const (
	EarlyStageID = "early"
	GrowthID     = "growth"
	AngelID      = "angel"
	RecruiterID  = "recruiter"
)

// Builtin returns the personas compiled into the binary.
func Builtin() []Persona {
	return []Persona{
		{
			ID:   EarlyStageID,
			Name: "Early Stage VC",
			Recipe: Recipe{
				PositiveHighlights: []string{
					"serial_founder", "yc_alumni", "technical_founder", "top_university",
					"previous_exit", "stealth_mode", "deep_tech",
				},
				NegativeHighlights: []string{"no_technical_cofounder", "solo_founder", "consulting_background"},
				RedFlags:           []string{"fraud_allegation", "litigation", "frequent_job_changes"},
				SignalTypes:        []string{"new_company", "stealth_launch", "left_job"},
				SeniorityKeywords:  []string{"founder", "cto", "ceo", "vp_engineering"},
				ValuedCompanies:    []string{"google", "stripe", "openai", "meta", "palantir"},
				Locations:          []string{"san_francisco", "new_york", "london", "remote"},
				MinYears:           3,
				MaxYears:           20,
				DefaultWeights: map[string]float64{
					"serial_founder":         0.95,
					"yc_alumni":              0.85,
					"technical_founder":      0.8,
					"previous_exit":          0.9,
					"top_university":         0.5,
					"stealth_mode":           0.6,
					"deep_tech":              0.55,
					"no_technical_cofounder": -0.6,
					"solo_founder":           -0.3,
					"consulting_background":  -0.25,
					"fraud_allegation":       -1.0,
					"litigation":             -0.7,
					"frequent_job_changes":   -0.4,
					"new_company":            0.7,
					"stealth_launch":         0.65,
					"left_job":               0.4,
				},
			},
		},
		{
			ID:   GrowthID,
			Name: "Growth Equity",
			Recipe: Recipe{
				PositiveHighlights: []string{
					"scaled_company", "hypergrowth", "profitable", "recurring_revenue",
					"enterprise_customers", "well_funded",
				},
				NegativeHighlights: []string{"early_team", "bootstrapped", "pre_revenue"},
				RedFlags:           []string{"layoffs", "down_round", "litigation", "high_churn"},
				SignalTypes:        []string{"funding_round", "hiring_spike", "executive_hire"},
				SeniorityKeywords:  []string{"ceo", "cfo", "coo", "president"},
				ValuedCompanies:    []string{"salesforce", "snowflake", "datadog", "shopify"},
				Locations:          []string{"new_york", "san_francisco", "boston", "london"},
				MinYears:           10,
				MaxYears:           30,
				DefaultWeights: map[string]float64{
					"scaled_company":       0.7,
					"hypergrowth":          0.9,
					"profitable":           0.85,
					"recurring_revenue":    0.8,
					"enterprise_customers": 0.6,
					"well_funded":          0.5,
					"early_team":           -0.5,
					"bootstrapped":         -0.2,
					"pre_revenue":          -0.7,
					"layoffs":              -0.6,
					"down_round":           -0.8,
					"litigation":           -0.7,
					"high_churn":           -0.75,
					"funding_round":        0.6,
					"hiring_spike":         0.7,
				},
			},
		},
		{
			ID:   AngelID,
			Name: "Angel Investor",
			Recipe: Recipe{
				PositiveHighlights: []string{
					"first_time_founder", "domain_expert", "early_team", "community_builder",
					"open_source_maintainer", "stealth_mode",
				},
				NegativeHighlights: []string{"well_funded", "late_stage"},
				RedFlags:           []string{"fraud_allegation", "litigation"},
				SignalTypes:        []string{"new_company", "side_project", "left_job"},
				SeniorityKeywords:  []string{"founder", "staff_engineer", "principal"},
				Locations:          []string{"remote", "berlin", "austin", "toronto"},
				MinYears:           2,
				MaxYears:           15,
				DefaultWeights: map[string]float64{
					"first_time_founder":     0.6,
					"domain_expert":          0.8,
					"early_team":             0.5,
					"community_builder":      0.55,
					"open_source_maintainer": 0.7,
					"stealth_mode":           0.5,
					"well_funded":            -0.4,
					"late_stage":             -0.6,
					"fraud_allegation":       -1.0,
					"litigation":             -0.6,
					"side_project":           0.45,
				},
				Multipliers: &Multipliers{Positive: 25},
			},
		},
		{
			ID:   RecruiterID,
			Name: "Technical Recruiter",
			Recipe: Recipe{
				PositiveHighlights: []string{
					"open_source_maintainer", "distributed_systems", "machine_learning",
					"top_university", "team_lead",
				},
				NegativeHighlights: []string{"frequent_job_changes", "no_recent_code"},
				RedFlags:           []string{"falsified_credentials", "non_compete"},
				SignalTypes:        []string{"left_job", "open_to_work", "layoffs"},
				SeniorityKeywords:  []string{"senior", "staff", "principal", "lead"},
				ValuedCompanies:    []string{"google", "stripe", "cloudflare", "netflix"},
				Locations:          []string{"remote", "seattle", "san_francisco", "new_york"},
				MinYears:           4,
				MaxYears:           15,
				DefaultWeights: map[string]float64{
					"open_source_maintainer": 0.75,
					"distributed_systems":    0.8,
					"machine_learning":       0.7,
					"top_university":         0.3,
					"team_lead":              0.5,
					"frequent_job_changes":   -0.5,
					"no_recent_code":         -0.4,
					"falsified_credentials":  -1.0,
					"non_compete":            -0.6,
					"open_to_work":           0.8,
					"left_job":               0.6,
				},
			},
		},
	}
}
