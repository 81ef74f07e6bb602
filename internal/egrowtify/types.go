// Package egrowtify provides a client for the eGrowtify analysis backend API
package egrowtify

import (
	"encoding/json"
	"strings"
)

// Domain is the analysis subject.
type Domain string

const (
	DomainPlant Domain = "plant"
	DomainSoil  Domain = "soil"
)

// Valid reports whether the domain is one of the known analysis subjects.
func (d Domain) Valid() bool {
	return d == DomainPlant || d == DomainSoil
}

// Tier is the subscription level controlling result detail depth.
type Tier string

const (
	TierBasic   Tier = "basic"
	TierPremium Tier = "premium"
)

// UsageStatus is the per-domain quota state reported by the backend.
type UsageStatus struct {
	FreeAnalysesUsed int `json:"free_analyses_used"`
	PurchasedCredits int `json:"purchased_credits"`
	RemainingFree    int `json:"remaining_free"`
	RemainingTotal   int `json:"remaining_total"`
}

// CareRecommendations is the structured care advice for a plant result.
type CareRecommendations struct {
	Watering    string `json:"watering,omitempty"`
	Sunlight    string `json:"sunlight,omitempty"`
	Soil        string `json:"soil,omitempty"`
	Fertilizing string `json:"fertilizing,omitempty"`
	Pruning     string `json:"pruning,omitempty"`
}

// Alternative is a lower-ranked identification candidate.
type Alternative struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// PlantResult is the backend response for a plant identification request.
type PlantResult struct {
	PlantName       string   `json:"plant_name"`
	ScientificName  string   `json:"scientific_name"`
	CommonNames     []string `json:"common_names"`
	Confidence      float64  `json:"confidence"`
	WikiDescription string   `json:"wiki_description,omitempty"`
	InfoURL         string   `json:"info_url,omitempty"`
	NeedsTraining   bool     `json:"needs_training"`

	Alternatives []Alternative `json:"alternatives,omitempty"`

	// Present when the backend enriched the identification with vision AI
	HealthStatus        string              `json:"health_status,omitempty"`
	GrowthStage         string              `json:"growth_stage,omitempty"`
	CareRecommendations CareRecommendations `json:"care_recommendations,omitempty"`
	CommonIssues        []string            `json:"common_issues,omitempty"`
	EstimatedYield      string              `json:"estimated_yield,omitempty"`
	SeasonalNotes       string              `json:"seasonal_notes,omitempty"`
	PestDiseases        string              `json:"pest_diseases,omitempty"`
	AIEnriched          bool                `json:"ai_enriched"`

	RemainingAnalyses int `json:"remaining_analyses"`
}

// SoilResult is the backend response for a soil analysis request.
type SoilResult struct {
	MoistureLevel          string   `json:"moisture_level,omitempty"`
	Texture                string   `json:"texture,omitempty"`
	PH                     string   `json:"ph,omitempty"`
	OrganicMatter          string   `json:"organic_matter,omitempty"`
	Drainage               string   `json:"drainage,omitempty"`
	Recommendations        []string `json:"recommendations,omitempty"`
	NutrientIndicators     string   `json:"nutrient_indicators,omitempty"`
	CompactionAssessment   string   `json:"compaction_assessment,omitempty"`
	SoilHealthScore        string   `json:"soil_health_score,omitempty"`
	SeasonalConsiderations string   `json:"seasonal_considerations,omitempty"`
	SoilAmendments         []string `json:"soil_amendments,omitempty"`
	WaterRetention         string   `json:"water_retention,omitempty"`
	RootDevelopment        string   `json:"root_development,omitempty"`

	// Category -> plant name -> care detail
	SuitablePlants map[string]map[string]string `json:"suitable_plants,omitempty"`

	AIAnalyzed        bool `json:"ai_analyzed"`
	RemainingAnalyses int  `json:"remaining_analyses"`
}

// AnalysisResult is the domain-shaped result of one analysis request.
// Exactly one of Plant or Soil is set, matching Domain.
type AnalysisResult struct {
	Domain Domain
	Plant  *PlantResult
	Soil   *SoilResult
}

// NeedsTraining reports whether the backend flagged the result for the
// training feedback loop. Soil analyses never prompt training.
func (r *AnalysisResult) NeedsTraining() bool {
	return r.Domain == DomainPlant && r.Plant != nil && r.Plant.NeedsTraining
}

// TrainingRecord is a candidate contribution for an unrecognized plant.
type TrainingRecord struct {
	PlantName        string   `json:"plant_name"`
	ScientificName   string   `json:"scientific_name,omitempty"`
	CommonNames      []string `json:"common_names,omitempty"`
	PlantType        string   `json:"plant_type,omitempty"`
	Description      string   `json:"description,omitempty"`
	CareInstructions string   `json:"care_instructions,omitempty"`
	ImageData        string   `json:"image_data,omitempty"` // base64, no data-URI prefix
}

// PlantTypes is the accepted vocabulary for TrainingRecord.PlantType.
var PlantTypes = []string{"vegetable", "fruit", "herb", "flower", "tree", "shrub", "other"}

// TrainingResponse is the backend acknowledgement of a training submission.
type TrainingResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	SubmissionID string `json:"submission_id,omitempty"`
}

// StringOrList tolerates backend fields that arrive either as a JSON string
// or as an array of strings.
type StringOrList struct {
	values    []string
	wasString bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *StringOrList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		s.values = []string{single}
		s.wasString = true
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	s.values = list
	s.wasString = false
	return nil
}

// IsZero reports whether no value was supplied.
func (s *StringOrList) IsZero() bool {
	return len(s.values) == 0 || (s.wasString && s.values[0] == "")
}

// Text returns the comma-text representation the training form edits:
// a single string is used directly, a sequence is joined with ", ".
func (s *StringOrList) Text() string {
	if len(s.values) == 0 {
		return ""
	}
	if s.wasString {
		return s.values[0]
	}
	return strings.Join(s.values, ", ")
}

// GeneratedInfo is the AI assistant's partial training record.
// Empty fields mean the assistant had nothing to suggest.
type GeneratedInfo struct {
	PlantName        string       `json:"plant_name,omitempty"`
	ScientificName   string       `json:"scientific_name,omitempty"`
	CommonNames      StringOrList `json:"common_names,omitempty"`
	PlantType        string       `json:"plant_type,omitempty"`
	Description      string       `json:"description,omitempty"`
	CareInstructions string       `json:"care_instructions,omitempty"`
}

// HealthStatus is the backend health probe response.
type HealthStatus struct {
	Status            string `json:"status"`
	PlantIDConfigured bool   `json:"plant_id_api_configured"`
	OpenAIConfigured  bool   `json:"openai_api_configured"`
}

// apiError is the backend's error envelope.
type apiError struct {
	Error        string `json:"error"`
	NeedsPayment bool   `json:"needs_payment,omitempty"`
	Remaining    int    `json:"remaining,omitempty"`
}
