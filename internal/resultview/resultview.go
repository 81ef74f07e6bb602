// Package resultview maps a raw analysis result and subscription tier to the
// exact set of fields to surface. Project is pure: the same (result, tier)
// pair always yields a structurally identical ViewModel, so rendering
// decisions are testable without network access.
package resultview

import (
	"regexp"
	"strconv"

	"github.com/Johnlouiee/openai-egrowtify/internal/egrowtify"
)

// Fixed fallback strings for plant care fields the backend omitted.
const (
	DefaultWatering    = "Water when the top inch of soil feels dry"
	DefaultSunlight    = "Provide bright, indirect light"
	DefaultSoil        = "Use well-draining potting mix"
	DefaultFertilizing = "Feed monthly during the growing season"
	DefaultPruning     = "Remove dead or damaged growth as needed"

	DefaultHealthStatus  = "No health assessment available"
	DefaultGrowthStage   = "Growth stage not determined"
	DefaultSeasonalNotes = "No seasonal notes available"
	DefaultPestDiseases  = "No pest or disease notes available"

	UnknownPlantName = "Unknown Plant"
)

// Field is one displayable value. AIAttributed marks premium plant fields
// that were supplied by the backend's AI enrichment rather than a fallback.
type Field struct {
	Label        string
	Value        string
	AIAttributed bool
}

// PlantView is the tier-shaped projection of a plant result.
type PlantView struct {
	Name           string
	ScientificName string
	Confidence     float64
	NeedsTraining  bool

	// Care holds exactly 3 fields on basic (soil, sunlight, watering) and
	// 5 on premium (adds fertilizing, pruning), in a fixed order.
	Care []Field

	// Premium-only fields; nil on basic regardless of result content.
	HealthStatus   *Field
	GrowthStage    *Field
	SeasonalNotes  *Field
	PestDiseases   *Field
	EstimatedYield *Field
	CommonIssues   []string
	Alternatives   []egrowtify.Alternative
}

// HealthScore is a soil health label with the numeric score extracted from
// it when one is present (e.g. "7/10 - good" yields 7).
type HealthScore struct {
	Label    string
	Score    float64
	HasScore bool
}

// SoilDetail is the premium secondary detail view for soil results.
type SoilDetail struct {
	SeasonalConsiderations string
	Amendments             []string
	SuitablePlants         map[string]map[string]string
}

// SoilView is the tier-shaped projection of a soil result. Properties holds
// only backend-supplied values, in a fixed order, with no synthetic defaults.
type SoilView struct {
	Properties      []Field
	Recommendations []string
	HealthScore     *HealthScore // premium only
	Detail          *SoilDetail  // premium only
}

// ViewModel is the tagged-variant projection result. Exactly one of Plant
// or Soil is set.
type ViewModel struct {
	Domain egrowtify.Domain
	Tier   egrowtify.Tier
	Plant  *PlantView
	Soil   *SoilView
}

// Project maps a result and tier to the fields to surface.
func Project(result *egrowtify.AnalysisResult, tier egrowtify.Tier) ViewModel {
	vm := ViewModel{Domain: result.Domain, Tier: tier}
	switch result.Domain {
	case egrowtify.DomainPlant:
		if result.Plant != nil {
			vm.Plant = projectPlant(result.Plant, tier)
		}
	case egrowtify.DomainSoil:
		if result.Soil != nil {
			vm.Soil = projectSoil(result.Soil, tier)
		}
	}
	return vm
}

// careField builds a care field, falling back to the fixed default and
// tagging AI attribution only for backend-supplied values.
func careField(label, value, fallback string, aiEnriched bool) Field {
	if value == "" {
		return Field{Label: label, Value: fallback}
	}
	return Field{Label: label, Value: value, AIAttributed: aiEnriched}
}

func projectPlant(result *egrowtify.PlantResult, tier egrowtify.Tier) *PlantView {
	name := result.PlantName
	if name == "" {
		name = UnknownPlantName
	}

	view := &PlantView{
		Name:           name,
		ScientificName: result.ScientificName,
		Confidence:     result.Confidence,
		NeedsTraining:  result.NeedsTraining,
	}

	care := result.CareRecommendations
	view.Care = []Field{
		careField("Soil", care.Soil, DefaultSoil, result.AIEnriched),
		careField("Sunlight", care.Sunlight, DefaultSunlight, result.AIEnriched),
		careField("Watering", care.Watering, DefaultWatering, result.AIEnriched),
	}

	if tier != egrowtify.TierPremium {
		return view
	}

	view.Care = append(view.Care,
		careField("Fertilizing", care.Fertilizing, DefaultFertilizing, result.AIEnriched),
		careField("Pruning", care.Pruning, DefaultPruning, result.AIEnriched),
	)

	health := careField("Health Status", result.HealthStatus, DefaultHealthStatus, result.AIEnriched)
	view.HealthStatus = &health
	growth := careField("Growth Stage", result.GrowthStage, DefaultGrowthStage, result.AIEnriched)
	view.GrowthStage = &growth
	seasonal := careField("Seasonal Notes", result.SeasonalNotes, DefaultSeasonalNotes, result.AIEnriched)
	view.SeasonalNotes = &seasonal
	pests := careField("Pests & Diseases", result.PestDiseases, DefaultPestDiseases, result.AIEnriched)
	view.PestDiseases = &pests

	if result.EstimatedYield != "" {
		yield := Field{Label: "Estimated Yield", Value: result.EstimatedYield, AIAttributed: result.AIEnriched}
		view.EstimatedYield = &yield
	}

	if len(result.CommonIssues) > 0 {
		view.CommonIssues = append([]string(nil), result.CommonIssues...)
	}
	if len(result.Alternatives) > 0 {
		view.Alternatives = append([]egrowtify.Alternative(nil), result.Alternatives...)
	}

	return view
}

// soilProperty appends a field only when the backend supplied a value.
func soilProperty(fields []Field, label, value string) []Field {
	if value == "" {
		return fields
	}
	return append(fields, Field{Label: label, Value: value})
}

func projectSoil(result *egrowtify.SoilResult, tier egrowtify.Tier) *SoilView {
	view := &SoilView{}

	// Texture is surfaced under both labels, matching how gardeners search.
	view.Properties = soilProperty(view.Properties, "Moisture Level", result.MoistureLevel)
	view.Properties = soilProperty(view.Properties, "Soil Type", result.Texture)
	view.Properties = soilProperty(view.Properties, "Texture", result.Texture)
	view.Properties = soilProperty(view.Properties, "pH Level", result.PH)
	view.Properties = soilProperty(view.Properties, "Organic Matter", result.OrganicMatter)
	view.Properties = soilProperty(view.Properties, "Drainage", result.Drainage)
	view.Properties = soilProperty(view.Properties, "Nutrient Indicators", result.NutrientIndicators)
	view.Properties = soilProperty(view.Properties, "Compaction", result.CompactionAssessment)
	view.Properties = soilProperty(view.Properties, "Water Retention", result.WaterRetention)
	view.Properties = soilProperty(view.Properties, "Root Development", result.RootDevelopment)

	if len(result.Recommendations) > 0 {
		view.Recommendations = append([]string(nil), result.Recommendations...)
	}

	if tier != egrowtify.TierPremium {
		return view
	}

	if result.SoilHealthScore != "" {
		view.HealthScore = extractHealthScore(result.SoilHealthScore)
	}

	detail := &SoilDetail{
		SeasonalConsiderations: result.SeasonalConsiderations,
	}
	if len(result.SoilAmendments) > 0 {
		detail.Amendments = append([]string(nil), result.SoilAmendments...)
	}
	if len(result.SuitablePlants) > 0 {
		plants := make(map[string]map[string]string, len(result.SuitablePlants))
		for category, entries := range result.SuitablePlants {
			categoryCopy := make(map[string]string, len(entries))
			for plant, care := range entries {
				categoryCopy[plant] = care
			}
			plants[category] = categoryCopy
		}
		detail.SuitablePlants = plants
	}
	if detail.SeasonalConsiderations != "" || detail.Amendments != nil || detail.SuitablePlants != nil {
		view.Detail = detail
	}

	return view
}

var scorePattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

// extractHealthScore pulls the leading numeric rating out of labels like
// "7/10 - good with room to improve".
func extractHealthScore(label string) *HealthScore {
	hs := &HealthScore{Label: label}
	if match := scorePattern.FindString(label); match != "" {
		if score, err := strconv.ParseFloat(match, 64); err == nil {
			hs.Score = score
			hs.HasScore = true
		}
	}
	return hs
}
