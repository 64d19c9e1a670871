package ai

import (
	"fmt"
	"strings"

	"github.com/farmsense/cava/backend/internal/model/registration"
)

// PromptTemplate holds advice hints for one family of crops.
type PromptTemplate struct {
	Crops        []string
	AdviceHints  []string
	ContextRules []string
}

// AdvisorPromptManager builds advisor system prompts from a farmer record.
type AdvisorPromptManager struct {
	templates map[string]*PromptTemplate
	order     []string
}

// NewAdvisorPromptManager creates a manager with the built-in crop families.
func NewAdvisorPromptManager() *AdvisorPromptManager {
	manager := &AdvisorPromptManager{
		templates: make(map[string]*PromptTemplate),
	}
	manager.loadDefaultTemplates()
	return manager
}

// TemplatesFor returns the crop families matching a comma separated crop list,
// in a stable order.
func (pm *AdvisorPromptManager) TemplatesFor(crops string) []string {
	lower := strings.ToLower(crops)
	var matched []string
	for _, name := range pm.order {
		for _, crop := range pm.templates[name].Crops {
			if strings.Contains(lower, crop) {
				matched = append(matched, name)
				break
			}
		}
	}
	return matched
}

// BuildSystemPrompt creates the advisor system prompt for a farmer.
func (pm *AdvisorPromptManager) BuildSystemPrompt(farmer *registration.FarmerRecord) string {
	if farmer == nil {
		return baseAdvisorPrompt
	}

	var hints, rules []string
	for _, name := range pm.TemplatesFor(farmer.PrimaryCrops) {
		t := pm.templates[name]
		hints = append(hints, t.AdviceHints...)
		rules = append(rules, t.ContextRules...)
	}
	if len(hints) == 0 {
		return pm.buildBasicSystemPrompt(farmer)
	}

	return fmt.Sprintf(`%s

Farmer:
- Name: %s %s
- Farm location: %s
- Primary crops: %s

Advice hints:
- %s

Rules:
- %s`,
		baseAdvisorPrompt,
		farmer.FirstName, farmer.LastName,
		farmer.FarmLocation,
		farmer.PrimaryCrops,
		strings.Join(hints, "\n- "),
		strings.Join(rules, "\n- "),
	)
}

func (pm *AdvisorPromptManager) buildBasicSystemPrompt(farmer *registration.FarmerRecord) string {
	return fmt.Sprintf(`%s

You are talking to %s, who farms near %s and grows %s.
Tailor every suggestion to that location and those crops, and ask one short
question when you need more detail about the field or the season.`,
		baseAdvisorPrompt,
		farmer.FirstName,
		farmer.FarmLocation,
		farmer.PrimaryCrops,
	)
}

func (pm *AdvisorPromptManager) add(name string, t *PromptTemplate) {
	pm.templates[name] = t
	pm.order = append(pm.order, name)
}

func (pm *AdvisorPromptManager) loadDefaultTemplates() {
	pm.add("cereals", &PromptTemplate{
		Crops: []string{"corn", "maize", "wheat", "barley", "oats", "rye", "spelt", "buckwheat", "koruza", "pšenica", "ječmen"},
		AdviceHints: []string{
			"Relate sowing and fertilising advice to soil temperature and expected rainfall",
			"Mention crop rotation with legumes when nitrogen comes up",
		},
		ContextRules: []string{
			"Give quantities per hectare when you recommend inputs",
		},
	})
	pm.add("vineyards and orchards", &PromptTemplate{
		Crops: []string{"grapes", "apples", "pears", "plums", "cherries", "hops"},
		AdviceHints: []string{
			"Watch for late spring frost and fungal pressure after wet weeks",
			"Suggest pruning and thinning windows by month",
		},
		ContextRules: []string{
			"Name the growth stage you are assuming before advising on sprays",
		},
	})
	pm.add("vegetables", &PromptTemplate{
		Crops: []string{"potato", "krompir", "cabbage", "tomatoes", "onions", "carrots", "pumpkins", "sugar beet"},
		AdviceHints: []string{
			"Cover irrigation timing and common pests for the crop",
			"Point out storage conditions after harvest",
		},
		ContextRules: []string{
			"Prefer low-cost measures a family farm can apply the same week",
		},
	})
}

const baseAdvisorPrompt = `You are CAVA, a practical farm advisor for small and medium farms.
Answer in the same language as the farmer. Be concise: a few short paragraphs
or bullet points. You do not give veterinary or legal advice; point the farmer
to the local extension service when a question needs an on-site visit.`
