// Package prompts holds the fixed instructions sent to the model and the keyword
// classifier that picks the specialized topics.
package prompts

import (
	"strings"
)

// AdvisorSystemPrompt is the instruction for ordinary conversational turns.
const AdvisorSystemPrompt = `You are the Leanchems idea advisor, a friendly and practical business consultant for Leanchems, a chemical import/export company modernising its operations with technology.
Help the user refine their project or business idea. Be concrete and actionable: point out opportunities, risks and next steps, and ask a clarifying question when the idea is vague.
Keep answers focused and format them in Markdown (short headings, bullet points, bold for key terms).`

// SpecialistSystemPrompt is the instruction for the stateless specialized calls.
const SpecialistSystemPrompt = "You are a detailed assistant for Leanchems, providing structured Markdown responses."

// InsightsTitle heads the web search fragment of a specialized response.
const InsightsTitle = "Web Insights & Examples"

// Topic is a specialized analysis mode triggered by keywords in the user's message.
type Topic struct {
	Name     string
	Title    string
	Keywords []string
	template string
}

// Prompt fills the topic template with the user's idea.
func (t Topic) Prompt(idea string) string {
	return strings.ReplaceAll(t.template, "{idea}", idea)
}

// Lean is the Lean Startup assessment.
var Lean = Topic{
	Name:     "lean",
	Title:    "Lean Startup Assessment",
	Keywords: []string{"lean", "startup", "start-up", "mvp", "minimum viable"},
	template: leanTemplate,
}

// Scrum is the Scrum/Agile delivery plan.
var Scrum = Topic{
	Name:     "scrum",
	Title:    "Scrum Agile Plan",
	Keywords: []string{"scrum", "agile", "sprint"},
	template: scrumTemplate,
}

// Topics lists every specialized topic in the order their responses are assembled.
var Topics = []Topic{Lean, Scrum}

// Detect returns the topics whose keywords appear in message, matched
// case-insensitively as substrings. False positives are accepted.
func Detect(message string) []Topic {
	lower := strings.ToLower(message)
	var matched []Topic
	for _, topic := range Topics {
		for _, kw := range topic.Keywords {
			if strings.Contains(lower, kw) {
				matched = append(matched, topic)
				break
			}
		}
	}
	return matched
}

// SearchQuery widens the idea into a query for recent real-world examples.
func SearchQuery(idea string) string {
	return idea + " real-world examples latest trends"
}

const leanTemplate = `Act as a world-class Lean Startup and business validation expert for Leanchems, a chemical import/export company revolutionizing operations with technology.
For the idea '{idea}', provide a detailed, structured assessment:

### 🌱 Minimum Viable Product (MVP)
- Propose an MVP tailored to the idea with its **key features** and a short description of each.

### 🎯 Customer Segments
- Identify the primary **customer groups**; for each give *Pain Points* and *Solution*.

### 📊 Hypotheses
- List **measurable hypotheses** with specific metrics (e.g. "Reduce delays by 25%") as a numbered list.

### 🧪 Validation Plan
- Outline actionable steps in a table:
  | **Step** | **Description** | **Timeline** | **Method** |
  |----------|-----------------|--------------|------------|

### ⚠️ Risks
- Highlight **risks**, each with a *Mitigation* in italics.

### 🏭 Industry Fit
- Explain in a concise paragraph how this fits chemical import/export needs (efficiency, safety, scalability).

### 💻 Technology Stack
- Recommend **Frontend**, **Backend**, **APIs** and **DevOps** tools with a one-line rationale each.

### 💰 Cost Structure
- Outline initial costs and lean strategies in a table.

### 📅 Project Management
- Suggest a **Tool**, **Milestones** and a meeting **Cadence**.

Format in Markdown with ### subheadings with emojis, **bold** for emphasis, *italics* for secondary details, tables and bullet points.`

const scrumTemplate = `You are a Scrum Master for Leanchems, a chemical import/export company blending Lean Startup principles with Agile development.
For the idea '{idea}', provide a comprehensive Scrum plan:

### 📝 User Stories
- Write **user stories** ("As a logistics manager, I want..."), each with a *Goal* and *Acceptance Criteria* ("Given X, when Y, then Z").

### ⏳ Sprint Plan
- Detail a **2-week sprint** with its full set of **tasks**.

### 🎁 Deliverables
- List **specific deliverables**, each with a *Purpose* sentence.

### 👥 Team Roles
- Define **roles** with responsibilities as a numbered list.

### 🔗 Dependencies
- Note **dependencies**, each with a *Contingency* in italics.

### 📈 Success Metrics
- Define **measurable metrics** with a *Tracking Method*.

### 🛡️ Risk Mitigation
- Identify **Scrum risks** (e.g. scope creep) with *Mitigation* steps.

### 🚀 Deployment and End-to-End Strategy
- Cover **CI/CD**, **Hosting**, **Testing**, **Monitoring** and the **Workflow** from code to deploy.

### 📅 Project Management
- Suggest a **Tool**, **Milestones** and a meeting **Cadence**.

Format in Markdown with ### subheadings with emojis, **bold** for emphasis, *italics* for secondary details, tables and bullet points.`
