// Package prompts assembles the LLM prompts used for structured-summary
// extraction from normalized source text.
package prompts

import (
	"fmt"
	"strings"
)

// defaultTaskInstruction is used when a source carries no configured
// project prompt.
const defaultTaskInstruction = "Summarize the content and identify any regulatory changes, obligations, deadlines, or fee adjustments it introduces."

// BuildExtractionPrompt creates the prompt for structured-summary
// extraction. It embeds the per-source task instructions, the normalized
// source text, and the JSON schema the model must produce.
func BuildExtractionPrompt(projectPrompt, jurisdictionPrompt, text string) string {
	var prompt strings.Builder

	prompt.WriteString("# Regulatory Content Extraction\n\n")
	prompt.WriteString("Extract precise factual data from the source text below, based strictly on the task instructions.\n\n")

	prompt.WriteString("## Task Instructions\n\n")
	goal := strings.TrimSpace(projectPrompt)
	if goal == "" {
		goal = defaultTaskInstruction
	}
	prompt.WriteString(fmt.Sprintf("1. MAIN GOAL: %s\n", goal))
	if context := strings.TrimSpace(jurisdictionPrompt); context != "" {
		prompt.WriteString(fmt.Sprintf("2. CONTEXT AND FILTERS: %s\n", context))
	}
	prompt.WriteString("\n")

	prompt.WriteString("## Source Text\n\n")
	prompt.WriteString("[SOURCE TEXT START]\n")
	prompt.WriteString(text)
	prompt.WriteString("\n[SOURCE TEXT END]\n\n")

	prompt.WriteString("## Critical Output Rules\n\n")
	prompt.WriteString("1. Return ONLY a valid JSON object with exactly these fields:\n")
	prompt.WriteString("- `summary`: Short human-readable summary of the content (required)\n")
	prompt.WriteString("- `markdown_summary`: The same summary formatted as markdown\n")
	prompt.WriteString("- `changes_detected`: Description of regulatory changes found, or \"\" if none\n")
	prompt.WriteString("- `risk_level`: One of \"Low\", \"Medium\", \"High\" based on severity or importance\n")
	prompt.WriteString("- `key_points`: Array of the most important points as short strings\n")
	prompt.WriteString("- `confidence_score`: 0.0-1.0 based on how explicitly the facts appear in the text\n")
	prompt.WriteString("- `extracted_data`: Object of factual data points found in the text\n")
	prompt.WriteString("- `recommendation`: Recommended action or next steps\n")
	prompt.WriteString("2. KEY NAMING CONVENTION: `extracted_data` keys are snake_case, derived from the facts found.\n")
	prompt.WriteString("3. Use null for facts the text does not state. Never invent values.\n\n")

	prompt.WriteString("Example:\n")
	prompt.WriteString("```json\n")
	prompt.WriteString(`{
  "summary": "The regulator raised the annual licensing fee from 50 EUR to 200 EUR effective 1 March 2026.",
  "markdown_summary": "## Licensing Fee Update\n\n- Annual fee: **200 EUR** (was 50 EUR)\n- Effective: 1 March 2026",
  "changes_detected": "Annual licensing fee increased from 50 EUR to 200 EUR.",
  "risk_level": "Medium",
  "key_points": ["Annual fee increased to 200 EUR", "Change effective 1 March 2026"],
  "confidence_score": 0.95,
  "extracted_data": {
    "annual_fee_eur": 200,
    "effective_date": "2026-03-01"
  },
  "recommendation": "Review budget impact before the effective date."
}
`)
	prompt.WriteString("```\n\n")

	prompt.WriteString("Return ONLY the JSON, no additional text.\n")

	return prompt.String()
}

// BuildExtractionSystemMessage returns the system message for the LLM.
func BuildExtractionSystemMessage() string {
	return `You are an expert regulatory data extractor. Your task is to read scraped source content and produce a precise, structured JSON summary for an automated monitoring platform.`
}

// BuildExtractionRetryPrompt returns the extraction prompt with feedback
// about a previous attempt's invalid output appended. Requests carry no
// conversation state, so the feedback rides along with the full prompt.
func BuildExtractionRetryPrompt(basePrompt string, validationErr error) string {
	var prompt strings.Builder
	prompt.WriteString(basePrompt)
	prompt.WriteString("\n## Previous Attempt Failed\n\n")
	prompt.WriteString(fmt.Sprintf("Error: %v\n", validationErr))
	prompt.WriteString("Fix the JSON and retry. Return ONLY the JSON, no additional text.\n")
	return prompt.String()
}
