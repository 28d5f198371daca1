package conversation

// Stage is the qualitative phase of a conversation, derived from what is
// known rather than stored.
type Stage string

const (
	StageGreeting       Stage = "greeting"
	StageDiscovery      Stage = "discovery"
	StageQualification  Stage = "qualification"
	StageRecommendation Stage = "recommendation"
	StageClosing        Stage = "closing"
)

// cannedResponses keep the conversation moving when the LLM call fails or
// exceeds the turn budget. The user never sees an error.
var cannedResponses = map[Stage]string{
	StageGreeting: "Hi! I help NYC homeowners figure out whether solar makes " +
		"sense for them. Do you own your home?",
	StageDiscovery: "Got it. To estimate your savings I just need a rough " +
		"idea of your monthly electric bill and your borough or zip code.",
	StageQualification: "Thanks! Based on what you've shared, solar looks " +
		"promising for you. What's your roof like, and when were you " +
		"thinking of making a change?",
	StageRecommendation: "Great news: homes like yours typically cut their " +
		"electric bill substantially with solar, and NYC incentives cover a " +
		"big part of the cost. Would you like the detailed numbers?",
	StageClosing: "You're a strong fit. I can connect you with a vetted NYC " +
		"installer for a free consultation. What works better, a call or " +
		"email?",
}
