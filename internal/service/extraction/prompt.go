package extraction

import (
	"fmt"
	"strings"

	"github.com/farmsense/cava/backend/internal/model/registration"
)

const extractionSystemPrompt = `You read messages from farmers registering with CAVA, a farm advisory service.
The conversation collects: first_name, last_name, phone_number, farm_location, primary_crops.
Users may write in any language, make mistakes and correct themselves.

Return exactly one JSON object and nothing else:
{
  "fields": {"<field>": {"value": "<text>", "confidence": <0..1>}},
  "negated": {"<field>": ["<value the user said is NOT theirs>"]},
  "disputed": ["<field the user says is wrong>"],
  "correction": <true if the user is changing something they said before>,
  "intent": "provide" | "affirm" | "deny" | "off_topic" | "greeting" | "unclear",
  "language": "<ISO 639-1 code of the user's language>",
  "reply": "<short reply in the user's language>"
}

Rules:
- Only include fields the latest message actually gives. Never guess.
- "My name is not X" puts X under negated.first_name and never under fields.
- A place name is not a person's name. If unsure, give it as farm_location with low confidence.
- Resolve "there", "that village" and similar to the place they refer to.
- Phone numbers keep a leading + and digits only.
- primary_crops is a comma separated list in English.
- affirm/deny only when the message answers a yes/no question.
- The reply acknowledges what was given and asks for the next missing field, or answers
  a side question briefly and returns to the registration.`

func buildSystemPrompt(req registration.ExtractionRequest) string {
	var sb strings.Builder
	sb.WriteString(extractionSystemPrompt)

	sb.WriteString("\n\nConversation state: ")
	sb.WriteString(string(req.State))

	if len(req.Profile) > 0 {
		sb.WriteString("\nAlready collected:\n")
		sb.WriteString(req.Profile.Summary())
	}

	if len(req.Missing) > 0 {
		names := make([]string, len(req.Missing))
		for i, f := range req.Missing {
			names[i] = string(f)
		}
		sb.WriteString("\nStill missing: ")
		sb.WriteString(strings.Join(names, ", "))
	}

	if req.Asked != "" {
		fmt.Fprintf(&sb, "\nThe assistant just asked for: %s", req.Asked)
	}

	if req.Pending != nil {
		fmt.Fprintf(&sb, "\nThe assistant asked the user to confirm %s = %q; a yes/no answers that.", req.Pending.Field, req.Pending.Value)
	}

	if req.State == registration.StateConfirming {
		sb.WriteString("\nThe assistant read back the details and asked if they are correct.")
	}

	return sb.String()
}
